package codec

import (
	"encoding/xml"
	"fmt"
	"reflect"

	"github.com/aneshas/streamstore/mimetype"
)

// NewXML constructs xml codec
func NewXML(opts ...Option) *XML {
	return &XML{
		types: newTypeMap(),
		mt:    applyOpts(mimetype.ApplicationXML, opts),
	}
}

// XML marshals registered types to/from xml using encoding/xml. The root
// element is whatever encoding/xml produces for the value (struct name or
// its XMLName field).
type XML struct {
	types *typeMap
	mt    mimetype.MimeType
}

// Register binds a type name to the Go type of sample
func (c *XML) Register(name TypeName, sample any) *XML {
	c.types.add(name, sample)

	return c
}

// MimeType returns the codec mime type
func (c *XML) MimeType() mimetype.MimeType { return c.mt }

// Marshal marshals v to xml
func (c *XML) Marshal(v any, t TypeName) ([]byte, error) {
	if _, err := c.types.get(t); err != nil {
		return nil, err
	}

	data, err := xml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("xml codec: marshal %q: %w", t, err)
	}

	return data, nil
}

// Unmarshal unmarshals xml data to a value of the type registered under t
func (c *XML) Unmarshal(data []byte, t TypeName, _ mimetype.MimeType) (any, error) {
	entry, err := c.types.get(t)
	if err != nil {
		return nil, err
	}

	v := reflect.New(entry.typ)

	if err := xml.Unmarshal(data, v.Interface()); err != nil {
		return nil, fmt.Errorf("xml codec: unmarshal %q: %w", t, err)
	}

	return entry.value(v), nil
}

var _ Codec = (*XML)(nil)

// Types returns registered type names
func (c *XML) Types() []TypeName { return c.types.names() }
