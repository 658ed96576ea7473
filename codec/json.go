package codec

import (
	"fmt"
	"reflect"

	"github.com/bytedance/sonic"

	"github.com/aneshas/streamstore/mimetype"
)

var jsonAPI = sonic.ConfigStd

// NewJSON constructs json codec
func NewJSON(opts ...Option) *JSON {
	return &JSON{
		types: newTypeMap(),
		mt:    applyOpts(mimetype.ApplicationJSON, opts),
	}
}

// JSON provides default json Codec implementation.
// It will marshal and unmarshal registered types to/from json
type JSON struct {
	types *typeMap
	mt    mimetype.MimeType
}

// Register binds a type name to the Go type of sample. Unmarshal will
// produce values of the same kind (value or pointer) as sample.
func (c *JSON) Register(name TypeName, sample any) *JSON {
	c.types.add(name, sample)

	return c
}

// MimeType returns the codec mime type
func (c *JSON) MimeType() mimetype.MimeType { return c.mt }

// Marshal marshals v to its json representation
func (c *JSON) Marshal(v any, t TypeName) ([]byte, error) {
	if _, err := c.types.get(t); err != nil {
		return nil, err
	}

	data, err := jsonAPI.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json codec: marshal %q: %w", t, err)
	}

	return data, nil
}

// Unmarshal unmarshals data to a value of the type registered under t
func (c *JSON) Unmarshal(data []byte, t TypeName, _ mimetype.MimeType) (any, error) {
	entry, err := c.types.get(t)
	if err != nil {
		return nil, err
	}

	v := reflect.New(entry.typ)

	if err := jsonAPI.Unmarshal(data, v.Interface()); err != nil {
		return nil, fmt.Errorf("json codec: unmarshal %q: %w", t, err)
	}

	return entry.value(v), nil
}

var _ Codec = (*JSON)(nil)

// Types returns registered type names
func (c *JSON) Types() []TypeName { return c.types.names() }
