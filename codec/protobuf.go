package codec

import (
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/aneshas/streamstore/mimetype"
)

// NewProtobuf constructs protobuf codec. Its native mime type is binary so
// the envelope codec always base64 wraps protobuf payloads.
func NewProtobuf(opts ...Option) *Protobuf {
	return &Protobuf{
		types: make(map[TypeName]protoreflect.MessageType),
		mt:    applyOpts(mimetype.ApplicationProtobuf, opts),
	}
}

// Protobuf marshals registered proto messages using the protobuf wire format
type Protobuf struct {
	mu    sync.RWMutex
	types map[TypeName]protoreflect.MessageType
	mt    mimetype.MimeType
}

// Register binds a type name to the message type of sample
func (c *Protobuf) Register(name TypeName, sample proto.Message) *Protobuf {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.types[name] = sample.ProtoReflect().Type()

	return c
}

// MimeType returns the codec mime type
func (c *Protobuf) MimeType() mimetype.MimeType { return c.mt }

// Types returns registered type names
func (c *Protobuf) Types() []TypeName {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]TypeName, 0, len(c.types))

	for name := range c.types {
		out = append(out, name)
	}

	return out
}

// Marshal marshals a proto message
func (c *Protobuf) Marshal(v any, t TypeName) ([]byte, error) {
	if _, err := c.messageType(t); err != nil {
		return nil, err
	}

	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("protobuf codec: %q: %T is not a proto message", t, v)
	}

	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protobuf codec: marshal %q: %w", t, err)
	}

	return data, nil
}

// Unmarshal unmarshals data into a new message of the type registered under t
func (c *Protobuf) Unmarshal(data []byte, t TypeName, _ mimetype.MimeType) (any, error) {
	mt, err := c.messageType(t)
	if err != nil {
		return nil, err
	}

	msg := mt.New().Interface()

	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("protobuf codec: unmarshal %q: %w", t, err)
	}

	return msg, nil
}

func (c *Protobuf) messageType(t TypeName) (protoreflect.MessageType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	mt, ok := c.types[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTypeNotOwned, t)
	}

	return mt, nil
}

var _ TypedCodec = (*Protobuf)(nil)
