// Package codec defines the serialization capability used by the envelope
// codec and an explicit registry mapping logical type names to codecs
package codec

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aneshas/streamstore/mimetype"
)

var (
	// ErrNoCodecFound is returned when no codec is registered for a type
	// (and mime type) combination
	ErrNoCodecFound = errors.New("no codec found")

	// ErrTypeNotOwned is returned by a codec asked to marshal or unmarshal
	// a type name it was not configured with
	ErrTypeNotOwned = errors.New("type not owned by codec")
)

// TypeName is the logical name of a payload type (eg. "OrderPlaced")
type TypeName string

// Codec marshals and unmarshals values of the types it owns in its
// native mime type
type Codec interface {
	MimeType() mimetype.MimeType
	Marshal(v any, t TypeName) ([]byte, error)
	Unmarshal(data []byte, t TypeName, mt mimetype.MimeType) (any, error)
}

// NewRegistry constructs an empty codec registry
func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[TypeName][]Codec),
	}
}

// Registry maps type names to codecs. A type may be served by more than one
// codec (eg. one per mime type); the first one registered is the primary one.
// Registration is expected to happen at start up.
type Registry struct {
	mu     sync.RWMutex
	codecs map[TypeName][]Codec
}

// Register registers c for every provided type name
func (r *Registry) Register(c Codec, types ...TypeName) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range types {
		r.codecs[t] = append(r.codecs[t], c)
	}

	return r
}

// Resolve returns the primary codec for t
func (r *Registry) Resolve(t TypeName) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cs := r.codecs[t]
	if len(cs) == 0 {
		return nil, fmt.Errorf("%w: type %q", ErrNoCodecFound, t)
	}

	return cs[0], nil
}

// ResolveFor returns the codec for t whose native mime type matches the
// encoding of mt
func (r *Registry) ResolveFor(t TypeName, mt mimetype.MimeType) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.codecs[t] {
		if c.MimeType().MatchEncoding(mt) {
			return c, nil
		}
	}

	return nil, fmt.Errorf("%w: type %q, mime type %q", ErrNoCodecFound, t, mt)
}

// TypedCodec is a codec that can list the type names it owns
type TypedCodec interface {
	Codec
	Types() []TypeName
}

// Add registers c for every type name it owns
func (r *Registry) Add(c TypedCodec) *Registry {
	return r.Register(c, c.Types()...)
}
