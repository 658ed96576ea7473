package codec

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/aneshas/streamstore/mimetype"
)

// Option configures a codec
type Option func(mimetype.MimeType) mimetype.MimeType

// WithMimeType overrides the codec native mime type (eg. to pin a version
// or a different charset)
func WithMimeType(mt mimetype.MimeType) Option {
	return func(mimetype.MimeType) mimetype.MimeType {
		return mt
	}
}

// WithVersion sets the version parameter of the codec native mime type
func WithVersion(version string) Option {
	return func(mt mimetype.MimeType) mimetype.MimeType {
		return mt.WithParam(mimetype.ParamVersion, version)
	}
}

func applyOpts(mt mimetype.MimeType, opts []Option) mimetype.MimeType {
	for _, opt := range opts {
		mt = opt(mt)
	}

	return mt
}

type typeEntry struct {
	typ reflect.Type
	ptr bool
}

func (e typeEntry) value(v reflect.Value) any {
	if e.ptr {
		return v.Interface()
	}

	return v.Elem().Interface()
}

func newTypeMap() *typeMap {
	return &typeMap{
		entries: make(map[TypeName]typeEntry),
	}
}

type typeMap struct {
	mu      sync.RWMutex
	entries map[TypeName]typeEntry
}

func (m *typeMap) add(name TypeName, sample any) {
	t := reflect.TypeOf(sample)
	if t == nil {
		panic(fmt.Sprintf("codec: nil sample registered for %q", name))
	}

	e := typeEntry{typ: t}

	if t.Kind() == reflect.Ptr {
		e = typeEntry{typ: t.Elem(), ptr: true}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[name] = e
}

func (m *typeMap) get(name TypeName) (typeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[name]
	if !ok {
		return typeEntry{}, fmt.Errorf("%w: %q", ErrTypeNotOwned, name)
	}

	return e, nil
}

func (m *typeMap) names() []TypeName {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TypeName, 0, len(m.entries))

	for name := range m.entries {
		out = append(out, name)
	}

	return out
}
