package envelope

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/aneshas/streamstore/codec"
	"github.com/aneshas/streamstore/mimetype"
)

// MetaTypeName is the well known type name the metadata record is
// registered under
const MetaTypeName codec.TypeName = "EscMeta"

// reservedMetaKeys are the fixed fields of the metadata record. The meta
// payload is keyed by its type name, so it can not reuse any of them.
var reservedMetaKeys = map[codec.TypeName]bool{
	"data-type":         true,
	"data-content-type": true,
	"tenant":            true,
	"meta-type":         true,
	"meta-content-type": true,
}

func checkMetaKey(t codec.TypeName) error {
	if reservedMetaKeys[t] {
		return fmt.Errorf("%w: meta type %q is a reserved metadata field", ErrInvalidEnvelope, t)
	}

	return nil
}

// checkXMLMetaName reports meta type names which are not a plain
// (namespace free) xml element name
func checkXMLMetaName(t codec.TypeName) error {
	if err := checkMetaKey(t); err != nil {
		return err
	}

	name := string(t)

	if strings.HasPrefix(strings.ToLower(name), "xml") {
		return fmt.Errorf("%w: meta type %q can not start with xml", ErrInvalidEnvelope, t)
	}

	for i, r := range name {
		ok := unicode.IsLetter(r) || r == '_'

		if i > 0 {
			ok = ok || unicode.IsDigit(r) || r == '-' || r == '.'
		}

		if !ok {
			return fmt.Errorf("%w: meta type %q is not a valid xml element name", ErrInvalidEnvelope, t)
		}
	}

	return nil
}

// Meta is the envelope metadata record. It describes how the data and the
// (optional) metadata payloads were encoded so that they can be decoded
// with the original codecs.
type Meta struct {
	DataType        codec.TypeName
	DataContentType mimetype.MimeType
	Tenant          string

	// MetaType, MetaContentType and Meta are set together or not at all
	MetaType        codec.TypeName
	MetaContentType mimetype.MimeType

	// Meta is the embedded metadata payload as it appears on the wire:
	// the native encoding or a Base64 wrapper
	Meta []byte
}

// HasMeta reports whether the record describes an event metadata payload
func (m *Meta) HasMeta() bool { return m.MetaType != "" }

// Validate checks structural consistency of the record
func (m *Meta) Validate() error {
	if m.DataType == "" {
		return fmt.Errorf("%w: data-type is missing", ErrInvalidEnvelope)
	}

	if m.DataContentType.IsZero() {
		return fmt.Errorf("%w: data-content-type is missing", ErrInvalidEnvelope)
	}

	hasType := m.MetaType != ""
	hasContentType := !m.MetaContentType.IsZero()
	hasMeta := m.Meta != nil

	if hasType != hasContentType || hasType != hasMeta {
		return fmt.Errorf(
			"%w: meta-type, meta-content-type and meta must be present together (type=%t content-type=%t meta=%t)",
			ErrInvalidEnvelope,
			hasType,
			hasContentType,
			hasMeta,
		)
	}

	return nil
}

// NewBase64 wraps raw bytes
func NewBase64(raw []byte) *Base64 {
	return &Base64{
		Encoded: base64.StdEncoding.EncodeToString(raw),
	}
}

// Base64 is the payload wrapper used when a payload's native encoding
// cannot be embedded in the outer envelope format
type Base64 struct {
	Encoded string

	once    sync.Once
	decoded []byte
	err     error
}

// Bytes decodes the wrapped payload. The result is cached.
func (b *Base64) Bytes() ([]byte, error) {
	b.once.Do(func() {
		b.decoded, b.err = base64.StdEncoding.DecodeString(b.Encoded)
		if b.err != nil {
			b.err = fmt.Errorf("%w: base64 payload: %v", ErrInvalidEnvelope, b.err)
		}
	})

	return b.decoded, b.err
}
