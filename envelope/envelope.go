// Package envelope serializes events into a self describing outer envelope
// (json or xml). Payloads whose native encoding matches the envelope format
// are embedded as is, everything else is embedded as a Base64 wrapper and
// the metadata record carries enough information to pick the original codec
// on the way back.
package envelope

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/codec"
	"github.com/aneshas/streamstore/mimetype"
)

var (
	// ErrUnsupportedTargetType is returned when an envelope codec is
	// constructed for an outer format other than utf-8 json or xml
	ErrUnsupportedTargetType = errors.New("unsupported envelope target type")

	// ErrInvalidEnvelope indicates a malformed or structurally inconsistent envelope
	ErrInvalidEnvelope = errors.New("invalid envelope")
)

// Resolver looks up payload codecs. *codec.Registry implements it.
type Resolver interface {
	Resolve(t codec.TypeName) (codec.Codec, error)
	ResolveFor(t codec.TypeName, mt mimetype.MimeType) (codec.Codec, error)
}

// Envelope is a single encoded event
type Envelope struct {
	ID          streamstore.EventID
	Type        codec.TypeName
	ContentType mimetype.MimeType
	Meta        Meta

	// Bytes is the serialized outer envelope
	Bytes []byte
}

// EncodeCfg represents encode configuration
type EncodeCfg struct {
	Tenant string
}

// EncodeOption represents encode configuration option
type EncodeOption func(EncodeCfg) EncodeCfg

// WithTenant sets the tenant recorded in the envelope metadata
func WithTenant(tenant string) EncodeOption {
	return func(cfg EncodeCfg) EncodeCfg {
		cfg.Tenant = tenant

		return cfg
	}
}

// New constructs an envelope codec producing envelopes in target format.
// Only application/json and application/xml (utf-8) are supported.
func New(target mimetype.MimeType, codecs Resolver) (*Codec, error) {
	if codecs == nil {
		return nil, fmt.Errorf("codec resolver must be provided")
	}

	f, err := formatFor(target)
	if err != nil {
		return nil, err
	}

	return &Codec{
		format: f,
		codecs: codecs,
	}, nil
}

// Codec encodes events into envelopes and decodes them back
type Codec struct {
	format *format
	codecs Resolver
}

// ContentType returns the outer envelope mime type
func (c *Codec) ContentType() mimetype.MimeType { return c.format.mt }

// Encode serializes ev into an envelope
func (c *Codec) Encode(ev streamstore.CommonEvent, opts ...EncodeOption) (*Envelope, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	var cfg EncodeCfg

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	data, dataMT, err := c.embed(ev.DataType, ev.Data)
	if err != nil {
		return nil, err
	}

	meta := Meta{
		DataType:        ev.DataType,
		DataContentType: dataMT,
		Tenant:          cfg.Tenant,
	}

	if ev.HasMeta() {
		raw, metaMT, err := c.embed(ev.MetaType, ev.Meta)
		if err != nil {
			return nil, err
		}

		meta.MetaType = ev.MetaType
		meta.MetaContentType = metaMT
		meta.Meta = raw
	}

	metaCodec, err := metaCodecs.ResolveFor(MetaTypeName, c.format.mt)
	if err != nil {
		return nil, err
	}

	metaRaw, err := metaCodec.Marshal(&meta, MetaTypeName)
	if err != nil {
		return nil, err
	}

	out, err := c.format.marshal(wireEvent{
		ID:   string(ev.ID),
		Type: string(ev.DataType),
		Data: data,
		Meta: metaRaw,
	})
	if err != nil {
		return nil, err
	}

	return &Envelope{
		ID:          ev.ID,
		Type:        ev.DataType,
		ContentType: c.format.mt,
		Meta:        meta,
		Bytes:       out,
	}, nil
}

// embed marshals v with its primary codec and embeds it natively if the
// codec's mime type matches the envelope format, or as Base64 otherwise
func (c *Codec) embed(t codec.TypeName, v any) ([]byte, mimetype.MimeType, error) {
	cd, err := c.codecs.Resolve(t)
	if err != nil {
		return nil, mimetype.MimeType{}, err
	}

	native := cd.MimeType()

	raw, err := cd.Marshal(v, t)
	if err != nil {
		return nil, mimetype.MimeType{}, fmt.Errorf("envelope: marshal %q: %w", t, err)
	}

	if native.MatchEncoding(c.format.mt) {
		return raw, native, nil
	}

	wrapped, err := c.format.wrap(NewBase64(raw))
	if err != nil {
		return nil, mimetype.MimeType{}, err
	}

	return wrapped, native.WithBase64(), nil
}

// Decode deserializes an envelope of either format
func (c *Codec) Decode(raw []byte) (streamstore.CommonEvent, error) {
	f, err := sniff(raw)
	if err != nil {
		return streamstore.CommonEvent{}, err
	}

	w, err := f.unmarshal(raw)
	if err != nil {
		return streamstore.CommonEvent{}, err
	}

	meta, err := decodeMeta(f, w.Meta)
	if err != nil {
		return streamstore.CommonEvent{}, err
	}

	if w.ID == "" {
		return streamstore.CommonEvent{}, fmt.Errorf("%w: EventId is missing", ErrInvalidEnvelope)
	}

	if w.Type != string(meta.DataType) {
		return streamstore.CommonEvent{}, fmt.Errorf(
			"%w: EventType %q does not match data-type %q",
			ErrInvalidEnvelope,
			w.Type,
			meta.DataType,
		)
	}

	data, err := c.extract(f, meta.DataType, meta.DataContentType, w.Data)
	if err != nil {
		return streamstore.CommonEvent{}, err
	}

	ev := streamstore.CommonEvent{
		ID:       streamstore.EventID(w.ID),
		DataType: meta.DataType,
		Data:     data,
	}

	if !meta.HasMeta() {
		return ev, nil
	}

	m, err := c.extract(f, meta.MetaType, meta.MetaContentType, meta.Meta)
	if err != nil {
		return streamstore.CommonEvent{}, err
	}

	return ev.WithMeta(meta.MetaType, m), nil
}

// DecodeMeta parses and validates only the metadata record of an envelope
func (c *Codec) DecodeMeta(raw []byte) (*Meta, error) {
	f, err := sniff(raw)
	if err != nil {
		return nil, err
	}

	w, err := f.unmarshal(raw)
	if err != nil {
		return nil, err
	}

	return decodeMeta(f, w.Meta)
}

func (c *Codec) extract(f *format, t codec.TypeName, mt mimetype.MimeType, raw []byte) (any, error) {
	if mt.IsBase64() {
		wrapped, err := f.unwrap(raw)
		if err != nil {
			return nil, err
		}

		raw, err = wrapped.Bytes()
		if err != nil {
			return nil, err
		}

		mt = mt.WithoutTransferEncoding()
	}

	cd, err := c.codecs.ResolveFor(t, mt)
	if err != nil {
		return nil, err
	}

	v, err := cd.Unmarshal(raw, t, mt)
	if err != nil {
		return nil, fmt.Errorf("envelope: unmarshal %q: %w", t, err)
	}

	return v, nil
}

func decodeMeta(f *format, raw []byte) (*Meta, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: MetaData is missing", ErrInvalidEnvelope)
	}

	metaCodec, err := metaCodecs.ResolveFor(MetaTypeName, f.mt)
	if err != nil {
		return nil, err
	}

	v, err := metaCodec.Unmarshal(raw, MetaTypeName, f.mt)
	if err != nil {
		return nil, err
	}

	meta, ok := v.(*Meta)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected metadata record %T", ErrInvalidEnvelope, v)
	}

	if err := meta.Validate(); err != nil {
		return nil, err
	}

	return meta, nil
}

// wireEvent is the format independent view of the outer envelope
type wireEvent struct {
	ID   string
	Type string
	Data []byte
	Meta []byte
}

// format is a single outer envelope format
type format struct {
	mt        mimetype.MimeType
	marshal   func(wireEvent) ([]byte, error)
	unmarshal func([]byte) (wireEvent, error)
	wrap      func(*Base64) ([]byte, error)
	unwrap    func([]byte) (*Base64, error)
}

var formats = []*format{jsonFormat, xmlFormat}

// metaCodecs holds the built-in codecs of the metadata record, one per
// outer format
var metaCodecs = codec.NewRegistry().
	Register(jsonMetaCodec{}, MetaTypeName).
	Register(xmlMetaCodec{}, MetaTypeName)

func formatFor(target mimetype.MimeType) (*format, error) {
	for _, f := range formats {
		if f.mt.MatchEncoding(target) {
			return f, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedTargetType, target)
}

func sniff(raw []byte) (*format, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n\ufeff")

	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty envelope", ErrInvalidEnvelope)
	}

	switch trimmed[0] {
	case '{':
		return jsonFormat, nil
	case '<':
		return xmlFormat, nil
	default:
		return nil, fmt.Errorf("%w: unknown envelope format", ErrInvalidEnvelope)
	}
}
