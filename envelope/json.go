package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/aneshas/streamstore/codec"
	"github.com/aneshas/streamstore/mimetype"
)

var jsonAPI = sonic.ConfigStd

type jsonEvent struct {
	EventID   string          `json:"EventId"`
	EventType string          `json:"EventType"`
	Data      json.RawMessage `json:"Data"`
	MetaData  json.RawMessage `json:"MetaData"`
}

type jsonBase64 struct {
	Base64 *string `json:"Base64"`
}

var jsonFormat = &format{
	mt: mimetype.ApplicationJSON,

	marshal: func(w wireEvent) ([]byte, error) {
		out, err := jsonAPI.Marshal(jsonEvent{
			EventID:   w.ID,
			EventType: w.Type,
			Data:      w.Data,
			MetaData:  w.Meta,
		})
		if err != nil {
			return nil, fmt.Errorf("envelope: marshal json envelope: %w", err)
		}

		return out, nil
	},

	unmarshal: func(raw []byte) (wireEvent, error) {
		var evt jsonEvent

		if err := jsonAPI.Unmarshal(raw, &evt); err != nil {
			return wireEvent{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
		}

		return wireEvent{
			ID:   evt.EventID,
			Type: evt.EventType,
			Data: evt.Data,
			Meta: evt.MetaData,
		}, nil
	},

	wrap: func(b *Base64) ([]byte, error) {
		return jsonAPI.Marshal(jsonBase64{Base64: &b.Encoded})
	},

	unwrap: func(raw []byte) (*Base64, error) {
		var w jsonBase64

		if err := jsonAPI.Unmarshal(raw, &w); err != nil || w.Base64 == nil {
			return nil, fmt.Errorf("%w: expected a Base64 wrapper", ErrInvalidEnvelope)
		}

		return &Base64{Encoded: *w.Base64}, nil
	},
}

type jsonMeta struct {
	DataType        string `json:"data-type"`
	DataContentType string `json:"data-content-type"`
	Tenant          string `json:"tenant,omitempty"`
	MetaType        string `json:"meta-type,omitempty"`
	MetaContentType string `json:"meta-content-type,omitempty"`
}

// jsonMetaCodec renders the metadata record as a json object. The metadata
// payload is stored under a key named after its type.
type jsonMetaCodec struct{}

func (jsonMetaCodec) MimeType() mimetype.MimeType { return mimetype.ApplicationJSON }

func (jsonMetaCodec) Marshal(v any, t codec.TypeName) ([]byte, error) {
	m, err := metaRecord(v, t)
	if err != nil {
		return nil, err
	}

	jm := jsonMeta{
		DataType:        string(m.DataType),
		DataContentType: m.DataContentType.String(),
		Tenant:          m.Tenant,
	}

	if m.HasMeta() {
		jm.MetaType = string(m.MetaType)
		jm.MetaContentType = m.MetaContentType.String()
	}

	out, err := jsonAPI.Marshal(jm)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal json metadata: %w", err)
	}

	if !m.HasMeta() {
		return out, nil
	}

	if err := checkMetaKey(m.MetaType); err != nil {
		return nil, err
	}

	key, err := jsonAPI.Marshal(string(m.MetaType))
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal json metadata: %w", err)
	}

	// splice the dynamic key into the object
	out = append(out[:len(out)-1], ',')
	out = append(out, key...)
	out = append(out, ':')
	out = append(out, m.Meta...)
	out = append(out, '}')

	return out, nil
}

func (jsonMetaCodec) Unmarshal(data []byte, t codec.TypeName, _ mimetype.MimeType) (any, error) {
	if t != MetaTypeName {
		return nil, fmt.Errorf("%w: %q", codec.ErrTypeNotOwned, t)
	}

	var (
		jm     jsonMeta
		fields map[string]json.RawMessage
	)

	if err := jsonAPI.Unmarshal(data, &jm); err != nil {
		return nil, fmt.Errorf("%w: MetaData: %v", ErrInvalidEnvelope, err)
	}

	if err := jsonAPI.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: MetaData: %v", ErrInvalidEnvelope, err)
	}

	m, err := newMeta(jm.DataType, jm.DataContentType, jm.Tenant, jm.MetaType, jm.MetaContentType)
	if err != nil {
		return nil, err
	}

	if raw, ok := fields[jm.MetaType]; ok && jm.MetaType != "" {
		m.Meta = raw
	}

	return m, nil
}

func metaRecord(v any, t codec.TypeName) (*Meta, error) {
	if t != MetaTypeName {
		return nil, fmt.Errorf("%w: %q", codec.ErrTypeNotOwned, t)
	}

	switch m := v.(type) {
	case *Meta:
		return m, nil
	case Meta:
		return &m, nil
	default:
		return nil, fmt.Errorf("%w: %T", codec.ErrTypeNotOwned, v)
	}
}

func newMeta(dataType, dataContentType, tenant, metaType, metaContentType string) (*Meta, error) {
	m := Meta{
		DataType: codec.TypeName(dataType),
		Tenant:   tenant,
		MetaType: codec.TypeName(metaType),
	}

	if dataContentType != "" {
		mt, err := mimetype.Parse(dataContentType)
		if err != nil {
			return nil, fmt.Errorf("%w: data-content-type: %v", ErrInvalidEnvelope, err)
		}

		m.DataContentType = mt
	}

	if metaContentType != "" {
		mt, err := mimetype.Parse(metaContentType)
		if err != nil {
			return nil, fmt.Errorf("%w: meta-content-type: %v", ErrInvalidEnvelope, err)
		}

		m.MetaContentType = mt
	}

	return &m, nil
}
