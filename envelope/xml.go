package envelope

import (
	"encoding/xml"
	"fmt"

	"github.com/aneshas/streamstore/codec"
	"github.com/aneshas/streamstore/mimetype"
)

type xmlEvent struct {
	XMLName   xml.Name `xml:"Event"`
	EventID   string   `xml:"EventId"`
	EventType string   `xml:"EventType"`
	Data      xmlInner `xml:"Data"`
	MetaData  xmlInner `xml:"MetaData"`
}

type xmlInner struct {
	Inner []byte `xml:",innerxml"`
}

type xmlBase64 struct {
	XMLName xml.Name `xml:"Base64"`
	Encoded string   `xml:",chardata"`
}

var xmlFormat = &format{
	mt: mimetype.ApplicationXML,

	marshal: func(w wireEvent) ([]byte, error) {
		out, err := xml.Marshal(xmlEvent{
			EventID:   w.ID,
			EventType: w.Type,
			Data:      xmlInner{Inner: w.Data},
			MetaData:  xmlInner{Inner: w.Meta},
		})
		if err != nil {
			return nil, fmt.Errorf("envelope: marshal xml envelope: %w", err)
		}

		return out, nil
	},

	unmarshal: func(raw []byte) (wireEvent, error) {
		var evt xmlEvent

		if err := xml.Unmarshal(raw, &evt); err != nil {
			return wireEvent{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
		}

		return wireEvent{
			ID:   evt.EventID,
			Type: evt.EventType,
			Data: evt.Data.Inner,
			Meta: evt.MetaData.Inner,
		}, nil
	},

	wrap: func(b *Base64) ([]byte, error) {
		return xml.Marshal(xmlBase64{Encoded: b.Encoded})
	},

	unwrap: func(raw []byte) (*Base64, error) {
		var w xmlBase64

		if err := xml.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("%w: expected a Base64 wrapper: %v", ErrInvalidEnvelope, err)
		}

		return &Base64{Encoded: w.Encoded}, nil
	},
}

type xmlMeta struct {
	XMLName         xml.Name `xml:"esc-meta"`
	DataType        string   `xml:"data-type"`
	DataContentType string   `xml:"data-content-type"`
	Tenant          string   `xml:"tenant,omitempty"`
	MetaType        string   `xml:"meta-type,omitempty"`
	MetaContentType string   `xml:"meta-content-type,omitempty"`
	Meta            *xmlAny  `xml:",any"`
}

// xmlAny is an element named after the metadata type holding the payload
type xmlAny struct {
	XMLName xml.Name
	Inner   []byte `xml:",innerxml"`
}

// xmlMetaCodec renders the metadata record as an <esc-meta> element
type xmlMetaCodec struct{}

func (xmlMetaCodec) MimeType() mimetype.MimeType { return mimetype.ApplicationXML }

func (xmlMetaCodec) Marshal(v any, t codec.TypeName) ([]byte, error) {
	m, err := metaRecord(v, t)
	if err != nil {
		return nil, err
	}

	xm := xmlMeta{
		DataType:        string(m.DataType),
		DataContentType: m.DataContentType.String(),
		Tenant:          m.Tenant,
	}

	if m.HasMeta() {
		if err := checkXMLMetaName(m.MetaType); err != nil {
			return nil, err
		}

		xm.MetaType = string(m.MetaType)
		xm.MetaContentType = m.MetaContentType.String()
		xm.Meta = &xmlAny{
			XMLName: xml.Name{Local: string(m.MetaType)},
			Inner:   m.Meta,
		}
	}

	out, err := xml.Marshal(xm)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal xml metadata: %w", err)
	}

	return out, nil
}

func (xmlMetaCodec) Unmarshal(data []byte, t codec.TypeName, _ mimetype.MimeType) (any, error) {
	if t != MetaTypeName {
		return nil, fmt.Errorf("%w: %q", codec.ErrTypeNotOwned, t)
	}

	var xm xmlMeta

	if err := xml.Unmarshal(data, &xm); err != nil {
		return nil, fmt.Errorf("%w: MetaData: %v", ErrInvalidEnvelope, err)
	}

	m, err := newMeta(xm.DataType, xm.DataContentType, xm.Tenant, xm.MetaType, xm.MetaContentType)
	if err != nil {
		return nil, err
	}

	if xm.Meta != nil && xm.MetaType != "" && xm.Meta.XMLName.Local == xm.MetaType {
		m.Meta = xm.Meta.Inner

		if m.Meta == nil {
			m.Meta = []byte{}
		}
	}

	return m, nil
}
