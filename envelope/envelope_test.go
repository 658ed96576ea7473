package envelope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/aneshas/streamstore"
	"github.com/aneshas/streamstore/codec"
	"github.com/aneshas/streamstore/envelope"
	"github.com/aneshas/streamstore/mimetype"
)

type OrderPlaced struct {
	OrderID string `json:"order_id" xml:"order-id"`
	Amount  int    `json:"amount" xml:"amount"`
}

type Audit struct {
	User string `json:"user" xml:"user"`
}

func registry() *codec.Registry {
	return codec.NewRegistry().
		Add(codec.NewJSON().Register("OrderPlaced", OrderPlaced{}).Register("JSONAudit", Audit{})).
		Add(codec.NewXML().Register("ShipmentSent", OrderPlaced{}).Register("Audit", Audit{})).
		Add(codec.NewProtobuf().Register("Note", &wrapperspb.StringValue{}))
}

func newCodec(t *testing.T, target mimetype.MimeType) *envelope.Codec {
	t.Helper()

	c, err := envelope.New(target, registry())
	require.NoError(t, err)

	return c
}

func targets() map[string]mimetype.MimeType {
	return map[string]mimetype.MimeType{
		"json": mimetype.ApplicationJSON,
		"xml":  mimetype.ApplicationXML,
	}
}

func TestNew_Should_Reject_Unsupported_Targets(t *testing.T) {
	for _, target := range []mimetype.MimeType{
		mimetype.ApplicationProtobuf,
		mimetype.New("application", "json", mimetype.WithCharset("utf-16")),
		mimetype.New("application", "json"),
		mimetype.MustParse("text/plain; charset=utf-8"),
	} {
		_, err := envelope.New(target, registry())

		assert.ErrorIs(t, err, envelope.ErrUnsupportedTargetType, target.String())
	}

	_, err := envelope.New(mimetype.ApplicationJSON.WithParam(mimetype.ParamVersion, "2"), registry())
	assert.NoError(t, err, "version is not part of the encoding")
}

func TestEnvelope_Should_Round_Trip_In_Both_Formats(t *testing.T) {
	events := map[string]streamstore.CommonEvent{
		"json data": streamstore.NewCommonEvent("OrderPlaced", OrderPlaced{OrderID: "o-1", Amount: 10}),
		"xml data":  streamstore.NewCommonEvent("ShipmentSent", OrderPlaced{OrderID: "o-2", Amount: 3}),
		"json data with xml meta": streamstore.
			NewCommonEvent("OrderPlaced", OrderPlaced{OrderID: "o-3", Amount: 1}).
			WithMeta("Audit", Audit{User: "jane"}),
		"xml data with json meta": streamstore.
			NewCommonEvent("ShipmentSent", OrderPlaced{OrderID: "o-4", Amount: 7}).
			WithMeta("JSONAudit", Audit{User: "joe"}),
	}

	for format, target := range targets() {
		c := newCodec(t, target)

		for name, evt := range events {
			t.Run(format+"/"+name, func(t *testing.T) {
				env, err := c.Encode(evt)
				require.NoError(t, err)

				assert.Equal(t, evt.ID, env.ID)
				assert.True(t, env.ContentType.MatchEncoding(target))

				got, err := c.Decode(env.Bytes)
				require.NoError(t, err)

				assert.Equal(t, evt, got)
			})
		}
	}
}

func TestEnvelope_Should_Base64_Wrap_Mismatched_Payloads(t *testing.T) {
	c := newCodec(t, mimetype.ApplicationJSON)

	note := &wrapperspb.StringValue{Value: "hello"}
	evt := streamstore.NewCommonEvent("Note", note)

	env, err := c.Encode(evt)
	require.NoError(t, err)

	assert.True(t, env.Meta.DataContentType.IsBase64())
	assert.True(t, env.Meta.DataContentType.WithoutTransferEncoding().MatchEncoding(mimetype.ApplicationProtobuf))
	assert.Contains(t, string(env.Bytes), `"Data":{"Base64":"`)

	raw, err := proto.Marshal(note)
	require.NoError(t, err)

	b64 := envelope.NewBase64(raw)

	assert.Contains(t, string(env.Bytes), b64.Encoded)

	decoded, err := b64.Bytes()
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)

	got, err := c.Decode(env.Bytes)
	require.NoError(t, err)

	assert.Equal(t, evt.ID, got.ID)
	assert.Equal(t, evt.DataType, got.DataType)
	assert.True(t, proto.Equal(note, got.Data.(proto.Message)))
}

func TestEnvelope_Should_Encode_Data_And_Meta_Independently(t *testing.T) {
	c := newCodec(t, mimetype.ApplicationJSON)

	evt := streamstore.
		NewCommonEvent("OrderPlaced", OrderPlaced{OrderID: "o-1", Amount: 10}).
		WithMeta("Audit", Audit{User: "jane"})

	env, err := c.Encode(evt, envelope.WithTenant("acme"))
	require.NoError(t, err)

	assert.False(t, env.Meta.DataContentType.IsBase64())
	assert.True(t, env.Meta.MetaContentType.IsBase64())
	assert.Equal(t, "acme", env.Meta.Tenant)

	meta, err := c.DecodeMeta(env.Bytes)
	require.NoError(t, err)

	assert.Equal(t, codec.TypeName("OrderPlaced"), meta.DataType)
	assert.True(t, meta.DataContentType.Equal(mimetype.ApplicationJSON))
	assert.Equal(t, codec.TypeName("Audit"), meta.MetaType)
	assert.Equal(t, "application/xml; charset=utf-8; transfer-encoding=base64", meta.MetaContentType.String())
	assert.Equal(t, "acme", meta.Tenant)
}

func TestJSON_Envelope_Wire_Format(t *testing.T) {
	c := newCodec(t, mimetype.ApplicationJSON)

	evt := streamstore.CommonEvent{
		ID:       "e-1",
		DataType: "OrderPlaced",
		Data:     OrderPlaced{OrderID: "o-1", Amount: 10},
		MetaType: "JSONAudit",
		Meta:     Audit{User: "jane"},
	}

	env, err := c.Encode(evt, envelope.WithTenant("acme"))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"EventId": "e-1",
		"EventType": "OrderPlaced",
		"Data": {"order_id": "o-1", "amount": 10},
		"MetaData": {
			"data-type": "OrderPlaced",
			"data-content-type": "application/json; charset=utf-8",
			"tenant": "acme",
			"meta-type": "JSONAudit",
			"meta-content-type": "application/json; charset=utf-8",
			"JSONAudit": {"user": "jane"}
		}
	}`, string(env.Bytes))
}

func TestXML_Envelope_Wire_Format(t *testing.T) {
	c := newCodec(t, mimetype.ApplicationXML)

	evt := streamstore.CommonEvent{
		ID:       "e-1",
		DataType: "ShipmentSent",
		Data:     OrderPlaced{OrderID: "o-1", Amount: 10},
		MetaType: "Audit",
		Meta:     Audit{User: "jane"},
	}

	env, err := c.Encode(evt)
	require.NoError(t, err)

	assert.Equal(t,
		`<Event>`+
			`<EventId>e-1</EventId>`+
			`<EventType>ShipmentSent</EventType>`+
			`<Data><OrderPlaced><order-id>o-1</order-id><amount>10</amount></OrderPlaced></Data>`+
			`<MetaData><esc-meta>`+
			`<data-type>ShipmentSent</data-type>`+
			`<data-content-type>application/xml; charset=utf-8</data-content-type>`+
			`<meta-type>Audit</meta-type>`+
			`<meta-content-type>application/xml; charset=utf-8</meta-content-type>`+
			`<Audit><Audit><user>jane</user></Audit></Audit>`+
			`</esc-meta></MetaData>`+
			`</Event>`,
		string(env.Bytes),
	)
}

func TestXML_Envelope_Should_Base64_Wrap_JSON_Payloads(t *testing.T) {
	c := newCodec(t, mimetype.ApplicationXML)

	evt := streamstore.NewCommonEvent("OrderPlaced", OrderPlaced{OrderID: "o-1", Amount: 10})

	env, err := c.Encode(evt)
	require.NoError(t, err)

	assert.Contains(t, string(env.Bytes), `<Data><Base64>`)
	assert.True(t, env.Meta.DataContentType.IsBase64())

	got, err := c.Decode(env.Bytes)
	require.NoError(t, err)
	assert.Equal(t, evt, got)
}

func TestDecode_Should_Accept_Either_Format(t *testing.T) {
	jsonCodec := newCodec(t, mimetype.ApplicationJSON)
	xmlCodec := newCodec(t, mimetype.ApplicationXML)

	evt := streamstore.NewCommonEvent("OrderPlaced", OrderPlaced{OrderID: "o-1", Amount: 10})

	env, err := xmlCodec.Encode(evt)
	require.NoError(t, err)

	got, err := jsonCodec.Decode(env.Bytes)
	require.NoError(t, err)
	assert.Equal(t, evt, got)
}

func TestEncode_Should_Fail_Without_Codec(t *testing.T) {
	c := newCodec(t, mimetype.ApplicationJSON)

	_, err := c.Encode(streamstore.NewCommonEvent("Unknown", OrderPlaced{}))
	assert.ErrorIs(t, err, codec.ErrNoCodecFound)

	_, err = c.Encode(streamstore.NewCommonEvent("OrderPlaced", OrderPlaced{}).WithMeta("Unknown", Audit{}))
	assert.ErrorIs(t, err, codec.ErrNoCodecFound)
}

func TestDecode_Should_Fail_Without_Codec_For_Mime_Type(t *testing.T) {
	c := newCodec(t, mimetype.ApplicationJSON)

	env, err := c.Encode(streamstore.NewCommonEvent("OrderPlaced", OrderPlaced{OrderID: "o-1"}))
	require.NoError(t, err)

	xmlOnly, err := envelope.New(
		mimetype.ApplicationJSON,
		codec.NewRegistry().Add(codec.NewXML().Register("OrderPlaced", OrderPlaced{})),
	)
	require.NoError(t, err)

	_, err = xmlOnly.Decode(env.Bytes)
	assert.ErrorIs(t, err, codec.ErrNoCodecFound)
}

func TestDecode_Should_Validate_Envelope_Structure(t *testing.T) {
	c := newCodec(t, mimetype.ApplicationJSON)

	cases := map[string]string{
		"empty":                  ``,
		"not an envelope":        `hello`,
		"malformed json":         `{"EventId":`,
		"missing metadata":       `{"EventId":"e-1","EventType":"OrderPlaced","Data":{}}`,
		"missing content type":   `{"EventId":"e-1","EventType":"OrderPlaced","Data":{},"MetaData":{"data-type":"OrderPlaced"}}`,
		"meta type without meta": `{"EventId":"e-1","EventType":"OrderPlaced","Data":{},"MetaData":{"data-type":"OrderPlaced","data-content-type":"application/json; charset=utf-8","meta-type":"Audit","meta-content-type":"application/xml; charset=utf-8"}}`,
		"meta without type":      `{"EventId":"e-1","EventType":"OrderPlaced","Data":{},"MetaData":{"data-type":"OrderPlaced","data-content-type":"application/json; charset=utf-8","meta-type":"Audit","Audit":{}}}`,
		"type mismatch":          `{"EventId":"e-1","EventType":"Other","Data":{},"MetaData":{"data-type":"OrderPlaced","data-content-type":"application/json; charset=utf-8"}}`,
		"missing id":             `{"EventType":"OrderPlaced","Data":{},"MetaData":{"data-type":"OrderPlaced","data-content-type":"application/json; charset=utf-8"}}`,
		"malformed xml":          `<Event><EventId>`,
		"bad base64":             `{"EventId":"e-1","EventType":"OrderPlaced","Data":{"Base64":"%%%"},"MetaData":{"data-type":"OrderPlaced","data-content-type":"application/json; charset=utf-8; transfer-encoding=base64"}}`,
		"missing base64 wrapper": `{"EventId":"e-1","EventType":"OrderPlaced","Data":{},"MetaData":{"data-type":"OrderPlaced","data-content-type":"application/json; charset=utf-8; transfer-encoding=base64"}}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decode([]byte(raw))

			assert.ErrorIs(t, err, envelope.ErrInvalidEnvelope)
		})
	}
}

func TestEncode_Should_Reject_Meta_Types_That_Can_Not_Be_Decoded(t *testing.T) {
	names := []codec.TypeName{"tenant", "data-type", "urn:audit", "audit/v1", "xmlAudit", "1audit"}

	reg := codec.NewRegistry().Add(codec.NewJSON().Register("OrderPlaced", OrderPlaced{}))

	for _, name := range names {
		reg.Add(codec.NewJSON().Register(name, Audit{}))
	}

	jsonOK := map[codec.TypeName]bool{"urn:audit": true, "audit/v1": true, "xmlAudit": true, "1audit": true}

	for format, target := range targets() {
		c, err := envelope.New(target, reg)
		require.NoError(t, err)

		for _, name := range names {
			evt := streamstore.NewCommonEvent("OrderPlaced", OrderPlaced{OrderID: "o-1"}).
				WithMeta(name, Audit{User: "jane"})

			env, err := c.Encode(evt)

			if format == "json" && jsonOK[name] {
				require.NoError(t, err, name)

				got, err := c.Decode(env.Bytes)
				require.NoError(t, err, name)
				assert.Equal(t, evt, got, name)

				continue
			}

			assert.ErrorIs(t, err, envelope.ErrInvalidEnvelope, "%s %s", format, name)
		}
	}
}

func TestMeta_Validate(t *testing.T) {
	m := envelope.Meta{
		DataType:        "OrderPlaced",
		DataContentType: mimetype.ApplicationJSON,
	}

	assert.NoError(t, m.Validate())

	m.MetaType = "Audit"
	assert.ErrorIs(t, m.Validate(), envelope.ErrInvalidEnvelope)

	m.MetaContentType = mimetype.ApplicationJSON
	m.Meta = []byte(`{}`)
	assert.NoError(t, m.Validate())

	m.DataContentType = mimetype.MimeType{}
	assert.ErrorIs(t, m.Validate(), envelope.ErrInvalidEnvelope)
}
