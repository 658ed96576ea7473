package mimetype_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aneshas/streamstore/mimetype"
)

func TestShould_Parse_Mime_Type_With_Params(t *testing.T) {
	m, err := mimetype.Parse(`Application/JSON; charset=UTF-8; version=2; foo="bar"; transfer-encoding=base64`)

	require.NoError(t, err)

	assert.Equal(t, "application", m.Type())
	assert.Equal(t, "json", m.Subtype())
	assert.Equal(t, "utf-8", m.Charset())
	assert.Equal(t, "2", m.Version())
	assert.Equal(t, []mimetype.Param{
		{Name: "foo", Value: "bar"},
		{Name: "transfer-encoding", Value: "base64"},
	}, m.Params())
	assert.True(t, m.IsBase64())
	assert.Equal(t, "application/json; charset=utf-8; version=2; foo=bar; transfer-encoding=base64", m.String())
}

func TestShould_Reject_Malformed_Mime_Types(t *testing.T) {
	cases := []string{
		"",
		"application",
		"application/",
		"/json",
		"application/json; charset",
		"application/json; =x",
		"appli cation/json",
	}

	for _, tc := range cases {
		t.Run(tc, func(t *testing.T) {
			_, err := mimetype.Parse(tc)

			assert.ErrorIs(t, err, mimetype.ErrInvalidMimeType)
		})
	}
}

func TestMatchEncoding_Ignores_Version_And_Extra_Params(t *testing.T) {
	a := mimetype.MustParse("application/json; charset=utf-8; version=1")
	b := mimetype.MustParse("application/json; charset=UTF-8; version=7; x=y")

	assert.True(t, a.MatchEncoding(b))
	assert.False(t, a.Equal(b))

	assert.False(t, a.MatchEncoding(mimetype.ApplicationXML))
	assert.False(t, a.MatchEncoding(mimetype.MustParse("application/json; charset=iso-8859-1")))
	assert.False(t, a.MatchEncoding(mimetype.MustParse("application/json")))
}

func TestBase64_Marker_Round_Trips(t *testing.T) {
	base := mimetype.ApplicationXML.WithParam(mimetype.ParamVersion, "3")

	wrapped := base.WithBase64()

	assert.True(t, wrapped.IsBase64())
	assert.False(t, base.IsBase64())
	assert.True(t, wrapped.MatchEncoding(base))
	assert.True(t, wrapped.WithoutTransferEncoding().Equal(base))

	parsed := mimetype.MustParse(wrapped.String())

	assert.True(t, parsed.Equal(wrapped))
}

func TestWithParam_Replaces_In_Place(t *testing.T) {
	m := mimetype.MustParse("text/plain; a=1; b=2").WithParam("a", "3")

	assert.Equal(t, "text/plain; a=3; b=2", m.String())
	assert.Equal(t, "text/plain; b=2", m.WithoutParam("a").String())
}

func TestWell_Known_Types(t *testing.T) {
	assert.Equal(t, "application/json; charset=utf-8", mimetype.ApplicationJSON.String())
	assert.Equal(t, "application/xml; charset=utf-8", mimetype.ApplicationXML.String())
	assert.Equal(t, "application/x-protobuf", mimetype.ApplicationProtobuf.String())
	assert.True(t, mimetype.MimeType{}.IsZero())
	assert.Equal(t, "", mimetype.MimeType{}.String())
}

func TestString_Should_Quote_Values_With_Separators(t *testing.T) {
	m := mimetype.New("text", "plain").
		WithParam("title", "a; b").
		WithParam("note", `say "hi" \o/`).
		WithParam("plain", "x")

	assert.Equal(t, `text/plain; title="a; b"; note="say \"hi\" \\o/"; plain=x`, m.String())

	parsed, err := mimetype.Parse(m.String())
	require.NoError(t, err)

	assert.True(t, parsed.Equal(m))
	assert.Equal(t, m.Params(), parsed.Params())
}
