// Package mimetype provides an immutable mime type value that keeps its
// parameters in order and knows how to compare encodings while ignoring
// version and extra parameters
package mimetype

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ParamCharset is the charset parameter name
	ParamCharset = "charset"

	// ParamVersion is the version parameter name
	ParamVersion = "version"

	// ParamTransferEncoding marks a payload that was wrapped in a different
	// encoding (eg. base64) than the one its base type suggests
	ParamTransferEncoding = "transfer-encoding"

	// Base64 is the only supported transfer encoding value
	Base64 = "base64"

	// UTF8 is the canonical (lower case) utf-8 charset name
	UTF8 = "utf-8"
)

var (
	// ApplicationJSON is application/json with utf-8 charset
	ApplicationJSON = New("application", "json", WithCharset(UTF8))

	// ApplicationXML is application/xml with utf-8 charset
	ApplicationXML = New("application", "xml", WithCharset(UTF8))

	// ApplicationProtobuf is application/x-protobuf (binary, no charset)
	ApplicationProtobuf = New("application", "x-protobuf")

	// ApplicationOctetStream is application/octet-stream (binary, no charset)
	ApplicationOctetStream = New("application", "octet-stream")
)

// ErrInvalidMimeType is returned when a mime type string cannot be parsed
var ErrInvalidMimeType = errors.New("invalid mime type")

// Param is a single mime type parameter
type Param struct {
	Name  string
	Value string
}

// MimeType describes a base type, charset, optional version and an ordered
// list of any other parameters. The zero value is an empty (invalid) mime type.
type MimeType struct {
	typ     string
	subtype string
	charset string
	version string
	params  []Param
}

// Option configures a MimeType created with New
type Option func(MimeType) MimeType

// WithCharset sets the charset
func WithCharset(charset string) Option {
	return func(m MimeType) MimeType {
		m.charset = strings.ToLower(charset)

		return m
	}
}

// WithVersion sets the version parameter
func WithVersion(version string) Option {
	return func(m MimeType) MimeType {
		m.version = version

		return m
	}
}

// WithParams appends arbitrary parameters
func WithParams(params ...Param) Option {
	return func(m MimeType) MimeType {
		for _, p := range params {
			m = m.WithParam(p.Name, p.Value)
		}

		return m
	}
}

// New constructs a mime type from its type and subtype
func New(typ, subtype string, opts ...Option) MimeType {
	m := MimeType{
		typ:     strings.ToLower(typ),
		subtype: strings.ToLower(subtype),
	}

	for _, opt := range opts {
		m = opt(m)
	}

	return m
}

// Parse parses strings like "application/json; charset=utf-8; version=1"
func Parse(s string) (MimeType, error) {
	parts := splitParams(s)

	base := strings.TrimSpace(parts[0])

	typ, subtype, ok := strings.Cut(base, "/")
	if !ok || typ == "" || subtype == "" || strings.ContainsAny(base, " \t") {
		return MimeType{}, fmt.Errorf("%w: %q", ErrInvalidMimeType, s)
	}

	m := New(typ, subtype)

	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return MimeType{}, fmt.Errorf("%w: parameter %q in %q", ErrInvalidMimeType, part, s)
		}

		name = strings.ToLower(strings.TrimSpace(name))
		value = unquote(strings.TrimSpace(value))

		if name == "" {
			return MimeType{}, fmt.Errorf("%w: empty parameter name in %q", ErrInvalidMimeType, s)
		}

		m = m.WithParam(name, value)
	}

	return m, nil
}

// splitParams splits s on ';' outside of quoted strings
func splitParams(s string) []string {
	var (
		parts   []string
		start   int
		quoted  bool
		escaped bool
	)

	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case escaped:
			escaped = false
		case quoted && c == '\\':
			escaped = true
		case c == '"':
			quoted = !quoted
		case c == ';' && !quoted:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}

	return append(parts, s[start:])
}

func unquote(v string) string {
	if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
		return strings.Trim(v, `"`)
	}

	var sb strings.Builder

	inner := v[1 : len(v)-1]

	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
		}

		sb.WriteByte(inner[i])
	}

	return sb.String()
}

// tspecials need quoting in parameter values
const tspecials = " \t()<>@,;:\\\"/[]?="

func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, tspecials) {
		return v
	}

	var sb strings.Builder

	sb.WriteByte('"')

	for i := 0; i < len(v); i++ {
		if v[i] == '"' || v[i] == '\\' {
			sb.WriteByte('\\')
		}

		sb.WriteByte(v[i])
	}

	sb.WriteByte('"')

	return sb.String()
}

// MustParse is like Parse but panics on error
func MustParse(s string) MimeType {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return m
}

// Type returns the primary type (eg. application)
func (m MimeType) Type() string { return m.typ }

// Subtype returns the sub type (eg. json)
func (m MimeType) Subtype() string { return m.subtype }

// BaseType returns type/subtype
func (m MimeType) BaseType() string {
	if m.IsZero() {
		return ""
	}

	return m.typ + "/" + m.subtype
}

// Charset returns the lower cased charset or an empty string
func (m MimeType) Charset() string { return m.charset }

// Version returns the version parameter or an empty string
func (m MimeType) Version() string { return m.version }

// IsZero reports whether m is the zero mime type
func (m MimeType) IsZero() bool { return m.typ == "" && m.subtype == "" }

// Params returns a copy of the extra parameters (charset and version excluded) in order
func (m MimeType) Params() []Param {
	if len(m.params) == 0 {
		return nil
	}

	out := make([]Param, len(m.params))
	copy(out, m.params)

	return out
}

// Param returns the value of the named parameter. charset and version
// are served from their dedicated fields.
func (m MimeType) Param(name string) (string, bool) {
	name = strings.ToLower(name)

	switch name {
	case ParamCharset:
		return m.charset, m.charset != ""
	case ParamVersion:
		return m.version, m.version != ""
	}

	for _, p := range m.params {
		if p.Name == name {
			return p.Value, true
		}
	}

	return "", false
}

// WithParam returns a copy of m with the parameter set, replacing an
// existing value in place (order is kept)
func (m MimeType) WithParam(name, value string) MimeType {
	name = strings.ToLower(name)

	switch name {
	case ParamCharset:
		m.charset = strings.ToLower(value)

		return m
	case ParamVersion:
		m.version = value

		return m
	}

	params := make([]Param, 0, len(m.params)+1)
	replaced := false

	for _, p := range m.params {
		if p.Name == name {
			p.Value = value
			replaced = true
		}

		params = append(params, p)
	}

	if !replaced {
		params = append(params, Param{Name: name, Value: value})
	}

	m.params = params

	return m
}

// WithoutParam returns a copy of m without the named parameter
func (m MimeType) WithoutParam(name string) MimeType {
	name = strings.ToLower(name)

	switch name {
	case ParamCharset:
		m.charset = ""

		return m
	case ParamVersion:
		m.version = ""

		return m
	}

	var params []Param

	for _, p := range m.params {
		if p.Name != name {
			params = append(params, p)
		}
	}

	m.params = params

	return m
}

// MatchEncoding reports whether m and other share type, subtype and charset.
// Version and any extra parameters are ignored.
func (m MimeType) MatchEncoding(other MimeType) bool {
	return m.typ == other.typ &&
		m.subtype == other.subtype &&
		m.charset == other.charset
}

// Equal reports full structural equality including parameter order
func (m MimeType) Equal(other MimeType) bool {
	if !m.MatchEncoding(other) || m.version != other.version || len(m.params) != len(other.params) {
		return false
	}

	for i := range m.params {
		if m.params[i] != other.params[i] {
			return false
		}
	}

	return true
}

// IsBase64 reports whether the transfer-encoding parameter is base64
func (m MimeType) IsBase64() bool {
	v, ok := m.Param(ParamTransferEncoding)

	return ok && strings.EqualFold(v, Base64)
}

// WithBase64 marks the mime type as base64 transfer encoded
func (m MimeType) WithBase64() MimeType {
	return m.WithParam(ParamTransferEncoding, Base64)
}

// WithoutTransferEncoding strips the transfer-encoding marker revealing
// the underlying mime type
func (m MimeType) WithoutTransferEncoding() MimeType {
	return m.WithoutParam(ParamTransferEncoding)
}

// String renders the mime type as "type/subtype; charset=..; version=..; k=v".
// Values which are empty or hold separators are quoted.
func (m MimeType) String() string {
	if m.IsZero() {
		return ""
	}

	var sb strings.Builder

	sb.WriteString(m.BaseType())

	if m.charset != "" {
		sb.WriteString("; charset=")
		sb.WriteString(quote(m.charset))
	}

	if m.version != "" {
		sb.WriteString("; version=")
		sb.WriteString(quote(m.version))
	}

	for _, p := range m.params {
		sb.WriteString("; ")
		sb.WriteString(p.Name)
		sb.WriteString("=")
		sb.WriteString(quote(p.Value))
	}

	return sb.String()
}
