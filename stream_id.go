package streamstore

import (
	"fmt"
	"strings"
)

// AllStreams is the read only pseudo stream aggregating every event ever
// appended to any stream, in append order
var AllStreams = NewProjectionID(allStreamsName)

const allStreamsName = "$all"

// Param is a single stream id parameter
type Param struct {
	Key   string
	Value string
}

// StreamID identifies a stream by name and an ordered parameter list.
// Projection streams are read only from the writer's perspective.
type StreamID struct {
	name       string
	params     []Param
	projection bool
}

// NewStreamID constructs a writable stream id
func NewStreamID(name string, params ...Param) StreamID {
	return StreamID{
		name:   name,
		params: copyParams(params),
	}
}

// NewProjectionID constructs a read only (projection) stream id
func NewProjectionID(name string, params ...Param) StreamID {
	return StreamID{
		name:       name,
		params:     copyParams(params),
		projection: true,
	}
}

// Name returns the stream name
func (id StreamID) Name() string { return id.name }

// Params returns a copy of the stream parameters
func (id StreamID) Params() []Param { return copyParams(id.params) }

// IsProjection reports whether the stream is a (read only) projection.
// The $all name is reserved, so a writable id named $all is read only too.
func (id StreamID) IsProjection() bool { return id.projection || id.name == allStreamsName }

// IsAll reports whether id is the $all pseudo stream
func (id StreamID) IsAll() bool { return id.Equal(AllStreams) }

// IsZero reports whether the stream id is empty
func (id StreamID) IsZero() bool { return id.name == "" }

// Equal compares name, parameters and the projection flag
func (id StreamID) Equal(other StreamID) bool {
	if id.name != other.name || id.projection != other.projection || len(id.params) != len(other.params) {
		return false
	}

	for i := range id.params {
		if id.params[i] != other.params[i] {
			return false
		}
	}

	return true
}

// String renders the id as "name" or "name(k=v,k2=v2)". It doubles as the
// storage key of writable streams, so '%' ',' '=' '(' and ')' are
// percent escaped in names, keys and values.
func (id StreamID) String() string {
	if len(id.params) == 0 {
		return escaper.Replace(id.name)
	}

	var sb strings.Builder

	sb.WriteString(escaper.Replace(id.name))
	sb.WriteString("(")

	for i, p := range id.params {
		if i > 0 {
			sb.WriteString(",")
		}

		sb.WriteString(escaper.Replace(p.Key))
		sb.WriteString("=")
		sb.WriteString(escaper.Replace(p.Value))
	}

	sb.WriteString(")")

	return sb.String()
}

var (
	escaper = strings.NewReplacer(
		"%", "%25",
		",", "%2C",
		"=", "%3D",
		"(", "%28",
		")", "%29",
	)

	unescaper = strings.NewReplacer(
		"%25", "%",
		"%2C", ",",
		"%3D", "=",
		"%28", "(",
		"%29", ")",
	)
)

// ParseStreamID parses the String form of a writable stream id
func ParseStreamID(s string) (StreamID, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		if s == "" || strings.ContainsAny(s, ")=,") {
			return StreamID{}, fmt.Errorf("invalid stream id %q", s)
		}

		return NewStreamID(unescaper.Replace(s)), nil
	}

	if open == 0 || !strings.HasSuffix(s, ")") {
		return StreamID{}, fmt.Errorf("invalid stream id %q", s)
	}

	var params []Param

	for _, kv := range strings.Split(s[open+1:len(s)-1], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" || strings.ContainsAny(v, "()=") {
			return StreamID{}, fmt.Errorf("invalid stream id %q", s)
		}

		params = append(params, Param{Key: unescaper.Replace(k), Value: unescaper.Replace(v)})
	}

	return NewStreamID(unescaper.Replace(s[:open]), params...), nil
}

func copyParams(params []Param) []Param {
	if len(params) == 0 {
		return nil
	}

	out := make([]Param, len(params))
	copy(out, params)

	return out
}
