package searcher

import (
	"reflect"

	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/query"
)

type inputKind uint8

const (
	inputAbsent inputKind = iota
	inputQuery
	inputText
)

// Input is what a caller hands to a searcher: nothing, an already built
// query, or free text. The zero value is the absent input.
type Input struct {
	kind inputKind
	q    query.Query
	text string
}

// NoQuery is the absent input; it matches nothing.
func NoQuery() Input { return Input{} }

// QueryInput wraps an already built query. The query is used as is, not
// copied. A nil query is the absent input.
func QueryInput(q query.Query) Input {
	if isNil(q) {
		return Input{}
	}
	return Input{kind: inputQuery, q: q}
}

// TextInput wraps free text to be parsed against the searcher's schema.
func TextInput(text string) Input {
	return Input{kind: inputText, text: text}
}

// InputOf converts an untyped value, such as a decoded JSON field, into an
// Input. nil is absent, a query.Query is used as is, and string, *string and
// []byte are text. Any other type fails with ErrInvalidArgument.
func InputOf(v any) (Input, error) {
	switch val := v.(type) {
	case nil:
		return NoQuery(), nil
	case Input:
		return val, nil
	case query.Query:
		return QueryInput(val), nil
	case string:
		return TextInput(val), nil
	case *string:
		if val == nil {
			return NoQuery(), nil
		}
		return TextInput(*val), nil
	case []byte:
		return TextInput(string(val)), nil
	}
	return Input{}, errors.InvalidTypeError("query", v)
}

// IsAbsent reports whether the input carries no query.
func (in Input) IsAbsent() bool { return in.kind == inputAbsent }

// Text returns the free text and whether the input is textual.
func (in Input) Text() (string, bool) { return in.text, in.kind == inputText }

// Query returns the explicit query and whether the input is one.
func (in Input) Query() (query.Query, bool) { return in.q, in.kind == inputQuery }

func (in Input) String() string {
	switch in.kind {
	case inputQuery:
		return in.q.String()
	case inputText:
		return in.text
	}
	return "<none>"
}

func isNil(q query.Query) bool {
	if q == nil {
		return true
	}
	v := reflect.ValueOf(q)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
