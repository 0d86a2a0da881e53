// Package query defines the canonical query tree executed by searchers and
// the parser that builds one from free text.
//
// Query values are immutable once constructed and may be shared freely
// between goroutines and searchers. An empty Field means "every searchable
// field of the schema".
package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Query is a node of the query tree.
type Query interface {
	// String renders the query in parser syntax.
	String() string
	isQuery()
}

// NoMatchQuery matches no documents.
type NoMatchQuery struct{}

// NewNoMatchQuery returns a query that matches nothing.
func NewNoMatchQuery() *NoMatchQuery { return &NoMatchQuery{} }

func (*NoMatchQuery) String() string { return "[NOMATCH]" }
func (*NoMatchQuery) isQuery()       {}

// MatchAllQuery matches every live document with a constant score.
type MatchAllQuery struct{}

// NewMatchAllQuery returns a query that matches everything.
func NewMatchAllQuery() *MatchAllQuery { return &MatchAllQuery{} }

func (*MatchAllQuery) String() string { return "[MATCHALL]" }
func (*MatchAllQuery) isQuery()       {}

// TermQuery matches documents containing an analyzed term.
type TermQuery struct {
	Field string
	Term  string
}

// NewTermQuery creates a TermQuery. field may be empty.
func NewTermQuery(field, term string) *TermQuery {
	return &TermQuery{Field: field, Term: term}
}

func (q *TermQuery) String() string { return withField(q.Field, q.Term) }
func (*TermQuery) isQuery()         {}

// PhraseQuery matches documents containing Terms at consecutive positions.
type PhraseQuery struct {
	Field string
	Terms []string
}

// NewPhraseQuery creates a PhraseQuery over a copy of terms.
func NewPhraseQuery(field string, terms []string) *PhraseQuery {
	return &PhraseQuery{Field: field, Terms: append([]string(nil), terms...)}
}

func (q *PhraseQuery) String() string {
	return withField(q.Field, strconv.Quote(strings.Join(q.Terms, " ")))
}
func (*PhraseQuery) isQuery() {}

// PrefixQuery matches documents containing a term starting with Prefix.
type PrefixQuery struct {
	Field  string
	Prefix string
}

// NewPrefixQuery creates a PrefixQuery.
func NewPrefixQuery(field, prefix string) *PrefixQuery {
	return &PrefixQuery{Field: field, Prefix: prefix}
}

func (q *PrefixQuery) String() string { return withField(q.Field, q.Prefix+"*") }
func (*PrefixQuery) isQuery()         {}

// FuzzyQuery matches terms within MaxEdits Damerau-Levenshtein edits of Term.
type FuzzyQuery struct {
	Field    string
	Term     string
	MaxEdits int
}

// NewFuzzyQuery creates a FuzzyQuery.
func NewFuzzyQuery(field, term string, maxEdits int) *FuzzyQuery {
	return &FuzzyQuery{Field: field, Term: term, MaxEdits: maxEdits}
}

func (q *FuzzyQuery) String() string {
	return withField(q.Field, q.Term+"~"+strconv.Itoa(q.MaxEdits))
}
func (*FuzzyQuery) isQuery() {}

// RangeQuery matches documents whose Field value lies between Lower and
// Upper. A nil bound is open. Bound values are float64 for numeric fields,
// time.Time for datetime fields and string otherwise.
type RangeQuery struct {
	Field        string
	Lower        any
	Upper        any
	IncludeLower bool
	IncludeUpper bool
}

// NewRangeQuery creates a RangeQuery.
func NewRangeQuery(field string, lower, upper any, includeLower, includeUpper bool) *RangeQuery {
	return &RangeQuery{Field: field, Lower: lower, Upper: upper, IncludeLower: includeLower, IncludeUpper: includeUpper}
}

func (q *RangeQuery) String() string {
	open, closing := "{", "}"
	if q.IncludeLower {
		open = "["
	}
	if q.IncludeUpper {
		closing = "]"
	}
	return fmt.Sprintf("%s:%s%s TO %s%s", q.Field, open, formatBound(q.Lower), formatBound(q.Upper), closing)
}
func (*RangeQuery) isQuery() {}

// ANDQuery matches documents matched by every child.
type ANDQuery struct {
	Children []Query
}

// NewANDQuery creates an ANDQuery.
func NewANDQuery(children ...Query) *ANDQuery { return &ANDQuery{Children: children} }

func (q *ANDQuery) String() string { return joinChildren(q.Children, " AND ") }
func (*ANDQuery) isQuery()         {}

// ORQuery matches documents matched by any child.
type ORQuery struct {
	Children []Query
}

// NewORQuery creates an ORQuery.
func NewORQuery(children ...Query) *ORQuery { return &ORQuery{Children: children} }

func (q *ORQuery) String() string { return joinChildren(q.Children, " OR ") }
func (*ORQuery) isQuery()         {}

// NOTQuery matches every live document not matched by Negated.
type NOTQuery struct {
	Negated Query
}

// NewNOTQuery creates a NOTQuery.
func NewNOTQuery(negated Query) *NOTQuery { return &NOTQuery{Negated: negated} }

func (q *NOTQuery) String() string { return "NOT " + q.Negated.String() }
func (*NOTQuery) isQuery()         {}

// RequiredOptionalQuery matches what Required matches; documents also
// matching Optional score higher.
type RequiredOptionalQuery struct {
	Required Query
	Optional Query
}

// NewRequiredOptionalQuery creates a RequiredOptionalQuery.
func NewRequiredOptionalQuery(required, optional Query) *RequiredOptionalQuery {
	return &RequiredOptionalQuery{Required: required, Optional: optional}
}

func (q *RequiredOptionalQuery) String() string {
	return "(+" + q.Required.String() + " " + q.Optional.String() + ")"
}
func (*RequiredOptionalQuery) isQuery() {}

// Walk visits q and its descendants depth first. Returning false from fn
// skips the children of the current node.
func Walk(q Query, fn func(Query) bool) {
	if q == nil || !fn(q) {
		return
	}
	switch n := q.(type) {
	case *ANDQuery:
		for _, c := range n.Children {
			Walk(c, fn)
		}
	case *ORQuery:
		for _, c := range n.Children {
			Walk(c, fn)
		}
	case *NOTQuery:
		Walk(n.Negated, fn)
	case *RequiredOptionalQuery:
		Walk(n.Required, fn)
		Walk(n.Optional, fn)
	}
}

// Equal reports whether two query trees are structurally identical.
func Equal(a, b Query) bool {
	return reflect.DeepEqual(a, b)
}

func withField(field, text string) string {
	if field == "" {
		return text
	}
	return field + ":" + text
}

func joinChildren(children []Query, sep string) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func formatBound(v any) string {
	switch b := v.(type) {
	case nil:
		return "*"
	case float64:
		return strconv.FormatFloat(b, 'f', -1, 64)
	case time.Time:
		return b.Format(time.RFC3339)
	case string:
		return b
	default:
		return fmt.Sprint(b)
	}
}
