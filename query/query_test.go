package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	tests := []struct {
		q    Query
		want string
	}{
		{NewNoMatchQuery(), "[NOMATCH]"},
		{NewMatchAllQuery(), "[MATCHALL]"},
		{NewTermQuery("", "matrix"), "matrix"},
		{NewTermQuery("title", "matrix"), "title:matrix"},
		{NewPhraseQuery("title", []string{"the", "matrix"}), `title:"the matrix"`},
		{NewPrefixQuery("", "mat"), "mat*"},
		{NewFuzzyQuery("title", "matrx", 1), "title:matrx~1"},
		{NewRangeQuery("year", 1999.0, nil, true, false), "year:[1999 TO *}"},
		{NewRangeQuery("released", nil, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), false, true), "released:{* TO 2000-01-01T00:00:00Z]"},
		{NewANDQuery(NewTermQuery("", "a"), NewTermQuery("", "b")), "(a AND b)"},
		{NewORQuery(NewTermQuery("", "a"), NewNOTQuery(NewTermQuery("", "b"))), "(a OR NOT b)"},
		{NewRequiredOptionalQuery(NewTermQuery("", "a"), NewTermQuery("", "b")), "(+a b)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.String())
		})
	}
}

func TestStringRoundTripsThroughParser(t *testing.T) {
	p := mustParser(t)
	for _, text := range []string{
		"title:matrix",
		`(title:"the matrix" OR plot:neo*)`,
		"((a AND b) OR NOT c)",
		"year:[1990 TO 2000}",
		"(+matrix reloaded)",
	} {
		first, err := p.Parse(text)
		assert.NoError(t, err)
		second, err := p.Parse(first.String())
		assert.NoError(t, err)
		assert.True(t, Equal(first, second), "%s reparsed as %s", first, second)
	}
}

func TestWalk(t *testing.T) {
	q := NewANDQuery(
		NewRequiredOptionalQuery(NewTermQuery("", "a"), NewTermQuery("", "b")),
		NewNOTQuery(NewORQuery(NewTermQuery("", "c"), NewPhraseQuery("", []string{"d", "e"}))),
	)

	var terms []string
	Walk(q, func(n Query) bool {
		if tq, ok := n.(*TermQuery); ok {
			terms = append(terms, tq.Term)
		}
		return true
	})
	assert.Equal(t, []string{"a", "b", "c"}, terms)

	visited := 0
	Walk(q, func(n Query) bool {
		visited++
		_, isNot := n.(*NOTQuery)
		return !isNot
	})
	assert.Equal(t, 5, visited, "children of NOT are skipped")
}

func TestPhraseQueryCopiesTerms(t *testing.T) {
	terms := []string{"the", "matrix"}
	q := NewPhraseQuery("", terms)
	terms[0] = "a"
	assert.Equal(t, []string{"the", "matrix"}, q.Terms)
}
