package blevesearch

import (
	"strconv"
	"time"

	"github.com/blevesearch/bleve/v2"
	bq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/model"
	"github.com/gcbaptista/go-searcher/query"
	"github.com/gcbaptista/go-searcher/schema"
)

// translate converts a query tree to the equivalent bleve query. Field-less
// leaves expand to a disjunction over the searchable fields.
func translate(sch *schema.Schema, q query.Query) (bq.Query, error) {
	switch q := q.(type) {
	case nil:
		return nil, errors.NewInvalidArgumentError("query", "query is nil")
	case *query.NoMatchQuery:
		return bleve.NewMatchNoneQuery(), nil
	case *query.MatchAllQuery:
		return bleve.NewMatchAllQuery(), nil
	case *query.TermQuery:
		return perField(sch, q.Field, func(f schema.Field) bq.Query { return termQuery(f, q.Term) }), nil
	case *query.FuzzyQuery:
		return perField(sch, q.Field, func(f schema.Field) bq.Query {
			if q.MaxEdits == 0 || f.Type != config.FieldTypeText {
				return termQuery(f, q.Term)
			}
			fq := bleve.NewFuzzyQuery(q.Term)
			fq.SetFuzziness(q.MaxEdits)
			fq.SetField(f.Name)
			return fq
		}), nil
	case *query.PhraseQuery:
		return perField(sch, q.Field, func(f schema.Field) bq.Query {
			if f.Type != config.FieldTypeText {
				return bleve.NewMatchNoneQuery()
			}
			return bleve.NewPhraseQuery(q.Terms, f.Name)
		}), nil
	case *query.PrefixQuery:
		return perField(sch, q.Field, func(f schema.Field) bq.Query {
			if f.Type == config.FieldTypeNumeric || f.Type == config.FieldTypeDatetime {
				return bleve.NewMatchNoneQuery()
			}
			pq := bleve.NewPrefixQuery(q.Prefix)
			pq.SetField(f.Name)
			return pq
		}), nil
	case *query.RangeQuery:
		return rangeQuery(sch, q), nil
	case *query.ANDQuery:
		if len(q.Children) == 0 {
			return bleve.NewMatchNoneQuery(), nil
		}
		children, err := translateAll(sch, q.Children)
		if err != nil {
			return nil, err
		}
		return bleve.NewConjunctionQuery(children...), nil
	case *query.ORQuery:
		if len(q.Children) == 0 {
			return bleve.NewMatchNoneQuery(), nil
		}
		children, err := translateAll(sch, q.Children)
		if err != nil {
			return nil, err
		}
		return bleve.NewDisjunctionQuery(children...), nil
	case *query.NOTQuery:
		negated, err := translate(sch, q.Negated)
		if err != nil {
			return nil, err
		}
		b := bleve.NewBooleanQuery()
		b.AddMust(bleve.NewMatchAllQuery())
		b.AddMustNot(negated)
		return b, nil
	case *query.RequiredOptionalQuery:
		required, err := translate(sch, q.Required)
		if err != nil {
			return nil, err
		}
		optional, err := translate(sch, q.Optional)
		if err != nil {
			return nil, err
		}
		b := bleve.NewBooleanQuery()
		b.AddMust(required)
		b.AddShould(optional)
		return b, nil
	}
	return nil, errors.NewUnsupportedQueryError(string(config.BackendBleve), q.String())
}

func translateAll(sch *schema.Schema, qs []query.Query) ([]bq.Query, error) {
	out := make([]bq.Query, len(qs))
	for i, q := range qs {
		t, err := translate(sch, q)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// perField builds leaf for the named field, or a disjunction of leaf over
// every searchable field when name is empty.
func perField(sch *schema.Schema, name string, leaf func(schema.Field) bq.Query) bq.Query {
	if name != "" {
		f, ok := sch.Field(name)
		if !ok {
			return bleve.NewMatchNoneQuery()
		}
		return leaf(f)
	}
	fields := sch.SearchableFields()
	if len(fields) == 0 {
		return bleve.NewMatchNoneQuery()
	}
	leaves := make([]bq.Query, 0, len(fields))
	for _, n := range fields {
		f, _ := sch.Field(n)
		leaves = append(leaves, leaf(f))
	}
	if len(leaves) == 1 {
		return leaves[0]
	}
	return bleve.NewDisjunctionQuery(leaves...)
}

// termQuery matches an analyzed term. Numeric fields compare the term as a
// number; datetime fields cannot hold single terms.
func termQuery(f schema.Field, term string) bq.Query {
	switch f.Type {
	case config.FieldTypeNumeric:
		n, err := strconv.ParseFloat(term, 64)
		if err != nil {
			return bleve.NewMatchNoneQuery()
		}
		incl := true
		rq := bleve.NewNumericRangeInclusiveQuery(&n, &n, &incl, &incl)
		rq.SetField(f.Name)
		return rq
	case config.FieldTypeDatetime:
		return bleve.NewMatchNoneQuery()
	}
	tq := bleve.NewTermQuery(term)
	tq.SetField(f.Name)
	return tq
}

func rangeQuery(sch *schema.Schema, q *query.RangeQuery) bq.Query {
	f, ok := sch.Field(q.Field)
	if !ok {
		return bleve.NewMatchNoneQuery()
	}
	incLower, incUpper := q.IncludeLower, q.IncludeUpper

	switch f.Type {
	case config.FieldTypeNumeric:
		var lower, upper *float64
		if q.Lower != nil {
			n, ok := model.ToFloat64(q.Lower)
			if !ok {
				return bleve.NewMatchNoneQuery()
			}
			lower = &n
		}
		if q.Upper != nil {
			n, ok := model.ToFloat64(q.Upper)
			if !ok {
				return bleve.NewMatchNoneQuery()
			}
			upper = &n
		}
		rq := bleve.NewNumericRangeInclusiveQuery(lower, upper, &incLower, &incUpper)
		rq.SetField(f.Name)
		return rq

	case config.FieldTypeDatetime:
		// The zero time leaves a bound open
		var lower, upper time.Time
		if q.Lower != nil {
			t, ok := model.ToTime(q.Lower)
			if !ok {
				return bleve.NewMatchNoneQuery()
			}
			lower = t
		}
		if q.Upper != nil {
			t, ok := model.ToTime(q.Upper)
			if !ok {
				return bleve.NewMatchNoneQuery()
			}
			upper = t
		}
		rq := bleve.NewDateRangeInclusiveQuery(lower, upper, &incLower, &incUpper)
		rq.SetField(f.Name)
		return rq
	}

	var lower, upper string
	if q.Lower != nil {
		lower, _ = q.Lower.(string)
	}
	if q.Upper != nil {
		upper, _ = q.Upper.(string)
	}
	rq := bleve.NewTermRangeInclusiveQuery(lower, upper, &incLower, &incUpper)
	rq.SetField(f.Name)
	return rq
}
