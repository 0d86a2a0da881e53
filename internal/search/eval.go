package search

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/index"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/internal/tokenizer"
	"github.com/gcbaptista/go-searcher/internal/typoutil"
	"github.com/gcbaptista/go-searcher/model"
	"github.com/gcbaptista/go-searcher/query"
	"github.com/gcbaptista/go-searcher/schema"
	"github.com/gcbaptista/go-searcher/store"
)

// matchSet is the result of evaluating a query node: the matching documents
// and their scores. Documents absent from scores score zero.
type matchSet struct {
	docs   *roaring.Bitmap
	scores map[uint32]float64
}

func newMatchSet() matchSet {
	return matchSet{docs: roaring.New(), scores: make(map[uint32]float64)}
}

func constantSet(docs *roaring.Bitmap) matchSet {
	return matchSet{docs: docs, scores: make(map[uint32]float64)}
}

func (m matchSet) add(id uint32, score float64) {
	m.docs.Add(id)
	if score != 0 {
		m.scores[id] += score
	}
}

// keepMax records score for id unless id already has a higher one.
func (m matchSet) keepMax(id uint32, score float64) {
	if !m.docs.CheckedAdd(id) && m.scores[id] >= score {
		return
	}
	m.scores[id] = score
}

// evaluator turns a query tree into a matchSet. It reads the index and the
// store without locking; the caller holds both read locks.
type evaluator struct {
	ctx    context.Context
	schema *schema.Schema
	ii     *index.InvertedIndex
	ds     *store.DocumentStore
	bm25   *BM25Calculator
	typos  *typoutil.TypoFinder
	live   *roaring.Bitmap
}

func (ev *evaluator) eval(q query.Query) (matchSet, error) {
	if err := ev.ctx.Err(); err != nil {
		return matchSet{}, err
	}

	switch q := q.(type) {
	case *query.NoMatchQuery:
		return newMatchSet(), nil
	case *query.MatchAllQuery:
		return constantSet(ev.live.Clone()), nil
	case *query.TermQuery:
		return ev.term(q.Field, q.Term, -1), nil
	case *query.FuzzyQuery:
		return ev.term(q.Field, q.Term, q.MaxEdits), nil
	case *query.PhraseQuery:
		return ev.phrase(q.Field, q.Terms), nil
	case *query.PrefixQuery:
		return ev.prefix(q.Field, q.Prefix), nil
	case *query.RangeQuery:
		return ev.scanStored(func(doc model.Document) bool {
			return model.InRange(doc[q.Field], q.Lower, q.Upper, q.IncludeLower, q.IncludeUpper)
		}), nil
	case *query.ANDQuery:
		return ev.and(q.Children)
	case *query.ORQuery:
		return ev.or(q.Children)
	case *query.NOTQuery:
		negated, err := ev.eval(q.Negated)
		if err != nil {
			return matchSet{}, err
		}
		return constantSet(roaring.AndNot(ev.live, negated.docs)), nil
	case *query.RequiredOptionalQuery:
		return ev.requiredOptional(q)
	case nil:
		return matchSet{}, errors.NewInvalidArgumentError("query", "query is nil")
	}
	return matchSet{}, errors.NewUnsupportedQueryError("inverted", q.String())
}

// fields resolves a query field: empty means every searchable field.
func (ev *evaluator) fields(field string) []schema.Field {
	if field != "" {
		if f, ok := ev.schema.Field(field); ok {
			return []schema.Field{f}
		}
		return nil
	}
	names := ev.schema.SearchableFields()
	out := make([]schema.Field, 0, len(names))
	for _, name := range names {
		f, _ := ev.schema.Field(name)
		out = append(out, f)
	}
	return out
}

// term matches a whole word. maxEdits < 0 applies the schema's typo
// tolerance for the word; otherwise exactly maxEdits edits are allowed.
// A document reached through a typo scores its best typo, penalized, and
// only when it has no exact match in that field.
func (ev *evaluator) term(field, term string, maxEdits int) matchSet {
	out := newMatchSet()
	for _, f := range ev.fields(field) {
		if !f.Searchable {
			ev.storedTokens(out, f, func(tokens []string) bool {
				return containsToken(tokens, term)
			})
			continue
		}

		exact := roaring.New()
		idf := ev.bm25.TermIDF(term)
		for _, e := range ev.ii.Postings(term) {
			if e.FieldName == f.Name && e.IsFullWord() {
				exact.Add(e.DocID)
				out.add(e.DocID, ev.bm25.Score(idf, f.Name, e.DocID, float64(e.TermFreq)))
			}
		}

		edits := maxEdits
		if edits < 0 {
			edits = 0
			if f.TypoTolerant {
				edits = ev.schema.MaxTypos(term)
			}
		}
		if edits == 0 {
			continue
		}

		typoMatches := newMatchSet()
		for _, typo := range ev.typos.Find(term, edits) {
			penalty := oneTypoPenalty
			if typo.Distance > 1 {
				penalty = twoTypoPenalty
			}
			typoIDF := ev.bm25.TermIDF(typo.Term)
			for _, e := range ev.ii.Postings(typo.Term) {
				if e.FieldName != f.Name || !e.IsFullWord() || exact.Contains(e.DocID) {
					continue
				}
				typoMatches.keepMax(e.DocID, ev.bm25.Score(typoIDF, f.Name, e.DocID, float64(e.TermFreq))*penalty)
			}
		}
		ev.merge(out, typoMatches)
	}
	return out
}

// phrase matches the terms at consecutive positions.
func (ev *evaluator) phrase(field string, terms []string) matchSet {
	out := newMatchSet()
	if len(terms) == 0 {
		return out
	}
	for _, f := range ev.fields(field) {
		if !f.Searchable {
			ev.storedTokens(out, f, func(tokens []string) bool {
				return countPhrase(tokens, terms) > 0
			})
			continue
		}

		// positions[i][doc] holds the positions of terms[i]
		positions := make([]map[uint32][]int, len(terms))
		for i, term := range terms {
			positions[i] = make(map[uint32][]int)
			for _, e := range ev.ii.Postings(term) {
				if e.FieldName == f.Name && e.IsFullWord() {
					positions[i][e.DocID] = e.Positions
				}
			}
		}

		for docID, starts := range positions[0] {
			freq := 0
			for _, p := range starts {
				if phraseAt(positions, docID, p) {
					freq++
				}
			}
			if freq == 0 {
				continue
			}
			score := 0.0
			for _, term := range terms {
				score += ev.bm25.Score(ev.bm25.TermIDF(term), f.Name, docID, float64(freq))
			}
			out.add(docID, score)
		}
	}
	return out
}

func phraseAt(positions []map[uint32][]int, docID uint32, start int) bool {
	for i := 1; i < len(positions); i++ {
		list := positions[i][docID]
		want := start + i
		j := sort.SearchInts(list, want)
		if j == len(list) || list[j] != want {
			return false
		}
	}
	return true
}

// prefix matches words starting with prefix. Prefix-enabled fields answer
// from their n-gram postings; other fields scan the term dictionary.
func (ev *evaluator) prefix(field, prefix string) matchSet {
	out := newMatchSet()
	if prefix == "" {
		return out
	}
	for _, f := range ev.fields(field) {
		switch {
		case !f.Searchable:
			ev.storedTokens(out, f, func(tokens []string) bool {
				for _, tok := range tokens {
					if strings.HasPrefix(tok, prefix) {
						return true
					}
				}
				return false
			})

		case f.PrefixSearch:
			pl := ev.ii.Postings(prefix)
			docs := 0
			for _, e := range pl {
				if e.FieldName == f.Name {
					docs++
				}
			}
			idf := ev.bm25.IDF(docs)
			for _, e := range pl {
				if e.FieldName == f.Name {
					out.add(e.DocID, ev.bm25.Score(idf, f.Name, e.DocID, float64(e.TermFreq+e.PrefixFreq)))
				}
			}

		default:
			expanded := newMatchSet()
			terms := ev.ii.Terms()
			for i := sort.SearchStrings(terms, prefix); i < len(terms) && strings.HasPrefix(terms[i], prefix); i++ {
				idf := ev.bm25.TermIDF(terms[i])
				for _, e := range ev.ii.Postings(terms[i]) {
					if e.FieldName == f.Name && e.IsFullWord() {
						expanded.keepMax(e.DocID, ev.bm25.Score(idf, f.Name, e.DocID, float64(e.TermFreq)))
					}
				}
			}
			ev.merge(out, expanded)
		}
	}
	return out
}

func (ev *evaluator) and(children []query.Query) (matchSet, error) {
	if len(children) == 0 {
		return newMatchSet(), nil
	}
	acc, err := ev.eval(children[0])
	if err != nil {
		return matchSet{}, err
	}
	for _, child := range children[1:] {
		if acc.docs.IsEmpty() {
			break
		}
		next, err := ev.eval(child)
		if err != nil {
			return matchSet{}, err
		}
		acc.docs.And(next.docs)
		for id, score := range next.scores {
			if acc.docs.Contains(id) {
				acc.scores[id] += score
			}
		}
	}
	pruneScores(acc)
	return acc, nil
}

func (ev *evaluator) or(children []query.Query) (matchSet, error) {
	acc := newMatchSet()
	for _, child := range children {
		next, err := ev.eval(child)
		if err != nil {
			return matchSet{}, err
		}
		ev.merge(acc, next)
	}
	return acc, nil
}

func (ev *evaluator) requiredOptional(q *query.RequiredOptionalQuery) (matchSet, error) {
	required, err := ev.eval(q.Required)
	if err != nil {
		return matchSet{}, err
	}
	if required.docs.IsEmpty() {
		return required, nil
	}
	optional, err := ev.eval(q.Optional)
	if err != nil {
		return matchSet{}, err
	}
	for id, score := range optional.scores {
		if required.docs.Contains(id) {
			required.scores[id] += score
		}
	}
	return required, nil
}

// merge adds src into dst, summing scores.
func (ev *evaluator) merge(dst, src matchSet) {
	dst.docs.Or(src.docs)
	for id, score := range src.scores {
		dst.scores[id] += score
	}
}

func pruneScores(m matchSet) {
	for id := range m.scores {
		if !m.docs.Contains(id) {
			delete(m.scores, id)
		}
	}
}

// scanStored matches live documents by predicate, with a zero score.
func (ev *evaluator) scanStored(match func(model.Document) bool) matchSet {
	out := newMatchSet()
	it := ev.live.Iterator()
	for it.HasNext() {
		id := it.Next()
		if doc, ok := ev.ds.Get(id); ok && match(doc) {
			out.docs.Add(id)
		}
	}
	return out
}

// storedTokens matches a field that has no postings by analyzing the stored
// values the same way a searchable field of its type would be.
func (ev *evaluator) storedTokens(out matchSet, f schema.Field, match func(tokens []string) bool) {
	found := ev.scanStored(func(doc model.Document) bool {
		for _, v := range model.TextValues(doc[f.Name]) {
			var tokens []string
			if f.Type == config.FieldTypeKeyword {
				tokens = []string{tokenizer.NormalizeKeyword(v)}
			} else {
				tokens = tokenizer.Tokenize(v)
			}
			if match(tokens) {
				return true
			}
		}
		return false
	})
	out.docs.Or(found.docs)
}

func containsToken(tokens []string, term string) bool {
	for _, tok := range tokens {
		if tok == term {
			return true
		}
	}
	return false
}

func countPhrase(tokens, phrase []string) int {
	n := 0
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j, term := range phrase {
			if tokens[i+j] != term {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}

func formatDocNum(docID uint32) string {
	return "#" + strconv.FormatUint(uint64(docID), 10)
}
