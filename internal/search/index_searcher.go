// Package search contains the searchers that execute query trees: the
// IndexSearcher over the built-in inverted index, and the PolySearcher that
// fans a query out over several searchers and merges their results.
package search

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gcbaptista/go-searcher/index"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/internal/logging"
	"github.com/gcbaptista/go-searcher/internal/typoutil"
	"github.com/gcbaptista/go-searcher/model"
	"github.com/gcbaptista/go-searcher/query"
	"github.com/gcbaptista/go-searcher/schema"
	"github.com/gcbaptista/go-searcher/searcher"
	"github.com/gcbaptista/go-searcher/store"
)

// Typo penalties applied to the BM25 score of a term reached through edits.
const (
	oneTypoPenalty = 0.8
	twoTypoPenalty = 0.6
)

// cancelCheckInterval is how many candidates are collected between context checks.
const cancelCheckInterval = 1024

// Option configures an IndexSearcher.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	coreOpts []searcher.CoreOption
	typoOpts []typoutil.Option
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCoreOptions passes options to the searcher core, such as a custom
// query parser.
func WithCoreOptions(opts ...searcher.CoreOption) Option {
	return func(o *options) { o.coreOpts = append(o.coreOpts, opts...) }
}

// WithTypoOptions configures the typo finder.
func WithTypoOptions(opts ...typoutil.Option) Option {
	return func(o *options) { o.typoOpts = append(o.typoOpts, opts...) }
}

// IndexSearcher executes queries against an InvertedIndex and its
// DocumentStore. Document numbers are the store's internal IDs.
type IndexSearcher struct {
	*searcher.Core

	invertedIndex *index.InvertedIndex
	documentStore *store.DocumentStore
	typoFinder    *typoutil.TypoFinder
	logger        *slog.Logger
	closed        atomic.Bool
}

var (
	_ searcher.Searcher   = (*IndexSearcher)(nil)
	_ searcher.DocFetcher = (*IndexSearcher)(nil)
	_ searcher.DocCounter = (*IndexSearcher)(nil)
)

// NewIndexSearcher creates a searcher over ii and ds, which must have been
// built with the same schema.
func NewIndexSearcher(sch *schema.Schema, ii *index.InvertedIndex, ds *store.DocumentStore, opts ...Option) (*IndexSearcher, error) {
	if ii == nil {
		return nil, errors.NewInvalidArgumentError("index", "inverted index is nil")
	}
	if ds == nil {
		return nil, errors.NewInvalidArgumentError("store", "document store is nil")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &IndexSearcher{
		invertedIndex: ii,
		documentStore: ds,
		logger:        logging.OrDefault(o.logger),
	}
	core, err := searcher.NewCore(sch, s, o.coreOpts...)
	if err != nil {
		return nil, err
	}
	s.Core = core

	ii.Mu.RLock()
	terms := ii.Terms()
	ii.Mu.RUnlock()
	s.typoFinder = typoutil.NewTypoFinder(terms, append([]typoutil.Option{typoutil.WithLogger(s.logger)}, o.typoOpts...)...)
	return s, nil
}

// UpdateTypoFinder reloads the typo dictionary from the index. Call it after
// documents are added so typo tolerance sees the new terms.
func (s *IndexSearcher) UpdateTypoFinder() {
	s.invertedIndex.Mu.RLock()
	terms := s.invertedIndex.Terms()
	s.invertedIndex.Mu.RUnlock()
	s.typoFinder.UpdateIndexedTerms(terms)
}

// TopDocs evaluates q and returns the best numWanted matches.
func (s *IndexSearcher) TopDocs(ctx context.Context, q query.Query, numWanted uint32, sort *searcher.SortSpec) (*searcher.TopDocs, error) {
	if s.closed.Load() {
		return nil, errors.ErrSearcherClosed
	}
	if err := sort.Validate(); err != nil {
		return nil, err
	}

	s.documentStore.Mu.RLock()
	s.invertedIndex.Mu.RLock()
	defer s.documentStore.Mu.RUnlock()
	defer s.invertedIndex.Mu.RUnlock()

	ev := &evaluator{
		ctx:    ctx,
		schema: s.Schema(),
		ii:     s.invertedIndex,
		ds:     s.documentStore,
		bm25:   NewBM25Calculator(s.invertedIndex, s.documentStore),
		typos:  s.typoFinder,
		live:   s.documentStore.Live(),
	}
	matches, err := ev.eval(q)
	if err != nil {
		return nil, err
	}

	collector := searcher.NewCollector(numWanted, sort)
	if field := s.Schema().DistinctField(); field != "" {
		collector.WithDistinct(func(m *searcher.MatchDoc) (string, bool) {
			doc, ok := s.documentStore.Get(m.DocID)
			if !ok {
				return "", false
			}
			return doc.DistinctKey(field)
		})
	}

	n := 0
	it := matches.docs.Iterator()
	for it.HasNext() {
		if n++; n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		id := it.Next()
		m := searcher.MatchDoc{DocID: id, Score: matches.scores[id]}
		if sort.NeedsValues() {
			doc, _ := s.documentStore.Get(id)
			m.Values = sort.FieldValues(doc)
		}
		collector.Collect(m)
	}
	return collector.TopDocs(), nil
}

// FetchDoc returns the stored document with internal ID docID.
func (s *IndexSearcher) FetchDoc(_ context.Context, docID uint32) (model.Document, error) {
	if s.closed.Load() {
		return nil, errors.ErrSearcherClosed
	}
	s.documentStore.Mu.RLock()
	defer s.documentStore.Mu.RUnlock()
	doc, ok := s.documentStore.Get(docID)
	if !ok {
		return nil, errors.NewDocumentNotFoundError(formatDocNum(docID))
	}
	return doc, nil
}

// DocMax bounds the internal IDs this searcher returns.
func (s *IndexSearcher) DocMax() uint32 {
	s.documentStore.Mu.RLock()
	defer s.documentStore.Mu.RUnlock()
	return s.documentStore.NextID
}

// Close marks the searcher closed; later calls fail with ErrSearcherClosed.
// The index and store are not owned and stay usable.
func (s *IndexSearcher) Close() error {
	s.closed.Store(true)
	return nil
}
