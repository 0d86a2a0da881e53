// Package blevesearch serves an index from a bleve index. Documents reach it
// as a mirror of the index's document store and keep the store's internal
// IDs, so document numbers agree with the built-in searcher.
package blevesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/internal/logging"
	"github.com/gcbaptista/go-searcher/internal/tokenizer"
	"github.com/gcbaptista/go-searcher/model"
	"github.com/gcbaptista/go-searcher/query"
	"github.com/gcbaptista/go-searcher/schema"
	"github.com/gcbaptista/go-searcher/searcher"
	"github.com/gcbaptista/go-searcher/store"
)

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

// WithCoreOptions passes options to the searcher core.
func WithCoreOptions(opts ...searcher.CoreOption) Option {
	return func(s *Searcher) { s.coreOpts = append(s.coreOpts, opts...) }
}

// Searcher is a searcher.Searcher over a bleve index.
type Searcher struct {
	*searcher.Core

	mu       sync.RWMutex
	index    bleve.Index
	path     string
	docMax   uint32
	closed   bool
	logger   *slog.Logger
	coreOpts []searcher.CoreOption
}

var (
	_ searcher.Searcher   = (*Searcher)(nil)
	_ searcher.DocFetcher = (*Searcher)(nil)
	_ searcher.DocCounter = (*Searcher)(nil)
)

// New opens the bleve index at path, creating it if needed. An empty path
// creates an in-memory index.
func New(sch *schema.Schema, path string, opts ...Option) (*Searcher, error) {
	if sch == nil {
		return nil, errors.NewInvalidArgumentError("schema", "schema is nil")
	}
	s := &Searcher{path: path}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger)

	core, err := searcher.NewCore(sch, s, s.coreOpts...)
	if err != nil {
		return nil, err
	}
	s.Core = core

	idx, err := s.open()
	if err != nil {
		return nil, err
	}
	s.index = idx

	docMax, err := s.loadDocMax()
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	s.docMax = docMax
	return s, nil
}

func (s *Searcher) open() (bleve.Index, error) {
	im, err := buildMapping(s.Schema())
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}
	if s.path == "" {
		return bleve.NewMemOnly(im)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", s.path, err)
	}
	idx, err := bleve.Open(s.path)
	switch {
	case err == nil:
		return idx, nil
	case err == bleve.ErrorIndexPathDoesNotExist:
		return bleve.New(s.path, im)
	}

	// The index is rebuilt from the document store, so an unreadable one is
	// cleared rather than repaired
	s.logger.Warn("bleve_index_open_failed",
		slog.String("path", s.path),
		slog.String("error", err.Error()))
	if rmErr := os.RemoveAll(s.path); rmErr != nil {
		return nil, fmt.Errorf("bleve index at %s is unreadable and cannot be removed: %w (original error: %v)", s.path, rmErr, err)
	}
	return bleve.New(s.path, im)
}

// loadDocMax recovers the document number bound of a reopened index from
// its highest document ID.
func (s *Searcher) loadDocMax() (uint32, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), 1, 0, false)
	req.SortByCustom(search.SortOrder{&search.SortDocID{Desc: true}})
	res, err := s.index.Search(req)
	if err != nil {
		return 0, fmt.Errorf("failed to read bleve index: %w", err)
	}
	if len(res.Hits) == 0 {
		return 0, nil
	}
	id, err := parseDocNum(res.Hits[0].ID)
	if err != nil {
		return 0, err
	}
	return id + 1, nil
}

func formatDocNum(id uint32) string {
	return fmt.Sprintf("%010d", id)
}

func parseDocNum(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("unexpected bleve document id %q: %w", s, err)
	}
	return uint32(n), nil
}

// IndexDocuments adds or replaces entries.
func (s *Searcher) IndexDocuments(ctx context.Context, entries []store.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrSearcherClosed
	}

	batch := s.index.NewBatch()
	for _, e := range entries {
		doc, err := s.bleveDocument(e.Doc)
		if err != nil {
			return err
		}
		if err := batch.Index(formatDocNum(e.ID), doc); err != nil {
			return fmt.Errorf("failed to index document %d: %w", e.ID, err)
		}
		s.docMax = max(s.docMax, e.ID+1)
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return ctx.Err()
}

// bleveDocument converts a document to the shape the mapping expects:
// keyword values normalized, numbers as float64, dates as RFC3339, text as
// strings, and the original document as JSON.
func (s *Searcher) bleveDocument(doc model.Document) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(doc)+1)
	for _, f := range s.Schema().Fields() {
		v, ok := doc[f.Name]
		if !ok || v == nil {
			continue
		}
		switch f.Type {
		case config.FieldTypeNumeric:
			var nums []float64
			for _, item := range flatten(v) {
				if n, ok := model.ToFloat64(item); ok {
					nums = append(nums, n)
				}
			}
			if len(nums) > 0 {
				out[f.Name] = nums
			}
		case config.FieldTypeDatetime:
			var dates []string
			for _, item := range flatten(v) {
				if t, ok := model.ToTime(item); ok {
					dates = append(dates, t.Format(time.RFC3339))
				}
			}
			if len(dates) > 0 {
				out[f.Name] = dates
			}
		case config.FieldTypeKeyword:
			var kws []string
			for _, text := range model.TextValues(v) {
				if kw := tokenizer.NormalizeKeyword(text); kw != "" {
					kws = append(kws, kw)
				}
			}
			if len(kws) > 0 {
				out[f.Name] = kws
			}
		default:
			if texts := model.TextValues(v); len(texts) > 0 {
				out[f.Name] = texts
			}
		}
	}

	src, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document source: %w", err)
	}
	out[sourceField] = string(src)
	return out, nil
}

func flatten(v interface{}) []interface{} {
	switch vs := v.(type) {
	case []interface{}:
		return vs
	case []string:
		out := make([]interface{}, len(vs))
		for i, s := range vs {
			out[i] = s
		}
		return out
	}
	return []interface{}{v}
}

// DeleteDocuments removes documents by internal ID.
func (s *Searcher) DeleteDocuments(_ context.Context, ids []uint32) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrSearcherClosed
	}

	batch := s.index.NewBatch()
	for _, id := range ids {
		batch.Delete(formatDocNum(id))
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// DeleteAllDocuments replaces the index with an empty one.
func (s *Searcher) DeleteAllDocuments(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrSearcherClosed
	}

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("failed to close bleve index: %w", err)
	}
	if s.path != "" {
		if err := os.RemoveAll(s.path); err != nil {
			return fmt.Errorf("failed to remove bleve index: %w", err)
		}
	}
	idx, err := s.open()
	if err != nil {
		s.closed = true
		return err
	}
	s.index = idx
	s.docMax = 0
	return nil
}

// TopDocs translates q to a bleve query and returns the best numWanted hits.
func (s *Searcher) TopDocs(ctx context.Context, q query.Query, numWanted uint32, sort *searcher.SortSpec) (*searcher.TopDocs, error) {
	if err := sort.Validate(); err != nil {
		return nil, err
	}
	bleveQuery, err := translate(s.Schema(), q)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.ErrSearcherClosed
	}

	distinct := s.Schema().DistinctField()
	needSource := distinct != "" || sort.NeedsValues()

	req := bleve.NewSearchRequestOptions(bleveQuery, int(min(numWanted, math.MaxInt32)), 0, false)
	req.SortByCustom(sortOrder(sort))
	if needSource {
		req.Fields = []string{sourceField}
	}
	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	// Deduplication needs every match, not just the first page
	if distinct != "" && res.Total > uint64(len(res.Hits)) {
		req.Size = int(min(res.Total, math.MaxInt32))
		if res, err = s.index.SearchInContext(ctx, req); err != nil {
			return nil, fmt.Errorf("bleve search failed: %w", err)
		}
	}

	collector := searcher.NewCollector(numWanted, sort)
	sources := make(map[uint32]model.Document)
	if distinct != "" {
		collector.WithDistinct(func(m *searcher.MatchDoc) (string, bool) {
			return sources[m.DocID].DistinctKey(distinct)
		})
	}
	for _, hit := range res.Hits {
		id, err := parseDocNum(hit.ID)
		if err != nil {
			return nil, err
		}
		m := searcher.MatchDoc{DocID: id, Score: hit.Score}
		if needSource {
			doc, err := decodeSource(hit.Fields[sourceField])
			if err != nil {
				return nil, err
			}
			sources[id] = doc
			m.Values = sort.FieldValues(doc)
		}
		collector.Collect(m)
	}

	td := collector.TopDocs()
	if distinct == "" {
		td.TotalHits = uint32(min(res.Total, math.MaxUint32))
	}
	return td, nil
}

func decodeSource(raw interface{}) (model.Document, error) {
	src, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("bleve hit is missing its stored source")
	}
	var doc model.Document
	if err := json.Unmarshal([]byte(src), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode stored source: %w", err)
	}
	return doc, nil
}

// sortOrder converts a SortSpec to bleve's sort order. Document number is
// always the final tie break.
func sortOrder(sort *searcher.SortSpec) search.SortOrder {
	if sort == nil || len(sort.Rules) == 0 {
		return search.SortOrder{&search.SortScore{Desc: true}, &search.SortDocID{}}
	}
	order := make(search.SortOrder, 0, len(sort.Rules)+1)
	for _, r := range sort.Rules {
		switch r.Type {
		case searcher.SortByScore:
			order = append(order, &search.SortScore{Desc: !r.Reverse})
		case searcher.SortByDocID:
			order = append(order, &search.SortDocID{Desc: r.Reverse})
		case searcher.SortByField:
			order = append(order, &search.SortField{
				Field:   r.Field,
				Desc:    r.Reverse,
				Type:    search.SortFieldAuto,
				Mode:    search.SortFieldDefault,
				Missing: search.SortFieldMissingLast,
			})
		}
	}
	return append(order, &search.SortDocID{})
}

// FetchDoc returns the stored source of document docID.
func (s *Searcher) FetchDoc(ctx context.Context, docID uint32) (model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.ErrSearcherClosed
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{formatDocNum(docID)}), 1, 0, false)
	req.Fields = []string{sourceField}
	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve fetch failed: %w", err)
	}
	if len(res.Hits) == 0 {
		return nil, errors.NewDocumentNotFoundError("#" + strconv.FormatUint(uint64(docID), 10))
	}
	return decodeSource(res.Hits[0].Fields[sourceField])
}

// DocMax bounds the document numbers in the index.
func (s *Searcher) DocMax() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docMax
}

// DocCount returns the number of documents in the index.
func (s *Searcher) DocCount(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, errors.ErrSearcherClosed
	}
	return s.index.DocCount()
}

// Close closes the bleve index. Later calls fail with ErrSearcherClosed.
func (s *Searcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.index.Close()
}
