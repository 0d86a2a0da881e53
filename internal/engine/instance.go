package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/index"
	"github.com/gcbaptista/go-searcher/internal/blevesearch"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/internal/ftssearch"
	"github.com/gcbaptista/go-searcher/internal/indexing"
	"github.com/gcbaptista/go-searcher/internal/logging"
	"github.com/gcbaptista/go-searcher/internal/search"
	"github.com/gcbaptista/go-searcher/model"
	"github.com/gcbaptista/go-searcher/query"
	"github.com/gcbaptista/go-searcher/schema"
	"github.com/gcbaptista/go-searcher/searcher"
	"github.com/gcbaptista/go-searcher/services"
	"github.com/gcbaptista/go-searcher/store"
)

// mirrorSearcher is a backend that keeps its own copy of the documents and
// serves queries from it.
type mirrorSearcher interface {
	searcher.Searcher
	searcher.DocCounter
	indexing.Mirror
}

// instanceOptions carries the engine-wide settings every instance is built with.
type instanceOptions struct {
	logger     *slog.Logger
	parserOpts []query.ParserOption
}

// IndexInstance holds all components and services for a single search index.
// The inverted index and document store are the source of truth; a bleve or
// SQLite backend, when configured, mirrors them and serves the queries.
// It implements the services.IndexAccessor interface.
type IndexInstance struct {
	mu       sync.RWMutex // write-held only while the instance is closed
	closed   bool
	settings config.IndexSettings
	schema   *schema.Schema

	InvertedIndex *index.InvertedIndex
	DocumentStore *store.DocumentStore

	indexer  *indexing.Service
	inverted *search.IndexSearcher
	mirror   mirrorSearcher
	serving  searcher.Searcher
	logger   *slog.Logger
}

var _ services.IndexAccessor = (*IndexInstance)(nil)

// NewIndexInstance creates an empty index.
func NewIndexInstance(settings config.IndexSettings) (*IndexInstance, error) {
	return newIndexInstance(context.Background(), settings, nil, nil, instanceOptions{})
}

// newIndexInstance builds an instance over ii and ds, or over empty ones when
// they are nil. A mirrored backend is filled from ds before returning.
func newIndexInstance(ctx context.Context, settings config.IndexSettings, ii *index.InvertedIndex, ds *store.DocumentStore, o instanceOptions) (*IndexInstance, error) {
	if settings.Name == "" {
		return nil, fmt.Errorf("index name cannot be empty in settings")
	}
	settings.ApplyDefaults()

	sch, err := schema.New(settings)
	if err != nil {
		return nil, fmt.Errorf("invalid settings for index '%s': %w", settings.Name, err)
	}

	inst := &IndexInstance{
		settings: settings,
		schema:   sch,
		logger:   logging.OrDefault(o.logger).With(slog.String("index", settings.Name)),
	}
	if ii == nil {
		ii = index.New(&inst.settings)
	}
	ii.Settings = &inst.settings
	if ds == nil {
		ds = store.New()
	}
	inst.InvertedIndex = ii
	inst.DocumentStore = ds

	coreOpts := searcher.WithParserOptions(o.parserOpts...)
	inst.inverted, err = search.NewIndexSearcher(sch, ii, ds,
		search.WithLogger(inst.logger),
		search.WithCoreOptions(coreOpts))
	if err != nil {
		return nil, fmt.Errorf("failed to create searcher for index '%s': %w", settings.Name, err)
	}
	inst.serving = inst.inverted

	switch settings.Backend {
	case config.BackendBleve:
		inst.mirror, err = blevesearch.New(sch, "",
			blevesearch.WithLogger(inst.logger),
			blevesearch.WithCoreOptions(coreOpts))
	case config.BackendSQLite:
		inst.mirror, err = ftssearch.New(sch, "",
			ftssearch.WithLogger(inst.logger),
			ftssearch.WithCoreOptions(coreOpts))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend for index '%s': %w", settings.Backend, settings.Name, err)
	}

	indexerOpts := []indexing.Option{indexing.WithLogger(inst.logger)}
	if inst.mirror != nil {
		indexerOpts = append(indexerOpts, indexing.WithMirror(inst.mirror))
		inst.serving = inst.mirror
	}
	inst.indexer, err = indexing.NewService(ii, ds, sch, indexerOpts...)
	if err != nil {
		_ = inst.closeSearchers()
		return nil, fmt.Errorf("failed to create indexer service: %w", err)
	}

	if inst.mirror != nil {
		ds.Mu.RLock()
		n := ds.Len()
		ds.Mu.RUnlock()
		if n > 0 {
			if err := inst.indexer.Resync(ctx); err != nil {
				_ = inst.closeSearchers()
				return nil, fmt.Errorf("failed to fill %s backend for index '%s': %w", settings.Backend, settings.Name, err)
			}
			inst.logger.Info("backend_resynced",
				slog.String("backend", string(settings.Backend)),
				slog.Int("documents", n))
		}
	}
	return inst, nil
}

// AddDocuments adds or replaces documents and refreshes the typo dictionary.
func (i *IndexInstance) AddDocuments(ctx context.Context, docs []model.Document) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return errors.ErrSearcherClosed
	}

	if err := i.indexer.AddDocuments(ctx, docs); err != nil {
		return err
	}
	i.inverted.UpdateTypoFinder()
	return nil
}

// DeleteAllDocuments removes every document.
func (i *IndexInstance) DeleteAllDocuments(ctx context.Context) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return errors.ErrSearcherClosed
	}
	return i.indexer.DeleteAllDocuments(ctx)
}

// DeleteDocument removes one document by its documentID.
func (i *IndexInstance) DeleteDocument(ctx context.Context, docID string) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return errors.ErrSearcherClosed
	}
	if err := i.indexer.DeleteDocument(ctx, docID); err != nil {
		if stderrors.Is(err, errors.ErrDocumentNotFound) {
			return errors.NewDocumentNotFoundError(docID, i.settings.Name)
		}
		return err
	}
	return nil
}

// GetDocument returns a stored document by its documentID.
func (i *IndexInstance) GetDocument(docID string) (model.Document, error) {
	i.DocumentStore.Mu.RLock()
	defer i.DocumentStore.Mu.RUnlock()

	internalID, ok := i.DocumentStore.Lookup(docID)
	if !ok {
		return nil, errors.NewDocumentNotFoundError(docID, i.settings.Name)
	}
	doc, ok := i.DocumentStore.Get(internalID)
	if !ok {
		return nil, errors.NewDocumentNotFoundError(docID, i.settings.Name)
	}
	return doc, nil
}

// ListDocuments returns a page of documents in insertion order and the
// total number of documents.
func (i *IndexInstance) ListDocuments(offset, limit int) ([]model.Document, int) {
	i.DocumentStore.Mu.RLock()
	entries := i.DocumentStore.Entries()
	i.DocumentStore.Mu.RUnlock()

	total := len(entries)
	if offset < 0 || offset >= total || limit <= 0 {
		return []model.Document{}, total
	}
	end := min(offset+limit, total)
	docs := make([]model.Document, 0, end-offset)
	for _, e := range entries[offset:end] {
		docs = append(docs, e.Doc)
	}
	return docs, total
}

// DocumentCount returns the number of stored documents.
func (i *IndexInstance) DocumentCount() int {
	i.DocumentStore.Mu.RLock()
	defer i.DocumentStore.Mu.RUnlock()
	return i.DocumentStore.Len()
}

// Search runs req against the serving searcher.
func (i *IndexInstance) Search(ctx context.Context, req services.SearchRequest) (services.SearchResult, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return services.SearchResult{}, errors.ErrSearcherClosed
	}

	result, err := runSearch(ctx, i.serving, req, i.sortSpec(req.Sort), func(searcher.DocFetcher, uint32) string { return "" })
	if err != nil {
		return services.SearchResult{}, err
	}
	i.logger.Debug("search_executed",
		slog.String("query_id", result.QueryID),
		slog.String("query", result.Query),
		slog.Int("total", int(result.Total)),
		slog.Int64("took_ms", result.Took))
	return result, nil
}

// sortSpec returns the request's sort, falling back to the index ranking.
func (i *IndexInstance) sortSpec(criteria []config.RankingCriterion) *searcher.SortSpec {
	if len(criteria) > 0 {
		return searcher.SortSpecFromRanking(criteria)
	}
	return searcher.SortSpecFromRanking(i.schema.RankingCriteria())
}

// Settings returns the configuration settings for this index.
func (i *IndexInstance) Settings() config.IndexSettings {
	return i.settings
}

// Schema returns the schema the index is analyzed with.
func (i *IndexInstance) Schema() *schema.Schema {
	return i.schema
}

// Searcher returns the searcher serving the index.
func (i *IndexInstance) Searcher() searcher.Searcher {
	return i.serving
}

// documents returns the stored documents in insertion order.
func (i *IndexInstance) documents() []model.Document {
	i.DocumentStore.Mu.RLock()
	defer i.DocumentStore.Mu.RUnlock()
	entries := i.DocumentStore.Entries()
	docs := make([]model.Document, len(entries))
	for n, e := range entries {
		docs[n] = e.Doc
	}
	return docs
}

// Close releases the searchers. Later calls fail with ErrSearcherClosed.
// The inverted index and document store stay readable.
func (i *IndexInstance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	return i.closeSearchers()
}

func (i *IndexInstance) closeSearchers() error {
	var firstErr error
	if i.mirror != nil {
		firstErr = i.mirror.Close()
	}
	if i.inverted != nil {
		if err := i.inverted.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
