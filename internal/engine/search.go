package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/internal/search"
	"github.com/gcbaptista/go-searcher/searcher"
	"github.com/gcbaptista/go-searcher/services"
)

// runSearch drives s.Hits for req and renders the visible window. indexOf
// names the index a document number belongs to, for multi-index searches;
// it receives the fetcher that resolved the window so both agree.
func runSearch(ctx context.Context, s searcher.Searcher, req services.SearchRequest, sort *searcher.SortSpec, indexOf func(f searcher.DocFetcher, docID uint32) string) (services.SearchResult, error) {
	start := time.Now()

	in, err := searcher.InputOf(req.Query)
	if err != nil {
		return services.SearchResult{}, err
	}
	q, err := s.GleanQuery(in)
	if err != nil {
		return services.SearchResult{}, err
	}
	hits, err := s.Hits(ctx, searcher.QueryInput(q), req.Offset, req.NumWanted, sort)
	if err != nil {
		return services.SearchResult{}, err
	}
	window, err := hits.Collect(ctx)
	if err != nil {
		return services.SearchResult{}, fmt.Errorf("failed to load hits: %w", err)
	}

	result := services.SearchResult{
		Hits:      make([]services.HitResult, 0, len(window)),
		Total:     hits.TotalHits(),
		Offset:    hits.Offset(),
		NumWanted: req.NumWanted,
		Query:     q.String(),
		QueryID:   uuid.NewString(),
	}
	for _, hit := range window {
		id, _ := hit.Doc.GetDocumentID()
		hr := services.HitResult{
			DocumentID: id,
			Index:      indexOf(hits.Fetcher(), hit.DocID),
			Document:   hit.Doc.Project(req.RetrievableFields),
			Score:      hit.Score,
		}
		if sort.NeedsValues() {
			hr.SortValues = hit.Values
		}
		result.Hits = append(result.Hits, hr)
	}
	result.Took = time.Since(start).Milliseconds()
	return result, nil
}

// MultiSearch runs one search over several indexes as if they were one.
// The indexes must have compatible schemas; the first index's settings
// provide the query parser and the default ranking.
func (e *Engine) MultiSearch(ctx context.Context, req services.MultiSearchRequest) (services.SearchResult, error) {
	if len(req.Indexes) == 0 {
		return services.SearchResult{}, errors.NewInvalidArgumentError("indexes", "at least one index is required")
	}

	instances := make([]*IndexInstance, 0, len(req.Indexes))
	seen := make(map[string]bool, len(req.Indexes))
	e.mu.RLock()
	for _, name := range req.Indexes {
		if seen[name] {
			e.mu.RUnlock()
			return services.SearchResult{}, errors.NewInvalidArgumentError("indexes", fmt.Sprintf("index '%s' is listed twice", name))
		}
		seen[name] = true
		inst, ok := e.indexes[name]
		if !ok {
			e.mu.RUnlock()
			return services.SearchResult{}, errors.NewIndexNotFoundError(name)
		}
		instances = append(instances, inst)
	}
	e.mu.RUnlock()

	subs := make([]searcher.Searcher, 0, len(instances))
	for _, inst := range instances {
		inst.mu.RLock()
		defer inst.mu.RUnlock()
		if inst.closed {
			return services.SearchResult{}, errors.ErrSearcherClosed
		}
		subs = append(subs, inst.serving)
	}

	first := instances[0]
	poly, err := search.NewPolySearcher(first.schema, subs, searcher.WithParserOptions(e.parserOptions()...))
	if err != nil {
		return services.SearchResult{}, err
	}
	defer poly.Close()

	result, err := runSearch(ctx, poly, req.SearchRequest, first.sortSpec(req.Sort), func(f searcher.DocFetcher, docID uint32) string {
		if view, ok := f.(*search.PolyView); ok {
			if i, _, found := view.Locate(docID); found {
				return req.Indexes[i]
			}
		}
		return ""
	})
	if err != nil {
		return services.SearchResult{}, err
	}
	e.logger.Debug("multi_search_executed",
		slog.Any("indexes", req.Indexes),
		slog.String("query_id", result.QueryID),
		slog.Int("total", int(result.Total)),
		slog.Int64("took_ms", result.Took))
	return result, nil
}
