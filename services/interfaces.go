// Package services defines the contracts between the HTTP layer and the
// engine, and the request and result types they exchange.
package services

import (
	"context"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/jobs"
	"github.com/gcbaptista/go-searcher/model"
)

// SearchRequest describes one search. Query may be nil (no query: nothing
// matches), a string (parsed with the index's query parser) or a
// query.Query built by a Go caller. Any other type is rejected with
// errors.ErrInvalidArgument.
type SearchRequest struct {
	Query             any                       `json:"query"`
	Offset            uint32                    `json:"offset"`
	NumWanted         uint32                    `json:"num_wanted"`
	Sort              []config.RankingCriterion `json:"sort,omitempty"`               // Overrides the index ranking criteria
	RetrievableFields []string                  `json:"retrievable_fields,omitempty"` // Subset of document fields to return
}

// HitResult is one document of the result window.
type HitResult struct {
	DocumentID string         `json:"document_id"`
	Index      string         `json:"index,omitempty"` // Set by multi-index searches
	Document   model.Document `json:"document"`
	Score      float64        `json:"score"`
	SortValues []any          `json:"sort_values,omitempty"` // Values of the field sort keys, in sort order
}

// SearchResult is the response of a search.
type SearchResult struct {
	Hits      []HitResult `json:"hits"`
	Total     uint32      `json:"total"` // Matches regardless of the window
	Offset    uint32      `json:"offset"`
	NumWanted uint32      `json:"num_wanted"`
	Query     string      `json:"query"`    // Canonical form of the executed query
	Took      int64       `json:"took"`     // milliseconds
	QueryID   string      `json:"query_id"` // unique UUID for this search query
}

// MultiSearchRequest runs one search over several indexes with compatible
// schemas, ranked as if they were one index.
type MultiSearchRequest struct {
	Indexes []string `json:"indexes"`
	SearchRequest
}

// Indexer defines operations for changing the documents of an index.
type Indexer interface {
	AddDocuments(ctx context.Context, docs []model.Document) error
	DeleteAllDocuments(ctx context.Context) error
	DeleteDocument(ctx context.Context, docID string) error
}

// Searcher defines operations for querying an index.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (SearchResult, error)
}

// IndexAccessor is the handle on a single index.
type IndexAccessor interface {
	Indexer
	Searcher
	GetDocument(docID string) (model.Document, error)
	ListDocuments(offset, limit int) ([]model.Document, int)
	DocumentCount() int
	Settings() config.IndexSettings
}

// IndexManager manages the lifecycle of indexes.
type IndexManager interface {
	CreateIndex(settings config.IndexSettings) error
	GetIndex(name string) (IndexAccessor, error)
	GetIndexSettings(name string) (config.IndexSettings, error)
	UpdateIndexSettings(name string, settings config.IndexSettings) error
	RenameIndex(oldName, newName string) error
	DeleteIndex(name string) error
	ListIndexes() []string
	PersistIndexData(indexName string) error
}

// MultiSearcher searches several indexes at once.
type MultiSearcher interface {
	MultiSearch(ctx context.Context, req MultiSearchRequest) (SearchResult, error)
}

// AsyncIndexManager runs long index operations as jobs and returns their IDs.
type AsyncIndexManager interface {
	AddDocumentsAsync(indexName string, docs []model.Document) (string, error)
	DeleteAllDocumentsAsync(indexName string) (string, error)
	UpdateIndexSettingsAsync(name string, settings config.IndexSettings) (string, error)
}

// JobManager defines operations for inspecting background jobs.
type JobManager interface {
	GetJob(jobID string) (*model.Job, error)
	ListJobs(indexName string, status *model.JobStatus) []*model.Job
	CancelJob(jobID string) error
	JobMetrics() jobs.MetricsSnapshot
}

// Engine is everything the HTTP layer needs.
type Engine interface {
	IndexManager
	MultiSearcher
	AsyncIndexManager
	JobManager
}
