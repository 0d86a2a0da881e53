// Package engine manages the named indexes of a server: their lifecycle,
// persistence, settings changes and the background jobs that modify them.
package engine

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/internal/jobs"
	"github.com/gcbaptista/go-searcher/internal/logging"
	"github.com/gcbaptista/go-searcher/model"
	"github.com/gcbaptista/go-searcher/query"
	"github.com/gcbaptista/go-searcher/services"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSearchConfig sets the query parser defaults of every index.
func WithSearchConfig(cfg config.SearchConfig) Option {
	return func(e *Engine) { e.searchCfg = cfg }
}

// WithJobWorkers sets how many jobs run concurrently.
func WithJobWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// Engine manages multiple search indexes.
// It implements the services.Engine interface.
type Engine struct {
	mu         sync.RWMutex
	indexes    map[string]*IndexInstance
	dataDir    string
	jobManager *jobs.Manager
	searchCfg  config.SearchConfig
	workers    int
	logger     *slog.Logger
}

var _ services.Engine = (*Engine)(nil)

// NewEngine creates a search engine over dataDir and loads the indexes
// persisted there.
func NewEngine(dataDir string, opts ...Option) *Engine {
	defaults := config.NewEngineConfig()
	e := &Engine{
		indexes:   make(map[string]*IndexInstance),
		dataDir:   dataDir,
		searchCfg: defaults.Search,
		workers:   defaults.Jobs.Workers,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrDefault(e.logger)
	e.jobManager = jobs.NewManager(e.workers, jobs.WithLogger(e.logger))
	e.jobManager.Start()

	if err := os.MkdirAll(dataDir, dataDirPerm); err != nil {
		e.logger.Warn("data_dir_unavailable", slog.String("path", dataDir), slog.String("error", err.Error()))
	}
	e.loadIndexesFromDisk()
	return e
}

// parserOptions translates the search configuration into query parser options.
func (e *Engine) parserOptions() []query.ParserOption {
	var opts []query.ParserOption
	if op, err := query.ParseOperator(e.searchCfg.DefaultOperator); err == nil {
		opts = append(opts, query.WithDefaultOperator(op))
	}
	if e.searchCfg.ParseCacheSize > 0 {
		opts = append(opts, query.WithParseCache(e.searchCfg.ParseCacheSize))
	}
	return opts
}

func (e *Engine) instanceOptions() instanceOptions {
	return instanceOptions{logger: e.logger, parserOpts: e.parserOptions()}
}

// GetIndex retrieves an index by its name.
func (e *Engine) GetIndex(name string) (services.IndexAccessor, error) {
	inst, err := e.instance(name)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func (e *Engine) instance(name string) (*IndexInstance, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	inst, exists := e.indexes[name]
	if !exists {
		return nil, errors.NewIndexNotFoundError(name)
	}
	return inst, nil
}

// GetIndexSettings retrieves the settings for a specific index.
func (e *Engine) GetIndexSettings(name string) (config.IndexSettings, error) {
	inst, err := e.instance(name)
	if err != nil {
		return config.IndexSettings{}, err
	}
	return inst.Settings(), nil
}

// ListIndexes returns the names of all loaded indexes, sorted.
func (e *Engine) ListIndexes() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.indexes))
	for name := range e.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetJob returns a snapshot of a background job.
func (e *Engine) GetJob(jobID string) (*model.Job, error) {
	return e.jobManager.GetJob(jobID)
}

// ListJobs returns the jobs of an index, optionally filtered by status.
func (e *Engine) ListJobs(indexName string, status *model.JobStatus) []*model.Job {
	return e.jobManager.ListJobs(indexName, status)
}

// CancelJob asks a pending or running job to stop.
func (e *Engine) CancelJob(jobID string) error {
	return e.jobManager.CancelJob(jobID)
}

// JobMetrics returns the job counters.
func (e *Engine) JobMetrics() jobs.MetricsSnapshot {
	return e.jobManager.Metrics()
}

// Close stops the job manager, persists every index and releases their
// searchers.
func (e *Engine) Close() error {
	e.jobManager.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for name, inst := range e.indexes {
		if err := e.persistIndexUnsafe(name, inst); err != nil {
			e.logger.Error("index_persist_failed", slog.String("index", name), slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
		if err := inst.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close index '%s': %w", name, err)
		}
	}
	e.indexes = make(map[string]*IndexInstance)
	return firstErr
}
