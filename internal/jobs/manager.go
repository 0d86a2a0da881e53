// Package jobs runs long index operations (document ingestion, reindexing,
// backend rebuilds) on a bounded worker pool and tracks their status.
package jobs

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/internal/logging"
	"github.com/gcbaptista/go-searcher/model"
)

const (
	cleanupInterval = time.Hour
	defaultMaxAge   = 24 * time.Hour
)

// Func is the body of a job. It should stop early when ctx is cancelled and
// may report progress through report.
type Func func(ctx context.Context, report ProgressFunc) error

// ProgressFunc records how far a job got.
type ProgressFunc func(current, total int, message string)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager handles background job execution and tracking.
type Manager struct {
	mu      sync.RWMutex
	jobs    map[string]*model.Job
	cancels map[string]context.CancelFunc

	workers  chan struct{} // limits concurrent jobs
	ctx      context.Context
	stop     context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup

	metrics *Metrics
	logger  *slog.Logger
}

// NewManager creates a job manager running at most maxWorkers jobs at once.
func NewManager(maxWorkers int, opts ...Option) *Manager {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	ctx, stop := context.WithCancel(context.Background())
	m := &Manager{
		jobs:    make(map[string]*model.Job),
		cancels: make(map[string]context.CancelFunc),
		workers: make(chan struct{}, maxWorkers),
		ctx:     ctx,
		stop:    stop,
		metrics: NewMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.OrDefault(m.logger)
	return m
}

// Start begins the periodic cleanup of finished jobs.
func (m *Manager) Start() {
	m.logger.Info("job_manager_started", slog.Int("workers", cap(m.workers)))
	m.wg.Add(1)
	go m.cleanupRoutine()
}

// Stop cancels every running or pending job and waits for them to return.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.stop()
		m.wg.Wait()
		m.logger.Info("job_manager_stopped")
	})
}

// CreateJob registers a pending job and returns its ID.
func (m *Manager) CreateJob(jobType model.JobType, indexName string, metadata map[string]string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &model.Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Status:    model.JobStatusPending,
		IndexName: indexName,
		CreatedAt: time.Now(),
		Metadata:  metadata,
	}
	m.jobs[job.ID] = job
	m.metrics.recordCreated(jobType)
	m.logger.Debug("job_created",
		slog.String("job_id", job.ID),
		slog.String("type", string(jobType)),
		slog.String("index", indexName))
	return job.ID
}

// GetJob returns a snapshot of a job.
func (m *Manager) GetJob(jobID string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return nil, errors.NewJobNotFoundError(jobID)
	}
	return job.Clone(), nil
}

// ListJobs returns snapshots of the jobs of an index, oldest first,
// optionally filtered by status.
func (m *Manager) ListJobs(indexName string, status *model.JobStatus) []*model.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*model.Job
	for _, job := range m.jobs {
		if job.IndexName != indexName {
			continue
		}
		if status != nil && job.Status != *status {
			continue
		}
		result = append(result, job.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// ExecuteJob schedules fn for a pending job. It returns immediately; the job
// waits for a free worker in the background.
func (m *Manager) ExecuteJob(jobID string, fn Func) error {
	m.mu.Lock()
	job, exists := m.jobs[jobID]
	if !exists {
		m.mu.Unlock()
		return errors.NewJobNotFoundError(jobID)
	}
	if job.Status != model.JobStatusPending {
		m.mu.Unlock()
		return fmt.Errorf("job with ID '%s' is not in pending status (current: %s)", jobID, job.Status)
	}
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		m.finish(jobID, model.JobStatusCancelled, "job manager is shutting down")
		return fmt.Errorf("job manager is shutting down")
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancels[jobID] = cancel
	jobType := job.Type
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer cancel()

		select {
		case m.workers <- struct{}{}:
		case <-ctx.Done():
			m.finish(jobID, model.JobStatusCancelled, "cancelled before start")
			return
		}
		defer func() { <-m.workers }()

		m.setRunning(jobID)
		start := time.Now()
		err := fn(ctx, func(current, total int, message string) {
			m.UpdateJobProgress(jobID, current, total, message)
		})
		elapsed := time.Since(start)

		switch {
		case err == nil:
			m.finish(jobID, model.JobStatusCompleted, "")
			m.metrics.recordFinished(jobType, model.JobStatusCompleted, elapsed)
			m.logger.Info("job_completed",
				slog.String("job_id", jobID),
				slog.String("type", string(jobType)),
				slog.Duration("elapsed", elapsed))
		case stderrors.Is(err, context.Canceled):
			m.finish(jobID, model.JobStatusCancelled, err.Error())
			m.metrics.recordFinished(jobType, model.JobStatusCancelled, elapsed)
			m.logger.Info("job_cancelled", slog.String("job_id", jobID))
		default:
			m.finish(jobID, model.JobStatusFailed, err.Error())
			m.metrics.recordFinished(jobType, model.JobStatusFailed, elapsed)
			m.logger.Error("job_failed",
				slog.String("job_id", jobID),
				slog.String("type", string(jobType)),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()))
		}
	}()
	return nil
}

// CancelJob asks a pending or running job to stop. Jobs that already
// finished are left untouched.
func (m *Manager) CancelJob(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return errors.NewJobNotFoundError(jobID)
	}
	if !job.Status.IsActive() {
		return nil
	}

	cancel, scheduled := m.cancels[jobID]
	if !scheduled {
		// never handed to ExecuteJob
		job.Status = model.JobStatusCancelled
		now := time.Now()
		job.CompletedAt = &now
		return nil
	}
	job.Status = model.JobStatusCancelling
	cancel()
	return nil
}

// UpdateJobProgress updates the progress of a job.
func (m *Manager) UpdateJobProgress(jobID string, current, total int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return
	}
	if job.Progress == nil {
		job.Progress = &model.JobProgress{}
	}
	job.Progress.Current = current
	job.Progress.Total = total
	job.Progress.Message = message
	m.logger.Debug("job_progress",
		slog.String("job_id", jobID),
		slog.Float64("percent", job.Progress.Percent()),
		slog.String("message", message))
}

func (m *Manager) setRunning(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || job.Status != model.JobStatusPending {
		return
	}
	job.Status = model.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
}

func (m *Manager) finish(jobID string, status model.JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cancels, jobID)
	job, exists := m.jobs[jobID]
	if !exists {
		return
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	now := time.Now()
	job.CompletedAt = &now
}

func (m *Manager) cleanupRoutine() {
	defer m.wg.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CleanupOldJobs(defaultMaxAge)
		case <-m.ctx.Done():
			return
		}
	}
}

// CleanupOldJobs forgets finished jobs older than maxAge and returns how
// many were removed.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	cleaned := 0
	for jobID, job := range m.jobs {
		if job.Status.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, jobID)
			cleaned++
		}
	}
	if cleaned > 0 {
		m.logger.Info("jobs_cleaned_up", slog.Int("count", cleaned))
	}
	return cleaned
}

// Metrics returns a snapshot of the job counters.
func (m *Manager) Metrics() MetricsSnapshot {
	m.mu.RLock()
	active := 0
	for _, job := range m.jobs {
		if job.Status == model.JobStatusPending || job.Status == model.JobStatusRunning || job.Status == model.JobStatusCancelling {
			active++
		}
	}
	m.mu.RUnlock()

	s := m.metrics.snapshot()
	s.Active = active
	return s
}
