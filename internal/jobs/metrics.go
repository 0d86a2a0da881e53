package jobs

import (
	"maps"
	"sync"
	"time"

	"github.com/gcbaptista/go-searcher/model"
)

// MetricsSnapshot is a point-in-time copy of the job counters.
type MetricsSnapshot struct {
	Created          int64                     `json:"jobs_created"`
	Completed        int64                     `json:"jobs_completed"`
	Failed           int64                     `json:"jobs_failed"`
	Cancelled        int64                     `json:"jobs_cancelled"`
	Active           int                       `json:"jobs_active"`
	AverageExecution time.Duration             `json:"average_execution_time_ns"`
	ByType           map[model.JobType]int64   `json:"jobs_by_type"`
	ByOutcome        map[model.JobStatus]int64 `json:"jobs_by_outcome"`
	SuccessRate      float64                   `json:"success_rate"`
	LastUpdated      time.Time                 `json:"last_updated"`
}

// Metrics accumulates job counters.
type Metrics struct {
	mu        sync.Mutex
	created   int64
	finished  map[model.JobStatus]int64
	byType    map[model.JobType]int64
	execTotal time.Duration
	execCount int64
	updated   time.Time
}

// NewMetrics creates empty counters.
func NewMetrics() *Metrics {
	return &Metrics{
		finished: make(map[model.JobStatus]int64),
		byType:   make(map[model.JobType]int64),
		updated:  time.Now(),
	}
}

func (m *Metrics) recordCreated(jobType model.JobType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
	m.byType[jobType]++
	m.updated = time.Now()
}

func (m *Metrics) recordFinished(_ model.JobType, outcome model.JobStatus, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[outcome]++
	if outcome == model.JobStatusCompleted {
		m.execTotal += elapsed
		m.execCount++
	}
	m.updated = time.Now()
}

func (m *Metrics) snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := MetricsSnapshot{
		Created:     m.created,
		Completed:   m.finished[model.JobStatusCompleted],
		Failed:      m.finished[model.JobStatusFailed],
		Cancelled:   m.finished[model.JobStatusCancelled],
		ByType:      maps.Clone(m.byType),
		ByOutcome:   maps.Clone(m.finished),
		SuccessRate: 1,
		LastUpdated: m.updated,
	}
	if m.execCount > 0 {
		s.AverageExecution = m.execTotal / time.Duration(m.execCount)
	}
	if done := s.Completed + s.Failed; done > 0 {
		s.SuccessRate = float64(s.Completed) / float64(done)
	}
	return s
}
