package model

import (
	"fmt"
	"maps"
	"time"
)

// JobStatus is the lifecycle state of a background job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusRunning    JobStatus = "running"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelling JobStatus = "cancelling"
	JobStatusCancelled  JobStatus = "cancelled"
)

var jobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusRunning,
	JobStatusCompleted,
	JobStatusFailed,
	JobStatusCancelling,
	JobStatusCancelled,
}

// ParseJobStatus validates a status name taken from a request.
func ParseJobStatus(s string) (JobStatus, error) {
	for _, status := range jobStatuses {
		if string(status) == s {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown job status '%s'", s)
}

// IsActive reports whether a job in this state can still be cancelled.
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// IsTerminal reports whether a job in this state will not change again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobType names the operation a job runs.
type JobType string

const (
	JobTypeReindex        JobType = "reindex"         // settings change that rebuilds the inverted index
	JobTypeUpdateSettings JobType = "update_settings" // serving searcher rebuilt, index kept
	JobTypeAddDocuments   JobType = "add_documents"
	JobTypeDeleteAllDocs  JobType = "delete_all_docs"
)

// Job is a background operation on one index.
type Job struct {
	ID          string            `json:"id"`
	Type        JobType           `json:"type"`
	Status      JobStatus         `json:"status"`
	IndexName   string            `json:"index_name"`
	Progress    *JobProgress      `json:"progress,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Clone returns a copy that shares no mutable state with j.
func (j *Job) Clone() *Job {
	c := *j
	if j.Progress != nil {
		p := *j.Progress
		c.Progress = &p
	}
	c.Metadata = maps.Clone(j.Metadata)
	return &c
}

// Duration is the time spent running: up to now for a running job, zero if
// the job never started.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.CompletedAt == nil {
		return time.Since(*j.StartedAt)
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// JobProgress is the last progress report of a running job.
type JobProgress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// Percent returns Current as a percentage of Total, 0 when Total is unknown.
func (jp *JobProgress) Percent() float64 {
	if jp.Total <= 0 {
		return 0
	}
	return float64(jp.Current) / float64(jp.Total) * 100
}
