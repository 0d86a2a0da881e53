package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobStatus(t *testing.T) {
	status, err := ParseJobStatus("running")
	require.NoError(t, err)
	assert.Equal(t, JobStatusRunning, status)

	_, err = ParseJobStatus("RUNNING")
	assert.Error(t, err)
	_, err = ParseJobStatus("done")
	assert.Error(t, err)
}

func TestJobStatusStates(t *testing.T) {
	for _, status := range jobStatuses {
		assert.False(t, status.IsActive() && status.IsTerminal(), status)
	}
	assert.True(t, JobStatusPending.IsActive())
	assert.False(t, JobStatusCancelling.IsActive())
	assert.False(t, JobStatusCancelling.IsTerminal())
	assert.True(t, JobStatusCancelled.IsTerminal())
}

func TestJobClone(t *testing.T) {
	job := &Job{
		ID:       "j1",
		Progress: &JobProgress{Current: 1, Total: 4},
		Metadata: map[string]string{"operation": "reindex"},
	}
	c := job.Clone()
	c.Progress.Current = 3
	c.Metadata["operation"] = "changed"

	assert.Equal(t, 1, job.Progress.Current)
	assert.Equal(t, "reindex", job.Metadata["operation"])
	assert.InDelta(t, 75.0, c.Progress.Percent(), 1e-9)
	assert.Zero(t, (&JobProgress{Current: 3}).Percent())
}

func TestJobDuration(t *testing.T) {
	assert.Zero(t, (&Job{}).Duration())

	start := time.Now().Add(-time.Minute)
	end := start.Add(2 * time.Second)
	assert.Equal(t, 2*time.Second, (&Job{StartedAt: &start, CompletedAt: &end}).Duration())
	assert.GreaterOrEqual(t, (&Job{StartedAt: &start}).Duration(), time.Minute)
}
