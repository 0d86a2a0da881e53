package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-searcher/model"
)

// GetJobHandler handles requests to get job status by ID
func (api *API) GetJobHandler(c *gin.Context) {
	job, err := api.engine.GetJob(c.Param("jobId"))
	if err != nil {
		SendEngineError(c, "get job", err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobsHandler handles requests to list jobs for an index
func (api *API) ListJobsHandler(c *gin.Context) {
	indexName := c.Param("indexName")

	var statusFilter *model.JobStatus
	if statusParam := c.Query("status"); statusParam != "" {
		status, err := model.ParseJobStatus(statusParam)
		if err != nil {
			result := newValidationResult()
			result.AddError("status", "Unknown job status '"+statusParam+"'")
			SendValidationError(c, result)
			return
		}
		statusFilter = &status
	}

	jobs := api.engine.ListJobs(indexName, statusFilter)
	c.JSON(http.StatusOK, gin.H{
		"jobs":       jobs,
		"index_name": indexName,
		"total":      len(jobs),
	})
}

// CancelJobHandler asks a pending or running job to stop.
func (api *API) CancelJobHandler(c *gin.Context) {
	jobID := c.Param("jobId")
	if err := api.engine.CancelJob(jobID); err != nil {
		SendEngineError(c, "cancel job", err)
		return
	}
	job, err := api.engine.GetJob(jobID)
	if err != nil {
		SendEngineError(c, "get job", err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// GetJobMetricsHandler returns the job counters.
func (api *API) GetJobMetricsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, api.engine.JobMetrics())
}
