package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-dupfinder/internal/jobs"
	"github.com/gcbaptista/go-dupfinder/model"
)

// jobMetricsProvider is implemented by finders that expose job metrics.
type jobMetricsProvider interface {
	GetJobMetrics() jobs.JobMetricsData
	GetJobSuccessRate() float64
	GetCurrentWorkload() int64
}

// GetJobHandler handles requests to get job status by ID
func (api *API) GetJobHandler(c *gin.Context) {
	jobID := c.Param("jobId")

	job, err := api.finder.GetJob(jobID)
	if err != nil {
		SendJobNotFoundError(c, jobID)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobsHandler handles requests to list the jobs of a tracking record
func (api *API) ListJobsHandler(c *gin.Context) {
	recordID := c.Param("recordId")
	statusParam := c.Query("status")

	if result := ValidateJobStatus(statusParam); result.HasErrors() {
		SendStructuredValidationError(c, result)
		return
	}

	var statusFilter *model.JobStatus
	if statusParam != "" {
		status := model.JobStatus(statusParam)
		statusFilter = &status
	}

	jobList := api.finder.ListJobs(recordID, statusFilter)
	c.JSON(http.StatusOK, gin.H{
		"jobs":      jobList,
		"record_id": recordID,
		"total":     len(jobList),
	})
}

// GetJobMetricsHandler handles requests to get job performance metrics
func (api *API) GetJobMetricsHandler(c *gin.Context) {
	provider, ok := api.finder.(jobMetricsProvider)
	if !ok {
		SendError(c, http.StatusNotImplemented, ErrorCodeInternalError, "Job metrics not supported by this service")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"metrics":          provider.GetJobMetrics(),
		"success_rate":     provider.GetJobSuccessRate(),
		"current_workload": provider.GetCurrentWorkload(),
	})
}
