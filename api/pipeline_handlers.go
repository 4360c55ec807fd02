package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-dupfinder/internal/errors"
)

// FetchHandler runs a bounded fetch for the session, saves it and queues its indexing.
func (api *API) FetchHandler(c *gin.Context) {
	sess := currentSession(c)

	handle, err := api.finder.StartFetch(c.Request.Context(), sess)
	if err != nil {
		if errors.Is(err, errors.ErrNotAuthenticated) {
			SendNotAuthenticatedError(c)
			return
		}
		SendServiceError(c, "fetch", err)
		return
	}
	sess.UpdatedAt = time.Now()

	if handle.JobID == "" {
		c.JSON(http.StatusOK, gin.H{
			"message": "Statuses fetched but indexing could not be started",
			"run":     handle,
			"status":  sess.Status,
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Statuses fetched, indexing started",
		"run":     handle,
		"job_id":  handle.JobID,
		"status":  sess.Status,
	})
}

// CalcHandler queues indexing of the session's active record.
func (api *API) CalcHandler(c *gin.Context) {
	sess := currentSession(c)

	jobID, err := api.finder.RequestCalc(c.Request.Context(), sess)
	if err != nil {
		SendServiceError(c, "calc", err)
		return
	}
	sess.UpdatedAt = time.Now()

	c.JSON(http.StatusAccepted, gin.H{
		"status":    "accepted",
		"message":   "Indexing started for record '" + sess.RecordID + "'",
		"job_id":    jobID,
		"record_id": sess.RecordID,
	})
}

// ReportHandler builds the duplicate report of the session's active record.
// Report failures are rendered as a fixed message, never as an error status.
func (api *API) ReportHandler(c *gin.Context) {
	sess := currentSession(c)

	text := api.finder.RequestReport(c.Request.Context(), sess)
	sess.UpdatedAt = time.Now()

	c.JSON(http.StatusOK, gin.H{
		"record_id":     sess.RecordID,
		"indexing_done": sess.IndexingDone,
		"report":        text,
	})
}
