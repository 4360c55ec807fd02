package services

import (
	"context"

	"github.com/gcbaptista/go-dupfinder/internal/session"
	"github.com/gcbaptista/go-dupfinder/model"
)

// RunHandle describes the outcome of one fetch run.
type RunHandle struct {
	RecordID      string `json:"record_id,omitempty"`
	Fetched       int    `json:"fetched"`
	JobID         string `json:"job_id,omitempty"`
	IndexingError string `json:"indexing_error,omitempty"` // set when the fetch was saved but indexing could not be dispatched
}

// StatusView is the client-facing state of a session and its active record.
type StatusView struct {
	SessionID     string `json:"session_id"`
	Authenticated bool   `json:"authenticated"`
	Status        string `json:"status,omitempty"`
	Fetched       bool   `json:"fetched"`
	RecordID      string `json:"record_id,omitempty"`
	MatrixID      string `json:"matrix_id,omitempty"`
	Indexing      bool   `json:"indexing"`
	IndexingDone  bool   `json:"indexing_done"`
	Tweets        string `json:"tweets,omitempty"`
	Report        string `json:"report,omitempty"`
}

// Fetcher runs the fetch pipeline for a session.
type Fetcher interface {
	StartFetch(ctx context.Context, sess *session.Session) (RunHandle, error)
}

// Calculator dispatches indexing of a session's active record. Returns the job ID.
type Calculator interface {
	RequestCalc(ctx context.Context, sess *session.Session) (string, error)
}

// Reporter renders the duplicate report of a session's active record.
type Reporter interface {
	RequestReport(ctx context.Context, sess *session.Session) string
}

// JobManager defines operations for inspecting background jobs
type JobManager interface {
	GetJob(jobID string) (*model.Job, error)
	ListJobs(recordID string, status *model.JobStatus) []*model.Job
}

// DuplicateFinder is everything the HTTP layer needs from the service.
type DuplicateFinder interface {
	Fetcher
	Calculator
	Reporter
	JobManager
	Status(ctx context.Context, sess *session.Session) (StatusView, error)
}
