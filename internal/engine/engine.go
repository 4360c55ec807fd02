// Package engine wires the fetch pipeline, the indexing job queue and the
// duplicate reporter into the operations exposed to the HTTP layer.
package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/gcbaptista/go-dupfinder/config"
	"github.com/gcbaptista/go-dupfinder/internal/errors"
	"github.com/gcbaptista/go-dupfinder/internal/fetch"
	"github.com/gcbaptista/go-dupfinder/internal/indexing"
	"github.com/gcbaptista/go-dupfinder/internal/jobs"
	"github.com/gcbaptista/go-dupfinder/internal/lsh"
	"github.com/gcbaptista/go-dupfinder/internal/report"
	"github.com/gcbaptista/go-dupfinder/internal/session"
	"github.com/gcbaptista/go-dupfinder/model"
	"github.com/gcbaptista/go-dupfinder/services"
	"github.com/gcbaptista/go-dupfinder/store"
)

// Engine orchestrates fetch runs, indexing jobs and reports.
// It implements the services.DuplicateFinder interface.
type Engine struct {
	settings   config.Settings
	store      store.Store
	matrices   lsh.Engine
	source     fetch.Source
	jobManager *jobs.Manager
	indexer    *indexing.Service
	reporter   *report.Reporter
}

var _ services.DuplicateFinder = (*Engine)(nil)

// NewEngine creates an engine over the given collaborators and starts its job workers.
func NewEngine(settings config.Settings, st store.Store, matrices lsh.Engine, source fetch.Source) (*Engine, error) {
	if st == nil || matrices == nil || source == nil {
		return nil, fmt.Errorf("store, lsh engine and source are required")
	}

	indexer, err := indexing.NewService(matrices, st, settings.Indexing.ReportEvery)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexing service: %w", err)
	}

	eng := &Engine{
		settings:   settings,
		store:      st,
		matrices:   matrices,
		source:     source,
		jobManager: jobs.NewManager(settings.Indexing.Workers, settings.Indexing.QueueSize),
		indexer:    indexer,
		reporter:   report.NewReporter(matrices, st),
	}
	eng.jobManager.Start()
	return eng, nil
}

// Open builds an engine from settings: the configured store, an in-process
// LSH engine and the configured status source.
func Open(settings config.Settings) (*Engine, error) {
	st, err := store.Open(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// Matrices live in this process, so no claim from an earlier run can finish.
	released, err := st.ReleaseStaleClaims(context.Background())
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to release stale indexing claims: %w", err)
	}
	if released > 0 {
		log.Printf("Released %d stale indexing claims", released)
	}
	eng, err := NewEngine(settings, st, lsh.NewMemoryEngine(settings.Indexing.MaxMatrices), fetch.NewSource(settings.Fetch))
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return eng, nil
}

// Stop shuts down the job workers and closes the store.
func (e *Engine) Stop() error {
	e.jobManager.Stop()
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	log.Printf("Engine stopped")
	return nil
}

// GetJob retrieves a job by ID.
func (e *Engine) GetJob(jobID string) (*model.Job, error) {
	return e.jobManager.GetJob(jobID)
}

// ListJobs lists the jobs of a tracking record.
func (e *Engine) ListJobs(recordID string, status *model.JobStatus) []*model.Job {
	return e.jobManager.ListJobs(recordID, status)
}

// GetJobMetrics returns job performance metrics.
func (e *Engine) GetJobMetrics() jobs.JobMetricsData {
	return e.jobManager.GetMetrics()
}

// GetJobSuccessRate returns the job success rate.
func (e *Engine) GetJobSuccessRate() float64 {
	return e.jobManager.GetJobSuccessRate()
}

// GetCurrentWorkload returns the number of pending and running jobs.
func (e *Engine) GetCurrentWorkload() int64 {
	return e.jobManager.GetCurrentWorkload()
}

// activeRecord returns the session's record, falling back to the user's latest one.
func (e *Engine) activeRecord(ctx context.Context, sess *session.Session) (*model.TrackingRecord, error) {
	if sess.RecordID != "" {
		return e.store.GetRecord(ctx, sess.RecordID)
	}
	if sess.User.ID == "" {
		return nil, errors.NewRecordNotFoundError("")
	}
	rec, err := e.store.LatestForUser(ctx, sess.User.ID)
	if err != nil {
		return nil, err
	}
	sess.RecordID = rec.ID
	return rec, nil
}
