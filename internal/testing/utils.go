// Package testing provides utilities and helpers for testing the duplicate finder.
package testing

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-dupfinder/config"
	"github.com/gcbaptista/go-dupfinder/internal/engine"
	"github.com/gcbaptista/go-dupfinder/internal/fetch"
	"github.com/gcbaptista/go-dupfinder/internal/lsh"
	"github.com/gcbaptista/go-dupfinder/model"
	"github.com/gcbaptista/go-dupfinder/services"
	"github.com/gcbaptista/go-dupfinder/store"
)

// TestUser returns a user with a predictable email and nickname derived from id.
func TestUser(id string) model.User {
	return model.User{ID: id, Email: id + "@example.com", Nickname: id}
}

// CreateTestEngine creates an in-memory engine that streams texts, stopped on cleanup.
func CreateTestEngine(t *testing.T, texts ...string) *engine.Engine {
	t.Helper()
	return CreateTestEngineWithStore(t, store.NewMemoryStore(), texts...)
}

// CreateTestEngineWithStore is CreateTestEngine over a caller-supplied store.
func CreateTestEngineWithStore(t *testing.T, st store.Store, texts ...string) *engine.Engine {
	t.Helper()

	eng, err := engine.NewEngine(config.Default(), st, lsh.NewMemoryEngine(0), fetch.SliceSource(texts))
	require.NoError(t, err, "Failed to create test engine")

	t.Cleanup(func() {
		if err := eng.Stop(); err != nil {
			t.Logf("Warning: failed to stop test engine: %v", err)
		}
	})

	return eng
}

// CreateTestSQLiteStore opens a SQLite store in a per-test temporary directory.
func CreateTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	st, err := store.OpenSQLiteStore(filepath.Join(t.TempDir(), "dupfinder.db"))
	require.NoError(t, err, "Failed to open test SQLite store")
	t.Cleanup(func() { _ = st.Close() })

	return st
}

// SeedRecord supersedes user's active record with one holding texts as documents 1..n.
func SeedRecord(t *testing.T, st store.Store, user model.User, texts ...string) *model.TrackingRecord {
	t.Helper()

	docs := make([]model.Document, len(texts))
	for i, text := range texts {
		docs[i] = model.Document{ID: strconv.Itoa(i + 1), Text: text}
	}

	rec := model.NewTrackingRecord(user, time.Now())
	_, err := st.Supersede(context.Background(), rec, docs)
	require.NoError(t, err, "Failed to seed tracking record")

	return rec
}

// JobPollingOptions configures job polling behavior
type JobPollingOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
	LogProgress  bool
}

// DefaultJobPollingOptions returns sensible defaults for job polling
func DefaultJobPollingOptions() JobPollingOptions {
	return JobPollingOptions{
		Timeout:      5 * time.Second,
		PollInterval: 10 * time.Millisecond,
		LogProgress:  true,
	}
}

// WaitForJobCompletion polls a job until it completes or times out
func WaitForJobCompletion(t *testing.T, jobManager services.JobManager, jobID string, opts JobPollingOptions) *model.Job {
	t.Helper()

	timeout := time.After(opts.Timeout)
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			t.Fatalf("Job %s did not complete within %v timeout", jobID, opts.Timeout)
			return nil
		case <-ticker.C:
			job, err := jobManager.GetJob(jobID)
			require.NoError(t, err, "Failed to get job status")

			switch job.Status {
			case model.JobStatusCompleted:
				if opts.LogProgress && job.CompletedAt != nil {
					t.Logf("Job %s completed successfully in %v", jobID, job.CompletedAt.Sub(job.CreatedAt))
				}
				return job
			case model.JobStatusFailed, model.JobStatusCancelled:
				t.Fatalf("Job %s ended as %s: %s", jobID, job.Status, job.Error)
				return nil
			case model.JobStatusRunning:
				if opts.LogProgress && job.Progress != nil {
					t.Logf("Job %s progress: %d/%d - %s",
						jobID,
						job.Progress.Current,
						job.Progress.Total,
						job.Progress.Message)
				}
			}
		}
	}
}

// AssertJobCompleted verifies that an indexing job completed successfully for a record
func AssertJobCompleted(t *testing.T, job *model.Job, expectedRecord string) {
	t.Helper()
	assert.Equal(t, model.JobStatusCompleted, job.Status, "Job should be completed")
	assert.Equal(t, model.JobTypeIndexDocuments, job.Type, "Job type should match")
	assert.Equal(t, expectedRecord, job.RecordID, "Job record ID should match")
	assert.NotNil(t, job.CompletedAt, "Job should have completion timestamp")
	assert.Empty(t, job.Error, "Job should not have error")
}
