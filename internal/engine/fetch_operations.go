package engine

import (
	"context"
	"log"

	"github.com/gcbaptista/go-dupfinder/internal/fetch"
	"github.com/gcbaptista/go-dupfinder/internal/pipeline"
	"github.com/gcbaptista/go-dupfinder/internal/session"
	"github.com/gcbaptista/go-dupfinder/services"
)

// StartFetch runs the read stage to completion for sess and dispatches
// indexing of the saved run. An Open failure (errors.ErrNotAuthenticated)
// leaves the session without a credential. A saved run whose indexing could
// not be dispatched is still returned, with IndexingError set.
func (e *Engine) StartFetch(ctx context.Context, sess *session.Session) (services.RunHandle, error) {
	fetcher := fetch.NewFetcher(e.source, e.settings.Fetch.Limit)
	stage := pipeline.NewReadStage(fetcher, e.store, e.matrices, sess, e.settings.Fetch.ReportEvery)

	if err := pipeline.Drive(ctx, stage, sess); err != nil {
		log.Printf("Fetch for session %s failed: %v", sess.ID, err)
		return services.RunHandle{}, err
	}

	handle := services.RunHandle{RecordID: sess.RecordID, Fetched: stage.Count()}

	jobID, err := e.RequestCalc(ctx, sess)
	if err != nil {
		log.Printf("Error dispatching indexing for record '%s': %v", sess.RecordID, err)
		handle.IndexingError = err.Error()
		return handle, nil
	}
	handle.JobID = jobID
	return handle, nil
}
