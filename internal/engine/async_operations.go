package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/gcbaptista/go-dupfinder/internal/errors"
	"github.com/gcbaptista/go-dupfinder/internal/lsh"
	"github.com/gcbaptista/go-dupfinder/internal/session"
	"github.com/gcbaptista/go-dupfinder/model"
)

// RequestCalc creates a matrix for the session's active record, claims the
// record for indexing and queues the indexing job. It returns the job ID.
//
// Each step compensates for the ones before it: a failed claim purges the new
// matrix, a failed enqueue releases the claim and purges the matrix. A job
// cancelled in the queue by shutdown does the same, and a failed job releases
// and purges from inside the indexer.
func (e *Engine) RequestCalc(ctx context.Context, sess *session.Session) (string, error) {
	rec, err := e.activeRecord(ctx, sess)
	if err != nil {
		return "", err
	}
	if rec.Indexing {
		return "", errors.NewAlreadyIndexingError(rec.ID)
	}

	params := e.matrixParams(rec)
	matrixID, err := e.matrices.CreateMatrix(ctx, params)
	if err != nil {
		if !errors.Is(err, errors.ErrIndexingUnavailable) {
			err = errors.NewIndexingUnavailableError("matrix creation failed", err)
		}
		log.Printf("Error creating matrix for record '%s': %v", rec.ID, err)
		return "", err
	}

	if err := e.store.ClaimIndexing(ctx, rec.ID, matrixID); err != nil {
		e.purgeMatrix(ctx, matrixID)
		return "", err
	}
	if rec.MatrixID != "" && rec.MatrixID != matrixID {
		// The record is being indexed again; its previous matrix is no longer referenced.
		e.purgeMatrix(ctx, rec.MatrixID)
	}

	recordID := rec.ID
	jobID := e.jobManager.CreateJob(model.JobTypeIndexDocuments, recordID, map[string]string{
		"matrix_id": matrixID,
		"filename":  params.Filename,
	})

	err = e.jobManager.EnqueueWithCancel(jobID, func(ctx context.Context, job *model.Job) error {
		return e.indexer.Run(ctx, recordID, matrixID, func(current, total int, message string) {
			e.jobManager.UpdateJobProgress(job.ID, current, total, message)
		})
	}, func(*model.Job) {
		e.abandonClaim(context.Background(), recordID, matrixID)
	})
	if err != nil {
		e.abandonClaim(ctx, recordID, matrixID)
		return "", fmt.Errorf("failed to start indexing job: %w", err)
	}

	sess.IndexingDone = false
	log.Printf("Queued indexing job %s for record '%s' into matrix %s", jobID, recordID, matrixID)
	return jobID, nil
}

func (e *Engine) matrixParams(rec *model.TrackingRecord) lsh.Params {
	params := lsh.DefaultParams()
	params.Filename = rec.Filename()
	params.FileKey = rec.ID
	params.Rows = e.settings.Indexing.Rows
	params.Bands = e.settings.Indexing.Bands
	params.ShingleType = e.settings.Indexing.ShingleType
	params.MinhashModulo = e.settings.Indexing.MinhashModulo
	return params
}

// abandonClaim releases the record's indexing claim and purges the matrix it was
// to be indexed into.
func (e *Engine) abandonClaim(ctx context.Context, recordID, matrixID string) {
	if err := e.store.ReleaseIndexing(ctx, recordID); err != nil {
		log.Printf("Warning: failed to release indexing claim on record '%s': %v", recordID, err)
	}
	e.purgeMatrix(ctx, matrixID)
}

func (e *Engine) purgeMatrix(ctx context.Context, matrixID string) {
	if err := e.matrices.PurgeMatrix(ctx, matrixID); err != nil {
		log.Printf("Warning: failed to purge matrix %s: %v", matrixID, err)
	}
}
