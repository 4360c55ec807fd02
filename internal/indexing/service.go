// Package indexing runs the asynchronous pass that adds a tracking record's
// documents to its LSH matrix.
package indexing

import (
	"context"
	"fmt"
	"log"

	"github.com/gcbaptista/go-dupfinder/internal/lsh"
	"github.com/gcbaptista/go-dupfinder/internal/tokenizer"
	"github.com/gcbaptista/go-dupfinder/store"
)

// DefaultReportEvery is how often the indexing pass logs its progress.
const DefaultReportEvery = 80

// ProgressFunc receives the number of documents indexed so far.
type ProgressFunc func(current, total int, message string)

// Service indexes stored documents into LSH matrices.
type Service struct {
	matrices    lsh.Engine
	store       store.Store
	reportEvery int
}

// NewService creates a new indexing Service.
// A reportEvery of zero or less uses DefaultReportEvery.
func NewService(matrices lsh.Engine, st store.Store, reportEvery int) (*Service, error) {
	if matrices == nil {
		return nil, fmt.Errorf("lsh engine cannot be nil")
	}
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if reportEvery <= 0 {
		reportEvery = DefaultReportEvery
	}
	return &Service{
		matrices:    matrices,
		store:       st,
		reportEvery: reportEvery,
	}, nil
}

// Run indexes every document of recordID into matrixID and then marks the
// record done. The record must already be claimed for indexing. Any failure
// aborts the pass, releases the claim and purges the partial matrix, leaving
// IndexingDone false.
func (s *Service) Run(ctx context.Context, recordID, matrixID string, progress ProgressFunc) error {
	if err := s.run(ctx, recordID, matrixID, progress); err != nil {
		// The job context may already be cancelled; cleanup must still land.
		cleanupCtx := context.WithoutCancel(ctx)
		if releaseErr := s.store.ReleaseIndexing(cleanupCtx, recordID); releaseErr != nil {
			log.Printf("Warning: failed to release indexing claim on record '%s': %v", recordID, releaseErr)
		}
		if purgeErr := s.matrices.PurgeMatrix(cleanupCtx, matrixID); purgeErr != nil {
			log.Printf("Warning: failed to purge matrix %s: %v", matrixID, purgeErr)
		}
		return err
	}
	return nil
}

func (s *Service) run(ctx context.Context, recordID, matrixID string, progress ProgressFunc) error {
	matrix, err := s.matrices.FindMatrix(ctx, matrixID)
	if err != nil {
		return fmt.Errorf("failed to open matrix for record '%s': %w", recordID, err)
	}

	docs, err := s.store.ListDocuments(ctx, recordID)
	if err != nil {
		return fmt.Errorf("failed to load documents of record '%s': %w", recordID, err)
	}

	filename := matrix.Params().Filename
	log.Printf("Indexing %d documents into matrix %s (%s)", len(docs), matrixID, filename)

	total := len(docs)
	for i, doc := range docs {
		text := tokenizer.Normalize(doc.Text)
		if err := matrix.CreateDocument(ctx, doc.ID, text, map[string]any{}); err != nil {
			return fmt.Errorf("failed to index document '%s' of record '%s': %w", doc.ID, recordID, err)
		}

		count := i + 1
		if count%s.reportEvery == 0 {
			log.Printf("Indexed document count %d, id %s, text %q", count, doc.ID, text)
		}
		if progress != nil {
			progress(count, total, fmt.Sprintf("Indexed %d of %d documents", count, total))
		}
	}

	if err := s.store.CompleteIndexing(ctx, recordID, matrixID); err != nil {
		return fmt.Errorf("failed to mark record '%s' indexed: %w", recordID, err)
	}

	log.Printf("Finished indexing matrix %s (%s)", matrixID, filename)
	return nil
}
