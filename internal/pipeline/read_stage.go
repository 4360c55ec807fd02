package pipeline

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gcbaptista/go-dupfinder/internal/errors"
	"github.com/gcbaptista/go-dupfinder/internal/fetch"
	"github.com/gcbaptista/go-dupfinder/internal/lsh"
	"github.com/gcbaptista/go-dupfinder/internal/session"
	"github.com/gcbaptista/go-dupfinder/model"
	"github.com/gcbaptista/go-dupfinder/store"
)

// bannerLayout renders the fetch time in the status banner.
const bannerLayout = "Mon, 02 Jan 2006 15:04:05 -0700"

// ReadStage reads a bounded batch of statuses for one session and, on a saving
// Close, replaces the user's previous run with it.
type ReadStage struct {
	fetcher     *fetch.Fetcher
	store       store.Store
	matrices    lsh.Engine
	sess        *session.Session
	reportEvery int
	now         func() time.Time

	docs   []model.Document
	cursor int
	count  int
}

// NewReadStage creates a read stage bound to sess. A reportEvery of zero or
// less uses DefaultReportEvery.
func NewReadStage(fetcher *fetch.Fetcher, st store.Store, matrices lsh.Engine, sess *session.Session, reportEvery int) *ReadStage {
	if reportEvery <= 0 {
		reportEvery = DefaultReportEvery
	}
	return &ReadStage{
		fetcher:     fetcher,
		store:       st,
		matrices:    matrices,
		sess:        sess,
		reportEvery: reportEvery,
		now:         time.Now,
	}
}

// Open fetches the full bounded batch and materializes it as documents with
// local ids 1..n in fetch order.
func (s *ReadStage) Open(ctx context.Context) error {
	if !s.sess.HasCredential() {
		log.Printf("Read stage for session %s has no upstream credential", s.sess.ID)
		return errors.ErrNotAuthenticated
	}

	texts := s.fetcher.Fetch(ctx, s.sess.Credential)

	s.docs = make([]model.Document, len(texts))
	for i, text := range texts {
		s.docs[i] = model.Document{ID: strconv.Itoa(i + 1), Text: text}
	}
	s.cursor = 0
	s.count = len(s.docs)

	log.Printf("Read stage opened with %d statuses for session %s", s.count, s.sess.ID)
	return nil
}

// Count returns the number of documents materialized by Open.
func (s *ReadStage) Count() int {
	return s.count
}

// GetNext implements Stage.
func (s *ReadStage) GetNext() (model.Document, error) {
	if s.cursor >= s.count {
		return model.Document{}, errors.ErrExhausted
	}

	doc := s.docs[s.cursor]
	if s.cursor%s.reportEvery == 0 {
		log.Printf("Read stage GetNext (%d) id=%s text=%q", s.cursor, doc.ID, doc.Text)
	}
	s.cursor++
	return doc, nil
}

// Close implements Stage. A saving Close supersedes the user's latest record
// and its documents in one store operation, then purges the superseded matrix.
func (s *ReadStage) Close(ctx context.Context, save bool) error {
	if save {
		if err := s.save(ctx); err != nil {
			return err
		}
	}

	texts := make([]string, len(s.docs))
	for i, doc := range s.docs {
		texts[i] = doc.Text
	}

	s.sess.Status = "Tweets as of " + s.now().UTC().Format(bannerLayout) + " GMT"
	s.sess.Tweets = strings.Join(texts, "\n")
	s.sess.Fetched = true
	s.sess.IndexingDone = false
	s.sess.Report = ""
	s.sess.UpdatedAt = s.now()

	log.Printf("Read stage closed after %d statuses (save: %t)", len(s.docs), save)
	return nil
}

func (s *ReadStage) save(ctx context.Context) error {
	record := model.NewTrackingRecord(s.sess.User, s.now())

	superseded, err := s.store.Supersede(ctx, record, s.docs)
	if err != nil {
		return fmt.Errorf("failed to save fetched statuses: %w", err)
	}
	s.sess.RecordID = record.ID

	if superseded == nil {
		return nil
	}
	log.Printf("Tracking record '%s' superseded by '%s' for user '%s'", superseded.ID, record.ID, record.UserID)

	if superseded.MatrixID != "" {
		// The store change is already committed; a leftover matrix is unreachable and only logged.
		if err := s.matrices.PurgeMatrix(ctx, superseded.MatrixID); err != nil {
			log.Printf("Warning: failed to purge matrix '%s' of superseded record '%s': %v",
				superseded.MatrixID, superseded.ID, err)
		}
	}
	return nil
}
