package engine

import (
	"context"
	"log"

	"github.com/gcbaptista/go-dupfinder/internal/errors"
	"github.com/gcbaptista/go-dupfinder/internal/session"
	"github.com/gcbaptista/go-dupfinder/services"
)

// GenericReportError is shown in place of a report that could not be built.
const GenericReportError = "Error has occurred. Staff has been notified."

// RequestReport builds the duplicate report of the session's active record
// from the matrix's live bucket state, stores it in the session and returns
// it. Any failure is logged with the record key and replaced by
// GenericReportError.
func (e *Engine) RequestReport(ctx context.Context, sess *session.Session) string {
	text, err := e.buildReport(ctx, sess)
	if err != nil {
		log.Printf("Error building report for record key '%s': %v", sess.RecordID, err)
		text = GenericReportError
	}
	sess.Report = text
	return text
}

func (e *Engine) buildReport(ctx context.Context, sess *session.Session) (string, error) {
	rec, err := e.activeRecord(ctx, sess)
	if err != nil {
		return "", err
	}
	if rec.MatrixID == "" {
		return "", errors.NewMatrixNotFoundError("")
	}

	text, err := e.reporter.Report(ctx, rec.MatrixID, rec.ID)
	if err != nil {
		return "", err
	}
	sess.IndexingDone = rec.IndexingDone
	log.Printf("Report for record '%s' (indexing done: %t): %s", rec.ID, rec.IndexingDone, text)
	return text, nil
}

// Status polls the session's active record and folds its indexing flags into
// the session. A session without a record is not an error.
func (e *Engine) Status(ctx context.Context, sess *session.Session) (services.StatusView, error) {
	view := services.StatusView{
		SessionID:     sess.ID,
		Authenticated: sess.HasCredential(),
		Status:        sess.Status,
		Fetched:       sess.Fetched,
		Tweets:        sess.Tweets,
		Report:        sess.Report,
	}

	rec, err := e.activeRecord(ctx, sess)
	if err != nil {
		if errors.Is(err, errors.ErrRecordNotFound) {
			return view, nil
		}
		return view, err
	}

	sess.IndexingDone = rec.IndexingDone
	view.RecordID = rec.ID
	view.MatrixID = rec.MatrixID
	view.Indexing = rec.Indexing
	view.IndexingDone = rec.IndexingDone
	return view, nil
}
