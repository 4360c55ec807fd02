// Package pipeline implements the pull-based read stage that turns a bounded
// fetch into persisted documents.
package pipeline

import (
	"context"

	"github.com/gcbaptista/go-dupfinder/model"
)

// DefaultReportEvery is how often GetNext logs a progress observation.
const DefaultReportEvery = 40

// Stage is a pull iterator with an explicit Open, GetNext, Close lifecycle.
type Stage interface {
	// Open acquires the stage's input. Nothing is persisted yet.
	Open(ctx context.Context) error
	// GetNext returns the next document, or errors.ErrExhausted once every
	// document has been returned. Exhaustion is sticky.
	GetNext() (model.Document, error)
	// Close releases the stage; when save is true its output is persisted.
	Close(ctx context.Context, save bool) error
}
