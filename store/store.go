// Package store persists tracking records and the documents they own.
package store

import (
	"context"

	"github.com/gcbaptista/go-dupfinder/model"
)

// Store is the persistence boundary for tracking records and their documents.
// Documents are keyed by (record ID, local document ID) and are only ever
// created together with their owning record.
type Store interface {
	// LatestForUser returns the user's most recent record by AsOf, or errors.ErrRecordNotFound.
	LatestForUser(ctx context.Context, userID string) (*model.TrackingRecord, error)
	// GetRecord returns a copy of the record, or errors.ErrRecordNotFound.
	GetRecord(ctx context.Context, recordID string) (*model.TrackingRecord, error)
	// Supersede atomically deletes the user's latest record together with its
	// documents and stores record with docs in its place. The store assigns
	// record.ID and stamps each document's RecordID. It returns the superseded
	// record, or nil when the user had none.
	Supersede(ctx context.Context, record *model.TrackingRecord, docs []model.Document) (*model.TrackingRecord, error)
	// DeleteRecord removes a record and all of its documents.
	DeleteRecord(ctx context.Context, recordID string) error
	// ListDocuments returns the record's documents in fetch order.
	ListDocuments(ctx context.Context, recordID string) ([]model.Document, error)
	// GetDocuments returns the documents for keys, in key order, skipping keys that do not exist.
	GetDocuments(ctx context.Context, keys []model.DocKey) ([]model.Document, error)
	// ClaimIndexing sets indexing=true, indexing_done=false and the matrix ID,
	// only if the record is not already indexing (errors.ErrAlreadyIndexing otherwise).
	ClaimIndexing(ctx context.Context, recordID, matrixID string) error
	// CompleteIndexing records a finished pass: matrix ID set, indexing=false, indexing_done=true.
	CompleteIndexing(ctx context.Context, recordID, matrixID string) error
	// ReleaseIndexing rolls back a claim: indexing=false and the matrix ID cleared.
	ReleaseIndexing(ctx context.Context, recordID string) error
	// ReleaseStaleClaims releases every claim left by a previous process and
	// returns how many records it reset.
	ReleaseStaleClaims(ctx context.Context) (int, error)
	Close() error
}
