// Package lsh defines the locality-sensitive hashing engine that documents are
// indexed into, and provides an in-process implementation of it.
//
// The engine is an external collaborator of the duplicate finder: the rest of
// the service only creates matrices, adds documents to them, reads back the
// bucket assignments and purges them.
package lsh

import (
	"context"

	"github.com/gcbaptista/go-dupfinder/model"
)

// Default matrix parameters used when indexing tweets.
const (
	DefaultRows          = 5
	DefaultBands         = 15
	DefaultShingleType   = "c4"
	DefaultMinhashModulo = 7001
)

// Params are the fixed creation parameters of a matrix.
type Params struct {
	Filename      string // human readable label of the indexed run
	Source        string // kind of documents, e.g. "tweets"
	FileKey       string // identifier of the owning tracking record
	Rows          int    // rows per band
	Bands         int    // number of bands
	ShingleType   string // shingle scheme, e.g. "c4"
	MinhashModulo int    // modulo applied to minhash values
}

// DefaultParams returns the parameters used for tweet runs.
func DefaultParams() Params {
	return Params{
		Source:        "tweets",
		Rows:          DefaultRows,
		Bands:         DefaultBands,
		ShingleType:   DefaultShingleType,
		MinhashModulo: DefaultMinhashModulo,
	}
}

// Engine allocates and locates matrices.
type Engine interface {
	// CreateMatrix allocates a new matrix and returns its identifier.
	// It fails with errors.ErrIndexingUnavailable when no matrix can be allocated.
	CreateMatrix(ctx context.Context, params Params) (string, error)
	// FindMatrix returns the matrix with the given identifier or errors.ErrMatrixNotFound.
	FindMatrix(ctx context.Context, matrixID string) (Matrix, error)
	// PurgeMatrix removes a matrix and all its rows. Purging an unknown matrix is a no-op.
	PurgeMatrix(ctx context.Context, matrixID string) error
}

// Matrix is a single LSH structure holding one row per document.
type Matrix interface {
	ID() string
	Params() Params
	// CreateDocument shingles text, computes its signature and records its buckets.
	CreateDocument(ctx context.Context, docID, text string, stats map[string]any) error
	// FindChildRows returns the bucket assignments of every document, in insertion order.
	FindChildRows(ctx context.Context) ([]model.BucketAssignment, error)
}
