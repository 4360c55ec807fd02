package model

import (
	"fmt"
	"time"
)

// User is the identity of the caller, supplied by the authentication layer.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

// TrackingRecord represents one fetch-and-index run for one user.
// Only the latest record per user (by AsOf) is active; creating a new one
// supersedes and purges the previous one.
type TrackingRecord struct {
	ID           string    `json:"id"`
	AsOf         time.Time `json:"as_of"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Nickname     string    `json:"nickname"`
	MatrixID     string    `json:"matrix_id,omitempty"`
	Indexing     bool      `json:"indexing"`
	IndexingDone bool      `json:"indexing_done"`
}

// NewTrackingRecord creates a record for the given user stamped with asOf.
// The ID is assigned by the store.
func NewTrackingRecord(user User, asOf time.Time) *TrackingRecord {
	return &TrackingRecord{
		AsOf:     asOf.UTC(),
		UserID:   user.ID,
		Email:    user.Email,
		Nickname: user.Nickname,
	}
}

// Filename returns a human readable label for the run, used to name its LSH matrix.
func (r *TrackingRecord) Filename() string {
	return fmt.Sprintf("user_id: %s, email: %s, nickname: %s, asof: %s",
		r.UserID, r.Email, r.Nickname, r.AsOf.UTC().Format("2006-01-02T15:04:05"))
}
