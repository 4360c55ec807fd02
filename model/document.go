package model

import "fmt"

// Document is a single fetched text item (a tweet) owned by a TrackingRecord.
// ID is the local sequence id assigned in fetch order, starting at 1.
type Document struct {
	RecordID string `json:"record_id"`
	ID       string `json:"id"`
	Text     string `json:"text"`
}

// Key returns the composite key identifying this document across records.
func (d Document) Key() DocKey {
	return DocKey{RecordID: d.RecordID, DocID: d.ID}
}

// DocKey identifies a document by its owning record and local id.
type DocKey struct {
	RecordID string `json:"record_id"`
	DocID    string `json:"doc_id"`
}

// String returns the stable serialized form of the key.
// Duplicate set hashes are computed over this form, so it must not change.
func (k DocKey) String() string {
	return fmt.Sprintf("TrackingRecord:%s/Document:%s", k.RecordID, k.DocID)
}
