package model

// BucketID identifies one band bucket produced by the LSH engine.
type BucketID uint64

// BucketAssignment lists the buckets a single document landed in.
type BucketAssignment struct {
	DocID   string     `json:"doc_id"`
	Buckets []BucketID `json:"buckets"`
}

// DuplicateSet is a group of documents sharing exactly the same bucket co-membership.
// It is derived on every report request and never persisted.
type DuplicateSet struct {
	SetHash string      `json:"set_hash"`
	Members []DocKey    `json:"members"` // sorted by serialized key
	Buckets []BucketID  `json:"buckets"` // contributing buckets, in discovery order
	Groups  []TextGroup `json:"groups"`  // members grouped by exact text
}

// TextGroup lists the documents within a DuplicateSet that share one exact text.
type TextGroup struct {
	DocIDs []string `json:"doc_ids"`
	Text   string   `json:"text"`
}
