package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/gcbaptista/go-dupfinder/internal/errors"
	"github.com/gcbaptista/go-dupfinder/internal/persistence"
	"github.com/gcbaptista/go-dupfinder/model"
)

// MemoryStore keeps records and documents in memory.
// When created with a snapshot path it loads the snapshot on open and writes it back on Close.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*model.TrackingRecord
	docs    map[string][]model.Document // record ID -> documents in fetch order
	path    string
}

var _ Store = (*MemoryStore)(nil)

// gobMemoryStoreData is a helper struct for Gob encoding/decoding MemoryStore data.
// It excludes the mutex.
type gobMemoryStoreData struct {
	Records map[string]*model.TrackingRecord
	Docs    map[string][]model.Document
}

// NewMemoryStore creates an empty in-memory store without a snapshot.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*model.TrackingRecord),
		docs:    make(map[string][]model.Document),
	}
}

// OpenMemoryStore creates a memory store backed by a gob snapshot at path.
// A missing snapshot yields an empty store.
func OpenMemoryStore(path string) (*MemoryStore, error) {
	s := NewMemoryStore()
	s.path = path

	if err := persistence.LoadGob(path, s); err != nil {
		if err == os.ErrNotExist {
			log.Printf("Info: Snapshot %s not found. Initializing empty store.", path)
			return s, nil
		}
		return nil, fmt.Errorf("failed to load store snapshot: %w", err)
	}
	log.Printf("Loaded %d tracking records from %s", len(s.records), path)
	return s, nil
}

// GobEncode implements the gob.GobEncoder interface for MemoryStore.
func (s *MemoryStore) GobEncode() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buf bytes.Buffer
	data := gobMemoryStoreData{Records: s.records, Docs: s.docs}
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return nil, fmt.Errorf("failed to gob encode store data: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface for MemoryStore.
func (s *MemoryStore) GobDecode(data []byte) error {
	decoded := gobMemoryStoreData{}
	if err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&decoded); err != nil {
		return fmt.Errorf("failed to gob decode store data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = decoded.Records
	s.docs = decoded.Docs
	if s.records == nil {
		s.records = make(map[string]*model.TrackingRecord)
	}
	if s.docs == nil {
		s.docs = make(map[string][]model.Document)
	}
	return nil
}

// LatestForUser returns the most recent record of the user.
func (s *MemoryStore) LatestForUser(_ context.Context, userID string) (*model.TrackingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := s.latestForUserUnsafe(userID)
	if latest == nil {
		return nil, errors.NewUserRecordNotFoundError(userID)
	}
	recordCopy := *latest
	return &recordCopy, nil
}

func (s *MemoryStore) latestForUserUnsafe(userID string) *model.TrackingRecord {
	var latest *model.TrackingRecord
	for _, rec := range s.records {
		if rec.UserID != userID {
			continue
		}
		if latest == nil || rec.AsOf.After(latest.AsOf) {
			latest = rec
		}
	}
	return latest
}

// GetRecord returns a copy of a record by ID.
func (s *MemoryStore) GetRecord(_ context.Context, recordID string) (*model.TrackingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[recordID]
	if !exists {
		return nil, errors.NewRecordNotFoundError(recordID)
	}
	recordCopy := *rec
	return &recordCopy, nil
}

// Supersede replaces the user's latest record under a single lock.
func (s *MemoryStore) Supersede(_ context.Context, record *model.TrackingRecord, docs []model.Document) (*model.TrackingRecord, error) {
	if record == nil || record.UserID == "" {
		return nil, errors.NewValidationError("user_id", "record must belong to a user")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var superseded *model.TrackingRecord
	if old := s.latestForUserUnsafe(record.UserID); old != nil {
		oldCopy := *old
		superseded = &oldCopy
		delete(s.docs, old.ID)
		delete(s.records, old.ID)
	}

	record.ID = uuid.New().String()
	stored := make([]model.Document, len(docs))
	for i, doc := range docs {
		doc.RecordID = record.ID
		stored[i] = doc
	}
	recordCopy := *record
	s.records[record.ID] = &recordCopy
	s.docs[record.ID] = stored

	return superseded, nil
}

// DeleteRecord removes a record and its documents.
func (s *MemoryStore) DeleteRecord(_ context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[recordID]; !exists {
		return errors.NewRecordNotFoundError(recordID)
	}
	delete(s.docs, recordID)
	delete(s.records, recordID)
	return nil
}

// ListDocuments returns a copy of the record's documents.
func (s *MemoryStore) ListDocuments(_ context.Context, recordID string) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.records[recordID]; !exists {
		return nil, errors.NewRecordNotFoundError(recordID)
	}
	docs := s.docs[recordID]
	result := make([]model.Document, len(docs))
	copy(result, docs)
	return result, nil
}

// GetDocuments resolves keys to documents.
func (s *MemoryStore) GetDocuments(_ context.Context, keys []model.DocKey) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Document, 0, len(keys))
	for _, key := range keys {
		for _, doc := range s.docs[key.RecordID] {
			if doc.ID == key.DocID {
				result = append(result, doc)
				break
			}
		}
	}
	return result, nil
}

// ClaimIndexing marks the record as being indexed into matrixID.
func (s *MemoryStore) ClaimIndexing(_ context.Context, recordID, matrixID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[recordID]
	if !exists {
		return errors.NewRecordNotFoundError(recordID)
	}
	if rec.Indexing {
		return errors.NewAlreadyIndexingError(recordID)
	}
	rec.Indexing = true
	rec.IndexingDone = false
	rec.MatrixID = matrixID
	return nil
}

// CompleteIndexing flips the record to done.
func (s *MemoryStore) CompleteIndexing(_ context.Context, recordID, matrixID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[recordID]
	if !exists {
		return errors.NewRecordNotFoundError(recordID)
	}
	rec.MatrixID = matrixID
	rec.Indexing = false
	rec.IndexingDone = true
	return nil
}

// ReleaseIndexing clears an indexing claim.
func (s *MemoryStore) ReleaseIndexing(_ context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[recordID]
	if !exists {
		return errors.NewRecordNotFoundError(recordID)
	}
	rec.Indexing = false
	rec.MatrixID = ""
	return nil
}

// ReleaseStaleClaims clears the indexing claim of every record that holds one.
func (s *MemoryStore) ReleaseStaleClaims(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	released := 0
	for _, rec := range s.records {
		if rec.Indexing {
			rec.Indexing = false
			rec.MatrixID = ""
			released++
		}
	}
	return released, nil
}

// Close writes the snapshot when the store has a path.
func (s *MemoryStore) Close() error {
	if s.path == "" {
		return nil
	}
	if err := persistence.SaveGob(s.path, s); err != nil {
		return fmt.Errorf("failed to save store snapshot: %w", err)
	}
	log.Printf("Store snapshot written to %s", s.path)
	return nil
}
