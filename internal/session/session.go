// Package session holds the per-client state that flows through a fetch,
// index and report cycle.
package session

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/gcbaptista/go-dupfinder/model"
)

// Session is the explicit context object passed to the pipeline stage and the
// report operation in place of ambient mutable state.
type Session struct {
	mu sync.Mutex

	ID         string
	User       model.User
	Credential *oauth2.Token // upstream stream credential; nil when logged out

	Status       string // banner shown to the client
	Tweets       string // joined text of the last fetch
	Fetched      bool
	IndexingDone bool
	RecordID     string // active tracking record
	Report       string // last rendered report

	UpdatedAt time.Time
}

// Lock serializes requests acting on the session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// HasCredential reports whether the session holds a usable upstream credential.
func (s *Session) HasCredential() bool {
	return s.Credential != nil && s.Credential.Valid()
}

// ClearCredential drops the upstream credential.
func (s *Session) ClearCredential() {
	s.Credential = nil
}

// DefaultIdleTimeout is how long a session may go unused before it is evicted.
const DefaultIdleTimeout = time.Hour

type entry struct {
	sess     *Session
	lastSeen time.Time
}

// Store keeps sessions in memory keyed by ID and evicts idle ones.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*entry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Get returns the session with id, creating a fresh one when id is unknown or empty.
// The second result is false when a new session was created. Either way the
// session counts as seen now.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if id != "" {
		if e, exists := s.sessions[id]; exists {
			e.lastSeen = now
			return e.sess, true
		}
	}

	sess := &Session{ID: uuid.New().String(), UpdatedAt: now}
	s.sessions[sess.ID] = &entry{sess: sess, lastSeen: now}
	return sess, false
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// EvictIdle deletes every session not seen within maxIdle and returns how many it removed.
func (s *Store) EvictIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	evicted := 0
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		log.Printf("Evicted %d idle sessions", evicted)
	}
	return evicted
}

// StartCleanup evicts sessions idle for longer than maxIdle, checking every interval, until Stop.
func (s *Store) StartCleanup(interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.EvictIdle(maxIdle)
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop ends the cleanup routine.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}
