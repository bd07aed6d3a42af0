package quiz

import (
	"sync"
	"time"

	"github.com/jdvalen/recuerdo/internal/domain"
)

// SessionStore abstracts session storage so the state machine never
// touches a shared global map directly.
type SessionStore interface {
	// Get retrieves a session by id.
	Get(id string) (*domain.Session, bool)

	// Put stores or replaces a session.
	Put(session *domain.Session)

	// Delete removes a session.
	Delete(id string)

	// Len returns the number of stored sessions.
	Len() int

	// DeleteOlderThan removes sessions started before the cutoff and
	// returns the ids that were removed.
	DeleteOlderThan(cutoff time.Time) []string
}

// MemoryStore is the in-process SessionStore. Sessions are lost on
// restart, which is acceptable for this system.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.Session)}
}

// Get retrieves a session by id.
func (s *MemoryStore) Get(id string) (*domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Put stores or replaces a session.
func (s *MemoryStore) Put(session *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

// Delete removes a session.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// DeleteOlderThan removes sessions started before the cutoff.
func (s *MemoryStore) DeleteOlderThan(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for id, session := range s.sessions {
		if session.StartedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}
