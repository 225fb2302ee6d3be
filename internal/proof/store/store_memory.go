package store

import (
	"context"
	"sync"
	"time"

	"formproof/internal/proof/models"
)

// InMemoryStore keeps proof sessions in a map. Callers receive copies so a
// session can only change through Save.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.ProofSession
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*models.ProofSession)}
}

// Save inserts or replaces a session.
func (s *InMemoryStore) Save(_ context.Context, session *models.ProofSession) error {
	if session == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

// FindByID returns ErrNotFound for unknown ids.
func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.ProofSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return session.Clone(), nil
}

// DeleteExpiredBefore removes sessions whose ExpiresAt is before cutoff. It
// returns how many were removed and their define ids, so dependent caches
// can be evicted.
func (s *InMemoryStore) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		deleted   int
		defineIDs []string
	)
	for id, session := range s.sessions {
		if session.ExpiresAt.Before(cutoff) {
			if session.DefineID != "" {
				defineIDs = append(defineIDs, session.DefineID)
			}
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted, defineIDs, nil
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
