package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"formproof/internal/forms/models"
)

// InMemoryStore serves forms from memory. It is seeded at startup from
// FORMS_SEED_FILE when no database is configured.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[int64]*models.Form
	bySlug map[string]int64
}

// NewInMemoryStore creates a store holding forms.
func NewInMemoryStore(forms ...*models.Form) *InMemoryStore {
	s := &InMemoryStore{
		byID:   make(map[int64]*models.Form),
		bySlug: make(map[string]int64),
	}
	for _, f := range forms {
		s.Put(f)
	}
	return s
}

// LoadSeedFile reads a JSON array of forms and returns a store holding them.
func LoadSeedFile(path string) (*InMemoryStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form seed file: %w", err)
	}
	var forms []*models.Form
	if err := json.Unmarshal(raw, &forms); err != nil {
		return nil, fmt.Errorf("parse form seed file: %w", err)
	}
	seen := make(map[int64]bool, len(forms))
	for i, f := range forms {
		if f == nil || f.ID <= 0 {
			return nil, fmt.Errorf("form seed entry %d: id must be positive", i)
		}
		if seen[f.ID] {
			return nil, fmt.Errorf("form seed entry %d: duplicate id %d", i, f.ID)
		}
		seen[f.ID] = true
	}
	return NewInMemoryStore(forms...), nil
}

// Put inserts or replaces a form.
func (s *InMemoryStore) Put(f *models.Form) {
	if f == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byID[f.ID]; ok && old.Slug != "" {
		delete(s.bySlug, normalizeSlug(old.Slug))
	}
	s.byID[f.ID] = f
	if slug := normalizeSlug(f.Slug); slug != "" {
		s.bySlug[slug] = f.ID
	}
}

// FindByID returns the form with the given id.
func (s *InMemoryStore) FindByID(_ context.Context, id int64) (*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return f, nil
}

// FindBySlug returns the form published under slug. Slugs match case
// insensitively.
func (s *InMemoryStore) FindBySlug(_ context.Context, slug string) (*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySlug[normalizeSlug(slug)]
	if !ok {
		return nil, ErrNotFound
	}
	return s.byID[id], nil
}

// Len returns the number of stored forms.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}
