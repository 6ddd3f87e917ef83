package artifact

import (
	"context"
	"slices"
	"sync"
	"time"
)

// InMemoryStore keeps artifacts in process. Data is copied on save and on
// retrieval so callers never share buffers with the store.
//
// Layout: sessionKey -> name -> artifact
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]map[string]Artifact
	now       func() time.Time
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		artifacts: make(map[string]map[string]Artifact),
		now:       time.Now,
	}
}

// Save stores or replaces a.
func (s *InMemoryStore) Save(_ context.Context, sessionKey string, a Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.artifacts[sessionKey]
	if !ok {
		m = make(map[string]Artifact)
		s.artifacts[sessionKey] = m
	}

	a.Data = slices.Clone(a.Data)
	if a.SavedAt.IsZero() {
		a.SavedAt = s.now()
	}
	m[a.Name] = a

	return nil
}

// Get returns a copy of the named artifact or ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, sessionKey, name string) (Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.artifacts[sessionKey][name]
	if !ok {
		return Artifact{}, ErrNotFound
	}
	a.Data = slices.Clone(a.Data)

	return a, nil
}

// List returns the sorted artifact names of a session.
func (s *InMemoryStore) List(_ context.Context, sessionKey string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.artifacts[sessionKey]))
	for name := range s.artifacts[sessionKey] {
		names = append(names, name)
	}
	slices.Sort(names)

	return names, nil
}

// Clear removes every artifact of a session. Unknown sessions are ignored.
func (s *InMemoryStore) Clear(_ context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.artifacts, sessionKey)
	return nil
}
