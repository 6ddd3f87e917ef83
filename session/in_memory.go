package session

import (
	"context"
	"sync"

	"github.com/hupe1980/tripmesh/core"
)

// InMemoryStore is a volatile ContextStore keeping each session's event log
// in a process local map. It is safe for concurrent access and best suited
// for tests or ephemeral demo servers. Events are copied on the way in and
// out so callers cannot mutate stored payloads.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]core.Event
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]core.Event)}
}

// Get folds the session log into its latest-per-kind snapshot.
func (s *InMemoryStore) Get(_ context.Context, sessionKey string) (core.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := core.Snapshot{}
	for _, ev := range s.sessions[sessionKey] {
		snap[ev.Kind] = copyEvent(ev)
	}
	return snap, nil
}

// Append adds ev to the end of the session log, creating the session lazily.
func (s *InMemoryStore) Append(_ context.Context, sessionKey string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionKey] = append(s.sessions[sessionKey], copyEvent(ev))
	return nil
}

// Clear removes the whole session log. Unknown sessions are a no-op.
func (s *InMemoryStore) Clear(_ context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey)
	return nil
}

// History returns a copy of the full ordered log of a session.
func (s *InMemoryStore) History(sessionKey string) []core.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.sessions[sessionKey]
	out := make([]core.Event, len(log))
	for i, ev := range log {
		out[i] = copyEvent(ev)
	}
	return out
}

func copyEvent(ev core.Event) core.Event {
	ev.Payload = append([]byte(nil), ev.Payload...)
	return ev
}
