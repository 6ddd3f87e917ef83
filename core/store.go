package core

import "context"

// ContextStore persists the append-only event log of every session.
//
// Contract:
//   - Get returns the latest event per kind; an unknown session yields an
//     empty Snapshot, not an error
//   - Append is the only mutator and is atomic per call
//   - Clear removes the whole log for a session and is idempotent
//   - implementations are safe for concurrent use
type ContextStore interface {
	Get(ctx context.Context, sessionKey string) (Snapshot, error)
	Append(ctx context.Context, sessionKey string, ev Event) error
	Clear(ctx context.Context, sessionKey string) error
}
