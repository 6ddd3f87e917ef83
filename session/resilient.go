package session

import (
	"context"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
)

// Resilient wraps a ContextStore with an availability-first failure policy:
// read failures yield an empty snapshot and write failures are logged and
// swallowed. Callers never observe a StoreUnavailable from Get or Append.
type Resilient struct {
	inner  core.ContextStore
	logger logging.Logger
}

// NewResilient wraps inner. A nil logger discards diagnostics.
func NewResilient(inner core.ContextStore, logger logging.Logger) *Resilient {
	return &Resilient{inner: inner, logger: logging.OrNoOp(logger)}
}

// Get returns the inner snapshot, or an empty one if the read fails.
func (r *Resilient) Get(ctx context.Context, sessionKey string) (core.Snapshot, error) {
	snap, err := r.inner.Get(ctx, sessionKey)
	if err != nil {
		r.logger.Warn("context store read failed, using empty state",
			"session_key", sessionKey, "error", &core.StoreUnavailable{Op: "get", Err: err})
		return core.Snapshot{}, nil
	}
	if snap == nil {
		snap = core.Snapshot{}
	}
	return snap, nil
}

// Append forwards ev and swallows any failure.
func (r *Resilient) Append(ctx context.Context, sessionKey string, ev core.Event) error {
	if err := r.inner.Append(ctx, sessionKey, ev); err != nil {
		r.logger.Warn("context store write failed, continuing without persisted state",
			"session_key", sessionKey, "kind", string(ev.Kind), "error", &core.StoreUnavailable{Op: "append", Err: err})
	}
	return nil
}

// Clear forwards to the inner store. Purge failures are reported since the
// caller explicitly asked for deletion.
func (r *Resilient) Clear(ctx context.Context, sessionKey string) error {
	if err := r.inner.Clear(ctx, sessionKey); err != nil {
		return &core.StoreUnavailable{Op: "clear", Err: err}
	}
	return nil
}
