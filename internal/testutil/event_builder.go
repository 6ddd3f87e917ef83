package testutil

import (
	"time"

	"github.com/hupe1980/tripmesh/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder(core.KindEmail).Payload("a@b.io").At(ts).Build()
//
// Chain only the parts you need; an ID and timestamp are generated otherwise.
type EventBuilder struct {
	kind    core.EventKind
	id      string
	at      time.Time
	payload any
}

// NewEventBuilder creates a builder for an event of kind.
func NewEventBuilder(kind core.EventKind) *EventBuilder { return &EventBuilder{kind: kind} }

// ID overrides the auto-generated event ID (chainable).
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// At overrides the event timestamp (chainable).
func (b *EventBuilder) At(t time.Time) *EventBuilder { b.at = t; return b }

// Payload sets the value encoded as event payload (chainable).
func (b *EventBuilder) Payload(v any) *EventBuilder { b.payload = v; return b }

// Build constructs the core.Event value. It panics when the payload cannot
// be encoded.
func (b *EventBuilder) Build() core.Event {
	ev := core.MustEvent(b.kind, b.payload)
	if b.id != "" {
		ev.ID = b.id
	}
	if !b.at.IsZero() {
		ev.Timestamp = b.at
	}
	return ev
}
