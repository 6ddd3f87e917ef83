package testutil

import (
	"context"
	"fmt"

	"github.com/hupe1980/tripmesh/core"
)

// SessionBuilder collects the events of a session and seeds them into a
// store for tests.
// Example:
//
//	err := NewSessionBuilder("sess-1").Context(core.Context{"destination": "부산"}).Plan(SamplePlan()).Seed(ctx, store)
type SessionBuilder struct {
	key    string
	events []core.Event
}

// NewSessionBuilder creates a new builder for the session key.
func NewSessionBuilder(key string) *SessionBuilder {
	return &SessionBuilder{key: key}
}

// Context appends a context event (chainable).
func (b *SessionBuilder) Context(c core.Context) *SessionBuilder {
	return b.Event(NewEventBuilder(core.KindContext).Payload(c).Build())
}

// Plan appends a plan event (chainable).
func (b *SessionBuilder) Plan(p *core.TravelPlan) *SessionBuilder {
	return b.Event(NewEventBuilder(core.KindPlan).Payload(p).Build())
}

// Email appends an email event (chainable).
func (b *SessionBuilder) Email(addr string) *SessionBuilder {
	return b.Event(NewEventBuilder(core.KindEmail).Payload(addr).Build())
}

// CollectedInfo appends a collected_info event (chainable).
func (b *SessionBuilder) CollectedInfo(c core.Context) *SessionBuilder {
	return b.Event(NewEventBuilder(core.KindCollectedInfo).Payload(c).Build())
}

// CalendarState appends a conversation_state event (chainable).
func (b *SessionBuilder) CalendarState(s core.CalendarState) *SessionBuilder {
	return b.Event(NewEventBuilder(core.KindConversationState).Payload(s).Build())
}

// Event appends a single event (chainable).
func (b *SessionBuilder) Event(ev core.Event) *SessionBuilder {
	b.events = append(b.events, ev)
	return b
}

// Events returns the collected events in append order.
func (b *SessionBuilder) Events() []core.Event {
	return append([]core.Event(nil), b.events...)
}

// Snapshot folds the collected events without a store.
func (b *SessionBuilder) Snapshot() core.Snapshot {
	snap := core.Snapshot{}
	for _, ev := range b.events {
		snap.Observe(ev)
	}
	return snap
}

// Seed appends the collected events to store under the builder's key.
func (b *SessionBuilder) Seed(ctx context.Context, store core.ContextStore) error {
	for _, ev := range b.events {
		if err := store.Append(ctx, b.key, ev); err != nil {
			return fmt.Errorf("seed %s: %w", ev.Kind, err)
		}
	}
	return nil
}
