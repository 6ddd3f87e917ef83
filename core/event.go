package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind tags the payload stored in a session Event.
type EventKind string

const (
	// KindContext holds a full Context snapshot.
	KindContext EventKind = "context"
	// KindPlan holds a TravelPlan produced by the planner handler.
	KindPlan EventKind = "plan"
	// KindResult holds any other successful handler payload.
	KindResult EventKind = "result"
	// KindCollectedInfo holds accumulated preference elicitation state.
	KindCollectedInfo EventKind = "collected_info"
	// KindEmail holds a captured delivery address.
	KindEmail EventKind = "email"
	// KindPrimaryIntent holds the handler name chosen for a turn.
	KindPrimaryIntent EventKind = "primary_intent"
	// KindConversationState holds the calendar dialogue cursor.
	KindConversationState EventKind = "conversation_state"
)

// Event is a tagged, immutable record in a session's append-only log.
// Payload is the JSON encoding of the kind-specific value.
type Event struct {
	ID        string          `json:"id"`
	Kind      EventKind       `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent encodes payload and stamps the event with a fresh ID and UTC time.
func NewEvent(kind EventKind, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Event{
		ID:        NewID(),
		Kind:      kind,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// MustEvent is like NewEvent but panics on encoding failure. Intended for
// tests and static payloads.
func MustEvent(kind EventKind, payload any) Event {
	ev, err := NewEvent(kind, payload)
	if err != nil {
		panic(err)
	}
	return ev
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s has no payload", e.ID)
	}
	return json.Unmarshal(e.Payload, v)
}

// NewID generates a new unique identifier for events and turns.
func NewID() string { return uuid.NewString() }

// Snapshot is the latest event for each kind within one session. A missing
// kind means no event of that kind was ever appended.
type Snapshot map[EventKind]Event

// Latest returns the most recent event of kind.
func (s Snapshot) Latest(kind EventKind) (Event, bool) {
	ev, ok := s[kind]
	return ev, ok
}

// Has reports whether at least one event of kind exists.
func (s Snapshot) Has(kind EventKind) bool {
	_, ok := s[kind]
	return ok
}

// DecodeLatest unmarshals the payload of the latest event of kind into v and
// reports whether such an event existed.
func (s Snapshot) DecodeLatest(kind EventKind, v any) (bool, error) {
	ev, ok := s[kind]
	if !ok {
		return false, nil
	}
	if err := ev.Decode(v); err != nil {
		return true, fmt.Errorf("decode latest %s: %w", kind, err)
	}
	return true, nil
}

// Context returns the latest context snapshot or an empty Context.
func (s Snapshot) Context() Context {
	var c Context
	if ok, err := s.DecodeLatest(KindContext, &c); !ok || err != nil || c == nil {
		return Context{}
	}
	return c
}

// CollectedInfo returns the latest elicitation state or an empty Context.
func (s Snapshot) CollectedInfo() Context {
	var c Context
	if ok, err := s.DecodeLatest(KindCollectedInfo, &c); !ok || err != nil || c == nil {
		return Context{}
	}
	return c
}

// Plan returns the latest travel plan, if any.
func (s Snapshot) Plan() (*TravelPlan, bool) {
	var p TravelPlan
	if ok, err := s.DecodeLatest(KindPlan, &p); !ok || err != nil {
		return nil, false
	}
	return &p, true
}

// Email returns the latest captured delivery address, if any.
func (s Snapshot) Email() (string, bool) {
	var email string
	if ok, err := s.DecodeLatest(KindEmail, &email); !ok || err != nil {
		return "", false
	}
	return email, email != ""
}

// CalendarState returns the latest calendar dialogue cursor, if any.
func (s Snapshot) CalendarState() (CalendarState, bool) {
	var st CalendarState
	if ok, err := s.DecodeLatest(KindConversationState, &st); !ok || err != nil {
		return CalendarState{}, false
	}
	return st, true
}

// Observe folds ev into the snapshot if it is at least as recent as the
// current event of the same kind.
func (s Snapshot) Observe(ev Event) {
	cur, ok := s[ev.Kind]
	if !ok || !ev.Timestamp.Before(cur.Timestamp) {
		s[ev.Kind] = ev
	}
}
