// Package calendar registers itinerary activities as calendar events.
package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // Asia/Seoul on hosts without zoneinfo

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/hupe1980/tripmesh/core"
)

// TimeZone is the zone every travel event is scheduled in.
const TimeZone = "Asia/Seoul"

// Event is a calendar entry to create.
type Event struct {
	Summary     string
	Location    string
	Description string
	Start       time.Time
	End         time.Time
}

// Inserter creates events in the calendar identified by calendarID (for
// service accounts usually the owner's mail address).
type Inserter interface {
	Insert(ctx context.Context, calendarID string, ev Event) (core.CalendarEvent, error)
}

// Location returns the travel time zone.
func Location() *time.Location {
	loc, err := time.LoadLocation(TimeZone)
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

// GoogleInserter creates events through the Google Calendar API.
type GoogleInserter struct {
	svc *gcal.Service
}

// NewGoogleInserter builds a GoogleInserter from client options, e.g.
// option.WithCredentialsFile.
func NewGoogleInserter(ctx context.Context, opts ...option.ClientOption) (*GoogleInserter, error) {
	opts = append([]option.ClientOption{option.WithScopes(gcal.CalendarScope)}, opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &GoogleInserter{svc: svc}, nil
}

// Insert implements Inserter.
func (g *GoogleInserter) Insert(ctx context.Context, calendarID string, ev Event) (core.CalendarEvent, error) {
	created, err := g.svc.Events.Insert(calendarID, &gcal.Event{
		Summary:     ev.Summary,
		Location:    ev.Location,
		Description: ev.Description,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: TimeZone},
		End:         &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: TimeZone},
	}).Context(ctx).Do()
	if err != nil {
		return core.CalendarEvent{}, fmt.Errorf("insert calendar event: %w", err)
	}

	return core.CalendarEvent{
		ID:       created.Id,
		Title:    created.Summary,
		Start:    ev.Start.Format(time.RFC3339),
		End:      ev.End.Format(time.RFC3339),
		Location: created.Location,
		Link:     created.HtmlLink,
	}, nil
}

// MemoryInserter keeps events in memory. It backs development setups
// without Google credentials.
type MemoryInserter struct {
	mu     sync.Mutex
	events map[string][]core.CalendarEvent
}

// NewMemoryInserter creates an empty MemoryInserter.
func NewMemoryInserter() *MemoryInserter {
	return &MemoryInserter{events: make(map[string][]core.CalendarEvent)}
}

// Insert implements Inserter.
func (m *MemoryInserter) Insert(_ context.Context, calendarID string, ev Event) (core.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := core.CalendarEvent{
		ID:       core.NewID(),
		Title:    ev.Summary,
		Start:    ev.Start.Format(time.RFC3339),
		End:      ev.End.Format(time.RFC3339),
		Location: ev.Location,
	}
	m.events[calendarID] = append(m.events[calendarID], out)

	return out, nil
}

// Events returns a copy of the events of calendarID.
func (m *MemoryInserter) Events(calendarID string) []core.CalendarEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.CalendarEvent(nil), m.events[calendarID]...)
}
