package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

var (
	_ Inserter = (*GoogleInserter)(nil)
	_ Inserter = (*MemoryInserter)(nil)
)

func sampleEvent() Event {
	start := time.Date(2025, 5, 1, 9, 0, 0, 0, Location())
	return Event{
		Summary:     "해운대 해변 산책",
		Location:    "해운대",
		Description: "비용: 0원",
		Start:       start,
		End:         start.Add(2 * time.Hour),
	}
}

func TestGoogleInserter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/calendars/")
		assert.Contains(t, r.URL.Path, "/events")

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "해운대 해변 산책", body["summary"])
		start, _ := body["start"].(map[string]any)
		assert.Equal(t, "2025-05-01T09:00:00+09:00", start["dateTime"])
		assert.Equal(t, TimeZone, start["timeZone"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "evt-1", "summary": "해운대 해변 산책", "location": "해운대", "htmlLink": "https://calendar.example/evt-1"}`))
	}))
	defer srv.Close()

	g, err := NewGoogleInserter(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	ev, err := g.Insert(context.Background(), "user@example.com", sampleEvent())
	require.NoError(t, err)
	assert.Equal(t, "evt-1", ev.ID)
	assert.Equal(t, "https://calendar.example/evt-1", ev.Link)
	assert.Equal(t, "2025-05-01T11:00:00+09:00", ev.End)
}

func TestGoogleInserter_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "forbidden"}}`))
	}))
	defer srv.Close()

	g, err := NewGoogleInserter(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	_, err = g.Insert(context.Background(), "user@example.com", sampleEvent())
	assert.Error(t, err)
}

func TestMemoryInserter(t *testing.T) {
	m := NewMemoryInserter()

	ev, err := m.Insert(context.Background(), "cal", sampleEvent())
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "2025-05-01T09:00:00+09:00", ev.Start)

	assert.Len(t, m.Events("cal"), 1)
	assert.Empty(t, m.Events("other"))
}

func TestLocation(t *testing.T) {
	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, Location()).Zone()
	assert.Equal(t, 9*60*60, offset)
}
