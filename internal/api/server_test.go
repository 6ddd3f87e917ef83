package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripmesh/artifact"
	"github.com/hupe1980/tripmesh/core"
)

type fakeEngine struct {
	mu       sync.Mutex
	messages []string
	sessions []string
	cleared  []string

	events    []core.TurnEvent
	invokeErr error
	clearErr  error
}

func (f *fakeEngine) Invoke(_ context.Context, sessionKey, message string) (string, <-chan core.TurnEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.invokeErr != nil {
		return "", nil, f.invokeErr
	}

	f.sessions = append(f.sessions, sessionKey)
	f.messages = append(f.messages, message)

	out := make(chan core.TurnEvent, len(f.events))
	for _, ev := range f.events {
		out <- ev
	}
	close(out)

	return "turn-1", out, nil
}

func (f *fakeEngine) ClearSession(_ context.Context, sessionKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, sessionKey)
	return f.clearErr
}

func turnEvents() []core.TurnEvent {
	return []core.TurnEvent{
		core.ProcessingEvent(core.HandlerPlanner, "여행 계획 에이전트가 작업을 시작합니다..."),
		core.SuccessEvent(core.HandlerPlanner, core.Result{Status: core.StatusSuccess, Message: "여행 계획이 완성되었습니다."}),
		core.ErrorEvent(core.HandlerSearch, "Search failed", "장소 검색 중 오류가 발생했습니다", "stack"),
		core.CompleteEvent(),
	}
}

func frame(t *testing.T, event string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	if event != "" {
		return "event: " + event + "\ndata: " + string(data) + "\n\n"
	}
	return "data: " + string(data) + "\n\n"
}

func TestHealth(t *testing.T) {
	srv := New(&fakeEngine{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","message":"Travel Agent API is running"}`, rec.Body.String())
}

func TestChat_StreamsTurn(t *testing.T) {
	engine := &fakeEngine{events: turnEvents()}
	srv := New(engine)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/chat?message="+"%EB%B6%80%EC%82%B0+%EC%97%AC%ED%96%89"+"&session_id=s1", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.Equal(t, "s1", rec.Header().Get("X-Session-ID"))

	events := turnEvents()
	want := frame(t, "", events[0]) +
		frame(t, "", events[1]) +
		frame(t, "error", events[2]) +
		completeFrame
	assert.Equal(t, want, rec.Body.String())

	assert.Equal(t, []string{"s1"}, engine.sessions)
	assert.Equal(t, []string{"부산 여행"}, engine.messages)
}

func TestChat_GeneratesSessionID(t *testing.T) {
	engine := &fakeEngine{events: []core.TurnEvent{core.CompleteEvent()}}

	rec := httptest.NewRecorder()
	New(engine).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat?message=hi", nil))

	require.Len(t, engine.sessions, 1)
	assert.NotEmpty(t, engine.sessions[0])
	assert.Equal(t, engine.sessions[0], rec.Header().Get("X-Session-ID"))
	assert.Equal(t, completeFrame, rec.Body.String())
}

func TestChat_MissingMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&fakeEngine{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat?session_id=s1", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"message is required"}`, rec.Body.String())
}

func TestChat_InvokeError(t *testing.T) {
	engine := &fakeEngine{invokeErr: errors.New("validation failed for session_key: must not be empty")}

	rec := httptest.NewRecorder()
	New(engine).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat?message=hi&session_id=s1", nil))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: error\ndata: "))
	assert.Contains(t, body, "must not be empty")
	assert.True(t, strings.HasSuffix(body, completeFrame))
	assert.Equal(t, 1, strings.Count(body, "event: complete"))
}

func TestDeleteSession(t *testing.T) {
	engine := &fakeEngine{}
	h := New(engine).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sessions/s1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"s1"}, engine.cleared)

	engine.clearErr = errors.New("disk full")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sessions/s2", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPlanDocument(t *testing.T) {
	archive := artifact.NewInMemoryStore()
	require.NoError(t, archive.Save(context.Background(), "s1", artifact.Artifact{
		Name:        artifact.PlanHTML,
		ContentType: "text/html; charset=utf-8",
		Data:        []byte("<h1>부산 여행 계획</h1>"),
	}))

	h := New(&fakeEngine{}, func(o *Options) { o.Artifacts = archive }).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/s1/plan", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<h1>부산 여행 계획</h1>", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/unknown/plan", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	New(&fakeEngine{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/s1/plan", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	h := New(&fakeEngine{}, func(o *Options) { o.AllowedOrigins = []string{"https://app.example"} }).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocketChat(t *testing.T) {
	engine := &fakeEngine{events: turnEvents()}
	ts := httptest.NewServer(New(engine).Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/chat?session_id=ws-1", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("제주도 여행")))

	var got []core.TurnEvent
	for range turnEvents() {
		var ev core.TurnEvent
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		got = append(got, ev)
	}

	require.Len(t, got, 4)
	assert.Equal(t, core.StatusProcessing, got[0].Status)
	assert.Equal(t, core.StatusSuccess, got[1].Status)
	assert.Equal(t, core.StatusError, got[2].Status)
	assert.Equal(t, core.StatusComplete, got[3].Status)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.Equal(t, []string{"ws-1"}, engine.sessions)
	assert.Equal(t, []string{"제주도 여행"}, engine.messages)
}
