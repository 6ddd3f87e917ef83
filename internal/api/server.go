// Package api exposes the turn engine over HTTP: a server-sent events chat
// endpoint, a WebSocket chat endpoint and session management.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hupe1980/tripmesh/artifact"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
)

// Engine is the part of the turn engine served over HTTP.
type Engine interface {
	Invoke(ctx context.Context, sessionKey, message string) (string, <-chan core.TurnEvent, error)
	ClearSession(ctx context.Context, sessionKey string) error
}

// Options configure a Server.
type Options struct {
	AllowedOrigins []string

	// Artifacts serves archived plan documents. Nil answers 404.
	Artifacts artifact.Store

	Logger logging.Logger
}

// Server routes HTTP requests to the engine.
type Server struct {
	engine Engine
	opts   Options
}

// New creates a Server.
func New(engine Engine, optFns ...func(o *Options)) *Server {
	opts := Options{
		AllowedOrigins: []string{"*"},
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Server{engine: engine, opts: opts}
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(CORS(s.opts.AllowedOrigins))

	r.Get("/", s.handleHealth)
	r.Get("/chat", s.handleChat)
	r.Get("/ws/chat", s.handleWebSocket)
	r.Delete("/sessions/{sessionID}", s.handleDeleteSession)
	r.Get("/sessions/{sessionID}/plan", s.handlePlan)

	return otelhttp.NewHandler(r, "tripmesh")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Travel Agent API is running"})
}

// handleChat streams one turn as server-sent events. The stream always ends
// with a complete frame.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = core.NewID()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Session-ID", sessionID)
	w.WriteHeader(http.StatusOK)

	defer func() {
		if _, err := w.Write([]byte(completeFrame)); err != nil {
			s.opts.Logger.Debug("failed to write SSE complete frame", "error", err)
		}
		flusher.Flush()
	}()

	_, events, err := s.engine.Invoke(r.Context(), sessionID, message)
	if err != nil {
		s.opts.Logger.Error("turn rejected", "session_id", sessionID, "error", err)
		data, _ := json.Marshal(core.ErrorInfo{Error: err.Error(), Message: "요청을 처리할 수 없습니다."})
		_ = writeSSE(w, "error", string(data))
		return
	}

	for ev := range events {
		if ev.Status == core.StatusComplete {
			continue
		}
		if err := writeTurnEvent(w, ev); err != nil {
			s.opts.Logger.Warn("failed to write SSE event", "session_id", sessionID, "error", err)
			drain(events)
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.engine.ClearSession(r.Context(), sessionID); err != nil {
		s.opts.Logger.Error("failed to clear session", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear session"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePlan returns the last plan document rendered for the session.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	if s.opts.Artifacts == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "plan not found"})
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	a, err := s.opts.Artifacts.Get(r.Context(), sessionID, artifact.PlanHTML)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "plan not found"})
			return
		}
		s.opts.Logger.Error("failed to load plan", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load plan"})
		return
	}

	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Last-Modified", a.SavedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}

// handleWebSocket treats every inbound text frame as a user message and
// writes the turn events back as JSON frames.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = core.NewID()
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.opts.AllowedOrigins,
	})
	if err != nil {
		s.opts.Logger.Error("failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			s.opts.Logger.Debug("failed to close websocket", "error", closeErr)
		}
	}()

	ctx := r.Context()

	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 {
				s.opts.Logger.Debug("websocket read failed", "session_id", sessionID, "error", err)
			}
			return
		}
		if typ != websocket.MessageText || len(data) == 0 {
			continue
		}

		_, events, err := s.engine.Invoke(ctx, sessionID, string(data))
		if err != nil {
			_ = wsjson.Write(ctx, ws, core.ErrorEvent("", err.Error(), "요청을 처리할 수 없습니다.", ""))
			continue
		}

		for ev := range events {
			if err := wsjson.Write(ctx, ws, ev); err != nil {
				s.opts.Logger.Debug("websocket write failed", "session_id", sessionID, "error", err)
				drain(events)
				return
			}
		}
	}
}

// drain consumes the rest of a turn stream so the turn can finish.
func drain(events <-chan core.TurnEvent) {
	for range events {
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
