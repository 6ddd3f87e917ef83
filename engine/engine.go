package engine

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"

	"github.com/hupe1980/tripmesh/continuation"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/router"
)

const scopeName = "github.com/hupe1980/tripmesh/engine"

var tracer = otel.Tracer(scopeName)

// Router selects the first handler of a turn or pauses it.
type Router interface {
	Route(ctx context.Context, sessionKey, message string, snap core.Snapshot) (router.Decision, error)
}

// Continuer decides what follows a completed handler invocation.
type Continuer interface {
	Next(ctx context.Context, history continuation.History, result core.Result, current core.Context) (continuation.Decision, error)
}

// Config holds tunable engine parameters.
type Config struct {
	// SerializeSessions runs at most one turn per session key at a time.
	// A second turn for the same key waits until the first one finished or
	// its own context is cancelled. Turns of different sessions always run
	// concurrently.
	SerializeSessions bool

	// EventBufferSize controls the buffer of the turn event channel.
	// Larger buffers let handlers progress while a slow client drains the
	// stream.
	EventBufferSize int

	// MaxSteps caps the number of handler invocations per turn. Zero
	// disables the cap.
	MaxSteps int
}

// DefaultConfig serializes sessions and allows every known handler to run
// once per turn.
var DefaultConfig = Config{
	SerializeSessions: true,
	EventBufferSize:   64,
	MaxSteps:          len(core.KnownHandlers),
}

// Options configure an Engine.
type Options struct {
	Config Config

	// Logger receives engine diagnostics. A *logging.TurnLogger additionally
	// gets per-turn session attributes and handler/turn summaries.
	Logger logging.Logger

	// Callbacks are executed at the lifecycle points of every turn.
	Callbacks *CallbackManager
}

// Engine runs turns: it routes a message, invokes handlers and consults the
// continuation planner until the turn pauses or ends, streaming every step
// as a core.TurnEvent.
//
// An Engine is safe for concurrent use. Handlers are registered by name and
// shared across sessions.
type Engine struct {
	store   core.ContextStore
	router  Router
	planner Continuer

	config    Config
	logger    logging.Logger
	callbacks *CallbackManager
	locks     *sessionLocks

	mu       sync.RWMutex
	handlers map[string]core.Handler

	invocationsMu     sync.Mutex
	activeInvocations map[string]context.CancelFunc
}

// New creates an Engine over the given store, router and planner.
//
// The store is used as is; wrap it with session.NewResilient to apply the
// empty-on-read-failure policy. The engine does not own any of its
// collaborators and never closes them.
func New(store core.ContextStore, r Router, p Continuer, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.EventBufferSize < 0 {
		opts.Config.EventBufferSize = 0
	}

	return &Engine{
		store:   store,
		router:  r,
		planner: p,

		config:    opts.Config,
		logger:    logging.OrNoOp(opts.Logger),
		callbacks: opts.Callbacks,
		locks:     newSessionLocks(),

		handlers:          make(map[string]core.Handler),
		activeInvocations: make(map[string]context.CancelFunc),
	}
}

// Register adds a handler under its Name, replacing any previous one.
func (e *Engine) Register(h core.Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[h.Name()] = h
}

// Handler returns the handler registered under name.
func (e *Engine) Handler(name string) (core.Handler, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.handlers[name]
	return h, ok
}

// Invoke starts a turn for message on sessionKey and returns the turn ID
// and its event stream.
//
// The stream is closed after exactly one completion marker
// (core.StatusComplete), whatever the outcome of the turn. When ctx is
// cancelled the engine stops emitting; a handler already running is allowed
// to finish and its result is still persisted.
//
// Example:
//
//	_, events, err := e.Invoke(ctx, "session-1", "부산 2박 3일 여행 계획 세워줘")
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    render(ev)
//	}
func (e *Engine) Invoke(ctx context.Context, sessionKey, message string) (string, <-chan core.TurnEvent, error) {
	if sessionKey == "" {
		return "", nil, &core.ValidationError{Field: "session_key", Message: "must not be empty"}
	}

	turnID := core.NewID()
	out := make(chan core.TurnEvent, e.config.EventBufferSize)

	turnCtx, cancel := context.WithCancel(ctx)

	e.invocationsMu.Lock()
	e.activeInvocations[turnID] = cancel
	e.invocationsMu.Unlock()

	t := e.newTurn(turnCtx, sessionKey, turnID, message, out)

	go func() {
		defer func() {
			e.invocationsMu.Lock()
			delete(e.activeInvocations, turnID)
			e.invocationsMu.Unlock()
			cancel()
		}()

		t.run(turnCtx)
	}()

	return turnID, out, nil
}

// InvokeSync runs a turn to completion and returns all its events,
// including the completion marker.
func (e *Engine) InvokeSync(ctx context.Context, sessionKey, message string) ([]core.TurnEvent, error) {
	_, events, err := e.Invoke(ctx, sessionKey, message)
	if err != nil {
		return nil, err
	}

	var all []core.TurnEvent
	for ev := range events {
		all = append(all, ev)
	}

	return all, nil
}

// StopInvocation cancels a running turn. Event emission stops at the next
// suspension point.
func (e *Engine) StopInvocation(turnID string) error {
	e.invocationsMu.Lock()
	cancel, ok := e.activeInvocations[turnID]
	e.invocationsMu.Unlock()

	if !ok {
		return fmt.Errorf("turn %s not found", turnID)
	}

	cancel()

	return nil
}

// ActiveTurns returns the number of turns currently running.
func (e *Engine) ActiveTurns() int {
	e.invocationsMu.Lock()
	defer e.invocationsMu.Unlock()
	return len(e.activeInvocations)
}

// ClearSession purges all stored events of sessionKey. Clearing an unknown
// session is not an error.
func (e *Engine) ClearSession(ctx context.Context, sessionKey string) error {
	if err := e.store.Clear(ctx, sessionKey); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionKey, err)
	}
	return nil
}

// Snapshot returns the current stored state of sessionKey.
func (e *Engine) Snapshot(ctx context.Context, sessionKey string) (core.Snapshot, error) {
	return e.store.Get(ctx, sessionKey)
}

func (e *Engine) turnLogger(sessionKey, turnID string) logging.Logger {
	if tl, ok := e.logger.(*logging.TurnLogger); ok {
		return tl.WithComponent("engine").WithSession(sessionKey, turnID)
	}
	return e.logger
}
