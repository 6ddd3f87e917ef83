// Package tripmesh wires the turn engine, router, continuation planner,
// travel handlers and the delivery pool into one ready-to-use value.
//
// Most applications:
//  1. Create a TripMesh via New with an oracle model (optionally overriding
//     the in-memory store, search provider, mail sender and calendar)
//  2. Start the delivery pool
//  3. Invoke turns asynchronously (Invoke) or synchronously (InvokeSync)
//  4. Close to drain pending deliveries
//
// All defaults are safe for local development and testing: sessions live in
// memory, mail is logged instead of sent and calendar events are kept in
// process.
package tripmesh

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/tripmesh/artifact"
	"github.com/hupe1980/tripmesh/calendar"
	"github.com/hupe1980/tripmesh/continuation"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/delivery"
	"github.com/hupe1980/tripmesh/engine"
	"github.com/hupe1980/tripmesh/handler"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/mailer"
	"github.com/hupe1980/tripmesh/model"
	"github.com/hupe1980/tripmesh/naver"
	"github.com/hupe1980/tripmesh/router"
	"github.com/hupe1980/tripmesh/session"
)

// Options configures the TripMesh instance.
type Options struct {
	// EngineConfig controls session serialization, event buffering and the
	// per-turn step limit.
	EngineConfig engine.Config

	// Store persists session events. It is wrapped with session.NewResilient.
	Store core.ContextStore

	// Searcher looks up places for the search handler.
	Searcher handler.PlaceSearcher

	// Artifacts archives rendered plan documents.
	Artifacts artifact.Store

	// Sender delivers plan mail.
	Sender mailer.Sender
	// MailFrom is the sender address of plan mail.
	MailFrom string

	// Calendar registers confirmed itinerary activities.
	Calendar calendar.Inserter
	// CalendarID is used when no delivery address was captured.
	CalendarID string

	// MaxAttempts bounds oracle retries on malformed replies.
	MaxAttempts int
	// SearchConcurrency bounds parallel place lookups per search.
	SearchConcurrency int

	DeliveryWorkers    int
	DeliveryQueueSize  int
	DeliveryJobTimeout time.Duration

	Callbacks *engine.CallbackManager

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// TripMesh is the high-level façade aggregating the engine and its
// collaborators.
type TripMesh struct {
	opts   Options
	store  core.ContextStore
	engine *engine.Engine
	pool   *delivery.Pool
}

// New creates a TripMesh driven by oracle. Any unset collaborator is
// initialized with a local implementation.
func New(oracle model.Model, optFns ...func(o *Options)) *TripMesh {
	opts := Options{
		EngineConfig:       engine.DefaultConfig,
		Store:              session.NewInMemoryStore(),
		Artifacts:          artifact.NewInMemoryStore(),
		Calendar:           calendar.NewMemoryInserter(),
		CalendarID:         "primary",
		MaxAttempts:        3,
		SearchConcurrency:  4,
		DeliveryWorkers:    2,
		DeliveryQueueSize:  64,
		DeliveryJobTimeout: 5 * time.Minute,
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Searcher == nil {
		opts.Searcher = naver.New()
	}
	if opts.Sender == nil {
		opts.Sender = mailer.LogSender{Logger: opts.Logger}
	}

	store := session.NewResilient(opts.Store, opts.Logger)

	search := handler.NewSearch(oracle, opts.Searcher, func(o *handler.SearchOptions) {
		o.Concurrency = opts.SearchConcurrency
		o.MaxAttempts = opts.MaxAttempts
		o.Logger = opts.Logger
	})
	mail := handler.NewMail(opts.Sender, func(o *handler.MailOptions) {
		o.From = opts.MailFrom
		o.Archive = opts.Artifacts
		o.Logger = opts.Logger
	})

	pool := delivery.New(search, mail, func(o *delivery.Options) {
		o.Workers = opts.DeliveryWorkers
		o.QueueSize = opts.DeliveryQueueSize
		o.JobTimeout = opts.DeliveryJobTimeout
		o.Logger = opts.Logger
	})

	r := router.New(store, oracle, func(o *router.Options) {
		o.Logger = opts.Logger
		o.Dispatcher = pool
		o.MaxAttempts = opts.MaxAttempts
	})
	p := continuation.New(oracle, func(o *continuation.Options) {
		o.Logger = opts.Logger
		o.MaxAttempts = opts.MaxAttempts
	})

	e := engine.New(store, r, p, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Logger = opts.Logger
		o.Callbacks = opts.Callbacks
	})

	e.Register(handler.NewPlanner(oracle, func(o *handler.PlannerOptions) {
		o.MaxAttempts = opts.MaxAttempts
		o.Logger = opts.Logger
	}))
	e.Register(search)
	e.Register(mail)
	e.Register(handler.NewCalendar(store, opts.Calendar, func(o *handler.CalendarOptions) {
		o.CalendarID = opts.CalendarID
		o.Logger = opts.Logger
	}))
	e.Register(handler.NewRecommendation(oracle, store, func(o *handler.RecommendationOptions) {
		o.MaxAttempts = opts.MaxAttempts
		o.Logger = opts.Logger
	}))

	return &TripMesh{opts: opts, store: store, engine: e, pool: pool}
}

// Start launches the delivery workers.
func (m *TripMesh) Start(ctx context.Context) { m.pool.Start(ctx) }

// Close stops accepting deliveries and waits for queued ones until ctx ends.
func (m *TripMesh) Close(ctx context.Context) error { return m.pool.Close(ctx) }

// Engine returns the underlying turn engine.
func (m *TripMesh) Engine() *engine.Engine { return m.engine }

// Store returns the resilient session store shared by all components.
func (m *TripMesh) Store() core.ContextStore { return m.store }

// Invoke starts a turn and returns its ID and event stream.
func (m *TripMesh) Invoke(ctx context.Context, sessionKey, message string) (string, <-chan core.TurnEvent, error) {
	return m.engine.Invoke(ctx, sessionKey, message)
}

// InvokeSync runs a turn to completion and returns all its events.
func (m *TripMesh) InvokeSync(ctx context.Context, sessionKey, message string) ([]core.TurnEvent, error) {
	return m.engine.InvokeSync(ctx, sessionKey, message)
}

// Artifacts returns the archive of rendered plan documents.
func (m *TripMesh) Artifacts() artifact.Store { return m.opts.Artifacts }

// ClearSession purges the events and archived documents of a session.
func (m *TripMesh) ClearSession(ctx context.Context, sessionKey string) error {
	if err := m.engine.ClearSession(ctx, sessionKey); err != nil {
		return err
	}
	if m.opts.Artifacts != nil {
		if err := m.opts.Artifacts.Clear(ctx, sessionKey); err != nil {
			return fmt.Errorf("clear artifacts of %s: %w", sessionKey, err)
		}
	}
	return nil
}

// DeliveryStats reports finished background deliveries.
func (m *TripMesh) DeliveryStats() delivery.Stats { return m.pool.Stats() }
