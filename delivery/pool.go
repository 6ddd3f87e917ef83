// Package delivery runs the post-plan search and mail work outside of the
// turn that captured the delivery address.
package delivery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
)

var (
	// ErrQueueFull is returned by Dispatch when no queue slot is free.
	ErrQueueFull = errors.New("delivery queue is full")

	// ErrClosed is returned by Dispatch after Close.
	ErrClosed = errors.New("delivery pool is closed")
)

// Options configure a Pool.
type Options struct {
	Workers   int
	QueueSize int

	// JobTimeout bounds one search+mail run. Zero disables the bound.
	JobTimeout time.Duration

	Logger logging.Logger
}

// Stats counts finished jobs.
type Stats struct {
	Delivered int64
	Failed    int64
}

// Pool is a fixed set of workers draining a bounded job queue. Each job
// runs the search handler for the plan and mails the plan together with the
// found places.
type Pool struct {
	search core.Handler
	mail   core.Handler
	opts   Options

	jobs chan core.DeliveryJob

	mu      sync.RWMutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	delivered atomic.Int64
	failed    atomic.Int64
}

// New creates a Pool. Workers are started by Start.
func New(search, mail core.Handler, optFns ...func(o *Options)) *Pool {
	opts := Options{
		Workers:    2,
		QueueSize:  64,
		JobTimeout: 5 * time.Minute,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Pool{
		search: search,
		mail:   mail,
		opts:   opts,
		jobs:   make(chan core.DeliveryJob, opts.QueueSize),
	}
}

// Start launches the workers. Jobs run with a context derived from ctx
// without its cancellation; they are cancelled by Close when its deadline
// expires. Calling Start more than once has no effect.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.closed {
		return
	}
	p.started = true

	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel

	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(base)
	}

	p.opts.Logger.Info("delivery pool started", "workers", p.opts.Workers, "queue_size", p.opts.QueueSize)
}

// Dispatch enqueues job without blocking.
func (p *Pool) Dispatch(job core.DeliveryJob) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits until the queued ones are done. When
// ctx ends first, running jobs are cancelled and ctx.Err() is returned.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// Stats returns the job counters.
func (p *Pool) Stats() Stats {
	return Stats{Delivered: p.delivered.Load(), Failed: p.failed.Load()}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for job := range p.jobs {
		if err := p.deliver(ctx, job); err != nil {
			p.failed.Add(1)
			p.opts.Logger.Error("delivery failed", "session_key", job.SessionKey, "error", err)
			continue
		}
		p.delivered.Add(1)
	}
}

func (p *Pool) deliver(ctx context.Context, job core.DeliveryJob) (err error) {
	if p.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.JobTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = &core.HandlerFailure{Handler: "delivery", Err: errors.New("panic during delivery")}
		}
	}()

	if job.Plan == nil {
		return &core.ValidationError{Field: "plan", Message: "no travel plan to deliver"}
	}

	req := core.Request{
		SessionKey: job.SessionKey,
		Context:    job.Context,
		Plan:       job.Plan,
		Email:      job.Email,
	}

	found := p.search.Process(ctx, req)
	if !found.Succeeded() {
		return &core.HandlerFailure{Handler: p.search.Name(), Err: errors.New(found.Message)}
	}
	if sr, ok := found.Data.(*core.SearchResult); ok {
		req.Search = sr
	}

	sent := p.mail.Process(ctx, req)
	if !sent.Succeeded() {
		return &core.HandlerFailure{Handler: p.mail.Name(), Err: errors.New(sent.Message)}
	}

	p.opts.Logger.Info("plan delivered", "session_key", job.SessionKey, "places", len(req.Search.Places()))

	return nil
}
