package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu   sync.Mutex
	reqs []core.Request
}

func (r *recorder) handler(name string, result core.Result) core.Handler {
	return core.HandlerFunc{HandlerName: name, Fn: func(_ context.Context, req core.Request) core.Result {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.reqs = append(r.reqs, req)
		return result
	}}
}

func (r *recorder) requests() []core.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Request(nil), r.reqs...)
}

func job() core.DeliveryJob {
	return core.DeliveryJob{
		SessionKey: "s1",
		Email:      "user@example.com",
		Context:    core.Context{"destination": "부산"},
		Plan:       testutil.SamplePlan(),
	}
}

func TestPool_Delivers(t *testing.T) {
	found := &core.SearchResult{Locations: []core.LocationResult{{Location: "해운대", Places: []core.Place{{Name: "해운대해수욕장"}}}}}

	searches, mails := &recorder{}, &recorder{}
	p := New(
		searches.handler(core.HandlerSearch, core.Result{Status: core.StatusSuccess, Data: found}),
		mails.handler(core.HandlerMail, core.Result{Status: core.StatusSuccess}),
	)
	p.Start(context.Background())

	require.NoError(t, p.Dispatch(job()))
	require.NoError(t, p.Close(context.Background()))

	require.Len(t, searches.requests(), 1)
	require.Len(t, mails.requests(), 1)

	sent := mails.requests()[0]
	assert.Equal(t, "user@example.com", sent.Email)
	assert.Same(t, found, sent.Search)
	assert.Equal(t, "부산", sent.Plan.Destination)
	assert.Equal(t, Stats{Delivered: 1}, p.Stats())
}

func TestPool_SearchFailureSkipsMail(t *testing.T) {
	searches, mails := &recorder{}, &recorder{}
	p := New(
		searches.handler(core.HandlerSearch, core.Failure("Search failed", "장소 검색 중 오류가 발생했습니다")),
		mails.handler(core.HandlerMail, core.Result{Status: core.StatusSuccess}),
	)
	p.Start(context.Background())

	require.NoError(t, p.Dispatch(job()))

	noPlan := job()
	noPlan.Plan = nil
	require.NoError(t, p.Dispatch(noPlan))

	require.NoError(t, p.Close(context.Background()))

	assert.Len(t, searches.requests(), 1)
	assert.Empty(t, mails.requests())
	assert.Equal(t, Stats{Failed: 2}, p.Stats())
}

func TestPool_QueueFull(t *testing.T) {
	r := &recorder{}
	p := New(r.handler(core.HandlerSearch, core.Result{}), r.handler(core.HandlerMail, core.Result{}), func(o *Options) {
		o.QueueSize = 1
	})

	require.NoError(t, p.Dispatch(job()))
	assert.ErrorIs(t, p.Dispatch(job()), ErrQueueFull)

	require.NoError(t, p.Close(context.Background()))
	assert.ErrorIs(t, p.Dispatch(job()), ErrClosed)
	assert.Empty(t, r.requests())
}

func TestPool_CloseDeadlineCancelsJobs(t *testing.T) {
	started := make(chan struct{})

	blocking := core.HandlerFunc{HandlerName: core.HandlerSearch, Fn: func(ctx context.Context, _ core.Request) core.Result {
		close(started)
		<-ctx.Done()
		return core.Failure("Search failed", ctx.Err().Error())
	}}
	mails := &recorder{}

	p := New(blocking, mails.handler(core.HandlerMail, core.Result{Status: core.StatusSuccess}), func(o *Options) {
		o.Workers = 1
	})
	p.Start(context.Background())

	require.NoError(t, p.Dispatch(job()))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, p.Close(ctx), context.DeadlineExceeded)
	assert.Empty(t, mails.requests())
	assert.Equal(t, Stats{Failed: 1}, p.Stats())
}

func TestPool_StartIsIdempotent(t *testing.T) {
	r := &recorder{}
	p := New(r.handler(core.HandlerSearch, core.Result{}), r.handler(core.HandlerMail, core.Result{}), func(o *Options) {
		o.Workers = 3
	})

	p.Start(context.Background())
	p.Start(context.Background())

	require.NoError(t, p.Close(context.Background()))
	require.NoError(t, p.Close(context.Background()))
}
