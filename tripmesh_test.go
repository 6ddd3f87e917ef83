package tripmesh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripmesh/calendar"
	"github.com/hupe1980/tripmesh/continuation"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/internal/testutil"
	"github.com/hupe1980/tripmesh/model"
	"github.com/hupe1980/tripmesh/router"
)

type stubSearcher struct{}

func (stubSearcher) Search(_ context.Context, query string) ([]core.Place, error) {
	return []core.Place{{Name: query}}, nil
}

func newTestMesh(t *testing.T, oracle model.Model, inserter calendar.Inserter) *TripMesh {
	t.Helper()

	m := New(oracle, func(o *Options) {
		o.Searcher = stubSearcher{}
		o.Calendar = inserter
		o.MaxAttempts = 1
	})
	m.Start(context.Background())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})

	return m
}

func TestTripMesh_PlanThenEmail(t *testing.T) {
	plan := testutil.SamplePlan()

	oracle := model.NewMockModel("mock", "mock")
	oracle.Enqueue(
		`{"primary_intent":"planner","confidence":0.9,"required_context":[],"suggested_next_steps":[],`+
			`"extracted_context":{"destination":"부산","duration":"1박 2일","preferences":{"budget":"50만원"}},`+
			`"missing_info":{"fields":[],"message":"","examples":{}}}`,
		testutil.JSON(plan),
		testutil.JSON(plan),
		testutil.JSON(plan.Budget),
	)

	m := newTestMesh(t, oracle, calendar.NewMemoryInserter())
	ctx := context.Background()

	events, err := m.InvokeSync(ctx, "s1", "부산 1박 2일 여행 계획 세워줘, 예산 50만원")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(events), 3)

	assert.Equal(t, core.StatusComplete, events[len(events)-1].Status)

	pause := events[len(events)-2]
	require.Equal(t, core.StatusNeedMoreInfo, pause.Status)
	info, ok := pause.Result.(*core.NeedInfo)
	require.True(t, ok)
	assert.Equal(t, continuation.PlanCompletedMessage, info.Message)
	assert.Equal(t, []string{"email"}, info.MissingFields)

	var planned *core.TravelPlan
	for _, ev := range events {
		if ev.Status != core.StatusSuccess {
			continue
		}
		if r, ok := ev.Result.(core.Result); ok && r.Plan != nil {
			planned = r.Plan
		}
	}
	require.NotNil(t, planned)
	assert.Equal(t, plan.Budget.Total, planned.Budget.Total)

	snap, err := m.Engine().Snapshot(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, snap.Has(core.KindPlan))
	destination, _ := snap.Context().Get("destination")
	assert.Equal(t, "부산", destination)

	events, err = m.InvokeSync(ctx, "s1", "traveler@example.com")
	require.NoError(t, err)
	require.Len(t, events, 2)

	info, ok = events[0].Result.(*core.NeedInfo)
	require.True(t, ok)
	assert.Equal(t, router.EmailCapturedMessage, info.Message)

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, m.Close(closeCtx))

	stats := m.DeliveryStats()
	assert.Equal(t, int64(1), stats.Delivered+stats.Failed)

	snap, err = m.Engine().Snapshot(ctx, "s1")
	require.NoError(t, err)
	email, ok := snap.Email()
	require.True(t, ok)
	assert.Equal(t, "traveler@example.com", email)
}

func TestTripMesh_CalendarAfterEmail(t *testing.T) {
	oracle := model.NewMockModel("mock", "mock")
	inserter := calendar.NewMemoryInserter()
	m := newTestMesh(t, oracle, inserter)
	ctx := context.Background()

	err := testutil.NewSessionBuilder("s2").
		Context(core.Context{"destination": "부산", "departure_date": "2026-11-01"}).
		Plan(testutil.SamplePlan()).
		Email("traveler@example.com").
		Seed(ctx, m.Store())
	require.NoError(t, err)

	events, err := m.InvokeSync(ctx, "s2", "예")
	require.NoError(t, err)
	require.NotEmpty(t, events)

	var step core.TurnEvent
	for _, ev := range events {
		if ev.Handler == core.HandlerCalendar && ev.Status == core.StatusSuccess {
			step = ev
		}
	}
	require.Equal(t, core.StatusSuccess, step.Status)
	assert.Zero(t, oracle.CallCount())
}

func TestTripMesh_ClearSession(t *testing.T) {
	m := newTestMesh(t, model.NewMockModel("mock", "mock"), calendar.NewMemoryInserter())
	ctx := context.Background()

	require.NoError(t, testutil.NewSessionBuilder("s3").Plan(testutil.SamplePlan()).Seed(ctx, m.Store()))
	require.NoError(t, m.ClearSession(ctx, "s3"))

	snap, err := m.Engine().Snapshot(ctx, "s3")
	require.NoError(t, err)
	assert.False(t, snap.Has(core.KindPlan))
}

func TestTripMesh_CalendarDoneLeavesSessionEmpty(t *testing.T) {
	oracle := model.NewMockModel("mock", "mock")
	inserter := calendar.NewMemoryInserter()
	m := newTestMesh(t, oracle, inserter)
	ctx := context.Background()

	err := testutil.NewSessionBuilder("s4").
		Context(core.Context{"destination": "부산", "departure_date": "2026-11-01"}).
		Plan(testutil.SamplePlan()).
		Email("traveler@example.com").
		Seed(ctx, m.Store())
	require.NoError(t, err)

	_, err = m.InvokeSync(ctx, "s4", "예")
	require.NoError(t, err)

	events, err := m.InvokeSync(ctx, "s4", "done")
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, core.StatusComplete, events[len(events)-1].Status)

	snap, err := m.Engine().Snapshot(ctx, "s4")
	require.NoError(t, err)
	assert.Empty(t, snap)
	assert.Zero(t, oracle.CallCount())
}

func TestTripMesh_CalendarDeclineLeavesSessionEmpty(t *testing.T) {
	oracle := model.NewMockModel("mock", "mock")
	m := newTestMesh(t, oracle, calendar.NewMemoryInserter())
	ctx := context.Background()

	err := testutil.NewSessionBuilder("s5").
		Plan(testutil.SamplePlan()).
		Email("traveler@example.com").
		Seed(ctx, m.Store())
	require.NoError(t, err)

	events, err := m.InvokeSync(ctx, "s5", "아니오")
	require.NoError(t, err)
	require.NotEmpty(t, events)

	snap, err := m.Engine().Snapshot(ctx, "s5")
	require.NoError(t, err)
	assert.Empty(t, snap)
}
