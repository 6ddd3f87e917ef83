package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
	"github.com/hupe1980/tripmesh/session"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(job core.DeliveryJob) error {
	return m.Called(job).Error(0)
}

const busanReply = `{
	"primary_intent": "planner",
	"confidence": 0.92,
	"required_context": ["departure_location", "departure_date"],
	"suggested_next_steps": ["planner"],
	"extracted_context": {"destination": "부산", "duration": "3일", "preferences.budget": "1박 200000원"},
	"missing_info": {
		"fields": ["departure_location", "departure_date", "destination", "duration", "preferences.budget"],
		"message": "출발지와 출발 날짜를 알려주세요.",
		"examples": {"departure_location": "서울", "departure_date": "2025-05-01"}
	}
}`

func newRouter(t *testing.T, optFns ...func(o *Options)) (*Router, *model.MockModel, *session.InMemoryStore) {
	t.Helper()
	oracle := model.NewMockModel("mock", "mock")
	store := session.NewInMemoryStore()
	return New(store, oracle, optFns...), oracle, store
}

func snapshot(t *testing.T, store core.ContextStore, key string) core.Snapshot {
	t.Helper()
	snap, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	return snap
}

func TestRoute_ReconcilesMissingFieldsAgainstExtractedValues(t *testing.T) {
	r, oracle, store := newRouter(t)
	oracle.Enqueue(busanReply)

	msg := "Plan a 3-day trip to Busan, budget 200000 per night"
	d, err := r.Route(context.Background(), "s1", msg, core.Snapshot{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeNeedInfo, d.Outcome)
	assert.True(t, d.Pauses())
	require.NotNil(t, d.NeedInfo)
	assert.Equal(t, []string{"departure_location", "departure_date"}, d.NeedInfo.MissingFields)
	assert.Equal(t, "출발지와 출발 날짜를 알려주세요.", d.NeedInfo.Message)
	assert.Equal(t, "부산", d.NeedInfo.CurrentContext["destination"])
	assert.Equal(t, "1박 200000원", d.NeedInfo.CurrentContext.String("preferences.budget"))

	snap := snapshot(t, store, "s1")
	assert.Equal(t, "부산", snap.Context()["destination"])
	var intent string
	ok, err := snap.DecodeLatest(core.KindPrimaryIntent, &intent)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, core.HandlerPlanner, intent)

	calls := oracle.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, msg, calls[0].LastUserText())
	assert.Contains(t, calls[0].Instructions, "현재까지의 컨텍스트")
}

func TestRoute_FollowUpInvokesPlanner(t *testing.T) {
	r, oracle, store := newRouter(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", core.MustEvent(core.KindContext, core.Context{
		"destination": "부산",
		"duration":    "3일",
		"preferences": map[string]any{"budget": "1박 200000원"},
	})))

	oracle.Enqueue(`{
		"primary_intent": "planner",
		"confidence": 0.9,
		"extracted_context": {"departure_location": "서울", "departure_date": "2025-05-01"},
		"missing_info": {"fields": ["destination", "departure_date"], "message": "?", "examples": {}}
	}`)

	d, err := r.Route(ctx, "s1", "서울에서 2025-05-01에 출발해요", snapshot(t, store, "s1"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeInvoke, d.Outcome)
	assert.Equal(t, core.HandlerPlanner, d.Handler)
	assert.Nil(t, d.NeedInfo)
	assert.Equal(t, "서울", d.Context["departure_location"])
	assert.Equal(t, "부산", d.Context["destination"])
	assert.Equal(t, "1박 200000원", d.Context.String("preferences.budget"))
}

func TestRoute_MissingFieldsNeverIncludePresentContext(t *testing.T) {
	present := core.Context{
		"departure_location": "서울",
		"destination":        "제주도",
		"preferences":        map[string]any{"budget": "100만원", "activities": []any{"해변"}},
	}

	tests := []struct {
		name   string
		fields string
		want   []string
	}{
		{"top level", `["departure_location", "duration"]`, []string{"duration"}},
		{"nested", `["preferences.budget", "preferences.accommodation"]`, []string{"preferences.accommodation"}},
		{"nested list", `["preferences.activities", "departure_date"]`, []string{"departure_date"}},
		{"duplicates of present", `["destination", "destination", "duration"]`, []string{"duration"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, oracle, store := newRouter(t)
			ctx := context.Background()
			require.NoError(t, store.Append(ctx, "s", core.MustEvent(core.KindContext, present)))

			oracle.Enqueue(`{"primary_intent": "planner", "confidence": 0.5, "extracted_context": {},
				"missing_info": {"fields": ` + tt.fields + `, "message": "m"}}`)

			d, err := r.Route(ctx, "s", "계획", snapshot(t, store, "s"))
			require.NoError(t, err)
			require.Equal(t, OutcomeNeedInfo, d.Outcome)
			assert.Equal(t, tt.want, d.NeedInfo.MissingFields)
			assert.NotNil(t, d.NeedInfo.Examples)
			for _, f := range d.NeedInfo.MissingFields {
				assert.False(t, present.Has(f), "field %s is present in context", f)
			}
		})
	}
}

func TestRoute_EmailCaptureSkipsOracle(t *testing.T) {
	dispatcher := new(mockDispatcher)
	dispatcher.On("Dispatch", mock.MatchedBy(func(job core.DeliveryJob) bool {
		return job.Email == "user@example.com" && job.Plan != nil && job.Context["destination"] == "부산"
	})).Return(nil)

	r, oracle, store := newRouter(t, func(o *Options) { o.Dispatcher = dispatcher })
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "s", core.MustEvent(core.KindContext, core.Context{"destination": "부산"})))
	require.NoError(t, store.Append(ctx, "s", core.MustEvent(core.KindPlan, &core.TravelPlan{Itinerary: []core.DayPlan{{Day: 1}}})))

	d, err := r.Route(ctx, "s", "  user@example.com ", snapshot(t, store, "s"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeCapture, d.Outcome)
	assert.Equal(t, EmailCapturedMessage, d.NeedInfo.Message)
	assert.Equal(t, []string{"calendar_confirm"}, d.NeedInfo.MissingFields)
	assert.Equal(t, 0, oracle.CallCount())
	dispatcher.AssertExpectations(t)

	email, ok := snapshot(t, store, "s").Email()
	assert.True(t, ok)
	assert.Equal(t, "user@example.com", email)
}

func TestRoute_EmailCaptureSurvivesDispatchFailure(t *testing.T) {
	dispatcher := new(mockDispatcher)
	dispatcher.On("Dispatch", mock.Anything).Return(errors.New("queue full"))

	r, _, store := newRouter(t, func(o *Options) { o.Dispatcher = dispatcher })
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "s", core.MustEvent(core.KindPlan, &core.TravelPlan{Itinerary: []core.DayPlan{{Day: 1}}})))

	d, err := r.Route(ctx, "s", "user@example.com", snapshot(t, store, "s"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCapture, d.Outcome)
}

func TestRoute_EmailWithoutPlanIsClassified(t *testing.T) {
	r, oracle, _ := newRouter(t)
	oracle.Enqueue(`{"primary_intent": "recommendation", "confidence": 0.4}`)

	d, err := r.Route(context.Background(), "s", "me@example.com 으로 추천해줘", core.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvoke, d.Outcome)
	assert.Equal(t, 1, oracle.CallCount())
}

func TestRoute_CalendarConfirmationCapture(t *testing.T) {
	r, oracle, store := newRouter(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "s", core.MustEvent(core.KindPlan, &core.TravelPlan{Itinerary: []core.DayPlan{{Day: 1}}})))
	require.NoError(t, store.Append(ctx, "s", core.MustEvent(core.KindEmail, "user@example.com")))

	d, err := r.Route(ctx, "s", "예", snapshot(t, store, "s"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeInvoke, d.Outcome)
	assert.Equal(t, core.HandlerCalendar, d.Handler)
	assert.Equal(t, 0, oracle.CallCount())
}

func TestRoute_RecommendationAlwaysInvokes(t *testing.T) {
	r, oracle, store := newRouter(t)
	oracle.Enqueue(`{
		"primary_intent": "recommendation",
		"confidence": 0.7,
		"extracted_context": {"collected_info.travel_style": "휴양", "ignored": null},
		"missing_info": {"fields": ["collected_info.budget"], "message": "예산은?"}
	}`)

	d, err := r.Route(context.Background(), "s", "쉬고 싶어요", core.Snapshot{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeInvoke, d.Outcome)
	assert.Equal(t, core.HandlerRecommendation, d.Handler)
	assert.Equal(t, "휴양", d.Context.String("collected_info.travel_style"))
	_, ok := d.Context["ignored"]
	assert.False(t, ok)
	assert.True(t, snapshot(t, store, "s").Has(core.KindContext))
}

func TestRoute_UnparseableReplyFallsBack(t *testing.T) {
	r, oracle, _ := newRouter(t, func(o *Options) { o.MaxAttempts = 2 })
	oracle.AddResponse("안녕", "안녕하세요! 어디로 여행을 떠나고 싶으신가요?")

	d, err := r.Route(context.Background(), "s", "안녕", core.Snapshot{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnroutable, d.Outcome)
	assert.Equal(t, "안녕하세요! 어디로 여행을 떠나고 싶으신가요?", d.NeedInfo.Message)
	assert.Equal(t, FallbackMissingFields, d.NeedInfo.MissingFields)
	assert.Contains(t, d.NeedInfo.Examples, "preferences")
	assert.Equal(t, 2, oracle.CallCount())
}

func TestRoute_EmptyReplyFallsBack(t *testing.T) {
	r, oracle, _ := newRouter(t, func(o *Options) { o.MaxAttempts = 2 })
	oracle.Enqueue("", "")

	d, err := r.Route(context.Background(), "s", "안녕", core.Snapshot{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnroutable, d.Outcome)
	assert.Equal(t, FallbackMessage, d.NeedInfo.Message)
	assert.Equal(t, FallbackMissingFields, d.NeedInfo.MissingFields)
	assert.Equal(t, 2, oracle.CallCount())
}

func TestRoute_UnknownIntentIsUnroutable(t *testing.T) {
	r, oracle, _ := newRouter(t, func(o *Options) { o.MaxAttempts = 1 })
	oracle.Enqueue(`{"primary_intent": "weather", "confidence": 1}`)

	d, err := r.Route(context.Background(), "s", "날씨 어때?", core.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnroutable, d.Outcome)
}

func TestRoute_TransportErrorPropagates(t *testing.T) {
	r, oracle, _ := newRouter(t)
	oracle.EnqueueError(errors.New("connection reset"))

	_, err := r.Route(context.Background(), "s", "부산 여행", core.Snapshot{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestFormatContext(t *testing.T) {
	out := formatContext(core.Context{
		"destination": "부산",
		"preferences": map[string]any{"budget": "100만원"},
	})
	assert.Contains(t, out, `"destination": "부산"`)
	assert.Contains(t, out, `"budget": "100만원"`)
	assert.Contains(t, out, `"activities": []`)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "invoke", OutcomeInvoke.String())
	assert.Equal(t, "capture", OutcomeCapture.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
