package handler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/internal/testutil"
	"github.com/hupe1980/tripmesh/model"
)

func plannerRequest() core.Request {
	return core.Request{
		SessionKey: "s1",
		Context: core.Context{
			"destination": "부산",
			"duration":    "1박 2일",
			"preferences": map[string]any{"budget": "50만원", "activities": []any{"해변", "맛집"}},
		},
	}
}

func TestPlanner_Process(t *testing.T) {
	oracle := model.NewMockModel("mock", "test")

	draft := &core.TravelPlan{Itinerary: []core.DayPlan{{Day: 1, Activities: []core.Activity{{Time: "10:00", Activity: "초안", Location: "해운대"}}}}}
	optimized := testutil.SamplePlan()
	budget := core.Budget{Total: 300000, Food: core.BudgetItem{Estimated: 80000}}

	oracle.Enqueue(testutil.JSON(draft), testutil.JSON(optimized), testutil.JSON(budget))

	progress, messages := progressRecorder()
	req := plannerRequest()
	req.Progress = progress

	p := NewPlanner(oracle)
	require.True(t, p.Validate(req))

	res := p.Process(context.Background(), req)

	require.Equal(t, core.StatusSuccess, res.Status, res.Message)
	require.NotNil(t, res.Plan)
	assert.Equal(t, "부산", res.Plan.Destination)
	assert.Equal(t, "1박 2일", res.Plan.Duration)
	assert.Equal(t, optimized.Itinerary, res.Plan.Itinerary)
	assert.Equal(t, optimized.Tips, res.Plan.Tips)
	assert.Equal(t, 300000.0, res.Plan.Budget.Total)

	calls := oracle.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[0].LastUserText(), "목적지: 부산")
	assert.True(t, strings.HasPrefix(calls[1].LastUserText(), "최적화할 계획: "))
	assert.True(t, strings.HasPrefix(calls[2].LastUserText(), "예산 계획 수립할 계획: "))
	assert.Equal(t, "TravelPlan", calls[0].SchemaName)
	assert.Equal(t, "Budget", calls[2].SchemaName)

	assert.Equal(t, []string{
		"여행 계획을 수립하고 있습니다...",
		"여행 일정을 최적화하고 있습니다...",
		"예산 계획을 수립하고 있습니다...",
	}, messages())
}

func TestPlanner_MissingFields(t *testing.T) {
	p := NewPlanner(model.NewMockModel("mock", "test"))

	req := core.Request{Context: core.Context{"destination": "부산"}}

	assert.False(t, p.Validate(req))
	assert.Equal(t, []string{"duration", "preferences"}, p.MissingFields(req))

	res := p.Process(context.Background(), req)
	assert.Equal(t, core.StatusError, res.Status)
	assert.Equal(t, "Invalid planning requirements", res.Error)
}

func TestPlanner_InvalidFormat(t *testing.T) {
	oracle := model.NewMockModel("mock", "test")
	oracle.Enqueue("일정을 만들 수 없습니다")

	p := NewPlanner(oracle, func(o *PlannerOptions) { o.MaxAttempts = 1 })
	res := p.Process(context.Background(), plannerRequest())

	assert.Equal(t, core.StatusError, res.Status)
	assert.True(t, strings.HasPrefix(res.Error, "Invalid plan format: "), res.Error)
	assert.Equal(t, "계획 데이터 형식이 올바르지 않습니다.", res.Message)
	assert.Equal(t, 1, oracle.CallCount())
}

func TestPlanner_OracleFailure(t *testing.T) {
	oracle := model.NewMockModel("mock", "test")
	oracle.Enqueue(testutil.JSON(testutil.SamplePlan()))
	oracle.EnqueueError(errors.New("rate limited"))

	res := NewPlanner(oracle).Process(context.Background(), plannerRequest())

	assert.Equal(t, core.StatusError, res.Status)
	assert.Equal(t, "Planning failed: rate limited", res.Error)
	assert.Equal(t, "여행 계획 수립 중 오류가 발생했습니다.", res.Message)
	assert.NotContains(t, res.Message, "rate limited")
	assert.Nil(t, res.Plan)
}
