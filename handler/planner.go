package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/model"
)

const (
	planningInstructions = `당신은 여행 계획 전문가입니다.
주어진 요구사항을 바탕으로 상세한 여행 계획을 수립해주세요.

계획은 다음 요소들을 포함해야 합니다:
1. 일별 상세 일정
2. 예상 비용 (교통, 숙박, 식비, 관광 등)
3. 추천 장소 및 활동
4. 여행 팁 및 주의사항

모든 숫자 값은 문자열이 아닌 실제 숫자로 제공해주세요.
비용은 모두 원 단위로 제공해주세요.

각 활동은 반드시 time(HH:MM), activity, location, duration(예: 2시간 30분), cost 필드를 포함해야 합니다.`

	optimizationInstructions = `당신은 여행 일정 최적화 전문가입니다.
주어진 여행 계획을 검토하고 최적화해주세요.

다음 사항들을 고려하여 최적화해주세요:
1. 이동 시간과 거리
2. 관광지 운영 시간
3. 식사 시간
4. 휴식 시간
5. 날씨와 계절

기존 계획과 동일한 구조를 유지해주세요.`

	budgetInstructions = `당신은 여행 예산 계획 전문가입니다.
주어진 여행 계획을 바탕으로 상세한 예산 계획을 수립해주세요.

다음 사항들을 고려하여 예산을 산출해주세요:
1. 교통비 (항공/기차/버스/택시 등)
2. 숙박비
3. 식비
4. 관광/활동 비용
5. 기타 비용 (보험, 통신 등)

모든 금액은 원 단위 숫자로 제공해주세요.`
)

// PlannerOptions configure a Planner.
type PlannerOptions struct {
	Logger      logging.Logger
	MaxAttempts int
}

// Planner drafts a travel plan in three oracle passes: draft, optimize
// and budget.
type Planner struct {
	oracle model.Model
	opts   PlannerOptions
}

// NewPlanner creates a Planner.
func NewPlanner(oracle model.Model, optFns ...func(o *PlannerOptions)) *Planner {
	opts := PlannerOptions{
		Logger:      logging.NoOpLogger{},
		MaxAttempts: model.DefaultMaxAttempts,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Planner{oracle: oracle, opts: opts}
}

// Name implements core.Handler.
func (p *Planner) Name() string { return core.HandlerPlanner }

// Validate implements core.Handler.
func (p *Planner) Validate(req core.Request) bool { return len(p.MissingFields(req)) == 0 }

// MissingFields implements core.FieldRequirer.
func (p *Planner) MissingFields(req core.Request) []string {
	var missing []string
	for _, f := range []string{"destination", "duration"} {
		if !req.Context.Has(f) {
			missing = append(missing, f)
		}
	}
	if _, ok := req.Context["preferences"]; !ok {
		missing = append(missing, "preferences")
	}
	return missing
}

// Process implements core.Handler.
func (p *Planner) Process(ctx context.Context, req core.Request) core.Result {
	if !p.Validate(req) {
		return core.Failure("Invalid planning requirements", "필수 요구사항(destination, duration, preferences)이 누락되었습니다.")
	}

	req.Report("여행 계획을 수립하고 있습니다...")

	draft, res, ok := decodePass[core.TravelPlan](ctx, p, planningInstructions, requirements(req.Context), "Invalid plan format", "계획 데이터 형식이 올바르지 않습니다")
	if !ok {
		return res
	}

	req.Report("여행 일정을 최적화하고 있습니다...")

	optimized, res, ok := decodePass[core.TravelPlan](ctx, p, optimizationInstructions, "최적화할 계획: "+mustJSON(draft), "Invalid optimized plan format", "최적화된 계획 데이터 형식이 올바르지 않습니다")
	if !ok {
		return res
	}

	req.Report("예산 계획을 수립하고 있습니다...")

	budget, res, ok := decodePass[core.Budget](ctx, p, budgetInstructions, "예산 계획 수립할 계획: "+mustJSON(optimized), "Invalid budget format", "예산 데이터 형식이 올바르지 않습니다")
	if !ok {
		return res
	}

	plan := &core.TravelPlan{
		Destination:     req.Context.String("destination"),
		Duration:        req.Context.String("duration"),
		Itinerary:       optimized.Itinerary,
		Budget:          *budget,
		Recommendations: optimized.Recommendations,
		Tips:            optimized.Tips,
	}

	p.opts.Logger.Info("travel plan created", "session_key", req.SessionKey, "days", len(plan.Itinerary), "activities", plan.ActivityCount())

	return core.Result{Status: core.StatusSuccess, Message: "여행 계획이 완성되었습니다.", Plan: plan}
}

// decodePass runs one structured oracle pass. A malformed reply maps to
// formatErr; a transport failure to a generic planning failure.
func decodePass[T any](ctx context.Context, p *Planner, instructions, prompt, formatErr, formatMsg string) (*T, core.Result, bool) {
	v, err := model.Decode[T](ctx, p.oracle, prompt, func(o *model.DecodeOptions) {
		o.Instructions = instructions
		o.MaxAttempts = p.opts.MaxAttempts
	})
	if err == nil {
		return v, core.Result{}, true
	}

	var parseErr *core.ClassifierParseError
	if errors.As(err, &parseErr) {
		return nil, core.FailureCause(formatErr, parseErr.Err, formatMsg+"."), false
	}

	return nil, core.FailureCause("Planning failed", err, "여행 계획 수립 중 오류가 발생했습니다."), false
}

func requirements(c core.Context) string {
	prompt := fmt.Sprintf("여행 계획을 수립해주세요:\n목적지: %s\n기간: %s\n선호사항: %s",
		c.String("destination"), c.String("duration"), mustJSON(c["preferences"]))
	if from := c.String("departure_location"); from != "" {
		prompt += "\n출발지: " + from
	}
	if date := c.String("departure_date"); date != "" {
		prompt += "\n출발일: " + date
	}
	return prompt
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
