package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/model"
)

// Recommendation dialogue steps, stored as next_step in collected_info.
const (
	StepPreferences = "preferences"
	StepDestination = "destination"
)

// PreferenceFields must all be collected before destinations are suggested.
var PreferenceFields = []string{"travel_style", "activities", "budget", "accommodation", "transportation"}

const preferencesInstructions = `당신은 여행 추천 전문가입니다. 사용자의 여행 선호도를 파악하기 위해 대화를 이어가세요.

현재까지 파악된 정보:
%s
%s

이미 수집된 정보는 다시 물어보지 마세요. 아직 수집되지 않은 정보만 물어보세요.
다음 항목들 중 아직 파악되지 않은 항목만 순차적으로 파악해주세요:
1. 여행 스타일 (휴양/관광/문화/액티비티 등)
2. 선호하는 활동 (해변/등산/맛집/쇼핑 등)
3. 예산 범위
4. 선호하는 숙박 유형 (호텔/게스트하우스/리조트 등)
5. 교통수단 선호도 (렌터카/대중교통 등)

사용자의 응답에서 활동이나 선호도를 명확하게 파악했다면, 해당 정보를 collected_info에 반드시 포함시켜주세요.
각 항목에 대해 구체적인 예시를 들어 설명하고, 사용자의 답변을 바탕으로 다음 단계로 진행하세요.`

const destinationInstructions = `사용자의 선호도를 바탕으로 여행지를 추천해주세요. 그리고 사용자에게 갈 여행지를 물어보세요.

사용자 선호도:
%s

다음 사항을 고려하여 추천해주세요:
1. 여행 스타일에 맞는 장소
2. 선호하는 활동을 즐길 수 있는 곳
3. 예산 범위 내에서 가능한 곳
4. 선호하는 숙박 시설이 있는 곳
5. 교통수단 선호도에 맞는 곳`

// PreferencesReply is the oracle reply of the preferences step.
type PreferencesReply struct {
	Message       string         `json:"message"`
	CurrentStep   string         `json:"current_step"`
	CollectedInfo map[string]any `json:"collected_info"`
}

// Destination is one suggested travel destination.
type Destination struct {
	Name            string   `json:"name"`
	Reason          string   `json:"reason"`
	BestTime        string   `json:"best_time"`
	EstimatedBudget string   `json:"estimated_budget"`
	Highlights      []string `json:"highlights"`
}

// DestinationReply is the oracle reply of the destination step.
type DestinationReply struct {
	Message         string        `json:"message"`
	CurrentStep     string        `json:"current_step"`
	Recommendations []Destination `json:"recommendations"`
}

// Validate implements model.Validator.
func (r *DestinationReply) Validate() error {
	if len(r.Recommendations) == 0 {
		return errors.New("recommendations must not be empty")
	}
	return nil
}

// RecommendationOptions configure a Recommendation handler.
type RecommendationOptions struct {
	MaxAttempts int
	Logger      logging.Logger
}

// Recommendation elicits travel preferences over several turns and then
// suggests destinations. Progress lives in the collected_info event.
type Recommendation struct {
	oracle model.Model
	store  core.ContextStore
	opts   RecommendationOptions
}

// NewRecommendation creates a Recommendation handler.
func NewRecommendation(oracle model.Model, store core.ContextStore, optFns ...func(o *RecommendationOptions)) *Recommendation {
	opts := RecommendationOptions{
		MaxAttempts: model.DefaultMaxAttempts,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Recommendation{oracle: oracle, store: store, opts: opts}
}

// Name implements core.Handler.
func (r *Recommendation) Name() string { return core.HandlerRecommendation }

// Validate implements core.Handler.
func (r *Recommendation) Validate(core.Request) bool { return true }

// Process implements core.Handler. Replies end the turn with
// StatusConversation so the user can answer.
func (r *Recommendation) Process(ctx context.Context, req core.Request) core.Result {
	snap, err := r.store.Get(ctx, req.SessionKey)
	if err != nil {
		return recommendationFailure(err)
	}

	collected := snap.CollectedInfo()
	step := collected.String("next_step")
	if step != StepDestination {
		step = StepPreferences
	}

	if step == StepDestination {
		return r.destinations(ctx, req, collected)
	}
	return r.preferences(ctx, req, collected, snap.Context())
}

func (r *Recommendation) preferences(ctx context.Context, req core.Request, collected, current core.Context) core.Result {
	instructions := fmt.Sprintf(preferencesInstructions, mustJSON(collected), mustJSON(current))

	reply, err := model.Decode[PreferencesReply](ctx, r.oracle, req.Message, func(o *model.DecodeOptions) {
		o.Instructions = instructions
		o.MaxAttempts = r.opts.MaxAttempts
	})
	if err != nil {
		return r.replyFailure(err, StepPreferences)
	}

	merged := core.Merge(collected, reply.CollectedInfo)

	missing := MissingPreferences(merged)
	if len(missing) == 0 {
		merged["next_step"] = StepDestination
	} else {
		merged["next_step"] = StepPreferences
	}

	ev, err := core.NewEvent(core.KindCollectedInfo, merged)
	if err != nil {
		return recommendationFailure(err)
	}
	if err := r.store.Append(ctx, req.SessionKey, ev); err != nil {
		r.opts.Logger.Warn("collected info not persisted", "session_key", req.SessionKey, "error", err)
	}

	return core.Result{
		Status:  core.StatusConversation,
		Message: reply.Message,
		Data: map[string]any{
			"current_step":   StepPreferences,
			"collected_info": merged,
			"missing_fields": missing,
		},
	}
}

func (r *Recommendation) destinations(ctx context.Context, req core.Request, collected core.Context) core.Result {
	instructions := fmt.Sprintf(destinationInstructions, mustJSON(collected))

	reply, err := model.Decode[DestinationReply](ctx, r.oracle, req.Message, func(o *model.DecodeOptions) {
		o.Instructions = instructions
		o.MaxAttempts = r.opts.MaxAttempts
	})
	if err != nil {
		return r.replyFailure(err, StepDestination)
	}

	return core.Result{
		Status:  core.StatusConversation,
		Message: reply.Message,
		Data: map[string]any{
			"current_step":    StepDestination,
			"recommendations": reply.Recommendations,
		},
	}
}

func (r *Recommendation) replyFailure(err error, step string) core.Result {
	var parseErr *core.ClassifierParseError
	if errors.As(err, &parseErr) {
		res := core.Failure("Invalid recommendation reply", "LLM 응답이 JSON 형식이 아닙니다")
		res.Data = map[string]any{"raw_response": parseErr.Raw, "current_step": step}
		return res
	}
	return recommendationFailure(err)
}

// MissingPreferences returns the PreferenceFields not yet collected.
func MissingPreferences(collected core.Context) []string {
	var missing []string
	for _, f := range PreferenceFields {
		if !collected.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

func recommendationFailure(err error) core.Result {
	return core.FailureCause("Recommendation failed", err, "추천 처리 중 오류가 발생했습니다.")
}
