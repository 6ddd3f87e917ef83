// Package router implements the single-turn routing decision: given the
// current session snapshot and the latest user message it picks the handler
// to invoke, or pauses the turn to ask for more information.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/model"
)

// Outcome classifies a routing decision.
type Outcome int

const (
	// OutcomeInvoke runs Handler with Context immediately.
	OutcomeInvoke Outcome = iota
	// OutcomeNeedInfo pauses the turn because required inputs are missing.
	OutcomeNeedInfo
	// OutcomeCapture pauses the turn after capturing a value a paused flow
	// was waiting for.
	OutcomeCapture
	// OutcomeUnroutable pauses the turn with a generic prompt after the
	// classifier reply could not be parsed.
	OutcomeUnroutable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvoke:
		return "invoke"
	case OutcomeNeedInfo:
		return "need_more_info"
	case OutcomeCapture:
		return "capture"
	case OutcomeUnroutable:
		return "unroutable"
	default:
		return "unknown"
	}
}

// Decision is the result of routing one message.
type Decision struct {
	Outcome Outcome

	// Set for OutcomeInvoke.
	Handler string
	Context core.Context

	// Set for every pausing outcome.
	NeedInfo *core.NeedInfo

	// Informational only.
	Confidence         float64
	SuggestedNextSteps []string
}

// Pauses reports whether the decision ends the turn without invoking a handler.
func (d Decision) Pauses() bool { return d.Outcome != OutcomeInvoke }

// Dispatcher schedules asynchronous delivery of a finished plan.
type Dispatcher interface {
	Dispatch(job core.DeliveryJob) error
}

// Messages shown to the user by routing outcomes.
const (
	FallbackMessage      = "여행 계획에 필요한 정보를 알려주세요. 출발지, 출발일, 목적지, 여행 기간과 선호 사항을 입력해 주세요."
	EmailCapturedMessage = "이메일이 등록되었습니다. 검색 결과는 이메일로 전송됩니다. 캘린더에 여행 일정을 등록하시겠습니까? (예/아니오)"
)

// Options configure a Router.
type Options struct {
	Logger      logging.Logger
	Dispatcher  Dispatcher
	MaxAttempts int
	Now         func() time.Time
}

// Router decides the first handler of a turn.
type Router struct {
	store  core.ContextStore
	oracle model.Model
	opts   Options
}

// New creates a Router. The store should already apply the availability
// policy (see session.Resilient); append failures are only logged here.
func New(store core.ContextStore, oracle model.Model, optFns ...func(o *Options)) *Router {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		MaxAttempts: model.DefaultMaxAttempts,
		Now:         time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Router{store: store, oracle: oracle, opts: opts}
}

// Route classifies message against snap. Only oracle transport failures are
// returned as errors; malformed oracle replies yield OutcomeUnroutable.
func (r *Router) Route(ctx context.Context, sessionKey, message string, snap core.Snapshot) (Decision, error) {
	msg := strings.TrimSpace(message)
	current := snap.Context()

	if looksLikeEmail(msg) && snap.Has(core.KindPlan) {
		return r.captureEmail(ctx, sessionKey, msg, current, snap), nil
	}

	if _, ok := snap.Email(); ok && snap.Has(core.KindPlan) {
		return Decision{Outcome: OutcomeInvoke, Handler: core.HandlerCalendar, Context: current}, nil
	}

	instructions := buildInstructions(r.opts.Now().Year(), current, snap.CollectedInfo())
	analysis, err := model.Decode[IntentAnalysis](ctx, r.oracle, msg, func(o *model.DecodeOptions) {
		o.Instructions = instructions
		o.MaxAttempts = r.opts.MaxAttempts
	})
	if err != nil {
		var parseErr *core.ClassifierParseError
		if errors.As(err, &parseErr) {
			r.opts.Logger.Warn("intent classification unparseable", "session_key", sessionKey, "error", err)
			return unroutable(parseErr.Raw, current), nil
		}
		return Decision{}, fmt.Errorf("classify intent: %w", err)
	}

	return r.decide(ctx, sessionKey, analysis, current), nil
}

func (r *Router) captureEmail(ctx context.Context, sessionKey, email string, current core.Context, snap core.Snapshot) Decision {
	plan, _ := snap.Plan()

	if r.opts.Dispatcher != nil {
		job := core.DeliveryJob{SessionKey: sessionKey, Email: email, Context: current.Clone(), Plan: plan}
		if err := r.opts.Dispatcher.Dispatch(job); err != nil {
			r.opts.Logger.Warn("delivery dispatch failed", "session_key", sessionKey, "error", err)
		}
	}

	r.append(ctx, sessionKey, core.KindEmail, email)

	return Decision{
		Outcome: OutcomeCapture,
		NeedInfo: &core.NeedInfo{
			Message:        EmailCapturedMessage,
			MissingFields:  []string{"calendar_confirm"},
			Examples:       map[string]any{"calendar_confirm": "예"},
			CurrentContext: current,
		},
	}
}

func (r *Router) decide(ctx context.Context, sessionKey string, a *IntentAnalysis, current core.Context) Decision {
	extracted := core.Context(a.ExtractedContext)

	var missing []string
	for _, f := range a.MissingInfo.Fields {
		if current.Has(f) || extracted.Has(f) {
			continue
		}
		missing = append(missing, f)
	}

	target := targetContext(a.PrimaryIntent)
	for field, value := range extracted {
		target.Set(field, value)
	}
	merged := core.Merge(current, target)

	r.append(ctx, sessionKey, core.KindPrimaryIntent, a.PrimaryIntent)
	r.append(ctx, sessionKey, core.KindContext, merged)

	if a.PrimaryIntent == core.HandlerRecommendation || len(missing) == 0 {
		return Decision{
			Outcome:            OutcomeInvoke,
			Handler:            a.PrimaryIntent,
			Context:            merged,
			Confidence:         a.Confidence,
			SuggestedNextSteps: a.SuggestedNextSteps,
		}
	}

	examples := a.MissingInfo.Examples
	if examples == nil {
		examples = map[string]any{}
	}

	return Decision{
		Outcome: OutcomeNeedInfo,
		NeedInfo: &core.NeedInfo{
			Message:        a.MissingInfo.Message,
			MissingFields:  missing,
			Examples:       examples,
			CurrentContext: merged,
		},
		Confidence: a.Confidence,
	}
}

func (r *Router) append(ctx context.Context, sessionKey string, kind core.EventKind, payload any) {
	ev, err := core.NewEvent(kind, payload)
	if err != nil {
		r.opts.Logger.Error("encode event failed", "session_key", sessionKey, "kind", string(kind), "error", err)
		return
	}
	if err := r.store.Append(ctx, sessionKey, ev); err != nil {
		r.opts.Logger.Warn("append event failed", "session_key", sessionKey, "kind", string(kind), "error", err)
	}
}

// looksLikeEmail reports whether msg contains an address marker and a
// domain separator.
func looksLikeEmail(msg string) bool {
	return strings.Contains(msg, "@") && strings.Contains(msg, ".")
}

// FallbackMissingFields are requested when the classifier reply is unusable.
var FallbackMissingFields = []string{"departure_location", "departure_date", "destination", "duration", "preferences"}

func unroutable(raw string, current core.Context) Decision {
	if strings.TrimSpace(raw) == "" {
		raw = FallbackMessage
	}
	return Decision{
		Outcome: OutcomeUnroutable,
		NeedInfo: &core.NeedInfo{
			Message:       raw,
			MissingFields: append([]string(nil), FallbackMissingFields...),
			Examples: map[string]any{
				"departure_location": "서울",
				"departure_date":     "2024-05-01",
				"destination":        "제주도",
				"duration":           "3박 4일",
				"preferences": map[string]any{
					"budget":         "100만원",
					"activities":     []any{"해변", "등산", "맛집"},
					"accommodation":  "호텔",
					"transportation": "렌터카",
				},
			},
			CurrentContext: current,
		},
	}
}
