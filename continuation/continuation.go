// Package continuation decides, after a handler ran, whether the turn ends
// or another handler must run next. No handler is ever selected twice in
// one turn.
package continuation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/model"
)

// PlanCompletedMessage asks for a delivery address after a plan was built.
const PlanCompletedMessage = "여행 계획이 완성되었습니다. 이메일을 입력해주시면 상세한 장소 정보를 검색하고 메일로 보내드리겠습니다."

// Record is one handler invocation within a turn.
type Record struct {
	Handler string       `json:"handler"`
	Input   string       `json:"input"`
	Context core.Context `json:"context"`
	Result  core.Result  `json:"result"`
}

// History is the ordered list of invocations of the current turn.
type History []Record

// Executed returns the handler names in invocation order.
func (h History) Executed() []string {
	out := make([]string, 0, len(h))
	for _, r := range h {
		out = append(out, r.Handler)
	}
	return out
}

// Has reports whether handler already ran this turn.
func (h History) Has(handler string) bool {
	for _, r := range h {
		if r.Handler == handler {
			return true
		}
	}
	return false
}

// Decision is the outcome of a continuation step. With neither Next nor
// NeedInfo set the turn ends.
type Decision struct {
	Next     []string
	NeedInfo *core.NeedInfo
}

// Ends reports whether no further handler runs and the turn does not pause.
func (d Decision) Ends() bool { return len(d.Next) == 0 && d.NeedInfo == nil }

// NextSteps is the structured oracle reply.
type NextSteps struct {
	IsComplete bool     `json:"is_complete"`
	NextSteps  []string `json:"next_steps"`
}

// Options configure a Planner.
type Options struct {
	Logger        logging.Logger
	ValidHandlers []string
	MaxAttempts   int
}

// Planner implements the post-handler continuation policy.
type Planner struct {
	oracle model.Model
	valid  map[string]struct{}
	opts   Options
}

// New creates a Planner.
func New(oracle model.Model, optFns ...func(o *Options)) *Planner {
	opts := Options{
		Logger:        logging.NoOpLogger{},
		ValidHandlers: core.KnownHandlers,
		MaxAttempts:   model.DefaultMaxAttempts,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	valid := make(map[string]struct{}, len(opts.ValidHandlers))
	for _, h := range opts.ValidHandlers {
		valid[h] = struct{}{}
	}

	return &Planner{oracle: oracle, valid: valid, opts: opts}
}

// Next applies the policy to the latest result. Only oracle transport
// failures are returned as errors; an unparseable reply ends the turn.
func (p *Planner) Next(ctx context.Context, history History, result core.Result, current core.Context) (Decision, error) {
	if result.Status != core.StatusSuccess {
		return Decision{}, nil
	}

	if history.Has(core.HandlerPlanner) {
		return Decision{NeedInfo: &core.NeedInfo{
			Message:        PlanCompletedMessage,
			MissingFields:  []string{"email"},
			Examples:       map[string]any{"email": "user@example.com"},
			CurrentContext: current,
		}}, nil
	}

	executed := history.Executed()
	reply, err := model.Decode[NextSteps](ctx, p.oracle, "다음 단계를 결정해주세요.", func(o *model.DecodeOptions) {
		o.Instructions = buildInstructions(history, result, executed)
		o.MaxAttempts = p.opts.MaxAttempts
	})
	if err != nil {
		var parseErr *core.ClassifierParseError
		if errors.As(err, &parseErr) {
			p.opts.Logger.Warn("continuation reply unparseable, ending turn", "error", err)
			return Decision{}, nil
		}
		return Decision{}, fmt.Errorf("determine next steps: %w", err)
	}

	if reply.IsComplete {
		return Decision{}, nil
	}

	return Decision{Next: p.filter(reply.NextSteps, history)}, nil
}

// filter drops unknown, already executed and duplicate handler names.
func (p *Planner) filter(steps []string, history History) []string {
	seen := make(map[string]struct{}, len(steps))
	var out []string
	for _, s := range steps {
		if _, ok := p.valid[s]; !ok {
			continue
		}
		if history.Has(s) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func buildInstructions(history History, result core.Result, executed []string) string {
	return fmt.Sprintf(`당신은 여행 계획 조율자입니다.
현재까지의 작업 결과를 바탕으로 다음 단계를 결정하세요.

워크플로우 히스토리:
%s

현재 결과:
%s

이미 실행된 에이전트:
%s

사용 가능한 에이전트:
- planner: 여행 계획 수립, 일정 조정, 예산 계획 등
- recommendation: 여행지 추천, 여행 스타일 추천, 맞춤형 여행 계획 추천 등

응답 형식:
{"is_complete": true, "next_steps": ["planner"]}

주의사항:
1. 이미 실행된 에이전트는 다시 실행하지 마세요.
2. 모든 필요한 에이전트가 실행되었다면 is_complete를 true로 설정하세요.`, toJSON(history), toJSON(result), toJSON(executed))
}

func toJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
