package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/tripmesh/continuation"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
)

// User-facing messages of engine generated events.
const (
	ErrorMessage             = "요청을 처리하는 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
	HandlerFailedMessage     = "에이전트 실행 중 오류가 발생했습니다."
	InsufficientInputMessage = "요청을 처리하기 위한 정보가 부족합니다. 추가 정보를 입력해주세요."
)

var startMessages = map[string]string{
	core.HandlerPlanner:        "여행 계획 에이전트가 작업을 시작합니다...",
	core.HandlerSearch:         "장소 검색 에이전트가 작업을 시작합니다...",
	core.HandlerCalendar:       "캘린더 에이전트가 작업을 시작합니다...",
	core.HandlerMail:           "메일 에이전트가 작업을 시작합니다...",
	core.HandlerRecommendation: "여행 추천 에이전트가 작업을 시작합니다...",
}

func startMessage(handler string) string {
	if msg, ok := startMessages[handler]; ok {
		return msg
	}
	return fmt.Sprintf("%s 에이전트가 작업을 시작합니다...", handler)
}

// turn is the state of one Invoke call. It is confined to the turn
// goroutine except for the emitter.
type turn struct {
	e       *Engine
	key     string
	id      string
	message string

	emit    *emitter
	log     logging.Logger
	limiter *core.StepLimiter
	span    trace.Span

	next        string
	current     core.Context
	history     continuation.History
	last        core.Result
	lastHandler string
	final       core.Status
}

func (e *Engine) newTurn(ctx context.Context, key, id, message string, out chan core.TurnEvent) *turn {
	return &turn{
		e:       e,
		key:     key,
		id:      id,
		message: message,
		emit:    &emitter{ctx: ctx, out: out},
		log:     e.turnLogger(key, id),
		limiter: core.NewStepLimiter(e.config.MaxSteps),
		span:    trace.SpanFromContext(ctx),
	}
}

func (t *turn) run(ctx context.Context) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "turn", trace.WithAttributes(
		attribute.String("session.key", t.key),
		attribute.String("turn.id", t.id),
	))
	t.span = span
	defer span.End()

	defer t.emit.finish()

	defer func() {
		if r := recover(); r != nil {
			t.log.Error("turn panicked", "panic", r)
			t.fail(ctx, "", fmt.Errorf("panic: %v", r), string(debug.Stack()))
		}
	}()

	if t.e.config.SerializeSessions {
		release, err := t.e.locks.acquire(ctx, t.key)
		if err != nil {
			t.log.Warn("turn cancelled while waiting for session", "error", err)
			return
		}
		defer release()
	}

	state := StateRoute
	for !state.Terminal() {
		if err := ctx.Err(); err != nil {
			t.log.Info("turn cancelled", "state", state.String(), "error", err)
			break
		}

		next := t.step(ctx, state)
		t.callback(ctx, CallbackOnTransition, &CallbackContext{From: state, To: next})
		state = next
	}

	span.SetAttributes(
		attribute.String("turn.state", state.String()),
		attribute.String("turn.status", string(t.final)),
		attribute.Int("turn.steps", t.limiter.Count()),
	)

	if tl, ok := t.log.(*logging.TurnLogger); ok {
		tl.LogTurn(t.limiter.Count(), string(t.final), time.Since(start))
	} else {
		t.log.Info("turn completed", "steps", t.limiter.Count(), "final_status", string(t.final), "duration", time.Since(start))
	}
}

func (t *turn) step(ctx context.Context, s State) State {
	switch s {
	case StateRoute:
		return t.route(ctx)
	case StateInvoke:
		return t.invoke(ctx)
	case StateContinue:
		return t.cont(ctx)
	default:
		return StateEnd
	}
}

func (t *turn) route(ctx context.Context) State {
	snap, err := t.e.store.Get(ctx, t.key)
	if err != nil {
		t.fail(ctx, "", fmt.Errorf("load session: %w", err), "")
		return StateEnd
	}

	decision, err := t.e.router.Route(ctx, t.key, t.message, snap)
	if err != nil {
		t.fail(ctx, "", err, "")
		return StateEnd
	}

	if decision.Pauses() {
		t.log.Debug("routing paused turn", "outcome", decision.Outcome.String())
		t.pause("", decision.NeedInfo)
		return StatePaused
	}

	t.next = decision.Handler
	t.current = decision.Context

	return StateInvoke
}

func (t *turn) invoke(ctx context.Context) State {
	name := t.next

	if err := t.limiter.Increment(); err != nil {
		t.fail(ctx, name, err, "")
		return StateEnd
	}

	h, ok := t.e.Handler(name)
	if !ok {
		t.fail(ctx, name, &core.HandlerFailure{Handler: name, Err: errors.New("handler not registered")}, "")
		return StateEnd
	}

	// Handlers run to completion even when the caller went away.
	runCtx := context.WithoutCancel(ctx)

	snap, err := t.e.store.Get(runCtx, t.key)
	if err != nil {
		t.log.Warn("load session for handler failed", "handler", name, "error", err)
		snap = core.Snapshot{}
	}

	current := t.current
	if current == nil {
		current = snap.Context()
	}

	req := core.Request{
		SessionKey: t.key,
		Message:    t.message,
		Context:    current.Clone(),
		Progress: func(msg string) {
			t.emit.send(core.ProcessingEvent(name, msg))
		},
	}
	if plan, ok := snap.Plan(); ok {
		req.Plan = plan
	}
	if email, ok := snap.Email(); ok {
		req.Email = email
	}
	for _, rec := range t.history {
		if sr, ok := rec.Result.Data.(*core.SearchResult); ok {
			req.Search = sr
		}
	}

	t.emit.send(core.ProcessingEvent(name, startMessage(name)))

	if err := t.e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeHandler, &CallbackContext{
		SessionKey: t.key, TurnID: t.id, Handler: name, Request: &req,
	}); err != nil {
		t.fail(ctx, name, err, "")
		return StateEnd
	}

	if !h.Validate(req) {
		missing := []string{}
		if fr, ok := h.(core.FieldRequirer); ok {
			missing = append(missing, fr.MissingFields(req)...)
		}
		t.pause(name, &core.NeedInfo{
			Message:        InsufficientInputMessage,
			MissingFields:  missing,
			Examples:       map[string]any{},
			CurrentContext: current,
		})
		return StatePaused
	}

	result := t.process(runCtx, h, req)

	t.callback(ctx, CallbackAfterHandler, &CallbackContext{Handler: name, Request: &req, Result: &result})

	t.history = append(t.history, continuation.Record{
		Handler: name,
		Input:   t.message,
		Context: current,
		Result:  result,
	})
	t.last = result
	t.lastHandler = name

	t.persist(runCtx, name, result)

	switch result.Status {
	case core.StatusSuccess:
		t.final = core.StatusSuccess
		t.emit.send(core.SuccessEvent(name, result))
		return StateContinue
	case core.StatusConversation:
		t.final = core.StatusSuccess
		t.emit.send(core.SuccessEvent(name, result))
		return StateEnd
	case core.StatusNeedMoreInfo:
		t.pause(name, needInfoFrom(result, current))
		return StatePaused
	default:
		errText := result.Error
		if errText == "" {
			errText = fmt.Sprintf("handler %s returned status %q", name, result.Status)
		}
		message := result.Message
		if message == "" {
			message = HandlerFailedMessage
		}
		t.final = core.StatusError
		t.span.SetStatus(codes.Error, errText)
		t.emit.send(core.ErrorEvent(name, errText, message, ""))
		t.callback(ctx, CallbackOnError, &CallbackContext{Handler: name, Result: &result, Err: errors.New(errText)})
		return StateEnd
	}
}

// process runs a single handler inside its own span. A panic becomes an
// error Result.
func (t *turn) process(ctx context.Context, h core.Handler, req core.Request) (result core.Result) {
	name := h.Name()

	ctx, span := tracer.Start(ctx, "handler "+name, trace.WithAttributes(attribute.String("handler.name", name)))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			failure := &core.HandlerFailure{Handler: name, Err: fmt.Errorf("panic: %v", r)}
			t.log.Error("handler panicked", "handler", name, "panic", r, "stack", string(debug.Stack()))
			result = core.Failure(failure.Error(), HandlerFailedMessage)
		}

		span.SetAttributes(attribute.String("handler.status", string(result.Status)))
		if result.Status == core.StatusError {
			span.SetStatus(codes.Error, result.Error)
		}
		span.End()

		if tl, ok := t.log.(*logging.TurnLogger); ok {
			tl.LogHandlerCall(name, string(result.Status), time.Since(start))
		} else {
			t.log.Debug("handler call completed", "handler", name, "status", string(result.Status), "duration", time.Since(start))
		}
	}()

	return h.Process(ctx, req)
}

// persist records the handler output: a plan event when the result carries
// a travel plan and a result event for any other successful payload.
func (t *turn) persist(ctx context.Context, handler string, result core.Result) {
	switch {
	case result.Cleared:
		return
	case result.Plan != nil:
		t.append(ctx, core.KindPlan, result.Plan)
	case result.Status == core.StatusSuccess || result.Status == core.StatusConversation:
		t.append(ctx, core.KindResult, map[string]any{"handler": handler, "result": result})
	}
}

func (t *turn) append(ctx context.Context, kind core.EventKind, payload any) {
	ev, err := core.NewEvent(kind, payload)
	if err != nil {
		t.log.Error("encode event failed", "kind", string(kind), "error", err)
		return
	}
	if err := t.e.store.Append(ctx, t.key, ev); err != nil {
		t.log.Warn("append event failed", "kind", string(kind), "error", err)
	}
}

func (t *turn) cont(ctx context.Context) State {
	decision, err := t.e.planner.Next(ctx, t.history, t.last, t.current)
	if err != nil {
		t.fail(ctx, t.lastHandler, err, "")
		return StateEnd
	}

	if decision.NeedInfo != nil {
		t.pause(t.lastHandler, decision.NeedInfo)
		return StatePaused
	}

	if decision.Ends() {
		return StateEnd
	}

	t.next = decision.Next[0]

	return StateInvoke
}

func (t *turn) pause(handler string, info *core.NeedInfo) {
	t.final = core.StatusNeedMoreInfo
	t.emit.send(core.NeedInfoEvent(handler, info))
}

// fail emits a terminal error event. detail only carries diagnostics.
func (t *turn) fail(ctx context.Context, handler string, err error, detail string) {
	t.final = core.StatusError
	t.span.RecordError(err)
	t.span.SetStatus(codes.Error, err.Error())
	t.log.Error("turn failed", "handler", handler, "error", err)
	t.emit.send(core.ErrorEvent(handler, err.Error(), ErrorMessage, detail))
	t.callback(ctx, CallbackOnError, &CallbackContext{Handler: handler, Err: err})
}

func (t *turn) callback(ctx context.Context, typ CallbackType, cbCtx *CallbackContext) {
	cbCtx.SessionKey = t.key
	cbCtx.TurnID = t.id
	if err := t.e.callbacks.ExecuteCallbacks(ctx, typ, cbCtx); err != nil {
		t.log.Warn("callback failed", "type", string(typ), "error", err)
	}
}

func needInfoFrom(result core.Result, current core.Context) *core.NeedInfo {
	switch ni := result.Data.(type) {
	case *core.NeedInfo:
		if ni != nil {
			return ni
		}
	case core.NeedInfo:
		return &ni
	}

	return &core.NeedInfo{
		Message:        result.Message,
		MissingFields:  []string{},
		Examples:       map[string]any{},
		CurrentContext: current,
	}
}

// emitter serializes sends to the turn stream and guarantees the completion
// marker is the last element before close.
type emitter struct {
	ctx    context.Context
	out    chan core.TurnEvent
	mu     sync.Mutex
	closed bool
}

func (m *emitter) send(ev core.TurnEvent) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.ctx.Err() != nil {
		return false
	}

	select {
	case m.out <- ev:
		return true
	case <-m.ctx.Done():
		return false
	}
}

func (m *emitter) finish() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true

	ev := core.CompleteEvent()
	select {
	case m.out <- ev:
	default:
		select {
		case m.out <- ev:
		case <-m.ctx.Done():
		}
	}

	close(m.out)
}
