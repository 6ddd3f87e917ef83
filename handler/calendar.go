package handler

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/tripmesh/calendar"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/internal/util"
	"github.com/hupe1980/tripmesh/logging"
)

const (
	calendarPrompt    = "등록하시려면 'yes', 건너뛰시려면 'skip', 종료하시려면 'done'을 입력해주세요."
	reservationNotice = "⚠️ 사전 예약이 필요한 활동입니다."

	defaultActivityMinutes = 60
)

var (
	hoursPattern   = regexp.MustCompile(`(\d+)\s*시간`)
	minutesPattern = regexp.MustCompile(`(\d+)\s*분`)

	confirmWords = map[string]bool{"yes": true, "y": true, "예": true, "네": true, "응": true}
	declineWords = map[string]bool{"no": true, "n": true, "아니오": true, "아니요": true, "아니": true}
)

// CalendarOptions configure a Calendar handler.
type CalendarOptions struct {
	// CalendarID is used when no delivery address was captured.
	CalendarID string
	// Now supplies the fallback departure date.
	Now    func() time.Time
	Logger logging.Logger
}

// Calendar walks the user through the itinerary one activity at a time and
// registers the confirmed ones as calendar events. The dialogue cursor is
// persisted as a conversation_state event after every step.
type Calendar struct {
	store    core.ContextStore
	inserter calendar.Inserter
	opts     CalendarOptions
}

// NewCalendar creates a Calendar handler.
func NewCalendar(store core.ContextStore, inserter calendar.Inserter, optFns ...func(o *CalendarOptions)) *Calendar {
	opts := CalendarOptions{
		CalendarID: "primary",
		Now:        time.Now,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Calendar{store: store, inserter: inserter, opts: opts}
}

// Name implements core.Handler.
func (c *Calendar) Name() string { return core.HandlerCalendar }

// Validate implements core.Handler. The plan is resolved from the store
// when the request carries none.
func (c *Calendar) Validate(core.Request) bool { return true }

// Process implements core.Handler.
func (c *Calendar) Process(ctx context.Context, req core.Request) core.Result {
	snap, err := c.store.Get(ctx, req.SessionKey)
	if err != nil {
		return calendarFailure(err)
	}

	plan := req.Plan
	if plan == nil {
		if p, ok := snap.Plan(); ok {
			plan = p
		}
	}
	if plan == nil || plan.ActivityCount() == 0 {
		return core.Failure("No travel plan", "캘린더에 등록할 여행 일정이 없습니다.")
	}

	answer := strings.ToLower(strings.TrimSpace(req.Message))
	state, started := snap.CalendarState()

	if !started || !state.Started {
		if declineWords[answer] {
			if err := c.store.Clear(ctx, req.SessionKey); err != nil {
				return calendarFailure(err)
			}
			return core.Result{Status: core.StatusConversation, Message: "캘린더 등록을 건너뛰었습니다. 즐거운 여행 되세요!", Cleared: true}
		}
		return c.start(ctx, req, plan)
	}

	if answer == "done" || !validCursor(plan, state) {
		return c.finish(ctx, req.SessionKey, state)
	}

	if confirmWords[answer] {
		activity := plan.Itinerary[state.CurrentDay-1].Activities[state.CurrentActivity]
		ev, err := c.inserter.Insert(ctx, c.calendarID(req, snap), c.event(req, activity, state.CurrentDay))
		if err != nil {
			return calendarFailure(err)
		}
		state.ConfirmedEvents = append(state.ConfirmedEvents, ev)
		c.opts.Logger.Info("calendar event registered", "session_key", req.SessionKey, "day", state.CurrentDay, "title", ev.Title)
	}

	if !advance(plan, &state) {
		if err := c.save(ctx, req.SessionKey, state); err != nil {
			return calendarFailure(err)
		}
		return summary(state)
	}

	if err := c.save(ctx, req.SessionKey, state); err != nil {
		return calendarFailure(err)
	}

	next := plan.Itinerary[state.CurrentDay-1].Activities[state.CurrentActivity]
	title := fmt.Sprintf("%d일차의 다음 일정을 캘린더에 등록하시겠습니까?", state.CurrentDay)

	return core.Result{
		Status:  core.StatusConversation,
		Message: proposal(title, next, plan.Tips),
		Data:    state,
	}
}

func (c *Calendar) start(ctx context.Context, req core.Request, plan *core.TravelPlan) core.Result {
	state := core.CalendarState{CurrentDay: 1, CurrentActivity: 0, Started: true, ConfirmedEvents: []core.CalendarEvent{}}
	if len(plan.Itinerary[0].Activities) == 0 && !advance(plan, &state) {
		return core.Failure("No travel plan", "캘린더에 등록할 여행 일정이 없습니다.")
	}

	if err := c.save(ctx, req.SessionKey, state); err != nil {
		return calendarFailure(err)
	}

	day := plan.Itinerary[state.CurrentDay-1]
	title := fmt.Sprintf("여행 첫날(%d일차)의 첫 일정을 캘린더에 등록하시겠습니까? (%s)", day.Day, c.departure(req).Format(time.DateOnly))

	return core.Result{
		Status:  core.StatusConversation,
		Message: proposal(title, day.Activities[state.CurrentActivity], plan.Tips),
		Data:    state,
	}
}

// finish reports the registered events and purges the session.
func (c *Calendar) finish(ctx context.Context, sessionKey string, state core.CalendarState) core.Result {
	if err := c.store.Clear(ctx, sessionKey); err != nil {
		return calendarFailure(err)
	}
	res := summary(state)
	res.Cleared = true
	return res
}

func (c *Calendar) save(ctx context.Context, sessionKey string, state core.CalendarState) error {
	ev, err := core.NewEvent(core.KindConversationState, state)
	if err != nil {
		return err
	}
	return c.store.Append(ctx, sessionKey, ev)
}

func (c *Calendar) calendarID(req core.Request, snap core.Snapshot) string {
	if req.Email != "" {
		return req.Email
	}
	if email, ok := snap.Email(); ok {
		return email
	}
	return c.opts.CalendarID
}

// departure returns the trip start date in the travel time zone. Without a
// parseable departure_date today is used.
func (c *Calendar) departure(req core.Request) time.Time {
	loc := calendar.Location()
	if d, err := time.ParseInLocation(time.DateOnly, req.Context.String("departure_date"), loc); err == nil {
		return d
	}
	y, m, d := c.opts.Now().In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func (c *Calendar) event(req core.Request, a core.Activity, day int) calendar.Event {
	date := c.departure(req).AddDate(0, 0, day-1)
	hour, minute := parseClock(a.Time)
	start := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())

	desc := fmt.Sprintf("비용: %s\n장소: %s\n", util.FormatWon(float64(a.Cost)), a.Location)
	if strings.Contains(a.Activity, "예약") {
		desc += reservationNotice
	}

	return calendar.Event{
		Summary:     a.Activity,
		Location:    a.Location,
		Description: desc,
		Start:       start,
		End:         start.Add(time.Duration(ParseDuration(a.Duration)) * time.Minute),
	}
}

// ParseDuration converts durations such as "2시간 30분", "1시간" or "45분"
// into minutes. Unparseable values count as one hour.
func ParseDuration(s string) int {
	total := 0
	if m := hoursPattern.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		total += h * 60
	}
	if m := minutesPattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		total += n
	}
	if total <= 0 {
		return defaultActivityMinutes
	}
	return total
}

// RelevantTips returns the tips sharing at least one word with the
// activity name, compared case-insensitively.
func RelevantTips(activity string, tips []string) []string {
	words := strings.Fields(strings.ToLower(activity))
	var out []string
	for _, tip := range tips {
		lower := strings.ToLower(tip)
		for _, w := range words {
			if strings.Contains(lower, w) {
				out = append(out, tip)
				break
			}
		}
	}
	return out
}

func proposal(title string, a core.Activity, tips []string) string {
	var b strings.Builder
	b.WriteString(title + "\n")
	fmt.Fprintf(&b, "시간: %s\n활동: %s\n장소: %s\n소요시간: %s\n비용: %s", a.Time, a.Activity, a.Location, a.Duration, util.FormatWon(float64(a.Cost)))
	if relevant := RelevantTips(a.Activity, tips); len(relevant) > 0 {
		b.WriteString("\n\n관련 팁:")
		for _, tip := range relevant {
			b.WriteString("\n- " + tip)
		}
	}
	b.WriteString("\n\n" + calendarPrompt)
	return b.String()
}

func summary(state core.CalendarState) core.Result {
	return core.Result{
		Status:  core.StatusSuccess,
		Message: fmt.Sprintf("총 %d개의 일정이 캘린더에 등록되었습니다.", len(state.ConfirmedEvents)),
		Data: map[string]any{
			"operation": "register_itinerary",
			"events":    state.ConfirmedEvents,
		},
	}
}

// advance moves the cursor to the next activity, skipping empty days, and
// reports whether one exists. Past the last activity the cursor points
// beyond the itinerary.
func advance(plan *core.TravelPlan, state *core.CalendarState) bool {
	state.CurrentActivity++
	for state.CurrentDay <= len(plan.Itinerary) {
		if state.CurrentActivity < len(plan.Itinerary[state.CurrentDay-1].Activities) {
			return true
		}
		state.CurrentDay++
		state.CurrentActivity = 0
	}
	return false
}

func validCursor(plan *core.TravelPlan, state core.CalendarState) bool {
	if state.CurrentDay < 1 || state.CurrentDay > len(plan.Itinerary) {
		return false
	}
	return state.CurrentActivity >= 0 && state.CurrentActivity < len(plan.Itinerary[state.CurrentDay-1].Activities)
}

func parseClock(s string) (int, int) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 9, 0
	}
	return t.Hour(), t.Minute()
}

func calendarFailure(err error) core.Result {
	return core.FailureCause("Calendar registration failed", err, "캘린더 등록 중 오류가 발생했습니다.")
}
