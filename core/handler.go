package core

import "context"

// Handler names known to the router and the continuation planner.
const (
	HandlerPlanner        = "planner"
	HandlerSearch         = "search"
	HandlerCalendar       = "calendar"
	HandlerMail           = "mail"
	HandlerRecommendation = "recommendation"
)

// Handler is a named worker fulfilling one category of request.
//
// Implementations hold no session specific mutable state between calls;
// everything they need is passed in the Request or read from the
// ContextStore. Process must not panic and converts internal failures into
// an error Result.
type Handler interface {
	Name() string
	// Validate reports whether the request carries the inputs Process needs.
	Validate(req Request) bool
	// Process returns a Result with a terminal status: StatusSuccess,
	// StatusConversation, StatusNeedMoreInfo or StatusError. Progress is
	// reported through Request.Report; a Result with StatusProcessing or any
	// other status ends the turn with an error event.
	Process(ctx context.Context, req Request) Result
}

// FieldRequirer is implemented by handlers that can name the inputs a
// request lacks when Validate rejects it.
type FieldRequirer interface {
	MissingFields(req Request) []string
}

// HandlerFunc adapts a function to the Handler interface. Validate always
// succeeds.
type HandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, req Request) Result
}

func (h HandlerFunc) Name() string { return h.HandlerName }

func (h HandlerFunc) Validate(Request) bool { return true }

func (h HandlerFunc) Process(ctx context.Context, req Request) Result { return h.Fn(ctx, req) }

// KnownHandlers lists every handler name the router may select.
var KnownHandlers = []string{HandlerPlanner, HandlerSearch, HandlerCalendar, HandlerMail, HandlerRecommendation}

// IsKnownHandler reports whether name is one of KnownHandlers.
func IsKnownHandler(name string) bool {
	for _, h := range KnownHandlers {
		if h == name {
			return true
		}
	}
	return false
}
