package core

// Status classifies a processing step.
type Status string

const (
	// StatusSuccess means the step fully satisfied its request.
	StatusSuccess Status = "success"
	// StatusNeedMoreInfo pauses the turn until the user supplies more input.
	StatusNeedMoreInfo Status = "need_more_info"
	// StatusProcessing is a non-terminal progress notice.
	StatusProcessing Status = "processing"
	// StatusError aborts the turn.
	StatusError Status = "error"
	// StatusConversation is returned by dialogue handlers that expect the
	// user's next message. It is reported as a step output and never
	// continues the turn.
	StatusConversation Status = "conversation"
	// StatusComplete marks the end of a turn's event stream.
	StatusComplete Status = "complete"
)

// ProgressFunc receives human-readable progress notices from a handler.
type ProgressFunc func(message string)

// Request is the normalized input of a handler invocation.
type Request struct {
	SessionKey string
	Message    string
	Context    Context

	// Optional artifacts. Handlers fall back to the ContextStore when unset.
	Plan   *TravelPlan
	Search *SearchResult
	Email  string

	Progress ProgressFunc
}

// Report forwards a progress notice when a ProgressFunc is attached.
func (r Request) Report(message string) {
	if r.Progress != nil {
		r.Progress(message)
	}
}

// Result is the normalized output of a handler invocation.
type Result struct {
	Status  Status      `json:"status"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Plan    *TravelPlan `json:"plan,omitempty"`
	Data    any         `json:"data,omitempty"`

	// Cleared is set by handlers that purged the session. Nothing of the
	// step is persisted afterwards.
	Cleared bool `json:"-"`
}

// Succeeded reports whether the result has StatusSuccess.
func (r Result) Succeeded() bool { return r.Status == StatusSuccess }

// Failure builds an error Result.
func Failure(errText, message string) Result {
	return Result{Status: StatusError, Error: errText, Message: message}
}

// FailureCause builds an error Result whose machine-readable Error carries
// err. The user-facing message stays free of internal detail.
func FailureCause(errText string, err error, message string) Result {
	if err == nil {
		return Failure(errText, message)
	}
	return Failure(errText+": "+err.Error(), message)
}

// NeedInfo asks the caller for additional fields.
type NeedInfo struct {
	Message        string         `json:"message"`
	MissingFields  []string       `json:"missing_fields"`
	Examples       map[string]any `json:"examples"`
	CurrentContext Context        `json:"current_context"`
}

// ErrorInfo is the user-facing payload of an error TurnEvent.
type ErrorInfo struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// TurnEvent is one framed element of a turn's response stream.
//
// Result holds a *NeedInfo for need_more_info, the handler Result for
// success, and an ErrorInfo for error. Detail carries diagnostics only and
// is never part of the user-facing message.
type TurnEvent struct {
	Status  Status `json:"status"`
	Handler string `json:"handler,omitempty"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// ProcessingEvent builds a progress notice.
func ProcessingEvent(handler, message string) TurnEvent {
	return TurnEvent{Status: StatusProcessing, Handler: handler, Message: message}
}

// NeedInfoEvent builds a pause event.
func NeedInfoEvent(handler string, info *NeedInfo) TurnEvent {
	return TurnEvent{Status: StatusNeedMoreInfo, Handler: handler, Result: info}
}

// SuccessEvent builds a step output event.
func SuccessEvent(handler string, r Result) TurnEvent {
	return TurnEvent{Status: StatusSuccess, Handler: handler, Result: r}
}

// ErrorEvent builds a terminal failure event.
func ErrorEvent(handler, errText, message, detail string) TurnEvent {
	return TurnEvent{
		Status:  StatusError,
		Handler: handler,
		Result:  ErrorInfo{Error: errText, Message: message},
		Detail:  detail,
	}
}

// CompleteEvent builds the synthetic end-of-stream marker.
func CompleteEvent() TurnEvent {
	return TurnEvent{Status: StatusComplete}
}
