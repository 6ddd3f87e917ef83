package engine

// State is a node of the turn state machine.
type State int

const (
	// StateRoute asks the router which handler the message addresses.
	StateRoute State = iota
	// StateInvoke runs the selected handler.
	StateInvoke
	// StateContinue asks the continuation planner what runs next.
	StateContinue
	// StateEnd terminates the turn after success or failure.
	StateEnd
	// StatePaused terminates the turn while waiting for the user's next
	// message. The pending question lives in the ContextStore.
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateRoute:
		return "ROUTE"
	case StateInvoke:
		return "INVOKE"
	case StateContinue:
		return "CONTINUE"
	case StateEnd:
		return "END"
	case StatePaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool { return s == StateEnd || s == StatePaused }
