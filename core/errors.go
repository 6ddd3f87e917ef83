package core

import (
	"errors"
	"fmt"
)

// ErrLimitExceeded is returned by StepLimiter once the step budget is spent.
var ErrLimitExceeded = errors.New("step limit exceeded")

// ValidationError reports a required input that is missing or malformed.
// It is recoverable: the user can resubmit with the field filled in.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ClassifierParseError reports an oracle reply that could not be decoded
// into the expected structure. Raw holds the last reply text.
type ClassifierParseError struct {
	Raw string
	Err error
}

func (e *ClassifierParseError) Error() string {
	return fmt.Sprintf("classifier reply not well-formed: %v", e.Err)
}

func (e *ClassifierParseError) Unwrap() error { return e.Err }

// HandlerFailure wraps an internal fault raised by a handler.
type HandlerFailure struct {
	Handler string
	Err     error
}

func (e *HandlerFailure) Error() string {
	return fmt.Sprintf("handler %s failed: %v", e.Handler, e.Err)
}

func (e *HandlerFailure) Unwrap() error { return e.Err }

// StoreUnavailable wraps a persistence read or write failure.
type StoreUnavailable struct {
	Op  string
	Err error
}

func (e *StoreUnavailable) Error() string {
	return fmt.Sprintf("context store %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailable) Unwrap() error { return e.Err }
