package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/tripmesh/core"
)

// CallbackType defines the lifecycle points of a turn where callbacks run.
//
// Callbacks hook into the turn pipeline without modifying engine logic.
// They execute synchronously on the turn goroutine. An error returned from
// a CallbackBeforeHandler callback prevents the handler from running and
// ends the turn with an error event; errors from the other types are
// logged and otherwise ignored.
type CallbackType string

const (
	// CallbackBeforeHandler is triggered before a handler processes a request.
	CallbackBeforeHandler CallbackType = "before_handler"

	// CallbackAfterHandler is triggered after a handler returned its result.
	CallbackAfterHandler CallbackType = "after_handler"

	// CallbackOnTransition is triggered whenever the state machine moves
	// from one state to another.
	CallbackOnTransition CallbackType = "on_transition"

	// CallbackOnError is triggered when a turn terminates with an error event.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the data visible to a callback. Fields irrelevant
// to the callback type are left at their zero value.
type CallbackContext struct {
	SessionKey string
	TurnID     string
	Handler    string

	From State
	To   State

	Request *core.Request
	Result  *core.Result
	Err     error

	CallbackType CallbackType
}

// Callback is a hook executed at one CallbackType.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, cbCtx *CallbackContext) error
}

// FunctionCallback adapts a plain function to Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cbCtx *CallbackContext) error
}

// NewFunctionCallback creates a callback running fn at callbackType.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, cbCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	return c.fn(ctx, cbCtx)
}

// CallbackManager stores callbacks per type and runs them in registration
// order. It is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// RegisterCallback adds a callback.
func (cm *CallbackManager) RegisterCallback(cb Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
}

// ExecuteCallbacks runs all callbacks of callbackType and stops at the
// first error. A nil manager runs nothing.
func (cm *CallbackManager) ExecuteCallbacks(ctx context.Context, callbackType CallbackType, cbCtx *CallbackContext) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	cbCtx.CallbackType = callbackType
	for _, cb := range callbacks {
		if err := cb.Execute(ctx, cbCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}

	return nil
}

// LoggingCallback writes a one-line summary of every callback it sees.
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a LoggingCallback for callbackType.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{callbackType: callbackType, logger: logger}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, cbCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	switch c.callbackType {
	case CallbackOnTransition:
		c.logger(fmt.Sprintf("[%s] session=%s %s -> %s", c.callbackType, cbCtx.SessionKey, cbCtx.From, cbCtx.To))
	default:
		status := ""
		if cbCtx.Result != nil {
			status = string(cbCtx.Result.Status)
		}
		c.logger(fmt.Sprintf("[%s] session=%s handler=%s status=%s", c.callbackType, cbCtx.SessionKey, cbCtx.Handler, status))
	}

	return nil
}
