// Package engine implements the turn orchestration layer of tripmesh.
//
// A turn is the processing triggered by one inbound user message. The
// Engine runs it as an explicit state machine:
//
//	ROUTE ──► INVOKE ──► CONTINUE ──► INVOKE ... ──► END
//	  │          │           │
//	  └──────────┴───────────┴──► PAUSED
//
//   - ROUTE asks the Router which handler the message addresses. Outcomes
//     that need more input from the user (missing fields, captured values,
//     unparseable classifier replies) pause the turn.
//   - INVOKE runs the selected handler, records the invocation in the turn
//     history and persists its output (plan or result events).
//   - CONTINUE asks the Continuer whether another handler must run. No
//     handler is invoked twice in one turn.
//
// # Event stream
//
// Invoke returns a channel of core.TurnEvent values: processing notices,
// step results, pauses and errors. Every stream ends with exactly one
// completion marker, also after failures. Panics and errors raised while
// routing, invoking or continuing are converted into an error event whose
// Detail field carries the diagnostic; they never reach the caller.
//
// # Concurrency
//
// The control flow of a turn is sequential. With Config.SerializeSessions
// (the default) turns of the same session key queue behind each other;
// turns of different sessions always run in parallel. Cancelling the
// caller's context stops event emission, but a handler that already started
// finishes and its output is persisted.
//
// # Hooks
//
// A CallbackManager passed in Options receives before/after handler,
// transition and error callbacks for every turn, e.g. for auditing.
//
// # Usage
//
//	store := session.NewResilient(session.NewInMemoryStore(), logger)
//	e := engine.New(store, router.New(store, oracle), continuation.New(oracle))
//	e.Register(handler.NewPlanner(oracle))
//
//	events, err := e.InvokeSync(ctx, "session-1", "제주도 3박 4일 여행 계획 세워줘")
package engine
