// Package core provides the foundational domain types and contracts used by
// TripMesh. It defines:
//
//   - Context (accumulated session facts) and the right-biased Merge rule
//   - Events and Snapshots (the typed, append-only session log)
//   - ContextStore (persistence contract for the session log)
//   - Handler, Request and Result (the uniform worker contract)
//   - TurnEvent (the caller-facing streaming protocol)
//   - Travel domain types (plans, budgets, places, calendar state)
//   - The error taxonomy surfaced by routing and handlers
//
// The package keeps implementation concerns (persistence, routing, concrete
// handlers, transports) out of scope and exposes small interfaces so custom
// backends can be plugged in.
package core
