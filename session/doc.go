// Package session houses concrete implementations of core.ContextStore.
// The contract itself lives in the core package so higher level packages
// (router, engine, handlers) never depend on concrete storage.
//
// Backends:
//
//   - InMemoryStore: process local, for tests and demos
//   - SQLiteStore: durable single-file store (modernc.org/sqlite, no cgo)
//   - Resilient: wrapper applying the read-empty / write-swallow policy
//
// Only the wiring layer decides which implementation to instantiate.
package session
