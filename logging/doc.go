// Package logging provides a minimal logging interface and adapters for TripMesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, router and handlers use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ZapAdapter wrapping a sugared zap logger
//   - an OpenTelemetry bridge backed TurnLogger
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger, err := logging.New("slog", "json", logging.LogLevelInfo, os.Stdout)
//	eng := engine.New(store, r, planner, func(o *engine.Options) { o.Logger = logger })
package logging
