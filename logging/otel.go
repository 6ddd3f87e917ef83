package logging

import (
	"fmt"
	"io"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/hupe1980/tripmesh"

// NewOTelLogger returns a TurnLogger that emits through the global
// OpenTelemetry logger provider.
func NewOTelLogger(level LogLevel, component string) *TurnLogger {
	return NewTurnLogger(&LoggerConfig{
		Level:     level,
		Component: component,
		Handler:   otelslog.NewHandler(scopeName),
	})
}

// New builds a Logger for the named backend: "slog" (default), "zap" or
// "otel". Format applies to the slog backend only.
func New(backend, format string, level LogLevel, out io.Writer) (Logger, error) {
	switch backend {
	case "", "slog":
		return NewTurnLogger(&LoggerConfig{Level: level, Format: format, Output: out}), nil
	case "zap":
		zl, err := NewZapProduction(level)
		if err != nil {
			return nil, fmt.Errorf("build zap logger: %w", err)
		}
		return NewZapAdapter(zl), nil
	case "otel":
		return NewOTelLogger(level, ""), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}
