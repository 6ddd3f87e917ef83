package model

import (
	"context"
	"errors"
	"fmt"
)

// Fallback tries each model in order until one returns a reply.
type Fallback struct {
	models []Model
}

// NewFallback returns a Model that tries primary first, then each fallback.
func NewFallback(primary Model, fallbacks ...Model) *Fallback {
	return &Fallback{models: append([]Model{primary}, fallbacks...)}
}

// Generate implements Model.
func (f *Fallback) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		var errs []error
		for _, m := range f.models {
			text, err := Complete(ctx, m, req)
			if err == nil {
				out <- Response{Content: text, FinishReason: "stop"}
				return
			}
			errs = append(errs, fmt.Errorf("%s/%s: %w", m.Info().Provider, m.Info().Name, err))
			if ctx.Err() != nil {
				break
			}
		}
		errCh <- errors.Join(errs...)
	}()

	return out, errCh
}

// Info reports the primary model.
func (f *Fallback) Info() Info {
	return f.models[0].Info()
}
