package handler

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/mailer"
)

var (
	_ core.Handler       = (*Planner)(nil)
	_ core.Handler       = (*Search)(nil)
	_ core.Handler       = (*Mail)(nil)
	_ core.Handler       = (*Calendar)(nil)
	_ core.Handler       = (*Recommendation)(nil)
	_ core.FieldRequirer = (*Planner)(nil)
	_ core.FieldRequirer = (*Search)(nil)
	_ core.FieldRequirer = (*Mail)(nil)
)

// MockSearcher for testing the search handler
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, query string) ([]core.Place, error) {
	args := m.Called(ctx, query)
	places, _ := args.Get(0).([]core.Place)
	return places, args.Error(1)
}

// MockSender for testing the mail handler
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg mailer.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func progressRecorder() (core.ProgressFunc, func() []string) {
	var (
		mu   sync.Mutex
		msgs []string
	)
	return func(message string) {
			mu.Lock()
			defer mu.Unlock()
			msgs = append(msgs, message)
		}, func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string(nil), msgs...)
		}
}
