package model

import (
	"context"
	"fmt"
	"sync"
)

type scripted struct {
	text string
	err  error
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
//
// Replies are resolved in order: an exact match on the last user message
// registered with AddResponse, then the FIFO queue filled by Enqueue and
// EnqueueError, then a generic echo.
type MockModel struct {
	info Info

	mu        sync.Mutex
	responses map[string]string
	queue     []scripted
	calls     []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:           name,
			Provider:       provider,
			SupportsSchema: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends replies returned for prompts without a canned response.
func (m *MockModel) Enqueue(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range responses {
		m.queue = append(m.queue, scripted{text: r})
	}
}

// EnqueueError appends a transport failure to the reply queue.
func (m *MockModel) EnqueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, scripted{err: err})
}

// Calls returns every request received so far.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// CallCount returns how many requests were received.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *MockModel) next(req Request) scripted {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)

	input := req.LastUserText()
	if r, ok := m.responses[input]; ok {
		return scripted{text: r}
	}
	if len(m.queue) > 0 {
		s := m.queue[0]
		m.queue = m.queue[1:]
		return s
	}
	return scripted{text: fmt.Sprintf("Mock response to: %s", input)}
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}

		s := m.next(req)
		if s.err != nil {
			errCh <- s.err
			return
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Content: s.text, FinishReason: "stop"}:
		}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
