package model

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Message is one element of the conversation sent to a model.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request captures the normalized model input.
type Request struct {
	Instructions string    `json:"instructions"` // System prompt
	Messages     []Message `json:"messages"`

	// Schema is an optional JSON Schema the reply must satisfy. Providers that
	// support structured output pass it through natively; others embed it in
	// the system prompt.
	Schema     map[string]any `json:"schema,omitempty"`
	SchemaName string         `json:"schema_name,omitempty"`
}

// LastUserText returns the content of the last user message.
func (r Request) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Content
		}
	}
	return ""
}

// SystemPromptWithSchema returns the instructions followed by the reply
// schema, for providers without native structured output.
func (r Request) SystemPromptWithSchema() string {
	if r.Schema == nil {
		return r.Instructions
	}
	data, err := json.Marshal(r.Schema)
	if err != nil {
		return r.Instructions
	}
	var sb strings.Builder
	if r.Instructions != "" {
		sb.WriteString(r.Instructions)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Respond only with a JSON object matching this JSON schema:\n")
	sb.Write(data)
	return sb.String()
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a chunk emitted by a model. Providers emit a single final
// chunk unless they stream.
type Response struct {
	ID           string      `json:"id"`
	Content      string      `json:"content"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name           string `json:"name"`
	Provider       string `json:"provider"` // "openai", "anthropic", "gemini", "mock", ...
	SupportsSchema bool   `json:"supports_schema"`
}

// Model is the minimal interface required to drive the oracle.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrEmptyResponse is returned when a model produced no content.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Complete runs req and returns the concatenated reply text.
func Complete(ctx context.Context, m Model, req Request) (string, error) {
	respCh, errCh := m.Generate(ctx, req)

	var sb strings.Builder
	for resp := range respCh {
		sb.WriteString(resp.Content)
	}

	if err := <-errCh; err != nil {
		return "", err
	}

	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}

	return sb.String(), nil
}

// Prompt builds a single-turn request.
func Prompt(instructions, text string) Request {
	return Request{
		Instructions: instructions,
		Messages:     []Message{{Role: "user", Content: text}},
	}
}
