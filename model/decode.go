package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hupe1980/tripmesh/core"
)

const scopeName = "github.com/hupe1980/tripmesh/model"

var tracer = otel.Tracer(scopeName)

// DefaultMaxAttempts bounds Decode retries on malformed replies.
const DefaultMaxAttempts = 3

// Validator is implemented by reply types that check their own invariants
// after decoding.
type Validator interface {
	Validate() error
}

// DecodeOptions configure Decode.
type DecodeOptions struct {
	Instructions string
	MaxAttempts  int
}

// Decode asks m for a reply conforming to the JSON schema of T, retrying up
// to MaxAttempts times when the reply cannot be decoded or fails validation.
// An empty reply counts as a failed attempt; other transport errors are
// returned immediately. After the last failed attempt a
// *core.ClassifierParseError carrying the raw reply is returned.
func Decode[T any](ctx context.Context, m Model, prompt string, optFns ...func(o *DecodeOptions)) (*T, error) {
	opts := DecodeOptions{MaxAttempts: DefaultMaxAttempts}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	schema, name := SchemaFor[T]()

	ctx, span := tracer.Start(ctx, "oracle decode")
	defer span.End()
	span.SetAttributes(attribute.String("request.schema_name", name), attribute.String("model", m.Info().Name))

	req := Prompt(opts.Instructions, prompt)
	req.Schema = schema
	req.SchemaName = name

	var (
		raw     string
		lastErr error
	)
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		span.SetAttributes(attribute.Int("attempts", attempt))

		text, err := Complete(ctx, m, req)
		if errors.Is(err, ErrEmptyResponse) {
			raw = ""
			lastErr = fmt.Errorf("attempt %d: %w", attempt, err)
			continue
		}
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		raw = text

		out := new(T)
		if err := json.Unmarshal([]byte(ExtractJSON(text)), out); err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt, err)
			continue
		}
		if v, ok := any(out).(Validator); ok {
			if err := v.Validate(); err != nil {
				lastErr = fmt.Errorf("attempt %d: %w", attempt, err)
				continue
			}
		}
		return out, nil
	}

	err := &core.ClassifierParseError{Raw: raw, Err: lastErr}
	span.RecordError(err)
	return nil, err
}

// SchemaFor reflects T into a JSON schema map and returns it with a schema
// name derived from the type.
func SchemaFor[T any]() (map[string]any, string) {
	reflector := jsonschema.Reflector{DoNotReference: true}

	t := reflect.TypeOf((*T)(nil)).Elem()
	s := reflector.ReflectFromType(t)

	name := t.Name()
	if name == "" {
		name = "reply"
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, name
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, name
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, name
}

// ExtractJSON strips markdown code fences and surrounding prose from a model
// reply, returning the outermost JSON object when one is present.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)

	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
