package router

import (
	"fmt"

	"github.com/hupe1980/tripmesh/core"
)

// MissingInfo lists the inputs the classifier still needs from the user.
type MissingInfo struct {
	Fields   []string       `json:"fields"`
	Message  string         `json:"message"`
	Examples map[string]any `json:"examples"`
}

// IntentAnalysis is the structured classifier reply.
type IntentAnalysis struct {
	PrimaryIntent      string         `json:"primary_intent" jsonschema:"enum=planner,enum=recommendation,enum=calendar,enum=search,enum=mail"`
	Confidence         float64        `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	RequiredContext    []string       `json:"required_context"`
	SuggestedNextSteps []string       `json:"suggested_next_steps"`
	ExtractedContext   map[string]any `json:"extracted_context"`
	MissingInfo        MissingInfo    `json:"missing_info"`
}

// Validate implements model.Validator.
func (a *IntentAnalysis) Validate() error {
	if !core.IsKnownHandler(a.PrimaryIntent) {
		return fmt.Errorf("unknown primary_intent %q", a.PrimaryIntent)
	}
	return nil
}

// targetContext returns a fresh handler-scoped context template.
func targetContext(handler string) core.Context {
	switch handler {
	case core.HandlerSearch:
		return core.Context{"query": nil, "location": nil, "type": nil}
	case core.HandlerPlanner:
		return core.Context{
			"departure_location": nil,
			"departure_date":     nil,
			"destination":        nil,
			"duration":           nil,
			"preferences": map[string]any{
				"budget":         nil,
				"activities":     []any{},
				"accommodation":  nil,
				"transportation": nil,
			},
		}
	case core.HandlerCalendar:
		return core.Context{
			"event_details": map[string]any{
				"title":       nil,
				"start_date":  nil,
				"end_date":    nil,
				"location":    nil,
				"description": nil,
			},
		}
	case core.HandlerRecommendation:
		return core.Context{
			"recommendation_step": nil,
			"collected_info": map[string]any{
				"travel_style":   nil,
				"activities":     []any{},
				"budget":         nil,
				"accommodation":  nil,
				"transportation": nil,
			},
		}
	default:
		return core.Context{}
	}
}
