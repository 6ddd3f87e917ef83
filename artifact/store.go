package artifact

import (
	"context"
	"time"
)

// PlanHTML is the name under which the rendered plan mail is archived.
const PlanHTML = "plan.html"

// Artifact is one archived document.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
	SavedAt     time.Time
}

// Store persists artifacts per session.
type Store interface {
	Save(ctx context.Context, sessionKey string, a Artifact) error
	Get(ctx context.Context, sessionKey, name string) (Artifact, error)
	List(ctx context.Context, sessionKey string) ([]string, error)
	Clear(ctx context.Context, sessionKey string) error
}
