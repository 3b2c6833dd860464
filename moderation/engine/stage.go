package engine

import (
	"context"
	"log/slog"

	"github.com/sentry-moderation/sentry/moderation"
)

// StageContext carries per-message state through the ordered stage list.
type StageContext struct {
	Logger *slog.Logger
	Msg    *moderation.Message
	// active policy pack; empty when no policy is configured
	PackID              string
	AllowModelSuggested bool
}

// Stage is one step of the moderation pipeline. Returning a nil decision
// means the stage found nothing actionable and the next stage runs. The
// ordering of stages is business policy, assembled in DefaultStages; the
// pipeline itself only walks the list.
type Stage interface {
	Name() string
	Evaluate(ctx context.Context, sc *StageContext) (*moderation.Decision, error)
}

// DefaultStages assembles the standard order: security checks, fast pass,
// then context-augmented analysis.
func DefaultStages(d Deps) []Stage {
	return []Stage{
		&securityStage{d},
		&fastPassStage{d},
		&aiStage{d},
	}
}
