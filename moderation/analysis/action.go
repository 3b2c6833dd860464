package analysis

import (
	"fmt"
	"strings"

	"github.com/sentry-moderation/sentry/moderation"
	"github.com/sentry-moderation/sentry/moderation/policy"
)

// ActionOutcome is the decision derived from an analysis result and the
// active policy's threshold rules.
type ActionOutcome struct {
	Action        moderation.Action
	RuleTriggered string
	Confidence    float64
}

// DetermineAction iterates categories in fixed priority order and returns the
// action of the first enabled rule whose threshold the corresponding score
// meets or exceeds. If no rule matches but the model's own suggested action
// is non-none with confidence at or above the floor, that suggestion applies
// when the pack allows it, tagged ai_high_confidence.
func (a *Analyzer) DetermineAction(res *Result, rules []policy.ModerationRule, allowModelSuggested bool) ActionOutcome {
	for _, cat := range policy.CategoryPriority {
		score := res.Scores.ForCategory(cat)
		for _, r := range rules {
			if !r.Enabled || r.RuleType != cat {
				continue
			}
			if score >= r.Threshold {
				action, _ := moderation.ParseAction(r.Action)
				return ActionOutcome{
					Action:        action,
					RuleTriggered: fmt.Sprintf("%s_threshold_%v", cat, r.Threshold),
					Confidence:    score,
				}
			}
		}
	}

	if allowModelSuggested &&
		res.SuggestedAction != moderation.ActionNone &&
		res.Confidence >= a.cfg.SuggestionConfidenceFloor {
		return ActionOutcome{
			Action:        res.SuggestedAction,
			RuleTriggered: "ai_high_confidence",
			Confidence:    res.Confidence,
		}
	}

	return ActionOutcome{Action: moderation.ActionNone}
}

// GenerateExplanation renders a deterministic human-readable summary of the
// analysis for audit logs and moderator alerts.
func GenerateExplanation(res *Result, action moderation.Action) string {
	var b strings.Builder
	fmt.Fprintf(&b, "action=%s scores: toxicity=%.2f harassment=%.2f spam=%.2f grooming=%.2f confidence=%.2f",
		action, res.Scores.Toxicity, res.Scores.Harassment, res.Scores.Spam, res.Scores.Grooming, res.Confidence)
	if res.Reasoning != "" {
		fmt.Fprintf(&b, " reasoning: %s", res.Reasoning)
	}
	return b.String()
}
