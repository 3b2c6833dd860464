package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sentry-moderation/sentry/moderation"
	"github.com/sentry-moderation/sentry/moderation/policy"
)

// buildPrompt renders a deterministic structured prompt: fixed section order,
// sorted rules, and an explicit JSON-only output instruction. Determinism
// matters for caching and for reproducing decisions from logs.
func buildPrompt(msg *moderation.Message, window []contextMessage, rules []policy.ModerationRule) string {
	var b strings.Builder

	b.WriteString("You are a chat moderation classifier. Score the TARGET MESSAGE for each category.\n\n")

	b.WriteString("ACTIVE RULES:\n")
	sorted := make([]policy.ModerationRule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].RuleType != sorted[j].RuleType {
			return sorted[i].RuleType < sorted[j].RuleType
		}
		return sorted[i].Threshold < sorted[j].Threshold
	})
	for _, r := range sorted {
		if !r.Enabled {
			continue
		}
		fmt.Fprintf(&b, "- %s: threshold %.2f, action %s\n", r.RuleType, r.Threshold, r.Action)
	}

	b.WriteString("\nRECENT CHANNEL CONTEXT (oldest first):\n")
	if len(window) == 0 {
		b.WriteString("(none)\n")
	}
	for _, m := range window {
		fmt.Fprintf(&b, "%s: %s\n", m.Author, m.Content)
	}

	fmt.Fprintf(&b, "\nTARGET MESSAGE from %s:\n%s\n\n", msg.AuthorName, msg.Content)

	b.WriteString("Respond with ONLY a JSON object, no prose, in exactly this shape:\n")
	b.WriteString(`{"toxicity":0.0,"harassment":0.0,"spam":0.0,"grooming":0.0,"action":"none","reasoning":"...","confidence":0.0}`)
	b.WriteString("\nScores and confidence are between 0 and 1. action is one of: none, mask, delete_warn, shadowban, escalate.\n")

	return b.String()
}
