package analysis

import (
	"encoding/json"
	"strings"

	"github.com/sentry-moderation/sentry/moderation"
)

type rawResponse struct {
	Toxicity   float64 `json:"toxicity"`
	Harassment float64 `json:"harassment"`
	Spam       float64 `json:"spam"`
	Grooming   float64 `json:"grooming"`
	Action     string  `json:"action"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// ParseResponse turns raw provider output into a usable Result. It never
// fails: malformed JSON yields all-zero scores, action none, and confidence
// zero. Every numeric field is clamped to [0,1] and the action is validated
// against the fixed enum.
func ParseResponse(raw string) *Result {
	cleaned := stripCodeFences(raw)

	var parsed rawResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		parseFailureCount.Inc()
		return &Result{
			SuggestedAction: moderation.ActionNone,
			Reasoning:       "model output could not be parsed",
		}
	}

	action, ok := moderation.ParseAction(parsed.Action)
	if !ok {
		parseFailureCount.Inc()
	}

	return &Result{
		Scores: CategoryScores{
			Toxicity:   clamp(parsed.Toxicity),
			Harassment: clamp(parsed.Harassment),
			Spam:       clamp(parsed.Spam),
			Grooming:   clamp(parsed.Grooming),
		},
		SuggestedAction: action,
		Reasoning:       parsed.Reasoning,
		Confidence:      clamp(parsed.Confidence),
	}
}

// stripCodeFences removes a leading/trailing markdown fence, which some
// models emit even when told not to, and trims to the outermost JSON object.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if start := strings.IndexByte(s, '{'); start >= 0 {
		if end := strings.LastIndexByte(s, '}'); end > start {
			s = s[start : end+1]
		}
	}
	return s
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
