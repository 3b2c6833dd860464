package moderation

import "time"

// DetectionType records which part of the pipeline produced a decision.
type DetectionType string

const (
	DetectionSecurity   DetectionType = "security"
	DetectionFastPass   DetectionType = "fast_pass"
	DetectionAIAnalysis DetectionType = "ai_analysis"
)

// Decision is the external contract returned from Pipeline.Moderate.
type Decision struct {
	Action        Action             `json:"action"`
	DetectionType DetectionType      `json:"detection_type"`
	RuleTriggered *string            `json:"rule_triggered,omitempty"`
	Confidence    map[string]float64 `json:"confidence,omitempty"`
	Reasoning     string             `json:"reasoning,omitempty"`
	Success       bool               `json:"success"`
	Err           error              `json:"-"`
}

// ErrString flattens the error for serialization; Decision itself carries the
// wrapped error for callers that want to unwrap it.
func (d *Decision) ErrString() string {
	if d == nil || d.Err == nil {
		return ""
	}
	return d.Err.Error()
}

// Attachment is the narrow view of an uploaded file the validator inspects.
type Attachment struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	URL      string `json:"url,omitempty"`
}

// Message is the platform-event view consumed by the pipeline. The chat
// platform client populates it; the pipeline never talks to the platform
// directly except through the actions.Platform interface.
type Message struct {
	ID                string       `json:"id"`
	GuildID           string       `json:"guild_id"`
	ChannelID         string       `json:"channel_id"`
	AuthorID          string       `json:"author_id"`
	AuthorName        string       `json:"author_name"`
	AuthorIsBot       bool         `json:"author_is_bot"`
	AuthorVerifiedBot bool         `json:"author_verified_bot"`
	Content           string       `json:"content"`
	Attachments       []Attachment `json:"attachments,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}
