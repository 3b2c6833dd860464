// Package policy defines the policy pack data model: the bundle of rules,
// banned terms, and blocked URL patterns governing moderation for a
// deployment. Exactly one pack is active at a time.
package policy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var ErrNoActivePolicy = errors.New("no active policy pack configured")

// RuleType is the category a threshold rule applies to.
type RuleType string

const (
	RuleToxicity   RuleType = "toxicity"
	RuleHarassment RuleType = "harassment"
	RuleSpam       RuleType = "spam"
	RuleGrooming   RuleType = "grooming"
)

// CategoryPriority is the fixed order in which threshold rules are evaluated
// against analysis scores.
var CategoryPriority = []RuleType{RuleToxicity, RuleHarassment, RuleSpam, RuleGrooming}

var allRuleTypes = map[RuleType]bool{
	RuleToxicity:   true,
	RuleHarassment: true,
	RuleSpam:       true,
	RuleGrooming:   true,
}

var allActions = map[string]bool{
	"none": true, "mask": true, "delete_warn": true, "shadowban": true,
	"escalate": true, "warning": true, "temp_mute": true, "temp_ban": true,
}

type PolicyPack struct {
	ID     string `gorm:"primaryKey" json:"id"`
	Name   string `gorm:"not null" json:"name"`
	Active bool   `gorm:"index" json:"active"`
	// AllowModelSuggested gates the high-confidence fallback where the model's
	// own suggested action can apply without a matching threshold rule.
	AllowModelSuggested bool `gorm:"default:true" json:"allow_model_suggested"`

	Rules       []ModerationRule `gorm:"foreignKey:PackID" json:"rules,omitempty"`
	BannedWords []BannedWord     `gorm:"foreignKey:PackID" json:"banned_words,omitempty"`
	BlockedURLs []BlockedURL     `gorm:"foreignKey:PackID" json:"blocked_urls,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ModerationRule struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	PackID    string   `gorm:"index;not null" json:"pack_id"`
	RuleType  RuleType `gorm:"not null" json:"rule_type"`
	Threshold float64  `gorm:"not null" json:"threshold"`
	Action    string   `gorm:"not null" json:"action"`
	Enabled   bool     `gorm:"default:true" json:"enabled"`
}

type BannedWord struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PackID   string `gorm:"index;not null" json:"pack_id"`
	Pattern  string `gorm:"not null" json:"pattern"`
	IsRegex  bool   `json:"is_regex"`
	Severity string `json:"severity"`
	Action   string `gorm:"not null" json:"action"`
}

type BlockedURL struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PackID   string `gorm:"index;not null" json:"pack_id"`
	Pattern  string `gorm:"not null" json:"pattern"`
	IsRegex  bool   `json:"is_regex"`
	Severity string `json:"severity"`
	Action   string `gorm:"not null" json:"action"`
}

// Provider is the read-only collaborator contract the pipeline consumes.
type Provider interface {
	ActivePack(ctx context.Context) (*PolicyPack, error)
	Rules(ctx context.Context, packID string) ([]ModerationRule, error)
	BannedWords(ctx context.Context, packID string) ([]BannedWord, error)
	BlockedURLs(ctx context.Context, packID string) ([]BlockedURL, error)
}

// Validate checks the pack schema at load time. An invalid pack is rejected
// outright; fields are never silently defaulted.
func (p *PolicyPack) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("policy pack missing id")
	}
	for _, r := range p.Rules {
		if !allRuleTypes[r.RuleType] {
			return fmt.Errorf("pack %s: unknown rule type %q", p.ID, r.RuleType)
		}
		if r.Threshold < 0 || r.Threshold > 1 {
			return fmt.Errorf("pack %s: rule %s threshold %v out of range [0,1]", p.ID, r.RuleType, r.Threshold)
		}
		if !allActions[r.Action] {
			return fmt.Errorf("pack %s: rule %s has unknown action %q", p.ID, r.RuleType, r.Action)
		}
	}
	for _, w := range p.BannedWords {
		if w.Pattern == "" {
			return fmt.Errorf("pack %s: banned word with empty pattern", p.ID)
		}
		if !allActions[w.Action] {
			return fmt.Errorf("pack %s: banned word %q has unknown action %q", p.ID, w.Pattern, w.Action)
		}
		if w.IsRegex {
			if _, err := regexp.Compile(w.Pattern); err != nil {
				return fmt.Errorf("pack %s: banned word regex %q: %w", p.ID, w.Pattern, err)
			}
		}
	}
	for _, u := range p.BlockedURLs {
		if u.Pattern == "" {
			return fmt.Errorf("pack %s: blocked URL with empty pattern", p.ID)
		}
		if !allActions[u.Action] {
			return fmt.Errorf("pack %s: blocked URL %q has unknown action %q", p.ID, u.Pattern, u.Action)
		}
		if u.IsRegex {
			if _, err := regexp.Compile(u.Pattern); err != nil {
				return fmt.Errorf("pack %s: blocked URL regex %q: %w", p.ID, u.Pattern, err)
			}
		}
	}
	return nil
}
