// Package analysis implements context-augmented message scoring: it gathers a
// bounded window of recent channel messages, prompts the inference provider
// for JSON-only category scores, and matches the clamped scores against the
// active policy's threshold rules.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentry-moderation/sentry/moderation"
	"github.com/sentry-moderation/sentry/moderation/cachestore"
	"github.com/sentry-moderation/sentry/moderation/inference"
	"github.com/sentry-moderation/sentry/moderation/policy"
)

// CategoryScores are the four clamped [0,1] scores returned by analysis.
type CategoryScores struct {
	Toxicity   float64 `json:"toxicity"`
	Harassment float64 `json:"harassment"`
	Spam       float64 `json:"spam"`
	Grooming   float64 `json:"grooming"`
}

func (s CategoryScores) ForCategory(cat policy.RuleType) float64 {
	switch cat {
	case policy.RuleToxicity:
		return s.Toxicity
	case policy.RuleHarassment:
		return s.Harassment
	case policy.RuleSpam:
		return s.Spam
	case policy.RuleGrooming:
		return s.Grooming
	default:
		return 0
	}
}

// Result is one analysis outcome. Scores and confidence are always within
// [0,1] regardless of what the provider returned.
type Result struct {
	Scores          CategoryScores
	SuggestedAction moderation.Action
	Reasoning       string
	Confidence      float64
}

type Config struct {
	Model        string
	ContextDepth int
	Temperature  float64
	MaxTokens    int
	// minimum confidence for the model's own suggested action to apply when
	// no threshold rule matched
	SuggestionConfidenceFloor float64
}

func DefaultConfig() Config {
	return Config{
		ContextDepth:              10,
		Temperature:               0.1,
		MaxTokens:                 512,
		SuggestionConfidenceFloor: 0.8,
	}
}

type Analyzer struct {
	logger   *slog.Logger
	provider inference.Provider
	cache    cachestore.CacheStore
	cfg      Config
}

func NewAnalyzer(logger *slog.Logger, provider inference.Provider, cache cachestore.CacheStore, cfg Config) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ContextDepth <= 0 {
		cfg.ContextDepth = 10
	}
	return &Analyzer{logger: logger, provider: provider, cache: cache, cfg: cfg}
}

type contextMessage struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

const channelContextCache = "chanctx"

// RememberMessage appends a message to the channel's bounded context window.
// Called for every message the pipeline sees, whether or not it is analyzed.
func (a *Analyzer) RememberMessage(ctx context.Context, msg *moderation.Message) {
	if a.cache == nil {
		return
	}
	window := a.channelContext(ctx, msg.ChannelID)
	window = append(window, contextMessage{Author: msg.AuthorName, Content: msg.Content})
	if len(window) > a.cfg.ContextDepth {
		window = window[len(window)-a.cfg.ContextDepth:]
	}
	raw, err := json.Marshal(window)
	if err != nil {
		a.logger.Error("failed to encode channel context", "err", err)
		return
	}
	if err := a.cache.Set(ctx, channelContextCache, msg.ChannelID, string(raw)); err != nil {
		a.logger.Error("failed to store channel context", "err", err, "channel", msg.ChannelID)
	}
}

func (a *Analyzer) channelContext(ctx context.Context, channelID string) []contextMessage {
	if a.cache == nil {
		return nil
	}
	raw, err := a.cache.Get(ctx, channelContextCache, channelID)
	if err != nil {
		a.logger.Error("failed to read channel context", "err", err, "channel", channelID)
		return nil
	}
	if raw == "" {
		return nil
	}
	var window []contextMessage
	if err := json.Unmarshal([]byte(raw), &window); err != nil {
		a.logger.Warn("discarding malformed channel context", "err", err, "channel", channelID)
		return nil
	}
	return window
}

// Analyze scores a message against the given rules. Provider failures and
// malformed output are recovered locally: the returned result is always
// usable, with zero scores and action none in the failure cases.
func (a *Analyzer) Analyze(ctx context.Context, msg *moderation.Message, rules []policy.ModerationRule) *Result {
	window := a.channelContext(ctx, msg.ChannelID)
	prompt := buildPrompt(msg, window, rules)

	start := time.Now()
	raw, err := a.provider.Generate(ctx, inference.GenerateRequest{
		Model:       a.cfg.Model,
		Prompt:      prompt,
		JSONMode:    true,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	})
	analyzeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		a.logger.Warn("inference call failed, returning safe result", "err", err, "channel", msg.ChannelID)
		analyzeCount.WithLabelValues("provider_error").Inc()
		return &Result{
			SuggestedAction: moderation.ActionNone,
			Reasoning:       fmt.Sprintf("analysis unavailable: %v", err),
		}
	}

	res := ParseResponse(raw)
	analyzeCount.WithLabelValues("ok").Inc()
	return res
}
