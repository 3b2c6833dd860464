// Package engine orchestrates the moderation pipeline: an ordered list of
// stages evaluated per message, short-circuiting at the first stage that
// produces a non-none, successfully executed action. Moderate never panics
// and never returns an error; stage failures are recovered, logged, and
// treated as "no action" for that stage.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sentry-moderation/sentry/moderation"
	"github.com/sentry-moderation/sentry/moderation/actions"
	"github.com/sentry-moderation/sentry/moderation/analysis"
	"github.com/sentry-moderation/sentry/moderation/fastpass"
	"github.com/sentry-moderation/sentry/moderation/inference"
	"github.com/sentry-moderation/sentry/moderation/policy"
	"github.com/sentry-moderation/sentry/moderation/ratelimit"
	"github.com/sentry-moderation/sentry/moderation/sanitizer"
	"github.com/sentry-moderation/sentry/moderation/validator"
)

// Deps bundles the collaborators the pipeline and its stages consume.
type Deps struct {
	Logger      *slog.Logger
	RateLimiter *ratelimit.Limiter
	Validator   *validator.Validator
	Sanitizer   *sanitizer.Sanitizer
	FastPass    *fastpass.Filter
	Analyzer    *analysis.Analyzer
	Executor    *actions.Executor
	Policies    policy.Provider

	// Inference and Model are used only by Initialize to verify the analysis
	// backend is reachable before accepting traffic.
	Inference inference.Provider
	Model     string
}

// Pipeline sequences moderation stages for each incoming message.
type Pipeline struct {
	deps   Deps
	stages []Stage

	mu                  sync.RWMutex
	initialized         bool
	aiReady             bool
	packID              string
	allowModelSuggested bool
}

func NewPipeline(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{
		deps:   deps,
		stages: DefaultStages(deps),
	}
}

// Initialize loads the active policy into the fast pass filter and verifies
// the inference backend. On failure the pipeline stays uninitialized and a
// ConfigurationError is returned.
func (p *Pipeline) Initialize(ctx context.Context) error {
	pack, err := p.deps.Policies.ActivePack(ctx)
	if err != nil {
		return &ConfigurationError{Reason: "loading active policy pack", Err: err}
	}
	if err := pack.Validate(); err != nil {
		return &ConfigurationError{Reason: "invalid policy pack", Err: err}
	}

	if err := p.deps.FastPass.LoadRules(ctx, p.deps.Policies, pack.ID); err != nil {
		return &ConfigurationError{Reason: "loading fast pass rules", Err: err}
	}

	aiReady := false
	if p.deps.Inference != nil && p.deps.Model != "" {
		ok, err := p.deps.Inference.IsModelAvailable(ctx, p.deps.Model)
		if err != nil {
			return &ConfigurationError{Reason: "probing inference model", Err: err}
		}
		if !ok {
			return &ConfigurationError{
				Reason: fmt.Sprintf("model %q not available", p.deps.Model),
				Err:    inference.ErrModelUnavailable,
			}
		}
		aiReady = true
	}

	p.mu.Lock()
	p.initialized = true
	p.aiReady = aiReady
	p.packID = pack.ID
	p.allowModelSuggested = pack.AllowModelSuggested
	p.mu.Unlock()

	p.deps.Logger.Info("moderation pipeline initialized",
		"packID", pack.ID, "pack", pack.Name, "stages", len(p.stages))
	return nil
}

// Reload resets to uninitialized and re-runs Initialize. Safe to call at any
// time; in-flight Moderate calls finish against the state they started with.
func (p *Pipeline) Reload(ctx context.Context) error {
	p.mu.Lock()
	p.initialized = false
	p.aiReady = false
	p.mu.Unlock()
	return p.Initialize(ctx)
}

// Moderate runs the stage list over one message. Returns nil only when the
// pipeline is uninitialized (or msg is nil); a message every stage passed
// clean returns a Decision with ActionNone so callers can tell "evaluated,
// clean" apart from "not evaluated".
func (p *Pipeline) Moderate(ctx context.Context, msg *moderation.Message) *moderation.Decision {
	p.mu.RLock()
	initialized := p.initialized
	packID := p.packID
	allowSuggested := p.allowModelSuggested
	p.mu.RUnlock()
	if !initialized || msg == nil {
		return nil
	}

	logger := p.deps.Logger.With(
		"messageID", msg.ID, "channelID", msg.ChannelID, "authorID", msg.AuthorID)
	sc := &StageContext{
		Logger:              logger,
		Msg:                 msg,
		PackID:              packID,
		AllowModelSuggested: allowSuggested,
	}

	for _, stage := range p.stages {
		dec := p.runStage(ctx, stage, sc)
		if dec == nil || dec.Action == moderation.ActionNone {
			continue
		}
		decisionCount.WithLabelValues(stage.Name(), string(dec.Action)).Inc()
		logger.Info("moderation decision",
			"stage", stage.Name(), "action", dec.Action,
			"rule", dec.RuleTriggered, "success", dec.Success)
		return dec
	}
	decisionCount.WithLabelValues("pipeline", string(moderation.ActionNone)).Inc()
	return &moderation.Decision{Action: moderation.ActionNone, Success: true}
}

// runStage evaluates one stage, recovering panics and swallowing errors so a
// failing stage degrades to "no action" instead of taking the pipeline down.
func (p *Pipeline) runStage(ctx context.Context, stage Stage, sc *StageContext) (dec *moderation.Decision) {
	start := time.Now()
	defer func() {
		stageDuration.WithLabelValues(stage.Name()).Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			stageErrorCount.WithLabelValues(stage.Name()).Inc()
			sc.Logger.Error("moderation stage panicked", "stage", stage.Name(), "panic", r)
			dec = nil
		}
	}()

	dec, err := stage.Evaluate(ctx, sc)
	if err != nil {
		stageErrorCount.WithLabelValues(stage.Name()).Inc()
		sc.Logger.Error("moderation stage failed", "stage", stage.Name(), "err", err)
		return nil
	}
	return dec
}

// HealthStatus is a pure read of the pipeline's internal flags.
type HealthStatus struct {
	Initialized   bool   `json:"initialized"`
	PolicyPackID  string `json:"policy_pack_id"`
	FastPassReady bool   `json:"fast_pass_ready"`
	AIReady       bool   `json:"ai_ready"`
	BannedWords   int    `json:"banned_words"`
	BlockedURLs   int    `json:"blocked_urls"`
}

func (p *Pipeline) GetHealthStatus() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	words, urls := p.deps.FastPass.RuleCounts()
	return HealthStatus{
		Initialized:   p.initialized,
		PolicyPackID:  p.packID,
		FastPassReady: p.deps.FastPass.Ready(),
		AIReady:       p.aiReady,
		BannedWords:   words,
		BlockedURLs:   urls,
	}
}
