package engine

import (
	"log/slog"
	"time"

	"github.com/sentry-moderation/sentry/moderation"
	"github.com/sentry-moderation/sentry/moderation/actions"
	"github.com/sentry-moderation/sentry/moderation/analysis"
	"github.com/sentry-moderation/sentry/moderation/cachestore"
	"github.com/sentry-moderation/sentry/moderation/countstore"
	"github.com/sentry-moderation/sentry/moderation/fastpass"
	"github.com/sentry-moderation/sentry/moderation/inference"
	"github.com/sentry-moderation/sentry/moderation/policy"
	"github.com/sentry-moderation/sentry/moderation/ratelimit"
	"github.com/sentry-moderation/sentry/moderation/sanitizer"
	"github.com/sentry-moderation/sentry/moderation/validator"
	"github.com/sentry-moderation/sentry/moderation/violations"
)

// PipelineTestFixture wires a full in-memory pipeline around scripted mocks.
type PipelineTestFixture struct {
	Pipeline *Pipeline
	Provider *inference.MockProvider
	Platform *actions.MockPlatform
	Counts   *countstore.MemCountStore
	Pack     *policy.PolicyPack
}

// TestPolicyPack returns a small active pack with one enabled threshold rule
// per category and a handful of banned words and blocked URL patterns.
func TestPolicyPack() *policy.PolicyPack {
	return &policy.PolicyPack{
		ID:                  "pack-test",
		Name:                "test pack",
		Active:              true,
		AllowModelSuggested: true,
		Rules: []policy.ModerationRule{
			{PackID: "pack-test", RuleType: policy.RuleToxicity, Threshold: 0.7, Action: "delete_warn", Enabled: true},
			{PackID: "pack-test", RuleType: policy.RuleHarassment, Threshold: 0.8, Action: "escalate", Enabled: true},
			{PackID: "pack-test", RuleType: policy.RuleSpam, Threshold: 0.85, Action: "mask", Enabled: true},
			{PackID: "pack-test", RuleType: policy.RuleGrooming, Threshold: 0.6, Action: "escalate", Enabled: true},
		},
		BannedWords: []policy.BannedWord{
			{PackID: "pack-test", Pattern: "slurexample", Severity: "high", Action: "delete_warn"},
			{PackID: "pack-test", Pattern: `free\s+nitro`, IsRegex: true, Severity: "high", Action: "delete_warn"},
		},
		BlockedURLs: []policy.BlockedURL{
			{PackID: "pack-test", Pattern: "evil.example.com", Severity: "high", Action: "delete_warn"},
		},
	}
}

// NewTestFixture builds a pipeline over in-memory stores and the given
// scripted inference responses. The fixture is not initialized; call
// Pipeline.Initialize (or adjust the mocks first) in the test.
func NewTestFixture(responses ...string) *PipelineTestFixture {
	logger := slog.Default()
	counts := countstore.NewMemCountStore()
	cache := cachestore.NewMemCacheStore(1000, time.Hour)
	provider := inference.NewMockProvider(responses...)
	platform := actions.NewMockPlatform()
	pack := TestPolicyPack()

	deps := Deps{
		Logger:      logger,
		RateLimiter: ratelimit.NewLimiter(logger, counts, violations.NoopSink{}, ratelimit.DefaultConfig()),
		Validator:   validator.New(logger, counts, validator.DefaultConfig()),
		Sanitizer:   sanitizer.New(logger, sanitizer.DefaultConfig()),
		FastPass:    fastpass.NewFilter(logger, fastpass.DefaultConfig()),
		Analyzer:    analysis.NewAnalyzer(logger, provider, cache, analysis.DefaultConfig()),
		Executor:    actions.NewExecutor(logger, platform, actions.DefaultConfig()),
		Policies:    policy.NewStaticProvider(pack),
		Inference:   provider,
		Model:       "test-model",
	}

	return &PipelineTestFixture{
		Pipeline: NewPipeline(deps),
		Provider: provider,
		Platform: platform,
		Counts:   counts,
		Pack:     pack,
	}
}

// TestMessage returns a plain message from a non-bot author.
func TestMessage(id, content string) *moderation.Message {
	return &moderation.Message{
		ID:         id,
		GuildID:    "guild-1",
		ChannelID:  "chan-1",
		AuthorID:   "user-1",
		AuthorName: "alice",
		Content:    content,
		CreatedAt:  time.Now(),
	}
}
