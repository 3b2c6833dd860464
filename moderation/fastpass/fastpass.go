// Package fastpass implements the deterministic, policy-driven rule matcher
// that runs before any probabilistic analysis: banned terms, blocked URLs,
// and spam/repetition heuristics.
package fastpass

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sentry-moderation/sentry/moderation"
	"github.com/sentry-moderation/sentry/moderation/keyword"
	"github.com/sentry-moderation/sentry/moderation/policy"
)

// Outcome is the result of a fast-pass check. Triggered false means no rule
// or heuristic matched; the caller continues to the next pipeline stage.
type Outcome struct {
	Triggered     bool
	RuleTriggered string
	Action        moderation.Action
	Reason        string
	Confidence    float64
}

type bannedWordRule struct {
	pattern  string
	re       *regexp.Regexp
	severity string
	action   moderation.Action
}

type blockedURLRule struct {
	pattern  string
	re       *regexp.Regexp
	severity string
	action   moderation.Action
}

// ruleSnapshot is an immutable compiled rule set. Reloads build a fresh
// snapshot and swap the pointer, so in-flight checks always observe one
// consistent version.
type ruleSnapshot struct {
	packID   string
	words    []bannedWordRule
	urls     []blockedURLRule
	loadedAt time.Time
}

type Config struct {
	// spam heuristics
	MaxCapsRatio      float64
	MaxEmojiCount     int
	MaxMentionCount   int
	MaxMessageLength  int
	MaxCombiningRatio float64
	// repetition heuristics
	MaxCharRun      int
	MaxWordRepeats  int
	MinRepeatedWord int
}

func DefaultConfig() Config {
	return Config{
		MaxCapsRatio:      0.7,
		MaxEmojiCount:     10,
		MaxMentionCount:   5,
		MaxMessageLength:  2000,
		MaxCombiningRatio: 0.25,
		MaxCharRun:        8,
		MaxWordRepeats:    4,
		MinRepeatedWord:   3,
	}
}

type Filter struct {
	logger *slog.Logger
	cfg    Config
	snap   atomic.Pointer[ruleSnapshot]
}

func NewFilter(logger *slog.Logger, cfg Config) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{logger: logger, cfg: cfg}
}

// Ready reports whether a rule snapshot has been loaded.
func (f *Filter) Ready() bool {
	return f.snap.Load() != nil
}

// RuleCounts returns the cardinality of the loaded banned-word and
// blocked-URL sets.
func (f *Filter) RuleCounts() (int, int) {
	s := f.snap.Load()
	if s == nil {
		return 0, 0
	}
	return len(s.words), len(s.urls)
}

// LoadRules fetches the pack's banned words and blocked URLs, compiles them,
// and atomically replaces the previous snapshot. On any error the previous
// snapshot remains in effect.
func (f *Filter) LoadRules(ctx context.Context, provider policy.Provider, packID string) error {
	words, err := provider.BannedWords(ctx, packID)
	if err != nil {
		return fmt.Errorf("loading banned words: %w", err)
	}
	urls, err := provider.BlockedURLs(ctx, packID)
	if err != nil {
		return fmt.Errorf("loading blocked URLs: %w", err)
	}

	snap := &ruleSnapshot{
		packID:   packID,
		loadedAt: time.Now(),
	}
	for _, w := range words {
		rule := bannedWordRule{pattern: w.Pattern, severity: w.Severity}
		rule.action, _ = moderation.ParseAction(w.Action)
		if w.IsRegex {
			re, err := regexp.Compile("(?i)" + w.Pattern)
			if err != nil {
				return fmt.Errorf("compiling banned word regex %q: %w", w.Pattern, err)
			}
			rule.re = re
		}
		snap.words = append(snap.words, rule)
	}
	for _, u := range urls {
		rule := blockedURLRule{pattern: u.Pattern, severity: u.Severity}
		rule.action, _ = moderation.ParseAction(u.Action)
		if u.IsRegex {
			re, err := regexp.Compile("(?i)" + u.Pattern)
			if err != nil {
				return fmt.Errorf("compiling blocked URL regex %q: %w", u.Pattern, err)
			}
			rule.re = re
		}
		snap.urls = append(snap.urls, rule)
	}

	f.snap.Store(snap)
	f.logger.Info("fast-pass rules loaded", "pack", packID, "bannedWords", len(snap.words), "blockedUrls", len(snap.urls))
	return nil
}

// Check runs the deterministic matchers in fixed order, short-circuiting at
// the first match: banned words, blocked URLs, spam heuristics, repetition
// heuristics.
func (f *Filter) Check(msg *moderation.Message) Outcome {
	snap := f.snap.Load()
	if snap == nil {
		return Outcome{}
	}
	content := msg.Content

	if out, ok := f.checkBannedWords(snap, content); ok {
		checkCount.WithLabelValues("banned_word").Inc()
		return out
	}
	if out, ok := f.checkBlockedURLs(snap, content); ok {
		checkCount.WithLabelValues("blocked_url").Inc()
		return out
	}
	if out, ok := f.checkSpamHeuristics(content, msg); ok {
		checkCount.WithLabelValues("spam").Inc()
		return out
	}
	if out, ok := f.checkRepetition(content); ok {
		checkCount.WithLabelValues("repetition").Inc()
		return out
	}
	return Outcome{}
}

func (f *Filter) checkBannedWords(snap *ruleSnapshot, content string) (Outcome, bool) {
	lower := strings.ToLower(content)
	tokens := keyword.TokenizeText(content)
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}
	for _, w := range snap.words {
		matched := false
		if w.re != nil {
			matched = w.re.MatchString(content)
		} else {
			// literal patterns match case-insensitively, either as a
			// normalized token or as a raw substring for multi-word patterns
			p := strings.ToLower(w.pattern)
			matched = tokenSet[keyword.Slugify(p)] || strings.Contains(lower, p)
		}
		if matched {
			return Outcome{
				Triggered:     true,
				RuleTriggered: "banned_word",
				Action:        w.action,
				Reason:        fmt.Sprintf("matched banned term pattern %q", w.pattern),
				Confidence:    1.0,
			}, true
		}
	}
	return Outcome{}, false
}

func (f *Filter) checkBlockedURLs(snap *ruleSnapshot, content string) (Outcome, bool) {
	urls := keyword.ExtractTextURLs(content)
	if len(urls) == 0 {
		return Outcome{}, false
	}
	for _, u := range snap.urls {
		for _, found := range urls {
			matched := false
			if u.re != nil {
				matched = u.re.MatchString(found)
			} else {
				matched = strings.Contains(strings.ToLower(found), strings.ToLower(u.pattern))
			}
			if matched {
				return Outcome{
					Triggered:     true,
					RuleTriggered: "blocked_url",
					Action:        u.action,
					Reason:        fmt.Sprintf("matched blocked URL pattern %q", u.pattern),
					Confidence:    1.0,
				}, true
			}
		}
	}
	return Outcome{}, false
}
