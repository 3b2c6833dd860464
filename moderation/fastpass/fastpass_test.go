package fastpass

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentry-moderation/sentry/moderation"
	"github.com/sentry-moderation/sentry/moderation/policy"
)

func testPack() *policy.PolicyPack {
	return &policy.PolicyPack{
		ID:     "pack1",
		Name:   "test",
		Active: true,
		BannedWords: []policy.BannedWord{
			{PackID: "pack1", Pattern: "badword", Severity: "high", Action: "delete_warn"},
			{PackID: "pack1", Pattern: `fr33\s+stuff`, IsRegex: true, Severity: "medium", Action: "mask"},
		},
		BlockedURLs: []policy.BlockedURL{
			{PackID: "pack1", Pattern: "scam.example.net", Severity: "high", Action: "delete_warn"},
			{PackID: "pack1", Pattern: `discord\.gg/[a-z0-9]+`, IsRegex: true, Severity: "medium", Action: "mask"},
		},
	}
}

func loadedFilter(t *testing.T) *Filter {
	t.Helper()
	f := NewFilter(nil, DefaultConfig())
	require.NoError(t, f.LoadRules(context.Background(), policy.NewStaticProvider(testPack()), "pack1"))
	return f
}

func checkContent(f *Filter, content string) Outcome {
	return f.Check(&moderation.Message{ID: "m1", ChannelID: "c1", AuthorID: "u1", Content: content})
}

func TestCheckBeforeLoad(t *testing.T) {
	assert := assert.New(t)

	f := NewFilter(nil, DefaultConfig())
	assert.False(f.Ready())
	out := checkContent(f, "badword everywhere")
	assert.False(out.Triggered)
}

func TestBannedWordLiteral(t *testing.T) {
	assert := assert.New(t)
	f := loadedFilter(t)

	out := checkContent(f, "you total BadWord you")
	assert.True(out.Triggered)
	assert.Equal("banned_word", out.RuleTriggered)
	assert.Equal(moderation.ActionDeleteWarn, out.Action)
	assert.Equal(1.0, out.Confidence)

	out = checkContent(f, "a perfectly fine sentence")
	assert.False(out.Triggered)
}

func TestBannedWordRegex(t *testing.T) {
	assert := assert.New(t)
	f := loadedFilter(t)

	out := checkContent(f, "get FR33  STUFF today")
	assert.True(out.Triggered)
	assert.Equal("banned_word", out.RuleTriggered)
	assert.Equal(moderation.ActionMask, out.Action)
}

func TestBlockedURLs(t *testing.T) {
	assert := assert.New(t)
	f := loadedFilter(t)

	out := checkContent(f, "join https://scam.example.net/win")
	assert.True(out.Triggered)
	assert.Equal("blocked_url", out.RuleTriggered)
	assert.Equal(moderation.ActionDeleteWarn, out.Action)

	out = checkContent(f, "invite at discord.gg/abc123")
	assert.True(out.Triggered)
	assert.Equal("blocked_url", out.RuleTriggered)
	assert.Equal(moderation.ActionMask, out.Action)
}

func TestSpamHeuristics(t *testing.T) {
	assert := assert.New(t)
	f := loadedFilter(t)

	out := checkContent(f, "STOP SHOUTING AT EVERYONE")
	assert.True(out.Triggered)
	assert.Equal("spam_heuristic", out.RuleTriggered)
	assert.Equal(moderation.ActionMask, out.Action)

	out = checkContent(f, strings.Repeat("\U0001F525", 11)+" fire sale")
	assert.True(out.Triggered)
	assert.Equal("spam_heuristic", out.RuleTriggered)

	mentions := strings.Repeat("<@1234> ", 6)
	out = checkContent(f, mentions+"look here")
	assert.True(out.Triggered)
	assert.Equal("spam_heuristic", out.RuleTriggered)

	out = checkContent(f, "x"+strings.Repeat("ý̀", 10))
	assert.True(out.Triggered)
	assert.Equal("spam_heuristic", out.RuleTriggered)
}

func TestRepetitionHeuristics(t *testing.T) {
	assert := assert.New(t)
	f := loadedFilter(t)

	out := checkContent(f, "hello"+strings.Repeat("o", 12))
	assert.True(out.Triggered)
	assert.Equal("repetition_heuristic", out.RuleTriggered)

	out = checkContent(f, strings.Repeat("join now ", 6))
	assert.True(out.Triggered)
	assert.Equal("repetition_heuristic", out.RuleTriggered)
}

func TestBannedWordsWinOverHeuristics(t *testing.T) {
	assert := assert.New(t)
	f := loadedFilter(t)

	// matcher order is fixed: the banned-word match reports, not the shouting
	out := checkContent(f, "BADWORD BADWORD SHOUTY TEXT")
	assert.True(out.Triggered)
	assert.Equal("banned_word", out.RuleTriggered)
}

func TestLoadRulesReplacesSnapshot(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := loadedFilter(t)

	words, urls := f.RuleCounts()
	assert.Equal(2, words)
	assert.Equal(2, urls)

	smaller := &policy.PolicyPack{
		ID: "pack2", Name: "smaller", Active: true,
		BannedWords: []policy.BannedWord{
			{PackID: "pack2", Pattern: "newterm", Action: "mask"},
		},
	}
	require.NoError(t, f.LoadRules(ctx, policy.NewStaticProvider(smaller), "pack2"))

	words, urls = f.RuleCounts()
	assert.Equal(1, words)
	assert.Equal(0, urls)

	assert.False(checkContent(f, "badword here").Triggered)
	assert.True(checkContent(f, "newterm here").Triggered)
}

func TestLoadRulesReloadIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := loadedFilter(t)

	w1, u1 := f.RuleCounts()
	require.NoError(t, f.LoadRules(ctx, policy.NewStaticProvider(testPack()), "pack1"))
	w2, u2 := f.RuleCounts()
	assert.Equal(w1, w2)
	assert.Equal(u1, u2)
}

func TestLoadRulesBadRegexKeepsOldSnapshot(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := loadedFilter(t)

	broken := &policy.PolicyPack{
		ID: "pack3", Name: "broken", Active: true,
		BannedWords: []policy.BannedWord{
			{PackID: "pack3", Pattern: "([unclosed", IsRegex: true, Action: "mask"},
		},
	}
	err := f.LoadRules(ctx, policy.NewStaticProvider(broken), "pack3")
	assert.Error(err)

	// the previous rules are still in effect
	assert.True(checkContent(f, "badword here").Triggered)
}
