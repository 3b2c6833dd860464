package validator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentry-moderation/sentry/moderation"
	"github.com/sentry-moderation/sentry/moderation/countstore"
)

func testValidator() *Validator {
	return New(nil, countstore.NewMemCountStore(), DefaultConfig())
}

func msgWith(content string) *moderation.Message {
	return &moderation.Message{
		ID:         "m1",
		ChannelID:  "chan1",
		AuthorID:   "user1",
		AuthorName: "alice",
		Content:    content,
	}
}

func TestValidateCleanMessage(t *testing.T) {
	assert := assert.New(t)
	v := testValidator()

	res := v.Validate(context.Background(), msgWith("hello, how is everyone doing today?"))
	assert.True(res.Valid)
	assert.Empty(res.Errors)
	assert.Equal(moderation.RiskLow, res.Risk)
}

func TestValidateEmptyMessage(t *testing.T) {
	assert := assert.New(t)
	v := testValidator()

	res := v.Validate(context.Background(), msgWith(""))
	assert.False(res.Valid)
	assert.Equal(moderation.RiskMedium, res.Risk)
}

func TestValidateInjectionPatterns(t *testing.T) {
	assert := assert.New(t)
	v := testValidator()

	for _, content := range []string{
		"<script>alert(1)</script>",
		"click javascript:alert(1)",
		"'; DROP  TABLE users --",
		"a; rm -rf /tmp",
		"../../../../etc/passwd",
	} {
		res := v.Validate(context.Background(), msgWith(content))
		assert.False(res.Valid, "content %q", content)
		assert.GreaterOrEqual(res.Risk, moderation.RiskHigh, "content %q", content)
	}
}

func TestValidateZeroWidthCharacters(t *testing.T) {
	assert := assert.New(t)
	v := testValidator()

	res := v.Validate(context.Background(), msgWith("to\u200btally nor\u200bmal text"))
	assert.False(res.Valid)
	assert.Equal(moderation.RiskHigh, res.Risk)
	assert.NotContains(res.SanitizedContent, "\u200b")
}

func TestValidateRepeatedCharacterRun(t *testing.T) {
	assert := assert.New(t)
	v := testValidator()

	res := v.Validate(context.Background(), msgWith("aw"+strings.Repeat("e", 30)+"some"))
	assert.False(res.Valid)
	assert.Equal(moderation.RiskMedium, res.Risk)
}

func TestValidateURLChecks(t *testing.T) {
	assert := assert.New(t)
	v := testValidator()
	ctx := context.Background()

	res := v.Validate(ctx, msgWith("look at http://192.168.0.1/payload"))
	assert.Equal(moderation.RiskHigh, res.Risk)

	res = v.Validate(ctx, msgWith("shortened https://bit.ly/abc123 link"))
	assert.Equal(moderation.RiskMedium, res.Risk)

	res = v.Validate(ctx, msgWith("run https://example.com/page?cmd=whoami now"))
	assert.Equal(moderation.RiskHigh, res.Risk)

	var many []string
	for i := 0; i < 6; i++ {
		many = append(many, "https://example.com/p"+strings.Repeat("x", i+1))
	}
	res = v.Validate(ctx, msgWith(strings.Join(many, " ")))
	assert.Equal(moderation.RiskHigh, res.Risk)
}

func TestValidateAttachments(t *testing.T) {
	assert := assert.New(t)
	v := testValidator()
	ctx := context.Background()

	res := v.Validate(ctx, &moderation.Message{
		ID: "m1", ChannelID: "c", AuthorID: "u", AuthorName: "alice",
		Attachments: []moderation.Attachment{{Filename: "setup.exe", Size: 1024}},
	})
	assert.Equal(moderation.RiskCritical, res.Risk)

	res = v.Validate(ctx, &moderation.Message{
		ID: "m2", ChannelID: "c", AuthorID: "u", AuthorName: "alice",
		Attachments: []moderation.Attachment{{Filename: "invoice.pdf.txt", Size: 1024}},
	})
	assert.Equal(moderation.RiskHigh, res.Risk)

	res = v.Validate(ctx, &moderation.Message{
		ID: "m3", ChannelID: "c", AuthorID: "u", AuthorName: "alice",
		Attachments: []moderation.Attachment{{Filename: "photo.png", Size: 30 << 20}},
	})
	assert.Equal(moderation.RiskMedium, res.Risk)
}

func TestValidateUnverifiedBot(t *testing.T) {
	assert := assert.New(t)
	v := testValidator()

	msg := msgWith("an ordinary announcement")
	msg.AuthorIsBot = true
	res := v.Validate(context.Background(), msg)
	assert.Equal(moderation.RiskHigh, res.Risk)

	msg.AuthorVerifiedBot = true
	res = v.Validate(context.Background(), msg)
	assert.Equal(moderation.RiskLow, res.Risk)
}

func TestValidateDuplicateDetection(t *testing.T) {
	assert := assert.New(t)
	v := testValidator()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := v.Validate(ctx, msgWith("buy my thing at the store"))
		assert.True(res.Valid, "repeat %d", i+1)
	}
	res := v.Validate(ctx, msgWith("buy my thing at the store"))
	assert.False(res.Valid)
	assert.Equal(moderation.RiskHigh, res.Risk)

	// different content is tracked separately
	res = v.Validate(ctx, msgWith("a different message entirely"))
	assert.True(res.Valid)
}

func TestRiskMonotonicAcrossChecks(t *testing.T) {
	assert := assert.New(t)
	v := testValidator()

	// a high-risk finding is not downgraded by later medium-risk findings
	msg := msgWith("<script>x</script> " + strings.Repeat("z", 30))
	res := v.Validate(context.Background(), msg)
	assert.GreaterOrEqual(res.Risk, moderation.RiskHigh)
	assert.GreaterOrEqual(len(res.Errors), 2)
}

func TestShallowSanitize(t *testing.T) {
	assert := assert.New(t)

	out := shallowSanitize("hi  <b>there</b>\u200b   friend")
	assert.Equal("hi there friend", out)
}
