package actions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sentry-moderation/sentry/moderation"
)

func testMsg() *moderation.Message {
	return &moderation.Message{
		ID: "m1", GuildID: "g1", ChannelID: "c1",
		AuthorID: "u1", AuthorName: "alice",
		Content: "offending content",
	}
}

func TestExecuteNone(t *testing.T) {
	assert := assert.New(t)
	p := NewMockPlatform()
	e := NewExecutor(nil, p, DefaultConfig())

	res := e.Execute(context.Background(), moderation.ActionNone, testMsg(), "")
	assert.True(res.Success)
	assert.Empty(p.Deleted)
}

func TestExecuteMask(t *testing.T) {
	assert := assert.New(t)
	p := NewMockPlatform()
	e := NewExecutor(nil, p, DefaultConfig())

	res := e.Execute(context.Background(), moderation.ActionMask, testMsg(), "matched rule")
	assert.True(res.Success)
	assert.Contains(p.Deleted, "m1")
	assert.Len(p.Embeds, 1)
	assert.Contains(p.Embeds[0].Description, "alice")
}

func TestExecuteDeleteWarn(t *testing.T) {
	assert := assert.New(t)
	p := NewMockPlatform()
	e := NewExecutor(nil, p, DefaultConfig())

	res := e.Execute(context.Background(), moderation.ActionDeleteWarn, testMsg(), "banned term")
	assert.True(res.Success)
	assert.Contains(p.Deleted, "m1")
	assert.Contains(p.Notified, "u1")
	assert.Equal(NotificationDelivered, res.Notification)
}

func TestExecuteDeleteWarnNotifyFailureNonFatal(t *testing.T) {
	assert := assert.New(t)
	p := NewMockPlatform()
	p.FailNotify = true
	e := NewExecutor(nil, p, DefaultConfig())

	res := e.Execute(context.Background(), moderation.ActionDeleteWarn, testMsg(), "banned term")
	assert.True(res.Success)
	assert.NoError(res.Err)
	assert.Equal(NotificationFailed, res.Notification)
	assert.Contains(p.Deleted, "m1")
}

func TestExecuteShadowban(t *testing.T) {
	assert := assert.New(t)
	p := NewMockPlatform()
	e := NewExecutor(nil, p, DefaultConfig())

	res := e.Execute(context.Background(), moderation.ActionShadowban, testMsg(), "repeat offender")
	assert.True(res.Success)
	assert.Contains(p.Deleted, "m1")
	assert.Contains(p.AssignedRoles, "u1/role-restricted")
	assert.Equal(NotificationSuppressed, res.Notification)
}

func TestExecuteEscalateMentionsCapped(t *testing.T) {
	assert := assert.New(t)
	p := NewMockPlatform()
	p.ModeratorIDs = []string{"mod1", "mod2", "mod3", "mod4", "mod5"}
	cfg := DefaultConfig()
	cfg.AlertTTL = 20 * time.Millisecond
	e := NewExecutor(nil, p, cfg)

	res := e.Execute(context.Background(), moderation.ActionEscalate, testMsg(), "needs a human")
	assert.True(res.Success)
	assert.Len(p.Embeds, 1)
	desc := p.Embeds[0].Description
	assert.Contains(desc, "<@mod3>")
	assert.NotContains(desc, "<@mod4>")

	// the alert auto-expires
	assert.Eventually(func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.Deleted) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestExecuteMissingCapability(t *testing.T) {
	assert := assert.New(t)
	p := NewMockPlatform()
	p.Denied[CapManageMessages] = true
	e := NewExecutor(nil, p, DefaultConfig())

	res := e.Execute(context.Background(), moderation.ActionDeleteWarn, testMsg(), "whatever")
	assert.False(res.Success)
	assert.True(errors.Is(res.Err, ErrMissingCapability))
	assert.Empty(p.Deleted)
}

func TestExecuteCapabilitySetsPerAction(t *testing.T) {
	assert := assert.New(t)

	// escalate only needs send + embed, so it still works without
	// message-manage rights
	p := NewMockPlatform()
	p.Denied[CapManageMessages] = true
	e := NewExecutor(nil, p, DefaultConfig())
	res := e.Execute(context.Background(), moderation.ActionEscalate, testMsg(), "needs a human")
	assert.True(res.Success)

	// shadowban needs role management
	p2 := NewMockPlatform()
	p2.Denied[CapManageRoles] = true
	e2 := NewExecutor(nil, p2, DefaultConfig())
	res = e2.Execute(context.Background(), moderation.ActionShadowban, testMsg(), "x")
	assert.False(res.Success)
	assert.True(errors.Is(res.Err, ErrMissingCapability))
}

func TestExecuteDeleteFailureSurfaced(t *testing.T) {
	assert := assert.New(t)
	p := NewMockPlatform()
	p.FailDelete = true
	e := NewExecutor(nil, p, DefaultConfig())

	res := e.Execute(context.Background(), moderation.ActionMask, testMsg(), "x")
	assert.False(res.Success)
	assert.Error(res.Err)
}

func TestExecutePenaltyActions(t *testing.T) {
	assert := assert.New(t)
	p := NewMockPlatform()
	e := NewExecutor(nil, p, DefaultConfig())
	ctx := context.Background()

	res := e.Execute(ctx, moderation.ActionWarning, testMsg(), "slow down")
	assert.True(res.Success)
	assert.Len(p.Sent, 1)

	res = e.Execute(ctx, moderation.ActionTempMute, testMsg(), "rate limit")
	assert.True(res.Success)
	assert.Contains(p.AssignedRoles, "u1/role-restricted")

	res = e.Execute(ctx, moderation.ActionTempBan, testMsg(), "rate limit")
	assert.True(res.Success)
}

func TestExecuteNilPlatformRecovered(t *testing.T) {
	assert := assert.New(t)
	e := NewExecutor(nil, nil, DefaultConfig())

	res := e.Execute(context.Background(), moderation.ActionMask, testMsg(), "x")
	assert.False(res.Success)
	assert.Error(res.Err)
}
