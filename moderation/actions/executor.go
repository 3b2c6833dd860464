package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentry-moderation/sentry/moderation"
)

var ErrMissingCapability = errors.New("missing platform capability")

// NotificationOutcome reports what happened to a best-effort direct
// notification, so callers and tests can assert on it instead of relying on
// the absence of errors.
type NotificationOutcome string

const (
	NotificationDelivered  NotificationOutcome = "delivered"
	NotificationSuppressed NotificationOutcome = "suppressed"
	NotificationFailed     NotificationOutcome = "failed"
)

// ExecResult is the outcome of executing one action. No execution path
// panics or returns an error across the public boundary; failures are
// carried in Err with Success false.
type ExecResult struct {
	Success      bool
	Action       moderation.Action
	Reason       string
	Notification NotificationOutcome
	Err          error
}

type Config struct {
	// how long escalation alerts stay up before auto-expiring
	AlertTTL time.Duration
	// maximum moderators mentioned in an escalation alert
	MaxModeratorMentions int
}

func DefaultConfig() Config {
	return Config{
		AlertTTL:             10 * time.Minute,
		MaxModeratorMentions: 3,
	}
}

type Executor struct {
	logger   *slog.Logger
	platform Platform
	cfg      Config
}

func NewExecutor(logger *slog.Logger, platform Platform, cfg Config) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger, platform: platform, cfg: cfg}
}

// requiredCapabilities maps each action to the capability set checked before
// execution.
var requiredCapabilities = map[moderation.Action][]Capability{
	moderation.ActionMask:       {CapManageMessages, CapSendMessages, CapEmbedLinks},
	moderation.ActionDeleteWarn: {CapManageMessages, CapSendMessages, CapEmbedLinks},
	moderation.ActionShadowban:  {CapManageRoles, CapManageChannels, CapManageMessages},
	moderation.ActionEscalate:   {CapSendMessages, CapEmbedLinks},
	moderation.ActionWarning:    {CapSendMessages},
	moderation.ActionTempMute:   {CapManageRoles},
	moderation.ActionTempBan:    {CapManageRoles, CapManageChannels},
}

// Execute applies the decided action to the platform. Always returns a
// result; never panics and never throws across the public boundary.
func (e *Executor) Execute(ctx context.Context, action moderation.Action, msg *moderation.Message, reason string) (res ExecResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("action execution panic", "action", action, "err", r)
			res = ExecResult{Action: action, Err: fmt.Errorf("action execution panic: %v", r)}
		}
		executeCount.WithLabelValues(string(action), fmt.Sprint(res.Success)).Inc()
	}()

	if action == moderation.ActionNone {
		return ExecResult{Success: true, Action: action}
	}

	ok, err := e.hasRequiredPermissions(ctx, msg, action)
	if err != nil {
		return ExecResult{Action: action, Err: fmt.Errorf("capability preflight failed: %w", err)}
	}
	if !ok {
		return ExecResult{Action: action, Err: fmt.Errorf("%w for action %s", ErrMissingCapability, action)}
	}

	switch action {
	case moderation.ActionMask:
		return e.mask(ctx, msg, reason)
	case moderation.ActionDeleteWarn:
		return e.deleteWarn(ctx, msg, reason)
	case moderation.ActionShadowban:
		return e.shadowban(ctx, msg, reason)
	case moderation.ActionEscalate:
		return e.escalate(ctx, msg, reason)
	case moderation.ActionWarning:
		return e.warn(ctx, msg, reason)
	case moderation.ActionTempMute, moderation.ActionTempBan:
		return e.restrict(ctx, msg, action, reason)
	default:
		return ExecResult{Action: action, Err: fmt.Errorf("unknown action: %s", action)}
	}
}

func (e *Executor) hasRequiredPermissions(ctx context.Context, msg *moderation.Message, action moderation.Action) (bool, error) {
	for _, cap := range requiredCapabilities[action] {
		ok, err := e.platform.HasCapability(ctx, msg.ChannelID, cap)
		if err != nil {
			return false, err
		}
		if !ok {
			e.logger.Warn("missing capability for action", "action", action, "capability", cap, "channel", msg.ChannelID)
			return false, nil
		}
	}
	return true, nil
}

// mask removes the original message and posts a redacted replacement.
func (e *Executor) mask(ctx context.Context, msg *moderation.Message, reason string) ExecResult {
	if err := e.platform.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		return ExecResult{Action: moderation.ActionMask, Err: fmt.Errorf("deleting message: %w", err)}
	}
	_, err := e.platform.SendEmbed(ctx, msg.ChannelID, Embed{
		Title:       "Message removed",
		Description: fmt.Sprintf("A message from %s was redacted: %s", msg.AuthorName, reason),
		Color:       0xE67E22,
	})
	if err != nil {
		return ExecResult{Action: moderation.ActionMask, Err: fmt.Errorf("posting redacted replacement: %w", err)}
	}
	return ExecResult{Success: true, Action: moderation.ActionMask, Reason: reason}
}

// deleteWarn removes the original, posts a public warning, and attempts a
// private notice. Notification failure is recorded, not surfaced as an error.
func (e *Executor) deleteWarn(ctx context.Context, msg *moderation.Message, reason string) ExecResult {
	if err := e.platform.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		return ExecResult{Action: moderation.ActionDeleteWarn, Err: fmt.Errorf("deleting message: %w", err)}
	}
	_, err := e.platform.SendEmbed(ctx, msg.ChannelID, Embed{
		Title:       "Message deleted",
		Description: fmt.Sprintf("%s, your message violated the server rules: %s", msg.AuthorName, reason),
		Color:       0xE74C3C,
	})
	if err != nil {
		return ExecResult{Action: moderation.ActionDeleteWarn, Err: fmt.Errorf("posting public warning: %w", err)}
	}

	outcome := NotificationDelivered
	if err := e.platform.NotifyUser(ctx, msg.AuthorID, fmt.Sprintf("Your message in this server was removed: %s", reason)); err != nil {
		e.logger.Debug("private notice delivery failed", "user", msg.AuthorID, "err", err)
		outcome = NotificationFailed
	}
	return ExecResult{Success: true, Action: moderation.ActionDeleteWarn, Reason: reason, Notification: outcome}
}

// shadowban removes the original, ensures the restriction role exists, and
// assigns it to the author.
func (e *Executor) shadowban(ctx context.Context, msg *moderation.Message, reason string) ExecResult {
	if err := e.platform.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		return ExecResult{Action: moderation.ActionShadowban, Err: fmt.Errorf("deleting message: %w", err)}
	}
	roleID, err := e.platform.EnsureRestrictionRole(ctx, msg.GuildID)
	if err != nil {
		return ExecResult{Action: moderation.ActionShadowban, Err: fmt.Errorf("ensuring restriction role: %w", err)}
	}
	if err := e.platform.AssignRole(ctx, msg.GuildID, msg.AuthorID, roleID); err != nil {
		return ExecResult{Action: moderation.ActionShadowban, Err: fmt.Errorf("assigning restriction role: %w", err)}
	}
	return ExecResult{Success: true, Action: moderation.ActionShadowban, Reason: reason, Notification: NotificationSuppressed}
}

// escalate posts a high-visibility alert mentioning reachable moderators and
// auto-expires the alert after the configured delay.
func (e *Executor) escalate(ctx context.Context, msg *moderation.Message, reason string) ExecResult {
	mods, err := e.platform.Moderators(ctx, msg.GuildID, e.cfg.MaxModeratorMentions)
	if err != nil {
		e.logger.Warn("could not list moderators for escalation", "err", err)
	}
	mentions := ""
	for _, m := range mods {
		mentions += fmt.Sprintf("<@%s> ", m)
	}
	alertID, err := e.platform.SendEmbed(ctx, msg.ChannelID, Embed{
		Title:       "Moderator attention required",
		Description: fmt.Sprintf("%smessage from %s flagged: %s", mentions, msg.AuthorName, reason),
		Color:       0xC0392B,
	})
	if err != nil {
		return ExecResult{Action: moderation.ActionEscalate, Err: fmt.Errorf("posting escalation alert: %w", err)}
	}

	channelID := msg.ChannelID
	time.AfterFunc(e.cfg.AlertTTL, func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.platform.DeleteMessage(cleanupCtx, channelID, alertID); err != nil {
			e.logger.Debug("failed to expire escalation alert", "err", err, "alert", alertID)
		}
	})
	return ExecResult{Success: true, Action: moderation.ActionEscalate, Reason: reason}
}

func (e *Executor) warn(ctx context.Context, msg *moderation.Message, reason string) ExecResult {
	_, err := e.platform.SendMessage(ctx, msg.ChannelID,
		fmt.Sprintf("%s: slow down. %s", msg.AuthorName, reason))
	if err != nil {
		return ExecResult{Action: moderation.ActionWarning, Err: fmt.Errorf("posting warning: %w", err)}
	}
	return ExecResult{Success: true, Action: moderation.ActionWarning, Reason: reason}
}

// restrict applies the mute/ban restriction role for rate-limit penalties.
func (e *Executor) restrict(ctx context.Context, msg *moderation.Message, action moderation.Action, reason string) ExecResult {
	roleID, err := e.platform.EnsureRestrictionRole(ctx, msg.GuildID)
	if err != nil {
		return ExecResult{Action: action, Err: fmt.Errorf("ensuring restriction role: %w", err)}
	}
	if err := e.platform.AssignRole(ctx, msg.GuildID, msg.AuthorID, roleID); err != nil {
		return ExecResult{Action: action, Err: fmt.Errorf("assigning restriction role: %w", err)}
	}
	outcome := NotificationDelivered
	if err := e.platform.NotifyUser(ctx, msg.AuthorID, fmt.Sprintf("You have been restricted: %s", reason)); err != nil {
		outcome = NotificationFailed
	}
	return ExecResult{Success: true, Action: action, Reason: reason, Notification: outcome}
}
