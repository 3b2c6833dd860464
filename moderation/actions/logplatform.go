package actions

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// LogPlatform is a dry-run platform: every operation is granted and logged
// but nothing is executed. Useful for shadow deployments evaluating decision
// quality before wiring a real chat-platform client.
type LogPlatform struct {
	Logger *slog.Logger
	seq    atomic.Int64
}

var _ Platform = (*LogPlatform)(nil)

func NewLogPlatform(logger *slog.Logger) *LogPlatform {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPlatform{Logger: logger}
}

func (p *LogPlatform) HasCapability(ctx context.Context, channelID string, cap Capability) (bool, error) {
	return true, nil
}

func (p *LogPlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	p.Logger.Info("dry-run: delete message", "channel", channelID, "message", messageID)
	return nil
}

func (p *LogPlatform) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	p.Logger.Info("dry-run: send message", "channel", channelID, "content", content)
	return fmt.Sprintf("dry-%d", p.seq.Add(1)), nil
}

func (p *LogPlatform) SendEmbed(ctx context.Context, channelID string, embed Embed) (string, error) {
	p.Logger.Info("dry-run: send embed", "channel", channelID, "title", embed.Title)
	return fmt.Sprintf("dry-%d", p.seq.Add(1)), nil
}

func (p *LogPlatform) NotifyUser(ctx context.Context, userID, content string) error {
	p.Logger.Info("dry-run: notify user", "user", userID)
	return nil
}

func (p *LogPlatform) EnsureRestrictionRole(ctx context.Context, guildID string) (string, error) {
	p.Logger.Info("dry-run: ensure restriction role", "guild", guildID)
	return "dry-role", nil
}

func (p *LogPlatform) AssignRole(ctx context.Context, guildID, userID, roleID string) error {
	p.Logger.Info("dry-run: assign role", "guild", guildID, "user", userID, "role", roleID)
	return nil
}

func (p *LogPlatform) Moderators(ctx context.Context, guildID string, limit int) ([]string, error) {
	return nil, nil
}
