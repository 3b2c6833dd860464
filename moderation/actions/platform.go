// Package actions maps decided moderation actions to concrete platform
// operations, with a capability preflight before every execution.
package actions

import "context"

// Capability names a platform permission the bot may or may not hold in a
// given channel or guild.
type Capability string

const (
	CapManageMessages Capability = "manage_messages"
	CapSendMessages   Capability = "send_messages"
	CapEmbedLinks     Capability = "embed_links"
	CapManageRoles    Capability = "manage_roles"
	CapManageChannels Capability = "manage_channels"
)

// Embed is the minimal rich-content shape the executor posts.
type Embed struct {
	Title       string
	Description string
	Color       int
}

// Platform is the action-provider collaborator contract. The chat-platform
// client implements it; the executor never imports platform SDK types.
type Platform interface {
	HasCapability(ctx context.Context, channelID string, cap Capability) (bool, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SendMessage(ctx context.Context, channelID, content string) (string, error)
	SendEmbed(ctx context.Context, channelID string, embed Embed) (string, error)
	// NotifyUser is a best-effort direct message.
	NotifyUser(ctx context.Context, userID, content string) error
	// EnsureRestrictionRole returns the ID of the guild's restriction role,
	// creating it with deny-overwrites on all channels if absent.
	EnsureRestrictionRole(ctx context.Context, guildID string) (string, error)
	AssignRole(ctx context.Context, guildID, userID, roleID string) error
	// Moderators lists reachable moderator user IDs, up to limit.
	Moderators(ctx context.Context, guildID string, limit int) ([]string, error)
}
