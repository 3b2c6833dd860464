package actions

import (
	"context"
	"fmt"
	"sync"
)

// MockPlatform records all platform calls in memory. Capabilities default to
// granted; individual capabilities can be denied per test.
type MockPlatform struct {
	mu sync.Mutex

	Denied        map[Capability]bool
	FailNotify    bool
	FailDelete    bool
	Deleted       []string
	Sent          []string
	Embeds        []Embed
	Notified      []string
	AssignedRoles []string
	ModeratorIDs  []string

	nextID int
}

var _ Platform = (*MockPlatform)(nil)

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{Denied: make(map[Capability]bool)}
}

func (m *MockPlatform) HasCapability(ctx context.Context, channelID string, cap Capability) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.Denied[cap], nil
}

func (m *MockPlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete {
		return fmt.Errorf("delete failed")
	}
	m.Deleted = append(m.Deleted, messageID)
	return nil
}

func (m *MockPlatform) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, content)
	m.nextID++
	return fmt.Sprintf("sent-%d", m.nextID), nil
}

func (m *MockPlatform) SendEmbed(ctx context.Context, channelID string, embed Embed) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Embeds = append(m.Embeds, embed)
	m.nextID++
	return fmt.Sprintf("embed-%d", m.nextID), nil
}

func (m *MockPlatform) NotifyUser(ctx context.Context, userID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNotify {
		return fmt.Errorf("user has DMs disabled")
	}
	m.Notified = append(m.Notified, userID)
	return nil
}

func (m *MockPlatform) EnsureRestrictionRole(ctx context.Context, guildID string) (string, error) {
	return "role-restricted", nil
}

func (m *MockPlatform) AssignRole(ctx context.Context, guildID, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AssignedRoles = append(m.AssignedRoles, userID+"/"+roleID)
	return nil
}

func (m *MockPlatform) Moderators(ctx context.Context, guildID string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ModeratorIDs) > limit {
		return m.ModeratorIDs[:limit], nil
	}
	return m.ModeratorIDs, nil
}
