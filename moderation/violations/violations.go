// Package violations records rate-limit and abuse violations for audit.
// Recording is fire-and-forget: failures are logged, never propagated into
// the moderation path.
package violations

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// Sink is the collaborator contract the rate limiter writes through.
type Sink interface {
	Record(ctx context.Context, identity, channel, violationType string, count int) error
}

// Violation is one recorded rejection for a user in a channel.
type Violation struct {
	ID            uint      `gorm:"primaryKey"`
	Identity      string    `gorm:"index;not null"`
	Channel       string    `gorm:"index"`
	ViolationType string    `gorm:"not null"`
	Count         int       `gorm:"not null"`
	CreatedAt     time.Time `gorm:"index"`
}

type GormSink struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

var _ Sink = (*GormSink)(nil)

func NewGormSink(db *gorm.DB, logger *slog.Logger) *GormSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &GormSink{DB: db, Logger: logger}
}

func (s *GormSink) Record(ctx context.Context, identity, channel, violationType string, count int) error {
	row := Violation{
		Identity:      identity,
		Channel:       channel,
		ViolationType: violationType,
		Count:         count,
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		s.Logger.Error("failed to record violation", "err", err, "identity", identity, "type", violationType)
		return err
	}
	return nil
}

// RecentViolations returns violations for an identity since the given cutoff,
// newest first.
func (s *GormSink) RecentViolations(ctx context.Context, identity string, since time.Time) ([]Violation, error) {
	var out []Violation
	err := s.DB.WithContext(ctx).
		Where("identity = ? AND created_at >= ?", identity, since).
		Order("created_at desc").Find(&out).Error
	return out, err
}

// NoopSink discards all records. Used when no database is configured.
type NoopSink struct{}

var _ Sink = NoopSink{}

func (NoopSink) Record(ctx context.Context, identity, channel, violationType string, count int) error {
	return nil
}

// MigrateModels creates or updates the violation table.
func MigrateModels(db *gorm.DB) error {
	return db.AutoMigrate(&Violation{})
}
