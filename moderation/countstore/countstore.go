package countstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	PeriodTotal  = "total"
	PeriodDay    = "day"
	PeriodHour   = "hour"
	PeriodMinute = "minute"
	PeriodBurst  = "burst"
)

// AllPeriods is the default set incremented when no explicit periods are given.
var AllPeriods = []string{PeriodTotal, PeriodDay, PeriodHour, PeriodMinute, PeriodBurst}

// BurstWindow is the length of the short rolling interval used to catch
// rapid-fire message bursts.
const BurstWindow = 10 * time.Second

type CountStore interface {
	GetCount(ctx context.Context, name, val, period string) (int, error)
	// Increment bumps the counter for the given periods, or all periods when
	// none are specified.
	Increment(ctx context.Context, name, val string, periods ...string) error
	GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error)
	IncrementDistinct(ctx context.Context, name, bucket, val string) error
	// Sweep evicts entries idle for longer than maxIdle whose key starts with
	// prefix. Backings with native TTLs may treat this as a no-op.
	Sweep(ctx context.Context, prefix string, maxIdle time.Duration) (int, error)
}

func periodBucket(name, val, period string, now time.Time) string {
	now = now.UTC()
	switch period {
	case PeriodTotal:
		return fmt.Sprintf("%s/%s", name, val)
	case PeriodDay:
		return fmt.Sprintf("%s/%s/%s", name, val, now.Format(time.DateOnly))
	case PeriodHour:
		return fmt.Sprintf("%s/%s/%s", name, val, now.Format(time.RFC3339)[0:13])
	case PeriodMinute:
		return fmt.Sprintf("%s/%s/%s", name, val, now.Format(time.RFC3339)[0:16])
	case PeriodBurst:
		return fmt.Sprintf("%s/%s/%s", name, val, now.Truncate(BurstWindow).Format(time.RFC3339))
	default:
		slog.Warn("unhandled counter period", "period", period)
		return fmt.Sprintf("%s/%s", name, val)
	}
}

// PeriodResetAt returns the instant the fixed window containing now rolls over.
func PeriodResetAt(period string, now time.Time) time.Time {
	now = now.UTC()
	switch period {
	case PeriodDay:
		return now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	case PeriodHour:
		return now.Truncate(time.Hour).Add(time.Hour)
	case PeriodMinute:
		return now.Truncate(time.Minute).Add(time.Minute)
	case PeriodBurst:
		return now.Truncate(BurstWindow).Add(BurstWindow)
	default:
		return now
	}
}
