// Package ratelimit implements per-identity and per-channel abuse-rate
// tracking with escalating penalties. Counters live in a countstore, so a
// redis backing shares state across instances.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/sentry-moderation/sentry/moderation"
	"github.com/sentry-moderation/sentry/moderation/countstore"
	"github.com/sentry-moderation/sentry/moderation/violations"
)

const (
	counterMessages    = "msgs"
	counterChannelMsgs = "chanmsgs"
	counterViolations  = "violations"
	violationTypeRate  = "rate_limit"
)

type Config struct {
	BurstLimit          int // per 10s burst window
	PerMinute           int
	PerHour             int
	PerDay              int
	ChannelPerMinute    int
	UserIdleEviction    time.Duration
	ChannelIdleEviction time.Duration
}

func DefaultConfig() Config {
	return Config{
		BurstLimit:          5,
		PerMinute:           20,
		PerHour:             300,
		PerDay:              2000,
		ChannelPerMinute:    120,
		UserIdleEviction:    24 * time.Hour,
		ChannelIdleEviction: time.Hour,
	}
}

// Result reports the outcome of a rate-limit check.
type Result struct {
	Allowed      bool
	Reason       string
	ResetAt      time.Time
	PenaltyLevel moderation.PenaltyLevel
}

// PenaltyFunc is called (synchronously) when a rejection derives a non-none
// penalty level, so the executor can apply it.
type PenaltyFunc func(ctx context.Context, identity, channel string, level moderation.PenaltyLevel)

type Limiter struct {
	logger  *slog.Logger
	counts  countstore.CountStore
	sink    violations.Sink
	penalty PenaltyFunc
	cfg     Config
	locks   keyedMutex
}

func NewLimiter(logger *slog.Logger, counts countstore.CountStore, sink violations.Sink, cfg Config) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = violations.NoopSink{}
	}
	return &Limiter{
		logger: logger,
		counts: counts,
		sink:   sink,
		cfg:    cfg,
	}
}

// SetPenaltyFunc wires the executor callback. Optional; without it penalties
// are derived and reported but not applied.
func (l *Limiter) SetPenaltyFunc(f PenaltyFunc) {
	l.penalty = f
}

type window struct {
	reason string
	period string
	limit  int
	name   string
	val    string
}

// Check probes each window in order from shortest (cheapest) to longest, then
// the per-channel window. Counters increment together only when every window
// passes; a rejection increments the identity's violation counter instead.
// Internal errors fail open: the message is allowed and the error is logged.
func (l *Limiter) Check(ctx context.Context, identity, channel string) Result {
	// serialize check-then-increment per identity to avoid double-counting
	// under concurrent messages from the same user
	unlock := l.locks.lock(identity)
	defer unlock()

	windows := []window{
		{"burst limit exceeded", countstore.PeriodBurst, l.cfg.BurstLimit, counterMessages, identity},
		{"per-minute limit exceeded", countstore.PeriodMinute, l.cfg.PerMinute, counterMessages, identity},
		{"per-hour limit exceeded", countstore.PeriodHour, l.cfg.PerHour, counterMessages, identity},
		{"per-day limit exceeded", countstore.PeriodDay, l.cfg.PerDay, counterMessages, identity},
		{"channel per-minute limit exceeded", countstore.PeriodMinute, l.cfg.ChannelPerMinute, counterChannelMsgs, channel},
	}

	for _, w := range windows {
		if w.limit <= 0 {
			continue
		}
		count, err := l.counts.GetCount(ctx, w.name, w.val, w.period)
		if err != nil {
			l.logger.Error("rate limit counter read failed, failing open", "err", err, "identity", identity)
			checkCount.WithLabelValues("error").Inc()
			return Result{Allowed: true, PenaltyLevel: moderation.PenaltyNone}
		}
		if count >= w.limit {
			return l.reject(ctx, identity, channel, w)
		}
	}

	// all windows passed: increment everything together
	if err := l.counts.Increment(ctx, counterMessages, identity); err != nil {
		l.logger.Error("rate limit counter increment failed", "err", err, "identity", identity)
	}
	if err := l.counts.Increment(ctx, counterChannelMsgs, channel, countstore.PeriodMinute); err != nil {
		l.logger.Error("channel counter increment failed", "err", err, "channel", channel)
	}
	checkCount.WithLabelValues("allowed").Inc()
	return Result{Allowed: true, PenaltyLevel: moderation.PenaltyNone}
}

func (l *Limiter) reject(ctx context.Context, identity, channel string, w window) Result {
	checkCount.WithLabelValues("rejected").Inc()

	if err := l.counts.Increment(ctx, counterViolations, identity, countstore.PeriodTotal); err != nil {
		l.logger.Error("violation counter increment failed, failing open", "err", err, "identity", identity)
		return Result{Allowed: true, PenaltyLevel: moderation.PenaltyNone}
	}
	count, err := l.counts.GetCount(ctx, counterViolations, identity, countstore.PeriodTotal)
	if err != nil {
		l.logger.Error("violation counter read failed, failing open", "err", err, "identity", identity)
		return Result{Allowed: true, PenaltyLevel: moderation.PenaltyNone}
	}

	level := PenaltyForViolations(count)
	res := Result{
		Allowed:      false,
		Reason:       w.reason,
		ResetAt:      countstore.PeriodResetAt(w.period, time.Now()),
		PenaltyLevel: level,
	}
	l.logger.Warn("rate limit violation", "identity", identity, "channel", channel,
		"reason", w.reason, "violations", count, "penalty", level)
	violationCount.WithLabelValues(string(level)).Inc()

	// fire-and-forget persistence; failures are the sink's problem to log
	go func() {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.sink.Record(rctx, identity, channel, violationTypeRate, count)
	}()

	if l.penalty != nil && level != moderation.PenaltyNone {
		l.penalty(ctx, identity, channel, level)
	}
	return res
}

// PenaltyForViolations derives the escalating penalty tier from the
// accumulated violation count: 0 none, 1-2 warning, 3-5 temp_mute, >5
// temp_ban.
func PenaltyForViolations(count int) moderation.PenaltyLevel {
	switch {
	case count <= 0:
		return moderation.PenaltyNone
	case count <= 2:
		return moderation.PenaltyWarning
	case count <= 5:
		return moderation.PenaltyTempMute
	default:
		return moderation.PenaltyTempBan
	}
}

// RunSweeper evicts idle rate-limit state on a fixed interval until the
// context is cancelled. It never holds the limiter's per-key locks.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			users, err := l.counts.Sweep(ctx, counterMessages, l.cfg.UserIdleEviction)
			if err != nil {
				l.logger.Error("rate limit sweep failed", "err", err)
				continue
			}
			channels, err := l.counts.Sweep(ctx, counterChannelMsgs, l.cfg.ChannelIdleEviction)
			if err != nil {
				l.logger.Error("channel sweep failed", "err", err)
				continue
			}
			if users+channels > 0 {
				l.logger.Debug("swept idle rate limit state", "users", users, "channels", channels)
			}
		}
	}
}
