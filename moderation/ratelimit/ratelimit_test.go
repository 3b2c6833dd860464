package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentry-moderation/sentry/moderation"
	"github.com/sentry-moderation/sentry/moderation/countstore"
)

func pinnedStore(t *testing.T) *countstore.MemCountStore {
	t.Helper()
	cs := countstore.NewMemCountStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cs.SetNowFunc(func() time.Time { return now })
	return cs
}

func TestPerMinuteLimit(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := pinnedStore(t)
	l := NewLimiter(nil, cs, nil, Config{PerMinute: 20})

	for i := 0; i < 20; i++ {
		res := l.Check(ctx, "user1", "chan1")
		require.True(t, res.Allowed, "message %d should be allowed", i+1)
	}

	res := l.Check(ctx, "user1", "chan1")
	assert.False(res.Allowed)
	assert.Equal("per-minute limit exceeded", res.Reason)
	assert.Equal(moderation.PenaltyWarning, res.PenaltyLevel)
	assert.False(res.ResetAt.IsZero())

	// a different identity is unaffected
	assert.True(l.Check(ctx, "user2", "chan1").Allowed)
}

func TestBurstLimit(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := pinnedStore(t)
	l := NewLimiter(nil, cs, nil, DefaultConfig())

	for i := 0; i < 5; i++ {
		require.True(t, l.Check(ctx, "user1", "chan1").Allowed)
	}
	res := l.Check(ctx, "user1", "chan1")
	assert.False(res.Allowed)
	assert.Equal("burst limit exceeded", res.Reason)
}

func TestChannelLimitIndependentOfUser(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := pinnedStore(t)
	l := NewLimiter(nil, cs, nil, Config{ChannelPerMinute: 3})

	assert.True(l.Check(ctx, "user1", "busy").Allowed)
	assert.True(l.Check(ctx, "user2", "busy").Allowed)
	assert.True(l.Check(ctx, "user3", "busy").Allowed)

	res := l.Check(ctx, "user4", "busy")
	assert.False(res.Allowed)
	assert.Equal("channel per-minute limit exceeded", res.Reason)
}

func TestNoPartialIncrementsOnRejection(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := pinnedStore(t)
	l := NewLimiter(nil, cs, nil, Config{BurstLimit: 2, PerMinute: 100})

	l.Check(ctx, "user1", "chan1")
	l.Check(ctx, "user1", "chan1")
	l.Check(ctx, "user1", "chan1") // rejected

	c, err := cs.GetCount(ctx, counterMessages, "user1", countstore.PeriodMinute)
	assert.NoError(err)
	assert.Equal(2, c)
}

func TestPenaltyEscalation(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(moderation.PenaltyNone, PenaltyForViolations(0))
	assert.Equal(moderation.PenaltyWarning, PenaltyForViolations(1))
	assert.Equal(moderation.PenaltyWarning, PenaltyForViolations(2))
	assert.Equal(moderation.PenaltyTempMute, PenaltyForViolations(3))
	assert.Equal(moderation.PenaltyTempMute, PenaltyForViolations(5))
	assert.Equal(moderation.PenaltyTempBan, PenaltyForViolations(6))
}

func TestRepeatedViolationsEscalate(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := pinnedStore(t)
	l := NewLimiter(nil, cs, nil, Config{BurstLimit: 1})

	require.True(t, l.Check(ctx, "user1", "chan1").Allowed)

	var last moderation.PenaltyLevel
	for i := 0; i < 6; i++ {
		res := l.Check(ctx, "user1", "chan1")
		require.False(t, res.Allowed)
		last = res.PenaltyLevel
	}
	assert.Equal(moderation.PenaltyTempBan, last)
}

func TestPenaltyFuncInvoked(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := pinnedStore(t)
	l := NewLimiter(nil, cs, nil, Config{BurstLimit: 1})

	var mu sync.Mutex
	var got []moderation.PenaltyLevel
	l.SetPenaltyFunc(func(ctx context.Context, identity, channel string, level moderation.PenaltyLevel) {
		mu.Lock()
		got = append(got, level)
		mu.Unlock()
	})

	l.Check(ctx, "user1", "chan1")
	l.Check(ctx, "user1", "chan1") // violation 1

	mu.Lock()
	defer mu.Unlock()
	assert.Equal([]moderation.PenaltyLevel{moderation.PenaltyWarning}, got)
}

func TestConcurrentChecksNoLostUpdates(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := countstore.NewMemCountStore()
	l := NewLimiter(nil, cs, nil, Config{PerDay: 1000})

	var wg sync.WaitGroup
	allowed := make([]bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			allowed[i] = l.Check(ctx, "user1", "chan1").Allowed
		}(i)
	}
	wg.Wait()

	for _, a := range allowed {
		assert.True(a)
	}
	c, err := cs.GetCount(ctx, counterMessages, "user1", countstore.PeriodDay)
	assert.NoError(err)
	assert.Equal(50, c)
}

func TestSinkReceivesViolations(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := pinnedStore(t)
	sink := &recordingSink{}
	l := NewLimiter(nil, cs, sink, Config{BurstLimit: 1})

	l.Check(ctx, "user1", "chan1")
	l.Check(ctx, "user1", "chan1")

	assert.Eventually(func() bool { return sink.count() == 1 }, time.Second, 10*time.Millisecond)
}

type recordingSink struct {
	mu      sync.Mutex
	records int
}

func (s *recordingSink) Record(ctx context.Context, identity, channel, violationType string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records++
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records
}
