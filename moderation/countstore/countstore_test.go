package countstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemCountStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cs := NewMemCountStore()

	c, err := cs.GetCount(ctx, "test1", "val1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)

	assert.NoError(cs.Increment(ctx, "test1", "val1"))
	assert.NoError(cs.Increment(ctx, "test1", "val1"))
	for _, p := range AllPeriods {
		c, err = cs.GetCount(ctx, "test1", "val1", p)
		assert.NoError(err)
		assert.Equal(2, c)
	}

	// single-period increments leave other windows untouched
	assert.NoError(cs.Increment(ctx, "test2", "val1", PeriodMinute))
	c, err = cs.GetCount(ctx, "test2", "val1", PeriodMinute)
	assert.NoError(err)
	assert.Equal(1, c)
	c, err = cs.GetCount(ctx, "test2", "val1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
}

func TestMemCountStoreDistinct(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cs := NewMemCountStore()

	assert.NoError(cs.IncrementDistinct(ctx, "test1", "bucket1", "one"))
	assert.NoError(cs.IncrementDistinct(ctx, "test1", "bucket1", "one"))
	assert.NoError(cs.IncrementDistinct(ctx, "test1", "bucket1", "two"))

	c, err := cs.GetCountDistinct(ctx, "test1", "bucket1", PeriodHour)
	assert.NoError(err)
	assert.Equal(2, c)
}

func TestMemCountStoreWindowRollover(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cs := NewMemCountStore()

	now := time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC)
	cs.SetNowFunc(func() time.Time { return now })

	assert.NoError(cs.Increment(ctx, "msgs", "user1"))
	c, _ := cs.GetCount(ctx, "msgs", "user1", PeriodBurst)
	assert.Equal(1, c)

	// the burst window rolls over; minute and hour windows do not
	now = now.Add(BurstWindow)
	c, _ = cs.GetCount(ctx, "msgs", "user1", PeriodBurst)
	assert.Equal(0, c)
	c, _ = cs.GetCount(ctx, "msgs", "user1", PeriodMinute)
	assert.Equal(1, c)

	// one minute later the minute window has also reset
	now = now.Add(time.Minute)
	c, _ = cs.GetCount(ctx, "msgs", "user1", PeriodMinute)
	assert.Equal(0, c)
	c, _ = cs.GetCount(ctx, "msgs", "user1", PeriodHour)
	assert.Equal(1, c)
	c, _ = cs.GetCount(ctx, "msgs", "user1", PeriodTotal)
	assert.Equal(1, c)
}

func TestMemCountStoreSweep(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cs := NewMemCountStore()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cs.SetNowFunc(func() time.Time { return now })

	assert.NoError(cs.Increment(ctx, "msgs", "idle-user"))
	now = now.Add(30 * time.Minute)
	assert.NoError(cs.Increment(ctx, "msgs", "active-user"))

	evicted, err := cs.Sweep(ctx, "msgs", 10*time.Minute)
	assert.NoError(err)
	assert.Equal(len(AllPeriods), evicted)

	c, _ := cs.GetCount(ctx, "msgs", "idle-user", PeriodTotal)
	assert.Equal(0, c)
	c, _ = cs.GetCount(ctx, "msgs", "active-user", PeriodTotal)
	assert.Equal(1, c)
}

func TestPeriodResetAt(t *testing.T) {
	assert := assert.New(t)

	now := time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)
	assert.Equal(time.Date(2024, 5, 1, 12, 31, 0, 0, time.UTC), PeriodResetAt(PeriodMinute, now))
	assert.Equal(time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC), PeriodResetAt(PeriodHour, now))
	assert.Equal(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), PeriodResetAt(PeriodDay, now))
	assert.True(PeriodResetAt(PeriodBurst, now).After(now))
}
