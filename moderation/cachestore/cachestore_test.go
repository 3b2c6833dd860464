package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemCacheStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cs := NewMemCacheStore(10, time.Hour)

	v, err := cs.Get(ctx, "test1", "missing")
	assert.NoError(err)
	assert.Equal("", v)

	assert.NoError(cs.Set(ctx, "test1", "key1", "value1"))
	v, err = cs.Get(ctx, "test1", "key1")
	assert.NoError(err)
	assert.Equal("value1", v)

	// names partition the keyspace
	v, err = cs.Get(ctx, "test2", "key1")
	assert.NoError(err)
	assert.Equal("", v)

	assert.NoError(cs.Purge(ctx, "test1", "key1"))
	v, err = cs.Get(ctx, "test1", "key1")
	assert.NoError(err)
	assert.Equal("", v)
}

func TestMemCacheStoreEviction(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cs := NewMemCacheStore(2, time.Hour)

	assert.NoError(cs.Set(ctx, "t", "a", "1"))
	assert.NoError(cs.Set(ctx, "t", "b", "2"))
	assert.NoError(cs.Set(ctx, "t", "c", "3"))

	// capacity 2: the oldest entry is gone
	v, err := cs.Get(ctx, "t", "a")
	assert.NoError(err)
	assert.Equal("", v)
	v, err = cs.Get(ctx, "t", "c")
	assert.NoError(err)
	assert.Equal("3", v)
}

func TestKeySchemes(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("context/chan-1", memCacheKey("context", "chan-1"))
	// redis keys carry a service prefix so a shared redis stays navigable
	assert.Equal("sentry/cache/context/chan-1", redisCacheKey("context", "chan-1"))
}
