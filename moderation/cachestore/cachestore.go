// Package cachestore provides a small TTL'd string cache keyed by a
// namespace and key. The analysis package uses it to hold per-channel
// conversation context windows; values are opaque blobs (typically JSON)
// that expire on their own.
package cachestore

import (
	"context"
)

// CacheStore partitions entries by name so unrelated consumers can share one
// backing. A miss is not an error: Get returns ("", nil).
type CacheStore interface {
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}
