package ratelimit

import "sync"

// keyedMutex serializes access per key. Locks are striped over a fixed number
// of shards so the map never grows with the number of identities.
type keyedMutex struct {
	shards [64]sync.Mutex
}

func (km *keyedMutex) lock(key string) func() {
	// FNV-1a
	var h uint32 = 2166136261
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= 16777619
	}
	m := &km.shards[h%uint32(len(km.shards))]
	m.Lock()
	return m.Unlock
}
