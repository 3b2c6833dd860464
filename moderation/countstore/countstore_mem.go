package countstore

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemCountStore keeps counters in-process. Access is serialized with a single
// mutex; counter reads and increments are cheap map operations so contention
// stays low even with many concurrent pipeline invocations.
type MemCountStore struct {
	mu             sync.Mutex
	counts         map[string]int
	distinctCounts map[string]map[string]bool
	lastTouch      map[string]time.Time

	// overridable in tests
	nowFunc func() time.Time
}

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		counts:         make(map[string]int),
		distinctCounts: make(map[string]map[string]bool),
		lastTouch:      make(map[string]time.Time),
		nowFunc:        time.Now,
	}
}

// SetNowFunc overrides the clock, for window-rollover tests.
func (s *MemCountStore) SetNowFunc(f func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFunc = f
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[periodBucket(name, val, period, s.nowFunc())], nil
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string, periods ...string) error {
	if len(periods) == 0 {
		periods = AllPeriods
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	for _, p := range periods {
		k := periodBucket(name, val, p, now)
		s.counts[k]++
		s.lastTouch[k] = now
	}
	return nil
}

func (s *MemCountStore) GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.distinctCounts[periodBucket(name, bucket, period, s.nowFunc())]), nil
}

func (s *MemCountStore) IncrementDistinct(ctx context.Context, name, bucket, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	for _, p := range AllPeriods {
		k := periodBucket(name, bucket, p, now)
		m, ok := s.distinctCounts[k]
		if !ok {
			m = make(map[string]bool)
			s.distinctCounts[k] = m
		}
		m[val] = true
		s.lastTouch[k] = now
	}
	return nil
}

// Sweep drops any counter under the given name prefix that has not been
// touched within maxIdle. An empty prefix sweeps every counter.
func (s *MemCountStore) Sweep(ctx context.Context, prefix string, maxIdle time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	evicted := 0
	for k, touched := range s.lastTouch {
		if !strings.HasPrefix(k, prefix+"/") && prefix != "" {
			continue
		}
		if now.Sub(touched) > maxIdle {
			delete(s.counts, k)
			delete(s.distinctCounts, k)
			delete(s.lastTouch, k)
			evicted++
		}
	}
	return evicted, nil
}
