package ratelimit

import (
	"sync"
	"time"
)

// sweepThreshold is the number of tracked identities above which counters
// from past windows are dropped.
const sweepThreshold = 10000

// localStore provides in-process fixed window counters used by FailLocal.
// Counts are per process, so a fleet of N pods admits up to N*Max.
type localStore struct {
	mu      sync.Mutex
	windows map[string]*windowCounter
}

type windowCounter struct {
	windowStart time.Time
	used        int64
}

func newLocalStore() *localStore {
	return &localStore{windows: make(map[string]*windowCounter)}
}

// allow evaluates a fixed window counter for identity.
func (s *localStore) allow(identity string, limit int64, window time.Duration, now time.Time) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	windowStart := now.Truncate(window)
	if len(s.windows) > sweepThreshold {
		s.sweep(windowStart)
	}

	counter := s.windows[identity]
	if counter == nil {
		counter = &windowCounter{windowStart: windowStart}
		s.windows[identity] = counter
	}
	if !counter.windowStart.Equal(windowStart) {
		counter.windowStart = windowStart
		counter.used = 0
	}

	allowed := counter.used < limit
	if allowed {
		counter.used++
	}
	resetAfter := windowStart.Add(window).Sub(now)
	if resetAfter < 0 {
		resetAfter = 0
	}
	d := Decision{
		Allowed:    allowed,
		Limit:      limit,
		Remaining:  max(limit-counter.used, 0),
		ResetAfter: resetAfter,
	}
	if !allowed {
		d.RetryAfter = resetAfter
	}
	return d
}

func (s *localStore) sweep(current time.Time) {
	for id, c := range s.windows {
		if c.windowStart.Before(current) {
			delete(s.windows, id)
		}
	}
}
