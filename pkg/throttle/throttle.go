// Package throttle provides sliding-window admission control keyed by name.
package throttle

import (
	"sync"
	"time"
)

// Clock returns the current time. Tests inject a fake.
type Clock func() time.Time

// SlidingWindow admits at most maxRequests per key within any window-long
// interval ending now. All keys share one lock.
type SlidingWindow struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	now         Clock
	history     map[string][]time.Time
}

// New creates a SlidingWindow. A nil clock uses time.Now.
func New(maxRequests int, window time.Duration, clock Clock) *SlidingWindow {
	if clock == nil {
		clock = time.Now
	}
	return &SlidingWindow{
		maxRequests: maxRequests,
		window:      window,
		now:         clock,
		history:     make(map[string][]time.Time),
	}
}

// TryAcquire evicts timestamps older than now-window for key and records
// now if fewer than maxRequests remain.
func (s *SlidingWindow) TryAcquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-s.window)
	log := s.history[key]
	kept := log[:0]
	for _, ts := range log {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= s.maxRequests {
		s.history[key] = kept
		return false
	}
	s.history[key] = append(kept, now)
	return true
}

// Remaining reports how many acquisitions key would still be granted now.
func (s *SlidingWindow) Remaining(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.window)
	n := 0
	for _, ts := range s.history[key] {
		if ts.After(cutoff) {
			n++
		}
	}
	return max(s.maxRequests-n, 0)
}

// Reset forgets the history of key.
func (s *SlidingWindow) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, key)
}
