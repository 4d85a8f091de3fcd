package kvstore

import (
	"context"
	"sync"
	"time"

	"github.com/amirasaad/splitsync/pkg/kvstore"
)

// MemoryStore implements kvstore.Store using in-memory storage
type MemoryStore struct {
	entries map[string]entry
	mu      sync.RWMutex
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewMemoryStore creates a new in-memory store. Call Close to stop the
// background cleanup.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go s.cleanup(5 * time.Minute)
	return s
}

// Get retrieves a value
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || e.expired(s.now()) {
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set stores a value with an optional TTL
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

// Delete removes a value
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Clear removes everything
func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

// cleanup removes expired entries
func (s *MemoryStore) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for key, e := range s.entries {
				if e.expired(now) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

var _ kvstore.Store = (*MemoryStore)(nil)
