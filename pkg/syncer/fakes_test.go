package syncer_test

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/amirasaad/splitsync/pkg/domain"
)

// memStore is an in-memory repository.EntityStore for payments.
type memStore struct {
	mu   sync.Mutex
	rows map[string]*domain.Payment
	// includeSynced makes ListUnsynced also return SYNCED rows, as a
	// candidate source that lists everything touched since the last pass would.
	includeSynced bool
}

func newMemStore(rows ...*domain.Payment) *memStore {
	s := &memStore{rows: make(map[string]*domain.Payment)}
	for _, r := range rows {
		cp := *r
		s.rows[r.ID] = &cp
	}
	return s
}

func (s *memStore) ListUnsynced(_ context.Context) ([]*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Payment
	for _, r := range s.rows {
		if r.SyncStatus.NeedsPush() || (s.includeSynced && r.SyncStatus == domain.StatusSynced) {
			cp := *r
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Payment) int {
		af, bf := a.SyncStatus == domain.StatusSyncFailed, b.SyncStatus == domain.StatusSyncFailed
		if af != bf {
			if af {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(a.UpdatedAt, b.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *memStore) FindByServerID(_ context.Context, serverID string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if id, ok := r.RemoteID(); ok && id == serverID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) Save(_ context.Context, item *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.rows[item.ID] = &cp
	return nil
}

func (s *memStore) Delete(_ context.Context, localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, localID)
	return nil
}

func (s *memStore) get(id string) *domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type denyThrottle struct{}

func (denyThrottle) TryAcquire(string) bool { return false }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func payment(localID string, status domain.SyncStatus, updatedAt int64, serverID string) *domain.Payment {
	p := &domain.Payment{
		SyncRecord: domain.SyncRecord{ID: localID, SyncStatus: status, UpdatedAt: updatedAt},
		Amount:     1000,
		Currency:   "EUR",
		SplitMode:  domain.SplitEqual,
	}
	if serverID != "" {
		p.ServerID = &serverID
	}
	return p
}

func serverPayment(serverID string, updatedAt int64, amount int64) *domain.Payment {
	p := payment("", "", updatedAt, serverID)
	p.Amount = amount
	return p
}

// idMap is a repository.IdentityMap keyed by entity type, then local id.
// An empty server id marks a row that has not been pushed yet.
type idMap map[string]map[string]string

func (m idMap) ServerID(_ context.Context, entityType, localID string) (string, error) {
	serverID, ok := m[entityType][localID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return serverID, nil
}

func (m idMap) LocalID(_ context.Context, entityType, serverID string) (string, error) {
	for localID, s := range m[entityType] {
		if s != "" && s == serverID {
			return localID, nil
		}
	}
	return "", domain.ErrNotFound
}
