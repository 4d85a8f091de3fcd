// Package memstore holds in-memory stores for tests.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/repository"
)

// Metadata is an in-memory repository.MetadataStore.
type Metadata struct {
	mu   sync.Mutex
	rows map[string]domain.SyncMetadata
}

// NewMetadata returns an empty Metadata store.
func NewMetadata() *Metadata {
	return &Metadata{rows: make(map[string]domain.SyncMetadata)}
}

func (m *Metadata) Get(_ context.Context, entityType string) (*domain.SyncMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.rows[entityType]
	if !ok {
		return nil, nil
	}
	return &md, nil
}

func (m *Metadata) Update(
	_ context.Context,
	entityType string,
	fn func(domain.SyncMetadata) domain.SyncMetadata,
) (*domain.SyncMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.rows[entityType]
	if !ok {
		md = domain.DefaultMetadata(entityType)
	}
	md = fn(md)
	md.EntityType = entityType
	m.rows[entityType] = md
	return &md, nil
}

func (m *Metadata) HasSyncedSince(ctx context.Context, entityType string, since int64) (bool, error) {
	md, _ := m.Get(ctx, entityType)
	return md != nil && md.SyncStatus == domain.StatusSynced && md.LastSyncTimestamp >= since, nil
}

func (m *Metadata) ListFailed(ctx context.Context) ([]domain.SyncMetadata, error) {
	all, _ := m.List(ctx)
	return slices.DeleteFunc(all, func(md domain.SyncMetadata) bool {
		return md.SyncStatus != domain.StatusSyncFailed
	}), nil
}

func (m *Metadata) List(_ context.Context) ([]domain.SyncMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SyncMetadata, 0, len(m.rows))
	for _, md := range m.rows {
		out = append(out, md)
	}
	slices.SortFunc(out, func(a, b domain.SyncMetadata) int {
		return cmp.Compare(a.EntityType, b.EntityType)
	})
	return out, nil
}

var _ repository.MetadataStore = (*Metadata)(nil)
