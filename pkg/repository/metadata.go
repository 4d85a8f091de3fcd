package repository

import (
	"context"

	"github.com/amirasaad/splitsync/pkg/domain"
)

// MetadataStore keeps per-entity-type sync bookkeeping. It knows nothing
// about the entities themselves.
type MetadataStore interface {
	// Get returns nil, nil when the entity type has no row yet.
	Get(ctx context.Context, entityType string) (*domain.SyncMetadata, error)
	// Update atomically applies fn to the current row, or to
	// domain.DefaultMetadata when absent, and stores the result.
	Update(
		ctx context.Context,
		entityType string,
		fn func(domain.SyncMetadata) domain.SyncMetadata,
	) (*domain.SyncMetadata, error)
	HasSyncedSince(ctx context.Context, entityType string, since int64) (bool, error)
	ListFailed(ctx context.Context) ([]domain.SyncMetadata, error)
	List(ctx context.Context) ([]domain.SyncMetadata, error)
}
