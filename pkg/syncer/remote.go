package syncer

import (
	"context"

	"github.com/amirasaad/splitsync/pkg/domain"
)

// ChangeSet is one page of server changes.
type ChangeSet[T domain.Syncable] struct {
	Items []T
	// Deleted holds server ids removed on the server.
	Deleted     []string
	Timestamp   int64
	Etag        string
	NotModified bool
}

// Remote is the server boundary for one entity type. Create must be
// idempotent by the local id so that retries never duplicate rows.
type Remote[T domain.Syncable] interface {
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, item T) (T, error)
	Delete(ctx context.Context, serverID string) error
	Changes(ctx context.Context, strategy Strategy) (*ChangeSet[T], error)
}

// Throttle is the admission check consulted before each pass.
type Throttle interface {
	TryAcquire(key string) bool
}
