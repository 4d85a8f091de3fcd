package repository

import (
	"context"

	"github.com/amirasaad/splitsync/pkg/domain"
)

// PaymentRepository defines data access for payments.
type PaymentRepository interface {
	Get(ctx context.Context, id string) (*domain.Payment, error)
	Create(ctx context.Context, payment *domain.Payment) error
	Update(ctx context.Context, payment *domain.Payment) error
}

// SplitRepository defines data access for payment splits.
type SplitRepository interface {
	ListByPayment(ctx context.Context, paymentID string) ([]*domain.Split, error)
	Create(ctx context.Context, split *domain.Split) error
	Update(ctx context.Context, split *domain.Split) error
}

// ConversionRepository is append-only: audit rows are never updated.
type ConversionRepository interface {
	Create(ctx context.Context, conversion *domain.CurrencyConversion) error
	ListByPayment(ctx context.Context, paymentID string) ([]*domain.CurrencyConversion, error)
}

// EntityStore is the local persistence boundary used by the sync managers.
type EntityStore[T domain.Syncable] interface {
	// ListUnsynced returns rows that need pushing: SYNC_FAILED first, then
	// the rest, each group ordered by UpdatedAt ascending.
	ListUnsynced(ctx context.Context) ([]T, error)
	// FindByServerID returns domain.ErrNotFound when no local row carries the id.
	FindByServerID(ctx context.Context, serverID string) (T, error)
	// Save inserts or updates the row keyed by its local id.
	Save(ctx context.Context, item T) error
	// Delete physically removes the row.
	Delete(ctx context.Context, localID string) error
}

// IdentityMap translates row identities of one entity type between the
// local store and the server.
type IdentityMap interface {
	// ServerID returns the server id of a local row, or "" when the row has
	// not been pushed yet. It returns domain.ErrNotFound when no row has
	// localID.
	ServerID(ctx context.Context, entityType, localID string) (string, error)
	// LocalID returns domain.ErrNotFound when no local row carries serverID.
	LocalID(ctx context.Context, entityType, serverID string) (string, error)
}
