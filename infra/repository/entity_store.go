package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Syncable is the pointer constraint of an entity store: P is *E and
// carries the sync bookkeeping.
type Syncable[E any] interface {
	*E
	domain.Syncable
}

// EntityStore is the GORM repository.EntityStore for one entity table.
type EntityStore[E any, P Syncable[E]] struct {
	db *gorm.DB
}

// NewEntityStore returns the store for E's table.
func NewEntityStore[E any, P Syncable[E]](db *gorm.DB) *EntityStore[E, P] {
	return &EntityStore[E, P]{db: db}
}

func (s *EntityStore[E, P]) ListUnsynced(ctx context.Context) ([]P, error) {
	var rows []P
	err := WrapError(func() error {
		return s.db.WithContext(ctx).
			Where("sync_status IN ?", domain.UnsyncedStatuses).
			Order(clause.OrderBy{Expression: clause.Expr{
				SQL:  "CASE WHEN sync_status = ? THEN 0 ELSE 1 END, updated_at, id",
				Vars: []any{domain.StatusSyncFailed},
			}}).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list unsynced: %w", err)
	}
	return rows, nil
}

func (s *EntityStore[E, P]) FindByServerID(ctx context.Context, serverID string) (P, error) {
	var row E
	err := s.db.WithContext(ctx).Where("server_id = ?", serverID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("server id %s: %w", serverID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return &row, nil
}

// Save upserts on the local id, overwriting every column.
func (s *EntityStore[E, P]) Save(ctx context.Context, item P) error {
	return WrapError(func() error {
		return s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(item).Error
	})
}

func (s *EntityStore[E, P]) Delete(ctx context.Context, localID string) error {
	return WrapError(func() error {
		return s.db.WithContext(ctx).Where("id = ?", localID).Delete(new(E)).Error
	})
}

// Get returns a row by local id.
func (s *EntityStore[E, P]) Get(ctx context.Context, localID string) (P, error) {
	var row E
	if err := WrapError(func() error {
		return s.db.WithContext(ctx).Where("id = ?", localID).Take(&row).Error
	}); err != nil {
		return nil, err
	}
	return &row, nil
}

// CountByStatus returns the number of rows per sync status.
func (s *EntityStore[E, P]) CountByStatus(ctx context.Context) (map[domain.SyncStatus]int64, error) {
	var rows []struct {
		SyncStatus domain.SyncStatus
		Count      int64
	}
	err := WrapError(func() error {
		return s.db.WithContext(ctx).Model(new(E)).
			Select("sync_status, count(*) as count").
			Group("sync_status").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	out := make(map[domain.SyncStatus]int64, len(rows))
	for _, r := range rows {
		out[r.SyncStatus] = r.Count
	}
	return out, nil
}

// Typed constructors for the entity tables.

func NewUserStore(db *gorm.DB) *EntityStore[domain.User, *domain.User] {
	return NewEntityStore[domain.User](db)
}

func NewGroupStore(db *gorm.DB) *EntityStore[domain.Group, *domain.Group] {
	return NewEntityStore[domain.Group](db)
}

func NewRequisitionStore(db *gorm.DB) *EntityStore[domain.Requisition, *domain.Requisition] {
	return NewEntityStore[domain.Requisition](db)
}

func NewAccountStore(db *gorm.DB) *EntityStore[domain.Account, *domain.Account] {
	return NewEntityStore[domain.Account](db)
}

func NewTransactionStore(db *gorm.DB) *EntityStore[domain.Transaction, *domain.Transaction] {
	return NewEntityStore[domain.Transaction](db)
}

func NewPaymentStore(db *gorm.DB) *EntityStore[domain.Payment, *domain.Payment] {
	return NewEntityStore[domain.Payment](db)
}

func NewSplitStore(db *gorm.DB) *EntityStore[domain.Split, *domain.Split] {
	return NewEntityStore[domain.Split](db)
}

func NewConversionStore(db *gorm.DB) *EntityStore[domain.CurrencyConversion, *domain.CurrencyConversion] {
	return NewEntityStore[domain.CurrencyConversion](db)
}

var _ repository.EntityStore[*domain.Payment] = (*EntityStore[domain.Payment, *domain.Payment])(nil)
