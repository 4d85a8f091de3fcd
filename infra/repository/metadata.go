package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MetadataStore is the GORM repository.MetadataStore. Update runs its
// read-modify-write in one transaction under a process-wide mutex.
type MetadataStore struct {
	db *gorm.DB
	mu sync.Mutex
}

// NewMetadataStore returns a MetadataStore on db.
func NewMetadataStore(db *gorm.DB) *MetadataStore {
	return &MetadataStore{db: db}
}

func (s *MetadataStore) Get(ctx context.Context, entityType string) (*domain.SyncMetadata, error) {
	var md domain.SyncMetadata
	err := s.db.WithContext(ctx).Where("entity_type = ?", entityType).Take(&md).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return &md, nil
}

func (s *MetadataStore) Update(
	ctx context.Context,
	entityType string,
	fn func(domain.SyncMetadata) domain.SyncMetadata,
) (*domain.SyncMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out domain.SyncMetadata
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var md domain.SyncMetadata
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		err := q.Where("entity_type = ?", entityType).Take(&md).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			md = domain.DefaultMetadata(entityType)
		case err != nil:
			return err
		}

		out = fn(md)
		out.EntityType = entityType
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return &out, nil
}

func (s *MetadataStore) HasSyncedSince(ctx context.Context, entityType string, since int64) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.SyncMetadata{}).
		Where("entity_type = ? AND sync_status = ? AND last_sync_timestamp >= ?",
			entityType, domain.StatusSynced, since).
		Count(&n).Error
	if err != nil {
		return false, MapGormErrorToDomain(err)
	}
	return n > 0, nil
}

func (s *MetadataStore) ListFailed(ctx context.Context) ([]domain.SyncMetadata, error) {
	var out []domain.SyncMetadata
	err := WrapError(func() error {
		return s.db.WithContext(ctx).
			Where("sync_status = ?", domain.StatusSyncFailed).
			Order("entity_type").
			Find(&out).Error
	})
	return out, err
}

func (s *MetadataStore) List(ctx context.Context) ([]domain.SyncMetadata, error) {
	var out []domain.SyncMetadata
	err := WrapError(func() error {
		return s.db.WithContext(ctx).Order("entity_type").Find(&out).Error
	})
	return out, err
}

var _ repository.MetadataStore = (*MetadataStore)(nil)
