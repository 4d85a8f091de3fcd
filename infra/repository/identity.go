package repository

import (
	"context"
	"fmt"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/repository"
	"gorm.io/gorm"
)

// IdentityMap looks identities up in the entity tables.
type IdentityMap struct {
	db *gorm.DB
}

// NewIdentityMap returns a repository.IdentityMap over db.
func NewIdentityMap(db *gorm.DB) *IdentityMap {
	return &IdentityMap{db: db}
}

type identityRow struct {
	ID       string
	ServerID *string
}

func (m *IdentityMap) ServerID(ctx context.Context, entityType, localID string) (string, error) {
	row, err := m.find(ctx, entityType, "id = ?", localID)
	if err != nil {
		return "", err
	}
	if row.ServerID == nil {
		return "", nil
	}
	return *row.ServerID, nil
}

func (m *IdentityMap) LocalID(ctx context.Context, entityType, serverID string) (string, error) {
	row, err := m.find(ctx, entityType, "server_id = ?", serverID)
	if err != nil {
		return "", err
	}
	return row.ID, nil
}

func (m *IdentityMap) find(ctx context.Context, entityType, where, value string) (identityRow, error) {
	var rows []identityRow
	if _, known := domain.SyncPriority[entityType]; !known {
		return identityRow{}, fmt.Errorf("%w: unknown entity type %q", domain.ErrValidation, entityType)
	}
	err := WrapError(func() error {
		return m.db.WithContext(ctx).Table(entityType).
			Select("id, server_id").
			Where(where, value).
			Limit(1).
			Scan(&rows).Error
	})
	if err != nil {
		return identityRow{}, err
	}
	if len(rows) == 0 {
		return identityRow{}, fmt.Errorf("%s %s: %w", entityType, value, domain.ErrNotFound)
	}
	return rows[0], nil
}

var _ repository.IdentityMap = (*IdentityMap)(nil)
