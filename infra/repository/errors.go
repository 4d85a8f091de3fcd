package repository

import (
	"errors"
	"fmt"

	"github.com/amirasaad/splitsync/pkg/domain"
	"gorm.io/gorm"
)

// MapGormErrorToDomain converts GORM errors to domain errors, keeping the
// original message. Errors without a mapping are returned unchanged.
func MapGormErrorToDomain(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w", domain.ErrAlreadyExists, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return fmt.Errorf("%w: %w", domain.ErrInvariantViolation, err)
	}
	return err
}

// WrapError runs a GORM operation and maps its error.
//
//	err := WrapError(func() error {
//	    return r.db.WithContext(ctx).Create(p).Error
//	})
func WrapError(op func() error) error {
	return MapGormErrorToDomain(op())
}
