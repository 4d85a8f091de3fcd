// Package repository implements the pkg/repository contracts on GORM.
package repository

import (
	"context"

	"github.com/amirasaad/splitsync/pkg/repository"
	"gorm.io/gorm"
)

// UoW provides a transaction boundary and repository access in one
// abstraction. Repositories taken from the UoW passed to Do share its
// transaction.
type UoW struct {
	db *gorm.DB
	tx *gorm.DB
}

// NewUoW creates a new UoW for the given *gorm.DB.
func NewUoW(db *gorm.DB) *UoW {
	return &UoW{db: db}
}

// Do runs fn in a transaction, committing when fn returns nil.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UoW{db: u.db, tx: tx})
	})
}

// session is the transaction inside Do and the plain connection outside.
func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UoW) PaymentRepository() (repository.PaymentRepository, error) {
	return NewPaymentRepository(u.session()), nil
}

func (u *UoW) SplitRepository() (repository.SplitRepository, error) {
	return NewSplitRepository(u.session()), nil
}

func (u *UoW) ConversionRepository() (repository.ConversionRepository, error) {
	return NewConversionRepository(u.session()), nil
}

var _ repository.UnitOfWork = (*UoW)(nil)
