package repository

import (
	"context"
)

// UnitOfWork defines the contract for transactional work and repository access.
//
// Repositories obtained from the UnitOfWork passed to fn share the
// transaction, so everything written inside fn commits or rolls back together.
type UnitOfWork interface {
	// Do executes fn within a transaction boundary.
	// If fn returns an error, the transaction is rolled back.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	PaymentRepository() (PaymentRepository, error)
	SplitRepository() (SplitRepository, error)
	ConversionRepository() (ConversionRepository, error)
}
