package repository

import (
	"context"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/repository"
	"gorm.io/gorm"
)

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository returns a PaymentRepository bound to db.
func NewPaymentRepository(db *gorm.DB) repository.PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*domain.Payment, error) {
	var p domain.Payment
	if err := WrapError(func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	}); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(p).Error
	})
}

func (r *paymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	return updateRow(ctx, r.db, p, p.ID)
}

type splitRepository struct {
	db *gorm.DB
}

// NewSplitRepository returns a SplitRepository bound to db.
func NewSplitRepository(db *gorm.DB) repository.SplitRepository {
	return &splitRepository{db: db}
}

func (r *splitRepository) ListByPayment(ctx context.Context, paymentID string) ([]*domain.Split, error) {
	var splits []*domain.Split
	err := WrapError(func() error {
		return r.db.WithContext(ctx).
			Where("payment_id = ? AND sync_status <> ?", paymentID, domain.StatusLocallyDeleted).
			Order("participant_id, id").
			Find(&splits).Error
	})
	return splits, err
}

func (r *splitRepository) Create(ctx context.Context, s *domain.Split) error {
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(s).Error
	})
}

func (r *splitRepository) Update(ctx context.Context, s *domain.Split) error {
	return updateRow(ctx, r.db, s, s.ID)
}

type conversionRepository struct {
	db *gorm.DB
}

// NewConversionRepository returns an append-only ConversionRepository.
func NewConversionRepository(db *gorm.DB) repository.ConversionRepository {
	return &conversionRepository{db: db}
}

func (r *conversionRepository) Create(ctx context.Context, c *domain.CurrencyConversion) error {
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(c).Error
	})
}

func (r *conversionRepository) ListByPayment(
	ctx context.Context,
	paymentID string,
) ([]*domain.CurrencyConversion, error) {
	var out []*domain.CurrencyConversion
	err := WrapError(func() error {
		return r.db.WithContext(ctx).
			Where("payment_id = ?", paymentID).
			Order("converted_at, id").
			Find(&out).Error
	})
	return out, err
}

// updateRow writes every column of an existing row and reports
// domain.ErrNotFound when no row has the id.
func updateRow(ctx context.Context, db *gorm.DB, row any, id string) error {
	res := db.WithContext(ctx).Model(row).Where("id = ?", id).Select("*").Updates(row)
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return MapGormErrorToDomain(gorm.ErrRecordNotFound)
	}
	return nil
}
