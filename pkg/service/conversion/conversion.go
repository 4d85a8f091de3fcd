// Package conversion changes the currency of a payment and re-splits it in
// one local transaction, then hands the result to the remote side on a
// best-effort basis.
package conversion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/domain/events"
	"github.com/amirasaad/splitsync/pkg/eventbus"
	"github.com/amirasaad/splitsync/pkg/money"
	"github.com/amirasaad/splitsync/pkg/repository"
	"github.com/amirasaad/splitsync/pkg/split"
	"github.com/shopspring/decimal"
)

// Request asks for a payment to be converted. Amount is the payment's
// current total in major units of From and must match the stored row.
type Request struct {
	PaymentID string
	From      string
	To        string
	Amount    decimal.Decimal
	Rate      decimal.Decimal
	Actor     string
	Source    string
}

// Update is the set of rows one conversion wrote.
type Update struct {
	Payment    *domain.Payment
	Splits     []*domain.Split
	Conversion *domain.CurrencyConversion
}

// Propagator pushes a committed conversion to the remote side.
type Propagator interface {
	Propagate(ctx context.Context, u Update) error
}

// Deps are the collaborators of a Service. Propagator and EventBus are optional.
type Deps struct {
	Uow        repository.UnitOfWork
	Calculator *split.Calculator
	Propagator Propagator
	EventBus   eventbus.Bus
	Logger     *slog.Logger
	Now        func() time.Time
}

// Service performs currency conversions.
type Service struct {
	uow        repository.UnitOfWork
	calc       *split.Calculator
	propagator Propagator
	bus        eventbus.Bus
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a new Service with the provided dependencies.
func NewService(deps Deps) *Service {
	s := &Service{
		uow:        deps.Uow,
		calc:       deps.Calculator,
		propagator: deps.Propagator,
		bus:        deps.EventBus,
		logger:     deps.Logger.With("service", "conversion"),
		now:        deps.Now,
	}
	if s.calc == nil {
		s.calc = split.New()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// PerformConversion converts the payment and its splits to req.To and
// stores one audit row. Either all three writes commit or none do. A
// failed propagation is logged and the rows stay PENDING_SYNC.
func (s *Service) PerformConversion(ctx context.Context, req Request) (*domain.CurrencyConversion, error) {
	log := s.logger.With("payment_id", req.PaymentID, "from", req.From, "to", req.To)

	original, err := money.New(req.Amount, req.From)
	if err != nil {
		return nil, fmt.Errorf("%w: amount: %v", domain.ErrValidation, err)
	}
	to, err := money.ParseCurrency(req.To)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if req.From == req.To {
		return nil, fmt.Errorf("%w: payment is already in %s", domain.ErrValidation, req.To)
	}
	converted, err := original.Convert(req.Rate, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	at := s.now()
	var update Update
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		payments, err := uow.PaymentRepository()
		if err != nil {
			return err
		}
		splits, err := uow.SplitRepository()
		if err != nil {
			return err
		}
		conversions, err := uow.ConversionRepository()
		if err != nil {
			return err
		}

		payment, err := payments.Get(ctx, req.PaymentID)
		if err != nil {
			return err
		}
		if payment.Currency != req.From || payment.Amount != original.Amount() {
			return fmt.Errorf("%w: payment is %d %s, request says %s",
				domain.ErrValidation, payment.Amount, payment.Currency, original)
		}
		current, err := splits.ListByPayment(ctx, payment.ID)
		if err != nil {
			return err
		}
		if err := checkSplits(payment, current); err != nil {
			return err
		}

		var resplit []*domain.Split
		if len(current) > 0 {
			resplit, err = s.calc.Calculate(split.Input{
				Mode:     payment.SplitMode,
				Target:   converted.Decimal(),
				Currency: to,
				Splits:   current,
				Actor:    req.Actor,
				At:       at.UnixMilli(),
			})
			if err != nil {
				return err
			}
		}

		record := &domain.CurrencyConversion{
			SyncRecord:       domain.NewSyncRecord(at),
			PaymentID:        payment.ID,
			OriginalCurrency: req.From,
			OriginalAmount:   original.Amount(),
			FinalCurrency:    req.To,
			FinalAmount:      converted.Amount(),
			ExchangeRate:     req.Rate,
			Source:           req.Source,
			Actor:            req.Actor,
			ConvertedAt:      at.UnixMilli(),
		}
		if err := conversions.Create(ctx, record); err != nil {
			return err
		}

		payment.Currency = req.To
		payment.Amount = converted.Amount()
		payment.UpdatedBy = req.Actor
		payment.MarkDirty(at)
		if err := payments.Update(ctx, payment); err != nil {
			return err
		}
		for _, sp := range resplit {
			if err := splits.Update(ctx, sp); err != nil {
				return err
			}
		}

		update = Update{Payment: payment, Splits: resplit, Conversion: record}
		return nil
	})
	if err != nil {
		log.Error("conversion failed", "error", err)
		return nil, err
	}
	log.Info("payment converted",
		"original", original.String(),
		"converted", converted.String(),
		"rate", req.Rate.String(),
		"splits", len(update.Splits),
	)

	propagated := s.propagate(ctx, update, log)
	s.emit(ctx, update.Conversion, propagated, log)
	return update.Conversion, nil
}

// checkSplits refuses to convert a payment whose stored splits are already
// inconsistent with it. A payment without splits is converted alone.
func checkSplits(payment *domain.Payment, splits []*domain.Split) error {
	if len(splits) == 0 {
		return nil
	}
	var sum int64
	for _, sp := range splits {
		if sp.Currency != payment.Currency {
			return fmt.Errorf("%w: split %s is in %s, payment %s is in %s",
				domain.ErrInvariantViolation, sp.ID, sp.Currency, payment.ID, payment.Currency)
		}
		sum += sp.Amount
	}
	if sum != payment.Amount {
		return fmt.Errorf("%w: splits of payment %s sum to %d, payment amount is %d",
			domain.ErrInvariantViolation, payment.ID, sum, payment.Amount)
	}
	return nil
}

func (s *Service) propagate(ctx context.Context, u Update, log *slog.Logger) bool {
	if s.propagator == nil {
		return false
	}
	if err := s.propagator.Propagate(ctx, u); err != nil {
		log.Warn("remote propagation failed, leaving rows for sync", "error", err)
		return false
	}
	return true
}

func (s *Service) emit(ctx context.Context, c *domain.CurrencyConversion, propagated bool, log *slog.Logger) {
	if s.bus == nil {
		return
	}
	err := s.bus.Emit(ctx, events.PaymentCurrencyConverted{
		EventID:      events.NewEventID(),
		ConversionID: c.ID,
		PaymentID:    c.PaymentID,
		FromCurrency: c.OriginalCurrency,
		FromAmount:   c.OriginalAmount,
		ToCurrency:   c.FinalCurrency,
		ToAmount:     c.FinalAmount,
		Rate:         c.ExchangeRate.String(),
		Actor:        c.Actor,
		Propagated:   propagated,
		Timestamp:    c.ConvertedAt,
	})
	if err != nil {
		log.Warn("failed to emit conversion event", "error", err)
	}
}
