package memstore

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/repository"
)

// UnitOfWork is an in-memory repository.UnitOfWork. Do snapshots every
// table and restores the snapshot when fn fails, so tests can observe
// rollbacks.
type UnitOfWork struct {
	mu          *sync.Mutex
	payments    map[string]domain.Payment
	splits      map[string]domain.Split
	conversions map[string]domain.CurrencyConversion

	// FailSplitUpdate makes SplitRepository.Update fail when set.
	FailSplitUpdate error
}

// NewUnitOfWork returns an empty UnitOfWork.
func NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{
		mu:          &sync.Mutex{},
		payments:    make(map[string]domain.Payment),
		splits:      make(map[string]domain.Split),
		conversions: make(map[string]domain.CurrencyConversion),
	}
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(repository.UnitOfWork) error) error {
	u.mu.Lock()
	payments, splits, conversions := maps.Clone(u.payments), maps.Clone(u.splits), maps.Clone(u.conversions)
	u.mu.Unlock()

	if err := fn(u); err != nil {
		u.mu.Lock()
		u.payments, u.splits, u.conversions = payments, splits, conversions
		u.mu.Unlock()
		return err
	}
	return nil
}

func (u *UnitOfWork) PaymentRepository() (repository.PaymentRepository, error) {
	return paymentRepo{u}, nil
}

func (u *UnitOfWork) SplitRepository() (repository.SplitRepository, error) {
	return splitRepo{u}, nil
}

func (u *UnitOfWork) ConversionRepository() (repository.ConversionRepository, error) {
	return conversionRepo{u}, nil
}

// Payment returns a copy of the stored payment.
func (u *UnitOfWork) Payment(id string) (domain.Payment, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.payments[id]
	return p, ok
}

// Splits returns copies of the stored splits of a payment ordered by participant.
func (u *UnitOfWork) Splits(paymentID string) []domain.Split {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []domain.Split
	for _, s := range u.splits {
		if s.PaymentID == paymentID {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b domain.Split) int { return cmp.Compare(a.ParticipantID, b.ParticipantID) })
	return out
}

// Conversions returns the stored audit rows.
func (u *UnitOfWork) Conversions() []domain.CurrencyConversion {
	u.mu.Lock()
	defer u.mu.Unlock()
	return slices.Collect(maps.Values(u.conversions))
}

type paymentRepo struct{ u *UnitOfWork }

func (r paymentRepo) Get(_ context.Context, id string) (*domain.Payment, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	p, ok := r.u.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

func (r paymentRepo) Create(_ context.Context, p *domain.Payment) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if _, ok := r.u.payments[p.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.u.payments[p.ID] = *p
	return nil
}

func (r paymentRepo) Update(_ context.Context, p *domain.Payment) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if _, ok := r.u.payments[p.ID]; !ok {
		return domain.ErrNotFound
	}
	r.u.payments[p.ID] = *p
	return nil
}

type splitRepo struct{ u *UnitOfWork }

func (r splitRepo) ListByPayment(_ context.Context, paymentID string) ([]*domain.Split, error) {
	var out []*domain.Split
	for _, s := range r.u.Splits(paymentID) {
		out = append(out, &s)
	}
	return out, nil
}

func (r splitRepo) Create(_ context.Context, s *domain.Split) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.splits[s.ID] = *s
	return nil
}

func (r splitRepo) Update(_ context.Context, s *domain.Split) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if r.u.FailSplitUpdate != nil {
		return r.u.FailSplitUpdate
	}
	if _, ok := r.u.splits[s.ID]; !ok {
		return domain.ErrNotFound
	}
	r.u.splits[s.ID] = *s
	return nil
}

type conversionRepo struct{ u *UnitOfWork }

func (r conversionRepo) Create(_ context.Context, c *domain.CurrencyConversion) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.conversions[c.ID] = *c
	return nil
}

func (r conversionRepo) ListByPayment(_ context.Context, paymentID string) ([]*domain.CurrencyConversion, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	var out []*domain.CurrencyConversion
	for _, c := range r.u.conversions {
		if c.PaymentID == paymentID {
			out = append(out, &c)
		}
	}
	return out, nil
}

var _ repository.UnitOfWork = (*UnitOfWork)(nil)
