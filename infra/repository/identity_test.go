package repository_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/amirasaad/splitsync/infra/repository"
	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/service/conversion"
	"github.com/amirasaad/splitsync/pkg/syncer"
	"github.com/shopspring/decimal"
)

// changesOnly serves a fixed change set and accepts nothing else.
type changesOnly[T domain.Syncable] struct {
	items []T
}

func (r changesOnly[T]) Create(_ context.Context, item T) (T, error) { return item, nil }
func (r changesOnly[T]) Update(_ context.Context, item T) (T, error) { return item, nil }
func (r changesOnly[T]) Delete(context.Context, string) error        { return nil }

func (r changesOnly[T]) Changes(context.Context, syncer.Strategy) (*syncer.ChangeSet[T], error) {
	return &syncer.ChangeSet[T]{Items: r.items, Timestamp: 5000}, nil
}

func withServerID[T interface{ AssignServerID(string) error }](item T, id string) T {
	if err := item.AssignServerID(id); err != nil {
		panic(err)
	}
	return item
}

func (s *StoreSuite) TestIdentityMap() {
	ids := repository.NewIdentityMap(s.db)
	store := repository.NewPaymentStore(s.db)
	pushed := payment("p-1", domain.StatusSynced, 1)
	s.Require().NoError(pushed.AssignServerID("srv-1"))
	s.Require().NoError(store.Save(s.ctx, pushed))
	s.Require().NoError(store.Save(s.ctx, payment("p-2", domain.StatusPendingSync, 1)))

	serverID, err := ids.ServerID(s.ctx, domain.EntityPayments, "p-1")
	s.Require().NoError(err)
	s.Equal("srv-1", serverID)

	serverID, err = ids.ServerID(s.ctx, domain.EntityPayments, "p-2")
	s.Require().NoError(err)
	s.Empty(serverID, "not pushed yet")

	_, err = ids.ServerID(s.ctx, domain.EntityPayments, "missing")
	s.ErrorIs(err, domain.ErrNotFound)

	localID, err := ids.LocalID(s.ctx, domain.EntityPayments, "srv-1")
	s.Require().NoError(err)
	s.Equal("p-1", localID)

	_, err = ids.LocalID(s.ctx, domain.EntityPayments, "srv-missing")
	s.ErrorIs(err, domain.ErrNotFound)

	_, err = ids.LocalID(s.ctx, "ledgers", "srv-1")
	s.ErrorIs(err, domain.ErrValidation)
}

func (s *StoreSuite) TestPulledPaymentConvertsWithItsSplits() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ids := repository.NewIdentityMap(s.db)
	metadata := repository.NewMetadataStore(s.db)

	srvPayment := withServerID(&domain.Payment{
		SyncRecord: domain.SyncRecord{UpdatedAt: 1000},
		Amount:     10000,
		Currency:   "EUR",
		SplitMode:  domain.SplitEqual,
	}, "srv-p")
	srvSplits := []*domain.Split{
		withServerID(&domain.Split{SyncRecord: domain.SyncRecord{UpdatedAt: 1000},
			PaymentID: "srv-p", ParticipantID: "u-1", Amount: 5000, Currency: "EUR"}, "srv-s1"),
		withServerID(&domain.Split{SyncRecord: domain.SyncRecord{UpdatedAt: 1000},
			PaymentID: "srv-p", ParticipantID: "u-2", Amount: 5000, Currency: "EUR"}, "srv-s2"),
	}

	payments := syncer.NewManager(domain.EntityPayments, 0, syncer.Deps[*domain.Payment]{
		Local:    repository.NewPaymentStore(s.db),
		Remote:   changesOnly[*domain.Payment]{items: []*domain.Payment{srvPayment}},
		Metadata: metadata,
		IDs:      ids,
		Logger:   logger,
	})
	splits := syncer.NewManager(domain.EntitySplits, 0, syncer.Deps[*domain.Split]{
		Local:    repository.NewSplitStore(s.db),
		Remote:   changesOnly[*domain.Split]{items: srvSplits},
		Metadata: metadata,
		IDs:      ids,
		Logger:   logger,
	})
	s.Require().IsType(syncer.Success{}, payments.PerformSync(s.ctx, true))
	s.Require().IsType(syncer.Success{}, splits.PerformSync(s.ctx, true))

	local, err := repository.NewPaymentStore(s.db).FindByServerID(s.ctx, "srv-p")
	s.Require().NoError(err)
	s.NotEqual("srv-p", local.ID)

	svc := conversion.NewService(conversion.Deps{Uow: repository.NewUoW(s.db), Logger: logger})
	_, err = svc.PerformConversion(s.ctx, conversion.Request{
		PaymentID: local.ID,
		From:      "EUR",
		To:        "USD",
		Amount:    decimal.RequireFromString("100.00"),
		Rate:      decimal.RequireFromString("1.17"),
		Actor:     "alice",
	})
	s.Require().NoError(err)

	rows, err := repository.NewSplitRepository(s.db).ListByPayment(s.ctx, local.ID)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	var sum int64
	for _, r := range rows {
		s.Equal("USD", r.Currency)
		sum += r.Amount
	}
	s.Equal(int64(11700), sum)
}
