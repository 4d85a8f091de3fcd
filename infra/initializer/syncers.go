package initializer

import (
	"log/slog"

	"github.com/amirasaad/splitsync/infra/remote"
	infra_repository "github.com/amirasaad/splitsync/infra/repository"
	"github.com/amirasaad/splitsync/pkg/config"
	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/orchestrator"
	"github.com/amirasaad/splitsync/pkg/repository"
	"github.com/amirasaad/splitsync/pkg/syncer"
	"gorm.io/gorm"
)

// shared are the collaborators every entity manager gets.
type shared struct {
	cfg      *config.App
	metadata repository.MetadataStore
	ids      repository.IdentityMap
	throttle syncer.Throttle
	logger   *slog.Logger
}

func newSyncer[T domain.Syncable](
	s shared,
	entityType string,
	local repository.EntityStore[T],
	rem syncer.Remote[T],
	resolver syncer.ConflictResolver[T],
) orchestrator.EntitySyncer {
	deps := syncer.Deps[T]{
		Local:    local,
		Remote:   rem,
		Metadata: s.metadata,
		Throttle: s.throttle,
		Resolver: resolver,
		IDs:      s.ids,
		Logger:   s.logger,
	}
	if !s.cfg.Sync.Batched {
		return syncer.NewManager(entityType, s.cfg.Sync.Interval, deps)
	}
	return syncer.NewBatchedManager(entityType, s.cfg.Sync.Interval, deps, syncer.BatchConfig[T]{
		BatchSize:            s.cfg.Sync.BatchSize,
		BatchDelay:           s.cfg.Sync.BatchDelay,
		RecentSyncThreshold:  s.cfg.Sync.RecentSyncThreshold,
		RapidUpdateThreshold: s.cfg.Sync.RapidUpdateThreshold,
		Retry: syncer.RetryPolicy{
			InitialDelay: s.cfg.Retry.InitialDelay,
			Multiplier:   s.cfg.Retry.Multiplier,
			MaxDelay:     s.cfg.Retry.MaxDelay,
			MaxAttempts:  s.cfg.Retry.MaxAttempts,
		},
	})
}

// buildSyncers creates one manager per entity type. Reference data the
// server owns resolves server-wins; user-edited rows resolve last-writer-wins.
func buildSyncers(s shared, db *gorm.DB, ep *remote.Endpoints) []orchestrator.EntitySyncer {
	return []orchestrator.EntitySyncer{
		newSyncer[*domain.User](s, domain.EntityUsers, infra_repository.NewUserStore(db), ep.Users,
			syncer.ServerWins[*domain.User]{}),
		newSyncer[*domain.Group](s, domain.EntityGroups, infra_repository.NewGroupStore(db), ep.Groups,
			syncer.LastWriterWins[*domain.Group]{}),
		newSyncer[*domain.Requisition](s, domain.EntityRequisitions, infra_repository.NewRequisitionStore(db), ep.Requisitions,
			syncer.ServerWins[*domain.Requisition]{}),
		newSyncer[*domain.Account](s, domain.EntityAccounts, infra_repository.NewAccountStore(db), ep.Accounts,
			syncer.ServerWins[*domain.Account]{}),
		newSyncer[*domain.Transaction](s, domain.EntityTransactions, infra_repository.NewTransactionStore(db), ep.Transactions,
			syncer.ServerWins[*domain.Transaction]{}),
		newSyncer[*domain.Payment](s, domain.EntityPayments, infra_repository.NewPaymentStore(db), ep.Payments,
			syncer.LastWriterWins[*domain.Payment]{}),
		newSyncer[*domain.Split](s, domain.EntitySplits, infra_repository.NewSplitStore(db), ep.Splits,
			syncer.LastWriterWins[*domain.Split]{}),
		newSyncer[*domain.CurrencyConversion](s, domain.EntityConversions, infra_repository.NewConversionStore(db), ep.Conversions,
			syncer.ServerWins[*domain.CurrencyConversion]{}),
	}
}
