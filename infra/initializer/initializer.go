// Package initializer builds the application dependencies from configuration.
package initializer

import (
	"fmt"
	"log/slog"

	"github.com/amirasaad/splitsync/infra"
	"github.com/amirasaad/splitsync/infra/network"
	"github.com/amirasaad/splitsync/infra/remote"
	infra_repository "github.com/amirasaad/splitsync/infra/repository"
	"github.com/amirasaad/splitsync/pkg/app"
	"github.com/amirasaad/splitsync/pkg/config"
	"github.com/amirasaad/splitsync/pkg/throttle"
)

// InitializeDependencies opens the local store, the key-value store and the
// event bus, and builds one sync manager per entity type.
func InitializeDependencies(cfg *config.App) (*app.Deps, error) {
	return InitializeWithLogger(cfg, setupLogger(cfg.Log))
}

// InitializeWithLogger is InitializeDependencies with a caller-supplied logger.
func InitializeWithLogger(cfg *config.App, logger *slog.Logger) (_ *app.Deps, err error) {
	deps := &app.Deps{Logger: logger}
	defer func() {
		if err != nil {
			closeAll(deps.Closers, logger)
		}
	}()

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return nil, err
	}
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		deps.Closers = append(deps.Closers, sqlDB.Close)
	}
	if err = infra.Migrate(db, logger); err != nil {
		return nil, err
	}
	deps.Uow = infra_repository.NewUoW(db)
	metadata := infra_repository.NewMetadataStore(db)
	deps.Metadata = metadata

	kv, closeKV, err := initKVStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create key-value store: %w", err)
	}
	deps.KV = kv
	deps.Closers = append(deps.Closers, closeKV)

	bus, closeBus, err := initEventBus(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}
	deps.EventBus = bus
	if closeBus != nil {
		deps.Closers = append(deps.Closers, closeBus)
	}

	client := remote.NewClient(cfg.Remote, logger)
	endpoints := remote.NewEndpoints(client)
	deps.Reachability = network.NewProbe(cfg.Remote, logger)
	ids := infra_repository.NewIdentityMap(db)
	deps.Propagator = remote.NewPropagator(endpoints, ids)
	deps.FeedFetch = client.RefreshTransactions

	deps.Syncers = buildSyncers(shared{
		cfg:      cfg,
		metadata: metadata,
		ids:      ids,
		throttle: throttle.New(cfg.Throttle.MaxRequests, cfg.Throttle.Window, nil),
		logger:   logger,
	}, db, endpoints)

	logger.Info("Dependencies initialized",
		"syncers", len(deps.Syncers),
		"event_bus", fmt.Sprintf("%T", bus),
		"kvstore", fmt.Sprintf("%T", kv),
	)
	return deps, nil
}

func closeAll(closers []func() error, logger *slog.Logger) {
	for _, c := range closers {
		if err := c(); err != nil {
			logger.Warn("Failed to close dependency", "error", err)
		}
	}
}
