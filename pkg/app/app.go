package app

import (
	"fmt"
	"log/slog"

	"github.com/amirasaad/splitsync/pkg/config"
	"github.com/amirasaad/splitsync/pkg/eventbus"
	"github.com/amirasaad/splitsync/pkg/kvstore"
	"github.com/amirasaad/splitsync/pkg/orchestrator"
	"github.com/amirasaad/splitsync/pkg/refresh"
	"github.com/amirasaad/splitsync/pkg/repository"
	"github.com/amirasaad/splitsync/pkg/service/conversion"
	"github.com/amirasaad/splitsync/pkg/split"
)

// Deps contains everything the application services are built from.
type Deps struct {
	Uow          repository.UnitOfWork
	Metadata     repository.MetadataStore
	EventBus     eventbus.Bus
	KV           kvstore.Store
	Reachability orchestrator.Reachability
	// Syncers are the per-entity sync managers, registered by entity priority.
	Syncers    []orchestrator.EntitySyncer
	Propagator conversion.Propagator
	FeedFetch  refresh.FetchFunc
	Logger     *slog.Logger
	// Closers release connections on shutdown, in order.
	Closers []func() error
}

type App struct {
	Deps         *Deps
	Config       *config.App
	Orchestrator *orchestrator.Orchestrator
	Calculator   *split.Calculator
	Conversion   *conversion.Service
	Feed         *refresh.Refresher
}

func New(deps *Deps, cfg *config.App) (*App, error) {
	policy, err := orchestrator.ParsePolicy(cfg.Sync.Policy)
	if err != nil {
		return nil, err
	}

	a := &App{
		Deps:       deps,
		Config:     cfg,
		Calculator: split.New(),
	}

	a.Orchestrator = orchestrator.New(
		deps.Reachability,
		deps.Metadata,
		deps.Logger,
		orchestrator.WithPolicy(policy),
		orchestrator.WithEventBus(deps.EventBus),
	)
	for _, s := range deps.Syncers {
		if err := a.Orchestrator.RegisterEntity(s); err != nil {
			return nil, fmt.Errorf("failed to register syncer: %w", err)
		}
	}

	a.Conversion = conversion.NewService(conversion.Deps{
		Uow:        deps.Uow,
		Calculator: a.Calculator,
		Propagator: deps.Propagator,
		EventBus:   deps.EventBus,
		Logger:     deps.Logger,
	})

	engine := refresh.NewEngine(deps.KV, refresh.PolicyFromConfig(cfg.Feed), deps.Logger)
	a.Feed = refresh.NewRefresher(engine, deps.FeedFetch, deps.Logger)

	a.setupEventBus()
	return a, nil
}

// Close releases every dependency that holds a connection.
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.Deps.Closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
