package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirasaad/splitsync/infra/initializer"
	"github.com/amirasaad/splitsync/pkg/app"
	"github.com/amirasaad/splitsync/pkg/config"
	"github.com/amirasaad/splitsync/webapi"
	log "github.com/charmbracelet/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	logger := deps.Logger

	a, err := app.New(deps, cfg)
	if err != nil {
		for _, closeFn := range deps.Closers {
			_ = closeFn()
		}
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to release resources", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go newScheduler(a.Orchestrator, cfg.Sync.SchedulerInterval, logger).Run(ctx)

	fiberApp := webapi.SetupApp(a)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Starting server",
		"env", cfg.Env,
		"address", addr,
		"scheme", cfg.Server.Scheme,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- fiberApp.Listen(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	if err := fiberApp.ShutdownWithTimeout(10 * time.Second); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
