package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/amirasaad/splitsync/pkg/orchestrator"
)

// starter runs one sync pass.
type starter interface {
	StartSync(ctx context.Context, force bool) error
}

// scheduler triggers a non-forced sync pass on a fixed interval. Passes
// that find another pass running are dropped.
type scheduler struct {
	sync     starter
	interval time.Duration
	logger   *slog.Logger
}

func newScheduler(sync starter, interval time.Duration, logger *slog.Logger) *scheduler {
	return &scheduler{sync: sync, interval: interval, logger: logger.With("component", "scheduler")}
}

// Run blocks until ctx is done. A non-positive interval disables it.
func (s *scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("periodic sync disabled")
		return
	}
	t := time.NewTicker(s.interval)
	defer t.Stop()
	s.logger.Info("periodic sync started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *scheduler) tick(ctx context.Context) {
	err := s.sync.StartSync(ctx, false)
	switch {
	case err == nil:
		s.logger.Debug("periodic sync completed")
	case errors.Is(err, orchestrator.ErrSyncInProgress):
		s.logger.Debug("periodic sync skipped, pass already running")
	case errors.Is(err, orchestrator.ErrOffline):
		s.logger.Info("periodic sync skipped, offline")
	default:
		s.logger.Warn("periodic sync failed", "error", err)
	}
}
