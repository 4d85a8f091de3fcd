// Package app wires the sync engine, the feed refresher and the conversion
// service together and subscribes their event handlers.
package app

import (
	"context"

	"github.com/amirasaad/splitsync/pkg/domain/events"
	"github.com/amirasaad/splitsync/pkg/handler/activity"
)

// setupEventBus registers all event handlers with the application's bus.
func (a *App) setupEventBus() {
	bus := a.Deps.EventBus
	if bus == nil {
		return
	}
	activity.Register(bus, a.Feed.Engine(), a.Deps.Logger)

	logger := a.Deps.Logger.With("handler", "sync_pass")
	bus.Register(events.SyncPassFailed{}.Type(), func(_ context.Context, e events.Event) error {
		failed, ok := e.(events.SyncPassFailed)
		if !ok {
			if p, isPtr := e.(*events.SyncPassFailed); isPtr {
				failed, ok = *p, true
			}
		}
		if ok {
			logger.Warn("⚠️ sync pass failed",
				"reason", failed.Reason,
				"offline", failed.Offline,
				"failed_entities", failed.FailedEntities,
			)
		}
		return nil
	})
}
