// Package common holds helpers shared by event handlers.
package common

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/splitsync/pkg/domain/events"
	"github.com/amirasaad/splitsync/pkg/eventbus"
	"golang.org/x/sync/singleflight"
)

// DefaultDedupWindow is how long a handled event id is remembered.
const DefaultDedupWindow = time.Hour

// Dedup remembers which handler has already handled which event id, so a
// bus that redelivers (the redis stream after a restart, for one) does not
// run side effects twice. One Dedup can be shared by many handlers: ids are
// scoped per handler name.
type Dedup struct {
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	handled  map[string]time.Time
	inflight singleflight.Group
}

// NewDedup returns a Dedup that forgets ids after window. A non-positive
// window keeps them for the life of the process.
func NewDedup(window time.Duration) *Dedup {
	return &Dedup{
		window:  window,
		now:     time.Now,
		handled: make(map[string]time.Time),
	}
}

func dedupKey(handler, id string) string {
	return handler + "/" + id
}

// Handled reports whether handler already succeeded for event id.
func (d *Dedup) Handled(handler, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handledLocked(dedupKey(handler, id))
}

func (d *Dedup) handledLocked(key string) bool {
	at, ok := d.handled[key]
	if !ok {
		return false
	}
	if d.window > 0 && d.now().Sub(at) >= d.window {
		delete(d.handled, key)
		return false
	}
	return true
}

func (d *Dedup) markHandled(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	d.handled[key] = now
	if d.window <= 0 {
		return
	}
	for k, at := range d.handled {
		if now.Sub(at) >= d.window {
			delete(d.handled, k)
		}
	}
}

// Wrap returns h guarded by d under the given handler name. Events with an
// empty ID always run. An id is only remembered once h returns nil, and
// concurrent deliveries of the same id share the in-flight call.
func (d *Dedup) Wrap(name string, h eventbus.HandlerFunc, logger *slog.Logger) eventbus.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, e events.Event) error {
		id := e.ID()
		if id == "" {
			return h(ctx, e)
		}
		key := dedupKey(name, id)

		_, err, _ := d.inflight.Do(key, func() (any, error) {
			d.mu.Lock()
			seen := d.handledLocked(key)
			d.mu.Unlock()
			if seen {
				logger.Info("🔁 [SKIP] Event already processed",
					"handler", name, "event_type", e.Type(), "event_id", id)
				return nil, nil
			}
			if err := h(ctx, e); err != nil {
				return nil, err
			}
			d.markHandled(key)
			return nil, nil
		})
		return err
	}
}
