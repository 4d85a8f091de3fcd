package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// ErrManualRefreshDenied is returned when a manual refresh would exceed the quota.
var ErrManualRefreshDenied = errors.New("manual refresh denied: feed quota exhausted")

// ErrCooldown is returned when a scoped refresh is attempted inside the cooldown.
var ErrCooldown = errors.New("feed refresh cooling down")

// Mode selects which admission rule applies.
type Mode int

const (
	// Auto is a background refresh gated by the priority score.
	Auto Mode = iota
	// Manual is a user-initiated refresh.
	Manual
	// Scoped fetches a single known resource and is not counted.
	Scoped
)

func (m Mode) String() string {
	switch m {
	case Manual:
		return "manual"
	case Scoped:
		return "scoped"
	default:
		return "auto"
	}
}

// ParseMode maps a request value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "auto":
		return Auto, nil
	case "manual":
		return Manual, nil
	case "scoped":
		return Scoped, nil
	}
	return Auto, fmt.Errorf("unknown refresh mode %q", s)
}

// FetchFunc performs the upstream feed call for consumer.
type FetchFunc func(ctx context.Context, consumer string) error

// Outcome reports what a Refresh call did.
type Outcome struct {
	Refreshed bool   `json:"refreshed"`
	Shared    bool   `json:"shared"`
	Reason    string `json:"reason"`
}

// Refresher runs feed calls through an Engine. Concurrent refreshes of the
// same consumer and mode share one upstream call.
type Refresher struct {
	engine   *Engine
	fetch    FetchFunc
	inflight singleflight.Group
	logger   *slog.Logger
}

// NewRefresher creates a Refresher.
func NewRefresher(engine *Engine, fetch FetchFunc, logger *slog.Logger) *Refresher {
	return &Refresher{engine: engine, fetch: fetch, logger: logger.With("service", "feed_refresher")}
}

// Engine returns the underlying policy engine.
func (r *Refresher) Engine() *Engine { return r.engine }

// Refresh decides and, if admitted, performs one feed call. A denied
// automatic refresh is not an error.
func (r *Refresher) Refresh(ctx context.Context, consumer string, mode Mode) (Outcome, error) {
	v, err, shared := r.inflight.Do(mode.String()+":"+consumer, func() (any, error) {
		return r.refresh(ctx, consumer, mode)
	})
	if err != nil {
		return Outcome{}, err
	}
	out := v.(Outcome)
	out.Shared = shared
	return out, nil
}

func (r *Refresher) refresh(ctx context.Context, consumer string, mode Mode) (Outcome, error) {
	log := r.logger.With("consumer", consumer, "mode", mode.String())

	var reason string
	switch mode {
	case Manual:
		ok, err := r.engine.CanManualRefresh(ctx, consumer)
		if err != nil {
			return Outcome{}, err
		}
		if !ok {
			log.Info("manual refresh denied")
			return Outcome{}, ErrManualRefreshDenied
		}
		reason = "manual"
	case Scoped:
		ok, err := r.engine.CanScopedRefresh(ctx, consumer)
		if err != nil {
			return Outcome{}, err
		}
		if !ok {
			return Outcome{}, ErrCooldown
		}
		reason = "scoped"
	default:
		d, err := r.engine.Evaluate(ctx, consumer)
		if err != nil {
			return Outcome{}, err
		}
		if !d.Allowed {
			log.Debug("refresh not admitted", "reason", d.Reason, "score", d.Score)
			return Outcome{Reason: d.Reason}, nil
		}
		reason = d.Reason
	}

	// The upstream counts the call whether or not it succeeds.
	record := r.engine.RecordCall
	if mode == Scoped {
		record = r.engine.RecordScopedCall
	}
	if err := record(ctx, consumer); err != nil {
		return Outcome{}, err
	}
	if err := r.fetch(ctx, consumer); err != nil {
		log.Error("feed refresh failed", "error", err)
		return Outcome{}, fmt.Errorf("feed refresh for %s: %w", consumer, err)
	}
	if err := r.engine.RecordFetch(ctx, consumer); err != nil {
		return Outcome{}, err
	}
	log.Info("feed refreshed", "reason", reason)
	return Outcome{Refreshed: true, Reason: reason}, nil
}
