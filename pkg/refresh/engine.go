// Package refresh decides when the quota-limited transactions feed may be
// called for a consumer.
//
// The upstream allows DailyQuota calls per rolling window that starts at
// the first call. Automatic refreshes are scored and always leave the last
// call of a window for a manual refresh. Calls scoped to one known resource
// only respect the cooldown and are not counted.
package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/splitsync/pkg/config"
	"github.com/amirasaad/splitsync/pkg/kvstore"
)

// Policy holds the admission parameters.
type Policy struct {
	DailyQuota           int
	Window               time.Duration
	Cooldown             time.Duration
	ResetGrace           time.Duration
	MaxCacheAge          time.Duration
	ActivityWindow       time.Duration
	LowActivityStartHour int
	LowActivityEndHour   int
	ScoreThreshold       float64
}

// DefaultPolicy is four calls a day, a 30 minute cooldown and a score
// threshold of 50.
func DefaultPolicy() Policy {
	return Policy{
		DailyQuota:           4,
		Window:               24 * time.Hour,
		Cooldown:             30 * time.Minute,
		ResetGrace:           30 * time.Minute,
		MaxCacheAge:          6 * time.Hour,
		ActivityWindow:       time.Hour,
		LowActivityStartHour: 0,
		LowActivityEndHour:   6,
		ScoreThreshold:       50,
	}
}

// PolicyFromConfig maps the FEED_ configuration section.
func PolicyFromConfig(cfg *config.Feed) Policy {
	if cfg == nil {
		return DefaultPolicy()
	}
	return Policy{
		DailyQuota:           cfg.DailyQuota,
		Window:               cfg.Window,
		Cooldown:             cfg.Cooldown,
		ResetGrace:           cfg.ResetGrace,
		MaxCacheAge:          cfg.MaxCacheAge,
		ActivityWindow:       cfg.ActivityWindow,
		LowActivityStartHour: cfg.LowActivityStartHour,
		LowActivityEndHour:   cfg.LowActivityEndHour,
		ScoreThreshold:       cfg.ScoreThreshold,
	}
}

// State is the per-consumer bookkeeping. Timestamps are unix milliseconds,
// zero when never set.
type State struct {
	WindowStart  int64 `json:"window_start"`
	CallsUsed    int   `json:"calls_used"`
	LastCall     int64 `json:"last_call"`
	LastFetch    int64 `json:"last_fetch"`
	LastActivity int64 `json:"last_activity"`
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	Reason  string
	Score   float64
}

// Engine evaluates Policy against State kept in a kvstore.Store.
type Engine struct {
	store  kvstore.Store
	policy Policy
	now    func() time.Time
	loc    *time.Location
	logger *slog.Logger
	mu     sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLocation sets the time zone the low-activity hours are read in.
func WithLocation(loc *time.Location) Option { return func(e *Engine) { e.loc = loc } }

// NewEngine creates an Engine.
func NewEngine(store kvstore.Store, policy Policy, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		policy: policy,
		now:    time.Now,
		loc:    time.Local,
		logger: logger.With("service", "refresh"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the consumer's state with an elapsed window already rolled over.
func (e *Engine) State(ctx context.Context, consumer string) (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.load(ctx, consumer)
}

// ShouldRefreshCache decides an automatic refresh.
func (e *Engine) ShouldRefreshCache(ctx context.Context, consumer string) (bool, error) {
	d, err := e.Evaluate(ctx, consumer)
	return d.Allowed, err
}

// Evaluate is ShouldRefreshCache with the reason and score attached.
func (e *Engine) Evaluate(ctx context.Context, consumer string) (Decision, error) {
	st, err := e.State(ctx, consumer)
	if err != nil {
		return Decision{}, err
	}
	now := e.now()
	p := e.policy

	if st.LastCall > 0 && now.Sub(ms(st.LastCall)) < p.Cooldown {
		return Decision{Reason: "cooldown"}, nil
	}
	if st.CallsUsed >= p.DailyQuota {
		if e.untilReset(st, now) < p.ResetGrace {
			return Decision{Allowed: true, Reason: "last call before window reset"}, nil
		}
		return Decision{Reason: "quota exhausted"}, nil
	}
	if st.CallsUsed == p.DailyQuota-1 {
		return Decision{Reason: "last call reserved for manual refresh"}, nil
	}

	score := e.score(st, now)
	if score > p.ScoreThreshold {
		return Decision{Allowed: true, Reason: "priority score", Score: score}, nil
	}
	return Decision{Reason: "priority score below threshold", Score: score}, nil
}

// CanManualRefresh skips the cooldown and scoring but still respects the
// quota, unless the window resets within the grace period.
func (e *Engine) CanManualRefresh(ctx context.Context, consumer string) (bool, error) {
	st, err := e.State(ctx, consumer)
	if err != nil {
		return false, err
	}
	if st.CallsUsed < e.policy.DailyQuota {
		return true, nil
	}
	return e.untilReset(st, e.now()) < e.policy.ResetGrace, nil
}

// CanScopedRefresh only checks the cooldown.
func (e *Engine) CanScopedRefresh(ctx context.Context, consumer string) (bool, error) {
	st, err := e.State(ctx, consumer)
	if err != nil {
		return false, err
	}
	return st.LastCall == 0 || e.now().Sub(ms(st.LastCall)) >= e.policy.Cooldown, nil
}

// RecordCall counts one feed call, opening a new window if none is active.
func (e *Engine) RecordCall(ctx context.Context, consumer string) error {
	return e.update(ctx, consumer, func(st *State, now int64) {
		if st.WindowStart == 0 {
			st.WindowStart = now
			st.CallsUsed = 0
		}
		st.CallsUsed++
		st.LastCall = now
	})
}

// RecordScopedCall updates the cooldown clock without touching the quota.
func (e *Engine) RecordScopedCall(ctx context.Context, consumer string) error {
	return e.update(ctx, consumer, func(st *State, now int64) {
		st.LastCall = now
	})
}

// RecordFetch marks the cached feed data as fresh.
func (e *Engine) RecordFetch(ctx context.Context, consumer string) error {
	return e.update(ctx, consumer, func(st *State, now int64) {
		st.LastFetch = now
	})
}

// RecordActivity marks the consumer as active.
func (e *Engine) RecordActivity(ctx context.Context, consumer string) error {
	return e.update(ctx, consumer, func(st *State, now int64) {
		st.LastActivity = now
	})
}

// Reset forgets everything about consumer.
func (e *Engine) Reset(ctx context.Context, consumer string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Delete(ctx, consumer)
}

// score weighs cache age (50), time of day (30) and recent activity (20).
func (e *Engine) score(st State, now time.Time) float64 {
	p := e.policy
	age := 1.0
	if st.LastFetch > 0 && p.MaxCacheAge > 0 {
		age = float64(now.Sub(ms(st.LastFetch))) / float64(p.MaxCacheAge)
		age = min(max(age, 0), 1)
	}
	score := 50 * age
	if !e.lowActivityHour(now) {
		score += 30
	}
	if st.LastActivity > 0 && now.Sub(ms(st.LastActivity)) <= p.ActivityWindow {
		score += 20
	}
	return score
}

func (e *Engine) lowActivityHour(now time.Time) bool {
	h := now.In(e.loc).Hour()
	start, end := e.policy.LowActivityStartHour, e.policy.LowActivityEndHour
	if start <= end {
		return h >= start && h < end
	}
	// wraps midnight, e.g. 22-6
	return h >= start || h < end
}

func (e *Engine) untilReset(st State, now time.Time) time.Duration {
	if st.WindowStart == 0 {
		return e.policy.Window
	}
	return ms(st.WindowStart).Add(e.policy.Window).Sub(now)
}

func (e *Engine) update(ctx context.Context, consumer string, fn func(*State, int64)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.load(ctx, consumer)
	if err != nil {
		return err
	}
	fn(&st, e.now().UnixMilli())
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := e.store.Set(ctx, consumer, data, 0); err != nil {
		return fmt.Errorf("failed to store refresh state for %s: %w", consumer, err)
	}
	return nil
}

// load must be called with e.mu held.
func (e *Engine) load(ctx context.Context, consumer string) (State, error) {
	var st State
	data, ok, err := e.store.Get(ctx, consumer)
	if err != nil {
		return st, fmt.Errorf("failed to load refresh state for %s: %w", consumer, err)
	}
	if ok {
		if err := json.Unmarshal(data, &st); err != nil {
			e.logger.Warn("discarding corrupt refresh state", "consumer", consumer, "error", err)
			st = State{}
		}
	}
	if st.WindowStart > 0 && !e.now().Before(ms(st.WindowStart).Add(e.policy.Window)) {
		st.WindowStart = 0
		st.CallsUsed = 0
	}
	return st, nil
}

func ms(v int64) time.Time { return time.UnixMilli(v) }
