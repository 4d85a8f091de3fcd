package syncer

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/amirasaad/splitsync/pkg/domain"
)

// Filter reports whether an entity may be pushed.
type Filter[T domain.Syncable] func(item T) bool

// BatchConfig tunes a BatchedManager. Zero values take the defaults.
type BatchConfig[T domain.Syncable] struct {
	BatchSize int
	// BatchDelay pauses between chunks; negative disables the pause.
	BatchDelay time.Duration
	// RecentSyncThreshold skips SYNCED rows touched more recently than this.
	// ListUnsynced never yields SYNCED rows, so it only applies to callers
	// that hand Eligible their own candidates.
	RecentSyncThreshold time.Duration
	// RapidUpdateThreshold skips PENDING_SYNC rows still being edited.
	RapidUpdateThreshold time.Duration
	Retry                RetryPolicy
	Filter               Filter[T]
}

const (
	DefaultBatchSize            = 50
	DefaultBatchDelay           = 100 * time.Millisecond
	DefaultRecentSyncThreshold  = 5 * time.Second
	DefaultRapidUpdateThreshold = 2 * time.Second
)

// BatchedManager is a Manager that pushes in paced chunks, skips rows that
// would echo back and forth with the server, and retries transient
// failures per item.
type BatchedManager[T domain.Syncable] struct {
	*Manager[T]
	cfg BatchConfig[T]
}

// NewBatchedManager wraps a Manager built from deps.
func NewBatchedManager[T domain.Syncable](
	entityType string,
	interval time.Duration,
	deps Deps[T],
	cfg BatchConfig[T],
) *BatchedManager[T] {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay == 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}
	if cfg.RecentSyncThreshold <= 0 {
		cfg.RecentSyncThreshold = DefaultRecentSyncThreshold
	}
	if cfg.RapidUpdateThreshold <= 0 {
		cfg.RapidUpdateThreshold = DefaultRapidUpdateThreshold
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy
	}
	m := NewManager(entityType, interval, deps)
	m.logger = m.logger.With("variant", "batched")
	return &BatchedManager[T]{Manager: m, cfg: cfg}
}

// PerformSync runs one batched pass.
func (b *BatchedManager[T]) PerformSync(ctx context.Context, force bool) Result {
	return b.run(ctx, force, b.push, b.record)
}

// Eligible applies the anti-loop rules to one candidate. The SYNCED case is
// a guard for candidates that did not come from ListUnsynced; push itself
// only sees PENDING_SYNC and SYNC_FAILED rows.
func (b *BatchedManager[T]) Eligible(item T, now time.Time) bool {
	if b.cfg.Filter != nil && !b.cfg.Filter(item) {
		return false
	}
	age := now.UnixMilli() - item.LastModified()
	switch item.Status() {
	case domain.StatusSynced:
		return age >= b.cfg.RecentSyncThreshold.Milliseconds()
	case domain.StatusPendingSync:
		return age >= b.cfg.RapidUpdateThreshold.Milliseconds()
	}
	return true
}

func (b *BatchedManager[T]) push(ctx context.Context) Result {
	candidates, err := b.local.ListUnsynced(ctx)
	if err != nil {
		return Error{Cause: fmt.Errorf("list unsynced %s: %w", b.entityType, err)}
	}
	now := b.now()
	items := slices.DeleteFunc(candidates, func(item T) bool {
		return !b.Eligible(item, now)
	})
	if skipped := len(candidates) - len(items); skipped > 0 {
		b.logger.Debug("anti-loop filter skipped rows", "count", skipped)
	}
	if len(items) == 0 {
		return Skipped{Reason: "nothing to push"}
	}

	var pushed, failed int
	var firstErr error
	for i, batch := range chunk(items, b.cfg.BatchSize) {
		if i > 0 {
			if err := pause(ctx, b.cfg.BatchDelay); err != nil {
				remaining := len(items) - pushed - failed
				failed += remaining
				if firstErr == nil {
					firstErr = err
				}
				break
			}
		}
		for _, item := range batch {
			err := b.cfg.Retry.Do(ctx, b.logger, func() error {
				return b.pushItem(ctx, item)
			})
			if err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
				b.markFailed(ctx, item, err)
				continue
			}
			pushed++
		}
	}
	return pushOutcome(b.entityType, pushed, failed, len(items), firstErr, b.now().UnixMilli())
}

// record marks the type SYNCED only when both phases had zero failures.
func (b *BatchedManager[T]) record(ctx context.Context, push, pull, combined Result, start int64) {
	pushOK, pushFailed := counts(push)
	pullOK, pullFailed := counts(pull)
	diagnostic := fmt.Sprintf("push: %d ok, %d failed; pull: %d ok, %d failed",
		pushOK, pushFailed, pullOK, pullFailed)
	if _, isErr := combined.(Error); isErr || pushFailed+pullFailed > 0 {
		if !isErr {
			combined = Error{Cause: fmt.Errorf("%s", diagnostic), FailedItems: pushFailed + pullFailed}
		}
		diagnostic = Describe(combined) + "; " + diagnostic
	}
	b.store(ctx, combined, start, diagnostic)
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for size < len(items) {
		items, out = items[size:], append(out, items[:size])
	}
	return append(out, items)
}

// pause waits d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
