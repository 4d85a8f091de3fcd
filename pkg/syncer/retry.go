package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds per-item retries with capped exponential backoff.
type RetryPolicy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	// MaxAttempts counts the first try.
	MaxAttempts int
}

// DefaultRetryPolicy is used when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{
	InitialDelay: 500 * time.Millisecond,
	Multiplier:   2,
	MaxDelay:     10 * time.Second,
	MaxAttempts:  3,
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.InitialDelay),
		backoff.WithMultiplier(p.Multiplier),
		backoff.WithMaxInterval(p.MaxDelay),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
	retries := max(p.MaxAttempts-1, 0)
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do runs op, retrying only errors classified transient. Any other error
// is returned after the first attempt.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, op func() error) error {
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err != nil && !domain.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx), func(err error, wait time.Duration) {
		logger.Debug("retrying after transient failure", "attempt", attempt, "wait", wait, "error", err)
	})
}
