package common

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirasaad/splitsync/pkg/domain/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedup_Window(t *testing.T) {
	t.Parallel()
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d := NewDedup(time.Minute)
	d.now = func() time.Time { return clock }

	assert.False(t, d.Handled("h", "e-1"))
	d.markHandled(dedupKey("h", "e-1"))
	assert.True(t, d.Handled("h", "e-1"))
	assert.False(t, d.Handled("other", "e-1"), "ids are scoped per handler")

	clock = clock.Add(time.Minute)
	assert.False(t, d.Handled("h", "e-1"))
	assert.Empty(t, d.handled)
}

func TestDedup_Wrap(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := context.Background()

	t.Run("events without id always run", func(t *testing.T) {
		t.Parallel()
		runs := 0
		wrapped := NewDedup(0).Wrap("test-handler", func(context.Context, events.Event) error {
			runs++
			return nil
		}, logger)

		require.NoError(t, wrapped(ctx, testEvent{}))
		require.NoError(t, wrapped(ctx, testEvent{}))
		assert.Equal(t, 2, runs)
	})

	t.Run("skips redelivered event", func(t *testing.T) {
		t.Parallel()
		runs := 0
		wrapped := NewDedup(0).Wrap("test-handler", func(context.Context, events.Event) error {
			runs++
			return nil
		}, logger)

		e := events.PaymentCurrencyConverted{EventID: "e-3"}
		require.NoError(t, wrapped(ctx, e))
		require.NoError(t, wrapped(ctx, &e))
		assert.Equal(t, 1, runs)
	})

	t.Run("handlers sharing a dedup each run once", func(t *testing.T) {
		t.Parallel()
		d := NewDedup(0)
		var a, b int
		wrapA := d.Wrap("a", func(context.Context, events.Event) error { a++; return nil }, logger)
		wrapB := d.Wrap("b", func(context.Context, events.Event) error { b++; return nil }, logger)

		e := events.SyncPassCompleted{EventID: "e-6"}
		for range 2 {
			require.NoError(t, wrapA(ctx, e))
			require.NoError(t, wrapB(ctx, e))
		}
		assert.Equal(t, 1, a)
		assert.Equal(t, 1, b)
	})

	t.Run("failed handler can be retried", func(t *testing.T) {
		t.Parallel()
		d := NewDedup(0)
		boom := errors.New("handler error")
		fail := true
		wrapped := d.Wrap("test-handler", func(context.Context, events.Event) error {
			if fail {
				return boom
			}
			return nil
		}, logger)

		e := events.SyncPassFailed{EventID: "e-4"}
		assert.ErrorIs(t, wrapped(ctx, e), boom)
		assert.False(t, d.Handled("test-handler", "e-4"))

		fail = false
		require.NoError(t, wrapped(ctx, e))
		assert.True(t, d.Handled("test-handler", "e-4"))
	})

	t.Run("concurrent deliveries run once", func(t *testing.T) {
		t.Parallel()
		var runs atomic.Int32
		release := make(chan struct{})
		wrapped := NewDedup(0).Wrap("test-handler", func(context.Context, events.Event) error {
			runs.Add(1)
			<-release
			return nil
		}, logger)

		e := events.SyncPassCompleted{EventID: "e-7"}
		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, wrapped(ctx, e))
			}()
		}
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()
		assert.Equal(t, int32(1), runs.Load())
	})

	t.Run("uses default logger when nil logger provided", func(t *testing.T) {
		t.Parallel()
		wrapped := NewDedup(0).Wrap("test-handler", func(context.Context, events.Event) error {
			return nil
		}, nil)
		require.NoError(t, wrapped(ctx, events.SyncPassCompleted{EventID: "e-5"}))
	})
}

type testEvent struct{}

func (testEvent) Type() string { return "test.event" }
func (testEvent) ID() string   { return "" }
