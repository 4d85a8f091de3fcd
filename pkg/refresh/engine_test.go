package refresh_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amirasaad/splitsync/infra/kvstore"
	"github.com/amirasaad/splitsync/pkg/refresh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newEngine(t *testing.T, at string) (*refresh.Engine, *clock) {
	t.Helper()
	start, err := time.Parse(time.RFC3339, at)
	require.NoError(t, err)
	c := &clock{t: start}
	store := kvstore.NewMemoryStore()
	t.Cleanup(store.Close)
	e := refresh.NewEngine(store, refresh.DefaultPolicy(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		refresh.WithClock(c.now),
		refresh.WithLocation(time.UTC),
	)
	return e, c
}

const noon = "2026-03-02T12:00:00Z"

func TestEngine_FreshConsumerIsAdmitted(t *testing.T) {
	e, _ := newEngine(t, noon)
	d, err := e.Evaluate(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.InDelta(t, 80, d.Score, 0.001)
}

func TestEngine_Cooldown(t *testing.T) {
	ctx := context.Background()
	e, c := newEngine(t, noon)
	require.NoError(t, e.RecordCall(ctx, "alice"))

	c.advance(10 * time.Minute)
	d, err := e.Evaluate(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "cooldown", d.Reason)

	c.advance(20 * time.Minute)
	ok, err := e.ShouldRefreshCache(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEngine_ReservesLastCallForManual(t *testing.T) {
	ctx := context.Background()
	e, c := newEngine(t, noon)
	for range 3 {
		require.NoError(t, e.RecordCall(ctx, "alice"))
		c.advance(time.Hour)
	}

	d, err := e.Evaluate(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "last call reserved for manual refresh", d.Reason)

	ok, err := e.CanManualRefresh(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEngine_QuotaAndResetGrace(t *testing.T) {
	ctx := context.Background()
	e, c := newEngine(t, noon)
	for range 4 {
		require.NoError(t, e.RecordCall(ctx, "alice"))
		c.advance(time.Hour)
	}

	ok, _ := e.ShouldRefreshCache(ctx, "alice")
	assert.False(t, ok, "quota exhausted")
	ok, _ = e.CanManualRefresh(ctx, "alice")
	assert.False(t, ok, "manual respects quota")

	// window opened at noon, resets 24h later
	c.t = c.t.Add(-4 * time.Hour).Add(24*time.Hour - 20*time.Minute)
	ok, _ = e.ShouldRefreshCache(ctx, "alice")
	assert.True(t, ok, "within grace of reset")
	ok, _ = e.CanManualRefresh(ctx, "alice")
	assert.True(t, ok)

	c.advance(20 * time.Minute)
	st, err := e.State(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, st.CallsUsed)
	assert.Zero(t, st.WindowStart)
}

func TestEngine_Score(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh cache at night", func(t *testing.T) {
		e, _ := newEngine(t, "2026-03-02T03:00:00Z")
		require.NoError(t, e.RecordFetch(ctx, "alice"))
		require.NoError(t, e.RecordActivity(ctx, "alice"))
		d, _ := e.Evaluate(ctx, "alice")
		assert.False(t, d.Allowed)
		assert.InDelta(t, 20, d.Score, 0.001)
	})

	t.Run("threshold is exclusive", func(t *testing.T) {
		e, _ := newEngine(t, noon)
		require.NoError(t, e.RecordFetch(ctx, "alice"))
		require.NoError(t, e.RecordActivity(ctx, "alice"))
		d, _ := e.Evaluate(ctx, "alice")
		assert.InDelta(t, 50, d.Score, 0.001)
		assert.False(t, d.Allowed)
	})

	t.Run("aged cache with activity", func(t *testing.T) {
		e, c := newEngine(t, noon)
		require.NoError(t, e.RecordFetch(ctx, "alice"))
		c.advance(time.Hour)
		require.NoError(t, e.RecordActivity(ctx, "alice"))
		d, _ := e.Evaluate(ctx, "alice")
		assert.InDelta(t, 50.0/6+30+20, d.Score, 0.001)
		assert.True(t, d.Allowed)
	})

	t.Run("stale activity does not count", func(t *testing.T) {
		e, c := newEngine(t, noon)
		require.NoError(t, e.RecordActivity(ctx, "alice"))
		require.NoError(t, e.RecordFetch(ctx, "alice"))
		c.advance(3 * time.Hour)
		d, _ := e.Evaluate(ctx, "alice")
		assert.InDelta(t, 25+30, d.Score, 0.001)
	})
}

func TestEngine_ScopedCallsAreNotCounted(t *testing.T) {
	ctx := context.Background()
	e, c := newEngine(t, noon)

	ok, err := e.CanScopedRefresh(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, e.RecordScopedCall(ctx, "alice"))

	ok, _ = e.CanScopedRefresh(ctx, "alice")
	assert.False(t, ok, "scoped calls respect cooldown")

	c.advance(30 * time.Minute)
	ok, _ = e.CanScopedRefresh(ctx, "alice")
	assert.True(t, ok)

	st, _ := e.State(ctx, "alice")
	assert.Zero(t, st.CallsUsed)
}

func TestEngine_ConsumersAreIndependent(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, noon)
	require.NoError(t, e.RecordCall(ctx, "alice"))

	ok, _ := e.ShouldRefreshCache(ctx, "bob")
	assert.True(t, ok)

	require.NoError(t, e.Reset(ctx, "alice"))
	ok, _ = e.ShouldRefreshCache(ctx, "alice")
	assert.True(t, ok)
}
