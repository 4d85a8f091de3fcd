package syncer_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/amirasaad/splitsync/internal/fixtures/memstore"
	"github.com/amirasaad/splitsync/internal/fixtures/mocks"
	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/syncer"
	"github.com/amirasaad/splitsync/pkg/throttle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func byLocalID(id string) any {
	return mock.MatchedBy(func(p *domain.Payment) bool { return p.ID == id })
}

type fixture struct {
	store    *memStore
	remote   *mocks.MockRemote[*domain.Payment]
	metadata *memstore.Metadata
	clock    *clock
}

func newFixture(t *testing.T, rows ...*domain.Payment) *fixture {
	return &fixture{
		store:    newMemStore(rows...),
		remote:   mocks.NewMockRemote[*domain.Payment](t),
		metadata: memstore.NewMetadata(),
		clock:    &clock{now: t0},
	}
}

func (f *fixture) deps() syncer.Deps[*domain.Payment] {
	return syncer.Deps[*domain.Payment]{
		Local:    f.store,
		Remote:   f.remote,
		Metadata: f.metadata,
		Throttle: throttle.New(100, time.Minute, f.clock.Now),
		Now:      f.clock.Now,
	}
}

func (f *fixture) manager() *syncer.Manager[*domain.Payment] {
	return syncer.NewManager(domain.EntityPayments, 15*time.Minute, f.deps())
}

func (f *fixture) meta(t *testing.T) *domain.SyncMetadata {
	t.Helper()
	md, err := f.metadata.Get(context.Background(), domain.EntityPayments)
	require.NoError(t, err)
	return md
}

func TestManager_PushThenPullAndRecordMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment("a", domain.StatusPendingSync, t0.Add(-time.Hour).UnixMilli(), ""))

	f.remote.On("Create", mock.Anything, byLocalID("a")).
		Return(serverPayment("srv-a", t0.UnixMilli()-10, 1000), nil).Once()
	f.remote.On("Changes", mock.Anything, syncer.FullSync{}).
		Return(&syncer.ChangeSet[*domain.Payment]{
			Items:     []*domain.Payment{serverPayment("srv-b", t0.UnixMilli()-5, 500)},
			Timestamp: t0.UnixMilli() - 1,
			Etag:      "v1",
		}, nil).Once()

	res := f.manager().PerformSync(ctx, false)

	success, ok := res.(syncer.Success)
	require.True(t, ok, "got %s", syncer.Describe(res))
	assert.Equal(t, 2, success.Updated)
	assert.Equal(t, "v1", success.Etag)

	a := f.store.get("a")
	require.NotNil(t, a)
	assert.Equal(t, domain.StatusSynced, a.SyncStatus)
	id, _ := a.RemoteID()
	assert.Equal(t, "srv-a", id)
	assert.Equal(t, t0.UnixMilli()-10, a.UpdatedAt)
	assert.Equal(t, 2, f.store.len())

	md := f.meta(t)
	require.NotNil(t, md)
	assert.Equal(t, domain.StatusSynced, md.SyncStatus)
	assert.Equal(t, int64(1), md.UpdateCount)
	assert.Equal(t, t0.UnixMilli(), md.LastSyncTimestamp)
	etag, _ := md.Etag()
	assert.Equal(t, "v1", etag)
}

func TestManager_SecondRunInsideIntervalIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("Changes", mock.Anything, syncer.FullSync{}).
		Return(&syncer.ChangeSet[*domain.Payment]{Timestamp: t0.UnixMilli()}, nil).Once()
	m := f.manager()

	_, ok := m.PerformSync(ctx, false).(syncer.Success)
	require.True(t, ok)

	f.clock.Advance(5 * time.Minute)
	res := m.PerformSync(ctx, false)
	assert.IsType(t, syncer.Skipped{}, res)

	// Past the interval the type is due again.
	f.clock.Advance(11 * time.Minute)
	f.remote.On("Changes", mock.Anything, syncer.IncrementalSync{Since: t0.UnixMilli()}).
		Return(&syncer.ChangeSet[*domain.Payment]{NotModified: true}, nil).Once()
	stale, err := m.IsStale(ctx)
	require.NoError(t, err)
	assert.True(t, stale)
	assert.IsType(t, syncer.Skipped{}, m.PerformSync(ctx, false))
	assert.Equal(t, int64(2), f.meta(t).UpdateCount)
}

func TestManager_FailedRunIsRetriedInsideInterval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment("a", domain.StatusPendingSync, t0.Add(-time.Minute).UnixMilli(), ""))
	m := f.manager()

	f.remote.On("Create", mock.Anything, byLocalID("a")).Return(nil, errors.New("boom")).Once()
	f.remote.On("Changes", mock.Anything, mock.Anything).
		Return(&syncer.ChangeSet[*domain.Payment]{NotModified: true}, nil).Twice()

	res := m.PerformSync(ctx, false)
	e, ok := res.(syncer.Error)
	require.True(t, ok)
	assert.Equal(t, 1, e.FailedItems)
	assert.Equal(t, domain.StatusSyncFailed, f.meta(t).SyncStatus)
	assert.Equal(t, domain.StatusSyncFailed, f.store.get("a").SyncStatus)
	assert.Contains(t, f.meta(t).LastSyncResult, "boom")

	f.clock.Advance(time.Minute)
	f.remote.On("Create", mock.Anything, byLocalID("a")).
		Return(serverPayment("srv-a", t0.UnixMilli(), 1000), nil).Once()
	res = m.PerformSync(ctx, false)
	assert.IsType(t, syncer.Success{}, res)
	assert.Equal(t, domain.StatusSynced, f.meta(t).SyncStatus)
	assert.Equal(t, domain.StatusSynced, f.store.get("a").SyncStatus)
}

func TestManager_ThrottleDeniesEvenWhenForced(t *testing.T) {
	f := newFixture(t)
	deps := f.deps()
	deps.Throttle = denyThrottle{}
	m := syncer.NewManager(domain.EntityPayments, 0, deps)

	res := m.PerformSync(context.Background(), true)
	assert.Equal(t, syncer.Skipped{Reason: "throttled"}, res)
	assert.Nil(t, f.meta(t))
}

func TestManager_ShouldSync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.manager()

	ok, _, err := m.ShouldSync(ctx, false)
	require.NoError(t, err)
	assert.True(t, ok, "never synced")

	_, _ = f.metadata.Update(ctx, domain.EntityPayments, func(md domain.SyncMetadata) domain.SyncMetadata {
		md.SyncStatus = domain.StatusSynced
		md.LastSyncTimestamp = t0.Add(-time.Minute).UnixMilli()
		return md
	})
	ok, reason, err := m.ShouldSync(ctx, false)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "synced within interval", reason)

	ok, _, err = m.ShouldSync(ctx, true)
	require.NoError(t, err)
	assert.True(t, ok, "forced")
}

func TestDetermineStrategy(t *testing.T) {
	etag := "abc"
	empty := ""
	tests := []struct {
		name string
		meta *domain.SyncMetadata
		want syncer.Strategy
	}{
		{"no metadata", nil, syncer.FullSync{}},
		{"etag", &domain.SyncMetadata{LastEtag: &etag, LastSyncTimestamp: 5}, syncer.EtagSync{Etag: "abc"}},
		{"empty etag", &domain.SyncMetadata{LastEtag: &empty, LastSyncTimestamp: 5}, syncer.IncrementalSync{Since: 5}},
		{"timestamp", &domain.SyncMetadata{LastSyncTimestamp: 42}, syncer.IncrementalSync{Since: 42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, syncer.DetermineStrategy(tt.meta))
		})
	}
}

func TestManager_PushesTombstones(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		payment("gone", domain.StatusLocallyDeleted, t0.UnixMilli(), "srv-gone"),
		payment("never-sent", domain.StatusLocallyDeleted, t0.UnixMilli(), ""),
	)
	f.remote.On("Delete", mock.Anything, "srv-gone").Return(nil).Once()
	f.remote.On("Changes", mock.Anything, mock.Anything).
		Return(&syncer.ChangeSet[*domain.Payment]{NotModified: true}, nil).Once()

	res := f.manager().PerformSync(ctx, true)
	assert.Equal(t, 2, res.(syncer.Success).Updated)
	assert.Equal(t, 0, f.store.len())
}

func TestManager_FailedTombstoneStaysTombstone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment("gone", domain.StatusLocallyDeleted, t0.UnixMilli(), "srv-gone"))
	f.remote.On("Delete", mock.Anything, "srv-gone").Return(fmt.Errorf("%w: 503", domain.ErrTransient)).Once()
	f.remote.On("Changes", mock.Anything, mock.Anything).
		Return(&syncer.ChangeSet[*domain.Payment]{NotModified: true}, nil).Once()

	assert.IsType(t, syncer.Error{}, f.manager().PerformSync(ctx, true))
	assert.Equal(t, domain.StatusLocallyDeleted, f.store.get("gone").SyncStatus)
}

func TestManager_PullConflicts(t *testing.T) {
	lastSync := t0.Add(-time.Hour).UnixMilli()
	localEdit := lastSync + 1000

	tests := []struct {
		name       string
		resolver   syncer.ConflictResolver[*domain.Payment]
		serverTime int64
		wantAmount int64
		wantStatus domain.SyncStatus
	}{
		{"server wins by default", nil, localEdit + 1, 777, domain.StatusSynced},
		{"server wins even when older", syncer.ServerWins[*domain.Payment]{}, localEdit - 1, 777, domain.StatusSynced},
		{"last writer keeps newer local", syncer.LastWriterWins[*domain.Payment]{}, localEdit - 1, 1000, domain.StatusPendingSync},
		{"last writer takes newer server", syncer.LastWriterWins[*domain.Payment]{}, localEdit + 1, 777, domain.StatusSynced},
		{"last writer tie goes to server", syncer.LastWriterWins[*domain.Payment]{}, localEdit, 777, domain.StatusSynced},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, payment("a", domain.StatusPendingSync, localEdit, "srv-a"))
			_, _ = f.metadata.Update(ctx, domain.EntityPayments, func(md domain.SyncMetadata) domain.SyncMetadata {
				md.SyncStatus = domain.StatusSynced
				md.LastSyncTimestamp = lastSync
				return md
			})
			// The push fails, so the local edit is still dirty when the pull arrives.
			f.remote.On("Update", mock.Anything, byLocalID("a")).Return(nil, domain.ErrValidation).Once()
			f.remote.On("Changes", mock.Anything, syncer.IncrementalSync{Since: lastSync}).
				Return(&syncer.ChangeSet[*domain.Payment]{
					Items: []*domain.Payment{serverPayment("srv-a", tt.serverTime, 777)},
				}, nil).Once()

			deps := f.deps()
			deps.Resolver = tt.resolver
			syncer.NewManager(domain.EntityPayments, 0, deps).PerformSync(ctx, true)

			a := f.store.get("a")
			require.NotNil(t, a)
			assert.Equal(t, tt.wantAmount, a.Amount)
			assert.Equal(t, tt.wantStatus, a.SyncStatus)
			assert.Equal(t, 1, f.store.len())
		})
	}
}

func TestManager_DirtyRowsAlwaysGoThroughResolver(t *testing.T) {
	ctx := context.Background()
	// The server clock ran ahead, so the stored sync time is later than
	// the local edit that is still waiting to be pushed.
	lastSync := t0.Add(time.Minute).UnixMilli()
	localEdit := t0.Add(-30 * time.Second).UnixMilli()

	f := newFixture(t, payment("a", domain.StatusPendingSync, localEdit, "srv-a"))
	f.store.rows["a"].Amount = 4242
	_, _ = f.metadata.Update(ctx, domain.EntityPayments, func(md domain.SyncMetadata) domain.SyncMetadata {
		md.SyncStatus = domain.StatusSynced
		md.LastSyncTimestamp = lastSync
		return md
	})
	f.remote.On("Update", mock.Anything, byLocalID("a")).
		Return(nil, fmt.Errorf("%w: 503", domain.ErrTransient)).Once()
	f.remote.On("Changes", mock.Anything, syncer.IncrementalSync{Since: lastSync}).
		Return(&syncer.ChangeSet[*domain.Payment]{
			Items: []*domain.Payment{serverPayment("srv-a", t0.Add(-time.Minute).UnixMilli(), 777)},
		}, nil).Once()

	var calls int
	deps := f.deps()
	deps.Resolver = syncer.ResolverFunc[*domain.Payment](func(local, server *domain.Payment) (*domain.Payment, bool) {
		calls++
		return syncer.LastWriterWins[*domain.Payment]{}.Resolve(local, server)
	})
	syncer.NewManager(domain.EntityPayments, 0, deps).PerformSync(ctx, true)

	assert.Equal(t, 1, calls)
	a := f.store.get("a")
	require.NotNil(t, a)
	assert.Equal(t, int64(4242), a.Amount)
	assert.Equal(t, domain.StatusPendingSync, a.SyncStatus)
}

func TestManager_PullAppliesServerDeletions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment("d", domain.StatusSynced, t0.UnixMilli(), "srv-d"))
	f.remote.On("Changes", mock.Anything, mock.Anything).
		Return(&syncer.ChangeSet[*domain.Payment]{Deleted: []string{"srv-d", "srv-unknown"}}, nil).Once()

	res := f.manager().PerformSync(ctx, true)
	assert.IsType(t, syncer.Success{}, res)
	assert.Nil(t, f.store.get("d"))
}

func TestManager_PanicBecomesError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("Changes", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("remote exploded")
	}).Once()

	res := f.manager().PerformSync(ctx, true)
	e, ok := res.(syncer.Error)
	require.True(t, ok)
	assert.ErrorContains(t, e.Cause, "remote exploded")
	assert.Equal(t, domain.StatusSyncFailed, f.meta(t).SyncStatus)
}

func TestCombine(t *testing.T) {
	boom := syncer.Error{Cause: errors.New("boom")}
	pullErr := syncer.Error{Cause: errors.New("pull")}
	tests := []struct {
		name       string
		push, pull syncer.Result
		want       syncer.Result
	}{
		{"push error wins", boom, syncer.Success{Updated: 1}, boom},
		{"pull error wins", syncer.Success{Updated: 1}, pullErr, pullErr},
		{"both errors keep push", boom, pullErr, boom},
		{"skipped and success", syncer.Skipped{Reason: "a"}, syncer.Success{Updated: 2}, syncer.Success{Updated: 2}},
		{"success and skipped", syncer.Success{Updated: 3}, syncer.Skipped{Reason: "b"}, syncer.Success{Updated: 3}},
		{"both skipped", syncer.Skipped{Reason: "a"}, syncer.Skipped{Reason: "b"}, syncer.Skipped{Reason: "a; b"}},
		{
			"both success merge",
			syncer.Success{Updated: 1, Timestamp: 5},
			syncer.Success{Updated: 2, Timestamp: 9, Etag: "e"},
			syncer.Success{Updated: 3, Timestamp: 9, Etag: "e"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, syncer.Combine(tt.push, tt.pull))
		})
	}
}
