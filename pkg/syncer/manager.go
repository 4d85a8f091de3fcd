// Package syncer reconciles one entity type between the local store and
// the server: push local changes, then pull server changes.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/repository"
	"github.com/google/uuid"
)

// DefaultInterval is how long a successful pass stays fresh.
const DefaultInterval = 15 * time.Minute

// Deps are the collaborators of a Manager.
type Deps[T domain.Syncable] struct {
	Local    repository.EntityStore[T]
	Remote   Remote[T]
	Metadata repository.MetadataStore
	Throttle Throttle
	Resolver ConflictResolver[T]
	// IDs maps foreign keys between local and server ids. Nil sends and
	// stores references unchanged.
	IDs    repository.IdentityMap
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Manager runs sync passes for one entity type.
type Manager[T domain.Syncable] struct {
	entityType string
	interval   time.Duration
	local      repository.EntityStore[T]
	remote     Remote[T]
	metadata   repository.MetadataStore
	throttle   Throttle
	resolver   ConflictResolver[T]
	ids        repository.IdentityMap
	now        func() time.Time
	logger     *slog.Logger
}

// NewManager creates a Manager. A zero interval uses DefaultInterval and a
// nil resolver uses ServerWins.
func NewManager[T domain.Syncable](entityType string, interval time.Duration, deps Deps[T]) *Manager[T] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if deps.Resolver == nil {
		deps.Resolver = ServerWins[T]{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager[T]{
		entityType: entityType,
		interval:   interval,
		local:      deps.Local,
		remote:     deps.Remote,
		metadata:   deps.Metadata,
		throttle:   deps.Throttle,
		resolver:   deps.Resolver,
		ids:        deps.IDs,
		now:        deps.Now,
		logger:     deps.Logger.With("service", "syncer", "entity", entityType),
	}
}

// EntityType returns the entity type this manager syncs.
func (m *Manager[T]) EntityType() string {
	return m.entityType
}

// IsStale reports whether the entity type is due: never synced, last pass
// failed, or the last success is older than the interval.
func (m *Manager[T]) IsStale(ctx context.Context) (bool, error) {
	meta, err := m.metadata.Get(ctx, m.entityType)
	if err != nil {
		return false, err
	}
	return m.stale(meta), nil
}

func (m *Manager[T]) stale(meta *domain.SyncMetadata) bool {
	if meta == nil || meta.SyncStatus == domain.StatusSyncFailed {
		return true
	}
	return m.now().UnixMilli()-meta.LastSyncTimestamp > m.interval.Milliseconds()
}

// ShouldSync gates a pass. The throttle is consulted only when the pass
// would otherwise run, so fresh non-forced checks do not consume it.
func (m *Manager[T]) ShouldSync(ctx context.Context, force bool) (bool, string, error) {
	if !force {
		stale, err := m.IsStale(ctx)
		if err != nil {
			return false, "", err
		}
		if !stale {
			return false, "synced within interval", nil
		}
	}
	if m.throttle != nil && !m.throttle.TryAcquire(m.entityType) {
		return false, "throttled", nil
	}
	return true, "", nil
}

// DetermineStrategy picks the pull strategy from stored metadata.
func (m *Manager[T]) DetermineStrategy(ctx context.Context) (Strategy, *domain.SyncMetadata, error) {
	meta, err := m.metadata.Get(ctx, m.entityType)
	if err != nil {
		return nil, nil, err
	}
	return DetermineStrategy(meta), meta, nil
}

// PerformSync runs one pass: gate, push, pull, metadata. It never panics
// and never returns a nil Result.
func (m *Manager[T]) PerformSync(ctx context.Context, force bool) Result {
	return m.run(ctx, force, m.push, m.record)
}

type (
	pushFunc   func(ctx context.Context) Result
	recordFunc func(ctx context.Context, push, pull, combined Result, start int64)
)

func (m *Manager[T]) run(ctx context.Context, force bool, push pushFunc, record recordFunc) (res Result) {
	start := m.now().UnixMilli()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("sync pass panicked", "panic", r)
			res = Error{Cause: fmt.Errorf("sync %s panicked: %v", m.entityType, r)}
			record(ctx, nil, nil, res, start)
		}
	}()

	ok, reason, err := m.ShouldSync(ctx, force)
	if err != nil {
		m.logger.Error("sync gate failed", "error", err)
		return Error{Cause: err}
	}
	if !ok {
		m.logger.Debug("sync skipped", "reason", reason)
		return Skipped{Reason: reason}
	}

	strategy, _, err := m.DetermineStrategy(ctx)
	if err != nil {
		res = Error{Cause: err}
		record(ctx, nil, nil, res, start)
		return res
	}

	m.logger.Info("sync pass started", "force", force, "strategy", fmt.Sprintf("%T", strategy))
	pushRes := push(ctx)
	pullRes := m.pull(ctx, strategy, start)
	res = Combine(pushRes, pullRes)
	record(ctx, pushRes, pullRes, res, start)
	m.logger.Info("sync pass finished", "result", Describe(res))
	return res
}

// push sends every unsynced row, previously failed rows first.
func (m *Manager[T]) push(ctx context.Context) Result {
	items, err := m.local.ListUnsynced(ctx)
	if err != nil {
		return Error{Cause: fmt.Errorf("list unsynced %s: %w", m.entityType, err)}
	}
	if len(items) == 0 {
		return Skipped{Reason: "nothing to push"}
	}
	var pushed, failed int
	var firstErr error
	for _, item := range items {
		if err := m.pushItem(ctx, item); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			m.markFailed(ctx, item, err)
			continue
		}
		pushed++
	}
	return pushOutcome(m.entityType, pushed, failed, len(items), firstErr, m.now().UnixMilli())
}

func pushOutcome(entityType string, pushed, failed, total int, firstErr error, ts int64) Result {
	if failed > 0 {
		return Error{
			Cause:       fmt.Errorf("push %s: %d of %d items failed: %w", entityType, failed, total, firstErr),
			FailedItems: failed,
			Succeeded:   pushed,
		}
	}
	return Success{Updated: pushed, Timestamp: ts}
}

// pushItem deletes tombstones, creates rows without a server id and
// updates the rest.
func (m *Manager[T]) pushItem(ctx context.Context, item T) error {
	serverID, hasServerID := item.RemoteID()
	if item.Status() == domain.StatusLocallyDeleted {
		if hasServerID {
			if err := m.remote.Delete(ctx, serverID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}
		return m.local.Delete(ctx, item.LocalID())
	}
	restore, err := ToServerRefs(ctx, m.ids, item)
	if err != nil {
		return err
	}
	var serverCopy T
	if hasServerID {
		serverCopy, err = m.remote.Update(ctx, item)
	} else {
		serverCopy, err = m.remote.Create(ctx, item)
	}
	restore()
	if err != nil {
		return err
	}
	return m.markSynced(ctx, item, serverCopy)
}

func (m *Manager[T]) markSynced(ctx context.Context, item, serverCopy T) error {
	ts := m.now().UnixMilli()
	if !isNil(serverCopy) {
		if id, ok := serverCopy.RemoteID(); ok {
			if err := item.AssignServerID(id); err != nil {
				return err
			}
		}
		if serverCopy.LastModified() > 0 {
			ts = serverCopy.LastModified()
		}
	}
	if _, ok := item.RemoteID(); !ok {
		return fmt.Errorf("%w: server returned no id for %s", domain.ErrValidation, item.LocalID())
	}
	item.Touch(domain.StatusSynced, ts)
	return m.local.Save(ctx, item)
}

// markFailed flags a row for retry. Tombstones stay tombstones.
func (m *Manager[T]) markFailed(ctx context.Context, item T, cause error) {
	m.logger.Warn("push failed", "local_id", item.LocalID(), "error", cause)
	if item.Status() == domain.StatusLocallyDeleted {
		return
	}
	item.Touch(domain.StatusSyncFailed, item.LastModified())
	if err := m.local.Save(ctx, item); err != nil {
		m.logger.Error("failed to mark row as failed", "local_id", item.LocalID(), "error", err)
	}
}

// pull fetches server changes and applies them locally.
func (m *Manager[T]) pull(ctx context.Context, strategy Strategy, start int64) Result {
	cs, err := m.remote.Changes(ctx, strategy)
	if err != nil {
		return Error{Cause: fmt.Errorf("fetch %s changes: %w", m.entityType, err)}
	}
	if cs == nil || cs.NotModified {
		return Skipped{Reason: "not modified"}
	}
	var applied, failed int
	var firstErr error
	note := func(err error) {
		if err == nil {
			applied++
			return
		}
		failed++
		if firstErr == nil {
			firstErr = err
		}
		m.logger.Warn("apply server change failed", "error", err)
	}
	for _, srv := range cs.Items {
		note(m.applyServerItem(ctx, srv))
	}
	for _, serverID := range cs.Deleted {
		note(m.applyServerDeletion(ctx, serverID))
	}
	if failed > 0 {
		return Error{
			Cause:       fmt.Errorf("pull %s: %d of %d changes failed: %w", m.entityType, failed, applied+failed, firstErr),
			FailedItems: failed,
			Succeeded:   applied,
		}
	}
	return Success{Updated: applied, Timestamp: max(cs.Timestamp, start), Etag: cs.Etag}
}

// applyServerItem stores a server copy. A local row that still has
// unpushed changes always goes through the conflict resolver, whatever its
// timestamp says relative to the last sync.
func (m *Manager[T]) applyServerItem(ctx context.Context, srv T) error {
	serverID, ok := srv.RemoteID()
	if !ok {
		return fmt.Errorf("%w: server item without id", domain.ErrValidation)
	}
	if err := ToLocalRefs(ctx, m.ids, srv); err != nil {
		return fmt.Errorf("server %s %s: %w", m.entityType, serverID, err)
	}
	local, err := m.local.FindByServerID(ctx, serverID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		srv.SetLocalID(uuid.NewString())
		srv.Touch(domain.StatusSynced, srv.LastModified())
		return m.local.Save(ctx, srv)
	case err != nil:
		return err
	}

	switch local.Status() {
	case domain.StatusLocallyDeleted:
		// The pending remote delete is retried next pass.
		return nil
	case domain.StatusPendingSync, domain.StatusSyncFailed:
		winner, pushBack := m.resolver.Resolve(local, srv)
		if pushBack {
			m.logger.Debug("conflict kept local copy", "local_id", local.LocalID())
			winner.SetLocalID(local.LocalID())
			winner.Touch(domain.StatusPendingSync, winner.LastModified())
			return m.local.Save(ctx, winner)
		}
		m.logger.Debug("conflict took server copy", "local_id", local.LocalID())
		srv = winner
	}
	srv.SetLocalID(local.LocalID())
	srv.Touch(domain.StatusSynced, srv.LastModified())
	return m.local.Save(ctx, srv)
}

func (m *Manager[T]) applyServerDeletion(ctx context.Context, serverID string) error {
	local, err := m.local.FindByServerID(ctx, serverID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return m.local.Delete(ctx, local.LocalID())
}

// record stores the pass outcome in the metadata store.
func (m *Manager[T]) record(ctx context.Context, _, _, combined Result, start int64) {
	m.store(ctx, combined, start, Describe(combined))
}

func (m *Manager[T]) store(ctx context.Context, combined Result, start int64, diagnostic string) {
	_, err := m.metadata.Update(ctx, m.entityType, func(md domain.SyncMetadata) domain.SyncMetadata {
		md.LastSyncResult = diagnostic
		switch r := combined.(type) {
		case Error:
			md.SyncStatus = domain.StatusSyncFailed
		case Success:
			md.SyncStatus = domain.StatusSynced
			md.LastSyncTimestamp = max(md.LastSyncTimestamp, r.Timestamp, start)
			if r.Etag != "" {
				etag := r.Etag
				md.LastEtag = &etag
			}
			md.UpdateCount++
		case Skipped:
			md.SyncStatus = domain.StatusSynced
			md.LastSyncTimestamp = max(md.LastSyncTimestamp, start)
			md.UpdateCount++
		}
		return md
	})
	if err != nil {
		m.logger.Error("failed to update sync metadata", "error", err)
	}
}

func isNil[T any](v T) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
