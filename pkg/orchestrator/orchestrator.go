// Package orchestrator runs the entity-type sync managers of a process in
// dependency order, one run at a time.
package orchestrator

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/domain/events"
	"github.com/amirasaad/splitsync/pkg/eventbus"
	"github.com/amirasaad/splitsync/pkg/repository"
	"github.com/amirasaad/splitsync/pkg/syncer"
)

var (
	// ErrSyncInProgress is returned when a run is requested while one is active.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrOffline is returned when the transport is unusable.
	ErrOffline = errors.New("network unavailable")
)

// Policy decides what happens after an entity type fails.
type Policy int

const (
	// FailFast aborts the remaining entity types.
	FailFast Policy = iota
	// ContinueOnError runs every entity type and fails the run at the end.
	ContinueOnError
)

// ParsePolicy maps a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "fail_fast":
		return FailFast, nil
	case "continue_on_error":
		return ContinueOnError, nil
	}
	return FailFast, fmt.Errorf("unknown sync policy %q", s)
}

// EntitySyncer is one entity type's sync manager.
type EntitySyncer interface {
	EntityType() string
	IsStale(ctx context.Context) (bool, error)
	PerformSync(ctx context.Context, force bool) syncer.Result
}

// Reachability reports whether the transport is usable now.
type Reachability interface {
	IsOnline(ctx context.Context) bool
}

type registration struct {
	priority int
	syncer   EntitySyncer
}

// Orchestrator owns the process-wide run state.
type Orchestrator struct {
	mu          sync.Mutex
	state       State
	syncers     []registration
	subscribers map[int]chan State
	nextSub     int

	policy   Policy
	reach    Reachability
	metadata repository.MetadataStore
	bus      eventbus.Bus
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPolicy sets the sequencing policy.
func WithPolicy(p Policy) Option { return func(o *Orchestrator) { o.policy = p } }

// WithEventBus emits run outcome events on bus.
func WithEventBus(bus eventbus.Bus) Option { return func(o *Orchestrator) { o.bus = bus } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// New creates an idle Orchestrator.
func New(reach Reachability, metadata repository.MetadataStore, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		state:       Idle{},
		subscribers: make(map[int]chan State),
		reach:       reach,
		metadata:    metadata,
		now:         time.Now,
		logger:      logger.With("service", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register adds an entity syncer. Lower priorities run first; equal
// priorities keep registration order.
func (o *Orchestrator) Register(priority int, s EntitySyncer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.syncers = append(o.syncers, registration{priority: priority, syncer: s})
	slices.SortStableFunc(o.syncers, func(a, b registration) int {
		return cmp.Compare(a.priority, b.priority)
	})
}

// RegisterEntity adds s with the priority of its entity type.
func (o *Orchestrator) RegisterEntity(s EntitySyncer) error {
	p, ok := domain.SyncPriority[s.EntityType()]
	if !ok {
		return fmt.Errorf("no sync priority for entity type %q", s.EntityType())
	}
	o.Register(p, s)
	return nil
}

// EntityTypes returns the registered entity types in run order.
func (o *Orchestrator) EntityTypes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.syncers))
	for i, r := range o.syncers {
		out[i] = r.syncer.EntityType()
	}
	return out
}

// State returns the current run state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe returns a channel that receives the current state and every
// later transition. Slow subscribers miss intermediate states but always
// see the latest one. Call cancel to release it.
func (o *Orchestrator) Subscribe() (<-chan State, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSub
	o.nextSub++
	ch := make(chan State, 1)
	ch <- o.state
	o.subscribers[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subscribers, id)
			close(ch)
		})
	}
}

// setState must be called with o.mu held.
func (o *Orchestrator) setState(s State) {
	o.state = s
	for _, ch := range o.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (o *Orchestrator) transition(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setState(s)
}

// StartSync runs every registered syncer that is forced or stale, in
// priority order. It returns ErrSyncInProgress without touching the state
// if a run is active, and ErrOffline when the transport is unusable.
func (o *Orchestrator) StartSync(ctx context.Context, force bool) error {
	o.mu.Lock()
	if _, busy := o.state.(InProgress); busy {
		o.mu.Unlock()
		return ErrSyncInProgress
	}
	started := o.now().UnixMilli()
	o.setState(InProgress{StartedAt: started, Forced: force})
	syncers := slices.Clone(o.syncers)
	o.mu.Unlock()

	if o.reach != nil && !o.reach.IsOnline(ctx) {
		o.logger.Warn("sync refused: offline")
		o.finishFailed(ctx, force, ErrOffline.Error(), true, nil)
		return ErrOffline
	}

	var (
		failures []string
		failed   []string
		ran      []string
	)
	for _, reg := range syncers {
		s := reg.syncer
		entity := s.EntityType()
		if !force {
			stale, err := s.IsStale(ctx)
			if err != nil {
				o.logger.Error("staleness check failed", "entity", entity, "error", err)
			} else if !stale {
				o.logger.Debug("entity fresh, skipping", "entity", entity)
				continue
			}
		}

		ran = append(ran, entity)
		res := s.PerformSync(ctx, force)
		e, isErr := res.(syncer.Error)
		if !isErr {
			o.logger.Info("entity synced", "entity", entity, "result", syncer.Describe(res))
			continue
		}

		reason := fmt.Sprintf("%s: %s", entity, syncer.Describe(e))
		o.logger.Error("entity sync failed", "entity", entity, "error", e.Cause)
		o.markFailed(ctx, entity, reason)
		failures = append(failures, reason)
		failed = append(failed, entity)
		if o.policy == FailFast {
			break
		}
	}

	if len(failures) > 0 {
		reason := strings.Join(failures, "; ")
		o.finishFailed(ctx, force, reason, false, failed)
		return fmt.Errorf("sync failed: %s", reason)
	}

	at := o.now().UnixMilli()
	o.transition(Completed{At: at})
	o.emit(ctx, events.SyncPassCompleted{
		EventID:    events.NewEventID(),
		Forced:     force,
		Entities:   ran,
		StartedAt:  started,
		FinishedAt: at,
	})
	return nil
}

func (o *Orchestrator) markFailed(ctx context.Context, entity, reason string) {
	if o.metadata == nil {
		return
	}
	_, err := o.metadata.Update(ctx, entity, func(md domain.SyncMetadata) domain.SyncMetadata {
		md.SyncStatus = domain.StatusSyncFailed
		md.LastSyncResult = reason
		return md
	})
	if err != nil {
		o.logger.Error("failed to mark entity failed", "entity", entity, "error", err)
	}
}

func (o *Orchestrator) finishFailed(ctx context.Context, force bool, reason string, offline bool, entities []string) {
	at := o.now().UnixMilli()
	o.transition(Failed{Reason: reason, Offline: offline, At: at})
	o.emit(ctx, events.SyncPassFailed{
		EventID:        events.NewEventID(),
		Forced:         force,
		Offline:        offline,
		Reason:         reason,
		FailedEntities: entities,
		FinishedAt:     at,
	})
}

func (o *Orchestrator) emit(ctx context.Context, event events.Event) {
	if o.bus == nil {
		return
	}
	if err := o.bus.Emit(ctx, event); err != nil {
		o.logger.Warn("failed to emit event", "type", event.Type(), "error", err)
	}
}
