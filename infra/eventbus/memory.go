package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/amirasaad/splitsync/pkg/domain/events"
	"github.com/amirasaad/splitsync/pkg/eventbus"
)

// MemoryEventBus is a synchronous in-process implementation of eventbus.Bus.
// Handlers run on the emitting goroutine; a failing or panicking handler
// never stops the others.
type MemoryEventBus struct {
	handlers  map[string][]eventbus.HandlerFunc
	mu        sync.RWMutex
	logger    *slog.Logger
	published []events.Event
}

// NewWithMemory creates a new in-memory event bus.
func NewWithMemory(logger *slog.Logger) *MemoryEventBus {
	return &MemoryEventBus{
		handlers:  make(map[string][]eventbus.HandlerFunc),
		logger:    logger.With("bus", "memory"),
		published: make([]events.Event, 0),
	}
}

// Register registers a handler for a specific event type.
func (b *MemoryEventBus) Register(eventType string, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit dispatches the event to all registered handlers for its type.
func (b *MemoryEventBus) Emit(ctx context.Context, event events.Event) error {
	eventType := event.Type()
	b.mu.Lock()
	handlers := append([]eventbus.HandlerFunc{}, b.handlers[eventType]...)
	b.published = append(b.published, event)
	b.mu.Unlock()

	for _, handler := range handlers {
		b.dispatch(ctx, eventType, handler, event)
	}
	return nil
}

func (b *MemoryEventBus) dispatch(ctx context.Context, eventType string, handler eventbus.HandlerFunc, event events.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic recovered in event handler", "type", eventType, "panic", r)
		}
	}()
	if err := handler(ctx, event); err != nil {
		b.logger.Error("failed to process event", "type", eventType, "error", err)
	}
}

// Published returns the events emitted so far. Useful in tests.
func (b *MemoryEventBus) Published() []events.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]events.Event{}, b.published...)
}

// ClearPublished clears the list of published events.
func (b *MemoryEventBus) ClearPublished() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = make([]events.Event, 0)
}

var _ eventbus.Bus = (*MemoryEventBus)(nil)
