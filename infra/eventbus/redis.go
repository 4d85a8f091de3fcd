package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/splitsync/pkg/domain/events"
	"github.com/amirasaad/splitsync/pkg/eventbus"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RedisEventBus implements eventbus.Bus on Redis Streams, one stream per
// event type. Messages whose handler fails are copied to a DLQ stream.
type RedisEventBus struct {
	client        *redis.Client
	typeFactories map[string]func() events.Event
	block         time.Duration
	logger        *slog.Logger
}

// NewWithRedis creates a new Redis-backed event bus.
// url: Redis connection URL (e.g., "redis://localhost:6379").
func NewWithRedis(url string, logger *slog.Logger) (*RedisEventBus, error) {
	if url == "" {
		return nil, fmt.Errorf("redis event bus: url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis event bus: invalid URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis event bus: connection failed: %w", err)
	}
	return &RedisEventBus{
		client:        client,
		typeFactories: events.EventTypes,
		block:         5 * time.Second,
		logger:        logger.With("component", "redis-event-bus"),
	}, nil
}

// Emit publishes an event to its Redis stream.
func (b *RedisEventBus) Emit(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis event bus: marshal failed: %w", err)
	}
	envBytes, err := json.Marshal(envelope{Type: event.Type(), Payload: data})
	if err != nil {
		return fmt.Errorf("redis event bus: envelope marshal failed: %w", err)
	}
	if err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamNameFor(event.Type()),
		Values: map[string]any{"event": string(envBytes)},
	}).Err(); err != nil {
		b.logger.Error("failed to emit event", "error", err, "type", event.Type())
		return fmt.Errorf("redis event bus: emit failed: %w", err)
	}
	b.logger.Debug("event emitted", "type", event.Type())
	return nil
}

// Register starts a consumer for the event type's stream.
func (b *RedisEventBus) Register(eventType string, handler eventbus.HandlerFunc) {
	ctx := context.Background()
	stream := streamNameFor(eventType)
	group := groupNameFor(eventType)
	consumer := fmt.Sprintf("consumer-%s", uuid.NewString())
	if err := b.client.XGroupCreateMkStream(ctx, stream, group, "$").Err(); err != nil &&
		err.Error() != "BUSYGROUP Consumer Group name already exists" {
		b.logger.Error("failed to create consumer group", "error", err, "stream", stream)
	}
	b.logger.Info("registering handler", "event_type", eventType, "consumer", consumer)

	go func() {
		for {
			res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: consumer,
				Streams:  []string{stream, ">"},
				Count:    10,
				Block:    b.block,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.ErrClosed) {
					return
				}
				if !errors.Is(err, redis.Nil) {
					b.logger.Error("error reading from stream", "error", err, "consumer", consumer)
					time.Sleep(time.Second)
				}
				continue
			}
			for _, s := range res {
				for _, msg := range s.Messages {
					b.handle(ctx, eventType, handler, msg)
					if err := b.client.XAck(ctx, stream, group, msg.ID).Err(); err != nil {
						b.logger.Error("failed to acknowledge message", "error", err, "msg_id", msg.ID)
					}
				}
			}
		}
	}()
}

func (b *RedisEventBus) handle(ctx context.Context, eventType string, handler eventbus.HandlerFunc, msg redis.XMessage) {
	raw, ok := msg.Values["event"].(string)
	if !ok {
		return
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		b.logger.Error("failed to unmarshal envelope", "error", err)
		return
	}
	constructor, ok := b.typeFactories[env.Type]
	if !ok {
		b.logger.Error("unknown event type", "event_type", env.Type)
		b.pushToDLQ(ctx, eventType, msg.Values)
		return
	}
	evt := constructor()
	if err := json.Unmarshal(env.Payload, evt); err != nil {
		b.logger.Error("failed to unmarshal payload", "error", err, "event_type", env.Type)
		b.pushToDLQ(ctx, eventType, msg.Values)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panic recovered", "panic", r, "event_type", env.Type)
			b.pushToDLQ(ctx, eventType, msg.Values)
		}
	}()
	if err := handler(ctx, evt); err != nil {
		b.logger.Error("handler error", "error", err, "event_type", env.Type)
		b.pushToDLQ(ctx, eventType, msg.Values)
	}
}

// pushToDLQ copies the raw message to the event type's DLQ stream.
func (b *RedisEventBus) pushToDLQ(ctx context.Context, eventType string, values map[string]any) {
	dlq := dlqStreamName(eventType)
	if err := b.client.XAdd(ctx, &redis.XAddArgs{Stream: dlq, Values: values}).Err(); err != nil {
		b.logger.Error("failed to push to DLQ", "error", err, "stream", dlq)
		return
	}
	b.logger.Warn("event pushed to DLQ", "stream", dlq)
}

// Close releases the Redis connection and stops consumers.
func (b *RedisEventBus) Close() error {
	return b.client.Close()
}

var _ eventbus.Bus = (*RedisEventBus)(nil)
