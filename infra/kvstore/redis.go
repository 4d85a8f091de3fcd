package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/splitsync/pkg/kvstore"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements kvstore.Store using Redis. Every key is namespaced
// with prefix so Clear only touches this store's keys.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisStore connects to the Redis instance at url.
func NewRedisStore(url, prefix string, logger *slog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisStoreWithOptions(opt, prefix, logger), nil
}

// NewRedisStoreWithOptions creates a RedisStore from redis.Options.
func NewRedisStoreWithOptions(opt *redis.Options, prefix string, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(opt),
		prefix: prefix,
		logger: logger.With("component", "redis_kvstore"),
	}
}

func (r *RedisStore) key(key string) string {
	return r.prefix + key
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Redis kv miss", "key", key)
		return nil, false, nil
	}
	if err != nil {
		r.logger.Error("Redis kv get error", "key", key, "error", err)
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		r.logger.Error("Redis kv set error", "key", key, "error", err)
		return err
	}
	r.logger.Debug("Redis kv set", "key", key, "ttl", ttl)
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		r.logger.Error("Redis kv delete error", "key", key, "error", err)
		return err
	}
	return nil
}

// Clear deletes every key under the prefix using SCAN.
func (r *RedisStore) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Close releases the client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

var _ kvstore.Store = (*RedisStore)(nil)
