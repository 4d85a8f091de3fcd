package initializer

import (
	"errors"
	"fmt"
	"log/slog"

	infra_eventbus "github.com/amirasaad/splitsync/infra/eventbus"
	infra_kvstore "github.com/amirasaad/splitsync/infra/kvstore"
	"github.com/amirasaad/splitsync/pkg/config"
	"github.com/amirasaad/splitsync/pkg/eventbus"
	"github.com/amirasaad/splitsync/pkg/kvstore"
	"github.com/redis/go-redis/v9"
)

// initEventBus picks the bus driver. An unreachable Redis falls back to the
// in-memory bus so that a device keeps working offline.
func initEventBus(cfg *config.App, logger *slog.Logger) (eventbus.Bus, func() error, error) {
	switch cfg.EventBus {
	case "", "memory":
		return infra_eventbus.NewWithMemory(logger), nil, nil
	case "redis":
		if cfg.Redis == nil || cfg.Redis.URL == "" {
			return nil, nil, errors.New("EVENT_BUS=redis requires REDIS_URL")
		}
		bus, err := infra_eventbus.NewWithRedis(cfg.Redis.URL, logger)
		if err != nil {
			logger.Warn("Redis event bus unavailable, falling back to memory", "error", err)
			return infra_eventbus.NewWithMemory(logger), nil, nil
		}
		return bus, bus.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported event bus driver %q", cfg.EventBus)
	}
}

// initKVStore returns the Redis store when REDIS_URL is set and the
// in-memory store otherwise.
func initKVStore(cfg *config.App, logger *slog.Logger) (kvstore.Store, func() error, error) {
	if cfg.Redis == nil || cfg.Redis.URL == "" {
		store := infra_kvstore.NewMemoryStore()
		return store, func() error { store.Close(); return nil }, nil
	}
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	if cfg.Redis.PoolSize > 0 {
		opt.PoolSize = cfg.Redis.PoolSize
	}
	if cfg.Redis.DialTimeout > 0 {
		opt.DialTimeout = cfg.Redis.DialTimeout
	}
	if cfg.Redis.ReadTimeout > 0 {
		opt.ReadTimeout = cfg.Redis.ReadTimeout
	}
	if cfg.Redis.WriteTimeout > 0 {
		opt.WriteTimeout = cfg.Redis.WriteTimeout
	}
	store := infra_kvstore.NewRedisStoreWithOptions(opt, cfg.Redis.KeyPrefix+cfg.Feed.KeyPrefix, logger)
	return store, store.Close, nil
}
