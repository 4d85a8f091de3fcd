package config

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads the first environment file found among envFilePath (or .env)
// and then processes the environment into an App.
func Load(envFilePath ...string) (*App, error) {
	logger := slog.Default()
	logger.Info("Loading environment variables")

	if len(envFilePath) == 0 {
		logger.Debug("No environment file specified, trying default .env")
		if err := godotenv.Load(); err != nil {
			logger.Warn("No .env file found in current directory")
		}
		return loadFromEnv()
	}

	for _, path := range envFilePath {
		foundPath, err := FindEnvFile(path)
		if err != nil {
			logger.Debug("Environment file not found", "path", path, "error", err)
			continue
		}
		logger.Info("Loading environment from file", "path", foundPath)
		if err := godotenv.Load(foundPath); err != nil {
			logger.Error("Failed to load environment file", "path", foundPath, "error", err)
			continue
		}
		return loadFromEnv()
	}

	logger.Info("No valid environment files found, using default .env")
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found in current directory")
	}
	return loadFromEnv()
}

func loadFromEnv() (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Default().Info("App config loaded",
		"env", cfg.Env,
		"event_bus", cfg.EventBus,
		"db", maskValue(cfg.DB.Url),
		"redis", maskValue(cfg.Redis.URL),
		"remote", cfg.Remote.BaseURL,
		"remote_api_key", maskValue(cfg.Remote.ApiKey),
		"sync_interval", cfg.Sync.Interval,
		"sync_policy", cfg.Sync.Policy,
		"throttle_max_requests", cfg.Throttle.MaxRequests,
		"throttle_window", cfg.Throttle.Window,
		"feed_daily_quota", cfg.Feed.DailyQuota,
	)
	return &cfg, nil
}

// Validate rejects settings the sync engine cannot run with.
func (c *App) Validate() error {
	switch c.Sync.Policy {
	case "fail_fast", "continue_on_error":
	default:
		return fmt.Errorf("invalid SYNC_POLICY %q: want fail_fast or continue_on_error", c.Sync.Policy)
	}
	switch c.EventBus {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid EVENT_BUS %q: want memory or redis", c.EventBus)
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive, got %d", c.Sync.BatchSize)
	}
	if c.Throttle.MaxRequests <= 0 || c.Throttle.Window <= 0 {
		return fmt.Errorf("THROTTLE_MAX_REQUESTS and THROTTLE_WINDOW must be positive")
	}
	if c.Feed.DailyQuota < 1 {
		return fmt.Errorf("FEED_DAILY_QUOTA must be at least 1, got %d", c.Feed.DailyQuota)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	return nil
}

func maskValue(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
