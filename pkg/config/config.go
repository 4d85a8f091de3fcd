package config

import (
	"time"
)

type DB struct {
	Url string `envconfig:"URL" default:"file:splitsync.db?_foreign_keys=on"`
}

type Redis struct {
	URL          string        `envconfig:"URL" default:""`
	KeyPrefix    string        `envconfig:"KEY_PREFIX" default:"splitsync:"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

// RateLimit bounds inbound HTTP requests per client.
type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

// Throttle bounds sync passes per entity type over a sliding window.
type Throttle struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"4"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

type Sync struct {
	Interval             time.Duration `envconfig:"INTERVAL" default:"15m"`
	Batched              bool          `envconfig:"BATCHED" default:"true"`
	BatchSize            int           `envconfig:"BATCH_SIZE" default:"50"`
	BatchDelay           time.Duration `envconfig:"BATCH_DELAY" default:"100ms"`
	RecentSyncThreshold  time.Duration `envconfig:"RECENT_SYNC_THRESHOLD" default:"5s"`
	RapidUpdateThreshold time.Duration `envconfig:"RAPID_UPDATE_THRESHOLD" default:"2s"`
	Policy               string        `envconfig:"POLICY" default:"fail_fast"`
	SchedulerInterval    time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"5m"`
}

type Retry struct {
	InitialDelay time.Duration `envconfig:"INITIAL_DELAY" default:"500ms"`
	Multiplier   float64       `envconfig:"MULTIPLIER" default:"2"`
	MaxDelay     time.Duration `envconfig:"MAX_DELAY" default:"10s"`
	MaxAttempts  int           `envconfig:"MAX_ATTEMPTS" default:"3"`
}

//revive:disable
type Remote struct {
	BaseURL     string        `envconfig:"BASE_URL" default:"http://localhost:8080"`
	ApiKey      string        `envconfig:"API_KEY"`
	HealthPath  string        `envconfig:"HEALTH_PATH" default:"/health"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
}

//revive:enable

// Feed configures admission control for the quota-limited transactions feed.
type Feed struct {
	DailyQuota           int           `envconfig:"DAILY_QUOTA" default:"4"`
	Window               time.Duration `envconfig:"WINDOW" default:"24h"`
	Cooldown             time.Duration `envconfig:"COOLDOWN" default:"30m"`
	ResetGrace           time.Duration `envconfig:"RESET_GRACE" default:"30m"`
	MaxCacheAge          time.Duration `envconfig:"MAX_CACHE_AGE" default:"6h"`
	ActivityWindow       time.Duration `envconfig:"ACTIVITY_WINDOW" default:"1h"`
	LowActivityStartHour int           `envconfig:"LOW_ACTIVITY_START_HOUR" default:"0"`
	LowActivityEndHour   int           `envconfig:"LOW_ACTIVITY_END_HOUR" default:"6"`
	ScoreThreshold       float64       `envconfig:"SCORE_THRESHOLD" default:"50"`
	KeyPrefix            string        `envconfig:"KEY_PREFIX" default:"feed:"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[splitsync]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type App struct {
	Env       string     `envconfig:"APP_ENV" default:"development"`
	EventBus  string     `envconfig:"EVENT_BUS" default:"memory"`
	Server    *Server    `envconfig:"SERVER"`
	Log       *Log       `envconfig:"LOG"`
	DB        *DB        `envconfig:"DATABASE"`
	Redis     *Redis     `envconfig:"REDIS"`
	RateLimit *RateLimit `envconfig:"RATE_LIMIT"`
	Throttle  *Throttle  `envconfig:"THROTTLE"`
	Sync      *Sync      `envconfig:"SYNC"`
	Retry     *Retry     `envconfig:"RETRY"`
	Remote    *Remote    `envconfig:"REMOTE"`
	Feed      *Feed      `envconfig:"FEED"`
}
