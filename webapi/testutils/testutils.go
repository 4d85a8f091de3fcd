// Package testutils builds a fully wired HTTP app over an in-memory local
// store and a fake sync server.
package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirasaad/splitsync/infra/initializer"
	"github.com/amirasaad/splitsync/pkg/app"
	"github.com/amirasaad/splitsync/pkg/config"
	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/repository"
	"github.com/amirasaad/splitsync/webapi"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// FakeServer is a minimal sync server. It assigns ids on create, echoes
// updates, returns empty change sets and accepts feed refreshes.
type FakeServer struct {
	*httptest.Server
	offline   atomic.Bool
	failFeed  atomic.Bool
	feedCalls atomic.Int32
	mu        sync.Mutex
	writes    []string
}

// SetOffline makes the health check answer 503.
func (f *FakeServer) SetOffline(v bool) { f.offline.Store(v) }

// FailFeed makes feed refreshes answer 503.
func (f *FakeServer) FailFeed(v bool) { f.failFeed.Store(v) }

// FeedCalls counts upstream feed refreshes.
func (f *FakeServer) FeedCalls() int { return int(f.feedCalls.Load()) }

// Writes lists "METHOD path" of every create, update and delete.
func (f *FakeServer) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func newFakeServer() *FakeServer {
	f := &FakeServer{}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

func (f *FakeServer) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" {
		if f.offline.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.URL.Path == "/api/v1/feeds/transactions/refresh" {
		f.feedCalls.Add(1)
		if f.failFeed.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":     []any{},
			"timestamp": time.Now().UnixMilli(),
		})
	case http.MethodPost, http.MethodPut:
		f.record(r)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body == nil {
			body = map[string]any{}
		}
		if r.Method == http.MethodPost {
			body["id"] = "srv-" + uuid.NewString()
		} else {
			body["id"] = r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		}
		_ = json.NewEncoder(w).Encode(body)
	case http.MethodDelete:
		f.record(r)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (f *FakeServer) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, r.Method+" "+r.URL.Path)
}

// Env is a wired application under test.
type Env struct {
	App    *app.App
	Fiber  *fiber.App
	Server *FakeServer
	Config *config.App
}

// Config returns a configuration suitable for tests against baseURL.
func Config(baseURL string) *config.App {
	return &config.App{
		Env:       "test",
		EventBus:  "memory",
		Log:       &config.Log{Format: "text"},
		DB:        &config.DB{Url: "file::memory:"},
		Redis:     &config.Redis{},
		RateLimit: &config.RateLimit{MaxRequests: 1000, Window: time.Minute},
		Throttle:  &config.Throttle{MaxRequests: 100, Window: time.Minute},
		Sync: &config.Sync{
			Interval:   15 * time.Minute,
			Batched:    true,
			BatchSize:  50,
			BatchDelay: -1,
			Policy:     "continue_on_error",
		},
		Retry:  &config.Retry{InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Millisecond, MaxAttempts: 2},
		Remote: &config.Remote{BaseURL: baseURL, HealthPath: "/health", HTTPTimeout: 2 * time.Second},
		Feed: &config.Feed{
			DailyQuota:           4,
			Window:               24 * time.Hour,
			Cooldown:             30 * time.Minute,
			ResetGrace:           30 * time.Minute,
			MaxCacheAge:          6 * time.Hour,
			ActivityWindow:       time.Hour,
			LowActivityStartHour: 0,
			LowActivityEndHour:   6,
			ScoreThreshold:       50,
			KeyPrefix:            "feed:",
		},
	}
}

// NewEnv builds the application. mutate may adjust the configuration.
func NewEnv(t *testing.T, mutate ...func(*config.App)) *Env {
	t.Helper()
	srv := newFakeServer()
	t.Cleanup(srv.Close)

	cfg := Config(srv.URL)
	for _, m := range mutate {
		m(cfg)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps, err := initializer.InitializeWithLogger(cfg, logger)
	require.NoError(t, err)
	a, err := app.New(deps, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return &Env{App: a, Fiber: webapi.SetupApp(a), Server: srv, Config: cfg}
}

// SeedPayment stores a payment with one split per participant.
func (e *Env) SeedPayment(t *testing.T, amount int64, currency string, mode domain.SplitMode, participants map[string]int64) *domain.Payment {
	t.Helper()
	at := time.Now().Add(-time.Hour)
	p := &domain.Payment{
		SyncRecord: domain.NewSyncRecord(at),
		Amount:     amount,
		Currency:   currency,
		SplitMode:  mode,
	}
	err := e.App.Deps.Uow.Do(context.Background(), func(uow repository.UnitOfWork) error {
		payments, err := uow.PaymentRepository()
		if err != nil {
			return err
		}
		if err := payments.Create(context.Background(), p); err != nil {
			return err
		}
		splits, err := uow.SplitRepository()
		if err != nil {
			return err
		}
		for id, a := range participants {
			s := &domain.Split{
				SyncRecord:    domain.NewSyncRecord(at),
				PaymentID:     p.ID,
				ParticipantID: id,
				Amount:        a,
				Currency:      currency,
			}
			if err := splits.Create(context.Background(), s); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return p
}

// MakeRequest sends a JSON request through the fiber app.
func MakeRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, 10_000)
	require.NoError(t, err)
	return resp
}

// Envelope is the decoded form of both success and problem responses.
type Envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Title   string          `json:"title"`
	Detail  string          `json:"detail"`
	Data    json.RawMessage `json:"data"`
	Errors  map[string]any  `json:"errors"`
}

// Decode reads and closes resp.Body.
func Decode(t *testing.T, resp *http.Response) Envelope {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	var env Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}
