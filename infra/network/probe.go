// Package network reports whether the sync server is reachable.
package network

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amirasaad/splitsync/pkg/config"
)

// Probe checks reachability with a HEAD request to the server health path.
// Any answer below 500 counts as online.
type Probe struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewProbe builds a Probe from the REMOTE_ configuration section.
func NewProbe(cfg *config.Remote, logger *slog.Logger) *Probe {
	timeout := 3 * time.Second
	if cfg.HTTPTimeout > 0 && cfg.HTTPTimeout < timeout {
		timeout = cfg.HTTPTimeout
	}
	path := cfg.HealthPath
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &Probe{
		url:    strings.TrimRight(cfg.BaseURL, "/") + path,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "network_probe"),
	}
}

func (p *Probe) IsOnline(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		p.logger.Error("invalid probe url", "url", p.url, "error", err)
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("server unreachable", "url", p.url, "error", err)
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// Static is a fixed Reachability, used when no server is configured.
type Static bool

func (s Static) IsOnline(context.Context) bool { return bool(s) }
