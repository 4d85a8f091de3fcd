// Package remote is the HTTP JSON client for the sync server.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amirasaad/splitsync/pkg/config"
	"github.com/amirasaad/splitsync/pkg/domain"
)

// APIPrefix is the path prefix of every sync endpoint.
const APIPrefix = "/api/v1"

// Client talks to the sync server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client from the REMOTE_ configuration section.
func NewClient(cfg *config.Remote, logger *slog.Logger) *Client {
	timeout := 10 * time.Second
	if cfg.HTTPTimeout > 0 {
		timeout = cfg.HTTPTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.ApiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "remote"),
	}
}

// request is one API call.
type request struct {
	method  string
	path    string
	query   map[string]string
	headers map[string]string
	body    any
}

// response carries what callers need beyond the decoded body.
type response struct {
	status int
	etag   string
}

// do sends req and decodes a 2xx JSON body into out when out is non-nil.
// Transport failures, 429 and 5xx wrap domain.ErrTransient.
func (c *Client) do(ctx context.Context, req request, out any) (response, error) {
	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return response{}, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return response{}, fmt.Errorf("failed to create request: %w", err)
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}
	if len(req.query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return response{}, ctx.Err()
		}
		return response{}, fmt.Errorf("%w: %s %s: %v", domain.ErrTransient, req.method, req.path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	res := response{status: resp.StatusCode, etag: resp.Header.Get("ETag")}
	if resp.StatusCode == http.StatusNotModified {
		return res, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return res, classify(req.method, req.path, resp.StatusCode, msg)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return res, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		return res, fmt.Errorf("failed to decode response: %w", err)
	}
	return res, nil
}

// classify maps an unsuccessful status onto the domain error taxonomy.
func classify(method, path string, status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	base := fmt.Errorf("%s %s returned status %d: %s", method, path, status, detail)
	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= 500:
		return fmt.Errorf("%w: %w", domain.ErrTransient, base)
	case status == http.StatusNotFound, status == http.StatusGone:
		return fmt.Errorf("%w: %w", domain.ErrNotFound, base)
	case status == http.StatusConflict, status == http.StatusPreconditionFailed:
		return fmt.Errorf("%w: %w", domain.ErrConflict, base)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %w", domain.ErrValidation, base)
	}
	return base
}

// RefreshTransactions asks the server to pull the quota-limited bank feed
// for consumer. Its signature matches refresh.FetchFunc.
func (c *Client) RefreshTransactions(ctx context.Context, consumer string) error {
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   APIPrefix + "/feeds/transactions/refresh",
		body:   map[string]string{"consumer": consumer},
	}, nil)
	if err != nil {
		return err
	}
	c.logger.Info("transactions feed refreshed", "consumer", consumer)
	return nil
}
