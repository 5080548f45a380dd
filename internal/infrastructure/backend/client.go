// Package backend provides the HTTP client for the hosted auth and row
// storage backend (GoTrue under /auth/v1, PostgREST under /rest/v1).
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/birimbahub/marketplace/internal/infrastructure/queue"
)

const (
	defaultTimeout = 10 * time.Second

	authPrefix = "/auth/v1"
	restPrefix = "/rest/v1"

	acceptSingleObject = "application/vnd.pgrst.object+json"
)

// Config captures the settings for talking to the backend.
type Config struct {
	URL     string
	AnonKey string
	// SiteURL is sent as redirect_to on sign-up confirmation emails.
	SiteURL string
	Timeout time.Duration
}

// Client implements ports.AuthClient, ports.RoleRepository and
// ports.ProfileRepository against the backend REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	siteURL    string
	store      SessionStore
	events     *queue.Dispatcher
	log        zerolog.Logger
	now        func() time.Time

	refreshMu sync.Mutex
}

// New creates a backend Client. Sessions are persisted in store and auth
// changes are published on events.
func New(cfg Config, store SessionStore, events *queue.Dispatcher, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if events == nil {
		events = queue.NewDispatcher(log)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		siteURL:    cfg.SiteURL,
		store:      store,
		events:     events,
		log:        log,
		now:        time.Now,
	}
}

// request describes one backend call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	accept string
	// bearer overrides the Authorization token; the anon key is used when empty.
	bearer string
}

// do performs req and decodes a 2xx JSON body into out (when non-nil). Non-2xx
// responses are returned as *APIError.
func (c *Client) do(ctx context.Context, req request, out any) error {
	reqURL := c.baseURL + req.path
	if len(req.query) > 0 {
		reqURL += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		buf, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, reqURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	bearer := req.bearer
	if bearer == "" {
		bearer = c.anonKey
	}
	httpReq.Header.Set("apikey", c.anonKey)
	httpReq.Header.Set("Authorization", "Bearer "+bearer)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	accept := req.accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Error().Err(err).Str("method", req.method).Str("path", req.path).Msg("backend request failed")
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp.StatusCode, raw)
		c.log.Debug().
			Int("status", resp.StatusCode).
			Str("path", req.path).
			Str("message", apiErr.Message).
			Msg("backend returned error")
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Ping checks that the auth service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodGet, path: authPrefix + "/health"}, nil)
}
