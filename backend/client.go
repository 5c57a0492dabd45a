package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"comicbot/config"
	"comicbot/types"
)

// Observer receives the outcome of every backend call. Status is 0 when no
// response was received.
type Observer interface {
	ObserveRequest(op string, status int, d time.Duration)
}

// Client is a typed wrapper around the search backend's REST API
type Client struct {
	baseURL        string
	authScheme     string
	requestTimeout time.Duration
	searchTimeout  time.Duration
	httpClient     *http.Client
	observer       Observer
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithObserver reports call durations, typically to prometheus
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a new backend client.
// Per-call timeouts come from cfg; the HTTP client itself has none.
func NewClient(cfg config.BackendConfig, opts ...Option) *Client {
	scheme := cfg.AuthScheme
	if scheme == "" {
		scheme = config.DefaultAuthScheme
	}
	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		authScheme:     scheme,
		requestTimeout: cfg.RequestTimeout,
		searchTimeout:  cfg.SearchTimeout,
		httpClient:     &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping calls GET /api/ping
func (c *Client) Ping(ctx context.Context) (*Response, error) {
	return c.do(ctx, request{op: "ping", method: http.MethodGet, path: "/api/ping", timeout: c.requestTimeout})
}

// Login calls POST /api/login; a 2xx body is the token
func (c *Client) Login(ctx context.Context, creds types.Credentials) (*Response, error) {
	return c.do(ctx, request{
		op:      "login",
		method:  http.MethodPost,
		path:    "/api/login",
		payload: creds,
		timeout: c.requestTimeout,
	})
}

// TriggerUpdate calls POST /api/db/update with its own post timeout
func (c *Client) TriggerUpdate(ctx context.Context, token string, timeout time.Duration) (*Response, error) {
	return c.do(ctx, request{
		op:      "update",
		method:  http.MethodPost,
		path:    "/api/db/update",
		token:   token,
		timeout: timeout,
	})
}

// UpdateStatus calls GET /api/db/status
func (c *Client) UpdateStatus(ctx context.Context, token string) (*Response, error) {
	return c.do(ctx, request{
		op:      "status",
		method:  http.MethodGet,
		path:    "/api/db/status",
		token:   token,
		timeout: c.requestTimeout,
	})
}

// UpdateStats calls GET /api/db/stats
func (c *Client) UpdateStats(ctx context.Context, token string) (*Response, error) {
	return c.do(ctx, request{
		op:      "stats",
		method:  http.MethodGet,
		path:    "/api/db/stats",
		token:   token,
		timeout: c.requestTimeout,
	})
}

// Search calls GET /api/isearch
func (c *Client) Search(ctx context.Context, phrase string, limit int) (*Response, error) {
	q := url.Values{}
	q.Set("phrase", phrase)
	q.Set("limit", strconv.Itoa(limit))
	return c.do(ctx, request{
		op:      "isearch",
		method:  http.MethodGet,
		path:    "/api/isearch",
		query:   q,
		timeout: c.searchTimeout,
	})
}
