// Package helix is a small read-only client for the Twitch Helix API.
package helix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the Helix API root.
	DefaultBaseURL = "https://api.twitch.tv/helix"
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 1 << 20
)

// Config holds the app credentials and endpoints.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// APIError is a non-2xx answer from Helix or the OAuth endpoint.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("helix: status %d", e.Status)
	}

	return fmt.Sprintf("helix: status %d: %s", e.Status, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	msg := gjson.GetBytes(body, "message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}

	return &APIError{Status: status, Message: msg}
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClock overrides time.Now for token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client issues authenticated GET requests. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
	now  func() time.Time

	mu     sync.Mutex
	cached appToken
}

func New(cfg Config, log *slog.Logger, opts ...Option) (*Client, error) {
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("helix client id and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With("component", "helix"),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Get requests endpoint (relative to the base URL) and returns the parsed
// JSON body. A 401 drops the cached token and retries once.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (gjson.Result, error) {
	result, err := c.get(ctx, endpoint, query)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		c.log.Debug("App token rejected, refreshing", "endpoint", endpoint)
		c.invalidateToken()
		return c.get(ctx, endpoint, query)
	}

	return result, err
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values) (gjson.Result, error) {
	token, err := c.token(ctx)
	if err != nil {
		return gjson.Result{}, err
	}

	target := c.cfg.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("helix: create request: %w", err)
	}
	req.Header.Set("Client-Id", c.cfg.ClientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("helix: request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("helix: read %s: %w", endpoint, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return gjson.Result{}, newAPIError(resp.StatusCode, body)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("helix: %s returned invalid JSON", endpoint)
	}

	return gjson.ParseBytes(body), nil
}
