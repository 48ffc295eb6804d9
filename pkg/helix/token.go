package helix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultTokenURL is the OAuth endpoint for client-credentials grants.
const DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

// expirySkew renews the app token this long before Twitch says it expires.
const expirySkew = time.Minute

type appToken struct {
	value   string
	expires time.Time
}

func (t appToken) valid(now time.Time) bool {
	return t.value != "" && now.Before(t.expires)
}

// token returns a cached app token or fetches a new one.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached.valid(c.now()) {
		return c.cached.value, nil
	}

	fresh, err := c.fetchToken(ctx)
	if err != nil {
		return "", err
	}
	c.cached = fresh
	c.log.Debug("Fetched app token", "expires", fresh.expires)

	return fresh.value, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.cached = appToken{}
	c.mu.Unlock()
}

func (c *Client) fetchToken(ctx context.Context) (appToken, error) {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return appToken{}, fmt.Errorf("oauth: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return appToken{}, fmt.Errorf("oauth: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return appToken{}, fmt.Errorf("oauth: read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return appToken{}, newAPIError(resp.StatusCode, body)
	}

	result := gjson.ParseBytes(body)
	value := result.Get("access_token").String()
	if value == "" {
		return appToken{}, errors.New("oauth: response has no access_token")
	}
	ttl := time.Duration(result.Get("expires_in").Int()) * time.Second

	return appToken{value: value, expires: c.now().Add(ttl - expirySkew)}, nil
}
