// Package authclient fetches and caches the bearer identity attached to
// billing API commands. The credential is always passed explicitly at the
// call boundary; nothing downstream reads ambient session state.
package authclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type Client struct {
	cfg  Config
	http *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewFromEnv() *Client {
	return New(LoadFromEnv())
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// expirySlack refreshes the token slightly before the server-side expiry so
// in-flight commands never carry a token about to lapse.
const expirySlack = 30 * time.Second

// Token returns a valid bearer token, fetching a fresh one via the
// client-credentials grant when the cached token has expired. Implements the
// billing client's CredentialProvider.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c == nil {
		return "", fmt.Errorf("auth client not configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiresAt.Add(-expirySlack)) {
		return c.token, nil
	}

	token, expiresIn, err := c.clientCredentialsToken(ctx)
	if err != nil {
		return "", err
	}

	c.token = token
	c.expiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
	return token, nil
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *Client) clientCredentialsToken(ctx context.Context) (string, int, error) {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if base == "" {
		return "", 0, fmt.Errorf("auth service url missing")
	}
	clientID := strings.TrimSpace(c.cfg.ClientID)
	clientSecret := strings.TrimSpace(c.cfg.ClientSecret)
	if clientID == "" || clientSecret == "" {
		return "", 0, fmt.Errorf("auth service client credentials missing")
	}
	scope := strings.TrimSpace(c.cfg.ClientScope)
	if scope == "" {
		scope = "billing"
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", scope)
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)

	tokenURL := fmt.Sprintf("%s/token", base)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.cfg.TenantSlug != "" {
		req.Header.Set("X-Tenant-ID", c.cfg.TenantSlug)
	}
	req.SetBasicAuth(clientID, clientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, fmt.Errorf("token request error (%d): %s", resp.StatusCode, string(raw))
	}

	var out tokenResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		if out.Error != "" {
			return "", 0, fmt.Errorf("token error: %s", out.ErrorDescription)
		}
		return "", 0, fmt.Errorf("token response missing access_token")
	}
	return out.AccessToken, out.ExpiresIn, nil
}
