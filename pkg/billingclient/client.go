// Package billingclient is the HTTP client for the remote business API that
// owns invoices, sync logs and bulk invoice creation. All commands carry an
// explicit bearer credential; nothing is read from ambient process state.
package billingclient

import (
	"context"
	"net/http"
)

// CredentialProvider supplies the bearer identity attached to every command.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticCredential is a fixed API key credential.
type StaticCredential string

func (s StaticCredential) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

type Client struct {
	cfg     Config
	http    *http.Client
	creds   CredentialProvider
	retry   RetryPolicy
	cache   *Cache
	limiter *RateLimiter
	breaker CircuitBreaker
}

func NewFromEnv() *Client {
	return New(LoadFromEnv())
}

func New(cfg Config) *Client {
	return NewWithCredentials(cfg, StaticCredential(cfg.APIKey))
}

func NewWithCredentials(cfg Config, creds CredentialProvider) *Client {
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		creds: creds,
		retry: RetryPolicy{
			MaxRetries: cfg.RetryCount,
			BaseDelay:  cfg.RetryDelay,
		},
		cache:   NewCache(cfg.CacheSize, cfg.CacheTTL),
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		breaker: NewCircuitBreaker(cfg),
	}
}
