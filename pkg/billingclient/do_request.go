package billingclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type ResponseWrapper[T any] struct {
	Data T `json:"data"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	url := c.cfg.BaseURL + path

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	token, err := c.creds.Token(ctx)
	if err != nil {
		return fmt.Errorf("resolve credential: %w", err)
	}

	c.limiter.Wait(ctx)

	return c.breaker.Execute(func() error {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewBuffer(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return err
		}

		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			bodyBytes, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("api error: %s (failed to read body: %v)", resp.Status, err)
			}
			return &APIError{Status: resp.StatusCode, Message: string(bodyBytes)}
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return err
			}
		}

		return nil
	})
}

// doRequestWithRetry wraps doRequest with the retry policy. Only safe
// (idempotent) requests go through here.
func (c *Client) doRequestWithRetry(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	return c.retry.Do(ctx, true, func() error {
		return c.doRequest(ctx, method, path, body, out)
	})
}
