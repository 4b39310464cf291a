package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jpillora/backoff"
)

// StatusError is a non-2xx reply from the REST API.
type StatusError struct {
	Code    int
	Message string // venue message from an ["error", code, msg] body, if any
	Body    []byte
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("bitfinex rest %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("bitfinex rest %d: %s", e.Code, http.StatusText(e.Code))
}

// Temporary reports whether repeating the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

func newStatusError(code int, body []byte) *StatusError {
	se := &StatusError{Code: code, Body: body}

	var reply []json.RawMessage
	if json.Unmarshal(body, &reply) == nil && len(reply) >= 3 {
		var kind, msg string
		if json.Unmarshal(reply[0], &kind) == nil && kind == "error" {
			if json.Unmarshal(reply[2], &msg) == nil {
				se.Message = msg
			}
		}
	}
	return se
}

// fetch performs one GET and returns the raw body.
func (c *Client) fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.root + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, newStatusError(resp.StatusCode, body)
	}
	return body, nil
}

// fetchRetrying repeats fetch on temporary failures per the retry policy.
func (c *Client) fetchRetrying(ctx context.Context, path string, query url.Values) ([]byte, error) {
	b := &backoff.Backoff{Min: c.retry.Min, Max: c.retry.Max, Jitter: true}

	for {
		body, err := c.fetch(ctx, path, query)
		if err == nil {
			return body, nil
		}

		var se *StatusError
		if !errors.As(err, &se) || !se.Temporary() {
			return nil, err
		}
		if int(b.Attempt()) >= c.retry.Attempts {
			return nil, fmt.Errorf("gave up after %d attempts: %w", int(b.Attempt())+1, err)
		}

		wait := b.Duration()
		c.logger.Debug("rest request throttled",
			"path", path,
			"status", se.Code,
			"retry", int(b.Attempt()),
			"wait", wait,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// get fetches path and decodes the JSON reply into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.fetchRetrying(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
