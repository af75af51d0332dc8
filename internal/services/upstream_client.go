package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/natnael6825/ecctest/internal/config"
)

var ErrCircuitOpen = errors.New("upstream circuit breaker open")

// UpstreamError is a non-2xx answer from a backend.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream %d", e.Service, e.Status)
}

type circuitBreaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	openedAt  time.Time
	cooldown  time.Duration
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	return &circuitBreaker{threshold: threshold, cooldown: cooldown}
}

func (c *circuitBreaker) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures < c.threshold {
		return true
	}
	if time.Since(c.openedAt) > c.cooldown {
		c.failures = 0
		c.openedAt = time.Time{}
		return true
	}
	return false
}

func (c *circuitBreaker) success() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
	c.openedAt = time.Time{}
}

func (c *circuitBreaker) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.threshold {
		c.openedAt = time.Now()
	}
}

// Client talks JSON to one backend base URL. Reads go through the breaker
// and are retried; writes are sent once.
type Client struct {
	name    string
	baseURL string
	apiKey  string
	hc      *http.Client
	cb      *circuitBreaker
	retries int
	backoff time.Duration
}

func NewClient(name, baseURL string, cfg config.Config) *Client {
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: cfg.RequestTimeout},
		cb:      newCircuitBreaker(cfg.CircuitFailLimit, cfg.CircuitCooldown),
		retries: 3,
		backoff: 300 * time.Millisecond,
	}
}

// WithAPIKey returns a copy that sends key as x-api-key.
func (c *Client) WithAPIKey(key string) *Client {
	cp := *c
	cp.apiKey = key
	return &cp
}

func (c *Client) Name() string { return c.name }

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL
	if p := strings.TrimLeft(path, "/"); p != "" {
		u += "/" + p
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, token string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	return req, nil
}

// decode reads res into out, turning non-2xx answers into *UpstreamError.
func (c *Client) decode(res *http.Response, out any) error {
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &UpstreamError{Service: c.name, Status: res.StatusCode, Body: string(body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		b, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}
		if len(bytes.TrimSpace(b)) == 0 {
			b = []byte("null")
		}
		*raw = b
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: decode: %w", c.name, err)
	}
	return nil
}

func retryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Status >= 500 || ue.Status == http.StatusTooManyRequests
	}
	return true
}

// GetJSON fetches path and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, token string, out any) error {
	if !c.cb.allow() {
		return fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
	}
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		req, err := c.newRequest(ctx, http.MethodGet, path, query, nil, token)
		if err != nil {
			return err
		}
		res, err := c.hc.Do(req)
		if err == nil {
			err = c.decode(res, out)
			if err == nil {
				c.cb.success()
				return nil
			}
		}
		lastErr = err
		if !retryable(err) {
			// the backend answered; the breaker only tracks availability
			c.cb.success()
			return err
		}
		select {
		case <-ctx.Done():
			c.cb.fail()
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * c.backoff):
		}
	}
	c.cb.fail()
	return lastErr
}

// SendJSON issues a single write with a JSON body.
func (c *Client) SendJSON(ctx context.Context, method, path string, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := c.newRequest(ctx, method, path, nil, body, token)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	return c.decode(res, out)
}

// SendRaw issues a single write with a caller-built body.
func (c *Client) SendRaw(ctx context.Context, method, path, contentType string, token string, body io.Reader, out any) error {
	req, err := c.newRequest(ctx, method, path, nil, body, token)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	res, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	return c.decode(res, out)
}

// Ping reports whether the backend answers at all. Any status below 500
// counts, so a 404 on the checked path is still up.
func (c *Client) Ping(ctx context.Context, path string) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, nil, "")
	if err != nil {
		return err
	}
	res, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	res.Body.Close()
	if res.StatusCode >= 500 {
		return &UpstreamError{Service: c.name, Status: res.StatusCode}
	}
	return nil
}
