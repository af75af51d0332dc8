package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient("test", srv.URL+"/api/x/", testConfig())
	c.backoff = time.Millisecond
	return c
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})
	var out map[string]bool
	if err := c.GetJSON(context.Background(), "thing", nil, "", &out); err != nil {
		t.Fatal(err)
	}
	if !out["ok"] || calls.Load() != 3 {
		t.Fatalf("out=%v calls=%d", out, calls.Load())
	}
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusBadRequest)
	})
	err := c.GetJSON(context.Background(), "thing", nil, "", nil)
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusBadRequest || !strings.Contains(ue.Body, "nope") {
		t.Fatalf("expected upstream 400, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	})
	for i := 0; i < 3; i++ {
		_ = c.GetJSON(context.Background(), "thing", nil, "", nil)
	}
	before := calls.Load()
	err := c.GetJSON(context.Background(), "thing", nil, "", nil)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if calls.Load() != before {
		t.Fatal("open breaker must not reach the backend")
	}
}

func TestRequestHeadersAndPaths(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/x/fetchPropertyValue" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("productId") != "3" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("x-api-key"); got != "k" {
			t.Errorf("api key = %q", got)
		}
		w.Write([]byte(`[1,2]`))
	}).WithAPIKey("k")
	var raw json.RawMessage
	if err := c.GetJSON(context.Background(), "/fetchPropertyValue", map[string][]string{"productId": {"3"}}, "tok", &raw); err != nil {
		t.Fatal(err)
	}
	if string(raw) != "[1,2]" {
		t.Fatalf("raw = %s", raw)
	}
}

func TestSendJSONIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		b, _ := io.ReadAll(r.Body)
		if r.Header.Get("Content-Type") != "application/json" || !strings.Contains(string(b), `"title":"x"`) {
			t.Errorf("unexpected body %s", b)
		}
		http.Error(w, "fail", http.StatusInternalServerError)
	})
	err := c.SendJSON(context.Background(), http.MethodPost, "createpost", "", map[string]string{"title": "x"}, nil)
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusInternalServerError {
		t.Fatalf("expected upstream 500, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("writes must not be retried, calls = %d", calls.Load())
	}
}
