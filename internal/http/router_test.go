package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/natnael6825/ecctest/internal/config"
	"github.com/natnael6825/ecctest/internal/services"
	"github.com/natnael6825/ecctest/internal/session"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestLimiterPerClient(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newLimiter(60, 2)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow("a") {
		t.Fatal("third request inside the burst window should be refused")
	}
	if !l.Allow("b") {
		t.Fatal("other clients have their own bucket")
	}
	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Fatal("one token refills per second at 60/min")
	}

	now = now.Add(10 * time.Minute)
	l.sweep(5 * time.Minute)
	if len(l.visitors) != 0 {
		t.Fatalf("idle visitors should be swept, %d left", len(l.visitors))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := withRateLimit(ctx, 1, 1, newProxies(nil).clientIP)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("Retry-After = %q", got)
	}
}

func TestCORS(t *testing.T) {
	h := withCORS([]string{"https://dash.example.com/"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://dash.example.com" {
		t.Fatalf("allow origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("listed origins get credentials")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unlisted origin must not be allowed")
	}

	rec = httptest.NewRecorder()
	withCORS([]string{"*"})(okHandler()).ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("wildcard should allow every origin")
	}
}

func TestRecovery(t *testing.T) {
	h := withRecovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	h := withRequestID(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, err := uuid.Parse(rec.Header().Get("X-Request-ID")); err != nil {
		t.Fatalf("expected a generated uuid, got %q", rec.Header().Get("X-Request-ID"))
	}

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", id)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != id {
		t.Fatal("a valid incoming request id is kept")
	}
}

func TestCleanupLoopStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newLimiter(60, 1).cleanupLoop(ctx, time.Hour, time.Hour)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop kept running after cancel")
	}
}

func TestClientIPIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	if got := newProxies(nil).clientIP(req); got != "192.0.2.1" {
		t.Fatalf("clientIP = %q", got)
	}
	if got := newProxies([]string{"10.0.0.0/8"}).clientIP(req); got != "192.0.2.1" {
		t.Fatalf("clientIP from a peer outside the trusted range = %q", got)
	}
}

func TestClientIPBehindTrustedProxy(t *testing.T) {
	p := newProxies([]string{"10.0.0.0/8", "192.0.2.10", "not-an-ip"})
	if len(p.trusted) != 2 {
		t.Fatalf("trusted = %v", p.trusted)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	if got := p.clientIP(req); got != "203.0.113.7" {
		t.Fatalf("clientIP = %q", got)
	}

	// A client can prepend anything; only the hops added by our proxies count.
	req.Header.Set("X-Forwarded-For", "1.1.1.1, 203.0.113.7, 192.0.2.10")
	if got := p.clientIP(req); got != "203.0.113.7" {
		t.Fatalf("clientIP with spoofed entries = %q", got)
	}

	req.Header.Del("X-Forwarded-For")
	if got := p.clientIP(req); got != "10.1.2.3" {
		t.Fatalf("clientIP without header = %q", got)
	}
}

func TestRateLimitKeysOnResolvedClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := withRateLimit(ctx, 1, 1, newProxies(nil).clientIP)(okHandler())

	for i, xff := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		want := http.StatusOK
		if i > 0 {
			want = http.StatusTooManyRequests
		}
		if rec.Code != want {
			t.Fatalf("request %d with XFF %s: status = %d, want %d", i, xff, rec.Code, want)
		}
	}
}

func TestRouterProtectsAdminRoutes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected upstream call %s", r.URL.Path)
	}))
	defer upstream.Close()

	cfg := config.Config{
		UpstreamBaseURL: upstream.URL,
		AdminBaseURL:    upstream.URL + "/api/Admin",
		RequestTimeout:  time.Second,
		RateLimitPerMin: 600,
		JWTSecret:       "test-secret",
		SessionTTL:      time.Hour,
		AllowedOrigins:  []string{"*"},
		Location:        time.UTC,
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewRouter(ctx, cfg, services.NewMemoryCache(), session.NewMemoryStore(), session.NewMemoryLockout(5, 15*time.Minute))

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/posts"},
		{http.MethodPost, "/api/v1/categories/grains/offers"},
		{http.MethodPost, "/api/v1/uploads"},
		{http.MethodGet, "/api/v1/exchange-rates"},
		{http.MethodGet, "/api/v1/analytics/summary"},
		{http.MethodGet, "/api/v1/analytics/top-users"},
		{http.MethodGet, "/api/v1/analytics/gaps"},
		{http.MethodGet, "/api/v1/offers/1"},
		{http.MethodGet, "/api/v1/offers"},
		{http.MethodGet, "/api/v1/categories/grains/products"},
		{http.MethodPost, "/api/v1/categories/grains/products"},
		{http.MethodPut, "/api/v1/categories/grains/products/3"},
		{http.MethodDelete, "/api/v1/categories/grains/products/3"},
		{http.MethodPost, "/api/v1/categories/grains/properties"},
		{http.MethodPut, "/api/v1/categories/grains/property-values/9"},
		{http.MethodGet, "/api/v1/product-values"},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d", tc.method, tc.path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route status = %d", rec.Code)
	}
}
