package session

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

func TestIssueAndVerify(t *testing.T) {
	iss := NewIssuer("test-secret", time.Hour)
	tok, claims, err := iss.Issue("hana@example.com")
	if err != nil {
		t.Fatal(err)
	}
	got, err := iss.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if got.Subject != "hana@example.com" || got.ID != claims.ID {
		t.Fatalf("claims = %+v", got)
	}
	if got.ExpiresAt.Sub(got.IssuedAt.Time) != time.Hour {
		t.Fatalf("ttl = %v", got.ExpiresAt.Sub(got.IssuedAt.Time))
	}
}

func TestVerifyRejects(t *testing.T) {
	iss := NewIssuer("test-secret", time.Hour)
	tok, _, _ := iss.Issue("hana@example.com")

	if _, err := NewIssuer("other", time.Hour).Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign secret: %v", err)
	}

	late := NewIssuer("test-secret", time.Hour)
	late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := late.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: %v", err)
	}

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x", "jti": "y", "exp": time.Now().Add(time.Hour).Unix()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := iss.Verify(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("alg none: %v", err)
	}
	if _, err := iss.Verify(strings.Repeat("a", 20)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage: %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Now()
	m.now = func() time.Time { return now }
	if err := m.Save(ctx, "id", Session{Email: "a@b.co", UpstreamToken: "up"}, time.Minute); err != nil {
		t.Fatal(err)
	}
	s, err := m.Load(ctx, "id")
	if err != nil || s.UpstreamToken != "up" {
		t.Fatalf("load = %+v %v", s, err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := m.Load(ctx, "id"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected expiry, got %v", err)
	}
	_ = m.Save(ctx, "id2", Session{}, 0)
	_ = m.Delete(ctx, "id2")
	if _, err := m.Load(ctx, "id2"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected delete, got %v", err)
	}
}

func exerciseLockout(t *testing.T, l Lockout, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()
	email := "Hana@Example.com"
	for i := 1; i < l.Attempts(); i++ {
		n, err := l.Fail(ctx, email)
		if err != nil || n != i {
			t.Fatalf("attempt %d: n=%d err=%v", i, n, err)
		}
		if err := l.Check(ctx, email); err != nil {
			t.Fatalf("locked too early: %v", err)
		}
	}
	_, err := l.Fail(ctx, email)
	var le *LockedError
	if !errors.As(err, &le) || !errors.Is(err, ErrLocked) {
		t.Fatalf("expected lock, got %v", err)
	}
	if err := l.Check(ctx, "hana@example.com"); !errors.Is(err, ErrLocked) {
		t.Fatalf("check should be locked, got %v", err)
	}
	if advance == nil {
		return
	}
	advance(16 * time.Minute)
	if err := l.Check(ctx, email); err != nil {
		t.Fatalf("lock should expire, got %v", err)
	}
}

func TestMemoryLockout(t *testing.T) {
	m := NewMemoryLockout(5, 15*time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }
	exerciseLockout(t, m, func(d time.Duration) { now = now.Add(d) })

	ctx := context.Background()
	_, _ = m.Fail(ctx, "x@example.com")
	_, _ = m.Fail(ctx, "x@example.com")
	_ = m.Reset(ctx, "x@example.com")
	if n, _ := m.Fail(ctx, "x@example.com"); n != 1 {
		t.Fatalf("reset should clear the counter, n=%d", n)
	}
}

func TestMemoryLockoutWindowRestartsCount(t *testing.T) {
	m := NewMemoryLockout(3, time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()
	_, _ = m.Fail(ctx, "a@b.co")
	_, _ = m.Fail(ctx, "a@b.co")
	now = now.Add(2 * time.Minute)
	if n, err := m.Fail(ctx, "a@b.co"); n != 1 || err != nil {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestRedisLockout(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatal(err)
	}
	client := redis.NewClient(opt)
	t.Cleanup(func() { client.Close() })
	l := NewLockout(client, 5, 15*time.Minute)
	_ = l.Reset(context.Background(), "hana@example.com")
	exerciseLockout(t, l, nil)
	_ = l.Reset(context.Background(), "hana@example.com")
}
