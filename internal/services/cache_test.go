package services

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "fanout:offers:grains", []byte(`[]`), time.Minute)
	_ = c.Set(ctx, "forever", []byte(`1`), 0)
	if _, ok := c.Get(ctx, "fanout:offers:grains"); !ok {
		t.Fatal("fresh entry should be served")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, "fanout:offers:grains"); ok {
		t.Fatal("expired entry should be dropped")
	}
	if _, ok := c.Get(ctx, "forever"); !ok {
		t.Fatal("zero ttl means no expiry")
	}

	_ = c.Delete(ctx, "forever")
	if _, ok := c.Get(ctx, "forever"); ok {
		t.Fatal("deleted entry should be gone")
	}
	if NewCache(nil).Backend() != "memory" {
		t.Fatal("nil client should fall back to memory")
	}
}
