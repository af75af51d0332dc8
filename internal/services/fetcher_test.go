package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/natnael6825/ecctest/internal/analytics"
	"github.com/natnael6825/ecctest/internal/category"
	"github.com/natnael6825/ecctest/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		RequestTimeout:    2 * time.Second,
		CircuitFailLimit:  3,
		CircuitCooldown:   time.Minute,
		FanoutConcurrency: 9,
	}
}

func newTestFetcher(t *testing.T, cfg config.Config, h http.HandlerFunc) (*Fetcher, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	f := NewFetcher(cfg, category.NewRegistry(srv.URL, nil, nil), NewMemoryCache())
	for _, cc := range f.clients {
		cc.c.backoff = time.Millisecond
	}
	return f, srv
}

func segmentOf(r *http.Request) string {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/"), "/")
	return parts[0]
}

func TestFetchAllOffersSettlesPerCategory(t *testing.T) {
	f, _ := newTestFetcher(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		switch segmentOf(r) {
		case category.Fruits.PathSegment():
			http.Error(w, "down", http.StatusBadGateway)
		case category.Grains.PathSegment():
			w.Write([]byte(`[{"id":1,"product_name":"Teff","offer_type":"sell","quantity":2,"measurement":"quintal","createdAt":"2024-03-01T00:00:00Z"},
				{"id":2,"product_name":"Teff","offer_type":"Buy","quantity":1,"measurement":"bag","createdAt":"2024-03-15T00:00:00Z"}]`))
		default:
			w.Write([]byte(`[]`))
		}
	})

	set, err := f.FetchAllOffers(context.Background(), category.Invalid)
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if missing := set.Missing(); len(missing) != 1 || missing[0] != "fruits" {
		t.Fatalf("missing = %v", missing)
	}
	grains := set.Partitions[category.Grains]
	if len(grains.Sell) != 1 || len(grains.Buy) != 1 || len(grains.Total) != 2 {
		t.Fatalf("grains partition = %+v", grains)
	}
	if grains.Total[0].Category != category.Grains {
		t.Fatalf("expected offers tagged with grains, got %v", grains.Total[0].Category)
	}
	if _, ok := set.Partitions[category.Fruits]; ok {
		t.Fatal("failed category must not have a partition")
	}
	if n := len(set.All()); n != 2 {
		t.Fatalf("merged offers = %d", n)
	}
}

func TestFetchAllOffersFailsWhenEveryCategoryFails(t *testing.T) {
	f, _ := newTestFetcher(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	set, err := f.FetchAllOffers(context.Background(), category.Invalid)
	if !errors.Is(err, ErrAllCategoriesFailed) {
		t.Fatalf("expected ErrAllCategoriesFailed, got %v", err)
	}
	if len(set.Failures) != 9 {
		t.Fatalf("failures = %d", len(set.Failures))
	}
}

func TestFetchSingleCategory(t *testing.T) {
	var hits atomic.Int32
	f, _ := newTestFetcher(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if segmentOf(r) != category.Coffee.PathSegment() || !strings.HasSuffix(r.URL.Path, "/fetchAllInteraction") {
			t.Errorf("unexpected request %s", r.URL.Path)
		}
		w.Write([]byte(`[{"id":5,"offerId":1,"viewer_chat_id":"77","createdAt":"2024-03-03T00:00:00Z","offer":{"id":1,"createdAt":"2024-03-01T00:00:00Z"}}]`))
	})
	got, err := f.FetchAllInteractions(context.Background(), category.Coffee)
	if err != nil {
		t.Fatal(err)
	}
	list := got.All()
	if len(list) != 1 || list[0].Category != category.Coffee || list[0].Offer.Category != category.Coffee {
		t.Fatalf("interactions = %+v", list)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d", hits.Load())
	}
	if _, err := f.FetchAllInteractions(context.Background(), category.Category(99)); !errors.Is(err, category.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestFetcherSnapshotCache(t *testing.T) {
	var hits atomic.Int32
	cfg := testConfig()
	cfg.CacheTTLOffers = time.Minute
	f, _ := newTestFetcher(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`[{"product_name":"Teff","interactionCount":"4"}]`))
	})
	for i := 0; i < 2; i++ {
		got, err := f.FetchProductInteractionCounts(context.Background(), category.Pulses)
		if err != nil {
			t.Fatal(err)
		}
		counts := got.ByCategory[category.Pulses]
		if len(counts) != 1 || counts[0].InteractionCount.Float() != 4 {
			t.Fatalf("counts = %+v", counts)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("expected the second call to be served from cache, hits = %d", hits.Load())
	}
}

func TestSnapshotCacheKeepsSubSecondTimestamps(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		if segmentOf(r) != category.Grains.PathSegment() {
			w.Write([]byte(`[]`))
			return
		}
		if strings.HasSuffix(r.URL.Path, "/fetchAllOffers") {
			w.Write([]byte(`[{"id":1,"product_name":"Teff","offer_type":"sell","quantity":1,"measurement":"quintal","createdAt":"2024-03-01T10:00:00.750Z"}]`))
			return
		}
		w.Write([]byte(`[{"id":3,"offerId":1,"viewer_chat_id":"9","createdAt":"2024-03-01T10:00:01.250Z"}]`))
	}
	gaps := func(f *Fetcher) []analytics.Gap {
		offers, err := f.FetchAllOffers(context.Background(), category.Grains)
		if err != nil {
			t.Fatal(err)
		}
		interactions, err := f.FetchAllInteractions(context.Background(), category.Grains)
		if err != nil {
			t.Fatal(err)
		}
		return analytics.FirstViewGaps(offers.All(), interactions.All())
	}

	direct, _ := newTestFetcher(t, testConfig(), handler)
	want := gaps(direct)

	cfg := testConfig()
	cfg.CacheTTLOffers = time.Minute
	cached, _ := newTestFetcher(t, cfg, handler)
	gaps(cached)
	got := gaps(cached)

	if len(want) != 1 || len(got) != 1 {
		t.Fatalf("gaps: direct=%d cached=%d", len(want), len(got))
	}
	if !got[0].OfferCreated.Equal(want[0].OfferCreated) || !got[0].FirstView.Equal(want[0].FirstView) {
		t.Fatalf("cached timestamps differ: %v/%v vs %v/%v", got[0].OfferCreated, got[0].FirstView, want[0].OfferCreated, want[0].FirstView)
	}
	if got[0].Days != want[0].Days || got[0].Parts != want[0].Parts {
		t.Fatalf("cached gap %+v differs from direct %+v", got[0], want[0])
	}
}

func TestFetcherHonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	f, _ := newTestFetcher(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := f.FetchAllOffers(ctx, category.Invalid)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("fan-out did not stop when the caller gave up")
	}
}

func TestFetchOfferByID(t *testing.T) {
	f, _ := newTestFetcher(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offerId") != "42" {
			t.Errorf("offerId = %q", r.URL.Query().Get("offerId"))
		}
		switch segmentOf(r) {
		case category.Spices.PathSegment():
			w.Write([]byte(`{"id":42,"product_name":"Ginger"}`))
		case category.Fruits.PathSegment():
			http.Error(w, "missing", http.StatusNotFound)
		default:
			w.Write([]byte(`null`))
		}
	})
	found, failures, err := f.FetchOfferByID(context.Background(), "42")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Category != category.Spices {
		t.Fatalf("found = %+v", found)
	}
	if len(failures) != 1 || failures[0].Category != category.Fruits {
		t.Fatalf("failures = %+v", failures)
	}
}

func TestFetchOfferByIDNotFound(t *testing.T) {
	f, _ := newTestFetcher(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	if _, _, err := f.FetchOfferByID(context.Background(), "1"); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("expected ErrOfferNotFound, got %v", err)
	}
}
