package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/natnael6825/ecctest/internal/analytics"
	"github.com/natnael6825/ecctest/internal/category"
	"github.com/natnael6825/ecctest/internal/config"
	"github.com/natnael6825/ecctest/internal/models"
)

var ErrAllCategoriesFailed = errors.New("every category backend failed")

// Failure records one category branch that did not answer.
type Failure struct {
	Category category.Category
	Err      error
}

func (f Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"category": f.Category.String(), "error": f.Err.Error()})
}

// Fetched holds the per-category payloads that arrived and the branches that
// failed.
type Fetched[T any] struct {
	ByCategory map[category.Category][]T
	Failures   []Failure
}

// Missing lists the failed categories by key.
func (f Fetched[T]) Missing() []string {
	out := make([]string, 0, len(f.Failures))
	for _, fl := range f.Failures {
		out = append(out, fl.Category.String())
	}
	return out
}

// All flattens the payloads in dashboard order.
func (f Fetched[T]) All() []T {
	out := []T{}
	for _, c := range category.All() {
		out = append(out, f.ByCategory[c]...)
	}
	return out
}

type OfferSet struct {
	Partitions map[category.Category]analytics.Partition
	Failures   []Failure
}

func (s OfferSet) Missing() []string {
	return Fetched[models.Offer]{Failures: s.Failures}.Missing()
}

func (s OfferSet) All() []models.Offer {
	return analytics.Merge(s.Partitions)
}

type CategoryOffer struct {
	Category category.Category `json:"category"`
	Offer    json.RawMessage   `json:"offer"`
}

// Fetcher fans requests out to the category backends. Branches settle
// independently; a call only fails when no branch succeeds.
type Fetcher struct {
	registry *category.Registry
	clients  map[category.Category]*CategoryClient
	cache    Cache
	ttl      time.Duration
	timeout  time.Duration
	limit    int
}

func NewFetcher(cfg config.Config, registry *category.Registry, cache Cache) *Fetcher {
	f := &Fetcher{
		registry: registry,
		clients:  make(map[category.Category]*CategoryClient),
		cache:    cache,
		ttl:      cfg.CacheTTLOffers,
		timeout:  cfg.RequestTimeout,
		limit:    cfg.FanoutConcurrency,
	}
	for _, ep := range registry.Endpoints() {
		f.clients[ep.Category] = NewCategoryClient(ep, cfg)
	}
	return f
}

func (f *Fetcher) Client(c category.Category) (*CategoryClient, error) {
	cc, ok := f.clients[c]
	if !ok {
		return nil, fmt.Errorf("%w: %d", category.ErrUnknownCategory, c)
	}
	return cc, nil
}

// fanOut runs fetch once per selected category. Invalid selects all.
func fanOut[T any](ctx context.Context, f *Fetcher, sel category.Category, kind string, fetch func(context.Context, *CategoryClient) ([]T, error)) (Fetched[T], error) {
	endpoints, err := f.registry.Select(sel)
	if err != nil {
		return Fetched[T]{}, err
	}
	type branch struct {
		items []T
		err   error
	}
	results := make([]branch, len(endpoints))

	var g errgroup.Group
	if f.limit > 0 {
		g.SetLimit(f.limit)
	}
	for i, ep := range endpoints {
		i, cc := i, f.clients[ep.Category]
		g.Go(func() error {
			items, err := cachedFetch(ctx, f, kind, cc, fetch)
			results[i] = branch{items: items, err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := Fetched[T]{ByCategory: make(map[category.Category][]T, len(endpoints))}
	for i, ep := range endpoints {
		if results[i].err != nil {
			log.Printf("fanout %s: %s failed: %v", kind, ep.Category, results[i].err)
			out.Failures = append(out.Failures, Failure{Category: ep.Category, Err: results[i].err})
			continue
		}
		out.ByCategory[ep.Category] = results[i].items
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	if len(endpoints) > 0 && len(out.Failures) == len(endpoints) {
		return out, fmt.Errorf("%s: %w: %v", kind, ErrAllCategoriesFailed, out.Failures[0].Err)
	}
	return out, nil
}

// cachedFetch serves a branch from the snapshot cache when a TTL is set.
func cachedFetch[T any](ctx context.Context, f *Fetcher, kind string, cc *CategoryClient, fetch func(context.Context, *CategoryClient) ([]T, error)) ([]T, error) {
	key := fmt.Sprintf("fanout:%s:%s", kind, cc.Category())
	if f.ttl > 0 && f.cache != nil {
		if b, ok := f.cache.Get(ctx, key); ok {
			var items []T
			if err := UnmarshalCache(b, &items); err == nil {
				return items, nil
			}
		}
	}
	bctx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		bctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	items, err := fetch(bctx, cc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cc.Category(), err)
	}
	if items == nil {
		items = []T{}
	}
	if f.ttl > 0 && f.cache != nil {
		if b, err := MarshalCache(items); err == nil {
			_ = f.cache.Set(ctx, key, b, f.ttl)
		}
	}
	return items, nil
}

// FetchAllOffers returns each category's offers tagged and split by side.
func (f *Fetcher) FetchAllOffers(ctx context.Context, sel category.Category) (OfferSet, error) {
	raw, err := fanOut(ctx, f, sel, "offers", func(ctx context.Context, cc *CategoryClient) ([]models.Offer, error) {
		return cc.FetchAllOffers(ctx)
	})
	set := OfferSet{Partitions: make(map[category.Category]analytics.Partition, len(raw.ByCategory)), Failures: raw.Failures}
	for c, offers := range raw.ByCategory {
		set.Partitions[c] = analytics.Split(analytics.Tag(c, offers))
	}
	return set, err
}

// FetchAllInteractions returns every category's interactions tagged with
// their category.
func (f *Fetcher) FetchAllInteractions(ctx context.Context, sel category.Category) (Fetched[models.Interaction], error) {
	raw, err := fanOut(ctx, f, sel, "interactions", func(ctx context.Context, cc *CategoryClient) ([]models.Interaction, error) {
		return cc.FetchAllInteractions(ctx)
	})
	for c, items := range raw.ByCategory {
		raw.ByCategory[c] = analytics.TagInteractions(c, items)
	}
	return raw, err
}

func (f *Fetcher) FetchProductInteractionCounts(ctx context.Context, sel category.Category) (Fetched[models.ProductInteractionCount], error) {
	return fanOut(ctx, f, sel, "product_counts", func(ctx context.Context, cc *CategoryClient) ([]models.ProductInteractionCount, error) {
		return cc.FetchProductInteractionCounts(ctx)
	})
}

// FetchOfferByID asks every category for the offer and keeps the ones that
// answered. It is never cached.
func (f *Fetcher) FetchOfferByID(ctx context.Context, offerID string) ([]CategoryOffer, []Failure, error) {
	noCache := *f
	noCache.ttl = 0
	raw, err := fanOut(ctx, &noCache, category.Invalid, "offer", func(ctx context.Context, cc *CategoryClient) ([]json.RawMessage, error) {
		msg, err := cc.FetchOffer(ctx, offerID)
		if err != nil {
			return nil, err
		}
		return []json.RawMessage{msg}, nil
	})
	var found []CategoryOffer
	for _, c := range category.All() {
		for _, msg := range raw.ByCategory[c] {
			if isEmptyPayload(msg) {
				continue
			}
			found = append(found, CategoryOffer{Category: c, Offer: msg})
		}
	}
	if err != nil {
		return found, raw.Failures, err
	}
	if len(found) == 0 {
		return nil, raw.Failures, ErrOfferNotFound
	}
	return found, raw.Failures, nil
}

var ErrOfferNotFound = errors.New("offer not found in any category")

func isEmptyPayload(msg json.RawMessage) bool {
	switch string(bytes.TrimSpace(msg)) {
	case "", "null", "[]", "{}":
		return true
	}
	return false
}
