package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/natnael6825/ecctest/internal/analytics"
	"github.com/natnael6825/ecctest/internal/category"
	"github.com/natnael6825/ecctest/internal/models"
	"github.com/natnael6825/ecctest/internal/services"
	"github.com/natnael6825/ecctest/internal/validate"
)

type dataset struct {
	offers       services.OfferSet
	interactions services.Fetched[models.Interaction]
	missing      []string
}

// load fetches offers and, when asked, interactions for the selection. Both
// fan-outs run at once.
func (a *API) load(ctx context.Context, sel category.Category, withInteractions bool) (dataset, error) {
	var ds dataset
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ds.offers, err = a.fetcher.FetchAllOffers(gctx, sel)
		return err
	})
	if withInteractions {
		g.Go(func() error {
			var err error
			ds.interactions, err = a.fetcher.FetchAllInteractions(gctx, sel)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return ds, err
	}
	ds.missing = mergeMissing(ds.offers.Missing(), ds.interactions.Missing())
	return ds, nil
}

type seriesQuery struct {
	category    category.Category
	granularity analytics.Granularity
	from, to    string
}

func parseSeriesQuery(r *http.Request) (seriesQuery, error) {
	q := r.URL.Query()
	sel, err := categoryParam(r)
	if err != nil {
		return seriesQuery{}, err
	}
	g, err := analytics.ParseGranularity(q.Get("granularity"))
	if err != nil {
		return seriesQuery{}, err
	}
	return seriesQuery{category: sel, granularity: g, from: strings.TrimSpace(q.Get("from")), to: strings.TrimSpace(q.Get("to"))}, nil
}

// bounds resolves from/to against buckets. Each may be an index or a bucket
// label; missing ends default to the first and last bucket. ok is false when
// no window was asked for.
func (q seriesQuery) bounds(buckets analytics.Buckets) (from, to int, ok bool, err error) {
	if q.from == "" && q.to == "" {
		return 0, 0, false, nil
	}
	from, to = 0, len(buckets)-1
	if q.from != "" {
		if from, err = resolveBound(q.from, buckets); err != nil {
			return 0, 0, false, err
		}
	}
	if q.to != "" {
		if to, err = resolveBound(q.to, buckets); err != nil {
			return 0, 0, false, err
		}
	}
	return from, to, true, nil
}

func resolveBound(v string, buckets analytics.Buckets) (int, error) {
	if i, err := strconv.Atoi(v); err == nil {
		return i, nil
	}
	if i := buckets.Index(v); i >= 0 {
		return i, nil
	}
	return 0, fmt.Errorf("%w: no bucket %q", analytics.ErrInvalidWindow, v)
}

type summaryResponse struct {
	TsISO                   string                   `json:"tsISO"`
	Category                string                   `json:"category"`
	Offers                  offerCounts              `json:"offers"`
	QuantityQuintals        sideQuantities           `json:"quantity_quintals"`
	ByCategory              []categorySummary        `json:"by_category"`
	Interactions            int                      `json:"interactions"`
	AvgFirstViewDays        *float64                 `json:"avg_first_view_days"`
	AvgDailyInteractionRate float64                  `json:"avg_daily_interaction_rate"`
	InteractionsPerOffer    analytics.PosterAverages `json:"interactions_per_offer"`
	DataMissing             []string                 `json:"data_missing"`
}

type offerCounts struct {
	Buy     int `json:"buy"`
	Sell    int `json:"sell"`
	Total   int `json:"total"`
	Skipped int `json:"skipped"`
}

type sideQuantities struct {
	Buy  float64 `json:"buy"`
	Sell float64 `json:"sell"`
}

type categorySummary struct {
	Category    category.Category `json:"category"`
	DisplayName string            `json:"display_name"`
	Offers      offerCounts       `json:"offers"`
}

func countsOf(p analytics.Partition) offerCounts {
	return offerCounts{Buy: len(p.Buy), Sell: len(p.Sell), Total: len(p.Total), Skipped: p.Skipped}
}

func (a *API) Summary(w http.ResponseWriter, r *http.Request) {
	sel, err := categoryParam(r)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	ds, err := a.load(r.Context(), sel, true)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	offers := ds.offers.All()
	interactions := ds.interactions.All()

	resp := summaryResponse{
		TsISO:       a.nowISO(),
		Category:    "all",
		ByCategory:  []categorySummary{},
		DataMissing: ds.missing,
	}
	if sel.Valid() {
		resp.Category = sel.String()
	}
	for _, c := range category.All() {
		p, ok := ds.offers.Partitions[c]
		if !ok {
			continue
		}
		cs := countsOf(p)
		resp.ByCategory = append(resp.ByCategory, categorySummary{Category: c, DisplayName: c.DisplayName(), Offers: cs})
		resp.Offers.Buy += cs.Buy
		resp.Offers.Sell += cs.Sell
		resp.Offers.Total += cs.Total
		resp.Offers.Skipped += cs.Skipped
	}
	for _, c := range analytics.ConvertOffers(offers) {
		switch c.Side() {
		case models.SideBuy:
			resp.QuantityQuintals.Buy += c.QuantityQuintals
		case models.SideSell:
			resp.QuantityQuintals.Sell += c.QuantityQuintals
		}
	}
	resp.QuantityQuintals.Buy = analytics.Round2(resp.QuantityQuintals.Buy)
	resp.QuantityQuintals.Sell = analytics.Round2(resp.QuantityQuintals.Sell)
	resp.Interactions = len(interactions)
	if avg, ok := analytics.AverageGapDays(analytics.FirstViewGaps(offers, interactions)); ok {
		avg = analytics.Round2(avg)
		resp.AvgFirstViewDays = &avg
	}
	resp.AvgDailyInteractionRate = analytics.Round2(analytics.AverageDailyInteractionRate(offers, interactions, a.now()))
	resp.InteractionsPerOffer = analytics.AverageInteractionsPerOffer(offers, interactions, a.cfg.InteractionsSince)
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) OfferTrend(w http.ResponseWriter, r *http.Request) {
	q, err := parseSeriesQuery(r)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	measure, err := analytics.ParseMeasure(r.URL.Query().Get("measure"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ds, err := a.load(r.Context(), q.category, false)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	trend := analytics.BuildOfferTrend(ds.offers.All(), q.granularity, measure, a.cfg.Location)
	if from, to, ok, err := q.bounds(trend.Buckets); err != nil {
		writeUpstreamError(w, err, 0)
		return
	} else if ok {
		if trend, err = trend.Window(from, to); err != nil {
			writeUpstreamError(w, err, 0)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tsISO":        a.nowISO(),
		"granularity":  trend.Granularity,
		"measure":      trend.Measure,
		"labels":       trend.Buckets.Labels(),
		"buckets":      trend.Buckets,
		"products":     trend.Products,
		"data_missing": ds.missing,
	})
}

func (a *API) ViewTrend(w http.ResponseWriter, r *http.Request) {
	q, err := parseSeriesQuery(r)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	interactions, err := a.fetcher.FetchAllInteractions(r.Context(), q.category)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	series := analytics.Count(interactions.All(), analytics.InteractionTime, q.granularity, a.cfg.Location)
	if from, to, ok, err := q.bounds(series.Buckets); err != nil {
		writeUpstreamError(w, err, 0)
		return
	} else if ok {
		if series, err = series.Window(from, to); err != nil {
			writeUpstreamError(w, err, 0)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tsISO":        a.nowISO(),
		"granularity":  series.Granularity,
		"labels":       series.Buckets.Labels(),
		"series":       series,
		"data_missing": interactions.Missing(),
	})
}

func (a *API) RatioTrend(w http.ResponseWriter, r *http.Request) {
	q, err := parseSeriesQuery(r)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	ds, err := a.load(r.Context(), q.category, true)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	points := analytics.ViewPostRatioTrend(ds.offers.All(), ds.interactions.All(), q.granularity, a.cfg.Location)
	buckets := make(analytics.Buckets, len(points))
	for i, p := range points {
		buckets[i] = p.Bucket
	}
	if from, to, ok, err := q.bounds(buckets); err != nil {
		writeUpstreamError(w, err, 0)
		return
	} else if ok {
		if points, err = analytics.Window(points, from, to); err != nil {
			writeUpstreamError(w, err, 0)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tsISO":        a.nowISO(),
		"granularity":  q.granularity,
		"points":       points,
		"data_missing": ds.missing,
	})
}

// ProductRatios relates per-product post counts to the view counts the
// backends report per product.
func (a *API) ProductRatios(w http.ResponseWriter, r *http.Request) {
	sel, err := categoryParam(r)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	var (
		offers services.OfferSet
		counts services.Fetched[models.ProductInteractionCount]
	)
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		offers, err = a.fetcher.FetchAllOffers(gctx, sel)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = a.fetcher.FetchProductInteractionCounts(gctx, sel)
		return err
	})
	if err := g.Wait(); err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	ratios := analytics.ProductViewRatios(analytics.PostCountsByProduct(offers.All()), analytics.ViewCountsByProduct(counts.All()))
	writeJSON(w, http.StatusOK, map[string]any{
		"tsISO":        a.nowISO(),
		"products":     ratios,
		"data_missing": mergeMissing(offers.Missing(), counts.Missing()),
	})
}

// gapFilter narrows the offers whose first-view gap is reported. Dates are
// the offer's UTC creation day and both ends are inclusive.
type gapFilter struct {
	product  string
	poster   string
	from, to string
}

func parseGapFilter(r *http.Request) (gapFilter, []validate.FieldError) {
	q := r.URL.Query()
	f := gapFilter{
		product: strings.TrimSpace(q.Get("product")),
		poster:  strings.ToLower(strings.TrimSpace(q.Get("poster"))),
		from:    strings.TrimSpace(q.Get("from")),
		to:      strings.TrimSpace(q.Get("to")),
	}
	var errs []validate.FieldError
	switch f.poster {
	case "", "all":
		f.poster = ""
	case models.PosterAdmin, models.PosterUser:
	default:
		errs = append(errs, validate.FieldError{Field: "poster", Description: "poster must be admin or user"})
	}
	for name, v := range map[string]string{"from": f.from, "to": f.to} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, v); err != nil {
			errs = append(errs, validate.FieldError{Field: name, Description: name + " must be a date like 2006-01-02"})
		}
	}
	return f, errs
}

func (f gapFilter) keep(o models.Offer) bool {
	if f.product != "" && !strings.EqualFold(strings.TrimSpace(o.ProductName), f.product) {
		return false
	}
	if f.poster != "" {
		admin := strings.EqualFold(strings.TrimSpace(o.Poster), models.PosterAdmin)
		if admin != (f.poster == models.PosterAdmin) {
			return false
		}
	}
	if f.from != "" || f.to != "" {
		if o.CreatedAt.IsZero() {
			return false
		}
		day := o.CreatedAt.UTC().Format(time.DateOnly)
		if (f.from != "" && day < f.from) || (f.to != "" && day > f.to) {
			return false
		}
	}
	return true
}

func (f gapFilter) apply(offers []models.Offer) []models.Offer {
	if f == (gapFilter{}) {
		return offers
	}
	out := make([]models.Offer, 0, len(offers))
	for _, o := range offers {
		if f.keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// Gaps reports the time to first view per offer. Offers can be narrowed by
// product, poster (admin or user) and a from/to creation date.
func (a *API) Gaps(w http.ResponseWriter, r *http.Request) {
	sel, err := categoryParam(r)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	f, errs := parseGapFilter(r)
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	ds, err := a.load(r.Context(), sel, true)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	gaps := analytics.FirstViewGaps(f.apply(ds.offers.All()), ds.interactions.All())
	var avg *float64
	if v, ok := analytics.AverageGapDays(gaps); ok {
		v = analytics.Round2(v)
		avg = &v
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tsISO":        a.nowISO(),
		"gaps":         gaps,
		"average_days": avg,
		"data_missing": ds.missing,
	})
}

// TopUsers ranks posters (by=posts) or viewers (by=views) and resolves their
// names through the user service.
func (a *API) TopUsers(w http.ResponseWriter, r *http.Request) {
	sel, err := categoryParam(r)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	limit := parseIntParam(r.URL.Query().Get("limit"), analytics.DefaultTopUsers, 1, 100)
	by := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("by")))

	var counts *analytics.Counts
	var missing []string
	switch by {
	case "", "posts":
		by = "posts"
		offers, err := a.fetcher.FetchAllOffers(r.Context(), sel)
		if err != nil {
			writeUpstreamError(w, err, 0)
			return
		}
		counts, missing = analytics.CountPostsByUser(offers.All()), offers.Missing()
	case "views":
		interactions, err := a.fetcher.FetchAllInteractions(r.Context(), sel)
		if err != nil {
			writeUpstreamError(w, err, 0)
			return
		}
		counts, missing = analytics.CountViewsByUser(interactions.All()), interactions.Missing()
	default:
		writeError(w, http.StatusBadRequest, "by must be posts or views")
		return
	}

	top := analytics.TopUsers(counts, limit, a.cfg.ExcludedChatIDs)
	top = analytics.ResolveNames(r.Context(), a.users, top, a.cfg.LookupConcurrency)
	writeJSON(w, http.StatusOK, map[string]any{
		"tsISO":        a.nowISO(),
		"by":           by,
		"users":        top,
		"data_missing": missing,
	})
}
