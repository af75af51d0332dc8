package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/natnael6825/ecctest/internal/models"
)

// TotalProduct names the synthetic series summed across products.
const TotalProduct = "Total"

type Measure string

const (
	MeasureCount    Measure = "count"
	MeasureQuantity Measure = "quantity"
)

func ParseMeasure(s string) (Measure, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "count":
		return MeasureCount, nil
	case "quantity", "qty":
		return MeasureQuantity, nil
	}
	return "", fmt.Errorf("analytics: invalid measure %q", s)
}

type ProductSeries struct {
	Product string    `json:"product"`
	Buy     []float64 `json:"buy"`
	Sell    []float64 `json:"sell"`
	Total   []float64 `json:"total"`
}

func newProductSeries(name string, n int) *ProductSeries {
	return &ProductSeries{
		Product: name,
		Buy:     make([]float64, n),
		Sell:    make([]float64, n),
		Total:   make([]float64, n),
	}
}

func (p ProductSeries) window(from, to int) ProductSeries {
	buy, _ := Window(p.Buy, from, to)
	sell, _ := Window(p.Sell, from, to)
	total, _ := Window(p.Total, from, to)
	return ProductSeries{Product: p.Product, Buy: buy, Sell: sell, Total: total}
}

// OfferTrend is a buy/sell/total series per product over one shared bucket
// list. Products are sorted by name with the Total series last.
type OfferTrend struct {
	Granularity Granularity     `json:"granularity"`
	Measure     Measure         `json:"measure"`
	Buckets     Buckets         `json:"buckets"`
	Products    []ProductSeries `json:"products"`
}

// Product returns the named series.
func (t OfferTrend) Product(name string) (ProductSeries, bool) {
	for _, p := range t.Products {
		if p.Product == name {
			return p, true
		}
	}
	return ProductSeries{}, false
}

// Window restricts every series to buckets from..to inclusive without
// re-aggregating.
func (t OfferTrend) Window(from, to int) (OfferTrend, error) {
	buckets, err := Window(t.Buckets, from, to)
	if err != nil {
		return OfferTrend{}, err
	}
	out := OfferTrend{Granularity: t.Granularity, Measure: t.Measure, Buckets: buckets, Products: make([]ProductSeries, len(t.Products))}
	for i, p := range t.Products {
		out.Products[i] = p.window(from, to)
	}
	return out, nil
}

// BuildOfferTrend buckets offers by creation time and product. For the
// quantity measure the values are quintals and offers without a measurement
// are left out.
func BuildOfferTrend(offers []models.Offer, g Granularity, measure Measure, loc *time.Location) OfferTrend {
	type point struct {
		offer models.Offer
		value float64
	}
	var points []point
	if measure == MeasureQuantity {
		for _, c := range ConvertOffers(offers) {
			points = append(points, point{offer: c.Offer, value: c.QuantityQuintals})
		}
	} else {
		measure = MeasureCount
		for _, o := range offers {
			points = append(points, point{offer: o, value: 1})
		}
	}

	set := newBucketSet(g, loc)
	for _, p := range points {
		if p.offer.Side() == models.SideUnknown || p.offer.CreatedAt.IsZero() {
			continue
		}
		set.add(p.offer.CreatedAt.Time)
	}
	buckets := set.ordered()
	pos := positions(buckets)
	n := len(buckets)

	byProduct := make(map[string]*ProductSeries)
	for _, p := range points {
		side := p.offer.Side()
		if side == models.SideUnknown || p.offer.CreatedAt.IsZero() {
			continue
		}
		name := strings.TrimSpace(p.offer.ProductName)
		ps, ok := byProduct[name]
		if !ok {
			ps = newProductSeries(name, n)
			byProduct[name] = ps
		}
		i := pos[BucketOf(p.offer.CreatedAt.Time, g, loc).Label]
		if side == models.SideBuy {
			ps.Buy[i] += p.value
		} else {
			ps.Sell[i] += p.value
		}
	}

	names := make([]string, 0, len(byProduct))
	for name := range byProduct {
		names = append(names, name)
	}
	sort.Strings(names)

	total := newProductSeries(TotalProduct, n)
	products := make([]ProductSeries, 0, len(names)+1)
	for _, name := range names {
		ps := byProduct[name]
		for i := 0; i < n; i++ {
			ps.Total[i] = ps.Buy[i] + ps.Sell[i]
			total.Buy[i] += ps.Buy[i]
			total.Sell[i] += ps.Sell[i]
		}
		products = append(products, *ps)
	}
	for i := 0; i < n; i++ {
		total.Total[i] = total.Buy[i] + total.Sell[i]
	}
	products = append(products, *total)

	return OfferTrend{Granularity: g, Measure: measure, Buckets: buckets, Products: products}
}
