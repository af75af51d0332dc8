// Package analytics turns raw category payloads into the series and metrics
// the dashboard charts. Everything here is a pure function over plain data.
package analytics

import (
	"github.com/natnael6825/ecctest/internal/category"
	"github.com/natnael6825/ecctest/internal/models"
)

// Partition is one category's offers split by side. Total is Buy followed by
// Sell, in fetch order.
type Partition struct {
	Buy     []models.Offer `json:"buy"`
	Sell    []models.Offer `json:"sell"`
	Total   []models.Offer `json:"total"`
	Skipped int            `json:"skipped"`
}

// Split partitions offers by offer type. Offers of an unknown type are not
// placed on either side and are counted in Skipped.
func Split(offers []models.Offer) Partition {
	p := Partition{Buy: []models.Offer{}, Sell: []models.Offer{}}
	for _, o := range offers {
		switch o.Side() {
		case models.SideBuy:
			p.Buy = append(p.Buy, o)
		case models.SideSell:
			p.Sell = append(p.Sell, o)
		default:
			p.Skipped++
		}
	}
	p.Total = make([]models.Offer, 0, len(p.Buy)+len(p.Sell))
	p.Total = append(p.Total, p.Buy...)
	p.Total = append(p.Total, p.Sell...)
	return p
}

// Tag returns a copy of offers stamped with their originating category.
// Embedded offers keep whatever category they already carry.
func Tag(c category.Category, offers []models.Offer) []models.Offer {
	out := make([]models.Offer, len(offers))
	for i, o := range offers {
		o.Category = c
		out[i] = o
	}
	return out
}

func TagInteractions(c category.Category, interactions []models.Interaction) []models.Interaction {
	out := make([]models.Interaction, len(interactions))
	for i, in := range interactions {
		in.Category = c
		if in.Offer != nil {
			embedded := *in.Offer
			embedded.Category = c
			in.Offer = &embedded
		}
		out[i] = in
	}
	return out
}

// Merge flattens per-category partitions into one collection in dashboard
// order.
func Merge(parts map[category.Category]Partition) []models.Offer {
	var out []models.Offer
	for _, c := range category.All() {
		p, ok := parts[c]
		if !ok {
			continue
		}
		out = append(out, p.Total...)
	}
	if out == nil {
		out = []models.Offer{}
	}
	return out
}

func MergeInteractions(parts map[category.Category][]models.Interaction) []models.Interaction {
	var out []models.Interaction
	for _, c := range category.All() {
		out = append(out, parts[c]...)
	}
	if out == nil {
		out = []models.Interaction{}
	}
	return out
}

type offerKey struct {
	cat category.Category
	id  models.ID
}

// OfferIndex resolves interactions to the offers they reference.
type OfferIndex struct {
	byKey map[offerKey]models.Offer
}

func NewOfferIndex(offers []models.Offer) OfferIndex {
	idx := OfferIndex{byKey: make(map[offerKey]models.Offer, len(offers))}
	for _, o := range offers {
		if o.ID == "" {
			continue
		}
		k := offerKey{cat: o.Category, id: o.ID}
		if _, seen := idx.byKey[k]; !seen {
			idx.byKey[k] = o
		}
	}
	return idx
}

// Resolve prefers the embedded offer and falls back to the index by the
// interaction's category and offer id. Dangling interactions report false.
func (idx OfferIndex) Resolve(in models.Interaction) (models.Offer, bool) {
	if in.Offer != nil && in.Offer.ID != "" {
		o := *in.Offer
		if indexed, ok := idx.byKey[offerKey{cat: in.Category, id: o.ID}]; ok && o.CreatedAt.IsZero() {
			return indexed, true
		}
		if o.Category == category.Invalid {
			o.Category = in.Category
		}
		return o, true
	}
	if in.OfferID == "" {
		return models.Offer{}, false
	}
	o, ok := idx.byKey[offerKey{cat: in.Category, id: in.OfferID}]
	return o, ok
}

func keyOf(o models.Offer) offerKey { return offerKey{cat: o.Category, id: o.ID} }
