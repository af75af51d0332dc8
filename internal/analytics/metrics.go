package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/natnael6825/ecctest/internal/category"
	"github.com/natnael6825/ecctest/internal/models"
)

// Ratio is num/den, or 0 when den is 0.
func Ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

type RatioPoint struct {
	Bucket Bucket  `json:"bucket"`
	Views  float64 `json:"views"`
	Posts  float64 `json:"posts"`
	Ratio  float64 `json:"ratio"`
}

// postable keeps offers that count as a post: a known side and a timestamp.
func postable(offers []models.Offer) []models.Offer {
	out := make([]models.Offer, 0, len(offers))
	for _, o := range offers {
		if o.Side() == models.SideUnknown {
			continue
		}
		out = append(out, o)
	}
	return out
}

// ViewPostRatioTrend relates interactions to offers posted in the same
// bucket. The bucket list is the union of both sides.
func ViewPostRatioTrend(offers []models.Offer, interactions []models.Interaction, g Granularity, loc *time.Location) []RatioPoint {
	posts := Count(postable(offers), OfferTime, g, loc)
	views := Count(interactions, InteractionTime, g, loc)
	buckets := Union(posts, views)
	posts = posts.Align(buckets)
	views = views.Align(buckets)

	out := make([]RatioPoint, len(buckets))
	for i, b := range buckets {
		out[i] = RatioPoint{
			Bucket: b,
			Views:  views.Values[i],
			Posts:  posts.Values[i],
			Ratio:  Ratio(views.Values[i], posts.Values[i]),
		}
	}
	return out
}

type ProductRatio struct {
	Product string  `json:"product"`
	Posts   float64 `json:"posts"`
	Views   float64 `json:"views"`
	Ratio   float64 `json:"ratio"`
}

// ProductViewRatios covers every product appearing on either side, sorted by
// ratio descending and then by name.
func ProductViewRatios(postCounts, viewCounts map[string]float64) []ProductRatio {
	names := make(map[string]struct{}, len(postCounts)+len(viewCounts))
	for n := range postCounts {
		names[n] = struct{}{}
	}
	for n := range viewCounts {
		names[n] = struct{}{}
	}
	out := make([]ProductRatio, 0, len(names))
	for n := range names {
		p, v := postCounts[n], viewCounts[n]
		out = append(out, ProductRatio{Product: n, Posts: p, Views: v, Ratio: Ratio(v, p)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ratio != out[j].Ratio {
			return out[i].Ratio > out[j].Ratio
		}
		return out[i].Product < out[j].Product
	})
	return out
}

func PostCountsByProduct(offers []models.Offer) map[string]float64 {
	out := make(map[string]float64)
	for _, o := range postable(offers) {
		out[strings.TrimSpace(o.ProductName)]++
	}
	return out
}

// ViewCountsByProduct sums the per-category product counts the backends
// report.
func ViewCountsByProduct(counts []models.ProductInteractionCount) map[string]float64 {
	out := make(map[string]float64)
	for _, c := range counts {
		out[strings.TrimSpace(c.ProductName)] += c.InteractionCount.Float()
	}
	return out
}

// ViewCountsFromInteractions derives product view counts locally, skipping
// dangling interactions.
func ViewCountsFromInteractions(offers []models.Offer, interactions []models.Interaction) map[string]float64 {
	idx := NewOfferIndex(offers)
	out := make(map[string]float64)
	for _, in := range interactions {
		o, ok := idx.Resolve(in)
		if !ok {
			continue
		}
		out[strings.TrimSpace(o.ProductName)]++
	}
	return out
}

// GapParts is a gap broken down for display.
type GapParts struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

func splitDuration(d time.Duration) GapParts {
	total := int64(d / time.Second)
	return GapParts{
		Days:    int(total / 86400),
		Hours:   int(total % 86400 / 3600),
		Minutes: int(total % 3600 / 60),
		Seconds: int(total % 60),
	}
}

type Gap struct {
	OfferID      models.ID         `json:"offer_id"`
	Category     category.Category `json:"category"`
	ProductName  string            `json:"product_name"`
	OfferCreated time.Time         `json:"offer_created"`
	FirstView    time.Time         `json:"first_view"`
	Days         float64           `json:"days"`
	Parts        GapParts          `json:"parts"`
}

// FirstViewGaps measures, per offer, the time from posting to the earliest
// valid interaction. Dangling interactions and interactions earlier than
// their offer are ignored. Offers without a valid interaction produce no gap.
func FirstViewGaps(offers []models.Offer, interactions []models.Interaction) []Gap {
	idx := NewOfferIndex(offers)
	type first struct {
		offer models.Offer
		at    time.Time
	}
	earliest := make(map[offerKey]first)
	for _, in := range interactions {
		o, ok := idx.Resolve(in)
		if !ok || o.CreatedAt.IsZero() || in.CreatedAt.IsZero() {
			continue
		}
		at := in.CreatedAt.Time
		if at.Before(o.CreatedAt.Time) {
			continue
		}
		k := keyOf(o)
		if cur, seen := earliest[k]; !seen || at.Before(cur.at) {
			earliest[k] = first{offer: o, at: at}
		}
	}

	gaps := make([]Gap, 0, len(earliest))
	for _, f := range earliest {
		d := f.at.Sub(f.offer.CreatedAt.Time)
		gaps = append(gaps, Gap{
			OfferID:      f.offer.ID,
			Category:     f.offer.Category,
			ProductName:  f.offer.ProductName,
			OfferCreated: f.offer.CreatedAt.Time,
			FirstView:    f.at,
			Days:         d.Hours() / 24,
			Parts:        splitDuration(d),
		})
	}
	sort.Slice(gaps, func(i, j int) bool {
		if !gaps[i].OfferCreated.Equal(gaps[j].OfferCreated) {
			return gaps[i].OfferCreated.Before(gaps[j].OfferCreated)
		}
		if gaps[i].Category != gaps[j].Category {
			return gaps[i].Category < gaps[j].Category
		}
		return gaps[i].OfferID < gaps[j].OfferID
	})
	return gaps
}

// AverageGapDays is the mean gap. ok is false when there are no gaps.
func AverageGapDays(gaps []Gap) (avg float64, ok bool) {
	if len(gaps) == 0 {
		return 0, false
	}
	var sum float64
	for _, g := range gaps {
		sum += g.Days
	}
	return sum / float64(len(gaps)), true
}

// AverageDailyInteractionRate computes interactions per day since posting
// for every offer that has interactions, floored at one day, and returns the
// mean of those per-offer rates.
func AverageDailyInteractionRate(offers []models.Offer, interactions []models.Interaction, now time.Time) float64 {
	idx := NewOfferIndex(offers)
	counts := make(map[offerKey]float64)
	created := make(map[offerKey]time.Time)
	var order []offerKey
	for _, in := range interactions {
		o, ok := idx.Resolve(in)
		if !ok {
			continue
		}
		k := keyOf(o)
		if _, seen := counts[k]; !seen {
			order = append(order, k)
			created[k] = o.CreatedAt.Time
		}
		counts[k]++
	}
	if len(order) == 0 {
		return 0
	}
	var sum float64
	for _, k := range order {
		days := 1.0
		if c := created[k]; !c.IsZero() {
			if d := now.Sub(c).Hours() / 24; d > days {
				days = d
			}
		}
		sum += counts[k] / days
	}
	return sum / float64(len(order))
}

type PosterAverages struct {
	User  float64 `json:"user"`
	Admin float64 `json:"admin"`
	Total float64 `json:"total"`
}

// AverageInteractionsPerOffer is the mean interaction count over offers that
// were viewed at or after since, split by who posted the offer.
func AverageInteractionsPerOffer(offers []models.Offer, interactions []models.Interaction, since time.Time) PosterAverages {
	idx := NewOfferIndex(offers)
	total := make(map[offerKey]float64)
	user := make(map[offerKey]float64)
	admin := make(map[offerKey]float64)
	for _, in := range interactions {
		if in.CreatedAt.Before(since) {
			continue
		}
		o, ok := idx.Resolve(in)
		if !ok {
			continue
		}
		k := keyOf(o)
		total[k]++
		switch strings.ToLower(strings.TrimSpace(o.Poster)) {
		case models.PosterUser:
			user[k]++
		case models.PosterAdmin:
			admin[k]++
		}
	}
	return PosterAverages{User: mean(user), Admin: mean(admin), Total: mean(total)}
}

func mean(m map[offerKey]float64) float64 {
	if len(m) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m {
		sum += v
	}
	return sum / float64(len(m))
}
