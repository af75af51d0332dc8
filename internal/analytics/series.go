package analytics

import (
	"time"

	"github.com/natnael6825/ecctest/internal/models"
)

// Series is a value per bucket, aligned by index.
type Series struct {
	Granularity Granularity `json:"granularity"`
	Buckets     Buckets     `json:"buckets"`
	Values      []float64   `json:"values"`
}

func (s Series) Len() int { return len(s.Buckets) }

// Value looks a bucket up by label.
func (s Series) Value(label string) (float64, bool) {
	i := s.Buckets.Index(label)
	if i < 0 {
		return 0, false
	}
	return s.Values[i], true
}

func (s Series) Window(from, to int) (Series, error) {
	b, err := Window(s.Buckets, from, to)
	if err != nil {
		return Series{}, err
	}
	v, _ := Window(s.Values, from, to)
	return Series{Granularity: s.Granularity, Buckets: b, Values: v}, nil
}

// Count buckets records by the timestamp at returns. Records with a zero
// timestamp cannot be placed and are ignored.
func Count[T any](records []T, at func(T) time.Time, g Granularity, loc *time.Location) Series {
	return Sum(records, at, func(T) float64 { return 1 }, g, loc)
}

// Sum adds value per bucket.
func Sum[T any](records []T, at func(T) time.Time, value func(T) float64, g Granularity, loc *time.Location) Series {
	set := newBucketSet(g, loc)
	labels := make([]string, len(records))
	for i, r := range records {
		t := at(r)
		if t.IsZero() {
			continue
		}
		labels[i] = set.add(t).Label
	}
	buckets := set.ordered()
	pos := positions(buckets)
	values := make([]float64, len(buckets))
	for i, r := range records {
		if labels[i] == "" {
			continue
		}
		values[pos[labels[i]]] += value(r)
	}
	return Series{Granularity: g, Buckets: buckets, Values: values}
}

// Align re-expresses s over buckets, filling buckets s lacks with zero.
func (s Series) Align(buckets Buckets) Series {
	values := make([]float64, len(buckets))
	for i, b := range buckets {
		if v, ok := s.Value(b.Label); ok {
			values[i] = v
		}
	}
	return Series{Granularity: s.Granularity, Buckets: buckets, Values: values}
}

// Union merges the bucket lists of several series in time order.
func Union(series ...Series) Buckets {
	seen := make(map[string]Bucket)
	for _, s := range series {
		for _, b := range s.Buckets {
			seen[b.Label] = b
		}
	}
	out := make(Buckets, 0, len(seen))
	for _, b := range seen {
		out = append(out, b)
	}
	sortBuckets(out)
	return out
}

func OfferTime(o models.Offer) time.Time { return o.CreatedAt.Time }

func InteractionTime(in models.Interaction) time.Time { return in.CreatedAt.Time }
