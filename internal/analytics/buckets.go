package analytics

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Granularity string

const (
	Day   Granularity = "day"
	Month Granularity = "month"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "January 2006"
)

var (
	ErrInvalidGranularity = errors.New("analytics: invalid granularity")
	ErrInvalidWindow      = errors.New("analytics: invalid window")
)

// ParseGranularity accepts day or month in any case. Empty means month.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "month", "monthly":
		return Month, nil
	case "day", "daily":
		return Day, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
}

func (g Granularity) layout() string {
	if g == Day {
		return dayLayout
	}
	return monthLayout
}

// Bucket is a time interval key. Label is unique per granularity and Start is
// the instant the interval begins, which is what ordering uses.
type Bucket struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

func BucketOf(t time.Time, g Granularity, loc *time.Location) Bucket {
	t = t.In(orUTC(loc))
	var start time.Time
	if g == Day {
		start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	} else {
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	}
	return Bucket{Label: start.Format(g.layout()), Start: start}
}

// ParseBucketLabel is the inverse of BucketOf's label.
func ParseBucketLabel(label string, g Granularity, loc *time.Location) (Bucket, error) {
	start, err := time.ParseInLocation(g.layout(), strings.TrimSpace(label), orUTC(loc))
	if err != nil {
		return Bucket{}, fmt.Errorf("parse %s bucket %q: %w", g, label, err)
	}
	return Bucket{Label: start.Format(g.layout()), Start: start}, nil
}

type Buckets []Bucket

func (b Buckets) Labels() []string {
	out := make([]string, len(b))
	for i, bk := range b {
		out[i] = bk.Label
	}
	return out
}

// Index returns the position of label or -1.
func (b Buckets) Index(label string) int {
	for i, bk := range b {
		if bk.Label == label {
			return i
		}
	}
	return -1
}

func sortBuckets(b Buckets) {
	sort.Slice(b, func(i, j int) bool { return b[i].Start.Before(b[j].Start) })
}

// bucketSet collects distinct buckets and hands them back in time order.
type bucketSet struct {
	g    Granularity
	loc  *time.Location
	seen map[string]Bucket
}

func newBucketSet(g Granularity, loc *time.Location) *bucketSet {
	return &bucketSet{g: g, loc: orUTC(loc), seen: make(map[string]Bucket)}
}

func (s *bucketSet) add(t time.Time) Bucket {
	b := BucketOf(t, s.g, s.loc)
	if _, ok := s.seen[b.Label]; !ok {
		s.seen[b.Label] = b
	}
	return b
}

func (s *bucketSet) ordered() Buckets {
	out := make(Buckets, 0, len(s.seen))
	for _, b := range s.seen {
		out = append(out, b)
	}
	sortBuckets(out)
	return out
}

func positions(b Buckets) map[string]int {
	pos := make(map[string]int, len(b))
	for i, bk := range b {
		pos[bk.Label] = i
	}
	return pos
}

// Window returns s[from..to] inclusive.
func Window[T any](s []T, from, to int) ([]T, error) {
	if from < 0 || to >= len(s) || from > to {
		return nil, fmt.Errorf("%w: [%d, %d] over %d buckets", ErrInvalidWindow, from, to, len(s))
	}
	return s[from : to+1], nil
}
