package analytics

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/natnael6825/ecctest/internal/models"
)

// UnknownUser stands in for identifiers the user service cannot name.
const UnknownUser = "Unknown"

const DefaultTopUsers = 10

// Counts is a count per identifier that remembers first-seen order.
type Counts struct {
	order []string
	n     map[string]int
}

func NewCounts() *Counts {
	return &Counts{n: make(map[string]int)}
}

func (c *Counts) Add(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	if _, ok := c.n[id]; !ok {
		c.order = append(c.order, id)
	}
	c.n[id]++
}

func (c *Counts) Get(id string) int { return c.n[id] }

func (c *Counts) Len() int { return len(c.order) }

// CountPostsByUser counts offers per poster chat id.
func CountPostsByUser(offers []models.Offer) *Counts {
	c := NewCounts()
	for _, o := range offers {
		c.Add(o.ChatID.String())
	}
	return c
}

// CountViewsByUser counts interactions per viewer chat id.
func CountViewsByUser(interactions []models.Interaction) *Counts {
	c := NewCounts()
	for _, in := range interactions {
		c.Add(in.ViewerChatID.String())
	}
	return c
}

type UserCount struct {
	ChatID string `json:"chat_id"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
}

// TopUsers ranks identifiers by count descending. Ties keep first-seen order.
// n <= 0 means DefaultTopUsers.
func TopUsers(counts *Counts, n int, excluded []string) []UserCount {
	if n <= 0 {
		n = DefaultTopUsers
	}
	skip := make(map[string]bool, len(excluded))
	for _, id := range excluded {
		skip[strings.TrimSpace(id)] = true
	}
	ranked := make([]UserCount, 0, counts.Len())
	for _, id := range counts.order {
		if skip[id] {
			continue
		}
		ranked = append(ranked, UserCount{ChatID: id, Count: counts.n[id]})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Count > ranked[j].Count })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// UserLookup resolves a chat id to a display name.
type UserLookup interface {
	LookupUserName(ctx context.Context, chatID string) (name string, found bool, err error)
}

// ResolveNames fills in Name for every entry, concurrently, with at most
// limit lookups in flight. Failed or empty lookups become UnknownUser.
func ResolveNames(ctx context.Context, lookup UserLookup, users []UserCount, limit int) []UserCount {
	out := make([]UserCount, len(users))
	copy(out, users)
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := range out {
		i := i
		g.Go(func() error {
			out[i].Name = UnknownUser
			if lookup == nil {
				return nil
			}
			name, found, err := lookup.LookupUserName(ctx, out[i].ChatID)
			if err == nil && found && strings.TrimSpace(name) != "" {
				out[i].Name = name
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
