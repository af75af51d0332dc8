package category

import (
	"fmt"
	"strings"
)

// Endpoint is the per-category backend configuration.
type Endpoint struct {
	Category    Category `json:"category"`
	DisplayName string   `json:"display_name"`
	BaseURL     string   `json:"base_url"`
	APIKey      string   `json:"-"`
}

// Registry is built once at startup and shared read-only.
type Registry struct {
	endpoints map[Category]Endpoint
}

// NewRegistry derives each category base as {upstream}/api/{segment} unless
// overrides carries an explicit URL for it.
func NewRegistry(upstream string, overrides map[Category]string, apiKeys map[Category]string) *Registry {
	upstream = strings.TrimRight(upstream, "/")
	r := &Registry{endpoints: make(map[Category]Endpoint, len(infos))}
	for _, c := range All() {
		base := fmt.Sprintf("%s/api/%s", upstream, c.PathSegment())
		if o := strings.TrimSpace(overrides[c]); o != "" {
			base = strings.TrimRight(o, "/")
		}
		r.endpoints[c] = Endpoint{
			Category:    c,
			DisplayName: c.DisplayName(),
			BaseURL:     base,
			APIKey:      apiKeys[c],
		}
	}
	return r
}

func (r *Registry) Endpoint(c Category) (Endpoint, error) {
	ep, ok := r.endpoints[c]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %d", ErrUnknownCategory, c)
	}
	return ep, nil
}

// Endpoints returns every endpoint in dashboard order.
func (r *Registry) Endpoints() []Endpoint {
	out := make([]Endpoint, 0, len(r.endpoints))
	for _, c := range All() {
		out = append(out, r.endpoints[c])
	}
	return out
}

// Select narrows the registry to one category, or returns all of them when
// c is Invalid.
func (r *Registry) Select(c Category) ([]Endpoint, error) {
	if c == Invalid {
		return r.Endpoints(), nil
	}
	ep, err := r.Endpoint(c)
	if err != nil {
		return nil, err
	}
	return []Endpoint{ep}, nil
}
