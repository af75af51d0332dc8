package category

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseAcceptsEveryRepresentation(t *testing.T) {
	for _, c := range All() {
		for _, s := range []string{c.String(), c.DisplayName(), c.PathSegment(), c.StorageKey(), c.FilterKey()} {
			got, err := Parse(s)
			if err != nil {
				t.Fatalf("Parse(%q): %v", s, err)
			}
			if got != c {
				t.Fatalf("Parse(%q) = %v, want %v", s, got, c)
			}
		}
	}
}

func TestParseToleratesLabelSpacing(t *testing.T) {
	got, err := Parse("Vegetables  / አትክልቶች")
	if err != nil || got != Vegetables {
		t.Fatalf("expected vegetables, got %v err=%v", got, err)
	}
	got, err = Parse("Pulses & Legumes / ጥራጥሬዎች ")
	if err != nil || got != Pulses {
		t.Fatalf("expected pulses, got %v err=%v", got, err)
	}
}

func TestParseUnknown(t *testing.T) {
	if _, err := Parse("livestock"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	if _, err := Parse(""); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory for empty, got %v", err)
	}
}

func TestCategoryJSONMapKeys(t *testing.T) {
	in := map[Category]int{Coffee: 1, Fruits: 2}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out map[Category]int
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out[Coffee] != 1 || out[Fruits] != 2 {
		t.Fatalf("unexpected round trip: %s -> %v", b, out)
	}
}

func TestRegistryDefaultsAndOverrides(t *testing.T) {
	r := NewRegistry("http://upstream:7050/", map[Category]string{Fruits: "http://fruit.local/api/fruit/"}, nil)
	ep, err := r.Endpoint(Grains)
	if err != nil {
		t.Fatal(err)
	}
	if ep.BaseURL != "http://upstream:7050/api/GrainsandCerials" {
		t.Fatalf("unexpected grains base: %s", ep.BaseURL)
	}
	ep, _ = r.Endpoint(Fruits)
	if ep.BaseURL != "http://fruit.local/api/fruit" {
		t.Fatalf("unexpected fruit override: %s", ep.BaseURL)
	}
	if n := len(r.Endpoints()); n != 9 {
		t.Fatalf("expected 9 endpoints, got %d", n)
	}
	sel, err := r.Select(Coffee)
	if err != nil || len(sel) != 1 || sel[0].Category != Coffee {
		t.Fatalf("unexpected select: %+v err=%v", sel, err)
	}
	if _, err := r.Select(Category(42)); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}
