// Package category is the closed set of commodity groups the platform trades
// and the single place that maps each one to its external representations.
package category

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownCategory = errors.New("unknown category")

type Category uint8

const (
	Invalid Category = iota
	Coffee
	Spices
	Grains
	Pulses
	OilSeeds
	RootCrops
	Vegetables
	Fruits
	BuildingMaterials
)

type info struct {
	key         string
	displayName string
	pathSegment string
	storageKey  string
	filterKey   string
}

// Every representation is spelled out here. None is derived from another.
var infos = [...]info{
	Coffee: {
		key:         "coffee",
		displayName: "Coffee / ቡና",
		pathSegment: "CoffeeandMainCommodity",
		storageKey:  "coffeeAndMainCommodities",
		filterKey:   "CoffeeAndMainCommodities",
	},
	Spices: {
		key:         "spices",
		displayName: "Spice & Herbs / ቅመማ ቅመሞቾ",
		pathSegment: "spices",
		storageKey:  "spices",
		filterKey:   "SpicesHerbs",
	},
	Grains: {
		key:         "grains",
		displayName: "Grains and Cereals / የእህል ሰብሎች",
		pathSegment: "GrainsandCerials",
		storageKey:  "grainsAndCereals",
		filterKey:   "GrainsAndCereals",
	},
	Pulses: {
		key:         "pulses",
		displayName: "Pulses & Legumes / ጥራጥሬዎች",
		pathSegment: "pulse",
		storageKey:  "pulses",
		filterKey:   "PulsesLegumes",
	},
	OilSeeds: {
		key:         "oilseeds",
		displayName: "Oil Seeds / የቅባት እህሎች",
		pathSegment: "oilSeed",
		storageKey:  "oilSeeds",
		filterKey:   "OilSeeds",
	},
	RootCrops: {
		key:         "rootcrops",
		displayName: "Root Crops / የስራስር ሰብሎች",
		pathSegment: "rootCrop",
		storageKey:  "rootCrops",
		filterKey:   "RootCrops",
	},
	Vegetables: {
		key:         "vegetables",
		displayName: "Vegetables / አትክልቶች",
		pathSegment: "vegetable",
		storageKey:  "vegetables",
		filterKey:   "Vegetables",
	},
	Fruits: {
		key:         "fruits",
		displayName: "Fruit Crops / ፍራፍሬች",
		pathSegment: "fruit",
		storageKey:  "fruits",
		filterKey:   "FruitCrops",
	},
	BuildingMaterials: {
		key:         "building",
		displayName: "Building Materials / የግንባታ እቃዎች",
		pathSegment: "BuildingMaterials",
		storageKey:  "buildingMaterials",
		filterKey:   "BuildingMaterials",
	},
}

// All returns the categories in dashboard order.
func All() []Category {
	return []Category{Coffee, Spices, Grains, Pulses, OilSeeds, RootCrops, Vegetables, Fruits, BuildingMaterials}
}

func (c Category) Valid() bool {
	return c > Invalid && int(c) < len(infos)
}

// String returns the short key used in BFF routes and query strings.
func (c Category) String() string {
	if !c.Valid() {
		return ""
	}
	return infos[c].key
}

func (c Category) DisplayName() string {
	if !c.Valid() {
		return ""
	}
	return infos[c].displayName
}

// PathSegment is the segment after /api/ on the category backend.
func (c Category) PathSegment() string {
	if !c.Valid() {
		return ""
	}
	return infos[c].pathSegment
}

// StorageKey is the key the dashboard groups results under.
func (c Category) StorageKey() string {
	if !c.Valid() {
		return ""
	}
	return infos[c].storageKey
}

// FilterKey is the category name the user service expects in offer filters.
func (c Category) FilterKey() string {
	if !c.Valid() {
		return ""
	}
	return infos[c].filterKey
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, c)
	}
	return []byte(infos[c].key), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Parse accepts any external representation of a category: the short key,
// the display label, the path segment, the storage key or the filter key.
func Parse(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Invalid, fmt.Errorf("%w: empty", ErrUnknownCategory)
	}
	for _, c := range All() {
		in := infos[c]
		if strings.EqualFold(s, in.key) ||
			strings.Join(strings.Fields(s), " ") == in.displayName ||
			s == in.pathSegment ||
			s == in.storageKey ||
			s == in.filterKey {
			return c, nil
		}
	}
	return Invalid, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}
