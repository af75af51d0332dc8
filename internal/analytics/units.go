package analytics

import (
	"math"
	"strings"

	"github.com/natnael6825/ecctest/internal/models"
)

const kgPerQuintal = 100.0

// kilograms per unit
var unitKg = map[string]float64{
	"bag":     60,
	"bags":    60,
	"quintal": 100,
	"kesha":   85,
	"fersula": 17,
	"fcl":     20000,
	"ton":     1000,
}

func normalizeUnit(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

// UnitFactor returns the kilogram factor for unit. Unknown units report 1 and
// false.
func UnitFactor(unit string) (float64, bool) {
	f, ok := unitKg[normalizeUnit(unit)]
	if !ok {
		return 1, false
	}
	return f, true
}

func ToKg(quantity float64, unit string) float64 {
	f, _ := UnitFactor(unit)
	return quantity * f
}

func KgToQuintals(kg float64) float64 {
	return kg / kgPerQuintal
}

// ToQuintals is ToKg followed by KgToQuintals.
func ToQuintals(quantity float64, unit string) float64 {
	return KgToQuintals(ToKg(quantity, unit))
}

type ConvertedOffer struct {
	models.Offer
	QuantityKg       float64 `json:"quantity_kg"`
	QuantityQuintals float64 `json:"quantity_quintals"`
}

// ConvertOffers attaches canonical quantities. Offers without a measurement
// cannot be converted and are dropped.
func ConvertOffers(offers []models.Offer) []ConvertedOffer {
	out := make([]ConvertedOffer, 0, len(offers))
	for _, o := range offers {
		if normalizeUnit(o.Measurement) == "" {
			continue
		}
		kg := ToKg(o.Quantity.Float(), o.Measurement)
		out = append(out, ConvertedOffer{Offer: o, QuantityKg: kg, QuantityQuintals: KgToQuintals(kg)})
	}
	return out
}

// Round2 rounds for display only.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
