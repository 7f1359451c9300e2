package constants

import "strings"

// Liquid nitrogen properties used for loss accounting.
const (
	LN2DensityKgPerM3 = 808.0
	LitersPerM3       = 1000.0
)

// ManifestOrder selects the ordering for manifest and record listings.
type ManifestOrder string

const (
	OrderByDate       ManifestOrder = "date"
	OrderByManifestID ManifestOrder = "manifestid"
	OrderByLocation   ManifestOrder = "location"
	OrderByNone       ManifestOrder = "all"
)

var allOrders = []ManifestOrder{OrderByDate, OrderByManifestID, OrderByLocation, OrderByNone}

// ParseManifestOrder maps a query-string value to an ordering. Empty means OrderByNone.
func ParseManifestOrder(s string) (ManifestOrder, bool) {
	if s == "" {
		return OrderByNone, true
	}
	for _, o := range allOrders {
		if string(o) == s {
			return o, true
		}
	}
	return OrderByNone, false
}

// WeightUnit is the unit a weight was entered in.
type WeightUnit string

const (
	UnitKg  WeightUnit = "kg"
	UnitLbs WeightUnit = "lbs"

	KgPerPound = 0.45359237
)

// ParseWeightUnit accepts kg/lbs and common spellings. Empty means kg.
func ParseWeightUnit(s string) (WeightUnit, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "kg", "kgs", "kilogram", "kilograms":
		return UnitKg, true
	case "lb", "lbs", "pound", "pounds":
		return UnitLbs, true
	default:
		return "", false
	}
}

// ToKg converts a weight in unit u to kilograms.
func (u WeightUnit) ToKg(w float64) float64 {
	if u == UnitLbs {
		return w * KgPerPound
	}
	return w
}
