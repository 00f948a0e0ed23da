package classify

import (
	"github.com/shopspring/decimal"
)

// VarianceBand is the bucket assigned by the variance-threshold scheme.
type VarianceBand string

const (
	BandMatched  VarianceBand = "Matched"
	BandLow      VarianceBand = "Low - Minor Variance"
	BandMedium   VarianceBand = "Medium - Moderate Variance"
	BandHigh     VarianceBand = "High - Large Variance"
	BandCritical VarianceBand = "Critical - Missing Settlement"
)

var (
	minorThreshold    = decimal.RequireFromString("0.01")
	moderateThreshold = decimal.NewFromInt(10)
	largeThreshold    = decimal.NewFromInt(100)
)

// ByVariance buckets a record by absolute monetary variance alone. This is
// the alternate classification scheme, kept for comparison against the
// canonical status-based table; production classification uses Lookup.
// missingSettlement overrides the thresholds entirely.
func ByVariance(variance decimal.Decimal, missingSettlement bool) VarianceBand {
	if missingSettlement {
		return BandCritical
	}
	abs := variance.Abs()
	switch {
	case abs.GreaterThan(largeThreshold):
		return BandHigh
	case abs.GreaterThan(moderateThreshold):
		return BandMedium
	case abs.GreaterThan(minorThreshold):
		return BandLow
	default:
		return BandMatched
	}
}
