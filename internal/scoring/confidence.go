package scoring

import (
	"math"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/metrics"
)

// Confidence is how much the scores can be trusted, 0..1: data quality
// (0..5), validated patterns (0..3) and supplier coverage (0..2), over ten.
func Confidence(in Input) ConfidenceBreakdown {
	var b ConfidenceBreakdown
	if in.Metrics != nil {
		b.DataQuality = dataQualityPoints(in.Metrics.TotalObservations)
		b.SupplierReliability = supplierCoveragePoints(in.Metrics.PerSupplier)
	}
	b.ValidatedPatterns = validatedPatternPoints(in)
	b.Value = math.Round((b.DataQuality+b.ValidatedPatterns+b.SupplierReliability)/10*100) / 100
	b.Level = levelFor(b.Value)
	return b
}

func dataQualityPoints(observations int) float64 {
	switch {
	case observations >= 90:
		return 5
	case observations >= 60:
		return 4
	case observations >= 30:
		return 3
	case observations >= 15:
		return 2
	case observations >= 5:
		return 1
	}
	return 0
}

func validatedPatternPoints(in Input) float64 {
	validated := 0
	matched := 0
	for _, p := range in.Patterns {
		if p.Validated() {
			validated++
		}
		if p.Matched {
			matched++
		}
	}
	switch {
	case validated >= 2:
		return 3
	case validated == 1:
		return 2
	case matched > 0:
		return 1
	}
	return 0
}

func supplierCoveragePoints(per []metrics.SupplierMetrics) float64 {
	if len(per) == 0 {
		return 0
	}
	covered := 0
	for _, s := range per {
		if s.Observations90d >= 5 {
			covered++
		}
	}
	ratio := float64(covered) / float64(len(per))
	switch {
	case ratio >= 0.8:
		return 2
	case ratio >= 0.5:
		return 1
	}
	return 0
}

func levelFor(v float64) ConfidenceLevel {
	switch {
	case v >= 0.8:
		return ConfidenceVeryHigh
	case v >= 0.6:
		return ConfidenceHigh
	case v >= 0.4:
		return ConfidenceMedium
	}
	return ConfidenceLow
}
