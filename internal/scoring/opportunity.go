package scoring

import (
	"math"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/metrics"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/settings"
)

// Opportunity scores how attractive buying now is, 0..100: price advantage
// (0..50), timing (0..30) and liquidity (0..20).
func Opportunity(in Input, cfg settings.Configuration) OpportunityBreakdown {
	m := in.Metrics
	var b OpportunityBreakdown
	if m == nil {
		return b
	}
	b.DropTier = dropTier(m.Window30.DropPct, cfg.PriceDrop)
	b.DistanceFromMin = distanceFromMinPoints(m.DistanceFromMinPct)
	b.Competition = competitionPoints(m.Suppliers.DroppingSuppliers)
	b.PriceAdvantage = b.DropTier + b.DistanceFromMin + b.Competition

	b.PatternBonus = patternBonus(in)
	b.TrendBonus = trendBonus(m.Trend)
	b.FlashBonus = flashBonus(m.Flash)
	b.Timing = b.PatternBonus + b.TrendBonus + b.FlashBonus

	b.Liquidity = liquidityPoints(m.Liquidity)
	b.Total = clamp(round2(b.PriceAdvantage+b.Timing+b.Liquidity), 0, 100)
	return b
}

// dropTier is piecewise linear between the configured drop thresholds.
func dropTier(drop float64, t settings.PriceDropThresholds) float64 {
	switch {
	case drop <= 0:
		return 0
	case drop >= t.Strong:
		return 25
	case drop >= t.Medium:
		return lerp(drop, t.Medium, t.Strong, 18, 25)
	case drop >= t.Low:
		return lerp(drop, t.Low, t.Medium, 10, 18)
	case drop >= t.Minimum:
		return lerp(drop, t.Minimum, t.Low, 3, 10)
	}
	return lerp(drop, 0, t.Minimum, 0, 3)
}

func distanceFromMinPoints(distance float64) float64 {
	switch {
	case distance <= 0:
		return 20
	case distance >= 20:
		return 0
	}
	return 20 * (1 - distance/20)
}

func competitionPoints(dropping int) float64 {
	switch {
	case dropping >= 3:
		return 5
	case dropping == 2:
		return 3
	case dropping == 1:
		return 1
	}
	return 0
}

func patternBonus(in Input) float64 {
	matched := 0
	sum := 0.0
	for _, p := range in.Patterns {
		if !p.Matched {
			continue
		}
		matched++
		sum += p.Confidence
	}
	if matched == 0 {
		return 0
	}
	avg := sum / float64(matched)
	return math.Min(15, float64(matched*matched)*avg*10)
}

func trendBonus(t metrics.Trend) float64 {
	if t.Reversal && t.ReversalType == metrics.ReversalBottom {
		return 10
	}
	switch t.Direction {
	case metrics.TrendStrongDown:
		return 8
	case metrics.TrendDown:
		return 6
	case metrics.TrendStable:
		return 4
	case metrics.TrendUp:
		return 2
	}
	return 0
}

func flashBonus(f metrics.FlashDeal) float64 {
	if !f.Detected {
		return 0
	}
	switch f.Urgency {
	case metrics.FlashCritical:
		return 5
	case metrics.FlashHigh:
		return 3
	case metrics.FlashMedium:
		return 1
	}
	return 0
}

func liquidityPoints(l metrics.Liquidity) float64 {
	pts := 0.0
	switch {
	case l.Score >= 90:
		pts = 15
	case l.Score >= 70:
		pts = 12
	case l.Score >= 50:
		pts = 8
	case l.Score >= 30:
		pts = 4
	}
	if l.IsFastMover {
		pts += 5
	}
	return pts
}

func lerp(v, x0, x1, y0, y1 float64) float64 {
	if x1 <= x0 {
		return y0
	}
	return y0 + (v-x0)/(x1-x0)*(y1-y0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
