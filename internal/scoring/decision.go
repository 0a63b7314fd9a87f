package scoring

import (
	"fmt"
	"math"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/metrics"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/settings"
)

const (
	minStockDays         = 14
	maxStockDays         = 90
	fallbackIntervalDays = 30
)

// deadStock reports whether stock on hand has sat well past the usual
// purchase cadence. Multipliers are fixed, not configurable.
func deadStock(inventory int, l metrics.Liquidity) (urgent, soon bool) {
	if inventory <= 0 || l.AverageIntervalDays <= 0 || l.DaysSinceLastPurchase < 0 {
		return false, false
	}
	since := float64(l.DaysSinceLastPurchase)
	switch {
	case since > 2*l.AverageIntervalDays:
		return true, false
	case since > 1.5*l.AverageIntervalDays:
		return false, true
	}
	return false, false
}

func passes(t settings.DecisionThresholds, opp, risk, conf float64) bool {
	return opp >= t.MinOpportunity && risk <= t.MaxRisk && conf >= t.MinConfidence
}

// Decide applies the recommendation rules in order; the first match wins.
func Decide(in Input, cfg settings.Configuration, opp OpportunityBreakdown, risk RiskBreakdown, conf ConfidenceBreakdown) Decision {
	var liq metrics.Liquidity
	if in.Metrics != nil {
		liq = in.Metrics.Liquidity
	}
	o, r, c := opp.Total, risk.Total, conf.Value

	urgent, soon := deadStock(in.inventory(), liq)
	switch {
	case urgent:
		return Decision{
			Recommendation: RecClearanceUrgent,
			Rationale: fmt.Sprintf("%d units on hand, %d days since last purchase against a %.0f-day cadence",
				in.inventory(), liq.DaysSinceLastPurchase, liq.AverageIntervalDays),
		}
	case soon:
		return Decision{
			Recommendation: RecClearanceSoon,
			Rationale: fmt.Sprintf("%d units on hand, %d days since last purchase is past 1.5x the %.0f-day cadence",
				in.inventory(), liq.DaysSinceLastPurchase, liq.AverageIntervalDays),
		}
	}

	if r > cfg.Avoid.MaxRisk {
		return Decision{
			Recommendation: RecAvoid,
			Rationale:      fmt.Sprintf("risk %.0f exceeds the avoid limit %.0f", r, cfg.Avoid.MaxRisk),
		}
	}

	if passes(cfg.StrongBuy, o, r, c) && liq.IsFastMover && liq.Score >= 70 {
		days := StockDays(liq.AverageIntervalDays, aggressiveMultiplier(liq.Score))
		return Decision{
			Recommendation:     RecStrongBuyAndStock,
			Rationale:          fmt.Sprintf("opportunity %.0f, risk %.0f, confidence %.2f on a fast mover", o, r, c),
			SuggestedStockDays: &days,
		}
	}

	if cl := in.Clearance; cl.Detected && cl.Best != nil {
		days := cl.Best.Recommendation.StockDays
		return Decision{
			Recommendation:     RecClearanceBuy,
			Rationale:          fmt.Sprintf("supplier %s clearance (%s urgency, score %.0f): %s", cl.Best.SupplierID, cl.Best.Urgency, cl.Best.Score, cl.Best.Recommendation.Rationale),
			SuggestedStockDays: &days,
			ClearanceSupplier:  cl.Best.SupplierID,
		}
	}

	if o >= 85 && r <= cfg.CautiousBuy.MaxRisk && liq.Score >= 40 {
		days := StockDays(liq.AverageIntervalDays, conservativeMultiplier(liq.Score))
		return Decision{
			Recommendation:     RecOpportunisticStock,
			Rationale:          fmt.Sprintf("exceptional opportunity %.0f with acceptable risk %.0f", o, r),
			SuggestedStockDays: &days,
		}
	}

	if passes(cfg.Buy, o, r, c) {
		return Decision{
			Recommendation: RecBuyOnDemand,
			Rationale:      fmt.Sprintf("buy as orders arrive: opportunity %.0f, risk %.0f", o, r),
		}
	}
	if passes(cfg.CautiousBuy, o, r, c) {
		return Decision{
			Recommendation: RecBuyOnDemand,
			Rationale:      fmt.Sprintf("cautious: buy only against orders, opportunity %.0f, risk %.0f, confidence %.2f", o, r, c),
		}
	}
	if passes(cfg.Watch, o, r, c) {
		return Decision{
			Recommendation: RecWatch,
			Rationale:      "watch: " + blocking(cfg.CautiousBuy, o, r, c),
		}
	}
	return Decision{
		Recommendation: RecWaitForOrder,
		Rationale:      fmt.Sprintf("no edge: opportunity %.0f, risk %.0f, confidence %.2f", o, r, c),
	}
}

// blocking names the first dimension keeping a product below the buy tiers.
func blocking(t settings.DecisionThresholds, opp, risk, conf float64) string {
	switch {
	case opp < t.MinOpportunity:
		return fmt.Sprintf("opportunity %.0f below %.0f", opp, t.MinOpportunity)
	case risk > t.MaxRisk:
		return fmt.Sprintf("risk %.0f above %.0f", risk, t.MaxRisk)
	case conf < t.MinConfidence:
		return fmt.Sprintf("confidence %.2f below %.2f", conf, t.MinConfidence)
	}
	return "thresholds borderline"
}

func aggressiveMultiplier(liquidity float64) float64 {
	switch {
	case liquidity >= 90:
		return 3.0
	case liquidity >= 70:
		return 2.5
	}
	return 2.0
}

func conservativeMultiplier(liquidity float64) float64 {
	if liquidity >= 70 {
		return 1.5
	}
	return 1.0
}

// StockDays is round(interval x multiplier) clamped to [14, 90]; an unknown
// interval counts as thirty days.
func StockDays(intervalDays, multiplier float64) int {
	if intervalDays <= 0 {
		intervalDays = fallbackIntervalDays
	}
	days := math.Round(intervalDays * multiplier)
	return int(math.Max(minStockDays, math.Min(maxStockDays, days)))
}

// PriorityFor buckets the composite priority score. Dead stock is always
// critical.
func PriorityFor(opp, risk, liquidity float64, flash, dead bool) (Priority, float64) {
	score := 0.5*opp - 0.25*risk + 0.25*liquidity
	if flash {
		score += 15
	}
	score = round2(score)
	if dead {
		return PriorityCritical, score
	}
	switch {
	case score >= 55:
		return PriorityCritical, score
	case score >= 40:
		return PriorityHigh, score
	case score >= 25:
		return PriorityMedium, score
	}
	return PriorityLow, score
}
