package clearance

import (
	"fmt"
	"math"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/metrics"
)

const (
	StrategyAggressive    = "aggressive"
	StrategyModerate      = "moderate"
	StrategyOpportunistic = "opportunistic"

	minStockDays           = 7
	maxStockDays           = 90
	opportunisticStockDays = 7
	fallbackIntervalDays   = 30
)

type Recommendation struct {
	Strategy  string `json:"strategy"`
	StockDays int    `json:"stock_days"`
	Rationale string `json:"rationale"`
}

// Recommend sizes a clearance purchase from the detection confidence and the
// product's purchase cadence.
func Recommend(det Detection, liq metrics.Liquidity) Recommendation {
	interval := liq.AverageIntervalDays
	if interval <= 0 {
		interval = fallbackIntervalDays
	}
	switch {
	case liq.IsFastMover && det.Confidence >= 70:
		mult := 2.0
		switch liq.Bucket {
		case metrics.LiquidityVeryHigh:
			mult = 3.0
		case metrics.LiquidityHigh:
			mult = 2.5
		}
		return Recommendation{
			Strategy:  StrategyAggressive,
			StockDays: StockDays(interval, mult),
			Rationale: fmt.Sprintf("fast mover with %.0f%% clearance confidence at %s", det.Confidence, det.SupplierID),
		}
	case liq.Score >= 40 && det.Confidence >= 60:
		mult := 1.0
		switch liq.Bucket {
		case metrics.LiquidityVeryHigh:
			mult = 2.0
		case metrics.LiquidityHigh:
			mult = 1.5
		}
		return Recommendation{
			Strategy:  StrategyModerate,
			StockDays: StockDays(interval, mult),
			Rationale: fmt.Sprintf("liquidity %.0f supports a moderate clearance buy at %s", liq.Score, det.SupplierID),
		}
	}
	return Recommendation{
		Strategy:  StrategyOpportunistic,
		StockDays: opportunisticStockDays,
		Rationale: fmt.Sprintf("clearance at %s, buy one week of stock", det.SupplierID),
	}
}

// StockDays is round(interval x multiplier) clamped to the clearance range.
func StockDays(intervalDays, multiplier float64) int {
	days := math.Round(intervalDays * multiplier)
	return int(math.Max(minStockDays, math.Min(maxStockDays, days)))
}
