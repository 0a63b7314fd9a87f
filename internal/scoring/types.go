// Package scoring turns metrics, patterns and clearance findings into bounded
// opportunity, risk and confidence scores and a purchasing recommendation.
package scoring

import (
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clearance"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/metrics"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/pattern"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/snapshot"
)

type Recommendation string

const (
	RecClearanceUrgent    Recommendation = "clearance_urgent"
	RecClearanceSoon      Recommendation = "clearance_soon"
	RecAvoid              Recommendation = "avoid"
	RecStrongBuyAndStock  Recommendation = "strong_buy_and_stock"
	RecClearanceBuy       Recommendation = "clearance_buy"
	RecOpportunisticStock Recommendation = "opportunistic_stock"
	RecBuyOnDemand        Recommendation = "buy_on_demand"
	RecWatch              Recommendation = "watch"
	RecWaitForOrder       Recommendation = "wait_for_order"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

type ConfidenceLevel string

const (
	ConfidenceVeryHigh ConfidenceLevel = "very_high"
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceMedium   ConfidenceLevel = "medium"
	ConfidenceLow      ConfidenceLevel = "low"
)

// Input is everything one scoring pass reads. Snapshot may be nil when only
// inventory-independent parts are needed.
type Input struct {
	Snapshot  *snapshot.ProductSnapshot
	Metrics   *metrics.Result
	Patterns  []pattern.Detection
	Clearance clearance.Result
}

func (in Input) inventory() int {
	if in.Snapshot == nil {
		return 0
	}
	return in.Snapshot.CurrentInventory
}

type OpportunityBreakdown struct {
	DropTier        float64 `json:"drop_tier"`
	DistanceFromMin float64 `json:"distance_from_min"`
	Competition     float64 `json:"competition"`
	PriceAdvantage  float64 `json:"price_advantage"`

	PatternBonus float64 `json:"pattern_bonus"`
	TrendBonus   float64 `json:"trend_bonus"`
	FlashBonus   float64 `json:"flash_bonus"`
	Timing       float64 `json:"timing"`

	Liquidity float64 `json:"liquidity"`
	Total     float64 `json:"total"`
}

type RiskBreakdown struct {
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`
	ChangeFrequency        float64 `json:"change_frequency"`
	Acceleration           float64 `json:"acceleration"`
	Volatility             float64 `json:"volatility"`

	DistanceFromMin float64 `json:"distance_from_min"`
	Trend           float64 `json:"trend"`
	Underwater      float64 `json:"underwater"`
	MarketPosition  float64 `json:"market_position"`

	DataInsufficiency   float64 `json:"data_insufficiency"`
	AnomalyRate         float64 `json:"anomaly_rate"`
	Consistency         float64 `json:"consistency"`
	SupplierReliability float64 `json:"supplier_reliability"`

	Total float64 `json:"total"`
}

type ConfidenceBreakdown struct {
	DataQuality         float64         `json:"data_quality"`
	ValidatedPatterns   float64         `json:"validated_patterns"`
	SupplierReliability float64         `json:"supplier_reliability"`
	Value               float64         `json:"value"`
	Level               ConfidenceLevel `json:"level"`
}

type Decision struct {
	Recommendation     Recommendation `json:"recommendation"`
	Rationale          string         `json:"rationale"`
	SuggestedStockDays *int           `json:"suggested_stock_days,omitempty"`
	ClearanceSupplier  string         `json:"clearance_supplier,omitempty"`
}

type Result struct {
	Opportunity   OpportunityBreakdown `json:"opportunity"`
	Risk          RiskBreakdown        `json:"risk"`
	Confidence    ConfidenceBreakdown  `json:"confidence"`
	Decision      Decision             `json:"decision"`
	Priority      Priority             `json:"priority"`
	PriorityScore float64              `json:"priority_score"`
	DeadStock     bool                 `json:"dead_stock"`
	IsFlashDeal   bool                 `json:"is_flash_deal"`
}

func (r Result) OpportunityScore() float64 { return r.Opportunity.Total }
func (r Result) RiskScore() float64        { return r.Risk.Total }
