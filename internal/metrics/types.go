package metrics

import "time"

type TrendDirection string

const (
	TrendStrongUp   TrendDirection = "strong_up"
	TrendUp         TrendDirection = "up"
	TrendStable     TrendDirection = "stable"
	TrendDown       TrendDirection = "down"
	TrendStrongDown TrendDirection = "strong_down"
)

type LiquidityBucket string

const (
	LiquidityVeryHigh LiquidityBucket = "very_high"
	LiquidityHigh     LiquidityBucket = "high"
	LiquidityMedium   LiquidityBucket = "medium"
	LiquidityLow      LiquidityBucket = "low"
	LiquidityVeryLow  LiquidityBucket = "very_low"
)

type FlashUrgency string

const (
	FlashCritical FlashUrgency = "critical"
	FlashHigh     FlashUrgency = "high"
	FlashMedium   FlashUrgency = "medium"
)

const (
	ReversalBottom = "bottom"
	ReversalTop    = "top"
)

type WindowStats struct {
	Days     int     `json:"days"`
	Count    int     `json:"count"`
	Average  float64 `json:"average"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	StdDev   float64 `json:"std_dev"`
	Variance float64 `json:"variance"`
	DropPct  float64 `json:"drop_pct"`
}

type Volatility struct {
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`
	VarianceRatio          float64 `json:"variance_ratio"`
	PriceChanges30d        int     `json:"price_changes_30d"`
}

type Trend struct {
	Direction    TrendDirection `json:"direction"`
	Strength     int            `json:"strength"`
	Reversal     bool           `json:"reversal"`
	ReversalType string         `json:"reversal_type,omitempty"`
	Accelerating bool           `json:"accelerating"`
}

type MultiSupplier struct {
	Suppliers            int     `json:"suppliers"`
	InStock              int     `json:"in_stock"`
	DroppingSuppliers    int     `json:"dropping_suppliers"`
	AverageSupplierPrice float64 `json:"average_supplier_price"`
	BestPriceSavingsPct  float64 `json:"best_price_savings_pct"`
}

type FlashDeal struct {
	Detected bool         `json:"detected"`
	GapHours float64      `json:"gap_hours"`
	DropPct  float64      `json:"drop_pct"`
	Urgency  FlashUrgency `json:"urgency,omitempty"`
}

type Liquidity struct {
	PurchaseCount         int             `json:"purchase_count"`
	AverageIntervalDays   float64         `json:"average_interval_days"`
	DaysSinceLastPurchase int             `json:"days_since_last_purchase"`
	LastPurchasePrice     float64         `json:"last_purchase_price"`
	Bucket                LiquidityBucket `json:"bucket"`
	Score                 float64         `json:"score"`
	Halved                bool            `json:"halved"`
	IsFastMover           bool            `json:"is_fast_mover"`
}

// SupplierMetrics carries the per-supplier figures the clearance detector and
// the reliability part of the risk score need.
type SupplierMetrics struct {
	SupplierID      string  `json:"supplier_id"`
	SupplierName    string  `json:"supplier_name"`
	Observations    int     `json:"observations"`
	Observations90d int     `json:"observations_90d"`
	CurrentPrice    float64 `json:"current_price"`
	InStock         bool    `json:"in_stock"`

	Average7  float64 `json:"average_7"`
	Average30 float64 `json:"average_30"`

	ReferencePrice7d float64 `json:"reference_price_7d"`
	Drop7dPct        float64 `json:"drop_7d_pct"`
	DropFrom30dPct   float64 `json:"drop_from_30d_pct"`

	// HistoricalMin excludes the latest observation; zero when unknown.
	HistoricalMin         float64 `json:"historical_min"`
	BelowHistoricalMinPct float64 `json:"below_historical_min_pct"`

	BaselineConsistency float64 `json:"baseline_consistency"`
	Consistency90d      float64 `json:"consistency_90d"`
	Anomalies           int     `json:"anomalies"`

	Trend Trend `json:"trend"`
}

type Result struct {
	ProductID         string    `json:"product_id"`
	ComputedAt        time.Time `json:"computed_at"`
	TotalObservations int       `json:"total_observations"`
	CurrentPrice      float64   `json:"current_price"`

	Window7  WindowStats `json:"window_7"`
	Window30 WindowStats `json:"window_30"`
	Window60 WindowStats `json:"window_60"`
	Window90 WindowStats `json:"window_90"`

	AllTimeAverage     float64 `json:"all_time_average"`
	DropFromAllTimePct float64 `json:"drop_from_all_time_pct"`

	HistoricMin        float64 `json:"historic_min"`
	HistoricMax        float64 `json:"historic_max"`
	DistanceFromMinPct float64 `json:"distance_from_min_pct"`
	DistanceFromMaxPct float64 `json:"distance_from_max_pct"`
	IsHistoricLow      bool    `json:"is_historic_low"`
	IsNearHistoricLow  bool    `json:"is_near_historic_low"`

	Volatility  Volatility        `json:"volatility"`
	Trend       Trend             `json:"trend"`
	Suppliers   MultiSupplier     `json:"suppliers"`
	PerSupplier []SupplierMetrics `json:"per_supplier"`
	Flash       FlashDeal         `json:"flash"`
	Liquidity   Liquidity         `json:"liquidity"`
}

// Window returns the stats for one of the fixed windows; unknown sizes return
// an empty value.
func (r *Result) Window(days int) WindowStats {
	if r == nil {
		return WindowStats{Days: days}
	}
	switch days {
	case 7:
		return r.Window7
	case 30:
		return r.Window30
	case 60:
		return r.Window60
	case 90:
		return r.Window90
	}
	return WindowStats{Days: days}
}

// Supplier looks up per-supplier metrics by id.
func (r *Result) Supplier(id string) (SupplierMetrics, bool) {
	if r == nil {
		return SupplierMetrics{}, false
	}
	for _, s := range r.PerSupplier {
		if s.SupplierID == id {
			return s, true
		}
	}
	return SupplierMetrics{}, false
}
