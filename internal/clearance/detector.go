// Package clearance flags suppliers that look like they are liquidating stock
// rather than making a routine price move.
package clearance

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clock"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/metrics"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/settings"
)

const (
	SignalAggressiveDrop     = "aggressive_drop"
	SignalBelowHistoricMin   = "below_historic_min"
	SignalStableSupplierDrop = "stable_supplier_drop"
	SignalStrongDowntrend    = "strong_downtrend"
	SignalDeepDiscount       = "deep_discount"

	SeverityCritical = "critical"
	SeverityHigh     = "high"

	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyMedium   = "medium"
)

type Signal struct {
	Name     string  `json:"name"`
	Points   float64 `json:"points"`
	Severity string  `json:"severity,omitempty"`
	Value    float64 `json:"value"`
}

type Detection struct {
	SupplierID     string         `json:"supplier_id"`
	SupplierName   string         `json:"supplier_name,omitempty"`
	CurrentPrice   float64        `json:"current_price"`
	Signals        []Signal       `json:"signals"`
	Score          float64        `json:"score"`
	Confidence     float64        `json:"confidence"`
	Urgency        string         `json:"urgency"`
	Dismissed      bool           `json:"dismissed"`
	Recommendation Recommendation `json:"recommendation"`
}

func (d Detection) HasSignal(name string) bool {
	for _, s := range d.Signals {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Result is Detected with Best set when at least one non-dismissed supplier
// qualifies. Candidates keeps every qualifying supplier, dismissed or not.
type Result struct {
	Detected   bool        `json:"detected"`
	Best       *Detection  `json:"best,omitempty"`
	Candidates []Detection `json:"candidates,omitempty"`
}

// Signals evaluates the five clearance signals for one supplier.
func Signals(sm metrics.SupplierMetrics) []Signal {
	var out []Signal
	if sm.Drop7dPct > 20 {
		s := Signal{Name: SignalAggressiveDrop, Points: 30, Value: sm.Drop7dPct}
		if sm.Drop7dPct > 30 {
			s.Severity = SeverityCritical
		}
		out = append(out, s)
	}
	if sm.BelowHistoricalMinPct > 0 {
		s := Signal{Name: SignalBelowHistoricMin, Points: 25, Value: sm.BelowHistoricalMinPct}
		if sm.BelowHistoricalMinPct > 10 {
			s.Severity = SeverityCritical
		}
		out = append(out, s)
	}
	if sm.BaselineConsistency > 0.75 && sm.DropFrom30dPct > 15 {
		out = append(out, Signal{Name: SignalStableSupplierDrop, Points: 20, Value: sm.DropFrom30dPct})
	}
	if sm.Trend.Direction == metrics.TrendStrongDown && sm.Trend.Strength >= 7 {
		out = append(out, Signal{Name: SignalStrongDowntrend, Points: 15, Value: float64(sm.Trend.Strength)})
	}
	if sm.DropFrom30dPct > 25 {
		s := Signal{Name: SignalDeepDiscount, Points: 10, Value: sm.DropFrom30dPct}
		if sm.DropFrom30dPct > 35 {
			s.Severity = SeverityHigh
		}
		out = append(out, s)
	}
	return out
}

// EvaluateSupplier reports whether a supplier qualifies as clearance.
func EvaluateSupplier(sm metrics.SupplierMetrics, cfg settings.ClearanceSettings) (Detection, bool) {
	signals := Signals(sm)
	score := 0.0
	critical := false
	for _, s := range signals {
		score += s.Points
		if s.Severity == SeverityCritical {
			critical = true
		}
	}
	score = math.Min(100, score)

	det := Detection{
		SupplierID:   sm.SupplierID,
		SupplierName: sm.SupplierName,
		CurrentPrice: sm.CurrentPrice,
		Signals:      signals,
		Score:        score,
		Confidence:   confidence(score, sm.Observations),
	}
	if len(signals) < cfg.MinSignals || score < cfg.MinScore {
		return det, false
	}

	aggressiveOrBelow := det.HasSignal(SignalAggressiveDrop) || det.HasSignal(SignalBelowHistoricMin)
	switch {
	case critical && score >= 70:
		det.Urgency = UrgencyCritical
	case aggressiveOrBelow && score >= 50, len(signals) >= 3:
		det.Urgency = UrgencyHigh
	default:
		det.Urgency = UrgencyMedium
	}
	return det, true
}

// confidence scales the signal score by how much history backs it; forty or
// more observations give full weight.
func confidence(score float64, observations int) float64 {
	factor := math.Min(1, 0.5+float64(observations)/80)
	return math.Round(score * factor)
}

// Evaluate runs every supplier and picks the highest-confidence detection
// among suppliers that are not dismissed.
func Evaluate(m *metrics.Result, cfg settings.ClearanceSettings, dismissed map[string]bool) Result {
	var res Result
	if m == nil {
		return res
	}
	for _, sm := range m.PerSupplier {
		det, ok := EvaluateSupplier(sm, cfg)
		if !ok {
			continue
		}
		det.Dismissed = dismissed[sm.SupplierID]
		det.Recommendation = Recommend(det, m.Liquidity)
		res.Candidates = append(res.Candidates, det)
	}
	sort.SliceStable(res.Candidates, func(i, j int) bool {
		a, b := res.Candidates[i], res.Candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.SupplierID < b.SupplierID
	})
	for i := range res.Candidates {
		if res.Candidates[i].Dismissed {
			continue
		}
		best := res.Candidates[i]
		res.Best = &best
		res.Detected = true
		break
	}
	return res
}

// DismissalStore is the persistence the detector needs for dismissals.
type DismissalStore interface {
	ListClearanceDismissalsSince(ctx context.Context, productID string, since time.Time) ([]models.ClearanceDismissal, error)
	CreateClearanceDismissal(ctx context.Context, item *models.ClearanceDismissal) error
}

type Detector struct {
	Repo          DismissalStore
	Opportunities ActiveOpportunities
	Clock         clock.Clock
	Logger        *zap.Logger
}

// Detect evaluates the product and drops suppliers an operator dismissed
// within the configured window from the override path.
func (d *Detector) Detect(ctx context.Context, m *metrics.Result, cfg settings.ClearanceSettings) (Result, error) {
	if m == nil {
		return Result{}, nil
	}
	dismissed := map[string]bool{}
	if d != nil && d.Repo != nil {
		since := clock.OrSystem(d.Clock).Now().AddDate(0, 0, -cfg.DismissalWindowDays)
		items, err := d.Repo.ListClearanceDismissalsSince(ctx, m.ProductID, since)
		if err != nil {
			return Result{}, fmt.Errorf("load clearance dismissals: %w", err)
		}
		for _, it := range items {
			dismissed[it.SupplierID] = true
		}
	}
	res := Evaluate(m, cfg, dismissed)
	if d != nil && d.Logger != nil && res.Detected {
		d.Logger.Info("clearance detected",
			zap.String("product_id", m.ProductID),
			zap.String("supplier_id", res.Best.SupplierID),
			zap.Float64("score", res.Best.Score),
			zap.String("urgency", res.Best.Urgency),
		)
	}
	return res, nil
}
