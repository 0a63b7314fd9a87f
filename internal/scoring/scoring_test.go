package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clearance"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/metrics"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/pattern"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/settings"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/snapshot"
)

var testNow = time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

// bargainSnapshot has three suppliers at a flat 100 for forty days who all
// cut in the last six hours; the final cut lands one hour after the
// previous quote. The product sells every ten days.
func bargainSnapshot() *snapshot.ProductSnapshot {
	flat := func() []snapshot.PriceObservation {
		out := make([]snapshot.PriceObservation, 0, 42)
		for k := 40; k >= 1; k-- {
			out = append(out, snapshot.PriceObservation{Date: testNow.AddDate(0, 0, -k), Price: 100})
		}
		return out
	}
	a := flat()
	a = append(a,
		snapshot.PriceObservation{Date: testNow.Add(-2 * time.Hour), Price: 95},
		snapshot.PriceObservation{Date: testNow.Add(-1 * time.Hour), Price: 78},
	)
	b := append(flat(), snapshot.PriceObservation{Date: testNow.Add(-6 * time.Hour), Price: 80})
	c := append(flat(), snapshot.PriceObservation{Date: testNow.Add(-5 * time.Hour), Price: 79})

	var purchases []snapshot.PurchaseRecord
	for _, d := range []int{2, 12, 22, 32} {
		purchases = append(purchases, snapshot.PurchaseRecord{Date: testNow.AddDate(0, 0, -d), Quantity: 5, Price: 100})
	}
	return &snapshot.ProductSnapshot{
		ID:   "p1",
		Name: "Widget",
		Suppliers: []snapshot.SupplierOffer{
			{SupplierID: "A", InStock: true, CurrentPrice: 78, History: a},
			{SupplierID: "B", InStock: true, CurrentPrice: 80, History: b},
			{SupplierID: "C", InStock: true, CurrentPrice: 79, History: c},
		},
		Purchases: purchases,
	}
}

func validatedPatterns() []pattern.Detection {
	return []pattern.Detection{
		{Key: "p1:A:day_of_week", Matched: true, Confidence: 0.8, TimesObserved: 6, TimesSuccessful: 4},
		{Key: "p1:*:monthly_cycle", Matched: true, Confidence: 0.8, TimesObserved: 5, TimesSuccessful: 3},
	}
}

func bargainInput(t *testing.T) Input {
	t.Helper()
	snap := bargainSnapshot()
	m, err := metrics.Compute(snap, testNow)
	require.NoError(t, err)
	return Input{
		Snapshot:  snap,
		Metrics:   m,
		Patterns:  validatedPatterns(),
		Clearance: clearance.Evaluate(m, settings.Defaults().Clearance, nil),
	}
}

func TestScore_StrongBuyAndStock(t *testing.T) {
	in := bargainInput(t)
	res := Score(in, settings.Defaults())

	assert.Equal(t, 25.0, res.Opportunity.DropTier)
	assert.Equal(t, 20.0, res.Opportunity.DistanceFromMin)
	assert.Equal(t, 5.0, res.Opportunity.Competition)
	assert.Equal(t, 15.0, res.Opportunity.PatternBonus)
	assert.Equal(t, 4.0, res.Opportunity.TrendBonus)
	assert.Equal(t, 5.0, res.Opportunity.FlashBonus)
	assert.Equal(t, 20.0, res.Opportunity.Liquidity)
	assert.Equal(t, 94.0, res.Opportunity.Total)

	assert.Equal(t, 0.0, res.Risk.CoefficientOfVariation)
	assert.Equal(t, 3.0, res.Risk.ChangeFrequency)
	assert.Equal(t, 5.0, res.Risk.Acceleration)
	assert.Equal(t, 8.0, res.Risk.Total)

	assert.Equal(t, 1.0, res.Confidence.Value)
	assert.Equal(t, ConfidenceVeryHigh, res.Confidence.Level)

	assert.True(t, in.Clearance.Detected, "supplier A also looks like clearance")
	assert.Equal(t, RecStrongBuyAndStock, res.Decision.Recommendation)
	require.NotNil(t, res.Decision.SuggestedStockDays)
	assert.Equal(t, 30, *res.Decision.SuggestedStockDays)

	assert.True(t, res.IsFlashDeal)
	assert.Equal(t, PriorityCritical, res.Priority)
	assert.Equal(t, 85.0, res.PriorityScore)
}

func TestScore_WithoutPatternsFallsBackToClearanceBuy(t *testing.T) {
	in := bargainInput(t)
	in.Patterns = nil
	res := Score(in, settings.Defaults())

	assert.Equal(t, 79.0, res.Opportunity.Total)
	assert.Equal(t, 0.7, res.Confidence.Value)
	assert.Equal(t, RecClearanceBuy, res.Decision.Recommendation)
	assert.Equal(t, "A", res.Decision.ClearanceSupplier)
	require.NotNil(t, res.Decision.SuggestedStockDays)
	assert.Equal(t, in.Clearance.Best.Recommendation.StockDays, *res.Decision.SuggestedStockDays)
}

func TestDecide_AvoidBeatsStrongBuy(t *testing.T) {
	in := Input{Metrics: &metrics.Result{Liquidity: metrics.Liquidity{AverageIntervalDays: 10, Score: 100, IsFastMover: true}}}
	d := Decide(in, settings.Defaults(),
		OpportunityBreakdown{Total: 90},
		RiskBreakdown{Total: 80},
		ConfidenceBreakdown{Value: 0.9},
	)
	assert.Equal(t, RecAvoid, d.Recommendation)
	assert.Nil(t, d.SuggestedStockDays)
}

func TestDecide_DeadStock(t *testing.T) {
	liq := metrics.Liquidity{AverageIntervalDays: 10, DaysSinceLastPurchase: 25, Score: 50, IsFastMover: true}
	in := Input{
		Snapshot: &snapshot.ProductSnapshot{ID: "p1", CurrentInventory: 5},
		Metrics:  &metrics.Result{Liquidity: liq},
	}
	d := Decide(in, settings.Defaults(), OpportunityBreakdown{Total: 95}, RiskBreakdown{Total: 90}, ConfidenceBreakdown{Value: 1})
	assert.Equal(t, RecClearanceUrgent, d.Recommendation)

	in.Metrics.Liquidity.DaysSinceLastPurchase = 16
	d = Decide(in, settings.Defaults(), OpportunityBreakdown{Total: 95}, RiskBreakdown{Total: 10}, ConfidenceBreakdown{Value: 1})
	assert.Equal(t, RecClearanceSoon, d.Recommendation)

	in.Snapshot.CurrentInventory = 0
	d = Decide(in, settings.Defaults(), OpportunityBreakdown{Total: 10}, RiskBreakdown{Total: 10}, ConfidenceBreakdown{Value: 1})
	assert.Equal(t, RecWaitForOrder, d.Recommendation)

	p, _ := PriorityFor(10, 50, 10, false, true)
	assert.Equal(t, PriorityCritical, p)
}

func TestDecide_Ladder(t *testing.T) {
	cfg := settings.Defaults()
	slow := &metrics.Result{Liquidity: metrics.Liquidity{AverageIntervalDays: 45, Score: 60}}
	withClearance := clearance.Result{
		Detected: true,
		Best: &clearance.Detection{
			SupplierID:     "s9",
			Score:          75,
			Urgency:        clearance.UrgencyHigh,
			Recommendation: clearance.Recommendation{Strategy: clearance.StrategyModerate, StockDays: 21},
		},
	}

	cases := []struct {
		name      string
		in        Input
		opp, risk float64
		conf      float64
		want      Recommendation
		days      int
		rationale string
	}{
		{name: "clearance buy", in: Input{Metrics: slow, Clearance: withClearance}, opp: 60, risk: 30, conf: 0.7, want: RecClearanceBuy, days: 21, rationale: "s9"},
		{name: "opportunistic stock", in: Input{Metrics: slow}, opp: 88, risk: 50, conf: 0.3, want: RecOpportunisticStock, days: 45},
		{name: "buy on demand", in: Input{Metrics: slow}, opp: 70, risk: 45, conf: 0.55, want: RecBuyOnDemand},
		{name: "cautious buy", in: Input{Metrics: slow}, opp: 58, risk: 55, conf: 0.45, want: RecBuyOnDemand, rationale: "cautious"},
		{name: "watch names opportunity", in: Input{Metrics: slow}, opp: 45, risk: 30, conf: 0.5, want: RecWatch, rationale: "opportunity 45 below 55"},
		{name: "watch names risk", in: Input{Metrics: slow}, opp: 60, risk: 65, conf: 0.5, want: RecWatch, rationale: "risk 65 above 60"},
		{name: "watch names confidence", in: Input{Metrics: slow}, opp: 60, risk: 30, conf: 0.35, want: RecWatch, rationale: "confidence 0.35 below 0.40"},
		{name: "wait", in: Input{Metrics: slow}, opp: 20, risk: 30, conf: 0.5, want: RecWaitForOrder},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.in, cfg, OpportunityBreakdown{Total: tc.opp}, RiskBreakdown{Total: tc.risk}, ConfidenceBreakdown{Value: tc.conf})
			assert.Equal(t, tc.want, d.Recommendation)
			if tc.days > 0 {
				require.NotNil(t, d.SuggestedStockDays)
				assert.Equal(t, tc.days, *d.SuggestedStockDays)
			}
			if tc.rationale != "" {
				assert.Contains(t, d.Rationale, tc.rationale)
			}
		})
	}
}

func TestRisk_WorstCaseStaysBounded(t *testing.T) {
	m := &metrics.Result{
		TotalObservations:  5,
		CurrentPrice:       100,
		DistanceFromMinPct: 50,
		Window30:           metrics.WindowStats{Count: 10},
		Volatility:         metrics.Volatility{CoefficientOfVariation: 50, VarianceRatio: 3, PriceChanges30d: 20},
		Trend:              metrics.Trend{Direction: metrics.TrendStrongDown, Strength: 10},
		Liquidity:          metrics.Liquidity{LastPurchasePrice: 200},
	}
	in := Input{Snapshot: &snapshot.ProductSnapshot{CurrentInventory: 5}, Metrics: m}
	b := Risk(in, settings.Defaults())

	assert.Equal(t, 35.0, b.Volatility)
	assert.Equal(t, 35.0, b.MarketPosition)
	assert.Equal(t, 20.0, b.SupplierReliability)
	assert.Equal(t, 90.0, b.Total)

	in.Snapshot.CurrentInventory = 0
	assert.Equal(t, 0.0, Risk(in, settings.Defaults()).Underwater)
}

func TestOpportunity_Bounded(t *testing.T) {
	m := &metrics.Result{
		Window30:           metrics.WindowStats{DropPct: 60},
		DistanceFromMinPct: -15,
		Suppliers:          metrics.MultiSupplier{DroppingSuppliers: 6},
		Trend:              metrics.Trend{Direction: metrics.TrendDown, Reversal: true, ReversalType: metrics.ReversalBottom},
		Flash:              metrics.FlashDeal{Detected: true, Urgency: metrics.FlashCritical},
		Liquidity:          metrics.Liquidity{Score: 100, IsFastMover: true},
	}
	patterns := []pattern.Detection{{Matched: true, Confidence: 0.95}, {Matched: true, Confidence: 0.95}, {Matched: true, Confidence: 0.95}}
	b := Opportunity(Input{Metrics: m, Patterns: patterns}, settings.Defaults())
	assert.Equal(t, 100.0, b.Total)
	assert.Equal(t, 10.0, b.TrendBonus)

	assert.Equal(t, OpportunityBreakdown{}, Opportunity(Input{}, settings.Defaults()))
}

func TestDropTier(t *testing.T) {
	thr := settings.Defaults().PriceDrop
	cases := map[float64]float64{
		-3:   0,
		0:    0,
		2.5:  1.5,
		5:    3,
		7.5:  6.5,
		10:   10,
		12.5: 14,
		15:   18,
		17.5: 21.5,
		20:   25,
		40:   25,
	}
	for drop, want := range cases {
		assert.InDelta(t, want, dropTier(drop, thr), 1e-9, "drop %.1f", drop)
	}
}

func TestPatternBonus(t *testing.T) {
	one := Input{Patterns: []pattern.Detection{{Matched: true, Confidence: 0.5}, {Matched: false, Confidence: 0.9}}}
	assert.InDelta(t, 5.0, patternBonus(one), 1e-9)
	assert.Equal(t, 15.0, patternBonus(Input{Patterns: validatedPatterns()}))
	assert.Equal(t, 0.0, patternBonus(Input{}))
}

func TestStockDays(t *testing.T) {
	assert.Equal(t, 30, StockDays(10, 3))
	assert.Equal(t, 14, StockDays(3, 2))
	assert.Equal(t, 30, StockDays(0, 1))
	assert.Equal(t, 90, StockDays(60, 2.5))
	assert.Equal(t, 25, StockDays(10, 2.5))
}

func TestPriorityFor(t *testing.T) {
	cases := []struct {
		opp, risk, liq float64
		flash          bool
		want           Priority
	}{
		{94, 8, 100, true, PriorityCritical},
		{70, 20, 80, false, PriorityHigh},
		{60, 40, 60, false, PriorityMedium},
		{20, 60, 20, false, PriorityLow},
	}
	for _, tc := range cases {
		got, _ := PriorityFor(tc.opp, tc.risk, tc.liq, tc.flash, false)
		assert.Equal(t, tc.want, got)
	}
}

func TestConfidenceLevels(t *testing.T) {
	assert.Equal(t, ConfidenceVeryHigh, levelFor(0.8))
	assert.Equal(t, ConfidenceHigh, levelFor(0.6))
	assert.Equal(t, ConfidenceMedium, levelFor(0.45))
	assert.Equal(t, ConfidenceLow, levelFor(0.1))

	c := Confidence(Input{Patterns: []pattern.Detection{{Matched: true, Confidence: 0.3}}})
	assert.Equal(t, 1.0, c.ValidatedPatterns)
	assert.Equal(t, 0.1, c.Value)
}

type staticSettings struct{ cfg settings.Configuration }

func (s staticSettings) Get(ctx context.Context) (settings.Configuration, error) {
	return s.cfg, nil
}

func TestEngine_UsesProvidedSettings(t *testing.T) {
	in := bargainInput(t)

	res, err := (&Engine{}).Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, RecStrongBuyAndStock, res.Decision.Recommendation)

	strict := settings.Defaults()
	strict.Avoid.MaxRisk = 5
	res, err = (&Engine{Settings: staticSettings{cfg: strict}}).Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, RecAvoid, res.Decision.Recommendation)
}
