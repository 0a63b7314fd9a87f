package clearance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clock"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/metrics"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/settings"
)

type fakeDismissals struct {
	items []models.ClearanceDismissal
	since time.Time
}

func (f *fakeDismissals) ListClearanceDismissalsSince(ctx context.Context, productID string, since time.Time) ([]models.ClearanceDismissal, error) {
	f.since = since
	var out []models.ClearanceDismissal
	for _, it := range f.items {
		if it.ProductID == productID && !it.CreatedAt.Before(since) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeDismissals) CreateClearanceDismissal(ctx context.Context, item *models.ClearanceDismissal) error {
	item.ID = uint64(len(f.items) + 1)
	f.items = append(f.items, *item)
	return nil
}

type fakeActive map[string]*models.BargainOpportunity

func (f fakeActive) GetActiveOpportunityByProduct(ctx context.Context, productID string) (*models.BargainOpportunity, error) {
	return f[productID], nil
}

func defaults() settings.ClearanceSettings {
	return settings.Defaults().Clearance
}

func liquidating(id string) metrics.SupplierMetrics {
	return metrics.SupplierMetrics{
		SupplierID:            id,
		Observations:          40,
		CurrentPrice:          60,
		Drop7dPct:             35,
		BelowHistoricalMinPct: 12,
		BaselineConsistency:   0.9,
		DropFrom30dPct:        28,
		Trend:                 metrics.Trend{Direction: metrics.TrendDown, Strength: 5},
	}
}

func TestEvaluateSupplier_SingleSignalIsNotClearance(t *testing.T) {
	det, ok := EvaluateSupplier(metrics.SupplierMetrics{SupplierID: "s1", Drop7dPct: 25, Observations: 40}, defaults())
	assert.False(t, ok)
	require.Len(t, det.Signals, 1)
	assert.Equal(t, SignalAggressiveDrop, det.Signals[0].Name)
	assert.Equal(t, 30.0, det.Score)
}

func TestEvaluateSupplier_CriticalLiquidation(t *testing.T) {
	det, ok := EvaluateSupplier(liquidating("s1"), defaults())
	require.True(t, ok)
	assert.Equal(t, 85.0, det.Score)
	assert.Equal(t, 85.0, det.Confidence)
	assert.Equal(t, UrgencyCritical, det.Urgency)
	assert.True(t, det.HasSignal(SignalStableSupplierDrop))
	assert.True(t, det.HasSignal(SignalDeepDiscount))
	assert.False(t, det.HasSignal(SignalStrongDowntrend))
}

func TestEvaluateSupplier_Urgency(t *testing.T) {
	cases := []struct {
		name    string
		sm      metrics.SupplierMetrics
		ok      bool
		urgency string
	}{
		{
			name:    "aggressive plus below min is high",
			sm:      metrics.SupplierMetrics{Drop7dPct: 25, BelowHistoricalMinPct: 5},
			ok:      true,
			urgency: UrgencyHigh,
		},
		{
			name:    "aggressive plus deep discount under fifty is medium",
			sm:      metrics.SupplierMetrics{Drop7dPct: 25, DropFrom30dPct: 26},
			ok:      true,
			urgency: UrgencyMedium,
		},
		{
			name: "three signals is high",
			sm: metrics.SupplierMetrics{
				BaselineConsistency: 0.8,
				DropFrom30dPct:      26,
				Trend:               metrics.Trend{Direction: metrics.TrendStrongDown, Strength: 8},
			},
			ok:      true,
			urgency: UrgencyHigh,
		},
		{
			name: "two signals under the minimum score",
			sm: metrics.SupplierMetrics{
				DropFrom30dPct: 26,
				Trend:          metrics.Trend{Direction: metrics.TrendStrongDown, Strength: 7},
			},
			ok: false,
		},
		{
			name: "weak downtrend does not count",
			sm: metrics.SupplierMetrics{
				Drop7dPct: 25,
				Trend:     metrics.Trend{Direction: metrics.TrendStrongDown, Strength: 6},
			},
			ok: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			det, ok := EvaluateSupplier(tc.sm, defaults())
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.urgency, det.Urgency)
			}
		})
	}
}

func TestEvaluate_SkipsDismissedSuppliers(t *testing.T) {
	weaker := liquidating("s2")
	weaker.Observations = 20
	m := &metrics.Result{
		ProductID:   "p1",
		PerSupplier: []metrics.SupplierMetrics{liquidating("s1"), weaker, {SupplierID: "s3", Observations: 40}},
		Liquidity:   metrics.Liquidity{AverageIntervalDays: 10, Bucket: metrics.LiquidityVeryHigh, Score: 100, IsFastMover: true},
	}

	res := Evaluate(m, defaults(), nil)
	require.True(t, res.Detected)
	assert.Equal(t, "s1", res.Best.SupplierID)
	assert.Len(t, res.Candidates, 2)

	res = Evaluate(m, defaults(), map[string]bool{"s1": true})
	require.True(t, res.Detected)
	assert.Equal(t, "s2", res.Best.SupplierID)
	require.Len(t, res.Candidates, 2)
	assert.True(t, res.Candidates[0].Dismissed)

	res = Evaluate(m, defaults(), map[string]bool{"s1": true, "s2": true})
	assert.False(t, res.Detected)
	assert.Nil(t, res.Best)
	assert.Len(t, res.Candidates, 2)
}

func TestRecommend(t *testing.T) {
	det := Detection{SupplierID: "s1", Confidence: 85}

	r := Recommend(det, metrics.Liquidity{AverageIntervalDays: 10, Bucket: metrics.LiquidityVeryHigh, Score: 100, IsFastMover: true})
	assert.Equal(t, StrategyAggressive, r.Strategy)
	assert.Equal(t, 30, r.StockDays)

	r = Recommend(det, metrics.Liquidity{AverageIntervalDays: 20, Bucket: metrics.LiquidityHigh, Score: 80, IsFastMover: true})
	assert.Equal(t, 50, r.StockDays)

	r = Recommend(det, metrics.Liquidity{AverageIntervalDays: 40, Bucket: metrics.LiquidityVeryHigh, Score: 100, IsFastMover: true})
	assert.Equal(t, 90, r.StockDays, "clamped to ninety days")

	r = Recommend(Detection{Confidence: 65}, metrics.Liquidity{AverageIntervalDays: 45, Bucket: metrics.LiquidityMedium, Score: 60})
	assert.Equal(t, StrategyModerate, r.Strategy)
	assert.Equal(t, 45, r.StockDays)

	r = Recommend(Detection{Confidence: 65}, metrics.Liquidity{Bucket: metrics.LiquidityVeryLow, Score: 20})
	assert.Equal(t, StrategyOpportunistic, r.Strategy)
	assert.Equal(t, 7, r.StockDays)

	assert.Equal(t, 7, StockDays(2, 1.0))
	assert.Equal(t, 30, StockDays(30, 1.0))
}

func TestDetector_UsesDismissalWindow(t *testing.T) {
	now := time.Date(2026, time.May, 20, 12, 0, 0, 0, time.UTC)
	repo := &fakeDismissals{items: []models.ClearanceDismissal{
		{ProductID: "p1", SupplierID: "s1", CreatedAt: now.AddDate(0, 0, -10)},
		{ProductID: "p1", SupplierID: "s2", CreatedAt: now.AddDate(0, 0, -45)},
	}}
	d := &Detector{Repo: repo, Clock: clock.NewFixed(now)}
	m := &metrics.Result{
		ProductID:   "p1",
		PerSupplier: []metrics.SupplierMetrics{liquidating("s1"), liquidating("s2")},
	}

	res, err := d.Detect(context.Background(), m, defaults())
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -30), repo.since)
	require.True(t, res.Detected)
	assert.Equal(t, "s2", res.Best.SupplierID, "s2 dismissal is outside the window")

	cfg := defaults()
	cfg.DismissalWindowDays = 60
	res, err = d.Detect(context.Background(), m, cfg)
	require.NoError(t, err)
	assert.False(t, res.Detected)
}

func TestDetector_Dismiss(t *testing.T) {
	now := time.Date(2026, time.May, 20, 12, 0, 0, 0, time.UTC)
	repo := &fakeDismissals{}
	d := &Detector{Repo: repo, Clock: clock.NewFixed(now)}

	_, err := d.Dismiss(context.Background(), DismissRequest{ProductID: "p1", SupplierID: "s1"})
	require.ErrorIs(t, err, ErrDismissalInvalid)

	det, _ := EvaluateSupplier(liquidating("s1"), defaults())
	item, err := d.Dismiss(context.Background(), DismissRequest{
		ProductID:   "p1",
		SupplierID:  " s1 ",
		Reason:      "supplier price feed glitch",
		DismissedBy: "ops",
		Detection:   &det,
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", item.SupplierID)
	assert.Equal(t, now, item.CreatedAt)
	assert.Contains(t, string(item.SignalSnapshot), SignalAggressiveDrop)
	assert.Len(t, repo.items, 1)
}

func TestDetector_DismissSnapshotsActiveOpportunity(t *testing.T) {
	now := time.Date(2026, time.May, 20, 12, 0, 0, 0, time.UTC)
	det, ok := EvaluateSupplier(liquidating("s1"), defaults())
	require.True(t, ok)
	other, _ := EvaluateSupplier(liquidating("s2"), defaults())
	raw, err := json.Marshal(map[string]any{
		"clearance": Result{Detected: true, Best: &det, Candidates: []Detection{other, det}},
	})
	require.NoError(t, err)

	repo := &fakeDismissals{}
	d := &Detector{
		Repo:          repo,
		Opportunities: fakeActive{"p1": {ID: 7, ProductID: "p1", AnalysisData: raw}},
		Clock:         clock.NewFixed(now),
	}

	item, err := d.Dismiss(context.Background(), DismissRequest{ProductID: "p1", SupplierID: "s1", Reason: "known promo"})
	require.NoError(t, err)
	var stored Detection
	require.NoError(t, json.Unmarshal(item.SignalSnapshot, &stored))
	assert.Equal(t, "s1", stored.SupplierID)
	assert.Equal(t, det.Score, stored.Score)
	assert.True(t, stored.HasSignal(SignalAggressiveDrop))

	// No active opportunity for the product leaves an empty snapshot.
	item, err = d.Dismiss(context.Background(), DismissRequest{ProductID: "p2", SupplierID: "s1", Reason: "known promo"})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(item.SignalSnapshot))
	assert.Len(t, repo.items, 2)
}
