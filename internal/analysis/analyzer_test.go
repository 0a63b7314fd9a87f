package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clearance"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clock"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/metrics"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/opportunity"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/pattern"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/repository"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/repository/memstore"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/scoring"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/snapshot"
)

var testNow = time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

// flashSnapshot has three suppliers flat at 100 for forty days that all cut
// hard within the last six hours.
func flashSnapshot(id string) *snapshot.ProductSnapshot {
	flat := func() []snapshot.PriceObservation {
		out := make([]snapshot.PriceObservation, 0, 42)
		for k := 40; k >= 1; k-- {
			out = append(out, snapshot.PriceObservation{Date: testNow.AddDate(0, 0, -k), Price: 100})
		}
		return out
	}
	a := append(flat(),
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
		ID:   id,
		Name: "Widget " + id,
		Suppliers: []snapshot.SupplierOffer{
			{SupplierID: "A", InStock: true, CurrentPrice: 78, History: a},
			{SupplierID: "B", InStock: true, CurrentPrice: 80, History: b},
			{SupplierID: "C", InStock: true, CurrentPrice: 79, History: c},
		},
		Purchases: purchases,
	}
}

func thinSnapshot(id string) *snapshot.ProductSnapshot {
	return &snapshot.ProductSnapshot{
		ID: id,
		Suppliers: []snapshot.SupplierOffer{{
			SupplierID: "A",
			History: []snapshot.PriceObservation{
				{Date: testNow.AddDate(0, 0, -2), Price: 10},
				{Date: testNow.AddDate(0, 0, -1), Price: 9},
			},
		}},
	}
}

type recordingSink struct {
	calls int
	err   error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Notify(context.Context, *models.BargainOpportunity, *snapshot.ProductSnapshot) error {
	s.calls++
	return s.err
}

func newAnalyzer(store *memstore.Store, sink *recordingSink) *Analyzer {
	clk := clock.NewFixed(testNow)
	a := &Analyzer{
		Snapshots: store,
		Patterns:  &pattern.Detector{Repo: store},
		Clearance: &clearance.Detector{Repo: store, Clock: clk},
		Scoring:   &scoring.Engine{},
		Opportunities: &opportunity.Manager{
			Repo:  store,
			Clock: clk,
		},
		Clock: clk,
	}
	if sink != nil {
		a.Notifier = sink
	}
	return a
}

func TestAnalyzeCreatesOpportunityAndNotifiesOnce(t *testing.T) {
	store := memstore.New()
	store.PutSnapshot(flashSnapshot("p1"))
	sink := &recordingSink{}
	a := newAnalyzer(store, sink)
	ctx := context.Background()

	out, err := a.Analyze(ctx, "p1", "run-1")
	require.NoError(t, err)
	require.NotNil(t, out.Opportunity)
	assert.Equal(t, opportunity.OutcomeCreated, out.UpsertOutcome)
	assert.True(t, out.Result.IsFlashDeal)
	assert.True(t, out.Notified)
	assert.Equal(t, 1, sink.calls)

	stored, err := store.GetActiveOpportunityByProduct(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotNil(t, stored.NotifiedAt)
	require.NotNil(t, stored.LastRunID)
	assert.Equal(t, "run-1", *stored.LastRunID)

	var data Data
	require.NoError(t, json.Unmarshal(stored.AnalysisData, &data))
	require.NotNil(t, data.Metrics)
	assert.Equal(t, "p1", data.Metrics.ProductID)
	assert.True(t, data.Clearance.Detected)
	assert.Equal(t, string(out.Result.Decision.Recommendation), string(data.Scoring.Decision.Recommendation))

	again, err := a.Analyze(ctx, "p1", "run-2")
	require.NoError(t, err)
	assert.Equal(t, opportunity.OutcomeReused, again.UpsertOutcome)
	assert.Equal(t, out.Opportunity.ID, again.Opportunity.ID)
	assert.False(t, again.Notified)
	assert.Equal(t, 1, sink.calls)
}

func TestAnalyzeNotificationFailureIsSwallowed(t *testing.T) {
	store := memstore.New()
	store.PutSnapshot(flashSnapshot("p1"))
	sink := &recordingSink{err: errors.New("telegram down")}
	a := newAnalyzer(store, sink)

	out, err := a.Analyze(context.Background(), "p1", "")
	require.NoError(t, err)
	assert.False(t, out.Notified)
	assert.Equal(t, 1, sink.calls)
	assert.Nil(t, out.Opportunity.NotifiedAt)
}

func TestAnalyzeRecordsPatterns(t *testing.T) {
	store := memstore.New()
	store.PutSnapshot(flashSnapshot("p1"))
	a := newAnalyzer(store, nil)

	_, err := a.Analyze(context.Background(), "p1", "")
	require.NoError(t, err)
	patterns, err := store.ListPatterns(context.Background(), repository.ListPatternsParams{})
	require.NoError(t, err)
	// Supplier A's two June quotes make June a low month.
	require.NotEmpty(t, patterns)
	for _, p := range patterns {
		assert.Equal(t, "p1", p.ProductID)
		assert.Equal(t, 1, p.TimesObserved)
	}
}

func TestAnalyzeFailureKinds(t *testing.T) {
	store := memstore.New()
	store.PutSnapshot(thinSnapshot("thin"))
	store.SnapshotErr["broken"] = errors.New("connection reset")
	a := newAnalyzer(store, nil)
	ctx := context.Background()

	_, err := a.Analyze(ctx, "missing", "")
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
	assert.Equal(t, KindProductNotFound, Classify(err))

	_, err = a.Analyze(ctx, "thin", "")
	assert.ErrorIs(t, err, metrics.ErrInsufficientData)
	assert.Equal(t, KindInsufficientData, Classify(err))

	_, err = a.Analyze(ctx, "broken", "")
	require.Error(t, err)
	assert.Equal(t, KindAnalysisFailure, Classify(err))
}

func TestAnalyzeTimeout(t *testing.T) {
	store := memstore.New()
	store.PutSnapshot(flashSnapshot("slow"))
	store.SnapshotHook = func(ctx context.Context, _ string) {
		<-ctx.Done()
	}
	a := newAnalyzer(store, nil)
	a.Timeout = 20 * time.Millisecond

	_, err := a.Analyze(context.Background(), "slow", "")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, KindTimeout, Classify(err))
}

func TestAnalyzeTimeoutRecoversPanic(t *testing.T) {
	store := memstore.New()
	store.PutSnapshot(flashSnapshot("boom"))
	store.SnapshotHook = func(context.Context, string) { panic("bad row") }
	a := newAnalyzer(store, nil)
	a.Timeout = time.Second

	_, err := a.Analyze(context.Background(), "boom", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: bad row")
	assert.Equal(t, KindAnalysisFailure, Classify(err))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want FailureKind
	}{
		{fmt.Errorf("wrap: %w", metrics.ErrInsufficientData), KindInsufficientData},
		{fmt.Errorf("wrap: %w", repository.ErrProductNotFound), KindProductNotFound},
		{fmt.Errorf("%w after 1s", ErrTimeout), KindTimeout},
		{context.DeadlineExceeded, KindTimeout},
		{errors.New("other"), KindAnalysisFailure},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err), tc.err.Error())
	}
}
