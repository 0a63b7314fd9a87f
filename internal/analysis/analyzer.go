// Package analysis runs the single-product pipeline: snapshot, metrics,
// patterns, clearance, scoring, opportunity upsert and notification.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clearance"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clock"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/metrics"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/notify"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/opportunity"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/pattern"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/scoring"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/snapshot"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/telemetry"
)

const defaultNotifyTimeout = 5 * time.Second

type SnapshotSource interface {
	GetProductSnapshot(ctx context.Context, productID string) (*snapshot.ProductSnapshot, error)
}

type Analyzer struct {
	Snapshots     SnapshotSource
	Patterns      *pattern.Detector
	Clearance     *clearance.Detector
	Scoring       *scoring.Engine
	Opportunities *opportunity.Manager
	Notifier      notify.Sink
	Clock         clock.Clock
	Logger        *zap.Logger
	Telemetry     *telemetry.Collector

	// Timeout bounds the whole pipeline of one product; zero disables it.
	Timeout       time.Duration
	NotifyTimeout time.Duration
}

// Outcome is what one successful product analysis produced.
type Outcome struct {
	ProductID     string
	Result        scoring.Result
	Opportunity   *models.BargainOpportunity
	UpsertOutcome opportunity.Outcome
	Notified      bool
}

// Data is persisted as the opportunity's analysis_data document.
type Data struct {
	Metrics       *metrics.Result     `json:"metrics"`
	Patterns      []pattern.Detection `json:"patterns"`
	Clearance     clearance.Result    `json:"clearance"`
	Scoring       scoring.Result      `json:"scoring"`
	ConfigVersion int                 `json:"config_version"`
	AnalyzedAt    time.Time           `json:"analyzed_at"`
}

// Analyze runs the pipeline for productID. Errors are classified with
// Classify; a panic inside the pipeline is returned as an error only when a
// timeout is configured, otherwise it propagates to the caller.
func (a *Analyzer) Analyze(ctx context.Context, productID, runID string) (*Outcome, error) {
	if a == nil || a.Snapshots == nil {
		return nil, fmt.Errorf("analyzer not configured")
	}
	start := time.Now()
	out, err := a.analyzeWithTimeout(ctx, productID, runID)
	outcome := "analyzed"
	if err != nil {
		outcome = string(Classify(err))
	}
	a.Telemetry.ProductAnalyzed(outcome, time.Since(start))
	return out, err
}

func (a *Analyzer) analyzeWithTimeout(ctx context.Context, productID, runID string) (*Outcome, error) {
	if a.Timeout <= 0 {
		return a.run(ctx, productID, runID)
	}
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	type result struct {
		out *Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v\n%s", r, debug.Stack())}
			}
		}()
		out, err := a.run(ctx, productID, runID)
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		if ctx.Err() == context.DeadlineExceeded {
			if r.err != nil {
				return nil, fmt.Errorf("%w after %s: %v", ErrTimeout, a.Timeout, r.err)
			}
			return nil, fmt.Errorf("%w after %s", ErrTimeout, a.Timeout)
		}
		return r.out, r.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, a.Timeout)
		}
		return nil, ctx.Err()
	}
}

func (a *Analyzer) run(ctx context.Context, productID, runID string) (*Outcome, error) {
	snap, err := a.Snapshots.GetProductSnapshot(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot %s: %w", productID, err)
	}
	now := clock.OrSystem(a.Clock).Now().UTC()

	m, err := metrics.Compute(snap, now)
	if err != nil {
		return nil, err
	}
	cfg, err := a.Scoring.Config(ctx)
	if err != nil {
		return nil, err
	}
	patterns, err := a.Patterns.Detect(ctx, snap, now)
	if err != nil {
		return nil, fmt.Errorf("detect patterns: %w", err)
	}
	clr, err := a.Clearance.Detect(ctx, m, cfg.Clearance)
	if err != nil {
		return nil, err
	}
	res := a.Scoring.EvaluateWith(scoring.Input{
		Snapshot:  snap,
		Metrics:   m,
		Patterns:  patterns,
		Clearance: clr,
	}, cfg)

	data := Data{
		Metrics:       m,
		Patterns:      patterns,
		Clearance:     clr,
		Scoring:       res,
		ConfigVersion: cfg.Version,
		AnalyzedAt:    now,
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode analysis data: %w", err)
	}

	out := &Outcome{ProductID: snap.ID, Result: res}
	if a.Opportunities == nil {
		return out, nil
	}
	up, err := a.Opportunities.Upsert(ctx, opportunity.Candidate{
		ProductID:    snap.ID,
		CurrentPrice: m.CurrentPrice,
		Result:       res,
		AnalysisData: datatypes.JSON(raw),
		RunID:        runID,
	})
	if err != nil {
		return nil, err
	}
	out.Opportunity = up.Opportunity
	out.UpsertOutcome = up.Outcome

	if opportunity.ShouldNotify(up.Opportunity) {
		out.Notified = a.notify(ctx, up.Opportunity, snap)
	}
	return out, nil
}

// notify delivers synchronously under its own timeout. Failures are logged
// and never fail the analysis.
func (a *Analyzer) notify(ctx context.Context, opp *models.BargainOpportunity, snap *snapshot.ProductSnapshot) bool {
	if a.Notifier == nil {
		return false
	}
	timeout := a.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	nctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := a.Notifier.Notify(nctx, opp, snap); err != nil {
		if a.Logger != nil {
			a.Logger.Warn("opportunity notification failed",
				zap.String("product_id", opp.ProductID),
				zap.Uint64("opportunity_id", opp.ID),
				zap.Error(err),
			)
		}
		return false
	}
	if err := a.Opportunities.MarkNotified(ctx, opp); err != nil && a.Logger != nil {
		a.Logger.Warn("mark opportunity notified failed", zap.Uint64("opportunity_id", opp.ID), zap.Error(err))
	}
	return true
}
