// Package batch analyzes many products under one AnalysisRun, sequentially
// or in bounded parallel chunks, isolating per-product failures.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/analysis"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clock"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/telemetry"
)

type ProductAnalyzer interface {
	Analyze(ctx context.Context, productID, runID string) (*analysis.Outcome, error)
}

type RunStore interface {
	CreateAnalysisRun(ctx context.Context, item *models.AnalysisRun) error
	UpdateAnalysisRun(ctx context.Context, id string, updates map[string]any) error
	GetAnalysisRun(ctx context.Context, id string) (*models.AnalysisRun, error)
}

type ProductLister interface {
	ListActiveProductIDs(ctx context.Context, limit int) ([]string, error)
}

type Orchestrator struct {
	Runs      RunStore
	Analyzer  ProductAnalyzer
	Products  ProductLister
	Clock     clock.Clock
	Logger    *zap.Logger
	Telemetry *telemetry.Collector

	mu sync.Mutex
	// active maps running run ids to their cancel flag.
	active map[string]bool
}

type productResult struct {
	productID string
	outcome   *analysis.Outcome
	err       error
}

// RunAll analyzes every active product.
func (o *Orchestrator) RunAll(ctx context.Context, opts Options) (*Report, error) {
	if o == nil || o.Products == nil {
		return nil, ErrNotConfigured
	}
	ids, err := o.Products.ListActiveProductIDs(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	return o.Run(ctx, ids, opts)
}

// Run creates a running AnalysisRun and analyzes productIDs. Progress is
// persisted after every chunk. A cancel request, or a cancelled ctx, is only
// observed between chunks. The returned error is a *RunAbortError when a
// sequential run without ContinueOnError hits a failing product.
func (o *Orchestrator) Run(ctx context.Context, productIDs []string, opts Options) (*Report, error) {
	if o == nil || o.Runs == nil || o.Analyzer == nil {
		return nil, ErrNotConfigured
	}
	ids := cleanIDs(productIDs)
	if len(ids) == 0 {
		return nil, ErrNoProducts
	}
	opts = opts.normalized()
	clk := clock.OrSystem(o.Clock)
	started := clk.Now().UTC()

	runID := strings.TrimSpace(opts.RunID)
	if runID == "" {
		runID = uuid.NewString()
	}
	run := &models.AnalysisRun{
		ID:              runID,
		Status:          models.RunStatusRunning,
		Mode:            string(opts.Mode),
		MaxConcurrent:   opts.MaxConcurrent,
		ContinueOnError: opts.ContinueOnError,
		TriggeredBy:     strings.TrimSpace(opts.TriggeredBy),
		RetryOf:         opts.retryOf,
		ProductsTotal:   len(ids),
		StartedAt:       started,
	}
	if err := o.Runs.CreateAnalysisRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create analysis run: %w", err)
	}
	o.register(run.ID)
	defer o.unregister(run.ID)

	if o.Logger != nil {
		o.Logger.Info("analysis run started",
			zap.String("run_id", run.ID),
			zap.String("mode", run.Mode),
			zap.Int("products", len(ids)),
			zap.Int("max_concurrent", opts.MaxConcurrent),
		)
	}

	// Bookkeeping outlives a cancelled caller context.
	bookCtx := context.WithoutCancel(ctx)
	acc := newAccumulator()
	var abort *RunAbortError
	for start := 0; start < len(ids); start += opts.MaxConcurrent {
		if o.cancelRequested(run.ID) || ctx.Err() != nil {
			acc.cancelled = true
			break
		}
		end := start + opts.MaxConcurrent
		if end > len(ids) {
			end = len(ids)
		}
		results := o.runChunk(ctx, run.ID, ids[start:end])
		for _, r := range results {
			acc.add(r)
		}
		if opts.Mode == ModeSequential && !opts.ContinueOnError && results[0].err != nil {
			abort = &RunAbortError{
				RunID:     run.ID,
				ProductID: results[0].productID,
				Kind:      analysis.Classify(results[0].err),
				Err:       results[0].err,
			}
			break
		}
		if end < len(ids) {
			o.persist(bookCtx, run, acc, nil)
		}
	}

	finished := clk.Now().UTC()
	run.Status = acc.status(abort != nil)
	run.CompletedAt = &finished
	run.DurationMs = finished.Sub(started).Milliseconds()
	o.persist(bookCtx, run, acc, map[string]any{
		"status":       run.Status,
		"completed_at": run.CompletedAt,
		"duration_ms":  run.DurationMs,
	})
	o.Telemetry.RunFinished(run.Status, finished.Sub(started))

	if o.Logger != nil {
		o.Logger.Info("analysis run finished",
			zap.String("run_id", run.ID),
			zap.String("status", run.Status),
			zap.Int("analyzed", run.ProductsAnalyzed),
			zap.Int("skipped", run.ProductsSkipped),
			zap.Int64("duration_ms", run.DurationMs),
		)
	}
	if abort != nil {
		return nil, abort
	}
	return &Report{Run: run, Errors: acc.errors, Summary: acc.summary()}, nil
}

// runChunk analyzes every product of the chunk on a bounded pool and waits
// for all of them; one failure never cancels its siblings.
func (o *Orchestrator) runChunk(ctx context.Context, runID string, chunk []string) []productResult {
	results := make([]productResult, len(chunk))
	if len(chunk) == 1 {
		results[0] = o.analyzeOne(ctx, runID, chunk[0])
		return results
	}
	p := pool.New().WithMaxGoroutines(len(chunk))
	for i, id := range chunk {
		p.Go(func() {
			results[i] = o.analyzeOne(ctx, runID, id)
		})
	}
	p.Wait()
	return results
}

func (o *Orchestrator) analyzeOne(ctx context.Context, runID, productID string) productResult {
	res := productResult{productID: productID}
	if r := panics.Try(func() {
		res.outcome, res.err = o.Analyzer.Analyze(ctx, productID, runID)
	}); r != nil {
		res.outcome, res.err = nil, r.AsError()
	}
	if res.err != nil && o.Logger != nil {
		o.Logger.Warn("product analysis failed",
			zap.String("run_id", runID),
			zap.String("product_id", productID),
			zap.String("kind", string(analysis.Classify(res.err))),
			zap.Error(res.err),
		)
	}
	return res
}

func (o *Orchestrator) persist(ctx context.Context, run *models.AnalysisRun, acc *accumulator, extra map[string]any) {
	run.ProductsAnalyzed = acc.successful
	run.ProductsSkipped = len(acc.errors)
	errorsJSON, _ := json.Marshal(acc.errors)
	summaryJSON, _ := json.Marshal(acc.summary())
	run.Errors = datatypes.JSON(errorsJSON)
	run.Summary = datatypes.JSON(summaryJSON)

	updates := map[string]any{
		"products_analyzed": run.ProductsAnalyzed,
		"products_skipped":  run.ProductsSkipped,
		"errors":            run.Errors,
		"summary":           run.Summary,
	}
	for k, v := range extra {
		updates[k] = v
	}
	if err := o.Runs.UpdateAnalysisRun(ctx, run.ID, updates); err != nil && o.Logger != nil {
		o.Logger.Warn("persist analysis run progress failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// Retry analyzes the failed subset of a finished run as a new run linked
// through retryOf. Options the caller leaves unset come from the original run.
func (o *Orchestrator) Retry(ctx context.Context, runID string, ro RetryOptions) (*Report, error) {
	if o == nil || o.Runs == nil {
		return nil, ErrNotConfigured
	}
	runID = strings.TrimSpace(runID)
	prev, err := o.Runs.GetAnalysisRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load analysis run: %w", err)
	}
	if prev == nil {
		return nil, ErrRunNotFound
	}
	if prev.Status == models.RunStatusRunning {
		return nil, fmt.Errorf("%w: %s", ErrRunStillRunning, runID)
	}
	ids, err := FailedProductIDs(prev)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNothingToRetry
	}
	opts := ro.merge(prev)
	opts.retryOf = &prev.ID
	return o.Run(ctx, ids, opts)
}

// FailedProductIDs lists the distinct products recorded as failed on run, in
// failure order.
func FailedProductIDs(run *models.AnalysisRun) ([]string, error) {
	if run == nil || len(run.Errors) == 0 {
		return nil, nil
	}
	var errs []ProductError
	if err := json.Unmarshal(run.Errors, &errs); err != nil {
		return nil, fmt.Errorf("decode run errors: %w", err)
	}
	ids := make([]string, 0, len(errs))
	for _, e := range errs {
		ids = append(ids, e.ProductID)
	}
	return cleanIDs(ids), nil
}

// Cancel asks a running run to stop before its next chunk.
func (o *Orchestrator) Cancel(runID string) error {
	if o == nil {
		return ErrRunNotActive
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.active[runID]; !ok {
		return ErrRunNotActive
	}
	o.active[runID] = true
	if o.Logger != nil {
		o.Logger.Info("analysis run cancel requested", zap.String("run_id", runID))
	}
	return nil
}

// Active lists the ids of runs executing in this process.
func (o *Orchestrator) Active() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.active))
	for id := range o.active {
		out = append(out, id)
	}
	return out
}

func (o *Orchestrator) register(runID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		o.active = map[string]bool{}
	}
	o.active[runID] = false
}

func (o *Orchestrator) unregister(runID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, runID)
}

func (o *Orchestrator) cancelRequested(runID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active[runID]
}

func cleanIDs(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
