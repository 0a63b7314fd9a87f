package cronrunner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/batch"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/config"
)

type BatchRunner interface {
	RunAll(ctx context.Context, opts batch.Options) (*batch.Report, error)
}

type Expirer interface {
	ExpireDue(ctx context.Context) (int64, error)
}

// Jobs binds the scheduled work of the analyzer to a Runner.
type Jobs struct {
	Batch   BatchRunner
	Expirer Expirer
	Options batch.Options
	Logger  *zap.Logger
}

// Register adds the analysis and expiry jobs. An empty spec leaves that job
// unscheduled.
func (j *Jobs) Register(r *Runner, cfg config.CronConfig) error {
	if j == nil || r == nil {
		return nil
	}
	if spec := strings.TrimSpace(cfg.Analysis); spec != "" && j.Batch != nil {
		if _, err := r.Add(spec, j.AnalyzeAll); err != nil {
			return fmt.Errorf("register analysis job %q: %w", spec, err)
		}
	}
	if spec := strings.TrimSpace(cfg.Expire); spec != "" && j.Expirer != nil {
		if _, err := r.Add(spec, j.ExpireOpportunities); err != nil {
			return fmt.Errorf("register expire job %q: %w", spec, err)
		}
	}
	return nil
}

// AnalyzeAll runs one batch over every active product.
func (j *Jobs) AnalyzeAll(ctx context.Context) {
	opts := j.Options
	if opts.TriggeredBy == "" {
		opts.TriggeredBy = "cron"
	}
	report, err := j.Batch.RunAll(ctx, opts)
	if err != nil {
		var abort *batch.RunAbortError
		switch {
		case errors.Is(err, batch.ErrNoProducts):
			j.info("cron analysis skipped: no active products")
		case errors.As(err, &abort):
			j.warn("cron analysis aborted", zap.String("run_id", abort.RunID), zap.String("product_id", abort.ProductID), zap.Error(err))
		default:
			j.warn("cron analysis failed", zap.Error(err))
		}
		return
	}
	j.info("cron analysis ok",
		zap.String("run_id", report.Run.ID),
		zap.String("status", report.Run.Status),
		zap.Int("analyzed", report.Summary.Successful),
		zap.Int("failed", report.Summary.Failed),
	)
}

// ExpireOpportunities moves active opportunities past expiresAt to expired.
func (j *Jobs) ExpireOpportunities(ctx context.Context) {
	n, err := j.Expirer.ExpireDue(ctx)
	if err != nil {
		j.warn("cron expire opportunities failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.info("cron expired opportunities", zap.Int64("count", n))
	}
}

func (j *Jobs) info(msg string, fields ...zap.Field) {
	if j.Logger != nil {
		j.Logger.Info(msg, fields...)
	}
}

func (j *Jobs) warn(msg string, fields ...zap.Field) {
	if j.Logger != nil {
		j.Logger.Warn(msg, fields...)
	}
}
