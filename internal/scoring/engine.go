package scoring

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/settings"
)

// Score runs every part of the scoring pass with an already validated
// configuration.
func Score(in Input, cfg settings.Configuration) Result {
	opp := Opportunity(in, cfg)
	risk := Risk(in, cfg)
	conf := Confidence(in)
	decision := Decide(in, cfg, opp, risk, conf)

	res := Result{
		Opportunity: opp,
		Risk:        risk,
		Confidence:  conf,
		Decision:    decision,
	}
	liquidity := 0.0
	if in.Metrics != nil {
		liquidity = in.Metrics.Liquidity.Score
		res.IsFlashDeal = in.Metrics.Flash.Detected
	}
	res.DeadStock = decision.Recommendation == RecClearanceUrgent || decision.Recommendation == RecClearanceSoon
	res.Priority, res.PriorityScore = PriorityFor(opp.Total, risk.Total, liquidity, res.IsFlashDeal, res.DeadStock)
	return res
}

// SettingsSource returns the current scoring configuration.
type SettingsSource interface {
	Get(ctx context.Context) (settings.Configuration, error)
}

type Engine struct {
	Settings SettingsSource
	Logger   *zap.Logger
}

// Config returns the configuration currently served by Settings, or the
// defaults when no source is wired.
func (e *Engine) Config(ctx context.Context) (settings.Configuration, error) {
	if e == nil || e.Settings == nil {
		return settings.Defaults(), nil
	}
	cfg, err := e.Settings.Get(ctx)
	if err != nil {
		return settings.Configuration{}, fmt.Errorf("load scoring configuration: %w", err)
	}
	return cfg, nil
}

// Evaluate scores in with the configuration currently served by Settings.
func (e *Engine) Evaluate(ctx context.Context, in Input) (Result, error) {
	cfg, err := e.Config(ctx)
	if err != nil {
		return Result{}, err
	}
	return e.EvaluateWith(in, cfg), nil
}

// EvaluateWith scores in with an already loaded configuration, so callers that
// also need the clearance settings read the provider once.
func (e *Engine) EvaluateWith(in Input, cfg settings.Configuration) Result {
	res := Score(in, cfg)
	if e != nil && e.Logger != nil && in.Metrics != nil {
		e.Logger.Debug("product scored",
			zap.String("product_id", in.Metrics.ProductID),
			zap.Float64("opportunity", res.Opportunity.Total),
			zap.Float64("risk", res.Risk.Total),
			zap.Float64("confidence", res.Confidence.Value),
			zap.String("recommendation", string(res.Decision.Recommendation)),
			zap.String("priority", string(res.Priority)),
		)
	}
	return res
}
