package pattern

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clock"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
)

var ErrPatternNotFound = errors.New("pattern not found")

const (
	maxConfidence = 0.95
	priorWeight   = 2.0
	priorMean     = 0.5
)

// BayesianConfidence is the posterior mean of a Beta(1,1) prior after the
// given outcomes, capped at 0.95.
func BayesianConfidence(successes, observations int) float64 {
	if observations < 0 {
		observations = 0
	}
	v := (float64(successes) + priorWeight*priorMean) / (float64(observations) + priorWeight)
	return math.Min(maxConfidence, v)
}

type Validator struct {
	Repo   Store
	Clock  clock.Clock
	Logger *zap.Logger
}

// Validate records whether a pattern's predicted low actually happened.
func (v *Validator) Validate(ctx context.Context, patternID uint64, success bool) (*models.Pattern, error) {
	if v == nil || v.Repo == nil {
		return nil, fmt.Errorf("pattern store unavailable")
	}
	item, err := v.Repo.GetPatternByID(ctx, patternID)
	if err != nil {
		return nil, fmt.Errorf("load pattern %d: %w", patternID, err)
	}
	if item == nil {
		return nil, ErrPatternNotFound
	}
	item.TimesObserved++
	if success {
		item.TimesSuccessful++
	}
	item.Confidence = BayesianConfidence(item.TimesSuccessful, item.TimesObserved)
	now := clock.OrSystem(v.Clock).Now()
	item.LastValidatedAt = &now
	if err := v.Repo.UpdatePatternValidation(ctx, item.ID, item.TimesObserved, item.TimesSuccessful, item.Confidence, now); err != nil {
		return nil, fmt.Errorf("update pattern %d: %w", patternID, err)
	}
	if v.Logger != nil {
		v.Logger.Info("pattern validated",
			zap.Uint64("pattern_id", item.ID),
			zap.Bool("success", success),
			zap.Int("times_observed", item.TimesObserved),
			zap.Int("times_successful", item.TimesSuccessful),
			zap.Float64("confidence", item.Confidence),
		)
	}
	return item, nil
}

// Deactivate switches a pattern off. Detection keeps the record but stops
// reporting it.
func (v *Validator) Deactivate(ctx context.Context, patternID uint64) error {
	if v == nil || v.Repo == nil {
		return fmt.Errorf("pattern store unavailable")
	}
	item, err := v.Repo.GetPatternByID(ctx, patternID)
	if err != nil {
		return fmt.Errorf("load pattern %d: %w", patternID, err)
	}
	if item == nil {
		return ErrPatternNotFound
	}
	if err := v.Repo.SetPatternActive(ctx, patternID, false); err != nil {
		return fmt.Errorf("deactivate pattern %d: %w", patternID, err)
	}
	if v.Logger != nil {
		v.Logger.Info("pattern deactivated", zap.Uint64("pattern_id", patternID), zap.String("key", item.Key))
	}
	return nil
}
