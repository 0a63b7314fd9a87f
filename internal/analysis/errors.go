package analysis

import (
	"context"
	"errors"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/metrics"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/repository"
)

// ErrTimeout is returned when the per-product deadline expires before the
// pipeline finishes.
var ErrTimeout = errors.New("analysis timed out")

type FailureKind string

const (
	KindInsufficientData FailureKind = "insufficient_data"
	KindProductNotFound  FailureKind = "product_not_found"
	KindTimeout          FailureKind = "timeout"
	KindAnalysisFailure  FailureKind = "analysis_failure"
)

// Classify maps a pipeline error onto the failure kind recorded by batch runs.
func Classify(err error) FailureKind {
	switch {
	case errors.Is(err, metrics.ErrInsufficientData):
		return KindInsufficientData
	case errors.Is(err, repository.ErrProductNotFound):
		return KindProductNotFound
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindAnalysisFailure
	}
}
