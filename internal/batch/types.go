package batch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/analysis"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
)

type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeParallel   Mode = "parallel"

	DefaultMaxConcurrent = 5
)

var (
	ErrRunNotFound    = errors.New("analysis run not found")
	ErrRunNotActive   = errors.New("analysis run is not running")
	ErrNothingToRetry = errors.New("analysis run has no failed products")
	ErrNoProducts     = errors.New("no products to analyze")
	ErrInvalidMode    = errors.New("invalid batch mode")
	ErrNotConfigured  = errors.New("batch orchestrator not configured")

	ErrRunStillRunning = errors.New("analysis run is still running")
)

// ParseMode accepts "sequential" or "parallel"; empty means parallel.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeParallel:
		return ModeParallel, nil
	case ModeSequential:
		return ModeSequential, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

type Options struct {
	Mode            Mode
	MaxConcurrent   int
	ContinueOnError bool
	TriggeredBy     string
	// RunID preassigns the run id; empty generates one.
	RunID string

	retryOf *string
}

// RetryOptions are the overrides for a retry. Each unset field is inherited
// from the run being retried.
type RetryOptions struct {
	Mode            Mode
	MaxConcurrent   *int
	ContinueOnError *bool
	TriggeredBy     string
	RunID           string
}

func (r RetryOptions) merge(prev *models.AnalysisRun) Options {
	opts := Options{
		Mode:            Mode(prev.Mode),
		MaxConcurrent:   prev.MaxConcurrent,
		ContinueOnError: prev.ContinueOnError,
		TriggeredBy:     r.TriggeredBy,
		RunID:           r.RunID,
	}
	if r.Mode != "" {
		opts.Mode = r.Mode
	}
	if r.MaxConcurrent != nil {
		opts.MaxConcurrent = *r.MaxConcurrent
	}
	if r.ContinueOnError != nil {
		opts.ContinueOnError = *r.ContinueOnError
	}
	return opts
}

func (o Options) normalized() Options {
	if o.Mode == "" {
		o.Mode = ModeParallel
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = DefaultMaxConcurrent
	}
	if o.Mode == ModeSequential {
		o.MaxConcurrent = 1
	}
	return o
}

// ProductError is one isolated per-product failure.
type ProductError struct {
	ProductID string               `json:"product_id"`
	Kind      analysis.FailureKind `json:"kind"`
	Message   string               `json:"message"`
}

// Summary is the rollup persisted with every run.
type Summary struct {
	Successful       int            `json:"successful"`
	Failed           int            `json:"failed"`
	ByPriority       map[string]int `json:"by_priority"`
	ByRecommendation map[string]int `json:"by_recommendation"`
	ByFailureKind    map[string]int `json:"by_failure_kind,omitempty"`
	AvgOpportunity   float64        `json:"avg_opportunity"`
	AvgRisk          float64        `json:"avg_risk"`
	AvgConfidence    float64        `json:"avg_confidence"`
	Created          int            `json:"created"`
	Updated          int            `json:"updated"`
	Reused           int            `json:"reused"`
	Notified         int            `json:"notified"`
	Cancelled        bool           `json:"cancelled,omitempty"`
}

// Report is what Run returns to its caller.
type Report struct {
	Run     *models.AnalysisRun `json:"run"`
	Errors  []ProductError      `json:"errors"`
	Summary Summary             `json:"summary"`
}

// RunAbortError stops a sequential run with ContinueOnError disabled at the
// first failing product.
type RunAbortError struct {
	RunID     string
	ProductID string
	Kind      analysis.FailureKind
	Err       error
}

func (e *RunAbortError) Error() string {
	return fmt.Sprintf("run %s aborted at product %s (%s): %v", e.RunID, e.ProductID, e.Kind, e.Err)
}

func (e *RunAbortError) Unwrap() error { return e.Err }
