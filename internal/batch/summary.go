package batch

import (
	"math"
	"strings"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/analysis"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/opportunity"
)

type accumulator struct {
	successful       int
	errors           []ProductError
	byPriority       map[string]int
	byRecommendation map[string]int
	byKind           map[string]int
	sumOpportunity   float64
	sumRisk          float64
	sumConfidence    float64
	created          int
	updated          int
	reused           int
	notified         int
	cancelled        bool
}

func newAccumulator() *accumulator {
	return &accumulator{
		errors:           []ProductError{},
		byPriority:       map[string]int{},
		byRecommendation: map[string]int{},
		byKind:           map[string]int{},
	}
}

func (a *accumulator) add(r productResult) {
	if r.err != nil {
		kind := analysis.Classify(r.err)
		a.errors = append(a.errors, ProductError{
			ProductID: r.productID,
			Kind:      kind,
			Message:   firstLine(r.err.Error()),
		})
		a.byKind[string(kind)]++
		return
	}
	a.successful++
	if r.outcome == nil {
		return
	}
	res := r.outcome.Result
	a.byPriority[string(res.Priority)]++
	a.byRecommendation[string(res.Decision.Recommendation)]++
	a.sumOpportunity += res.OpportunityScore()
	a.sumRisk += res.RiskScore()
	a.sumConfidence += res.Confidence.Value
	switch r.outcome.UpsertOutcome {
	case opportunity.OutcomeCreated:
		a.created++
	case opportunity.OutcomeUpdated:
		a.updated++
	case opportunity.OutcomeReused:
		a.reused++
	}
	if r.outcome.Notified {
		a.notified++
	}
}

func (a *accumulator) summary() Summary {
	s := Summary{
		Successful:       a.successful,
		Failed:           len(a.errors),
		ByPriority:       a.byPriority,
		ByRecommendation: a.byRecommendation,
		Created:          a.created,
		Updated:          a.updated,
		Reused:           a.reused,
		Notified:         a.notified,
		Cancelled:        a.cancelled,
	}
	if len(a.byKind) > 0 {
		s.ByFailureKind = a.byKind
	}
	if a.successful > 0 {
		n := float64(a.successful)
		s.AvgOpportunity = round2(a.sumOpportunity / n)
		s.AvgRisk = round2(a.sumRisk / n)
		s.AvgConfidence = round2(a.sumConfidence / n)
	}
	return s
}

func (a *accumulator) status(aborted bool) string {
	switch {
	case aborted:
		return models.RunStatusFailed
	case a.cancelled:
		return models.RunStatusCancelled
	case len(a.errors) > 0:
		return models.RunStatusPartial
	default:
		return models.RunStatusCompleted
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
