package opportunity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clock"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/scoring"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/telemetry"
)

const (
	// ScoreChangeThreshold is the opportunity score delta above which an
	// active record is rewritten even when the recommendation is unchanged.
	ScoreChangeThreshold = 5.0

	DefaultTTL      = 72 * time.Hour
	DefaultFlashTTL = 24 * time.Hour
)

var (
	ErrOpportunityNotFound = errors.New("opportunity not found")
	ErrInvalidStatus       = errors.New("invalid opportunity status")
)

type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeReused  Outcome = "reused"
)

// Store is the slice of the repository the manager writes through.
type Store interface {
	GetActiveOpportunityByProduct(ctx context.Context, productID string) (*models.BargainOpportunity, error)
	GetBargainOpportunityByID(ctx context.Context, id uint64) (*models.BargainOpportunity, error)
	InsertBargainOpportunity(ctx context.Context, item *models.BargainOpportunity) error
	UpdateBargainOpportunity(ctx context.Context, id uint64, updates map[string]any) error
	UpdateBargainOpportunityStatus(ctx context.Context, id uint64, status string) error
	MarkOpportunityNotified(ctx context.Context, id uint64, at time.Time) error
	ExpireDueOpportunities(ctx context.Context, now time.Time) (int64, error)
	CountActiveOpportunities(ctx context.Context) (int64, error)
	ListOldestActiveOpportunityIDs(ctx context.Context, limit int) ([]uint64, error)
	BulkUpdateOpportunityStatus(ctx context.Context, ids []uint64, status string) (int64, error)
}

// Candidate is the scored analysis of one product, ready to be persisted.
type Candidate struct {
	ProductID    string
	CurrentPrice float64
	Result       scoring.Result
	AnalysisData datatypes.JSON
	RunID        string
}

type UpsertResult struct {
	Opportunity *models.BargainOpportunity
	Outcome     Outcome
}

type Manager struct {
	Repo      Store
	Clock     clock.Clock
	Logger    *zap.Logger
	Telemetry *telemetry.Collector

	TTL       time.Duration
	FlashTTL  time.Duration
	MaxActive int
}

// Upsert keeps at most one active opportunity per product. The active record
// is rewritten only when the recommendation changed or the opportunity score
// moved by more than ScoreChangeThreshold; otherwise it is returned as is.
func (m *Manager) Upsert(ctx context.Context, c Candidate) (UpsertResult, error) {
	if m == nil || m.Repo == nil {
		return UpsertResult{}, nil
	}
	c.ProductID = strings.TrimSpace(c.ProductID)
	if c.ProductID == "" {
		return UpsertResult{}, fmt.Errorf("upsert opportunity: empty product id")
	}
	now := clock.OrSystem(m.Clock).Now().UTC()

	// Due records are closed first so a stale active row is never reused.
	if _, err := m.Repo.ExpireDueOpportunities(ctx, now); err != nil {
		return UpsertResult{}, fmt.Errorf("expire due opportunities: %w", err)
	}
	existing, err := m.Repo.GetActiveOpportunityByProduct(ctx, c.ProductID)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("load active opportunity: %w", err)
	}

	var out UpsertResult
	switch {
	case existing == nil:
		item := m.build(c, now)
		if err := m.Repo.InsertBargainOpportunity(ctx, item); err != nil {
			// Lost a race on the active-per-product index; the winner's row stands.
			winner, getErr := m.Repo.GetActiveOpportunityByProduct(ctx, c.ProductID)
			if getErr != nil || winner == nil {
				return UpsertResult{}, fmt.Errorf("insert opportunity: %w", err)
			}
			out = UpsertResult{Opportunity: winner, Outcome: OutcomeReused}
			break
		}
		out = UpsertResult{Opportunity: item, Outcome: OutcomeCreated}
	case changed(existing, c.Result):
		item := m.build(c, now)
		item.ID = existing.ID
		item.CreatedAt = existing.CreatedAt
		item.NotifiedAt = existing.NotifiedAt
		if err := m.Repo.UpdateBargainOpportunity(ctx, existing.ID, updateColumns(item)); err != nil {
			return UpsertResult{}, fmt.Errorf("update opportunity: %w", err)
		}
		out = UpsertResult{Opportunity: item, Outcome: OutcomeUpdated}
	default:
		out = UpsertResult{Opportunity: existing, Outcome: OutcomeReused}
	}

	m.Telemetry.OpportunityWritten(string(out.Outcome))
	if m.Logger != nil {
		m.Logger.Debug("opportunity upserted",
			zap.String("product_id", c.ProductID),
			zap.String("outcome", string(out.Outcome)),
			zap.String("recommendation", out.Opportunity.Recommendation),
			zap.Float64("opportunity_score", out.Opportunity.OpportunityScore),
		)
	}
	m.enforceMax(ctx)
	return out, nil
}

func changed(existing *models.BargainOpportunity, res scoring.Result) bool {
	if existing.Recommendation != string(res.Decision.Recommendation) {
		return true
	}
	return math.Abs(existing.OpportunityScore-res.OpportunityScore()) > ScoreChangeThreshold
}

func (m *Manager) build(c Candidate, now time.Time) *models.BargainOpportunity {
	res := c.Result
	ttl := m.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if res.IsFlashDeal {
		ttl = m.FlashTTL
		if ttl <= 0 {
			ttl = DefaultFlashTTL
		}
	}
	expires := now.Add(ttl)
	item := &models.BargainOpportunity{
		ProductID:          c.ProductID,
		Status:             models.OpportunityStatusActive,
		OpportunityScore:   res.OpportunityScore(),
		RiskScore:          res.RiskScore(),
		Confidence:         res.Confidence.Value,
		ConfidenceLevel:    string(res.Confidence.Level),
		Recommendation:     string(res.Decision.Recommendation),
		Priority:           string(res.Priority),
		SuggestedStockDays: res.Decision.SuggestedStockDays,
		CurrentPrice:       c.CurrentPrice,
		IsFlashDeal:        res.IsFlashDeal,
		Rationale:          res.Decision.Rationale,
		AnalysisData:       c.AnalysisData,
		ExpiresAt:          &expires,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if runID := strings.TrimSpace(c.RunID); runID != "" {
		item.LastRunID = &runID
	}
	return item
}

func updateColumns(item *models.BargainOpportunity) map[string]any {
	return map[string]any{
		"opportunity_score":    item.OpportunityScore,
		"risk_score":           item.RiskScore,
		"confidence":           item.Confidence,
		"confidence_level":     item.ConfidenceLevel,
		"recommendation":       item.Recommendation,
		"priority":             item.Priority,
		"suggested_stock_days": item.SuggestedStockDays,
		"current_price":        item.CurrentPrice,
		"is_flash_deal":        item.IsFlashDeal,
		"rationale":            item.Rationale,
		"analysis_data":        item.AnalysisData,
		"last_run_id":          item.LastRunID,
		"expires_at":           item.ExpiresAt,
		"updated_at":           item.UpdatedAt,
	}
}

// ShouldNotify reports whether an opportunity is critical or a flash deal and
// has not been announced yet.
func ShouldNotify(item *models.BargainOpportunity) bool {
	if item == nil || item.Status != models.OpportunityStatusActive || item.NotifiedAt != nil {
		return false
	}
	return item.Priority == string(scoring.PriorityCritical) || item.IsFlashDeal
}

func (m *Manager) MarkNotified(ctx context.Context, item *models.BargainOpportunity) error {
	if m == nil || m.Repo == nil || item == nil || item.ID == 0 {
		return nil
	}
	now := clock.OrSystem(m.Clock).Now().UTC()
	if err := m.Repo.MarkOpportunityNotified(ctx, item.ID, now); err != nil {
		return err
	}
	item.NotifiedAt = &now
	return nil
}

// SetStatus closes an active opportunity as purchased, dismissed or expired.
func (m *Manager) SetStatus(ctx context.Context, id uint64, status string) (*models.BargainOpportunity, error) {
	if m == nil || m.Repo == nil {
		return nil, ErrOpportunityNotFound
	}
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case models.OpportunityStatusPurchased, models.OpportunityStatusDismissed, models.OpportunityStatusExpired:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	item, err := m.Repo.GetBargainOpportunityByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrOpportunityNotFound
	}
	if item.Status != models.OpportunityStatusActive {
		return nil, fmt.Errorf("%w: opportunity is %s", ErrInvalidStatus, item.Status)
	}
	if err := m.Repo.UpdateBargainOpportunityStatus(ctx, id, status); err != nil {
		return nil, err
	}
	item.Status = status
	if m.Logger != nil {
		m.Logger.Info("opportunity status changed", zap.Uint64("id", id), zap.String("status", status))
	}
	return item, nil
}

// ExpireDue moves every active opportunity past its expiry to expired.
func (m *Manager) ExpireDue(ctx context.Context) (int64, error) {
	if m == nil || m.Repo == nil {
		return 0, nil
	}
	n, err := m.Repo.ExpireDueOpportunities(ctx, clock.OrSystem(m.Clock).Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 && m.Logger != nil {
		m.Logger.Info("expired due opportunities", zap.Int64("expired", n))
	}
	m.enforceMax(ctx)
	return n, nil
}

func (m *Manager) enforceMax(ctx context.Context) {
	if m == nil || m.Repo == nil || m.MaxActive <= 0 {
		return
	}
	total, err := m.Repo.CountActiveOpportunities(ctx)
	if err != nil {
		return
	}
	excess := int(total) - m.MaxActive
	if excess <= 0 {
		return
	}
	ids, err := m.Repo.ListOldestActiveOpportunityIDs(ctx, excess)
	if err != nil {
		return
	}
	if len(ids) == 0 {
		return
	}
	if _, err := m.Repo.BulkUpdateOpportunityStatus(ctx, ids, models.OpportunityStatusExpired); err != nil {
		return
	}
	if m.Logger != nil {
		m.Logger.Info("expired old opportunities to enforce max", zap.Int("expired", len(ids)), zap.Int("max_active", m.MaxActive))
	}
}
