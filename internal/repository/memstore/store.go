// Package memstore is an in-memory repository.Repository used by tests of the
// packages above the data layer.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/repository"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/snapshot"
)

type Store struct {
	mu sync.Mutex

	snapshots     map[string]*snapshot.ProductSnapshot
	products      map[string]*models.Product
	patterns      map[uint64]*models.Pattern
	opportunities map[uint64]*models.BargainOpportunity
	runs          map[string]*models.AnalysisRun
	dismissals    []models.ClearanceDismissal
	settings      map[string]*models.SystemSetting

	nextID uint64

	// SnapshotErr, when set for a product, is returned by GetProductSnapshot.
	SnapshotErr map[string]error
	// SnapshotHook runs before a snapshot is returned; tests use it to block
	// or panic inside the pipeline.
	SnapshotHook func(ctx context.Context, productID string)
}

func New() *Store {
	return &Store{
		snapshots:     map[string]*snapshot.ProductSnapshot{},
		products:      map[string]*models.Product{},
		patterns:      map[uint64]*models.Pattern{},
		opportunities: map[uint64]*models.BargainOpportunity{},
		runs:          map[string]*models.AnalysisRun{},
		settings:      map[string]*models.SystemSetting{},
		SnapshotErr:   map[string]error{},
	}
}

// PutSnapshot registers a product snapshot and marks the product active.
func (s *Store) PutSnapshot(snap *snapshot.ProductSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.ID] = snap
	s.products[snap.ID] = &models.Product{ID: snap.ID, Name: snap.Name, CurrentInventory: snap.CurrentInventory, Active: true}
}

func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

// --- catalogue

func (s *Store) GetProductSnapshot(ctx context.Context, productID string) (*snapshot.ProductSnapshot, error) {
	s.mu.Lock()
	hook := s.SnapshotHook
	err := s.SnapshotErr[productID]
	snap, ok := s.snapshots[productID]
	s.mu.Unlock()
	if hook != nil {
		hook(ctx, productID)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return snap, nil
}

func (s *Store) ListActiveProductIDs(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, p := range s.products {
		if p.Active {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *Store) UpsertProduct(_ context.Context, item *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.products[item.ID] = &cp
	return nil
}

func (s *Store) UpsertSupplierOffer(context.Context, *models.SupplierOffer) error { return nil }

func (s *Store) InsertPriceObservations(context.Context, []models.PriceObservation) error {
	return nil
}

func (s *Store) InsertPurchaseRecords(context.Context, []models.PurchaseRecord) error { return nil }

// --- patterns

func (s *Store) GetPatternByKey(_ context.Context, key string) (*models.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.patterns {
		if p.Key == key {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) GetPatternByID(_ context.Context, id uint64) (*models.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *Store) CreatePattern(_ context.Context, item *models.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.patterns {
		if p.Key == item.Key {
			item.ID = p.ID
			return nil
		}
	}
	item.ID = s.id()
	cp := *item
	s.patterns[item.ID] = &cp
	return nil
}

func (s *Store) RecordPatternDetection(_ context.Context, id uint64, confidence float64, data datatypes.JSON, detectedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[id]
	if !ok {
		return nil
	}
	p.TimesObserved++
	p.Confidence = confidence
	p.PatternData = data
	p.LastDetectedAt = &detectedAt
	return nil
}

func (s *Store) UpdatePatternValidation(_ context.Context, id uint64, timesObserved, timesSuccessful int, confidence float64, validatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[id]
	if !ok {
		return nil
	}
	p.TimesObserved = timesObserved
	p.TimesSuccessful = timesSuccessful
	p.Confidence = confidence
	p.LastValidatedAt = &validatedAt
	return nil
}

func (s *Store) SetPatternActive(_ context.Context, id uint64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.patterns[id]; ok {
		p.IsActive = active
	}
	return nil
}

func (s *Store) ListPatterns(_ context.Context, params repository.ListPatternsParams) ([]models.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Pattern
	for _, p := range s.patterns {
		if params.ProductID != nil && p.ProductID != *params.ProductID {
			continue
		}
		if params.PatternType != nil && p.PatternType != *params.PatternType {
			continue
		}
		if params.IsActive != nil && p.IsActive != *params.IsActive {
			continue
		}
		if params.MinConfidence != nil && p.Confidence < *params.MinConfidence {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, params.Offset, params.Limit), nil
}

func (s *Store) CountPatterns(ctx context.Context, params repository.ListPatternsParams) (int64, error) {
	params.Limit, params.Offset = 0, 0
	items, err := s.ListPatterns(ctx, params)
	return int64(len(items)), err
}

// --- opportunities

func (s *Store) GetActiveOpportunityByProduct(_ context.Context, productID string) (*models.BargainOpportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.opportunities {
		if o.ProductID == productID && o.Status == models.OpportunityStatusActive {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertBargainOpportunity(_ context.Context, item *models.BargainOpportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.Status == models.OpportunityStatusActive {
		for _, o := range s.opportunities {
			if o.ProductID == item.ProductID && o.Status == models.OpportunityStatusActive {
				return fmt.Errorf("duplicate active opportunity for %s", item.ProductID)
			}
		}
	}
	item.ID = s.id()
	cp := *item
	s.opportunities[item.ID] = &cp
	return nil
}

func (s *Store) UpdateBargainOpportunity(_ context.Context, id uint64, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.opportunities[id]
	if !ok {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "opportunity_score":
			o.OpportunityScore = v.(float64)
		case "risk_score":
			o.RiskScore = v.(float64)
		case "confidence":
			o.Confidence = v.(float64)
		case "confidence_level":
			o.ConfidenceLevel = v.(string)
		case "recommendation":
			o.Recommendation = v.(string)
		case "priority":
			o.Priority = v.(string)
		case "suggested_stock_days":
			o.SuggestedStockDays = v.(*int)
		case "current_price":
			o.CurrentPrice = v.(float64)
		case "is_flash_deal":
			o.IsFlashDeal = v.(bool)
		case "rationale":
			o.Rationale = v.(string)
		case "analysis_data":
			o.AnalysisData = v.(datatypes.JSON)
		case "last_run_id":
			o.LastRunID = v.(*string)
		case "expires_at":
			o.ExpiresAt = v.(*time.Time)
		case "updated_at":
			o.UpdatedAt = v.(time.Time)
		}
	}
	return nil
}

func (s *Store) GetBargainOpportunityByID(_ context.Context, id uint64) (*models.BargainOpportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.opportunities[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (s *Store) ListBargainOpportunities(_ context.Context, params repository.ListOpportunitiesParams) ([]models.BargainOpportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.BargainOpportunity
	for _, o := range s.opportunities {
		if params.ProductID != nil && o.ProductID != *params.ProductID {
			continue
		}
		if params.Status != nil && o.Status != *params.Status {
			continue
		}
		if params.Recommendation != nil && o.Recommendation != *params.Recommendation {
			continue
		}
		if params.Priority != nil && o.Priority != *params.Priority {
			continue
		}
		if params.MinScore != nil && o.OpportunityScore < *params.MinScore {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, params.Offset, params.Limit), nil
}

func (s *Store) CountBargainOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) (int64, error) {
	params.Limit, params.Offset = 0, 0
	items, err := s.ListBargainOpportunities(ctx, params)
	return int64(len(items)), err
}

func (s *Store) UpdateBargainOpportunityStatus(_ context.Context, id uint64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.opportunities[id]; ok {
		o.Status = status
	}
	return nil
}

func (s *Store) MarkOpportunityNotified(_ context.Context, id uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.opportunities[id]; ok {
		o.NotifiedAt = &at
	}
	return nil
}

func (s *Store) ExpireDueOpportunities(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, o := range s.opportunities {
		if o.Status == models.OpportunityStatusActive && o.ExpiresAt != nil && o.ExpiresAt.Before(now) {
			o.Status = models.OpportunityStatusExpired
			n++
		}
	}
	return n, nil
}

func (s *Store) CountActiveOpportunities(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, o := range s.opportunities {
		if o.Status == models.OpportunityStatusActive {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListOldestActiveOpportunityIDs(_ context.Context, limit int) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id, o := range s.opportunities {
		if o.Status == models.OpportunityStatusActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *Store) BulkUpdateOpportunityStatus(_ context.Context, ids []uint64, status string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if o, ok := s.opportunities[id]; ok {
			o.Status = status
			n++
		}
	}
	return n, nil
}

// --- runs

func (s *Store) CreateAnalysisRun(_ context.Context, item *models.AnalysisRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.runs[item.ID] = &cp
	return nil
}

func (s *Store) UpdateAnalysisRun(_ context.Context, id string, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "status":
			r.Status = v.(string)
		case "products_total":
			r.ProductsTotal = v.(int)
		case "products_analyzed":
			r.ProductsAnalyzed = v.(int)
		case "products_skipped":
			r.ProductsSkipped = v.(int)
		case "errors":
			r.Errors = v.(datatypes.JSON)
		case "summary":
			r.Summary = v.(datatypes.JSON)
		case "completed_at":
			r.CompletedAt = v.(*time.Time)
		case "duration_ms":
			r.DurationMs = v.(int64)
		case "updated_at":
			r.UpdatedAt = v.(time.Time)
		}
	}
	return nil
}

func (s *Store) GetAnalysisRun(_ context.Context, id string) (*models.AnalysisRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListAnalysisRuns(_ context.Context, params repository.ListAnalysisRunsParams) ([]models.AnalysisRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AnalysisRun
	for _, r := range s.runs {
		if params.Status != nil && r.Status != *params.Status {
			continue
		}
		if params.RetryOf != nil && (r.RetryOf == nil || *r.RetryOf != *params.RetryOf) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return page(out, params.Offset, params.Limit), nil
}

func (s *Store) CountAnalysisRuns(ctx context.Context, params repository.ListAnalysisRunsParams) (int64, error) {
	params.Limit, params.Offset = 0, 0
	items, err := s.ListAnalysisRuns(ctx, params)
	return int64(len(items)), err
}

// --- dismissals

func (s *Store) CreateClearanceDismissal(_ context.Context, item *models.ClearanceDismissal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.dismissals = append(s.dismissals, *item)
	return nil
}

func (s *Store) ListClearanceDismissalsSince(_ context.Context, productID string, since time.Time) ([]models.ClearanceDismissal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ClearanceDismissal
	for _, d := range s.dismissals {
		if d.ProductID == productID && !d.CreatedAt.Before(since) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) ListClearanceDismissals(_ context.Context, params repository.ListDismissalsParams) ([]models.ClearanceDismissal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ClearanceDismissal
	for _, d := range s.dismissals {
		if params.ProductID != nil && d.ProductID != *params.ProductID {
			continue
		}
		if params.SupplierID != nil && d.SupplierID != *params.SupplierID {
			continue
		}
		out = append(out, d)
	}
	return page(out, params.Offset, params.Limit), nil
}

func (s *Store) CountClearanceDismissals(ctx context.Context, params repository.ListDismissalsParams) (int64, error) {
	params.Limit, params.Offset = 0, 0
	items, err := s.ListClearanceDismissals(ctx, params)
	return int64(len(items)), err
}

// --- settings

func (s *Store) UpsertSystemSetting(_ context.Context, item *models.SystemSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.settings[strings.TrimSpace(item.Key)] = &cp
	return nil
}

func (s *Store) GetSystemSettingByKey(_ context.Context, key string) (*models.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.settings[key]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

var _ repository.Repository = (*Store)(nil)
