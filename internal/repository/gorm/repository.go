package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/repository"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/snapshot"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Catalogue ---------------------------------------------------------------

func (s *Store) GetProductSnapshot(ctx context.Context, productID string) (*snapshot.ProductSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, repository.ErrProductNotFound
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, repository.ErrProductNotFound
	}
	var product models.Product
	err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	var offers []models.SupplierOffer
	if err := s.db.WithContext(ctx).
		Model(&models.SupplierOffer{}).
		Where("product_id = ?", productID).
		Order("supplier_id asc").
		Find(&offers).Error; err != nil {
		return nil, err
	}
	var observations []models.PriceObservation
	if err := s.db.WithContext(ctx).
		Model(&models.PriceObservation{}).
		Where("product_id = ?", productID).
		Order("observed_at asc").
		Find(&observations).Error; err != nil {
		return nil, err
	}
	var purchases []models.PurchaseRecord
	if err := s.db.WithContext(ctx).
		Model(&models.PurchaseRecord{}).
		Where("product_id = ?", productID).
		Order("purchased_at asc").
		Find(&purchases).Error; err != nil {
		return nil, err
	}
	return assembleSnapshot(product, offers, observations, purchases), nil
}

// assembleSnapshot groups observations under their supplier. Suppliers that
// only have history, with no current offer row, are kept as out of stock.
func assembleSnapshot(product models.Product, offers []models.SupplierOffer, observations []models.PriceObservation, purchases []models.PurchaseRecord) *snapshot.ProductSnapshot {
	snap := &snapshot.ProductSnapshot{
		ID:               product.ID,
		Name:             product.Name,
		CurrentInventory: product.CurrentInventory,
	}
	index := map[string]int{}
	for _, o := range offers {
		index[o.SupplierID] = len(snap.Suppliers)
		snap.Suppliers = append(snap.Suppliers, snapshot.SupplierOffer{
			SupplierID:   o.SupplierID,
			SupplierName: o.SupplierName,
			InStock:      o.InStock,
			CurrentPrice: o.WholesalePrice.InexactFloat64(),
			RecycleTax:   o.RecycleTax.InexactFloat64(),
		})
	}
	for _, obs := range observations {
		i, ok := index[obs.SupplierID]
		if !ok {
			i = len(snap.Suppliers)
			index[obs.SupplierID] = i
			snap.Suppliers = append(snap.Suppliers, snapshot.SupplierOffer{SupplierID: obs.SupplierID})
		}
		snap.Suppliers[i].History = append(snap.Suppliers[i].History, snapshot.PriceObservation{
			Date:  obs.ObservedAt,
			Price: obs.WholesalePrice.InexactFloat64(),
		})
	}
	for _, p := range purchases {
		snap.Purchases = append(snap.Purchases, snapshot.PurchaseRecord{
			Date:     p.PurchasedAt,
			Quantity: p.Quantity,
			Price:    p.Price.InexactFloat64(),
		})
	}
	return snap
}

func (s *Store) ListActiveProductIDs(ctx context.Context, limit int) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("active = ?", true).
		Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ids []string
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) UpsertProduct(ctx context.Context, item *models.Product) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" {
		return nil
	}
	return s.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"current_inventory",
			"active",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) UpsertSupplierOffer(ctx context.Context, item *models.SupplierOffer) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}, {Name: "supplier_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"supplier_name",
			"in_stock",
			"wholesale_price",
			"recycle_tax",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) InsertPriceObservations(ctx context.Context, items []models.PriceObservation) error {
	if s == nil || s.db == nil {
		return nil
	}
	return createInBatches(s.db.WithContext(ctx), items, 500)
}

func (s *Store) InsertPurchaseRecords(ctx context.Context, items []models.PurchaseRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	return createInBatches(s.db.WithContext(ctx), items, 500)
}

// --- Patterns ----------------------------------------------------------------

func (s *Store) GetPatternByKey(ctx context.Context, key string) (*models.Pattern, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.Pattern
	err := s.db.WithContext(ctx).Model(&models.Pattern{}).Where("key = ?", key).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetPatternByID(ctx context.Context, id uint64) (*models.Pattern, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.Pattern
	err := s.db.WithContext(ctx).Model(&models.Pattern{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreatePattern inserts on the idempotency key. When a concurrent writer won
// the race the existing id is copied back into item.
func (s *Store) CreatePattern(ctx context.Context, item *models.Pattern) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).
		Create(item).Error; err != nil {
		return err
	}
	if item.ID != 0 {
		return nil
	}
	existing, err := s.GetPatternByKey(ctx, item.Key)
	if err != nil {
		return err
	}
	if existing != nil {
		item.ID = existing.ID
	}
	return nil
}

func (s *Store) RecordPatternDetection(ctx context.Context, id uint64, confidence float64, data datatypes.JSON, detectedAt time.Time) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Pattern{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"times_observed":   gorm.Expr("times_observed + 1"),
			"confidence":       confidence,
			"pattern_data":     data,
			"last_detected_at": detectedAt,
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (s *Store) UpdatePatternValidation(ctx context.Context, id uint64, timesObserved, timesSuccessful int, confidence float64, validatedAt time.Time) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Pattern{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"times_observed":    timesObserved,
			"times_successful":  timesSuccessful,
			"confidence":        confidence,
			"last_validated_at": validatedAt,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (s *Store) SetPatternActive(ctx context.Context, id uint64, active bool) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Pattern{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": active, "updated_at": time.Now().UTC()}).
		Error
}

func (s *Store) ListPatterns(ctx context.Context, params repository.ListPatternsParams) ([]models.Pattern, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyPatternFilters(s.db.WithContext(ctx).Model(&models.Pattern{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "updated_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Pattern
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPatterns(ctx context.Context, params repository.ListPatternsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := applyPatternFilters(s.db.WithContext(ctx).Model(&models.Pattern{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applyPatternFilters(query *gorm.DB, params repository.ListPatternsParams) *gorm.DB {
	if params.ProductID != nil && strings.TrimSpace(*params.ProductID) != "" {
		query = query.Where("product_id = ?", strings.TrimSpace(*params.ProductID))
	}
	if params.SupplierID != nil && strings.TrimSpace(*params.SupplierID) != "" {
		query = query.Where("supplier_id = ?", strings.TrimSpace(*params.SupplierID))
	}
	if params.PatternType != nil && strings.TrimSpace(*params.PatternType) != "" {
		query = query.Where("pattern_type = ?", strings.TrimSpace(*params.PatternType))
	}
	if params.IsActive != nil {
		query = query.Where("is_active = ?", *params.IsActive)
	}
	if params.MinConfidence != nil {
		query = query.Where("confidence >= ?", *params.MinConfidence)
	}
	return query
}

// --- Opportunities -----------------------------------------------------------

func (s *Store) GetActiveOpportunityByProduct(ctx context.Context, productID string) (*models.BargainOpportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, nil
	}
	var item models.BargainOpportunity
	err := s.db.WithContext(ctx).
		Model(&models.BargainOpportunity{}).
		Where("product_id = ?", productID).
		Where("status = ?", models.OpportunityStatusActive).
		Order("created_at desc").
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) InsertBargainOpportunity(ctx context.Context, item *models.BargainOpportunity) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateBargainOpportunity(ctx context.Context, id uint64, updates map[string]any) error {
	if s == nil || s.db == nil || id == 0 || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return s.db.WithContext(ctx).
		Model(&models.BargainOpportunity{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (s *Store) GetBargainOpportunityByID(ctx context.Context, id uint64) (*models.BargainOpportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.BargainOpportunity
	err := s.db.WithContext(ctx).Model(&models.BargainOpportunity{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListBargainOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.BargainOpportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOpportunityFilters(s.db.WithContext(ctx).Model(&models.BargainOpportunity{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.BargainOpportunity
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountBargainOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := applyOpportunityFilters(s.db.WithContext(ctx).Model(&models.BargainOpportunity{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applyOpportunityFilters(query *gorm.DB, params repository.ListOpportunitiesParams) *gorm.DB {
	if params.ProductID != nil && strings.TrimSpace(*params.ProductID) != "" {
		query = query.Where("product_id = ?", strings.TrimSpace(*params.ProductID))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Recommendation != nil && strings.TrimSpace(*params.Recommendation) != "" {
		query = query.Where("recommendation = ?", strings.TrimSpace(*params.Recommendation))
	}
	if params.Priority != nil && strings.TrimSpace(*params.Priority) != "" {
		query = query.Where("priority = ?", strings.TrimSpace(*params.Priority))
	}
	if params.MinScore != nil {
		query = query.Where("opportunity_score >= ?", *params.MinScore)
	}
	return query
}

func (s *Store) UpdateBargainOpportunityStatus(ctx context.Context, id uint64, status string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if id == 0 || strings.TrimSpace(status) == "" {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.BargainOpportunity{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": strings.TrimSpace(status), "updated_at": time.Now().UTC()}).
		Error
}

func (s *Store) MarkOpportunityNotified(ctx context.Context, id uint64, at time.Time) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.BargainOpportunity{}).
		Where("id = ?", id).
		Updates(map[string]any{"notified_at": at, "updated_at": time.Now().UTC()}).
		Error
}

func (s *Store) ExpireDueOpportunities(ctx context.Context, now time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).
		Model(&models.BargainOpportunity{}).
		Where("status = ?", models.OpportunityStatusActive).
		Where("expires_at IS NOT NULL").
		Where("expires_at < ?", now).
		Updates(map[string]any{"status": models.OpportunityStatusExpired, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (s *Store) CountActiveOpportunities(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.BargainOpportunity{}).
		Where("status = ?", models.OpportunityStatusActive).
		Count(&total).Error
	return total, err
}

func (s *Store) ListOldestActiveOpportunityIDs(ctx context.Context, limit int) ([]uint64, error) {
	if s == nil || s.db == nil || limit <= 0 {
		return nil, nil
	}
	var ids []uint64
	err := s.db.WithContext(ctx).
		Model(&models.BargainOpportunity{}).
		Where("status = ?", models.OpportunityStatusActive).
		Order("updated_at asc").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func (s *Store) BulkUpdateOpportunityStatus(ctx context.Context, ids []uint64, status string) (int64, error) {
	if s == nil || s.db == nil || len(ids) == 0 || strings.TrimSpace(status) == "" {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.BargainOpportunity{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"status": strings.TrimSpace(status), "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// --- Analysis runs -----------------------------------------------------------

func (s *Store) CreateAnalysisRun(ctx context.Context, item *models.AnalysisRun) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateAnalysisRun(ctx context.Context, id string, updates map[string]any) error {
	if s == nil || s.db == nil || strings.TrimSpace(id) == "" || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return s.db.WithContext(ctx).
		Model(&models.AnalysisRun{}).
		Where("id = ?", strings.TrimSpace(id)).
		Updates(updates).Error
}

func (s *Store) GetAnalysisRun(ctx context.Context, id string) (*models.AnalysisRun, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var item models.AnalysisRun
	err := s.db.WithContext(ctx).Model(&models.AnalysisRun{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListAnalysisRuns(ctx context.Context, params repository.ListAnalysisRunsParams) ([]models.AnalysisRun, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyRunFilters(s.db.WithContext(ctx).Model(&models.AnalysisRun{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "started_at")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.AnalysisRun
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountAnalysisRuns(ctx context.Context, params repository.ListAnalysisRunsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := applyRunFilters(s.db.WithContext(ctx).Model(&models.AnalysisRun{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applyRunFilters(query *gorm.DB, params repository.ListAnalysisRunsParams) *gorm.DB {
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.RetryOf != nil && strings.TrimSpace(*params.RetryOf) != "" {
		query = query.Where("retry_of = ?", strings.TrimSpace(*params.RetryOf))
	}
	return query
}

// --- Clearance dismissals ----------------------------------------------------

func (s *Store) CreateClearanceDismissal(ctx context.Context, item *models.ClearanceDismissal) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListClearanceDismissalsSince(ctx context.Context, productID string, since time.Time) ([]models.ClearanceDismissal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, nil
	}
	var items []models.ClearanceDismissal
	if err := s.db.WithContext(ctx).
		Model(&models.ClearanceDismissal{}).
		Where("product_id = ?", productID).
		Where("created_at >= ?", since).
		Order("created_at desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListClearanceDismissals(ctx context.Context, params repository.ListDismissalsParams) ([]models.ClearanceDismissal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyDismissalFilters(s.db.WithContext(ctx).Model(&models.ClearanceDismissal{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.ClearanceDismissal
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountClearanceDismissals(ctx context.Context, params repository.ListDismissalsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := applyDismissalFilters(s.db.WithContext(ctx).Model(&models.ClearanceDismissal{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applyDismissalFilters(query *gorm.DB, params repository.ListDismissalsParams) *gorm.DB {
	if params.ProductID != nil && strings.TrimSpace(*params.ProductID) != "" {
		query = query.Where("product_id = ?", strings.TrimSpace(*params.ProductID))
	}
	if params.SupplierID != nil && strings.TrimSpace(*params.SupplierID) != "" {
		query = query.Where("supplier_id = ?", strings.TrimSpace(*params.SupplierID))
	}
	return query
}

// --- System settings ---------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"version",
			"description",
			"updated_by",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- helpers -----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		if err := db.CreateInBatches(items[i:end], batchSize).Error; err != nil {
			return err
		}
	}
	return nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

var _ repository.Repository = (*Store)(nil)
