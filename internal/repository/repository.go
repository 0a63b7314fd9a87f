package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/snapshot"
)

// ErrProductNotFound is returned by GetProductSnapshot for unknown ids.
var ErrProductNotFound = errors.New("product not found")

// CatalogRepository reads and writes the product catalogue the analyzer is fed
// from. Writes exist for imports and fixtures; the engine only reads.
type CatalogRepository interface {
	GetProductSnapshot(ctx context.Context, productID string) (*snapshot.ProductSnapshot, error)
	ListActiveProductIDs(ctx context.Context, limit int) ([]string, error)
	UpsertProduct(ctx context.Context, item *models.Product) error
	UpsertSupplierOffer(ctx context.Context, item *models.SupplierOffer) error
	InsertPriceObservations(ctx context.Context, items []models.PriceObservation) error
	InsertPurchaseRecords(ctx context.Context, items []models.PurchaseRecord) error
}

// Repository is the unified data access the analysis packages depend on. Each
// consumer declares the narrow slice it needs; the gorm store implements all.
type Repository interface {
	CatalogRepository

	// Patterns
	GetPatternByKey(ctx context.Context, key string) (*models.Pattern, error)
	GetPatternByID(ctx context.Context, id uint64) (*models.Pattern, error)
	CreatePattern(ctx context.Context, item *models.Pattern) error
	RecordPatternDetection(ctx context.Context, id uint64, confidence float64, data datatypes.JSON, detectedAt time.Time) error
	UpdatePatternValidation(ctx context.Context, id uint64, timesObserved, timesSuccessful int, confidence float64, validatedAt time.Time) error
	SetPatternActive(ctx context.Context, id uint64, active bool) error
	ListPatterns(ctx context.Context, params ListPatternsParams) ([]models.Pattern, error)
	CountPatterns(ctx context.Context, params ListPatternsParams) (int64, error)

	// Opportunities
	GetActiveOpportunityByProduct(ctx context.Context, productID string) (*models.BargainOpportunity, error)
	InsertBargainOpportunity(ctx context.Context, item *models.BargainOpportunity) error
	UpdateBargainOpportunity(ctx context.Context, id uint64, updates map[string]any) error
	GetBargainOpportunityByID(ctx context.Context, id uint64) (*models.BargainOpportunity, error)
	ListBargainOpportunities(ctx context.Context, params ListOpportunitiesParams) ([]models.BargainOpportunity, error)
	CountBargainOpportunities(ctx context.Context, params ListOpportunitiesParams) (int64, error)
	UpdateBargainOpportunityStatus(ctx context.Context, id uint64, status string) error
	MarkOpportunityNotified(ctx context.Context, id uint64, at time.Time) error
	ExpireDueOpportunities(ctx context.Context, now time.Time) (int64, error)
	CountActiveOpportunities(ctx context.Context) (int64, error)
	ListOldestActiveOpportunityIDs(ctx context.Context, limit int) ([]uint64, error)
	BulkUpdateOpportunityStatus(ctx context.Context, ids []uint64, status string) (int64, error)

	// Analysis runs
	CreateAnalysisRun(ctx context.Context, item *models.AnalysisRun) error
	UpdateAnalysisRun(ctx context.Context, id string, updates map[string]any) error
	GetAnalysisRun(ctx context.Context, id string) (*models.AnalysisRun, error)
	ListAnalysisRuns(ctx context.Context, params ListAnalysisRunsParams) ([]models.AnalysisRun, error)
	CountAnalysisRuns(ctx context.Context, params ListAnalysisRunsParams) (int64, error)

	// Clearance dismissals
	CreateClearanceDismissal(ctx context.Context, item *models.ClearanceDismissal) error
	ListClearanceDismissalsSince(ctx context.Context, productID string, since time.Time) ([]models.ClearanceDismissal, error)
	ListClearanceDismissals(ctx context.Context, params ListDismissalsParams) ([]models.ClearanceDismissal, error)
	CountClearanceDismissals(ctx context.Context, params ListDismissalsParams) (int64, error)

	// System settings
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
}

type ListPatternsParams struct {
	Limit         int
	Offset        int
	ProductID     *string
	SupplierID    *string
	PatternType   *string
	IsActive      *bool
	MinConfidence *float64
	OrderBy       string
	Asc           *bool
}

type ListOpportunitiesParams struct {
	Limit          int
	Offset         int
	ProductID      *string
	Status         *string
	Recommendation *string
	Priority       *string
	MinScore       *float64
	OrderBy        string
	Asc            *bool
}

type ListAnalysisRunsParams struct {
	Limit   int
	Offset  int
	Status  *string
	RetryOf *string
	OrderBy string
	Asc     *bool
}

type ListDismissalsParams struct {
	Limit      int
	Offset     int
	ProductID  *string
	SupplierID *string
	OrderBy    string
	Asc        *bool
}
