package db

import (
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	if err := db.Gorm.AutoMigrate(
		// catalogue, written by the storefront import
		&models.Product{},
		&models.SupplierOffer{},
		&models.PriceObservation{},
		&models.PurchaseRecord{},
		// analysis
		&models.Pattern{},
		&models.BargainOpportunity{},
		&models.AnalysisRun{},
		&models.ClearanceDismissal{},
		&models.SystemSetting{},
	); err != nil {
		return err
	}
	// At most one active opportunity per product.
	return db.Gorm.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_bargain_opportunities_active_product
		ON bargain_opportunities (product_id) WHERE status = 'active'`).Error
}
