package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalogue row the analyzer reads; it is written by the
// storefront import, never by the engine.
type Product struct {
	ID               string `gorm:"type:varchar(64);primaryKey"`
	Name             string `gorm:"type:varchar(255);not null"`
	CurrentInventory int    `gorm:"not null;default:0"`
	Active           bool   `gorm:"not null;default:true;index"`

	Offers    []SupplierOffer    `gorm:"foreignKey:ProductID;references:ID"`
	Purchases []PurchaseRecord   `gorm:"foreignKey:ProductID;references:ID"`
	History   []PriceObservation `gorm:"foreignKey:ProductID;references:ID"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Product) TableName() string {
	return "products"
}

// SupplierOffer is the latest quote of one supplier for one product.
type SupplierOffer struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ProductID    string `gorm:"type:varchar(64);not null;uniqueIndex:ux_offer_product_supplier"`
	SupplierID   string `gorm:"type:varchar(64);not null;uniqueIndex:ux_offer_product_supplier"`
	SupplierName string `gorm:"type:varchar(255)"`
	InStock      bool   `gorm:"not null;default:false"`

	WholesalePrice decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	RecycleTax     decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`

	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (SupplierOffer) TableName() string {
	return "supplier_offers"
}

// PriceObservation is an append-only wholesale price sample.
type PriceObservation struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement"`
	ProductID      string          `gorm:"type:varchar(64);not null;index:ix_obs_product_supplier_time,priority:1"`
	SupplierID     string          `gorm:"type:varchar(64);not null;index:ix_obs_product_supplier_time,priority:2"`
	WholesalePrice decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	ObservedAt     time.Time       `gorm:"type:timestamptz;not null;index:ix_obs_product_supplier_time,priority:3"`
}

func (PriceObservation) TableName() string {
	return "price_observations"
}

type PurchaseRecord struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement"`
	ProductID   string          `gorm:"type:varchar(64);not null;index"`
	Quantity    int             `gorm:"not null"`
	Price       decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	PurchasedAt time.Time       `gorm:"type:timestamptz;not null;index"`
}

func (PurchaseRecord) TableName() string {
	return "purchase_records"
}
