package models

import (
	"time"

	"gorm.io/datatypes"
)

// ClearanceDismissal marks a supplier clearance detection as a false positive.
type ClearanceDismissal struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	ProductID  string `gorm:"type:varchar(64);not null;index:ix_dismissal_product_supplier,priority:1"`
	SupplierID string `gorm:"type:varchar(64);not null;index:ix_dismissal_product_supplier,priority:2"`

	Reason         string         `gorm:"type:text"`
	SignalSnapshot datatypes.JSON `gorm:"type:jsonb"`
	DismissedBy    string         `gorm:"type:varchar(120)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (ClearanceDismissal) TableName() string {
	return "clearance_dismissals"
}
