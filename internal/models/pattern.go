package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PatternTypeSeasonal       = "seasonal"
	PatternTypeDayOfWeek      = "day_of_week"
	PatternTypeMonthlyCycle   = "monthly_cycle"
	PatternTypeVShape         = "v_shape"
	PatternTypeGradualDecline = "gradual_decline"

	PatternScopeSupplier = "supplier"
	PatternScopeProduct  = "product"
)

// Pattern is a recurring price behaviour learned for one product, either per
// supplier or aggregated over all suppliers.
type Pattern struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	// Key is productID:supplierID:patternType ("*" as supplier for the
	// aggregated scope) and is the idempotency key for detection writes.
	Key         string  `gorm:"type:varchar(200);not null;uniqueIndex"`
	PatternType string  `gorm:"type:varchar(40);not null;index"`
	Scope       string  `gorm:"type:varchar(20);not null"`
	ScopeTarget string  `gorm:"type:varchar(160);not null"`
	ProductID   string  `gorm:"type:varchar(64);not null;index"`
	SupplierID  *string `gorm:"type:varchar(64);index"`

	PatternData datatypes.JSON `gorm:"type:jsonb"`

	Confidence      float64 `gorm:"not null;default:0"`
	TimesObserved   int     `gorm:"not null;default:0"`
	TimesSuccessful int     `gorm:"not null;default:0"`
	IsActive        bool    `gorm:"not null;default:true;index"`

	LastDetectedAt  *time.Time `gorm:"type:timestamptz"`
	LastValidatedAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (Pattern) TableName() string {
	return "patterns"
}
