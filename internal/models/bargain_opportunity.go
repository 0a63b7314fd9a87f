package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	OpportunityStatusActive    = "active"
	OpportunityStatusPurchased = "purchased"
	OpportunityStatusDismissed = "dismissed"
	OpportunityStatusExpired   = "expired"
)

// BargainOpportunity is the persisted outcome of one product analysis. At most
// one row per product is active at a time.
type BargainOpportunity struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	ProductID string `gorm:"type:varchar(64);not null;index"`

	Status string `gorm:"type:varchar(20);not null;index;default:'active'"`

	OpportunityScore float64 `gorm:"not null"`
	RiskScore        float64 `gorm:"not null"`
	Confidence       float64 `gorm:"not null"`
	ConfidenceLevel  string  `gorm:"type:varchar(20);not null"`

	Recommendation     string `gorm:"type:varchar(40);not null;index"`
	Priority           string `gorm:"type:varchar(20);not null;index"`
	SuggestedStockDays *int

	CurrentPrice float64 `gorm:"not null;default:0"`
	IsFlashDeal  bool    `gorm:"not null;default:false"`
	Rationale    string  `gorm:"type:text"`

	AnalysisData datatypes.JSON `gorm:"type:jsonb"`

	// LastRunID points at the analysis run that last wrote this row.
	LastRunID *string `gorm:"type:varchar(36)"`

	ExpiresAt  *time.Time `gorm:"type:timestamptz;index"`
	NotifiedAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (BargainOpportunity) TableName() string {
	return "bargain_opportunities"
}
