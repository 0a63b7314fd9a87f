package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// AnalysisRun records one batch invocation. ProductsAnalyzed+ProductsSkipped
// never exceeds ProductsTotal.
type AnalysisRun struct {
	ID     string `gorm:"type:varchar(36);primaryKey"`
	Status string `gorm:"type:varchar(20);not null;index"`

	Mode            string  `gorm:"type:varchar(20);not null"`
	MaxConcurrent   int     `gorm:"not null"`
	ContinueOnError bool    `gorm:"not null"`
	TriggeredBy     string  `gorm:"type:varchar(60)"`
	RetryOf         *string `gorm:"type:varchar(36);index"`

	ProductsTotal    int `gorm:"not null;default:0"`
	ProductsAnalyzed int `gorm:"not null;default:0"`
	ProductsSkipped  int `gorm:"not null;default:0"`

	Errors  datatypes.JSON `gorm:"type:jsonb"`
	Summary datatypes.JSON `gorm:"type:jsonb"`

	StartedAt   time.Time  `gorm:"type:timestamptz;not null;index"`
	CompletedAt *time.Time `gorm:"type:timestamptz"`
	DurationMs  int64      `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (AnalysisRun) TableName() string {
	return "analysis_runs"
}
