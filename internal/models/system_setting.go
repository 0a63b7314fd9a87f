package models

import (
	"time"

	"gorm.io/datatypes"
)

// SystemSetting stores runtime-configurable documents, such as the scoring
// configuration, keyed by name.
type SystemSetting struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Key string `gorm:"type:varchar(120);not null;uniqueIndex"`

	Value   datatypes.JSON `gorm:"type:jsonb;not null"`
	Version int            `gorm:"not null;default:1"`

	Description string    `gorm:"type:text"`
	UpdatedBy   string    `gorm:"type:varchar(120)"`
	CreatedAt   time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}
