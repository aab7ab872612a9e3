package db

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel is embedded by every entity in §3 of the spec; soft-delete is
// enabled so cascade-delete semantics (Scan → ScanPoint → ScanRanking)
// can be expressed with gorm's OnDelete constraints without losing
// history immediately.
type BaseModel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
