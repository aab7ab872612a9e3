package db

import (
	"time"

	"github.com/rs/zerolog/log"
)

type ReviewSource string

const (
	ReviewSourceGoogle ReviewSource = "google"
	ReviewSourceBing   ReviewSource = "bing"
)

// ReviewSnapshot is an append-only time series of (business, source,
// rating, reviewCount) observations (spec.md §3).
type ReviewSnapshot struct {
	BaseModel
	BusinessID  uint         `json:"business_id" gorm:"index;not null"`
	Source      ReviewSource `json:"source" gorm:"size:16;index;not null"`
	Rating      float64      `json:"rating"`
	ReviewCount int          `json:"review_count"`
	CapturedAt  time.Time    `json:"captured_at" gorm:"index"`
}

func (d *DatabaseConnection) CreateReviewSnapshot(s *ReviewSnapshot) (*ReviewSnapshot, error) {
	if s.CapturedAt.IsZero() {
		s.CapturedAt = time.Now()
	}
	result := d.db.Create(s)
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("Failed to create review snapshot")
	}
	return s, result.Error
}

func (d *DatabaseConnection) GetReviewHistory(businessID uint, source ReviewSource) ([]*ReviewSnapshot, error) {
	var snapshots []*ReviewSnapshot
	query := d.db.Where("business_id = ?", businessID)
	if source != "" {
		query = query.Where("source = ?", source)
	}
	err := query.Order("captured_at ASC").Find(&snapshots).Error
	return snapshots, err
}
