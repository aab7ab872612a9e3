package db

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Business is the deduplicated entity BusinessMatcher resolves parsed
// listings against. See spec.md §3 for the full invariant list
// (normalizedName derivation, phone shape, googlePlaceId uniqueness,
// firstSeenAt <= lastSeenAt, rating bounds).
type Business struct {
	BaseModel
	Name            string  `json:"name"`
	NormalizedName  string  `json:"normalized_name" gorm:"index"`
	NormalizedPhone *string `json:"normalized_phone" gorm:"index"`
	Address         string  `json:"address"`
	City            string  `json:"city" gorm:"index"`
	State           string  `json:"state"`
	Lat             *float64 `json:"lat"`
	Lng             *float64 `json:"lng"`
	Website         *string  `json:"website"`
	NormalizedDomain *string `json:"normalized_domain" gorm:"index"`
	GooglePlaceID   *string `json:"google_place_id" gorm:"uniqueIndex"`
	CategoryID      *uint   `json:"category_id" gorm:"index"`

	GoogleRating      *float64 `json:"google_rating"`
	GoogleReviewCount *int     `json:"google_review_count"`
	BingRating        *float64 `json:"bing_rating"`
	BingReviewCount   *int     `json:"bing_review_count"`

	IsClaimed bool `json:"is_claimed" gorm:"default:false"`
	IsClient  bool `json:"is_client" gorm:"default:false"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

func (d *DatabaseConnection) CreateBusiness(b *Business) (*Business, error) {
	now := time.Now()
	if b.FirstSeenAt.IsZero() {
		b.FirstSeenAt = now
	}
	if b.LastSeenAt.IsZero() {
		b.LastSeenAt = now
	}
	result := d.db.Create(b)
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("Failed to create business")
	}
	return b, result.Error
}

func (d *DatabaseConnection) GetBusinessByID(id uint) (*Business, error) {
	var b Business
	if err := d.db.First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (d *DatabaseConnection) GetBusinessByGooglePlaceID(placeID string) (*Business, error) {
	var b Business
	err := d.db.Where("google_place_id = ?", placeID).First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (d *DatabaseConnection) GetBusinessByNormalizedPhone(phone string) (*Business, error) {
	var b Business
	err := d.db.Where("normalized_phone = ?", phone).First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBusinessesByNormalizedName returns candidates for tier-3 (name +
// coordinate) matching. The coordinate comparison happens in
// pkg/matcher, not in SQL.
func (d *DatabaseConnection) GetBusinessesByNormalizedName(name string) ([]*Business, error) {
	var businesses []*Business
	err := d.db.Where("normalized_name = ?", name).Find(&businesses).Error
	return businesses, err
}

// GetBusinessesByNormalizedPhone narrows tier-3.5 candidates to those whose
// normalized phone equals phone exactly, before the Levenshtein name
// comparison runs in-process.
func (d *DatabaseConnection) GetBusinessesByNormalizedPhone(phone string) ([]*Business, error) {
	var businesses []*Business
	err := d.db.Where("normalized_phone = ?", phone).Find(&businesses).Error
	return businesses, err
}

func (d *DatabaseConnection) GetBusinessesByDomainAndCity(domain, city string) ([]*Business, error) {
	var businesses []*Business
	err := d.db.Where("normalized_domain = ? AND LOWER(city) = LOWER(?)", domain, city).Find(&businesses).Error
	return businesses, err
}

func (d *DatabaseConnection) UpdateBusiness(b *Business) (*Business, error) {
	result := d.db.Save(b)
	if result.Error != nil {
		log.Error().Err(result.Error).Uint("business_id", b.ID).Msg("Failed to update business")
	}
	return b, result.Error
}

// TouchLastSeen advances LastSeenAt without disturbing FirstSeenAt,
// matching the "Matcher stability" testable property (spec.md §8).
func (d *DatabaseConnection) TouchLastSeen(id uint, at time.Time) error {
	return d.db.Model(&Business{}).Where("id = ?", id).Update("last_seen_at", at).Error
}
