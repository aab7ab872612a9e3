package db

import "github.com/rs/zerolog/log"

// ScanRanking is the (business, position, resultType) tuple recorded at
// one grid point for one scan (spec.md §3/glossary).
type ScanRanking struct {
	BaseModel
	ScanPointID  uint      `json:"scan_point_id" gorm:"index;not null"`
	BusinessID   uint      `json:"business_id" gorm:"index;not null"`
	Business     *Business `json:"business,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`
	RankPosition int       `json:"rank_position"`
	ResultType   string    `json:"result_type" gorm:"size:32"`
	Snippet      *string   `json:"snippet,omitempty"`
}

func (d *DatabaseConnection) CreateScanRanking(r *ScanRanking) (*ScanRanking, error) {
	result := d.db.Create(r)
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("Failed to create scan ranking")
	}
	return r, result.Error
}

func (d *DatabaseConnection) GetRankingsForScanPoint(pointID uint) ([]*ScanRanking, error) {
	var rankings []*ScanRanking
	err := d.db.Where("scan_point_id = ?", pointID).Order("rank_position ASC").Find(&rankings).Error
	return rankings, err
}

// GetRankHistoryForBusiness returns every recorded position for a
// business across scans, most recent first.
func (d *DatabaseConnection) GetRankHistoryForBusiness(businessID uint) ([]*ScanRanking, error) {
	var rankings []*ScanRanking
	err := d.db.Where("business_id = ?", businessID).Order("created_at DESC").Find(&rankings).Error
	return rankings, err
}
