package db

import "github.com/rs/zerolog/log"

// ScanPointStatus mirrors spec.md §3: a point starts pending and moves to
// exactly one of completed/failed, never back.
type ScanPointStatus string

const (
	ScanPointStatusPending   ScanPointStatus = "pending"
	ScanPointStatusRunning   ScanPointStatus = "running"
	ScanPointStatusCompleted ScanPointStatus = "completed"
	ScanPointStatusFailed    ScanPointStatus = "failed"
)

// ScanPoint is one grid cell sampled by a Scan. (ScanID, GridRow, GridCol)
// is unique within a scan; 0 <= GridRow, GridCol < Scan.GridSize.
type ScanPoint struct {
	BaseModel
	ScanID  uint `json:"scan_id" gorm:"uniqueIndex:idx_scan_point_cell;not null"`
	GridRow int  `json:"grid_row" gorm:"uniqueIndex:idx_scan_point_cell"`
	GridCol int  `json:"grid_col" gorm:"uniqueIndex:idx_scan_point_cell"`

	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`

	Status ScanPointStatus `json:"status" gorm:"size:20;index;not null;default:'pending'"`

	Rankings []ScanRanking `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (d *DatabaseConnection) CreateScanPoints(points []*ScanPoint) error {
	if len(points) == 0 {
		return nil
	}
	result := d.db.Create(&points)
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("Failed to batch-create scan points")
	}
	return result.Error
}

func (d *DatabaseConnection) GetScanPointByID(id uint) (*ScanPoint, error) {
	var point ScanPoint
	if err := d.db.First(&point, id).Error; err != nil {
		return nil, err
	}
	return &point, nil
}

// GetScanPointsByStatus supports RecoverOrphanedScans' selection of
// pending/running points to re-queue (spec.md §4.5).
func (d *DatabaseConnection) GetScanPointsByStatus(scanID uint, statuses []ScanPointStatus) ([]*ScanPoint, error) {
	var points []*ScanPoint
	err := d.db.Where("scan_id = ? AND status IN ?", scanID, statuses).Find(&points).Error
	return points, err
}

func (d *DatabaseConnection) SetScanPointStatus(pointID uint, status ScanPointStatus) error {
	return d.db.Model(&ScanPoint{}).Where("id = ?", pointID).Update("status", status).Error
}

func (d *DatabaseConnection) CountScanPointsByStatus(scanID uint, status ScanPointStatus) (int64, error) {
	var count int64
	err := d.db.Model(&ScanPoint{}).Where("scan_id = ? AND status = ?", scanID, status).Count(&count).Error
	return count, err
}
