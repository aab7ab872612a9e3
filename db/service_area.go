package db

import "github.com/rs/zerolog/log"

// ServiceArea is the geographic center+radius a grid scan is built
// around. Its center is immutable for the duration of any in-flight scan
// referencing it (spec.md §3); callers must not mutate CenterLat/CenterLng
// on an area with active scans.
type ServiceArea struct {
	BaseModel
	Name        string  `json:"name" gorm:"index"`
	State       string  `json:"state"`
	CenterLat   float64 `json:"center_lat"`
	CenterLng   float64 `json:"center_lng"`
	RadiusMiles float64 `json:"radius_miles"`
	IsActive    bool    `json:"is_active" gorm:"default:true;index"`
}

func (d *DatabaseConnection) CreateServiceArea(area *ServiceArea) (*ServiceArea, error) {
	result := d.db.Create(area)
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("Failed to create service area")
	}
	return area, result.Error
}

func (d *DatabaseConnection) GetServiceAreaByID(id uint) (*ServiceArea, error) {
	var area ServiceArea
	err := d.db.First(&area, id).Error
	if err != nil {
		return nil, err
	}
	return &area, nil
}

func (d *DatabaseConnection) GetActiveServiceAreas() ([]*ServiceArea, error) {
	var areas []*ServiceArea
	err := d.db.Where("is_active = ?", true).Find(&areas).Error
	return areas, err
}

func (d *DatabaseConnection) GetServiceAreasByIDs(ids []uint) ([]*ServiceArea, error) {
	var areas []*ServiceArea
	err := d.db.Where("id IN ?", ids).Find(&areas).Error
	return areas, err
}

// ServiceAreaScanSummary is the scanctl/stats CLI surface's view of one
// area's scan activity: counts by terminal/non-terminal status plus the
// number of distinct businesses ranked across every scan run there.
type ServiceAreaScanSummary struct {
	ServiceAreaID    uint
	TotalScans       int64
	RunningScans     int64
	CompletedScans   int64
	FailedScans      int64
	DistinctBusiness int64
}

// GetServiceAreaScanSummary aggregates scan counts and distinct ranked
// businesses for one area, for `stats area` (spec.md §1: dashboards/
// reports themselves are out of scope, but this read-only summary is
// plain CRUD/aggregation over the in-scope data model).
func (d *DatabaseConnection) GetServiceAreaScanSummary(areaID uint) (ServiceAreaScanSummary, error) {
	summary := ServiceAreaScanSummary{ServiceAreaID: areaID}

	if err := d.db.Model(&Scan{}).Where("service_area_id = ?", areaID).Count(&summary.TotalScans).Error; err != nil {
		return summary, err
	}
	if err := d.db.Model(&Scan{}).
		Where("service_area_id = ? AND status IN ?", areaID, []ScanStatus{ScanStatusQueued, ScanStatusRunning}).
		Count(&summary.RunningScans).Error; err != nil {
		return summary, err
	}
	if err := d.db.Model(&Scan{}).
		Where("service_area_id = ? AND status = ?", areaID, ScanStatusCompleted).
		Count(&summary.CompletedScans).Error; err != nil {
		return summary, err
	}
	if err := d.db.Model(&Scan{}).
		Where("service_area_id = ? AND status = ?", areaID, ScanStatusFailed).
		Count(&summary.FailedScans).Error; err != nil {
		return summary, err
	}

	err := d.db.Model(&ScanRanking{}).
		Joins("JOIN scan_points ON scan_points.id = scan_rankings.scan_point_id").
		Joins("JOIN scans ON scans.id = scan_points.scan_id").
		Where("scans.service_area_id = ?", areaID).
		Distinct("scan_rankings.business_id").
		Count(&summary.DistinctBusiness).Error
	return summary, err
}
