package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ScanSchedule is a cron-driven trigger of full scans (spec.md §3/§4.6).
// Area/category/engine id sets are stored as JSON arrays since they are
// read-modify-written as whole sets, never filtered at the SQL level.
type ScanSchedule struct {
	BaseModel
	Name            string         `json:"name" gorm:"index"`
	CronExpression  string         `json:"cron_expression"`
	ServiceAreaIDs  UintSliceJSON  `json:"service_area_ids" gorm:"type:text"`
	CategoryIDs     UintSliceJSON  `json:"category_ids" gorm:"type:text"`
	EngineIDs       StringSliceJSON `json:"engine_ids" gorm:"type:text"`
	GridSize        int            `json:"grid_size" gorm:"default:7"`
	IsActive        bool           `json:"is_active" gorm:"default:true;index"`
	LastRunAt       *time.Time     `json:"last_run_at,omitempty"`
	NextRunAt       *time.Time     `json:"next_run_at,omitempty"`
}

func (s ScanSchedule) activeLabel() string {
	if s.IsActive {
		return "active"
	}
	return "disabled"
}

func (s ScanSchedule) String() string {
	return fmt.Sprintf("Schedule %d %q [%s] cron=%q engines=%d areas=%d categories=%d",
		s.ID, s.Name, s.activeLabel(), s.CronExpression, len(s.EngineIDs), len(s.ServiceAreaIDs), len(s.CategoryIDs))
}

func (s ScanSchedule) Pretty() string {
	lines := []string{
		fmt.Sprintf("Schedule ID: %d", s.ID),
		fmt.Sprintf("Name:        %s", s.Name),
		fmt.Sprintf("Status:      %s", s.activeLabel()),
		fmt.Sprintf("Cron:        %s", s.CronExpression),
	}
	if s.LastRunAt != nil {
		lines = append(lines, fmt.Sprintf("Last run:    %s", s.LastRunAt.Format(time.RFC3339)))
	}
	if s.NextRunAt != nil {
		lines = append(lines, fmt.Sprintf("Next run:    %s", s.NextRunAt.Format(time.RFC3339)))
	}
	return strings.Join(lines, "\n")
}

func (s ScanSchedule) TableHeaders() []string {
	return []string{"ID", "Name", "Status", "Cron", "Last Run"}
}

func (s ScanSchedule) TableRow() []string {
	lastRun := "-"
	if s.LastRunAt != nil {
		lastRun = s.LastRunAt.Format(time.RFC3339)
	}
	return []string{
		fmt.Sprintf("%d", s.ID),
		s.Name,
		s.activeLabel(),
		s.CronExpression,
		lastRun,
	}
}

func (d *DatabaseConnection) CreateScanSchedule(s *ScanSchedule) (*ScanSchedule, error) {
	result := d.db.Create(s)
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("Failed to create scan schedule")
	}
	return s, result.Error
}

func (d *DatabaseConnection) GetScanScheduleByID(id uint) (*ScanSchedule, error) {
	var s ScanSchedule
	if err := d.db.First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (d *DatabaseConnection) GetActiveScanSchedules() ([]*ScanSchedule, error) {
	var schedules []*ScanSchedule
	err := d.db.Where("is_active = ?", true).Find(&schedules).Error
	return schedules, err
}

func (d *DatabaseConnection) UpdateScanScheduleRunTimes(id uint, lastRunAt time.Time, nextRunAt *time.Time) error {
	updates := map[string]interface{}{"last_run_at": lastRunAt}
	updates["next_run_at"] = nextRunAt
	return d.db.Model(&ScanSchedule{}).Where("id = ?", id).Updates(updates).Error
}

// ListScanSchedules returns every schedule regardless of IsActive, for
// the scanctl CLI's pause-all/resume-all output.
func (d *DatabaseConnection) ListScanSchedules() ([]*ScanSchedule, error) {
	var schedules []*ScanSchedule
	err := d.db.Order("id ASC").Find(&schedules).Error
	return schedules, err
}

// SetScanScheduleActive flips a schedule's IsActive flag; this method
// only persists the flag. A running scheduler re-reads IsActive each
// time a registered schedule fires, so a disabled schedule stops
// creating scans at its next firing; a schedule that was inactive when
// the scheduler loaded is only registered by the next
// ReloadSchedule/ReloadAll call (spec.md §4.6).
func (d *DatabaseConnection) SetScanScheduleActive(id uint, active bool) (*ScanSchedule, error) {
	if err := d.db.Model(&ScanSchedule{}).Where("id = ?", id).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	return d.GetScanScheduleByID(id)
}

// BulkSetScanSchedulesActive flips IsActive on every schedule and returns
// every schedule afterwards (not only the rows it changed), for
// scanctl's pause-all/resume-all commands.
func (d *DatabaseConnection) BulkSetScanSchedulesActive(active bool) ([]*ScanSchedule, error) {
	if err := d.db.Model(&ScanSchedule{}).Where("is_active = ?", !active).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	return d.ListScanSchedules()
}
