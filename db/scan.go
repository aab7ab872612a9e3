package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ScanStatus mirrors spec.md §3: status is monotonic forward through
// {queued -> running -> {completed|failed|cancelled}}.
type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "pending"
	ScanStatusQueued    ScanStatus = "queued"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
	ScanStatusCancelled ScanStatus = "cancelled"
)

// IsTerminal reports whether a status can never transition further.
func (s ScanStatus) IsTerminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFailed || s == ScanStatusCancelled
}

// Scan is one (serviceArea, category, keyword, engine, gridSize) grid
// scan. PointsTotal = gridSize^2 and PointsCompleted only ever advances
// by atomic +1 increments (see IncrementScanPointsCompleted).
type Scan struct {
	BaseModel

	ServiceAreaID uint        `json:"service_area_id" gorm:"index;not null"`
	ServiceArea   ServiceArea `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`
	CategoryID    uint        `json:"category_id" gorm:"index;not null"`
	Category      Category    `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`
	KeywordID     *uint       `json:"keyword_id" gorm:"index"`
	Keyword       string      `json:"keyword" gorm:"size:255;not null"`
	EngineID      string      `json:"engine_id" gorm:"size:64;index;not null"`

	GridSize    int     `json:"grid_size"`
	RadiusMiles float64 `json:"radius_miles"`

	Status ScanStatus `json:"status" gorm:"size:20;index;not null;default:'pending'"`

	PointsTotal     int `json:"points_total" gorm:"default:0"`
	PointsCompleted int `json:"points_completed" gorm:"default:0"`

	ErrorMessage *string `json:"error_message,omitempty"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// BatchKey groups the scans created by one CreateFullScan call so
	// the batch monitor can select them with a single query.
	BatchKey *string `json:"batch_key,omitempty" gorm:"index"`

	Points []ScanPoint `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (s *Scan) IsTerminal() bool {
	return s.Status.IsTerminal()
}

func (s *Scan) Progress() float64 {
	if s.PointsTotal == 0 {
		return 0
	}
	return float64(s.PointsCompleted) / float64(s.PointsTotal) * 100
}

func (s Scan) String() string {
	return fmt.Sprintf("Scan %d [%s] engine=%s keyword=%q progress=%.1f%% (%d/%d)",
		s.ID, s.Status, s.EngineID, s.Keyword, s.Progress(), s.PointsCompleted, s.PointsTotal)
}

func (s Scan) Pretty() string {
	lines := []string{
		fmt.Sprintf("Scan ID:   %d", s.ID),
		fmt.Sprintf("Engine:    %s", s.EngineID),
		fmt.Sprintf("Keyword:   %s", s.Keyword),
		fmt.Sprintf("Status:    %s", s.Status),
		fmt.Sprintf("Progress:  %.1f%% (%d/%d points)", s.Progress(), s.PointsCompleted, s.PointsTotal),
	}
	if s.ErrorMessage != nil {
		lines = append(lines, fmt.Sprintf("Error:     %s", *s.ErrorMessage))
	}
	return strings.Join(lines, "\n")
}

func (s Scan) TableHeaders() []string {
	return []string{"ID", "Engine", "Status", "Progress", "Area", "Category", "Keyword"}
}

func (s Scan) TableRow() []string {
	return []string{
		fmt.Sprintf("%d", s.ID),
		s.EngineID,
		string(s.Status),
		fmt.Sprintf("%.1f%% (%d/%d)", s.Progress(), s.PointsCompleted, s.PointsTotal),
		fmt.Sprintf("%d", s.ServiceAreaID),
		fmt.Sprintf("%d", s.CategoryID),
		s.Keyword,
	}
}

// ScanFilter mirrors the teacher's ScanFilter shape (Pagination + a
// validated sort allow-list), generalized to the geogrid schema.
type ScanFilter struct {
	Statuses      []ScanStatus `json:"statuses"`
	ServiceAreaID uint         `json:"service_area_id"`
	CategoryID    uint         `json:"category_id"`
	EngineID      string       `json:"engine_id"`
	BatchKey      string       `json:"batch_key"`
	Pagination    Pagination   `json:"pagination"`
	SortBy        string       `json:"sort_by" validate:"omitempty,oneof=id created_at updated_at status"`
	SortOrder     string       `json:"sort_order" validate:"omitempty,oneof=asc desc"`
}

func (d *DatabaseConnection) CreateScan(scan *Scan) (*Scan, error) {
	result := d.db.Create(scan)
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("Failed to create scan")
	}
	return scan, result.Error
}

func (d *DatabaseConnection) CreateScans(scans []*Scan) error {
	if len(scans) == 0 {
		return nil
	}
	result := d.db.Create(&scans)
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("Failed to batch-create scans")
	}
	return result.Error
}

func (d *DatabaseConnection) GetScanByID(id uint) (*Scan, error) {
	var scan Scan
	if err := d.db.First(&scan, id).Error; err != nil {
		return nil, err
	}
	return &scan, nil
}

func (d *DatabaseConnection) ListScans(filter ScanFilter) (items []*Scan, count int64, err error) {
	query := d.db.Model(&Scan{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.ServiceAreaID > 0 {
		query = query.Where("service_area_id = ?", filter.ServiceAreaID)
	}
	if filter.CategoryID > 0 {
		query = query.Where("category_id = ?", filter.CategoryID)
	}
	if filter.EngineID != "" {
		query = query.Where("engine_id = ?", filter.EngineID)
	}
	if filter.BatchKey != "" {
		query = query.Where("batch_key = ?", filter.BatchKey)
	}

	if err = query.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "id"
	}
	sortOrder := filter.SortOrder
	if sortOrder == "" {
		sortOrder = "desc"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))
	query = query.Scopes(Paginate(&filter.Pagination))

	err = query.Find(&items).Error
	return items, count, err
}

// GetNonTerminalScansByBatchKey is the single query the batch monitor
// issues per tick (spec.md §4.5 / §9 "one polling monitor per batch").
func (d *DatabaseConnection) GetNonTerminalScansByBatchKey(batchKey string) ([]*Scan, error) {
	var scans []*Scan
	err := d.db.Where("batch_key = ? AND status NOT IN ?", batchKey,
		[]ScanStatus{ScanStatusCompleted, ScanStatusFailed, ScanStatusCancelled}).
		Find(&scans).Error
	return scans, err
}

// GetActiveScans returns scans still running or queued; used by
// RecoverOrphanedScans at startup.
func (d *DatabaseConnection) GetActiveScans() ([]*Scan, error) {
	var scans []*Scan
	err := d.db.Where("status IN ?", []ScanStatus{ScanStatusRunning, ScanStatusQueued}).Find(&scans).Error
	return scans, err
}

// IncrementScanPointsCompleted performs `points_completed += 1` as a
// single atomic UPDATE (gorm.Expr), never a read-modify-write, so
// concurrent workers recovering the same scan can't lose updates
// (spec.md §5, §8 "Counter atomicity under concurrency").
func (d *DatabaseConnection) IncrementScanPointsCompleted(scanID uint) error {
	return d.db.Model(&Scan{}).Where("id = ?", scanID).
		UpdateColumn("points_completed", gorm.Expr("points_completed + 1")).Error
}

// TrySetScanStatus is the CAS analogue of the teacher's
// AtomicSetScanPhase: it only transitions if the row is currently in one
// of expectedFrom, returning whether the transition actually happened.
// This is how the monitor and the cancel/recover paths avoid racing each
// other into a double-terminal transition (spec.md §8 "Monotonic scan
// status").
func (d *DatabaseConnection) TrySetScanStatus(scanID uint, expectedFrom []ScanStatus, newStatus ScanStatus, errorMessage *string) (bool, error) {
	updates := map[string]interface{}{"status": newStatus}
	now := time.Now()
	if newStatus == ScanStatusRunning {
		updates["started_at"] = now
	}
	if newStatus.IsTerminal() {
		updates["completed_at"] = now
	}
	if errorMessage != nil {
		updates["error_message"] = *errorMessage
	}

	result := d.db.Model(&Scan{}).
		Where("id = ? AND status IN ?", scanID, expectedFrom).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// BatchFinalizeScans applies the same status transition to every id in
// ids, guarded so only still-non-terminal rows move — the "batch update
// set status, completedAt, errorMessage where id in {...} and status in
// {queued, running}" boundary from spec.md §6.
func (d *DatabaseConnection) BatchFinalizeScans(ids []uint, newStatus ScanStatus, errorMessage string) error {
	if len(ids) == 0 {
		return nil
	}
	updates := map[string]interface{}{
		"status":       newStatus,
		"completed_at": time.Now(),
	}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}
	return d.db.Model(&Scan{}).
		Where("id IN ? AND status IN ?", ids, []ScanStatus{ScanStatusQueued, ScanStatusRunning}).
		Updates(updates).Error
}

func (d *DatabaseConnection) CancelScan(scanID uint) (*Scan, error) {
	ok, err := d.TrySetScanStatus(scanID, []ScanStatus{ScanStatusPending, ScanStatusQueued, ScanStatusRunning}, ScanStatusCancelled, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warn().Uint("scan_id", scanID).Msg("Scan was already terminal, cancel ignored")
	}
	return d.GetScanByID(scanID)
}
