// Package orchestrator implements ScanOrchestrator: creates scan
// records and their grid, enqueues per-point tasks, hosts the task
// handler, monitors completion, and recovers orphaned scans after
// restart (spec.md §4.5).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pynara/geogrid/db"
	"github.com/pynara/geogrid/pkg/geoengine"
	"github.com/pynara/geogrid/pkg/geoqueue"
	"github.com/pynara/geogrid/pkg/grid"
	"github.com/pynara/geogrid/pkg/matcher"
	"github.com/rs/zerolog/log"
)

// DefaultGridSize is used by CreateFullScan when the caller doesn't
// specify one (spec.md §4.5).
const DefaultGridSize = 7

// CreateScanRequest is the input to CreateScan: one
// (area, category, keyword, engine, gridSize) combination.
type CreateScanRequest struct {
	ServiceAreaID uint
	CategoryID    uint
	Keyword       string
	EngineID      string
	GridSize      int
}

// CreateFullScanRequest expands (areas × categories × keywords × engines)
// into one scan per combination (spec.md §4.5). Empty slices default to
// all active areas, all active categories and all registered engines.
type CreateFullScanRequest struct {
	ServiceAreaIDs []uint
	CategoryIDs    []uint
	EngineIDs      []string
	GridSize       int
}

// Orchestrator is the ScanOrchestrator.
type Orchestrator struct {
	dbConn   *db.DatabaseConnection
	engines  *geoengine.Registry
	queue    *geoqueue.Queue
	matcher  *matcher.Matcher

	monitors *monitorSet
}

// New wires an Orchestrator and installs the registry's group-daily-
// total accessor into the queue (spec.md §4.5 "Google-reputation
// accounting").
func New(dbConn *db.DatabaseConnection, engines *geoengine.Registry, m *matcher.Matcher) *Orchestrator {
	o := &Orchestrator{
		dbConn:  dbConn,
		engines: engines,
		matcher: m,
	}
	o.monitors = newMonitorSet(dbConn)

	o.queue = geoqueue.New(geoqueue.Config{
		Engines: engineLookupAdapter{engines: engines},
		Handler: o.handleTask,
		GroupTotal: func(group string) int {
			return engines.GroupRequestsToday(group)
		},
	})
	return o
}

// Queue exposes the underlying ScanQueue for introspection.
func (o *Orchestrator) Queue() *geoqueue.Queue {
	return o.queue
}

// Stop drains the queue and waits for every running monitor to exit, the
// shutdown order spec.md §6 describes for the enclosing application.
func (o *Orchestrator) Stop() {
	o.monitors.Stop()
	o.queue.Stop()
}

// engineLookupAdapter bridges geoengine.Registry to geoqueue.EngineLookup
// without making the queue package depend on the engine package.
type engineLookupAdapter struct {
	engines *geoengine.Registry
}

func (a engineLookupAdapter) Status(engineID string) (geoqueue.EngineStatuser, string, bool) {
	e := a.engines.Get(engineID)
	if e == nil {
		return nil, "", false
	}
	return e, e.Config().ReputationGroup, true
}

// validateScanInputs checks the area/category/engine exist and are
// active, and the grid size is one of {3,5,7,9} (spec.md §4.1, §4.5,
// §7 ValidationError).
func (o *Orchestrator) validateScanInputs(areaID, categoryID uint, engineID string, gridSize int) (*db.ServiceArea, *db.Category, error) {
	if !validGridSizes[gridSize] {
		return nil, nil, newValidationError("gridSize", fmt.Sprintf("must be one of 3,5,7,9, got %d", gridSize))
	}

	area, err := o.dbConn.GetServiceAreaByID(areaID)
	if err != nil || area == nil {
		return nil, nil, newValidationError("serviceAreaId", "service area not found")
	}
	if !area.IsActive {
		return nil, nil, newValidationError("serviceAreaId", "service area is not active")
	}

	category, err := o.dbConn.GetCategoryByID(categoryID)
	if err != nil || category == nil {
		return nil, nil, newValidationError("categoryId", "category not found")
	}
	if !category.IsActive {
		return nil, nil, newValidationError("categoryId", "category is not active")
	}

	if o.engines.Get(engineID) == nil {
		return nil, nil, newValidationError("engineId", "engine not registered")
	}

	return area, category, nil
}

// CreateScan persists one Scan and its grid of ScanPoints, enqueues one
// task per point, and starts a single-scan monitor (spec.md §4.5).
func (o *Orchestrator) CreateScan(req CreateScanRequest) (*db.Scan, error) {
	area, category, err := o.validateScanInputs(req.ServiceAreaID, req.CategoryID, req.EngineID, req.GridSize)
	if err != nil {
		return nil, err
	}

	scan := &db.Scan{
		ServiceAreaID: area.ID,
		CategoryID:    category.ID,
		Keyword:       req.Keyword,
		EngineID:      req.EngineID,
		GridSize:      req.GridSize,
		RadiusMiles:   area.RadiusMiles,
		Status:        db.ScanStatusQueued,
		PointsTotal:   req.GridSize * req.GridSize,
	}
	if _, err := o.dbConn.CreateScan(scan); err != nil {
		return nil, err
	}

	if err := o.createPointsAndEnqueue(scan, area); err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := o.dbConn.TrySetScanStatus(scan.ID, []db.ScanStatus{db.ScanStatusQueued}, db.ScanStatusRunning, nil); err != nil {
		log.Error().Err(err).Uint("scan_id", scan.ID).Msg("Failed to flip scan to running")
	}
	scan.Status = db.ScanStatusRunning
	scan.StartedAt = &now

	o.monitors.startSingle(scan.ID, o.queue)

	return scan, nil
}

// createPointsAndEnqueue generates the grid, persists ScanPoints, and
// enqueues one priority-1 task per point.
func (o *Orchestrator) createPointsAndEnqueue(scan *db.Scan, area *db.ServiceArea) error {
	cells := grid.Generate(area.CenterLat, area.CenterLng, area.RadiusMiles, scan.GridSize)

	points := make([]*db.ScanPoint, 0, len(cells))
	for _, c := range cells {
		points = append(points, &db.ScanPoint{
			ScanID:  scan.ID,
			GridRow: c.Row,
			GridCol: c.Col,
			Lat:     c.Lat,
			Lng:     c.Lng,
			Status:  db.ScanPointStatusPending,
		})
	}
	if err := o.dbConn.CreateScanPoints(points); err != nil {
		return err
	}

	tasks := make([]geoqueue.Task, 0, len(points))
	for _, p := range points {
		tasks = append(tasks, geoqueue.Task{
			ScanID:      scan.ID,
			ScanPointID: p.ID,
			EngineID:    scan.EngineID,
			Keyword:     scan.Keyword,
			Point:       grid.Point{Row: p.GridRow, Col: p.GridCol, Lat: p.Lat, Lng: p.Lng},
			City:        area.Name,
			State:       area.State,
			Priority:    1,
		})
	}
	o.queue.EnqueueBatch(tasks)
	return nil
}

// CreateFullScan expands (areas × categories × keywords × engines) into
// one scan per combination, applying the defaulting rules from
// spec.md §4.5, and starts one batch monitor for the whole group.
func (o *Orchestrator) CreateFullScan(req CreateFullScanRequest) ([]*db.Scan, error) {
	gridSize := req.GridSize
	if gridSize == 0 {
		gridSize = DefaultGridSize
	}
	if !validGridSizes[gridSize] {
		return nil, newValidationError("gridSize", fmt.Sprintf("must be one of 3,5,7,9, got %d", gridSize))
	}

	areas, err := o.resolveAreas(req.ServiceAreaIDs)
	if err != nil {
		return nil, err
	}
	categories, err := o.resolveCategories(req.CategoryIDs)
	if err != nil {
		return nil, err
	}
	engineIDs := req.EngineIDs
	if len(engineIDs) == 0 {
		engineIDs = o.engines.EngineIDs()
	}
	for _, id := range engineIDs {
		if o.engines.Get(id) == nil {
			return nil, newValidationError("engineIds", fmt.Sprintf("engine %q not registered", id))
		}
	}

	// uuid rather than a timestamp so two CreateFullScan calls issued in
	// the same nanosecond (e.g. by a retrying caller) never collide on
	// BatchKey and get merged into the same batch monitor.
	batchKey := uuid.NewString()
	var created []*db.Scan

	for _, area := range areas {
		for _, category := range categories {
			keywords, err := o.dbConn.GetActiveKeywordsForCategory(category.ID)
			if err != nil {
				return nil, err
			}
			keywordTexts := make([]string, 0, len(keywords))
			for _, k := range keywords {
				keywordTexts = append(keywordTexts, k.Text)
			}
			if len(keywordTexts) == 0 {
				keywordTexts = []string{category.Name}
			}

			for _, keyword := range keywordTexts {
				for _, engineID := range engineIDs {
					scan := &db.Scan{
						ServiceAreaID: area.ID,
						CategoryID:    category.ID,
						Keyword:       keyword,
						EngineID:      engineID,
						GridSize:      gridSize,
						RadiusMiles:   area.RadiusMiles,
						Status:        db.ScanStatusQueued,
						PointsTotal:   gridSize * gridSize,
						BatchKey:      &batchKey,
					}
					if _, err := o.dbConn.CreateScan(scan); err != nil {
						return nil, err
					}
					if err := o.createPointsAndEnqueue(scan, area); err != nil {
						return nil, err
					}
					o.dbConn.TrySetScanStatus(scan.ID, []db.ScanStatus{db.ScanStatusQueued}, db.ScanStatusRunning, nil)
					scan.Status = db.ScanStatusRunning
					created = append(created, scan)
				}
			}
		}
	}

	o.monitors.startBatch(batchKey, o.queue)

	return created, nil
}

func (o *Orchestrator) resolveAreas(ids []uint) ([]*db.ServiceArea, error) {
	if len(ids) > 0 {
		areas, err := o.dbConn.GetServiceAreasByIDs(ids)
		if err != nil {
			return nil, err
		}
		if len(areas) != len(ids) {
			return nil, newValidationError("serviceAreaIds", "one or more service areas not found")
		}
		return areas, nil
	}
	return o.dbConn.GetActiveServiceAreas()
}

func (o *Orchestrator) resolveCategories(ids []uint) ([]*db.Category, error) {
	if len(ids) > 0 {
		categories, err := o.dbConn.GetCategoriesByIDs(ids)
		if err != nil {
			return nil, err
		}
		if len(categories) != len(ids) {
			return nil, newValidationError("categoryIds", "one or more categories not found")
		}
		return categories, nil
	}
	return o.dbConn.GetActiveCategories()
}

// handleTask is the queue's TaskHandler (spec.md §4.5): fetch, resolve
// each business, persist rankings/snapshots, then mark the point done.
// Every branch ends by incrementing PointsCompleted — failed points
// count toward completion just like succeeded ones.
func (o *Orchestrator) handleTask(ctx context.Context, t geoqueue.Task) error {
	log := log.With().Uint("scan_id", t.ScanID).Uint("scan_point_id", t.ScanPointID).Str("engine_id", t.EngineID).Logger()

	engine := o.engines.Get(t.EngineID)
	if engine == nil {
		return o.failPoint(t, "engine not registered")
	}

	result, err := engine.Search(ctx, t.Keyword, t.Point, t.City, t.State)
	if err != nil {
		log.Warn().Err(err).Msg("Engine search failed")
		return o.failPoint(t, err.Error())
	}

	if result.Metadata.CaptchaDetected {
		log.Warn().Msg("CAPTCHA/block detected, point counted as failed")
		return o.failPoint(t, "engine blocked (captcha/429)")
	}

	for _, parsed := range result.Businesses {
		if err := o.recordListing(t, parsed); err != nil {
			log.Error().Err(err).Msg("Failed to record listing")
		}
	}

	if err := o.dbConn.SetScanPointStatus(t.ScanPointID, db.ScanPointStatusCompleted); err != nil {
		log.Error().Err(err).Msg("Failed to mark scan point completed")
	}
	if err := o.dbConn.IncrementScanPointsCompleted(t.ScanID); err != nil {
		log.Error().Err(err).Msg("Failed to increment points completed")
	}
	return nil
}

func (o *Orchestrator) failPoint(t geoqueue.Task, reason string) error {
	if err := o.dbConn.SetScanPointStatus(t.ScanPointID, db.ScanPointStatusFailed); err != nil {
		log.Error().Err(err).Msg("Failed to mark scan point failed")
	}
	if err := o.dbConn.IncrementScanPointsCompleted(t.ScanID); err != nil {
		log.Error().Err(err).Msg("Failed to increment points completed for failed point")
	}
	return fmt.Errorf("scan point %d failed: %s", t.ScanPointID, reason)
}

func (o *Orchestrator) recordListing(t geoqueue.Task, parsed geoengine.ParsedListing) error {
	scan, err := o.dbConn.GetScanByID(t.ScanID)
	if err != nil {
		return err
	}

	match, err := o.matcher.Resolve(matcher.ParsedBusiness{
		Name:        parsed.Name,
		Address:     parsed.Address,
		City:        parsed.City,
		State:       parsed.State,
		Phone:       parsed.Phone,
		Website:     parsed.Website,
		Lat:         parsed.Lat,
		Lng:         parsed.Lng,
		Rating:      parsed.Rating,
		ReviewCount: parsed.ReviewCount,
		PlaceID:     parsed.PlaceID,
	}, t.EngineID, &scan.CategoryID)
	if err != nil {
		return err
	}

	ranking := &db.ScanRanking{
		ScanPointID:  t.ScanPointID,
		BusinessID:   match.BusinessID,
		RankPosition: parsed.RankPosition,
		ResultType:   string(parsed.ResultType),
	}
	if parsed.Snippet != "" {
		snippet := parsed.Snippet
		ranking.Snippet = &snippet
	}
	if _, err := o.dbConn.CreateScanRanking(ranking); err != nil {
		return err
	}

	if parsed.Rating != nil && parsed.ReviewCount != nil {
		source := db.ReviewSourceGoogle
		if isBingEngine(t.EngineID) {
			source = db.ReviewSourceBing
		}
		if _, err := o.dbConn.CreateReviewSnapshot(&db.ReviewSnapshot{
			BusinessID:  match.BusinessID,
			Source:      source,
			Rating:      *parsed.Rating,
			ReviewCount: *parsed.ReviewCount,
		}); err != nil {
			return err
		}
	}

	return nil
}

func isBingEngine(engineID string) bool {
	return len(engineID) >= 4 && engineID[:4] == "bing"
}
