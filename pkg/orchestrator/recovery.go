package orchestrator

import (
	"github.com/pynara/geogrid/db"
	"github.com/pynara/geogrid/pkg/geoqueue"
	"github.com/pynara/geogrid/pkg/grid"
	"github.com/rs/zerolog/log"
)

// RecoverOrphanedScans re-queues the work a crashed process left behind
// (spec.md §4.5 "Recovery"): every running/queued scan gets its
// pending/running points re-enqueued, its status normalized back to
// running, and a fresh monitor — batched by BatchKey where one was
// recorded, single otherwise. A scan whose points are already all
// terminal is finalized directly instead of waiting for a monitor tick.
func (o *Orchestrator) RecoverOrphanedScans() error {
	scans, err := o.dbConn.GetActiveScans()
	if err != nil {
		return err
	}
	if len(scans) == 0 {
		return nil
	}

	batches := make(map[string][]*db.Scan)
	var singles []*db.Scan

	for _, scan := range scans {
		if scan.BatchKey != nil && *scan.BatchKey != "" {
			batches[*scan.BatchKey] = append(batches[*scan.BatchKey], scan)
		} else {
			singles = append(singles, scan)
		}
	}

	for _, scan := range append(singles, flatten(batches)...) {
		if err := o.recoverOneScan(scan); err != nil {
			log.Error().Err(err).Uint("scan_id", scan.ID).Msg("Failed to recover scan")
		}
	}

	for _, scan := range singles {
		o.monitors.startSingle(scan.ID, o.queue)
	}
	for batchKey := range batches {
		o.monitors.startBatch(batchKey, o.queue)
	}

	return nil
}

func flatten(batches map[string][]*db.Scan) []*db.Scan {
	var out []*db.Scan
	for _, scans := range batches {
		out = append(out, scans...)
	}
	return out
}

// recoverOneScan re-enqueues a scan's unfinished points, or finalizes it
// directly if every point already reached a terminal state.
func (o *Orchestrator) recoverOneScan(scan *db.Scan) error {
	pending, err := o.dbConn.GetScanPointsByStatus(scan.ID, []db.ScanPointStatus{
		db.ScanPointStatusPending, db.ScanPointStatusRunning,
	})
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		status := db.ScanStatusCompleted
		if scan.PointsCompleted < scan.PointsTotal {
			status = db.ScanStatusFailed
		}
		_, err := o.dbConn.TrySetScanStatus(scan.ID, []db.ScanStatus{db.ScanStatusQueued, db.ScanStatusRunning}, status, nil)
		return err
	}

	area, err := o.dbConn.GetServiceAreaByID(scan.ServiceAreaID)
	if err != nil {
		return err
	}

	tasks := make([]geoqueue.Task, 0, len(pending))
	for _, p := range pending {
		if p.Status != db.ScanPointStatusPending {
			if err := o.dbConn.SetScanPointStatus(p.ID, db.ScanPointStatusPending); err != nil {
				log.Error().Err(err).Uint("scan_point_id", p.ID).Msg("Failed to reset scan point to pending on recovery")
			}
		}
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

	_, err = o.dbConn.TrySetScanStatus(scan.ID, []db.ScanStatus{db.ScanStatusQueued}, db.ScanStatusRunning, nil)
	return err
}
