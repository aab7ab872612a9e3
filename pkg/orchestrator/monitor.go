package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pynara/geogrid/db"
	"github.com/pynara/geogrid/pkg/geoqueue"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/sourcegraph/conc"
)

// monitorSet owns every running single-scan and batch monitor goroutine,
// tracked with conc.WaitGroup so Stop() can't return with a monitor still
// writing to the database (spec.md §4.4's goroutine-leak-safety applied
// to the orchestrator's own background work, per SPEC_FULL.md §4.4).
type monitorSet struct {
	dbConn *db.DatabaseConnection

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      conc.WaitGroup
}

func newMonitorSet(dbConn *db.DatabaseConnection) *monitorSet {
	return &monitorSet{
		dbConn:  dbConn,
		cancels: make(map[string]context.CancelFunc),
	}
}

func (m *monitorSet) register(key string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels[key] = cancel
}

func (m *monitorSet) unregister(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancels, key)
}

// Stop cancels every in-flight monitor and waits for them to exit.
func (m *monitorSet) Stop() {
	m.mu.Lock()
	for _, cancel := range m.cancels {
		cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// startSingle runs the single-scan monitor from spec.md §4.5: poll on a
// fixed interval, finish the scan once every point is accounted for or
// the queue has gone idle on it, and hard-timeout as a last resort.
func (m *monitorSet) startSingle(scanID uint, queue *geoqueue.Queue) {
	key := "scan:" + time.Now().Format(time.RFC3339Nano)
	ctx, cancel := context.WithCancel(context.Background())
	m.register(key, cancel)

	poll := time.Duration(viper.GetInt("monitor.single_scan_poll_seconds")) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	timeout := time.Duration(viper.GetInt("monitor.single_scan_timeout_minutes")) * time.Minute
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	m.wg.Go(func() {
		defer m.unregister(key)
		m.runSingle(ctx, scanID, queue, poll, timeout)
	})
}

func (m *monitorSet) runSingle(ctx context.Context, scanID uint, queue *geoqueue.Queue, poll, timeout time.Duration) {
	logger := log.With().Uint("scan_id", scanID).Logger()
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		scan, err := m.dbConn.GetScanByID(scanID)
		if err != nil {
			logger.Error().Err(err).Msg("Single-scan monitor failed to load scan")
			return
		}
		if scan.IsTerminal() {
			return
		}

		if scan.PointsCompleted >= scan.PointsTotal {
			m.finalizeSingle(scanID, db.ScanStatusCompleted, "")
			return
		}

		if time.Now().After(deadline) {
			logger.Warn().Msg("Single-scan monitor hit hard timeout")
			m.finalizeSingle(scanID, db.ScanStatusFailed, "timed out")
			return
		}

		if m.engineIdleFor(scan.EngineID, queue) {
			logger.Warn().
				Int("points_completed", scan.PointsCompleted).
				Int("points_total", scan.PointsTotal).
				Msg("Single-scan monitor found idle queue short of completion, freezing scan")
			m.finalizeSingle(scanID, db.ScanStatusFailed,
				fmt.Sprintf("Engine queue empty before all points completed (%d/%d completed)", scan.PointsCompleted, scan.PointsTotal))
			return
		}
	}
}

func (m *monitorSet) finalizeSingle(scanID uint, status db.ScanStatus, errMsg string) {
	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}
	if _, err := m.dbConn.TrySetScanStatus(scanID, []db.ScanStatus{db.ScanStatusQueued, db.ScanStatusRunning}, status, errPtr); err != nil {
		log.Error().Err(err).Uint("scan_id", scanID).Msg("Failed to finalize scan")
	}
}

func (m *monitorSet) engineIdleFor(engineID string, queue *geoqueue.Queue) bool {
	if queue.QueueDepth(engineID) > 0 {
		return false
	}
	if queue.HasRetryTimer(engineID) {
		return false
	}
	for _, id := range queue.ProcessingEngines() {
		if id == engineID {
			return false
		}
	}
	return true
}

// startBatch runs the batch monitor from spec.md §4.5: one monitor per
// CreateFullScan call, a single query per tick across every scan sharing
// batchKey.
func (m *monitorSet) startBatch(batchKey string, queue *geoqueue.Queue) {
	key := "batch:" + batchKey
	ctx, cancel := context.WithCancel(context.Background())
	m.register(key, cancel)

	poll := time.Duration(viper.GetInt("monitor.batch_poll_seconds")) * time.Second
	if poll <= 0 {
		poll = 15 * time.Second
	}
	timeout := time.Duration(viper.GetInt("monitor.batch_timeout_hours")) * time.Hour
	if timeout <= 0 {
		timeout = 6 * time.Hour
	}

	m.wg.Go(func() {
		defer m.unregister(key)
		m.runBatch(ctx, batchKey, queue, poll, timeout)
	})
}

func (m *monitorSet) runBatch(ctx context.Context, batchKey string, queue *geoqueue.Queue, poll, timeout time.Duration) {
	logger := log.With().Str("batch_key", batchKey).Logger()
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		scans, err := m.dbConn.GetNonTerminalScansByBatchKey(batchKey)
		if err != nil {
			logger.Error().Err(err).Msg("Batch monitor failed to load scans")
			return
		}
		if len(scans) == 0 {
			return
		}

		hardTimedOut := time.Now().After(deadline)

		var doneIDs, timedOutIDs, idleIDs []uint
		for _, scan := range scans {
			switch {
			case scan.PointsCompleted >= scan.PointsTotal:
				doneIDs = append(doneIDs, scan.ID)
			case hardTimedOut:
				timedOutIDs = append(timedOutIDs, scan.ID)
			case m.engineIdleFor(scan.EngineID, queue):
				logger.Warn().Uint("scan_id", scan.ID).Msg("Batch monitor found idle queue short of completion, freezing scan")
				idleIDs = append(idleIDs, scan.ID)
			}
		}

		if len(doneIDs) > 0 {
			if err := m.dbConn.BatchFinalizeScans(doneIDs, db.ScanStatusCompleted, ""); err != nil {
				logger.Error().Err(err).Msg("Failed to finalize completed batch scans")
			}
		}
		if len(timedOutIDs) > 0 {
			if err := m.dbConn.BatchFinalizeScans(timedOutIDs, db.ScanStatusFailed, "timed out"); err != nil {
				logger.Error().Err(err).Msg("Failed to finalize timed-out batch scans")
			}
		}
		if len(idleIDs) > 0 {
			if err := m.dbConn.BatchFinalizeScans(idleIDs, db.ScanStatusFailed, "Engine queue empty before all points completed"); err != nil {
				logger.Error().Err(err).Msg("Failed to finalize idle batch scans")
			}
		}

		if hardTimedOut {
			return
		}
	}
}
