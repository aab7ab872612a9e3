// Package scheduler implements ScanScheduler: a cron-driven trigger that
// fires CreateFullScan on each ScanSchedule's schedule (spec.md §4.6).
package scheduler

import (
	"sync"
	"time"

	"github.com/pynara/geogrid/db"
	"github.com/pynara/geogrid/pkg/orchestrator"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler owns one cron.Cron instance and a cron.EntryID per active
// ScanSchedule, so ReloadSchedule can remove the old entry before adding
// the new one (spec.md §4.6).
type Scheduler struct {
	dbConn       *db.DatabaseConnection
	orchestrator *orchestrator.Orchestrator

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[uint]cron.EntryID
	running bool
}

func New(dbConn *db.DatabaseConnection, o *orchestrator.Orchestrator) *Scheduler {
	return &Scheduler{
		dbConn:       dbConn,
		orchestrator: o,
		cron:         cron.New(),
		entries:      make(map[uint]cron.EntryID),
	}
}

// Start loads every active ScanSchedule, registers a cron job for each,
// and starts the cron loop. Invalid cron expressions are logged and
// skipped, not fatal (spec.md §4.6).
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	schedules, err := s.dbConn.GetActiveScanSchedules()
	if err != nil {
		return err
	}
	for _, schedule := range schedules {
		s.registerLocked(schedule)
	}

	s.cron.Start()
	s.running = true
	return nil
}

// Stop halts the cron loop and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
}

// ReloadSchedule stops and re-reads one schedule by id, re-registering
// its cron job under the (possibly changed) expression. Deleting or
// deactivating a schedule and calling ReloadSchedule removes its entry.
func (s *Scheduler) ReloadSchedule(scheduleID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(scheduleID)

	schedule, err := s.dbConn.GetScanScheduleByID(scheduleID)
	if err != nil {
		log.Warn().Err(err).Uint("schedule_id", scheduleID).Msg("Schedule not found during reload, leaving unregistered")
		return nil
	}
	if !schedule.IsActive {
		return nil
	}
	s.registerLocked(schedule)
	return nil
}

// ReloadAll discards every registered entry and re-reads the active set
// from the database.
func (s *Scheduler) ReloadAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.entries {
		s.removeLocked(id)
	}

	schedules, err := s.dbConn.GetActiveScanSchedules()
	if err != nil {
		return err
	}
	for _, schedule := range schedules {
		s.registerLocked(schedule)
	}
	return nil
}

func (s *Scheduler) removeLocked(scheduleID uint) {
	if entryID, ok := s.entries[scheduleID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, scheduleID)
	}
}

func (s *Scheduler) registerLocked(schedule *db.ScanSchedule) {
	id := schedule.ID
	entryID, err := s.cron.AddFunc(schedule.CronExpression, func() {
		s.fire(id)
	})
	if err != nil {
		log.Error().Err(err).Uint("schedule_id", id).Str("cron", schedule.CronExpression).
			Msg("Invalid cron expression, schedule skipped")
		return
	}
	s.entries[id] = entryID
}

// fire runs when a schedule's cron expression matches: it reloads the
// schedule (in case it changed since registration), calls CreateFullScan,
// and records LastRunAt/NextRunAt. NextRunAt is best-effort: a batch of
// scans that are still running when the next tick lands simply overlaps,
// rather than being serialized (spec.md §9 Open Question).
func (s *Scheduler) fire(scheduleID uint) {
	logger := log.With().Uint("schedule_id", scheduleID).Logger()

	schedule, err := s.dbConn.GetScanScheduleByID(scheduleID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load schedule at fire time")
		return
	}
	if !schedule.IsActive {
		return
	}

	_, err = s.orchestrator.CreateFullScan(orchestrator.CreateFullScanRequest{
		ServiceAreaIDs: []uint(schedule.ServiceAreaIDs),
		CategoryIDs:    []uint(schedule.CategoryIDs),
		EngineIDs:      []string(schedule.EngineIDs),
		GridSize:       schedule.GridSize,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Scheduled CreateFullScan failed")
	}

	now := time.Now()
	var next *time.Time
	s.mu.Lock()
	if entryID, ok := s.entries[scheduleID]; ok {
		if entry := s.cron.Entry(entryID); entry.ID != 0 {
			t := entry.Next
			next = &t
		}
	}
	s.mu.Unlock()

	if err := s.dbConn.UpdateScanScheduleRunTimes(scheduleID, now, next); err != nil {
		logger.Error().Err(err).Msg("Failed to record schedule run times")
	}
}
