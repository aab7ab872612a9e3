// Package geoqueue implements ScanQueue: per-engine FIFO-priority queues
// with independent workers, shared-reputation budgeting, and
// throttled/blocked pauses with scheduled retry (spec.md §4.4).
package geoqueue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pynara/geogrid/pkg/grid"
	"github.com/rs/zerolog/log"
)

// Task is one grid-point search to hand to an engine worker.
type Task struct {
	ScanID      uint
	ScanPointID uint
	EngineID    string
	Keyword     string
	Point       grid.Point
	City        string
	State       string
	Priority    int
}

// task wraps a Task with an insertion sequence so equal-priority tasks
// stay FIFO (spec.md §8 "Queue FIFO at equal priority").
type task struct {
	Task
	seq uint64
}

// EngineStatuser is the subset of geoengine.Engine the queue needs to
// decide whether to dispatch.
type EngineStatuser interface {
	CanMakeRequest() bool
}

// TaskHandler executes one task; errors are swallowed by the worker loop
// per spec.md §4.4 ("errors swallowed; handler records them on the task").
type TaskHandler func(ctx context.Context, t Task) error

// GroupDailyTotal returns the summed requestsToday across every engine
// in a reputation group (spec.md §4.5's callback).
type GroupDailyTotal func(group string) int

const (
	googleGroup         = "google"
	googleGroupDailyCap = 200
	retryDelay          = 60 * time.Second
)

// EngineLookup resolves an engine id to its status/reputation-group view.
type EngineLookup interface {
	Status(engineID string) (EngineStatuser, group string, ok bool)
}

// Queue is the ScanQueue: one priority queue and one worker per engine.
type Queue struct {
	mu       sync.Mutex
	queues   map[string][]*task
	running  map[string]bool
	retries  map[string]*time.Timer
	seq      uint64
	stopped  bool
	wg       sync.WaitGroup

	engines     EngineLookup
	handler     TaskHandler
	groupTotal  GroupDailyTotal
}

// Config wires the queue's collaborators (spec.md §4.4 "Data").
type Config struct {
	Engines    EngineLookup
	Handler    TaskHandler
	GroupTotal GroupDailyTotal
}

func New(cfg Config) *Queue {
	return &Queue{
		queues:     make(map[string][]*task),
		running:    make(map[string]bool),
		retries:    make(map[string]*time.Timer),
		engines:    cfg.Engines,
		handler:    cfg.Handler,
		groupTotal: cfg.GroupTotal,
	}
}

// EnqueueBatch pushes tasks into their per-engine queues then ensures
// every affected engine is processing. Idempotent: calling it again with
// an empty slice is a no-op.
func (q *Queue) EnqueueBatch(tasks []Task) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	for _, t := range tasks {
		q.seq++
		q.queues[t.EngineID] = append(q.queues[t.EngineID], &task{Task: t, seq: q.seq})
	}
	q.mu.Unlock()

	q.EnsureProcessing()
}

// EnsureProcessing starts a worker for every engine whose queue is
// non-empty and whose worker is idle.
func (q *Queue) EnsureProcessing() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	for engineID, pending := range q.queues {
		if len(pending) == 0 || q.running[engineID] {
			continue
		}
		q.running[engineID] = true
		q.wg.Add(1)
		go q.runWorker(engineID)
	}
}

// Stop clears all queues and retry timers and waits for workers to exit.
// In-flight tasks run to completion (spec.md §4.4 "Cancellation").
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.queues = make(map[string][]*task)
	for id, timer := range q.retries {
		timer.Stop()
		delete(q.retries, id)
	}
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) popNext(engineID string) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.queues[engineID]
	if len(pending) == 0 {
		return Task{}, false
	}

	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		return pending[i].seq < pending[j].seq
	})

	next := pending[0]
	q.queues[engineID] = pending[1:]
	return next.Task, true
}

func (q *Queue) queueLen(engineID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[engineID])
}

func (q *Queue) isStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// runWorker is the per-engine worker loop from spec.md §4.4.
func (q *Queue) runWorker(engineID string) {
	defer q.wg.Done()
	defer func() {
		q.mu.Lock()
		q.running[engineID] = false
		q.mu.Unlock()
	}()

	var pausedReason string

	for {
		if q.isStopped() {
			return
		}
		if q.queueLen(engineID) == 0 {
			return
		}

		status, group, ok := q.engines.Status(engineID)
		if !ok || !status.CanMakeRequest() {
			pausedReason = "engine_unavailable"
			break
		}
		if group == googleGroup && q.groupTotal != nil && q.groupTotal(googleGroup) >= googleGroupDailyCap {
			pausedReason = "daily_group_cap"
			break
		}

		t, ok := q.popNext(engineID)
		if !ok {
			return
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("engine_id", engineID).Msg("Task handler panicked")
				}
			}()
			if err := q.handler(context.Background(), t); err != nil {
				log.Warn().Err(err).Str("engine_id", engineID).Uint("scan_point_id", t.ScanPointID).Msg("Task handler returned error")
			}
		}()
	}

	if pausedReason != "" && q.queueLen(engineID) > 0 && !q.isStopped() {
		q.scheduleRetry(engineID)
	}
}

// scheduleRetry arms a one-shot 60s timer that calls EnsureProcessing,
// per spec.md §4.4.
func (q *Queue) scheduleRetry(engineID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.retries[engineID]; exists {
		return
	}
	q.retries[engineID] = time.AfterFunc(retryDelay, func() {
		q.mu.Lock()
		delete(q.retries, engineID)
		q.mu.Unlock()
		q.EnsureProcessing()
	})
}

// QueueDepth returns the number of pending tasks for an engine.
func (q *Queue) QueueDepth(engineID string) int {
	return q.queueLen(engineID)
}

// TotalDepth returns the number of pending tasks across every engine.
func (q *Queue) TotalDepth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	total := 0
	for _, pending := range q.queues {
		total += len(pending)
	}
	return total
}

// ProcessingEngines returns the ids of engines with an active worker.
func (q *Queue) ProcessingEngines() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var ids []string
	for id, running := range q.running {
		if running {
			ids = append(ids, id)
		}
	}
	return ids
}

// HasRetryTimer reports whether an engine has a pending retry timer —
// the surface spec.md §7 uses to distinguish ThrottleDeferred from a
// true failure.
func (q *Queue) HasRetryTimer(engineID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.retries[engineID]
	return ok
}
