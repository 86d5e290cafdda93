// Package queue implements the per-group sequential task queue: unbounded
// FIFO queues keyed by group ID, each drained by at most one transient worker
// goroutine so that tasks within a group execute strictly in submission order
// while distinct groups process concurrently.
package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// Task is one unit of asynchronous work: a kind selecting the handler and an
// opaque payload. Tasks are immutable once submitted and carry no identity
// beyond their payload's embedded ids.
type Task struct {
	Kind    string
	Payload json.RawMessage
}

// Dispatcher routes a task to the handler registered for its kind.
// Implemented by task.Registry.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind string, payload json.RawMessage) error
}

// Manager owns the group queues and their workers. It guarantees that at most
// one worker drains a given group's queue at any instant, and that a task
// submitted while a worker is winding down is never stranded.
type Manager struct {
	// mu guards queues and running. Every empty-check and running-flag change
	// happens under it, which is what makes the worker-exit race safe.
	mu      sync.Mutex
	queues  map[string][]Task
	running map[string]bool

	dispatcher Dispatcher
	logger     *slog.Logger

	// ctx is cancelled by Stop to wind down in-flight workers cooperatively.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a queue manager that dispatches through the given
// dispatcher. Call Stop to shut down.
func NewManager(dispatcher Dispatcher, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		queues:     make(map[string][]Task),
		running:    make(map[string]bool),
		dispatcher: dispatcher,
		logger:     logger.With("component", "queue_manager"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Submit appends a task to the group's queue, creating the queue on first
// use, and starts a worker for the group if none is running. It returns the
// queue depth immediately after insertion. Submission always succeeds; the
// queue is unbounded and the depth is a back-pressure hint only.
func (m *Manager) Submit(groupID string, t Task) int {
	m.mu.Lock()
	m.queues[groupID] = append(m.queues[groupID], t)
	depth := len(m.queues[groupID])

	startWorker := false
	if !m.running[groupID] && m.ctx.Err() == nil {
		m.running[groupID] = true
		startWorker = true
		m.wg.Add(1)
	}
	m.mu.Unlock()

	if startWorker {
		go m.worker(groupID)
	}

	m.logger.Debug("task submitted",
		"group_id", groupID,
		"task_kind", t.Kind,
		"queue_depth", depth,
		"worker_started", startWorker)

	return depth
}

// QueueDepth returns the number of pending tasks for a group.
// Unknown groups report zero.
func (m *Manager) QueueDepth(groupID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[groupID])
}

// IsWorkerRunning reports whether a worker is currently draining the group's
// queue.
func (m *Manager) IsWorkerRunning(groupID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[groupID]
}

// Stop cancels all in-flight workers and waits for them to exit. Pending
// tasks remain queued but are not processed; partial writes of a cancelled
// task are not rolled back.
func (m *Manager) Stop() {
	// Cancelling under mu orders Stop against every Submit: a concurrent
	// Submit either completed its wg.Add before the cancel or observes the
	// cancelled context and adds nothing, so wg.Wait never races an Add.
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("queue manager stopped")
}

// worker drains one group's queue in FIFO order and exits when the queue is
// observed empty. The empty-check and the running-flag clear happen in the
// same critical section as Submit's enqueue-and-check, so a task submitted
// while the worker winds down either is picked up by this worker or causes
// Submit to start a fresh one.
func (m *Manager) worker(groupID string) {
	defer m.wg.Done()

	log := m.logger.With("group_id", groupID)
	log.Debug("worker started")

	for {
		m.mu.Lock()
		q := m.queues[groupID]
		if len(q) == 0 || m.ctx.Err() != nil {
			m.running[groupID] = false
			remaining := len(q)
			m.mu.Unlock()
			log.Debug("worker exiting", "remaining", remaining)
			return
		}
		t := q[0]
		m.queues[groupID] = q[1:]
		m.mu.Unlock()

		// A failing task must never abort the worker or block the tasks
		// queued behind it: log and move on.
		if err := m.dispatcher.Dispatch(m.ctx, t.Kind, t.Payload); err != nil {
			log.Error("task processing failed",
				"task_kind", t.Kind,
				"error", err)
		}
	}
}
