package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/1auti/dynamic-querys-sub000/internal/batch"
	"github.com/1auti/dynamic-querys-sub000/internal/clock"
	"github.com/1auti/dynamic-querys-sub000/internal/consolidate"
	"github.com/1auti/dynamic-querys-sub000/internal/errorsx"
	"github.com/1auti/dynamic-querys-sub000/internal/filter"
	"github.com/1auti/dynamic-querys-sub000/internal/metrics"
)

// Builder resolves a task type and filter into a ready-to-run
// batch.Request and the RowCollector that will receive its consolidated
// rows. It is the seam between this package and the Catalog/Analyzer/
// Rewriter/Binder pipeline, which internal/wiring assembles; task itself
// only knows how to drive, cancel and store the result of whatever
// Request the Builder hands back.
type Builder interface {
	Build(ctx context.Context, taskType string, f *filter.Filter) (*batch.Request, *RowCollector, error)
}

// taskEntry is the Manager's guarded per-task state, mirroring the
// teacher's Resolvers.mu pattern (internal/catalog.InMemory follows the
// same shape): an unexported mu struct bundling the lock with the
// state it protects.
type taskEntry struct {
	mu struct {
		sync.Mutex
		task   Task
		cancel context.CancelFunc
		run    *batch.Run
	}
	filter *filter.Filter
}

// Manager implements the Async Task Manager (C9). Every Submit spawns
// its own goroutine immediately (there is no queue-depth limit ahead of
// the Batch Processor's own bounded worker pool), so QUEUED is an
// instantaneous state a task may pass through before RUNNING rather
// than something that waits on a scheduling decision here.
type Manager struct {
	Processor *batch.Processor
	Builder   Builder
	Store     ResultStore
	Clock     clock.Clock

	mu struct {
		sync.Mutex
		byID map[string]*taskEntry
	}
}

// New builds a Manager. proc, builder and store are normally
// process-lifetime, shared across every submitted task.
func New(proc *batch.Processor, builder Builder, store ResultStore, clk clock.Clock) *Manager {
	m := &Manager{Processor: proc, Builder: builder, Store: store, Clock: clk}
	m.mu.byID = make(map[string]*taskEntry)
	return m
}

// Submit creates a Task in QUEUED, starts its execution in a new
// goroutine detached from ctx's own lifetime (a task must outlive the
// request that submitted it), and returns its id immediately, per
// spec.md §4.6.
func (m *Manager) Submit(ctx context.Context, taskType string, f *filter.Filter) (string, error) {
	id := uuid.NewString()
	now := m.Clock.Now()

	entry := &taskEntry{filter: f}
	entry.mu.task = Task{ID: id, Type: taskType, Status: StatusQueued, CreatedAt: now}

	runCtx, cancel := context.WithCancel(detach(ctx))
	entry.mu.cancel = cancel

	m.mu.Lock()
	m.mu.byID[id] = entry
	m.mu.Unlock()

	metrics.TaskStatusTransitions.WithLabelValues(taskType, string(StatusQueued)).Inc()
	go m.run(runCtx, entry)

	return id, nil
}

// detach strips ctx's cancellation (a submitting HTTP request's context
// is typically cancelled the moment the handler returns) while keeping
// any values it carries, e.g. a request id for logging.
func detach(ctx context.Context) context.Context {
	return detachedContext{ctx}
}

type detachedContext struct{ context.Context }

func (detachedContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (detachedContext) Done() <-chan struct{}       { return nil }
func (detachedContext) Err() error                  { return nil }

func (m *Manager) run(ctx context.Context, entry *taskEntry) {
	entry.mu.Lock()
	already := ctx.Err() != nil
	taskID, taskType := entry.mu.task.ID, entry.mu.task.Type
	entry.mu.Unlock()

	if already {
		m.transition(entry, StatusRunning, nil)
		m.transition(entry, StatusCancelled, nil)
		return
	}
	m.transition(entry, StatusRunning, nil)

	req, collector, err := m.Builder.Build(ctx, taskType, entry.filter)
	if err != nil {
		m.transition(entry, StatusFailed, err)
		return
	}

	run, err := m.Processor.Execute(ctx, req)
	if err != nil {
		m.transition(entry, StatusFailed, err)
		return
	}
	entry.mu.Lock()
	entry.mu.run = run
	entry.mu.Unlock()

	if ctx.Err() != nil {
		m.transition(entry, StatusCancelled, nil)
		return
	}

	if agg, ok := req.Consumer.(*consolidate.Aggregator); ok {
		if err := agg.Finalize(ctx); err != nil {
			m.transition(entry, StatusFailed, err)
			return
		}
	}

	data, err := collector.Bytes()
	if err != nil {
		m.transition(entry, StatusFailed, err)
		return
	}
	if err := m.Store.Put(taskID, data); err != nil {
		m.transition(entry, StatusFailed, err)
		return
	}

	entry.mu.Lock()
	entry.mu.task.ResultReady = true
	entry.mu.Unlock()
	m.transition(entry, StatusCompleted, nil)
}

// transition records a monotonic status change, stamping
// started/finished timestamps and emitting the lifecycle metrics.
func (m *Manager) transition(entry *taskEntry, status Status, err error) {
	now := m.Clock.Now()

	entry.mu.Lock()
	taskType := entry.mu.task.Type
	entry.mu.task.Status = status
	switch status {
	case StatusRunning:
		entry.mu.task.StartedAt = &now
	case StatusCompleted, StatusFailed, StatusCancelled:
		entry.mu.task.FinishedAt = &now
		if err != nil {
			entry.mu.task.ErrorMsg = err.Error()
		}
	}
	started := entry.mu.task.StartedAt
	entry.mu.Unlock()

	metrics.TaskStatusTransitions.WithLabelValues(taskType, string(status)).Inc()
	if started != nil && (status == StatusCompleted || status == StatusFailed || status == StatusCancelled) {
		metrics.TaskDuration.WithLabelValues(taskType, string(status)).Observe(now.Sub(*started).Seconds())
	}
	if err != nil {
		log.WithFields(log.Fields{"taskType": taskType, "status": status, "err": err}).Warn("task ended")
	}
}

func (m *Manager) lookup(id string) (*taskEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.mu.byID[id]
	return e, ok
}

// Status returns the task's current status and latest progress
// snapshot, per spec.md §4.6's status(taskId) operation.
func (m *Manager) Status(id string) (Task, error) {
	entry, ok := m.lookup(id)
	if !ok {
		return Task{}, &errorsx.TaskNotFoundError{TaskID: id}
	}

	entry.mu.Lock()
	snap := entry.mu.task
	run := entry.mu.run
	entry.mu.Unlock()

	if run != nil {
		snap.Progress, _ = run.Progress()
	}
	return snap, nil
}

// Cancel requests cooperative cancellation, valid only while the task is
// QUEUED or RUNNING, per spec.md §4.6. A QUEUED task is first advanced
// to RUNNING, then immediately to CANCELLED, once its goroutine observes
// the request: spec.md §3 states only RUNNING → CANCELLED is externally
// triggerable, so a cancel issued before the task's goroutine has even
// started still passes through RUNNING on its way to CANCELLED rather
// than skipping straight from QUEUED.
func (m *Manager) Cancel(id string) error {
	entry, ok := m.lookup(id)
	if !ok {
		return &errorsx.TaskNotFoundError{TaskID: id}
	}

	entry.mu.Lock()
	status := entry.mu.task.Status
	cancel := entry.mu.cancel
	entry.mu.Unlock()

	if status != StatusQueued && status != StatusRunning {
		return &errorsx.TaskNotCancellableError{TaskID: id, Status: string(status)}
	}
	cancel()
	return nil
}

// Fetch returns the stored result artifact, valid only once the task has
// reached COMPLETED, per spec.md §4.6 ("Fails with NOT_READY otherwise").
func (m *Manager) Fetch(id string) ([]byte, error) {
	entry, ok := m.lookup(id)
	if !ok {
		return nil, &errorsx.TaskNotFoundError{TaskID: id}
	}

	entry.mu.Lock()
	status := entry.mu.task.Status
	entry.mu.Unlock()

	if status != StatusCompleted {
		return nil, &errorsx.TaskNotReadyError{TaskID: id, Status: string(status)}
	}

	data, ok, err := m.Store.Get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &errorsx.TaskNotReadyError{TaskID: id, Status: string(status)}
	}
	return data, nil
}

// Cleanup removes terminal tasks whose FinishedAt is older than age,
// per spec.md §4.6, and reclaims their stored bytes when Store supports
// it. It returns the number of tasks removed.
func (m *Manager) Cleanup(age time.Duration) int {
	cutoff := m.Clock.Now().Add(-age)
	deleter, canDelete := m.Store.(Deleter)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, entry := range m.mu.byID {
		entry.mu.Lock()
		terminal := isTerminal(entry.mu.task.Status)
		finishedBefore := entry.mu.task.FinishedAt != nil && entry.mu.task.FinishedAt.Before(cutoff)
		entry.mu.Unlock()

		if terminal && finishedBefore {
			delete(m.mu.byID, id)
			removed++
			if canDelete {
				deleter.Delete(id)
			}
		}
	}
	return removed
}

func isTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}
