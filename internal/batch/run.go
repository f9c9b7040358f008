package batch

import (
	"sync/atomic"
	"time"

	"github.com/1auti/dynamic-querys-sub000/internal/notifyvar"
)

// Run is the Batch Context (spec.md §3): the mutable state owned
// exclusively by one Batch Processor invocation — partial cursors,
// counters, and the progress broadcast var. Never shared or reused
// across requests.
type Run struct {
	cursors     *CursorTable
	progress    *notifyvar.Var[Progress]
	totalShards int
	startedAt   time.Time

	rowsSoFar  int64 // atomic
	shardsDone int32 // atomic
}

func newRun(clockNow time.Time, totalShards int) *Run {
	return &Run{
		cursors:     NewCursorTable(),
		progress:    notifyvar.New[Progress](),
		totalShards: totalShards,
		startedAt:   clockNow,
	}
}

// Progress returns the latest heartbeat snapshot and its generation
// channel, for a Task Manager's status() to consult without blocking on
// the run's own goroutines.
func (r *Run) Progress() (Progress, <-chan struct{}) {
	return r.progress.Get()
}

// RowsSoFar returns the number of rows delivered to the consumer so far.
func (r *Run) RowsSoFar() int64 {
	return atomic.LoadInt64(&r.rowsSoFar)
}

// ShardsDone returns how many shards have finished (successfully or
// aborted).
func (r *Run) ShardsDone() int {
	return int(atomic.LoadInt32(&r.shardsDone))
}
