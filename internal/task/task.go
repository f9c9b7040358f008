// Package task implements the Async Task Manager (C9): wraps a Batch
// Processor run as a cancellable task with progress snapshots and a
// retrievable result artifact, per spec.md §4.6.
package task

import (
	"time"

	"github.com/1auti/dynamic-querys-sub000/internal/batch"
)

// Status is one of a Task's monotonic lifecycle states, per spec.md §3.
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Task is the Task value from spec.md §3: { id, type, status, createdAt,
// startedAt, finishedAt?, progress, errorMsg?, resultHandle? }.
type Task struct {
	ID         string
	Type       string
	Status     Status
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	Progress   batch.Progress
	ErrorMsg   string

	// ResultReady mirrors resultHandle's presence: true once a result
	// artifact has been stored for this task (status COMPLETED).
	ResultReady bool
}
