// Package errorsx defines the typed error taxonomy shared across the
// shard-query engine: validation failures, catalog lookups, SQL execution
// failures, recovered shard failures, and the handful of sentinel
// conditions the batch processor and task manager need to classify.
package errorsx

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidationError reports one or more filter/request invariants that were
// violated. Fields accumulates every violation found, rather than just the
// first, so a caller can report them all at once.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("validation error: %s", e.Fields[0])
	}
	return fmt.Sprintf("validation error: %d violations (%v)", len(e.Fields), e.Fields)
}

// NewValidationError builds a ValidationError from one or more messages.
func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// AsValidationError reports whether err is (or wraps) a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var v *ValidationError
	ok := errors.As(err, &v)
	return v, ok
}

// QueryNotFoundError is returned when a catalog code has no known template.
type QueryNotFoundError struct {
	Code string
}

func (e *QueryNotFoundError) Error() string {
	return fmt.Sprintf("query template not found: %s", e.Code)
}

// SQLErrorKind classifies a SQLExecutionError for user-facing reporting.
type SQLErrorKind int

const (
	SQLErrorUnknown SQLErrorKind = iota
	SQLErrorSyntax
	SQLErrorMissingColumn
	SQLErrorMissingTable
	SQLErrorTimeout
	SQLErrorPermission
	SQLErrorConnection
)

func (k SQLErrorKind) String() string {
	switch k {
	case SQLErrorSyntax:
		return "syntax"
	case SQLErrorMissingColumn:
		return "missing_column"
	case SQLErrorMissingTable:
		return "missing_table"
	case SQLErrorTimeout:
		return "timeout"
	case SQLErrorPermission:
		return "permission"
	case SQLErrorConnection:
		return "connection"
	default:
		return "unknown"
	}
}

// SQLExecutionError wraps a driver error with a user-facing category and
// the shard it originated from.
type SQLExecutionError struct {
	Kind   SQLErrorKind
	Shard  string
	Detail error
}

func (e *SQLExecutionError) Error() string {
	return fmt.Sprintf("sql execution error (%s) on shard %s: %v", e.Kind, e.Shard, e.Detail)
}

func (e *SQLExecutionError) Unwrap() error { return e.Detail }

// NewSQLExecutionError wraps a raw driver error as a SQLExecutionError
// for shard, with the Kind the caller passes in; it does no
// classification of its own.
func NewSQLExecutionError(shard string, kind SQLErrorKind, detail error) *SQLExecutionError {
	return &SQLExecutionError{Kind: kind, Shard: shard, Detail: errors.WithStack(detail)}
}

// ShardFailure records that one shard was dropped from the current
// request while the rest of the fan-out proceeded.
type ShardFailure struct {
	Shard string
	Kind  string
	Err   error
}

func (e *ShardFailure) Error() string {
	return fmt.Sprintf("shard %s failed (%s): %v", e.Shard, e.Kind, e.Err)
}

func (e *ShardFailure) Unwrap() error { return e.Err }

// OutOfMemory marks a shard aborted under memory pressure. The batch
// processor's shard-failure handling recognizes it (logs, pauses for
// Config.OOMPause, abandons that shard), but no loop in this module
// constructs it: under memory pressure the batch loops only shrink the
// batch size and pause.
type OutOfMemory struct {
	Shard string
}

func (e *OutOfMemory) Error() string {
	return fmt.Sprintf("shard %s aborted: out of memory", e.Shard)
}

// TaskNotFoundError is returned when a task id is unknown to the task
// manager, e.g. an expired or never-submitted id.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

// TaskNotReadyError is returned by fetch when a task has not yet reached
// COMPLETED, per spec.md §4.6 ("Fails with NOT_READY otherwise").
type TaskNotReadyError struct {
	TaskID string
	Status string
}

func (e *TaskNotReadyError) Error() string {
	return fmt.Sprintf("task %s not ready (status=%s)", e.TaskID, e.Status)
}

// TaskNotCancellableError is returned by cancel when a task is not in
// QUEUED or RUNNING.
type TaskNotCancellableError struct {
	TaskID string
	Status string
}

func (e *TaskNotCancellableError) Error() string {
	return fmt.Sprintf("task %s cannot be cancelled from status %s", e.TaskID, e.Status)
}

// ErrCancelled is the sentinel used to mark a task as cooperatively
// cancelled. It is a terminal task status, not an error surfaced to the
// submitter, per the task manager's contract.
var ErrCancelled = errors.New("cancelled")

// InternalError wraps any uncategorized failure with a trace id so a
// caller can correlate it with server-side logs without leaking
// implementation detail.
type InternalError struct {
	TraceID string
	Err     error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error (trace %s): %v", e.TraceID, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// NewInternalError wraps err with a trace id, preserving the stack the way
// the teacher's errors.WithStack does at package boundaries.
func NewInternalError(traceID string, err error) *InternalError {
	return &InternalError{TraceID: traceID, Err: errors.WithStack(err)}
}
