// Package clock abstracts time so that the batch processor's heartbeat
// and backup-timer logic can be driven deterministically in tests,
// mirroring the teacher's preference (see source/logical readInto) for a
// time.Timer-based polling idiom over bare goroutine sleeps.
package clock

import "time"

// A Clock is the minimal time capability the engine depends on.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
	Sleep(d time.Duration)
}

// A Timer mirrors the subset of *time.Timer the engine uses.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// Real is the production Clock backed by the standard library.
type Real struct{}

var _ Clock = Real{}

func (Real) Now() time.Time { return time.Now() }

func (Real) NewTimer(d time.Duration) Timer {
	return &realTimer{t: time.NewTimer(d)}
}

func (Real) Sleep(d time.Duration) { time.Sleep(d) }

type realTimer struct {
	t *time.Timer
}

func (r *realTimer) C() <-chan time.Time   { return r.t.C }
func (r *realTimer) Stop() bool            { return r.t.Stop() }
func (r *realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }
