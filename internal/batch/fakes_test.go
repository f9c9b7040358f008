package batch

import (
	"context"
	"sync"
	"time"

	"github.com/1auti/dynamic-querys-sub000/internal/clock"
	"github.com/1auti/dynamic-querys-sub000/internal/shard"
)

// fakeClock is a deterministic clock.Clock for tests; Sleep advances the
// simulated time instead of actually blocking.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now.IsZero() {
		return time.Unix(0, 0)
	}
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now.IsZero() {
		c.now = time.Unix(0, 0)
	}
	c.now = c.now.Add(d)
}

func (c *fakeClock) NewTimer(time.Duration) clock.Timer {
	panic("fakeClock.NewTimer is not exercised by the batch package tests")
}

// fakeMemProbe reports a fixed used fraction for deterministic
// memory-adaptive batch sizing tests.
type fakeMemProbe struct {
	used float64
}

func (p fakeMemProbe) UsedFraction() float64 { return p.used }
func (p fakeMemProbe) FreeFraction() float64 { return 1 - p.used }

// fakeExecutor is an in-memory shard.Executor. ExecuteQuery pops one
// page per call from pages, returning (nil, nil) once exhausted unless
// err is set.
type fakeExecutor struct {
	name string

	mu         sync.Mutex
	pages      [][]shard.Row
	queryCalls int
	err        error

	streamRows  []shard.Row
	streamPages [][]shard.Row
	streamCalls int
	streamErr   error

	countVal int64
	countErr error
}

var _ shard.Executor = (*fakeExecutor)(nil)

func (f *fakeExecutor) Name() string { return f.name }

func (f *fakeExecutor) ExecuteQuery(_ context.Context, _ string, _ map[string]any) ([]shard.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.queryCalls >= len(f.pages) {
		f.queryCalls++
		return nil, nil
	}
	page := f.pages[f.queryCalls]
	f.queryCalls++
	return page, nil
}

// ExecuteStreaming replays streamRows on every call, unless streamPages
// is set, in which case it replays one page per call (like pages does
// for ExecuteQuery) so tests can exercise runStreaming's page-at-a-time
// loop over req.PagedSQL.
func (f *fakeExecutor) ExecuteStreaming(_ context.Context, _ string, _ map[string]any, onRow shard.OnRow) error {
	if f.streamErr != nil {
		return f.streamErr
	}
	f.mu.Lock()
	rows := f.streamRows
	if f.streamPages != nil {
		if f.streamCalls < len(f.streamPages) {
			rows = f.streamPages[f.streamCalls]
		} else {
			rows = nil
		}
		f.streamCalls++
	}
	f.mu.Unlock()
	for _, row := range rows {
		if err := onRow(row); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeExecutor) Count(context.Context, string, map[string]any) (int64, error) {
	return f.countVal, f.countErr
}

// fakeConsumer records every batch delivered to it.
type fakeConsumer struct {
	mu      sync.Mutex
	batches [][]shard.Row
	err     error
}

func (c *fakeConsumer) OnBatch(_ context.Context, rows []shard.Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	cp := make([]shard.Row, len(rows))
	copy(cp, rows)
	c.batches = append(c.batches, cp)
	return nil
}

func (c *fakeConsumer) totalRows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.batches {
		n += len(b)
	}
	return n
}
