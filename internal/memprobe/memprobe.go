// Package memprobe abstracts heap-pressure observation behind a small
// interface, per the design note in SPEC_FULL.md §4.4: the batch
// processor never calls runtime.GC or reads runtime.MemStats directly, it
// only ever consults a MemoryProbe.
package memprobe

import (
	"runtime"
	"sync"
	"time"
)

// A Probe reports how much of the process's available heap is in use, as
// a fraction in [0, 1]. Implementations in environments without a managed
// heap may always return 0.
type Probe interface {
	// UsedFraction returns used/max heap, e.g. 0.85 meaning 85% of the
	// soft memory limit is occupied.
	UsedFraction() float64
	// FreeFraction returns 1 - UsedFraction, provided separately because
	// callers compare against different cutoffs (< 20%, < 30%) and a
	// single division point keeps both readable.
	FreeFraction() float64
}

// RuntimeProbe reads runtime.MemStats, caching the result for a short
// interval so that the adaptive batch-size check in the inner shard loop
// (invoked before every fetch) does not force a fresh stop-the-world
// stats collection on every row page.
type RuntimeProbe struct {
	// Limit is the soft heap ceiling used to compute UsedFraction. If
	// zero, NextGC is used as a stand-in ceiling (the same heuristic
	// runtime/debug.SetMemoryLimit users lean on).
	Limit uint64
	// CacheFor bounds how long a sampled reading is reused. Defaults to
	// 250ms when zero.
	CacheFor time.Duration

	mu       sync.Mutex
	sampled  time.Time
	used     float64
}

var _ Probe = (*RuntimeProbe)(nil)

func (p *RuntimeProbe) cacheWindow() time.Duration {
	if p.CacheFor > 0 {
		return p.CacheFor
	}
	return 250 * time.Millisecond
}

func (p *RuntimeProbe) sample() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if !p.sampled.IsZero() && now.Sub(p.sampled) < p.cacheWindow() {
		return p.used
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	limit := p.Limit
	if limit == 0 {
		limit = stats.NextGC
	}
	if limit == 0 {
		p.used = 0
	} else {
		p.used = float64(stats.HeapAlloc) / float64(limit)
		if p.used > 1 {
			p.used = 1
		}
	}
	p.sampled = now
	return p.used
}

// UsedFraction implements Probe.
func (p *RuntimeProbe) UsedFraction() float64 { return p.sample() }

// FreeFraction implements Probe.
func (p *RuntimeProbe) FreeFraction() float64 { return 1 - p.sample() }

// Zero is a Probe that always reports no memory pressure, for
// environments (or tests) where heap-adaptive batching is undesired.
type Zero struct{}

var _ Probe = Zero{}

func (Zero) UsedFraction() float64 { return 0 }
func (Zero) FreeFraction() float64 { return 1 }
