// Package batch implements the Batch Processor (C8), the cross-shard
// concurrency core: Phase A estimation, Phase B strategy selection,
// Phase C execution (PARALLEL/HYBRID/SEQUENTIAL), the per-shard inner
// loop, memory-adaptive batch sizing, keyset cursor capture, heartbeat
// progress, and row normalization — per spec.md §4.4.
package batch

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/1auti/dynamic-querys-sub000/internal/binder"
	"github.com/1auti/dynamic-querys-sub000/internal/catalog"
	"github.com/1auti/dynamic-querys-sub000/internal/clock"
	"github.com/1auti/dynamic-querys-sub000/internal/errorsx"
	"github.com/1auti/dynamic-querys-sub000/internal/memprobe"
	"github.com/1auti/dynamic-querys-sub000/internal/metrics"
	"github.com/1auti/dynamic-querys-sub000/internal/shard"
)

// Processor runs Request fan-outs against a shard.Set, per the explicit
// collaborator list in spec.md §9 (Catalog, ShardExecutor, Consumer,
// Clock, MemoryProbe are all injected, never reached for globally).
type Processor struct {
	Pool     *Pool
	Clock    clock.Clock
	MemProbe memprobe.Probe
	Config   Config
}

// New builds a Processor. pool is normally process-lifetime, shared
// across every request the process handles.
func New(pool *Pool, clk clock.Clock, probe memprobe.Probe, cfg Config) *Processor {
	return &Processor{Pool: pool, Clock: clk, MemProbe: probe, Config: cfg}
}

// Execute runs one request to completion: Phase A estimation, Phase B
// strategy selection, Phase C execution across all shards. A single
// shard's failure never aborts the request (spec.md §4.4's failure
// policy); Execute only returns an error for a request-level problem
// (an empty shard set, an invalid Request).
func (p *Processor) Execute(ctx context.Context, req *Request) (*Run, error) {
	if len(req.Shards) == 0 {
		return nil, errorsx.NewValidationError("request has no shards to execute against")
	}
	if req.Consumer == nil {
		return nil, errorsx.NewValidationError("request has no consumer")
	}

	run := newRun(p.Clock.Now(), len(req.Shards))
	args := binder.Bind(req.Filter, req.KeyColumnNames)

	est := p.estimatePhase(ctx, req, args)
	strat := selectStrategy(p.Config, est)
	metrics.BatchStrategy.WithLabelValues(req.QueryCode, string(strat)).Inc()
	log.WithFields(log.Fields{
		"queryCode": req.QueryCode, "strategy": strat,
		"total": est.Total, "avgPerShard": est.AvgPerShard, "maxPerShard": est.MaxPerShard,
	}).Debug("phase B strategy selected")

	switch strat {
	case StrategyParallel:
		p.runParallel(ctx, req, run)
	case StrategyHybrid:
		p.runHybrid(ctx, req, run)
	default:
		p.runSequential(ctx, req, run)
	}

	return run, nil
}

func (p *Processor) runParallel(ctx context.Context, req *Request, run *Run) {
	var wg sync.WaitGroup
	for name, ex := range req.Shards {
		wg.Add(1)
		name, ex := name, ex
		p.Pool.Submit(func() {
			defer wg.Done()
			p.runShard(ctx, req, run, name, ex)
		})
	}
	wg.Wait()
}

// runHybrid processes shards in waves of Config.MaxParallelShards,
// pausing between waves under memory pressure, per spec.md §4.4.
func (p *Processor) runHybrid(ctx context.Context, req *Request, run *Run) {
	names := sortedShardNames(req.Shards)
	wave := p.Config.MaxParallelShards
	if wave <= 0 {
		wave = len(names)
	}

	for i := 0; i < len(names); i += wave {
		end := i + wave
		if end > len(names) {
			end = len(names)
		}

		var wg sync.WaitGroup
		for _, name := range names[i:end] {
			wg.Add(1)
			name, ex := name, req.Shards[name]
			p.Pool.Submit(func() {
				defer wg.Done()
				p.runShard(ctx, req, run, name, ex)
			})
		}
		wg.Wait()

		if end < len(names) && p.MemProbe.UsedFraction() > p.Config.HybridYieldPct {
			p.Clock.Sleep(p.Config.HybridYieldDuration)
		}
	}
}

// runSequential processes one shard at a time in a deterministic order,
// relying on adaptiveBatchSize for the memory-adaptive sizing spec.md
// §4.4 calls for on this path.
func (p *Processor) runSequential(ctx context.Context, req *Request, run *Run) {
	for _, name := range sortedShardNames(req.Shards) {
		p.runShard(ctx, req, run, name, req.Shards[name])
	}
}

func sortedShardNames(shards shard.Set) []string {
	names := shards.Names()
	sort.Strings(names)
	return names
}

// runShard dispatches to the correct inner-loop strategy per spec.md
// §4.4's per-shard inner loop, then records completion and checks the
// heartbeat gate.
func (p *Processor) runShard(ctx context.Context, req *Request, run *Run, name string, ex shard.Executor) {
	defer func() {
		atomic.AddInt32(&run.shardsDone, 1)
		p.maybeHeartbeat(run)
	}()

	switch {
	case req.consolidationType() == catalog.ConsolidationAggregation && req.Verdict.Consolidable && !req.ForcePagination:
		p.runSingleShot(ctx, req, run, name, ex)
	case req.consolidationType() == catalog.ConsolidationAggregationStream ||
		req.consolidationType() == catalog.ConsolidationHighVolume ||
		req.consolidationType() == catalog.ConsolidationRaw:
		p.runStreaming(ctx, req, run, name, ex)
	default:
		p.runKeysetPaginated(ctx, req, run, name, ex)
	}
}

func (p *Processor) runSingleShot(ctx context.Context, req *Request, run *Run, name string, ex shard.Executor) {
	args := binder.Bind(req.Filter, req.KeyColumnNames)

	started := p.Clock.Now()
	rows, err := ex.ExecuteQuery(ctx, req.FullSQL, args)
	metrics.ShardQueryDuration.WithLabelValues(name, req.QueryCode).Observe(p.Clock.Now().Sub(started).Seconds())

	if err != nil {
		p.handleShardError(req, name, err)
		return
	}
	if len(rows) == 0 {
		return
	}
	if err := p.deliver(ctx, req, run, name, rows); err != nil {
		p.handleShardError(req, name, err)
	}
}

// runStreaming drives the per-row callback loop for AGGREGATION_STREAMING
// / AGGREGATION_HIGH_VOLUME / RAW. It pages through req.PagedSQL exactly
// like runKeysetPaginated below — respecting Filter.Limit/PageSize and
// whatever keyset strategy the Pagination Strategy Analyzer chose for
// this query — but flushes to the Consumer in StreamingBufferSize-sized
// chunks instead of holding a whole page in memory at once. Every flush
// checks memory pressure, per spec.md §4.4.
func (p *Processor) runStreaming(ctx context.Context, req *Request, run *Run, name string, ex shard.Executor) {
	f := req.Filter
	bufSize := p.Config.StreamingBufferSize
	if bufSize <= 0 {
		bufSize = 1000
	}
	buf := make([]shard.Row, 0, bufSize)

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		err := p.deliver(ctx, req, run, name, buf)
		buf = buf[:0]
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batchSize := p.adaptiveBatchSize(req.QueryCode)
		args := binder.Bind(f, req.KeyColumnNames)
		args["limit"] = batchSize

		var rowsThisPage int
		var lastRow shard.Row

		started := p.Clock.Now()
		streamErr := ex.ExecuteStreaming(ctx, req.PagedSQL, args, func(row shard.Row) error {
			rowsThisPage++
			lastRow = row
			buf = append(buf, row)
			if len(buf) < bufSize {
				return nil
			}
			if err := flush(); err != nil {
				return err
			}
			if p.MemProbe.UsedFraction() > p.Config.HeapUsedHalveAt {
				p.Clock.Sleep(p.Config.OOMPause)
			}
			return nil
		})
		metrics.ShardQueryDuration.WithLabelValues(name, req.QueryCode).Observe(p.Clock.Now().Sub(started).Seconds())

		if streamErr != nil {
			p.handleShardError(req, name, streamErr)
			return
		}

		// Strategies with no key columns (a bounded single-shot read)
		// have no cursor to advance, so one page is the whole answer.
		if len(req.Pagination.KeyColumns) == 0 || rowsThisPage == 0 {
			break
		}

		cur := captureCursor(lastRow, req.Pagination.KeyColumns)
		run.cursors.Set(name, cur)
		f = f.WithCursor(cur.LastID, cur.LastSerial, cur.LastLocation, cur.Composite)

		if rowsThisPage < batchSize {
			break
		}
	}

	if err := flush(); err != nil {
		p.handleShardError(req, name, err)
	}
}

// runKeysetPaginated drives the page-at-a-time loop for non-consolidable
// queries, per spec.md §4.4 step 4.
func (p *Processor) runKeysetPaginated(ctx context.Context, req *Request, run *Run, name string, ex shard.Executor) {
	f := req.Filter

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batchSize := p.adaptiveBatchSize(req.QueryCode)
		args := binder.Bind(f, req.KeyColumnNames)
		args["limit"] = batchSize

		started := p.Clock.Now()
		rows, err := ex.ExecuteQuery(ctx, req.PagedSQL, args)
		metrics.ShardQueryDuration.WithLabelValues(name, req.QueryCode).Observe(p.Clock.Now().Sub(started).Seconds())

		if err != nil {
			p.handleShardError(req, name, err)
			return
		}

		if len(rows) > 0 {
			cur := captureCursor(rows[len(rows)-1], req.Pagination.KeyColumns)
			run.cursors.Set(name, cur)
			f = f.WithCursor(cur.LastID, cur.LastSerial, cur.LastLocation, cur.Composite)

			if err := p.deliver(ctx, req, run, name, rows); err != nil {
				p.handleShardError(req, name, err)
				return
			}
		}

		if len(rows) < batchSize {
			return
		}
	}
}

// adaptiveBatchSize implements spec.md §4.4's memory-adaptive sizing:
// halve the base once used heap exceeds HeapUsedHalveAt (floor
// BatchSizeFloor), then cap the result according to free-memory bands.
func (p *Processor) adaptiveBatchSize(queryCode string) int {
	base := p.Config.BatchSizeDefault

	if p.MemProbe.UsedFraction() > p.Config.HeapUsedHalveAt {
		base /= 2
		if base < p.Config.BatchSizeFloor {
			base = p.Config.BatchSizeFloor
		}
	}

	free := p.MemProbe.FreeFraction()
	capped := p.Config.BatchSizeDefault
	switch {
	case free < p.Config.FreeMemQuarterCapAt:
		capped = p.Config.BatchSizeDefault / 4
	case free < p.Config.FreeMemHalfCapAt:
		capped = p.Config.BatchSizeDefault / 2
	default:
		if capped > 10_000 {
			capped = 10_000
		}
	}
	if base > capped {
		base = capped
	}
	if base < p.Config.BatchSizeFloor {
		base = p.Config.BatchSizeFloor
	}

	metrics.BatchSize.WithLabelValues(queryCode).Observe(float64(base))
	return base
}

// deliver normalizes rows (stripping any prior "province" key and
// setting province to the shard's name) and forwards them to the
// consumer, per spec.md §4.4's row normalization rule.
func (p *Processor) deliver(ctx context.Context, req *Request, run *Run, name string, rows []shard.Row) error {
	if err := ctx.Err(); err != nil {
		return errorsx.ErrCancelled
	}

	normalized := make([]shard.Row, len(rows))
	for i, r := range rows {
		nr := make(shard.Row, len(r)+1)
		for k, v := range r {
			if k == "province" {
				continue
			}
			nr[k] = v
		}
		nr["province"] = name
		normalized[i] = nr
	}

	started := p.Clock.Now()
	err := req.Consumer.OnBatch(ctx, normalized)
	metrics.BatchFlushDuration.WithLabelValues(req.QueryCode).Observe(p.Clock.Now().Sub(started).Seconds())
	if err != nil {
		return errors.Wrap(err, "consumer rejected batch")
	}

	atomic.AddInt64(&run.rowsSoFar, int64(len(rows)))
	metrics.ShardQueryRows.WithLabelValues(name, req.QueryCode).Add(float64(len(rows)))
	p.maybeHeartbeat(run)
	return nil
}

// handleShardError implements spec.md §4.4's failure policy: a shard
// failure is logged and that shard is abandoned, but the request as a
// whole proceeds with the others.
func (p *Processor) handleShardError(req *Request, name string, err error) {
	kind := "error"
	var oom *errorsx.OutOfMemory
	if errors.Is(err, errorsx.ErrCancelled) {
		kind = "cancelled"
		log.WithFields(log.Fields{"shard": name, "queryCode": req.QueryCode}).
			Info("shard abandoned: task was cancelled")
	} else if errors.As(err, &oom) {
		kind = "oom"
		log.WithFields(log.Fields{"shard": name, "queryCode": req.QueryCode}).
			Warn("shard aborted: out of memory, pausing briefly before moving on")
		p.Clock.Sleep(p.Config.OOMPause)
	} else {
		log.WithFields(log.Fields{"shard": name, "queryCode": req.QueryCode, "err": err}).
			Warn("shard aborted, proceeding with remaining shards")
	}
	metrics.ShardQueryErrors.WithLabelValues(name, req.QueryCode, kind).Inc()
}

// maybeHeartbeat emits a Progress snapshot at most once per
// Config.HeartbeatInterval, using Run.progress's CompareAndSet so that
// concurrent callers racing to report the same tick never double-emit.
func (p *Processor) maybeHeartbeat(run *Run) {
	elapsed := p.Clock.Now().Sub(run.startedAt)
	interval := p.Config.HeartbeatInterval
	if interval <= 0 {
		interval = 30_000_000_000 // 30s, in case of a zero-value Config
	}

	cur, version := run.progress.Snapshot()
	if elapsed.Seconds()-cur.ElapsedSec < interval.Seconds() {
		return
	}

	next := Progress{
		ElapsedSec:  elapsed.Seconds(),
		RowsSoFar:   run.RowsSoFar(),
		MemPct:      p.MemProbe.UsedFraction(),
		ShardsDone:  run.ShardsDone(),
		TotalShards: run.totalShards,
	}
	if _, swapped := run.progress.CompareAndSet(version, next); swapped {
		log.WithFields(log.Fields{
			"elapsedSec": next.ElapsedSec, "rowsSoFar": next.RowsSoFar,
			"memPct": next.MemPct, "shardsDone": next.ShardsDone, "totalShards": next.TotalShards,
		}).Debug("heartbeat")
	}
}
