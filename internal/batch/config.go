package batch

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/1auti/dynamic-querys-sub000/internal/errorsx"
)

// Config holds every tunable of the Batch Processor's Phase B strategy
// selection, Phase C worker pool, and memory-adaptive batch sizing, per
// spec.md §4.4 ("thresholds are configuration, not constants"). Bind and
// Preflight mirror the teacher's server.Config shape.
type Config struct {
	// Phase B thresholds.
	ParallelAvgPerShardMax      int
	ParallelTotalMax            int
	SequentialMaxPerShardMin    int

	// Phase C.
	MaxParallelShards   int
	HybridYieldPct      float64
	HybridYieldDuration time.Duration
	PoolWidth           int
	PoolQueueCapacity   int

	// Memory-adaptive batch sizing.
	BatchSizeDefault       int
	BatchSizeFloor         int
	HeapUsedHalveAt        float64
	FreeMemQuarterCapAt    float64
	FreeMemHalfCapAt       float64
	StreamingBufferSize    int

	OOMPause          time.Duration
	HeartbeatInterval time.Duration
}

// DefaultConfig returns the defaults spelled out in spec.md §4.4.
func DefaultConfig() Config {
	return Config{
		ParallelAvgPerShardMax:   50_000,
		ParallelTotalMax:         300_000,
		SequentialMaxPerShardMin: 200_000,

		MaxParallelShards:   6,
		HybridYieldPct:      0.70,
		HybridYieldDuration: 50 * time.Millisecond,
		PoolWidth:           6,
		PoolQueueCapacity:   100,

		BatchSizeDefault:    1000,
		BatchSizeFloor:      500,
		HeapUsedHalveAt:     0.85,
		FreeMemQuarterCapAt: 0.20,
		FreeMemHalfCapAt:    0.30,
		StreamingBufferSize: 1000,

		OOMPause:          500 * time.Millisecond,
		HeartbeatInterval: 30 * time.Second,
	}
}

// Bind registers every threshold as a flag, so a deployment can retune
// Phase B/C without a code change.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.IntVar(&c.ParallelAvgPerShardMax, "batch-parallel-avg-per-shard-max", c.ParallelAvgPerShardMax,
		"choose PARALLEL only when the Phase A estimate's avg-per-shard is below this")
	flags.IntVar(&c.ParallelTotalMax, "batch-parallel-total-max", c.ParallelTotalMax,
		"choose PARALLEL only when the Phase A estimate's total is below this")
	flags.IntVar(&c.SequentialMaxPerShardMin, "batch-sequential-max-per-shard-min", c.SequentialMaxPerShardMin,
		"choose SEQUENTIAL when any shard's estimate exceeds this")
	flags.IntVar(&c.MaxParallelShards, "batch-max-parallel-shards", c.MaxParallelShards,
		"wave size for HYBRID execution")
	flags.Float64Var(&c.HybridYieldPct, "batch-hybrid-yield-pct", c.HybridYieldPct,
		"pause between HYBRID waves once used heap fraction exceeds this")
	flags.DurationVar(&c.HybridYieldDuration, "batch-hybrid-yield-duration", c.HybridYieldDuration,
		"how long to pause between HYBRID waves under memory pressure")
	flags.IntVar(&c.PoolWidth, "batch-pool-width", c.PoolWidth,
		"number of worker goroutines in the shard execution pool")
	flags.IntVar(&c.PoolQueueCapacity, "batch-pool-queue-capacity", c.PoolQueueCapacity,
		"buffered queue depth before the pool runs a task on the caller's own goroutine")
	flags.IntVar(&c.BatchSizeDefault, "batch-size-default", c.BatchSizeDefault,
		"default keyset page size before memory-adaptive adjustment")
	flags.IntVar(&c.BatchSizeFloor, "batch-size-floor", c.BatchSizeFloor,
		"minimum keyset page size the adaptive sizing will shrink to")
	flags.Float64Var(&c.HeapUsedHalveAt, "batch-heap-used-halve-at", c.HeapUsedHalveAt,
		"halve the batch size once used/max heap exceeds this fraction")
	flags.Float64Var(&c.FreeMemQuarterCapAt, "batch-free-mem-quarter-cap-at", c.FreeMemQuarterCapAt,
		"cap the batch size at base/4 once free memory falls below this fraction")
	flags.Float64Var(&c.FreeMemHalfCapAt, "batch-free-mem-half-cap-at", c.FreeMemHalfCapAt,
		"cap the batch size at base/2 once free memory falls below this fraction")
	flags.IntVar(&c.StreamingBufferSize, "batch-streaming-buffer-size", c.StreamingBufferSize,
		"row buffer size flushed to the consumer during a streaming shard loop")
	flags.DurationVar(&c.OOMPause, "batch-oom-pause", c.OOMPause,
		"how long to pause after a shard reports out-of-memory before abandoning it")
	flags.DurationVar(&c.HeartbeatInterval, "batch-heartbeat-interval", c.HeartbeatInterval,
		"minimum spacing between progress heartbeat emissions")
}

// Preflight validates the configuration, aggregating every violation
// rather than failing on the first.
func (c *Config) Preflight() error {
	var violations []string

	if c.MaxParallelShards <= 0 {
		violations = append(violations, "batch-max-parallel-shards must be > 0")
	}
	if c.PoolWidth <= 0 {
		violations = append(violations, "batch-pool-width must be > 0")
	}
	if c.PoolQueueCapacity < 0 {
		violations = append(violations, "batch-pool-queue-capacity must be >= 0")
	}
	if c.BatchSizeFloor <= 0 || c.BatchSizeFloor > c.BatchSizeDefault {
		violations = append(violations, "batch-size-floor must be in (0, batch-size-default]")
	}
	if c.StreamingBufferSize <= 0 {
		violations = append(violations, "batch-streaming-buffer-size must be > 0")
	}
	if c.HeartbeatInterval <= 0 {
		violations = append(violations, "batch-heartbeat-interval must be > 0")
	}
	if c.HeapUsedHalveAt <= 0 || c.HeapUsedHalveAt > 1 {
		violations = append(violations, "batch-heap-used-halve-at must be in (0, 1]")
	}
	if c.FreeMemQuarterCapAt <= 0 || c.FreeMemQuarterCapAt >= c.FreeMemHalfCapAt {
		violations = append(violations, "batch-free-mem-quarter-cap-at must be positive and less than batch-free-mem-half-cap-at")
	}

	if len(violations) > 0 {
		return errorsx.NewValidationError(violations...)
	}
	return nil
}
