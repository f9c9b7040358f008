// Package metrics declares the prometheus instrumentation shared across
// the engine, grouped the way the teacher's internal/staging/stage
// package groups its counters and histograms.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LatencyBuckets is the shared histogram bucket set for all duration
// metrics in this module, mirroring the teacher's per-package
// metrics.LatencyBuckets convention.
var LatencyBuckets = []float64{
	.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60,
}

// ShardLabels is attached to every per-shard counter/histogram.
var ShardLabels = []string{"shard", "query_code"}

var (
	// ShardQueryRows counts rows delivered to the consumer per shard.
	ShardQueryRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shard_query_rows_total",
		Help: "the number of rows delivered to the consumer for a shard",
	}, ShardLabels)

	// ShardQueryDuration tracks how long a single shard's execution took.
	ShardQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shard_query_duration_seconds",
		Help:    "the length of time it took to execute a query against one shard",
		Buckets: LatencyBuckets,
	}, ShardLabels)

	// ShardQueryErrors counts recovered shard failures.
	ShardQueryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shard_query_errors_total",
		Help: "the number of times a shard was dropped from a request due to a recovered failure",
	}, []string{"shard", "query_code", "kind"})

	// BatchFlushDuration tracks how long a single consumer flush took.
	BatchFlushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shard_batch_flush_duration_seconds",
		Help:    "the length of time it took to flush a batch of rows to the consumer",
		Buckets: LatencyBuckets,
	}, []string{"query_code"})

	// BatchSize tracks the adaptive batch size chosen for a fetch.
	BatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shard_batch_size_rows",
		Help:    "the batch size chosen for a page fetch, after memory-adaptive adjustment",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"query_code"})

	// BatchEstimateTotal records the Phase-A cross-shard row estimate.
	BatchEstimateTotal = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shard_batch_estimate_total_rows",
		Help:    "the cross-shard row count estimate computed during Phase A",
		Buckets: []float64{1000, 10000, 50000, 100000, 300000, 1000000},
	}, []string{"query_code"})

	// BatchStrategy counts which processing mode was selected.
	BatchStrategy = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shard_batch_strategy_total",
		Help: "the number of requests processed under each strategy",
	}, []string{"query_code", "strategy"})

	// TaskStatusTransitions counts task lifecycle transitions.
	TaskStatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shard_task_status_transitions_total",
		Help: "the number of times a task transitioned to a given status",
	}, []string{"type", "status"})

	// TaskDuration tracks end-to-end task runtime.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shard_task_duration_seconds",
		Help:    "the length of time a task ran from RUNNING to a terminal status",
		Buckets: LatencyBuckets,
	}, []string{"type", "status"})
)
