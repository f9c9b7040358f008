// Package shard defines the Shard Executor (C7) contract and the Row
// shape every driver returns. Concrete drivers live in the pgxshard,
// pqshard, and mysqlshard subpackages, mirroring the teacher's split
// between a pgx-native staging pool and database/sql-based target
// pools for heterogeneous backends.
package shard

import (
	"context"
	"regexp"
)

var namedParamRE = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

// BindNamed rewrites sql's ":name" placeholders into the driver's
// positional form (built by placeholder(n), 1-indexed) and returns the
// matching argument slice in call order, duplicating a value wherever
// the same name appears more than once. Every driver package uses this
// to adapt the Rewriter's named-parameter SQL to its own driver's
// positional binding convention.
func BindNamed(sqlText string, args map[string]any, placeholder func(n int) string) (string, []any) {
	var values []any
	n := 0
	rewritten := namedParamRE.ReplaceAllStringFunc(sqlText, func(match string) string {
		name := match[1:]
		n++
		values = append(values, args[name])
		return placeholder(n)
	})
	return rewritten, values
}

// Row is a single result row, keyed by column name. The Batch
// Processor normalizes this further (stripping/overwriting "province")
// before handing it to the Consumer.
type Row map[string]any

// OnRow is invoked once per row during a streaming query.
type OnRow func(Row) error

// Executor is the Shard Executor contract (C7), per spec.md §6. Each
// shard in a request owns one Executor bound to that shard's
// connection pool.
type Executor interface {
	// Name identifies the shard for logging, metrics, and cursor-table
	// keys.
	Name() string

	// ExecuteQuery runs sql with args and materializes every row,
	// bounded by the query's own LIMIT. Used for AGGREGATION's
	// single-shot path and for each page of the keyset-pagination loop.
	ExecuteQuery(ctx context.Context, sql string, args map[string]any) ([]Row, error)

	// ExecuteStreaming runs sql with args and delivers rows one at a
	// time via onRow, for AGGREGATION_STREAMING/HIGH_VOLUME/RAW.
	ExecuteStreaming(ctx context.Context, sql string, args map[string]any, onRow OnRow) error

	// Count runs a COUNT(*) variant of sql (ORDER BY stripped by the
	// caller) for the Batch Processor's Phase A estimation.
	Count(ctx context.Context, sql string, args map[string]any) (int64, error)
}

// Set is the full collection of shard executors available to a
// request, keyed by shard name (matching Filter.Provinces entries when
// UseAllShards is false).
type Set map[string]Executor

// Names returns the shard names in a Set, used when the Batch
// Processor needs a stable iteration order for wave-based HYBRID
// execution.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	return names
}
