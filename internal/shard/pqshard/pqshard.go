// Package pqshard implements the Shard Executor (C7) against a
// PostgreSQL-compatible shard reachable only through database/sql, for
// target-style pools that do not carry a native pgx connection (mirrors
// the teacher's TargetPool/TargetQuerier split from the staging side).
package pqshard

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/1auti/dynamic-querys-sub000/internal/errorsx"
	"github.com/1auti/dynamic-querys-sub000/internal/shard"
)

// Executor runs queries against one shard through a database/sql pool
// opened with the lib/pq driver.
type Executor struct {
	name string
	db   *sql.DB
}

var _ shard.Executor = (*Executor)(nil)

// New wraps an already-opened *sql.DB (driver "postgres") as a named
// shard.
func New(name string, db *sql.DB) *Executor {
	return &Executor{name: name, db: db}
}

// Name implements shard.Executor.
func (e *Executor) Name() string { return e.name }

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// ExecuteQuery implements shard.Executor.
func (e *Executor) ExecuteQuery(ctx context.Context, sqlText string, args map[string]any) ([]shard.Row, error) {
	rewritten, values := shard.BindNamed(sqlText, args, dollarPlaceholder)

	rows, err := e.db.QueryContext(ctx, rewritten, values...)
	if err != nil {
		return nil, wrapErr(e.name, err)
	}
	defer rows.Close()

	out, err := scanAll(rows)
	if err != nil {
		return nil, wrapErr(e.name, err)
	}
	return out, nil
}

// ExecuteStreaming implements shard.Executor.
func (e *Executor) ExecuteStreaming(ctx context.Context, sqlText string, args map[string]any, onRow shard.OnRow) error {
	rewritten, values := shard.BindNamed(sqlText, args, dollarPlaceholder)

	rows, err := e.db.QueryContext(ctx, rewritten, values...)
	if err != nil {
		return wrapErr(e.name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return wrapErr(e.name, err)
	}

	for rows.Next() {
		select {
		case <-ctx.Done():
			return errorsx.ErrCancelled
		default:
		}
		row, err := scanRow(rows, cols)
		if err != nil {
			return wrapErr(e.name, err)
		}
		if err := onRow(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return wrapErr(e.name, err)
	}
	return nil
}

// Count implements shard.Executor.
func (e *Executor) Count(ctx context.Context, sqlText string, args map[string]any) (int64, error) {
	rewritten, values := shard.BindNamed(sqlText, args, dollarPlaceholder)
	var n int64
	if err := e.db.QueryRowContext(ctx, rewritten, values...).Scan(&n); err != nil {
		return 0, wrapErr(e.name, err)
	}
	return n, nil
}

func scanAll(rows *sql.Rows) ([]shard.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []shard.Row
	for rows.Next() {
		row, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// scanRow scans the current row into a column-name-keyed map. database/sql
// has no generic "give me the values" path the way pgx does, so each
// column scans into a *any and gets dereferenced back out.
func scanRow(rows *sql.Rows, cols []string) (shard.Row, error) {
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(shard.Row, len(cols))
	for i, name := range cols {
		row[name] = vals[i]
	}
	return row, nil
}

func wrapErr(shardName string, err error) error {
	return &errorsx.ShardFailure{Shard: shardName, Kind: "pq", Err: errors.WithStack(err)}
}
