// Package pgxshard implements the Shard Executor (C7) against a
// CockroachDB/PostgreSQL shard via pgx/v5 and pgxpool, the teacher's
// primary driver stack (internal/types.StagingQuerier,
// internal/util/stdpool.Open*AsSource).
package pgxshard

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/1auti/dynamic-querys-sub000/internal/errorsx"
	"github.com/1auti/dynamic-querys-sub000/internal/shard"
)

// Executor runs queries against one CockroachDB/PostgreSQL shard
// through a pooled connection.
type Executor struct {
	name string
	pool *pgxpool.Pool
}

var _ shard.Executor = (*Executor)(nil)

// New wraps an already-opened pgxpool.Pool as a named shard.
func New(name string, pool *pgxpool.Pool) *Executor {
	return &Executor{name: name, pool: pool}
}

// Name implements shard.Executor.
func (e *Executor) Name() string { return e.name }

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// ExecuteQuery implements shard.Executor.
func (e *Executor) ExecuteQuery(ctx context.Context, sqlText string, args map[string]any) ([]shard.Row, error) {
	rewritten, values := shard.BindNamed(sqlText, args, dollarPlaceholder)

	rows, err := e.pool.Query(ctx, rewritten, values...)
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

	rows, err := e.pool.Query(ctx, rewritten, values...)
	if err != nil {
		return wrapErr(e.name, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	for rows.Next() {
		select {
		case <-ctx.Done():
			return errorsx.ErrCancelled
		default:
		}
		vals, err := rows.Values()
		if err != nil {
			return wrapErr(e.name, err)
		}
		if err := onRow(rowFromValues(fields, vals)); err != nil {
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
	if err := e.pool.QueryRow(ctx, rewritten, values...).Scan(&n); err != nil {
		return 0, wrapErr(e.name, err)
	}
	return n, nil
}

func scanAll(rows pgx.Rows) ([]shard.Row, error) {
	fields := rows.FieldDescriptions()
	var out []shard.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out = append(out, rowFromValues(fields, vals))
	}
	return out, rows.Err()
}

func rowFromValues(fields []pgconn.FieldDescription, vals []any) shard.Row {
	row := make(shard.Row, len(fields))
	for i, f := range fields {
		if i < len(vals) {
			row[string(f.Name)] = vals[i]
		}
	}
	return row
}

func wrapErr(shardName string, err error) error {
	return &errorsx.ShardFailure{Shard: shardName, Kind: "pgx", Err: errors.WithStack(err)}
}
