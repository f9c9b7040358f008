// Package mysqlshard implements the Shard Executor (C7) against a MySQL
// shard via database/sql and go-sql-driver/mysql, for deployments where a
// given province's traffic-violation data lives on a MySQL instance
// rather than CockroachDB/PostgreSQL.
package mysqlshard

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/1auti/dynamic-querys-sub000/internal/errorsx"
	"github.com/1auti/dynamic-querys-sub000/internal/shard"
)

// Executor runs queries against one shard through a database/sql pool
// opened with the go-sql-driver/mysql driver.
type Executor struct {
	name string
	db   *sql.DB
}

var _ shard.Executor = (*Executor)(nil)

// New wraps an already-opened *sql.DB (driver "mysql") as a named shard.
func New(name string, db *sql.DB) *Executor {
	return &Executor{name: name, db: db}
}

// Name implements shard.Executor.
func (e *Executor) Name() string { return e.name }

func questionPlaceholder(int) string { return "?" }

// ExecuteQuery implements shard.Executor.
func (e *Executor) ExecuteQuery(ctx context.Context, sqlText string, args map[string]any) ([]shard.Row, error) {
	rewritten, values := shard.BindNamed(sqlText, args, questionPlaceholder)

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
	rewritten, values := shard.BindNamed(sqlText, args, questionPlaceholder)

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
	rewritten, values := shard.BindNamed(sqlText, args, questionPlaceholder)
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
	return &errorsx.ShardFailure{Shard: shardName, Kind: "mysql", Err: errors.WithStack(err)}
}
