package wiring

import (
	"context"
	"database/sql"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/1auti/dynamic-querys-sub000/internal/shard"
	"github.com/1auti/dynamic-querys-sub000/internal/shard/mysqlshard"
	"github.com/1auti/dynamic-querys-sub000/internal/shard/pgxshard"
	"github.com/1auti/dynamic-querys-sub000/internal/shard/pqshard"
)

// ProvideShards opens one shard.Executor per entry in cfg.Shards,
// dispatching on the connection string's scheme, and returns the full
// set along with a cleanup closing every pool it opened.
func ProvideShards(ctx context.Context, cfg *Config) (shard.Set, func(), error) {
	set := make(shard.Set, len(cfg.Shards))
	var closers []func()

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	for _, sc := range cfg.Shards {
		ex, closer, err := openShard(ctx, sc)
		if err != nil {
			cleanup()
			return nil, nil, errors.Wrapf(err, "shard %s", sc.Name)
		}
		set[sc.Name] = ex
		closers = append(closers, closer)
	}

	return set, cleanup, nil
}

func openShard(ctx context.Context, sc ShardConfig) (shard.Executor, func(), error) {
	u, err := url.Parse(sc.Conn)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "parsing connection string for shard %s", sc.Name)
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "cockroach", "crdb":
		pool, err := pgxpool.New(ctx, sc.Conn)
		if err != nil {
			return nil, nil, err
		}
		return pgxshard.New(sc.Name, pool), pool.Close, nil

	case "postgres-sql":
		db, err := sql.Open("postgres", "postgres://"+stripScheme(sc.Conn))
		if err != nil {
			return nil, nil, err
		}
		return pqshard.New(sc.Name, db), func() { _ = db.Close() }, nil

	case "mysql":
		db, err := sql.Open("mysql", stripScheme(sc.Conn))
		if err != nil {
			return nil, nil, err
		}
		return mysqlshard.New(sc.Name, db), func() { _ = db.Close() }, nil

	default:
		return nil, nil, errors.Errorf("unsupported shard scheme %q", u.Scheme)
	}
}

func stripScheme(conn string) string {
	if idx := strings.Index(conn, "://"); idx >= 0 {
		return conn[idx+len("://"):]
	}
	return conn
}
