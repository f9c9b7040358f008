// Package wiring assembles the Catalog, Analyzer, Rewriter, Binder,
// shard executors and Batch Processor into a running Task Manager (C9),
// the way internal/source/logical's provider.go wires a logical
// replication loop: a Config, a handful of Provide* constructors, and a
// hand-maintained wire_gen.go standing in for `wire`'s generated output.
package wiring

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/1auti/dynamic-querys-sub000/internal/batch"
)

// ShardConfig names one province shard's connection string. The scheme
// (postgres, postgres-sql, mysql) selects which shard.Executor driver
// package opens it; see ProvideShards.
type ShardConfig struct {
	Name string
	Conn string
}

// Config is the user-visible configuration for the shardqueryd binary,
// mirroring the teacher's server.Config Bind/Preflight shape.
type Config struct {
	rawShards []string
	Shards    []ShardConfig

	Batch batch.Config

	TaskCleanupInterval time.Duration
	TaskMaxAge          time.Duration
}

// Bind registers flags.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringArrayVar(&c.rawShards, "shard", nil,
		"a province shard as name=connString (postgres://, postgres-sql://, mysql://); repeatable")
	flags.DurationVar(&c.TaskCleanupInterval, "task-cleanup-interval", time.Minute,
		"how often the background sweep calls task.Manager.Cleanup")
	flags.DurationVar(&c.TaskMaxAge, "task-max-age", 24*time.Hour,
		"how long a terminal task's result is kept before Cleanup reclaims it")
	c.Batch.Bind(flags)
}

// Preflight validates the configuration and parses rawShards.
func (c *Config) Preflight() error {
	c.Shards = c.Shards[:0]
	for _, raw := range c.rawShards {
		idx := strings.IndexByte(raw, '=')
		if idx < 0 {
			return errors.Errorf("--shard %q: expected name=connString", raw)
		}
		c.Shards = append(c.Shards, ShardConfig{Name: raw[:idx], Conn: raw[idx+1:]})
	}
	if len(c.Shards) == 0 {
		return errors.New("at least one --shard is required")
	}
	return c.Batch.Preflight()
}
