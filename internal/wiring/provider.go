package wiring

import (
	"context"

	"github.com/google/wire"

	"github.com/1auti/dynamic-querys-sub000/internal/analyzer"
	"github.com/1auti/dynamic-querys-sub000/internal/batch"
	"github.com/1auti/dynamic-querys-sub000/internal/catalog"
	"github.com/1auti/dynamic-querys-sub000/internal/clock"
	"github.com/1auti/dynamic-querys-sub000/internal/memprobe"
	"github.com/1auti/dynamic-querys-sub000/internal/shard"
	"github.com/1auti/dynamic-querys-sub000/internal/task"
)

// Set is used by Wire.
var Set = wire.NewSet(
	ProvideShards,
	ProvideCatalog,
	ProvideAnalyzer,
	ProvideClock,
	ProvideMemProbe,
	ProvideBuilder,
	ProvideProcessor,
	ProvideResultStore,
	ProvideManager,
)

// ProvideCatalog is called by Wire. The in-memory catalog is the only
// implementation this module ships; a persistent one is out of scope
// per spec.md §1.
func ProvideCatalog() catalog.Catalog {
	return catalog.NewInMemory()
}

// ProvideAnalyzer is called by Wire.
func ProvideAnalyzer() *analyzer.Analyzer {
	return analyzer.New()
}

// ProvideClock is called by Wire.
func ProvideClock() clock.Clock {
	return clock.Real{}
}

// ProvideMemProbe is called by Wire.
func ProvideMemProbe() memprobe.Probe {
	return &memprobe.RuntimeProbe{}
}

// ProvideBuilder is called by Wire.
func ProvideBuilder(cat catalog.Catalog, az *analyzer.Analyzer, shards shard.Set) task.Builder {
	return &RequestBuilder{Catalog: cat, Analyzer: az, Shards: shards}
}

// ProvideProcessor is called by Wire.
func ProvideProcessor(clk clock.Clock, probe memprobe.Probe, cfg *Config) *batch.Processor {
	pool := batch.NewPool(cfg.Batch.PoolWidth, cfg.Batch.PoolQueueCapacity)
	return batch.New(pool, clk, probe, cfg.Batch)
}

// ProvideResultStore is called by Wire.
func ProvideResultStore() task.ResultStore {
	return task.NewMapResultStore()
}

// ProvideManager is called by Wire.
func ProvideManager(proc *batch.Processor, builder task.Builder, store task.ResultStore, clk clock.Clock) *task.Manager {
	return task.New(proc, builder, store, clk)
}

// App bundles the process-lifetime objects shardqueryd needs, mirroring
// the teacher's MYLogical injector result shape.
type App struct {
	Manager *task.Manager
}

// New wires together a complete App, the hand-maintained equivalent of
// what `wire` would generate into wire_gen.go from Set. ctx bounds only
// the wiring step itself (opening shard pools); it is not retained.
func New(ctx context.Context, cfg *Config) (*App, func(), error) {
	return build(ctx, cfg)
}
