package batch

// Strategy is the Phase B processing mode, per spec.md §4.4.
type Strategy string

const (
	StrategyParallel   Strategy = "PARALLEL"
	StrategyHybrid     Strategy = "HYBRID"
	StrategySequential Strategy = "SEQUENTIAL"
)

// selectStrategy applies spec.md §4.4's Phase B rules. SEQUENTIAL is
// checked first: a single shard estimated past SequentialMaxPerShardMin
// is a real risk to that one worker regardless of how small the other
// shards are, so a lopsided estimate (a handful of huge shards among
// many tiny ones, which can still pull the average below the PARALLEL
// cutoff) must not slip through to PARALLEL. The spec states the two
// conditions as independent bullets without giving a priority order;
// this ordering is this port's resolution of that ambiguity.
func selectStrategy(cfg Config, est Estimate) Strategy {
	if est.MaxPerShard > int64(cfg.SequentialMaxPerShardMin) {
		return StrategySequential
	}
	if est.AvgPerShard < int64(cfg.ParallelAvgPerShardMax) && est.Total < int64(cfg.ParallelTotalMax) {
		return StrategyParallel
	}
	return StrategyHybrid
}
