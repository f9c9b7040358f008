package batch

// Progress is the heartbeat event shape from spec.md §4.4:
// {elapsedSec, rowsSoFar, memPct, shardsDone/totalShards}, emitted at
// most once per configured heartbeat interval.
type Progress struct {
	ElapsedSec  float64
	RowsSoFar   int64
	MemPct      float64
	ShardsDone  int
	TotalShards int
}
