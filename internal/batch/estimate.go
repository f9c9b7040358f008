package batch

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/1auti/dynamic-querys-sub000/internal/metrics"
	"github.com/1auti/dynamic-querys-sub000/internal/shard"
)

// Estimate is the Phase A cross-shard row-count projection from
// spec.md §4.4.
type Estimate struct {
	Total       int64
	PerShard    map[string]int64
	AvgPerShard int64
	MaxPerShard int64
}

// estimatePhase issues req.CountSQL against every shard in parallel,
// aggregating the per-shard counts. A shard that fails to estimate
// contributes a conservative 0 rather than aborting the whole phase,
// per spec.md §4.4 ("a shard failure yields a conservative estimate of
// 0, logged").
func (p *Processor) estimatePhase(ctx context.Context, req *Request, args map[string]any) Estimate {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		perShard = make(map[string]int64, len(req.Shards))
	)

	for name, ex := range req.Shards {
		wg.Add(1)
		go func(name string, ex shard.Executor) {
			defer wg.Done()
			n, err := ex.Count(ctx, req.CountSQL, args)
			if err != nil {
				log.WithFields(log.Fields{"shard": name, "queryCode": req.QueryCode}).
					Warn("phase A estimation failed, using conservative estimate of 0")
				n = 0
			}
			mu.Lock()
			perShard[name] = n
			mu.Unlock()
		}(name, ex)
	}
	wg.Wait()

	est := Estimate{PerShard: perShard}
	for _, n := range perShard {
		est.Total += n
		if n > est.MaxPerShard {
			est.MaxPerShard = n
		}
	}
	if len(perShard) > 0 {
		est.AvgPerShard = est.Total / int64(len(perShard))
	}

	metrics.BatchEstimateTotal.WithLabelValues(req.QueryCode).Observe(float64(est.Total))
	return est
}
