// Package consolidate implements the Consolidator (C10): folding the
// per-shard row batches the Batch Processor (C8) hands it into a single
// logical result set, per spec.md §4.5.
package consolidate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/1auti/dynamic-querys-sub000/internal/analyzer"
	"github.com/1auti/dynamic-querys-sub000/internal/batch"
	"github.com/1auti/dynamic-querys-sub000/internal/catalog"
	"github.com/1auti/dynamic-querys-sub000/internal/shard"
)

// AggFunc is the per-field accumulation rule used when two rows fold
// into the same grouping key.
type AggFunc string

const (
	AggSum   AggFunc = "SUM"
	AggCount AggFunc = "COUNT"
	AggMax   AggFunc = "MAX"
	AggMin   AggFunc = "MIN"
)

// aggregateFuncRE mirrors analyzer.classify's own regex: the Consolidator
// needs the actual SQL function name, not the analyzer's coarser two-way
// NUMERIC_SUM/NUMERIC_COUNT split, so it re-derives it from the same
// SelectField.Expr text the analyzer already resolved.
var aggregateFuncRE = regexp.MustCompile(`(?i)^\s*(SUM|COUNT|AVG|MAX|MIN)\s*\(`)

// aggFuncFor returns the fold rule for a resolved SELECT field. AVG is
// folded as SUM: a per-shard AVG is already a lossy pre-aggregate, and
// correctly re-averaging it across shards would require the shard to
// project SUM and COUNT separately instead, which is a query-authoring
// concern outside this component. This mirrors the analyzer's own
// collapse of AVG into NUMERIC_SUM during classification.
func aggFuncFor(expr string) AggFunc {
	m := aggregateFuncRE.FindStringSubmatch(expr)
	if m == nil {
		return AggSum
	}
	switch strings.ToUpper(m[1]) {
	case "COUNT":
		return AggCount
	case "MAX":
		return AggMax
	case "MIN":
		return AggMin
	default:
		return AggSum
	}
}

// New builds the Consumer that should sit in Request.Consumer for a
// given verdict, wrapping sink (the consumer that ultimately receives
// the finished result, e.g. a task's ResultStore writer).
//
// AGGREGATION, AGGREGATION_STREAMING and AGGREGATION_HIGH_VOLUME all
// fold through the same incremental map: the only difference between
// them is how many times, and how large, the batches C8 hands to
// OnBatch are. Everything else (RAW, DEDUPLICATION, HIERARCHICAL,
// COMBINED) passes rows straight through to sink, per spec.md §4.5
// ("For RAW: pass-through"); the three non-aggregation consolidation
// types are not addressed by the spec text and are treated the same way
// since none of them implies a field-wise numeric fold.
func New(verdict analyzer.Verdict, sink batch.Consumer) batch.Consumer {
	switch verdict.ConsolidationType {
	case catalog.ConsolidationAggregation, catalog.ConsolidationAggregationStream, catalog.ConsolidationHighVolume:
		return NewAggregator(verdict, sink)
	default:
		return sink
	}
}

// Aggregator folds row batches into a map keyed by the tuple of
// grouping-field values, per spec.md §4.5. It implements batch.Consumer
// so it can be handed directly to Request.Consumer; the caller must
// invoke Finalize once the Batch Processor's run has completed to flush
// the folded rows to sink.
//
// The fold is grounded on the teacher's msort.UniqueByKey: a
// map[string]int tracks the destination slot for each distinct key, but
// here a repeated key folds its numeric fields into the existing slot
// per their declared aggregation instead of replacing it outright.
type Aggregator struct {
	groupFields []string
	aggFuncs    map[string]AggFunc
	sink        batch.Consumer

	mu     sync.Mutex
	slotOf map[string]int
	rows   []shard.Row
}

var _ batch.Consumer = (*Aggregator)(nil)

// NewAggregator builds an Aggregator from a Query Analyzer verdict.
func NewAggregator(verdict analyzer.Verdict, sink batch.Consumer) *Aggregator {
	funcs := make(map[string]AggFunc, len(verdict.NumericFields))
	exprByName := make(map[string]string, len(verdict.SelectFields))
	for _, f := range verdict.SelectFields {
		exprByName[f.Name] = f.Expr
	}
	for _, name := range verdict.NumericFields {
		funcs[name] = aggFuncFor(exprByName[name])
	}

	return &Aggregator{
		groupFields: verdict.GroupingFields,
		aggFuncs:    funcs,
		sink:        sink,
		slotOf:      make(map[string]int),
	}
}

// OnBatch implements batch.Consumer: every row in rows is folded into
// the running map, keyed by its grouping-field values.
func (a *Aggregator) OnBatch(_ context.Context, rows []shard.Row) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, row := range rows {
		key := a.groupKey(row)
		if slot, found := a.slotOf[key]; found {
			a.foldInto(a.rows[slot], row)
			continue
		}
		a.slotOf[key] = len(a.rows)
		a.rows = append(a.rows, normalizeNumerics(row, a.aggFuncs))
	}
	return nil
}

// groupKey joins the grouping-field values with a separator that cannot
// appear in a SQL identifier or a typical column value, so distinct
// tuples never collide.
func (a *Aggregator) groupKey(row shard.Row) string {
	if len(a.groupFields) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range a.groupFields {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(toString(row[f]))
	}
	return b.String()
}

// foldInto accumulates src's numeric fields into dst per their declared
// aggregation. Non-numeric fields are left as dst already holds them
// (they are part of the grouping key and therefore identical already).
func (a *Aggregator) foldInto(dst, src shard.Row) {
	for field, fn := range a.aggFuncs {
		sv, ok := toFloat64(src[field])
		if !ok {
			continue
		}
		dv, _ := toFloat64(dst[field])
		switch fn {
		case AggCount, AggSum:
			dst[field] = dv + sv
		case AggMax:
			if sv > dv {
				dst[field] = sv
			}
		case AggMin:
			if _, hadDst := dst[field]; !hadDst || sv < dv {
				dst[field] = sv
			}
		}
	}
}

// Rows returns a snapshot of the folded result set so far.
func (a *Aggregator) Rows() []shard.Row {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := make([]shard.Row, len(a.rows))
	copy(cp, a.rows)
	return cp
}

// Finalize flushes the folded result set to sink in one batch. For
// AGGREGATION this is the first time sink sees any rows at all; for
// AGGREGATION_STREAMING/AGGREGATION_HIGH_VOLUME the map has already
// been updated incrementally at every streaming flush point, so
// Finalize only delivers the final state rather than re-deriving it.
func (a *Aggregator) Finalize(ctx context.Context) error {
	rows := a.Rows()
	if len(rows) == 0 {
		return nil
	}
	return a.sink.OnBatch(ctx, rows)
}

func normalizeNumerics(row shard.Row, aggFuncs map[string]AggFunc) shard.Row {
	cp := make(shard.Row, len(row))
	for k, v := range row {
		cp[k] = v
	}
	for field := range aggFuncs {
		if fv, ok := toFloat64(cp[field]); ok {
			cp[field] = fv
		}
	}
	return cp
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
