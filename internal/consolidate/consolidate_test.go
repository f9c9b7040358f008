package consolidate

import (
	"context"
	"testing"

	"github.com/1auti/dynamic-querys-sub000/internal/analyzer"
	"github.com/1auti/dynamic-querys-sub000/internal/batch"
	"github.com/1auti/dynamic-querys-sub000/internal/catalog"
	"github.com/1auti/dynamic-querys-sub000/internal/shard"
)

type fakeSink struct {
	calls int
	rows  []shard.Row
}

func (f *fakeSink) OnBatch(_ context.Context, rows []shard.Row) error {
	f.calls++
	f.rows = append(f.rows, rows...)
	return nil
}

func sumVerdict() analyzer.Verdict {
	return analyzer.Verdict{
		Consolidable:      true,
		GroupingFields:    []string{"provincia"},
		NumericFields:     []string{"total"},
		ConsolidationType: catalog.ConsolidationAggregation,
		SelectFields: []analyzer.SelectField{
			{Name: "provincia", Expr: "provincia"},
			{Name: "total", Expr: "SUM(monto)", IsAggregate: true},
		},
	}
}

func TestAggregatorFoldsSumAcrossShards(t *testing.T) {
	sink := &fakeSink{}
	agg := NewAggregator(sumVerdict(), sink)

	if err := agg.OnBatch(context.Background(), []shard.Row{{"provincia": "cordoba", "total": int64(100)}}); err != nil {
		t.Fatal(err)
	}
	if err := agg.OnBatch(context.Background(), []shard.Row{{"provincia": "cordoba", "total": int64(50)}}); err != nil {
		t.Fatal(err)
	}
	if err := agg.OnBatch(context.Background(), []shard.Row{{"provincia": "mendoza", "total": int64(7)}}); err != nil {
		t.Fatal(err)
	}

	rows := agg.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 folded rows (one per province), got %d: %v", len(rows), rows)
	}
	var cordoba shard.Row
	for _, r := range rows {
		if r["provincia"] == "cordoba" {
			cordoba = r
		}
	}
	if cordoba == nil {
		t.Fatal("expected a cordoba row")
	}
	if cordoba["total"] != float64(150) {
		t.Fatalf("expected summed total=150, got %v", cordoba["total"])
	}
}

func TestAggregatorCountAccumulates(t *testing.T) {
	verdict := analyzer.Verdict{
		GroupingFields:    []string{"tipo"},
		NumericFields:     []string{"n"},
		ConsolidationType: catalog.ConsolidationAggregationStream,
		SelectFields: []analyzer.SelectField{
			{Name: "tipo", Expr: "tipo"},
			{Name: "n", Expr: "COUNT(*)", IsAggregate: true},
		},
	}
	sink := &fakeSink{}
	agg := NewAggregator(verdict, sink)

	agg.OnBatch(context.Background(), []shard.Row{{"tipo": "velocidad", "n": int64(3)}})
	agg.OnBatch(context.Background(), []shard.Row{{"tipo": "velocidad", "n": int64(4)}})
	agg.OnBatch(context.Background(), []shard.Row{{"tipo": "semaforo", "n": int64(1)}})

	rows := agg.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(rows))
	}
	for _, r := range rows {
		if r["tipo"] == "velocidad" && r["n"] != float64(7) {
			t.Fatalf("expected velocidad count=7, got %v", r["n"])
		}
	}
}

func TestAggregatorMaxAndMin(t *testing.T) {
	verdict := analyzer.Verdict{
		GroupingFields:    []string{"provincia"},
		NumericFields:     []string{"peak", "floor"},
		ConsolidationType: catalog.ConsolidationAggregation,
		SelectFields: []analyzer.SelectField{
			{Name: "provincia", Expr: "provincia"},
			{Name: "peak", Expr: "MAX(velocidad)", IsAggregate: true},
			{Name: "floor", Expr: "MIN(velocidad)", IsAggregate: true},
		},
	}
	sink := &fakeSink{}
	agg := NewAggregator(verdict, sink)

	agg.OnBatch(context.Background(), []shard.Row{{"provincia": "cordoba", "peak": int64(120), "floor": int64(40)}})
	agg.OnBatch(context.Background(), []shard.Row{{"provincia": "cordoba", "peak": int64(90), "floor": int64(10)}})

	rows := agg.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 folded row, got %d", len(rows))
	}
	if rows[0]["peak"] != float64(120) {
		t.Fatalf("expected peak=120, got %v", rows[0]["peak"])
	}
	if rows[0]["floor"] != float64(10) {
		t.Fatalf("expected floor=10, got %v", rows[0]["floor"])
	}
}

func TestAggregatorStreamingIncrementalMatchesSingleBatch(t *testing.T) {
	verdict := sumVerdict()

	oneShot := NewAggregator(verdict, &fakeSink{})
	oneShot.OnBatch(context.Background(), []shard.Row{
		{"provincia": "cordoba", "total": int64(10)},
		{"provincia": "cordoba", "total": int64(20)},
		{"provincia": "cordoba", "total": int64(30)},
	})

	streamed := NewAggregator(verdict, &fakeSink{})
	streamed.OnBatch(context.Background(), []shard.Row{{"provincia": "cordoba", "total": int64(10)}})
	streamed.OnBatch(context.Background(), []shard.Row{{"provincia": "cordoba", "total": int64(20)}})
	streamed.OnBatch(context.Background(), []shard.Row{{"provincia": "cordoba", "total": int64(30)}})

	if oneShot.Rows()[0]["total"] != streamed.Rows()[0]["total"] {
		t.Fatalf("streaming fold diverged from single-batch fold: %v vs %v", oneShot.Rows()[0]["total"], streamed.Rows()[0]["total"])
	}
	if streamed.Rows()[0]["total"] != float64(60) {
		t.Fatalf("expected total=60, got %v", streamed.Rows()[0]["total"])
	}
}

func TestNewReturnsSinkDirectlyForRaw(t *testing.T) {
	sink := &fakeSink{}
	consumer := New(analyzer.Verdict{ConsolidationType: catalog.ConsolidationRaw}, sink)

	rows := []shard.Row{{"id": int64(1)}}
	if err := consumer.OnBatch(context.Background(), rows); err != nil {
		t.Fatal(err)
	}
	if sink.calls != 1 || len(sink.rows) != 1 {
		t.Fatalf("expected RAW to pass straight through to sink, got %d calls / %d rows", sink.calls, len(sink.rows))
	}
	if _, ok := consumer.(*Aggregator); ok {
		t.Fatal("RAW verdict should not be wrapped in an Aggregator")
	}
}

func TestNewWrapsAggregationInAggregator(t *testing.T) {
	consumer := New(sumVerdict(), &fakeSink{})
	if _, ok := consumer.(*Aggregator); !ok {
		t.Fatalf("expected AGGREGATION verdict to be wrapped in an *Aggregator, got %T", consumer)
	}
}

func TestFinalizeSkipsEmptyResult(t *testing.T) {
	sink := &fakeSink{}
	agg := NewAggregator(sumVerdict(), sink)
	if err := agg.Finalize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sink.calls != 0 {
		t.Fatalf("expected Finalize to skip delivery when nothing was folded, got %d calls", sink.calls)
	}
}

func TestFinalizeDeliversFoldedRowsOnce(t *testing.T) {
	sink := &fakeSink{}
	agg := NewAggregator(sumVerdict(), sink)
	agg.OnBatch(context.Background(), []shard.Row{{"provincia": "cordoba", "total": int64(5)}})

	if err := agg.Finalize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sink.calls != 1 {
		t.Fatalf("expected exactly one flush to sink, got %d", sink.calls)
	}
	if len(sink.rows) != 1 || sink.rows[0]["total"] != float64(5) {
		t.Fatalf("expected the folded row delivered to sink, got %v", sink.rows)
	}
}

var _ batch.Consumer = (*Aggregator)(nil)
