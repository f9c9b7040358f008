package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/1auti/dynamic-querys-sub000/internal/analyzer"
	"github.com/1auti/dynamic-querys-sub000/internal/catalog"
	"github.com/1auti/dynamic-querys-sub000/internal/filter"
	"github.com/1auti/dynamic-querys-sub000/internal/shard"
)

func TestProcessorSingleShotAggregationCallsExecuteQueryOnce(t *testing.T) {
	pool := NewPool(2, 10)
	defer pool.Close()
	proc := New(pool, &fakeClock{}, fakeMemProbe{used: 0.1}, DefaultConfig())

	ex := &fakeExecutor{
		name:     "cordoba",
		pages:    [][]shard.Row{{{"province": int64(3)}}},
		countVal: 10,
	}
	consumer := &fakeConsumer{}

	req := &Request{
		QueryCode: "q1",
		Shards:    shard.Set{"cordoba": ex},
		Filter:    &filter.Filter{},
		Consumer:  consumer,
		Verdict:   analyzer.Verdict{Consolidable: true, ConsolidationType: catalog.ConsolidationAggregation},
		FullSQL:   "SELECT province, COUNT(*) FROM infracciones GROUP BY province",
		CountSQL:  "SELECT COUNT(*) FROM (SELECT 1 FROM infracciones) t",
	}

	run, err := proc.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if ex.queryCalls != 1 {
		t.Fatalf("expected exactly one ExecuteQuery call on the single-shot path, got %d", ex.queryCalls)
	}
	if consumer.totalRows() != 1 {
		t.Fatalf("expected one row delivered, got %d", consumer.totalRows())
	}
	if consumer.batches[0][0]["province"] != "cordoba" {
		t.Fatalf("expected row normalization to overwrite province with the shard name, got %v", consumer.batches[0][0])
	}
	if run.RowsSoFar() != 1 {
		t.Fatalf("expected RowsSoFar=1, got %d", run.RowsSoFar())
	}
}

func TestProcessorKeysetPaginationStopsOnShortPage(t *testing.T) {
	pool := NewPool(2, 10)
	defer pool.Close()
	cfg := DefaultConfig()
	cfg.BatchSizeDefault = 2
	cfg.BatchSizeFloor = 2
	proc := New(pool, &fakeClock{}, fakeMemProbe{used: 0.1}, cfg)

	page1 := []shard.Row{{"id": int64(1)}, {"id": int64(2)}}
	page2 := []shard.Row{{"id": int64(3)}}
	ex := &fakeExecutor{name: "mendoza", pages: [][]shard.Row{page1, page2}, countVal: 3}
	consumer := &fakeConsumer{}

	req := &Request{
		QueryCode: "q2",
		Shards:    shard.Set{"mendoza": ex},
		Filter:    &filter.Filter{},
		Consumer:  consumer,
		Verdict:   analyzer.Verdict{},
		Pagination: analyzer.PaginationVerdict{
			Strategy:   catalog.PaginationKeysetWithID,
			KeyColumns: []analyzer.KeyColumn{{Name: "id", ParamName: "lastId", SQLType: "BIGINT"}},
		},
		PagedSQL: "SELECT id FROM infracciones ORDER BY id LIMIT :limit",
		CountSQL: "SELECT COUNT(*) FROM (SELECT id FROM infracciones) t",
	}

	_, err := proc.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if ex.queryCalls != 2 {
		t.Fatalf("expected 2 page fetches (second shorter than batchSize stops the loop), got %d", ex.queryCalls)
	}
	if consumer.totalRows() != 3 {
		t.Fatalf("expected 3 rows total across both pages, got %d", consumer.totalRows())
	}
}

func TestProcessorShardFailureDoesNotAbortOthers(t *testing.T) {
	pool := NewPool(2, 10)
	defer pool.Close()
	proc := New(pool, &fakeClock{}, fakeMemProbe{used: 0.1}, DefaultConfig())

	good := &fakeExecutor{name: "a", pages: [][]shard.Row{{{"id": int64(1)}}}, countVal: 1}
	bad := &fakeExecutor{name: "b", err: errors.New("connection refused"), countVal: 1}
	consumer := &fakeConsumer{}

	req := &Request{
		QueryCode: "q3",
		Shards:    shard.Set{"a": good, "b": bad},
		Filter:    &filter.Filter{},
		Consumer:  consumer,
		Verdict:   analyzer.Verdict{},
		Pagination: analyzer.PaginationVerdict{
			Strategy:   catalog.PaginationKeysetWithID,
			KeyColumns: []analyzer.KeyColumn{{Name: "id", ParamName: "lastId", SQLType: "BIGINT"}},
		},
		PagedSQL: "SELECT id FROM infracciones ORDER BY id LIMIT :limit",
		CountSQL: "SELECT COUNT(*) FROM (SELECT id FROM infracciones) t",
	}

	run, err := proc.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("a single shard failure must not fail the whole request: %v", err)
	}
	if run.ShardsDone() != 2 {
		t.Fatalf("expected both shards marked done, got %d", run.ShardsDone())
	}
	if consumer.totalRows() != 1 {
		t.Fatalf("expected only the healthy shard's row delivered, got %d", consumer.totalRows())
	}
}

func TestProcessorStreamingFlushesTailAtShardEnd(t *testing.T) {
	pool := NewPool(2, 10)
	defer pool.Close()
	cfg := DefaultConfig()
	cfg.StreamingBufferSize = 2
	proc := New(pool, &fakeClock{}, fakeMemProbe{used: 0.1}, cfg)

	ex := &fakeExecutor{
		name:       "raw-shard",
		streamRows: []shard.Row{{"id": int64(1)}, {"id": int64(2)}, {"id": int64(3)}},
		countVal:   3,
	}
	consumer := &fakeConsumer{}

	req := &Request{
		QueryCode: "q4",
		Shards:    shard.Set{"raw-shard": ex},
		Filter:    &filter.Filter{},
		Consumer:  consumer,
		Verdict:   analyzer.Verdict{ConsolidationType: catalog.ConsolidationRaw},
		PagedSQL:  "SELECT id FROM infracciones LIMIT :limit",
		FullSQL:   "SELECT id FROM infracciones",
		CountSQL:  "SELECT COUNT(*) FROM (SELECT id FROM infracciones) t",
	}

	_, err := proc.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if consumer.totalRows() != 3 {
		t.Fatalf("expected all 3 streamed rows delivered (full buffer + tail flush), got %d", consumer.totalRows())
	}
	if len(consumer.batches) != 2 {
		t.Fatalf("expected 2 flushes (one full buffer of 2, one tail of 1), got %d", len(consumer.batches))
	}
}

// TestProcessorRawStreamingPagesThroughPagedSQLUntilShortPage guards
// against regressing to the FullSQL-based single unbounded read RAW
// queries used to get: runStreaming must page through req.PagedSQL,
// honoring the chosen keyset strategy and Filter.Limit/PageSize, and
// stop once a page comes back shorter than the requested batch size.
func TestProcessorRawStreamingPagesThroughPagedSQLUntilShortPage(t *testing.T) {
	pool := NewPool(2, 10)
	defer pool.Close()
	cfg := DefaultConfig()
	cfg.BatchSizeDefault = 2
	cfg.BatchSizeFloor = 2
	cfg.StreamingBufferSize = 10
	proc := New(pool, &fakeClock{}, fakeMemProbe{used: 0.1}, cfg)

	page1 := []shard.Row{{"id": int64(1)}, {"id": int64(2)}}
	page2 := []shard.Row{{"id": int64(3)}}
	ex := &fakeExecutor{name: "raw-shard", streamPages: [][]shard.Row{page1, page2}, countVal: 3}
	consumer := &fakeConsumer{}

	req := &Request{
		QueryCode: "q6",
		Shards:    shard.Set{"raw-shard": ex},
		Filter:    &filter.Filter{},
		Consumer:  consumer,
		Verdict:   analyzer.Verdict{ConsolidationType: catalog.ConsolidationRaw},
		Pagination: analyzer.PaginationVerdict{
			Strategy:   catalog.PaginationKeysetWithID,
			KeyColumns: []analyzer.KeyColumn{{Name: "id", ParamName: "lastId", SQLType: "BIGINT"}},
		},
		PagedSQL: "SELECT id FROM infracciones WHERE (:lastId IS NULL OR id > :lastId) ORDER BY id LIMIT :limit",
		FullSQL:  "SELECT id FROM infracciones",
		CountSQL: "SELECT COUNT(*) FROM (SELECT id FROM infracciones) t",
	}

	_, err := proc.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if ex.streamCalls != 2 {
		t.Fatalf("expected 2 streaming page fetches against req.PagedSQL (second page shorter than batchSize stops the loop), got %d", ex.streamCalls)
	}
	if consumer.totalRows() != 3 {
		t.Fatalf("expected all 3 rows across both pages delivered, got %d", consumer.totalRows())
	}
}

func TestProcessorRejectsEmptyShardSet(t *testing.T) {
	pool := NewPool(1, 1)
	defer pool.Close()
	proc := New(pool, &fakeClock{}, fakeMemProbe{used: 0}, DefaultConfig())

	req := &Request{
		QueryCode: "q5",
		Shards:    shard.Set{},
		Filter:    &filter.Filter{},
		Consumer:  &fakeConsumer{},
		CountSQL:  "SELECT COUNT(*) FROM (SELECT 1) t",
	}

	if _, err := proc.Execute(context.Background(), req); err == nil {
		t.Fatal("expected a validation error for an empty shard set")
	}
}
