package wiring

import (
	"context"
	"strings"
	"testing"

	"github.com/1auti/dynamic-querys-sub000/internal/analyzer"
	"github.com/1auti/dynamic-querys-sub000/internal/catalog"
	"github.com/1auti/dynamic-querys-sub000/internal/filter"
	"github.com/1auti/dynamic-querys-sub000/internal/shard"
)

type noopExecutor struct{ name string }

func (e *noopExecutor) Name() string { return e.name }
func (e *noopExecutor) ExecuteQuery(context.Context, string, map[string]any) ([]shard.Row, error) {
	return nil, nil
}
func (e *noopExecutor) ExecuteStreaming(context.Context, string, map[string]any, shard.OnRow) error {
	return nil
}
func (e *noopExecutor) Count(context.Context, string, map[string]any) (int64, error) {
	return 0, nil
}

func newBuilder(t *testing.T, sqlText string, shards shard.Set) (*RequestBuilder, *catalog.InMemory) {
	t.Helper()
	cat := catalog.NewInMemory()
	if err := cat.Save(context.Background(), &catalog.Template{Code: "q1", Name: "q1", SQLText: sqlText}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return &RequestBuilder{Catalog: cat, Analyzer: analyzer.New(), Shards: shards}, cat
}

func TestBuildAggregationProducesThreeDistinctSQLVariants(t *testing.T) {
	sqlText := `SELECT provincia, SUM(monto) AS total FROM infracciones GROUP BY provincia`
	shards := shard.Set{"buenos_aires": &noopExecutor{name: "buenos_aires"}}
	b, _ := newBuilder(t, sqlText, shards)

	req, collector, err := b.Build(context.Background(), "q1", &filter.Filter{UseAllShards: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if collector == nil {
		t.Fatal("expected a non-nil RowCollector")
	}

	if strings.Contains(strings.ToUpper(req.FullSQL), "LIMIT") {
		t.Fatalf("expected FullSQL to carry no LIMIT, got: %s", req.FullSQL)
	}
	want := "SELECT COUNT(*) FROM (" + req.FullSQL + ") t"
	if req.CountSQL != want {
		t.Fatalf("expected CountSQL to wrap FullSQL, got: %s", req.CountSQL)
	}
	if req.PagedSQL == req.FullSQL || !strings.Contains(req.PagedSQL, "LIMIT :limit") {
		t.Fatalf("expected PagedSQL to differ from FullSQL and carry LIMIT :limit, got: %s", req.PagedSQL)
	}
	if req.Verdict.ConsolidationType != catalog.ConsolidationAggregation {
		t.Fatalf("expected AGGREGATION verdict, got: %s", req.Verdict.ConsolidationType)
	}
}

func TestBuildWritesAnalysisBackToCatalogOnce(t *testing.T) {
	sqlText := `SELECT provincia, SUM(monto) AS total FROM infracciones GROUP BY provincia`
	shards := shard.Set{"s1": &noopExecutor{name: "s1"}}
	b, cat := newBuilder(t, sqlText, shards)

	before, err := cat.FindByCode(context.Background(), "q1")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if before.ConsolidationType != "" {
		t.Fatal("expected a freshly-saved template to start with no recorded analysis")
	}

	if _, _, err := b.Build(context.Background(), "q1", &filter.Filter{UseAllShards: true}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	after, err := cat.FindByCode(context.Background(), "q1")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if after.ConsolidationType != catalog.ConsolidationAggregation {
		t.Fatalf("expected analysis written back, got ConsolidationType=%q", after.ConsolidationType)
	}
	if len(after.GroupingFields) != 1 || after.GroupingFields[0] != "provincia" {
		t.Fatalf("expected GroupingFields=[provincia], got %v", after.GroupingFields)
	}
}

func TestBuildNarrowsShardsToRequestedProvinces(t *testing.T) {
	sqlText := `SELECT id, placa FROM infracciones`
	shards := shard.Set{
		"buenos_aires": &noopExecutor{name: "buenos_aires"},
		"cordoba":      &noopExecutor{name: "cordoba"},
	}
	b, _ := newBuilder(t, sqlText, shards)

	req, _, err := b.Build(context.Background(), "q1", &filter.Filter{Provinces: []string{"cordoba"}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(req.Shards) != 1 {
		t.Fatalf("expected exactly 1 shard selected, got %d", len(req.Shards))
	}
	if _, ok := req.Shards["cordoba"]; !ok {
		t.Fatal("expected cordoba shard selected")
	}
}

func TestBuildRejectsUnknownProvince(t *testing.T) {
	sqlText := `SELECT id, placa FROM infracciones`
	shards := shard.Set{"buenos_aires": &noopExecutor{name: "buenos_aires"}}
	b, _ := newBuilder(t, sqlText, shards)

	_, _, err := b.Build(context.Background(), "q1", &filter.Filter{Provinces: []string{"nowhere"}})
	if err == nil {
		t.Fatal("expected an error for an unknown province")
	}
}

func TestStripTrailingLimitRemovesOnlyTrailingLimitClause(t *testing.T) {
	in := "SELECT provincia, SUM(monto) AS total FROM infracciones GROUP BY provincia LIMIT :limit"
	got := stripTrailingLimit(in)
	want := "SELECT provincia, SUM(monto) AS total FROM infracciones GROUP BY provincia"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	unchanged := "SELECT id FROM infracciones"
	if stripTrailingLimit(unchanged) != unchanged {
		t.Fatalf("expected no-op when there is no LIMIT clause")
	}
}
