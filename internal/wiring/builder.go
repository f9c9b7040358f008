package wiring

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/1auti/dynamic-querys-sub000/internal/analyzer"
	"github.com/1auti/dynamic-querys-sub000/internal/batch"
	"github.com/1auti/dynamic-querys-sub000/internal/catalog"
	"github.com/1auti/dynamic-querys-sub000/internal/consolidate"
	"github.com/1auti/dynamic-querys-sub000/internal/filter"
	"github.com/1auti/dynamic-querys-sub000/internal/rewriter"
	"github.com/1auti/dynamic-querys-sub000/internal/shard"
	"github.com/1auti/dynamic-querys-sub000/internal/sqlscan"
	"github.com/1auti/dynamic-querys-sub000/internal/task"
)

// RequestBuilder implements task.Builder: it resolves a query code to a
// catalog.Template, drives the Analyzer and Pagination Strategy
// Analyzer, rewrites the template's SQL, and narrows the shard set,
// producing the *batch.Request the Batch Processor runs (the Processor
// itself calls binder.Bind per shard).
type RequestBuilder struct {
	Catalog  catalog.Catalog
	Analyzer *analyzer.Analyzer
	Shards   shard.Set
}

var _ task.Builder = (*RequestBuilder)(nil)

// Build implements task.Builder.
func (b *RequestBuilder) Build(ctx context.Context, taskType string, f *filter.Filter) (*batch.Request, *task.RowCollector, error) {
	tmpl, err := b.Catalog.FindByCode(ctx, taskType)
	if err != nil {
		return nil, nil, err
	}

	verdict := b.Analyzer.Analyze(tmpl.SQLText)
	if tmpl.ConsolidationType == "" {
		b.recordAnalysis(ctx, tmpl, verdict)
	}

	pag := analyzer.AnalyzePagination(verdict)

	// FullSQL carries no pagination LIMIT: rewrite once with PaginationNone
	// and strip the LIMIT that appendPagination's NONE fallback appends
	// when the template doesn't already have one of its own (a LIMIT
	// written into the template itself is kept).
	noPag := analyzer.PaginationVerdict{Strategy: catalog.PaginationNone}
	fullResult := rewriter.Rewrite(tmpl.SQLText, verdict, noPag)
	fullSQL := stripTrailingLimit(fullResult.SQL)

	// The count query drops FullSQL's top-level ORDER BY, keeping any
	// LIMIT/OFFSET that follows it.
	countBase := fullSQL
	if idx := sqlscan.FindTopLevelKeyword(countBase, "ORDER BY"); idx >= 0 {
		tail := ""
		if lim := sqlscan.FindTopLevelKeyword(countBase[idx:], "LIMIT"); lim >= 0 {
			tail = " " + countBase[idx+lim:]
		}
		countBase = strings.TrimRight(countBase[:idx], " ") + tail
	}
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM (%s) t", countBase)

	pagedResult := rewriter.Rewrite(tmpl.SQLText, verdict, pag)

	shards, err := b.selectShards(f)
	if err != nil {
		return nil, nil, err
	}

	keyColumnNames := make([]string, len(pag.KeyColumns))
	for i, c := range pag.KeyColumns {
		keyColumnNames[i] = c.ParamName
	}

	collector := task.NewRowCollector()
	consumer := consolidate.New(verdict, collector)

	req := &batch.Request{
		QueryCode:      taskType,
		Shards:         shards,
		Filter:         f,
		Consumer:       consumer,
		Verdict:        verdict,
		Pagination:     pag,
		FullSQL:        fullSQL,
		PagedSQL:       pagedResult.SQL,
		CountSQL:       countSQL,
		KeyColumnNames: keyColumnNames,
	}
	return req, collector, nil
}

// selectShards narrows b.Shards to f.Provinces unless the filter asks
// for every shard, per spec.md §3's UseAllShards escape hatch.
func (b *RequestBuilder) selectShards(f *filter.Filter) (shard.Set, error) {
	if f.UseAllShards || len(f.Provinces) == 0 {
		return b.Shards, nil
	}

	out := make(shard.Set, len(f.Provinces))
	var missing []string
	for _, name := range f.Provinces {
		ex, ok := b.Shards[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		out[name] = ex
	}
	if len(missing) > 0 {
		return nil, errors.Errorf("unknown shard(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// recordAnalysis writes the freshly-derived verdict back into the
// catalog so PendingAnalysis/List/MostUsed reflect it without having to
// re-run the Analyzer, per spec.md §5 ("read-mostly, written once on
// first query per code"). Best-effort: a write-back failure never fails
// the request that triggered it.
func (b *RequestBuilder) recordAnalysis(ctx context.Context, tmpl *catalog.Template, verdict analyzer.Verdict) {
	cp := *tmpl
	cp.Consolidable = verdict.Consolidable
	cp.ConsolidationType = verdict.ConsolidationType
	cp.GroupingFields = verdict.GroupingFields
	cp.NumericFields = verdict.NumericFields
	cp.EstimatedRows = verdict.EstimatedRows
	if pag := analyzer.AnalyzePagination(verdict); pag.Strategy != "" {
		cp.PaginationStrategy = pag.Strategy
	}
	if err := b.Catalog.Update(ctx, &cp); err != nil {
		log.WithError(err).WithField("code", tmpl.Code).Warn("could not record analysis verdict")
	}
}

// stripTrailingLimit undoes appendPagination's NONE-strategy fallback
// ("LIMIT :limit" appended when the template has none of its own), the
// one case where Rewrite's single SQL output needs to be split back
// into a no-LIMIT variant for batch.Request.FullSQL.
func stripTrailingLimit(sql string) string {
	const suffix = "LIMIT :limit"
	trimmed := strings.TrimRight(sql, " ")
	if strings.HasSuffix(trimmed, suffix) {
		return strings.TrimRight(trimmed[:len(trimmed)-len(suffix)], " ")
	}
	return trimmed
}
