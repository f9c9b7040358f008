package batch

import (
	"github.com/1auti/dynamic-querys-sub000/internal/analyzer"
	"github.com/1auti/dynamic-querys-sub000/internal/catalog"
	"github.com/1auti/dynamic-querys-sub000/internal/filter"
	"github.com/1auti/dynamic-querys-sub000/internal/shard"
)

// Request is everything one Execute call needs: the shard set to fan
// out across, the validated filter, the Analyzer/Pagination verdicts
// that drove the Rewriter, and the three SQL variants the per-shard
// inner loop switches between.
type Request struct {
	QueryCode string
	Shards    shard.Set
	Filter    *filter.Filter
	Consumer  Consumer

	Verdict    analyzer.Verdict
	Pagination analyzer.PaginationVerdict

	// FullSQL is the rewritten query with no pagination LIMIT applied,
	// used for the AGGREGATION single-shot path.
	FullSQL string
	// PagedSQL is the rewritten query with the chosen pagination
	// strategy's predicate/ORDER BY/LIMIT appended, used by the keyset
	// pagination loop and by the AGGREGATION_STREAMING /
	// AGGREGATION_HIGH_VOLUME / RAW streaming loop.
	PagedSQL string
	// CountSQL wraps FullSQL (its top-level ORDER BY stripped) in
	// SELECT COUNT(*) FROM (...) t for Phase A estimation.
	CountSQL string

	// KeyColumnNames lists every keyset_col_N / lastSerial-style
	// parameter name this query's Pagination Verdict introduced, passed
	// through to binder.Bind so unused slots default to nil instead of
	// being silently omitted.
	KeyColumnNames []string

	// ForcePagination overrides the AGGREGATION single-shot shortcut,
	// per spec.md §4.4 step 2 ("the request does not force pagination").
	ForcePagination bool
}

// consolidationType is a small accessor so the per-shard inner loop
// reads one field instead of reaching into req.Verdict everywhere.
func (r *Request) consolidationType() catalog.ConsolidationType {
	return r.Verdict.ConsolidationType
}
