package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/1auti/dynamic-querys-sub000/internal/catalog"
)

var idColumnRE = regexp.MustCompile(`(?i)(^|\.)(id)$`)

// orderedColumnCandidates lists the column-name substrings the
// Pagination Strategy Analyzer looks for when assembling a composite
// keyset, in priority order, per spec.md §4.2.
var orderedColumnCandidates = []string{"serial", "serie", "place", "lugar", "fecha", "date", "tipo", "type"}

// AnalyzePagination implements the Pagination Strategy Analyzer (C4): it
// chooses one strategy per SQL, in the priority order given in spec.md
// §4.2, and emits up to 4 key columns with parameter placeholders and
// SQL type hints.
//
// The traffic-violation primary tables are keyed by "id" by domain
// convention, so an id-like column is treated as "in scope" for any
// non-grouped query even when it isn't in the SELECT list yet — the
// Rewriter (C5) injects it in that case, per spec.md §4.3 step 3. A
// query is only routed to COMPOSITE_KEYSET instead when an explicit,
// differently-named identifier column shows the primary key is not
// "id" (e.g. a table keyed by a serial/code column).
func AnalyzePagination(verdict Verdict) PaginationVerdict {
	if !verdict.HasGroupBy {
		// An id-like column in scope always wins, even when a
		// differently-named identifier is also present: KEYSET_WITH_ID
		// takes priority over COMPOSITE_KEYSET per spec.md §4.2.
		idCol, hasID := findIDColumn(verdict.SelectFields)

		if !hasID {
			if altID, ok := findNonIDIdentifier(verdict.SelectFields); ok {
				cols := []KeyColumn{{Name: altID, SQLType: "TEXT"}}
				cols = append(cols, secondaryOrderColumns(verdict.SelectFields, altID, 2, noParamName)...)
				if len(cols) > 1 {
					assignCompositeParamNames(cols)
					return PaginationVerdict{
						Strategy:   catalog.PaginationCompositeKeyset,
						KeyColumns: cols,
						Rationale:  "the primary table's key column is not named id; composing a keyset from ordered non-null columns",
					}
				}
			}
		}

		if idCol == "" {
			idCol = "id"
		}
		cols := []KeyColumn{{Name: idCol, ParamName: "lastId", SQLType: "BIGINT"}}
		cols = append(cols, secondaryOrderColumns(verdict.SelectFields, idCol, 3, keysetParamName)...)
		return PaginationVerdict{
			Strategy:   catalog.PaginationKeysetWithID,
			KeyColumns: cols,
			Rationale:  "an id-like integer column from the primary table is in scope and there is no GROUP BY",
		}
	}

	if verdict.HasGroupBy && formsStableOrder(verdict.GroupByExprs) {
		cols := make([]KeyColumn, 0, len(verdict.GroupByExprs))
		for i, g := range verdict.GroupByExprs {
			// Capped at 3: binder.Bind and Filter.LastCompositeKey only
			// carry 3 keyset_col_N slots (Filter.Validate enforces the
			// same cap), the same limit COMPOSITE_KEYSET observes.
			if i >= 3 {
				break
			}
			cols = append(cols, KeyColumn{
				Name:    g,
				SQLType: sqlTypeHint(verdict.FieldTypeMap[g]),
			})
		}
		assignCompositeParamNames(cols)
		return PaginationVerdict{
			Strategy:   catalog.PaginationConsolidationKeyset,
			KeyColumns: cols,
			Rationale:  "GROUP BY columns form a stable total order",
		}
	}

	if verdict.EstimatedRows != nil && *verdict.EstimatedRows > 0 && *verdict.EstimatedRows < 1_000_000 {
		return PaginationVerdict{
			Strategy:  catalog.PaginationOffset,
			Rationale: "sortable columns are unclear but the result size is bounded",
		}
	}

	if verdict.ConsolidationType == catalog.ConsolidationRaw && !verdict.HasGroupBy {
		return PaginationVerdict{
			Strategy:  catalog.PaginationLimitOnly,
			Rationale: "a single-shot bounded read suffices",
		}
	}

	return PaginationVerdict{
		Strategy:  catalog.PaginationNone,
		Rationale: "the query is intrinsically bounded (pure aggregation returning few rows)",
	}
}

func findIDColumn(fields []SelectField) (string, bool) {
	for _, f := range fields {
		if f.Type == FieldIdentifier && idColumnRE.MatchString(strings.ToLower(f.Name)) {
			return f.Name, true
		}
	}
	for _, f := range fields {
		if strings.EqualFold(f.Name, "id") {
			return f.Name, true
		}
	}
	return "", false
}

// findNonIDIdentifier looks for an explicit IDENTIFIER-typed field that
// is NOT named "id" — a signal that the primary table's key column has
// a different name, per the AnalyzePagination doc comment above.
func findNonIDIdentifier(fields []SelectField) (string, bool) {
	for _, f := range fields {
		if f.Type == FieldIdentifier && !idColumnRE.MatchString(strings.ToLower(f.Name)) && !strings.EqualFold(f.Name, "id") {
			return f.Name, true
		}
	}
	return "", false
}

func secondaryOrderColumns(fields []SelectField, excludeName string, max int, namer func(int) string) []KeyColumn {
	var cols []KeyColumn
	for _, candidate := range orderedColumnCandidates {
		for _, f := range fields {
			if len(cols) >= max {
				return cols
			}
			if strings.EqualFold(f.Name, excludeName) {
				continue
			}
			if strings.Contains(strings.ToLower(f.Name), candidate) {
				cols = append(cols, KeyColumn{
					Name:      f.Name,
					ParamName: namer(len(cols)),
					SQLType:   sqlTypeHint(f.Type),
				})
			}
		}
	}
	return cols
}

// noParamName leaves ParamName unset; used where assignCompositeParamNames
// names every column afterward in one pass.
func noParamName(int) string { return "" }

// assignCompositeParamNames names each column "keyset_col_<rank>", where
// rank is that column's position among cols sorted by Name. This matches
// binder.Bind's compositeKeyValue, which reads Filter.LastCompositeKey in
// sorted-key order, and captureCursor's Composite map, which is keyed by
// column Name — so the value bound to keyset_col_N is always the same
// column this verdict named keyset_col_N, independent of cols' own
// iteration order (kept in priority order for the OR-chain/ORDER BY).
func assignCompositeParamNames(cols []KeyColumn) {
	ranked := append([]KeyColumn(nil), cols...)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Name < ranked[j].Name })
	rank := make(map[string]int, len(ranked))
	for i, c := range ranked {
		rank[c.Name] = i
	}
	for i := range cols {
		cols[i].ParamName = keysetColParamName(rank[cols[i].Name])
	}
}

func orderedNonNullColumns(fields []SelectField, max int) []KeyColumn {
	var cols []KeyColumn
	for _, candidate := range orderedColumnCandidates {
		for _, f := range fields {
			if len(cols) >= max {
				return cols
			}
			if strings.Contains(strings.ToLower(f.Name), candidate) {
				cols = append(cols, KeyColumn{
					Name:      f.Name,
					ParamName: keysetParamName(len(cols)),
					SQLType:   sqlTypeHint(f.Type),
				})
			}
		}
	}
	return cols
}

func keysetParamName(i int) string {
	switch i {
	case 0:
		return "lastSerial"
	case 1:
		return "lastLocation"
	default:
		return "keyset_col_" + itoa(i-2)
	}
}

// keysetColParamName names the Nth composite/consolidation keyset slot,
// matching binder.Bind's keyset_col_N bindings (sourced from
// Filter.LastCompositeKey) and Filter.Validate's 3-value cap on it.
func keysetColParamName(i int) string {
	return "keyset_col_" + itoa(i)
}

func itoa(i int) string {
	if i < 10 {
		return string([]byte{byte('0' + i)})
	}
	return string([]byte{byte('0' + i/10), byte('0' + i%10)})
}

func sqlTypeHint(t FieldType) string {
	switch t {
	case FieldIdentifier:
		return "BIGINT"
	case FieldTime:
		return "TIMESTAMP"
	case FieldNumericSum, FieldNumericCount:
		return "NUMERIC"
	default:
		return "TEXT"
	}
}

// formsStableOrder reports whether a set of grouping expressions can
// serve as a total order for keyset pagination. In practice any
// non-empty grouping list is treated as ordered since GROUP BY columns
// are already projected and distinct by construction; an empty list
// cannot form an order.
func formsStableOrder(exprs []string) bool {
	return len(exprs) > 0
}
