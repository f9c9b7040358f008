package rewriter

import (
	"fmt"
	"strings"

	"github.com/1auti/dynamic-querys-sub000/internal/analyzer"
	"github.com/1auti/dynamic-querys-sub000/internal/catalog"
	"github.com/1auti/dynamic-querys-sub000/internal/sqlscan"
)

// appendPagination implements spec.md §4.3 step 8: append the keyset
// predicate, ORDER BY, and LIMIT/OFFSET appropriate to the chosen
// pagination strategy. Step 9's idempotence guard (never emit a second
// LIMIT) is applied here.
func appendPagination(sql string, pag analyzer.PaginationVerdict, distinct bool) (string, []string) {
	var params []string

	switch pag.Strategy {
	case catalog.PaginationKeysetWithID:
		predicate, cols := keysetWithIDPredicate(pag.KeyColumns)
		sql = appendWhereClauses(sql, []string{predicate})
		sql = appendOrderBy(sql, orderByColumns(pag.KeyColumns))
		sql, limitParams := appendLimit(sql)
		params = append(append(cols, "lastId"), limitParams...)
		return sql, dedupeStrings(params)

	case catalog.PaginationCompositeKeyset:
		predicate, cols := compositeKeysetPredicate(pag.KeyColumns, distinct)
		sql = appendWhereClauses(sql, []string{predicate})
		sql = appendOrderBy(sql, orderByColumns(pag.KeyColumns))
		sql, limitParams := appendLimit(sql)
		params = append(cols, limitParams...)
		return sql, dedupeStrings(params)

	case catalog.PaginationConsolidationKeyset:
		predicate, cols := compositeKeysetPredicate(pag.KeyColumns, distinct)
		sql = insertBeforeGroupBy(sql, predicate)
		sql, limitParams := appendLimit(sql)
		params = append(cols, limitParams...)
		return sql, dedupeStrings(params)

	case catalog.PaginationOffset:
		sql, limitParams := appendLimitOffset(sql)
		return sql, limitParams

	case catalog.PaginationLimitOnly:
		sql, limitParams := appendLimit(sql)
		return sql, limitParams

	default: // NONE
		if hasLimit(sql) {
			return sql, nil
		}
		sql, limitParams := appendLimit(sql)
		return sql, limitParams
	}
}

func hasLimit(sql string) bool {
	return sqlscan.FindTopLevelKeyword(sql, "LIMIT") >= 0
}

// appendLimit adds "LIMIT :limit" unless sql already has one, per the
// idempotence guard in spec.md §4.3 step 9.
func appendLimit(sql string) (string, []string) {
	if hasLimit(sql) {
		return sql, nil
	}
	return strings.TrimRight(sql, " ") + " LIMIT :limit", []string{"limit"}
}

func appendLimitOffset(sql string) (string, []string) {
	if hasLimit(sql) {
		return sql, nil
	}
	return strings.TrimRight(sql, " ") + " LIMIT :limit OFFSET :offset", []string{"limit", "offset"}
}

func appendOrderBy(sql string, cols []string) string {
	if sqlscan.FindTopLevelKeyword(sql, "ORDER BY") >= 0 || len(cols) == 0 {
		return sql
	}
	insertAt := len(sql)
	if idx := sqlscan.FindTopLevelKeyword(sql, "LIMIT"); idx >= 0 {
		insertAt = idx
	}
	clause := "ORDER BY " + strings.Join(cols, " ASC, ") + " ASC "
	return strings.TrimRight(sql[:insertAt], " ") + " " + clause + sql[insertAt:]
}

func insertBeforeGroupBy(sql string, predicate string) string {
	idx := sqlscan.FindTopLevelKeyword(sql, "GROUP BY")
	if idx < 0 {
		return appendWhereClauses(sql, []string{predicate})
	}
	return appendWhereClauses(sql[:idx], []string{predicate}) + " " + sql[idx:]
}

func orderByColumns(cols []analyzer.KeyColumn) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// keysetWithIDPredicate builds the cascading OR-chain for
// KEYSET_WITH_ID: "id > :lastId OR (id = :lastId AND col2 > :lastCol2)
// OR ...", guarded by "(:lastId IS NULL OR ...)".
func keysetWithIDPredicate(cols []analyzer.KeyColumn) (string, []string) {
	if len(cols) == 0 {
		return "(:lastId IS NULL)", []string{"lastId"}
	}
	var terms []string
	var equalPrefix []string
	var params []string
	for _, c := range cols {
		var eq string
		if len(equalPrefix) > 0 {
			eq = strings.Join(equalPrefix, " AND ") + " AND "
		}
		terms = append(terms, fmt.Sprintf("(%s%s > :%s)", eq, c.Name, c.ParamName))
		equalPrefix = append(equalPrefix, fmt.Sprintf("%s = :%s", c.Name, c.ParamName))
		params = append(params, c.ParamName)
	}
	return fmt.Sprintf("(:%s IS NULL OR %s)", cols[0].ParamName, strings.Join(terms, " OR ")), params
}

// compositeKeysetPredicate builds the same cascading OR-chain for
// COMPOSITE_KEYSET/CONSOLIDATION_KEYSET, applying a NULL-safe COALESCE
// wrapper unless the query is DISTINCT (spec.md §4.3 step 8).
// Caveat: under COALESCE a NULL key and an empty-string key compare
// equal; on the DISTINCT path a NULL key makes the comparison unknown,
// so a row whose key column is NULL is not matched once a cursor is set.
func compositeKeysetPredicate(cols []analyzer.KeyColumn, distinct bool) (string, []string) {
	if len(cols) == 0 {
		return "(1=1)", nil
	}
	var terms []string
	var equalPrefix []string
	var params []string
	for _, c := range cols {
		lhs, rhs := c.Name, ":"+c.ParamName
		if !distinct {
			lhs = fmt.Sprintf("COALESCE(%s, '')", c.Name)
			rhs = fmt.Sprintf("COALESCE(:%s, '')", c.ParamName)
		}
		var eq string
		if len(equalPrefix) > 0 {
			eq = strings.Join(equalPrefix, " AND ") + " AND "
		}
		terms = append(terms, fmt.Sprintf("(%s%s > %s)", eq, lhs, rhs))
		equalPrefix = append(equalPrefix, fmt.Sprintf("%s = %s", lhs, rhs))
		params = append(params, c.ParamName)
	}
	return fmt.Sprintf("(:%s IS NULL OR %s)", cols[0].ParamName, strings.Join(terms, " OR ")), params
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
