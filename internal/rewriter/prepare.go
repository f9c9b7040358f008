package rewriter

import (
	"strconv"
	"strings"

	"github.com/1auti/dynamic-querys-sub000/internal/analyzer"
	"github.com/1auti/dynamic-querys-sub000/internal/catalog"
	"github.com/1auti/dynamic-querys-sub000/internal/sqlscan"
)

// prepareForPagination implements spec.md §4.3 step 3: for
// KEYSET_WITH_ID, inject the primary id column as the first projected
// column if it's missing, and shift any positional GROUP BY references
// by one to account for it.
func prepareForPagination(sql string, pag analyzer.PaginationVerdict, hasID bool) string {
	if pag.Strategy != catalog.PaginationKeysetWithID || hasID {
		return sql
	}

	selectIdx := sqlscan.FindTopLevelKeyword(sql, "SELECT")
	if selectIdx < 0 {
		return sql
	}
	insertAt := selectIdx + len("SELECT")
	rest := sql[insertAt:]
	trimmed := strings.TrimLeft(rest, " ")
	skipped := len(rest) - len(trimmed)
	if strings.HasPrefix(strings.ToUpper(trimmed), "DISTINCT") {
		afterWord := insertAt + skipped + len("DISTINCT")
		if afterWord < len(sql) && !isWordChar(sql[afterWord]) {
			insertAt = afterWord
		}
	}

	sql = sql[:insertAt] + " id," + sql[insertAt:]
	return shiftPositionalGroupBy(sql, 1)
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// shiftPositionalGroupBy rewrites a positional GROUP BY clause (e.g.
// "GROUP BY 1, 3") by adding delta to each position, per spec.md §4.3
// step 3 ("shift indices by +1 accordingly").
func shiftPositionalGroupBy(sql string, delta int) string {
	segment, start, end := sqlscan.TopLevelSegment(sql, "GROUP BY", "HAVING", "ORDER BY", "LIMIT")
	if start < 0 {
		return sql
	}
	items := sqlscan.SplitTopLevel(segment, ',')
	allPositional := len(items) > 0
	for _, item := range items {
		if _, err := strconv.Atoi(strings.TrimSpace(item)); err != nil {
			allPositional = false
			break
		}
	}
	if !allPositional {
		return sql
	}
	shifted := make([]string, len(items))
	for i, item := range items {
		n, _ := strconv.Atoi(strings.TrimSpace(item))
		shifted[i] = strconv.Itoa(n + delta)
	}
	return sql[:start] + " " + strings.Join(shifted, ", ") + sql[end:]
}
