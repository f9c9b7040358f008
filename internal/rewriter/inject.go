package rewriter

import (
	"fmt"
	"strings"

	"github.com/1auti/dynamic-querys-sub000/internal/sqlscan"
)

// injectFilters re-injects each recognized filter kind using the
// null-passthrough template "(:param IS NULL OR column op :param)",
// per spec.md §4.3 step 7. It appends the clause to the WHERE (or
// introduces one) and returns the parameter names it used.
func injectFilters(sql string, found []detectedFilter) (string, []string) {
	seen := map[filterKind]string{}
	for _, f := range found {
		if _, ok := seen[f.kind]; !ok && f.column != "" {
			seen[f.kind] = f.column
		}
	}

	var clauses []string
	var params []string
	addClause := func(clause string, ps ...string) {
		clauses = append(clauses, clause)
		params = append(params, ps...)
	}

	if col, ok := seen[filterDate]; ok {
		addClause(fmt.Sprintf("(:specificDate IS NULL OR %s = :specificDate)", col), "specificDate")
		addClause(fmt.Sprintf("(:startDate IS NULL OR %s >= :startDate)", col), "startDate")
		addClause(fmt.Sprintf("(:endDate IS NULL OR %s <= :endDate)", col), "endDate")
	}
	if col, ok := seen[filterInfractionState]; ok {
		addClause(fmt.Sprintf("(:infractionStates IS NULL OR %s = ANY(:infractionStates))", col), "infractionStates")
	}
	if col, ok := seen[filterInfractionType]; ok {
		addClause(fmt.Sprintf("(:infractionTypes IS NULL OR %s = ANY(:infractionTypes))", col), "infractionTypes")
	}
	if col, ok := seen[filterExportedToExternal]; ok {
		addClause(fmt.Sprintf("(:exportedToExternal IS NULL OR %s = :exportedToExternal)", col), "exportedToExternal")
	}
	if col, ok := seen[filterLocation]; ok {
		addClause(fmt.Sprintf("(:%s IS NULL OR %s = :%s)", col, col, col), col)
	}

	if len(clauses) == 0 {
		return sql, nil
	}
	return appendWhereClauses(sql, clauses), params
}

// appendWhereClauses adds clauses (joined with AND) to sql's WHERE
// clause, introducing one before GROUP BY/ORDER BY/LIMIT if none
// exists yet.
func appendWhereClauses(sql string, clauses []string) string {
	addition := strings.Join(clauses, " AND ")

	whereIdx := sqlscan.FindTopLevelKeyword(sql, "WHERE")
	if whereIdx >= 0 {
		insertAt := findWhereInsertionPoint(sql, whereIdx)
		return sql[:insertAt] + " AND " + addition + sql[insertAt:]
	}

	insertAt := len(sql)
	for _, kw := range []string{"GROUP BY", "ORDER BY", "LIMIT"} {
		if idx := sqlscan.FindTopLevelKeyword(sql, kw); idx >= 0 && idx < insertAt {
			insertAt = idx
		}
	}
	return strings.TrimRight(sql[:insertAt], " ") + " WHERE " + addition + " " + sql[insertAt:]
}

func findWhereInsertionPoint(sql string, whereIdx int) int {
	end := len(sql)
	for _, kw := range []string{"GROUP BY", "ORDER BY", "LIMIT"} {
		if idx := sqlscan.FindTopLevelKeyword(sql[whereIdx:], kw); idx >= 0 {
			if abs := whereIdx + idx; abs < end {
				end = abs
			}
		}
	}
	return end
}
