package rewriter

import (
	"github.com/1auti/dynamic-querys-sub000/internal/analyzer"
	"github.com/1auti/dynamic-querys-sub000/internal/sqlscan"
)

// Rewrite implements the Query Rewriter (C5) contract: rewrite(sql,
// paginationVerdict, filterShape) -> sql'. It is a pure function; no
// runtime filter values are bound here, only placeholders for C6 to
// fill in later.
//
// Pipeline order follows spec.md §4.3 exactly: normalize, protect,
// prepare-for-pagination, detect, strip, restore, inject, append
// pagination.
func Rewrite(sql string, verdict analyzer.Verdict, pag analyzer.PaginationVerdict) Result {
	sql = sqlscan.Normalize(sql)

	protectedSQL, p := protect(sql)

	hasID := false
	for _, f := range verdict.SelectFields {
		if f.Type == analyzer.FieldIdentifier && (f.Name == "id") {
			hasID = true
			break
		}
	}
	protectedSQL = prepareForPagination(protectedSQL, pag, hasID)

	found := detectFilters(protectedSQL)
	protectedSQL = stripFilters(protectedSQL, found)

	restored := restore(protectedSQL, p)

	injected, filterParams := injectFilters(restored, found)

	distinct := analyzer.IsDistinct(sql)
	final, pagParams := appendPagination(injected, pag, distinct)

	params := append(append([]string{}, filterParams...), pagParams...)
	return Result{SQL: final, Params: dedupeStrings(params), Pagination: pag}
}
