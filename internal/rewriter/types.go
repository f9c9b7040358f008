// Package rewriter implements the Query Rewriter (C5): a pure function
// that takes catalog SQL plus a pagination verdict and returns
// parameterized SQL. All runtime values are bound later by
// internal/binder; the rewriter never touches actual filter values,
// only the shape of the query.
package rewriter

import "github.com/1auti/dynamic-querys-sub000/internal/analyzer"

// Result is the rewriter's output: the rewritten SQL plus every
// parameter name it wired in (filter and pagination), so the binder and the HTTP layer
// can cross-check coverage.
type Result struct {
	SQL        string
	Params     []string
	Pagination analyzer.PaginationVerdict
}

// filterKind enumerates the five hardcoded filter shapes the rewriter
// recognizes in catalog SQL, per spec.md §4.3 step 4.
type filterKind int

const (
	filterDate filterKind = iota
	filterInfractionState
	filterInfractionType
	filterExportedToExternal
	filterLocation
)

// detectedFilter is one hardcoded filter occurrence found in the WHERE
// clause, with enough span information to strip it.
type detectedFilter struct {
	kind       filterKind
	start, end int
	text       string
	column     string
}
