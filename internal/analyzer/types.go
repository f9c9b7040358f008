// Package analyzer implements the Query Analyzer (C3) and the Pagination
// Strategy Analyzer (C4): given raw SQL text, classify its SELECT fields,
// detect GROUP BY, estimate post-aggregation row counts, and decide both
// a consolidation verdict and a pagination strategy.
package analyzer

import "github.com/1auti/dynamic-querys-sub000/internal/catalog"

// FieldType is the closed classification applied to every resolved
// SELECT item, per spec.md §3.
type FieldType string

const (
	FieldLocation       FieldType = "LOCATION"
	FieldTime           FieldType = "TIME"
	FieldCategorization FieldType = "CATEGORIZATION"
	FieldNumericSum     FieldType = "NUMERIC_SUM"
	FieldNumericCount   FieldType = "NUMERIC_COUNT"
	FieldIdentifier     FieldType = "IDENTIFIER"
	FieldDetail         FieldType = "DETAIL"
	FieldComputed       FieldType = "COMPUTED"
)

// SelectField is one resolved item from the top-level SELECT list.
type SelectField struct {
	// Expr is the original expression text (e.g. "pc.serial_equipment",
	// "DATE_TRUNC('month', i.fecha_infraccion)").
	Expr string
	// Name is the resolved output name: the explicit alias if present,
	// otherwise derived per spec.md §4.1 step 2.
	Name string
	// Aliased reports whether Name came from an alias: an explicit
	// "AS alias" or a bare trailing one such as "count(*) cnt".
	Aliased bool
	// Type is the field's classification.
	Type FieldType
	// IsAggregate reports whether Expr is an aggregate function call
	// (SUM/COUNT/MAX/MIN/AVG), used when resolving positional GROUP BY
	// references (aggregation targets can never be grouping keys).
	IsAggregate bool
}

// Verdict is the Query Analyzer's output (C3), per spec.md §3.
type Verdict struct {
	Consolidable      bool
	GroupingFields    []string
	NumericFields     []string
	TimeFields        []string
	LocationFields    []string
	FieldTypeMap      map[string]FieldType
	ConsolidationType catalog.ConsolidationType
	EstimatedRows     *int
	Confidence        float64
	Explanation       string

	// SelectFields is the full resolved select list, kept for the
	// Pagination Strategy Analyzer and the Rewriter to consult without
	// re-parsing the SQL.
	SelectFields []SelectField
	// HasGroupBy reports whether a GROUP BY clause was detected.
	HasGroupBy bool
	// GroupByExprs holds the resolved (non-positional) grouping
	// expressions in declaration order.
	GroupByExprs []string
}

// Empty returns the "could not analyze" verdict returned on any parse
// failure, per spec.md §4.1 ("Failure modes").
func Empty(explanation string) Verdict {
	return Verdict{
		Consolidable: false,
		FieldTypeMap: map[string]FieldType{},
		Confidence:   0,
		Explanation:  explanation,
	}
}

// KeyColumn is one column contributing to a pagination key, per spec.md
// §3 (Pagination Verdict).
type KeyColumn struct {
	Name      string
	ParamName string
	SQLType   string
}

// PaginationVerdict is the Pagination Strategy Analyzer's output (C4).
type PaginationVerdict struct {
	Strategy   catalog.PaginationStrategy
	KeyColumns []KeyColumn
	Rationale  string
}
