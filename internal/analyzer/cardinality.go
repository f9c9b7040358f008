package analyzer

import "strings"

// CardinalityOracle estimates the distinct-value count for a grouping
// column. Consulted before the static table, per the Open Question
// resolution in SPEC_FULL.md §9 ("cardinality-table misses"): catalog
// authors can override per-column estimates without forking the
// analyzer.
type CardinalityOracle interface {
	// EstimateDistinct returns the estimated number of distinct values
	// for column, and whether the oracle has an opinion at all.
	EstimateDistinct(column string) (int, bool)
}

// defaultCardinality is the static table from spec.md §4.1 step 5.
var defaultCardinality = map[string]int{
	"provincia":        24,
	"province":         24,
	"month":            12,
	"day":              31,
	"year":             5,
	"week_day":         7,
	"weekday":          7,
	"tipo_infraccion":  50,
	"infraction_type":  50,
	"estado":           10,
	"state":            10,
	"serie_equipo":     100,
	"equipment_serial": 100,
	"municipio":        500,
	"municipality":     500,
	"localidad":        2000,
	"locality":         2000,
	"lugar":            5000,
	"place":            5000,
}

// typeDefaults are the fallbacks applied when a grouping column isn't in
// the static table, keyed by FieldType, per spec.md §4.1 step 5.
var typeDefaults = map[FieldType]int{
	FieldLocation:       500,
	FieldTime:           365,
	FieldCategorization: 20,
	FieldIdentifier:     1000,
	FieldNumericSum:     100,
	FieldNumericCount:   100,
}

// DefaultCardinalityOracle wraps the static table described in spec.md
// §4.1 step 5.
type DefaultCardinalityOracle struct{}

var _ CardinalityOracle = DefaultCardinalityOracle{}

// EstimateDistinct implements CardinalityOracle.
func (DefaultCardinalityOracle) EstimateDistinct(column string) (int, bool) {
	n, ok := defaultCardinality[strings.ToLower(column)]
	return n, ok
}

// estimateColumn resolves a single grouping column's cardinality,
// consulting oracle first and falling back to a type-based default.
func estimateColumn(oracle CardinalityOracle, column string, t FieldType) (estimate int, known bool) {
	if oracle != nil {
		if n, ok := oracle.EstimateDistinct(column); ok {
			return n, true
		}
	}
	if n, ok := defaultCardinality[strings.ToLower(column)]; ok {
		return n, true
	}
	if n, ok := typeDefaults[t]; ok {
		return n, false
	}
	return 100, false
}
