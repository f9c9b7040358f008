package analyzer

import (
	"fmt"

	"github.com/1auti/dynamic-querys-sub000/internal/catalog"
	"github.com/1auti/dynamic-querys-sub000/internal/sqlscan"
)

// Thresholds are the row-count cutoffs between consolidation types, per
// spec.md §4.1 step 6. They are configuration, not constants — catalog
// authors in unusual environments may want to tune them — but the
// defaults match the spec exactly.
type Thresholds struct {
	StreamingAt  int // estimate >= this -> AGGREGATION_STREAMING
	HighVolumeAt int // estimate >= this -> AGGREGATION_HIGH_VOLUME
}

// DefaultThresholds returns the spec's stated boundaries: 50_000 and
// 100_000.
func DefaultThresholds() Thresholds {
	return Thresholds{StreamingAt: 50_000, HighVolumeAt: 100_000}
}

// Analyzer implements the Query Analyzer (C3).
type Analyzer struct {
	Oracle     CardinalityOracle
	Thresholds Thresholds
}

// New returns an Analyzer using the default cardinality table and
// thresholds.
func New() *Analyzer {
	return &Analyzer{Oracle: DefaultCardinalityOracle{}, Thresholds: DefaultThresholds()}
}

// Analyze classifies sql and returns a Verdict. It never returns an
// error: on any parse failure it returns Empty() per spec.md §4.1
// ("Failure modes... never throws").
func (a *Analyzer) Analyze(sql string) Verdict {
	normalized := sqlscan.Normalize(sql)

	selectList, ok := ExtractSelectList(normalized)
	if !ok {
		return Empty("could not locate a top-level SELECT ... FROM pair")
	}

	fields := ParseSelectFields(selectList)
	if len(fields) == 0 {
		return Empty("select list resolved to zero fields")
	}

	groupBy, hasGroupBy := ExtractGroupBy(normalized, fields)

	fieldTypeMap := make(map[string]FieldType, len(fields))
	var timeFields, locationFields, numericFields, groupingFields []string
	for _, f := range fields {
		fieldTypeMap[f.Name] = f.Type
		switch f.Type {
		case FieldTime:
			timeFields = append(timeFields, f.Name)
		case FieldLocation:
			locationFields = append(locationFields, f.Name)
		case FieldNumericSum, FieldNumericCount:
			numericFields = append(numericFields, f.Name)
		}
	}

	var groupByExprs []string
	hasExplicitLocationGrouping := false
	if hasGroupBy {
		for _, g := range groupBy {
			// Drop positions that point at aggregation functions, per
			// spec.md §4.1 step 4 ("drop positions that point at
			// aggregation functions").
			if g.Positional {
				if field, ok := fieldByName(fields, g.Name); ok && field.IsAggregate {
					continue
				}
			}
			groupByExprs = append(groupByExprs, g.Name)
			groupingFields = append(groupingFields, g.Name)
			if fieldTypeMap[g.Name] == FieldLocation {
				hasExplicitLocationGrouping = true
			}
		}
	}

	// "If no explicit location field is present, province is injected
	// as an implicit grouping." (spec.md §4.1 step 7)
	if hasGroupBy && !hasExplicitLocationGrouping {
		groupingFields = append(groupingFields, "province")
		fieldTypeMap["province"] = FieldLocation
	}

	consolidable := hasGroupBy && len(numericFields) >= 1 && len(groupingFields) >= 1

	var estimate *int
	var confidence float64
	var consolidationType catalog.ConsolidationType
	var explanation string

	switch {
	case !hasGroupBy:
		consolidationType = catalog.ConsolidationRaw
		explanation = "no GROUP BY detected; treated as a raw pass-through query"
	default:
		total := 1
		known := 0
		for _, g := range groupingFields {
			n, isKnown := estimateColumn(a.Oracle, g, fieldTypeMap[g])
			total *= n
			if isKnown {
				known++
			}
		}
		estimate = &total
		if len(groupingFields) > 0 {
			confidence = float64(known) / float64(len(groupingFields))
		}

		switch {
		case total < a.Thresholds.StreamingAt:
			consolidationType = catalog.ConsolidationAggregation
		case total < a.Thresholds.HighVolumeAt:
			consolidationType = catalog.ConsolidationAggregationStream
		default:
			consolidationType = catalog.ConsolidationHighVolume
		}
		explanation = fmt.Sprintf(
			"GROUP BY over %d field(s), estimated %d post-aggregation rows (%d/%d columns had a known cardinality)",
			len(groupingFields), total, known, len(groupingFields),
		)
	}

	return Verdict{
		Consolidable:      consolidable,
		GroupingFields:    groupingFields,
		NumericFields:     numericFields,
		TimeFields:        timeFields,
		LocationFields:    locationFields,
		FieldTypeMap:      fieldTypeMap,
		ConsolidationType: consolidationType,
		EstimatedRows:     estimate,
		Confidence:        confidence,
		Explanation:       explanation,
		SelectFields:      fields,
		HasGroupBy:        hasGroupBy,
		GroupByExprs:      groupByExprs,
	}
}

func fieldByName(fields []SelectField, name string) (SelectField, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return SelectField{}, false
}
