package analyzer

import (
	"regexp"
	"strings"
)

// explicitFieldTypes is the first rung of the classification cascade:
// exact resolved-name matches that are unambiguous in the traffic-
// violation domain regardless of heuristic matching.
var explicitFieldTypes = map[string]FieldType{
	"id":              FieldIdentifier,
	"provincia":       FieldLocation,
	"municipio":       FieldLocation,
	"localidad":       FieldLocation,
	"lugar":           FieldLocation,
	"fecha_infraccion": FieldTime,
	"fecha":           FieldTime,
	"total":           FieldNumericSum,
	"cantidad":        FieldNumericSum,
	"monto":           FieldNumericSum,
}

var aggregateFuncRE = regexp.MustCompile(`(?i)^\s*(SUM|COUNT|AVG|MAX|MIN)\s*\(`)

var (
	timeSubstrRE           = regexp.MustCompile(`(?i)fecha|date|month|year|week|day`)
	locationSubstrRE       = regexp.MustCompile(`(?i)provincia|municipio|localidad|lugar|location|province`)
	categorizationSubstrRE = regexp.MustCompile(`(?i)tipo|estado|categoria|category|status|type`)
	numericSumSubstrRE     = regexp.MustCompile(`(?i)total|sum|count|cantidad|monto|amount`)
	identifierSubstrRE     = regexp.MustCompile(`(?i)_id$|^id$|codigo|serie|serial`)
)

// ClassifyField returns the FieldType for a resolved field name, applying
// the cascade described in spec.md §4.1 step 3: explicit name map →
// aggregation-function regex → name-substring heuristics → DETAIL.
func ClassifyField(resolvedName, expr string) FieldType {
	lower := strings.ToLower(resolvedName)

	if t, ok := explicitFieldTypes[lower]; ok {
		return t
	}

	if aggregateFuncRE.MatchString(expr) {
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(expr)), "COUNT") {
			return FieldNumericCount
		}
		return FieldNumericSum
	}

	switch {
	case timeSubstrRE.MatchString(lower):
		return FieldTime
	case locationSubstrRE.MatchString(lower):
		return FieldLocation
	case categorizationSubstrRE.MatchString(lower):
		return FieldCategorization
	case numericSumSubstrRE.MatchString(lower):
		return FieldNumericSum
	case identifierSubstrRE.MatchString(lower):
		return FieldIdentifier
	default:
		return FieldDetail
	}
}

// isAggregateExpr reports whether expr is a call to an aggregation
// function, used both for classification and for excluding aggregate
// targets from positional GROUP BY resolution (spec.md §4.1 step 4).
func isAggregateExpr(expr string) bool {
	return aggregateFuncRE.MatchString(expr)
}
