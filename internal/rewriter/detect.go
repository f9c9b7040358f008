package rewriter

import (
	"regexp"
)

// filterPattern pairs a recognized hardcoded-filter kind with the regex
// that finds it in a (placeholder-protected) WHERE clause, per spec.md
// §4.3 step 4. The five kinds match the five parameterized filters the
// rewriter re-injects in step 7.
type filterPattern struct {
	kind filterKind
	re   *regexp.Regexp
}

var filterPatterns = []filterPattern{
	{filterDate, regexp.MustCompile(`(?i)[a-z_]*fecha[a-z_]*\s+BETWEEN\s+'[^']*'\s+AND\s+'[^']*'`)},
	{filterDate, regexp.MustCompile(`(?i)[a-z_]*fecha[a-z_]*\s*(>=|<=|>|<|=)\s*'[^']*'`)},
	{filterInfractionState, regexp.MustCompile(`(?i)id_estado\s+IN\s*\([^()]*\)`)},
	{filterInfractionType, regexp.MustCompile(`(?i)id_tipo_infra\s+IN\s*\([^()]*\)`)},
	{filterExportedToExternal, regexp.MustCompile(`(?i)exporta_sacit\s*=\s*(true|false)`)},
	{filterLocation, regexp.MustCompile(`(?i)\b(provincia|municipio|localidad|lugar)\b\s*(=\s*'[^']*'|IN\s*\([^()]*\))`)},
}

// detectFilters scans sql for occurrences of the five recognized
// hardcoded filter shapes, returned in source order.
func detectFilters(sql string) []detectedFilter {
	var found []detectedFilter
	for _, p := range filterPatterns {
		for _, loc := range p.re.FindAllStringIndex(sql, -1) {
			text := sql[loc[0]:loc[1]]
			found = append(found, detectedFilter{
				kind:   p.kind,
				start:  loc[0],
				end:    loc[1],
				text:   text,
				column: detectColumn(p.kind, text),
			})
		}
	}
	return dedupeOverlaps(found)
}

var locationColumnRE = regexp.MustCompile(`(?i)^(provincia|municipio|localidad|lugar)`)
var dateColumnRE = regexp.MustCompile(`(?i)^([a-z_]*fecha[a-z_]*)`)

// detectColumn extracts the column name a detected filter applies to,
// used when assembling the parameterized re-injection in step 7.
func detectColumn(kind filterKind, text string) string {
	switch kind {
	case filterDate:
		if m := dateColumnRE.FindStringSubmatch(text); m != nil {
			return m[1]
		}
		return "fecha_infraccion"
	case filterInfractionState:
		return "id_estado"
	case filterInfractionType:
		return "id_tipo_infra"
	case filterExportedToExternal:
		return "exporta_sacit"
	case filterLocation:
		if m := locationColumnRE.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// dedupeOverlaps drops any detectedFilter whose span is fully contained
// in an earlier one (the date alternation can otherwise double-match a
// BETWEEN clause with both the BETWEEN pattern and the comparison
// pattern).
func dedupeOverlaps(in []detectedFilter) []detectedFilter {
	var out []detectedFilter
	for _, f := range in {
		contained := false
		for _, existing := range out {
			if f.start >= existing.start && f.end <= existing.end {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, f)
		}
	}
	return out
}
