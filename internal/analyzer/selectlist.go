package analyzer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/1auti/dynamic-querys-sub000/internal/sqlscan"
)

var (
	aliasRE      = regexp.MustCompile(`(?i)^(.*?)\s+AS\s+([A-Za-z_][A-Za-z0-9_]*)\s*$`)
	bareAliasRE  = regexp.MustCompile(`(?i)^(.*[)\w])\s+([A-Za-z_][A-Za-z0-9_]*)\s*$`)
	dateTruncRE  = regexp.MustCompile(`(?i)^DATE_TRUNC\s*\(\s*'([a-z]+)'\s*,\s*.+\)$`)
	extractRE    = regexp.MustCompile(`(?i)^EXTRACT\s*\(\s*([A-Za-z]+)\s+FROM\s+.+\)$`)
	toCharRE     = regexp.MustCompile(`(?i)^TO_CHAR\s*\(\s*([A-Za-z0-9_.]+)\s*,.*\)$`)
	dateFuncRE   = regexp.MustCompile(`(?i)^DATE\s*\(\s*([A-Za-z0-9_.]+)\s*\)$`)
	tablePrefixRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\.`)
)

// ExtractSelectList locates the outermost SELECT ... FROM pair (tracking
// parenthesis depth and string literals, per spec.md §4.1 step 1) and
// returns the raw select-list text.
func ExtractSelectList(sql string) (string, bool) {
	selectIdx := sqlscan.FindTopLevelKeyword(sql, "SELECT")
	if selectIdx < 0 {
		return "", false
	}
	afterSelect := selectIdx + len("SELECT")

	// Skip an optional DISTINCT keyword so it isn't mistaken for a
	// select-list item.
	rest := sql[afterSelect:]
	trimmed := strings.TrimLeft(rest, " ")
	skipped := len(rest) - len(trimmed)
	if strings.HasPrefix(strings.ToUpper(trimmed), "DISTINCT") {
		// Only treat as DISTINCT if it's a whole word.
		afterWord := afterSelect + skipped + len("DISTINCT")
		if afterWord >= len(sql) || !isIdentRune(sql[afterWord]) {
			afterSelect = afterWord
		}
	}

	fromIdx := sqlscan.FindTopLevelKeyword(sql[afterSelect:], "FROM")
	if fromIdx < 0 {
		return "", false
	}
	return strings.TrimSpace(sql[afterSelect : afterSelect+fromIdx]), true
}

func isIdentRune(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// IsDistinct reports whether the query's SELECT clause carries DISTINCT,
// consulted by the rewriter when deciding whether COALESCE-wrapped
// composite-keyset comparisons are safe to emit (spec.md §4.3 step 8).
func IsDistinct(sql string) bool {
	selectIdx := sqlscan.FindTopLevelKeyword(sql, "SELECT")
	if selectIdx < 0 {
		return false
	}
	rest := strings.TrimLeft(sql[selectIdx+len("SELECT"):], " ")
	return strings.HasPrefix(strings.ToUpper(rest), "DISTINCT")
}

// ParseSelectFields splits a select-list string into SelectField entries,
// resolving aliases and wrapping-function names per spec.md §4.1 step 2.
func ParseSelectFields(selectList string) []SelectField {
	items := sqlscan.SplitTopLevel(selectList, ',')
	fields := make([]SelectField, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		fields = append(fields, resolveField(item))
	}
	return fields
}

func resolveField(expr string) SelectField {
	if m := aliasRE.FindStringSubmatch(expr); m != nil {
		base := strings.TrimSpace(m[1])
		alias := m[2]
		return SelectField{
			Expr:        base,
			Name:        alias,
			Aliased:     true,
			IsAggregate: isAggregateExpr(base),
			Type:        ClassifyField(alias, base),
		}
	}

	// A bare trailing identifier after a closing paren or another
	// identifier is also an (unquoted) alias, e.g. "count(*) cnt".
	if m := bareAliasRE.FindStringSubmatch(expr); m != nil && looksLikeImplicitAlias(m[1], m[2]) {
		base := strings.TrimSpace(m[1])
		alias := m[2]
		return SelectField{
			Expr:        base,
			Name:        alias,
			Aliased:     true,
			IsAggregate: isAggregateExpr(base),
			Type:        ClassifyField(alias, base),
		}
	}

	name := deriveName(expr)
	return SelectField{
		Expr:        expr,
		Name:        name,
		Aliased:     false,
		IsAggregate: isAggregateExpr(expr),
		Type:        ClassifyField(name, expr),
	}
}

// looksLikeImplicitAlias guards against treating a multi-word function
// call's last argument as an alias (it shouldn't trigger when base still
// contains an unbalanced paren, meaning the "alias" candidate is actually
// inside the expression).
func looksLikeImplicitAlias(base, candidate string) bool {
	if strings.EqualFold(candidate, "FROM") || strings.EqualFold(candidate, "AS") {
		return false
	}
	open := strings.Count(base, "(")
	closeP := strings.Count(base, ")")
	return open == closeP
}

// deriveName implements spec.md §4.1 step 2's wrapping-function rules:
// DATE_TRUNC('month', x) -> "month", EXTRACT(YEAR FROM x) -> "year",
// TO_CHAR(x, ...) -> "x", DATE(x) -> "x"; otherwise strip a table prefix.
func deriveName(expr string) string {
	trimmed := strings.TrimSpace(expr)

	if m := dateTruncRE.FindStringSubmatch(trimmed); m != nil {
		return strings.ToLower(m[1])
	}
	if m := extractRE.FindStringSubmatch(trimmed); m != nil {
		return strings.ToLower(m[1])
	}
	if m := toCharRE.FindStringSubmatch(trimmed); m != nil {
		return stripTablePrefix(m[1])
	}
	if m := dateFuncRE.FindStringSubmatch(trimmed); m != nil {
		return stripTablePrefix(m[1])
	}

	return stripTablePrefix(trimmed)
}

func stripTablePrefix(s string) string {
	return tablePrefixRE.ReplaceAllString(s, "")
}

// GroupByColumn is one resolved GROUP BY entry, after positional
// references have been mapped back onto the SELECT list.
type GroupByColumn struct {
	Expr       string
	Name       string
	Positional bool
	Position   int
}

// ExtractGroupBy locates a top-level GROUP BY clause and resolves any
// positional references (e.g. "GROUP BY 1,3") against fields, per
// spec.md §4.1 step 4.
func ExtractGroupBy(sql string, fields []SelectField) ([]GroupByColumn, bool) {
	segment, start, _ := sqlscan.TopLevelSegment(sql, "GROUP BY", "HAVING", "ORDER BY", "LIMIT")
	if start < 0 {
		return nil, false
	}
	items := sqlscan.SplitTopLevel(segment, ',')
	var cols []GroupByColumn
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if pos, err := strconv.Atoi(item); err == nil {
			idx := pos - 1
			if idx >= 0 && idx < len(fields) {
				cols = append(cols, GroupByColumn{
					Expr:       fields[idx].Expr,
					Name:       fields[idx].Name,
					Positional: true,
					Position:   pos,
				})
			}
			continue
		}
		cols = append(cols, GroupByColumn{Expr: item, Name: deriveName(item)})
	}
	return cols, true
}
