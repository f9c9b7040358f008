package rewriter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/1auti/dynamic-querys-sub000/internal/sqlscan"
)

// protected holds the placeholder substitutions made by protect, so
// restore can put the originals back verbatim after the strip/inject
// passes have rewritten everything around them.
type protected struct {
	exists     []string
	subselects []string
	cases      []string
}

var (
	existsRE = regexp.MustCompile(`(?i)\bEXISTS\s*\(`)
	caseRE   = regexp.MustCompile(`(?i)\bCASE\b`)
	endRE    = regexp.MustCompile(`(?i)\bEND\b`)
)

// protect replaces EXISTS(...), scalar SELECT (...) subqueries, and
// CASE...END expressions with opaque placeholders, per spec.md §4.3
// step 2. It is intentionally conservative: anything it cannot cleanly
// delimit is left untouched rather than risk corrupting the query.
func protect(sql string) (string, *protected) {
	p := &protected{}
	sql = protectExists(sql, p)
	sql = protectCase(sql, p)
	sql = protectScalarSubselects(sql, p)
	return sql, p
}

func protectExists(sql string, p *protected) string {
	for {
		loc := existsRE.FindStringIndex(sql)
		if loc == nil {
			return sql
		}
		openIdx := loc[1] - 1
		closeIdx := sqlscan.MatchingParen(sql, openIdx)
		if closeIdx < 0 {
			// Unbalanced; stop trying rather than loop forever on the
			// same unmatched EXISTS.
			return sql
		}
		original := sql[loc[0] : closeIdx+1]
		placeholder := fmt.Sprintf("___EXISTS_%d___", len(p.exists))
		p.exists = append(p.exists, original)
		sql = sql[:loc[0]] + placeholder + sql[closeIdx+1:]
	}
}

// protectScalarSubselects finds "( SELECT ... )" spans not already
// consumed by protectExists and replaces each with a placeholder.
func protectScalarSubselects(sql string, p *protected) string {
	for {
		openIdx := findScalarSubselectOpen(sql)
		if openIdx < 0 {
			return sql
		}
		closeIdx := sqlscan.MatchingParen(sql, openIdx)
		if closeIdx < 0 {
			return sql
		}
		original := sql[openIdx : closeIdx+1]
		placeholder := fmt.Sprintf("___SUBSELECT_%d___", len(p.subselects))
		p.subselects = append(p.subselects, original)
		sql = sql[:openIdx] + placeholder + sql[closeIdx+1:]
	}
}

func findScalarSubselectOpen(sql string) int {
	for i := 0; i < len(sql); i++ {
		if sql[i] != '(' {
			continue
		}
		rest := strings.TrimLeft(sql[i+1:], " \t\n")
		if len(rest) >= 6 && strings.EqualFold(rest[:6], "SELECT") {
			return i
		}
	}
	return -1
}

// protectCase replaces CASE ... END expressions, honoring nested CASE
// blocks, with placeholders.
func protectCase(sql string, p *protected) string {
	for {
		loc := caseRE.FindStringIndex(sql)
		if loc == nil {
			return sql
		}
		endIdx := matchingEnd(sql, loc[1])
		if endIdx < 0 {
			return sql
		}
		original := sql[loc[0]:endIdx]
		placeholder := fmt.Sprintf("___CASE_%d___", len(p.cases))
		p.cases = append(p.cases, original)
		sql = sql[:loc[0]] + placeholder + sql[endIdx:]
	}
}

// matchingEnd returns the index just past the END keyword that closes
// the CASE whose keyword ended at from, counting nested CASE...END
// pairs.
func matchingEnd(sql string, from int) int {
	depth := 1
	pos := from
	for {
		caseLoc := caseRE.FindStringIndex(sql[pos:])
		endLoc := endRE.FindStringIndex(sql[pos:])
		switch {
		case endLoc == nil:
			return -1
		case caseLoc != nil && caseLoc[0] < endLoc[0]:
			depth++
			pos += caseLoc[1]
		default:
			depth--
			pos += endLoc[1]
			if depth == 0 {
				return pos
			}
		}
	}
}

// restore substitutes the placeholders back into sql with their
// original text. protect runs EXISTS, then CASE, then SUBSELECT, so a
// CASE body's stored original text can carry an EXISTS placeholder and
// a SUBSELECT's can carry an EXISTS or CASE placeholder; restoreLeaves
// is applied, then CASE bodies are spliced back in, then restoreLeaves
// runs again to resolve any placeholder that was only just exposed.
func restore(sql string, p *protected) string {
	sql = restoreLeaves(sql, p)
	for i, orig := range p.cases {
		sql = strings.ReplaceAll(sql, fmt.Sprintf("___CASE_%d___", i), orig)
	}
	sql = restoreLeaves(sql, p)
	return sql
}

func restoreLeaves(sql string, p *protected) string {
	for i, orig := range p.exists {
		sql = strings.ReplaceAll(sql, fmt.Sprintf("___EXISTS_%d___", i), orig)
	}
	for i, orig := range p.subselects {
		sql = strings.ReplaceAll(sql, fmt.Sprintf("___SUBSELECT_%d___", i), orig)
	}
	return sql
}
