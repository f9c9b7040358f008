// Package sqlscan provides the low-level, depth-and-quote-aware string
// scanning primitives shared by the Query Analyzer (C3) and the Query
// Rewriter (C5). Neither component uses a SQL parser-generator library —
// none in the example pack fits a request-time, structure-preserving
// rewriter — so both are built on these small hand-rolled scanners, the
// same way the teacher assembles SQL with fmt.Sprintf templates rather
// than an AST.
package sqlscan

import (
	"regexp"
	"strings"
)

var (
	lineCommentRE  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRE = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespaceRE   = regexp.MustCompile(`\s+`)
)

// StripComments removes SQL line and block comments.
func StripComments(sql string) string {
	sql = blockCommentRE.ReplaceAllString(sql, " ")
	sql = lineCommentRE.ReplaceAllString(sql, "")
	return sql
}

// CollapseWhitespace collapses runs of whitespace into a single space and
// trims the result, then drops a single trailing semicolon.
func CollapseWhitespace(sql string) string {
	sql = whitespaceRE.ReplaceAllString(sql, " ")
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSuffix(sql, ";")
	return strings.TrimSpace(sql)
}

// Normalize applies StripComments then CollapseWhitespace, the first
// step of the rewriter pipeline (spec.md §4.3 step 1) and a
// precondition for every scanner in this package.
func Normalize(sql string) string {
	return CollapseWhitespace(StripComments(sql))
}

// scanState tracks quote/paren context while iterating byte-by-byte.
type scanState struct {
	depth      int
	inSingle   bool
	inDouble   bool
}

func (s *scanState) step(b byte, prev byte) {
	switch {
	case s.inSingle:
		if b == '\'' && prev != '\\' {
			s.inSingle = false
		}
	case s.inDouble:
		if b == '"' && prev != '\\' {
			s.inDouble = false
		}
	case b == '\'':
		s.inSingle = true
	case b == '"':
		s.inDouble = true
	case b == '(':
		s.depth++
	case b == ')':
		if s.depth > 0 {
			s.depth--
		}
	}
}

func (s *scanState) atTopLevel() bool {
	return s.depth == 0 && !s.inSingle && !s.inDouble
}

// SplitTopLevel splits s on sep, ignoring occurrences inside parentheses
// or quoted strings. Used to split a SELECT list or an IN(...) value list
// by comma without breaking nested function calls or subqueries, per
// spec.md §4.1 step 2.
func SplitTopLevel(s string, sep byte) []string {
	var parts []string
	st := &scanState{}
	start := 0
	var prev byte
	for i := 0; i < len(s); i++ {
		b := s[i]
		st.step(b, prev)
		if b == sep && st.atTopLevel() {
			parts = append(parts, s[start:i])
			start = i + 1
		}
		prev = b
	}
	parts = append(parts, s[start:])
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// FindTopLevelKeyword returns the byte offset of the first case-insensitive,
// word-bounded occurrence of keyword at paren-depth 0 and outside quotes,
// or -1 if not found. Used to locate SELECT, FROM, WHERE, GROUP BY, ORDER
// BY, and LIMIT boundaries without tripping over identical substrings
// inside a subquery or a string literal.
func FindTopLevelKeyword(s, keyword string) int {
	return findTopLevelFrom(s, keyword, 0)
}

func findTopLevelFrom(s, keyword string, from int) int {
	upper := strings.ToUpper(s)
	kw := strings.ToUpper(keyword)
	st := &scanState{}
	var prev byte
	for i := 0; i < from && i < len(s); i++ {
		st.step(s[i], prev)
		prev = s[i]
	}
	for i := from; i+len(kw) <= len(s); i++ {
		st.step(s[i], prev)
		if st.atTopLevel() && upper[i:i+len(kw)] == kw {
			if wordBoundary(s, i, len(kw)) {
				return i
			}
		}
		prev = s[i]
	}
	return -1
}

func wordBoundary(s string, start, length int) bool {
	if start > 0 && isIdentChar(s[start-1]) {
		return false
	}
	end := start + length
	if end < len(s) && isIdentChar(s[end]) {
		return false
	}
	return true
}

func isIdentChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// MatchingParen returns the index of the ')' that closes the '(' at
// openIdx, or -1 if unbalanced.
func MatchingParen(s string, openIdx int) int {
	if openIdx < 0 || openIdx >= len(s) || s[openIdx] != '(' {
		return -1
	}
	st := &scanState{}
	var prev byte
	for i := openIdx; i < len(s); i++ {
		st.step(s[i], prev)
		if i > openIdx && st.depth == 0 && s[i] == ')' {
			return i
		}
		prev = s[i]
	}
	return -1
}

// TopLevelSegment returns the substring of sql between two top-level
// keyword boundaries: from the end of "from" (exclusive) to the start of
// "to" (exclusive, or end of string if to is not found after from).
// Both keywords are matched with FindTopLevelKeyword semantics.
func TopLevelSegment(sql string, afterKeyword string, beforeKeywords ...string) (segment string, start, end int) {
	afterIdx := FindTopLevelKeyword(sql, afterKeyword)
	if afterIdx < 0 {
		return "", -1, -1
	}
	start = afterIdx + len(afterKeyword)
	end = len(sql)
	for _, kw := range beforeKeywords {
		if idx := findTopLevelFrom(sql, kw, start); idx >= 0 && idx < end {
			end = idx
		}
	}
	return strings.TrimSpace(sql[start:end]), start, end
}
