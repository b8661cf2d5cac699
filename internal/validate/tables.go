package validate

import (
	"strings"

	"github.com/grobertson/Rosey-Robot-sub001/internal/sqlscan"
)

// extractTables walks the token stream and collects every table name
// introduced after FROM, JOIN, INTO, or a leading UPDATE, including inside
// parenthesized subqueries (the linear scan sees their FROM tokens too).
// CTE names are resolved locally and excluded. Duplicates are dropped while
// preserving first-appearance order.
func extractTables(toks []sqlscan.Token, cte map[string]bool) []string {
	var tables []string
	seen := make(map[string]bool)
	depth := 0
	var fromDepths []int // paren depths with an active FROM list
	expect := false      // the next identifier is a table name

	fromActive := func() bool {
		return len(fromDepths) > 0 && fromDepths[len(fromDepths)-1] == depth
	}

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.Type {
		case sqlscan.TOKEN_LPAREN:
			depth++
			expect = false
		case sqlscan.TOKEN_RPAREN:
			depth--
			for len(fromDepths) > 0 && fromDepths[len(fromDepths)-1] > depth {
				fromDepths = fromDepths[:len(fromDepths)-1]
			}
			expect = false
		case sqlscan.TOKEN_FROM:
			fromDepths = append(fromDepths, depth)
			expect = true
		case sqlscan.TOKEN_JOIN, sqlscan.TOKEN_INTO:
			expect = true
		case sqlscan.TOKEN_UPDATE:
			// UPDATE names its target table except in ON CONFLICT DO UPDATE.
			if i == 0 || toks[i-1].Type != sqlscan.TOKEN_DO {
				expect = true
			}
		case sqlscan.TOKEN_COMMA:
			// A comma at the FROM list's own depth continues the list.
			if fromActive() {
				expect = true
			}
		case sqlscan.TOKEN_WHERE, sqlscan.TOKEN_SET, sqlscan.TOKEN_GROUP, sqlscan.TOKEN_ORDER,
			sqlscan.TOKEN_HAVING, sqlscan.TOKEN_LIMIT, sqlscan.TOKEN_OFFSET, sqlscan.TOKEN_UNION,
			sqlscan.TOKEN_EXCEPT, sqlscan.TOKEN_INTERSECT, sqlscan.TOKEN_ON, sqlscan.TOKEN_USING,
			sqlscan.TOKEN_VALUES, sqlscan.TOKEN_RETURNING:
			if fromActive() {
				fromDepths = fromDepths[:len(fromDepths)-1]
			}
			expect = false
		case sqlscan.TOKEN_IDENT:
			if !expect {
				continue
			}
			name := t.Literal
			for i+2 < len(toks) && toks[i+1].Type == sqlscan.TOKEN_DOT && toks[i+2].Type == sqlscan.TOKEN_IDENT {
				name += "." + toks[i+2].Literal
				i += 2
			}
			expect = false
			if cte[strings.ToLower(name)] {
				continue
			}
			if !seen[name] {
				seen[name] = true
				tables = append(tables, name)
			}
		}
	}
	return tables
}

// collectCTENames returns the names defined by a leading WITH clause, so
// references to them are not mistaken for real tables. Returns nil when the
// statement has no CTE prologue.
func collectCTENames(toks []sqlscan.Token) map[string]bool {
	if len(toks) == 0 || toks[0].Type != sqlscan.TOKEN_WITH {
		return nil
	}
	names := make(map[string]bool)
	depth := 0
	expectName := true
	for _, t := range toks[1:] {
		switch t.Type {
		case sqlscan.TOKEN_RECURSIVE:
			// WITH RECURSIVE name AS (...)
		case sqlscan.TOKEN_LPAREN:
			depth++
		case sqlscan.TOKEN_RPAREN:
			depth--
		case sqlscan.TOKEN_COMMA:
			if depth == 0 {
				expectName = true
			}
		case sqlscan.TOKEN_IDENT:
			if depth == 0 && expectName {
				names[strings.ToLower(t.Literal)] = true
				expectName = false
			}
		case sqlscan.TOKEN_SELECT, sqlscan.TOKEN_INSERT, sqlscan.TOKEN_UPDATE, sqlscan.TOKEN_DELETE:
			if depth == 0 {
				return names
			}
		}
	}
	return names
}
