// Package validate implements the gateway's SQL firewall: statement
// classification, forbidden-keyword detection, namespace enforcement, and
// placeholder checks, all driven by the sqlscan token stream.
package validate

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/grobertson/Rosey-Robot-sub001/internal/domain"
	"github.com/grobertson/Rosey-Robot-sub001/internal/sqlscan"
)

// forbiddenKeywords are rejected wherever they appear in a statement, not
// only as the leading token. This catches keyword smuggling inside
// subqueries ("SELECT * FROM (ATTACH ...)").
var forbiddenKeywords = map[sqlscan.TokenType]string{
	sqlscan.TOKEN_CREATE:   "CREATE",
	sqlscan.TOKEN_DROP:     "DROP",
	sqlscan.TOKEN_ALTER:    "ALTER",
	sqlscan.TOKEN_TRUNCATE: "TRUNCATE",
	sqlscan.TOKEN_PRAGMA:   "PRAGMA",
	sqlscan.TOKEN_ATTACH:   "ATTACH",
	sqlscan.TOKEN_DETACH:   "DETACH",
	sqlscan.TOKEN_VACUUM:   "VACUUM",
	sqlscan.TOKEN_REINDEX:  "REINDEX",
	sqlscan.TOKEN_ANALYZE:  "ANALYZE",
}

// Config controls validator behavior.
type Config struct {
	// SystemPrefixes are reserved table-name prefixes no tenant may touch.
	// Matching is case-insensitive.
	SystemPrefixes []string

	// CaseSensitivePrefix controls tenant namespace prefix comparison.
	// System prefixes are always case-insensitive regardless.
	CaseSensitivePrefix bool

	// CrossTenantTenants lists tenants allowed to reference tables outside
	// their own namespace (system tables stay off limits).
	CrossTenantTenants []string

	// CacheSize bounds the validation-outcome LRU. Zero disables caching.
	CacheSize int
}

// DefaultConfig returns the validator defaults used by the gateway.
func DefaultConfig() Config {
	return Config{
		SystemPrefixes:      []string{"sqlite_", "rosey_"},
		CaseSensitivePrefix: true,
		CacheSize:           512,
	}
}

// Validator classifies and authorizes raw query strings. It is safe for
// concurrent use; the outcome cache is the only internal state.
type Validator struct {
	cfg         Config
	crossTenant map[string]bool
	cache       *lru.Cache[string, domain.ValidationOutcome]
	logger      *slog.Logger
}

// New creates a Validator with the given configuration.
func New(cfg Config, logger *slog.Logger) *Validator {
	v := &Validator{cfg: cfg, logger: logger, crossTenant: make(map[string]bool)}
	for _, t := range cfg.CrossTenantTenants {
		v.crossTenant[t] = true
	}
	if cfg.CacheSize > 0 {
		// lru.New only fails on a non-positive size.
		v.cache, _ = lru.New[string, domain.ValidationOutcome](cfg.CacheSize)
	}
	return v
}

// Validate classifies the query, enforces the statement whitelist and the
// tenant's table namespace, and checks placeholder usage against the
// supplied parameters. The returned outcome is immutable.
func (v *Validator) Validate(query, tenant string, params []any) domain.ValidationOutcome {
	key := cacheKey(tenant, query, len(params))
	if v.cache != nil {
		if out, ok := v.cache.Get(key); ok {
			return out
		}
	}

	out := v.validate(query, tenant, params)
	if v.cache != nil {
		v.cache.Add(key, out)
	}
	return out
}

func (v *Validator) validate(query, tenant string, params []any) domain.ValidationOutcome {
	if strings.TrimSpace(query) == "" {
		return rejected(domain.ErrSyntax("query is empty"))
	}

	toks := sqlscan.Scan(query)
	if len(toks) == 0 {
		return rejected(domain.ErrSyntax("query is empty"))
	}
	for _, t := range toks {
		if t.Type == sqlscan.TOKEN_ILLEGAL {
			return rejected(domain.ErrSyntax("unexpected character %q", t.Literal))
		}
	}

	// A semicolon is only legal as the very last token. Semicolons inside
	// string literals and comments never surface from the lexer, so any
	// earlier occurrence means a second statement was smuggled in.
	for i, t := range toks {
		if t.Type == sqlscan.TOKEN_SEMICOLON && i != len(toks)-1 {
			return rejected(domain.ErrStacked("multiple SQL statements in one request"))
		}
	}
	if toks[len(toks)-1].Type == sqlscan.TOKEN_SEMICOLON {
		toks = toks[:len(toks)-1]
		if len(toks) == 0 {
			return rejected(domain.ErrSyntax("query is empty"))
		}
	}

	kind := classify(toks)
	if !kind.Permitted() {
		return rejectedKind(kind, domain.ErrForbidden("%s statements are not allowed", kind))
	}
	for _, t := range toks {
		if name, ok := forbiddenKeywords[t.Type]; ok {
			return rejectedKind(kind, domain.ErrForbidden("forbidden keyword %s", name))
		}
	}

	cte := collectCTENames(toks)
	tables := extractTables(toks, cte)
	if err := v.checkNamespace(tables, tenant); err != nil {
		return rejectedKind(kind, err)
	}

	indices, warnings, err := checkPlaceholders(toks, len(params))
	if err != nil {
		return rejectedKind(kind, err)
	}
	warnings = append(warnings, literalWarnings(toks)...)

	return domain.ValidationOutcome{
		Accepted:         true,
		Kind:             kind,
		Tables:           tables,
		PlaceholderOrder: indices,
		Warnings:         warnings,
		Normalized:       normalize(toks),
	}
}

// Classify derives the statement kind from the query's leading keyword,
// looking through a WITH prologue. Used by the executor as a second,
// independent check on the bound query text.
func Classify(query string) domain.StatementKind {
	return classify(sqlscan.Scan(query))
}

func classify(toks []sqlscan.Token) domain.StatementKind {
	if len(toks) == 0 {
		return domain.StmtUnknown
	}
	if toks[0].Type == sqlscan.TOKEN_WITH {
		// Best-effort CTE support: the statement kind is the first statement
		// keyword at paren depth zero after the CTE prologue.
		depth := 0
		for _, t := range toks[1:] {
			switch t.Type {
			case sqlscan.TOKEN_LPAREN:
				depth++
			case sqlscan.TOKEN_RPAREN:
				depth--
			case sqlscan.TOKEN_SELECT, sqlscan.TOKEN_INSERT, sqlscan.TOKEN_UPDATE, sqlscan.TOKEN_DELETE:
				if depth == 0 {
					return kindOfToken(t.Type)
				}
			}
		}
		return domain.StmtUnknown
	}
	return kindOfToken(toks[0].Type)
}

func kindOfToken(t sqlscan.TokenType) domain.StatementKind {
	switch t {
	case sqlscan.TOKEN_SELECT:
		return domain.StmtSelect
	case sqlscan.TOKEN_INSERT:
		return domain.StmtInsert
	case sqlscan.TOKEN_UPDATE:
		return domain.StmtUpdate
	case sqlscan.TOKEN_DELETE:
		return domain.StmtDelete
	case sqlscan.TOKEN_CREATE:
		return domain.StmtCreate
	case sqlscan.TOKEN_DROP:
		return domain.StmtDrop
	case sqlscan.TOKEN_ALTER:
		return domain.StmtAlter
	case sqlscan.TOKEN_TRUNCATE:
		return domain.StmtTruncate
	case sqlscan.TOKEN_PRAGMA:
		return domain.StmtPragma
	case sqlscan.TOKEN_ATTACH:
		return domain.StmtAttach
	case sqlscan.TOKEN_DETACH:
		return domain.StmtDetach
	default:
		return domain.StmtUnknown
	}
}

// checkNamespace enforces that every referenced table belongs to the
// tenant's namespace and that no reserved system table is touched.
func (v *Validator) checkNamespace(tables []string, tenant string) *domain.Error {
	prefix := domain.TenantPrefix(tenant)
	for _, table := range tables {
		bare := table
		if idx := strings.LastIndex(table, "."); idx >= 0 {
			schema := table[:idx]
			if !strings.EqualFold(schema, "main") {
				return domain.ErrNamespace("schema %q is not accessible", schema)
			}
			bare = table[idx+1:]
		}
		lower := strings.ToLower(bare)
		for _, sys := range v.cfg.SystemPrefixes {
			if strings.HasPrefix(lower, strings.ToLower(sys)) {
				return domain.ErrNamespace("table %q is a reserved system table", bare).
					WithDetail("system_table", true)
			}
		}
		if v.crossTenant[tenant] {
			continue
		}
		if v.cfg.CaseSensitivePrefix {
			if !strings.HasPrefix(bare, prefix) {
				return namespaceError(bare, prefix)
			}
		} else if !strings.HasPrefix(lower, strings.ToLower(prefix)) {
			return namespaceError(bare, prefix)
		}
	}
	return nil
}

func namespaceError(table, prefix string) *domain.Error {
	return domain.ErrNamespace("table %q is outside your namespace (expected prefix %q)", table, prefix)
}

// checkPlaceholders collects $N indices in textual order and validates them
// against the supplied parameter count. Gaps in 1..max are non-fatal.
func checkPlaceholders(toks []sqlscan.Token, paramCount int) ([]int, []string, *domain.Error) {
	var indices []int
	max := 0
	seen := make(map[int]bool)
	for _, t := range toks {
		if t.Type != sqlscan.TOKEN_PLACEHOLDER {
			continue
		}
		n, err := strconv.Atoi(t.Literal[1:])
		if err != nil {
			return nil, nil, domain.ErrParameter("malformed placeholder %q", t.Literal)
		}
		if n == 0 {
			return nil, nil, domain.ErrParameter("placeholder indices start at $1, found $0").
				WithDetail("reason", "INVALID_PLACEHOLDER")
		}
		indices = append(indices, n)
		seen[n] = true
		if n > max {
			max = n
		}
	}
	if max > paramCount {
		return nil, nil, domain.ErrParameter("query references $%d but only %d parameters were supplied", max, paramCount).
			WithDetail("reason", "PARAM_COUNT_MISMATCH").
			WithDetail("placeholder_max", max).
			WithDetail("param_count", paramCount)
	}
	var warnings []string
	for n := 1; n <= max; n++ {
		if !seen[n] {
			warnings = append(warnings, fmt.Sprintf("placeholder $%d is skipped; parameter %d is never used", n, n))
		}
	}
	return indices, warnings, nil
}

// literalWarnings flags string literals appearing in filtering clauses.
// Such queries still execute safely, but literals in WHERE conditions are
// the classic precursor to string-built SQL.
func literalWarnings(toks []sqlscan.Token) []string {
	inFilter := false
	for _, t := range toks {
		switch t.Type {
		case sqlscan.TOKEN_WHERE, sqlscan.TOKEN_HAVING, sqlscan.TOKEN_ON:
			inFilter = true
		case sqlscan.TOKEN_STRING:
			if inFilter {
				return []string{"string literal in a filter clause; prefer $N parameters"}
			}
		}
	}
	return nil
}

// normalize renders the token stream with uppercase keywords and collapsed
// whitespace. The result is used for cache keys and audit-log grouping, never
// for execution.
func normalize(toks []sqlscan.Token) string {
	var b strings.Builder
	for i, t := range toks {
		s := tokenText(t)
		if i > 0 && needsSpace(toks[i-1], t) {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	return b.String()
}

func tokenText(t sqlscan.Token) string {
	switch t.Type {
	case sqlscan.TOKEN_STRING:
		return "'" + strings.ReplaceAll(t.Literal, "'", "''") + "'"
	case sqlscan.TOKEN_IDENT, sqlscan.TOKEN_NUMBER, sqlscan.TOKEN_PLACEHOLDER, sqlscan.TOKEN_OPERATOR:
		return t.Literal
	default:
		return t.Type.String()
	}
}

func needsSpace(prev, cur sqlscan.Token) bool {
	switch cur.Type {
	case sqlscan.TOKEN_COMMA, sqlscan.TOKEN_RPAREN, sqlscan.TOKEN_DOT, sqlscan.TOKEN_SEMICOLON:
		return false
	}
	switch prev.Type {
	case sqlscan.TOKEN_LPAREN, sqlscan.TOKEN_DOT:
		return false
	}
	return true
}

// cacheKey builds the LRU key from the tenant, the raw query text, and the
// parameter count (the only request facts the outcome depends on). The full
// text is kept so a hash collision can never replay another query's verdict.
func cacheKey(tenant, query string, paramCount int) string {
	return tenant + "\x00" + query + "\x00" + strconv.Itoa(paramCount)
}

func rejected(err *domain.Error) domain.ValidationOutcome {
	return domain.ValidationOutcome{Accepted: false, Err: err}
}

func rejectedKind(kind domain.StatementKind, err *domain.Error) domain.ValidationOutcome {
	return domain.ValidationOutcome{Accepted: false, Kind: kind, Err: err}
}
