// Package domain defines the core types, statement classification, and error
// taxonomy shared by every gateway component.
package domain

import "strings"

// StatementKind classifies a SQL statement by its leading keyword.
type StatementKind int

// Statement kinds recognized by the gateway. Only the four DML kinds are
// ever permitted; everything else is rejected at validation time.
const (
	StmtUnknown StatementKind = iota
	StmtSelect
	StmtInsert
	StmtUpdate
	StmtDelete
	StmtCreate
	StmtDrop
	StmtAlter
	StmtTruncate
	StmtPragma
	StmtAttach
	StmtDetach
)

var statementNames = map[StatementKind]string{
	StmtUnknown:  "UNKNOWN",
	StmtSelect:   "SELECT",
	StmtInsert:   "INSERT",
	StmtUpdate:   "UPDATE",
	StmtDelete:   "DELETE",
	StmtCreate:   "CREATE",
	StmtDrop:     "DROP",
	StmtAlter:    "ALTER",
	StmtTruncate: "TRUNCATE",
	StmtPragma:   "PRAGMA",
	StmtAttach:   "ATTACH",
	StmtDetach:   "DETACH",
}

func (k StatementKind) String() string {
	if name, ok := statementNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// Permitted reports whether the statement kind may pass the gateway at all.
func (k StatementKind) Permitted() bool {
	switch k {
	case StmtSelect, StmtInsert, StmtUpdate, StmtDelete:
		return true
	}
	return false
}

// IsWrite reports whether the statement kind mutates data and therefore
// requires the caller's allow_write capability.
func (k StatementKind) IsWrite() bool {
	switch k {
	case StmtInsert, StmtUpdate, StmtDelete:
		return true
	}
	return false
}

// TenantPrefix derives a tenant's table namespace prefix. Hyphens in tenant
// identifiers are normalized to underscores because SQL identifiers cannot
// carry hyphens unquoted.
func TenantPrefix(tenant string) string {
	return strings.ReplaceAll(tenant, "-", "_") + "__"
}

// ValidationOutcome is the immutable result of validating one query.
type ValidationOutcome struct {
	Accepted         bool
	Kind             StatementKind
	Tables           []string
	PlaceholderOrder []int // 1-based indices in order of first textual appearance, duplicates retained
	Warnings         []string
	Normalized       string // uppercase-keyword, collapsed-whitespace form for hashing and caching
	Err              *Error
}

// BoundStatement is a query rewritten to engine-native markers together with
// its coerced positional values. Produced once, consumed once.
type BoundStatement struct {
	Query  string
	Values []any
}

// ExecutionResult carries the rows or affected-row count of one statement.
type ExecutionResult struct {
	Rows      []map[string]any
	RowCount  int
	Truncated bool
	ElapsedMs float64
}

// ExecuteRequest is the JSON request envelope received over the bus.
type ExecuteRequest struct {
	Query      string `json:"query"`
	Params     []any  `json:"params,omitempty"`
	AllowWrite bool   `json:"allow_write,omitempty"`
	TimeoutMs  int    `json:"timeout_ms,omitempty"`
	MaxRows    int    `json:"max_rows,omitempty"`
}

// ExecuteResponse is the JSON success envelope sent back to the caller.
type ExecuteResponse struct {
	Rows            []map[string]any `json:"rows"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMs float64          `json:"execution_time_ms"`
	Truncated       bool             `json:"truncated"`
}

// ErrorResponse is the JSON error envelope sent back to the caller. Error is
// the stable code; Details never contains raw parameter values or another
// tenant's table names.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
