// Package sqlscan provides a lightweight SQL tokenizer for the gateway's
// security pipeline: statement classification, forbidden-keyword detection,
// table name extraction, and positional placeholder scanning.
//
// It is a bounded recognizer, not a SQL grammar. The lexer understands
// keywords, identifiers (bare, double-quoted, backtick-quoted), string and
// numeric literals, $N placeholders, operators, and both comment styles.
// Everything the validator needs is decidable from this token stream.
package sqlscan

import "fmt"

// TokenType represents the type of a lexical token.
type TokenType int

// TOKEN_EOF and friends enumerate all token types produced by the lexer.
const (
	TOKEN_EOF     TokenType = iota // end of input
	TOKEN_ILLEGAL                  // unexpected character

	TOKEN_IDENT       // identifier (quoted or bare)
	TOKEN_NUMBER      // 123, 45.67, 1e10
	TOKEN_STRING      // 'hello'
	TOKEN_PLACEHOLDER // $1, $2, ...

	TOKEN_SEMICOLON // ;
	TOKEN_COMMA     // ,
	TOKEN_DOT       // .
	TOKEN_LPAREN    // (
	TOKEN_RPAREN    // )
	TOKEN_OPERATOR  // any other operator or punctuation, literal retained

	// TOKEN_ALL and below are SQL keywords (alphabetical).
	TOKEN_ALL
	TOKEN_ALTER
	TOKEN_ANALYZE
	TOKEN_AND
	TOKEN_AS
	TOKEN_ASC
	TOKEN_ATTACH
	TOKEN_BETWEEN
	TOKEN_BY
	TOKEN_CASE
	TOKEN_CAST
	TOKEN_COLLATE
	TOKEN_CONFLICT
	TOKEN_CREATE
	TOKEN_CROSS
	TOKEN_DEFAULT
	TOKEN_DELETE
	TOKEN_DESC
	TOKEN_DETACH
	TOKEN_DISTINCT
	TOKEN_DO
	TOKEN_DROP
	TOKEN_ELSE
	TOKEN_END
	TOKEN_EXCEPT
	TOKEN_EXISTS
	TOKEN_FROM
	TOKEN_FULL
	TOKEN_GLOB
	TOKEN_GROUP
	TOKEN_HAVING
	TOKEN_IN
	TOKEN_INNER
	TOKEN_INSERT
	TOKEN_INTERSECT
	TOKEN_INTO
	TOKEN_IS
	TOKEN_JOIN
	TOKEN_LEFT
	TOKEN_LIKE
	TOKEN_LIMIT
	TOKEN_NATURAL
	TOKEN_NOT
	TOKEN_NOTHING
	TOKEN_NULL
	TOKEN_OFFSET
	TOKEN_ON
	TOKEN_OR
	TOKEN_ORDER
	TOKEN_OUTER
	TOKEN_PRAGMA
	TOKEN_RECURSIVE
	TOKEN_REINDEX
	TOKEN_REPLACE
	TOKEN_RETURNING
	TOKEN_RIGHT
	TOKEN_SELECT
	TOKEN_SET
	TOKEN_TRUNCATE
	TOKEN_UNION
	TOKEN_UPDATE
	TOKEN_USING
	TOKEN_VACUUM
	TOKEN_VALUES
	TOKEN_WHEN
	TOKEN_WHERE
	TOKEN_WITH
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

// IsKeyword reports whether the token type is a SQL keyword.
func (t TokenType) IsKeyword() bool {
	return t >= TOKEN_ALL
}

// tokenNames maps token types to their string representations. Keyword names
// are the uppercase keyword itself, which normalization relies on.
var tokenNames = map[TokenType]string{
	TOKEN_EOF:         "EOF",
	TOKEN_ILLEGAL:     "ILLEGAL",
	TOKEN_IDENT:       "IDENT",
	TOKEN_NUMBER:      "NUMBER",
	TOKEN_STRING:      "STRING",
	TOKEN_PLACEHOLDER: "PLACEHOLDER",
	TOKEN_SEMICOLON:   ";",
	TOKEN_COMMA:       ",",
	TOKEN_DOT:         ".",
	TOKEN_LPAREN:      "(",
	TOKEN_RPAREN:      ")",
	TOKEN_OPERATOR:    "OPERATOR",

	TOKEN_ALL:       "ALL",
	TOKEN_ALTER:     "ALTER",
	TOKEN_ANALYZE:   "ANALYZE",
	TOKEN_AND:       "AND",
	TOKEN_AS:        "AS",
	TOKEN_ASC:       "ASC",
	TOKEN_ATTACH:    "ATTACH",
	TOKEN_BETWEEN:   "BETWEEN",
	TOKEN_BY:        "BY",
	TOKEN_CASE:      "CASE",
	TOKEN_CAST:      "CAST",
	TOKEN_COLLATE:   "COLLATE",
	TOKEN_CONFLICT:  "CONFLICT",
	TOKEN_CREATE:    "CREATE",
	TOKEN_CROSS:     "CROSS",
	TOKEN_DEFAULT:   "DEFAULT",
	TOKEN_DELETE:    "DELETE",
	TOKEN_DESC:      "DESC",
	TOKEN_DETACH:    "DETACH",
	TOKEN_DISTINCT:  "DISTINCT",
	TOKEN_DO:        "DO",
	TOKEN_DROP:      "DROP",
	TOKEN_ELSE:      "ELSE",
	TOKEN_END:       "END",
	TOKEN_EXCEPT:    "EXCEPT",
	TOKEN_EXISTS:    "EXISTS",
	TOKEN_FROM:      "FROM",
	TOKEN_FULL:      "FULL",
	TOKEN_GLOB:      "GLOB",
	TOKEN_GROUP:     "GROUP",
	TOKEN_HAVING:    "HAVING",
	TOKEN_IN:        "IN",
	TOKEN_INNER:     "INNER",
	TOKEN_INSERT:    "INSERT",
	TOKEN_INTERSECT: "INTERSECT",
	TOKEN_INTO:      "INTO",
	TOKEN_IS:        "IS",
	TOKEN_JOIN:      "JOIN",
	TOKEN_LEFT:      "LEFT",
	TOKEN_LIKE:      "LIKE",
	TOKEN_LIMIT:     "LIMIT",
	TOKEN_NATURAL:   "NATURAL",
	TOKEN_NOT:       "NOT",
	TOKEN_NOTHING:   "NOTHING",
	TOKEN_NULL:      "NULL",
	TOKEN_OFFSET:    "OFFSET",
	TOKEN_ON:        "ON",
	TOKEN_OR:        "OR",
	TOKEN_ORDER:     "ORDER",
	TOKEN_OUTER:     "OUTER",
	TOKEN_PRAGMA:    "PRAGMA",
	TOKEN_RECURSIVE: "RECURSIVE",
	TOKEN_REINDEX:   "REINDEX",
	TOKEN_REPLACE:   "REPLACE",
	TOKEN_RETURNING: "RETURNING",
	TOKEN_RIGHT:     "RIGHT",
	TOKEN_SELECT:    "SELECT",
	TOKEN_SET:       "SET",
	TOKEN_TRUNCATE:  "TRUNCATE",
	TOKEN_UNION:     "UNION",
	TOKEN_UPDATE:    "UPDATE",
	TOKEN_USING:     "USING",
	TOKEN_VACUUM:    "VACUUM",
	TOKEN_VALUES:    "VALUES",
	TOKEN_WHEN:      "WHEN",
	TOKEN_WHERE:     "WHERE",
	TOKEN_WITH:      "WITH",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"all":       TOKEN_ALL,
	"alter":     TOKEN_ALTER,
	"analyze":   TOKEN_ANALYZE,
	"and":       TOKEN_AND,
	"as":        TOKEN_AS,
	"asc":       TOKEN_ASC,
	"attach":    TOKEN_ATTACH,
	"between":   TOKEN_BETWEEN,
	"by":        TOKEN_BY,
	"case":      TOKEN_CASE,
	"cast":      TOKEN_CAST,
	"collate":   TOKEN_COLLATE,
	"conflict":  TOKEN_CONFLICT,
	"create":    TOKEN_CREATE,
	"cross":     TOKEN_CROSS,
	"default":   TOKEN_DEFAULT,
	"delete":    TOKEN_DELETE,
	"desc":      TOKEN_DESC,
	"detach":    TOKEN_DETACH,
	"distinct":  TOKEN_DISTINCT,
	"do":        TOKEN_DO,
	"drop":      TOKEN_DROP,
	"else":      TOKEN_ELSE,
	"end":       TOKEN_END,
	"except":    TOKEN_EXCEPT,
	"exists":    TOKEN_EXISTS,
	"from":      TOKEN_FROM,
	"full":      TOKEN_FULL,
	"glob":      TOKEN_GLOB,
	"group":     TOKEN_GROUP,
	"having":    TOKEN_HAVING,
	"in":        TOKEN_IN,
	"inner":     TOKEN_INNER,
	"insert":    TOKEN_INSERT,
	"intersect": TOKEN_INTERSECT,
	"into":      TOKEN_INTO,
	"is":        TOKEN_IS,
	"join":      TOKEN_JOIN,
	"left":      TOKEN_LEFT,
	"like":      TOKEN_LIKE,
	"limit":     TOKEN_LIMIT,
	"natural":   TOKEN_NATURAL,
	"not":       TOKEN_NOT,
	"nothing":   TOKEN_NOTHING,
	"null":      TOKEN_NULL,
	"offset":    TOKEN_OFFSET,
	"on":        TOKEN_ON,
	"or":        TOKEN_OR,
	"order":     TOKEN_ORDER,
	"outer":     TOKEN_OUTER,
	"pragma":    TOKEN_PRAGMA,
	"recursive": TOKEN_RECURSIVE,
	"reindex":   TOKEN_REINDEX,
	"replace":   TOKEN_REPLACE,
	"returning": TOKEN_RETURNING,
	"right":     TOKEN_RIGHT,
	"select":    TOKEN_SELECT,
	"set":       TOKEN_SET,
	"truncate":  TOKEN_TRUNCATE,
	"union":     TOKEN_UNION,
	"update":    TOKEN_UPDATE,
	"using":     TOKEN_USING,
	"vacuum":    TOKEN_VACUUM,
	"values":    TOKEN_VALUES,
	"when":      TOKEN_WHEN,
	"where":     TOKEN_WHERE,
	"with":      TOKEN_WITH,
}

// lookupKeyword returns the token type for the given lowercase identifier.
// Returns TOKEN_IDENT if it's not a keyword.
func lookupKeyword(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TOKEN_IDENT
}

// Token represents a lexical token with its literal value and byte offset.
// For TOKEN_STRING, Literal holds the decoded string contents; for quoted
// identifiers it holds the unquoted name. Pos/End always span the raw source
// text including quotes, so offset arithmetic over the input stays valid.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // byte offset of the token's first character in the input
	End     int // byte offset one past the token's last character
}
