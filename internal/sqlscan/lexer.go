package sqlscan

import "strings"

// Lexer tokenizes restricted SQL input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	start := l.pos
	var tok Token

	switch l.ch {
	case 0:
		return Token{Type: TOKEN_EOF, Pos: start, End: start}
	case ';':
		tok = Token{Type: TOKEN_SEMICOLON, Literal: ";"}
	case ',':
		tok = Token{Type: TOKEN_COMMA, Literal: ","}
	case '.':
		tok = Token{Type: TOKEN_DOT, Literal: "."}
	case '(':
		tok = Token{Type: TOKEN_LPAREN, Literal: "("}
	case ')':
		tok = Token{Type: TOKEN_RPAREN, Literal: ")"}
	case '$':
		if isDigit(l.peekChar()) {
			l.readChar() // advance past $
			numStart := l.pos
			for isDigit(l.ch) {
				l.readChar()
			}
			return Token{
				Type:    TOKEN_PLACEHOLDER,
				Literal: "$" + l.input[numStart:l.pos],
				Pos:     start,
				End:     l.pos,
			}
		}
		tok = Token{Type: TOKEN_ILLEGAL, Literal: "$"}
	case '\'':
		lit, ok := l.readString()
		if !ok {
			return Token{Type: TOKEN_ILLEGAL, Literal: "'", Pos: start, End: l.pos}
		}
		return Token{Type: TOKEN_STRING, Literal: lit, Pos: start, End: l.pos}
	case '"':
		lit, ok := l.readQuoted('"')
		if !ok {
			return Token{Type: TOKEN_ILLEGAL, Literal: `"`, Pos: start, End: l.pos}
		}
		return Token{Type: TOKEN_IDENT, Literal: lit, Pos: start, End: l.pos}
	case '`':
		lit, ok := l.readQuoted('`')
		if !ok {
			return Token{Type: TOKEN_ILLEGAL, Literal: "`", Pos: start, End: l.pos}
		}
		return Token{Type: TOKEN_IDENT, Literal: lit, Pos: start, End: l.pos}
	case '<':
		switch l.peekChar() {
		case '=', '>':
			op := l.input[l.pos : l.pos+2]
			l.readChar()
			tok = Token{Type: TOKEN_OPERATOR, Literal: op}
		default:
			tok = Token{Type: TOKEN_OPERATOR, Literal: "<"}
		}
	case '>', '!':
		if l.peekChar() == '=' {
			op := l.input[l.pos : l.pos+2]
			l.readChar()
			tok = Token{Type: TOKEN_OPERATOR, Literal: op}
		} else if l.ch == '>' {
			tok = Token{Type: TOKEN_OPERATOR, Literal: ">"}
		} else {
			tok = Token{Type: TOKEN_ILLEGAL, Literal: "!"}
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok = Token{Type: TOKEN_OPERATOR, Literal: "||"}
		} else {
			tok = Token{Type: TOKEN_OPERATOR, Literal: "|"}
		}
	case '+', '-', '*', '/', '%', '=', '&', '~':
		tok = Token{Type: TOKEN_OPERATOR, Literal: string(l.ch)}
	case '?':
		// Engine-native markers are not accepted from callers; only $N is.
		tok = Token{Type: TOKEN_ILLEGAL, Literal: "?"}
	default:
		switch {
		case isLetter(l.ch) || l.ch == '_':
			lit := l.readIdentifier()
			return Token{
				Type:    lookupKeyword(strings.ToLower(lit)),
				Literal: lit,
				Pos:     start,
				End:     l.pos,
			}
		case isDigit(l.ch):
			lit := l.readNumber()
			return Token{Type: TOKEN_NUMBER, Literal: lit, Pos: start, End: l.pos}
		default:
			tok = Token{Type: TOKEN_ILLEGAL, Literal: string(l.ch)}
		}
	}

	l.readChar()
	tok.Pos = start
	tok.End = l.pos
	return tok
}

// Scan tokenizes the whole input, excluding the trailing EOF token.
func Scan(input string) []Token {
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.NextToken()
		if tok.Type == TOKEN_EOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

// skipWhitespaceAndComments skips whitespace and SQL comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		// Line comment (-- ...)
		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		// Block comment (/* ... */)
		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar() // skip /
			l.readChar() // skip *
			for l.ch != 0 {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar() // skip *
					l.readChar() // skip /
					break
				}
				l.readChar()
			}
			continue
		}
		break
	}
}

// readString reads a single-quoted string literal. Handles '' escape for
// embedded quotes. Reports false when input ends before the closing quote.
func (l *Lexer) readString() (string, bool) {
	l.readChar() // skip opening quote
	var result strings.Builder
	for l.ch != 0 {
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				result.WriteByte('\'')
				l.readChar()
				l.readChar()
			} else {
				l.readChar() // skip closing quote
				return result.String(), true
			}
		} else {
			result.WriteByte(l.ch)
			l.readChar()
		}
	}
	return result.String(), false
}

// readQuoted reads an identifier quoted with the given character. A doubled
// quote character escapes itself. Reports false when the quote is unclosed.
func (l *Lexer) readQuoted(quote byte) (string, bool) {
	l.readChar() // skip opening quote
	var result strings.Builder
	for l.ch != 0 {
		if l.ch == quote {
			if l.peekChar() == quote {
				result.WriteByte(quote)
				l.readChar()
				l.readChar()
			} else {
				l.readChar() // skip closing quote
				return result.String(), true
			}
		} else {
			result.WriteByte(l.ch)
			l.readChar()
		}
	}
	return result.String(), false
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // skip .
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos]
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
