package main

import (
	"fmt"
	"strconv"
)

// TokenType is the type of token (keyword, literal, operator, punctuation).
type TokenType string

const (
	EOF TokenType = "EOF"

	// Identifiers + literals
	IDENT  TokenType = "IDENT"
	INT    TokenType = "INT"
	FLOAT  TokenType = "FLOAT"
	STRING TokenType = "STRING"

	// OP covers any maximal run of symbol characters, plus the compounds
	// ":=" and "!=" which are recognized specially.
	OP TokenType = "OP"

	// Punctuation
	LPAREN    TokenType = "("
	RPAREN    TokenType = ")"
	LBRACE    TokenType = "{"
	RBRACE    TokenType = "}"
	SEMICOLON TokenType = ";"
	COMMA     TokenType = ","
	COLON     TokenType = ":"
	QUESTION  TokenType = "?"
	BANG      TokenType = "!"

	// Keywords
	IMPORT    TokenType = "import"
	EXPORT    TokenType = "export"
	FN        TokenType = "fn"
	LET       TokenType = "let"
	MEMORY    TokenType = "memory"
	GLOBAL    TokenType = "global"
	MUT       TokenType = "mut"
	LOOP      TokenType = "loop"
	BRANCH_IF TokenType = "branch_if"
	DEFER     TokenType = "defer"
)

var keywords = map[string]TokenType{
	"import":    IMPORT,
	"export":    EXPORT,
	"fn":        FN,
	"let":       LET,
	"memory":    MEMORY,
	"global":    GLOBAL,
	"mut":       MUT,
	"loop":      LOOP,
	"branch_if": BRANCH_IF,
	"defer":     DEFER,
}

// Token is one lexed token with its source span. Literal holds the
// identifier or operator text, or the contents of a string literal.
type Token struct {
	Type    TokenType
	Literal string
	Int     int64   // meaningful when Type == INT
	Float   float64 // meaningful when Type == FLOAT
	Span    Span
}

// Lex scans src into an ordered token sequence ending in an EOF token.
// Unrecognized characters are reported and skipped so one pass collects
// every lexical error in the file.
func Lex(src []byte, diags *Diagnostics) []Token {
	l := &lexer{src: src, diags: diags}
	var tokens []Token
	for {
		tok := l.next()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens
		}
	}
}

type lexer struct {
	src   []byte
	pos   int
	diags *Diagnostics
}

func (l *lexer) at(i int) byte {
	if i >= len(l.src) {
		return 0
	}
	return l.src[i]
}

func (l *lexer) next() Token {
	for {
		l.skipTrivia()
		if l.pos >= len(l.src) {
			return Token{Type: EOF, Span: Span{l.pos, l.pos}}
		}

		start := l.pos
		c := l.src[l.pos]
		switch {
		case isDigit(c):
			return l.readNumber()
		case isLetter(c):
			lit := l.readIdentifier()
			typ := IDENT
			if kw, ok := keywords[lit]; ok {
				typ = kw
			}
			return Token{Type: typ, Literal: lit, Span: Span{start, l.pos}}
		case c == '"':
			return l.readString()
		case c == ':' && l.at(l.pos+1) == '=':
			l.pos += 2
			return Token{Type: OP, Literal: ":=", Span: Span{start, l.pos}}
		case c == '!' && l.at(l.pos+1) == '=':
			// '!' alone is the word-width memory marker; followed by '='
			// it is the inequality operator.
			l.pos += 2
			return Token{Type: OP, Literal: "!=", Span: Span{start, l.pos}}
		case isOpChar(c):
			for l.pos < len(l.src) && isOpChar(l.src[l.pos]) {
				l.pos++
			}
			return Token{Type: OP, Literal: string(l.src[start:l.pos]), Span: Span{start, l.pos}}
		case isPunct(c):
			l.pos++
			return Token{Type: TokenType(c), Literal: string(c), Span: Span{start, l.pos}}
		default:
			// Skip the bad character and retry from the next position.
			l.pos++
			l.diags.Add(Diagnostic{
				Kind:    InvalidCharacter,
				Message: fmt.Sprintf("invalid character %q", string(c)),
				Span:    Span{start, l.pos},
			})
		}
	}
}

func (l *lexer) skipTrivia() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.pos++
		case c == '/' && l.at(l.pos+1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '/' && l.at(l.pos+1) == '*':
			l.pos += 2
			for l.pos < len(l.src) && !(l.src[l.pos] == '*' && l.at(l.pos+1) == '/') {
				l.pos++
			}
			if l.pos < len(l.src) {
				l.pos += 2
			}
		default:
			return
		}
	}
}

// readNumber reads a decimal integer, or a float when a decimal point with
// fractional digits follows. A bare trailing dot is not part of the number.
func (l *lexer) readNumber() Token {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.at(l.pos) == '.' && isDigit(l.at(l.pos+1)) {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		lit := string(l.src[start:l.pos])
		val, _ := strconv.ParseFloat(lit, 64)
		return Token{Type: FLOAT, Literal: lit, Float: val, Span: Span{start, l.pos}}
	}
	lit := string(l.src[start:l.pos])
	val, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		l.diags.Add(Diagnostic{
			Kind:    SyntaxError,
			Message: fmt.Sprintf("integer literal %s is out of range", lit),
			Span:    Span{start, l.pos},
		})
	}
	return Token{Type: INT, Literal: lit, Int: val, Span: Span{start, l.pos}}
}

// readString reads a double-quoted string with no escape processing: the
// literal runs to the next quote.
func (l *lexer) readString() Token {
	start := l.pos
	l.pos++
	contentStart := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '"' {
		l.pos++
	}
	if l.pos >= len(l.src) {
		l.diags.Add(Diagnostic{
			Kind:    SyntaxError,
			Message: "unterminated string literal",
			Span:    Span{start, l.pos},
		})
		return Token{Type: STRING, Literal: string(l.src[contentStart:l.pos]), Span: Span{start, l.pos}}
	}
	lit := string(l.src[contentStart:l.pos])
	l.pos++
	return Token{Type: STRING, Literal: lit, Span: Span{start, l.pos}}
}

func (l *lexer) readIdentifier() string {
	start := l.pos
	for l.pos < len(l.src) && (isLetter(l.src[l.pos]) || isDigit(l.src[l.pos])) {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '_'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isOpChar(c byte) bool {
	switch c {
	case '+', '-', '*', '/', '%', '&', '^', '|', '<', '=', '>':
		return true
	}
	return false
}

func isPunct(c byte) bool {
	switch c {
	case '(', ')', '{', '}', ';', ',', ':', '?', '!':
		return true
	}
	return false
}
