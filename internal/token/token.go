// Package token defines the token types produced by the scanner.
package token

import (
	"fmt"
	"lox-lang/internal/span"
	"sort"
)

// Kind represents the type of a token.
type Kind int

const (
	// Special tokens
	ILLEGAL Kind = iota
	EOF

	// Literals
	IDENT  // identifiers: x, foo, myVar
	NUMBER // number literals: 123, 3.14
	STRING // string literals: "hello"

	// Operators
	ASSIGN // =
	PLUS   // +
	MINUS  // -
	STAR   // *
	SLASH  // /
	BANG   // !

	EQ  // ==
	NEQ // !=
	LT  // <
	LTE // <=
	GT  // >
	GTE // >=

	QUESTION // ?
	COLON    // :

	// Delimiters
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	COMMA     // ,
	DOT       // .
	SEMICOLON // ;

	// Keywords
	KW_AND
	KW_BREAK
	KW_CLASS
	KW_CONTINUE
	KW_ELSE
	KW_FALSE
	KW_FOR
	KW_FUN
	KW_IF
	KW_NIL
	KW_OR
	KW_PRINT
	KW_RETURN
	KW_SUPER
	KW_THIS
	KW_TRUE
	KW_VAR
	KW_WHILE
)

var kindNames = map[Kind]string{
	ILLEGAL: "ILLEGAL",
	EOF:     "EOF",

	IDENT:  "IDENT",
	NUMBER: "NUMBER",
	STRING: "STRING",

	ASSIGN:   "=",
	PLUS:     "+",
	MINUS:    "-",
	STAR:     "*",
	SLASH:    "/",
	BANG:     "!",
	EQ:       "==",
	NEQ:      "!=",
	LT:       "<",
	LTE:      "<=",
	GT:       ">",
	GTE:      ">=",
	QUESTION: "?",
	COLON:    ":",

	LPAREN:    "(",
	RPAREN:    ")",
	LBRACE:    "{",
	RBRACE:    "}",
	COMMA:     ",",
	DOT:       ".",
	SEMICOLON: ";",

	KW_AND:      "and",
	KW_BREAK:    "break",
	KW_CLASS:    "class",
	KW_CONTINUE: "continue",
	KW_ELSE:     "else",
	KW_FALSE:    "false",
	KW_FOR:      "for",
	KW_FUN:      "fun",
	KW_IF:       "if",
	KW_NIL:      "nil",
	KW_OR:       "or",
	KW_PRINT:    "print",
	KW_RETURN:   "return",
	KW_SUPER:    "super",
	KW_THIS:     "this",
	KW_TRUE:     "true",
	KW_VAR:      "var",
	KW_WHILE:    "while",
}

// String returns the human-readable name for a token kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsKeyword returns true if the kind is a keyword.
func (k Kind) IsKeyword() bool {
	return k >= KW_AND && k <= KW_WHILE
}

// IsLiteral returns true if the kind is a literal (ident/number/string).
func (k Kind) IsLiteral() bool {
	return k >= IDENT && k <= STRING
}

var keywords = map[string]Kind{
	"and":      KW_AND,
	"break":    KW_BREAK,
	"class":    KW_CLASS,
	"continue": KW_CONTINUE,
	"else":     KW_ELSE,
	"false":    KW_FALSE,
	"for":      KW_FOR,
	"fun":      KW_FUN,
	"if":       KW_IF,
	"nil":      KW_NIL,
	"or":       KW_OR,
	"print":    KW_PRINT,
	"return":   KW_RETURN,
	"super":    KW_SUPER,
	"this":     KW_THIS,
	"true":     KW_TRUE,
	"var":      KW_VAR,
	"while":    KW_WHILE,
}

// Keywords returns the reserved words in sorted order.
func Keywords() []string {
	words := make([]string, 0, len(keywords))
	for word := range keywords {
		words = append(words, word)
	}
	sort.Strings(words)
	return words
}

// LookupIdent returns the keyword Kind for ident, or IDENT if it is not a keyword.
func LookupIdent(ident string) Kind {
	if kind, ok := keywords[ident]; ok {
		return kind
	}
	return IDENT
}

// Token is an immutable lexical token. Literal is set only for NUMBER (float64)
// and STRING (string) tokens.
type Token struct {
	Kind    Kind      `json:"kind"`
	Lexeme  string    `json:"lexeme"`
	Literal any       `json:"literal,omitempty"`
	Span    span.Span `json:"span"`
}

// Line returns the 1-based source line the token starts on.
func (t Token) Line() int {
	return t.Span.Start.Line
}

// String returns a human-readable representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("%s %q %s", t.Kind, t.Lexeme, t.Span.Start)
}
