// Package lexer turns Lox source text into an EOF-terminated token sequence.
package lexer

import (
	"fmt"
	"lox-lang/internal/diag"
	"lox-lang/internal/span"
	"lox-lang/internal/token"
	"strconv"
)

// Lexer tokenizes source code into a sequence of tokens.
type Lexer struct {
	source   string
	filename string

	pos  int // current read position in source
	line int // current line (1-based)
	col  int // current column (1-based)

	diags []diag.Diagnostic
}

// New creates a new Lexer for the given source text.
func New(source, filename string) *Lexer {
	return &Lexer{
		source:   source,
		filename: filename,
		pos:      0,
		line:     1,
		col:      1,
	}
}

// Tokenize scans the entire source and returns all tokens and diagnostics.
// The last token is always EOF.
func (l *Lexer) Tokenize() ([]token.Token, []diag.Diagnostic) {
	var tokens []token.Token
	for {
		tok := l.nextToken()
		if tok.Kind == token.ILLEGAL {
			continue
		}
		tokens = append(tokens, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return tokens, l.diags
}

// ---- internal helpers ----

// peek returns the current character without advancing, or 0 if at end.
func (l *Lexer) peek() byte {
	if l.pos >= len(l.source) {
		return 0
	}
	return l.source[l.pos]
}

// peekNext returns the character after current, or 0 if at end.
func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

// advance consumes the current character and returns it.
func (l *Lexer) advance() byte {
	ch := l.source[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

func (l *Lexer) curPos() span.Position {
	return span.Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) makeSpan(start span.Position) span.Span {
	return span.Span{Start: start, End: l.curPos()}
}

func (l *Lexer) emit(kind token.Kind, start span.Position) token.Token {
	return token.Token{Kind: kind, Lexeme: l.source[start.Offset:l.pos], Span: l.makeSpan(start)}
}

// skipTrivia skips whitespace, newlines and comments.
func (l *Lexer) skipTrivia() {
	for l.pos < len(l.source) {
		ch := l.peek()
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.advance()
		case ch == '/' && l.peekNext() == '/':
			for l.pos < len(l.source) && l.peek() != '\n' {
				l.advance()
			}
		case ch == '/' && l.peekNext() == '*':
			l.skipBlockComment()
		default:
			return
		}
	}
}

// skipBlockComment skips a /* ... */ comment. Nested comments are not supported.
func (l *Lexer) skipBlockComment() {
	start := l.curPos()
	l.advance() // /
	l.advance() // *
	for l.pos < len(l.source) {
		if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			return
		}
		l.advance()
	}
	l.addError("E1004", l.makeSpan(start), "unterminated block comment")
}

func (l *Lexer) addError(code string, s span.Span, msg string) {
	d := diag.Errorf(code, s, "%s", msg)
	d.Near = l.source[s.Start.Offset:s.End.Offset]
	if len(d.Near) > 16 {
		d.Near = d.Near[:16] + "..."
	}
	l.diags = append(l.diags, d)
}

// ---- token reading ----

func (l *Lexer) nextToken() token.Token {
	l.skipTrivia()

	if l.pos >= len(l.source) {
		return token.Token{Kind: token.EOF, Lexeme: "", Span: l.makeSpan(l.curPos())}
	}

	start := l.curPos()
	ch := l.peek()

	if ch == '"' {
		return l.readString(start)
	}
	if isDigit(ch) {
		return l.readNumber(start)
	}
	if isIdentStart(ch) {
		return l.readIdentifier(start)
	}
	return l.readOperator(start)
}

// readString reads a double-quoted string literal. Strings may span lines and
// have no escape sequences.
func (l *Lexer) readString(start span.Position) token.Token {
	l.advance() // skip opening "
	for l.pos < len(l.source) && l.peek() != '"' {
		l.advance()
	}

	if l.pos >= len(l.source) {
		l.addError("E1001", l.makeSpan(start), "unterminated string literal")
		return token.Token{Kind: token.ILLEGAL, Lexeme: l.source[start.Offset:l.pos], Span: l.makeSpan(start)}
	}

	l.advance() // skip closing "
	tok := l.emit(token.STRING, start)
	tok.Literal = l.source[start.Offset+1 : l.pos-1]
	return tok
}

// readNumber reads a number literal: digits with an optional fractional part.
func (l *Lexer) readNumber(start span.Position) token.Token {
	for l.pos < len(l.source) && isDigit(l.peek()) {
		l.advance()
	}

	if l.peek() == '.' && isDigit(l.peekNext()) {
		l.advance() // skip '.'
		for l.pos < len(l.source) && isDigit(l.peek()) {
			l.advance()
		}
	}

	tok := l.emit(token.NUMBER, start)
	val, err := strconv.ParseFloat(tok.Lexeme, 64)
	if err != nil {
		l.addError("E1005", tok.Span, fmt.Sprintf("invalid number literal: %v", err))
	}
	tok.Literal = val
	return tok
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier(start span.Position) token.Token {
	for l.pos < len(l.source) && isIdentPart(l.peek()) {
		l.advance()
	}
	lexeme := l.source[start.Offset:l.pos]
	return l.emit(token.LookupIdent(lexeme), start)
}

// readOperator reads an operator or delimiter token.
func (l *Lexer) readOperator(start span.Position) token.Token {
	ch := l.advance()

	switch ch {
	case '(':
		return l.emit(token.LPAREN, start)
	case ')':
		return l.emit(token.RPAREN, start)
	case '{':
		return l.emit(token.LBRACE, start)
	case '}':
		return l.emit(token.RBRACE, start)
	case ',':
		return l.emit(token.COMMA, start)
	case '.':
		return l.emit(token.DOT, start)
	case ';':
		return l.emit(token.SEMICOLON, start)
	case '?':
		return l.emit(token.QUESTION, start)
	case ':':
		return l.emit(token.COLON, start)
	case '+':
		return l.emit(token.PLUS, start)
	case '-':
		return l.emit(token.MINUS, start)
	case '*':
		return l.emit(token.STAR, start)
	case '/':
		return l.emit(token.SLASH, start)
	case '!':
		return l.either('=', token.NEQ, token.BANG, start)
	case '=':
		return l.either('=', token.EQ, token.ASSIGN, start)
	case '<':
		return l.either('=', token.LTE, token.LT, start)
	case '>':
		return l.either('=', token.GTE, token.GT, start)
	default:
		l.addError("E1003", l.makeSpan(start), fmt.Sprintf("unexpected character: '%c'", ch))
		return l.emit(token.ILLEGAL, start)
	}
}

// either emits two if the next character is next, otherwise one.
func (l *Lexer) either(next byte, two, one token.Kind, start span.Position) token.Token {
	if l.peek() == next {
		l.advance()
		return l.emit(two, start)
	}
	return l.emit(one, start)
}

// ---- character classification ----

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
