package lexer

import (
	"lox-lang/internal/token"
	"testing"
)

func expectKinds(t *testing.T, source string, expected []token.Kind) []token.Token {
	t.Helper()
	l := New(source, "test.lox")
	tokens, diags := l.Tokenize()

	if len(diags) > 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d: %v", len(expected), len(tokens), tokens)
	}
	for i, exp := range expected {
		if tokens[i].Kind != exp {
			t.Errorf("token[%d]: expected %s, got %s (%q)", i, exp, tokens[i].Kind, tokens[i].Lexeme)
		}
	}
	return tokens
}

func TestTokenizeSimple(t *testing.T) {
	expectKinds(t, `var x = 1 + 2;`, []token.Kind{
		token.KW_VAR, token.IDENT, token.ASSIGN,
		token.NUMBER, token.PLUS, token.NUMBER, token.SEMICOLON, token.EOF,
	})
}

func TestTokenizeKeywords(t *testing.T) {
	source := `and break class continue else false for fun if nil or print return super this true var while`
	expectKinds(t, source, []token.Kind{
		token.KW_AND, token.KW_BREAK, token.KW_CLASS, token.KW_CONTINUE,
		token.KW_ELSE, token.KW_FALSE, token.KW_FOR, token.KW_FUN,
		token.KW_IF, token.KW_NIL, token.KW_OR, token.KW_PRINT,
		token.KW_RETURN, token.KW_SUPER, token.KW_THIS, token.KW_TRUE,
		token.KW_VAR, token.KW_WHILE,
		token.EOF,
	})
}

func TestTokenizeOperators(t *testing.T) {
	expectKinds(t, `= == != < <= > >= + - * / ! ? :`, []token.Kind{
		token.ASSIGN, token.EQ, token.NEQ,
		token.LT, token.LTE, token.GT, token.GTE,
		token.PLUS, token.MINUS, token.STAR, token.SLASH,
		token.BANG, token.QUESTION, token.COLON,
		token.EOF,
	})
}

func TestTokenizeDelimiters(t *testing.T) {
	expectKinds(t, `( ) { } , . ;`, []token.Kind{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE,
		token.COMMA, token.DOT, token.SEMICOLON,
		token.EOF,
	})
}

func TestTokenizeString(t *testing.T) {
	tokens := expectKinds(t, "\"hello\" \"line1\nline2\"", []token.Kind{token.STRING, token.STRING, token.EOF})

	if tokens[0].Lexeme != `"hello"` || tokens[0].Literal != "hello" {
		t.Errorf("expected STRING \"hello\", got %q / %v", tokens[0].Lexeme, tokens[0].Literal)
	}
	if tokens[1].Literal != "line1\nline2" {
		t.Errorf("expected multi-line literal, got %q", tokens[1].Literal)
	}
	if tokens[2].Span.Start.Line != 2 {
		t.Errorf("expected EOF on line 2, got %d", tokens[2].Span.Start.Line)
	}
}

func TestTokenizeNumbers(t *testing.T) {
	tokens := expectKinds(t, `123 3.14 0 7.`, []token.Kind{
		token.NUMBER, token.NUMBER, token.NUMBER, token.NUMBER, token.DOT, token.EOF,
	})

	if tokens[0].Literal != 123.0 {
		t.Errorf("token[0]: expected 123, got %v", tokens[0].Literal)
	}
	if tokens[1].Literal != 3.14 || tokens[1].Lexeme != "3.14" {
		t.Errorf("token[1]: expected 3.14, got %q %v", tokens[1].Lexeme, tokens[1].Literal)
	}
}

func TestTokenizeComments(t *testing.T) {
	expectKinds(t, "x // line comment\n/* block\ncomment */ y", []token.Kind{
		token.IDENT, token.IDENT, token.EOF,
	})
}

func TestTokenizeErrors(t *testing.T) {
	cases := []struct {
		source string
		code   string
	}{
		{`"never closed`, "E1001"},
		{`var @ = 1;`, "E1003"},
		{`/* open`, "E1004"},
	}
	for _, c := range cases {
		l := New(c.source, "test.lox")
		tokens, diags := l.Tokenize()
		if len(diags) != 1 {
			t.Fatalf("%q: expected 1 diagnostic, got %v", c.source, diags)
		}
		if diags[0].Code != c.code {
			t.Errorf("%q: expected %s, got %s", c.source, c.code, diags[0].Code)
		}
		if tokens[len(tokens)-1].Kind != token.EOF {
			t.Errorf("%q: token stream must end with EOF", c.source)
		}
		for _, tok := range tokens {
			if tok.Kind == token.ILLEGAL {
				t.Errorf("%q: ILLEGAL token leaked into the stream", c.source)
			}
		}
	}
}

func TestTokenizePositions(t *testing.T) {
	l := New("var x = 1;\n  print x;", "test.lox")
	tokens, _ := l.Tokenize()

	if tokens[0].Span.Start.Line != 1 || tokens[0].Span.Start.Column != 1 {
		t.Errorf("'var' position: expected 1:1, got %d:%d", tokens[0].Span.Start.Line, tokens[0].Span.Start.Column)
	}
	if tokens[1].Span.Start.Line != 1 || tokens[1].Span.Start.Column != 5 {
		t.Errorf("'x' position: expected 1:5, got %d:%d", tokens[1].Span.Start.Line, tokens[1].Span.Start.Column)
	}
	if tokens[5].Line() != 2 || tokens[5].Span.Start.Column != 3 {
		t.Errorf("'print' position: expected 2:3, got %s", tokens[5].Span.Start)
	}
}
