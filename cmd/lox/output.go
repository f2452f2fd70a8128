package main

import (
	"encoding/json"
	"fmt"
	"io"
	"lox-lang/internal/ast"
	"lox-lang/internal/diag"
	"lox-lang/internal/lexer"
	"lox-lang/internal/parser"
	"lox-lang/internal/token"

	"github.com/alecthomas/repr"
	"github.com/urfave/cli/v2"
)

type parseMode int

const (
	parseText parseMode = iota
	parseJSON
	parseRepr
)

// ---- tokens command ----

func cmdTokens(stdout, stderr io.Writer, source, filename string, jsonMode bool) error {
	tokens, diags := lexer.New(source, filename).Tokenize()

	if jsonMode {
		if err := printTokensJSON(stdout, tokens, diags); err != nil {
			return err
		}
	} else {
		printTokensText(stdout, tokens)
		diag.Fprint(stderr, source, diags)
	}
	return diagExit(diags)
}

func printTokensText(w io.Writer, tokens []token.Token) {
	for _, tok := range tokens {
		fmt.Fprintf(w, "%-12s %-20s %d:%d\n", tok.Kind, tok.Lexeme, tok.Span.Start.Line, tok.Span.Start.Column)
	}
}

func printTokensJSON(w io.Writer, tokens []token.Token, diags []diag.Diagnostic) error {
	type tokenJSON struct {
		Kind    string `json:"kind"`
		Lexeme  string `json:"lexeme"`
		Literal any    `json:"literal,omitempty"`
		Line    int    `json:"line"`
		Column  int    `json:"column"`
		Offset  int    `json:"offset"`
	}

	toks := make([]tokenJSON, 0, len(tokens))
	for _, tok := range tokens {
		toks = append(toks, tokenJSON{
			Kind:    tok.Kind.String(),
			Lexeme:  tok.Lexeme,
			Literal: tok.Literal,
			Line:    tok.Span.Start.Line,
			Column:  tok.Span.Start.Column,
			Offset:  tok.Span.Start.Offset,
		})
	}

	return printJSON(w, map[string]interface{}{
		"tokens":      toks,
		"diagnostics": diagsToSlice(diags),
	})
}

// ---- parse command ----

func cmdParse(stdout, stderr io.Writer, source, filename string, mode parseMode) error {
	tokens, lexDiags := lexer.New(source, filename).Tokenize()
	file, parseDiags := parser.New(tokens).ParseFile()
	diags := append(lexDiags, parseDiags...)

	switch mode {
	case parseJSON:
		err := printJSON(stdout, map[string]interface{}{
			"ast":         ast.NodeToMap(file),
			"diagnostics": diagsToSlice(diags),
		})
		if err != nil {
			return err
		}
	case parseRepr:
		repr.New(stdout, repr.Indent("  "), repr.OmitEmpty(true)).Println(file)
		diag.Fprint(stderr, source, diags)
	default:
		if len(file.Body) > 0 {
			fmt.Fprintln(stdout, ast.Sprint(file))
		}
		diag.Fprint(stderr, source, diags)
	}
	return diagExit(diags)
}

// ---- output helpers ----

// diagExit maps static errors to the syntax-error exit status. The
// diagnostics themselves have already been written.
func diagExit(diags []diag.Diagnostic) error {
	if diag.HasErrors(diags) {
		return cli.Exit("", 65)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return cli.Exit(fmt.Sprintf("error: JSON encoding failed: %v", err), 1)
	}
	return nil
}

func diagsToSlice(diags []diag.Diagnostic) []map[string]interface{} {
	result := make([]map[string]interface{}, len(diags))
	for i, d := range diags {
		result[i] = map[string]interface{}{
			"code":     d.Code,
			"severity": d.Severity.String(),
			"message":  d.Message,
			"line":     d.Span.Start.Line,
			"column":   d.Span.Start.Column,
			"offset":   d.Span.Start.Offset,
		}
		if d.Near != "" {
			result[i]["near"] = d.Near
		}
		if d.Hint != "" {
			result[i]["hint"] = d.Hint
		}
	}
	return result
}
