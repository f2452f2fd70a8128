// Package driver runs source text through the whole pipeline: scan, parse,
// resolve and interpret. A Session keeps its global state between inputs so
// the REPL can build on earlier definitions.
package driver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"lox-lang/internal/diag"
	"lox-lang/internal/lexer"
	"lox-lang/internal/parser"
	"lox-lang/internal/resolver"
	"lox-lang/internal/runtime"
	"slices"

	"github.com/ztrue/tracerr"
)

// Status classifies the outcome of running an input.
type Status int

const (
	StatusOK Status = iota
	StatusSyntaxError
	StatusRuntimeError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSyntaxError:
		return "syntax-error"
	case StatusRuntimeError:
		return "runtime-error"
	default:
		return "unknown"
	}
}

// ExitCode maps s to a sysexits-style process status.
func (s Status) ExitCode() int {
	switch s {
	case StatusSyntaxError:
		return 65
	case StatusRuntimeError:
		return 70
	default:
		return 0
	}
}

// Session owns one interpreter and the resolver state that goes with it.
type Session struct {
	interp   *runtime.Interpreter
	resolver *resolver.Resolver
	stderr   io.Writer
	logger   *slog.Logger
}

// NewSession creates a session printing program output to stdout and
// diagnostics to stderr. A nil logger discards trace output.
func NewSession(stdout, stderr io.Writer, logger *slog.Logger, opts ...runtime.Option) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts = append([]runtime.Option{runtime.WithLogger(logger)}, opts...)
	interp := runtime.NewInterpreter(stdout, opts...)

	res := resolver.New()
	for _, name := range interp.Globals().Names() {
		res.Define(name)
	}

	return &Session{
		interp:   interp,
		resolver: res,
		stderr:   stderr,
		logger:   logger,
	}
}

// Globals returns the sorted names currently bound at top level.
func (s *Session) Globals() []string {
	names := s.interp.Globals().Names()
	slices.Sort(names)
	return names
}

// Run executes source as a program. name is used in diagnostics only.
func (s *Session) Run(source, name string) Status {
	tokens, lexDiags := lexer.New(source, name).Tokenize()
	file, parseDiags := parser.New(tokens).ParseFile()
	if s.report(source, append(lexDiags, parseDiags...)) {
		return StatusSyntaxError
	}

	locals, resolveDiags := s.resolver.ResolveFile(file)
	if s.report(source, resolveDiags) {
		return StatusSyntaxError
	}
	s.interp.Resolve(locals)

	s.logger.Debug("run", slog.String("name", name), slog.Int("statements", len(file.Body)))
	if err := s.interp.Run(file); err != nil {
		s.reportRuntime(source, err)
		return StatusRuntimeError
	}
	return StatusOK
}

// Eval runs one line of interactive input. When the input is a bare
// expression its value is returned as text; otherwise the result is "".
func (s *Session) Eval(source string) (string, Status) {
	tokens, lexDiags := lexer.New(source, "<repl>").Tokenize()
	file, expr, parseDiags := parser.New(tokens).ParseREPL()
	if s.report(source, append(lexDiags, parseDiags...)) {
		return "", StatusSyntaxError
	}

	if expr == nil {
		locals, resolveDiags := s.resolver.ResolveFile(file)
		if s.report(source, resolveDiags) {
			return "", StatusSyntaxError
		}
		s.interp.Resolve(locals)
		if err := s.interp.Run(file); err != nil {
			s.reportRuntime(source, err)
			return "", StatusRuntimeError
		}
		return "", StatusOK
	}

	locals, resolveDiags := s.resolver.ResolveExpr(expr)
	if s.report(source, resolveDiags) {
		return "", StatusSyntaxError
	}
	s.interp.Resolve(locals)
	val, err := s.interp.Eval(expr)
	if err != nil {
		s.reportRuntime(source, err)
		return "", StatusRuntimeError
	}
	return val.String(), StatusOK
}

// report prints diags and reports whether any of them is an error.
func (s *Session) report(source string, diags []diag.Diagnostic) bool {
	diag.Fprint(s.stderr, source, diags)
	return diag.HasErrors(diags)
}

func (s *Session) reportRuntime(source string, err error) {
	var rerr *runtime.RuntimeError
	if errors.As(err, &rerr) {
		diag.Fprint(s.stderr, source, []diag.Diagnostic{rerr.Diagnostic()})
		return
	}
	// internal failures carry a Go stack; only show it when tracing
	fmt.Fprintln(s.stderr, err.Error())
	s.logger.Debug("internal error", slog.String("trace", tracerr.Sprint(err)))
}
