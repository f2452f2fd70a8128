// Package diag provides diagnostic (error/warning) types shared by every stage of the pipeline.
package diag

import (
	"fmt"
	"io"
	"lox-lang/internal/span"
	"strings"
)

// Severity indicates the severity of a diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// Diagnostic represents a located error or warning message.
type Diagnostic struct {
	Code     string    `json:"code"`           // stable error code, e.g. "E2001"
	Severity Severity  `json:"severity"`       // error or warning
	Message  string    `json:"message"`        // human-readable description
	Span     span.Span `json:"span"`           // source location
	Near     string    `json:"near,omitempty"` // offending lexeme, or "end" at EOF
	Hint     string    `json:"hint,omitempty"` // optional hint
}

// Line returns the 1-based line the diagnostic points at.
func (d Diagnostic) Line() int {
	return d.Span.Start.Line
}

// String returns a human-readable representation of the diagnostic.
func (d Diagnostic) String() string {
	prefix := d.Severity.String()
	loc := fmt.Sprintf("%d:%d", d.Span.Start.Line, d.Span.Start.Column)
	msg := fmt.Sprintf("[%s] %s at %s", d.Code, prefix, loc)
	if d.Near != "" {
		msg += fmt.Sprintf(" near '%s'", d.Near)
	}
	msg += ": " + d.Message
	if d.Hint != "" {
		msg += " (hint: " + d.Hint + ")"
	}
	return msg
}

// Errorf creates an error diagnostic at the given span.
func Errorf(code string, s span.Span, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: Error,
		Message:  fmt.Sprintf(format, args...),
		Span:     s,
	}
}

// Warningf creates a warning diagnostic at the given span.
func Warningf(code string, s span.Span, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: Warning,
		Message:  fmt.Sprintf(format, args...),
		Span:     s,
	}
}

// HasErrors reports whether any diagnostic in diags is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Fprint writes diags to w, each followed by the source line it refers to and
// a caret under the reported column. When source is empty or the line is out
// of range only the one-line form is written.
func Fprint(w io.Writer, source string, diags []Diagnostic) {
	if len(diags) == 0 {
		return
	}
	lines := strings.Split(source, "\n")
	for _, d := range diags {
		fmt.Fprintln(w, d.String())

		idx := d.Span.Start.Line - 1
		if source == "" || idx < 0 || idx >= len(lines) {
			continue
		}
		text := strings.TrimRight(lines[idx], "\r\n\t ")
		col := d.Span.Start.Column - 1
		if col < 0 {
			col = 0
		}
		if col > len(text) {
			col = len(text)
		}
		fmt.Fprintf(w, "  %s\n", text)
		fmt.Fprintf(w, "  %s^\n", strings.Repeat(" ", col))
	}
}
