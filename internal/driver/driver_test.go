package driver

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type fixture struct {
	Name   string   `yaml:"name"`
	Source string   `yaml:"source"`
	Stdout string   `yaml:"stdout"`
	Status string   `yaml:"status"`
	Stderr []string `yaml:"stderr"`
}

func readFixtures(t *testing.T) []fixture {
	t.Helper()
	path := filepath.Join("..", "..", "testdata", "fixtures.yaml")
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer file.Close()

	var fixtures []fixture
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&fixtures); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return fixtures
}

func newTestSession() (*Session, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return NewSession(&stdout, &stderr, nil), &stdout, &stderr
}

func TestFixtures(t *testing.T) {
	for _, fx := range readFixtures(t) {
		t.Run(fx.Name, func(t *testing.T) {
			session, stdout, stderr := newTestSession()
			status := session.Run(fx.Source, "fixture.lox")

			want := fx.Status
			if want == "" {
				want = StatusOK.String()
			}
			if status.String() != want {
				t.Fatalf("expected status %s, got %s (stderr: %s)", want, status, stderr.String())
			}
			if stdout.String() != fx.Stdout {
				t.Errorf("stdout mismatch:\nexpected: %q\ngot:      %q", fx.Stdout, stdout.String())
			}
			for _, part := range fx.Stderr {
				if !strings.Contains(stderr.String(), part) {
					t.Errorf("expected stderr to contain %q, got:\n%s", part, stderr.String())
				}
			}
			if status == StatusOK && stderr.Len() > 0 {
				t.Errorf("unexpected stderr output:\n%s", stderr.String())
			}
		})
	}
}

func TestExitCodes(t *testing.T) {
	cases := map[Status]int{
		StatusOK:           0,
		StatusSyntaxError:  65,
		StatusRuntimeError: 70,
	}
	for status, code := range cases {
		if got := status.ExitCode(); got != code {
			t.Errorf("%s: expected exit code %d, got %d", status, code, got)
		}
	}
}

func TestEvalBareExpression(t *testing.T) {
	session, stdout, _ := newTestSession()
	got, status := session.Eval("1 + 2")
	if status != StatusOK || got != "3" {
		t.Fatalf("expected (3, ok), got (%q, %s)", got, status)
	}
	if stdout.Len() != 0 {
		t.Errorf("bare expression should not print, got %q", stdout.String())
	}
}

func TestEvalKeepsDefinitions(t *testing.T) {
	session, stdout, stderr := newTestSession()
	steps := []struct {
		input string
		value string
	}{
		{"var a = 1;", ""},
		{"fun inc(n) { return n + a; }", ""},
		{"a = 10;", ""},
		{"inc(5)", "15"},
		{"print inc(1);", ""},
		{"class P { init(x) { this.x = x; } }", ""},
		{"P(4).x", "4"},
		{"inc", "<fn inc>"},
		{"P", "<class 'P'>"},
	}
	for _, step := range steps {
		got, status := session.Eval(step.input)
		if status != StatusOK {
			t.Fatalf("%q: unexpected status %s: %s", step.input, status, stderr.String())
		}
		if got != step.value {
			t.Errorf("%q: expected %q, got %q", step.input, step.value, got)
		}
	}
	if stdout.String() != "11\n" {
		t.Errorf("expected printed output %q, got %q", "11\n", stdout.String())
	}
}

func TestEvalErrorsDoNotEndSession(t *testing.T) {
	session, _, stderr := newTestSession()

	if _, status := session.Eval("var ok = 1;"); status != StatusOK {
		t.Fatalf("unexpected status %s", status)
	}
	if _, status := session.Eval("print ;"); status != StatusSyntaxError {
		t.Errorf("expected syntax error, got %s", status)
	}
	if _, status := session.Eval("undefinedThing"); status != StatusRuntimeError {
		t.Errorf("expected runtime error, got %s", status)
	}
	if !strings.Contains(stderr.String(), "E4004") {
		t.Errorf("expected undeclared variable error, got:\n%s", stderr.String())
	}
	got, status := session.Eval("ok + 1")
	if status != StatusOK || got != "2" {
		t.Errorf("expected (2, ok) after errors, got (%q, %s)", got, status)
	}
}

func TestRejectedGlobalIsForgotten(t *testing.T) {
	session, _, _ := newTestSession()
	// var y = y; is rejected, so y stays unknown to later inputs
	if _, status := session.Eval("var y = y;"); status != StatusSyntaxError {
		t.Fatalf("expected syntax error, got %s", status)
	}
	if _, status := session.Eval("var y = 3;"); status != StatusOK {
		t.Fatalf("expected redeclaration to succeed, got %s", status)
	}
	if got, _ := session.Eval("y"); got != "3" {
		t.Errorf("expected 3, got %q", got)
	}
}

func TestGlobals(t *testing.T) {
	session, _, _ := newTestSession()
	session.Run("var zeta = 1; fun alpha() {}", "globals.lox")
	got := strings.Join(session.Globals(), ",")
	if got != "alpha,clock,zeta" {
		t.Errorf("expected sorted globals alpha,clock,zeta, got %s", got)
	}
}
