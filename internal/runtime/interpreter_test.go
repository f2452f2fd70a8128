package runtime

import (
	"bytes"
	"errors"
	"lox-lang/internal/lexer"
	"lox-lang/internal/parser"
	"lox-lang/internal/resolver"
	"strings"
	"testing"
)

// runSource lexes, parses, resolves and executes source code, returning
// captured stdout and any error. Static errors fail the test.
func runSource(t *testing.T, source string, opts ...Option) (string, error) {
	t.Helper()
	tokens, lexDiags := lexer.New(source, "test.lox").Tokenize()
	if len(lexDiags) > 0 {
		t.Fatalf("lex errors: %v", lexDiags)
	}
	file, parseDiags := parser.New(tokens).ParseFile()
	if len(parseDiags) > 0 {
		t.Fatalf("parse errors: %v", parseDiags)
	}
	r := resolver.New()
	r.Define("clock")
	locals, resolveDiags := r.ResolveFile(file)
	if len(resolveDiags) > 0 {
		t.Fatalf("resolve errors: %v", resolveDiags)
	}

	var buf bytes.Buffer
	interp := NewInterpreter(&buf, opts...)
	interp.Resolve(locals)
	err := interp.Run(file)
	return buf.String(), err
}

func expectOutput(t *testing.T, source, expected string) {
	t.Helper()
	out, err := runSource(t, source)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if strings.TrimRight(out, "\n") != strings.TrimRight(expected, "\n") {
		t.Errorf("output mismatch:\nexpected: %q\ngot:      %q", expected, out)
	}
}

func expectError(t *testing.T, source, contains string) *RuntimeError {
	t.Helper()
	_, err := runSource(t, source)
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", contains)
	}
	if !strings.Contains(err.Error(), contains) {
		t.Errorf("expected error containing %q, got: %v", contains, err)
	}
	var rerr *RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RuntimeError, got %T", err)
	}
	return rerr
}

// ---- Tests ----

func TestPrintLiterals(t *testing.T) {
	expectOutput(t, `print 42;`, "42\n")
	expectOutput(t, `print "hello";`, "hello\n")
	expectOutput(t, `print nil;`, "nil\n")
	expectOutput(t, `print true; print false;`, "true\nfalse\n")
}

func TestNumberFormatting(t *testing.T) {
	expectOutput(t, `print 4 + 2;`, "6\n")
	expectOutput(t, `print 2.5;`, "2.5\n")
	expectOutput(t, `print 0.1 + 0.2;`, "0.30000000000000004\n")
	expectOutput(t, `print -0.0;`, "0\n")
	expectOutput(t, `print 10 / 4;`, "2.5\n")
	expectOutput(t, `print 1000000 * 1000;`, "1000000000\n")
}

func TestArithmetic(t *testing.T) {
	expectOutput(t, `print 1 + 2 * 3;`, "7\n")
	expectOutput(t, `print (1 + 2) * 3;`, "9\n")
	expectOutput(t, `print 10 - 4 - 3;`, "3\n")
	expectOutput(t, `print -(3);`, "-3\n")
}

func TestDivisionByZero(t *testing.T) {
	rerr := expectError(t, `print 1 / 0;`, "division by zero")
	if rerr.Code != "E4002" || rerr.Token.Lexeme != "/" {
		t.Errorf("expected E4002 at '/', got %s at %q", rerr.Code, rerr.Token.Lexeme)
	}
	expectError(t, `print 1 / -0.0;`, "division by zero")
}

func TestStringConcatenation(t *testing.T) {
	expectOutput(t, `print "a" + "b";`, "ab\n")
	expectOutput(t, `print "1" + true;`, "1true\n")
	expectOutput(t, `print 1 + "x";`, "1x\n")
	expectOutput(t, `print "n: " + nil;`, "n: nil\n")
	expectOutput(t, `print "v" + 2.5;`, "v2.5\n")
	expectError(t, `print 1 + true;`, "operands of '+'")
	expectError(t, `print nil + nil;`, "operands of '+'")
}

func TestTypeErrors(t *testing.T) {
	expectError(t, `print -"a";`, "operand must be a number")
	expectError(t, `print 1 < "2";`, "must be numbers")
	expectError(t, `print "a" * 2;`, "must be numbers")
}

func TestTruthiness(t *testing.T) {
	expectOutput(t, `print !nil; print !false; print !0; print !"";`, "true\ntrue\nfalse\nfalse\n")
	expectOutput(t, `if (0) print "zero is true";`, "zero is true\n")
}

func TestEquality(t *testing.T) {
	expectOutput(t, `print nil == nil;`, "true\n")
	expectOutput(t, `print nil == false;`, "false\n")
	expectOutput(t, `print 1 == "1";`, "false\n")
	expectOutput(t, `print 0 == -0;`, "true\n")
	expectOutput(t, `print "a" != "a";`, "false\n")
	expectOutput(t, `fun f() {} print f == f;`, "true\n")
	expectOutput(t, `class A {} print A() == A();`, "false\n")
}

func TestLogicalOperatorsYieldOperands(t *testing.T) {
	expectOutput(t, `print nil or "yes";`, "yes\n")
	expectOutput(t, `print 1 and 2;`, "2\n")
	expectOutput(t, `print false and undefined;`, "false\n")
	expectOutput(t, `print "left" or undefined;`, "left\n")
}

func TestTernary(t *testing.T) {
	expectOutput(t, `print true ? 1 : false ? 2 : 3;`, "1\n")
	expectOutput(t, `print false ? 1 : true ? 2 : 3;`, "2\n")
	// only the chosen branch is evaluated
	expectOutput(t, `print true ? "ok" : undefined;`, "ok\n")
}

func TestCommaOperator(t *testing.T) {
	expectOutput(t, `var a = 0; var b = (a = 1, a + 1); print a; print b;`, "1\n2\n")
}

func TestVariables(t *testing.T) {
	expectOutput(t, `var x = 10; x = x + 1; print x;`, "11\n")
	expectOutput(t, `var a = 1; { var a = 2; print a; } print a;`, "2\n1\n")
	expectOutput(t, `var a; a = "set"; print a;`, "set\n")
}

func TestUninitializedVariable(t *testing.T) {
	rerr := expectError(t, `var a; print a;`, "cannot be used before it is initialized")
	if rerr.Code != "E4005" {
		t.Errorf("expected E4005, got %s", rerr.Code)
	}
	expectError(t, `{ var b; print b; }`, "variable 'b' cannot be used before it is initialized")
}

func TestUndeclaredVariable(t *testing.T) {
	rerr := expectError(t, `print missing;`, "undeclared variable 'missing'")
	if rerr.Token.Line() != 1 || rerr.Token.Lexeme != "missing" {
		t.Errorf("expected error at 'missing' on line 1, got %q line %d", rerr.Token.Lexeme, rerr.Token.Line())
	}
	expectError(t, `missing = 1;`, "undeclared variable 'missing'")
}

func TestRuntimeErrorStopsExecution(t *testing.T) {
	out, err := runSource(t, "print 1;\nprint nil - 1;\nprint 2;")
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	if out != "1\n" {
		t.Errorf("expected only the first print, got %q", out)
	}
	if !strings.Contains(err.Error(), "runtime error at 2:") {
		t.Errorf("expected the error on line 2, got %v", err)
	}
}

func TestForwardReferenceAmongGlobals(t *testing.T) {
	expectOutput(t, `
fun a() { return b(); }
fun b() { return "b"; }
print a();
`, "b\n")
}

func TestIfElse(t *testing.T) {
	expectOutput(t, `if (1 > 2) print "a"; else print "b";`, "b\n")
	expectOutput(t, `if (nil) print "a";`, "")
}

func TestWhileLoop(t *testing.T) {
	expectOutput(t, `var i = 0; while (i < 3) { print i; i = i + 1; }`, "0\n1\n2\n")
}

func TestForLoop(t *testing.T) {
	expectOutput(t, `for (var i = 0; i < 3; i = i + 1) print i;`, "0\n1\n2\n")
	// the loop variable is scoped to the loop
	expectError(t, `for (var i = 0; i < 1; i = i + 1) {} print i;`, "undeclared variable 'i'")
}

func TestBreakContinue(t *testing.T) {
	expectOutput(t, `
for (var i = 0; i < 5; i = i + 1) {
  if (i == 2) continue;
  if (i == 4) break;
  print i;
}`, "0\n1\n3\n")

	expectOutput(t, `
var i = 0;
while (true) {
  i = i + 1;
  if (i < 3) continue;
  print i;
  break;
}`, "3\n")
}

func TestNestedLoopBreak(t *testing.T) {
	expectOutput(t, `
for (var i = 0; i < 2; i = i + 1) {
  for (var j = 0; j < 10; j = j + 1) {
    if (j == 2) break;
    print i * 10 + j;
  }
}`, "0\n1\n10\n11\n")
}

func TestReturnFromLoop(t *testing.T) {
	expectOutput(t, `
fun find() {
  for (var i = 0; ; i = i + 1) {
    if (i == 3) return i;
  }
}
print find();`, "3\n")
}

func TestFunctions(t *testing.T) {
	expectOutput(t, `fun add(a, b) { return a + b; } print add(1, 2);`, "3\n")
	expectOutput(t, `fun noReturn() {} print noReturn();`, "nil\n")
	expectOutput(t, `fun early() { return; print "never"; } print early();`, "nil\n")
	expectOutput(t, `fun f() {} print f;`, "<fn f>\n")
	expectOutput(t, `print clock;`, "<native fn>\n")
}

func TestRecursion(t *testing.T) {
	expectOutput(t, `
fun fib(n) { return n < 2 ? n : fib(n - 1) + fib(n - 2); }
print fib(15);`, "610\n")
}

func TestClosureCounter(t *testing.T) {
	expectOutput(t, `
fun makeCounter() {
  var count = 0;
  fun increment() {
    count = count + 1;
    return count;
  }
  return increment;
}
var counter = makeCounter();
print counter();
print counter();
var other = makeCounter();
print other();`, "1\n2\n1\n")
}

func TestClosuresShareScope(t *testing.T) {
	expectOutput(t, `
var get;
var set;
fun pair() {
  var value = "initial";
  fun g() { return value; }
  fun s(v) { value = v; }
  get = g;
  set = s;
}
pair();
print get();
set("changed");
print get();`, "initial\nchanged\n")
}

func TestStaticScoping(t *testing.T) {
	expectOutput(t, `
var a = "global";
{
  fun showA() { print a; }
  showA();
  var a = "block";
  showA();
}`, "global\nglobal\n")
}

func TestArityError(t *testing.T) {
	rerr := expectError(t, `fun f() {} f(1);`, "expected 0 arguments but got 1")
	if rerr.Code != "E4007" || rerr.Token.Lexeme != ")" {
		t.Errorf("expected E4007 at ')', got %s at %q", rerr.Code, rerr.Token.Lexeme)
	}
	expectError(t, `class A { init(a, b) {} } A(1);`, "expected 2 arguments but got 1")
}

func TestCallNonCallable(t *testing.T) {
	expectError(t, `"text"();`, "can only call functions and classes")
	expectError(t, `var x = 1; x();`, "can only call functions and classes")
}

func TestStackOverflow(t *testing.T) {
	_, err := runSource(t, `fun f() { return f(); } f();`, WithMaxCallDepth(64))
	if err == nil || !strings.Contains(err.Error(), "stack overflow") {
		t.Fatalf("expected stack overflow, got %v", err)
	}
	// a deep but bounded recursion stays under the limit
	_, err = runSource(t, `fun d(n) { if (n > 0) d(n - 1); } d(60);`, WithMaxCallDepth(64))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClassesAndInstances(t *testing.T) {
	expectOutput(t, `class A {} print A; print A();`, "<class 'A'>\n<instance of class 'A'>\n")
	expectOutput(t, `
class Point {
  init(x, y) { this.x = x; this.y = y; }
  sum() { return this.x + this.y; }
}
var p = Point(1, 2);
print p.sum();
p.x = 10;
print p.sum();`, "3\n12\n")
}

func TestInitializerReturnsInstance(t *testing.T) {
	expectOutput(t, `
class A {
  init() { this.v = 1; return; }
}
var a = A();
print a.init() == a;
print a.v;`, "true\n1\n")
	expectOutput(t, `class B { init() { return 5; } } print B();`, "<instance of class 'B'>\n")
}

func TestFieldsShadowMethods(t *testing.T) {
	expectOutput(t, `
class A { m() { return "method"; } }
var a = A();
print a.m();
a.m = "field";
print a.m;`, "method\nfield\n")
}

func TestBoundMethodKeepsThis(t *testing.T) {
	expectOutput(t, `
class Person {
  init(name) { this.name = name; }
  greet() { return "hi " + this.name; }
}
var g = Person("ann").greet;
print g();`, "hi ann\n")
}

func TestMethodReturningOwnClass(t *testing.T) {
	expectOutput(t, `
class Node {
  init(n) { this.n = n; }
  next() { return Node(this.n + 1); }
}
print Node(1).next().next().n;`, "3\n")
}

func TestInheritance(t *testing.T) {
	expectOutput(t, `
class A { greet() { return "A"; } }
class B < A { greet() { return super.greet() + "B"; } }
print B().greet();`, "AB\n")

	expectOutput(t, `
class A { init(v) { this.v = v; } get() { return this.v; } }
class B < A {}
print B(7).get();`, "7\n")
}

func TestSuperSkipsOverride(t *testing.T) {
	expectOutput(t, `
class A { m() { return "A.m"; } call() { return this.m(); } }
class B < A { m() { return "B.m"; } viaSuper() { return super.m(); } }
class C < B {}
var c = C();
print c.call();
print c.viaSuper();`, "B.m\nA.m\n")
}

func TestPropertyErrors(t *testing.T) {
	rerr := expectError(t, `class A {} A().missing;`, "undefined property 'missing'")
	if rerr.Code != "E4009" {
		t.Errorf("expected E4009, got %s", rerr.Code)
	}
	expectError(t, `var x = 1; print x.y;`, "only instances have properties")
	expectError(t, `var x = "s"; x.y = 1;`, "only instances have fields")
	expectError(t, `class A {} class B < A { m() { return super.nope; } } B().m();`, "undefined property 'nope'")
}

func TestSuperclassMustBeClass(t *testing.T) {
	rerr := expectError(t, `var NotClass = 1; class A < NotClass {}`, "superclass must be a class")
	if rerr.Code != "E4010" {
		t.Errorf("expected E4010, got %s", rerr.Code)
	}
}

func TestLoopResolvesSameBinding(t *testing.T) {
	expectOutput(t, `
var fns0; var fns1;
for (var i = 0; i < 2; i = i + 1) {
  var j = i;
  fun f() { return j; }
  if (i == 0) fns0 = f; else fns1 = f;
}
print fns0();
print fns1();`, "0\n1\n")
}

func TestRuntimeErrorDiagnostic(t *testing.T) {
	rerr := expectError(t, "\n\nprint 1 / 0;", "division by zero")
	d := rerr.Diagnostic()
	if d.Line() != 3 || d.Code != "E4002" || d.Near != "/" {
		t.Errorf("unexpected diagnostic %s", d)
	}
	want := "runtime error at 3:9 near '/': division by zero"
	if rerr.Error() != want {
		t.Errorf("expected %q, got %q", want, rerr.Error())
	}
}

func TestInterpreterSurvivesErrors(t *testing.T) {
	var buf bytes.Buffer
	interp := NewInterpreter(&buf)
	run := func(source string) error {
		tokens, _ := lexer.New(source, "repl").Tokenize()
		file, _ := parser.New(tokens).ParseFile()
		locals, _ := resolver.New().ResolveFile(file)
		interp.Resolve(locals)
		return interp.Run(file)
	}

	if err := run(`var a = 1;`); err != nil {
		t.Fatal(err)
	}
	if err := run(`{ var b = 2; print b / 0; }`); err == nil {
		t.Fatal("expected division error")
	}
	if interp.env != interp.globals {
		t.Error("environment was not restored after the error")
	}
	if err := run(`print a;`); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "1\n" {
		t.Errorf("expected 1, got %q", buf.String())
	}
}
