// Package resolver performs the static scope pass over a parsed program. It
// computes, for every local variable reference, how many scopes separate the
// reference from the binding it denotes.
package resolver

import (
	"lox-lang/internal/ast"
	"lox-lang/internal/diag"
	"lox-lang/internal/token"
	"maps"
)

// varState distinguishes a name whose initializer is still being resolved
// from one that is ready to read.
type varState int

const (
	declared varState = iota
	defined
)

type classKind int

const (
	noClass classKind = iota
	plainClass
	subclass
)

// Locals maps Variable, Assign, This and Super nodes to their scope distance.
// References absent from the map are globals.
type Locals map[ast.Expr]int

// Resolver walks programs without executing them. One Resolver may be reused
// across REPL inputs; it remembers which globals have been defined.
type Resolver struct {
	scopes  []map[string]varState
	globals map[string]varState
	class   classKind

	locals Locals
	diags  []diag.Diagnostic
}

// New creates a Resolver with no known globals.
func New() *Resolver {
	return &Resolver{globals: make(map[string]varState)}
}

// Define records name as an already-defined global, e.g. a native function.
func (r *Resolver) Define(name string) {
	r.globals[name] = defined
}

// ResolveFile resolves every statement of file.
func (r *Resolver) ResolveFile(file *ast.File) (Locals, []diag.Diagnostic) {
	return r.run(func() {
		r.resolveStmts(file.Body)
	})
}

// ResolveExpr resolves a bare expression typed at the REPL.
func (r *Resolver) ResolveExpr(expr ast.Expr) (Locals, []diag.Diagnostic) {
	return r.run(func() {
		r.resolveExpr(expr)
	})
}

// run resets per-input state around fn. Global declarations made by an input
// that fails to resolve are discarded, since that input never runs.
func (r *Resolver) run(fn func()) (Locals, []diag.Diagnostic) {
	snapshot := maps.Clone(r.globals)
	r.scopes = nil
	r.class = noClass
	r.locals = make(Locals)
	r.diags = nil

	fn()

	if diag.HasErrors(r.diags) {
		r.globals = snapshot
	}
	return r.locals, r.diags
}

// ---- scope helpers ----

func (r *Resolver) beginScope() {
	r.scopes = append(r.scopes, make(map[string]varState))
}

func (r *Resolver) endScope() {
	r.scopes = r.scopes[:len(r.scopes)-1]
}

func (r *Resolver) declare(name token.Token) {
	if len(r.scopes) == 0 {
		// Redeclaring a defined global keeps it readable, so
		// `var a = a;` at the REPL sees the previous value.
		if r.globals[name.Lexeme] != defined {
			r.globals[name.Lexeme] = declared
		}
		return
	}
	r.scopes[len(r.scopes)-1][name.Lexeme] = declared
}

func (r *Resolver) define(name token.Token) {
	if len(r.scopes) == 0 {
		r.globals[name.Lexeme] = defined
		return
	}
	r.scopes[len(r.scopes)-1][name.Lexeme] = defined
}

// defineSynthetic binds this or super in the innermost scope.
func (r *Resolver) defineSynthetic(name string) {
	r.scopes[len(r.scopes)-1][name] = defined
}

// resolveLocal records the distance from the innermost scope to the scope
// declaring name. Names found in no scope are left to the globals.
func (r *Resolver) resolveLocal(expr ast.Expr, name string) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if _, ok := r.scopes[i][name]; ok {
			r.locals[expr] = len(r.scopes) - 1 - i
			return
		}
	}
}

func (r *Resolver) error(tok token.Token, code, format string, args ...interface{}) {
	d := diag.Errorf(code, tok.Span, format, args...)
	d.Near = tok.Lexeme
	r.diags = append(r.diags, d)
}

// ============================================================
// Statements
// ============================================================

func (r *Resolver) resolveStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		r.resolveStmt(s)
	}
}

func (r *Resolver) resolveStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		r.resolveExpr(s.Expr)
	case *ast.PrintStmt:
		r.resolveExpr(s.Expr)
	case *ast.VarDeclStmt:
		r.declare(s.Name)
		if s.Init != nil {
			r.resolveExpr(s.Init)
		}
		r.define(s.Name)
	case *ast.BlockStmt:
		r.beginScope()
		r.resolveStmts(s.Stmts)
		r.endScope()
	case *ast.IfStmt:
		r.resolveExpr(s.Condition)
		r.resolveStmt(s.Then)
		if s.Else != nil {
			r.resolveStmt(s.Else)
		}
	case *ast.WhileStmt:
		r.resolveExpr(s.Condition)
		r.resolveStmt(s.Body)
	case *ast.BreakStmt, *ast.ContinueStmt:
	case *ast.ReturnStmt:
		if s.Value != nil {
			r.resolveExpr(s.Value)
		}
	case *ast.FuncDecl:
		r.declare(s.Name)
		r.define(s.Name)
		r.resolveFunction(s)
	case *ast.ClassDecl:
		r.resolveClass(s)
	}
}

// resolveFunction resolves parameters and body in one scope, matching the
// single environment a call creates.
func (r *Resolver) resolveFunction(fn *ast.FuncDecl) {
	r.beginScope()
	for _, param := range fn.Params {
		r.declare(param)
		r.define(param)
	}
	r.resolveStmts(fn.Body)
	r.endScope()
}

// resolveClass binds the class name first so methods may refer to it, then
// resolves methods inside a "super" scope (subclasses only) wrapping a
// "this" scope.
func (r *Resolver) resolveClass(c *ast.ClassDecl) {
	enclosing := r.class
	r.class = plainClass

	r.declare(c.Name)
	r.define(c.Name)

	if c.Superclass != nil {
		if c.Superclass.Name.Lexeme == c.Name.Lexeme {
			r.error(c.Superclass.Name, "E3002", "a class can't inherit from itself")
		}
		r.class = subclass
		r.resolveExpr(c.Superclass)

		r.beginScope()
		r.defineSynthetic("super")
	}

	r.beginScope()
	r.defineSynthetic("this")
	for _, method := range c.Methods {
		r.resolveFunction(method)
	}
	r.endScope()

	if c.Superclass != nil {
		r.endScope()
	}
	r.class = enclosing
}

// ============================================================
// Expressions
// ============================================================

func (r *Resolver) resolveExpr(expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.LiteralExpr:
	case *ast.GroupingExpr:
		r.resolveExpr(e.Inner)
	case *ast.UnaryExpr:
		r.resolveExpr(e.Operand)
	case *ast.BinaryExpr:
		r.resolveExpr(e.Left)
		r.resolveExpr(e.Right)
	case *ast.LogicalExpr:
		r.resolveExpr(e.Left)
		r.resolveExpr(e.Right)
	case *ast.TernaryExpr:
		r.resolveExpr(e.Condition)
		r.resolveExpr(e.Then)
		r.resolveExpr(e.Else)
	case *ast.CallExpr:
		r.resolveExpr(e.Callee)
		for _, arg := range e.Args {
			r.resolveExpr(arg)
		}
	case *ast.GetExpr:
		r.resolveExpr(e.Object)
	case *ast.SetExpr:
		r.resolveExpr(e.Value)
		r.resolveExpr(e.Object)
	case *ast.AssignExpr:
		r.resolveExpr(e.Value)
		r.resolveLocal(e, e.Name.Lexeme)
	case *ast.VariableExpr:
		r.resolveVariable(e)
	case *ast.ThisExpr:
		r.resolveLocal(e, "this")
	case *ast.SuperExpr:
		switch r.class {
		case noClass:
			r.error(e.Keyword, "E3003", "can't use 'super' outside of a class")
		case plainClass:
			r.error(e.Keyword, "E3004", "can't use 'super' in a class with no superclass")
		}
		r.resolveLocal(e, "super")
	}
}

func (r *Resolver) resolveVariable(e *ast.VariableExpr) {
	name := e.Name.Lexeme
	var state varState
	var ok bool
	if len(r.scopes) == 0 {
		state, ok = r.globals[name]
	} else {
		state, ok = r.scopes[len(r.scopes)-1][name]
	}
	if ok && state == declared {
		r.error(e.Name, "E3001", "can't read variable '%s' in its own initializer", name)
	}
	r.resolveLocal(e, name)
}
