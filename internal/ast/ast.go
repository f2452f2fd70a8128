// Package ast defines the abstract syntax tree for Lox.
package ast

import (
	"lox-lang/internal/span"
	"lox-lang/internal/token"
)

// ============================================================
// Node interfaces
// ============================================================

// Node is the interface implemented by all AST nodes.
type Node interface {
	nodeNode()
	GetSpan() span.Span
}

// Expr is the interface for expression nodes. Expressions are always handled
// through pointers, so an Expr is usable as a map key identifying one node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// ============================================================
// Base types (embedded to provide common fields)
// ============================================================

// NodeBase provides the common Span field for all AST nodes.
type NodeBase struct {
	Span span.Span
}

func (n NodeBase) nodeNode()          {}
func (n NodeBase) GetSpan() span.Span { return n.Span }

// ExprBase is embedded by all expression nodes.
type ExprBase struct{ NodeBase }

func (ExprBase) exprNode() {}

// StmtBase is embedded by all statement nodes.
type StmtBase struct{ NodeBase }

func (StmtBase) stmtNode() {}

// ============================================================
// File (top-level AST root)
// ============================================================

// File represents the entire program.
type File struct {
	NodeBase
	Body []Stmt
}

// ============================================================
// Expressions
// ============================================================

// LiteralExpr is a nil, boolean, number or string constant.
// Value holds nil, bool, float64 or string.
type LiteralExpr struct {
	ExprBase
	Value any
}

// GroupingExpr is a parenthesized expression.
type GroupingExpr struct {
	ExprBase
	Inner Expr
}

// UnaryExpr represents a prefix operation: !x, -x.
type UnaryExpr struct {
	ExprBase
	Op      token.Token
	Operand Expr
}

// BinaryExpr represents an arithmetic, comparison, equality or comma operation.
type BinaryExpr struct {
	ExprBase
	Left  Expr
	Op    token.Token
	Right Expr
}

// LogicalExpr represents a short-circuiting 'and' / 'or'.
type LogicalExpr struct {
	ExprBase
	Left  Expr
	Op    token.Token
	Right Expr
}

// TernaryExpr represents cond ? then : else.
type TernaryExpr struct {
	ExprBase
	Condition Expr
	Then      Expr
	Else      Expr
}

// AssignExpr represents name = value.
type AssignExpr struct {
	ExprBase
	Name  token.Token
	Value Expr
}

// VariableExpr is a reference to a named variable.
type VariableExpr struct {
	ExprBase
	Name token.Token
}

// CallExpr represents callee(args). Paren is the closing parenthesis, used
// to locate runtime errors raised by the call.
type CallExpr struct {
	ExprBase
	Callee Expr
	Paren  token.Token
	Args   []Expr
}

// GetExpr represents property access: object.name.
type GetExpr struct {
	ExprBase
	Object Expr
	Name   token.Token
}

// SetExpr represents property assignment: object.name = value.
type SetExpr struct {
	ExprBase
	Object Expr
	Name   token.Token
	Value  Expr
}

// ThisExpr represents the 'this' keyword.
type ThisExpr struct {
	ExprBase
	Keyword token.Token
}

// SuperExpr represents super.method.
type SuperExpr struct {
	ExprBase
	Keyword token.Token
	Method  token.Token
}

// ============================================================
// Statements
// ============================================================

// ExprStmt wraps an expression used as a statement.
type ExprStmt struct {
	StmtBase
	Expr Expr
}

// PrintStmt writes the stringified value of Expr.
type PrintStmt struct {
	StmtBase
	Expr Expr
}

// VarDeclStmt represents var name = init;
type VarDeclStmt struct {
	StmtBase
	Name token.Token
	Init Expr // may be nil if no initializer
}

// BlockStmt represents a block of statements: { ... }.
//
// Increment is set on the body block a desugared for loop produces; its last
// statement is the loop step, which still runs when the body continues.
type BlockStmt struct {
	StmtBase
	Stmts     []Stmt
	Increment bool
}

// IfStmt represents if (cond) then else otherwise.
type IfStmt struct {
	StmtBase
	Condition Expr
	Then      Stmt
	Else      Stmt // may be nil
}

// WhileStmt represents a while loop. for loops are desugared into one.
type WhileStmt struct {
	StmtBase
	Condition Expr
	Body      Stmt
}

// BreakStmt represents a break statement.
type BreakStmt struct {
	StmtBase
	Keyword token.Token
}

// ContinueStmt represents a continue statement.
type ContinueStmt struct {
	StmtBase
	Keyword token.Token
}

// ReturnStmt represents a return statement.
type ReturnStmt struct {
	StmtBase
	Keyword token.Token
	Value   Expr // may be nil
}

// ============================================================
// Declarations
// ============================================================

// FuncDecl represents a function declaration or a class method.
type FuncDecl struct {
	StmtBase
	Name   token.Token
	Params []token.Token
	Body   []Stmt
}

// ClassDecl represents class Name < Superclass { methods }.
type ClassDecl struct {
	StmtBase
	Name       token.Token
	Superclass *VariableExpr // may be nil
	Methods    []*FuncDecl
}
