// Package parser implements the syntax analysis for Lox.
// It uses recursive descent with one function per precedence level, and
// panic-mode recovery at declaration boundaries so every syntax error in a
// program is reported in one pass.
package parser

import (
	"fmt"
	"lox-lang/internal/ast"
	"lox-lang/internal/diag"
	"lox-lang/internal/span"
	"lox-lang/internal/token"
)

// MaxArgs is the ceiling on function parameters and call arguments.
const MaxArgs = 255

// parseError unwinds the parser to the nearest declaration boundary.
type parseError struct{}

// nesting tracks the constructs that make break, continue, return and this legal.
type nesting struct {
	loops     int
	functions int
	classes   int
}

// ============================================================
// Parser
// ============================================================

// Parser performs syntax analysis on a stream of tokens.
type Parser struct {
	tokens []token.Token
	pos    int
	diags  []diag.Diagnostic

	nest nesting
}

// New creates a new parser from an EOF-terminated token slice.
func New(tokens []token.Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != token.EOF {
		tokens = append(tokens, token.Token{Kind: token.EOF})
	}
	return &Parser{tokens: tokens, pos: 0}
}

// ParseFile parses the entire program and returns the AST root and diagnostics.
// Statements that failed to parse are dropped from the result.
func (p *Parser) ParseFile() (*ast.File, []diag.Diagnostic) {
	file := &ast.File{}
	startPos := p.peek().Span.Start

	for !p.isAtEnd() {
		if stmt := p.parseDecl(); stmt != nil {
			file.Body = append(file.Body, stmt)
		}
	}

	file.Span = span.Span{Start: startPos, End: p.peek().Span.End}
	return file, p.diags
}

// ParseREPL parses a line of interactive input. When the whole input is a
// single expression with no trailing ';', that expression is returned and
// file is nil; otherwise the input is parsed as a program.
func (p *Parser) ParseREPL() (*ast.File, ast.Expr, []diag.Diagnostic) {
	if expr, ok := p.tryBareExpr(); ok {
		return nil, expr, p.diags
	}

	p.pos = 0
	p.diags = nil
	p.nest = nesting{}
	file, diags := p.ParseFile()
	return file, nil, diags
}

func (p *Parser) tryBareExpr() (expr ast.Expr, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, isParseErr := r.(parseError); !isParseErr {
				panic(r)
			}
			expr, ok = nil, false
		}
	}()

	if p.isAtEnd() {
		return nil, false
	}
	expr = p.parseExpr()
	return expr, p.isAtEnd()
}

// ---- navigation helpers ----

func (p *Parser) peek() token.Token {
	return p.tokens[p.pos]
}

func (p *Parser) peekKind() token.Kind {
	return p.peek().Kind
}

func (p *Parser) previous() token.Token {
	if p.pos == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.pos-1]
}

func (p *Parser) advance() token.Token {
	tok := p.peek()
	if !p.isAtEnd() {
		p.pos++
	}
	return tok
}

func (p *Parser) check(kind token.Kind) bool {
	return p.peekKind() == kind
}

// match consumes the next token if it is one of kinds.
func (p *Parser) match(kinds ...token.Kind) bool {
	for _, k := range kinds {
		if p.check(k) {
			p.advance()
			return true
		}
	}
	return false
}

// expect consumes a token of the given kind or unwinds with a syntax error.
func (p *Parser) expect(kind token.Kind, context string) token.Token {
	if p.check(kind) {
		return p.advance()
	}
	want := fmt.Sprintf("'%s'", kind)
	if kind == token.IDENT {
		want = "identifier"
	}
	panic(p.fail(p.peek(), "E2001", "expected %s %s", want, context))
}

func (p *Parser) isAtEnd() bool {
	return p.peekKind() == token.EOF
}

// spanFrom returns the span from start up to the end of the last consumed token.
func (p *Parser) spanFrom(start span.Position) span.Span {
	return span.Span{Start: start, End: p.previous().Span.End}
}

// error records a diagnostic at tok without unwinding.
func (p *Parser) error(tok token.Token, code, format string, args ...interface{}) {
	d := diag.Errorf(code, tok.Span, format, args...)
	if tok.Kind == token.EOF {
		d.Near = "end"
	} else {
		d.Near = tok.Lexeme
	}
	p.diags = append(p.diags, d)
}

// fail records a diagnostic and returns the value to panic with.
func (p *Parser) fail(tok token.Token, code, format string, args ...interface{}) parseError {
	p.error(tok, code, format, args...)
	return parseError{}
}

// ============================================================
// Error recovery
// ============================================================

// synchronize discards tokens until just after a ';' or just before a
// statement-starting keyword.
func (p *Parser) synchronize() {
	p.advance()
	for !p.isAtEnd() {
		if p.previous().Kind == token.SEMICOLON {
			return
		}
		switch p.peekKind() {
		case token.KW_CLASS, token.KW_FUN, token.KW_VAR, token.KW_FOR, token.KW_IF,
			token.KW_WHILE, token.KW_PRINT, token.KW_RETURN, token.KW_BREAK, token.KW_CONTINUE:
			return
		}
		p.advance()
	}
}

// ============================================================
// Declarations
// ============================================================

// parseDecl parses one declaration or statement. On a syntax error it
// resynchronizes and returns nil.
func (p *Parser) parseDecl() (stmt ast.Stmt) {
	saved := p.nest
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(parseError); !ok {
				panic(r)
			}
			p.nest = saved
			p.synchronize()
			stmt = nil
		}
	}()

	switch p.peekKind() {
	case token.KW_CLASS:
		return p.parseClassDecl()
	case token.KW_FUN:
		start := p.advance().Span.Start
		return p.parseFunction("function", start)
	case token.KW_VAR:
		return p.parseVarDecl()
	default:
		return p.parseStmt()
	}
}

// classDecl → "class" IDENT ( "<" IDENT )? "{" function* "}"
func (p *Parser) parseClassDecl() ast.Stmt {
	start := p.advance().Span.Start
	name := p.expect(token.IDENT, "after 'class'")

	var superclass *ast.VariableExpr
	if p.match(token.LT) {
		superName := p.expect(token.IDENT, "after '<'")
		superclass = &ast.VariableExpr{Name: superName}
		superclass.Span = superName.Span
	}

	p.expect(token.LBRACE, "before class body")
	p.nest.classes++
	var methods []*ast.FuncDecl
	for !p.check(token.RBRACE) && !p.isAtEnd() {
		methods = append(methods, p.parseFunction("method", p.peek().Span.Start))
	}
	p.nest.classes--
	p.expect(token.RBRACE, "after class body")

	decl := &ast.ClassDecl{Name: name, Superclass: superclass, Methods: methods}
	decl.Span = p.spanFrom(start)
	return decl
}

// function → IDENT "(" parameters? ")" block
func (p *Parser) parseFunction(kind string, start span.Position) *ast.FuncDecl {
	name := p.expect(token.IDENT, fmt.Sprintf("as %s name", kind))
	p.expect(token.LPAREN, fmt.Sprintf("after %s name", kind))
	params := p.parseParams()
	p.expect(token.RPAREN, "after parameters")
	p.expect(token.LBRACE, fmt.Sprintf("before %s body", kind))

	outer := p.nest.loops
	p.nest.loops = 0
	p.nest.functions++
	body := p.parseBlockBody()
	p.nest.functions--
	p.nest.loops = outer

	decl := &ast.FuncDecl{Name: name, Params: params, Body: body}
	decl.Span = p.spanFrom(start)
	return decl
}

// parameters → IDENT ( "," IDENT )* ","?
func (p *Parser) parseParams() []token.Token {
	var params []token.Token
	for !p.check(token.RPAREN) {
		if len(params) >= MaxArgs {
			p.error(p.peek(), "E2004", "can't have more than %d parameters", MaxArgs)
		}
		params = append(params, p.expect(token.IDENT, "in parameter list"))
		if !p.match(token.COMMA) {
			break
		}
	}
	return params
}

// varDecl → "var" IDENT ( "=" expression )? ";"
func (p *Parser) parseVarDecl() ast.Stmt {
	start := p.advance().Span.Start
	name := p.expect(token.IDENT, "after 'var'")

	var value ast.Expr
	if p.match(token.ASSIGN) {
		value = p.parseExpr()
	}
	p.expect(token.SEMICOLON, "after variable declaration")

	decl := &ast.VarDeclStmt{Name: name, Init: value}
	decl.Span = p.spanFrom(start)
	return decl
}

// ============================================================
// Statements
// ============================================================

func (p *Parser) parseStmt() ast.Stmt {
	switch p.peekKind() {
	case token.KW_IF:
		return p.parseIfStmt()
	case token.KW_WHILE:
		return p.parseWhileStmt()
	case token.KW_FOR:
		return p.parseForStmt()
	case token.KW_BREAK:
		return p.parseBreakStmt()
	case token.KW_CONTINUE:
		return p.parseContinueStmt()
	case token.KW_RETURN:
		return p.parseReturnStmt()
	case token.KW_PRINT:
		return p.parsePrintStmt()
	case token.LBRACE:
		start := p.advance().Span.Start
		block := &ast.BlockStmt{Stmts: p.parseBlockBody()}
		block.Span = p.spanFrom(start)
		return block
	default:
		return p.parseExprStmt()
	}
}

// parseBlockBody parses declarations up to and including the closing '}'.
// The opening '{' has already been consumed.
func (p *Parser) parseBlockBody() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.check(token.RBRACE) && !p.isAtEnd() {
		if stmt := p.parseDecl(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	p.expect(token.RBRACE, "to close block")
	return stmts
}

func (p *Parser) parseIfStmt() ast.Stmt {
	start := p.advance().Span.Start
	p.expect(token.LPAREN, "after 'if'")
	cond := p.parseExpr()
	p.expect(token.RPAREN, "after if condition")

	then := p.parseStmt()
	var otherwise ast.Stmt
	if p.match(token.KW_ELSE) {
		otherwise = p.parseStmt()
	}

	stmt := &ast.IfStmt{Condition: cond, Then: then, Else: otherwise}
	stmt.Span = p.spanFrom(start)
	return stmt
}

func (p *Parser) parseWhileStmt() ast.Stmt {
	start := p.advance().Span.Start
	p.expect(token.LPAREN, "after 'while'")
	cond := p.parseExpr()
	p.expect(token.RPAREN, "after while condition")

	p.nest.loops++
	body := p.parseStmt()
	p.nest.loops--

	stmt := &ast.WhileStmt{Condition: cond, Body: body}
	stmt.Span = p.spanFrom(start)
	return stmt
}

// parseForStmt desugars
//
//	for (init; cond; step) body
//
// into
//
//	{ init; while (cond) { body; step; } }
//
// The inner block is marked as carrying the step, so continue still runs it.
func (p *Parser) parseForStmt() ast.Stmt {
	forTok := p.advance()
	start := forTok.Span.Start
	p.expect(token.LPAREN, "after 'for'")

	var initializer ast.Stmt
	switch {
	case p.match(token.SEMICOLON):
	case p.check(token.KW_VAR):
		initializer = p.parseVarDecl()
	default:
		initializer = p.parseExprStmt()
	}

	var cond ast.Expr
	if !p.check(token.SEMICOLON) {
		cond = p.parseExpr()
	}
	p.expect(token.SEMICOLON, "after loop condition")

	var step ast.Expr
	if !p.check(token.RPAREN) {
		step = p.parseExpr()
	}
	p.expect(token.RPAREN, "after for clauses")

	p.nest.loops++
	body := p.parseStmt()
	p.nest.loops--

	if cond == nil {
		lit := &ast.LiteralExpr{Value: true}
		lit.Span = forTok.Span
		cond = lit
	}

	inner := &ast.BlockStmt{Stmts: []ast.Stmt{body}}
	inner.Span = body.GetSpan()
	if step != nil {
		stepStmt := &ast.ExprStmt{Expr: step}
		stepStmt.Span = step.GetSpan()
		inner.Stmts = append(inner.Stmts, stepStmt)
		inner.Increment = true
	}

	loop := &ast.WhileStmt{Condition: cond, Body: inner}
	loop.Span = p.spanFrom(start)

	outer := &ast.BlockStmt{}
	if initializer != nil {
		outer.Stmts = append(outer.Stmts, initializer)
	}
	outer.Stmts = append(outer.Stmts, loop)
	outer.Span = loop.Span
	return outer
}

func (p *Parser) parseBreakStmt() ast.Stmt {
	kw := p.advance()
	if p.nest.loops == 0 {
		panic(p.fail(kw, "E2006", "'break' may only appear inside a loop"))
	}
	p.expect(token.SEMICOLON, "after 'break'")

	stmt := &ast.BreakStmt{Keyword: kw}
	stmt.Span = p.spanFrom(kw.Span.Start)
	return stmt
}

func (p *Parser) parseContinueStmt() ast.Stmt {
	kw := p.advance()
	if p.nest.loops == 0 {
		panic(p.fail(kw, "E2007", "'continue' may only appear inside a loop"))
	}
	p.expect(token.SEMICOLON, "after 'continue'")

	stmt := &ast.ContinueStmt{Keyword: kw}
	stmt.Span = p.spanFrom(kw.Span.Start)
	return stmt
}

func (p *Parser) parseReturnStmt() ast.Stmt {
	kw := p.advance()
	if p.nest.functions == 0 {
		panic(p.fail(kw, "E2008", "'return' may only appear inside a function"))
	}

	var value ast.Expr
	if !p.check(token.SEMICOLON) {
		value = p.parseExpr()
	}
	p.expect(token.SEMICOLON, "after return value")

	stmt := &ast.ReturnStmt{Keyword: kw, Value: value}
	stmt.Span = p.spanFrom(kw.Span.Start)
	return stmt
}

func (p *Parser) parsePrintStmt() ast.Stmt {
	start := p.advance().Span.Start
	expr := p.parseExpr()
	p.expect(token.SEMICOLON, "after value")

	stmt := &ast.PrintStmt{Expr: expr}
	stmt.Span = p.spanFrom(start)
	return stmt
}

func (p *Parser) parseExprStmt() ast.Stmt {
	start := p.peek().Span.Start
	expr := p.parseExpr()
	p.expect(token.SEMICOLON, "after expression")

	stmt := &ast.ExprStmt{Expr: expr}
	stmt.Span = p.spanFrom(start)
	return stmt
}

// ============================================================
// Expressions (lowest precedence first)
// ============================================================

// expression → sequence
func (p *Parser) parseExpr() ast.Expr {
	return p.parseSequence()
}

// sequence → assignment ( "," assignment )*
func (p *Parser) parseSequence() ast.Expr {
	expr := p.parseAssignment()
	for p.match(token.COMMA) {
		op := p.previous()
		right := p.parseAssignment()
		expr = p.binary(expr, op, right)
	}
	return expr
}

// assignment → conditional ( "=" assignment )?
//
// The target is checked after the fact: only a variable or a property get
// may be assigned to. A bad target is reported without unwinding.
func (p *Parser) parseAssignment() ast.Expr {
	expr := p.parseConditional()
	if !p.match(token.ASSIGN) {
		return expr
	}

	equals := p.previous()
	value := p.parseAssignment()
	s := span.Cover(expr.GetSpan(), value.GetSpan())

	switch target := expr.(type) {
	case *ast.VariableExpr:
		assign := &ast.AssignExpr{Name: target.Name, Value: value}
		assign.Span = s
		return assign
	case *ast.GetExpr:
		set := &ast.SetExpr{Object: target.Object, Name: target.Name, Value: value}
		set.Span = s
		return set
	}

	p.error(equals, "E2003", "invalid assignment target")
	return expr
}

// conditional → or ( "?" expression ":" conditional )?
func (p *Parser) parseConditional() ast.Expr {
	expr := p.parseOr()
	if !p.match(token.QUESTION) {
		return expr
	}

	then := p.parseExpr()
	p.expect(token.COLON, "after then branch of conditional expression")
	otherwise := p.parseConditional()

	ternary := &ast.TernaryExpr{Condition: expr, Then: then, Else: otherwise}
	ternary.Span = span.Cover(expr.GetSpan(), otherwise.GetSpan())
	return ternary
}

// or → and ( "or" and )*
func (p *Parser) parseOr() ast.Expr {
	expr := p.parseAnd()
	for p.match(token.KW_OR) {
		op := p.previous()
		right := p.parseAnd()
		expr = p.logical(expr, op, right)
	}
	return expr
}

// and → equality ( "and" equality )*
func (p *Parser) parseAnd() ast.Expr {
	expr := p.parseBinary(0)
	for p.match(token.KW_AND) {
		op := p.previous()
		right := p.parseBinary(0)
		expr = p.logical(expr, op, right)
	}
	return expr
}

// binaryLevels lists the left-associative binary operator levels from
// equality up to multiplication.
var binaryLevels = [][]token.Kind{
	{token.EQ, token.NEQ},
	{token.LT, token.LTE, token.GT, token.GTE},
	{token.PLUS, token.MINUS},
	{token.STAR, token.SLASH},
}

// parseBinary climbs binaryLevels starting at level; past the last level it
// parses a unary expression.
func (p *Parser) parseBinary(level int) ast.Expr {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	expr := p.parseBinary(level + 1)
	for p.match(binaryLevels[level]...) {
		op := p.previous()
		right := p.parseBinary(level + 1)
		expr = p.binary(expr, op, right)
	}
	return expr
}

// unary → ( "!" | "-" ) unary | call
func (p *Parser) parseUnary() ast.Expr {
	if p.match(token.BANG, token.MINUS) {
		op := p.previous()
		operand := p.parseUnary()
		expr := &ast.UnaryExpr{Op: op, Operand: operand}
		expr.Span = span.Cover(op.Span, operand.GetSpan())
		return expr
	}
	return p.parseCall()
}

// call → primary ( "(" arguments? ")" | "." IDENT )*
func (p *Parser) parseCall() ast.Expr {
	expr := p.parsePrimary()
	for {
		switch {
		case p.match(token.LPAREN):
			expr = p.finishCall(expr)
		case p.match(token.DOT):
			name := p.expect(token.IDENT, "after '.'")
			get := &ast.GetExpr{Object: expr, Name: name}
			get.Span = span.Cover(expr.GetSpan(), name.Span)
			expr = get
		default:
			return expr
		}
	}
}

// arguments → assignment ( "," assignment )* ","?
func (p *Parser) finishCall(callee ast.Expr) ast.Expr {
	var args []ast.Expr
	for !p.check(token.RPAREN) {
		if len(args) >= MaxArgs {
			p.error(p.peek(), "E2005", "can't have more than %d arguments", MaxArgs)
		}
		args = append(args, p.parseAssignment())
		if !p.match(token.COMMA) {
			break
		}
	}
	paren := p.expect(token.RPAREN, "after arguments")

	call := &ast.CallExpr{Callee: callee, Paren: paren, Args: args}
	call.Span = span.Cover(callee.GetSpan(), paren.Span)
	return call
}

// primary → "true" | "false" | "nil" | "this" | NUMBER | STRING
//
//	| IDENT | "(" expression ")" | "super" "." IDENT
func (p *Parser) parsePrimary() ast.Expr {
	tok := p.peek()

	switch tok.Kind {
	case token.KW_FALSE:
		return p.literal(false)
	case token.KW_TRUE:
		return p.literal(true)
	case token.KW_NIL:
		return p.literal(nil)
	case token.NUMBER, token.STRING:
		return p.literal(tok.Literal)

	case token.KW_THIS:
		p.advance()
		if p.nest.classes == 0 {
			panic(p.fail(tok, "E2009", "'this' may only be used inside a class method"))
		}
		expr := &ast.ThisExpr{Keyword: tok}
		expr.Span = tok.Span
		return expr

	case token.KW_SUPER:
		p.advance()
		p.expect(token.DOT, "after 'super'")
		method := p.expect(token.IDENT, "after 'super.'")
		expr := &ast.SuperExpr{Keyword: tok, Method: method}
		expr.Span = span.Cover(tok.Span, method.Span)
		return expr

	case token.IDENT:
		p.advance()
		expr := &ast.VariableExpr{Name: tok}
		expr.Span = tok.Span
		return expr

	case token.LPAREN:
		p.advance()
		inner := p.parseExpr()
		p.expect(token.RPAREN, "after expression")
		expr := &ast.GroupingExpr{Inner: inner}
		expr.Span = p.spanFrom(tok.Span.Start)
		return expr
	}

	panic(p.fail(tok, "E2002", "expected expression"))
}

// ---- node constructors ----

func (p *Parser) literal(value any) ast.Expr {
	tok := p.advance()
	expr := &ast.LiteralExpr{Value: value}
	expr.Span = tok.Span
	return expr
}

func (p *Parser) binary(left ast.Expr, op token.Token, right ast.Expr) ast.Expr {
	expr := &ast.BinaryExpr{Left: left, Op: op, Right: right}
	expr.Span = span.Cover(left.GetSpan(), right.GetSpan())
	return expr
}

func (p *Parser) logical(left ast.Expr, op token.Token, right ast.Expr) ast.Expr {
	expr := &ast.LogicalExpr{Left: left, Op: op, Right: right}
	expr.Span = span.Cover(left.GetSpan(), right.GetSpan())
	return expr
}
