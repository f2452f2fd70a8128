package runtime

import (
	"fmt"
	"io"
	"log/slog"
	"lox-lang/internal/ast"
	"lox-lang/internal/diag"
	"lox-lang/internal/token"
	"maps"

	"github.com/ztrue/tracerr"
)

// ============================================================
// Control flow signals
// ============================================================

// ExecSignal represents a control flow signal from statement execution.
type ExecSignal int

const (
	SigNone     ExecSignal = iota
	SigReturn              // return from function
	SigBreak               // break from loop
	SigContinue            // continue in loop
)

// ExecResult carries a control flow signal and an optional value (for return).
type ExecResult struct {
	Signal ExecSignal
	Value  Value
}

var resultNone = ExecResult{Signal: SigNone}

// ============================================================
// Runtime error
// ============================================================

// RuntimeError represents an error during interpretation. Token is the
// operator, name or parenthesis the error is reported at.
type RuntimeError struct {
	Code    string
	Message string
	Token   token.Token
}

func (e *RuntimeError) Error() string {
	loc := e.Token.Span.Start
	if e.Token.Lexeme == "" {
		return fmt.Sprintf("runtime error at %d:%d: %s", loc.Line, loc.Column, e.Message)
	}
	return fmt.Sprintf("runtime error at %d:%d near '%s': %s", loc.Line, loc.Column, e.Token.Lexeme, e.Message)
}

// Diagnostic converts e to the shape used for syntax errors.
func (e *RuntimeError) Diagnostic() diag.Diagnostic {
	d := diag.Errorf(e.Code, e.Token.Span, "%s", e.Message)
	d.Near = e.Token.Lexeme
	return d
}

func runtimeErr(tok token.Token, code, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Code: code, Message: fmt.Sprintf(format, args...), Token: tok}
}

// ============================================================
// Interpreter
// ============================================================

// DefaultMaxCallDepth bounds the number of nested calls before a
// "stack overflow" runtime error.
const DefaultMaxCallDepth = 4096

// Interpreter walks the AST and executes it.
type Interpreter struct {
	globals *Environment
	env     *Environment
	locals  map[ast.Expr]int
	output  io.Writer
	logger  *slog.Logger

	maxDepth int
	depth    int
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger used for debug tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interpreter) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithMaxCallDepth sets the call depth limit. Non-positive values keep the default.
func WithMaxCallDepth(depth int) Option {
	return func(i *Interpreter) {
		if depth > 0 {
			i.maxDepth = depth
		}
	}
}

// NewInterpreter creates a new interpreter with the native functions registered.
func NewInterpreter(output io.Writer, opts ...Option) *Interpreter {
	global := NewEnvironment(nil)
	RegisterBuiltins(global)
	i := &Interpreter{
		globals:  global,
		env:      global,
		locals:   make(map[ast.Expr]int),
		output:   output,
		logger:   slog.New(slog.DiscardHandler),
		maxDepth: DefaultMaxCallDepth,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Globals returns the global environment (useful for REPL).
func (i *Interpreter) Globals() *Environment {
	return i.globals
}

// Resolve records scope distances computed by the resolver. Distances from
// earlier inputs are kept, so REPL closures keep working.
func (i *Interpreter) Resolve(locals map[ast.Expr]int) {
	maps.Copy(i.locals, locals)
}

// Run executes a resolved program. The first runtime error stops execution
// and is returned.
func (i *Interpreter) Run(file *ast.File) (err error) {
	defer i.recoverInternal(&err)

	for _, stmt := range file.Body {
		if _, execErr := i.execStmt(stmt); execErr != nil {
			i.logger.Debug("runtime error", slog.String("error", execErr.Error()))
			return execErr
		}
	}
	return nil
}

// Eval evaluates a resolved expression.
func (i *Interpreter) Eval(expr ast.Expr) (val Value, err error) {
	defer i.recoverInternal(&err)

	val, err = i.evalExpr(expr)
	if err != nil {
		i.logger.Debug("runtime error", slog.String("error", err.Error()))
	}
	return val, err
}

// recoverInternal turns a panic escaping evaluation into an error carrying
// the Go stack, and resets the interpreter so it stays usable.
func (i *Interpreter) recoverInternal(err *error) {
	if r := recover(); r != nil {
		i.env = i.globals
		i.depth = 0
		*err = tracerr.Errorf("internal error: %v", r)
	}
}

// ============================================================
// Statement execution
// ============================================================

func (i *Interpreter) execStmt(stmt ast.Stmt) (ExecResult, error) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		_, err := i.evalExpr(s.Expr)
		return resultNone, err

	case *ast.PrintStmt:
		val, err := i.evalExpr(s.Expr)
		if err != nil {
			return resultNone, err
		}
		fmt.Fprintln(i.output, val.String())
		return resultNone, nil

	case *ast.VarDeclStmt:
		return i.execVarDecl(s)

	case *ast.BlockStmt:
		if s.Increment {
			return i.execLoopBody(s)
		}
		return i.execStmts(s.Stmts, NewEnvironment(i.env))

	case *ast.IfStmt:
		return i.execIf(s)

	case *ast.WhileStmt:
		return i.execWhile(s)

	case *ast.BreakStmt:
		return ExecResult{Signal: SigBreak}, nil

	case *ast.ContinueStmt:
		return ExecResult{Signal: SigContinue}, nil

	case *ast.ReturnStmt:
		var val Value = NilVal{}
		if s.Value != nil {
			v, err := i.evalExpr(s.Value)
			if err != nil {
				return resultNone, err
			}
			val = v
		}
		return ExecResult{Signal: SigReturn, Value: val}, nil

	case *ast.FuncDecl:
		i.env.Define(s.Name.Lexeme, &Function{Decl: s, Closure: i.env})
		return resultNone, nil

	case *ast.ClassDecl:
		return i.execClassDecl(s)

	default:
		panic(fmt.Sprintf("unhandled statement type: %T", stmt))
	}
}

func (i *Interpreter) execVarDecl(s *ast.VarDeclStmt) (ExecResult, error) {
	if s.Init == nil {
		i.env.Declare(s.Name.Lexeme)
		return resultNone, nil
	}
	val, err := i.evalExpr(s.Init)
	if err != nil {
		return resultNone, err
	}
	i.env.Define(s.Name.Lexeme, val)
	return resultNone, nil
}

func (i *Interpreter) execIf(s *ast.IfStmt) (ExecResult, error) {
	cond, err := i.evalExpr(s.Condition)
	if err != nil {
		return resultNone, err
	}
	if IsTruthy(cond) {
		return i.execStmt(s.Then)
	}
	if s.Else != nil {
		return i.execStmt(s.Else)
	}
	return resultNone, nil
}

func (i *Interpreter) execWhile(s *ast.WhileStmt) (ExecResult, error) {
	for {
		cond, err := i.evalExpr(s.Condition)
		if err != nil {
			return resultNone, err
		}
		if !IsTruthy(cond) {
			break
		}

		result, err := i.execStmt(s.Body)
		if err != nil {
			return resultNone, err
		}
		if result.Signal == SigBreak {
			break
		}
		if result.Signal == SigReturn {
			return result, nil // propagate return
		}
		// SigContinue: just continue the loop
	}
	return resultNone, nil
}

// execStmts runs stmts inside env and restores the previous environment on
// every exit path.
func (i *Interpreter) execStmts(stmts []ast.Stmt, env *Environment) (ExecResult, error) {
	prevEnv := i.env
	i.env = env
	defer func() { i.env = prevEnv }()

	for _, stmt := range stmts {
		result, err := i.execStmt(stmt)
		if err != nil {
			return resultNone, err
		}
		if result.Signal != SigNone {
			return result, nil // propagate signal
		}
	}
	return resultNone, nil
}

// execLoopBody runs the body block of a desugared for loop. Its last
// statement is the loop step, which runs after a continue as well.
func (i *Interpreter) execLoopBody(block *ast.BlockStmt) (ExecResult, error) {
	prevEnv := i.env
	i.env = NewEnvironment(prevEnv)
	defer func() { i.env = prevEnv }()

	last := len(block.Stmts) - 1
	signal := resultNone
	for _, stmt := range block.Stmts[:last] {
		result, err := i.execStmt(stmt)
		if err != nil {
			return resultNone, err
		}
		if result.Signal == SigContinue {
			signal = result
			break
		}
		if result.Signal != SigNone {
			return result, nil
		}
	}

	if _, err := i.execStmt(block.Stmts[last]); err != nil {
		return resultNone, err
	}
	return signal, nil
}

// execClassDecl binds the class name before building the class. Methods of a
// subclass close over an extra scope holding "super".
func (i *Interpreter) execClassDecl(s *ast.ClassDecl) (ExecResult, error) {
	var superclass *Class
	if s.Superclass != nil {
		val, err := i.evalExpr(s.Superclass)
		if err != nil {
			return resultNone, err
		}
		cls, ok := val.(*Class)
		if !ok {
			return resultNone, runtimeErr(s.Superclass.Name, "E4010", "superclass must be a class, got %s", val.TypeName())
		}
		superclass = cls
	}

	i.env.Declare(s.Name.Lexeme)

	closure := i.env
	if superclass != nil {
		closure = NewEnvironment(i.env)
		closure.Define("super", superclass)
	}

	methods := make(map[string]*Function, len(s.Methods))
	for _, m := range s.Methods {
		methods[m.Name.Lexeme] = &Function{
			Decl:          m,
			Closure:       closure,
			IsInitializer: m.Name.Lexeme == "init",
		}
	}

	i.env.Define(s.Name.Lexeme, &Class{Name: s.Name.Lexeme, Superclass: superclass, Methods: methods})
	return resultNone, nil
}

// ============================================================
// Expression evaluation
// ============================================================

func (i *Interpreter) evalExpr(expr ast.Expr) (Value, error) {
	switch e := expr.(type) {
	case *ast.LiteralExpr:
		return literalValue(e.Value), nil
	case *ast.GroupingExpr:
		return i.evalExpr(e.Inner)
	case *ast.UnaryExpr:
		return i.evalUnary(e)
	case *ast.BinaryExpr:
		return i.evalBinary(e)
	case *ast.LogicalExpr:
		return i.evalLogical(e)
	case *ast.TernaryExpr:
		return i.evalTernary(e)
	case *ast.VariableExpr:
		return i.lookUpVariable(e.Name, e)
	case *ast.AssignExpr:
		return i.evalAssign(e)
	case *ast.CallExpr:
		return i.evalCall(e)
	case *ast.GetExpr:
		return i.evalGet(e)
	case *ast.SetExpr:
		return i.evalSet(e)
	case *ast.ThisExpr:
		return i.lookUpVariable(e.Keyword, e)
	case *ast.SuperExpr:
		return i.evalSuper(e)
	default:
		panic(fmt.Sprintf("unhandled expression type: %T", expr))
	}
}

func literalValue(v any) Value {
	switch v := v.(type) {
	case bool:
		return BoolVal(v)
	case float64:
		return NumberVal(v)
	case string:
		return StringVal(v)
	default:
		return NilVal{}
	}
}

// lookUpVariable reads a resolved local at its fixed distance, or a global
// by name when the resolver left the reference unannotated.
func (i *Interpreter) lookUpVariable(name token.Token, expr ast.Expr) (Value, error) {
	var val Value
	if distance, ok := i.locals[expr]; ok {
		val = i.env.GetAt(distance, name.Lexeme)
	} else {
		v, ok := i.globals.Lookup(name.Lexeme)
		if !ok {
			return nil, runtimeErr(name, "E4004", "undeclared variable '%s'", name.Lexeme)
		}
		val = v
	}

	if _, ok := val.(uninitialized); ok {
		return nil, runtimeErr(name, "E4005", "variable '%s' cannot be used before it is initialized", name.Lexeme)
	}
	return val, nil
}

func (i *Interpreter) evalAssign(e *ast.AssignExpr) (Value, error) {
	val, err := i.evalExpr(e.Value)
	if err != nil {
		return nil, err
	}

	if distance, ok := i.locals[e]; ok {
		i.env.AssignAt(distance, e.Name.Lexeme, val)
		return val, nil
	}
	if !i.globals.Assign(e.Name.Lexeme, val) {
		return nil, runtimeErr(e.Name, "E4004", "undeclared variable '%s'", e.Name.Lexeme)
	}
	return val, nil
}

func (i *Interpreter) evalUnary(e *ast.UnaryExpr) (Value, error) {
	operand, err := i.evalExpr(e.Operand)
	if err != nil {
		return nil, err
	}

	switch e.Op.Kind {
	case token.MINUS:
		n, ok := operand.(NumberVal)
		if !ok {
			return nil, runtimeErr(e.Op, "E4001", "operand must be a number, got %s", operand.TypeName())
		}
		return -n, nil
	case token.BANG:
		return BoolVal(!IsTruthy(operand)), nil
	default:
		panic(fmt.Sprintf("unknown unary operator %s", e.Op.Kind))
	}
}

func (i *Interpreter) evalBinary(e *ast.BinaryExpr) (Value, error) {
	left, err := i.evalExpr(e.Left)
	if err != nil {
		return nil, err
	}
	right, err := i.evalExpr(e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Op.Kind {
	case token.COMMA:
		return right, nil
	case token.EQ:
		return BoolVal(valuesEqual(left, right)), nil
	case token.NEQ:
		return BoolVal(!valuesEqual(left, right)), nil
	case token.PLUS:
		return i.evalPlus(e.Op, left, right)
	}

	l, r, err := numberOperands(e.Op, left, right)
	if err != nil {
		return nil, err
	}

	switch e.Op.Kind {
	case token.MINUS:
		return l - r, nil
	case token.STAR:
		return l * r, nil
	case token.SLASH:
		if r == 0 {
			return nil, runtimeErr(e.Op, "E4002", "division by zero")
		}
		return l / r, nil
	case token.LT:
		return BoolVal(l < r), nil
	case token.LTE:
		return BoolVal(l <= r), nil
	case token.GT:
		return BoolVal(l > r), nil
	case token.GTE:
		return BoolVal(l >= r), nil
	default:
		panic(fmt.Sprintf("unknown binary operator %s", e.Op.Kind))
	}
}

// evalPlus adds numbers and concatenates strings. When only one side is a
// string the other side is stringified: "1" + true is "1true".
func (i *Interpreter) evalPlus(op token.Token, left, right Value) (Value, error) {
	switch l := left.(type) {
	case NumberVal:
		if r, ok := right.(NumberVal); ok {
			return l + r, nil
		}
	case StringVal:
		return l + StringVal(right.String()), nil
	}
	if r, ok := right.(StringVal); ok {
		return StringVal(left.String()) + r, nil
	}
	return nil, runtimeErr(op, "E4003", "operands of '+' must be two numbers or include a string, got %s and %s",
		left.TypeName(), right.TypeName())
}

func numberOperands(op token.Token, left, right Value) (NumberVal, NumberVal, error) {
	l, lok := left.(NumberVal)
	r, rok := right.(NumberVal)
	if !lok || !rok {
		return 0, 0, runtimeErr(op, "E4001", "operands of '%s' must be numbers, got %s and %s",
			op.Lexeme, left.TypeName(), right.TypeName())
	}
	return l, r, nil
}

// evalLogical yields the deciding operand itself, not a coerced boolean.
func (i *Interpreter) evalLogical(e *ast.LogicalExpr) (Value, error) {
	left, err := i.evalExpr(e.Left)
	if err != nil {
		return nil, err
	}

	if e.Op.Kind == token.KW_OR {
		if IsTruthy(left) {
			return left, nil
		}
	} else if !IsTruthy(left) {
		return left, nil
	}
	return i.evalExpr(e.Right)
}

func (i *Interpreter) evalTernary(e *ast.TernaryExpr) (Value, error) {
	cond, err := i.evalExpr(e.Condition)
	if err != nil {
		return nil, err
	}
	if IsTruthy(cond) {
		return i.evalExpr(e.Then)
	}
	return i.evalExpr(e.Else)
}

// ============================================================
// Calls
// ============================================================

func (i *Interpreter) evalCall(e *ast.CallExpr) (Value, error) {
	callee, err := i.evalExpr(e.Callee)
	if err != nil {
		return nil, err
	}

	args := make([]Value, len(e.Args))
	for idx, arg := range e.Args {
		val, err := i.evalExpr(arg)
		if err != nil {
			return nil, err
		}
		args[idx] = val
	}

	fn, ok := callee.(Callable)
	if !ok {
		return nil, runtimeErr(e.Paren, "E4006", "can only call functions and classes, got %s", callee.TypeName())
	}
	if len(args) != fn.Arity() {
		return nil, runtimeErr(e.Paren, "E4007", "expected %d arguments but got %d", fn.Arity(), len(args))
	}
	return i.call(fn, args, e.Paren)
}

// call invokes fn with the depth limit applied.
func (i *Interpreter) call(fn Callable, args []Value, paren token.Token) (Value, error) {
	if i.depth >= i.maxDepth {
		return nil, runtimeErr(paren, "E4011", "stack overflow")
	}
	i.depth++
	defer func() { i.depth-- }()

	i.logger.Debug("call",
		slog.String("callee", fn.String()),
		slog.Int("argument-count", len(args)),
		slog.Int("depth", i.depth))
	return fn.Call(i, args)
}

// ============================================================
// Properties
// ============================================================

func (i *Interpreter) evalGet(e *ast.GetExpr) (Value, error) {
	obj, err := i.evalExpr(e.Object)
	if err != nil {
		return nil, err
	}
	inst, ok := obj.(*Instance)
	if !ok {
		return nil, runtimeErr(e.Name, "E4008", "only instances have properties, got %s", obj.TypeName())
	}

	val, ok := inst.Get(e.Name.Lexeme)
	if !ok {
		return nil, runtimeErr(e.Name, "E4009", "undefined property '%s' on instance of class '%s'",
			e.Name.Lexeme, inst.Class.Name)
	}
	return val, nil
}

func (i *Interpreter) evalSet(e *ast.SetExpr) (Value, error) {
	val, err := i.evalExpr(e.Value)
	if err != nil {
		return nil, err
	}
	obj, err := i.evalExpr(e.Object)
	if err != nil {
		return nil, err
	}
	inst, ok := obj.(*Instance)
	if !ok {
		return nil, runtimeErr(e.Name, "E4008", "only instances have fields, got %s", obj.TypeName())
	}

	inst.Set(e.Name.Lexeme, val)
	return val, nil
}

// evalSuper finds the superclass at the resolved distance and the instance
// one scope closer, then binds the superclass method to that instance.
func (i *Interpreter) evalSuper(e *ast.SuperExpr) (Value, error) {
	distance := i.locals[e]
	superclass := i.env.GetAt(distance, "super").(*Class)
	inst := i.env.GetAt(distance-1, "this").(*Instance)

	method, ok := superclass.FindMethod(e.Method.Lexeme)
	if !ok {
		return nil, runtimeErr(e.Method, "E4009", "undefined property '%s' on superclass '%s'",
			e.Method.Lexeme, superclass.Name)
	}
	return method.Bind(inst), nil
}
