package runtime

import (
	"fmt"
	"log/slog"
	"lox-lang/internal/ast"
)

// Callable is implemented by every value that can appear as a callee.
type Callable interface {
	Value
	Arity() int
	Call(interp *Interpreter, args []Value) (Value, error)
}

// ---- User functions ----

// Function is a user-defined function or method together with the scope it
// closes over.
type Function struct {
	Decl          *ast.FuncDecl
	Closure       *Environment
	IsInitializer bool
}

func (f *Function) TypeName() string { return "function" }
func (f *Function) String() string   { return fmt.Sprintf("<fn %s>", f.Decl.Name.Lexeme) }

func (f *Function) Arity() int { return len(f.Decl.Params) }

// Bind returns a copy of f whose closure has "this" bound to inst.
func (f *Function) Bind(inst *Instance) *Function {
	env := NewEnvironment(f.Closure)
	env.Define("this", inst)
	return &Function{Decl: f.Decl, Closure: env, IsInitializer: f.IsInitializer}
}

// Call runs the body in a fresh scope holding the parameters. An initializer
// always yields its instance, whatever its return statement carried.
func (f *Function) Call(interp *Interpreter, args []Value) (Value, error) {
	env := NewEnvironment(f.Closure)
	for idx, param := range f.Decl.Params {
		env.Define(param.Lexeme, args[idx])
	}

	result, err := interp.execStmts(f.Decl.Body, env)
	if err != nil {
		return nil, err
	}
	if f.IsInitializer {
		return f.Closure.GetAt(0, "this"), nil
	}
	if result.Signal == SigReturn {
		return result.Value, nil
	}
	return NilVal{}, nil
}

// ---- Native functions ----

// NativeFn is the Go signature for native functions.
type NativeFn func(interp *Interpreter, args []Value) (Value, error)

// NativeFunction is a function implemented in Go.
type NativeFunction struct {
	Name    string
	NumArgs int
	Fn      NativeFn
}

func (n *NativeFunction) TypeName() string { return "function" }
func (n *NativeFunction) String() string   { return "<native fn>" }

func (n *NativeFunction) Arity() int { return n.NumArgs }

func (n *NativeFunction) Call(interp *Interpreter, args []Value) (Value, error) {
	return n.Fn(interp, args)
}

// ---- Classes and instances ----

// Class is a class value. Calling it creates an Instance.
type Class struct {
	Name       string
	Superclass *Class
	Methods    map[string]*Function
}

func (c *Class) TypeName() string { return "class" }
func (c *Class) String() string   { return fmt.Sprintf("<class '%s'>", c.Name) }

// FindMethod looks name up in c and then along its superclass chain.
func (c *Class) FindMethod(name string) (*Function, bool) {
	for cls := c; cls != nil; cls = cls.Superclass {
		if m, ok := cls.Methods[name]; ok {
			return m, true
		}
	}
	return nil, false
}

// Arity is the arity of init, or 0 when the class has none.
func (c *Class) Arity() int {
	if initializer, ok := c.FindMethod("init"); ok {
		return initializer.Arity()
	}
	return 0
}

// Call allocates an instance and runs init on it, if there is one.
func (c *Class) Call(interp *Interpreter, args []Value) (Value, error) {
	inst := &Instance{Class: c, Fields: make(map[string]Value)}
	interp.logger.Debug("instantiate class",
		slog.String("class", c.Name),
		slog.Int("argument-count", len(args)))

	if initializer, ok := c.FindMethod("init"); ok {
		if _, err := initializer.Bind(inst).Call(interp, args); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// Instance is an object created by calling a Class.
type Instance struct {
	Class  *Class
	Fields map[string]Value
}

func (v *Instance) TypeName() string { return "instance" }
func (v *Instance) String() string {
	return fmt.Sprintf("<instance of class '%s'>", v.Class.Name)
}

// Get reads a field, falling back to a method bound to v. Fields shadow
// methods of the same name.
func (v *Instance) Get(name string) (Value, bool) {
	if val, ok := v.Fields[name]; ok {
		return val, true
	}
	if m, ok := v.Class.FindMethod(name); ok {
		return m.Bind(v), true
	}
	return nil, false
}

// Set creates or overwrites a field.
func (v *Instance) Set(name string, value Value) {
	v.Fields[name] = value
}
