package runtime

import "fmt"

// Environment represents a variable scope with a parent chain. Closures hold
// a pointer to the scope they were created in, which keeps the whole chain
// alive for as long as any closure needs it.
type Environment struct {
	values map[string]Value
	parent *Environment
}

// NewEnvironment creates a new environment with an optional parent scope.
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{
		values: make(map[string]Value),
		parent: parent,
	}
}

// Define binds name to value in this scope, replacing any earlier binding.
func (e *Environment) Define(name string, value Value) {
	e.values[name] = value
}

// Declare binds name in this scope without a value. Reading it before an
// assignment is a runtime error.
func (e *Environment) Declare(name string) {
	e.values[name] = uninitialized{}
}

// Lookup reads name from this scope only.
func (e *Environment) Lookup(name string) (Value, bool) {
	val, ok := e.values[name]
	return val, ok
}

// Assign overwrites an existing binding in this scope.
func (e *Environment) Assign(name string, value Value) bool {
	if _, ok := e.values[name]; !ok {
		return false
	}
	e.values[name] = value
	return true
}

// Ancestor returns the scope distance hops up the chain.
func (e *Environment) Ancestor(distance int) *Environment {
	env := e
	for i := 0; i < distance && env != nil; i++ {
		env = env.parent
	}
	return env
}

// GetAt reads name from the scope distance hops up. The resolver guarantees
// the binding exists; a miss is an interpreter bug and panics.
func (e *Environment) GetAt(distance int, name string) Value {
	env := e.Ancestor(distance)
	if env == nil {
		panic(fmt.Sprintf("no scope at distance %d for '%s'", distance, name))
	}
	val, ok := env.values[name]
	if !ok {
		panic(fmt.Sprintf("'%s' not bound at distance %d", name, distance))
	}
	return val
}

// AssignAt overwrites name in the scope distance hops up.
func (e *Environment) AssignAt(distance int, name string, value Value) {
	env := e.Ancestor(distance)
	if env == nil {
		panic(fmt.Sprintf("no scope at distance %d for '%s'", distance, name))
	}
	if _, ok := env.values[name]; !ok {
		panic(fmt.Sprintf("'%s' not bound at distance %d", name, distance))
	}
	env.values[name] = value
}

// Names returns the names bound in this scope.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.values))
	for name := range e.values {
		names = append(names, name)
	}
	return names
}
