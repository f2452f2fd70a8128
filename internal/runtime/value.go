// Package runtime implements the interpreter and runtime value system for Lox.
package runtime

import (
	"math"
	"strconv"
)

// Value is the interface for all runtime values.
type Value interface {
	TypeName() string
	String() string
}

// ---- Primitive values ----

// NilVal represents nil.
type NilVal struct{}

func (v NilVal) TypeName() string { return "nil" }
func (v NilVal) String() string   { return "nil" }

// BoolVal represents a boolean value.
type BoolVal bool

func (v BoolVal) TypeName() string { return "boolean" }
func (v BoolVal) String() string   { return strconv.FormatBool(bool(v)) }

// NumberVal represents a double-precision number.
type NumberVal float64

func (v NumberVal) TypeName() string { return "number" }

// String formats the number in its shortest round-trip form without a
// trailing ".0". Negative zero prints as 0.
func (v NumberVal) String() string {
	f := float64(v)
	if f == 0 {
		return "0"
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// StringVal represents a string value.
type StringVal string

func (v StringVal) TypeName() string { return "string" }
func (v StringVal) String() string   { return string(v) }

// uninitialized fills the slot of a variable declared without an
// initializer. It never escapes the environment as a readable value.
type uninitialized struct{}

func (uninitialized) TypeName() string { return "uninitialized" }
func (uninitialized) String() string   { return "<uninitialized>" }

// ---- Truthiness and equality ----

// IsTruthy reports the truthiness of v: only nil and false are false.
func IsTruthy(v Value) bool {
	switch val := v.(type) {
	case NilVal:
		return false
	case BoolVal:
		return bool(val)
	default:
		return true
	}
}

// valuesEqual compares values of the same kind. Values of different kinds are
// never equal; numbers compare numerically so 0 == -0; callables and instances
// compare by identity.
func valuesEqual(a, b Value) bool {
	switch av := a.(type) {
	case NilVal:
		_, ok := b.(NilVal)
		return ok
	case BoolVal:
		bv, ok := b.(BoolVal)
		return ok && av == bv
	case NumberVal:
		bv, ok := b.(NumberVal)
		return ok && float64(av) == float64(bv)
	case StringVal:
		bv, ok := b.(StringVal)
		return ok && av == bv
	default:
		return a == b
	}
}
