package runtime

import (
	"time"
)

// RegisterBuiltins adds the native functions to the given environment and
// returns their names.
func RegisterBuiltins(env *Environment) []string {
	natives := []*NativeFunction{
		{
			Name:    "clock",
			NumArgs: 0,
			Fn: func(_ *Interpreter, _ []Value) (Value, error) {
				return NumberVal(float64(time.Now().UnixMilli()) / 1000.0), nil
			},
		},
	}

	names := make([]string, len(natives))
	for idx, fn := range natives {
		env.Define(fn.Name, fn)
		names[idx] = fn.Name
	}
	return names
}
