package evaluator

import (
	"fmt"
	"math"
	"reflect"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// mathFuncs maps the function names of the language to the Go math package
var mathFuncs = map[string]string{
	"sin":   "Sin",
	"cos":   "Cos",
	"tan":   "Tan",
	"asin":  "Asin",
	"acos":  "Acos",
	"atan":  "Atan",
	"atan2": "Atan2",
	"sinh":  "Sinh",
	"cosh":  "Cosh",
	"tanh":  "Tanh",
	"exp":   "Exp",
	"ln":    "Log",
	"log":   "Log",
	"log2":  "Log2",
	"log10": "Log10",
	"sqrt":  "Sqrt",
	"cbrt":  "Cbrt",
	"hypot": "Hypot",
	"pow":   "Pow",
}

// mathLibrary resolves numeric functions through a Go interpreter loaded with
// the standard library, so that they behave exactly like Go's math package
type mathLibrary struct {
	mu    sync.Mutex
	i     *interp.Interpreter
	funcs map[string]reflect.Value
}

func newMathLibrary() (*mathLibrary, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("error loading Go interpreter: %w", err)
	}
	if _, err := i.Eval(`import "math"`); err != nil {
		return nil, fmt.Errorf("error importing math: %w", err)
	}
	return &mathLibrary{i: i, funcs: make(map[string]reflect.Value)}, nil
}

func (l *mathLibrary) has(name string) bool {
	_, ok := mathFuncs[name]
	return ok
}

func (l *mathLibrary) lookup(name string) (reflect.Value, error) {
	goName, ok := mathFuncs[name]
	if !ok {
		return reflect.Value{}, fmt.Errorf("%w: unknown function %s", ErrNotReducible, name)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if fn, ok := l.funcs[name]; ok {
		return fn, nil
	}
	fn, err := l.i.Eval("math." + goName)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("resolving math.%s: %w", goName, err)
	}
	if fn.Kind() != reflect.Func {
		return reflect.Value{}, fmt.Errorf("math.%s is a %v, not a function", goName, fn.Kind())
	}
	l.funcs[name] = fn
	return fn, nil
}

// call applies a float64 function of the math package to args
func (l *mathLibrary) call(name string, args []Number) (Number, error) {
	fn, err := l.lookup(name)
	if err != nil {
		return Number{}, err
	}
	if fn.Type().NumIn() != len(args) {
		return Number{}, fmt.Errorf("%s takes %d arguments, got %d", name, fn.Type().NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		in[i] = reflect.ValueOf(arg.Float())
	}
	out := fn.Call(in)
	if len(out) != 1 || out[0].Kind() != reflect.Float64 {
		return Number{}, fmt.Errorf("math.%s does not return a single float64", mathFuncs[name])
	}
	result := out[0].Float()
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return Number{}, fmt.Errorf("%w: %s(%v) is not a real number", ErrDomain, name, formatArgs(args))
	}
	return Float(result), nil
}

func formatArgs(args []Number) string {
	s := ""
	for i, arg := range args {
		if i > 0 {
			s += ", "
		}
		s += arg.String()
	}
	return s
}
