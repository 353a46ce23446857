package evaluator

import (
	"github.com/benbjohnson/immutable"
	"github.com/cottand/sigil/frontend/ast"
)

// Env holds the values and definitions visible to an evaluation.
// Extending an Env never changes the Env it was extended from, so an Env can
// be shared by concurrent evaluations.
type Env struct {
	values  *immutable.Map[string, Value]
	defines *immutable.Map[string, *ast.Define]
}

func NewEnv() *Env {
	return &Env{
		values:  immutable.NewMap[string, Value](immutable.NewHasher("")),
		defines: immutable.NewMap[string, *ast.Define](immutable.NewHasher("")),
	}
}

// With returns a copy of e where name is bound to v
func (e *Env) With(name string, v Value) *Env {
	return &Env{values: e.values.Set(name, v), defines: e.defines}
}

// WithDefine returns a copy of e where d can be called
func (e *Env) WithDefine(d *ast.Define) *Env {
	return &Env{values: e.values, defines: e.defines.Set(d.Name, d)}
}

func (e *Env) Lookup(name string) (Value, bool) {
	if v, ok := e.values.Get(name); ok {
		return v, true
	}
	return constant(name)
}

func (e *Env) Define(name string) (*ast.Define, bool) {
	return e.defines.Get(name)
}

// Has reports whether name denotes a value in e, so that an identifier
// with that name is not a free variable
func (e *Env) Has(name string) bool {
	_, ok := e.Lookup(name)
	return ok
}

// Names lists the bound names of e, not including builtin constants
func (e *Env) Names() []string {
	names := make([]string, 0, e.values.Len())
	itr := e.values.Iterator()
	for !itr.Done() {
		name, _, _ := itr.Next()
		names = append(names, name)
	}
	return names
}

func constant(name string) (Value, bool) {
	switch name {
	case "true", "⊤":
		return Bool(true), true
	case "false", "⊥":
		return Bool(false), true
	case "pi", "π":
		return Float(3.141592653589793), true
	}
	return nil, false
}
