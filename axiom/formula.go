// Package axiom translates propositions into typed formulas: the axioms of
// structures, and the goals of assertions that need a solver.
package axiom

import (
	"fmt"
	"strings"

	"github.com/cottand/sigil/frontend/ast"
	"github.com/cottand/sigil/frontend/types"
)

// Formula is a typed proposition or term. Every node carries a resolved
// types.Type: type variables never survive compilation.
type Formula interface {
	fmt.Stringer
	Type() types.Type
	formula()
}

var (
	_ Formula = (*Var)(nil)
	_ Formula = (*Const)(nil)
	_ Formula = (*App)(nil)
	_ Formula = (*Quant)(nil)
)

// Var is a quantified variable, or a free constant of a goal
type Var struct {
	Name string
	T    types.Type
}

type ConstKind uint8

const (
	NumberConst ConstKind = iota + 1
	BoolConst
	TextConst
)

// Const is a literal. Numbers are kept as written, or as a/b for rationals.
type Const struct {
	Kind  ConstKind
	Value string
	T     types.Type
}

// App applies an operation. Builtin operations are the logical connectives,
// equality, comparisons and arithmetic over numeric types; every other
// operation is uninterpreted, and Owner names the structure whose abstract
// instance typed it.
type App struct {
	Op      string
	Args    []Formula
	T       types.Type
	Builtin bool
	Owner   string
}

// Quant binds a single variable
type Quant struct {
	Kind ast.QuantifierKind
	Var  *Var
	Body Formula
}

func (*Var) formula()   {}
func (*Const) formula() {}
func (*App) formula()   {}
func (*Quant) formula() {}

func (v *Var) Type() types.Type   { return v.T }
func (c *Const) Type() types.Type { return c.T }
func (a *App) Type() types.Type   { return a.T }
func (*Quant) Type() types.Type   { return boolType() }

func (v *Var) String() string { return v.Name }

func (c *Const) String() string {
	if c.Kind == TextConst {
		return fmt.Sprintf("%q", c.Value)
	}
	return c.Value
}

// String is a canonical rendering that also shows the type of every
// uninterpreted application, so that equal strings mean equal formulas
func (a *App) String() string {
	sb := &strings.Builder{}
	sb.WriteString("(")
	sb.WriteString(a.Op)
	if !a.Builtin {
		sb.WriteString(":")
		sb.WriteString(a.T.String())
	}
	for _, arg := range a.Args {
		sb.WriteString(" ")
		sb.WriteString(arg.String())
	}
	sb.WriteString(")")
	return sb.String()
}

func (q *Quant) String() string {
	return fmt.Sprintf("(%s (%s %s) %s)", q.Kind, q.Var.Name, q.Var.T, q.Body)
}

func boolType() types.Type { return types.Named(types.BoolName) }

// Builtin constructors, used when lowering and by the verification engine

func True() Formula {
	return &Const{Kind: BoolConst, Value: "true", T: boolType()}
}

// IsTrue reports whether f is the constant true
func IsTrue(f Formula) bool {
	c, ok := f.(*Const)
	return ok && c.Kind == BoolConst && c.Value == "true"
}

func Not(f Formula) Formula {
	return &App{Op: ast.OpNot, Args: []Formula{f}, T: boolType(), Builtin: true}
}

func Implies(p, q Formula) Formula {
	return &App{Op: ast.OpImplies, Args: []Formula{p, q}, T: boolType(), Builtin: true}
}

func And(p, q Formula) Formula {
	return &App{Op: ast.OpAnd, Args: []Formula{p, q}, T: boolType(), Builtin: true}
}

func Eq(lhs, rhs Formula) Formula {
	return &App{Op: ast.OpEq, Args: []Formula{lhs, rhs}, T: boolType(), Builtin: true}
}

func ForAll(v *Var, body Formula) Formula {
	return &Quant{Kind: ast.ForAll, Var: v, Body: body}
}

// Walk calls visit on f and every sub-formula of f, parents first
func Walk(f Formula, visit func(Formula)) {
	visit(f)
	switch f := f.(type) {
	case *App:
		for _, arg := range f.Args {
			Walk(arg, visit)
		}
	case *Quant:
		Walk(f.Var, visit)
		Walk(f.Body, visit)
	}
}
