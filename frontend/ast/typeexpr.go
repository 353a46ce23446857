package ast

// TypeExpr is a signature expression as written by the user, before resolution.
//
// Dimension arithmetic such as (+ n 1) or (min m n) is represented by TypeApp,
// and only gets its arithmetic meaning in a dimension-kinded position.
type TypeExpr interface {
	Positioner
	typeExprNode()
}

var (
	_ TypeExpr = (*TypeName)(nil)
	_ TypeExpr = (*TypeApp)(nil)
	_ TypeExpr = (*FuncTypeExpr)(nil)
	_ TypeExpr = (*NatLit)(nil)
	_ TypeExpr = (*TagLit)(nil)
)

// TypeName is a bare identifier in type position: ℝ, T, m, Money
type TypeName struct {
	Range
	Name string
}

// TypeApp applies a named type to arguments: Matrix(m, n, ℝ)
type TypeApp struct {
	Range
	Name string
	Args []TypeExpr
}

// FuncTypeExpr is From → To
type FuncTypeExpr struct {
	Range
	From TypeExpr
	To   TypeExpr
}

// NatLit is a natural number literal used as a dimension: 3 in Vector(3)
type NatLit struct {
	Range
	Value uint64
}

// TagLit is a string literal used as a tag: "m/s" in Metric("m/s", ℝ)
type TagLit struct {
	Range
	Value string
}

func (*TypeName) typeExprNode()     {}
func (*TypeApp) typeExprNode()      {}
func (*FuncTypeExpr) typeExprNode() {}
func (*NatLit) typeExprNode()       {}
func (*TagLit) typeExprNode()       {}

// SplitFunction returns the argument types and the final result type of a
// curried signature A → B → C
func SplitFunction(sig TypeExpr) (args []TypeExpr, result TypeExpr) {
	for {
		fn, ok := sig.(*FuncTypeExpr)
		if !ok {
			return args, sig
		}
		args = append(args, fn.From)
		sig = fn.To
	}
}

// TypeNames calls yield for every identifier mentioned in t
func TypeNames(t TypeExpr, yield func(name string)) {
	switch t := t.(type) {
	case *TypeName:
		yield(t.Name)
	case *TypeApp:
		yield(t.Name)
		for _, arg := range t.Args {
			TypeNames(arg, yield)
		}
	case *FuncTypeExpr:
		TypeNames(t.From, yield)
		TypeNames(t.To, yield)
	case *NatLit, *TagLit, nil:
	}
}
