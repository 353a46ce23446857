package ast

// TypeParam is a declared parameter of a data type or structure.
// Kind is the kind annotation as written ("Nat", "String", "Type"), empty when omitted.
type TypeParam struct {
	Range
	Name string
	Kind string
}

// DataDef declares a user type: data Metric(unit: String, T)
type DataDef struct {
	Range
	Name   string
	Params []TypeParam
}

// StructureDef is a named algebraic signature
//
//	structure Ring(R) extends Group(R) {
//	    operation (+) : R → R → R
//	    axiom commutativity: ∀(x y : R). x + y = y + x
//	}
type StructureDef struct {
	Range
	Name    string
	Params  []TypeParam
	Extends TypeExpr // may be nil
	Over    TypeExpr // may be nil
	Members []Member
}

// Member is one of *Operation, *Element, *Axiom, *Define
type Member interface {
	Positioner
	MemberName() string
	memberNode()
}

var (
	_ Member = (*Operation)(nil)
	_ Member = (*Element)(nil)
	_ Member = (*Axiom)(nil)
	_ Member = (*Define)(nil)
)

type Operation struct {
	Range
	Name      string
	Signature TypeExpr
}

// Element is a nullary operation, like zero or e
type Element struct {
	Range
	Name string
	Type TypeExpr
}

type Axiom struct {
	Range
	Name string
	Prop Expr
}

// Define gives an operation a body: define double(x) = x + x
type Define struct {
	Range
	Name   string
	Params []string
	Body   Expr
}

func (m *Operation) MemberName() string { return m.Name }
func (m *Element) MemberName() string   { return m.Name }
func (m *Axiom) MemberName() string     { return m.Name }
func (m *Define) MemberName() string    { return m.Name }

func (*Operation) memberNode() {}
func (*Element) memberNode()   {}
func (*Axiom) memberNode()     {}
func (*Define) memberNode()    {}

// Signature returns the declared type of an operation or element, and false for other members
func Signature(m Member) (TypeExpr, bool) {
	switch m := m.(type) {
	case *Operation:
		return m.Signature, true
	case *Element:
		return m.Type, true
	default:
		return nil, false
	}
}

// Assertion is a user claim to be checked.
// Structure optionally names the structure whose axioms govern the claim.
type Assertion struct {
	Range
	Name      string
	Structure string
	Expr      Expr
}
