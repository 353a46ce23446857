package ast

import (
	"encoding/binary"
	"hash/fnv"
)

// Expr is a proposition or term: the body of an axiom or of an assertion
type Expr interface {
	Positioner
	// ExprName is a short, human-readable description of the node kind
	ExprName() string
	// Hash is structural and ignores source positions
	Hash() uint64
	exprNode()
}

var (
	_ Expr = (*Ident)(nil)
	_ Expr = (*NumberLit)(nil)
	_ Expr = (*Text)(nil)
	_ Expr = (*Call)(nil)
	_ Expr = (*Quantifier)(nil)
)

// Reserved operator names with a fixed logical meaning
const (
	OpEq      = "="
	OpNeq     = "!="
	OpAnd     = "and"
	OpOr      = "or"
	OpNot     = "not"
	OpImplies = "implies"
	OpIff     = "iff"
	OpLt      = "<"
	OpLe      = "<="
	OpGt      = ">"
	OpGe      = ">="
)

// Ident is a variable, element, or nullary operation reference
type Ident struct {
	Range
	Name string
}

// NumberLit is a decimal numeral, kept as written
type NumberLit struct {
	Range
	Text string
}

// Text is a string literal
type Text struct {
	Range
	Value string
}

// Call applies a named operation to arguments: (+ x y), (implies p q)
type Call struct {
	Range
	Op   string
	Args []Expr
}

type QuantifierKind uint8

const (
	ForAll QuantifierKind = iota + 1
	Exists
)

func (k QuantifierKind) String() string {
	switch k {
	case ForAll:
		return "∀"
	case Exists:
		return "∃"
	default:
		return "?"
	}
}

// Binder introduces one or more variables sharing a type annotation: (x y : R).
// Type may be nil when the binder is unannotated.
type Binder struct {
	Names []string
	Type  TypeExpr
}

// Quantifier is ∀(binders) where Where. Body, or the ∃ equivalent.
// Where may be nil.
type Quantifier struct {
	Range
	Kind    QuantifierKind
	Binders []Binder
	Where   Expr
	Body    Expr
}

func (*Ident) exprNode()      {}
func (*NumberLit) exprNode()  {}
func (*Text) exprNode()       {}
func (*Call) exprNode()       {}
func (*Quantifier) exprNode() {}

func (*Ident) ExprName() string      { return "identifier" }
func (*NumberLit) ExprName() string  { return "number" }
func (*Text) ExprName() string       { return "string" }
func (e *Call) ExprName() string     { return "call to " + e.Op }
func (*Quantifier) ExprName() string { return "quantifier" }

func hashWith(tag string, parts ...uint64) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tag))
	arr := make([]byte, 0, 8*len(parts))
	for _, p := range parts {
		arr = binary.LittleEndian.AppendUint64(arr, p)
	}
	_, _ = h.Write(arr)
	return h.Sum64()
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func (e *Ident) Hash() uint64     { return hashWith("Ident", hashString(e.Name)) }
func (e *NumberLit) Hash() uint64 { return hashWith("NumberLit", hashString(e.Text)) }
func (e *Text) Hash() uint64      { return hashWith("Text", hashString(e.Value)) }

func (e *Call) Hash() uint64 {
	parts := []uint64{hashString(e.Op)}
	for _, arg := range e.Args {
		parts = append(parts, arg.Hash())
	}
	return hashWith("Call", parts...)
}

func (e *Quantifier) Hash() uint64 {
	parts := []uint64{uint64(e.Kind)}
	for _, b := range e.Binders {
		for _, name := range b.Names {
			parts = append(parts, hashString(name))
		}
		if b.Type != nil {
			parts = append(parts, hashString(TypeExprString(b.Type)))
		}
	}
	if e.Where != nil {
		parts = append(parts, e.Where.Hash())
	}
	parts = append(parts, e.Body.Hash())
	return hashWith("Quantifier", parts...)
}

// FreeIdents calls yield for every identifier occurrence in e that is not bound
// by an enclosing quantifier of e
func FreeIdents(e Expr, yield func(*Ident)) {
	freeIdents(e, map[string]int{}, yield)
}

func freeIdents(e Expr, bound map[string]int, yield func(*Ident)) {
	switch e := e.(type) {
	case *Ident:
		if bound[e.Name] == 0 {
			yield(e)
		}
	case *Call:
		for _, arg := range e.Args {
			freeIdents(arg, bound, yield)
		}
	case *Quantifier:
		for _, b := range e.Binders {
			for _, name := range b.Names {
				bound[name]++
			}
		}
		if e.Where != nil {
			freeIdents(e.Where, bound, yield)
		}
		freeIdents(e.Body, bound, yield)
		for _, b := range e.Binders {
			for _, name := range b.Names {
				bound[name]--
			}
		}
	case *NumberLit, *Text:
	}
}

// ContainsQuantifier reports whether e has a quantifier anywhere
func ContainsQuantifier(e Expr) bool {
	switch e := e.(type) {
	case *Quantifier:
		return true
	case *Call:
		for _, arg := range e.Args {
			if ContainsQuantifier(arg) {
				return true
			}
		}
	}
	return false
}
