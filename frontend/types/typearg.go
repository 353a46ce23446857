package types

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeArg is an argument of a NamedType. Its Kind must agree with the kind
// declared for its position.
type TypeArg interface {
	fmt.Stringer
	Kind() ParamKind
	Hash() uint64
	argNode()
}

var (
	_ TypeArg = DimArg{}
	_ TypeArg = DimParam{}
	_ TypeArg = DimTerm{}
	_ TypeArg = TypeOf{}
	_ TypeArg = TagArg{}
	_ TypeArg = TagParam{}
)

// DimArg is a concrete dimension
type DimArg struct {
	N uint64
}

// DimParam is a dimension parameter that has not been instantiated.
// Scope identifies the BindingContext that introduced it, so that two
// parameters named n from different instantiations stay distinct.
type DimParam struct {
	Name  string
	Scope uint32
}

// DimTerm is dimension arithmetic over at least one DimParam, like n + 1
type DimTerm struct {
	Op   string
	Args []TypeArg
}

type TypeOf struct {
	Type Type
}

type TagArg struct {
	Value string
}

type TagParam struct {
	Name  string
	Scope uint32
}

func (DimArg) Kind() ParamKind   { return KindDimension }
func (DimParam) Kind() ParamKind { return KindDimension }
func (DimTerm) Kind() ParamKind  { return KindDimension }
func (TypeOf) Kind() ParamKind   { return KindType }
func (TagArg) Kind() ParamKind   { return KindTag }
func (TagParam) Kind() ParamKind { return KindTag }

func (DimArg) argNode()   {}
func (DimParam) argNode() {}
func (DimTerm) argNode()  {}
func (TypeOf) argNode()   {}
func (TagArg) argNode()   {}
func (TagParam) argNode() {}

func (a DimArg) String() string   { return strconv.FormatUint(a.N, 10) }
func (a DimParam) String() string { return a.Name }
func (a TypeOf) String() string   { return a.Type.String() }
func (a TagArg) String() string   { return strconv.Quote(a.Value) }
func (a TagParam) String() string { return a.Name }

func (a DimTerm) String() string {
	if len(a.Args) == 2 && isInfixDimOp(a.Op) {
		return "(" + a.Args[0].String() + " " + a.Op + " " + a.Args[1].String() + ")"
	}
	args := make([]string, len(a.Args))
	for i, arg := range a.Args {
		args[i] = arg.String()
	}
	return a.Op + "(" + strings.Join(args, ", ") + ")"
}

func (a DimArg) Hash() uint64   { return hashWith("Dim", a.N) }
func (a DimParam) Hash() uint64 { return hashWith("DimParam", hashString(a.Name), uint64(a.Scope)) }
func (a TypeOf) Hash() uint64   { return hashWith("TypeOf", a.Type.Hash()) }
func (a TagArg) Hash() uint64   { return hashWith("Tag", hashString(a.Value)) }
func (a TagParam) Hash() uint64 { return hashWith("TagParam", hashString(a.Name), uint64(a.Scope)) }

func (a DimTerm) Hash() uint64 {
	parts := []uint64{hashString(a.Op)}
	for _, arg := range a.Args {
		parts = append(parts, arg.Hash())
	}
	return hashWith("DimTerm", parts...)
}

// EqualArg compares two type arguments structurally
func EqualArg(a, b TypeArg) bool {
	switch a := a.(type) {
	case DimArg:
		b, ok := b.(DimArg)
		return ok && a == b
	case DimParam:
		b, ok := b.(DimParam)
		return ok && a == b
	case TagArg:
		b, ok := b.(TagArg)
		return ok && a == b
	case TagParam:
		b, ok := b.(TagParam)
		return ok && a == b
	case TypeOf:
		b, ok := b.(TypeOf)
		return ok && Equal(a.Type, b.Type)
	case DimTerm:
		b, ok := b.(DimTerm)
		if !ok || a.Op != b.Op || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !EqualArg(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	default:
		panic(fmt.Sprintf("unexpected type argument %T", a))
	}
}
