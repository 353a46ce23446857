package types

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strings"
)

// Type is a resolved type: one of ScalarType, *NamedType, *FuncType or *VarType
type Type interface {
	fmt.Stringer
	Hash() uint64
	typeNode()
}

var (
	_ Type = ScalarType{}
	_ Type = (*NamedType)(nil)
	_ Type = (*FuncType)(nil)
	_ Type = (*VarType)(nil)
)

// ScalarType is the type of real-valued quantities, written ℝ
type ScalarType struct{}

var Scalar Type = ScalarType{}

// NamedType is a registered (or opaque) nominal type applied to its arguments
type NamedType struct {
	Name string
	Args []TypeArg
}

type FuncType struct {
	From, To Type
}

type VarID int

// VarType is a type variable; its meaning lives in the Subst of the Session that created it
type VarType struct {
	ID VarID
}

func Named(name string, args ...TypeArg) *NamedType {
	return &NamedType{Name: name, Args: args}
}

func Function(from, to Type) *FuncType {
	return &FuncType{From: from, To: to}
}

// Functions builds the curried type args[0] → args[1] → ... → result
func Functions(args []Type, result Type) Type {
	for i := len(args) - 1; i >= 0; i-- {
		result = Function(args[i], result)
	}
	return result
}

func (ScalarType) typeNode() {}
func (*NamedType) typeNode() {}
func (*FuncType) typeNode()  {}
func (*VarType) typeNode()   {}

func (ScalarType) String() string { return "ℝ" }

func (t *NamedType) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	sb := strings.Builder{}
	sb.WriteString(t.Name)
	sb.WriteString("(")
	for i, arg := range t.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(arg.String())
	}
	sb.WriteString(")")
	return sb.String()
}

func (t *FuncType) String() string {
	from := t.From.String()
	if _, ok := t.From.(*FuncType); ok {
		from = "(" + from + ")"
	}
	return from + " → " + t.To.String()
}

func (t *VarType) String() string { return fmt.Sprintf("'t%d", t.ID) }

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

func (ScalarType) Hash() uint64 { return hashWith("Scalar") }

func (t *NamedType) Hash() uint64 {
	parts := []uint64{hashString(t.Name)}
	for _, arg := range t.Args {
		parts = append(parts, arg.Hash())
	}
	return hashWith("Named", parts...)
}

func (t *FuncType) Hash() uint64 { return hashWith("Func", t.From.Hash(), t.To.Hash()) }
func (t *VarType) Hash() uint64  { return hashWith("Var", uint64(t.ID)) }

// Equal compares two types structurally, without consulting any substitution
func Equal(a, b Type) bool {
	switch a := a.(type) {
	case ScalarType:
		_, ok := b.(ScalarType)
		return ok
	case *NamedType:
		b, ok := b.(*NamedType)
		if !ok || a.Name != b.Name || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !EqualArg(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	case *FuncType:
		b, ok := b.(*FuncType)
		return ok && Equal(a.From, b.From) && Equal(a.To, b.To)
	case *VarType:
		b, ok := b.(*VarType)
		return ok && a.ID == b.ID
	case nil:
		return b == nil
	default:
		panic(fmt.Sprintf("unexpected type %T", a))
	}
}

// Vars calls yield for every type variable occurring in t
func Vars(t Type, yield func(*VarType)) {
	switch t := t.(type) {
	case *VarType:
		yield(t)
	case *FuncType:
		Vars(t.From, yield)
		Vars(t.To, yield)
	case *NamedType:
		for _, arg := range t.Args {
			if arg, ok := arg.(TypeOf); ok {
				Vars(arg.Type, yield)
			}
		}
	case ScalarType:
	}
}

// SymbolicParams calls yield for every dimension or tag argument in t that
// still names a parameter instead of a value
func SymbolicParams(t Type, yield func(TypeArg)) {
	switch t := t.(type) {
	case *FuncType:
		SymbolicParams(t.From, yield)
		SymbolicParams(t.To, yield)
	case *NamedType:
		for _, arg := range t.Args {
			symbolicArgParams(arg, yield)
		}
	case *VarType, ScalarType:
	}
}

func symbolicArgParams(arg TypeArg, yield func(TypeArg)) {
	switch arg := arg.(type) {
	case DimParam, TagParam:
		yield(arg)
	case DimTerm:
		for _, operand := range arg.Args {
			symbolicArgParams(operand, yield)
		}
	case TypeOf:
		SymbolicParams(arg.Type, yield)
	case DimArg, TagArg:
	}
}

// IsNumeric reports whether values of t are numbers: ℝ, ℤ, ℕ or ℚ
func IsNumeric(t Type) bool {
	switch t := t.(type) {
	case ScalarType:
		return true
	case *NamedType:
		return len(t.Args) == 0 && (t.Name == IntName || t.Name == NatName || t.Name == RationalName)
	default:
		return false
	}
}
