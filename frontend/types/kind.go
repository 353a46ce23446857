package types

// ParamKind classifies a parameter of a data type or structure
type ParamKind uint8

const (
	KindDimension ParamKind = iota + 1
	KindType
	KindTag
)

func (k ParamKind) String() string {
	switch k {
	case KindDimension:
		return "Dimension"
	case KindType:
		return "Type"
	case KindTag:
		return "Tag"
	default:
		return "?"
	}
}

// ParseKind reads a kind annotation as written in a declaration.
// An empty annotation means Type.
func ParseKind(annotation string) (ParamKind, bool) {
	switch annotation {
	case "", "Type":
		return KindType, true
	case "Nat", "ℕ":
		return KindDimension, true
	case "String", "Tag":
		return KindTag, true
	default:
		return 0, false
	}
}

// Param is a declared parameter position
type Param struct {
	Name string
	Kind ParamKind
}
