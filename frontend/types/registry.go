package types

import (
	"slices"
	"sync"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/sigil/frontend/ast"
	"github.com/cottand/sigil/frontend/sigerr"
)

// canonical names of the builtin named types
const (
	IntName      = "ℤ"
	NatName      = "ℕ"
	RationalName = "ℚ"
	ComplexName  = "ℂ"
	BoolName     = "Bool"
	StringName   = "String"
	UnitName     = "Unit"
	SetName      = "Set"
	BitVecName   = "BitVec"
)

// IsScalarName reports whether name denotes the primitive Scalar type
func IsScalarName(name string) bool {
	switch name {
	case "ℝ", "Real", "Scalar":
		return true
	}
	return false
}

// DataTypeDef is a user-defined (or builtin) parametric type.
// Name is the canonical name; aliases registered for it resolve to the same DataTypeDef.
type DataTypeDef struct {
	ast.Range
	Name   string
	Params []Param
}

func (d DataTypeDef) Arity() int { return len(d.Params) }

// Registry is a frozen set of DataTypeDef, safe for concurrent readers
type Registry struct {
	defs *immutable.Map[string, DataTypeDef]
}

func (r *Registry) Get(name string) (DataTypeDef, bool) {
	if r == nil {
		return DataTypeDef{}, false
	}
	return r.defs.Get(name)
}

func (r *Registry) Arity(name string) (int, bool) {
	def, ok := r.Get(name)
	return def.Arity(), ok
}

// Names returns every registered name, aliases included, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, r.defs.Len())
	itr := r.defs.Iterator()
	for !itr.Done() {
		name, _, _ := itr.Next()
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Builder accumulates definitions during the load phase
type Builder struct {
	defs *immutable.Map[string, DataTypeDef]
}

// NewBuilder returns a Builder already holding the Prelude types
func NewBuilder() *Builder {
	return &Builder{defs: Prelude().defs}
}

func (b *Builder) Register(def DataTypeDef) error {
	return b.register(def, def.Name)
}

func (b *Builder) register(def DataTypeDef, name string) error {
	if _, exists := b.defs.Get(name); exists || IsScalarName(name) {
		return sigerr.New(sigerr.NewDuplicateTypeDefinition{Range: def.Range, Name: name})
	}
	b.defs = b.defs.Set(name, def)
	return nil
}

// RegisterDecl converts a parsed declaration and registers it
func (b *Builder) RegisterDecl(decl *ast.DataDef) error {
	def := DataTypeDef{Range: decl.Range, Name: decl.Name}
	for _, p := range decl.Params {
		kind, ok := ParseKind(p.Kind)
		if !ok {
			return sigerr.New(sigerr.NewKindAnnotation{Range: p.Range, Param: p.Name, Kind: p.Kind})
		}
		def.Params = append(def.Params, Param{Name: p.Name, Kind: kind})
	}
	return b.Register(def)
}

// Freeze ends the load phase. The Builder may keep being used,
// without affecting the returned Registry.
func (b *Builder) Freeze() *Registry {
	return &Registry{defs: b.defs}
}

var (
	preludeOnce sync.Once
	prelude     *Registry
)

// Prelude holds the builtin named types
func Prelude() *Registry {
	preludeOnce.Do(func() {
		b := &Builder{defs: immutable.NewMap[string, DataTypeDef](immutable.NewHasher(""))}
		builtins := []struct {
			def     DataTypeDef
			aliases []string
		}{
			{DataTypeDef{Name: IntName}, []string{"Int"}},
			{DataTypeDef{Name: NatName}, []string{"Nat"}},
			{DataTypeDef{Name: RationalName}, []string{"Rational"}},
			{DataTypeDef{Name: ComplexName}, []string{"Complex"}},
			{DataTypeDef{Name: BoolName}, nil},
			{DataTypeDef{Name: StringName}, nil},
			{DataTypeDef{Name: UnitName}, nil},
			{DataTypeDef{Name: SetName, Params: []Param{{"T", KindType}}}, nil},
			{DataTypeDef{Name: BitVecName, Params: []Param{{"n", KindDimension}}}, nil},
		}
		for _, builtin := range builtins {
			for _, name := range append([]string{builtin.def.Name}, builtin.aliases...) {
				if err := b.register(builtin.def, name); err != nil {
					panic(err)
				}
			}
		}
		prelude = b.Freeze()
	})
	return prelude
}
