package types

import (
	"github.com/cottand/sigil/frontend/ast"
	"github.com/hashicorp/go-set/v3"
)

// BindingContext is the scratch state of one signature resolution: what each
// parameter name is bound to so far. Create a fresh one per call.
//
// Dimension and tag parameters that are declared but not bound are carried as
// DimParam and TagParam, tagged with the context's scope. Only the context that
// introduced a parameter may bind it, and never when it was declared rigid.
type BindingContext struct {
	session  *Session
	registry *Registry
	scope    uint32
	pos      ast.Range

	params map[string]ParamKind
	rigid  *set.Set[string]

	dims  map[string]TypeArg
	types map[string]Type
	tags  map[string]TypeArg
}

// scope of rigid parameters; Session.nextScope never returns it
const rigidScope uint32 = 0

func NewBindingContext(session *Session, registry *Registry) *BindingContext {
	if registry == nil {
		registry = Prelude()
	}
	return &BindingContext{
		session:  session,
		registry: registry,
		scope:    session.nextScope(),
		params:   make(map[string]ParamKind),
		rigid:    set.New[string](0),
		dims:     make(map[string]TypeArg),
		types:    make(map[string]Type),
		tags:     make(map[string]TypeArg),
	}
}

func (ctx *BindingContext) Session() *Session   { return ctx.session }
func (ctx *BindingContext) Registry() *Registry { return ctx.registry }

// At sets the source range reported by errors raised through ctx
func (ctx *BindingContext) At(p ast.Positioner) *BindingContext {
	ctx.pos = ast.RangeOf(p)
	return ctx
}

// Declare introduces a parameter that unification may instantiate
func (ctx *BindingContext) Declare(p Param) {
	ctx.params[p.Name] = p.Kind
}

// DeclareRigid introduces a parameter that stands for an arbitrary but fixed
// value: a Type parameter becomes the opaque type Named(name), and a dimension
// or tag parameter stays symbolic and cannot be bound.
//
// Rigid parameters live in scope 0, shared by every context, so that two
// contexts declaring the same rigid parameter agree on it.
func (ctx *BindingContext) DeclareRigid(p Param) {
	ctx.params[p.Name] = p.Kind
	switch p.Kind {
	case KindType:
		ctx.types[p.Name] = Named(p.Name)
	case KindDimension:
		ctx.rigid.Insert(p.Name)
		ctx.dims[p.Name] = DimParam{Name: p.Name, Scope: rigidScope}
	case KindTag:
		ctx.rigid.Insert(p.Name)
		ctx.tags[p.Name] = TagParam{Name: p.Name, Scope: rigidScope}
	}
}

func (ctx *BindingContext) BindType(name string, t Type) { ctx.types[name] = t }
func (ctx *BindingContext) BindDim(name string, n uint64) { ctx.dims[name] = DimArg{N: n} }
func (ctx *BindingContext) BindTag(name, value string)    { ctx.tags[name] = TagArg{Value: value} }

func (ctx *BindingContext) LookupType(name string) (Type, bool) {
	t, ok := ctx.types[name]
	if !ok {
		return nil, false
	}
	return ctx.Resolve(t), true
}

// LookupDim returns the concrete value bound to a dimension parameter
func (ctx *BindingContext) LookupDim(name string) (uint64, bool) {
	bound, ok := ctx.dims[name]
	if !ok {
		return 0, false
	}
	resolved, err := ctx.resolveDim(bound)
	if err != nil {
		return 0, false
	}
	n, ok := resolved.(DimArg)
	return n.N, ok
}

func (ctx *BindingContext) LookupTag(name string) (string, bool) {
	bound, ok := ctx.tags[name]
	if !ok {
		return "", false
	}
	tag, ok := ctx.resolveTag(bound).(TagArg)
	return tag.Value, ok
}

// kindOf is the kind name is known under in ctx, or 0 when it is unknown
func (ctx *BindingContext) kindOf(name string) ParamKind {
	switch {
	case ctx.types[name] != nil:
		return KindType
	case ctx.dims[name] != nil:
		return KindDimension
	case ctx.tags[name] != nil:
		return KindTag
	}
	return ctx.params[name]
}

func (ctx *BindingContext) isFlexible(name string, scope uint32) bool {
	return scope == ctx.scope && !ctx.rigid.Contains(name)
}

// Resolve applies the substitution to t and replaces every dimension and tag
// parameter bound in ctx by its value
func (ctx *BindingContext) Resolve(t Type) Type {
	t = ctx.session.Apply(t)
	switch t := t.(type) {
	case *FuncType:
		return Function(ctx.Resolve(t.From), ctx.Resolve(t.To))
	case *NamedType:
		if len(t.Args) == 0 {
			return t
		}
		args := make([]TypeArg, len(t.Args))
		for i, arg := range t.Args {
			args[i] = ctx.resolveArg(arg)
		}
		return Named(t.Name, args...)
	default:
		return t
	}
}

func (ctx *BindingContext) resolveArg(arg TypeArg) TypeArg {
	switch arg := arg.(type) {
	case TypeOf:
		return TypeOf{Type: ctx.Resolve(arg.Type)}
	case DimParam, DimTerm:
		resolved, err := ctx.resolveDim(arg)
		if err != nil {
			return arg
		}
		return resolved
	case TagParam:
		return ctx.resolveTag(arg)
	default:
		return arg
	}
}

func (ctx *BindingContext) resolveTag(arg TypeArg) TypeArg {
	for {
		param, ok := arg.(TagParam)
		if !ok || param.Scope != ctx.scope {
			return arg
		}
		bound, ok := ctx.tags[param.Name]
		if !ok || EqualArg(bound, param) {
			return arg
		}
		arg = bound
	}
}

// FlexibleParams returns the parameters declared in ctx that are still
// unbound and may be instantiated
func (ctx *BindingContext) FlexibleParams() []Param {
	var params []Param
	for name, kind := range ctx.params {
		if ctx.rigid.Contains(name) {
			continue
		}
		switch kind {
		case KindDimension:
			if _, ok := ctx.LookupDim(name); ok {
				continue
			}
		case KindTag:
			if _, ok := ctx.LookupTag(name); ok {
				continue
			}
		case KindType:
			if t, ok := ctx.LookupType(name); ok {
				if _, isVar := t.(*VarType); !isVar {
					continue
				}
			}
		}
		params = append(params, Param{Name: name, Kind: kind})
	}
	return params
}
