package types

import (
	"fmt"

	"github.com/cottand/sigil/frontend/sigerr"
)

// Unify makes expected and actual equal by binding type variables and the
// flexible dimension and tag parameters of ctx
func Unify(expected, actual Type, ctx *BindingContext) error {
	return ctx.unify(expected, actual)
}

func (ctx *BindingContext) unify(expected, actual Type) error {
	expected, actual = ctx.session.Apply(expected), ctx.session.Apply(actual)

	if v, ok := expected.(*VarType); ok {
		return ctx.session.subst.bind(ctx.pos, v.ID, actual)
	}
	if v, ok := actual.(*VarType); ok {
		return ctx.session.subst.bind(ctx.pos, v.ID, expected)
	}

	switch e := expected.(type) {
	case ScalarType:
		if _, ok := actual.(ScalarType); ok {
			return nil
		}
	case *NamedType:
		a, ok := actual.(*NamedType)
		if !ok {
			break
		}
		if e.Name != a.Name || len(e.Args) != len(a.Args) {
			break
		}
		for i := range e.Args {
			if err := ctx.unifyArg(e, a, e.Args[i], a.Args[i]); err != nil {
				return err
			}
		}
		return nil
	case *FuncType:
		a, ok := actual.(*FuncType)
		if !ok {
			break
		}
		if err := ctx.unify(e.From, a.From); err != nil {
			return err
		}
		return ctx.unify(e.To, a.To)
	}
	return ctx.mismatch(expected, actual, "")
}

func (ctx *BindingContext) mismatch(expected, actual Type, reason string) error {
	return sigerr.New(sigerr.NewTypeMismatch{
		Range:    ctx.pos,
		Expected: ctx.Resolve(expected).String(),
		Found:    ctx.Resolve(actual).String(),
		Reason:   reason,
	})
}

func (ctx *BindingContext) unifyArg(expectedT, actualT *NamedType, expected, actual TypeArg) error {
	if expected.Kind() != actual.Kind() {
		return ctx.mismatch(expectedT, actualT, fmt.Sprintf("%s argument given where a %s is expected", actual.Kind(), expected.Kind()))
	}
	switch expected.Kind() {
	case KindType:
		return ctx.unify(expected.(TypeOf).Type, actual.(TypeOf).Type)
	case KindDimension:
		return ctx.unifyDim(expected, actual)
	case KindTag:
		return ctx.unifyTag(expected, actual)
	default:
		panic(fmt.Sprintf("unexpected kind %d", expected.Kind()))
	}
}

// boundParam is the name of the parameter of ctx that arg resolves through, if any
func (ctx *BindingContext) boundParam(arg TypeArg) string {
	switch arg := arg.(type) {
	case DimParam:
		if _, bound := ctx.dims[arg.Name]; bound && arg.Scope == ctx.scope {
			return arg.Name
		}
	case TagParam:
		if _, bound := ctx.tags[arg.Name]; bound && arg.Scope == ctx.scope {
			return arg.Name
		}
	}
	return ""
}

// unboundFlexible reports whether arg is a parameter ctx may still bind
func (ctx *BindingContext) unboundFlexible(arg TypeArg) (string, bool) {
	switch arg := arg.(type) {
	case DimParam:
		_, bound := ctx.dims[arg.Name]
		return arg.Name, !bound && ctx.isFlexible(arg.Name, arg.Scope)
	case TagParam:
		_, bound := ctx.tags[arg.Name]
		return arg.Name, !bound && ctx.isFlexible(arg.Name, arg.Scope)
	}
	return "", false
}

func (ctx *BindingContext) unifyDim(expected, actual TypeArg) error {
	param := ctx.boundParam(expected)
	if param == "" {
		param = ctx.boundParam(actual)
	}
	e, err := ctx.resolveDim(expected)
	if err != nil {
		return err
	}
	a, err := ctx.resolveDim(actual)
	if err != nil {
		return err
	}
	if EqualArg(e, a) {
		return nil
	}
	if name, ok := ctx.unboundFlexible(e); ok && !ctx.mentions(a, e) {
		ctx.dims[name] = a
		return nil
	}
	if name, ok := ctx.unboundFlexible(a); ok && !ctx.mentions(e, a) {
		ctx.dims[name] = e
		return nil
	}
	if n, ok := a.(DimArg); ok && ctx.solveDim(e, n.N) {
		return nil
	}
	if n, ok := e.(DimArg); ok && ctx.solveDim(a, n.N) {
		return nil
	}
	if eTerm, ok := e.(DimTerm); ok {
		if aTerm, ok := a.(DimTerm); ok && eTerm.Op == aTerm.Op && len(eTerm.Args) == len(aTerm.Args) {
			for i := range eTerm.Args {
				if err := ctx.unifyDim(eTerm.Args[i], aTerm.Args[i]); err != nil {
					return err
				}
			}
			return nil
		}
	}
	if param == "" {
		if p, ok := e.(DimParam); ok {
			param = p.Name
		} else if p, ok := a.(DimParam); ok {
			param = p.Name
		}
	}
	return sigerr.New(sigerr.NewDimMismatch{Range: ctx.pos, Param: param, Expected: e.String(), Got: a.String()})
}

// mentions reports whether param occurs inside arg
func (ctx *BindingContext) mentions(arg, param TypeArg) bool {
	found := false
	symbolicArgParams(arg, func(p TypeArg) {
		found = found || EqualArg(p, param)
	})
	return found
}

func (ctx *BindingContext) unifyTag(expected, actual TypeArg) error {
	param := ctx.boundParam(expected)
	if param == "" {
		param = ctx.boundParam(actual)
	}
	e, a := ctx.resolveTag(expected), ctx.resolveTag(actual)
	if EqualArg(e, a) {
		return nil
	}
	if name, ok := ctx.unboundFlexible(e); ok {
		ctx.tags[name] = a
		return nil
	}
	if name, ok := ctx.unboundFlexible(a); ok {
		ctx.tags[name] = e
		return nil
	}
	if param == "" {
		if p, ok := e.(TagParam); ok {
			param = p.Name
		} else if p, ok := a.(TagParam); ok {
			param = p.Name
		}
	}
	return sigerr.New(sigerr.NewTagMismatch{Range: ctx.pos, Param: param, Expected: tagValue(e), Got: tagValue(a)})
}

func tagValue(arg TypeArg) string {
	if tag, ok := arg.(TagArg); ok {
		return tag.Value
	}
	return arg.String()
}
