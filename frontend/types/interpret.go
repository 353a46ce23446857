package types

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cottand/sigil/frontend/ast"
	"github.com/cottand/sigil/frontend/sigerr"
	"github.com/cottand/sigil/internal/log"
)

var logger = log.Section("types")

// Interpret resolves a signature expression into a Type under ctx.
// Unknown bare identifiers become fresh type variables bound in ctx, so that
// repeated occurrences of the same name denote the same type.
func Interpret(sig ast.TypeExpr, ctx *BindingContext) (Type, error) {
	t, err := ctx.interpret(sig)
	if err != nil {
		logger.Debug("signature rejected", "sig", ast.SlogType(sig), "error", err)
		return nil, err
	}
	return ctx.Resolve(t), nil
}

func (ctx *BindingContext) interpret(sig ast.TypeExpr) (Type, error) {
	switch sig := sig.(type) {
	case nil:
		return ctx.session.Fresh(), nil

	case *ast.TypeName:
		if IsScalarName(sig.Name) {
			return Scalar, nil
		}
		if bound, ok := ctx.types[sig.Name]; ok {
			return ctx.session.Apply(bound), nil
		}
		switch kind := ctx.kindOf(sig.Name); kind {
		case KindDimension, KindTag:
			return nil, ctx.kindMismatch(sig, KindType, kind.String()+" parameter "+sig.Name)
		}
		if def, ok := ctx.registry.Get(sig.Name); ok {
			if def.Arity() != 0 {
				return nil, sigerr.New(sigerr.NewArityMismatch{Range: sig.Range, Name: def.Name, Expected: def.Arity(), Got: 0})
			}
			return Named(def.Name), nil
		}
		fresh := ctx.session.Fresh()
		ctx.types[sig.Name] = fresh
		ctx.Declare(Param{Name: sig.Name, Kind: KindType})
		return fresh, nil

	case *ast.TypeApp:
		if IsScalarName(sig.Name) {
			return nil, sigerr.New(sigerr.NewArityMismatch{Range: sig.Range, Name: sig.Name, Expected: 0, Got: len(sig.Args)})
		}
		def, ok := ctx.registry.Get(sig.Name)
		if !ok {
			found := "undefined type " + sig.Name
			if isDimOp(sig.Name) {
				found = "dimension expression " + ast.TypeExprString(sig)
			}
			return nil, sigerr.New(sigerr.NewTypeMismatch{Range: sig.Range, Expected: "a registered type", Found: found})
		}
		if len(sig.Args) != def.Arity() {
			return nil, sigerr.New(sigerr.NewArityMismatch{Range: sig.Range, Name: def.Name, Expected: def.Arity(), Got: len(sig.Args)})
		}
		args := make([]TypeArg, len(def.Params))
		for i, param := range def.Params {
			var err error
			switch param.Kind {
			case KindDimension:
				args[i], err = ctx.interpretDim(sig.Args[i])
			case KindType:
				var t Type
				t, err = ctx.interpret(sig.Args[i])
				args[i] = TypeOf{Type: t}
			case KindTag:
				args[i], err = ctx.interpretTag(sig.Args[i])
			default:
				panic(fmt.Sprintf("unexpected kind %d for parameter %s of %s", param.Kind, param.Name, def.Name))
			}
			if err != nil {
				return nil, err
			}
		}
		return Named(def.Name, args...), nil

	case *ast.FuncTypeExpr:
		from, err := ctx.interpret(sig.From)
		if err != nil {
			return nil, err
		}
		to, err := ctx.interpret(sig.To)
		if err != nil {
			return nil, err
		}
		return Function(from, to), nil

	case *ast.NatLit:
		return nil, ctx.kindMismatch(sig, KindType, fmt.Sprintf("dimension %d", sig.Value))
	case *ast.TagLit:
		return nil, ctx.kindMismatch(sig, KindType, "tag "+TagArg{Value: sig.Value}.String())
	default:
		return nil, sigerr.New(sigerr.NewUnsupported{Range: ast.RangeOf(sig), What: fmt.Sprintf("signature expression %T", sig)})
	}
}

func (ctx *BindingContext) interpretTag(e ast.TypeExpr) (TypeArg, error) {
	switch e := e.(type) {
	case *ast.TagLit:
		return TagArg{Value: e.Value}, nil
	case *ast.TypeName:
		if bound, ok := ctx.tags[e.Name]; ok {
			return ctx.resolveTag(bound), nil
		}
		switch kind := ctx.kindOf(e.Name); kind {
		case KindType, KindDimension:
			return nil, ctx.kindMismatch(e, KindTag, kind.String()+" parameter "+e.Name)
		case KindTag:
		default:
			if _, isType := ctx.registry.Get(e.Name); isType || IsScalarName(e.Name) {
				return nil, ctx.kindMismatch(e, KindTag, "type "+e.Name)
			}
			ctx.Declare(Param{Name: e.Name, Kind: KindTag})
		}
		return TagParam{Name: e.Name, Scope: ctx.scope}, nil
	case *ast.NatLit:
		return nil, ctx.kindMismatch(e, KindTag, fmt.Sprintf("dimension %d", e.Value))
	default:
		return nil, ctx.kindMismatch(e, KindTag, ast.TypeExprString(e))
	}
}

// InterpretSignature resolves the declared signature of an operation into its
// argument types and result type
func InterpretSignature(sig ast.TypeExpr, ctx *BindingContext) (args []Type, result Type, err error) {
	argExprs, resultExpr := ast.SplitFunction(sig)
	for _, argExpr := range argExprs {
		arg, err := ctx.interpret(argExpr)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, arg)
	}
	result, err = ctx.interpret(resultExpr)
	if err != nil {
		return nil, nil, err
	}
	for i := range args {
		args[i] = ctx.Resolve(args[i])
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		logger.Debug("interpreted signature", "sig", ast.SlogType(sig), "result", ctx.Resolve(result).String())
	}
	return args, ctx.Resolve(result), nil
}
