package types

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/cottand/sigil/frontend/ast"
	"github.com/cottand/sigil/frontend/sigerr"
)

func isInfixDimOp(op string) bool {
	switch op {
	case "+", "-", "*", "/", "^":
		return true
	}
	return false
}

func isDimOp(op string) bool {
	switch op {
	case "min", "max", "gcd", "lcm":
		return true
	}
	return isInfixDimOp(op)
}

// interpretDim evaluates a dimension-kinded argument
func (ctx *BindingContext) interpretDim(e ast.TypeExpr) (TypeArg, error) {
	switch e := e.(type) {
	case *ast.NatLit:
		return DimArg{N: e.Value}, nil

	case *ast.TypeName:
		if bound, ok := ctx.dims[e.Name]; ok {
			return ctx.At(e).resolveDim(bound)
		}
		switch kind := ctx.kindOf(e.Name); kind {
		case KindType, KindTag:
			return nil, ctx.kindMismatch(e, KindDimension, kind.String()+" parameter "+e.Name)
		case KindDimension:
		default:
			if _, isType := ctx.registry.Get(e.Name); isType || IsScalarName(e.Name) {
				return nil, ctx.kindMismatch(e, KindDimension, "type "+e.Name)
			}
			ctx.Declare(Param{Name: e.Name, Kind: KindDimension})
		}
		return DimParam{Name: e.Name, Scope: ctx.scope}, nil

	case *ast.TypeApp:
		if !isDimOp(e.Name) {
			if _, isType := ctx.registry.Get(e.Name); isType {
				return nil, ctx.kindMismatch(e, KindDimension, "type "+e.Name)
			}
			return nil, sigerr.New(sigerr.NewDimensionEval{
				Range:   e.Range,
				Message: fmt.Sprintf("unknown dimension function '%s'", e.Name),
			})
		}
		if len(e.Args) != 2 {
			return nil, sigerr.New(sigerr.NewDimensionEval{
				Range:   e.Range,
				Message: fmt.Sprintf("'%s' takes 2 arguments, got %d", e.Name, len(e.Args)),
			})
		}
		lhs, err := ctx.interpretDim(e.Args[0])
		if err != nil {
			return nil, err
		}
		rhs, err := ctx.interpretDim(e.Args[1])
		if err != nil {
			return nil, err
		}
		return ctx.At(e).resolveDim(DimTerm{Op: e.Name, Args: []TypeArg{lhs, rhs}})

	case *ast.TagLit:
		return nil, ctx.kindMismatch(e, KindDimension, "tag "+TagArg{e.Value}.String())
	case *ast.FuncTypeExpr:
		return nil, ctx.kindMismatch(e, KindDimension, "function type "+ast.TypeExprString(e))
	default:
		return nil, sigerr.New(sigerr.NewUnsupported{Range: ast.RangeOf(e), What: fmt.Sprintf("dimension expression %T", e)})
	}
}

func (ctx *BindingContext) kindMismatch(at ast.Positioner, expected ParamKind, found string) error {
	return sigerr.New(sigerr.NewTypeMismatch{
		Range:    ast.RangeOf(at),
		Expected: "a " + expected.String() + " argument",
		Found:    found,
	})
}

// resolveDim follows the bindings of parameters introduced by ctx and folds
// arithmetic whose operands are all concrete
func (ctx *BindingContext) resolveDim(arg TypeArg) (TypeArg, error) {
	switch arg := arg.(type) {
	case DimParam:
		if arg.Scope != ctx.scope {
			return arg, nil
		}
		bound, ok := ctx.dims[arg.Name]
		if !ok || EqualArg(bound, arg) {
			return arg, nil
		}
		return ctx.resolveDim(bound)
	case DimTerm:
		args := make([]TypeArg, len(arg.Args))
		concrete := true
		for i, operand := range arg.Args {
			resolved, err := ctx.resolveDim(operand)
			if err != nil {
				return nil, err
			}
			_, isLit := resolved.(DimArg)
			concrete = concrete && isLit
			args[i] = resolved
		}
		if !concrete {
			return DimTerm{Op: arg.Op, Args: args}, nil
		}
		n, err := EvalDim(arg.Op, args[0].(DimArg).N, args[1].(DimArg).N)
		if err != nil {
			return nil, sigerr.New(sigerr.NewDimensionEval{Range: ctx.pos, Message: err.Error()})
		}
		return DimArg{N: n}, nil
	default:
		return arg, nil
	}
}

// solveDim binds the one flexible parameter of term so that term evaluates to
// n, like n := 2 for n + 1 = 3. It reports false, binding nothing, when term
// has no such parameter or when no natural number solves it.
func (ctx *BindingContext) solveDim(term TypeArg, n uint64) bool {
	name, value, ok := ctx.invertDim(term, n)
	if !ok {
		return false
	}
	ctx.dims[name] = DimArg{N: value}
	if got, err := ctx.resolveDim(term); err != nil || !EqualArg(got, DimArg{N: n}) {
		delete(ctx.dims, name)
		return false
	}
	return true
}

func (ctx *BindingContext) invertDim(term TypeArg, n uint64) (string, uint64, bool) {
	switch term := term.(type) {
	case DimParam:
		name, ok := ctx.unboundFlexible(term)
		return name, n, ok
	case DimTerm:
		if len(term.Args) != 2 {
			return "", 0, false
		}
		lhs, lhsConst := term.Args[0].(DimArg)
		rhs, rhsConst := term.Args[1].(DimArg)
		if lhsConst == rhsConst {
			return "", 0, false
		}
		var target uint64
		var ok bool
		if rhsConst {
			target, ok = invertLeft(term.Op, rhs.N, n)
			if ok {
				return ctx.invertDim(term.Args[0], target)
			}
		} else {
			target, ok = invertRight(term.Op, lhs.N, n)
			if ok {
				return ctx.invertDim(term.Args[1], target)
			}
		}
	}
	return "", 0, false
}

// invertLeft solves x op c = n for x
func invertLeft(op string, c, n uint64) (uint64, bool) {
	switch op {
	case "+":
		return n - c, n >= c
	case "-":
		sum, carry := bits.Add64(n, c, 0)
		return sum, carry == 0
	case "*":
		return divides(c, n)
	case "^":
		return root(n, c)
	}
	return 0, false
}

// invertRight solves c op x = n for x
func invertRight(op string, c, n uint64) (uint64, bool) {
	switch op {
	case "+":
		return n - c, n >= c
	case "-":
		return c - n, c >= n
	case "*":
		return divides(c, n)
	case "^":
		return logarithm(c, n)
	}
	return 0, false
}

// divides solves c * x = n
func divides(c, n uint64) (uint64, bool) {
	if c == 0 || n%c != 0 {
		return 0, false
	}
	return n / c, true
}

// root solves x ^ k = n
func root(n, k uint64) (uint64, bool) {
	if k == 0 {
		return 0, false
	}
	guess := uint64(math.Round(math.Pow(float64(n), 1/float64(k))))
	for _, x := range []uint64{guess, guess - 1, guess + 1} {
		if p, err := EvalDim("^", x, k); err == nil && p == n {
			return x, true
		}
	}
	return 0, false
}

// logarithm solves b ^ x = n
func logarithm(b, n uint64) (uint64, bool) {
	if b < 2 {
		return 0, false
	}
	p := uint64(1)
	for x := uint64(0); p <= n; x++ {
		if p == n {
			return x, true
		}
		hi, lo := bits.Mul64(p, b)
		if hi != 0 {
			break
		}
		p = lo
	}
	return 0, false
}

// EvalDim applies a dimension operator to two natural numbers
func EvalDim(op string, a, b uint64) (uint64, error) {
	switch op {
	case "+":
		sum, carry := bits.Add64(a, b, 0)
		if carry != 0 {
			return 0, fmt.Errorf("%d + %d overflows", a, b)
		}
		return sum, nil
	case "-":
		if b > a {
			return 0, fmt.Errorf("%d - %d is not a natural number", a, b)
		}
		return a - b, nil
	case "*":
		hi, lo := bits.Mul64(a, b)
		if hi != 0 {
			return 0, fmt.Errorf("%d * %d overflows", a, b)
		}
		return lo, nil
	case "/":
		if b == 0 {
			return 0, fmt.Errorf("division of %d by zero", a)
		}
		return a / b, nil
	case "^":
		result := uint64(1)
		for range b {
			hi, lo := bits.Mul64(result, a)
			if hi != 0 {
				return 0, fmt.Errorf("%d ^ %d overflows", a, b)
			}
			result = lo
			if result == 0 || result == 1 {
				break
			}
		}
		return result, nil
	case "min":
		return min(a, b), nil
	case "max":
		return max(a, b), nil
	case "gcd":
		return gcd(a, b), nil
	case "lcm":
		if a == 0 || b == 0 {
			return 0, nil
		}
		hi, lo := bits.Mul64(a/gcd(a, b), b)
		if hi != 0 {
			return 0, fmt.Errorf("lcm(%d, %d) overflows", a, b)
		}
		return lo, nil
	default:
		return 0, fmt.Errorf("unknown dimension function '%s'", op)
	}
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
