package evaluator

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/cottand/sigil/frontend/ast"
)

var (
	// ErrNotReducible means the expression mentions something without a value,
	// like a free variable, a quantifier or an uninterpreted operation
	ErrNotReducible = errors.New("expression is not reducible to a value")
	// ErrDomain means an operation was applied outside of its domain, like a division by zero
	ErrDomain = errors.New("argument outside of the domain")
)

// maximum nesting of calls to definitions
const maxDepth = 512

// maximum exponent computed exactly
const maxExactExponent = 4096

// Evaluator reduces expressions to values
type Evaluator interface {
	Eval(e ast.Expr, env *Env) (Value, error)
}

// Exact evaluates arithmetic over rationals exactly, and falls back to float64
// for the functions of the math package
type Exact struct {
	math *mathLibrary
}

var _ Evaluator = (*Exact)(nil)

func New() (*Exact, error) {
	lib, err := newMathLibrary()
	if err != nil {
		return nil, err
	}
	return &Exact{math: lib}, nil
}

func (ev *Exact) Eval(e ast.Expr, env *Env) (Value, error) {
	return ev.eval(e, env, 0)
}

func notReducible(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotReducible, fmt.Sprintf(format, args...))
}

func (ev *Exact) eval(e ast.Expr, env *Env, depth int) (Value, error) {
	switch e := e.(type) {
	case *ast.NumberLit:
		n, ok := ParseNumber(e.Text)
		if !ok {
			return nil, fmt.Errorf("invalid number %s", e.Text)
		}
		return n, nil
	case *ast.Text:
		return Text(e.Value), nil
	case *ast.Ident:
		if v, ok := env.Lookup(e.Name); ok {
			return v, nil
		}
		if d, ok := env.Define(e.Name); ok && len(d.Params) == 0 {
			return ev.callDefine(d, nil, env, depth)
		}
		return nil, notReducible("%s has no value", e.Name)
	case *ast.Quantifier:
		return nil, notReducible("quantified proposition")
	case *ast.Call:
		return ev.call(e, env, depth)
	default:
		return nil, notReducible("%s", e.ExprName())
	}
}

func (ev *Exact) evalArgs(e *ast.Call, env *Env, depth int) ([]Value, error) {
	args := make([]Value, len(e.Args))
	for i, arg := range e.Args {
		v, err := ev.eval(arg, env, depth)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (ev *Exact) call(e *ast.Call, env *Env, depth int) (Value, error) {
	// connectives short-circuit, so that their arguments are evaluated lazily
	switch e.Op {
	case ast.OpAnd, ast.OpOr, ast.OpImplies:
		return ev.connective(e, env, depth)
	}

	if d, ok := env.Define(e.Op); ok {
		args, err := ev.evalArgs(e, env, depth)
		if err != nil {
			return nil, err
		}
		return ev.callDefine(d, args, env, depth)
	}

	args, err := ev.evalArgs(e, env, depth)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ast.OpEq:
		if err := arity(e, 2); err != nil {
			return nil, err
		}
		return Bool(args[0].Equal(args[1])), nil
	case ast.OpNeq:
		if err := arity(e, 2); err != nil {
			return nil, err
		}
		return Bool(!args[0].Equal(args[1])), nil
	case ast.OpNot:
		if err := arity(e, 1); err != nil {
			return nil, err
		}
		b, err := asBool(e, args[0])
		return !b, err
	case ast.OpIff:
		if err := arity(e, 2); err != nil {
			return nil, err
		}
		a, err := asBool(e, args[0])
		if err != nil {
			return nil, err
		}
		b, err := asBool(e, args[1])
		return Bool(a == b), err
	}

	nums, err := asNumbers(e, args)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		if err := arity(e, 2); err != nil {
			return nil, err
		}
		c := nums[0].Cmp(nums[1])
		switch e.Op {
		case ast.OpLt:
			return Bool(c < 0), nil
		case ast.OpLe:
			return Bool(c <= 0), nil
		case ast.OpGt:
			return Bool(c > 0), nil
		default:
			return Bool(c >= 0), nil
		}
	case "+", "*":
		if len(nums) == 0 {
			return nil, fmt.Errorf("%s needs arguments", e.Op)
		}
		acc := nums[0]
		for _, n := range nums[1:] {
			acc = arith(e.Op, acc, n)
		}
		return acc, nil
	case "-":
		switch len(nums) {
		case 1:
			return Number{Rat: new(big.Rat).Neg(nums[0].Rat), Exact: nums[0].Exact}, nil
		case 2:
			return arith("-", nums[0], nums[1]), nil
		}
		return nil, arity(e, 2)
	case "/":
		if err := arity(e, 2); err != nil {
			return nil, err
		}
		if nums[1].Rat.Sign() == 0 {
			return nil, fmt.Errorf("%w: division of %v by zero", ErrDomain, nums[0])
		}
		return arith("/", nums[0], nums[1]), nil
	case "^":
		if err := arity(e, 2); err != nil {
			return nil, err
		}
		return ev.power(nums[0], nums[1])
	case "abs":
		if err := arity(e, 1); err != nil {
			return nil, err
		}
		return Number{Rat: new(big.Rat).Abs(nums[0].Rat), Exact: nums[0].Exact}, nil
	case "min", "max":
		if len(nums) == 0 {
			return nil, fmt.Errorf("%s needs arguments", e.Op)
		}
		best := nums[0]
		for _, n := range nums[1:] {
			if c := n.Cmp(best); (e.Op == "min" && c < 0) || (e.Op == "max" && c > 0) {
				best = n
			}
		}
		return best, nil
	case "floor", "ceil":
		if err := arity(e, 1); err != nil {
			return nil, err
		}
		return rounded(e.Op, nums[0]), nil
	}
	if ev.math.has(e.Op) {
		return ev.math.call(e.Op, nums)
	}
	return nil, notReducible("%s is not a known function", e.Op)
}

func (ev *Exact) connective(e *ast.Call, env *Env, depth int) (Value, error) {
	if err := arity(e, 2); err != nil {
		return nil, err
	}
	lhsV, err := ev.eval(e.Args[0], env, depth)
	if err != nil {
		return nil, err
	}
	b, err := asBool(e, lhsV)
	if err != nil {
		return nil, err
	}
	lhs := bool(b)
	switch {
	case e.Op == ast.OpAnd && !lhs:
		return Bool(false), nil
	case e.Op == ast.OpOr && lhs:
		return Bool(true), nil
	case e.Op == ast.OpImplies && !lhs:
		return Bool(true), nil
	}
	rhsV, err := ev.eval(e.Args[1], env, depth)
	if err != nil {
		return nil, err
	}
	rhs, err := asBool(e, rhsV)
	return rhs, err
}

func (ev *Exact) callDefine(d *ast.Define, args []Value, env *Env, depth int) (Value, error) {
	if depth >= maxDepth {
		return nil, fmt.Errorf("%s: definitions nested deeper than %d", d.Name, maxDepth)
	}
	if len(args) != len(d.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", d.Name, len(d.Params), len(args))
	}
	inner := env
	for i, param := range d.Params {
		inner = inner.With(param, args[i])
	}
	return ev.eval(d.Body, inner, depth+1)
}

func (ev *Exact) power(base, exp Number) (Value, error) {
	if base.Exact && exp.Exact && exp.Rat.IsInt() && exp.Rat.Num().IsInt64() {
		n := exp.Rat.Num().Int64()
		if n < 0 && base.Rat.Sign() == 0 {
			return nil, fmt.Errorf("%w: 0 to the power of %d", ErrDomain, n)
		}
		if n >= -maxExactExponent && n <= maxExactExponent {
			abs := n
			if abs < 0 {
				abs = -abs
			}
			num := new(big.Int).Exp(base.Rat.Num(), big.NewInt(abs), nil)
			den := new(big.Int).Exp(base.Rat.Denom(), big.NewInt(abs), nil)
			r := new(big.Rat).SetFrac(num, den)
			if n < 0 {
				r.Inv(r)
			}
			return Number{Rat: r, Exact: true}, nil
		}
	}
	return ev.math.call("pow", []Number{base, exp})
}

func arith(op string, a, b Number) Number {
	r := new(big.Rat)
	switch op {
	case "+":
		r.Add(a.Rat, b.Rat)
	case "-":
		r.Sub(a.Rat, b.Rat)
	case "*":
		r.Mul(a.Rat, b.Rat)
	case "/":
		r.Quo(a.Rat, b.Rat)
	}
	return Number{Rat: r, Exact: a.Exact && b.Exact}
}

func rounded(op string, n Number) Number {
	q, m := new(big.Int).DivMod(n.Rat.Num(), n.Rat.Denom(), new(big.Int))
	// DivMod rounds towards negative infinity, so q is already the floor
	if op == "ceil" && m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return Number{Rat: new(big.Rat).SetInt(q), Exact: n.Exact}
}

func arity(e *ast.Call, n int) error {
	if len(e.Args) != n {
		return fmt.Errorf("%s takes %d arguments, got %d", e.Op, n, len(e.Args))
	}
	return nil
}

func asBool(e *ast.Call, v Value) (Bool, error) {
	b, ok := v.(Bool)
	if !ok {
		return false, fmt.Errorf("%s expects a boolean, got %v", e.Op, v)
	}
	return b, nil
}

func asNumbers(e *ast.Call, args []Value) ([]Number, error) {
	nums := make([]Number, len(args))
	for i, arg := range args {
		n, ok := arg.(Number)
		if !ok {
			return nil, notReducible("%s expects numbers, got %v", e.Op, arg)
		}
		nums[i] = n
	}
	return nums, nil
}
