package axiom

import (
	"fmt"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/sigil/evaluator"
	"github.com/cottand/sigil/frontend/ast"
	"github.com/cottand/sigil/frontend/sigerr"
	"github.com/cottand/sigil/frontend/types"
	"github.com/cottand/sigil/internal/log"
	"github.com/hashicorp/go-set/v3"
)

var logger = ast.ExprLogger(log.Section("axiom"))

// signature of a define, inferred from its body
type signature struct {
	args   []types.Type
	result types.Type
}

func defineKey(chain []string, name string) string {
	return strings.Join(chain, "/") + "." + name
}

// compiler lowers the expressions of one instance. Operations are resolved in
// the abstract instance of chain, or through their owners when chain is nil.
type compiler struct {
	theory  *Theory
	session *types.Session
	ctx     *types.BindingContext
	chain   []string
	defines map[string]*signature

	bound *immutable.Map[string, *Var]
	free  map[string]*Var
	env   *evaluator.Env

	// structures whose operations were used
	governing *set.Set[string]
	// builtin applications that need numeric operands
	arithmetic []*App
	literals   []*Const
	nodes      []Formula
}

func (t *Theory) newCompiler(session *types.Session, chain []string, defines map[string]*signature) (*compiler, error) {
	c := &compiler{
		theory:    t,
		session:   session,
		chain:     chain,
		defines:   defines,
		bound:     immutable.NewMap[string, *Var](immutable.NewHasher("")),
		free:      make(map[string]*Var),
		governing: set.New[string](2),
	}
	if chain == nil {
		c.ctx = types.NewBindingContext(session, t.structures.Registry())
		return c, nil
	}
	ctx, err := t.structures.InstanceContext(session, chain)
	if err != nil {
		return nil, err
	}
	c.ctx = ctx
	c.governing.Insert(chain[0])
	return c, nil
}

func (c *compiler) unify(at ast.Positioner, expected, actual types.Type) error {
	return types.Unify(expected, actual, c.ctx.At(at))
}

// track records f so that its type is resolved by finish
func (c *compiler) track(f Formula) Formula {
	c.nodes = append(c.nodes, f)
	return f
}

func (c *compiler) lower(e ast.Expr) (Formula, error) {
	switch e := e.(type) {
	case *ast.NumberLit:
		lit := &Const{Kind: NumberConst, Value: e.Text, T: c.session.Fresh()}
		c.literals = append(c.literals, lit)
		return c.track(lit), nil
	case *ast.Text:
		return &Const{Kind: TextConst, Value: e.Value, T: types.Named(types.StringName)}, nil
	case *ast.Ident:
		return c.ident(e)
	case *ast.Call:
		return c.call(e)
	case *ast.Quantifier:
		return c.quantifier(e)
	default:
		return nil, sigerr.New(sigerr.NewUnsupported{Range: ast.RangeOf(e), What: e.ExprName()})
	}
}

func (c *compiler) ident(e *ast.Ident) (Formula, error) {
	if v, ok := c.bound.Get(e.Name); ok {
		return v, nil
	}
	switch e.Name {
	case "true", "⊤":
		return True(), nil
	case "false", "⊥":
		return &Const{Kind: BoolConst, Value: "false", T: boolType()}, nil
	}
	if c.env != nil {
		if v, ok := c.env.Lookup(e.Name); ok {
			return c.valueConst(v), nil
		}
	}
	t, owner, err := c.operation(e, e.Name, nil)
	if err == nil {
		return c.track(&App{Op: e.Name, T: t, Owner: owner}), nil
	}
	if sigerr.CodeOf(err) != sigerr.UnknownOperation {
		return nil, err
	}
	v, ok := c.free[e.Name]
	if !ok {
		v = &Var{Name: e.Name, T: c.session.Fresh()}
		c.free[e.Name] = v
		c.track(v)
	}
	return v, nil
}

func (c *compiler) valueConst(v evaluator.Value) Formula {
	switch v := v.(type) {
	case evaluator.Number:
		lit := &Const{Kind: NumberConst, Value: v.Rat.RatString(), T: c.session.Fresh()}
		c.literals = append(c.literals, lit)
		return c.track(lit)
	case evaluator.Bool:
		return &Const{Kind: BoolConst, Value: v.String(), T: boolType()}
	case evaluator.Text:
		return &Const{Kind: TextConst, Value: string(v), T: types.Named(types.StringName)}
	default:
		panic(fmt.Sprintf("unexpected value %T", v))
	}
}

func isArithmetic(op string) bool {
	switch op {
	case "+", "-", "*", "/", "^":
		return true
	}
	return false
}

func expectArgs(e *ast.Call, n int) error {
	if len(e.Args) != n {
		return sigerr.New(sigerr.NewArityMismatch{Range: e.Range, Name: e.Op, Expected: n, Got: len(e.Args)})
	}
	return nil
}

func (c *compiler) call(e *ast.Call) (Formula, error) {
	args := make([]Formula, len(e.Args))
	argTypes := make([]types.Type, len(e.Args))
	for i, arg := range e.Args {
		f, err := c.lower(arg)
		if err != nil {
			return nil, err
		}
		args[i], argTypes[i] = f, f.Type()
	}

	switch e.Op {
	case ast.OpAnd, ast.OpOr, ast.OpImplies, ast.OpIff, ast.OpNot:
		n := 2
		if e.Op == ast.OpNot {
			n = 1
		}
		if err := expectArgs(e, n); err != nil {
			return nil, err
		}
		for i, arg := range args {
			if err := c.unify(e.Args[i], boolType(), arg.Type()); err != nil {
				return nil, fmt.Errorf("operand of %s: %w", e.Op, err)
			}
		}
		return &App{Op: e.Op, Args: args, T: boolType(), Builtin: true}, nil

	case ast.OpEq, ast.OpNeq:
		if err := expectArgs(e, 2); err != nil {
			return nil, err
		}
		if err := c.unify(e, argTypes[0], argTypes[1]); err != nil {
			return nil, err
		}
		if e.Op == ast.OpNeq {
			return Not(Eq(args[0], args[1])), nil
		}
		return Eq(args[0], args[1]), nil

	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		if err := expectArgs(e, 2); err != nil {
			return nil, err
		}
		if err := c.unify(e, argTypes[0], argTypes[1]); err != nil {
			return nil, err
		}
		app := &App{Op: e.Op, Args: args, T: boolType(), Builtin: true}
		c.arithmetic = append(c.arithmetic, app)
		return app, nil
	}

	if c.chain == nil && isArithmetic(e.Op) {
		return c.builtinArithmetic(e, args)
	}
	mark := c.session.Snapshot()
	t, owner, err := c.operation(e, e.Op, argTypes)
	if err != nil {
		if isArithmetic(e.Op) {
			c.session.Rollback(mark)
			logger.Debug("arithmetic is builtin", "op", e.Op, "reason", err)
			return c.builtinArithmetic(e, args)
		}
		return nil, err
	}
	return c.track(&App{Op: e.Op, Args: args, T: t, Owner: owner}), nil
}

func (c *compiler) builtinArithmetic(e *ast.Call, args []Formula) (Formula, error) {
	switch {
	case e.Op == "-" && len(args) == 1:
	case e.Op == "^" || e.Op == "/" || e.Op == "-":
		if err := expectArgs(e, 2); err != nil {
			return nil, err
		}
	case len(args) < 2:
		return nil, sigerr.New(sigerr.NewArityMismatch{Range: e.Range, Name: e.Op, Expected: 2, Got: len(args)})
	}
	operands := args
	if e.Op == "^" {
		// the exponent has a numeric type of its own
		operands = args[:1]
	}
	for i := 1; i < len(operands); i++ {
		if err := c.unify(e.Args[i], operands[0].Type(), operands[i].Type()); err != nil {
			return nil, fmt.Errorf("operand of %s: %w", e.Op, err)
		}
	}
	app := &App{Op: e.Op, Args: args, T: args[0].Type(), Builtin: true}
	c.arithmetic = append(c.arithmetic, app)
	return c.track(app), nil
}

// operation types the application of op to arguments of types args, and
// returns the structure whose instance typed it
func (c *compiler) operation(at ast.Positioner, op string, args []types.Type) (types.Type, string, error) {
	if c.chain != nil {
		t, err := c.resolve(at, c.chain, c.defines, op, args)
		return t, c.chain[0], err
	}
	owners := c.theory.structures.Owners(op)
	if len(owners) == 0 {
		return nil, "", sigerr.New(sigerr.NewUnknownOperation{Range: ast.RangeOf(at), Name: op})
	}
	var firstErr error
	for _, owner := range owners {
		inst, err := c.theory.instance(owner)
		if err != nil {
			return nil, "", err
		}
		mark := c.session.Snapshot()
		t, err := c.resolve(at, []string{owner}, inst.defines, op, args)
		if err == nil {
			c.governing.Insert(owner)
			return t, owner, nil
		}
		c.session.Rollback(mark)
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, "", firstErr
}

// resolve types op in the abstract instance of chain: defines first, then
// declared operations
func (c *compiler) resolve(at ast.Positioner, chain []string, defines map[string]*signature, op string, args []types.Type) (types.Type, error) {
	structures := c.theory.structures
	for _, ext := range structures.Chains(chain[len(chain)-1]) {
		full := append(chain[:len(chain)-1:len(chain)-1], ext...)
		sig, ok := defines[defineKey(full, op)]
		if !ok {
			continue
		}
		if len(sig.args) != len(args) {
			return nil, sigerr.New(sigerr.NewArityMismatch{Range: ast.RangeOf(at), Name: op, Expected: len(sig.args), Got: len(args)})
		}
		mark := c.session.Snapshot()
		var err error
		for i := range args {
			if err = c.unify(at, sig.args[i], args[i]); err != nil {
				err = fmt.Errorf("argument %d of %s: %w", i+1, op, err)
				break
			}
		}
		if err == nil {
			return sig.result, nil
		}
		c.session.Rollback(mark)
		return nil, err
	}
	t, err := structures.InterpretInstanceOperation(c.session, chain, op, args)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (c *compiler) quantifier(e *ast.Quantifier) (Formula, error) {
	saved := c.bound
	defer func() { c.bound = saved }()

	var vars []*Var
	for _, b := range e.Binders {
		var t types.Type
		if b.Type != nil {
			interpreted, err := types.Interpret(b.Type, c.ctx.At(b.Type))
			if err != nil {
				return nil, err
			}
			t = interpreted
		}
		for _, name := range b.Names {
			vt := t
			if vt == nil {
				vt = c.session.Fresh()
			}
			v := &Var{Name: name, T: vt}
			c.track(v)
			vars = append(vars, v)
			c.bound = c.bound.Set(name, v)
		}
	}

	body, err := c.proposition(e.Body)
	if err != nil {
		return nil, err
	}
	if e.Where != nil {
		where, err := c.proposition(e.Where)
		if err != nil {
			return nil, err
		}
		if e.Kind == ast.ForAll {
			body = Implies(where, body)
		} else {
			body = And(where, body)
		}
	}
	for i := len(vars) - 1; i >= 0; i-- {
		body = &Quant{Kind: e.Kind, Var: vars[i], Body: body}
	}
	return body, nil
}

// proposition lowers e and checks that it is a Bool
func (c *compiler) proposition(e ast.Expr) (Formula, error) {
	f, err := c.lower(e)
	if err != nil {
		return nil, err
	}
	if err := c.unify(e, boolType(), f.Type()); err != nil {
		return nil, fmt.Errorf("%s is not a proposition: %w", ast.ExprString(e), err)
	}
	return f, nil
}

// finish resolves the types of every formula lowered by c. Type variables
// left unconstrained default to Scalar.
func (c *compiler) finish() error {
	for _, node := range c.nodes {
		switch node := node.(type) {
		case *Var:
			node.T = c.resolveType(node.T)
		case *Const:
			node.T = c.resolveType(node.T)
		case *App:
			node.T = c.resolveType(node.T)
		}
	}
	for _, app := range c.arithmetic {
		for _, arg := range app.Args {
			t := c.resolveType(arg.Type())
			if !types.IsNumeric(t) {
				return sigerr.New(sigerr.NewTypeMismatch{
					Expected: "a numeric type",
					Found:    t.String(),
					Reason:   "operand of " + app.Op,
				})
			}
		}
	}
	for _, lit := range c.literals {
		if err := checkLiteral(lit); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) resolveType(t types.Type) types.Type {
	t = c.ctx.Resolve(t)
	types.Vars(t, func(v *types.VarType) {
		if _, bound := c.session.Subst().Lookup(v.ID); !bound {
			_ = c.session.Subst().Bind(v.ID, types.Scalar)
		}
	})
	return c.ctx.Resolve(t)
}

func checkLiteral(lit *Const) error {
	named, ok := lit.T.(*types.NamedType)
	if !ok {
		return nil
	}
	integral := !strings.ContainsAny(lit.Value, "./")
	switch {
	case named.Name == types.IntName && !integral,
		named.Name == types.NatName && (!integral || strings.HasPrefix(lit.Value, "-")):
		return sigerr.New(sigerr.NewTypeMismatch{
			Expected: named.String(),
			Found:    lit.Value,
			Reason:   "numeric literal",
		})
	}
	return nil
}
