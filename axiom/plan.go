package axiom

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cottand/sigil/evaluator"
	"github.com/cottand/sigil/frontend/ast"
	"github.com/cottand/sigil/frontend/types"
)

type PlanKind uint8

const (
	// Concrete plans are decided by evaluation alone
	Concrete PlanKind = iota + 1
	// Symbolic plans need a solver
	Symbolic
)

func (k PlanKind) String() string {
	switch k {
	case Concrete:
		return "concrete"
	case Symbolic:
		return "symbolic"
	default:
		return "invalid"
	}
}

// Plan is how an assertion gets checked
type Plan struct {
	Name string
	Kind PlanKind
	Expr ast.Expr
	Env  *evaluator.Env

	// the rest is only set for Symbolic plans

	Goal Formula
	// Structures whose axioms govern the goal
	Structures []string
	Axioms     []Axiom
	// FreeVars are the free constants of Goal, sorted by name
	FreeVars []*Var
}

// CompileAssert decides how to check assertion. The plan is Concrete when the
// expression has no quantifier nor free identifier outside env and ev reduces
// it in env; otherwise the goal is
// compiled along with the axioms of the structures governing it, which are
// the structure named by the assertion or the owners of its operations.
func (t *Theory) CompileAssert(assertion *ast.Assertion, env *evaluator.Env, ev evaluator.Evaluator) (*Plan, error) {
	if env == nil {
		env = evaluator.NewEnv()
	}
	plan := &Plan{Name: assertion.Name, Expr: assertion.Expr, Env: env}
	if !ast.ContainsQuantifier(assertion.Expr) && closedIn(assertion.Expr, env) {
		_, err := ev.Eval(assertion.Expr, env)
		if err == nil {
			plan.Kind = Concrete
			return plan, nil
		}
		if !errors.Is(err, evaluator.ErrNotReducible) {
			return nil, fmt.Errorf("assertion %s: %w", assertion.Name, err)
		}
		logger.Debug("assertion is symbolic", "name", assertion.Name, "expr", assertion.Expr, "reason", err)
	}

	var chain []string
	var defines map[string]*signature
	if assertion.Structure != "" {
		inst, err := t.instance(assertion.Structure)
		if err != nil {
			return nil, fmt.Errorf("assertion %s: %w", assertion.Name, err)
		}
		chain, defines = []string{assertion.Structure}, inst.defines
	}
	c, err := t.newCompiler(types.NewSession(), chain, defines)
	if err != nil {
		return nil, err
	}
	c.env = env
	goal, err := c.proposition(assertion.Expr)
	if err != nil {
		return nil, fmt.Errorf("assertion %s: %w", assertion.Name, err)
	}
	if err := c.finish(); err != nil {
		return nil, fmt.Errorf("assertion %s: %w", assertion.Name, err)
	}

	plan.Kind = Symbolic
	plan.Goal = goal
	plan.Structures = c.governing.Slice()
	sort.Strings(plan.Structures)
	if plan.Axioms, err = t.AxiomsInScope(plan.Structures); err != nil {
		return nil, err
	}
	for _, v := range c.free {
		plan.FreeVars = append(plan.FreeVars, v)
	}
	sort.Slice(plan.FreeVars, func(i, j int) bool { return plan.FreeVars[i].Name < plan.FreeVars[j].Name })
	logger.Debug("compiled assertion",
		"name", assertion.Name,
		"goal", goal.String(),
		"structures", plan.Structures,
		"axioms", len(plan.Axioms),
	)
	return plan, nil
}

// closedIn holds when every free identifier of e is bound in env. Connectives
// short-circuit during evaluation, so reducing e alone does not prove it.
func closedIn(e ast.Expr, env *evaluator.Env) bool {
	closed := true
	ast.FreeIdents(e, func(id *ast.Ident) {
		switch id.Name {
		case "true", "false", "⊤", "⊥":
		default:
			if !env.Has(id.Name) {
				closed = false
			}
		}
	})
	return closed
}
