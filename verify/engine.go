package verify

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/cottand/sigil/axiom"
	"github.com/cottand/sigil/evaluator"
	"github.com/cottand/sigil/frontend/ast"
	"github.com/cottand/sigil/frontend/sigerr"
	"github.com/cottand/sigil/internal/log"
	"github.com/cottand/sigil/solver"
	"golang.org/x/sync/singleflight"
)

var logger = log.Section("verify")

const DefaultTimeout = 5 * time.Second

// Engine verifies plans. Its fields must not change once verification starts.
type Engine struct {
	Solver    solver.Solver
	Evaluator evaluator.Evaluator
	// Timeout bounds every solver query
	Timeout time.Duration
	Cache   Cache
	// Workers bounds the plans verified concurrently by VerifyBatch
	Workers int

	consistency singleflight.Group
	// consistent maps an AxiomSetKey to whether the solver found a model of
	// the set. Only definitive answers are kept.
	consistent sync.Map
}

func NewEngine(s solver.Solver, ev evaluator.Evaluator) *Engine {
	return &Engine{
		Solver:    s,
		Evaluator: ev,
		Timeout:   DefaultTimeout,
		Cache:     NewMemoryCache(),
		Workers:   runtime.GOMAXPROCS(0),
	}
}

// Verify checks a single plan. Errors are reported as Unknown results.
func (e *Engine) Verify(ctx context.Context, plan *axiom.Plan) Result {
	start := time.Now()
	var r Result
	switch plan.Kind {
	case axiom.Concrete:
		r = e.concrete(plan)
	case axiom.Symbolic:
		r = e.symbolic(ctx, plan)
	default:
		r = Result{Outcome: Unknown, Reason: fmt.Sprintf("cannot verify a plan of kind %v", plan.Kind)}
	}
	r.Name = plan.Name
	r.Duration = time.Since(start)
	logger.Debug("verified assertion", "result", r)
	return r
}

func inexact(v evaluator.Value) bool {
	n, ok := v.(evaluator.Number)
	return ok && !n.Exact
}

func unknown(err error) Result {
	return Result{Outcome: Unknown, Reason: err.Error(), Err: err}
}

// concrete evaluates the plan. An equality compares its sides, so that a
// failure shows both of them.
func (e *Engine) concrete(plan *axiom.Plan) Result {
	if call, ok := plan.Expr.(*ast.Call); ok && call.Op == ast.OpEq && len(call.Args) == 2 {
		lhs, err := e.Evaluator.Eval(call.Args[0], plan.Env)
		if err != nil {
			return unknown(err)
		}
		rhs, err := e.Evaluator.Eval(call.Args[1], plan.Env)
		if err != nil {
			return unknown(err)
		}
		if lhs.Equal(rhs) {
			return Result{Outcome: Passed}
		}
		r := Result{Outcome: Failed, Expected: lhs.String(), Actual: rhs.String()}
		if inexact(lhs) || inexact(rhs) {
			r.Reason = fmt.Sprintf("inexact numbers differ by more than the relative tolerance %g", evaluator.Tolerance)
		}
		return r
	}

	v, err := e.Evaluator.Eval(plan.Expr, plan.Env)
	if err != nil {
		return unknown(err)
	}
	b, ok := v.(evaluator.Bool)
	if !ok {
		return Result{Outcome: Unknown, Reason: fmt.Sprintf("assertion evaluated to %v, not to a boolean", v)}
	}
	if b {
		return Result{Outcome: Passed}
	}
	return Result{Outcome: Failed, Expected: "true", Actual: "false"}
}

// symbolic proves the goal by refutation: the goal holds when its negation
// is unsatisfiable together with the axioms
func (e *Engine) symbolic(ctx context.Context, plan *axiom.Plan) Result {
	key := CacheKey(plan)
	if cached, ok, err := e.Cache.Get(ctx, key); err != nil {
		logger.Warn("could not read result cache", "error", err)
	} else if ok {
		cached.Cached = true
		return cached
	}

	if e.contradictory(ctx, plan.Axioms) {
		return Result{Outcome: Unknown, Reason: "axioms in scope are inconsistent"}
	}

	problem := solver.Problem{
		Goal:      axiom.Not(plan.Goal),
		Constants: plan.FreeVars,
	}
	for _, ax := range plan.Axioms {
		problem.Assumptions = append(problem.Assumptions, ax.Formula)
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()
	resp, err := e.Solver.Check(queryCtx, problem)

	var r Result
	switch {
	case ctx.Err() != nil:
		return Result{Outcome: Unknown, Reason: "cancelled: " + ctx.Err().Error(), Err: ctx.Err()}
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		return unknown(sigerr.New(sigerr.NewSolverTimeout{After: e.timeout()}))
	case err != nil:
		return unknown(err)
	case resp.Verdict == solver.Unsat:
		r = Result{Outcome: Verified}
	case resp.Verdict == solver.Sat:
		r = Result{Outcome: Disproved}
		for _, v := range plan.FreeVars {
			if value, ok := resp.Model[v.Name]; ok {
				r.Counterexample = append(r.Counterexample, Binding{Name: v.Name, Value: value})
			}
		}
	default:
		reason := resp.Reason
		if reason == "" {
			reason = "the solver could not decide the goal"
		}
		return Result{Outcome: Unknown, Reason: reason}
	}

	if ctx.Err() == nil {
		if err := e.Cache.Put(ctx, key, r, plan.Structures); err != nil {
			logger.Warn("could not write result cache", "error", err)
		}
	}
	return r
}

// contradictory holds when the solver shows that axioms have no model, so that
// any goal would be refuted with them. It is asked once per set of axioms; an
// undecided answer lets verification go ahead.
func (e *Engine) contradictory(ctx context.Context, axioms []axiom.Axiom) bool {
	if len(axioms) == 0 {
		return false
	}
	key := AxiomSetKey(axioms)
	if known, ok := e.consistent.Load(key); ok {
		return !known.(bool)
	}
	found, _, _ := e.consistency.Do(key, func() (any, error) {
		problem := solver.Problem{Goal: axiom.True()}
		for _, ax := range axioms {
			problem.Assumptions = append(problem.Assumptions, ax.Formula)
		}
		queryCtx, cancel := context.WithTimeout(ctx, e.timeout())
		defer cancel()
		resp, err := e.Solver.Check(queryCtx, problem)
		switch {
		case ctx.Err() != nil:
			return false, nil
		case err != nil:
			logger.Debug("could not check the consistency of axioms", "axioms", len(axioms), "error", err)
			return false, nil
		case resp.Verdict == solver.Sat:
			e.consistent.Store(key, true)
			return false, nil
		case resp.Verdict == solver.Unsat:
			e.consistent.Store(key, false)
			logger.Warn("axioms in scope are inconsistent", "axioms", len(axioms))
			return true, nil
		}
		return false, nil
	})
	return found.(bool)
}

func (e *Engine) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultTimeout
	}
	return e.Timeout
}

// Invalidate forgets the cached results that depend on the axioms of structure
func (e *Engine) Invalidate(ctx context.Context, structure string) error {
	return e.Cache.Invalidate(ctx, structure)
}
