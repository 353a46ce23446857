package verify

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cottand/sigil/axiom"
	"github.com/cottand/sigil/evaluator"
	"github.com/cottand/sigil/frontend"
	"github.com/cottand/sigil/frontend/ast"
	"github.com/cottand/sigil/frontend/sigerr"
	"github.com/cottand/sigil/frontend/types"
	"github.com/cottand/sigil/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commGroupTheory(t *testing.T) *axiom.Theory {
	t.Helper()
	param, err := frontend.ParseParam("G")
	require.NoError(t, err)
	sig, err := frontend.ParseTypeExpr("(-> G G G)")
	require.NoError(t, err)
	prop, err := frontend.ParseExpr("(forall ((x y G)) (= (+ x y) (+ y x)))")
	require.NoError(t, err)

	structures := types.NewStructures(nil)
	require.NoError(t, structures.Register(&ast.StructureDef{
		Name:   "CommGroup",
		Params: []ast.TypeParam{param},
		Members: []ast.Member{
			&ast.Operation{Name: "+", Signature: sig},
			&ast.Axiom{Name: "commutativity", Prop: prop},
		},
	}))
	return axiom.NewTheory(structures)
}

func newEvaluator(t *testing.T) evaluator.Evaluator {
	t.Helper()
	ev, err := evaluator.New()
	require.NoError(t, err)
	return ev
}

func compile(t *testing.T, theory *axiom.Theory, structure, src string) *axiom.Plan {
	t.Helper()
	e, err := frontend.ParseExpr(src)
	require.NoError(t, err)
	plan, err := theory.CompileAssert(&ast.Assertion{Name: src, Structure: structure, Expr: e}, nil, newEvaluator(t))
	require.NoError(t, err)
	return plan
}

// withModels finds a model of every set of axioms and leaves the other
// queries to s
func withModels(s solver.Func) solver.Func {
	return func(ctx context.Context, p solver.Problem) (solver.Response, error) {
		if axiom.IsTrue(p.Goal) {
			return solver.Response{Verdict: solver.Sat}, nil
		}
		return s(ctx, p)
	}
}

// answering is a solver giving resp to every goal, counting its calls
func answering(calls *atomic.Int32, resp solver.Response) solver.Solver {
	return withModels(func(ctx context.Context, p solver.Problem) (solver.Response, error) {
		calls.Add(1)
		return resp, nil
	})
}

var unreachable = solver.Func(func(context.Context, solver.Problem) (solver.Response, error) {
	panic("the solver must not be called")
})

func TestVerifyConcrete(t *testing.T) {
	theory := commGroupTheory(t)
	engine := NewEngine(unreachable, newEvaluator(t))
	ctx := context.Background()

	r := engine.Verify(ctx, compile(t, theory, "", "(= (+ 2 2) 4)"))
	assert.Equal(t, Passed, r.Outcome)
	assert.Equal(t, "(= (+ 2 2) 4)", r.Name)

	r = engine.Verify(ctx, compile(t, theory, "", "(= (+ 2 2) 5)"))
	assert.Equal(t, Failed, r.Outcome)
	assert.Equal(t, "4", r.Expected)
	assert.Equal(t, "5", r.Actual)

	r = engine.Verify(ctx, compile(t, theory, "", "(and (< 1 2) (< 3 2))"))
	assert.Equal(t, Failed, r.Outcome)
	assert.Equal(t, "true", r.Expected)
	assert.Equal(t, "false", r.Actual)

	r = engine.Verify(ctx, compile(t, theory, "", "(= (/ 1 3) (/ 2 6))"))
	assert.Equal(t, Passed, r.Outcome)
	assert.Empty(t, r.Reason)

	r = engine.Verify(ctx, compile(t, theory, "", "(= (+ 2 2) 5)"))
	assert.Empty(t, r.Reason, "exact numbers differ exactly")

	r = engine.Verify(ctx, compile(t, theory, "", "(= (sqrt 2) 1.4142)"))
	assert.Equal(t, Failed, r.Outcome)
	assert.Contains(t, r.Reason, "relative tolerance 1e-09")
	assert.Contains(t, r.String(), "(inexact numbers differ")

	r = engine.Verify(ctx, compile(t, theory, "", "(= (* (sqrt 2) (sqrt 2)) 2)"))
	assert.Equal(t, Passed, r.Outcome, "rounding errors are tolerated")
}

func TestVerifySymbolic(t *testing.T) {
	theory := commGroupTheory(t)
	plan := compile(t, theory, "CommGroup", "(= (+ a b) (+ b a))")

	var problem solver.Problem
	engine := NewEngine(withModels(func(ctx context.Context, p solver.Problem) (solver.Response, error) {
		problem = p
		return solver.Response{Verdict: solver.Unsat}, nil
	}), newEvaluator(t))

	r := engine.Verify(context.Background(), plan)
	assert.Equal(t, Verified, r.Outcome)
	assert.Equal(t, "(not (= (+:G a b) (+:G b a)))", problem.Goal.String(), "the goal is refuted")
	require.Len(t, problem.Assumptions, 1)
	assert.Equal(t, plan.Axioms[0].Formula, problem.Assumptions[0])
	assert.Equal(t, plan.FreeVars, problem.Constants)
}

func TestVerifyDisproved(t *testing.T) {
	theory := commGroupTheory(t)
	var calls atomic.Int32
	engine := NewEngine(answering(&calls, solver.Response{
		Verdict: solver.Sat,
		Model:   map[string]string{"b": "G!val!1", "a": "G!val!0", "|+|": "ignored"},
	}), newEvaluator(t))

	r := engine.Verify(context.Background(), compile(t, theory, "CommGroup", "(= (+ a b) (+ a a))"))
	assert.Equal(t, Disproved, r.Outcome)
	assert.Equal(t, []Binding{{"a", "G!val!0"}, {"b", "G!val!1"}}, r.Counterexample)
	assert.Equal(t, "(= (+ a b) (+ a a)): disproved: counterexample a = G!val!0, b = G!val!1", r.String())
}

func TestVerifyTimeout(t *testing.T) {
	theory := commGroupTheory(t)
	cache := NewMemoryCache()
	engine := NewEngine(solver.Func(func(ctx context.Context, p solver.Problem) (solver.Response, error) {
		<-ctx.Done()
		return solver.Response{}, ctx.Err()
	}), newEvaluator(t))
	engine.Timeout = 20 * time.Millisecond
	engine.Cache = cache

	r := engine.Verify(context.Background(), compile(t, theory, "CommGroup", "(= (+ a b) (+ b a))"))
	assert.Equal(t, Unknown, r.Outcome)
	assert.Equal(t, sigerr.SolverTimeout, sigerr.CodeOf(r.Err))
	assert.False(t, r.Outcome.OK())
	assert.Zero(t, cache.Len(), "unknown results are not cached")
}

func TestVerifyCancelled(t *testing.T) {
	theory := commGroupTheory(t)
	cache := NewMemoryCache()
	ctx, cancel := context.WithCancel(context.Background())
	engine := NewEngine(withModels(func(_ context.Context, p solver.Problem) (solver.Response, error) {
		// the solver answers, but too late
		cancel()
		return solver.Response{Verdict: solver.Unsat}, nil
	}), newEvaluator(t))
	engine.Cache = cache

	r := engine.Verify(ctx, compile(t, theory, "CommGroup", "(= (+ a b) (+ b a))"))
	assert.Equal(t, Unknown, r.Outcome)
	assert.ErrorIs(t, r.Err, context.Canceled)
	assert.Zero(t, cache.Len())
}

func TestVerifySolverUnknown(t *testing.T) {
	theory := commGroupTheory(t)
	var calls atomic.Int32
	engine := NewEngine(answering(&calls, solver.Response{Verdict: solver.Unknown, Reason: "incomplete quantifiers"}), newEvaluator(t))
	plan := compile(t, theory, "CommGroup", "(= (+ a b) (+ b a))")

	r := engine.Verify(context.Background(), plan)
	assert.Equal(t, Unknown, r.Outcome)
	assert.Equal(t, "incomplete quantifiers", r.Reason)

	engine.Verify(context.Background(), plan)
	assert.EqualValues(t, 2, calls.Load(), "unknown results are asked again")
}

func TestVerifyInconsistentAxioms(t *testing.T) {
	theory := commGroupTheory(t)
	cache := NewMemoryCache()
	var consistency, refutations atomic.Int32
	engine := NewEngine(solver.Func(func(ctx context.Context, p solver.Problem) (solver.Response, error) {
		if axiom.IsTrue(p.Goal) {
			consistency.Add(1)
			assert.Len(t, p.Assumptions, 1)
		} else {
			refutations.Add(1)
		}
		return solver.Response{Verdict: solver.Unsat}, nil
	}), newEvaluator(t))
	engine.Cache = cache
	ctx := context.Background()

	r := engine.Verify(ctx, compile(t, theory, "CommGroup", "(= (+ a b) (+ b a))"))
	assert.Equal(t, Unknown, r.Outcome)
	assert.Equal(t, "axioms in scope are inconsistent", r.Reason)
	assert.False(t, r.Outcome.OK())

	r = engine.Verify(ctx, compile(t, theory, "CommGroup", "(= (+ a b) (+ a a))"))
	assert.Equal(t, Unknown, r.Outcome, "a contradiction refutes any goal")
	assert.EqualValues(t, 1, consistency.Load(), "the same axioms are checked once")
	assert.Zero(t, refutations.Load())
	assert.Zero(t, cache.Len())

	// without axioms there is nothing to contradict
	r = engine.Verify(ctx, compile(t, theory, "", "(forall ((p Bool)) (or p (not p)))"))
	assert.Equal(t, Verified, r.Outcome)
	assert.EqualValues(t, 1, consistency.Load())
	assert.EqualValues(t, 1, refutations.Load())
}

func TestVerifyUndecidedConsistency(t *testing.T) {
	theory := commGroupTheory(t)
	var consistency atomic.Int32
	engine := NewEngine(solver.Func(func(ctx context.Context, p solver.Problem) (solver.Response, error) {
		if axiom.IsTrue(p.Goal) {
			consistency.Add(1)
			return solver.Response{Verdict: solver.Unknown}, nil
		}
		return solver.Response{Verdict: solver.Unsat}, nil
	}), newEvaluator(t))
	ctx := context.Background()

	r := engine.Verify(ctx, compile(t, theory, "CommGroup", "(= (+ a b) (+ b a))"))
	assert.Equal(t, Verified, r.Outcome)
	r = engine.Verify(ctx, compile(t, theory, "CommGroup", "(= (+ b a) (+ a b))"))
	assert.Equal(t, Verified, r.Outcome)
	assert.EqualValues(t, 2, consistency.Load(), "undecided answers are asked again")
}

func TestAxiomSetKey(t *testing.T) {
	plan := compile(t, commGroupTheory(t), "CommGroup", "(= (+ a b) (+ b a))")
	twice := append([]axiom.Axiom{plan.Axioms[0]}, plan.Axioms...)
	assert.Equal(t, AxiomSetKey(plan.Axioms), AxiomSetKey(twice))
	assert.NotEqual(t, AxiomSetKey(plan.Axioms), AxiomSetKey(nil))
	assert.NotEqual(t, AxiomSetKey(plan.Axioms), CacheKey(plan))
}

func TestVerifyCaches(t *testing.T) {
	theory := commGroupTheory(t)
	var calls atomic.Int32
	engine := NewEngine(answering(&calls, solver.Response{Verdict: solver.Unsat}), newEvaluator(t))
	ctx := context.Background()

	first := engine.Verify(ctx, compile(t, theory, "CommGroup", "(= (+ a b) (+ b a))"))
	second := engine.Verify(ctx, compile(t, theory, "CommGroup", "(= (+ a b) (+ b a))"))
	assert.Equal(t, Verified, first.Outcome)
	assert.False(t, first.Cached)
	assert.Equal(t, Verified, second.Outcome)
	assert.True(t, second.Cached)
	assert.EqualValues(t, 1, calls.Load())

	require.NoError(t, engine.Invalidate(ctx, "Ring"))
	engine.Verify(ctx, compile(t, theory, "CommGroup", "(= (+ a b) (+ b a))"))
	assert.EqualValues(t, 1, calls.Load(), "other structures do not invalidate the result")

	require.NoError(t, engine.Invalidate(ctx, "CommGroup"))
	engine.Verify(ctx, compile(t, theory, "CommGroup", "(= (+ a b) (+ b a))"))
	assert.EqualValues(t, 2, calls.Load())
}

func TestCacheKey(t *testing.T) {
	theory := commGroupTheory(t)
	plan := compile(t, theory, "CommGroup", "(= (+ a b) (+ b a))")

	duplicated := *plan
	duplicated.Axioms = append([]axiom.Axiom{plan.Axioms[0]}, plan.Axioms...)
	assert.Equal(t, CacheKey(plan), CacheKey(&duplicated), "duplicate axioms do not change the key")

	other := compile(t, theory, "CommGroup", "(= (+ a b) (+ a a))")
	assert.NotEqual(t, CacheKey(plan), CacheKey(other))

	bare := *plan
	bare.Axioms = nil
	assert.NotEqual(t, CacheKey(plan), CacheKey(&bare))
}

func TestVerifyBatch(t *testing.T) {
	theory := commGroupTheory(t)
	engine := NewEngine(solver.Func(func(ctx context.Context, p solver.Problem) (solver.Response, error) {
		if p.Goal.String() == "(not (= (+:G a b) (+:G b a)))" {
			return solver.Response{Verdict: solver.Unsat}, nil
		}
		return solver.Response{Verdict: solver.Unknown}, nil
	}), newEvaluator(t))
	engine.Workers = 2

	plans := []*axiom.Plan{
		compile(t, theory, "", "(= (+ 2 2) 4)"),
		compile(t, theory, "CommGroup", "(= (+ a b) (+ b a))"),
		compile(t, theory, "", "(= (+ 2 2) 5)"),
		compile(t, theory, "CommGroup", "(= (+ a b) (+ a a))"),
	}
	results, summary := engine.VerifyBatch(context.Background(), plans)
	require.Len(t, results, 4)
	assert.Equal(t, []Outcome{Passed, Verified, Failed, Unknown}, []Outcome{
		results[0].Outcome, results[1].Outcome, results[2].Outcome, results[3].Outcome,
	})
	assert.Equal(t, Summary{Total: 4, Passed: 1, Verified: 1, Failed: 1, Unknown: 1}, summary)
	assert.Equal(t, 2, summary.Failures())
	assert.False(t, summary.OK())
}
