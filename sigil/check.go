package sigil

import (
	"context"

	"github.com/cottand/sigil/axiom"
	"github.com/cottand/sigil/frontend/sigerr"
	"github.com/cottand/sigil/verify"
)

// Report is the result of one assertion of a theory
type Report struct {
	verify.Result
	Assertion Assertion
}

// Unexpected holds when the theory announced another outcome than the one found
func (r Report) Unexpected() bool {
	return r.Assertion.Expect != 0 && r.Assertion.Expect != r.Outcome
}

// Plan compiles every assertion of th. Assertions that do not compile get no
// plan and an error at the same index.
func (th *Theory) Plan(engine *verify.Engine) ([]*axiom.Plan, []error) {
	plans := make([]*axiom.Plan, len(th.Assertions))
	errs := make([]error, len(th.Assertions))
	var failed *sigerr.Errors
	for i, a := range th.Assertions {
		plans[i], errs[i] = th.Axioms.CompileAssert(a.Assertion, th.Env, engine.Evaluator)
		failed = failed.WithErr(errs[i])
	}
	if failed.HasError() {
		logger.Warn("assertions did not compile", "theory", th.Name, "count", len(failed.Errors()), "errors", failed)
	}
	return plans, errs
}

// Check verifies every assertion of th with engine. An assertion that does not
// compile is Unknown, so that it counts as a failure without stopping the others.
func (th *Theory) Check(ctx context.Context, engine *verify.Engine) ([]Report, verify.Summary) {
	plans, errs := th.Plan(engine)
	var compiled []*axiom.Plan
	for _, p := range plans {
		if p != nil {
			compiled = append(compiled, p)
		}
	}
	results, _ := engine.VerifyBatch(ctx, compiled)

	reports := make([]Report, len(th.Assertions))
	all := make([]verify.Result, len(th.Assertions))
	next := 0
	for i, a := range th.Assertions {
		var r verify.Result
		if errs[i] != nil {
			r = verify.Result{Name: a.Name, Outcome: verify.Unknown, Reason: errs[i].Error(), Err: errs[i]}
		} else {
			r = results[next]
			next++
		}
		reports[i] = Report{Result: r, Assertion: a}
		all[i] = r
	}
	return reports, verify.Summarize(all)
}
