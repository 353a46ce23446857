// Package solver decides the satisfiability of compiled formulas with an
// external SMT solver
package solver

import (
	"context"

	"github.com/cottand/sigil/axiom"
)

// Problem is a satisfiability query: are Assumptions and Goal satisfiable together?
// A claim is proved by showing that its negation, as Goal, is not.
type Problem struct {
	Assumptions []axiom.Formula
	Goal        axiom.Formula
	// Constants are the free constants whose values a model reports
	Constants []*axiom.Var
}

type Verdict uint8

const (
	Unknown Verdict = iota
	Sat
	Unsat
)

func (v Verdict) String() string {
	switch v {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

type Response struct {
	Verdict Verdict
	// Model maps the constants of the problem to their value, when Sat
	Model map[string]string
	// Reason is the explanation given by the solver, when Unknown
	Reason string
}

// Solver is implemented by SMT backends. Check must return once ctx is done.
type Solver interface {
	Check(ctx context.Context, p Problem) (Response, error)
}

// Func adapts a function to Solver
type Func func(ctx context.Context, p Problem) (Response, error)

func (f Func) Check(ctx context.Context, p Problem) (Response, error) {
	return f(ctx, p)
}
