// Package verify checks assertions: concrete ones by evaluation and symbolic
// ones by asking an SMT solver for a counterexample
package verify

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type Outcome uint8

const (
	// Passed is a concrete assertion that evaluated to true
	Passed Outcome = iota + 1
	// Failed is a concrete assertion that evaluated to false
	Failed
	// Verified is a symbolic assertion proved from the axioms in scope
	Verified
	// Disproved is a symbolic assertion with a counterexample
	Disproved
	// Unknown is any other result, including timeouts and solver failures
	Unknown
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Verified:
		return "verified"
	case Disproved:
		return "disproved"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// ParseOutcome is the inverse of Outcome.String
func ParseOutcome(s string) (Outcome, bool) {
	for o := Passed; o <= Unknown; o++ {
		if o.String() == s {
			return o, true
		}
	}
	return 0, false
}

// OK holds for the outcomes that count as a success
func (o Outcome) OK() bool {
	return o == Passed || o == Verified
}

// Definitive holds for every outcome but Unknown
func (o Outcome) Definitive() bool {
	return o >= Passed && o <= Disproved
}

type Binding struct {
	Name  string
	Value string
}

type Result struct {
	Name    string
	Outcome Outcome

	// Expected and Actual are set when Failed
	Expected string
	Actual   string

	// Counterexample is set when Disproved, for the free constants of the goal
	Counterexample []Binding

	// Reason is set when Unknown, and Err too when the solver could not answer.
	// A Failed comparison of inexact numbers carries one as well.
	Reason string
	Err    error

	Cached   bool
	Duration time.Duration
}

func (r Result) String() string {
	switch r.Outcome {
	case Failed:
		if r.Reason != "" {
			return fmt.Sprintf("%s: failed: expected %s, got %s (%s)", r.Name, r.Expected, r.Actual, r.Reason)
		}
		return fmt.Sprintf("%s: failed: expected %s, got %s", r.Name, r.Expected, r.Actual)
	case Disproved:
		parts := make([]string, len(r.Counterexample))
		for i, b := range r.Counterexample {
			parts[i] = b.Name + " = " + b.Value
		}
		if len(parts) == 0 {
			return r.Name + ": disproved"
		}
		return fmt.Sprintf("%s: disproved: counterexample %s", r.Name, strings.Join(parts, ", "))
	case Unknown:
		return fmt.Sprintf("%s: unknown: %s", r.Name, r.Reason)
	default:
		return r.Name + ": " + r.Outcome.String()
	}
}

func (r Result) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("name", r.Name),
		slog.String("outcome", r.Outcome.String()),
		slog.Duration("took", r.Duration),
	}
	if r.Cached {
		attrs = append(attrs, slog.Bool("cached", true))
	}
	if r.Reason != "" {
		attrs = append(attrs, slog.String("reason", r.Reason))
	}
	return slog.GroupValue(attrs...)
}

// Summary counts the results of a batch. Unknown counts as a failure.
type Summary struct {
	Total     int
	Passed    int
	Failed    int
	Verified  int
	Disproved int
	Unknown   int
}

func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Outcome {
		case Passed:
			s.Passed++
		case Failed:
			s.Failed++
		case Verified:
			s.Verified++
		case Disproved:
			s.Disproved++
		default:
			s.Unknown++
		}
	}
	return s
}

func (s Summary) Add(o Summary) Summary {
	return Summary{
		Total:     s.Total + o.Total,
		Passed:    s.Passed + o.Passed,
		Failed:    s.Failed + o.Failed,
		Verified:  s.Verified + o.Verified,
		Disproved: s.Disproved + o.Disproved,
		Unknown:   s.Unknown + o.Unknown,
	}
}

func (s Summary) Failures() int {
	return s.Failed + s.Disproved + s.Unknown
}

func (s Summary) OK() bool {
	return s.Failures() == 0
}

func (s Summary) String() string {
	return fmt.Sprintf("%d assertions: %d passed, %d verified, %d failed, %d disproved, %d unknown",
		s.Total, s.Passed, s.Verified, s.Failed, s.Disproved, s.Unknown)
}
