package smtlib

import (
	"fmt"
	"strings"

	"github.com/cottand/sigil/frontend/sigerr"
	"github.com/cottand/sigil/internal/sexpr"
	"github.com/cottand/sigil/solver"
)

// ParseVerdict reads the reply to (check-sat)
func ParseVerdict(n sexpr.Node) (solver.Verdict, error) {
	if err := AsError(n); err != nil {
		return solver.Unknown, err
	}
	switch {
	case n.IsSymbol("sat"):
		return solver.Sat, nil
	case n.IsSymbol("unsat"):
		return solver.Unsat, nil
	case n.IsSymbol("unknown"):
		return solver.Unknown, nil
	}
	return solver.Unknown, sigerr.New(sigerr.NewSolverProtocol{Message: fmt.Sprintf("unexpected reply to check-sat: %v", n)})
}

// AsError returns the (error "msg") reply n as an error, or nil
func AsError(n sexpr.Node) error {
	if n.Kind != sexpr.List || len(n.Items) == 0 || !n.Items[0].IsSymbol("error") {
		return nil
	}
	msgs := make([]string, 0, len(n.Items)-1)
	for _, item := range n.Items[1:] {
		msgs = append(msgs, item.Atom)
	}
	return sigerr.New(sigerr.NewSolverProtocol{Message: strings.Join(msgs, "; ")})
}

// ParseModel reads the reply to (get-model). Only constants named in symbols
// are kept, keyed by the name symbols maps them to.
func ParseModel(n sexpr.Node, symbols map[string]string) (map[string]string, error) {
	if err := AsError(n); err != nil {
		return nil, err
	}
	if n.Kind != sexpr.List {
		return nil, sigerr.New(sigerr.NewSolverProtocol{Message: fmt.Sprintf("expected a model, got %v", n)})
	}
	items := n.Items
	if len(items) > 0 && items[0].IsSymbol("model") {
		items = items[1:]
	}
	model := make(map[string]string)
	for _, def := range items {
		// (define-fun name () Sort value)
		if def.Kind != sexpr.List || len(def.Items) != 5 || !def.Items[0].IsSymbol("define-fun") {
			continue
		}
		if params := def.Items[2]; params.Kind != sexpr.List || len(params.Items) > 0 {
			continue
		}
		name, ok := symbols[def.Items[1].Atom]
		if !ok {
			continue
		}
		model[name] = RenderValue(def.Items[4])
	}
	return model, nil
}

// RenderValue writes a solver value the way literals are written in theories:
// (- 2.0) is -2 and (/ 1.0 3.0) is 1/3
func RenderValue(n sexpr.Node) string {
	switch n.Kind {
	case sexpr.Number:
		return trimDecimal(n.Atom)
	case sexpr.List:
		if len(n.Items) == 2 && n.Items[0].IsSymbol("-") {
			return "-" + RenderValue(n.Items[1])
		}
		if len(n.Items) == 3 && n.Items[0].IsSymbol("/") {
			return RenderValue(n.Items[1]) + "/" + RenderValue(n.Items[2])
		}
		return n.String()
	default:
		return n.String()
	}
}

func trimDecimal(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
