// Package smtlib writes problems in the SMT-LIB 2 language and reads the
// replies of SMT-LIB 2 solvers
package smtlib

import (
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/cottand/sigil/axiom"
	"github.com/cottand/sigil/frontend/ast"
	"github.com/cottand/sigil/frontend/sigerr"
	"github.com/cottand/sigil/frontend/types"
	"github.com/cottand/sigil/solver"
)

// Script is an encoded problem, without the final check-sat
type Script struct {
	Text string
	// Constants maps the symbols of free constants to their names
	Constants map[string]string
}

// largest exponent expanded into a product
const maxExpandedExponent = 16

type encoder struct {
	sorts     map[string]string
	sortDecls []string

	funcs     map[string]string
	funcDecls []string

	consts     map[string]string
	constDecls []string
	constants  map[string]string

	// text literals per sort, pairwise distinct
	texts  map[string][]string
	guards []string

	bound map[string]int
}

// Encode writes p as SMT-LIB 2 commands: every sort, function and constant
// p uses is declared, then the assumptions and the goal are asserted.
//
// Scalar and ℚ are Real, ℤ and ℕ are Int (ℕ values are constrained to be
// non-negative), Bool is Bool, and every other type is an uninterpreted sort.
// Operations of structures are uninterpreted functions, one per signature.
func Encode(p solver.Problem) (*Script, error) {
	e := &encoder{
		sorts:     make(map[string]string),
		funcs:     make(map[string]string),
		consts:    make(map[string]string),
		constants: make(map[string]string),
		texts:     make(map[string][]string),
		bound:     make(map[string]int),
	}
	for _, c := range p.Constants {
		if _, err := e.constant(c); err != nil {
			return nil, err
		}
	}
	var asserts []string
	for _, f := range slices.Concat(p.Assumptions, []axiom.Formula{p.Goal}) {
		term, err := e.term(f)
		if err != nil {
			return nil, err
		}
		asserts = append(asserts, "(assert "+term+")")
	}

	sb := &strings.Builder{}
	sb.WriteString("(set-option :produce-models true)\n")
	for _, lines := range [][]string{e.sortDecls, e.funcDecls, e.constDecls} {
		for _, line := range lines {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	sortNames := make([]string, 0, len(e.texts))
	for sort := range e.texts {
		sortNames = append(sortNames, sort)
	}
	slices.Sort(sortNames)
	for _, sort := range sortNames {
		if texts := e.texts[sort]; len(texts) > 1 {
			fmt.Fprintf(sb, "(assert (distinct %s))\n", strings.Join(texts, " "))
		}
	}
	for _, line := range slices.Concat(e.guards, asserts) {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return &Script{Text: sb.String(), Constants: e.constants}, nil
}

// Quote makes s a quoted SMT-LIB symbol
func Quote(s string) string {
	return "|" + unquoted(s) + "|"
}

// unquoted is s as it reads once quoted and unquoted
func unquoted(s string) string {
	return strings.NewReplacer("|", "¦", `\`, "/").Replace(s)
}

func isNat(t types.Type) bool {
	n, ok := t.(*types.NamedType)
	return ok && n.Name == types.NatName && len(n.Args) == 0
}

func (e *encoder) sort(t types.Type) (string, error) {
	switch t := t.(type) {
	case types.ScalarType:
		return "Real", nil
	case *types.NamedType:
		if len(t.Args) == 0 {
			switch t.Name {
			case types.IntName, types.NatName:
				return "Int", nil
			case types.RationalName:
				return "Real", nil
			case types.BoolName:
				return "Bool", nil
			}
		}
		key := t.String()
		if sort, ok := e.sorts[key]; ok {
			return sort, nil
		}
		sort := Quote(key)
		e.sorts[key] = sort
		e.sortDecls = append(e.sortDecls, fmt.Sprintf("(declare-sort %s 0)", sort))
		return sort, nil
	default:
		return "", sigerr.New(sigerr.NewUnsupported{What: fmt.Sprintf("values of type %s in a solver query", t)})
	}
}

func (e *encoder) constant(v *axiom.Var) (string, error) {
	sym := Quote(v.Name)
	if _, ok := e.consts[sym]; ok {
		return sym, nil
	}
	sort, err := e.sort(v.T)
	if err != nil {
		return "", err
	}
	e.consts[sym] = sort
	e.constants[unquoted(v.Name)] = v.Name
	e.constDecls = append(e.constDecls, fmt.Sprintf("(declare-const %s %s)", sym, sort))
	if isNat(v.T) {
		e.guards = append(e.guards, fmt.Sprintf("(assert (>= %s 0))", sym))
	}
	return sym, nil
}

func (e *encoder) term(f axiom.Formula) (string, error) {
	switch f := f.(type) {
	case *axiom.Var:
		if e.bound[f.Name] > 0 {
			return Quote(f.Name), nil
		}
		return e.constant(f)
	case *axiom.Const:
		return e.literal(f)
	case *axiom.App:
		if f.Builtin {
			return e.builtin(f)
		}
		return e.application(f)
	case *axiom.Quant:
		return e.quantifier(f)
	default:
		return "", fmt.Errorf("unexpected formula %T", f)
	}
}

func (e *encoder) terms(fs []axiom.Formula) ([]string, error) {
	out := make([]string, len(fs))
	for i, f := range fs {
		term, err := e.term(f)
		if err != nil {
			return nil, err
		}
		out[i] = term
	}
	return out, nil
}

func (e *encoder) literal(c *axiom.Const) (string, error) {
	switch c.Kind {
	case axiom.BoolConst:
		return c.Value, nil
	case axiom.TextConst:
		sort, err := e.sort(c.T)
		if err != nil {
			return "", err
		}
		return e.opaqueLiteral(fmt.Sprintf("%q", c.Value), c.T, sort, true), nil
	}
	sort, err := e.sort(c.T)
	if err != nil {
		return "", err
	}
	switch sort {
	case "Int", "Real":
		return numeral(c.Value, sort == "Int")
	default:
		// a numeral of a structure's type, like the 1 of a ring
		return e.opaqueLiteral(c.Value, c.T, sort, false), nil
	}
}

func (e *encoder) opaqueLiteral(value string, t types.Type, sort string, distinct bool) string {
	sym := Quote(value + ":" + t.String())
	if _, ok := e.consts[sym]; ok {
		return sym
	}
	e.consts[sym] = sort
	e.constDecls = append(e.constDecls, fmt.Sprintf("(declare-const %s %s)", sym, sort))
	if distinct {
		e.texts[sort] = append(e.texts[sort], sym)
	}
	return sym
}

// numeral writes a decimal or a/b rational as an Int or Real term
func numeral(value string, integer bool) (string, error) {
	r, ok := new(big.Rat).SetString(value)
	if !ok {
		return "", fmt.Errorf("invalid numeral %s", value)
	}
	negative := r.Sign() < 0
	r.Abs(r)
	var term string
	switch {
	case integer && !r.IsInt():
		return "", sigerr.New(sigerr.NewTypeMismatch{Expected: types.IntName, Found: value, Reason: "numeric literal"})
	case integer:
		term = r.Num().String()
	case r.IsInt():
		term = r.Num().String() + ".0"
	default:
		term = fmt.Sprintf("(/ %s.0 %s.0)", r.Num(), r.Denom())
	}
	if negative {
		term = "(- " + term + ")"
	}
	return term, nil
}

func (e *encoder) builtin(f *axiom.App) (string, error) {
	args, err := e.terms(f.Args)
	if err != nil {
		return "", err
	}
	op := f.Op
	switch f.Op {
	case ast.OpIff:
		op = "="
	case ast.OpImplies:
		op = "=>"
	case "/":
		if len(f.Args) > 0 && e.isIntSorted(f.Args[0].Type()) {
			op = "div"
		}
	case "^":
		if expanded, ok := e.power(f, args); ok {
			return expanded, nil
		}
	}
	return "(" + op + " " + strings.Join(args, " ") + ")", nil
}

func (e *encoder) isIntSorted(t types.Type) bool {
	sort, err := e.sort(t)
	return err == nil && sort == "Int"
}

// power expands x ^ n into a product when n is a small natural literal
func (e *encoder) power(f *axiom.App, args []string) (string, bool) {
	exp, ok := f.Args[1].(*axiom.Const)
	if !ok || exp.Kind != axiom.NumberConst {
		return "", false
	}
	r, ok := new(big.Rat).SetString(exp.Value)
	if !ok || !r.IsInt() || r.Sign() < 0 || r.Num().Cmp(big.NewInt(maxExpandedExponent)) > 0 {
		return "", false
	}
	n := int(r.Num().Int64())
	switch n {
	case 0:
		if e.isIntSorted(f.T) {
			return "1", true
		}
		return "1.0", true
	case 1:
		return args[0], true
	}
	factors := make([]string, n)
	for i := range factors {
		factors[i] = args[0]
	}
	return "(* " + strings.Join(factors, " ") + ")", true
}

func (e *encoder) application(f *axiom.App) (string, error) {
	argTypes := make([]string, len(f.Args))
	argSorts := make([]string, len(f.Args))
	for i, arg := range f.Args {
		argTypes[i] = arg.Type().String()
		sort, err := e.sort(arg.Type())
		if err != nil {
			return "", err
		}
		argSorts[i] = sort
	}
	result, err := e.sort(f.T)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s[%s]→%s", f.Op, strings.Join(argTypes, ","), f.T)
	sym, ok := e.funcs[key]
	if !ok {
		sym = Quote(key)
		e.funcs[key] = sym
		e.funcDecls = append(e.funcDecls, fmt.Sprintf("(declare-fun %s (%s) %s)", sym, strings.Join(argSorts, " "), result))
		if isNat(f.T) {
			e.guards = append(e.guards, natGuard(sym, argSorts))
		}
	}
	if len(f.Args) == 0 {
		return sym, nil
	}
	args, err := e.terms(f.Args)
	if err != nil {
		return "", err
	}
	return "(" + sym + " " + strings.Join(args, " ") + ")", nil
}

func natGuard(sym string, argSorts []string) string {
	if len(argSorts) == 0 {
		return fmt.Sprintf("(assert (>= %s 0))", sym)
	}
	binders := make([]string, len(argSorts))
	vars := make([]string, len(argSorts))
	for i, sort := range argSorts {
		vars[i] = fmt.Sprintf("|x%d|", i)
		binders[i] = fmt.Sprintf("(%s %s)", vars[i], sort)
	}
	return fmt.Sprintf("(assert (forall (%s) (>= (%s %s) 0)))", strings.Join(binders, " "), sym, strings.Join(vars, " "))
}

func (e *encoder) quantifier(q *axiom.Quant) (string, error) {
	sort, err := e.sort(q.Var.T)
	if err != nil {
		return "", err
	}
	e.bound[q.Var.Name]++
	body, err := e.term(q.Body)
	e.bound[q.Var.Name]--
	if err != nil {
		return "", err
	}
	sym := Quote(q.Var.Name)
	binder := "forall"
	if q.Kind == ast.Exists {
		binder = "exists"
	}
	if isNat(q.Var.T) {
		if q.Kind == ast.ForAll {
			body = fmt.Sprintf("(=> (>= %s 0) %s)", sym, body)
		} else {
			body = fmt.Sprintf("(and (>= %s 0) %s)", sym, body)
		}
	}
	return fmt.Sprintf("(%s ((%s %s)) %s)", binder, sym, sort, body), nil
}
