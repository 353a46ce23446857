package frontend

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cottand/sigil/frontend/ast"
	"github.com/cottand/sigil/frontend/sigerr"
	"github.com/cottand/sigil/internal/sexpr"
)

// operator spellings accepted in expressions, mapped to their canonical name
var opAliases = map[string]string{
	"=>":  ast.OpImplies,
	"⟹":   ast.OpImplies,
	"→":   ast.OpImplies,
	"<=>": ast.OpIff,
	"⟺":   ast.OpIff,
	"∧":   ast.OpAnd,
	"∨":   ast.OpOr,
	"¬":   ast.OpNot,
	"≠":   ast.OpNeq,
	"≤":   ast.OpLe,
	"≥":   ast.OpGe,
	"×":   "*",
	"·":   "*",
}

func rangeOf(n sexpr.Node) ast.Range {
	return ast.Range{
		PosStart: ast.Position{Line: n.Start.Line, Col: n.Start.Col},
		PosEnd:   ast.Position{Line: n.End.Line, Col: n.End.Col},
	}
}

func parseErr(n sexpr.Node, format string, args ...any) error {
	return sigerr.New(sigerr.NewParse{Range: rangeOf(n), Message: fmt.Sprintf(format, args...)})
}

func syntaxErr(err error) error {
	var syntax *sexpr.SyntaxError
	if errors.As(err, &syntax) {
		at := ast.Position{Line: syntax.At.Line, Col: syntax.At.Col}
		return sigerr.New(sigerr.NewParse{Range: ast.Range{PosStart: at, PosEnd: at}, Message: syntax.Msg})
	}
	return err
}

// ParseTypeExpr reads a signature expression
//
//	R                     a type, or a parameter
//	(Matrix m n R)        application of a parametric type
//	(-> R R R)            the curried function type R → R → R
//	"m/s"                 a tag
//	3, (+ n 1)            dimensions
func ParseTypeExpr(src string) (ast.TypeExpr, error) {
	n, err := sexpr.Parse(src)
	if err != nil {
		return nil, syntaxErr(err)
	}
	return typeExprOf(n)
}

func typeExprOf(n sexpr.Node) (ast.TypeExpr, error) {
	r := rangeOf(n)
	switch n.Kind {
	case sexpr.Symbol:
		return &ast.TypeName{Range: r, Name: n.Atom}, nil
	case sexpr.String:
		return &ast.TagLit{Range: r, Value: n.Atom}, nil
	case sexpr.Number:
		v, err := strconv.ParseUint(n.Atom, 10, 64)
		if err != nil {
			return nil, parseErr(n, "dimension %s is not a natural number", n.Atom)
		}
		return &ast.NatLit{Range: r, Value: v}, nil
	case sexpr.List:
		if len(n.Items) == 0 {
			return nil, parseErr(n, "empty type expression")
		}
		head := n.Items[0]
		if head.Kind != sexpr.Symbol {
			return nil, parseErr(head, "expected a type name, found %s", head.Kind)
		}
		args := make([]ast.TypeExpr, 0, len(n.Items)-1)
		for _, item := range n.Items[1:] {
			arg, err := typeExprOf(item)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		if head.Atom == "->" || head.Atom == "→" {
			if len(args) < 2 {
				return nil, parseErr(n, "function type needs at least 2 types, got %d", len(args))
			}
			result := args[len(args)-1]
			for i := len(args) - 2; i >= 0; i-- {
				result = &ast.FuncTypeExpr{Range: ast.RangeBetween(args[i], result), From: args[i], To: result}
			}
			return result, nil
		}
		if len(args) == 0 {
			return nil, parseErr(n, "type application (%s) has no arguments", head.Atom)
		}
		return &ast.TypeApp{Range: r, Name: head.Atom, Args: args}, nil
	default:
		return nil, parseErr(n, "unexpected %s", n.Kind)
	}
}

// ParseExpr reads a proposition or term
//
//	(= (+ x y) (+ y x))
//	(forall ((x y R)) (= (+ x y) (+ y x)))
//	(forall ((x R)) :where (!= x 0) (= (* x (inv x)) 1))
func ParseExpr(src string) (ast.Expr, error) {
	n, err := sexpr.Parse(src)
	if err != nil {
		return nil, syntaxErr(err)
	}
	return exprOf(n)
}

func exprOf(n sexpr.Node) (ast.Expr, error) {
	r := rangeOf(n)
	switch n.Kind {
	case sexpr.Symbol:
		return &ast.Ident{Range: r, Name: n.Atom}, nil
	case sexpr.Number:
		return &ast.NumberLit{Range: r, Text: n.Atom}, nil
	case sexpr.String:
		return &ast.Text{Range: r, Value: n.Atom}, nil
	case sexpr.List:
		if len(n.Items) == 0 {
			return nil, parseErr(n, "empty expression")
		}
		head := n.Items[0]
		if head.Kind != sexpr.Symbol {
			return nil, parseErr(head, "expected an operator, found %s", head.Kind)
		}
		switch head.Atom {
		case "forall", "∀":
			return quantifierOf(n, ast.ForAll)
		case "exists", "∃":
			return quantifierOf(n, ast.Exists)
		}
		op := head.Atom
		if canonical, ok := opAliases[op]; ok {
			op = canonical
		}
		args := make([]ast.Expr, 0, len(n.Items)-1)
		for _, item := range n.Items[1:] {
			arg, err := exprOf(item)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return &ast.Call{Range: r, Op: op, Args: args}, nil
	default:
		return nil, parseErr(n, "unexpected %s", n.Kind)
	}
}

func quantifierOf(n sexpr.Node, kind ast.QuantifierKind) (ast.Expr, error) {
	items := n.Items[1:]
	if len(items) < 2 {
		return nil, parseErr(n, "%s needs binders and a body", n.Items[0].Atom)
	}
	if items[0].Kind != sexpr.List {
		return nil, parseErr(items[0], "expected a list of binders")
	}
	q := &ast.Quantifier{Range: rangeOf(n), Kind: kind}
	for _, b := range items[0].Items {
		binder, err := binderOf(b)
		if err != nil {
			return nil, err
		}
		q.Binders = append(q.Binders, binder)
	}
	if len(q.Binders) == 0 {
		return nil, parseErr(items[0], "quantifier without variables")
	}
	rest := items[1:]
	if rest[0].IsSymbol(":where") {
		if len(rest) != 3 {
			return nil, parseErr(n, ":where needs a guard followed by the body")
		}
		where, err := exprOf(rest[1])
		if err != nil {
			return nil, err
		}
		q.Where = where
		rest = rest[2:]
	}
	if len(rest) != 1 {
		return nil, parseErr(n, "quantifier has %d bodies, expected 1", len(rest))
	}
	body, err := exprOf(rest[0])
	if err != nil {
		return nil, err
	}
	q.Body = body
	return q, nil
}

// binderOf reads x, (x y R) or (x y : R)
func binderOf(n sexpr.Node) (ast.Binder, error) {
	if n.Kind == sexpr.Symbol {
		return ast.Binder{Names: []string{n.Atom}}, nil
	}
	if n.Kind != sexpr.List || len(n.Items) == 0 {
		return ast.Binder{}, parseErr(n, "expected a binder like (x y R)")
	}
	items := n.Items
	var typeNode *sexpr.Node
	for i, item := range items {
		if item.IsSymbol(":") {
			if i != len(items)-2 {
				return ast.Binder{}, parseErr(item, "expected exactly one type after ':'")
			}
			typeNode = &items[i+1]
			items = items[:i]
			break
		}
	}
	if typeNode == nil && len(items) > 1 {
		typeNode = &items[len(items)-1]
		items = items[:len(items)-1]
	}
	var b ast.Binder
	for _, item := range items {
		if item.Kind != sexpr.Symbol {
			return ast.Binder{}, parseErr(item, "expected a variable name, found %s", item.Kind)
		}
		b.Names = append(b.Names, item.Atom)
	}
	if typeNode != nil {
		t, err := typeExprOf(*typeNode)
		if err != nil {
			return ast.Binder{}, err
		}
		b.Type = t
	}
	return b, nil
}

// ParseParam reads a parameter declaration like "n: Nat", "unit : String" or "T"
func ParseParam(src string) (ast.TypeParam, error) {
	name, kind, _ := strings.Cut(src, ":")
	name, kind = strings.TrimSpace(name), strings.TrimSpace(kind)
	if name == "" || strings.ContainsAny(name, " \t()") {
		return ast.TypeParam{}, sigerr.New(sigerr.NewParse{Message: fmt.Sprintf("invalid parameter declaration %q", src)})
	}
	return ast.TypeParam{Name: name, Kind: kind}, nil
}

// ParseDefine reads a define from its head, like "(double x)" or "origin",
// and the S-expression of its body
func ParseDefine(head, body string) (*ast.Define, error) {
	n, err := sexpr.Parse(head)
	if err != nil {
		return nil, syntaxErr(err)
	}
	d := &ast.Define{Range: rangeOf(n)}
	switch {
	case n.Kind == sexpr.Symbol:
		d.Name = n.Atom
	case n.Kind == sexpr.List && len(n.Items) > 0:
		for i, item := range n.Items {
			if item.Kind != sexpr.Symbol {
				return nil, parseErr(item, "expected a name in the head of a define, found %s", item.Kind)
			}
			if i == 0 {
				d.Name = item.Atom
			} else {
				d.Params = append(d.Params, item.Atom)
			}
		}
	default:
		return nil, parseErr(n, "invalid define head %s", n)
	}
	if d.Body, err = ParseExpr(body); err != nil {
		return nil, err
	}
	return d, nil
}
