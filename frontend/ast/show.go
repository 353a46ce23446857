package ast

import (
	"fmt"
	"strings"
)

// ExprString renders e in conventional mathematical notation
func ExprString(expr Expr) string {
	ctx := &showContext{Builder: &strings.Builder{}}
	ctx.showExprWalker(expr, 0)
	return ctx.String()
}

// TypeExprString renders a signature expression: Matrix(m, n, ℝ) → ℝ
func TypeExprString(t TypeExpr) string {
	ctx := &showContext{Builder: &strings.Builder{}}
	ctx.showType(t, false)
	return ctx.String()
}

type showContext struct {
	*strings.Builder
}

// binary operators and their precedence, higher binds tighter
var infixPrecedence = map[string]int16{
	OpIff:     1,
	OpImplies: 2,
	OpOr:      3,
	OpAnd:     4,
	OpEq:      5,
	OpNeq:     5,
	OpLt:      5,
	OpLe:      5,
	OpGt:      5,
	OpGe:      5,
	"+":       6,
	"-":       6,
	"*":       7,
	"/":       7,
	"^":       8,
}

var infixSymbol = map[string]string{
	OpIff:     "⟺",
	OpImplies: "⟹",
	OpOr:      "∨",
	OpAnd:     "∧",
	OpNeq:     "≠",
	OpLe:      "≤",
	OpGe:      "≥",
	"*":       "×",
}

func (ctx *showContext) showExprWalker(expr Expr, outerPrecedence int16) {
	if expr == nil {
		ctx.WriteString("nil")
		return
	}
	switch expr := expr.(type) {
	case *Ident:
		ctx.WriteString(expr.Name)
	case *NumberLit:
		ctx.WriteString(expr.Text)
	case *Text:
		ctx.WriteString(fmt.Sprintf("%q", expr.Value))
	case *Call:
		prec, isInfix := infixPrecedence[expr.Op]
		switch {
		case isInfix && len(expr.Args) == 2:
			if prec <= outerPrecedence {
				ctx.WriteString("(")
				defer ctx.WriteString(")")
			}
			sym := expr.Op
			if s, ok := infixSymbol[sym]; ok {
				sym = s
			}
			ctx.showExprWalker(expr.Args[0], prec)
			ctx.WriteString(" " + sym + " ")
			ctx.showExprWalker(expr.Args[1], prec)
		case expr.Op == OpNot && len(expr.Args) == 1:
			ctx.WriteString("¬")
			ctx.showExprWalker(expr.Args[0], 9)
		case expr.Op == "-" && len(expr.Args) == 1:
			ctx.WriteString("-")
			ctx.showExprWalker(expr.Args[0], 9)
		default:
			ctx.WriteString(expr.Op)
			ctx.WriteString("(")
			for i, arg := range expr.Args {
				if i > 0 {
					ctx.WriteString(", ")
				}
				ctx.showExprWalker(arg, 0)
			}
			ctx.WriteString(")")
		}
	case *Quantifier:
		if outerPrecedence > 0 {
			ctx.WriteString("(")
			defer ctx.WriteString(")")
		}
		ctx.WriteString(expr.Kind.String())
		for _, b := range expr.Binders {
			ctx.WriteString("(")
			ctx.WriteString(strings.Join(b.Names, " "))
			if b.Type != nil {
				ctx.WriteString(" : ")
				ctx.showType(b.Type, false)
			}
			ctx.WriteString(")")
		}
		if expr.Where != nil {
			ctx.WriteString(" where ")
			ctx.showExprWalker(expr.Where, 0)
		}
		ctx.WriteString(". ")
		ctx.showExprWalker(expr.Body, 0)
	default:
		ctx.WriteString(expr.ExprName())
	}
}

func (ctx *showContext) showType(t TypeExpr, inArrowLhs bool) {
	switch t := t.(type) {
	case *TypeName:
		ctx.WriteString(t.Name)
	case *NatLit:
		ctx.WriteString(fmt.Sprint(t.Value))
	case *TagLit:
		ctx.WriteString(fmt.Sprintf("%q", t.Value))
	case *TypeApp:
		ctx.WriteString(t.Name)
		ctx.WriteString("(")
		for i, arg := range t.Args {
			if i > 0 {
				ctx.WriteString(", ")
			}
			ctx.showType(arg, false)
		}
		ctx.WriteString(")")
	case *FuncTypeExpr:
		if inArrowLhs {
			ctx.WriteString("(")
			defer ctx.WriteString(")")
		}
		ctx.showType(t.From, true)
		ctx.WriteString(" → ")
		ctx.showType(t.To, false)
	case nil:
		ctx.WriteString("_")
	}
}
