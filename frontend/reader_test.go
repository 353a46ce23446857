package frontend

import (
	"testing"

	"github.com/cottand/sigil/frontend/ast"
	"github.com/cottand/sigil/frontend/sigerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypeExpr(t *testing.T) {
	cases := map[string]string{
		"ℝ":                   "ℝ",
		"(Matrix m n ℝ)":      "Matrix(m, n, ℝ)",
		"(-> R R R)":          "R → R → R",
		"(-> (-> R R) R)":     "(R → R) → R",
		`(Metric "m/s" Real)`: `Metric("m/s", Real)`,
		"(Vector (+ n 1))":    "Vector(+(n, 1))",
	}
	for src, expected := range cases {
		t.Run(src, func(t *testing.T) {
			got, err := ParseTypeExpr(src)
			require.NoError(t, err)
			assert.Equal(t, expected, ast.TypeExprString(got))
		})
	}
}

func TestParseTypeExprErrors(t *testing.T) {
	for _, src := range []string{"()", "(-> R)", "(Vector)", "(Vector -1)", "((a) b)", "(a"} {
		t.Run(src, func(t *testing.T) {
			_, err := ParseTypeExpr(src)
			assert.Equal(t, sigerr.Parse, sigerr.CodeOf(err), "error was %v", err)
		})
	}
}

func TestParseExpr(t *testing.T) {
	cases := map[string]string{
		"(= (+ 2 2) 4)":                            "2 + 2 = 4",
		"(forall ((x y R)) (= (+ x y) (+ y x)))":   "∀(x y : R). x + y = y + x",
		"(forall ((x : R)) (= x x))":               "∀(x : R). x = x",
		"(∀ (x) (= x x))":                          "∀(x). x = x",
		"(exists ((x R)) :where (> x 0) (= x x))":  "∃(x : R) where x > 0. x = x",
		"(=> (and p q) (or p (not q)))":            "p ∧ q ⟹ p ∨ ¬q",
		"(* (+ a b) c)":                            "(a + b) × c",
		"(≤ (f x \"s\") 1.5)":                      `f(x, "s") ≤ 1.5`,
		"(forall ((x R) (n Nat)) (= (pow x n) x))": "∀(x : R)(n : Nat). pow(x, n) = x",
	}
	for src, expected := range cases {
		t.Run(src, func(t *testing.T) {
			got, err := ParseExpr(src)
			require.NoError(t, err)
			assert.Equal(t, expected, ast.ExprString(got))
		})
	}
}

func TestParseExprErrors(t *testing.T) {
	for _, src := range []string{
		"()",
		"((f) x)",
		"(forall x (= x x))",
		"(forall () (= x x))",
		"(forall ((x R)) :where (> x 0))",
		"(forall ((x R)) (= x x) (= x x))",
		"(forall (((f) R)) x)",
		"(forall ((x : R S)) x)",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := ParseExpr(src)
			assert.Equal(t, sigerr.Parse, sigerr.CodeOf(err), "error was %v", err)
		})
	}
}

func TestParsePositions(t *testing.T) {
	got, err := ParseExpr("(=\n  x\n  y)")
	require.NoError(t, err)
	call := got.(*ast.Call)
	assert.Equal(t, ast.Position{Line: 1, Col: 1}, call.Pos())
	assert.Equal(t, ast.Position{Line: 2, Col: 3}, call.Args[0].Pos())
	assert.Equal(t, ast.Position{Line: 3, Col: 3}, call.Args[1].Pos())
}

func TestParseParam(t *testing.T) {
	cases := map[string]ast.TypeParam{
		"T":              {Name: "T"},
		"n: Nat":         {Name: "n", Kind: "Nat"},
		"unit : String ": {Name: "unit", Kind: "String"},
	}
	for src, expected := range cases {
		got, err := ParseParam(src)
		require.NoError(t, err)
		assert.Equal(t, expected, got)
	}

	_, err := ParseParam(": Nat")
	assert.Equal(t, sigerr.Parse, sigerr.CodeOf(err))
}

func TestParseDefine(t *testing.T) {
	d, err := ParseDefine("(double x)", "(+ x x)")
	require.NoError(t, err)
	assert.Equal(t, "double", d.Name)
	assert.Equal(t, []string{"x"}, d.Params)
	assert.Equal(t, "+", d.Body.(*ast.Call).Op)

	d, err = ParseDefine("origin", "0")
	require.NoError(t, err)
	assert.Equal(t, "origin", d.Name)
	assert.Empty(t, d.Params)

	for _, head := range []string{"(double 1)", "()", `"name"`} {
		_, err := ParseDefine(head, "0")
		assert.Equal(t, sigerr.Parse, sigerr.CodeOf(err), head)
	}
}
