package types

import (
	"fmt"
	"testing"

	"github.com/cottand/sigil/frontend/sigerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameParameterTwice(t *testing.T) {
	reg := testRegistry(t)

	t.Run("same concrete type", func(t *testing.T) {
		ctx := NewBindingContext(NewSession(), reg)
		first, err := Interpret(sig(t, "T"), ctx)
		require.NoError(t, err)
		require.NoError(t, Unify(first, Named(IntName), ctx))

		second, err := Interpret(sig(t, "T"), ctx)
		require.NoError(t, err)
		require.NoError(t, Unify(second, Named(IntName), ctx))

		assert.True(t, Equal(ctx.Resolve(first), ctx.Resolve(second)))
		assert.Equal(t, "ℤ", ctx.Resolve(second).String())
	})

	t.Run("different concrete types", func(t *testing.T) {
		ctx := NewBindingContext(NewSession(), reg)
		tParam, err := Interpret(sig(t, "T"), ctx)
		require.NoError(t, err)
		require.NoError(t, Unify(tParam, Named(IntName), ctx))

		again, err := Interpret(sig(t, "T"), ctx)
		require.NoError(t, err)
		err = Unify(again, Scalar, ctx)
		assert.Equal(t, sigerr.TypeMismatch, sigerr.CodeOf(err))
		assert.ErrorContains(t, err, "ℤ")
		assert.ErrorContains(t, err, "ℝ")
	})

	t.Run("inside a signature", func(t *testing.T) {
		ctx := NewBindingContext(NewSession(), reg)
		fn, err := Interpret(sig(t, "(-> T T Bool)"), ctx)
		require.NoError(t, err)
		err = Unify(fn, Functions([]Type{Named(IntName), Scalar}, Named(BoolName)), ctx)
		assert.Equal(t, sigerr.TypeMismatch, sigerr.CodeOf(err))
	})
}

func TestTagsUnifyByExactString(t *testing.T) {
	reg := testRegistry(t)
	metric := func(unit string) Type {
		return Named("Metric", TagArg{Value: unit}, TypeOf{Type: Scalar})
	}

	ctx := NewBindingContext(NewSession(), reg)
	assert.NoError(t, Unify(metric("m/s"), metric("m/s"), ctx))

	err := Unify(metric("m/s"), metric("N"), ctx)
	assert.Equal(t, sigerr.TagMismatch, sigerr.CodeOf(err))
	assert.ErrorContains(t, err, `"m/s"`)

	err = Unify(metric("m/s"), metric("m/S"), ctx)
	assert.Equal(t, sigerr.TagMismatch, sigerr.CodeOf(err), "tags are case sensitive")
}

func TestTagParameterBindsThenConfirms(t *testing.T) {
	reg := testRegistry(t)
	ctx := NewBindingContext(NewSession(), reg)
	ctx.Declare(Param{Name: "u", Kind: KindTag})

	declared, err := Interpret(sig(t, "(Metric u ℝ)"), ctx)
	require.NoError(t, err)
	require.NoError(t, Unify(declared, Named("Metric", TagArg{Value: "kg"}, TypeOf{Type: Scalar}), ctx))

	value, ok := ctx.LookupTag("u")
	assert.True(t, ok)
	assert.Equal(t, "kg", value)

	err = Unify(declared, Named("Metric", TagArg{Value: "g"}, TypeOf{Type: Scalar}), ctx)
	var mismatch sigerr.NewTagMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "u", mismatch.Param)
	assert.Equal(t, "kg", mismatch.Expected)
	assert.Equal(t, "g", mismatch.Got)
}

func TestDimensionParameterBindsThenConfirms(t *testing.T) {
	reg := testRegistry(t)
	ctx := NewBindingContext(NewSession(), reg)

	vec, err := Interpret(sig(t, "(Vector n)"), ctx)
	require.NoError(t, err)
	assert.Equal(t, "Vector(n)", vec.String())

	require.NoError(t, Unify(vec, Named("Vector", DimArg{N: 3}), ctx))
	n, ok := ctx.LookupDim("n")
	assert.True(t, ok)
	assert.EqualValues(t, 3, n)

	next, err := Interpret(sig(t, "(Vector (+ n 1))"), ctx)
	require.NoError(t, err)
	assert.Equal(t, "Vector(4)", next.String())

	err = Unify(vec, Named("Vector", DimArg{N: 4}), ctx)
	var mismatch sigerr.NewDimMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "n", mismatch.Param)
	assert.Equal(t, "3", mismatch.Expected)
	assert.Equal(t, "4", mismatch.Got)
}

func TestDimensionLiterals(t *testing.T) {
	reg := testRegistry(t)
	ctx := NewBindingContext(NewSession(), reg)

	assert.NoError(t, Unify(Named("Vector", DimArg{N: 2}), Named("Vector", DimArg{N: 2}), ctx))
	err := Unify(Named("Vector", DimArg{N: 2}), Named("Vector", DimArg{N: 3}), ctx)
	assert.Equal(t, sigerr.DimMismatch, sigerr.CodeOf(err))
}

func TestRigidDimensionDoesNotBind(t *testing.T) {
	reg := testRegistry(t)
	ctx := NewBindingContext(NewSession(), reg)
	ctx.DeclareRigid(Param{Name: "n", Kind: KindDimension})

	vec, err := Interpret(sig(t, "(Vector n)"), ctx)
	require.NoError(t, err)
	assert.NoError(t, Unify(vec, vec, ctx))

	err = Unify(vec, Named("Vector", DimArg{N: 3}), ctx)
	assert.Equal(t, sigerr.DimMismatch, sigerr.CodeOf(err))
}

func TestDimensionArithmetic(t *testing.T) {
	reg := testRegistry(t)
	cases := map[string]struct {
		expected string
		err      sigerr.ErrCode
	}{
		"(Vector (+ 2 1))":          {expected: "Vector(3)"},
		"(Vector (* 2 (^ 2 3)))":    {expected: "Vector(16)"},
		"(Vector (min 4 9))":        {expected: "Vector(4)"},
		"(Vector (lcm 4 6))":        {expected: "Vector(12)"},
		"(Vector (gcd 4 6))":        {expected: "Vector(2)"},
		"(Vector (/ 7 2))":          {expected: "Vector(3)"},
		"(Vector (- 1 2))":          {err: sigerr.DimensionEval},
		"(Vector (/ 1 0))":          {err: sigerr.DimensionEval},
		"(Vector (frobnicate 1 2))": {err: sigerr.DimensionEval},
		"(Vector (+ 1 2 3))":        {err: sigerr.DimensionEval},
		"(Vector ℝ)":                {err: sigerr.TypeMismatch},
		`(Vector "m")`:              {err: sigerr.TypeMismatch},
		"(Vector (+ k 1))":          {expected: "Vector((k + 1))"},
	}
	for src, c := range cases {
		t.Run(src, func(t *testing.T) {
			got, err := Interpret(sig(t, src), NewBindingContext(NewSession(), reg))
			if c.err != sigerr.None {
				assert.Equal(t, c.err, sigerr.CodeOf(err), "error was %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expected, got.String())
		})
	}
}

func TestDimensionSolving(t *testing.T) {
	reg := testRegistry(t)
	cases := []struct {
		sig    string
		actual uint64
		n      uint64
		err    sigerr.ErrCode
	}{
		{sig: "(Vector (+ n 1))", actual: 3, n: 2},
		{sig: "(Vector (+ 1 n))", actual: 3, n: 2},
		{sig: "(Vector (- n 2))", actual: 3, n: 5},
		{sig: "(Vector (- 10 n))", actual: 3, n: 7},
		{sig: "(Vector (* 2 n))", actual: 6, n: 3},
		{sig: "(Vector (^ n 2))", actual: 9, n: 3},
		{sig: "(Vector (^ n 3))", actual: 27, n: 3},
		{sig: "(Vector (^ 2 n))", actual: 8, n: 3},
		{sig: "(Vector (^ 2 n))", actual: 1, n: 0},
		{sig: "(Vector (+ (* 2 n) 1))", actual: 7, n: 3},
		{sig: "(Vector (+ n 4))", actual: 3, err: sigerr.DimMismatch},
		{sig: "(Vector (- 2 n))", actual: 3, err: sigerr.DimMismatch},
		{sig: "(Vector (* 2 n))", actual: 7, err: sigerr.DimMismatch},
		{sig: "(Vector (^ n 2))", actual: 8, err: sigerr.DimMismatch},
		{sig: "(Vector (^ 2 n))", actual: 6, err: sigerr.DimMismatch},
		{sig: "(Vector (/ n 2))", actual: 3, err: sigerr.DimMismatch},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%s=%d", c.sig, c.actual), func(t *testing.T) {
			ctx := NewBindingContext(NewSession(), reg)
			expected, err := Interpret(sig(t, c.sig), ctx)
			require.NoError(t, err)

			err = Unify(expected, Named("Vector", DimArg{N: c.actual}), ctx)
			if c.err != sigerr.None {
				assert.Equal(t, c.err, sigerr.CodeOf(err), "error was %v", err)
				_, bound := ctx.LookupDim("n")
				assert.False(t, bound, "a failed solution binds nothing")
				return
			}
			require.NoError(t, err)
			n, ok := ctx.LookupDim("n")
			require.True(t, ok)
			assert.Equal(t, c.n, n)
			assert.Equal(t, fmt.Sprintf("Vector(%d)", c.actual), ctx.Resolve(expected).String())
		})
	}

	t.Run("rigid parameters are not solved", func(t *testing.T) {
		ctx := NewBindingContext(NewSession(), reg)
		ctx.DeclareRigid(Param{Name: "n", Kind: KindDimension})
		expected, err := Interpret(sig(t, "(Vector (+ n 1))"), ctx)
		require.NoError(t, err)
		err = Unify(expected, Named("Vector", DimArg{N: 3}), ctx)
		assert.Equal(t, sigerr.DimMismatch, sigerr.CodeOf(err))
	})
}

func TestSymbolicTermsUnifyStructurally(t *testing.T) {
	reg := testRegistry(t)
	ctx := NewBindingContext(NewSession(), reg)
	ctx.DeclareRigid(Param{Name: "k", Kind: KindDimension})

	a, err := Interpret(sig(t, "(Vector (+ k 1))"), ctx)
	require.NoError(t, err)
	b, err := Interpret(sig(t, "(Vector (+ k 1))"), ctx)
	require.NoError(t, err)
	assert.NoError(t, Unify(a, b, ctx))

	c, err := Interpret(sig(t, "(Vector (+ k 2))"), ctx)
	require.NoError(t, err)
	assert.Equal(t, sigerr.DimMismatch, sigerr.CodeOf(Unify(a, c, ctx)))
}

func TestKindMisuse(t *testing.T) {
	reg := testRegistry(t)
	ctx := NewBindingContext(NewSession(), reg)
	_, err := Interpret(sig(t, "(Vector n)"), ctx)
	require.NoError(t, err)

	_, err = Interpret(sig(t, "n"), ctx)
	assert.Equal(t, sigerr.TypeMismatch, sigerr.CodeOf(err), "dimension parameter in type position")

	_, err = Interpret(sig(t, "3"), ctx)
	assert.Equal(t, sigerr.TypeMismatch, sigerr.CodeOf(err))
}

func TestOccursCheck(t *testing.T) {
	session := NewSession()
	ctx := NewBindingContext(session, nil)
	v := session.Fresh()

	err := Unify(v, Named(SetName, TypeOf{Type: v}), ctx)
	assert.Equal(t, sigerr.InfiniteType, sigerr.CodeOf(err))
	assert.ErrorContains(t, err, "'t0")

	err = session.Subst().Bind(v.ID, Function(Scalar, v))
	assert.Equal(t, sigerr.InfiniteType, sigerr.CodeOf(err))

	assert.NoError(t, session.Subst().Bind(v.ID, v), "binding a variable to itself is a no-op")
	_, bound := session.Subst().Lookup(v.ID)
	assert.False(t, bound)
}

func TestApplyIsIdempotent(t *testing.T) {
	session := NewSession()
	a, b, c := session.Fresh(), session.Fresh(), session.Fresh()
	subst := session.Subst()
	require.NoError(t, subst.Bind(a.ID, b))
	require.NoError(t, subst.Bind(b.ID, Named(SetName, TypeOf{Type: c})))
	require.NoError(t, subst.Bind(c.ID, Scalar))

	types := []Type{
		a,
		Function(a, b),
		Named("Matrix", DimArg{N: 2}, DimArg{N: 2}, TypeOf{Type: a}),
		Scalar,
		session.Fresh(),
	}
	for _, ty := range types {
		once := Apply(ty, subst)
		twice := Apply(once, subst)
		assert.True(t, Equal(once, twice), "%v: %v != %v", ty, once, twice)
	}
	assert.Equal(t, "Set(ℝ)", Apply(a, subst).String())
	assert.Equal(t, "Set(ℝ) → Set(ℝ)", Apply(Function(a, b), subst).String())
}

func TestApplyIsPure(t *testing.T) {
	session := NewSession()
	a := session.Fresh()
	fn := Function(a, a)
	require.NoError(t, session.Subst().Bind(a.ID, Scalar))

	applied := Apply(fn, session.Subst())
	assert.Equal(t, "ℝ → ℝ", applied.String())
	assert.Equal(t, "'t0 → 't0", fn.String())
}

func TestBoundParametersAreSubstituted(t *testing.T) {
	ctx := NewBindingContext(NewSession(), testRegistry(t))
	ctx.BindDim("n", 3)
	ctx.BindTag("u", "m/s")

	got, err := Interpret(sig(t, "(Matrix n (+ n 1) (Metric u ℝ))"), ctx)
	require.NoError(t, err)
	expected := Named("Matrix", DimArg{N: 3}, DimArg{N: 4}, TypeOf{Type: Named("Metric", TagArg{Value: "m/s"}, TypeOf{Type: Scalar})})
	assert.True(t, Equal(expected, got), "got %v", got)

	n, ok := ctx.LookupDim("n")
	assert.True(t, ok)
	assert.Equal(t, uint64(3), n)
	u, ok := ctx.LookupTag("u")
	assert.True(t, ok)
	assert.Equal(t, "m/s", u)

	_, err = Interpret(sig(t, "(Vector u)"), ctx)
	assert.Equal(t, sigerr.TypeMismatch, sigerr.CodeOf(err), "a tag is not a dimension")
}
