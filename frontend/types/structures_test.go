package types

import (
	"testing"

	"github.com/cottand/sigil/frontend"
	"github.com/cottand/sigil/frontend/ast"
	"github.com/cottand/sigil/frontend/sigerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func op(t *testing.T, name, signature string) *ast.Operation {
	return &ast.Operation{Name: name, Signature: sig(t, signature)}
}

func axiom(t *testing.T, name, prop string) *ast.Axiom {
	t.Helper()
	e, err := frontend.ParseExpr(prop)
	require.NoError(t, err)
	return &ast.Axiom{Name: name, Prop: e}
}

func params(t *testing.T, decls ...string) []ast.TypeParam {
	var ps []ast.TypeParam
	for _, d := range decls {
		p, err := frontend.ParseParam(d)
		require.NoError(t, err)
		ps = append(ps, p)
	}
	return ps
}

func TestUnboundParameterAtDefinition(t *testing.T) {
	structures := NewStructures(testRegistry(t))

	err := structures.Register(&ast.StructureDef{
		Name:   "Lopsided",
		Params: params(t, "T", "n: Nat"),
		Members: []ast.Member{
			op(t, "f", "(-> T T)"),
		},
	})
	var unbound sigerr.NewUnboundParameter
	require.ErrorAs(t, err, &unbound)
	assert.Equal(t, "Lopsided", unbound.Structure)
	assert.Equal(t, "n", unbound.Name)

	_, ok := structures.Get("Lopsided")
	assert.False(t, ok, "rejected structures are not registered")

	// a parameter only mentioned in an axiom binder counts as used
	err = structures.Register(&ast.StructureDef{
		Name:   "Pointed",
		Params: params(t, "T"),
		Members: []ast.Member{
			axiom(t, "trivial", "(forall ((x T)) (= x x))"),
		},
	})
	assert.NoError(t, err)
}

func TestUnboundParameterAtUse(t *testing.T) {
	structures := NewStructures(testRegistry(t))
	require.NoError(t, structures.Register(&ast.StructureDef{
		Name:   "Shapes",
		Params: params(t, "m: Nat", "n: Nat", "T"),
		Members: []ast.Member{
			op(t, "reshape", "(-> (Matrix m n T) (Matrix p q T))"),
			&ast.Element{Name: "origin", Type: sig(t, "(Matrix m n T)")},
		},
	}))

	_, err := structures.InterpretOperation(NewSession(), "Shapes", "reshape", []Type{
		Named("Matrix", DimArg{N: 2}, DimArg{N: 3}, TypeOf{Type: Scalar}),
	})
	var unbound sigerr.NewUnboundParameter
	require.ErrorAs(t, err, &unbound)
	assert.Equal(t, "reshape", unbound.Operation)
	assert.Equal(t, "p", unbound.Name)

	origin, err := structures.InterpretOperation(NewSession(), "Shapes", "origin", nil)
	assert.NoError(t, err, "nullary operations may stay symbolic")
	assert.Equal(t, "Matrix(m, n, 't0)", origin.String())
}

func TestInterpretOperation(t *testing.T) {
	structures := NewStructures(testRegistry(t))
	require.NoError(t, structures.Register(&ast.StructureDef{
		Name:   "MatrixOps",
		Params: params(t, "m: Nat", "n: Nat", "p: Nat", "T"),
		Members: []ast.Member{
			op(t, "transpose", "(-> (Matrix m n T) (Matrix n m T))"),
			op(t, "multiply", "(-> (Matrix m n T) (Matrix n p T) (Matrix m p T))"),
			op(t, "stack", "(-> (Matrix m n T) (Matrix m n T) (Matrix (* 2 m) n T))"),
		},
	}))
	matrix := func(m, n uint64, elem Type) Type {
		return Named("Matrix", DimArg{N: m}, DimArg{N: n}, TypeOf{Type: elem})
	}

	got, err := structures.InterpretOperation(NewSession(), "MatrixOps", "transpose", []Type{matrix(2, 3, Scalar)})
	require.NoError(t, err)
	assert.Equal(t, "Matrix(3, 2, ℝ)", got.String())

	got, err = structures.InterpretOperation(NewSession(), "MatrixOps", "multiply", []Type{matrix(2, 3, Scalar), matrix(3, 5, Scalar)})
	require.NoError(t, err)
	assert.Equal(t, "Matrix(2, 5, ℝ)", got.String())

	got, err = structures.InterpretOperation(NewSession(), "MatrixOps", "stack", []Type{matrix(2, 3, Scalar), matrix(2, 3, Scalar)})
	require.NoError(t, err)
	assert.Equal(t, "Matrix(4, 3, ℝ)", got.String())

	_, err = structures.InterpretOperation(NewSession(), "MatrixOps", "multiply", []Type{matrix(2, 3, Scalar), matrix(4, 5, Scalar)})
	assert.Equal(t, sigerr.DimMismatch, sigerr.CodeOf(err))

	_, err = structures.InterpretOperation(NewSession(), "MatrixOps", "multiply", []Type{matrix(2, 3, Scalar), matrix(3, 5, Named(IntName))})
	assert.Equal(t, sigerr.TypeMismatch, sigerr.CodeOf(err))

	_, err = structures.InterpretOperation(NewSession(), "MatrixOps", "transpose", nil)
	assert.Equal(t, sigerr.ArityMismatch, sigerr.CodeOf(err))

	_, err = structures.InterpretOperation(NewSession(), "MatrixOps", "invert", nil)
	assert.Equal(t, sigerr.UnknownOperation, sigerr.CodeOf(err))
}

func TestInterpretOperationSolvesDimensions(t *testing.T) {
	structures := NewStructures(testRegistry(t))
	require.NoError(t, structures.Register(&ast.StructureDef{
		Name:   "Stack",
		Params: params(t, "n: Nat"),
		Members: []ast.Member{
			op(t, "pop", "(-> (Vector (+ n 1)) (Vector n))"),
			op(t, "halve", "(-> (Vector (* 2 n)) (Vector n))"),
			op(t, "push", "(-> (Vector n) (Vector (+ n 1)))"),
		},
	}))
	vector := func(n uint64) Type { return Named("Vector", DimArg{N: n}) }

	got, err := structures.InterpretOperation(NewSession(), "Stack", "pop", []Type{vector(3)})
	require.NoError(t, err)
	assert.Equal(t, "Vector(2)", got.String())

	got, err = structures.InterpretOperation(NewSession(), "Stack", "halve", []Type{vector(8)})
	require.NoError(t, err)
	assert.Equal(t, "Vector(4)", got.String())

	got, err = structures.InterpretOperation(NewSession(), "Stack", "push", []Type{vector(3)})
	require.NoError(t, err)
	assert.Equal(t, "Vector(4)", got.String())

	_, err = structures.InterpretOperation(NewSession(), "Stack", "pop", []Type{vector(0)})
	assert.Equal(t, sigerr.DimMismatch, sigerr.CodeOf(err), "0 is not the successor of a natural")

	_, err = structures.InterpretOperation(NewSession(), "Stack", "halve", []Type{vector(5)})
	assert.Equal(t, sigerr.DimMismatch, sigerr.CodeOf(err))
}

func TestInterpretOperationWithTypeVariables(t *testing.T) {
	structures := NewStructures(nil)
	require.NoError(t, structures.Register(&ast.StructureDef{
		Name:    "Monoid",
		Params:  params(t, "M"),
		Members: []ast.Member{op(t, "•", "(-> M M M)")},
	}))
	session := NewSession()
	x := session.Fresh()

	got, err := structures.InterpretOperation(session, "Monoid", "•", []Type{x, Named(IntName)})
	require.NoError(t, err)
	assert.Equal(t, "ℤ", got.String())
	assert.Equal(t, "ℤ", session.Apply(x).String(), "argument variables are bound in the caller's session")
}

func TestStructureHierarchy(t *testing.T) {
	structures := NewStructures(nil)
	require.NoError(t, structures.Register(&ast.StructureDef{
		Name:    "Group",
		Params:  params(t, "G"),
		Members: []ast.Member{op(t, "+", "(-> G G G)"), &ast.Element{Name: "zero", Type: sig(t, "G")}},
	}))
	require.NoError(t, structures.Register(&ast.StructureDef{
		Name:    "Ring",
		Params:  params(t, "R"),
		Extends: sig(t, "(Group R)"),
		Members: []ast.Member{op(t, "*", "(-> R R R)")},
	}))
	require.NoError(t, structures.Register(&ast.StructureDef{
		Name:    "Module",
		Params:  params(t, "V"),
		Over:    sig(t, "(Ring S)"),
		Members: []ast.Member{op(t, "scale", "(-> S V V)")},
	}))

	assert.Equal(t, []string{"Ring", "Group"}, structures.Closure("Ring"))
	assert.Equal(t, []string{"Module", "Ring", "Group"}, structures.Closure("Module"))
	assert.Equal(t, []string{"Group"}, structures.Owners("+"))
	assert.Equal(t, []string{"Group", "Ring", "Module"}, structures.Names())

	module, _ := structures.Get("Module")
	assert.Equal(t, []Param{{Name: "S", Kind: KindType}}, module.Implicit)

	got, err := structures.InterpretOperation(NewSession(), "Ring", "+", []Type{Scalar, Scalar})
	require.NoError(t, err, "operations of extended structures are in scope")
	assert.Equal(t, Scalar, got)

	err = structures.Register(&ast.StructureDef{Name: "Ring", Params: params(t, "R"), Members: []ast.Member{op(t, "-", "(-> R R)")}})
	assert.Equal(t, sigerr.DuplicateStructure, sigerr.CodeOf(err))

	err = structures.Register(&ast.StructureDef{Name: "Field", Params: params(t, "F"), Extends: sig(t, "(DivisionRing F)"), Members: []ast.Member{op(t, "inv", "(-> F F)")}})
	assert.Equal(t, sigerr.UnknownStructure, sigerr.CodeOf(err))
}

func TestMalformedSignatureRejectedAtDefinition(t *testing.T) {
	structures := NewStructures(testRegistry(t))
	err := structures.Register(&ast.StructureDef{
		Name:    "Broken",
		Params:  params(t, "T"),
		Members: []ast.Member{op(t, "f", "(-> T (Matrix 2 T))")},
	})
	assert.Equal(t, sigerr.ArityMismatch, sigerr.CodeOf(err))
	assert.ErrorContains(t, err, "operation f of structure Broken")
}

func TestAbstractInstance(t *testing.T) {
	structures := NewStructures(nil)
	require.NoError(t, structures.Register(&ast.StructureDef{
		Name:    "Group",
		Params:  params(t, "G"),
		Members: []ast.Member{op(t, "+", "(-> G G G)")},
	}))
	require.NoError(t, structures.Register(&ast.StructureDef{
		Name:    "Ring",
		Params:  params(t, "R"),
		Extends: sig(t, "(Group R)"),
		Members: []ast.Member{op(t, "*", "(-> R R R)")},
	}))
	require.NoError(t, structures.Register(&ast.StructureDef{
		Name:    "Module",
		Params:  params(t, "V"),
		Extends: sig(t, "(Group V)"),
		Over:    sig(t, "(Ring S)"),
		Members: []ast.Member{op(t, "scale", "(-> S V V)")},
	}))
	session := NewSession()

	assert.Equal(t, [][]string{
		{"Module"},
		{"Module", "Group"},
		{"Module", "Ring"},
		{"Module", "Ring", "Group"},
	}, structures.Chains("Module"))

	got, err := structures.InterpretAbstractOperation(session, "Module", "+", []Type{Named("V"), Named("V")})
	require.NoError(t, err)
	assert.Equal(t, "V", got.String())

	got, err = structures.InterpretAbstractOperation(session, "Module", "+", []Type{Named("S"), Named("S")})
	require.NoError(t, err, "the ring is a group too")
	assert.Equal(t, "S", got.String())

	got, err = structures.InterpretAbstractOperation(session, "Module", "scale", []Type{Named("S"), Named("V")})
	require.NoError(t, err)
	assert.Equal(t, "V", got.String())

	_, err = structures.InterpretAbstractOperation(session, "Module", "+", []Type{Named("V"), Named("S")})
	assert.Equal(t, sigerr.TypeMismatch, sigerr.CodeOf(err))

	_, err = structures.InterpretAbstractOperation(session, "Ring", "+", []Type{Scalar, Scalar})
	assert.Equal(t, sigerr.TypeMismatch, sigerr.CodeOf(err), "R is opaque in the abstract ring")

	_, err = structures.InterpretAbstractOperation(session, "Ring", "scale", nil)
	assert.Equal(t, sigerr.UnknownOperation, sigerr.CodeOf(err))

	x := session.Fresh()
	got, err = structures.InterpretAbstractOperation(session, "Module", "+", []Type{x, Named("S")})
	require.NoError(t, err)
	assert.Equal(t, "S", got.String())
	assert.Equal(t, "S", session.Apply(x).String(), "bindings of rejected instances are rolled back")

	ctx, err := structures.AbstractContext(session, "Ring")
	require.NoError(t, err)
	r, err := Interpret(sig(t, "R"), ctx)
	require.NoError(t, err)
	assert.Equal(t, Named("R"), r)
}
