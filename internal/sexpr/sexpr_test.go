package sexpr

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAtoms(t *testing.T) {
	cases := map[string]struct {
		kind Kind
		atom string
	}{
		"x":           {Symbol, "x"},
		"ℝ":           {Symbol, "ℝ"},
		"-":           {Symbol, "-"},
		"->":          {Symbol, "->"},
		"42":          {Number, "42"},
		"-3":          {Number, "-3"},
		"2.5":         {Number, "2.5"},
		"2.":          {Symbol, "2."},
		`"m/s"`:       {String, "m/s"},
		`"a\"b"`:      {String, `a"b`},
		`"a""b"`:      {String, `a"b`},
		"|x y|":       {Symbol, "x y"},
		"  x ; note ": {Symbol, "x"},
	}
	for src, c := range cases {
		t.Run(src, func(t *testing.T) {
			n, err := Parse(src)
			require.NoError(t, err)
			assert.Equal(t, c.kind, n.Kind)
			assert.Equal(t, c.atom, n.Atom)
		})
	}
}

func TestParseList(t *testing.T) {
	n, err := Parse("(forall ((x y R))\n  (= (+ x y) (+ y x)))")
	require.NoError(t, err)
	require.Equal(t, List, n.Kind)
	require.Len(t, n.Items, 3)
	assert.True(t, n.Items[0].IsSymbol("forall"))
	assert.Equal(t, "((x y R))", n.Items[1].String())
	assert.Equal(t, "(= (+ x y) (+ y x))", n.Items[2].String())

	assert.Equal(t, Pos{1, 1}, n.Start)
	assert.Equal(t, Pos{2, 3}, n.Items[2].Start)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"":        "empty input",
		"(a b":    "unterminated list",
		")":       "unexpected ')'",
		`"abc`:    "unterminated string",
		"|abc":    "unterminated |symbol|",
		"(a) (b)": "trailing input",
	}
	for src, msg := range cases {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			var syntax *SyntaxError
			require.ErrorAs(t, err, &syntax)
			assert.Contains(t, syntax.Msg, msg)
		})
	}
}

func TestDecoderStream(t *testing.T) {
	d := NewDecoder(strings.NewReader("sat\n(\n  (define-fun x () Real 1.0)\n)\nunsat\n"))

	first, err := d.Next()
	require.NoError(t, err)
	assert.True(t, first.IsSymbol("sat"))

	model, err := d.Next()
	require.NoError(t, err)
	require.Len(t, model.Items, 1)
	assert.Equal(t, "(define-fun x () Real 1.0)", model.Items[0].String())

	last, err := d.Next()
	require.NoError(t, err)
	assert.True(t, last.IsSymbol("unsat"))

	_, err = d.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestParseAll(t *testing.T) {
	nodes, err := ParseAll("a (b c) ; trailing comment\n\"d\"")
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, []Kind{Symbol, List, String}, []Kind{nodes[0].Kind, nodes[1].Kind, nodes[2].Kind})
}
