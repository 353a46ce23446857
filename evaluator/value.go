// Package evaluator reduces closed expressions to values. It is the reference
// implementation of the evaluator the verification engine delegates concrete
// assertions to.
package evaluator

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
)

// Value is the result of evaluating an expression: Number, Bool or Text
type Value interface {
	fmt.Stringer
	Equal(other Value) bool
	value()
}

var (
	_ Value = Number{}
	_ Value = Bool(false)
	_ Value = Text("")
)

// Number is a rational, exact unless it went through a transcendental function
type Number struct {
	Rat   *big.Rat
	Exact bool
}

type Bool bool

type Text string

func (Number) value() {}
func (Bool) value()   {}
func (Text) value()   {}

// Tolerance is the relative error within which inexact numbers, those that
// went through a library function such as sin or sqrt, compare equal
const Tolerance = 1e-9

func Int(n int64) Number {
	return Number{Rat: new(big.Rat).SetInt64(n), Exact: true}
}

func Float(f float64) Number {
	r := new(big.Rat)
	if r.SetFloat64(f) == nil {
		return Number{Rat: new(big.Rat), Exact: false}
	}
	return Number{Rat: r, Exact: false}
}

// ParseNumber reads a decimal numeral exactly
func ParseNumber(text string) (Number, bool) {
	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return Number{}, false
	}
	return Number{Rat: r, Exact: true}, true
}

func (n Number) Float() float64 {
	f, _ := n.Rat.Float64()
	return f
}

func (n Number) String() string {
	if !n.Exact {
		return strconv.FormatFloat(n.Float(), 'g', -1, 64)
	}
	if n.Rat.IsInt() {
		return n.Rat.Num().String()
	}
	return n.Rat.RatString()
}

func (n Number) Equal(other Value) bool {
	o, ok := other.(Number)
	if !ok {
		return false
	}
	return n.Cmp(o) == 0
}

// Cmp compares exactly when both numbers are exact, and within a relative
// tolerance otherwise
func (n Number) Cmp(o Number) int {
	if n.Exact && o.Exact {
		return n.Rat.Cmp(o.Rat)
	}
	a, b := n.Float(), o.Float()
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	if math.Abs(a-b) <= Tolerance*scale {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

func (b Bool) Equal(other Value) bool {
	o, ok := other.(Bool)
	return ok && o == b
}

func (t Text) String() string { return strconv.Quote(string(t)) }

func (t Text) Equal(other Value) bool {
	o, ok := other.(Text)
	return ok && o == t
}
