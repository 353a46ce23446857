package ast

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
)

// Position is a 1-based line and column in a theory source.
// The zero Position means the node was synthesised and has no source.
type Position struct {
	Line, Col int
}

func (p Position) IsValid() bool { return p.Line > 0 }

func (p Position) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Positioner allows finding the location in the original source.
type Positioner interface {
	Pos() Position // position of first character belonging to the node
	End() Position // position of first character immediately after the node
}

// Range represents a range of positions in the source code.
type Range struct {
	PosStart Position
	PosEnd   Position
}

// Hash returns a hash value for the Range
func (r Range) Hash() uint64 {
	h := fnv.New64a()
	arr := make([]byte, 0, 32)
	arr = binary.LittleEndian.AppendUint64(arr, uint64(r.PosStart.Line))
	arr = binary.LittleEndian.AppendUint64(arr, uint64(r.PosStart.Col))
	arr = binary.LittleEndian.AppendUint64(arr, uint64(r.PosEnd.Line))
	arr = binary.LittleEndian.AppendUint64(arr, uint64(r.PosEnd.Col))
	_, _ = h.Write(arr)
	return h.Sum64()
}

func (r Range) Pos() Position { return r.PosStart }

func (r Range) End() Position { return r.PosEnd }

func (r Range) String() string {
	if r.PosStart == r.PosEnd {
		return r.PosStart.String()
	}
	return fmt.Sprintf("%v-%v", r.PosStart, r.PosEnd)
}

// RangeBetween creates a Range between two Positioners.
func RangeBetween(fst, snd Positioner) Range {
	return Range{fst.Pos(), snd.End()}
}

// RangeOf creates a Range from a Positioner, which may be nil.
func RangeOf(p Positioner) Range {
	if p == nil {
		return Range{}
	}
	if asRange, ok := p.(Range); ok {
		return asRange
	}
	return Range{p.Pos(), p.End()}
}
