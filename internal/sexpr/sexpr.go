// Package sexpr reads S-expressions, the surface syntax of theory files
// and the output format of SMT-LIB 2 solvers
package sexpr

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

type Kind uint8

const (
	_ Kind = iota
	Symbol
	Number
	String
	List
)

func (k Kind) String() string {
	switch k {
	case Symbol:
		return "symbol"
	case Number:
		return "number"
	case String:
		return "string"
	case List:
		return "list"
	default:
		return "invalid"
	}
}

// Pos is a 1-based line and column
type Pos struct {
	Line, Col int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Node is a single datum. Atom holds the text of symbols, numbers and strings
// (strings unescaped, quoted |symbols| without their bars).
type Node struct {
	Kind  Kind
	Atom  string
	Items []Node
	Start Pos
	End   Pos
}

func (n Node) IsSymbol(name string) bool {
	return n.Kind == Symbol && n.Atom == name
}

func (n Node) String() string {
	switch n.Kind {
	case List:
		parts := make([]string, len(n.Items))
		for i, item := range n.Items {
			parts[i] = item.String()
		}
		return "(" + strings.Join(parts, " ") + ")"
	case String:
		return `"` + strings.ReplaceAll(n.Atom, `"`, `\"`) + `"`
	default:
		return n.Atom
	}
}

// SyntaxError reports malformed input at a position
type SyntaxError struct {
	At  Pos
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%v: %s", e.At, e.Msg)
}

// Decoder reads consecutive S-expressions from a stream
type Decoder struct {
	r    io.RuneScanner
	pos  Pos
	prev Pos
}

func NewDecoder(r io.Reader) *Decoder {
	rs, ok := r.(io.RuneScanner)
	if !ok {
		rs = bufio.NewReader(r)
	}
	return &Decoder{r: rs, pos: Pos{Line: 1, Col: 1}}
}

func (d *Decoder) read() (rune, error) {
	ch, _, err := d.r.ReadRune()
	if err != nil {
		return 0, err
	}
	d.prev = d.pos
	if ch == '\n' {
		d.pos.Line++
		d.pos.Col = 1
	} else {
		d.pos.Col++
	}
	return ch, nil
}

func (d *Decoder) unread() {
	_ = d.r.UnreadRune()
	d.pos = d.prev
}

// skip consumes whitespace and ;-comments
func (d *Decoder) skip() error {
	for {
		ch, err := d.read()
		if err != nil {
			return err
		}
		switch {
		case unicode.IsSpace(ch):
		case ch == ';':
			for ch != '\n' {
				if ch, err = d.read(); err != nil {
					return err
				}
			}
		default:
			d.unread()
			return nil
		}
	}
}

// Next returns the next datum, or io.EOF when the stream is exhausted
func (d *Decoder) Next() (Node, error) {
	if err := d.skip(); err != nil {
		return Node{}, err
	}
	return d.datum()
}

func (d *Decoder) datum() (Node, error) {
	start := d.pos
	ch, err := d.read()
	if err != nil {
		return Node{}, err
	}
	switch {
	case ch == '(':
		list := Node{Kind: List, Start: start}
		for {
			if err := d.skip(); err != nil {
				return Node{}, d.unexpectedEOF(err, start, "unterminated list")
			}
			ch, err := d.read()
			if err != nil {
				return Node{}, d.unexpectedEOF(err, start, "unterminated list")
			}
			if ch == ')' {
				list.End = d.pos
				return list, nil
			}
			d.unread()
			item, err := d.datum()
			if err != nil {
				return Node{}, d.unexpectedEOF(err, start, "unterminated list")
			}
			list.Items = append(list.Items, item)
		}
	case ch == ')':
		return Node{}, &SyntaxError{At: start, Msg: "unexpected ')'"}
	case ch == '"':
		return d.str(start)
	case ch == '|':
		return d.quoted(start)
	default:
		d.unread()
		return d.atom(start)
	}
}

func (d *Decoder) unexpectedEOF(err error, start Pos, msg string) error {
	if errors.Is(err, io.EOF) {
		return &SyntaxError{At: start, Msg: msg}
	}
	return err
}

func (d *Decoder) str(start Pos) (Node, error) {
	sb := &strings.Builder{}
	for {
		ch, err := d.read()
		if err != nil {
			return Node{}, d.unexpectedEOF(err, start, "unterminated string")
		}
		switch ch {
		case '\\':
			next, err := d.read()
			if err != nil {
				return Node{}, d.unexpectedEOF(err, start, "unterminated string")
			}
			sb.WriteRune(next)
		case '"':
			// SMT-LIB 2.6 escapes a quote by doubling it
			next, err := d.read()
			if err == nil && next == '"' {
				sb.WriteRune('"')
				continue
			}
			if err == nil {
				d.unread()
			}
			return Node{Kind: String, Atom: sb.String(), Start: start, End: d.pos}, nil
		default:
			sb.WriteRune(ch)
		}
	}
}

func (d *Decoder) quoted(start Pos) (Node, error) {
	sb := &strings.Builder{}
	for {
		ch, err := d.read()
		if err != nil {
			return Node{}, d.unexpectedEOF(err, start, "unterminated |symbol|")
		}
		if ch == '|' {
			return Node{Kind: Symbol, Atom: sb.String(), Start: start, End: d.pos}, nil
		}
		sb.WriteRune(ch)
	}
}

func (d *Decoder) atom(start Pos) (Node, error) {
	sb := &strings.Builder{}
	for {
		ch, err := d.read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Node{}, err
		}
		if unicode.IsSpace(ch) || ch == '(' || ch == ')' || ch == ';' || ch == '"' {
			d.unread()
			break
		}
		sb.WriteRune(ch)
	}
	text := sb.String()
	kind := Symbol
	if isNumber(text) {
		kind = Number
	}
	return Node{Kind: kind, Atom: text, Start: start, End: d.pos}, nil
}

// isNumber accepts decimal numerals with an optional leading minus and fraction
func isNumber(text string) bool {
	if strings.HasPrefix(text, "-") {
		text = text[1:]
	}
	if text == "" {
		return false
	}
	seenDot := false
	for i, ch := range text {
		switch {
		case ch >= '0' && ch <= '9':
		case ch == '.' && !seenDot && i > 0 && i < len(text)-1:
			seenDot = true
		default:
			return false
		}
	}
	return true
}

// Parse reads exactly one datum from src
func Parse(src string) (Node, error) {
	d := NewDecoder(strings.NewReader(src))
	n, err := d.Next()
	if errors.Is(err, io.EOF) {
		return Node{}, &SyntaxError{At: Pos{1, 1}, Msg: "empty input"}
	}
	if err != nil {
		return Node{}, err
	}
	if _, err := d.Next(); !errors.Is(err, io.EOF) {
		if err != nil {
			return Node{}, err
		}
		return Node{}, &SyntaxError{At: d.pos, Msg: "trailing input after expression"}
	}
	return n, nil
}

// ParseAll reads every datum in src
func ParseAll(src string) ([]Node, error) {
	d := NewDecoder(strings.NewReader(src))
	var nodes []Node
	for {
		n, err := d.Next()
		if errors.Is(err, io.EOF) {
			return nodes, nil
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
}
