package types

import (
	"fmt"
	"slices"

	"github.com/cottand/sigil/frontend/ast"
	"github.com/cottand/sigil/frontend/sigerr"
)

// Subst maps type variables to types. Variables are indices into slots,
// and an unbound variable has a nil slot.
type Subst struct {
	slots []Type
}

func (s *Subst) Lookup(id VarID) (Type, bool) {
	if int(id) >= len(s.slots) || id < 0 {
		return nil, false
	}
	t := s.slots[id]
	return t, t != nil
}

// Len is the number of variables allocated so far
func (s *Subst) Len() int { return len(s.slots) }

// Bind records v := t. Binding a variable to a type that contains it fails
// with sigerr.InfiniteType, unless the type is the variable itself.
func (s *Subst) Bind(v VarID, t Type) error {
	return s.bind(ast.Range{}, v, t)
}

func (s *Subst) bind(at ast.Range, v VarID, t Type) error {
	if int(v) >= len(s.slots) || v < 0 {
		panic(fmt.Sprintf("variable 't%d was not allocated by this substitution", v))
	}
	if existing := s.slots[v]; existing != nil {
		panic(fmt.Sprintf("variable 't%d is already bound to %s", v, existing))
	}
	t = Apply(t, s)
	if asVar, ok := t.(*VarType); ok && asVar.ID == v {
		return nil
	}
	if occurs(v, t) {
		return sigerr.New(sigerr.NewInfiniteType{
			Range:  at,
			Var:    (&VarType{ID: v}).String(),
			Inside: t.String(),
		})
	}
	s.slots[v] = t
	return nil
}

func occurs(v VarID, t Type) bool {
	found := false
	Vars(t, func(other *VarType) {
		found = found || other.ID == v
	})
	return found
}

// Apply rewrites the variables of t bound in s until none are left.
// It does not modify s, and Apply(Apply(t, s), s) equals Apply(t, s).
func Apply(t Type, s *Subst) Type {
	if s == nil {
		return t
	}
	switch t := t.(type) {
	case *VarType:
		bound, ok := s.Lookup(t.ID)
		if !ok {
			return t
		}
		return Apply(bound, s)
	case *FuncType:
		from, to := Apply(t.From, s), Apply(t.To, s)
		if from == t.From && to == t.To {
			return t
		}
		return Function(from, to)
	case *NamedType:
		var args []TypeArg
		for i, arg := range t.Args {
			typeArg, ok := arg.(TypeOf)
			if !ok {
				continue
			}
			applied := Apply(typeArg.Type, s)
			if applied == typeArg.Type {
				continue
			}
			if args == nil {
				args = append([]TypeArg(nil), t.Args...)
			}
			args[i] = TypeOf{Type: applied}
		}
		if args == nil {
			return t
		}
		return Named(t.Name, args...)
	default:
		return t
	}
}

// Session owns the substitution of one top-level resolution: every type
// variable and every BindingContext scope of that resolution is allocated here.
// A Session is not safe for concurrent use.
type Session struct {
	subst  Subst
	scopes uint32
}

func NewSession() *Session {
	return &Session{}
}

// Fresh allocates an unbound type variable
func (s *Session) Fresh() *VarType {
	s.subst.slots = append(s.subst.slots, nil)
	return &VarType{ID: VarID(len(s.subst.slots) - 1)}
}

func (s *Session) Subst() *Subst { return &s.subst }

func (s *Session) Apply(t Type) Type { return Apply(t, &s.subst) }

func (s *Session) nextScope() uint32 {
	s.scopes++
	return s.scopes
}

// Mark is a state of the substitution of a Session
type Mark []Type

// Snapshot records the bindings of s so that Rollback can undo later ones
func (s *Session) Snapshot() Mark {
	return slices.Clone(s.subst.slots)
}

// Rollback forgets the variables allocated and the bindings made since m was taken
func (s *Session) Rollback(m Mark) {
	s.subst.slots = slices.Clone(m)
}
