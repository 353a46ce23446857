package types

import (
	"fmt"
	"slices"

	"github.com/cottand/sigil/frontend/ast"
	"github.com/cottand/sigil/frontend/sigerr"
	"github.com/hashicorp/go-set/v3"
)

// Structure is a registered algebraic signature
type Structure struct {
	Def    *ast.StructureDef
	Name   string
	Params []Param
	// Implicit are the parameters introduced by the extends and over clauses
	// without being declared, like F in `structure VectorSpace(V) over Field(F)`
	Implicit []Param
	Extends  string
	Over     string

	signatures map[string]ast.TypeExpr
	defines    map[string]*ast.Define
}

// ScopeParams are the declared and implicit parameters of s
func (s *Structure) ScopeParams() []Param {
	return slices.Concat(s.Params, s.Implicit)
}

// Signature is the declared type of an operation or element of s
func (s *Structure) Signature(op string) (ast.TypeExpr, bool) {
	sig, ok := s.signatures[op]
	return sig, ok
}

func (s *Structure) Define(name string) (*ast.Define, bool) {
	d, ok := s.defines[name]
	return d, ok
}

// Operations lists the operations and elements of s, sorted
func (s *Structure) Operations() []string {
	names := make([]string, 0, len(s.signatures))
	for name := range s.signatures {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Structures is the registry of structures, populated during the load phase
// and read-only afterwards
type Structures struct {
	registry *Registry
	byName   map[string]*Structure
	order    []string
	owners   map[string][]string
}

func NewStructures(registry *Registry) *Structures {
	if registry == nil {
		registry = Prelude()
	}
	return &Structures{
		registry: registry,
		byName:   make(map[string]*Structure),
		owners:   make(map[string][]string),
	}
}

func (s *Structures) Registry() *Registry { return s.registry }

func (s *Structures) Get(name string) (*Structure, bool) {
	st, ok := s.byName[name]
	return st, ok
}

// Names lists structures in registration order
func (s *Structures) Names() []string {
	return slices.Clone(s.order)
}

// Owners lists the structures declaring op, in registration order
func (s *Structures) Owners(op string) []string {
	return slices.Clone(s.owners[op])
}

// Closure is name followed by every structure it extends or is over, transitively
func (s *Structures) Closure(name string) []string {
	seen := set.New[string](4)
	var closure []string
	var visit func(string)
	visit = func(name string) {
		if name == "" || !seen.Insert(name) {
			return
		}
		closure = append(closure, name)
		if st, ok := s.byName[name]; ok {
			visit(st.Extends)
			visit(st.Over)
		}
	}
	visit(name)
	return closure
}

func parentName(e ast.TypeExpr) string {
	switch e := e.(type) {
	case *ast.TypeName:
		return e.Name
	case *ast.TypeApp:
		return e.Name
	default:
		return ""
	}
}

// Register validates def and adds it to s. A structure may only extend
// structures registered before it.
func (s *Structures) Register(def *ast.StructureDef) error {
	if _, exists := s.byName[def.Name]; exists {
		return sigerr.New(sigerr.NewDuplicateStructure{Range: def.Range, Name: def.Name})
	}
	st := &Structure{
		Def:        def,
		Name:       def.Name,
		signatures: make(map[string]ast.TypeExpr),
		defines:    make(map[string]*ast.Define),
	}
	declared := set.New[string](len(def.Params))
	for _, p := range def.Params {
		kind, ok := ParseKind(p.Kind)
		if !ok {
			return sigerr.New(sigerr.NewKindAnnotation{Range: p.Range, Param: p.Name, Kind: p.Kind})
		}
		st.Params = append(st.Params, Param{Name: p.Name, Kind: kind})
		declared.Insert(p.Name)
	}

	referenced := set.New[string](8)
	for _, clause := range []ast.TypeExpr{def.Extends, def.Over} {
		if clause == nil {
			continue
		}
		name := parentName(clause)
		parent, ok := s.byName[name]
		if !ok {
			return sigerr.New(sigerr.NewUnknownStructure{Range: ast.RangeOf(clause), Name: name})
		}
		if clause == def.Extends {
			st.Extends = name
		} else {
			st.Over = name
		}
		app, ok := clause.(*ast.TypeApp)
		if !ok {
			continue
		}
		for i, arg := range app.Args {
			ast.TypeNames(arg, func(n string) { referenced.Insert(n) })
			argName, isName := arg.(*ast.TypeName)
			if !isName || declared.Contains(argName.Name) || i >= len(parent.Params) {
				continue
			}
			declared.Insert(argName.Name)
			st.Implicit = append(st.Implicit, Param{Name: argName.Name, Kind: parent.Params[i].Kind})
		}
	}

	for _, member := range def.Members {
		switch m := member.(type) {
		case *ast.Operation, *ast.Element:
			sig, _ := ast.Signature(m)
			st.signatures[m.MemberName()] = sig
			ast.TypeNames(sig, func(n string) { referenced.Insert(n) })
		case *ast.Axiom:
			binderTypeNames(m.Prop, func(n string) { referenced.Insert(n) })
		case *ast.Define:
			st.defines[m.Name] = m
			binderTypeNames(m.Body, func(n string) { referenced.Insert(n) })
		}
	}

	for _, p := range def.Params {
		if !referenced.Contains(p.Name) {
			return sigerr.New(sigerr.NewUnboundParameter{Range: p.Range, Structure: def.Name, Name: p.Name})
		}
	}

	// signatures are resolved once here so that malformed ones are reported at definition time
	session := NewSession()
	for _, op := range st.Operations() {
		ctx := NewBindingContext(session, s.registry)
		for _, p := range st.ScopeParams() {
			ctx.DeclareRigid(p)
		}
		sig := st.signatures[op]
		if _, err := Interpret(sig, ctx.At(sig)); err != nil {
			return fmt.Errorf("operation %s of structure %s: %w", op, def.Name, err)
		}
	}

	s.byName[def.Name] = st
	s.order = append(s.order, def.Name)
	for _, op := range st.Operations() {
		s.owners[op] = append(s.owners[op], def.Name)
	}
	for name := range st.defines {
		if _, declaredOp := st.signatures[name]; !declaredOp {
			s.owners[name] = append(s.owners[name], def.Name)
		}
	}
	logger.Debug("registered structure", "name", def.Name, "params", len(st.Params), "operations", len(st.signatures))
	return nil
}

func binderTypeNames(e ast.Expr, yield func(string)) {
	switch e := e.(type) {
	case *ast.Quantifier:
		for _, b := range e.Binders {
			ast.TypeNames(b.Type, yield)
		}
		if e.Where != nil {
			binderTypeNames(e.Where, yield)
		}
		binderTypeNames(e.Body, yield)
	case *ast.Call:
		for _, arg := range e.Args {
			binderTypeNames(arg, yield)
		}
	}
}

// Lookup finds the structure in the closure of structure that declares op
func (s *Structures) Lookup(structure, op string) (*Structure, ast.TypeExpr, error) {
	if _, ok := s.byName[structure]; !ok {
		return nil, nil, sigerr.New(sigerr.NewUnknownStructure{Name: structure})
	}
	for _, name := range s.Closure(structure) {
		st := s.byName[name]
		if sig, ok := st.signatures[op]; ok {
			return st, sig, nil
		}
	}
	return nil, nil, sigerr.New(sigerr.NewUnknownOperation{Structure: structure, Name: op})
}

// InterpretOperation resolves the type of applying op of structure to
// arguments of types args. Every argument type is unified with the declared
// one, and the result is resolved with the bindings this produced.
//
// A dimension or tag parameter of the operation that occurs in the result but
// that no argument instantiated is reported as sigerr.UnboundParameter, unless
// op takes no arguments.
func (s *Structures) InterpretOperation(session *Session, structure, op string, args []Type) (Type, error) {
	owner, sig, err := s.Lookup(structure, op)
	if err != nil {
		return nil, err
	}
	ctx := NewBindingContext(session, s.registry).At(sig)
	for _, p := range owner.ScopeParams() {
		ctx.Declare(p)
	}
	return s.instantiate(ctx, owner, op, sig, args)
}

// InterpretAbstractOperation is InterpretOperation inside the abstract
// instance of structure: the parameters of structure are rigid, so that its
// Type parameters are opaque types, and the parameters of the structures it
// extends or is over are bound to the arguments of the extends and over clauses.
func (s *Structures) InterpretAbstractOperation(session *Session, structure, op string, args []Type) (Type, error) {
	if _, ok := s.byName[structure]; !ok {
		return nil, sigerr.New(sigerr.NewUnknownStructure{Name: structure})
	}
	return s.InterpretInstanceOperation(session, []string{structure}, op, args)
}

// InterpretInstanceOperation resolves op from the last structure of chain, as
// seen from the abstract instance of the first one (see Chains).
//
// When op is reachable through several clauses, like + in a module over a
// ring that are both groups, the first instance accepting args is used.
func (s *Structures) InterpretInstanceOperation(session *Session, chain []string, op string, args []Type) (Type, error) {
	var firstErr error
	for _, ext := range s.Chains(chain[len(chain)-1]) {
		full := slices.Concat(chain[:len(chain)-1], ext)
		owner := s.byName[full[len(full)-1]]
		sig, ok := owner.signatures[op]
		if !ok {
			continue
		}
		mark := session.Snapshot()
		ctx, err := s.InstanceContext(session, full)
		if err == nil {
			var result Type
			if result, err = s.instantiate(ctx.At(sig), owner, op, sig, args); err == nil {
				return result, nil
			}
		}
		session.Rollback(mark)
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		return nil, sigerr.New(sigerr.NewUnknownOperation{Structure: chain[len(chain)-1], Name: op})
	}
	return nil, firstErr
}

// AbstractContext is a context where the parameters of structure are rigid
func (s *Structures) AbstractContext(session *Session, structure string) (*BindingContext, error) {
	if _, ok := s.byName[structure]; !ok {
		return nil, sigerr.New(sigerr.NewUnknownStructure{Name: structure})
	}
	return s.InstanceContext(session, []string{structure})
}

// InstanceContext binds the parameters of the last structure of chain, as seen
// from the abstract instance of the first one
func (s *Structures) InstanceContext(session *Session, chain []string) (*BindingContext, error) {
	for _, name := range chain {
		if _, ok := s.byName[name]; !ok {
			return nil, sigerr.New(sigerr.NewUnknownStructure{Name: name})
		}
	}
	ctx := NewBindingContext(session, s.registry)
	for _, p := range s.byName[chain[0]].ScopeParams() {
		ctx.DeclareRigid(p)
	}
	for i := 1; i < len(chain); i++ {
		child, parent := s.byName[chain[i-1]], s.byName[chain[i]]
		clause := child.Def.Extends
		if child.Extends != parent.Name {
			clause = child.Def.Over
		}
		next := NewBindingContext(session, s.registry)
		app, isApp := clause.(*ast.TypeApp)
		if !isApp {
			// a bare parent name shares the parameter names of the child
			for _, p := range parent.ScopeParams() {
				next.DeclareRigid(p)
			}
			ctx = next
			continue
		}
		if len(app.Args) != len(parent.Params) {
			return nil, sigerr.New(sigerr.NewArityMismatch{Range: app.Range, Name: parent.Name, Expected: len(parent.Params), Got: len(app.Args)})
		}
		for j, p := range parent.Params {
			next.Declare(p)
			switch p.Kind {
			case KindType:
				t, err := ctx.interpret(app.Args[j])
				if err != nil {
					return nil, err
				}
				next.BindType(p.Name, ctx.Resolve(t))
			case KindDimension:
				arg, err := ctx.interpretDim(app.Args[j])
				if err != nil {
					return nil, err
				}
				next.dims[p.Name] = arg
			case KindTag:
				arg, err := ctx.interpretTag(app.Args[j])
				if err != nil {
					return nil, err
				}
				next.tags[p.Name] = arg
			default:
				panic(fmt.Sprintf("unexpected kind %v", p.Kind))
			}
		}
		for _, p := range parent.Implicit {
			next.DeclareRigid(p)
		}
		ctx = next
	}
	return ctx, nil
}

// Chains lists every chain of extends and over clauses starting at name,
// depth first, extends before over. A structure reached through two clauses,
// like the group of a module and the group of its ring, has one chain each.
func (s *Structures) Chains(name string) [][]string {
	st, ok := s.byName[name]
	if !ok {
		return nil
	}
	all := [][]string{{name}}
	for _, parent := range []string{st.Extends, st.Over} {
		if parent == "" {
			continue
		}
		for _, rest := range s.Chains(parent) {
			all = append(all, append([]string{name}, rest...))
		}
	}
	return all
}

func (s *Structures) instantiate(ctx *BindingContext, owner *Structure, op string, sig ast.TypeExpr, args []Type) (Type, error) {
	argExprs, resultExpr := ast.SplitFunction(sig)
	if len(argExprs) != len(args) {
		return nil, sigerr.New(sigerr.NewArityMismatch{Range: ast.RangeOf(sig), Name: op, Expected: len(argExprs), Got: len(args)})
	}
	for i, argExpr := range argExprs {
		expected, err := ctx.interpret(argExpr)
		if err != nil {
			return nil, err
		}
		if err := ctx.At(argExpr).unify(expected, args[i]); err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", i+1, op, err)
		}
	}
	result, err := Interpret(resultExpr, ctx.At(resultExpr))
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		var unbound string
		SymbolicParams(result, func(arg TypeArg) {
			if name, flexible := ctx.unboundFlexible(arg); flexible && unbound == "" {
				unbound = name
			}
		})
		if unbound != "" {
			return nil, sigerr.New(sigerr.NewUnboundParameter{
				Range:     ast.RangeOf(resultExpr),
				Structure: owner.Name,
				Name:      unbound,
				Operation: op,
			})
		}
	}
	return result, nil
}
