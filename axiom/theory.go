package axiom

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/cottand/sigil/frontend/ast"
	"github.com/cottand/sigil/frontend/sigerr"
	"github.com/cottand/sigil/frontend/types"
	"github.com/hashicorp/go-set/v3"
)

// Axiom is a compiled axiom or define of a structure
type Axiom struct {
	// Structure declares the axiom
	Structure string
	// Instance is the structure whose abstract instance the axiom was compiled
	// in: Structure itself, or a structure extending it
	Instance string
	Name     string
	Formula  Formula
}

// Fingerprint identifies the formula of a, independently of where it was declared
func (a Axiom) Fingerprint() string {
	return a.Formula.String()
}

type instance struct {
	axioms  []Axiom
	defines map[string]*signature
}

// Theory compiles the axioms of registered structures, once per structure
type Theory struct {
	structures *types.Structures

	mu        sync.Mutex
	instances map[string]*instance
}

func NewTheory(structures *types.Structures) *Theory {
	return &Theory{
		structures: structures,
		instances:  make(map[string]*instance),
	}
}

func (t *Theory) Structures() *types.Structures { return t.structures }

// CompileStructure returns the axioms holding in the abstract instance of
// name: its own, and those of every structure it extends or is over, with the
// parameters of name rigid. Defines are included as ∀x. f(x) = body.
func (t *Theory) CompileStructure(name string) ([]Axiom, error) {
	inst, err := t.instance(name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(inst.axioms), nil
}

// AxiomsInScope is the union of the axioms of structures, without duplicates
func (t *Theory) AxiomsInScope(structures []string) ([]Axiom, error) {
	seen := set.New[string](16)
	var axioms []Axiom
	for _, name := range structures {
		inst, err := t.instance(name)
		if err != nil {
			return nil, err
		}
		for _, ax := range inst.axioms {
			if seen.Insert(ax.Fingerprint()) {
				axioms = append(axioms, ax)
			}
		}
	}
	return axioms, nil
}

// CompileAxiom compiles a proposition in the abstract instance of scope.
// Free variables are universally quantified.
func (t *Theory) CompileAxiom(expr ast.Expr, scope string) (Formula, error) {
	inst, err := t.instance(scope)
	if err != nil {
		return nil, err
	}
	c, err := t.newCompiler(types.NewSession(), []string{scope}, inst.defines)
	if err != nil {
		return nil, err
	}
	f, err := c.closed(expr)
	if err != nil {
		return nil, err
	}
	return f, c.finish()
}

func (t *Theory) instance(name string) (*instance, error) {
	t.mu.Lock()
	inst, ok := t.instances[name]
	t.mu.Unlock()
	if ok {
		return inst, nil
	}

	inst, err := t.compileInstance(name)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.instances[name]; ok {
		return existing, nil
	}
	t.instances[name] = inst
	return inst, nil
}

func (t *Theory) compileInstance(name string) (*instance, error) {
	if _, ok := t.structures.Get(name); !ok {
		return nil, sigerr.New(sigerr.NewUnknownStructure{Name: name})
	}
	session := types.NewSession()
	inst := &instance{defines: make(map[string]*signature)}
	chains := t.structures.Chains(name)

	// every define gets a signature before any body is lowered, so that
	// bodies and axioms may use defines declared after them
	for _, chain := range chains {
		st, _ := t.structures.Get(chain[len(chain)-1])
		for _, member := range st.Def.Members {
			d, ok := member.(*ast.Define)
			if !ok {
				continue
			}
			if _, declared := st.Signature(d.Name); declared {
				continue
			}
			sig := &signature{result: session.Fresh()}
			for range d.Params {
				sig.args = append(sig.args, session.Fresh())
			}
			inst.defines[defineKey(chain, d.Name)] = sig
		}
	}

	var compilers []*compiler
	var axioms []Axiom
	for _, chain := range chains {
		st, _ := t.structures.Get(chain[len(chain)-1])
		for _, member := range st.Def.Members {
			var f Formula
			c, err := t.newCompiler(session, chain, inst.defines)
			if err != nil {
				return nil, err
			}
			switch m := member.(type) {
			case *ast.Axiom:
				f, err = c.closed(m.Prop)
			case *ast.Define:
				f, err = c.define(m)
			default:
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("%s of %s: %w", member.MemberName(), st.Name, err)
			}
			compilers = append(compilers, c)
			axioms = append(axioms, Axiom{Structure: st.Name, Instance: name, Name: member.MemberName(), Formula: f})
		}
	}
	// types are only final once every body constrained the shared defines
	for _, c := range compilers {
		if err := c.finish(); err != nil {
			return nil, fmt.Errorf("structure %s: %w", name, err)
		}
	}
	if len(compilers) > 0 {
		for _, sig := range inst.defines {
			for i := range sig.args {
				sig.args[i] = compilers[0].resolveType(sig.args[i])
			}
			sig.result = compilers[0].resolveType(sig.result)
		}
	}

	seen := set.New[string](len(axioms))
	inst.axioms = slices.DeleteFunc(axioms, func(ax Axiom) bool {
		return !seen.Insert(ax.Fingerprint())
	})
	logger.Debug("compiled structure", "name", name, "axioms", len(inst.axioms), "defines", len(inst.defines))
	return inst, nil
}

// closed lowers a proposition and quantifies its free variables universally
func (c *compiler) closed(e ast.Expr) (Formula, error) {
	f, err := c.proposition(e)
	if err != nil {
		return nil, err
	}
	return c.closeOver(f), nil
}

func (c *compiler) closeOver(f Formula) Formula {
	names := make([]string, 0, len(c.free))
	for name := range c.free {
		names = append(names, name)
	}
	sort.Strings(names)
	for i := len(names) - 1; i >= 0; i-- {
		f = ForAll(c.free[names[i]], f)
	}
	return f
}

// define lowers `define f(x) = body` to ∀x. f(x) = body
func (c *compiler) define(d *ast.Define) (Formula, error) {
	saved := c.bound
	defer func() { c.bound = saved }()

	sig := c.defines[defineKey(c.chain, d.Name)]
	params := make([]*Var, len(d.Params))
	args := make([]Formula, len(d.Params))
	argTypes := make([]types.Type, len(d.Params))
	for i, name := range d.Params {
		var t types.Type = c.session.Fresh()
		if sig != nil {
			t = sig.args[i]
		}
		params[i] = &Var{Name: name, T: t}
		c.track(params[i])
		args[i], argTypes[i] = params[i], t
		c.bound = c.bound.Set(name, params[i])
	}

	body, err := c.lower(d.Body)
	if err != nil {
		return nil, err
	}
	var result types.Type
	if sig != nil {
		result = sig.result
	} else {
		// the define gives a body to a declared operation
		if result, err = c.resolve(d, c.chain, c.defines, d.Name, argTypes); err != nil {
			return nil, err
		}
	}
	if err := c.unify(d, result, body.Type()); err != nil {
		return nil, fmt.Errorf("body of %s: %w", d.Name, err)
	}
	lhs := c.track(&App{Op: d.Name, Args: args, T: result, Owner: c.chain[0]})

	f := Eq(lhs, body)
	for i := len(params) - 1; i >= 0; i-- {
		f = ForAll(params[i], f)
	}
	return c.closeOver(f), nil
}
