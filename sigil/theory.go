// Package sigil loads theory files and checks their assertions
package sigil

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"github.com/cottand/sigil/axiom"
	"github.com/cottand/sigil/evaluator"
	"github.com/cottand/sigil/frontend"
	"github.com/cottand/sigil/frontend/ast"
	"github.com/cottand/sigil/frontend/types"
	"github.com/cottand/sigil/internal/log"
	"github.com/cottand/sigil/verify"
	"gopkg.in/yaml.v3"
)

var logger = log.Section("theory")

// Theory is a loaded theory file: its types, structures, concrete bindings and
// the assertions to check against them
type Theory struct {
	Name       string
	Registry   *types.Registry
	Structures *types.Structures
	Axioms     *axiom.Theory
	Env        *evaluator.Env
	Assertions []Assertion
}

type Assertion struct {
	*ast.Assertion
	// Expect is the outcome the file announces for the assertion, or 0
	Expect verify.Outcome
	Line   int
}

type typeDecl struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params"`
}

type structureDecl struct {
	Name       string    `yaml:"name"`
	Params     []string  `yaml:"params"`
	Extends    string    `yaml:"extends"`
	Over       string    `yaml:"over"`
	Operations yaml.Node `yaml:"operations"`
	Elements   yaml.Node `yaml:"elements"`
	Axioms     yaml.Node `yaml:"axioms"`
	Defines    yaml.Node `yaml:"defines"`
}

type assertionDecl struct {
	Name      string `yaml:"name"`
	Structure string `yaml:"structure"`
	Assert    string `yaml:"assert"`
	Expect    string `yaml:"expect"`
}

// loader accumulates the problems of a file, so that one bad declaration
// does not hide the others
type loader struct {
	file string
	errs []error
}

func (l *loader) fail(line int, format string, args ...any) {
	err := fmt.Errorf(format, args...)
	l.errs = append(l.errs, fmt.Errorf("%s:%d: %w", l.file, line, err))
	logger.Warn("invalid declaration", "file", l.file, "line", line, "error", err)
}

// LoadFile reads the theory at path in fsys
func LoadFile(fsys fs.FS, path string) (*Theory, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	return Load(path, data)
}

// Load parses a theory file. A malformed file is an error and no Theory;
// invalid declarations are skipped, and reported together in the returned
// error alongside the rest of the Theory.
func Load(name string, data []byte) (*Theory, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	th := &Theory{Name: name, Env: evaluator.NewEnv()}
	l := &loader{file: name}
	sections := map[string]*yaml.Node{}
	if len(root.Content) > 0 {
		doc := root.Content[0]
		if doc.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%s:%d: a theory is a mapping of types, structures, bindings and assertions", name, doc.Line)
		}
		for i := 0; i+1 < len(doc.Content); i += 2 {
			key, value := doc.Content[i], doc.Content[i+1]
			switch key.Value {
			case "types", "structures", "bindings", "assertions":
				sections[key.Value] = value
			default:
				l.fail(key.Line, "unknown section %q", key.Value)
			}
		}
	}

	builder := types.NewBuilder()
	l.types(builder, sections["types"])
	th.Registry = builder.Freeze()

	th.Structures = types.NewStructures(th.Registry)
	th.Env = l.structures(th.Structures, th.Env, sections["structures"])
	th.Axioms = axiom.NewTheory(th.Structures)

	th.Env = l.bindings(th.Env, sections["bindings"])
	th.Assertions = l.assertions(sections["assertions"])

	logger.Info("loaded theory",
		"name", name,
		"structures", len(th.Structures.Names()),
		"assertions", len(th.Assertions),
		"errors", len(l.errs),
	)
	return th, errors.Join(l.errs...)
}

// items decodes the elements of a sequence node one by one
func items[T any](l *loader, n *yaml.Node, section string, yield func(line int, item T)) {
	if n == nil {
		return
	}
	if n.Kind != yaml.SequenceNode {
		l.fail(n.Line, "%s must be a list", section)
		return
	}
	for _, item := range n.Content {
		var decoded T
		if err := item.Decode(&decoded); err != nil {
			l.fail(item.Line, "%s: %w", section, err)
			continue
		}
		yield(item.Line, decoded)
	}
}

// pairs lists the entries of a mapping node in file order
func pairs(l *loader, n *yaml.Node, what string) [][2]*yaml.Node {
	if n == nil || n.Kind == 0 {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		l.fail(n.Line, "%s must be a mapping", what)
		return nil
	}
	var out [][2]*yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, [2]*yaml.Node{n.Content[i], n.Content[i+1]})
	}
	return out
}

func (l *loader) types(b *types.Builder, n *yaml.Node) {
	items(l, n, "types", func(line int, decl typeDecl) {
		def := &ast.DataDef{Name: decl.Name}
		for _, src := range decl.Params {
			p, err := frontend.ParseParam(src)
			if err != nil {
				l.fail(line, "type %s: %w", decl.Name, err)
				return
			}
			def.Params = append(def.Params, p)
		}
		if err := b.RegisterDecl(def); err != nil {
			l.fail(line, "type %s: %w", decl.Name, err)
		}
	})
}

func (l *loader) structures(s *types.Structures, env *evaluator.Env, n *yaml.Node) *evaluator.Env {
	items(l, n, "structures", func(line int, decl structureDecl) {
		def, err := l.structure(decl)
		if err != nil {
			l.fail(line, "structure %s: %w", decl.Name, err)
			return
		}
		if err := s.Register(def); err != nil {
			l.fail(line, "structure %s: %w", decl.Name, err)
			return
		}
		for _, m := range def.Members {
			if d, ok := m.(*ast.Define); ok {
				env = env.WithDefine(d)
			}
		}
	})
	return env
}

func (l *loader) structure(decl structureDecl) (*ast.StructureDef, error) {
	def := &ast.StructureDef{Name: decl.Name}
	if decl.Name == "" {
		return nil, errors.New("missing name")
	}
	for _, src := range decl.Params {
		p, err := frontend.ParseParam(src)
		if err != nil {
			return nil, err
		}
		def.Params = append(def.Params, p)
	}
	var err error
	if decl.Extends != "" {
		if def.Extends, err = frontend.ParseTypeExpr(decl.Extends); err != nil {
			return nil, fmt.Errorf("extends: %w", err)
		}
	}
	if decl.Over != "" {
		if def.Over, err = frontend.ParseTypeExpr(decl.Over); err != nil {
			return nil, fmt.Errorf("over: %w", err)
		}
	}

	for _, kv := range pairs(l, &decl.Operations, "operations") {
		sig, err := frontend.ParseTypeExpr(kv[1].Value)
		if err != nil {
			return nil, fmt.Errorf("operation %s: %w", kv[0].Value, err)
		}
		def.Members = append(def.Members, &ast.Operation{Name: kv[0].Value, Signature: sig})
	}
	for _, kv := range pairs(l, &decl.Elements, "elements") {
		t, err := frontend.ParseTypeExpr(kv[1].Value)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", kv[0].Value, err)
		}
		def.Members = append(def.Members, &ast.Element{Name: kv[0].Value, Type: t})
	}
	for _, kv := range pairs(l, &decl.Axioms, "axioms") {
		prop, err := frontend.ParseExpr(kv[1].Value)
		if err != nil {
			return nil, fmt.Errorf("axiom %s: %w", kv[0].Value, err)
		}
		def.Members = append(def.Members, &ast.Axiom{Name: kv[0].Value, Prop: prop})
	}
	for _, kv := range pairs(l, &decl.Defines, "defines") {
		d, err := frontend.ParseDefine(kv[0].Value, kv[1].Value)
		if err != nil {
			return nil, fmt.Errorf("define %s: %w", kv[0].Value, err)
		}
		def.Members = append(def.Members, d)
	}
	return def, nil
}

// bindings are the concrete values assertions are evaluated with
func (l *loader) bindings(env *evaluator.Env, n *yaml.Node) *evaluator.Env {
	for _, kv := range pairs(l, n, "bindings") {
		name, value := kv[0].Value, kv[1]
		switch value.ShortTag() {
		case "!!int", "!!float":
			num, ok := evaluator.ParseNumber(value.Value)
			if !ok {
				l.fail(value.Line, "binding %s: invalid number %s", name, value.Value)
				continue
			}
			env = env.With(name, num)
		case "!!bool":
			var b bool
			if err := value.Decode(&b); err != nil {
				l.fail(value.Line, "binding %s: %w", name, err)
				continue
			}
			env = env.With(name, evaluator.Bool(b))
		case "!!str":
			env = env.With(name, evaluator.Text(value.Value))
		default:
			l.fail(value.Line, "binding %s: expected a number, a boolean or a string", name)
		}
	}
	return env
}

func (l *loader) assertions(n *yaml.Node) []Assertion {
	var out []Assertion
	names := map[string]int{}
	items(l, n, "assertions", func(line int, decl assertionDecl) {
		e, err := frontend.ParseExpr(decl.Assert)
		if err != nil {
			l.fail(line, "assertion %s: %w", decl.Name, err)
			return
		}
		a := Assertion{
			Assertion: &ast.Assertion{Name: decl.Name, Structure: decl.Structure, Expr: e},
			Line:      line,
		}
		if a.Name == "" {
			a.Name = decl.Assert
		}
		if first, seen := names[a.Name]; seen {
			l.fail(line, "assertion %s is already declared on line %d", a.Name, first)
			return
		}
		names[a.Name] = line
		if decl.Expect != "" {
			outcome, ok := verify.ParseOutcome(decl.Expect)
			if !ok {
				l.fail(line, "assertion %s: unknown outcome %q", a.Name, decl.Expect)
				return
			}
			a.Expect = outcome
		}
		out = append(out, a)
	})
	return slices.Clip(out)
}
