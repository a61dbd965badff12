package solver

import (
	"fmt"
	"os"

	"github.com/google/mangle/ast"
	"gopkg.in/yaml.v3"

	"entail/internal/types"
)

// Program is the YAML on-disk form of an impl registry plus the goals to
// check against it.
type Program struct {
	// DepthLimit overrides the default proof-search depth when positive.
	DepthLimit int `yaml:"depth_limit"`

	Impls []ProgramImpl `yaml:"impls"`

	// Assumptions are trait atoms every goal may rely on without proof.
	Assumptions []string `yaml:"assumptions"`

	// DynUnsafe lists traits incompatible with dynamic dispatch.
	DynUnsafe []string `yaml:"dyn_unsafe"`

	// Builtins lists traits proven structurally over term constructors.
	Builtins []string `yaml:"builtins"`

	Goals []ProgramGoal `yaml:"goals"`
}

// ProgramImpl is one impl declaration. Clause order in where is preserved;
// diagnostics cite clauses by position.
type ProgramImpl struct {
	ID       string            `yaml:"id"`
	Trait    string            `yaml:"trait"`
	Head     []string          `yaml:"head"`
	Where    []string          `yaml:"where"`
	Side     []string          `yaml:"side"`
	Bindings map[string]string `yaml:"bindings"`
}

// ProgramGoal is one goal to check. Origin is echoed in diagnostics.
type ProgramGoal struct {
	Predicate string `yaml:"predicate"`
	Origin    string `yaml:"origin"`
}

// LoadProgram reads and parses a program file.
func LoadProgram(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading program: %w", err)
	}
	var prog Program
	if err := yaml.Unmarshal(data, &prog); err != nil {
		return nil, fmt.Errorf("parsing program %s: %w", path, err)
	}
	return &prog, nil
}

// BuildSolver compiles the program's impl registry into a solver.
func (p *Program) BuildSolver() (*Solver, error) {
	cfg := DefaultConfig()
	if p.DepthLimit > 0 {
		cfg.DepthLimit = p.DepthLimit
	}
	s := New(cfg)

	for _, pi := range p.Impls {
		impl, err := pi.compile()
		if err != nil {
			return nil, err
		}
		if err := s.RegisterImpl(impl); err != nil {
			return nil, err
		}
	}
	for _, trait := range p.Builtins {
		s.RegisterBuiltin(trait, StructuralRule(trait))
	}
	for _, trait := range p.DynUnsafe {
		s.MarkDynUnsafe(trait)
	}
	return s, nil
}

func (pi ProgramImpl) compile() (Impl, error) {
	impl := Impl{ID: pi.ID, Trait: pi.Trait}
	for _, h := range pi.Head {
		t, err := ParseTerm(h)
		if err != nil {
			return Impl{}, fmt.Errorf("impl %s head: %w", pi.ID, err)
		}
		impl.Head = append(impl.Head, t)
	}
	for _, w := range pi.Where {
		pred, err := ParsePredicate(w)
		if err != nil {
			return Impl{}, fmt.Errorf("impl %s where-clause: %w", pi.ID, err)
		}
		impl.Where = append(impl.Where, pred)
	}
	for _, sc := range pi.Side {
		pred, err := ParsePredicate(sc)
		if err != nil {
			return Impl{}, fmt.Errorf("impl %s side condition: %w", pi.ID, err)
		}
		impl.Side = append(impl.Side, pred)
	}
	if len(pi.Bindings) > 0 {
		impl.Bindings = make(map[string]ast.BaseTerm, len(pi.Bindings))
		for name, raw := range pi.Bindings {
			t, err := ParseTerm(raw)
			if err != nil {
				return Impl{}, fmt.Errorf("impl %s binding %s: %w", pi.ID, name, err)
			}
			impl.Bindings[name] = t
		}
	}
	return impl, nil
}

// BuildEnv assembles the shared goal environment.
func (p *Program) BuildEnv() (types.Env, error) {
	var env types.Env
	for _, raw := range p.Assumptions {
		atom, err := ParseAtom(raw)
		if err != nil {
			return types.Env{}, fmt.Errorf("assumption: %w", err)
		}
		env.Assumptions = append(env.Assumptions, atom)
	}
	return env, nil
}

// BuildGoals turns the program's goal list into root obligations under env.
func (p *Program) BuildGoals(env types.Env) ([]types.Obligation, error) {
	obs := make([]types.Obligation, 0, len(p.Goals))
	for i, g := range p.Goals {
		pred, err := ParsePredicate(g.Predicate)
		if err != nil {
			return nil, fmt.Errorf("goal #%d: %w", i, err)
		}
		// Const-equality predicates are discharged inside the solver as side
		// conditions; registered as top-level goals they could never be
		// reported coherently.
		if pred.Kind == types.KindConstEquate {
			return nil, fmt.Errorf("goal #%d: %s cannot be a top-level goal; const-equality holds only as an impl side condition", i, pred)
		}
		origin := g.Origin
		if origin == "" {
			origin = fmt.Sprintf("goal #%d", i)
		}
		obs = append(obs, types.NewObligation(pred, env, origin))
	}
	return obs, nil
}
