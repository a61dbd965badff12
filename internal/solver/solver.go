// Package solver provides the reference solver oracle for the fulfillment
// engine. Goals are proven against an impl registry: candidate ways of
// proving a goal are assembled from environment assumptions, declared impls,
// and built-in structural rules; a single viable candidate commits its
// bindings and recursively proves the impl's where-clauses, while competing
// viable candidates leave the goal ambiguous.
//
// Candidate assembly is speculative: every candidate is first evaluated
// inside a probe so its bindings roll back, and only the unique viable
// candidate is replayed against live inference state.
package solver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/mangle/ast"

	"entail/internal/logging"
	"entail/internal/types"
)

// Config holds solver configuration.
type Config struct {
	// DepthLimit bounds recursive proof search. Goals at greater depth
	// report overflow with a suggestion to raise the limit.
	DepthLimit int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{DepthLimit: 32}
}

// Impl is one declared implementation: a head that goals unify against,
// where-clauses that become obligations of a match, incidental side
// conditions, and associated-alias bindings.
type Impl struct {
	ID    string
	Trait string
	// Head is the parameter list of the implemented trait; variables in it
	// are the impl's generic parameters.
	Head []ast.BaseTerm
	// Where lists the impl's where-clauses in declaration order. The order
	// is load-bearing: derived causes cite clauses by index.
	Where []types.Predicate
	// Side lists incidental conditions proven alongside the where-clauses
	// but never blamed in diagnostics.
	Side []types.Predicate
	// Bindings maps associated names to their value for this impl.
	Bindings map[string]ast.BaseTerm
}

// BuiltinRule expands a trait goal into component predicates. applies
// reports whether the rule covers the given arguments at all.
type BuiltinRule func(inf types.Inference, args []ast.BaseTerm) (components []types.Predicate, applies bool)

// Solver implements types.Oracle. Registration order of impls is preserved;
// candidate assembly never iterates a map, keeping evaluation deterministic.
type Solver struct {
	cfg Config

	impls        []Impl
	implsByTrait map[string][]int
	implsByID    map[string]int
	builtins     map[string]BuiltinRule
	builtinOrder []string
	dynUnsafe    map[string]bool

	log *logging.Logger
}

var _ types.Oracle = (*Solver)(nil)

// New creates an empty solver.
func New(cfg Config) *Solver {
	if cfg.DepthLimit <= 0 {
		cfg.DepthLimit = DefaultConfig().DepthLimit
	}
	return &Solver{
		cfg:          cfg,
		implsByTrait: make(map[string][]int),
		implsByID:    make(map[string]int),
		builtins:     make(map[string]BuiltinRule),
		dynUnsafe:    make(map[string]bool),
		log:          logging.Get(logging.CategorySolver),
	}
}

// RegisterImpl adds an impl to the registry. Impl IDs must be unique.
func (s *Solver) RegisterImpl(impl Impl) error {
	if impl.ID == "" {
		return fmt.Errorf("impl for trait %s has no id", impl.Trait)
	}
	if impl.Trait == "" {
		return fmt.Errorf("impl %s has no trait", impl.ID)
	}
	if _, ok := s.implsByID[impl.ID]; ok {
		return fmt.Errorf("duplicate impl id %s", impl.ID)
	}
	s.implsByID[impl.ID] = len(s.impls)
	s.implsByTrait[impl.Trait] = append(s.implsByTrait[impl.Trait], len(s.impls))
	s.impls = append(s.impls, impl)
	s.log.Debug("registered impl %s for %s (%d where-clauses)", impl.ID, impl.Trait, len(impl.Where))
	return nil
}

// RegisterBuiltin installs a built-in rule for a trait.
func (s *Solver) RegisterBuiltin(trait string, rule BuiltinRule) {
	if _, ok := s.builtins[trait]; !ok {
		s.builtinOrder = append(s.builtinOrder, trait)
	}
	s.builtins[trait] = rule
}

// MarkDynUnsafe declares a trait incompatible with dynamic dispatch, making
// dyn_compatible goals for it fail.
func (s *Solver) MarkDynUnsafe(trait string) {
	s.dynUnsafe[trait] = true
}

// WhereClauses returns an impl's declared where-clauses in declaration
// order, or nil for unknown IDs.
func (s *Solver) WhereClauses(implID string) []types.Predicate {
	idx, ok := s.implsByID[implID]
	if !ok {
		return nil
	}
	return s.impls[idx].Where
}

// Evaluate proves one obligation. Changed reports whether live inference
// state was mutated. A disproved goal returns ErrNoSolution; the result
// still carries the proof tree when wantProof is set.
func (s *Solver) Evaluate(inf types.Inference, ob types.Obligation, wantProof bool) (types.EvalResult, error) {
	before := inf.Mutations()
	node := s.prove(inf, ob.Predicate, ob.Env, ob.Depth, wantProof)

	res := types.EvalResult{
		Changed:   inf.Mutations() != before,
		Certainty: node.Certainty,
	}
	if wantProof {
		res.Tree = node
	}
	s.log.Debug("evaluated %s: no_solution=%v certainty=%s changed=%v",
		ob.Predicate, node.NoSolution, node.Certainty, res.Changed)
	if node.NoSolution {
		return res, types.ErrNoSolution
	}
	return res, nil
}

// prove evaluates one goal, returning its proof node. Candidates and nested
// goals are only retained when record is set.
func (s *Solver) prove(inf types.Inference, pred types.Predicate, env types.Env, depth int, record bool) *types.ProofNode {
	pred = inf.ResolvePredicate(pred)
	node := &types.ProofNode{Predicate: pred, Env: env, Depth: depth}

	if depth > s.cfg.DepthLimit {
		node.Certainty = types.Overflow(true)
		return node
	}

	if len(pred.Binder) > 0 {
		return s.proveHigherRanked(inf, node, pred, env, depth, record)
	}

	switch pred.Kind {
	case types.KindTrait:
		s.proveTrait(inf, node, pred, env, depth, record)
	case types.KindProjection, types.KindNormalizesTo:
		s.proveAlias(inf, node, pred, env, depth, record)
	case types.KindAliasRelate, types.KindSubtype, types.KindCoerce, types.KindConstEquate:
		s.proveRelate(inf, node, pred)
	case types.KindDynCompatible:
		if s.dynUnsafe[pred.Atom.Predicate.Symbol] {
			node.NoSolution = true
		}
	case types.KindAmbiguous:
		node.Certainty = types.Ambiguous()
	default:
		node.NoSolution = true
	}
	return node
}

// proveHigherRanked strips the universal quantifier by instantiating fresh
// inference variables for the bound ones and proves the body.
func (s *Solver) proveHigherRanked(inf types.Inference, node *types.ProofNode, pred types.Predicate, env types.Env, depth int, record bool) *types.ProofNode {
	rename := make(map[string]ast.BaseTerm, len(pred.Binder))
	for _, v := range pred.Binder {
		rename[v.Symbol] = inf.FreshVar(v.Symbol)
	}
	body := pred
	body.Binder = nil
	body = body.Map(func(t ast.BaseTerm) ast.BaseTerm { return renameTerm(t, rename) })

	child := s.prove(inf, body, env, depth+1, record)
	node.Certainty = child.Certainty
	node.NoSolution = child.NoSolution
	if record {
		node.Candidates = []*types.Candidate{{
			Kind:   types.CandidateOther,
			Nested: []types.NestedGoal{{Source: types.SourceInstantiateHigherRanked, Node: child}},
		}}
	}
	return node
}

// proveRelate discharges the relational shapes by unification.
func (s *Solver) proveRelate(inf types.Inference, node *types.ProofNode, pred types.Predicate) {
	if pred.Left == nil || pred.Right == nil {
		node.NoSolution = true
		return
	}
	if err := inf.Unify(pred.Left, pred.Right); err != nil {
		node.NoSolution = true
	}
}

// candidateRun is the observed outcome of evaluating one candidate.
type candidateRun struct {
	cand       *types.Candidate
	cert       types.Certainty
	noSolution bool
}

// attempt pairs a speculative candidate run with a replay that re-executes
// it against live inference state.
type attempt struct {
	run    candidateRun
	replay func(record bool) candidateRun
}

// proveTrait assembles candidates for a trait goal and selects among them.
func (s *Solver) proveTrait(inf types.Inference, node *types.ProofNode, pred types.Predicate, env types.Env, depth int, record bool) {
	trait := pred.Atom.Predicate.Symbol
	args := pred.Atom.Args
	var attempts []attempt

	// Environment assumptions discharge a goal without nested obligations.
	for _, assumed := range env.Assumptions {
		if assumed.Predicate.Symbol != trait || len(assumed.Args) != len(args) {
			continue
		}
		aArgs := assumed.Args
		if err := inf.Probe(func() error { return inf.UnifyAll(args, aArgs) }); err != nil {
			continue
		}
		replay := func(bool) candidateRun {
			run := candidateRun{cand: &types.Candidate{Kind: types.CandidateOther}, cert: types.Yes()}
			if err := inf.UnifyAll(args, aArgs); err != nil {
				run.noSolution = true
			}
			return run
		}
		attempts = append(attempts, attempt{
			run:    candidateRun{cand: &types.Candidate{Kind: types.CandidateOther}, cert: types.Yes()},
			replay: replay,
		})
	}

	// Declared impls, in registration order.
	for _, idx := range s.implsByTrait[trait] {
		impl := s.freshenImpl(inf, s.impls[idx])
		if len(impl.Head) != len(args) {
			continue
		}
		replay := func(rec bool) candidateRun {
			return s.runImplCandidate(inf, impl, args, env, depth, rec)
		}
		run, headOK := s.probeCandidate(inf, args, impl.Head, replay, record)
		if !headOK {
			continue
		}
		attempts = append(attempts, attempt{run: run, replay: replay})
	}

	// Built-in structural rule, if any.
	if rule, ok := s.builtins[trait]; ok {
		if comps, applies := rule(inf, args); applies {
			replay := func(rec bool) candidateRun {
				return s.runBuiltinCandidate(inf, comps, env, depth, rec)
			}
			var run candidateRun
			_ = inf.Probe(func() error {
				run = replay(record)
				return nil
			})
			attempts = append(attempts, attempt{run: run, replay: replay})
		}
	}

	s.selectCandidates(node, attempts, record)
}

// probeCandidate evaluates an impl candidate speculatively. headOK is false
// when the goal does not unify with the impl head at all, in which case the
// impl is not a candidate.
func (s *Solver) probeCandidate(inf types.Inference, args, head []ast.BaseTerm, replay func(bool) candidateRun, record bool) (run candidateRun, headOK bool) {
	headOK = true
	_ = inf.Probe(func() error {
		if err := inf.UnifyAll(args, head); err != nil {
			headOK = false
			return err
		}
		return nil
	})
	if !headOK {
		return candidateRun{}, false
	}
	_ = inf.Probe(func() error {
		run = replay(record)
		return nil
	})
	return run, true
}

// runImplCandidate unifies the goal with the impl head and proves the
// impl's side conditions (incidental) and where-clauses (blamable, in
// declaration order). Run either under a probe or against live state.
func (s *Solver) runImplCandidate(inf types.Inference, impl Impl, args []ast.BaseTerm, env types.Env, depth int, record bool) candidateRun {
	run := candidateRun{
		cand: &types.Candidate{Kind: types.CandidateImpl, ImplID: impl.ID},
		cert: types.Yes(),
	}
	if err := inf.UnifyAll(args, impl.Head); err != nil {
		run.noSolution = true
		return run
	}
	s.proveNested(inf, &run, impl.Side, types.SourceMisc, env, depth, record)
	s.proveNested(inf, &run, impl.Where, types.SourceImplWhereBound, env, depth, record)
	return run
}

// runBuiltinCandidate proves the components a built-in rule expanded a goal
// into. The components count as where-bounds so diagnostics descend through
// them with a builtin-derived cause.
func (s *Solver) runBuiltinCandidate(inf types.Inference, comps []types.Predicate, env types.Env, depth int, record bool) candidateRun {
	run := candidateRun{
		cand: &types.Candidate{Kind: types.CandidateBuiltin},
		cert: types.Yes(),
	}
	s.proveNested(inf, &run, comps, types.SourceImplWhereBound, env, depth, record)
	return run
}

func (s *Solver) proveNested(inf types.Inference, run *candidateRun, preds []types.Predicate, source types.GoalSource, env types.Env, depth int, record bool) {
	for _, p := range preds {
		child := s.prove(inf, p, env, depth+1, record)
		if record {
			run.cand.Nested = append(run.cand.Nested, types.NestedGoal{Source: source, Node: child})
		}
		if child.NoSolution {
			run.noSolution = true
			continue
		}
		run.cert = run.cert.Meet(child.Certainty)
	}
}

// selectCandidates applies the selection rule: no candidates or only failed
// ones disprove the goal, a unique viable candidate commits, competing
// viable candidates leave the goal ambiguous without committing anything.
func (s *Solver) selectCandidates(node *types.ProofNode, attempts []attempt, record bool) {
	viableIdx, viableCount := -1, 0
	for i, at := range attempts {
		if !at.run.noSolution {
			viableCount++
			viableIdx = i
		}
	}
	if record {
		for _, at := range attempts {
			node.Candidates = append(node.Candidates, at.run.cand)
		}
	}

	switch {
	case viableCount == 1:
		run := attempts[viableIdx].replay(record)
		node.Certainty = run.cert
		node.NoSolution = run.noSolution
		if record {
			node.Candidates[viableIdx] = run.cand
		}
	case viableCount == 0:
		node.NoSolution = true
	default:
		node.Certainty = types.Ambiguous()
	}
}

// proveAlias proves projection and normalization goals: the alias predicate
// symbol is Trait::Assoc; impls of Trait that bind Assoc are the candidates,
// and the unique viable one unifies its binding with the required term.
func (s *Solver) proveAlias(inf types.Inference, node *types.ProofNode, pred types.Predicate, env types.Env, depth int, record bool) {
	trait, assoc, ok := splitAlias(pred.Alias.Predicate.Symbol)
	if !ok {
		node.NoSolution = true
		return
	}
	args := pred.Alias.Args
	want := pred.Right
	var attempts []attempt

	for _, idx := range s.implsByTrait[trait] {
		impl := s.freshenImpl(inf, s.impls[idx])
		if len(impl.Head) != len(args) {
			continue
		}
		replay := func(rec bool) candidateRun {
			return s.runAliasCandidate(inf, impl, assoc, args, want, env, depth, rec)
		}
		run, headOK := s.probeCandidate(inf, args, impl.Head, replay, record)
		if !headOK {
			continue
		}
		attempts = append(attempts, attempt{run: run, replay: replay})
	}

	s.selectCandidates(node, attempts, record)
}

func (s *Solver) runAliasCandidate(inf types.Inference, impl Impl, assoc string, args []ast.BaseTerm, want ast.BaseTerm, env types.Env, depth int, record bool) candidateRun {
	run := candidateRun{
		cand: &types.Candidate{Kind: types.CandidateImpl, ImplID: impl.ID},
		cert: types.Yes(),
	}
	if err := inf.UnifyAll(args, impl.Head); err != nil {
		run.noSolution = true
		return run
	}
	bound, ok := impl.Bindings[assoc]
	if !ok {
		run.noSolution = true
		return run
	}
	if want != nil {
		if err := inf.Unify(bound, want); err != nil {
			run.noSolution = true
			return run
		}
	}
	s.proveNested(inf, &run, impl.Side, types.SourceMisc, env, depth, record)
	s.proveNested(inf, &run, impl.Where, types.SourceImplWhereBound, env, depth, record)
	return run
}

// splitAlias breaks Trait::Assoc into its parts.
func splitAlias(symbol string) (trait, assoc string, ok bool) {
	i := strings.Index(symbol, "::")
	if i <= 0 || i+2 >= len(symbol) {
		return "", "", false
	}
	return symbol[:i], symbol[i+2:], true
}

// freshenImpl renames every variable in an impl to a fresh inference
// variable so distinct uses of the same impl never share bindings.
func (s *Solver) freshenImpl(inf types.Inference, impl Impl) Impl {
	seen := make(map[string]bool)
	var order []string
	collect := func(t ast.BaseTerm) ast.BaseTerm {
		collectVars(t, seen, &order)
		return t
	}
	for _, t := range impl.Head {
		collect(t)
	}
	for _, p := range impl.Where {
		p.Map(collect)
		for _, v := range p.Binder {
			if !seen[v.Symbol] {
				seen[v.Symbol] = true
				order = append(order, v.Symbol)
			}
		}
	}
	for _, p := range impl.Side {
		p.Map(collect)
	}
	for _, name := range sortedKeys(impl.Bindings) {
		collect(impl.Bindings[name])
	}
	if len(order) == 0 {
		return impl
	}

	rename := make(map[string]ast.BaseTerm, len(order))
	for _, sym := range order {
		rename[sym] = inf.FreshVar(sym)
	}

	out := impl
	out.Head = renameTerms(impl.Head, rename)
	out.Where = renamePredicates(impl.Where, rename)
	out.Side = renamePredicates(impl.Side, rename)
	if len(impl.Bindings) > 0 {
		bindings := make(map[string]ast.BaseTerm, len(impl.Bindings))
		for name, t := range impl.Bindings {
			bindings[name] = renameTerm(t, rename)
		}
		out.Bindings = bindings
	}
	return out
}

// sortedKeys keeps fresh-variable assignment independent of map iteration
// order; identical inputs must freshen identically.
func sortedKeys(bindings map[string]ast.BaseTerm) []string {
	keys := make([]string, 0, len(bindings))
	for name := range bindings {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

func collectVars(t ast.BaseTerm, seen map[string]bool, order *[]string) {
	switch v := t.(type) {
	case ast.Variable:
		if !seen[v.Symbol] {
			seen[v.Symbol] = true
			*order = append(*order, v.Symbol)
		}
	case ast.ApplyFn:
		for _, arg := range v.Args {
			collectVars(arg, seen, order)
		}
	}
}

func renameTerm(t ast.BaseTerm, rename map[string]ast.BaseTerm) ast.BaseTerm {
	switch v := t.(type) {
	case ast.Variable:
		if repl, ok := rename[v.Symbol]; ok {
			return repl
		}
		return v
	case ast.ApplyFn:
		args := make([]ast.BaseTerm, len(v.Args))
		for i, arg := range v.Args {
			args[i] = renameTerm(arg, rename)
		}
		return ast.ApplyFn{Function: v.Function, Args: args}
	default:
		return t
	}
}

func renameTerms(ts []ast.BaseTerm, rename map[string]ast.BaseTerm) []ast.BaseTerm {
	if len(ts) == 0 {
		return ts
	}
	out := make([]ast.BaseTerm, len(ts))
	for i, t := range ts {
		out[i] = renameTerm(t, rename)
	}
	return out
}

func renamePredicates(ps []types.Predicate, rename map[string]ast.BaseTerm) []types.Predicate {
	if len(ps) == 0 {
		return ps
	}
	out := make([]types.Predicate, len(ps))
	for i, p := range ps {
		mapped := p.Map(func(t ast.BaseTerm) ast.BaseTerm { return renameTerm(t, rename) })
		if len(p.Binder) > 0 {
			binder := make([]ast.Variable, len(p.Binder))
			for j, v := range p.Binder {
				if repl, ok := rename[v.Symbol].(ast.Variable); ok {
					binder[j] = repl
				} else {
					binder[j] = v
				}
			}
			mapped.Binder = binder
		}
		out[i] = mapped
	}
	return out
}
