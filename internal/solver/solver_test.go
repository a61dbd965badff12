package solver

import (
	"errors"
	"testing"

	"github.com/google/mangle/ast"
	"github.com/stretchr/testify/require"

	"entail/internal/infer"
	"entail/internal/types"
)

func mustPred(t *testing.T, s string) types.Predicate {
	t.Helper()
	pred, err := ParsePredicate(s)
	require.NoError(t, err)
	return pred
}

func mustTerm(t *testing.T, s string) ast.BaseTerm {
	t.Helper()
	tm, err := ParseTerm(s)
	require.NoError(t, err)
	return tm
}

func goal(t *testing.T, s string, env types.Env) types.Obligation {
	t.Helper()
	return types.NewObligation(mustPred(t, s), env, "test")
}

func newSolver(t *testing.T, impls ...Impl) *Solver {
	t.Helper()
	s := New(DefaultConfig())
	for _, impl := range impls {
		require.NoError(t, s.RegisterImpl(impl))
	}
	return s
}

func implFrom(t *testing.T, id, trait string, head []string, where []string) Impl {
	t.Helper()
	impl := Impl{ID: id, Trait: trait}
	for _, h := range head {
		impl.Head = append(impl.Head, mustTerm(t, h))
	}
	for _, w := range where {
		impl.Where = append(impl.Where, mustPred(t, w))
	}
	return impl
}

func TestEvaluateSimpleImpl(t *testing.T) {
	s := newSolver(t, implFrom(t, "impl_display_int", "Display", []string{"int"}, nil))
	inf := infer.New(types.ModeFixpoint)

	res, err := s.Evaluate(inf, goal(t, "Display(int)", types.Env{}), false)
	require.NoError(t, err)
	require.True(t, res.Certainty.IsYes())
}

func TestEvaluateNoImplFails(t *testing.T) {
	s := newSolver(t)
	inf := infer.New(types.ModeFixpoint)

	res, err := s.Evaluate(inf, goal(t, "Display(int)", types.Env{}), true)
	require.ErrorIs(t, err, types.ErrNoSolution)
	require.NotNil(t, res.Tree)
	require.True(t, res.Tree.NoSolution)
	require.Empty(t, res.Tree.Candidates)
}

func TestEvaluateBindsGoalVariable(t *testing.T) {
	s := newSolver(t, implFrom(t, "impl_default_int", "Default", []string{"int"}, nil))
	inf := infer.New(types.ModeFixpoint)

	res, err := s.Evaluate(inf, goal(t, "Default(T)", types.Env{}), false)
	require.NoError(t, err)
	require.True(t, res.Changed, "committing the single impl must bind T")
	require.Equal(t, "/int", inf.ResolveTerm(ast.Variable{Symbol: "T"}).String())
}

func TestEvaluateAmbiguousLeavesStateUntouched(t *testing.T) {
	s := newSolver(t,
		implFrom(t, "impl_default_int", "Default", []string{"int"}, nil),
		implFrom(t, "impl_default_str", "Default", []string{"str"}, nil),
	)
	inf := infer.New(types.ModeFixpoint)

	res, err := s.Evaluate(inf, goal(t, "Default(T)", types.Env{}), true)
	require.NoError(t, err)
	require.Equal(t, types.CertaintyAmbiguity, res.Certainty.Kind)
	require.False(t, res.Changed, "ambiguity must not commit bindings")
	require.Len(t, res.Tree.Candidates, 2)

	// T must still be unbound.
	v := ast.Variable{Symbol: "T"}
	require.Equal(t, v.String(), inf.ResolveTerm(v).String())
}

func TestEvaluateWhereClauseFailure(t *testing.T) {
	s := newSolver(t,
		implFrom(t, "impl_display_vec", "Display", []string{"vec(T)"}, []string{"Display(T)"}),
		implFrom(t, "impl_display_int", "Display", []string{"int"}, nil),
	)
	inf := infer.New(types.ModeFixpoint)

	// vec(int) holds through the recursive where-clause.
	_, err := s.Evaluate(inf, goal(t, "Display(vec(int))", types.Env{}), false)
	require.NoError(t, err)

	// vec(str) fails because Display(str) has no impl.
	res, err := s.Evaluate(inf, goal(t, "Display(vec(str))", types.Env{}), true)
	require.ErrorIs(t, err, types.ErrNoSolution)
	require.Len(t, res.Tree.Candidates, 1)
	nested := res.Tree.Candidates[0].Nested
	require.Len(t, nested, 1)
	require.Equal(t, types.SourceImplWhereBound, nested[0].Source)
	require.True(t, nested[0].Node.NoSolution)
}

func TestEvaluateAssumptionDischargesGoal(t *testing.T) {
	s := newSolver(t)
	inf := infer.New(types.ModeFixpoint)
	atom, err := ParseAtom("Display(T)")
	require.NoError(t, err)
	env := types.Env{}.WithAssumptions(atom)

	_, err = s.Evaluate(inf, goal(t, "Display(T)", env), false)
	require.NoError(t, err)
}

func TestEvaluateBuiltinStructural(t *testing.T) {
	s := newSolver(t)
	s.RegisterBuiltin("Clone", StructuralRule("Clone"))
	inf := infer.New(types.ModeFixpoint)

	// Constants hold structurally.
	_, err := s.Evaluate(inf, goal(t, "Clone(pair(int, str))", types.Env{}), false)
	require.NoError(t, err)

	// Unbound variables leave the goal ambiguous.
	res, err := s.Evaluate(inf, goal(t, "Clone(X)", types.Env{}), false)
	require.NoError(t, err)
	require.Equal(t, types.CertaintyAmbiguity, res.Certainty.Kind)
}

func TestEvaluateProjection(t *testing.T) {
	impl := implFrom(t, "impl_iter_list", "Iterator", []string{"list(T)"}, nil)
	impl.Bindings = map[string]ast.BaseTerm{"Item": mustTerm(t, "T")}
	s := newSolver(t, impl)
	inf := infer.New(types.ModeFixpoint)

	res, err := s.Evaluate(inf, goal(t, "Iterator::Item(list(int)) == U", types.Env{}), false)
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Equal(t, "/int", inf.ResolveTerm(ast.Variable{Symbol: "U"}).String())
}

func TestEvaluateProjectionMismatch(t *testing.T) {
	impl := implFrom(t, "impl_iter_list", "Iterator", []string{"list(T)"}, nil)
	impl.Bindings = map[string]ast.BaseTerm{"Item": mustTerm(t, "T")}
	s := newSolver(t, impl)
	inf := infer.New(types.ModeFixpoint)

	_, err := s.Evaluate(inf, goal(t, "Iterator::Item(list(int)) == str", types.Env{}), false)
	require.ErrorIs(t, err, types.ErrNoSolution)
}

func TestEvaluateSubtypeAndCoerce(t *testing.T) {
	s := newSolver(t)
	inf := infer.New(types.ModeFixpoint)

	_, err := s.Evaluate(inf, goal(t, "X <: int", types.Env{}), false)
	require.NoError(t, err)
	require.Equal(t, "/int", inf.ResolveTerm(ast.Variable{Symbol: "X"}).String())

	_, err = s.Evaluate(inf, goal(t, "int ~> str", types.Env{}), false)
	require.ErrorIs(t, err, types.ErrNoSolution)
}

func TestEvaluateRelateFailureLeavesStateClean(t *testing.T) {
	s := newSolver(t)
	inf := infer.New(types.ModeFixpoint)

	// The first components unify before the second pair clashes; the
	// speculative X binding must not survive the failure.
	res, err := s.Evaluate(inf, goal(t, "pair(X, int) <: pair(str, str)", types.Env{}), false)
	require.ErrorIs(t, err, types.ErrNoSolution)
	require.False(t, res.Changed)
	require.Equal(t, "X", inf.ResolveTerm(ast.Variable{Symbol: "X"}).String())
	require.EqualValues(t, 0, inf.Mutations())
}

func TestEvaluateDynCompatible(t *testing.T) {
	s := newSolver(t)
	s.MarkDynUnsafe("Sized")
	inf := infer.New(types.ModeFixpoint)

	_, err := s.Evaluate(inf, goal(t, "dyn_compatible(Draw)", types.Env{}), false)
	require.NoError(t, err)

	_, err = s.Evaluate(inf, goal(t, "dyn_compatible(Sized)", types.Env{}), false)
	require.ErrorIs(t, err, types.ErrNoSolution)
}

func TestEvaluateHigherRanked(t *testing.T) {
	s := newSolver(t, implFrom(t, "impl_ref_any", "Ref", []string{"T"}, nil))
	inf := infer.New(types.ModeFixpoint)

	res, err := s.Evaluate(inf, goal(t, "forall<A> Ref(A)", types.Env{}), true)
	require.NoError(t, err)
	require.Len(t, res.Tree.Candidates, 1)
	nested := res.Tree.Candidates[0].Nested
	require.Len(t, nested, 1)
	require.Equal(t, types.SourceInstantiateHigherRanked, nested[0].Source)
}

func TestEvaluateDepthOverflow(t *testing.T) {
	// Wrap(box(T)) requires Wrap(box(box(T))): an ever-deepening chain.
	s := New(Config{DepthLimit: 8})
	require.NoError(t, s.RegisterImpl(implFrom(t, "impl_wrap", "Wrap",
		[]string{"T"}, []string{"Wrap(box(T))"})))
	inf := infer.New(types.ModeFixpoint)

	res, err := s.Evaluate(inf, goal(t, "Wrap(int)", types.Env{}), false)
	require.NoError(t, err)
	require.Equal(t, types.CertaintyOverflow, res.Certainty.Kind)
	require.True(t, res.Certainty.SuggestIncreasingLimit)
}

func TestEvaluateCarriesObligationDepth(t *testing.T) {
	s := New(Config{DepthLimit: 4})
	require.NoError(t, s.RegisterImpl(implFrom(t, "impl_ok", "Ok", []string{"int"}, nil)))
	inf := infer.New(types.ModeFixpoint)

	ob := goal(t, "Ok(int)", types.Env{})
	ob.Depth = 10
	res, err := s.Evaluate(inf, ob, false)
	require.NoError(t, err)
	require.Equal(t, types.CertaintyOverflow, res.Certainty.Kind)
}

func TestRegisterImplValidation(t *testing.T) {
	s := New(DefaultConfig())
	require.Error(t, s.RegisterImpl(Impl{Trait: "Display"}))
	require.Error(t, s.RegisterImpl(Impl{ID: "x"}))
	require.NoError(t, s.RegisterImpl(Impl{ID: "x", Trait: "Display"}))
	err := s.RegisterImpl(Impl{ID: "x", Trait: "Debug"})
	require.Error(t, err)
	require.False(t, errors.Is(err, types.ErrNoSolution))
}

// Binding-only variables must freshen in a stable order so identical
// evaluations resolve to identical variable names.
func TestImplFresheningDeterministic(t *testing.T) {
	resolve := func() string {
		impl := implFrom(t, "impl_iter_list", "Iterator", []string{"list(T)"}, nil)
		impl.Bindings = map[string]ast.BaseTerm{
			"Item": mustTerm(t, "pair(W, M)"),
			"Tag":  mustTerm(t, "G"),
		}
		s := newSolver(t, impl)
		inf := infer.New(types.ModeFixpoint)
		_, err := s.Evaluate(inf, goal(t, "Iterator::Item(list(int)) == U", types.Env{}), false)
		require.NoError(t, err)
		return inf.ResolveTerm(ast.Variable{Symbol: "U"}).String()
	}

	first := resolve()
	for i := 0; i < 16; i++ {
		require.Equal(t, first, resolve())
	}
}

func TestWhereClausesDeclarationOrder(t *testing.T) {
	impl := implFrom(t, "impl_both", "Both", []string{"T"},
		[]string{"First(T)", "Second(T)"})
	s := newSolver(t, impl)

	clauses := s.WhereClauses("impl_both")
	require.Len(t, clauses, 2)
	require.Equal(t, "First(T)", clauses[0].String())
	require.Equal(t, "Second(T)", clauses[1].String())
	require.Nil(t, s.WhereClauses("missing"))
}

func TestImplFreshening(t *testing.T) {
	// Two goals against the same impl must not share the impl's T.
	s := newSolver(t, implFrom(t, "impl_id", "Same", []string{"T", "T"}, nil))
	inf := infer.New(types.ModeFixpoint)

	_, err := s.Evaluate(inf, goal(t, "Same(int, int)", types.Env{}), false)
	require.NoError(t, err)
	_, err = s.Evaluate(inf, goal(t, "Same(str, str)", types.Env{}), false)
	require.NoError(t, err)
	_, err = s.Evaluate(inf, goal(t, "Same(int, str)", types.Env{}), false)
	require.ErrorIs(t, err, types.ErrNoSolution)
}
