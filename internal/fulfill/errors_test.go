package fulfill

import (
	"strings"
	"testing"

	"github.com/google/mangle/ast"
	"github.com/stretchr/testify/require"

	"entail/internal/infer"
	"entail/internal/types"
)

func name(t *testing.T, s string) ast.Constant {
	t.Helper()
	c, err := ast.Name(s)
	require.NoError(t, err)
	return c
}

func TestClassifySelectionFailure(t *testing.T) {
	inf := infer.New(types.ModeFixpoint)
	for _, pred := range []types.Predicate{
		predT("Display", "X"),
		{Kind: types.KindDynCompatible, Atom: ast.Atom{Predicate: ast.PredicateSym{Symbol: "Draw"}}},
		{Kind: types.KindAmbiguous},
	} {
		ferr := classify(inf, rootOb(pred))
		require.Equal(t, CodeSelectionFailure, ferr.Code, "predicate %s", pred)
	}
}

// Subtype a <: b reports expected=b, found=a.
func TestClassifySubtypePolarity(t *testing.T) {
	inf := infer.New(types.ModeFixpoint)
	a := name(t, "/str")
	b := name(t, "/int")

	ferr := classify(inf, rootOb(types.NewSubtype(a, b)))
	require.Equal(t, CodeSubtype, ferr.Code)
	require.Equal(t, b.String(), ferr.Expected.String())
	require.Equal(t, a.String(), ferr.Found.String())
}

// Coercion reports the opposite polarity: expected=a, found=b.
func TestClassifyCoercePolarity(t *testing.T) {
	inf := infer.New(types.ModeFixpoint)
	a := name(t, "/str")
	b := name(t, "/int")

	ferr := classify(inf, rootOb(types.NewCoerce(a, b)))
	require.Equal(t, CodeSubtype, ferr.Code)
	require.Equal(t, a.String(), ferr.Expected.String())
	require.Equal(t, b.String(), ferr.Found.String())
}

func TestClassifyResolvesTerms(t *testing.T) {
	inf := infer.New(types.ModeFixpoint)
	v := ast.Variable{Symbol: "X"}
	require.NoError(t, inf.Unify(v, name(t, "/int")))

	ferr := classify(inf, rootOb(types.NewSubtype(name(t, "/str"), v)))
	require.Equal(t, "/int", ferr.Expected.String())
}

func TestClassifyProjectionMismatch(t *testing.T) {
	inf := infer.New(types.ModeFixpoint)
	alias := ast.Atom{
		Predicate: ast.PredicateSym{Symbol: "Iterator::Item", Arity: 1},
		Args:      []ast.BaseTerm{ast.Variable{Symbol: "X"}},
	}
	ferr := classify(inf, rootOb(types.NewProjection(alias, name(t, "/int"))))
	require.Equal(t, CodeProjectionMismatch, ferr.Code)
	require.Equal(t, "/int", ferr.Expected.String())
}

func TestClassifyConstEquateIsFatal(t *testing.T) {
	inf := infer.New(types.ModeFixpoint)
	pred := types.NewConstEquate(name(t, "/a"), name(t, "/b"))
	require.Panics(t, func() { classify(inf, rootOb(pred)) })
}

func TestErrorRendering(t *testing.T) {
	root := rootOb(predT("Display", "X"))
	parentTrait := root.Predicate
	leaf := root.Derive(predT("Debug", "X"), types.Env{}, &types.Cause{
		Kind:        types.CauseImplDerived,
		Parent:      root.Cause,
		ImplID:      "impl_display",
		ClauseIndex: 1,
		ParentTrait: &parentTrait,
	})

	msg := FulfillmentError{
		Obligation: leaf,
		Root:       root,
		Code:       CodeSelectionFailure,
	}.Error()

	require.Contains(t, msg, "selection failure: unimplemented: Debug(X)")
	require.Contains(t, msg, "where-clause #1 of impl_display")
	require.Contains(t, msg, "registered at test")
	require.Contains(t, msg, "while proving Display(X)")
}

func TestOverflowErrorRendering(t *testing.T) {
	root := rootOb(predT("Recursive", "X"))
	msg := FulfillmentError{
		Obligation:             root,
		Root:                   root,
		Code:                   CodeAmbiguous,
		Overflow:               true,
		SuggestIncreasingLimit: true,
	}.Error()

	require.Contains(t, msg, "ambiguous: Recursive(X)")
	require.Contains(t, msg, "overflow")
	require.Contains(t, msg, "consider increasing the depth limit")
	require.False(t, strings.Contains(msg, "while proving"), "root errors carry no extra context line")
}
