package types

import (
	"strings"
	"testing"

	"github.com/google/mangle/ast"
)

func TestPredicateString(t *testing.T) {
	intc, err := ast.Name("/int")
	if err != nil {
		t.Fatalf("name: %v", err)
	}
	v := ast.Variable{Symbol: "T"}

	cases := []struct {
		pred Predicate
		want string
	}{
		{NewTrait("Display", v), "Display(T)"},
		{NewSubtype(intc, v), "/int <: T"},
		{NewCoerce(v, intc), "T ~> /int"},
		{NewConstEquate(intc, intc), "/int === /int"},
		{ForAll([]ast.Variable{v}, NewTrait("Clone", v)), "forall<T> Clone(T)"},
	}
	for _, tc := range cases {
		if got := tc.pred.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestPredicateMapLeavesBinder(t *testing.T) {
	v := ast.Variable{Symbol: "T"}
	repl, err := ast.Name("/int")
	if err != nil {
		t.Fatalf("name: %v", err)
	}
	pred := ForAll([]ast.Variable{v}, NewTrait("Clone", v))

	mapped := pred.Map(func(tm ast.BaseTerm) ast.BaseTerm {
		if tv, ok := tm.(ast.Variable); ok && tv.Symbol == "T" {
			return repl
		}
		return tm
	})
	if len(mapped.Binder) != 1 || mapped.Binder[0].Symbol != "T" {
		t.Errorf("Map rewrote the binder: %v", mapped.Binder)
	}
	if !strings.Contains(mapped.String(), "/int") {
		t.Errorf("Map did not rewrite the body: %s", mapped)
	}
	// The original must be untouched.
	if strings.Contains(pred.String(), "/int") {
		t.Errorf("Map mutated the receiver: %s", pred)
	}
}

func TestIsTraitShaped(t *testing.T) {
	v := ast.Variable{Symbol: "T"}
	if !NewTrait("Display", v).IsTraitShaped() {
		t.Error("trait predicate not trait-shaped")
	}
	if NewSubtype(v, v).IsTraitShaped() {
		t.Error("subtype predicate reported trait-shaped")
	}
	dyn := Predicate{Kind: KindDynCompatible, Atom: ast.Atom{Predicate: ast.PredicateSym{Symbol: "Draw"}}}
	if dyn.IsTraitShaped() {
		t.Error("dyn_compatible predicate reported trait-shaped")
	}
}

func TestCertaintyMeet(t *testing.T) {
	cases := []struct {
		a, b, want Certainty
	}{
		{Yes(), Yes(), Yes()},
		{Yes(), Ambiguous(), Ambiguous()},
		{Ambiguous(), Overflow(false), Overflow(false)},
		{Overflow(true), Ambiguous(), Overflow(true)},
		{Overflow(false), Overflow(true), Overflow(true)},
	}
	for _, tc := range cases {
		if got := tc.a.Meet(tc.b); got != tc.want {
			t.Errorf("%s.Meet(%s) = %s, want %s", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestObligationDerive(t *testing.T) {
	v := ast.Variable{Symbol: "T"}
	root := NewObligation(NewTrait("Display", v), Env{}, "main.go:10")
	if !root.IsRoot() {
		t.Fatal("fresh obligation is not a root")
	}

	parentTrait := root.Predicate
	child := root.Derive(NewTrait("Debug", v), Env{}, &Cause{
		Kind:        CauseImplDerived,
		Parent:      root.Cause,
		ImplID:      "impl_display",
		ClauseIndex: 1,
		ParentTrait: &parentTrait,
	})

	if child.IsRoot() {
		t.Error("derived obligation claims to be a root")
	}
	if child.RootID != root.ID {
		t.Errorf("RootID = %s, want %s", child.RootID, root.ID)
	}
	if child.Depth != root.Depth+1 {
		t.Errorf("Depth = %d, want %d", child.Depth, root.Depth+1)
	}

	chain := child.Cause.Chain()
	if len(chain) != 2 {
		t.Fatalf("Chain() has %d steps, want 2: %v", len(chain), chain)
	}
	if !strings.Contains(chain[0], "where-clause #1 of impl_display") {
		t.Errorf("first step = %q", chain[0])
	}
	if !strings.Contains(chain[1], "main.go:10") {
		t.Errorf("last step = %q", chain[1])
	}
}
