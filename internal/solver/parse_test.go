package solver

import (
	"testing"

	"github.com/google/mangle/ast"

	"entail/internal/types"
)

func TestParsePredicateShapes(t *testing.T) {
	cases := []struct {
		input string
		kind  types.PredicateKind
	}{
		{"Display(T)", types.KindTrait},
		{"Ord(pair(A, B))", types.KindTrait},
		{"Iterator::Item(list(T)) == T", types.KindProjection},
		{"x <: Y", types.KindSubtype},
		{"x ~> Y", types.KindCoerce},
		{"X ~~ vec(Y)", types.KindAliasRelate},
		{"1 === 1", types.KindConstEquate},
		{"dyn_compatible(Draw)", types.KindDynCompatible},
		{"forall<A> Clone(A)", types.KindTrait},
		{"forall<A, B> Into(A, B)", types.KindTrait},
		{"ambiguous", types.KindAmbiguous},
	}
	for _, tc := range cases {
		pred, err := ParsePredicate(tc.input)
		if err != nil {
			t.Errorf("ParsePredicate(%q): %v", tc.input, err)
			continue
		}
		if pred.Kind != tc.kind {
			t.Errorf("ParsePredicate(%q).Kind = %s, want %s", tc.input, pred.Kind, tc.kind)
		}
	}
}

func TestParsePredicateBinder(t *testing.T) {
	pred, err := ParsePredicate("forall<A, B> Into(A, B)")
	if err != nil {
		t.Fatal(err)
	}
	if len(pred.Binder) != 2 || pred.Binder[0].Symbol != "A" || pred.Binder[1].Symbol != "B" {
		t.Errorf("Binder = %v", pred.Binder)
	}
}

func TestParseTermShapes(t *testing.T) {
	cases := []struct {
		input string
		check func(ast.BaseTerm) bool
	}{
		{"T", func(tm ast.BaseTerm) bool { v, ok := tm.(ast.Variable); return ok && v.Symbol == "T" }},
		{"int", func(tm ast.BaseTerm) bool { return tm.String() == "/int" }},
		{"42", func(tm ast.BaseTerm) bool { return tm.String() == "42" }},
		{`"hello"`, func(tm ast.BaseTerm) bool { _, ok := tm.(ast.Constant); return ok }},
		{"vec(T)", func(tm ast.BaseTerm) bool {
			fn, ok := tm.(ast.ApplyFn)
			return ok && fn.Function.Symbol == "fn:vec" && len(fn.Args) == 1
		}},
		{"pair(vec(A), int)", func(tm ast.BaseTerm) bool {
			fn, ok := tm.(ast.ApplyFn)
			return ok && len(fn.Args) == 2
		}},
	}
	for _, tc := range cases {
		tm, err := ParseTerm(tc.input)
		if err != nil {
			t.Errorf("ParseTerm(%q): %v", tc.input, err)
			continue
		}
		if !tc.check(tm) {
			t.Errorf("ParseTerm(%q) = %s (%T)", tc.input, tm, tm)
		}
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"",
		"Display(T",
		"x <:",
		"forall<a> Clone(a)",
		"dyn_compatible()",
		"Display(T) trailing",
		`"unterminated`,
	}
	for _, input := range bad {
		if _, err := ParsePredicate(input); err == nil {
			t.Errorf("ParsePredicate(%q) succeeded", input)
		}
	}
}
