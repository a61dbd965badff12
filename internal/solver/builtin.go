package solver

import (
	"github.com/google/mangle/ast"

	"entail/internal/types"
)

// StructuralRule returns a built-in rule that holds for a trait when every
// constructor argument of the goal's arguments holds it too. Constants hold
// it trivially; an unresolved inference variable leaves the goal ambiguous
// so the engine re-queues it once more is known.
//
// This mirrors auto-derivable properties: clone(pair(A, B)) needs clone(A)
// and clone(B), clone("x") needs nothing, clone(V) cannot be decided yet.
func StructuralRule(trait string) BuiltinRule {
	return func(inf types.Inference, args []ast.BaseTerm) ([]types.Predicate, bool) {
		var comps []types.Predicate
		for _, arg := range args {
			switch t := inf.ResolveTerm(arg).(type) {
			case ast.Variable:
				comps = append(comps, types.Predicate{Kind: types.KindAmbiguous})
			case ast.ApplyFn:
				for _, sub := range t.Args {
					comps = append(comps, types.NewTrait(trait, sub))
				}
			}
		}
		return comps, true
	}
}
