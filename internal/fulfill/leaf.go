package fulfill

import (
	"entail/internal/logging"
	"entail/internal/types"
)

// findBestLeaf resolves the root obligation as far as currently possible,
// re-evaluates it inside a probe to capture a proof tree, and walks the
// tree looking for the sharpest failing subgoal to blame.
//
// considerAmbiguities selects which subgoals are blameworthy: for disproved
// roots, only failing subgoals are pursued; for stalled roots, only the
// ambiguous ones.
func findBestLeaf(inf types.Inference, oracle types.Oracle, root types.Obligation, considerAmbiguities bool) types.Obligation {
	root = inf.ResolveObligation(root)

	var tree *types.ProofNode
	_ = inf.Probe(func() error {
		res, _ := oracle.Evaluate(inf, root, true)
		tree = res.Tree
		return nil
	})
	if tree == nil {
		logging.DiagDebug("no proof tree for %s, blaming root", root.Predicate)
		return root
	}
	return descend(oracle, root, tree, considerAmbiguities)
}

// descend follows the single-candidate spine of the proof tree. A goal with
// zero or several candidates halts descent: with multiple ways to fail,
// none is more correct to blame than the current level. Only trait-shaped
// goals carry candidates worth descending through.
func descend(oracle types.Oracle, current types.Obligation, node *types.ProofNode, considerAmbiguities bool) types.Obligation {
	if len(node.Candidates) != 1 || !node.Predicate.IsTraitShaped() {
		return current
	}
	cand := node.Candidates[0]

	// whereIdx counts ImplWhereBound children only. Misc children are
	// skipped but impl where-clause attribution must still line up with the
	// impl's declaration order, so the counter advances before the
	// blameworthiness check.
	whereIdx := 0
	for _, ng := range cand.Nested {
		switch ng.Source {
		case types.SourceMisc:
			continue
		case types.SourceImplWhereBound:
			idx := whereIdx
			whereIdx++
			if !blameworthy(ng.Node, considerAmbiguities) {
				continue
			}
			derived := current.Derive(ng.Node.Predicate, ng.Node.Env,
				deriveCause(oracle, cand, idx, current))
			return descend(oracle, derived, ng.Node, considerAmbiguities)
		case types.SourceInstantiateHigherRanked:
			if !blameworthy(ng.Node, considerAmbiguities) {
				continue
			}
			// Stripping a quantifier adds no attribution of its own.
			derived := current.Derive(ng.Node.Predicate, ng.Node.Env, current.Cause)
			return descend(oracle, derived, ng.Node, considerAmbiguities)
		}
	}
	return current
}

// blameworthy reports whether a nested goal is the reason for its parent's
// verdict: a failure when the root was disproved, an undecided goal when
// the root stalled. Proven subgoals are never pursued.
func blameworthy(n *types.ProofNode, considerAmbiguities bool) bool {
	if n == nil {
		return false
	}
	if considerAmbiguities {
		return !n.NoSolution && !n.Certainty.IsYes()
	}
	return n.NoSolution
}

// deriveCause synthesizes the cause for a subgoal reached through a
// candidate. Impl candidates cite the where-clause by declaration index
// when one exists at that index; built-in candidates attach a generic
// built-in derivation; anything else inherits the parent cause.
func deriveCause(oracle types.Oracle, cand *types.Candidate, whereIdx int, parent types.Obligation) *types.Cause {
	switch cand.Kind {
	case types.CandidateImpl:
		if clauses := oracle.WhereClauses(cand.ImplID); whereIdx < len(clauses) {
			parentTrait := parent.Predicate
			return &types.Cause{
				Kind:        types.CauseImplDerived,
				Parent:      parent.Cause,
				ImplID:      cand.ImplID,
				ClauseIndex: whereIdx,
				ParentTrait: &parentTrait,
			}
		}
	case types.CandidateBuiltin:
		parentTrait := parent.Predicate
		return &types.Cause{
			Kind:        types.CauseBuiltinDerived,
			Parent:      parent.Cause,
			ClauseIndex: -1,
			ParentTrait: &parentTrait,
		}
	}
	return parent.Cause
}
