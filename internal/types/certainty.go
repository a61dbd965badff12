package types

import (
	"errors"
	"fmt"
)

// ErrNoSolution is the oracle verdict that a goal is disproved: no rule can
// ever satisfy it. It is terminal; the engine never retries such a goal.
var ErrNoSolution = errors.New("no solution")

// CertaintyKind is the outcome class of one oracle evaluation.
type CertaintyKind int

const (
	// CertaintyYes means the goal was proven.
	CertaintyYes CertaintyKind = iota
	// CertaintyAmbiguity means the goal is undecidable with current
	// information but might resolve once more inference variables bind.
	CertaintyAmbiguity
	// CertaintyOverflow means the proof search exceeded its depth or size
	// budget before reaching a verdict.
	CertaintyOverflow
)

// Certainty is the verdict of one oracle evaluation: proven, or maybe-true
// with a reason.
type Certainty struct {
	Kind CertaintyKind

	// SuggestIncreasingLimit is meaningful for CertaintyOverflow only: it
	// hints whether raising the search budget might let the goal resolve.
	SuggestIncreasingLimit bool
}

// Yes is the proven verdict.
func Yes() Certainty { return Certainty{Kind: CertaintyYes} }

// Ambiguous is the undecidable-for-now verdict.
func Ambiguous() Certainty { return Certainty{Kind: CertaintyAmbiguity} }

// Overflow is the budget-exhausted verdict.
func Overflow(suggestIncreasingLimit bool) Certainty {
	return Certainty{Kind: CertaintyOverflow, SuggestIncreasingLimit: suggestIncreasingLimit}
}

// IsYes reports whether the goal was proven outright.
func (c Certainty) IsYes() bool { return c.Kind == CertaintyYes }

// Meet combines the certainty of two subgoals into the certainty of their
// conjunction: overflow dominates ambiguity, which dominates yes.
func (c Certainty) Meet(other Certainty) Certainty {
	switch {
	case c.Kind == CertaintyOverflow || other.Kind == CertaintyOverflow:
		return Overflow(c.SuggestIncreasingLimit || other.SuggestIncreasingLimit)
	case c.Kind == CertaintyAmbiguity || other.Kind == CertaintyAmbiguity:
		return Ambiguous()
	default:
		return Yes()
	}
}

func (c Certainty) String() string {
	switch c.Kind {
	case CertaintyYes:
		return "yes"
	case CertaintyAmbiguity:
		return "maybe(ambiguity)"
	case CertaintyOverflow:
		return fmt.Sprintf("maybe(overflow, suggest_increasing_limit=%v)", c.SuggestIncreasingLimit)
	default:
		return fmt.Sprintf("certainty(%d)", int(c.Kind))
	}
}

// EvalResult is what the oracle returns for one evaluation. Changed reports
// whether shared inference state was mutated, which the engine uses to decide
// whether another fixpoint round is worthwhile. Tree is populated only when
// proof capture was requested; it is present even when the evaluation failed
// with ErrNoSolution so diagnostics can navigate the failed search.
type EvalResult struct {
	Changed   bool
	Certainty Certainty
	Tree      *ProofNode
}
