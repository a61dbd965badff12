package types

import "github.com/google/mangle/ast"

// SolverMode tags how an inference context expects its goals to be driven.
// A fulfillment engine only works against a context configured for
// fixpoint-style solving; binding it to anything else is a programming error.
type SolverMode int

const (
	// ModeFixpoint drives every obligation to a fixpoint through repeated
	// oracle rounds. This is the only mode the fulfillment engine accepts.
	ModeFixpoint SolverMode = iota
	// ModeOneShot evaluates each goal exactly once with no re-queueing.
	ModeOneShot
)

func (m SolverMode) String() string {
	switch m {
	case ModeFixpoint:
		return "fixpoint"
	case ModeOneShot:
		return "one-shot"
	default:
		return "unknown"
	}
}

// Inference is the mutable inference context the engine and oracle share.
// It owns the substitution state, hands out a generation marker that changes
// whenever a speculative region opens or closes, and provides scoped probes
// whose bindings are discarded on every exit path.
type Inference interface {
	// SolverMode reports how this context was configured.
	SolverMode() SolverMode

	// Generation is an opaque marker of the current snapshot depth. An
	// engine records it at construction and treats any later mismatch as
	// a fatal programming error.
	Generation() int

	// Probe runs fn inside a speculative region. All bindings made within
	// are rolled back when Probe returns, whether fn succeeded, failed, or
	// panicked.
	Probe(fn func() error) error

	// ResolveTerm substitutes inference variables in t as far as currently
	// possible.
	ResolveTerm(t ast.BaseTerm) ast.BaseTerm

	// ResolvePredicate applies ResolveTerm across a predicate's terms.
	ResolvePredicate(p Predicate) Predicate

	// ResolveObligation resolves the obligation's predicate and
	// environment.
	ResolveObligation(o Obligation) Obligation

	// Unify makes a and b equal, extending the substitution. It returns an
	// error when the terms cannot be unified; no bindings are added then.
	Unify(a, b ast.BaseTerm) error

	// UnifyAll unifies two equal-length term lists pairwise under one
	// growing substitution.
	UnifyAll(left, right []ast.BaseTerm) error

	// FreshVar mints an inference variable never used before in this
	// context.
	FreshVar(hint string) ast.Variable

	// Mutations counts bindings added so far. The oracle diffs it across
	// an evaluation to report whether anything changed.
	Mutations() uint64
}

// Oracle is the external solver: given one obligation it reports progress
// and certainty, optionally capturing a navigable proof tree. A disproved
// goal returns ErrNoSolution (the result still carries the tree when
// requested). The engine assumes the oracle is deterministic for identical
// inputs and unchanged inference state.
type Oracle interface {
	Evaluate(inf Inference, ob Obligation, wantProof bool) (EvalResult, error)

	// WhereClauses returns the declared where-clauses of an impl in
	// declaration order, used to attribute derived obligations to the
	// clause that required them. Unknown impl IDs return nil.
	WhereClauses(implID string) []Predicate
}

// Inspector is an optional diagnostic sink invoked after every oracle
// evaluation with the obligation and its outcome. It must be side-effect
// free from the engine's perspective.
type Inspector func(ob Obligation, res EvalResult, err error)
