// Package fulfill drives proof obligations to a fixpoint against a solver
// oracle. An Engine is bound at construction to one generation of a mutable
// inference context; it repeatedly evaluates its pending obligations until a
// full round produces no change, collecting errors for disproved goals and
// classifying whatever remains as ambiguity or overflow.
package fulfill

import (
	"fmt"

	"entail/internal/logging"
	"entail/internal/types"
)

// Engine tracks obligations for one inference context generation.
//
// The engine is single-threaded by design: the fixpoint loop is synchronous
// calls into the oracle, and all mutation flows through the one shared
// inference context.
type Engine struct {
	oracle      types.Oracle
	obligations store

	// usableGeneration is the context generation recorded at construction.
	// Every mutating entry point re-checks it; a mismatch means the context
	// was rolled back or advanced underneath us and continuing would corrupt
	// proof state.
	usableGeneration int

	limits    Limits
	inspector types.Inspector
	log       *logging.Logger
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLimits overrides the default work limits.
func WithLimits(l Limits) Option {
	return func(e *Engine) { e.limits = l }
}

// WithInspector installs a diagnostic sink invoked after every oracle
// evaluation. Installing one makes the engine request proof capture on each
// evaluation, which costs memory; leave it nil outside diagnostics.
func WithInspector(fn types.Inspector) Option {
	return func(e *Engine) { e.inspector = fn }
}

// New binds an engine to the context's current generation. The context must
// be configured for fixpoint solving; anything else is a programming error
// and panics.
func New(inf types.Inference, oracle types.Oracle, opts ...Option) *Engine {
	if mode := inf.SolverMode(); mode != types.ModeFixpoint {
		panic(fmt.Sprintf("fulfill: engine requires a fixpoint context, got %s", mode))
	}
	e := &Engine{
		oracle:           oracle,
		usableGeneration: inf.Generation(),
		limits:           DefaultLimits(),
		log:              logging.Get(logging.CategoryEngine),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// assertUsable panics when the context generation no longer matches the one
// the engine was built against. A stale engine would silently drop or
// duplicate obligations, so this is fatal, not recoverable.
func (e *Engine) assertUsable(inf types.Inference) {
	if g := inf.Generation(); g != e.usableGeneration {
		panic(fmt.Sprintf("fulfill: engine bound to generation %d used at generation %d",
			e.usableGeneration, g))
	}
}

// Register queues an obligation for the next fixpoint round.
func (e *Engine) Register(inf types.Inference, ob types.Obligation) {
	e.assertUsable(inf)
	e.log.Debug("register %s (depth=%d)", ob.Predicate, ob.Depth)
	e.obligations.register(ob)
}

// RunToFixpoint evaluates pending obligations round by round until a full
// round changes nothing, a goal set converges, or the round budget runs out.
// Disproved goals become errors immediately and are never retried; errors
// found in earlier rounds survive budget exhaustion.
func (e *Engine) RunToFixpoint(inf types.Inference) []FulfillmentError {
	e.assertUsable(inf)
	wantProof := e.inspector != nil

	var errs []FulfillmentError
	for i := 0; ; i++ {
		if i >= e.limits.MaxRounds {
			e.log.Warn("round budget (%d) exhausted with %d pending", e.limits.MaxRounds, len(e.obligations.pending))
			e.obligations.quarantineOverflowed(inf, e.oracle)
			return errs
		}

		changed := false
		batch := e.obligations.drainForRound()
		for _, ob := range batch {
			res, err := e.oracle.Evaluate(inf, ob, wantProof)
			if e.inspector != nil {
				e.inspector(ob, res, err)
			}
			if err != nil {
				errs = append(errs, e.errorForNoSolution(inf, ob))
				continue
			}
			if res.Changed {
				changed = true
			}
			if res.Certainty.IsYes() {
				continue
			}
			e.obligations.register(ob)
		}
		e.log.Debug("round %d: evaluated=%d changed=%v errors=%d pending=%d",
			i, len(batch), changed, len(errs), len(e.obligations.pending))
		if !changed {
			break
		}
	}
	return errs
}

// CollectRemainingErrors finalizes the engine: every obligation still
// pending is classified as an ambiguity error (re-probed in isolation to
// tell plain ambiguity from overflow), and every quarantined obligation is
// reported as an overflow ambiguity. The store is left empty.
func (e *Engine) CollectRemainingErrors(inf types.Inference) []FulfillmentError {
	e.assertUsable(inf)
	var errs []FulfillmentError
	for _, ob := range e.obligations.pending {
		errs = append(errs, e.errorForStalled(inf, ob))
	}
	for _, ob := range e.obligations.overflowed {
		errs = append(errs, e.errorForOverflowed(inf, ob))
	}
	e.obligations.pending = nil
	e.obligations.overflowed = nil
	return errs
}

// PendingSnapshot returns a read-only view of everything still outstanding,
// pending and quarantined alike. It does not consume the obligations, and
// being read-only it is not generation-checked; a stale engine may still be
// inspected.
func (e *Engine) PendingSnapshot(_ types.Inference) []types.Obligation {
	return e.obligations.snapshot()
}

// TakeUnfinished drains and returns everything outstanding so a caller can
// transplant the obligations into a fresh engine or context.
func (e *Engine) TakeUnfinished(inf types.Inference) []types.Obligation {
	e.assertUsable(inf)
	return e.obligations.takeAll()
}
