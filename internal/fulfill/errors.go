package fulfill

import (
	"fmt"
	"strings"

	"github.com/google/mangle/ast"

	"entail/internal/types"
)

// ErrorCode classifies a fulfillment failure by the failing predicate's
// shape.
type ErrorCode int

const (
	// CodeSelectionFailure: no rule proves the goal.
	CodeSelectionFailure ErrorCode = iota
	// CodeProjectionMismatch: an alias equality could not be established.
	CodeProjectionMismatch
	// CodeSubtype: a directional relation (subtype or coercion) failed.
	CodeSubtype
	// CodeAmbiguous: neither proved nor disproved.
	CodeAmbiguous
)

func (c ErrorCode) String() string {
	switch c {
	case CodeSelectionFailure:
		return "selection failure: unimplemented"
	case CodeProjectionMismatch:
		return "projection mismatch"
	case CodeSubtype:
		return "subtype error"
	case CodeAmbiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// FulfillmentError reports one obligation the engine could not discharge.
// Obligation is the sharpest failing leaf found in the proof tree; Root is
// the obligation the caller originally registered, kept for provenance.
type FulfillmentError struct {
	Obligation types.Obligation
	Root       types.Obligation
	Code       ErrorCode

	// Expected and Found are set for subtype and projection codes, with
	// direction fixed per the relation's polarity.
	Expected ast.BaseTerm
	Found    ast.BaseTerm

	// Overflow marks an ambiguity caused by budget exhaustion.
	// SuggestIncreasingLimit additionally hints that raising the search
	// depth might let the goal resolve.
	Overflow               bool
	SuggestIncreasingLimit bool
}

// Error renders the failure with its cause chain.
func (e FulfillmentError) Error() string {
	var b strings.Builder
	switch e.Code {
	case CodeSubtype:
		fmt.Fprintf(&b, "subtype error: expected %s, found %s",
			termOrHole(e.Expected), termOrHole(e.Found))
	case CodeProjectionMismatch:
		fmt.Fprintf(&b, "projection mismatch: %s", e.Obligation.Predicate)
		if e.Expected != nil {
			fmt.Fprintf(&b, " (expected %s", termOrHole(e.Expected))
			if e.Found != nil {
				fmt.Fprintf(&b, ", found %s", termOrHole(e.Found))
			}
			b.WriteString(")")
		}
	case CodeAmbiguous:
		fmt.Fprintf(&b, "ambiguous: %s", e.Obligation.Predicate)
		if e.Overflow {
			b.WriteString(" (overflow")
			if e.SuggestIncreasingLimit {
				b.WriteString("; consider increasing the depth limit")
			}
			b.WriteString(")")
		}
	default:
		fmt.Fprintf(&b, "%s: %s", e.Code, e.Obligation.Predicate)
	}
	if e.Obligation.Cause != nil {
		for _, step := range e.Obligation.Cause.Chain() {
			fmt.Fprintf(&b, "\n  %s", step)
		}
	}
	if !e.Obligation.IsRoot() {
		fmt.Fprintf(&b, "\n  while proving %s", e.Root.Predicate)
	}
	return b.String()
}

// errorForNoSolution builds the error for an obligation the oracle
// disproved outright: the sharpest failing leaf is extracted from the proof
// tree and classified by predicate shape.
func (e *Engine) errorForNoSolution(inf types.Inference, root types.Obligation) FulfillmentError {
	leaf := findBestLeaf(inf, e.oracle, root, false)
	err := classify(inf, leaf)
	err.Root = inf.ResolveObligation(root)
	return err
}

// errorForStalled builds the error for an obligation that reached fixpoint
// without resolving. It re-probes once, side-effect free, to recover why
// the goal stalled. A re-probe that succeeds or errors contradicts the goal
// being stalled and is fatal.
func (e *Engine) errorForStalled(inf types.Inference, root types.Obligation) FulfillmentError {
	var res types.EvalResult
	var evalErr error
	_ = inf.Probe(func() error {
		res, evalErr = e.oracle.Evaluate(inf, root, false)
		return nil
	})

	ferr := FulfillmentError{Code: CodeAmbiguous}
	switch {
	case evalErr != nil:
		panic(fmt.Sprintf("fulfill: stalled obligation %s errored on re-probe: %v", root.Predicate, evalErr))
	case res.Certainty.IsYes():
		panic(fmt.Sprintf("fulfill: stalled obligation %s succeeded on re-probe", root.Predicate))
	case res.Certainty.Kind == types.CertaintyOverflow:
		ferr.Overflow = true
		ferr.SuggestIncreasingLimit = res.Certainty.SuggestIncreasingLimit
	}

	ferr.Obligation = findBestLeaf(inf, e.oracle, root, true)
	ferr.Root = inf.ResolveObligation(root)
	return ferr
}

// errorForOverflowed builds the error for a quarantined obligation. No
// re-probe is needed; quarantine already established it as non-terminating.
func (e *Engine) errorForOverflowed(inf types.Inference, root types.Obligation) FulfillmentError {
	return FulfillmentError{
		Obligation:             findBestLeaf(inf, e.oracle, root, true),
		Root:                   inf.ResolveObligation(root),
		Code:                   CodeAmbiguous,
		Overflow:               true,
		SuggestIncreasingLimit: true,
	}
}

// classify maps a failed leaf obligation to its error code. Const-equality
// goals are discharged inside the solver; one surfacing here is a bug.
func classify(inf types.Inference, leaf types.Obligation) FulfillmentError {
	ferr := FulfillmentError{Obligation: leaf}
	pred := leaf.Predicate
	switch pred.Kind {
	case types.KindTrait, types.KindDynCompatible, types.KindAmbiguous:
		ferr.Code = CodeSelectionFailure
	case types.KindProjection, types.KindNormalizesTo:
		ferr.Code = CodeProjectionMismatch
		if pred.Right != nil {
			ferr.Expected = inf.ResolveTerm(pred.Right)
		}
	case types.KindAliasRelate:
		ferr.Code = CodeProjectionMismatch
		ferr.Expected = resolveOrNil(inf, pred.Right)
		ferr.Found = resolveOrNil(inf, pred.Left)
	case types.KindSubtype:
		// a <: b reports a expected to be a subtype of b.
		ferr.Code = CodeSubtype
		ferr.Expected = resolveOrNil(inf, pred.Right)
		ferr.Found = resolveOrNil(inf, pred.Left)
	case types.KindCoerce:
		// Coercion direction is the opposite polarity of subtyping.
		ferr.Code = CodeSubtype
		ferr.Expected = resolveOrNil(inf, pred.Left)
		ferr.Found = resolveOrNil(inf, pred.Right)
	case types.KindConstEquate:
		panic(fmt.Sprintf("fulfill: const-equality goal %s surfaced as a fulfillment error", pred))
	default:
		ferr.Code = CodeSelectionFailure
	}
	return ferr
}

func resolveOrNil(inf types.Inference, t ast.BaseTerm) ast.BaseTerm {
	if t == nil {
		return nil
	}
	return inf.ResolveTerm(t)
}

func termOrHole(t ast.BaseTerm) string {
	if t == nil {
		return "_"
	}
	return t.String()
}
