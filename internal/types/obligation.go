package types

import (
	"fmt"
	"strings"

	"github.com/google/mangle/ast"
	"github.com/google/uuid"
)

// Env is the environment an obligation must hold under: the set of
// assumptions (in-scope where-clauses) the solver may discharge trait goals
// against without consulting impls.
type Env struct {
	Assumptions []ast.Atom
}

// WithAssumptions returns a copy of the environment extended with extra
// assumption atoms.
func (e Env) WithAssumptions(atoms ...ast.Atom) Env {
	merged := make([]ast.Atom, 0, len(e.Assumptions)+len(atoms))
	merged = append(merged, e.Assumptions...)
	merged = append(merged, atoms...)
	return Env{Assumptions: merged}
}

// CauseKind classifies one link of an obligation's attribution chain.
type CauseKind int

const (
	// CauseRoot marks an obligation registered directly by the caller.
	CauseRoot CauseKind = iota
	// CauseImplDerived marks an obligation required by a where-clause of a
	// matched impl.
	CauseImplDerived
	// CauseBuiltinDerived marks an obligation required by a built-in rule.
	CauseBuiltinDerived
)

// Cause explains why an obligation exists. Derived causes chain back to the
// root cause through Parent.
type Cause struct {
	Kind CauseKind

	// Origin is a caller-supplied label for root causes (a source location,
	// a goal name, anything the caller wants echoed back in diagnostics).
	Origin string

	Parent *Cause

	// ImplID identifies the matched impl for CauseImplDerived.
	ImplID string
	// ClauseIndex is the zero-based index of the impl where-clause that
	// required the obligation. It is -1 for CauseBuiltinDerived.
	ClauseIndex int
	// ParentTrait is the trait predicate whose proof required this
	// obligation.
	ParentTrait *Predicate
}

// RootCause builds the cause for a caller-registered obligation.
func RootCause(origin string) *Cause {
	return &Cause{Kind: CauseRoot, Origin: origin, ClauseIndex: -1}
}

// Root walks the chain to the originating cause.
func (c *Cause) Root() *Cause {
	for c.Parent != nil {
		c = c.Parent
	}
	return c
}

// Chain renders the derivation steps from this cause back to the root,
// outermost first.
func (c *Cause) Chain() []string {
	var steps []string
	for cur := c; cur != nil; cur = cur.Parent {
		switch cur.Kind {
		case CauseImplDerived:
			steps = append(steps, fmt.Sprintf(
				"required by where-clause #%d of %s (for %s)",
				cur.ClauseIndex, cur.ImplID, parentTraitString(cur)))
		case CauseBuiltinDerived:
			steps = append(steps, fmt.Sprintf(
				"required by a built-in rule (for %s)", parentTraitString(cur)))
		case CauseRoot:
			if cur.Origin != "" {
				steps = append(steps, fmt.Sprintf("registered at %s", cur.Origin))
			}
		}
	}
	return steps
}

func parentTraitString(c *Cause) string {
	if c.ParentTrait == nil {
		return "?"
	}
	return c.ParentTrait.String()
}

// String joins the chain for one-line diagnostics.
func (c *Cause) String() string {
	return strings.Join(c.Chain(), ", ")
}

// Obligation is a predicate that must be proven under an environment,
// together with the attribution chain explaining its existence and a
// recursion depth. Obligations are immutable; derivation clones and rewrites.
type Obligation struct {
	// ID is unique per obligation. RootID is the ID of the originally
	// registered ancestor; for a root obligation the two are equal.
	ID     string
	RootID string

	Predicate Predicate
	Env       Env
	Cause     *Cause
	Depth     int
}

// NewObligation creates a root obligation as registered by a caller.
// origin is echoed in diagnostics (see RootCause).
func NewObligation(pred Predicate, env Env, origin string) Obligation {
	id := uuid.NewString()
	return Obligation{
		ID:        id,
		RootID:    id,
		Predicate: pred,
		Env:       env,
		Cause:     RootCause(origin),
	}
}

// Derive clones the obligation into a child with a new predicate, cause and
// an incremented recursion depth. The root identity is preserved.
func (o Obligation) Derive(pred Predicate, env Env, cause *Cause) Obligation {
	return Obligation{
		ID:        uuid.NewString(),
		RootID:    o.RootID,
		Predicate: pred,
		Env:       env,
		Cause:     cause,
		Depth:     o.Depth + 1,
	}
}

// IsRoot reports whether this is the obligation the caller registered, as
// opposed to one synthesized during proof-tree descent.
func (o Obligation) IsRoot() bool {
	return o.ID == o.RootID
}

func (o Obligation) String() string {
	return o.Predicate.String()
}
