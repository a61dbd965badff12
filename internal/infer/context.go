// Package infer provides the reference mutable inference context for the
// fulfillment engine: a unionfind-backed substitution with scoped speculative
// probes, a generation marker tied to the open-probe depth, and
// resolve-variables-as-far-as-possible.
//
// The substitution is persistent: extending it yields a new value and leaves
// the old one untouched, so a probe snapshot is a plain value copy.
package infer

import (
	"fmt"

	"github.com/google/mangle/ast"
	"github.com/google/mangle/unionfind"

	"entail/internal/logging"
	"entail/internal/types"
)

// resolveRounds bounds iterative substitution so a malformed cyclic binding
// cannot loop forever.
const resolveRounds = 64

type frame struct {
	subst  unionfind.UnionFind
	writes uint64
}

// Context implements types.Inference.
type Context struct {
	mode   types.SolverMode
	subst  unionfind.UnionFind
	frames []frame
	writes uint64
	varSeq int

	log *logging.Logger
}

var _ types.Inference = (*Context)(nil)

// New creates an empty inference context configured for the given solver
// mode.
func New(mode types.SolverMode) *Context {
	return &Context{
		mode:  mode,
		subst: unionfind.New(),
		log:   logging.Get(logging.CategoryProbe),
	}
}

// SolverMode reports the mode the context was configured with.
func (c *Context) SolverMode() types.SolverMode { return c.mode }

// Generation returns the current snapshot depth. It changes whenever a
// speculative region opens or closes, invalidating engines bound outside it.
func (c *Context) Generation() int { return len(c.frames) }

// Mutations counts bindings committed so far. Bindings made inside a probe
// are subtracted again when the probe unwinds.
func (c *Context) Mutations() uint64 { return c.writes }

// Probe runs fn inside a speculative region. The substitution and mutation
// counter are restored on every exit path, including panics.
func (c *Context) Probe(fn func() error) error {
	c.frames = append(c.frames, frame{subst: c.subst, writes: c.writes})
	c.log.Debug("probe open (depth=%d)", len(c.frames))
	defer func() {
		top := c.frames[len(c.frames)-1]
		c.frames = c.frames[:len(c.frames)-1]
		c.subst = top.subst
		c.writes = top.writes
		c.log.Debug("probe closed (depth=%d)", len(c.frames))
	}()
	return fn()
}

// Unify makes a and b equal, extending the substitution. Function terms are
// decomposed structurally; only variable bindings go through the unionfind.
// Unify is atomic: a failure restores the substitution, so bindings from
// arguments unified before the failing one never leak into live state.
// Unifying terms that already resolve to the same thing is a no-op and does
// not count as a mutation.
func (c *Context) Unify(a, b ast.BaseTerm) error {
	saved, savedWrites := c.subst, c.writes
	if err := c.unify(a, b); err != nil {
		c.subst = saved
		c.writes = savedWrites
		return err
	}
	return nil
}

func (c *Context) unify(a, b ast.BaseTerm) error {
	ra := c.ResolveTerm(a)
	rb := c.ResolveTerm(b)
	if ra.String() == rb.String() {
		return nil
	}
	_, aVar := ra.(ast.Variable)
	_, bVar := rb.(ast.Variable)
	if aVar || bVar {
		return c.bind(ra, rb)
	}

	fa, aFn := ra.(ast.ApplyFn)
	fb, bFn := rb.(ast.ApplyFn)
	if aFn && bFn {
		if fa.Function.Symbol != fb.Function.Symbol || len(fa.Args) != len(fb.Args) {
			return fmt.Errorf("cannot unify %v with %v: constructor mismatch", ra, rb)
		}
		for i := range fa.Args {
			if err := c.unify(fa.Args[i], fb.Args[i]); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("cannot unify %v with %v", ra, rb)
}

func (c *Context) bind(ra, rb ast.BaseTerm) error {
	next, err := unionfind.UnifyTermsExtend([]ast.BaseTerm{ra}, []ast.BaseTerm{rb}, c.subst)
	if err != nil {
		return fmt.Errorf("cannot unify %v with %v: %w", ra, rb, err)
	}
	c.subst = next
	c.writes++
	return nil
}

// UnifyAll unifies two equal-length term lists pairwise under one growing
// substitution. Earlier bindings are visible to later pairs. On failure the
// substitution may already contain bindings from earlier pairs; callers that
// need atomicity wrap the call in Probe.
func (c *Context) UnifyAll(left, right []ast.BaseTerm) error {
	if len(left) != len(right) {
		return fmt.Errorf("cannot unify %d terms with %d terms", len(left), len(right))
	}
	for i := range left {
		if err := c.Unify(left[i], right[i]); err != nil {
			return err
		}
	}
	return nil
}

// FreshVar mints an inference variable unused in this context. The sequence
// is monotonic and survives probe rollback so names never collide.
func (c *Context) FreshVar(hint string) ast.Variable {
	if hint == "" {
		hint = "V"
	}
	c.varSeq++
	return ast.Variable{Symbol: fmt.Sprintf("%s_%d", hint, c.varSeq)}
}

// ResolveTerm substitutes inference variables in t as far as currently
// possible.
func (c *Context) ResolveTerm(t ast.BaseTerm) ast.BaseTerm {
	cur := t
	for i := 0; i < resolveRounds; i++ {
		next := c.substituteOnce(cur)
		if next.String() == cur.String() {
			return next
		}
		cur = next
	}
	return cur
}

func (c *Context) substituteOnce(t ast.BaseTerm) ast.BaseTerm {
	switch v := t.(type) {
	case ast.Variable:
		return c.subst.Get(v)
	case ast.ApplyFn:
		args := make([]ast.BaseTerm, len(v.Args))
		for i, arg := range v.Args {
			args[i] = c.substituteOnce(arg)
		}
		return ast.ApplyFn{Function: v.Function, Args: args}
	default:
		return t
	}
}

// ResolvePredicate applies ResolveTerm across a predicate's terms.
func (c *Context) ResolvePredicate(p types.Predicate) types.Predicate {
	return p.Map(c.ResolveTerm)
}

// ResolveObligation resolves the obligation's predicate and environment
// assumptions.
func (c *Context) ResolveObligation(o types.Obligation) types.Obligation {
	o.Predicate = c.ResolvePredicate(o.Predicate)
	if len(o.Env.Assumptions) > 0 {
		resolved := make([]ast.Atom, len(o.Env.Assumptions))
		for i, a := range o.Env.Assumptions {
			resolved[i] = resolveAtom(c, a)
		}
		o.Env = types.Env{Assumptions: resolved}
	}
	return o
}

func resolveAtom(c *Context, a ast.Atom) ast.Atom {
	if len(a.Args) == 0 {
		return a
	}
	args := make([]ast.BaseTerm, len(a.Args))
	for i, arg := range a.Args {
		args[i] = c.ResolveTerm(arg)
	}
	return ast.Atom{Predicate: a.Predicate, Args: args}
}
