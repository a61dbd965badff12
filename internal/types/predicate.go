// Package types holds the shared value types and capability interfaces of the
// entail fulfillment engine: predicates over Mangle terms, obligations with
// their cause chains, evaluation certainty, and the proof tree produced by a
// solver oracle.
package types

import (
	"fmt"
	"strings"

	"github.com/google/mangle/ast"
)

// PredicateKind discriminates the logical shape of a predicate. The error
// classifier maps each shape to a reportable error code, so adding a kind
// here requires extending the classifier as well.
type PredicateKind int

const (
	// KindTrait requires that some rule (impl, builtin, or assumption)
	// proves the goal atom.
	KindTrait PredicateKind = iota
	// KindProjection requires an associated-alias value to equal a term.
	KindProjection
	// KindNormalizesTo requires an alias to normalize to a term.
	KindNormalizesTo
	// KindAliasRelate requires two alias terms to relate after normalization.
	KindAliasRelate
	// KindSubtype requires Left to be a subtype of Right.
	KindSubtype
	// KindCoerce requires Left to coerce to Right.
	KindCoerce
	// KindDynCompatible requires the trait to be usable as a dynamic object.
	KindDynCompatible
	// KindAmbiguous is a predicate that can never be decided; it always
	// evaluates to maybe-ambiguous.
	KindAmbiguous
	// KindConstEquate requires two constant terms to be equal. These goals
	// are discharged inside the solver and must never surface as a
	// top-level fulfillment error.
	KindConstEquate
)

// String returns a stable lowercase name for the kind.
func (k PredicateKind) String() string {
	switch k {
	case KindTrait:
		return "trait"
	case KindProjection:
		return "projection"
	case KindNormalizesTo:
		return "normalizes_to"
	case KindAliasRelate:
		return "alias_relate"
	case KindSubtype:
		return "subtype"
	case KindCoerce:
		return "coerce"
	case KindDynCompatible:
		return "dyn_compatible"
	case KindAmbiguous:
		return "ambiguous"
	case KindConstEquate:
		return "const_equate"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Predicate is a single logical requirement. Which fields are meaningful
// depends on Kind:
//
//   - KindTrait, KindDynCompatible: Atom is the goal, e.g. Display(vec(T)).
//   - KindProjection, KindNormalizesTo: Alias is the alias head, Right the
//     term it must equal.
//   - KindAliasRelate, KindSubtype, KindCoerce, KindConstEquate: Left and
//     Right are the related terms.
//
// A non-empty Binder makes the predicate universally quantified over those
// variables; the solver instantiates them with fresh inference variables
// before inspecting the body.
//
// Predicates are immutable values. Transformations return a rewritten copy.
type Predicate struct {
	Kind   PredicateKind
	Atom   ast.Atom
	Alias  ast.Atom
	Left   ast.BaseTerm
	Right  ast.BaseTerm
	Binder []ast.Variable
}

// NewTrait builds a trait predicate requiring trait(args...) to be provable.
func NewTrait(trait string, args ...ast.BaseTerm) Predicate {
	return Predicate{
		Kind: KindTrait,
		Atom: ast.Atom{
			Predicate: ast.PredicateSym{Symbol: trait, Arity: len(args)},
			Args:      args,
		},
	}
}

// NewSubtype builds a requirement that a is a subtype of b.
func NewSubtype(a, b ast.BaseTerm) Predicate {
	return Predicate{Kind: KindSubtype, Left: a, Right: b}
}

// NewCoerce builds a requirement that from coerces to to.
func NewCoerce(from, to ast.BaseTerm) Predicate {
	return Predicate{Kind: KindCoerce, Left: from, Right: to}
}

// NewProjection builds a requirement that the alias head equals term.
// The alias predicate symbol carries the trait and associated name joined
// with "::", e.g. Iterator::Item.
func NewProjection(alias ast.Atom, term ast.BaseTerm) Predicate {
	return Predicate{Kind: KindProjection, Alias: alias, Right: term}
}

// NewConstEquate builds a constant-equality side condition.
func NewConstEquate(a, b ast.BaseTerm) Predicate {
	return Predicate{Kind: KindConstEquate, Left: a, Right: b}
}

// ForAll wraps p in a universal quantifier over vars.
func ForAll(vars []ast.Variable, p Predicate) Predicate {
	p.Binder = append(append([]ast.Variable{}, p.Binder...), vars...)
	return p
}

// TraitName returns the trait symbol for trait-shaped predicates and the
// empty string otherwise.
func (p Predicate) TraitName() string {
	switch p.Kind {
	case KindTrait, KindDynCompatible:
		return p.Atom.Predicate.Symbol
	}
	return ""
}

// IsTraitShaped reports whether the leaf extractor may recurse through this
// predicate's proof candidates.
func (p Predicate) IsTraitShaped() bool {
	return p.Kind == KindTrait
}

// Map returns a copy of p with f applied to every term it carries. Binder
// variables are left untouched; they are quantified, not free.
func (p Predicate) Map(f func(ast.BaseTerm) ast.BaseTerm) Predicate {
	out := p
	out.Atom = mapAtom(p.Atom, f)
	out.Alias = mapAtom(p.Alias, f)
	if p.Left != nil {
		out.Left = f(p.Left)
	}
	if p.Right != nil {
		out.Right = f(p.Right)
	}
	return out
}

func mapAtom(a ast.Atom, f func(ast.BaseTerm) ast.BaseTerm) ast.Atom {
	if len(a.Args) == 0 {
		return a
	}
	args := make([]ast.BaseTerm, len(a.Args))
	for i, arg := range a.Args {
		args[i] = f(arg)
	}
	return ast.Atom{Predicate: a.Predicate, Args: args}
}

// String renders the predicate for diagnostics.
func (p Predicate) String() string {
	var body string
	switch p.Kind {
	case KindTrait:
		body = p.Atom.String()
	case KindDynCompatible:
		body = fmt.Sprintf("dyn_compatible(%s)", p.Atom.Predicate.Symbol)
	case KindProjection, KindNormalizesTo:
		body = fmt.Sprintf("%s == %s", p.Alias.String(), termString(p.Right))
	case KindAliasRelate:
		body = fmt.Sprintf("%s ~~ %s", termString(p.Left), termString(p.Right))
	case KindSubtype:
		body = fmt.Sprintf("%s <: %s", termString(p.Left), termString(p.Right))
	case KindCoerce:
		body = fmt.Sprintf("%s ~> %s", termString(p.Left), termString(p.Right))
	case KindConstEquate:
		body = fmt.Sprintf("%s === %s", termString(p.Left), termString(p.Right))
	case KindAmbiguous:
		body = "ambiguous"
	default:
		body = p.Kind.String()
	}
	if len(p.Binder) == 0 {
		return body
	}
	names := make([]string, len(p.Binder))
	for i, v := range p.Binder {
		names[i] = v.Symbol
	}
	return fmt.Sprintf("forall<%s> %s", strings.Join(names, ", "), body)
}

func termString(t ast.BaseTerm) string {
	if t == nil {
		return "_"
	}
	return t.String()
}
