package solver

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/mangle/ast"

	"entail/internal/types"
)

// The textual predicate grammar used by program files:
//
//	Display(vec(T))                  trait goal
//	Iterator::Item(list(T)) == T     projection equality
//	a <: B                           subtype
//	a ~> B                           coercion
//	x ~~ y                           alias relation
//	1 === 1                          const equality
//	dyn_compatible(Draw)             dynamic-dispatch compatibility
//	forall<A> Clone(A)               universally quantified goal
//
// Terms: uppercase-initial identifiers are variables, lowercase ones are
// name constants, digits are numbers, double quotes delimit strings, and
// lowercase identifiers applied to arguments are function terms.

// ParsePredicate parses one predicate in the grammar above.
func ParsePredicate(input string) (types.Predicate, error) {
	p := &parser{input: input}
	pred, err := p.predicate()
	if err != nil {
		return types.Predicate{}, fmt.Errorf("parsing %q: %w", input, err)
	}
	p.ws()
	if p.pos != len(p.input) {
		return types.Predicate{}, fmt.Errorf("parsing %q: trailing input at offset %d", input, p.pos)
	}
	return pred, nil
}

// ParseTerm parses one term in the grammar above.
func ParseTerm(input string) (ast.BaseTerm, error) {
	p := &parser{input: input}
	t, err := p.term()
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", input, err)
	}
	p.ws()
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("parsing %q: trailing input at offset %d", input, p.pos)
	}
	return t, nil
}

// ParseAtom parses a trait atom such as Display(T).
func ParseAtom(input string) (ast.Atom, error) {
	pred, err := ParsePredicate(input)
	if err != nil {
		return ast.Atom{}, err
	}
	if pred.Kind != types.KindTrait {
		return ast.Atom{}, fmt.Errorf("parsing %q: expected a trait atom, got %s", input, pred.Kind)
	}
	return pred.Atom, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) ws() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) eof() bool { return p.pos >= len(p.input) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) eat(s string) bool {
	if strings.HasPrefix(p.input[p.pos:], s) {
		p.pos += len(s)
		return true
	}
	return false
}

func (p *parser) predicate() (types.Predicate, error) {
	p.ws()
	if p.eat("forall<") {
		var binder []ast.Variable
		for {
			p.ws()
			name := p.ident()
			if name == "" || !unicode.IsUpper(rune(name[0])) {
				return types.Predicate{}, fmt.Errorf("forall binder needs uppercase variables")
			}
			binder = append(binder, ast.Variable{Symbol: name})
			p.ws()
			if p.eat(",") {
				continue
			}
			if p.eat(">") {
				break
			}
			return types.Predicate{}, fmt.Errorf("unterminated forall binder")
		}
		body, err := p.predicate()
		if err != nil {
			return types.Predicate{}, err
		}
		return types.ForAll(binder, body), nil
	}

	mark := p.pos
	name := p.qualifiedIdent()
	p.ws()
	if name != "" && p.peek() == '(' {
		switch {
		case strings.Contains(name, "::"):
			return p.projection(name)
		case name == "dyn_compatible":
			return p.dynCompatible()
		case unicode.IsUpper(rune(name[0])):
			args, err := p.argList()
			if err != nil {
				return types.Predicate{}, err
			}
			return types.NewTrait(name, args...), nil
		}
	}
	if name == "ambiguous" {
		return types.Predicate{Kind: types.KindAmbiguous}, nil
	}

	// Not a goal head: a relational predicate over two terms.
	p.pos = mark
	return p.relation()
}

func (p *parser) projection(alias string) (types.Predicate, error) {
	args, err := p.argList()
	if err != nil {
		return types.Predicate{}, err
	}
	p.ws()
	if !p.eat("==") {
		return types.Predicate{}, fmt.Errorf("projection %s needs '== term'", alias)
	}
	rhs, err := p.term()
	if err != nil {
		return types.Predicate{}, err
	}
	atom := ast.Atom{
		Predicate: ast.PredicateSym{Symbol: alias, Arity: len(args)},
		Args:      args,
	}
	return types.NewProjection(atom, rhs), nil
}

func (p *parser) dynCompatible() (types.Predicate, error) {
	if !p.eat("(") {
		return types.Predicate{}, fmt.Errorf("dyn_compatible needs a trait argument")
	}
	p.ws()
	trait := p.ident()
	p.ws()
	if trait == "" || !p.eat(")") {
		return types.Predicate{}, fmt.Errorf("dyn_compatible needs a single trait name")
	}
	return types.Predicate{
		Kind: types.KindDynCompatible,
		Atom: ast.Atom{Predicate: ast.PredicateSym{Symbol: trait, Arity: 0}},
	}, nil
}

func (p *parser) relation() (types.Predicate, error) {
	left, err := p.term()
	if err != nil {
		return types.Predicate{}, err
	}
	p.ws()
	switch {
	case p.eat("<:"):
		right, err := p.term()
		if err != nil {
			return types.Predicate{}, err
		}
		return types.NewSubtype(left, right), nil
	case p.eat("~>"):
		right, err := p.term()
		if err != nil {
			return types.Predicate{}, err
		}
		return types.NewCoerce(left, right), nil
	case p.eat("~~"):
		right, err := p.term()
		if err != nil {
			return types.Predicate{}, err
		}
		return types.Predicate{Kind: types.KindAliasRelate, Left: left, Right: right}, nil
	case p.eat("==="):
		right, err := p.term()
		if err != nil {
			return types.Predicate{}, err
		}
		return types.NewConstEquate(left, right), nil
	}
	return types.Predicate{}, fmt.Errorf("expected a relation operator at offset %d", p.pos)
}

func (p *parser) argList() ([]ast.BaseTerm, error) {
	if !p.eat("(") {
		return nil, fmt.Errorf("expected '(' at offset %d", p.pos)
	}
	p.ws()
	if p.eat(")") {
		return nil, nil
	}
	var args []ast.BaseTerm
	for {
		t, err := p.term()
		if err != nil {
			return nil, err
		}
		args = append(args, t)
		p.ws()
		if p.eat(",") {
			continue
		}
		if p.eat(")") {
			return args, nil
		}
		return nil, fmt.Errorf("unterminated argument list at offset %d", p.pos)
	}
}

func (p *parser) term() (ast.BaseTerm, error) {
	p.ws()
	switch c := p.peek(); {
	case c == '"':
		return p.stringLit()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.numberLit()
	}
	name := p.ident()
	if name == "" {
		return nil, fmt.Errorf("expected a term at offset %d", p.pos)
	}
	if p.peek() == '(' {
		args, err := p.argList()
		if err != nil {
			return nil, err
		}
		return ast.ApplyFn{
			Function: ast.FunctionSym{Symbol: "fn:" + name, Arity: len(args)},
			Args:     args,
		}, nil
	}
	if unicode.IsUpper(rune(name[0])) || name[0] == '_' {
		return ast.Variable{Symbol: name}, nil
	}
	constant, err := ast.Name("/" + name)
	if err != nil {
		return nil, fmt.Errorf("invalid name constant %q: %w", name, err)
	}
	return constant, nil
}

func (p *parser) stringLit() (ast.BaseTerm, error) {
	start := p.pos
	p.pos++ // opening quote
	for !p.eof() && p.input[p.pos] != '"' {
		p.pos++
	}
	if p.eof() {
		return nil, fmt.Errorf("unterminated string at offset %d", start)
	}
	val := p.input[start+1 : p.pos]
	p.pos++
	return ast.String(val), nil
}

func (p *parser) numberLit() (ast.BaseTerm, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for !p.eof() && p.input[p.pos] >= '0' && p.input[p.pos] <= '9' {
		p.pos++
	}
	n, err := strconv.ParseInt(p.input[start:p.pos], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number at offset %d: %w", start, err)
	}
	return ast.Number(n), nil
}

// ident scans letters, digits and underscores.
func (p *parser) ident() string {
	start := p.pos
	for !p.eof() {
		c := rune(p.input[p.pos])
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

// qualifiedIdent additionally allows one :: separator, for alias heads.
func (p *parser) qualifiedIdent() string {
	start := p.pos
	p.ident()
	if strings.HasPrefix(p.input[p.pos:], "::") {
		p.pos += 2
		p.ident()
	}
	return p.input[start:p.pos]
}
