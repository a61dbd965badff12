package types

import "fmt"

// GoalSource tags why a nested goal exists within a proof candidate.
type GoalSource int

const (
	// SourceMisc marks incidental checks not worth attributing a cause to.
	// The leaf extractor skips them without halting descent.
	SourceMisc GoalSource = iota
	// SourceImplWhereBound marks the i-th where-clause of the matched
	// impl. The index is the running count of ImplWhereBound children
	// within one candidate, aligned with the impl's declared clause order.
	SourceImplWhereBound
	// SourceInstantiateHigherRanked marks the body of a universally
	// quantified goal instantiated for inspection. It inherits the parent
	// obligation's cause unchanged.
	SourceInstantiateHigherRanked
)

func (s GoalSource) String() string {
	switch s {
	case SourceMisc:
		return "misc"
	case SourceImplWhereBound:
		return "impl_where_bound"
	case SourceInstantiateHigherRanked:
		return "instantiate_higher_ranked"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// CandidateKind classifies one way the oracle tried to prove a goal.
type CandidateKind int

const (
	// CandidateImpl matched a declared impl; ImplID identifies it.
	CandidateImpl CandidateKind = iota
	// CandidateBuiltin matched a built-in structural rule.
	CandidateBuiltin
	// CandidateOther covers everything else (environment assumptions,
	// quantifier instantiation). No cause is derived through it.
	CandidateOther
)

func (k CandidateKind) String() string {
	switch k {
	case CandidateImpl:
		return "impl"
	case CandidateBuiltin:
		return "builtin"
	case CandidateOther:
		return "other"
	default:
		return fmt.Sprintf("candidate(%d)", int(k))
	}
}

// NestedGoal is one subgoal a candidate expanded into, tagged with its
// source.
type NestedGoal struct {
	Source GoalSource
	Node   *ProofNode
}

// Candidate is one alternative the oracle tried while proving a goal.
type Candidate struct {
	Kind   CandidateKind
	ImplID string
	Nested []NestedGoal
}

// ProofNode is one evaluated goal in a proof tree. The tree is an explicit,
// finite structure built fresh per diagnostic query; Depth is carried as data
// so traversal is never open-ended.
type ProofNode struct {
	Predicate  Predicate
	Env        Env
	Depth      int
	NoSolution bool
	Certainty  Certainty
	Candidates []*Candidate
}

// Holds reports whether the goal was proven outright, in which case the leaf
// extractor has nothing to blame below it.
func (n *ProofNode) Holds() bool {
	return n != nil && !n.NoSolution && n.Certainty.IsYes()
}
