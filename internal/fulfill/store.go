package fulfill

import (
	"entail/internal/logging"
	"entail/internal/types"
)

// store tracks the obligations an engine still owes an answer for. pending
// obligations are retried each round; overflowed ones were quarantined as
// the cause of non-termination and are only reported, never retried.
//
// There is no deduplication: duplicate logical obligations are legal and
// tracked independently since they may carry different causes.
type store struct {
	pending    []types.Obligation
	overflowed []types.Obligation
}

func (s *store) register(ob types.Obligation) {
	s.pending = append(s.pending, ob)
}

// drainForRound empties pending and returns its previous contents.
// Obligations re-registered during the round land in the new pending slice,
// so each obligation is evaluated at most once per round.
func (s *store) drainForRound() []types.Obligation {
	batch := s.pending
	s.pending = nil
	return batch
}

// snapshot returns a read-only copy of everything still outstanding,
// pending first, then overflowed.
func (s *store) snapshot() []types.Obligation {
	out := make([]types.Obligation, 0, len(s.pending)+len(s.overflowed))
	out = append(out, s.pending...)
	out = append(out, s.overflowed...)
	return out
}

// takeAll empties both collections and returns their union, for callers
// that re-register everything against a fresh context.
func (s *store) takeAll() []types.Obligation {
	out := s.snapshot()
	s.pending = nil
	s.overflowed = nil
	return out
}

// quarantineOverflowed re-evaluates every pending obligation inside one
// speculative region and moves into overflowed exactly those that would
// still make progress. Obligations reporting no change (or a hard error)
// stay pending: they are stalled, not non-terminating, and are classified
// separately.
func (s *store) quarantineOverflowed(inf types.Inference, oracle types.Oracle) {
	var stalled, looping []types.Obligation
	_ = inf.Probe(func() error {
		for _, ob := range s.pending {
			res, err := oracle.Evaluate(inf, ob, false)
			if err == nil && res.Changed {
				looping = append(looping, ob)
			} else {
				stalled = append(stalled, ob)
			}
		}
		return nil
	})
	s.pending = stalled
	s.overflowed = append(s.overflowed, looping...)
	logging.EngineDebug("quarantined %d obligations as overflowed, %d left pending",
		len(looping), len(stalled))
}
