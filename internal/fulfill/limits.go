package fulfill

// Limits bounds the work one engine may do.
type Limits struct {
	// MaxRounds caps fixpoint iterations. Exceeding it quarantines the
	// obligations that would still make progress and reports them as
	// overflow ambiguities instead of looping forever.
	MaxRounds int
}

// DefaultLimits returns production defaults.
func DefaultLimits() Limits {
	return Limits{MaxRounds: 64}
}
