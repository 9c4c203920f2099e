package model

// Selector chooses a provider for each work unit under a fairness policy.
// Implementations own their mutable state (usage counts, rotation order)
// and must be safe for concurrent queries.
type Selector interface {
	// Pick returns the provider the next work unit should use and
	// records the selection.
	Pick() (Provider, error)

	// Usage returns a copy of the per-provider selection counts.
	Usage() map[string]uint64
}
