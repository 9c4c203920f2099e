// Package balance implements the provider selection policies: plain
// rotation and weighted self-balancing. Selectors own the usage counters
// and rotation order for the process lifetime and are safe for concurrent
// queries.
package balance

import (
	"errors"
	"fmt"
	"math/rand"

	"NetSage/internal/model"
)

// Strategy names accepted by New.
const (
	StrategyRotation = "rotation"
	StrategyWeighted = "weighted"
)

// ErrNoProviders is returned by Pick when the active set is empty.
var ErrNoProviders = errors.New("no active providers")

// New builds the selector named by strategy. The random source is
// injected so tests can seed it; weights map provider names to target
// percentages and only the weighted strategy reads them.
func New(strategy string, providers []model.Provider, weights map[string]int, rng *rand.Rand) (model.Selector, error) {
	switch strategy {
	case StrategyRotation:
		return NewRotation(providers, rng), nil
	case StrategyWeighted:
		return NewWeighted(providers, weights, rng), nil
	default:
		return nil, fmt.Errorf("unknown selection strategy: %q", strategy)
	}
}
