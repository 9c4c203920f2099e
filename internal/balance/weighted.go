package balance

import (
	"math/rand"
	"sync"

	"NetSage/internal/model"
)

// Weighted draws providers with probabilities that track configured
// target weights. Each selection compares a provider's observed usage
// share against its target share and scales its weight by the gap, so
// under-served providers become more likely and over-served ones less
// likely; over many selections usage converges to the targets.
type Weighted struct {
	mu        sync.Mutex
	providers []model.Provider
	weights   map[string]int
	usage     map[string]uint64
	total     uint64
	rng       *rand.Rand
}

// NewWeighted creates a self-balancing selector. Providers missing from
// the weights map get a zero weight and are effectively never drawn
// unless every configured weight is zero.
func NewWeighted(providers []model.Provider, weights map[string]int, rng *rand.Rand) *Weighted {
	w := make(map[string]int, len(providers))
	for _, p := range providers {
		w[p.Name()] = weights[p.Name()]
	}
	return &Weighted{
		providers: providers,
		weights:   w,
		usage:     make(map[string]uint64, len(providers)),
		rng:       rng,
	}
}

// Pick draws one provider by adjusted weight and records the selection.
func (s *Weighted) Pick() (model.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.providers) == 0 {
		return nil, ErrNoProviders
	}

	adjusted := make([]float64, len(s.providers))
	var sum float64
	for i, p := range s.providers {
		adjusted[i] = s.adjustedWeight(p.Name())
		sum += adjusted[i]
	}

	var chosen model.Provider
	if sum <= 0 {
		// All weights are zero; degrade to a uniform draw rather than
		// refusing to select.
		chosen = s.providers[s.rng.Intn(len(s.providers))]
	} else {
		target := s.rng.Float64() * sum
		for i, p := range s.providers {
			target -= adjusted[i]
			if target < 0 {
				chosen = p
				break
			}
		}
		if chosen == nil {
			// Float accumulation can leave a sliver above the last
			// provider's bucket.
			chosen = s.providers[len(s.providers)-1]
		}
	}

	s.usage[chosen.Name()]++
	s.total++
	return chosen, nil
}

// adjustedWeight scales a provider's configured weight by how far its
// usage share trails its target share. The 0.5 offset keeps providers
// that are exactly on target at half strength instead of zero, and the
// 0.1 floor keeps badly over-served providers selectable at all.
func (s *Weighted) adjustedWeight(name string) float64 {
	total := s.total
	if total < 1 {
		total = 1
	}
	currentRatio := float64(s.usage[name]) / float64(total)
	targetRatio := float64(s.weights[name]) / 100

	adjustment := targetRatio - currentRatio + 0.5
	if adjustment < 0.1 {
		adjustment = 0.1
	}
	return adjustment * float64(s.weights[name])
}

// Usage returns a copy of the per-provider selection counts.
func (s *Weighted) Usage() map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]uint64, len(s.usage))
	for name, n := range s.usage {
		out[name] = n
	}
	return out
}
