package balance

import (
	"math/rand"
	"sync"

	"NetSage/internal/model"
)

// Rotation cycles through the active providers front-to-back. The order
// is shuffled once at construction so long-running processes do not all
// favor whichever provider happens to be configured first.
type Rotation struct {
	mu    sync.Mutex
	order []model.Provider
	usage map[string]uint64
}

// NewRotation creates a rotation selector over the given providers.
func NewRotation(providers []model.Provider, rng *rand.Rand) *Rotation {
	order := make([]model.Provider, len(providers))
	copy(order, providers)
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	return &Rotation{
		order: order,
		usage: make(map[string]uint64, len(order)),
	}
}

// Pick returns the provider at the front of the rotation and moves it to
// the back.
func (s *Rotation) Pick() (model.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 {
		return nil, ErrNoProviders
	}

	p := s.order[0]
	copy(s.order, s.order[1:])
	s.order[len(s.order)-1] = p
	s.usage[p.Name()]++
	return p, nil
}

// Usage returns a copy of the per-provider selection counts.
func (s *Rotation) Usage() map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]uint64, len(s.usage))
	for name, n := range s.usage {
		out[name] = n
	}
	return out
}
