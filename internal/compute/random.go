package compute

import (
	"sync"

	"golang.org/x/exp/rand"
)

// gaussianSource is the backend-owned normal generator. Draws are serialized so
// consecutive calls never overlap.
type gaussianSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newGaussianSource(seed uint64) *gaussianSource {
	return &gaussianSource{rng: rand.New(rand.NewSource(seed))}
}

func (g *gaussianSource) fill(dst []float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range dst {
		dst[i] = g.rng.NormFloat64()
	}
}
