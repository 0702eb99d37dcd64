package sim

import "math/rand"

// Politics tracks how settled the demo world currently is.
type Politics struct {
	StabilityIndex float64
}

func NewPolitics() *Politics {
	return &Politics{StabilityIndex: 0.5}
}

// Update drifts the stability index by a small random walk.
func (p *Politics) Update(rng *rand.Rand) {
	p.StabilityIndex = clamp01(p.StabilityIndex + (rng.Float64()-0.5)*0.04)
}
