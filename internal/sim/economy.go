package sim

import "math/rand"

// Economy tracks the coarse economic indicators of the demo world.
type Economy struct {
	GiniCoefficient  float64
	UnemploymentRate float64
}

func NewEconomy() *Economy {
	return &Economy{GiniCoefficient: 0.4, UnemploymentRate: 0.1}
}

// Update drifts the indicators by a small random walk.
func (e *Economy) Update(rng *rand.Rand) {
	e.GiniCoefficient = clamp01(e.GiniCoefficient + (rng.Float64()-0.5)*0.04)
	e.UnemploymentRate = clamp01(e.UnemploymentRate + (rng.Float64()-0.5)*0.02)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
