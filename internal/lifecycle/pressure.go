package lifecycle

import (
	"fmt"
	"math"
)

// Per-regime capacity floors. Even at full pressure each tier keeps a
// usable minimum.
const (
	extremeImmediateFloor  = 4
	extremeActiveFloor     = 20
	extremeBackgroundFloor = 40

	highImmediateFloor  = 5
	highActiveFloor     = 25
	highBackgroundFloor = 50

	normalImmediateFloor  = 20
	normalActiveFloor     = 60
	normalBackgroundFloor = 120
)

// SetMemoryPressure records an external pressure sample in [0, 1] and
// recomputes the tier limits for the matching regime. Out-of-range
// samples are rejected without touching limits or history. A full
// rebalance always follows an accepted sample, even when the limits grew,
// so stale Active members are swept on every update.
//
// Above 0.9 the limits scale by max(0.1, 1-p); between 0.8 and 0.9 by
// max(0.15, 1-p); below 0.8 they shrink gently by (1 - 0.15p) plus a
// recovery boost of max(0, 1.2-p) that lets capacity overshoot base when
// pressure is low.
func (m *Manager) SetMemoryPressure(pressure float64) error {
	if math.IsNaN(pressure) || pressure < 0.0 || pressure > 1.0 {
		return fmt.Errorf("%w: %v", ErrPressureOutOfRange, pressure)
	}

	m.pressure = pressure
	m.pressureHistory = append(m.pressureHistory, pressure)
	if pressure > m.peakPressure {
		m.peakPressure = pressure
	}

	switch {
	case pressure >= 0.9:
		factor := math.Max(0.1, 1.0-pressure)
		m.immediateLimit = scaledLimit(m.cfg.BaseImmediateLimit, factor, extremeImmediateFloor)
		m.activeLimit = scaledLimit(m.cfg.BaseActiveLimit, factor, extremeActiveFloor)
		m.backgroundLimit = scaledLimit(m.cfg.BaseBackgroundLimit, factor, extremeBackgroundFloor)
	case pressure >= 0.8:
		factor := math.Max(0.15, 1.0-pressure)
		m.immediateLimit = scaledLimit(m.cfg.BaseImmediateLimit, factor, highImmediateFloor)
		m.activeLimit = scaledLimit(m.cfg.BaseActiveLimit, factor, highActiveFloor)
		m.backgroundLimit = scaledLimit(m.cfg.BaseBackgroundLimit, factor, highBackgroundFloor)
	default:
		factor := 1.0 - pressure*0.15
		factor += math.Max(0, 1.2-pressure)
		m.immediateLimit = scaledLimit(m.cfg.BaseImmediateLimit, factor, normalImmediateFloor)
		m.activeLimit = scaledLimit(m.cfg.BaseActiveLimit, factor, normalActiveFloor)
		m.backgroundLimit = scaledLimit(m.cfg.BaseBackgroundLimit, factor, normalBackgroundFloor)
	}

	m.rebalance()
	return nil
}

// scaledLimit scales base by factor, truncating, and clamps the result to
// floor from below.
func scaledLimit(base int, factor float64, floor int) int {
	limit := int(float64(base) * factor)
	if limit < floor {
		return floor
	}
	return limit
}
