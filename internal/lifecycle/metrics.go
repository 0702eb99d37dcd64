package lifecycle

import "time"

// accumulator gathers counters and timing samples inside the Manager.
// Reads go through Metrics, which cuts an immutable Snapshot.
type accumulator struct {
	counts    map[string]int
	durations map[string][]time.Duration

	hits        int
	misses      int
	transitions int
}

func newAccumulator() accumulator {
	return accumulator{
		counts:    make(map[string]int),
		durations: make(map[string][]time.Duration),
	}
}

// timeOp starts a scoped timer for the named operation. The returned stop
// function records the elapsed duration and bumps the call count; defer it
// at the top of the instrumented operation so error paths are measured too.
func (a *accumulator) timeOp(name string) func() {
	start := time.Now()
	return func() {
		a.durations[name] = append(a.durations[name], time.Since(start))
		a.counts[name]++
	}
}

func (a *accumulator) avg(name string) time.Duration {
	samples := a.durations[name]
	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range samples {
		total += d
	}
	return total / time.Duration(len(samples))
}

// Snapshot is a point-in-time read of the manager's counters, timings,
// pressure statistics and per-tier utilization. It shares no storage with
// the manager.
type Snapshot struct {
	ActivationCount   int `json:"activation_count"`
	DeactivationCount int `json:"deactivation_count"`
	CacheHits         int `json:"cache_hits"`
	CacheMisses       int `json:"cache_misses"`
	TierTransitions   int `json:"tier_transitions"`

	AvgActivateTime   time.Duration `json:"avg_activate_ns"`
	AvgDeactivateTime time.Duration `json:"avg_deactivate_ns"`

	AvgMemoryPressure  float64 `json:"avg_memory_pressure"`
	PeakMemoryPressure float64 `json:"peak_memory_pressure"`

	ImmediateUsage  float64 `json:"immediate_usage"`
	ActiveUsage     float64 `json:"active_usage"`
	BackgroundUsage float64 `json:"background_usage"`
}

// HitRate returns hits over total lookups, or 0 with no lookups yet.
func (s Snapshot) HitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// Metrics returns a snapshot of the current counters, mean operation
// times, pressure history statistics and tier utilization, where
// utilization is resident count over the current limit.
func (m *Manager) Metrics() Snapshot {
	return Snapshot{
		ActivationCount:    m.metrics.counts["activate"],
		DeactivationCount:  m.metrics.counts["deactivate"],
		CacheHits:          m.metrics.hits,
		CacheMisses:        m.metrics.misses,
		TierTransitions:    m.metrics.transitions,
		AvgActivateTime:    m.metrics.avg("activate"),
		AvgDeactivateTime:  m.metrics.avg("deactivate"),
		AvgMemoryPressure:  mean(m.pressureHistory),
		PeakMemoryPressure: m.peakPressure,
		ImmediateUsage:     usage(m.immediate.len(), m.immediateLimit),
		ActiveUsage:        usage(m.active.len(), m.activeLimit),
		BackgroundUsage:    usage(m.background.len(), m.backgroundLimit),
	}
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func usage(size, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(size) / float64(limit)
}
