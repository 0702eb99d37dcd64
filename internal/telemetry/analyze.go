package telemetry

import (
	"fmt"
	"sort"
	"time"
)

// LatencyStats summarizes a bounded latency window in milliseconds.
type LatencyStats struct {
	Avg float64 `json:"avg_ms"`
	Min float64 `json:"min_ms"`
	Max float64 `json:"max_ms"`
}

// MemoryStats summarizes the bounded memory window in bytes.
type MemoryStats struct {
	Avg     float64 `json:"avg_bytes"`
	Peak    float64 `json:"peak_bytes"`
	Current float64 `json:"current_bytes"`
}

// Analysis is a point-in-time read of everything the collector has seen,
// with tuning suggestions derived from it. Latency and memory stats are nil
// until at least one sample exists.
type Analysis struct {
	HitRates       map[string]float64 `json:"hit_rates"`
	HotObjects     []string           `json:"hot_objects"`
	Lookups        *LatencyStats      `json:"lookup_latency,omitempty"`
	TierSwitches   *LatencyStats      `json:"tier_switch_latency,omitempty"`
	Memory         *MemoryStats       `json:"memory,omitempty"`
	ObjectsTracked int                `json:"objects_tracked"`
	Uptime         time.Duration      `json:"uptime_ns"`
	Suggestions    []string           `json:"suggestions"`
}

// Analyze computes hit rates, hot objects, latency and memory statistics,
// and the suggestions that follow from them.
func (c *Collector) Analyze() Analysis {
	c.mu.Lock()
	defer c.mu.Unlock()

	a := Analysis{
		HitRates:       c.hitRates(),
		HotObjects:     c.hotObjects(hotThreshold),
		Lookups:        c.lookups.stats(),
		TierSwitches:   c.switches.stats(),
		Memory:         c.memory.memoryStats(),
		ObjectsTracked: len(c.objectAccess),
		Uptime:         time.Since(c.started),
	}
	a.Suggestions = suggest(a)
	return a
}

// hitRates computes hits over total events for every level that recorded
// at least one event, hit or miss.
func (c *Collector) hitRates() map[string]float64 {
	rates := make(map[string]float64)
	for level := range c.hits {
		rates[level] = 0
	}
	for level := range c.misses {
		rates[level] = 0
	}
	for level := range rates {
		hits := c.hits[level]
		total := hits + c.misses[level]
		if total > 0 {
			rates[level] = float64(hits) / float64(total)
		}
	}
	return rates
}

// hotObjects returns object IDs accessed at least threshold times, most
// accessed first. Ties break on ID so the order is stable.
func (c *Collector) hotObjects(threshold int) []string {
	var hot []string
	for id, count := range c.objectAccess {
		if count >= threshold {
			hot = append(hot, id)
		}
	}
	sort.Slice(hot, func(i, j int) bool {
		ci, cj := c.objectAccess[hot[i]], c.objectAccess[hot[j]]
		if ci != cj {
			return ci > cj
		}
		return hot[i] < hot[j]
	})
	return hot
}

func (w *window) stats() *LatencyStats {
	if len(w.vals) == 0 {
		return nil
	}
	lo, hi, sum := w.vals[0], w.vals[0], 0.0
	for _, v := range w.vals {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		sum += v
	}
	return &LatencyStats{Avg: sum / float64(len(w.vals)), Min: lo, Max: hi}
}

func (w *window) memoryStats() *MemoryStats {
	if len(w.vals) == 0 {
		return nil
	}
	hi, sum := w.vals[0], 0.0
	for _, v := range w.vals {
		if v > hi {
			hi = v
		}
		sum += v
	}
	return &MemoryStats{
		Avg:     sum / float64(len(w.vals)),
		Peak:    hi,
		Current: w.vals[len(w.vals)-1],
	}
}

// suggest derives tuning suggestions: any level below an 80% hit rate, and
// memory sitting within 20% of the session peak. Levels are visited in
// sorted order so repeated analyses produce identical output.
func suggest(a Analysis) []string {
	var out []string

	levels := make([]string, 0, len(a.HitRates))
	for level := range a.HitRates {
		levels = append(levels, level)
	}
	sort.Strings(levels)
	for _, level := range levels {
		if rate := a.HitRates[level]; rate < 0.8 {
			out = append(out, fmt.Sprintf("consider increasing %s capacity (hit rate %.0f%%)", level, rate*100))
		}
	}

	if a.Memory != nil && a.Memory.Peak > 0 && a.Memory.Current > 0.8*a.Memory.Peak {
		out = append(out, "memory usage near session peak, consider lowering tier limits")
	}
	return out
}
