// Package telemetry aggregates object access patterns, per-level cache
// performance, and latency and memory samples for the workset daemon, and
// turns them into tuning suggestions.
package telemetry

import (
	"sync"
	"time"
)

const (
	latencyWindow = 100
	memoryWindow  = 1000

	// hotThreshold is the access count at which an object is reported hot.
	hotThreshold = 3
)

// window is a bounded sample buffer. Appending past capacity drops the
// oldest sample.
type window struct {
	limit int
	vals  []float64
}

func (w *window) add(v float64) {
	w.vals = append(w.vals, v)
	if len(w.vals) > w.limit {
		copy(w.vals, w.vals[1:])
		w.vals = w.vals[:w.limit]
	}
}

func (w *window) len() int { return len(w.vals) }

// Collector accumulates samples from the cache service. All methods are
// safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	started      time.Time
	objectAccess map[string]int
	hits         map[string]int
	misses       map[string]int
	lookups      *window
	switches     *window
	memory       *window
}

func NewCollector() *Collector {
	return &Collector{
		started:      time.Now(),
		objectAccess: make(map[string]int),
		hits:         make(map[string]int),
		misses:       make(map[string]int),
		lookups:      &window{limit: latencyWindow},
		switches:     &window{limit: latencyWindow},
		memory:       &window{limit: memoryWindow},
	}
}

// RecordAccess notes one access to the given object.
func (c *Collector) RecordAccess(objectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objectAccess[objectID]++
}

// AccessCount returns how many times the object has been accessed.
func (c *Collector) AccessCount(objectID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.objectAccess[objectID]
}

// RecordCacheEvent notes a hit or miss at the named cache level.
func (c *Collector) RecordCacheEvent(level string, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits[level]++
	} else {
		c.misses[level]++
	}
}

// RecordLookupLatency adds one lookup duration to the bounded sample set.
func (c *Collector) RecordLookupLatency(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups.add(float64(d) / float64(time.Millisecond))
}

// RecordTierSwitchLatency adds one tier transition duration to the bounded
// sample set.
func (c *Collector) RecordTierSwitchLatency(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.switches.add(float64(d) / float64(time.Millisecond))
}

// RecordMemoryUsage adds one memory reading, in bytes, to the bounded
// sample set.
func (c *Collector) RecordMemoryUsage(bytes uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory.add(float64(bytes))
}

// Uptime reports how long the collector has been running.
func (c *Collector) Uptime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.started)
}
