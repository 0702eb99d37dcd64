package telemetry

import (
	"testing"
	"time"
)

func TestRecordAccessCounts(t *testing.T) {
	c := NewCollector()
	c.RecordAccess("obj-1")
	c.RecordAccess("obj-1")
	c.RecordAccess("obj-2")

	if got := c.AccessCount("obj-1"); got != 2 {
		t.Errorf("obj-1 count = %d, want 2", got)
	}
	if got := c.AccessCount("obj-2"); got != 1 {
		t.Errorf("obj-2 count = %d, want 1", got)
	}
	if got := c.AccessCount("missing"); got != 0 {
		t.Errorf("missing count = %d, want 0", got)
	}
}

func TestRecordCacheEventPerLevel(t *testing.T) {
	c := NewCollector()
	c.RecordCacheEvent("immediate", true)
	c.RecordCacheEvent("immediate", false)
	c.RecordCacheEvent("active", true)

	rates := c.Analyze().HitRates
	if rates["immediate"] != 0.5 {
		t.Errorf("immediate rate = %v, want 0.5", rates["immediate"])
	}
	if rates["active"] != 1.0 {
		t.Errorf("active rate = %v, want 1", rates["active"])
	}
}

func TestHitRateMissOnlyLevel(t *testing.T) {
	c := NewCollector()
	c.RecordCacheEvent("cache", false)
	c.RecordCacheEvent("cache", false)

	rate, ok := c.Analyze().HitRates["cache"]
	if !ok {
		t.Fatal("miss-only level absent from hit rates")
	}
	if rate != 0 {
		t.Errorf("rate = %v, want 0", rate)
	}
}

func TestWindowBounded(t *testing.T) {
	w := &window{limit: latencyWindow}
	for i := 0; i < 150; i++ {
		w.add(float64(i))
	}
	if w.len() != latencyWindow {
		t.Fatalf("len = %d, want %d", w.len(), latencyWindow)
	}
	stats := w.stats()
	if stats.Min != 50 {
		t.Errorf("min = %v, want 50 after oldest samples dropped", stats.Min)
	}
	if stats.Max != 149 {
		t.Errorf("max = %v, want 149", stats.Max)
	}
}

func TestLookupLatencyStats(t *testing.T) {
	c := NewCollector()
	for _, ms := range []int{5, 10, 15} {
		c.RecordLookupLatency(time.Duration(ms) * time.Millisecond)
	}

	stats := c.Analyze().Lookups
	if stats == nil {
		t.Fatal("no lookup stats")
	}
	if stats.Avg != 10 || stats.Min != 5 || stats.Max != 15 {
		t.Errorf("stats = %+v, want avg 10 min 5 max 15", *stats)
	}
}

func TestTierSwitchLatencyTrackedSeparately(t *testing.T) {
	c := NewCollector()
	c.RecordTierSwitchLatency(2 * time.Millisecond)

	a := c.Analyze()
	if a.Lookups != nil {
		t.Errorf("lookup stats = %+v, want nil", *a.Lookups)
	}
	if a.TierSwitches == nil || a.TierSwitches.Avg != 2 {
		t.Errorf("tier switch stats = %+v, want avg 2", a.TierSwitches)
	}
}

func TestMemoryUsageStats(t *testing.T) {
	c := NewCollector()
	for _, b := range []uint64{1000, 2000, 1500} {
		c.RecordMemoryUsage(b)
	}

	stats := c.Analyze().Memory
	if stats == nil {
		t.Fatal("no memory stats")
	}
	if stats.Avg != 1500 || stats.Peak != 2000 || stats.Current != 1500 {
		t.Errorf("stats = %+v, want avg 1500 peak 2000 current 1500", *stats)
	}
}
