package telemetry

import (
	"fmt"
	"log"
	"time"

	"github.com/salthouse/workset/internal/lifecycle"
	"github.com/salthouse/workset/internal/store"
)

// SaveTo persists one metrics snapshot row combining the cache manager's
// counters with the collector's current suggestions.
func (c *Collector) SaveTo(db *store.DB, snap lifecycle.Snapshot) (*store.MetricsSnapshot, error) {
	analysis := c.Analyze()

	row := &store.MetricsSnapshot{
		TakenAt:           time.Now().UnixMilli(),
		ActivationCount:   snap.ActivationCount,
		DeactivationCount: snap.DeactivationCount,
		CacheHits:         snap.CacheHits,
		CacheMisses:       snap.CacheMisses,
		TierTransitions:   snap.TierTransitions,
		AvgActivateNS:     int64(snap.AvgActivateTime),
		AvgDeactivateNS:   int64(snap.AvgDeactivateTime),
		AvgPressure:       snap.AvgMemoryPressure,
		PeakPressure:      snap.PeakMemoryPressure,
		ImmediateUsage:    snap.ImmediateUsage,
		ActiveUsage:       snap.ActiveUsage,
		BackgroundUsage:   snap.BackgroundUsage,
		Suggestions:       analysis.Suggestions,
	}
	if err := db.SaveMetricsSnapshot(row); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}
	log.Printf("telemetry: saved snapshot %d (%d suggestions)", row.ID, len(row.Suggestions))
	return row, nil
}
