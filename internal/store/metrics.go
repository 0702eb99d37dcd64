package store

import (
	"encoding/json"
	"fmt"
)

// MetricsSnapshot is a persisted capture of cache performance counters
// plus the analyzer's suggestions at the time it was taken.
type MetricsSnapshot struct {
	ID      int64
	TakenAt int64

	ActivationCount   int
	DeactivationCount int
	CacheHits         int
	CacheMisses       int
	TierTransitions   int

	AvgActivateNS   int64
	AvgDeactivateNS int64

	AvgPressure  float64
	PeakPressure float64

	ImmediateUsage  float64
	ActiveUsage     float64
	BackgroundUsage float64

	Suggestions []string
}

// SaveMetricsSnapshot appends a snapshot row.
func (db *DB) SaveMetricsSnapshot(ms *MetricsSnapshot) error {
	suggestions, err := json.Marshal(ms.Suggestions)
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}
	if ms.Suggestions == nil {
		suggestions = []byte("[]")
	}

	res, err := db.Exec(`
		INSERT INTO metrics_snapshots (
			taken_at, activation_count, deactivation_count, cache_hits, cache_misses,
			tier_transitions, avg_activate_ns, avg_deactivate_ns,
			avg_pressure, peak_pressure, immediate_usage, active_usage, background_usage,
			suggestions
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ms.TakenAt, ms.ActivationCount, ms.DeactivationCount, ms.CacheHits, ms.CacheMisses,
		ms.TierTransitions, ms.AvgActivateNS, ms.AvgDeactivateNS,
		ms.AvgPressure, ms.PeakPressure, ms.ImmediateUsage, ms.ActiveUsage, ms.BackgroundUsage,
		string(suggestions))
	if err != nil {
		return fmt.Errorf("save metrics snapshot: %w", err)
	}
	ms.ID, _ = res.LastInsertId()
	return nil
}

// RecentSnapshots returns up to limit snapshots, newest first.
func (db *DB) RecentSnapshots(limit int) ([]*MetricsSnapshot, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT id, taken_at, activation_count, deactivation_count, cache_hits, cache_misses,
		       tier_transitions, avg_activate_ns, avg_deactivate_ns,
		       avg_pressure, peak_pressure, immediate_usage, active_usage, background_usage,
		       suggestions
		FROM metrics_snapshots
		ORDER BY taken_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*MetricsSnapshot
	for rows.Next() {
		var ms MetricsSnapshot
		var suggestions string
		if err := rows.Scan(
			&ms.ID, &ms.TakenAt, &ms.ActivationCount, &ms.DeactivationCount,
			&ms.CacheHits, &ms.CacheMisses, &ms.TierTransitions,
			&ms.AvgActivateNS, &ms.AvgDeactivateNS,
			&ms.AvgPressure, &ms.PeakPressure,
			&ms.ImmediateUsage, &ms.ActiveUsage, &ms.BackgroundUsage,
			&suggestions,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(suggestions), &ms.Suggestions); err != nil {
			return nil, fmt.Errorf("unmarshal suggestions: %w", err)
		}
		snaps = append(snaps, &ms)
	}
	return snaps, rows.Err()
}

// PressureSample is one row of the pressure log.
type PressureSample struct {
	ID        int64
	SampledAt int64
	Pressure  float64
	Source    string
}

// LogPressure appends a pressure sample.
func (db *DB) LogPressure(sampledAt int64, pressure float64, source string) error {
	_, err := db.Exec(
		"INSERT INTO pressure_log (sampled_at, pressure, source) VALUES (?, ?, ?)",
		sampledAt, pressure, source,
	)
	if err != nil {
		return fmt.Errorf("log pressure: %w", err)
	}
	return nil
}

// RecentPressure returns up to limit samples, newest first.
func (db *DB) RecentPressure(limit int) ([]PressureSample, error) {
	if limit <= 0 {
		limit = 60
	}
	rows, err := db.Query(`
		SELECT id, sampled_at, pressure, source
		FROM pressure_log
		ORDER BY sampled_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent pressure: %w", err)
	}
	defer rows.Close()

	var samples []PressureSample
	for rows.Next() {
		var s PressureSample
		if err := rows.Scan(&s.ID, &s.SampledAt, &s.Pressure, &s.Source); err != nil {
			return nil, fmt.Errorf("scan pressure sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// PeakPressure returns the highest logged sample, or 0 with an empty log.
func (db *DB) PeakPressure() (float64, error) {
	var peak float64
	err := db.QueryRow("SELECT COALESCE(MAX(pressure), 0) FROM pressure_log").Scan(&peak)
	return peak, err
}
