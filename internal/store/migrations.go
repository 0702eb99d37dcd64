package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "entities: tracked world objects and their tier placement",
		SQL: `
CREATE TABLE entities (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    role        TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    priority    INTEGER NOT NULL DEFAULT 0,
    tier        TEXT NOT NULL DEFAULT 'inactive' CHECK (tier IN ('inactive', 'background', 'active', 'immediate')),
    attrs       TEXT NOT NULL DEFAULT '{}',

    created_at  INTEGER NOT NULL,
    modified_at INTEGER NOT NULL,
    accessed_at INTEGER,
    deleted_at  INTEGER
);

CREATE INDEX idx_entities_kind ON entities(kind);
CREATE INDEX idx_entities_role ON entities(role);
CREATE INDEX idx_entities_deleted ON entities(deleted_at);
`,
	},
	{
		Version:     2,
		Description: "entity_vectors: embedding vectors for similarity search",
		SQL: `
CREATE TABLE entity_vectors (
    entity_id  TEXT PRIMARY KEY,
    embedding  BLOB NOT NULL,
    model      TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (entity_id) REFERENCES entities(id) ON DELETE CASCADE
);
`,
	},
	{
		Version:     3,
		Description: "metrics_snapshots: periodic cache performance captures",
		SQL: `
CREATE TABLE metrics_snapshots (
    id                 INTEGER PRIMARY KEY,
    taken_at           INTEGER NOT NULL,
    activation_count   INTEGER NOT NULL DEFAULT 0,
    deactivation_count INTEGER NOT NULL DEFAULT 0,
    cache_hits         INTEGER NOT NULL DEFAULT 0,
    cache_misses       INTEGER NOT NULL DEFAULT 0,
    tier_transitions   INTEGER NOT NULL DEFAULT 0,
    avg_activate_ns    INTEGER NOT NULL DEFAULT 0,
    avg_deactivate_ns  INTEGER NOT NULL DEFAULT 0,
    avg_pressure       REAL NOT NULL DEFAULT 0,
    peak_pressure      REAL NOT NULL DEFAULT 0,
    immediate_usage    REAL NOT NULL DEFAULT 0,
    active_usage       REAL NOT NULL DEFAULT 0,
    background_usage   REAL NOT NULL DEFAULT 0,
    suggestions        TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX idx_snapshots_taken ON metrics_snapshots(taken_at DESC);
`,
	},
	{
		Version:     4,
		Description: "pressure_log: memory pressure samples from the monitor",
		SQL: `
CREATE TABLE pressure_log (
    id         INTEGER PRIMARY KEY,
    sampled_at INTEGER NOT NULL,
    pressure   REAL NOT NULL,
    source     TEXT NOT NULL DEFAULT 'monitor' CHECK (source IN ('monitor', 'manual', 'sim'))
);

CREATE INDEX idx_pressure_sampled ON pressure_log(sampled_at DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
