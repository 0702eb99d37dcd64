package store

import (
	"database/sql"
	"fmt"
)

// EntityRecord is the persisted form of a registry entity. Timestamps are
// unix milliseconds; AccessedAt and DeletedAt are zero when unset.
type EntityRecord struct {
	ID          string
	Kind        string
	Role        string
	Description string
	Priority    int
	Tier        string
	Attrs       string // JSON object

	CreatedAt  int64
	ModifiedAt int64
	AccessedAt int64
	DeletedAt  int64
}

// SaveEntity inserts or replaces the row for rec.ID.
func (db *DB) SaveEntity(rec *EntityRecord) error {
	attrs := rec.Attrs
	if attrs == "" {
		attrs = "{}"
	}
	_, err := db.Exec(`
		INSERT INTO entities (id, kind, role, description, priority, tier, attrs, created_at, modified_at, accessed_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			role = excluded.role,
			description = excluded.description,
			priority = excluded.priority,
			tier = excluded.tier,
			attrs = excluded.attrs,
			modified_at = excluded.modified_at,
			accessed_at = excluded.accessed_at,
			deleted_at = excluded.deleted_at
	`, rec.ID, rec.Kind, rec.Role, rec.Description, rec.Priority, rec.Tier, attrs,
		rec.CreatedAt, rec.ModifiedAt, nullableMillis(rec.AccessedAt), nullableMillis(rec.DeletedAt))
	if err != nil {
		return fmt.Errorf("save entity: %w", err)
	}
	return nil
}

// GetEntity returns the row for id, or nil if absent. Deleted rows are
// returned too; callers check DeletedAt.
func (db *DB) GetEntity(id string) (*EntityRecord, error) {
	row := db.QueryRow(`
		SELECT id, kind, role, description, priority, tier, attrs, created_at, modified_at, accessed_at, deleted_at
		FROM entities WHERE id = ?
	`, id)

	rec, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return rec, nil
}

// ListEntities returns all live rows in creation order.
func (db *DB) ListEntities() ([]*EntityRecord, error) {
	rows, err := db.Query(`
		SELECT id, kind, role, description, priority, tier, attrs, created_at, modified_at, accessed_at, deleted_at
		FROM entities WHERE deleted_at IS NULL
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var records []*EntityRecord
	for rows.Next() {
		rec, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkEntityDeleted tombstones the row and drops its vector. The row
// itself is kept so deletion times survive restarts.
func (db *DB) MarkEntityDeleted(id string, deletedAt int64) error {
	if _, err := db.Exec("UPDATE entities SET deleted_at = ? WHERE id = ?", deletedAt, id); err != nil {
		return fmt.Errorf("mark entity deleted: %w", err)
	}
	if err := db.DeleteEntityVector(id); err != nil {
		return err
	}
	return nil
}

// DeletedEntities returns deletion times keyed by entity id.
func (db *DB) DeletedEntities() (map[string]int64, error) {
	rows, err := db.Query("SELECT id, deleted_at FROM entities WHERE deleted_at IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("deleted entities: %w", err)
	}
	defer rows.Close()

	deleted := make(map[string]int64)
	for rows.Next() {
		var id string
		var at int64
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("scan deleted entity: %w", err)
		}
		deleted[id] = at
	}
	return deleted, rows.Err()
}

// EntityCount returns the number of live rows.
func (db *DB) EntityCount() (int, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM entities WHERE deleted_at IS NULL").Scan(&n)
	return n, err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntity(row scannable) (*EntityRecord, error) {
	var rec EntityRecord
	var accessedAt, deletedAt sql.NullInt64
	err := row.Scan(
		&rec.ID, &rec.Kind, &rec.Role, &rec.Description, &rec.Priority,
		&rec.Tier, &rec.Attrs, &rec.CreatedAt, &rec.ModifiedAt,
		&accessedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.AccessedAt = accessedAt.Int64
	rec.DeletedAt = deletedAt.Int64
	return &rec, nil
}

// nullableMillis maps a zero timestamp to NULL.
func nullableMillis(ms int64) any {
	if ms == 0 {
		return nil
	}
	return ms
}
