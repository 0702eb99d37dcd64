package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// VectorRecord holds the embedding for an entity.
type VectorRecord struct {
	EntityID   string
	Embedding  []float64
	Model      string
	Dimensions int
	CreatedAt  int64
}

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

// SaveEntityVector stores or replaces the embedding for an entity.
func (db *DB) SaveEntityVector(entityID string, embedding []float64, model string) error {
	now := time.Now().UnixMilli()
	blob := encodeEmbedding(embedding)

	_, err := db.Exec(`
		INSERT INTO entity_vectors (entity_id, embedding, model, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET embedding = ?, model = ?, dimensions = ?, created_at = ?
	`, entityID, blob, model, len(embedding), now,
		blob, model, len(embedding), now)
	if err != nil {
		return fmt.Errorf("save entity vector: %w", err)
	}
	return nil
}

// GetEntityVector returns the embedding for an entity, or nil if not found.
func (db *DB) GetEntityVector(entityID string) (*VectorRecord, error) {
	var v VectorRecord
	var blob []byte

	err := db.QueryRow(`
		SELECT entity_id, embedding, model, dimensions, created_at
		FROM entity_vectors WHERE entity_id = ?
	`, entityID).Scan(&v.EntityID, &blob, &v.Model, &v.Dimensions, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entity vector: %w", err)
	}
	v.Embedding = decodeEmbedding(blob)
	return &v, nil
}

// AllEntityVectors returns every stored vector record.
func (db *DB) AllEntityVectors() ([]VectorRecord, error) {
	rows, err := db.Query(`
		SELECT entity_id, embedding, model, dimensions, created_at
		FROM entity_vectors
	`)
	if err != nil {
		return nil, fmt.Errorf("all entity vectors: %w", err)
	}
	defer rows.Close()

	var records []VectorRecord
	for rows.Next() {
		var v VectorRecord
		var blob []byte
		if err := rows.Scan(&v.EntityID, &blob, &v.Model, &v.Dimensions, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entity vector: %w", err)
		}
		v.Embedding = decodeEmbedding(blob)
		records = append(records, v)
	}
	return records, rows.Err()
}

// DeleteEntityVector removes the embedding for an entity.
func (db *DB) DeleteEntityVector(entityID string) error {
	_, err := db.Exec("DELETE FROM entity_vectors WHERE entity_id = ?", entityID)
	if err != nil {
		return fmt.Errorf("delete entity vector: %w", err)
	}
	return nil
}
