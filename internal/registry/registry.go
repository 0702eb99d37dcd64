// Package registry tracks the entities the cache manages: creation,
// updates, tombstoned deletes, embedding upkeep, and similarity search.
// With a store attached every mutation is durable; without one the
// registry is memory only.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/salthouse/workset/internal/store"
)

// ErrNotFound reports a lookup for an id the registry does not hold.
var ErrNotFound = errors.New("entity not found")

// Registry owns the live entity set and the tombstones of deleted ones.
// It does no locking; callers serialize access.
type Registry struct {
	db       *store.DB
	embedder Embedder

	entities map[string]*Entity
	deleted  map[string]time.Time
}

// New builds a registry over db, which may be nil for memory-only use. A
// nil embedder selects the default hash embedder.
func New(db *store.DB, embedder Embedder) *Registry {
	if embedder == nil {
		embedder = NewHashEmbedder(DefaultDimensions)
	}
	return &Registry{
		db:       db,
		embedder: embedder,
		entities: make(map[string]*Entity),
		deleted:  make(map[string]time.Time),
	}
}

// Create registers a new entity in the Inactive tier and persists it.
func (r *Registry) Create(kind, role, description string) (*Entity, error) {
	now := time.Now()
	e := &Entity{
		ID:          uuid.NewString(),
		Kind:        kind,
		Role:        role,
		Description: description,
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	e.Embedding = r.embedder.Embed(e.embedText())

	if err := r.Persist(e); err != nil {
		return nil, err
	}
	r.entities[e.ID] = e
	return e, nil
}

// Get returns the live entity for id.
func (r *Registry) Get(id string) (*Entity, error) {
	e, ok := r.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// Update applies mutate to the entity, refreshes its embedding and
// modification time, and persists the result.
func (r *Registry) Update(id string, mutate func(*Entity)) (*Entity, error) {
	e, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	mutate(e)
	e.ModifiedAt = time.Now()
	e.Embedding = r.embedder.Embed(e.embedText())

	if err := r.Persist(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Delete removes the entity and records when it went away. The store keeps
// a tombstoned row so deletion times survive restarts.
func (r *Registry) Delete(id string) error {
	if _, ok := r.entities[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	now := time.Now()
	delete(r.entities, id)
	r.deleted[id] = now

	if r.db == nil {
		return nil
	}
	if err := r.db.MarkEntityDeleted(id, now.UnixMilli()); err != nil {
		return fmt.Errorf("delete entity %s: %w", id, err)
	}
	return nil
}

// All returns live entities in creation order.
func (r *Registry) All() []*Entity {
	out := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ByKind returns live entities of the given kind, in creation order.
func (r *Registry) ByKind(kind string) []*Entity {
	var out []*Entity
	for _, e := range r.All() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// ByRole returns live entities with the given role, in creation order.
func (r *Registry) ByRole(role string) []*Entity {
	var out []*Entity
	for _, e := range r.All() {
		if e.Role == role {
			out = append(out, e)
		}
	}
	return out
}

// Deleted returns deletion times keyed by entity id.
func (r *Registry) Deleted() map[string]time.Time {
	out := make(map[string]time.Time, len(r.deleted))
	for id, at := range r.deleted {
		out[id] = at
	}
	return out
}

// Count returns the number of live entities.
func (r *Registry) Count() int { return len(r.entities) }

// Persist writes the entity row and its embedding through the attached
// store. A nil store makes this a no-op.
func (r *Registry) Persist(e *Entity) error {
	if r.db == nil {
		return nil
	}
	rec, err := e.record()
	if err != nil {
		return err
	}
	if err := r.db.SaveEntity(rec); err != nil {
		return fmt.Errorf("persist entity %s: %w", e.ID, err)
	}
	if len(e.Embedding) > 0 {
		if err := r.db.SaveEntityVector(e.ID, e.Embedding, r.embedder.Model()); err != nil {
			return fmt.Errorf("persist embedding %s: %w", e.ID, err)
		}
	}
	return nil
}

// Load hydrates the registry from the attached store, replacing current
// contents. Entities persisted without a vector stay unembedded until
// their next update.
func (r *Registry) Load() error {
	if r.db == nil {
		return nil
	}
	recs, err := r.db.ListEntities()
	if err != nil {
		return fmt.Errorf("load entities: %w", err)
	}
	entities := make(map[string]*Entity, len(recs))
	for _, rec := range recs {
		e, err := fromRecord(rec)
		if err != nil {
			return err
		}
		vec, err := r.db.GetEntityVector(e.ID)
		if err != nil {
			return fmt.Errorf("load embedding %s: %w", e.ID, err)
		}
		if vec != nil {
			e.Embedding = vec.Embedding
		}
		entities[e.ID] = e
	}

	deletedRows, err := r.db.DeletedEntities()
	if err != nil {
		return fmt.Errorf("load deletions: %w", err)
	}
	deleted := make(map[string]time.Time, len(deletedRows))
	for id, ms := range deletedRows {
		deleted[id] = time.UnixMilli(ms)
	}

	r.entities = entities
	r.deleted = deleted
	return nil
}
