package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/salthouse/workset/internal/lifecycle"
	"github.com/salthouse/workset/internal/store"
)

// Entity is a tracked domain object: a faction, region, character, or any
// other payload the cache manages. It satisfies lifecycle.Object so it can
// move through the tiers directly.
type Entity struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	Role        string             `json:"role"`
	Description string             `json:"description,omitempty"`
	Priority    int                `json:"priority"`
	Attrs       map[string]float64 `json:"attrs,omitempty"`

	State      lifecycle.State `json:"state"`
	CreatedAt  time.Time       `json:"created_at"`
	ModifiedAt time.Time       `json:"modified_at"`
	AccessedAt time.Time       `json:"accessed_at"`

	Embedding []float64 `json:"-"`
}

func (e *Entity) ContextID() string              { return e.ID }
func (e *Entity) TierState() lifecycle.State     { return e.State }
func (e *Entity) SetTierState(s lifecycle.State) { e.State = s }
func (e *Entity) LastAccessed() time.Time        { return e.AccessedAt }
func (e *Entity) SetLastAccessed(t time.Time)    { e.AccessedAt = t }

// embedText is the text the embedder sees for this entity.
func (e *Entity) embedText() string {
	return e.Kind + " " + e.Role + " " + e.Description
}

// Clone returns a copy safe to read outside the caller's lock domain. The
// embedding slice is shared: embeddings are replaced wholesale, never
// edited in place.
func (e *Entity) Clone() *Entity {
	out := *e
	if e.Attrs != nil {
		out.Attrs = make(map[string]float64, len(e.Attrs))
		for k, v := range e.Attrs {
			out.Attrs[k] = v
		}
	}
	return &out
}

// record converts the entity to its persisted form.
func (e *Entity) record() (*store.EntityRecord, error) {
	attrs := "{}"
	if len(e.Attrs) > 0 {
		raw, err := json.Marshal(e.Attrs)
		if err != nil {
			return nil, fmt.Errorf("marshal attrs for %s: %w", e.ID, err)
		}
		attrs = string(raw)
	}

	rec := &store.EntityRecord{
		ID:          e.ID,
		Kind:        e.Kind,
		Role:        e.Role,
		Description: e.Description,
		Priority:    e.Priority,
		Tier:        e.State.String(),
		Attrs:       attrs,
		CreatedAt:   e.CreatedAt.UnixMilli(),
		ModifiedAt:  e.ModifiedAt.UnixMilli(),
	}
	if !e.AccessedAt.IsZero() {
		rec.AccessedAt = e.AccessedAt.UnixMilli()
	}
	return rec, nil
}

// fromRecord rebuilds an entity from its persisted form. Unknown tier names
// land in Inactive rather than failing the whole load.
func fromRecord(rec *store.EntityRecord) (*Entity, error) {
	e := &Entity{
		ID:          rec.ID,
		Kind:        rec.Kind,
		Role:        rec.Role,
		Description: rec.Description,
		Priority:    rec.Priority,
		CreatedAt:   time.UnixMilli(rec.CreatedAt),
		ModifiedAt:  time.UnixMilli(rec.ModifiedAt),
	}
	if rec.AccessedAt != 0 {
		e.AccessedAt = time.UnixMilli(rec.AccessedAt)
	}
	if state, ok := lifecycle.ParseState(rec.Tier); ok {
		e.State = state
	}
	if rec.Attrs != "" && rec.Attrs != "{}" {
		if err := json.Unmarshal([]byte(rec.Attrs), &e.Attrs); err != nil {
			return nil, fmt.Errorf("unmarshal attrs for %s: %w", rec.ID, err)
		}
	}
	return e, nil
}
