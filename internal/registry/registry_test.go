package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/salthouse/workset/internal/lifecycle"
	"github.com/salthouse/workset/internal/store"
)

func testStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAssignsIdentity(t *testing.T) {
	r := New(nil, nil)

	e, err := r.Create("faction", "ally", "mountain clans of the north")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.ID == "" {
		t.Error("no id assigned")
	}
	if e.State != lifecycle.StateInactive {
		t.Errorf("state = %v, want inactive", e.State)
	}
	if len(e.Embedding) != DefaultDimensions {
		t.Errorf("embedding dims = %d, want %d", len(e.Embedding), DefaultDimensions)
	}
	if e.CreatedAt.IsZero() || e.ModifiedAt.IsZero() {
		t.Error("timestamps not set")
	}
	if r.Count() != 1 {
		t.Errorf("count = %d, want 1", r.Count())
	}
}

func TestGetUnknownEntity(t *testing.T) {
	r := New(nil, nil)

	_, err := r.Get("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateReembedsAndBumpsModified(t *testing.T) {
	emb := NewHashEmbedder(DefaultDimensions)
	r := New(nil, emb)

	e, err := r.Create("faction", "rival", "desert traders")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	before := e.ModifiedAt

	updated, err := r.Update(e.ID, func(e *Entity) {
		e.Description = "desert traders turned smugglers"
		e.Priority = 4
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Priority != 4 {
		t.Errorf("priority = %d, want 4", updated.Priority)
	}
	if updated.ModifiedAt.Before(before) {
		t.Error("modified time went backwards")
	}

	want := emb.Embed(updated.embedText())
	for i := range want {
		if updated.Embedding[i] != want[i] {
			t.Fatal("embedding not refreshed from updated text")
		}
	}
}

func TestUpdateUnknownEntity(t *testing.T) {
	r := New(nil, nil)

	_, err := r.Update("nope", func(e *Entity) { e.Priority = 1 })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteRecordsTombstone(t *testing.T) {
	r := New(nil, nil)

	e, err := r.Create("region", "neutral", "border marches")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Delete(e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := r.Get(e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: %v, want ErrNotFound", err)
	}
	if _, ok := r.Deleted()[e.ID]; !ok {
		t.Error("deletion time not recorded")
	}
	if err := r.Delete(e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: %v, want ErrNotFound", err)
	}
}

func TestByKindAndByRole(t *testing.T) {
	r := New(nil, nil)

	mustCreate := func(kind, role string) *Entity {
		t.Helper()
		e, err := r.Create(kind, role, "")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		return e
	}
	mustCreate("faction", "ally")
	mustCreate("faction", "rival")
	mustCreate("region", "ally")

	if got := len(r.ByKind("faction")); got != 2 {
		t.Errorf("factions = %d, want 2", got)
	}
	if got := len(r.ByRole("ally")); got != 2 {
		t.Errorf("allies = %d, want 2", got)
	}
	if got := len(r.ByKind("character")); got != 0 {
		t.Errorf("characters = %d, want 0", got)
	}
}

func TestCreatePersistsThroughStore(t *testing.T) {
	db := testStore(t)
	r := New(db, nil)

	e, err := r.Create("faction", "ally", "river league")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec, err := db.GetEntity(e.ID)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if rec == nil {
		t.Fatal("entity row missing")
	}
	if rec.Tier != "inactive" {
		t.Errorf("tier = %q, want inactive", rec.Tier)
	}

	vec, err := db.GetEntityVector(e.ID)
	if err != nil {
		t.Fatalf("GetEntityVector: %v", err)
	}
	if vec == nil {
		t.Fatal("vector row missing")
	}
	if vec.Model != "hash-256" {
		t.Errorf("model = %q, want hash-256", vec.Model)
	}
}

func TestLoadRestoresRegistry(t *testing.T) {
	db := testStore(t)

	r1 := New(db, nil)
	e, err := r1.Create("character", "rival", "exiled duke")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r1.Update(e.ID, func(e *Entity) {
		e.Priority = 7
		e.Attrs = map[string]float64{"influence": 0.6}
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	e.State = lifecycle.StateActive
	e.AccessedAt = time.Now()
	if err := r1.Persist(e); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	gone, err := r1.Create("character", "neutral", "forgotten bard")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r1.Delete(gone.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	r2 := New(db, nil)
	if err := r2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	restored, err := r2.Get(e.ID)
	if err != nil {
		t.Fatalf("Get after load: %v", err)
	}
	if restored.Kind != "character" || restored.Priority != 7 {
		t.Errorf("restored = %+v", restored)
	}
	if restored.State != lifecycle.StateActive {
		t.Errorf("state = %v, want active", restored.State)
	}
	if restored.Attrs["influence"] != 0.6 {
		t.Errorf("attrs = %v", restored.Attrs)
	}
	if restored.AccessedAt.UnixMilli() != e.AccessedAt.UnixMilli() {
		t.Errorf("accessed = %v, want %v", restored.AccessedAt, e.AccessedAt)
	}
	if len(restored.Embedding) != DefaultDimensions {
		t.Errorf("embedding dims = %d, want %d", len(restored.Embedding), DefaultDimensions)
	}

	if _, err := r2.Get(gone.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted entity resurrected: %v", err)
	}
	if _, ok := r2.Deleted()[gone.ID]; !ok {
		t.Error("deletion time lost across load")
	}
}
