package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tablescope/tablescope/pkg/lineage"
)

func snap(id string, createdAt time.Time) *lineage.Snapshot {
	return &lineage.Snapshot{
		ID:         id,
		Name:       "exploration " + id,
		EntityType: "table",
		Graph: lineage.Graph{
			Center: "db.orders",
			Entities: []lineage.Entity{
				{ID: "id-orders", FQN: "db.orders"},
			},
		},
		HiddenUpstream: []string{"db.raw_orders"},
		CreatedAt:      createdAt,
	}
}

func TestMemoryStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close(ctx)

	original := snap("s1", time.Now().UTC())
	if err := s.Save(ctx, original); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Name != original.Name || loaded.Graph.Center != "db.orders" {
		t.Errorf("loaded snapshot differs: %+v", loaded)
	}
	if len(loaded.HiddenUpstream) != 1 || loaded.HiddenUpstream[0] != "db.raw_orders" {
		t.Errorf("hidden state not preserved: %v", loaded.HiddenUpstream)
	}

	// Save is an upsert
	original.Name = "renamed"
	if err := s.Save(ctx, original); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, _ = s.Load(ctx, "s1")
	if loaded.Name != "renamed" {
		t.Errorf("upsert did not replace: %s", loaded.Name)
	}
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.Save(ctx, snap("old", base))
	s.Save(ctx, snap("new", base.Add(time.Hour)))
	s.Save(ctx, snap("mid", base.Add(30*time.Minute)))

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(list))
	}
	want := []string{"new", "mid", "old"}
	for i, w := range want {
		if list[i].ID != w {
			t.Errorf("position %d: expected %s, got %s", i, w, list[i].ID)
		}
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Save(ctx, snap("s1", time.Now()))

	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted snapshot still loads: %v", err)
	}
	if err := s.Delete(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete should be ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	original := snap("s1", time.Now())
	s.Save(ctx, original)
	original.Name = "mutated after save"

	loaded, _ := s.Load(ctx, "s1")
	if loaded.Name == "mutated after save" {
		t.Error("store should not alias caller memory")
	}
}
