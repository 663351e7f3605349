package lineage

import (
	"errors"
	"testing"
)

func testEntities() []Entity {
	return []Entity{
		{ID: "id-a", FQN: "db.a"},
		{ID: "id-b", FQN: "db.b"},
		{ID: "id-c", FQN: "db.c"},
	}
}

func testEdges() []Edge {
	return []Edge{
		{FromID: "id-a", ToID: "id-b", FromFQN: "db.a", ToFQN: "db.b"},
		{FromID: "id-b", ToID: "id-c", FromFQN: "db.b", ToFQN: "db.c"},
	}
}

func TestWorkingGraphMerge(t *testing.T) {
	g := NewWorkingGraph("db.b")

	added, err := g.MergeEntities(testEntities())
	if err != nil {
		t.Fatalf("MergeEntities: %v", err)
	}
	if added != 3 {
		t.Errorf("added = %d, want 3", added)
	}

	added, err = g.MergeEdges(testEdges())
	if err != nil {
		t.Fatalf("MergeEdges: %v", err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}

	if g.EntityCount() != 3 || g.EdgeCount() != 2 {
		t.Errorf("counts: %d entities, %d edges", g.EntityCount(), g.EdgeCount())
	}
}

func TestWorkingGraphMergeIdempotent(t *testing.T) {
	g := NewWorkingGraph("db.b")
	g.MergeEntities(testEntities())
	g.MergeEdges(testEdges())

	// Merging the identical result again changes nothing
	addedEntities, _ := g.MergeEntities(testEntities())
	addedEdges, _ := g.MergeEdges(testEdges())

	if addedEntities != 0 || addedEdges != 0 {
		t.Errorf("second merge added %d entities, %d edges", addedEntities, addedEdges)
	}
	if g.EntityCount() != 3 || g.EdgeCount() != 2 {
		t.Errorf("counts after remerge: %d entities, %d edges", g.EntityCount(), g.EdgeCount())
	}
}

func TestWorkingGraphNoDuplicateEdges(t *testing.T) {
	g := NewWorkingGraph("db.b")
	g.MergeEntities(testEntities())

	// The same (from, to) pair with different provenance is still a duplicate
	g.MergeEdges([]Edge{{FromID: "id-a", ToID: "id-b"}})
	g.MergeEdges([]Edge{{FromID: "id-a", ToID: "id-b", Pipeline: "etl"}})

	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount = %d, want 1", g.EdgeCount())
	}

	// The reverse pair is distinct
	g.MergeEdges([]Edge{{FromID: "id-b", ToID: "id-a"}})
	if g.EdgeCount() != 2 {
		t.Errorf("EdgeCount = %d, want 2", g.EdgeCount())
	}
}

func TestWorkingGraphMergeErrors(t *testing.T) {
	g := NewWorkingGraph("db.b")

	if _, err := g.MergeEntities([]Entity{{FQN: "db.x"}}); !errors.Is(err, ErrInvalidEntityID) {
		t.Errorf("empty id: %v", err)
	}
	if _, err := g.MergeEdges([]Edge{{FromID: "id-a"}}); !errors.Is(err, ErrInvalidEdgeEndpoint) {
		t.Errorf("missing endpoint: %v", err)
	}

	// Valid entries before the bad one are kept
	added, err := g.MergeEntities([]Entity{{ID: "id-ok"}, {}})
	if err == nil {
		t.Error("expected error")
	}
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}
	if g.EntityCount() != 1 {
		t.Errorf("EntityCount = %d, want 1", g.EntityCount())
	}
}

func TestWorkingGraphLookups(t *testing.T) {
	g := NewWorkingGraph("db.b")
	g.MergeEntities(testEntities())
	g.MergeEdges(testEdges())

	if _, ok := g.Entity("id-a"); !ok {
		t.Error("Entity by id failed")
	}
	e, ok := g.EntityByKey("db.a")
	if !ok || e.ID != "id-a" {
		t.Errorf("EntityByKey: %+v, %v", e, ok)
	}
	if _, ok := g.EntityByKey("db.missing"); ok {
		t.Error("missing key should not resolve")
	}

	// Key falls back to id for entities without an fqn
	g.MergeEntities([]Entity{{ID: "bare-id"}})
	if _, ok := g.EntityByKey("bare-id"); !ok {
		t.Error("id fallback key should resolve")
	}
}

func TestWorkingGraphConnections(t *testing.T) {
	g := NewWorkingGraph("db.b")
	g.MergeEntities(testEntities())
	g.MergeEdges(testEdges())

	tests := []struct {
		key     string
		hasUp   bool
		hasDown bool
	}{
		{"db.a", false, true},
		{"db.b", true, true},
		{"db.c", true, false},
		{"db.unknown", false, false},
	}
	for _, tt := range tests {
		if got := g.HasUpstream(tt.key); got != tt.hasUp {
			t.Errorf("HasUpstream(%s) = %v", tt.key, got)
		}
		if got := g.HasDownstream(tt.key); got != tt.hasDown {
			t.Errorf("HasDownstream(%s) = %v", tt.key, got)
		}
	}
}

func TestWorkingGraphEntitiesSorted(t *testing.T) {
	g := NewWorkingGraph("db.b")
	g.MergeEntities([]Entity{{ID: "z"}, {ID: "a"}, {ID: "m"}})

	entities := g.Entities()
	for i := 1; i < len(entities); i++ {
		if entities[i-1].ID > entities[i].ID {
			t.Errorf("entities not sorted: %v", entities)
		}
	}
}
