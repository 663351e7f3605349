package lineage

import (
	"slices"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
)

// chain builds edges A→B→C→D using fqn-less id endpoints.
func chain() []Edge {
	return []Edge{
		{FromID: "A", ToID: "B"},
		{FromID: "B", ToID: "C"},
		{FromID: "C", ToID: "D"},
	}
}

func keys(s mapset.Set[string]) []string {
	out := s.ToSlice()
	slices.Sort(out)
	return out
}

func TestHiddenStateBasics(t *testing.T) {
	h := NewHiddenState()

	if h.Hidden("A", DirectionUpstream) {
		t.Error("fresh state should be fully expanded")
	}

	h.Hide("A", DirectionUpstream)
	if !h.Hidden("A", DirectionUpstream) {
		t.Error("Hide should mark the direction collapsed")
	}
	if h.Hidden("A", DirectionDownstream) {
		t.Error("directions are independent")
	}

	// Hide is idempotent
	h.Hide("A", DirectionUpstream)
	if got := h.Keys(DirectionUpstream); len(got) != 1 {
		t.Errorf("idempotent hide: %v", got)
	}

	h.Show("A", DirectionUpstream)
	if h.Hidden("A", DirectionUpstream) {
		t.Error("Show should clear the collapse")
	}

	// Show on an expanded node is a no-op
	h.Show("A", DirectionUpstream)
}

func TestHiddenStateRestore(t *testing.T) {
	h := NewHiddenState()
	h.Hide("X", DirectionUpstream)

	h.Restore([]string{"A", "B"}, []string{"C"})
	if got := h.Keys(DirectionUpstream); !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("upstream after restore: %v", got)
	}
	if got := h.Keys(DirectionDownstream); !slices.Equal(got, []string{"C"}) {
		t.Errorf("downstream after restore: %v", got)
	}
	if h.Hidden("X", DirectionUpstream) {
		t.Error("restore should replace, not merge")
	}
}

func TestComputeHiddenNodes(t *testing.T) {
	tests := []struct {
		name       string
		edges      []Edge
		upstream   []string
		downstream []string
		want       []string
	}{
		{
			name:     "chain upstream closure",
			edges:    chain(),
			upstream: []string{"D"},
			want:     []string{"A", "B", "C"},
		},
		{
			name:     "chain upstream mid",
			edges:    chain(),
			upstream: []string{"C"},
			want:     []string{"A", "B"},
		},
		{
			name:       "chain downstream closure",
			edges:      chain(),
			downstream: []string{"A"},
			want:       []string{"B", "C", "D"},
		},
		{
			name: "unrelated branch survives",
			edges: append(chain(),
				Edge{FromID: "X", ToID: "D"},
				Edge{FromID: "A", ToID: "Y"}),
			upstream: []string{"C"},
			want:     []string{"A", "B"},
		},
		{
			name: "two-node cycle terminates",
			edges: []Edge{
				{FromID: "A", ToID: "B"},
				{FromID: "B", ToID: "A"},
			},
			upstream: []string{"A"},
			want:     []string{"B"},
		},
		{
			name: "self loop hides nothing",
			edges: []Edge{
				{FromID: "A", ToID: "A"},
			},
			upstream: []string{"A"},
			want:     nil,
		},
		{
			name: "three-node cycle",
			edges: []Edge{
				{FromID: "A", ToID: "B"},
				{FromID: "B", ToID: "C"},
				{FromID: "C", ToID: "A"},
			},
			upstream: []string{"A"},
			want:     []string{"B", "C"},
		},
		{
			name:       "both directions union",
			edges:      chain(),
			upstream:   []string{"B"},
			downstream: []string{"C"},
			want:       []string{"A", "D"},
		},
		{
			name:  "no triggers",
			edges: chain(),
			want:  nil,
		},
		{
			name:     "trigger not in graph",
			edges:    chain(),
			upstream: []string{"Z"},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := mapset.NewThreadUnsafeSet(tt.upstream...)
			down := mapset.NewThreadUnsafeSet(tt.downstream...)

			got := keys(ComputeHiddenNodes(tt.edges, up, down))
			if !slices.Equal(got, tt.want) {
				t.Errorf("hidden = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeHiddenNodesPure(t *testing.T) {
	edges := chain()
	up := mapset.NewThreadUnsafeSet("D")
	down := mapset.NewThreadUnsafeSet[string]()

	ComputeHiddenNodes(edges, up, down)

	if up.Cardinality() != 1 || !up.Contains("D") {
		t.Errorf("trigger set was modified: %v", up.ToSlice())
	}
	if len(edges) != 3 {
		t.Errorf("edge slice was modified: %v", edges)
	}
}

func TestComputeHiddenNodesUsesEdgeKeys(t *testing.T) {
	// Endpoints with FQNs must be joined on the fqn key, not the raw id.
	edges := []Edge{
		{FromID: "id-1", FromFQN: "db.raw", ToID: "id-2", ToFQN: "db.orders"},
	}
	up := mapset.NewThreadUnsafeSet("db.orders")

	got := keys(ComputeHiddenNodes(edges, up, mapset.NewThreadUnsafeSet[string]()))
	if !slices.Equal(got, []string{"db.raw"}) {
		t.Errorf("hidden = %v, want [db.raw]", got)
	}
}
