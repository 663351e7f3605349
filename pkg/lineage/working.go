package lineage

import (
	"errors"
	"slices"
)

var (
	// ErrInvalidEntityID is returned by [WorkingGraph.MergeEntities] when an
	// entity has an empty id. All entities must carry catalog identifiers.
	ErrInvalidEntityID = errors.New("entity ID must not be empty")

	// ErrInvalidEdgeEndpoint is returned by [WorkingGraph.MergeEdges] when an
	// edge is missing its source or target id.
	ErrInvalidEdgeEndpoint = errors.New("edge endpoints must not be empty")
)

// WorkingGraph is the accumulated, deduplicated set of entities and edges
// known to one exploration session. It grows monotonically through merges
// and never shrinks; hiding nodes is a view concern handled by
// [HiddenState], not a removal from the working set.
//
// Invariants: no two entities share an id, and no two edges share the same
// (FromID, ToID) pair. WorkingGraph is not safe for concurrent use without
// external synchronization; [Session] provides that.
type WorkingGraph struct {
	center   string // cross-reference key of the session's center entity
	entities map[string]Entity
	byKey    map[string]string // key → id
	edges    []Edge
	edgeSet  map[edgePair]struct{}
	incoming map[string][]int // target key → indices into edges
	outgoing map[string][]int // source key → indices into edges
}

type edgePair struct{ from, to string }

// NewWorkingGraph creates an empty working graph centered on the entity
// with the given cross-reference key.
func NewWorkingGraph(centerKey string) *WorkingGraph {
	return &WorkingGraph{
		center:   centerKey,
		entities: make(map[string]Entity),
		byKey:    make(map[string]string),
		edgeSet:  make(map[edgePair]struct{}),
		incoming: make(map[string][]int),
		outgoing: make(map[string][]int),
	}
}

// CenterKey returns the cross-reference key of the session's center entity.
func (g *WorkingGraph) CenterKey() string { return g.center }

// MergeEntities adds the given entities, skipping any whose id is already
// present. Returns the number of entities actually added.
func (g *WorkingGraph) MergeEntities(entities []Entity) (int, error) {
	added := 0
	for _, e := range entities {
		if e.ID == "" {
			return added, ErrInvalidEntityID
		}
		if _, exists := g.entities[e.ID]; exists {
			continue
		}
		g.entities[e.ID] = e
		g.byKey[e.Key()] = e.ID
		added++
	}
	return added, nil
}

// MergeEdges adds the given edges, skipping any whose (FromID, ToID) pair is
// already present. Returns the number of edges actually added.
func (g *WorkingGraph) MergeEdges(edges []Edge) (int, error) {
	added := 0
	for _, e := range edges {
		if e.FromID == "" || e.ToID == "" {
			return added, ErrInvalidEdgeEndpoint
		}
		pair := edgePair{from: e.FromID, to: e.ToID}
		if _, exists := g.edgeSet[pair]; exists {
			continue
		}
		g.edgeSet[pair] = struct{}{}
		idx := len(g.edges)
		g.edges = append(g.edges, e)
		g.outgoing[e.FromKey()] = append(g.outgoing[e.FromKey()], idx)
		g.incoming[e.ToKey()] = append(g.incoming[e.ToKey()], idx)
		added++
	}
	return added, nil
}

// Entity returns the entity with the given id.
func (g *WorkingGraph) Entity(id string) (Entity, bool) {
	e, ok := g.entities[id]
	return e, ok
}

// EntityByKey returns the entity with the given cross-reference key.
func (g *WorkingGraph) EntityByKey(key string) (Entity, bool) {
	id, ok := g.byKey[key]
	if !ok {
		return Entity{}, false
	}
	return g.entities[id], true
}

// Entities returns all entities sorted by id for deterministic iteration.
func (g *WorkingGraph) Entities() []Entity {
	out := make([]Entity, 0, len(g.entities))
	for _, e := range g.entities {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entity) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}

// Edges returns a copy of all edges in insertion order.
func (g *WorkingGraph) Edges() []Edge { return slices.Clone(g.edges) }

// EntityCount returns the number of entities in the working set.
func (g *WorkingGraph) EntityCount() int { return len(g.entities) }

// EdgeCount returns the number of edges in the working set.
func (g *WorkingGraph) EdgeCount() int { return len(g.edges) }

// HasUpstream reports whether at least one edge targets the given key.
func (g *WorkingGraph) HasUpstream(key string) bool { return len(g.incoming[key]) > 0 }

// HasDownstream reports whether at least one edge originates at the given key.
func (g *WorkingGraph) HasDownstream(key string) bool { return len(g.outgoing[key]) > 0 }
