package lineage

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// Role classifies a renderable node relative to the session's center.
type Role string

const (
	RoleCenter     Role = "center"
	RoleUpstream   Role = "upstream"
	RoleDownstream Role = "downstream"
)

// RenderableNode is the derived, per-render projection of one visible
// entity. It is recomputed on every render pass and never persisted.
type RenderableNode struct {
	Entity Entity `json:"entity" bson:"entity"`
	Key    string `json:"key" bson:"key"`
	Role   Role   `json:"role" bson:"role"`

	// Connection facts derived from the working graph.
	HasUpstream   bool `json:"has_upstream" bson:"has_upstream"`
	HasDownstream bool `json:"has_downstream" bson:"has_downstream"`

	// Hidden-direction flags from the session's HiddenState.
	UpstreamHidden   bool `json:"upstream_hidden" bson:"upstream_hidden"`
	DownstreamHidden bool `json:"downstream_hidden" bson:"downstream_hidden"`

	// Control visibility per the capability policy (see ToRenderable).
	CanExpandUpstream     bool `json:"can_expand_upstream" bson:"can_expand_upstream"`
	CanCollapseUpstream   bool `json:"can_collapse_upstream" bson:"can_collapse_upstream"`
	CanExpandDownstream   bool `json:"can_expand_downstream" bson:"can_expand_downstream"`
	CanCollapseDownstream bool `json:"can_collapse_downstream" bson:"can_collapse_downstream"`
}

// RenderableEdge is a visible edge between two surviving nodes, identified
// by their cross-reference keys.
type RenderableEdge struct {
	From string `json:"from" bson:"from"`
	To   string `json:"to" bson:"to"`
	Edge Edge   `json:"edge" bson:"edge"`
}

// ToRenderable projects the working graph onto the renderable node/edge set
// for the current render pass.
//
// Classification: a node is the center iff its key equals the graph's
// center key; otherwise it is downstream iff its key appears as an edge
// target, else upstream. Entities whose key is in hiddenNodes are dropped,
// as is every edge touching a hidden node.
//
// Capability policy:
//   - A node is eligible for an upstream control if it is the center, has an
//     upstream connection, or is an upstream frontier node worth probing for
//     more data. Symmetric for downstream.
//   - Upstream collapse is restricted to the center: collapsing upstream at
//     a non-center upstream node would disconnect it from its own parents.
//     A node with hidden upstream (or an unprobed frontier) shows an expand
//     control instead.
//   - Downstream collapse has no such restriction; any node with visible
//     downstream connections may collapse them.
//
// Output is sorted by key (nodes) and by endpoint pair (edges) for
// deterministic rendering and stable tests.
func ToRenderable(g *WorkingGraph, hiddenNodes mapset.Set[string], hidden *HiddenState) ([]RenderableNode, []RenderableEdge) {
	if hiddenNodes == nil {
		hiddenNodes = mapset.NewThreadUnsafeSet[string]()
	}
	if hidden == nil {
		hidden = NewHiddenState()
	}

	// Reachability sets built once from all edges: an edge's target key is
	// downstream of something, its source key upstream of something.
	downstreamKeys := mapset.NewThreadUnsafeSet[string]()
	upstreamKeys := mapset.NewThreadUnsafeSet[string]()
	for _, e := range g.Edges() {
		downstreamKeys.Add(e.ToKey())
		upstreamKeys.Add(e.FromKey())
	}

	var nodes []RenderableNode
	for _, entity := range g.Entities() {
		key := entity.Key()
		if hiddenNodes.Contains(key) {
			continue
		}

		role := RoleUpstream
		switch {
		case key == g.CenterKey():
			role = RoleCenter
		case downstreamKeys.Contains(key):
			role = RoleDownstream
		}

		n := RenderableNode{
			Entity:           entity,
			Key:              key,
			Role:             role,
			HasUpstream:      g.HasUpstream(key),
			HasDownstream:    g.HasDownstream(key),
			UpstreamHidden:   hidden.Hidden(key, DirectionUpstream),
			DownstreamHidden: hidden.Hidden(key, DirectionDownstream),
		}

		upstreamEligible := role == RoleCenter || n.HasUpstream || role == RoleUpstream
		n.CanCollapseUpstream = upstreamEligible && role == RoleCenter && n.HasUpstream && !n.UpstreamHidden
		n.CanExpandUpstream = upstreamEligible && (n.UpstreamHidden || !n.HasUpstream)

		downstreamEligible := role == RoleCenter || n.HasDownstream || role == RoleDownstream
		n.CanCollapseDownstream = downstreamEligible && n.HasDownstream && !n.DownstreamHidden
		n.CanExpandDownstream = downstreamEligible && (n.DownstreamHidden || !n.HasDownstream)

		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b RenderableNode) int {
		if a.Key < b.Key {
			return -1
		}
		if a.Key > b.Key {
			return 1
		}
		return 0
	})

	visible := mapset.NewThreadUnsafeSet[string]()
	for _, n := range nodes {
		visible.Add(n.Key)
	}

	var edges []RenderableEdge
	for _, e := range g.Edges() {
		from, to := e.FromKey(), e.ToKey()
		if !visible.Contains(from) || !visible.Contains(to) {
			continue
		}
		edges = append(edges, RenderableEdge{From: from, To: to, Edge: e})
	}
	slices.SortFunc(edges, func(a, b RenderableEdge) int {
		if a.From != b.From {
			if a.From < b.From {
				return -1
			}
			return 1
		}
		if a.To < b.To {
			return -1
		}
		if a.To > b.To {
			return 1
		}
		return 0
	})

	return nodes, edges
}
