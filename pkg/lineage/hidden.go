package lineage

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// HiddenState tracks, per node key, which directions the user has collapsed.
// A key in the upstream set means "this node's upstream is hidden"; the
// transitive effect on other nodes is computed by [ComputeHiddenNodes].
// Both sets start empty (fully expanded view).
type HiddenState struct {
	upstream   mapset.Set[string]
	downstream mapset.Set[string]
}

// NewHiddenState creates a fully-expanded hidden state.
func NewHiddenState() *HiddenState {
	return &HiddenState{
		upstream:   mapset.NewThreadUnsafeSet[string](),
		downstream: mapset.NewThreadUnsafeSet[string](),
	}
}

// Hide marks the given direction as collapsed at key. Idempotent.
func (h *HiddenState) Hide(key string, dir Direction) {
	h.set(dir).Add(key)
}

// Show marks the given direction as expanded at key. Idempotent.
func (h *HiddenState) Show(key string, dir Direction) {
	h.set(dir).Remove(key)
}

// Hidden reports whether the given direction is collapsed at key.
func (h *HiddenState) Hidden(key string, dir Direction) bool {
	return h.set(dir).Contains(key)
}

// Keys returns the collapsed node keys for one direction, sorted.
func (h *HiddenState) Keys(dir Direction) []string {
	keys := h.set(dir).ToSlice()
	slices.Sort(keys)
	return keys
}

// Restore replaces the hidden sets with the given keys. Used when resuming
// a saved exploration snapshot.
func (h *HiddenState) Restore(upstream, downstream []string) {
	h.upstream = mapset.NewThreadUnsafeSet(upstream...)
	h.downstream = mapset.NewThreadUnsafeSet(downstream...)
}

func (h *HiddenState) set(dir Direction) mapset.Set[string] {
	if dir == DirectionUpstream {
		return h.upstream
	}
	return h.downstream
}

// ComputeHiddenNodes returns the keys of every node that must be removed
// from the rendered graph given the full edge set and the two sets of
// directly-collapsed nodes.
//
// For each node in upstreamHiddenAt, its upstream neighbors are hidden, and
// the closure continues through each newly hidden node's own upstream.
// The downstream set is handled symmetrically, and the union of both
// closures is returned.
//
// The traversal is an explicit worklist with a visited guard, so cyclic
// edge sets terminate. The collapsed nodes themselves stay visible: hiding
// upstream at A in the cycle A→B→A hides exactly {B}. The function is pure;
// neither the edge slice nor the input sets are modified.
func ComputeHiddenNodes(edges []Edge, upstreamHiddenAt, downstreamHiddenAt mapset.Set[string]) mapset.Set[string] {
	parents := make(map[string][]string)  // target key → source keys
	children := make(map[string][]string) // source key → target keys
	for _, e := range edges {
		parents[e.ToKey()] = append(parents[e.ToKey()], e.FromKey())
		children[e.FromKey()] = append(children[e.FromKey()], e.ToKey())
	}

	hidden := mapset.NewThreadUnsafeSet[string]()
	hidden = hidden.Union(closure(parents, upstreamHiddenAt))
	hidden = hidden.Union(closure(children, downstreamHiddenAt))
	return hidden
}

// closure walks the neighbor relation outward from each trigger node's
// immediate neighbors. Trigger nodes are seeded as visited so they are never
// hidden by their own collapse.
func closure(neighbors map[string][]string, triggers mapset.Set[string]) mapset.Set[string] {
	result := mapset.NewThreadUnsafeSet[string]()
	if triggers == nil || triggers.Cardinality() == 0 {
		return result
	}

	visited := triggers.Clone()
	var stack []string
	for trigger := range triggers.Iter() {
		stack = append(stack, neighbors[trigger]...)
	}

	for len(stack) > 0 {
		key := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited.Contains(key) {
			continue
		}
		visited.Add(key)
		result.Add(key)
		stack = append(stack, neighbors[key]...)
	}
	return result
}
