// Package lineage implements the incremental table-lineage graph engine.
//
// The package models one exploration session around a single center entity:
// a deduplicated [WorkingGraph] accumulates entities and edges fetched from
// the catalog, a [HiddenState] tracks which directions the user collapsed,
// and [ToRenderable] projects the two into the node/edge set a renderer can
// draw. The [Session] type coordinates user-triggered expand/collapse
// operations against a [Gateway] and publishes updated views through a
// [Transport].
//
// # Data flow
//
// Every mutation follows the same recompute pipeline:
//
//	expand/collapse → hidden closure → renderable transform → layout → event
//
// The working graph only ever grows; hiding is a view concern. Merges are
// idempotent, so concurrent expand requests for different (node, direction)
// pairs cannot corrupt the graph.
//
// # Hide propagation
//
// Collapsing a direction at a node hides that node's neighbors in the
// direction and, transitively, everything further out. The closure is
// computed by [ComputeHiddenNodes] as an explicit worklist traversal with a
// visited guard, so cyclic edge sets terminate.
package lineage
