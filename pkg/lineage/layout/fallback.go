package layout

import (
	"github.com/tablescope/tablescope/pkg/lineage"
)

// fallback places nodes in three columns keyed by role: upstream left of
// the center, downstream right, siblings stacked top-down in input order.
// The center sits at the origin so successive fallback layouts keep it as a
// fixed visual reference.
func (e *Engine) fallback(nodes []lineage.RenderableNode) map[string]lineage.Position {
	columnGap := e.opts.NodeWidth + e.opts.LayerGap
	rowStep := e.opts.NodeHeight + e.opts.SiblingGap

	positions := make(map[string]lineage.Position, len(nodes))
	var upRow, downRow float64
	for _, n := range nodes {
		switch n.Role {
		case lineage.RoleCenter:
			positions[n.Key] = lineage.Position{X: 0, Y: 0}
		case lineage.RoleUpstream:
			positions[n.Key] = lineage.Position{X: -columnGap, Y: upRow * rowStep}
			upRow++
		default:
			positions[n.Key] = lineage.Position{X: columnGap, Y: downRow * rowStep}
			downRow++
		}
	}
	return positions
}
