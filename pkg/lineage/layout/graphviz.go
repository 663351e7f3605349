package layout

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/tablescope/tablescope/pkg/lineage"
)

// buildDOT serializes the renderable graph as a left-to-right DOT digraph.
// Nodes get synthetic bare identifiers (n0, n1, …) so catalog FQNs never
// need DOT quoting; the returned map translates them back to keys.
//
// Input is sorted before serialization so identical graphs always produce
// identical DOT, which keeps the whole layout idempotent.
func (e *Engine) buildDOT(nodes []lineage.RenderableNode, edges []lineage.RenderableEdge) (string, map[string]string) {
	sorted := slices.Clone(nodes)
	slices.SortFunc(sorted, func(a, b lineage.RenderableNode) int {
		return strings.Compare(a.Key, b.Key)
	})

	byKey := make(map[string]string, len(sorted)) // key -> synthetic id
	ids := make(map[string]string, len(sorted))   // synthetic id -> key

	var buf bytes.Buffer
	buf.WriteString("digraph lineage {\n")
	buf.WriteString("  rankdir=LR;\n")
	fmt.Fprintf(&buf, "  ranksep=%.4f;\n", e.opts.LayerGap/72.0)
	fmt.Fprintf(&buf, "  nodesep=%.4f;\n", e.opts.SiblingGap/72.0)
	buf.WriteString("  node [shape=box, fixedsize=true];\n")
	buf.WriteString("\n")

	for i, n := range sorted {
		id := fmt.Sprintf("n%d", i)
		byKey[n.Key] = id
		ids[id] = n.Key

		height := e.opts.NodeHeight
		if n.Role == lineage.RoleCenter {
			height = e.opts.CenterHeight
		}
		fmt.Fprintf(&buf, "  %s [width=%.4f, height=%.4f];\n", id, e.opts.NodeWidth/72.0, height/72.0)
	}

	buf.WriteString("\n")
	sortedEdges := slices.Clone(edges)
	slices.SortFunc(sortedEdges, func(a, b lineage.RenderableEdge) int {
		if c := strings.Compare(a.From, b.From); c != 0 {
			return c
		}
		return strings.Compare(a.To, b.To)
	})
	for _, edge := range sortedEdges {
		from, okFrom := byKey[edge.From]
		to, okTo := byKey[edge.To]
		if !okFrom || !okTo {
			continue
		}
		fmt.Fprintf(&buf, "  %s -> %s;\n", from, to)
	}

	buf.WriteString("}\n")
	return buf.String(), ids
}

// runGraphviz is the default Runner: it lays the graph out with the dot
// engine and returns the xdot output with position annotations.
func runGraphviz(ctx context.Context, dot string) (string, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return "", fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return "", fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.XDOT, &buf); err != nil {
		return "", fmt.Errorf("layout: %w", err)
	}
	return buf.String(), nil
}

var posRe = regexp.MustCompile(`^\s*(n\d+)\s*\[.*\bpos="(-?[0-9.]+),(-?[0-9.]+)"`)

// parsePositions extracts pos="x,y" attributes from xdot output for the
// synthetic node identifiers. Every id must resolve to a position; a partial
// result would misplace nodes relative to each other, so it is rejected and
// the caller falls back.
func parsePositions(xdot string, ids map[string]string) (map[string]lineage.Position, error) {
	// Graphviz wraps long attribute lists with backslash continuations.
	joined := strings.ReplaceAll(xdot, "\\\n", "")

	positions := make(map[string]lineage.Position, len(ids))
	for _, line := range strings.Split(joined, "\n") {
		if strings.Contains(line, "->") {
			continue
		}
		m := posRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key, ok := ids[m[1]]
		if !ok {
			continue
		}
		x, errX := strconv.ParseFloat(m[2], 64)
		y, errY := strconv.ParseFloat(m[3], 64)
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("malformed position for %s: %q", key, line)
		}
		positions[key] = lineage.Position{X: x, Y: y}
	}

	if len(positions) != len(ids) {
		return nil, fmt.Errorf("incomplete layout: %d of %d nodes positioned", len(positions), len(ids))
	}
	return positions, nil
}
