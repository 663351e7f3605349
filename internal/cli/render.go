package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/spf13/cobra"

	"github.com/tablescope/tablescope/pkg/cache"
	"github.com/tablescope/tablescope/pkg/httputil"
	"github.com/tablescope/tablescope/pkg/lineage"
)

// Output formats for the render command.
const (
	formatSVG  = "svg"
	formatDOT  = "dot"
	formatJSON = "json"
)

// renderCommand creates the "render" command: turn a saved graph file or a
// live fetch into an SVG, DOT, or JSON artifact.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		format  string
		output  string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "render <graph.json|fqn>",
		Short: "Render a lineage graph as SVG, DOT, or JSON",
		Long: `Render a lineage graph. The argument is either a graph JSON file
written by "tablescope lineage -o" or a table FQN to fetch first.

Examples:
  tablescope render orders.json -o orders.svg
  tablescope render warehouse.sales.db.orders --format dot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			graph, err := c.loadOrFetchGraph(ctx, args[0], noCache)
			if err != nil {
				return err
			}

			nodes, edges := lineage.ToRenderable(graph, nil, nil)
			if len(nodes) == 0 {
				return fmt.Errorf("graph has no visible nodes")
			}

			var data []byte
			switch format {
			case formatSVG:
				dot := renderDOT(nodes, edges)
				data, err = c.renderSVGCached(ctx, dot, noCache)
				if err != nil {
					return err
				}
			case formatDOT:
				data = []byte(renderDOT(nodes, edges))
			case formatJSON:
				view := lineage.View{Nodes: nodes, Edges: edges}
				view.Positions, view.LayoutFallback = c.newLayoutEngine().Positions(ctx, nodes, edges)
				data, err = marshalView(view)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q (svg, dot, json)", format)
			}

			if output == "" {
				output = "lineage." + format
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			printSuccess("Rendered %d nodes, %d edges", len(nodes), len(edges))
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatSVG, "output format (svg, dot, json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default lineage.<format>)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the response cache")
	return cmd
}

// loadOrFetchGraph reads a graph file if the argument names one, otherwise
// treats it as an FQN and fetches lineage.
func (c *CLI) loadOrFetchGraph(ctx context.Context, arg string, noCache bool) (*lineage.WorkingGraph, error) {
	if _, err := os.Stat(arg); err == nil {
		return lineage.ReadGraphFile(arg)
	}

	backend := c.newCacheBackend(ctx, noCache)
	defer backend.Close()
	gateway, err := c.newGateway(backend)
	if err != nil {
		return nil, err
	}

	session, err := lineage.OpenSession(ctx, arg, lineage.SessionConfig{
		Gateway: gateway,
		Logger:  c.Logger,
	})
	if err != nil {
		return nil, err
	}
	defer session.Close()
	return lineage.Import(session.ExportGraph())
}

func marshalView(view lineage.View) ([]byte, error) {
	return json.MarshalIndent(view, "", "  ")
}

// renderSVGCached renders DOT to SVG through the artifact cache. The DOT
// text is the cache key: layout is deterministic, so identical graphs yield
// identical DOT and can reuse the rendered artifact.
func (c *CLI) renderSVGCached(ctx context.Context, dot string, noCache bool) ([]byte, error) {
	var artifacts *httputil.Cache
	if !noCache {
		if dir, err := cacheDir(); err == nil {
			if ac, err := httputil.NewCache(filepath.Join(dir, "artifacts"), cache.TTLArtifact); err == nil {
				artifacts = ac.Namespace("svg:")
			}
		}
	}

	if artifacts != nil {
		var svg string
		if ok, _ := artifacts.Get(dot, &svg); ok {
			c.Logger.Debug("artifact cache hit", "bytes", len(svg))
			return []byte(svg), nil
		}
	}

	data, err := renderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	if artifacts != nil {
		_ = artifacts.Set(dot, string(data))
	}
	return data, nil
}

// renderDOT serializes the renderable graph as display DOT: left-to-right,
// labeled boxes, the center filled for emphasis.
func renderDOT(nodes []lineage.RenderableNode, edges []lineage.RenderableEdge) string {
	var buf bytes.Buffer
	buf.WriteString("digraph lineage {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	for _, n := range nodes {
		attrs := []string{fmt.Sprintf("label=%q", n.Entity.Label())}
		if n.Role == lineage.RoleCenter {
			attrs = append(attrs, "fillcolor=lightblue", "penwidth=2")
		}
		if n.UpstreamHidden || n.DownstreamHidden {
			attrs = append(attrs, "style=\"rounded,filled,dashed\"")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.Key, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range edges {
		if e.Edge.Pipeline != "" {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q, fontsize=10];\n", e.From, e.To, e.Edge.Pipeline)
		} else {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// renderSVG renders a DOT graph to SVG using Graphviz in-process.
func renderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
