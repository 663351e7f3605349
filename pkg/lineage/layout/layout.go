package layout

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tablescope/tablescope/pkg/lineage"
	"github.com/tablescope/tablescope/pkg/observability"
)

// Default geometry in points. Node boxes are fixed-size so positions stay
// comparable across recomputes; only the center gets extra height for its
// badge row.
const (
	DefaultNodeWidth    = 220.0
	DefaultNodeHeight   = 56.0
	DefaultCenterHeight = 72.0
	DefaultLayerGap     = 120.0
	DefaultSiblingGap   = 24.0

	// DefaultTimeout bounds a single Graphviz run. Lineage graphs are small;
	// anything slower than this is better served by the column fallback.
	DefaultTimeout = 3 * time.Second
)

// Options configures the layout engine. Zero values take the defaults above.
type Options struct {
	NodeWidth    float64
	NodeHeight   float64
	CenterHeight float64
	LayerGap     float64
	SiblingGap   float64
	Timeout      time.Duration
	Logger       *log.Logger
}

func (o Options) withDefaults() Options {
	if o.NodeWidth <= 0 {
		o.NodeWidth = DefaultNodeWidth
	}
	if o.NodeHeight <= 0 {
		o.NodeHeight = DefaultNodeHeight
	}
	if o.CenterHeight <= 0 {
		o.CenterHeight = DefaultCenterHeight
	}
	if o.LayerGap <= 0 {
		o.LayerGap = DefaultLayerGap
	}
	if o.SiblingGap <= 0 {
		o.SiblingGap = DefaultSiblingGap
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Runner executes a DOT layout and returns the annotated xdot output.
// It exists so tests can substitute the Graphviz invocation.
type Runner func(ctx context.Context, dot string) (string, error)

// Engine computes node positions for renderable graphs.
type Engine struct {
	opts Options
	run  Runner
}

// New creates a layout engine with the given options.
func New(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults(), run: runGraphviz}
}

// NewWithRunner creates an engine with a custom DOT runner.
func NewWithRunner(opts Options, run Runner) *Engine {
	e := New(opts)
	if run != nil {
		e.run = run
	}
	return e
}

// Positions implements [lineage.Positioner]. It returns a coordinate for
// every node and reports whether the column fallback was used. It never
// returns an error: layout degradation is a rendering concern, not a
// session failure.
func (e *Engine) Positions(ctx context.Context, nodes []lineage.RenderableNode, edges []lineage.RenderableEdge) (map[string]lineage.Position, bool) {
	if len(nodes) == 0 {
		return map[string]lineage.Position{}, false
	}

	start := time.Now()
	observability.Layout().OnLayoutStart(ctx, "dot", len(nodes))

	positions, err := e.computeDot(ctx, nodes, edges)
	if err == nil {
		observability.Layout().OnLayoutComplete(ctx, "dot", time.Since(start), false, nil)
		return positions, false
	}

	e.opts.Logger.Warn("graphviz layout failed, using column fallback", "nodes", len(nodes), "err", err)
	positions = e.fallback(nodes)
	observability.Layout().OnLayoutComplete(ctx, "dot", time.Since(start), true, err)
	return positions, true
}

// computeDot runs Graphviz under the engine timeout. The run happens on its
// own goroutine so a wedged native call cannot stall the caller past the
// deadline; a late result is simply dropped.
func (e *Engine) computeDot(ctx context.Context, nodes []lineage.RenderableNode, edges []lineage.RenderableEdge) (map[string]lineage.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	dot, ids := e.buildDOT(nodes, edges)

	type result struct {
		out string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		out, err := e.run(ctx, dot)
		ch <- result{out, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return parsePositions(r.out, ids)
	}
}

var _ lineage.Positioner = (*Engine)(nil)
