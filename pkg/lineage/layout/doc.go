// Package layout assigns 2-D coordinates to renderable lineage graphs.
//
// The primary engine builds a left-to-right DOT graph and runs Graphviz
// in-process via [github.com/goccy/go-graphviz], extracting node positions
// from the xdot output. Layout never fails the render: on any engine error,
// timeout, or missing coordinate, the engine degrades to a deterministic
// column placement (upstream left, center fixed, downstream right, input
// order preserved).
//
// Both paths are idempotent for identical input, so recomputed views can be
// applied last-wins without flicker.
package layout
