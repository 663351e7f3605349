// Package pkg provides the core libraries for tablescope lineage exploration.
//
// # Overview
//
// Tablescope explores table-level lineage from a data catalog: starting from
// a center table, it fetches upstream and downstream dependencies, lets the
// user expand and collapse the graph interactively, and renders the result.
// The pkg directory is organized into five main areas:
//
//  1. [lineage] - Domain logic (working graph, hide propagation, renderable
//     transform, layout, exploration sessions)
//  2. [catalog] - Gateway client for the catalog lineage API
//  3. [cache] / [httputil] - Response caching and HTTP retry utilities
//  4. [store] - Snapshot persistence (memory, MongoDB)
//  5. [errors] / [observability] - Structured errors and instrumentation hooks
//
// # Architecture
//
// The typical data flow through tablescope:
//
//	Catalog Lineage API
//	         ↓
//	    [catalog] package (fetch + flatten wire payloads)
//	         ↓
//	    [lineage] package (working graph + hidden state + transform)
//	         ↓
//	    [lineage/layout] package (Graphviz positions, column fallback)
//	         ↓
//	    Terminal explorer / SVG / DOT / JSON / session API
//
// # Quick Start
//
// Open a session and recompute a view:
//
//	import (
//	    "context"
//	    "github.com/tablescope/tablescope/pkg/catalog"
//	    "github.com/tablescope/tablescope/pkg/lineage"
//	    "github.com/tablescope/tablescope/pkg/lineage/layout"
//	)
//
//	gateway, _ := catalog.New(catalog.Config{BaseURL: "https://catalog.example.com"})
//	session, _ := lineage.OpenSession(context.Background(), "warehouse.sales.db.orders",
//	    lineage.SessionConfig{
//	        Gateway:    gateway,
//	        Positioner: layout.New(layout.Options{}),
//	    })
//	defer session.Close()
//
//	view := session.Recompute(context.Background())
//	_ = session.Expand(context.Background(), "warehouse.sales.db.raw_orders",
//	    lineage.DirectionUpstream)
//
// # Main Packages
//
// [lineage] - The exploration domain: [lineage.WorkingGraph] accumulates
// fetched entities and edges, [lineage.HiddenState] tracks per-node collapse
// triggers, [lineage.ComputeHiddenNodes] propagates hides through the edge
// set, and [lineage.ToRenderable] produces the visible node set with
// capability flags. [lineage.Session] coordinates all of it.
//
// [lineage/layout] - Coordinate assignment via Graphviz DOT with a
// deterministic three-column fallback when the engine fails or times out.
//
// [catalog] - HTTP gateway client with retry, rate-limit handling, and
// response caching. Flattens the catalog's keyed wire format into flat
// entity and edge slices.
//
// [cache] - Byte caches (file, Redis, null) with hashed key derivation.
//
// [httputil] - Retry with exponential backoff and a file-backed HTTP
// response cache.
//
// [store] - Snapshot persistence so explorations can be resumed: an
// in-memory store for tests and single-process use, MongoDB for the
// session server.
//
// [errors] - Structured error codes shared by the CLI and the session API.
//
// [observability] - Hook registries for session, layout, cache, and HTTP
// instrumentation with no-op defaults.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...            # All tests
//	go test ./pkg/lineage/...    # Specific package
//	go test -run Example         # Examples only
//
// [lineage]: https://pkg.go.dev/github.com/tablescope/tablescope/pkg/lineage
// [lineage/layout]: https://pkg.go.dev/github.com/tablescope/tablescope/pkg/lineage/layout
// [catalog]: https://pkg.go.dev/github.com/tablescope/tablescope/pkg/catalog
// [cache]: https://pkg.go.dev/github.com/tablescope/tablescope/pkg/cache
// [httputil]: https://pkg.go.dev/github.com/tablescope/tablescope/pkg/httputil
// [store]: https://pkg.go.dev/github.com/tablescope/tablescope/pkg/store
// [errors]: https://pkg.go.dev/github.com/tablescope/tablescope/pkg/errors
// [observability]: https://pkg.go.dev/github.com/tablescope/tablescope/pkg/observability
package pkg
