// Package catalog implements the lineage gateway against a data-catalog
// REST API.
//
// # Overview
//
// [Client] fetches directional table lineage from the catalog's lineage
// endpoint and translates the wire envelope (a node map plus separate
// upstream/downstream edge maps) into the flat entity/edge lists the
// session layer merges. It also delivers best-effort collapse
// notifications so the catalog can trim server-side exploration state.
//
// # Reliability
//
// Requests go through [httputil.Retry] with exponential backoff; 5xx
// responses and transport errors are retried, 4xx responses are not.
// Successful lineage responses are cached through a [cache.Cache] backend
// keyed by fetch parameters, so repeated exploration of the same entity
// does not hammer the catalog.
package catalog
