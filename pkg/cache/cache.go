// Package cache provides byte-level caching for lineage data, computed
// layouts, and rendered artifacts.
//
// Two backends are provided:
//   - [FileCache]: filesystem cache for CLI usage
//   - [RedisCache]: shared cache for the session server
//
// [NullCache] disables caching entirely (useful in tests).
//
// Cache keys are produced by a [Keyer] so that every caller agrees on the
// key schema and keys can be prefixed per tenant via [ScopedKeyer].
package cache

import (
	"context"
	"time"
)

// Default TTLs per data class. Lineage responses change as pipelines run,
// so they expire quickly; layouts and artifacts are pure functions of their
// inputs and can live much longer.
const (
	TTLHTTP     = 1 * time.Hour
	TTLLineage  = 1 * time.Hour
	TTLLayout   = 7 * 24 * time.Hour
	TTLArtifact = 30 * 24 * time.Hour
)

// Cache is the minimal byte-level caching interface.
type Cache interface {
	// Get retrieves a value. The bool reports whether the key was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL. A TTL of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// LineageKeyOpts captures the fetch parameters that affect a lineage
// response. Two fetches with different options must not share a cache entry.
type LineageKeyOpts struct {
	EntityType      string
	UpstreamDepth   int
	DownstreamDepth int
	IncludeDeleted  bool
	NodesPerLayer   int
}

// LayoutKeyOpts captures the layout parameters that affect node positions.
type LayoutKeyOpts struct {
	Engine     string
	NodeWidth  int
	NodeHeight int
	LayerGap   int
	SiblingGap int
}

// ArtifactKeyOpts captures the render parameters that affect output bytes.
type ArtifactKeyOpts struct {
	Format string
	Theme  string
}

// Keyer generates cache keys for the different data classes.
type Keyer interface {
	// HTTPKey generates a key for a raw catalog HTTP response.
	HTTPKey(namespace, key string) string

	// LineageKey generates a key for a fetched lineage graph.
	LineageKey(fqn string, opts LineageKeyOpts) string

	// LayoutKey generates a key for computed node positions,
	// keyed by the hash of the graph they were computed from.
	LayoutKey(graphHash string, opts LayoutKeyOpts) string

	// ArtifactKey generates a key for a rendered artifact,
	// keyed by the hash of the layout it was rendered from.
	ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer is the standard key schema.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// HTTPKey generates a key for HTTP response caching.
// HTTP keys stay human-readable so they can be inspected and deleted
// individually; the other classes hash their options.
func (k *DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

// LineageKey generates a key for lineage graph caching.
func (k *DefaultKeyer) LineageKey(fqn string, opts LineageKeyOpts) string {
	return hashKey("lineage", fqn, opts)
}

// LayoutKey generates a key for layout caching.
func (k *DefaultKeyer) LayoutKey(graphHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", graphHash, opts)
}

// ArtifactKey generates a key for artifact caching.
func (k *DefaultKeyer) ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", layoutHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
