package catalog

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"

	"github.com/tablescope/tablescope/pkg/cache"
	"github.com/tablescope/tablescope/pkg/errors"
	"github.com/tablescope/tablescope/pkg/lineage"
	"github.com/tablescope/tablescope/pkg/observability"
)

// defaultPageSize bounds the nodes returned per lineage layer.
const defaultPageSize = 50

// === Wire types ===

// lineageEnvelope is the catalog's lineage response: a node map keyed by
// entity id and separate edge maps keyed by an opaque edge identifier.
type lineageEnvelope struct {
	Nodes           map[string]wireNode `json:"nodes"`
	UpstreamEdges   map[string]wireEdge `json:"upstreamEdges"`
	DownstreamEdges map[string]wireEdge `json:"downstreamEdges"`
}

type wireNode struct {
	Entity lineage.Entity `json:"entity"`
	Paging *wirePaging    `json:"paging,omitempty"`
}

type wirePaging struct {
	UpstreamCount   int `json:"entityUpstreamCount"`
	DownstreamCount int `json:"entityDownstreamCount"`
}

type wireEdge struct {
	FromEntity wireRef      `json:"fromEntity"`
	ToEntity   wireRef      `json:"toEntity"`
	Details    *wireDetails `json:"lineageDetails,omitempty"`
}

// wireRef identifies an edge endpoint. The catalog sends either a bare id
// string or an object carrying id plus fully-qualified name.
type wireRef struct {
	ID  string `json:"id"`
	FQN string `json:"fullyQualifiedName,omitempty"`
}

// UnmarshalJSON accepts both the string and the object form.
func (r *wireRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}
	type plain wireRef
	return json.Unmarshal(data, (*plain)(r))
}

type wireDetails struct {
	Pipeline    *wireRefNamed `json:"pipeline,omitempty"`
	Source      string        `json:"source,omitempty"`
	SQLQuery    string        `json:"sqlQuery,omitempty"`
	Description string        `json:"description,omitempty"`
}

type wireRefNamed struct {
	Name string `json:"name,omitempty"`
	FQN  string `json:"fullyQualifiedName,omitempty"`
}

// === Gateway implementation ===

// FetchLineage retrieves directional lineage for the entity with the given
// key and flattens the wire envelope into entity/edge lists. The requested
// entity must appear in the response node map; its absence is a
// center-not-found error even when the request itself succeeded.
func (c *Client) FetchLineage(ctx context.Context, key, entityType string, upstreamDepth, downstreamDepth int) (*lineage.FetchResult, error) {
	if err := errors.ValidateEntityName(key); err != nil {
		return nil, err
	}
	if err := errors.ValidateDepth(upstreamDepth); err != nil {
		return nil, err
	}
	if err := errors.ValidateDepth(downstreamDepth); err != nil {
		return nil, err
	}
	if entityType == "" {
		entityType = "table"
	}

	keyOpts := cache.LineageKeyOpts{
		EntityType:      entityType,
		UpstreamDepth:   upstreamDepth,
		DownstreamDepth: downstreamDepth,
		NodesPerLayer:   defaultPageSize,
	}
	cacheKey := c.keyer.LineageKey(key, keyOpts)
	if c.cache != nil {
		if data, hit, _ := c.cache.Get(ctx, cacheKey); hit {
			var env lineageEnvelope
			if err := json.Unmarshal(data, &env); err == nil {
				observability.Cache().OnCacheHit(ctx, "lineage")
				return c.flatten(key, &env)
			}
			// Corrupt entry, refetch.
			_ = c.cache.Delete(ctx, cacheKey)
		}
		observability.Cache().OnCacheMiss(ctx, "lineage")
	}

	q := url.Values{}
	q.Set("fqn", key)
	q.Set("type", entityType)
	q.Set("upstreamDepth", strconv.Itoa(upstreamDepth))
	q.Set("downstreamDepth", strconv.Itoa(downstreamDepth))
	q.Set("includeDeleted", "false")
	q.Set("size", strconv.Itoa(defaultPageSize))

	var env lineageEnvelope
	if err := c.get(ctx, "/api/v1/lineage?"+q.Encode(), &env); err != nil {
		return nil, err
	}

	result, err := c.flatten(key, &env)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if data, err := json.Marshal(&env); err == nil {
			_ = c.cache.Set(ctx, cacheKey, data, c.cacheTTL)
			observability.Cache().OnCacheSet(ctx, "lineage", len(data))
		}
	}

	c.logger.Debug("fetched lineage",
		"entity", key,
		"nodes", len(env.Nodes),
		"upstream_edges", len(env.UpstreamEdges),
		"downstream_edges", len(env.DownstreamEdges))
	return result, nil
}

// NotifyCollapse tells the catalog a direction was collapsed at a node so
// it can trim server-side exploration state. Best-effort: callers treat any
// error as advisory.
func (c *Client) NotifyCollapse(ctx context.Context, nodeID string, dir lineage.Direction) error {
	if !dir.Valid() {
		return errors.New(errors.ErrCodeInvalidDirection, "unknown direction %q", dir)
	}
	payload := map[string]string{
		"entityId":  nodeID,
		"direction": string(dir),
	}
	return c.put(ctx, "/api/v1/lineage/collapse", payload)
}

// flatten converts the wire envelope to the flat fetch result the session
// merges. Output is sorted so identical responses produce identical results.
func (c *Client) flatten(key string, env *lineageEnvelope) (*lineage.FetchResult, error) {
	result := &lineage.FetchResult{}

	centerFound := false
	for id, node := range env.Nodes {
		entity := node.Entity
		if entity.ID == "" {
			entity.ID = id
		}
		result.Entities = append(result.Entities, entity)
		if entity.Key() == key || entity.ID == key {
			result.Center = entity
			centerFound = true
		}
	}
	if !centerFound {
		return nil, errors.New(errors.ErrCodeCenterNotFound, "entity %s missing from lineage response", key)
	}
	sort.Slice(result.Entities, func(i, j int) bool {
		return result.Entities[i].ID < result.Entities[j].ID
	})

	appendEdges := func(edges map[string]wireEdge) {
		for _, we := range edges {
			edge := lineage.Edge{
				FromID:  we.FromEntity.ID,
				ToID:    we.ToEntity.ID,
				FromFQN: we.FromEntity.FQN,
				ToFQN:   we.ToEntity.FQN,
			}
			if d := we.Details; d != nil {
				edge.Source = d.Source
				edge.SQLQuery = d.SQLQuery
				edge.Description = d.Description
				if d.Pipeline != nil {
					if d.Pipeline.FQN != "" {
						edge.Pipeline = d.Pipeline.FQN
					} else {
						edge.Pipeline = d.Pipeline.Name
					}
				}
			}
			result.Edges = append(result.Edges, edge)
		}
	}
	appendEdges(env.UpstreamEdges)
	appendEdges(env.DownstreamEdges)
	sort.Slice(result.Edges, func(i, j int) bool {
		a, b := result.Edges[i], result.Edges[j]
		if a.FromID != b.FromID {
			return a.FromID < b.FromID
		}
		return a.ToID < b.ToID
	})

	return result, nil
}

// Ensure Client implements the gateway interface.
var _ lineage.Gateway = (*Client)(nil)
