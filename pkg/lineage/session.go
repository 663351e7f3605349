package lineage

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/tablescope/tablescope/pkg/errors"
	"github.com/tablescope/tablescope/pkg/observability"
)

// Default traversal depths for the initial lineage fetch.
const (
	DefaultUpstreamDepth   = 2
	DefaultDownstreamDepth = 2
)

// FetchResult is the directional lineage data a [Gateway] returns for one
// entity. Center identifies the requested entity within the result.
type FetchResult struct {
	Center   Entity
	Entities []Entity
	Edges    []Edge
}

// Gateway fetches raw lineage records from the catalog service. A depth of
// 0 in a direction means "do not traverse that direction".
type Gateway interface {
	FetchLineage(ctx context.Context, key, entityType string, upstreamDepth, downstreamDepth int) (*FetchResult, error)
	NotifyCollapse(ctx context.Context, nodeID string, dir Direction) error
}

// Position is a 2-D coordinate assigned to a renderable node.
type Position struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Positioner assigns coordinates to the renderable node set. Implementations
// must be idempotent for identical input and must always return a position
// for every node, falling back to deterministic placement on failure.
type Positioner interface {
	Positions(ctx context.Context, nodes []RenderableNode, edges []RenderableEdge) (map[string]Position, bool)
}

// View is one complete render pass: the visible nodes and edges plus their
// positions. Generation increases with every recompute so hosts can detect
// stale asynchronous results (last-applied-wins is fine, layout is
// idempotent).
type View struct {
	Nodes          []RenderableNode    `json:"nodes"`
	Edges          []RenderableEdge    `json:"edges"`
	Positions      map[string]Position `json:"positions"`
	LayoutFallback bool                `json:"layout_fallback,omitempty"`
	Generation     uint64              `json:"generation"`
}

// Snapshot is the persistable state of an exploration session.
type Snapshot struct {
	ID               string    `json:"id" bson:"_id"`
	Name             string    `json:"name,omitempty" bson:"name,omitempty"`
	EntityType       string    `json:"entity_type" bson:"entity_type"`
	Graph            Graph     `json:"graph" bson:"graph"`
	HiddenUpstream   []string  `json:"hidden_upstream,omitempty" bson:"hidden_upstream,omitempty"`
	HiddenDownstream []string  `json:"hidden_downstream,omitempty" bson:"hidden_downstream,omitempty"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
}

// SessionConfig configures a new exploration session.
type SessionConfig struct {
	Gateway    Gateway
	Positioner Positioner
	Transport  Transport // optional; nil means no events are published
	Logger     *log.Logger

	EntityType      string // catalog entity type, defaults to "table"
	UpstreamDepth   int    // initial fetch depth, defaults to DefaultUpstreamDepth
	DownstreamDepth int
}

// Session coordinates one lineage exploration: it owns the working graph
// and hidden state, drives expand/collapse against the gateway, and
// publishes recomputed views through the transport.
//
// All graph-state mutations happen under the session mutex as discrete
// atomic updates; in-flight fetch results arriving after Close are
// discarded.
type Session struct {
	id         string
	entityType string
	gateway    Gateway
	positioner Positioner
	transport  Transport
	logger     *log.Logger

	mu         sync.Mutex
	graph      *WorkingGraph
	hidden     *HiddenState
	center     Entity
	generation uint64
	closed     bool
}

// OpenSession fetches initial lineage for the entity with the given key and
// returns a live session seeded with the result. Fetch failures and a
// missing center entity are surfaced as retryable errors.
func OpenSession(ctx context.Context, key string, cfg SessionConfig) (*Session, error) {
	if cfg.Gateway == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "session requires a gateway")
	}
	if cfg.EntityType == "" {
		cfg.EntityType = "table"
	}
	if cfg.UpstreamDepth <= 0 {
		cfg.UpstreamDepth = DefaultUpstreamDepth
	}
	if cfg.DownstreamDepth <= 0 {
		cfg.DownstreamDepth = DefaultDownstreamDepth
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	result, err := cfg.Gateway.FetchLineage(ctx, key, cfg.EntityType, cfg.UpstreamDepth, cfg.DownstreamDepth)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:         uuid.NewString(),
		entityType: cfg.EntityType,
		gateway:    cfg.Gateway,
		positioner: cfg.Positioner,
		transport:  cfg.Transport,
		logger:     cfg.Logger,
		graph:      NewWorkingGraph(result.Center.Key()),
		hidden:     NewHiddenState(),
		center:     result.Center,
	}
	if err := s.merge(result); err != nil {
		return nil, err
	}

	s.logger.Info("opened lineage session",
		"center", result.Center.Key(),
		"entities", s.graph.EntityCount(),
		"edges", s.graph.EdgeCount())
	return s, nil
}

// ResumeSession rebuilds a session from a saved snapshot. No fetch is
// performed; the working graph and hidden state come from the snapshot.
func ResumeSession(snap *Snapshot, cfg SessionConfig) (*Session, error) {
	if cfg.Gateway == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "session requires a gateway")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	g, err := Import(snap.Graph)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "corrupt snapshot %s", snap.ID)
	}
	center, ok := g.EntityByKey(snap.Graph.Center)
	if !ok {
		return nil, errors.New(errors.ErrCodeCenterNotFound, "snapshot %s has no center entity", snap.ID)
	}

	entityType := snap.EntityType
	if entityType == "" {
		entityType = "table"
	}
	s := &Session{
		id:         snap.ID,
		entityType: entityType,
		gateway:    cfg.Gateway,
		positioner: cfg.Positioner,
		transport:  cfg.Transport,
		logger:     cfg.Logger,
		graph:      g,
		hidden:     NewHiddenState(),
		center:     center,
	}
	s.hidden.Restore(snap.HiddenUpstream, snap.HiddenDownstream)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Center returns the session's center entity.
func (s *Session) Center() Entity { return s.center }

// Expand makes the given direction visible at the node with the given key
// and requests one additional depth level of lineage in that direction.
// A failed or empty fetch degrades to "no additional data": the direction
// still becomes visible locally and an EventExpandFailed is published, but
// no error is returned. Expanding an already-visible direction only
// triggers the probe fetch; the hidden state is untouched.
func (s *Session) Expand(ctx context.Context, key string, dir Direction) error {
	if !dir.Valid() {
		return errors.New(errors.ErrCodeInvalidDirection, "unknown direction %q", dir)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeSessionClosed, "session %s is closed", s.id)
	}
	s.hidden.Show(key, dir)
	entity, ok := s.graph.EntityByKey(key)
	s.mu.Unlock()
	if !ok {
		return errors.New(errors.ErrCodeEntityNotFound, "node %s is not in the working graph", key)
	}

	upDepth, downDepth := 0, 0
	if dir == DirectionUpstream {
		upDepth = 1
	} else {
		downDepth = 1
	}

	start := time.Now()
	observability.Session().OnExpandStart(ctx, key, string(dir))
	result, err := s.gateway.FetchLineage(ctx, entity.Key(), s.entityType, upDepth, downDepth)
	observability.Session().OnExpandComplete(ctx, key, string(dir), time.Since(start), err)

	if err != nil {
		// A failed expansion must not destroy the current view.
		s.logger.Warn("expand returned no data", "node", key, "direction", dir, "err", err)
		s.publish(Event{Type: EventExpandFailed, SessionID: s.id, Message: errors.UserMessage(err)})
		s.Recompute(ctx)
		return nil
	}

	s.mu.Lock()
	if s.closed {
		// Session torn down while the fetch was in flight; discard.
		s.mu.Unlock()
		return nil
	}
	added, mergeErr := s.mergeLocked(result)
	s.mu.Unlock()
	if mergeErr != nil {
		return mergeErr
	}

	s.logger.Debug("expanded node", "node", key, "direction", dir, "added", added)
	s.Recompute(ctx)
	return nil
}

// Collapse hides the given direction at the node with the given key and
// notifies the catalog best-effort. The local hide takes effect regardless
// of remote acknowledgement. Collapsing an already-hidden direction is a
// no-op apart from the recompute.
func (s *Session) Collapse(ctx context.Context, key string, dir Direction) error {
	if !dir.Valid() {
		return errors.New(errors.ErrCodeInvalidDirection, "unknown direction %q", dir)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeSessionClosed, "session %s is closed", s.id)
	}
	s.hidden.Hide(key, dir)
	entity, ok := s.graph.EntityByKey(key)
	s.mu.Unlock()

	observability.Session().OnCollapse(ctx, key, string(dir))
	if ok {
		// Fire-and-forget; a failure must not roll back the local hide.
		go func(id string) {
			if err := s.gateway.NotifyCollapse(context.WithoutCancel(ctx), id, dir); err != nil {
				s.logger.Debug("collapse notification failed", "node", id, "err", err)
			}
		}(entity.ID)
	}

	s.Recompute(ctx)
	return nil
}

// Recompute runs the full pipeline (hidden closure → transform → layout)
// and publishes the resulting view. It is also the View a caller would see;
// use this after out-of-band state changes.
func (s *Session) Recompute(ctx context.Context) View {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return View{}
	}
	// The closure and the transform read the working graph and the hidden
	// sets, which a concurrent Expand mutates under the same mutex. They
	// must run locked; only layout and publishing happen outside.
	hiddenNodes := ComputeHiddenNodes(s.graph.Edges(),
		s.hidden.set(DirectionUpstream),
		s.hidden.set(DirectionDownstream))
	nodes, visibleEdges := ToRenderable(s.graph, hiddenNodes, s.hidden)
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	view := View{
		Nodes:      nodes,
		Edges:      visibleEdges,
		Generation: gen,
	}
	if s.positioner != nil {
		view.Positions, view.LayoutFallback = s.positioner.Positions(ctx, nodes, visibleEdges)
	}

	s.publish(Event{Type: EventGraphUpdated, SessionID: s.id, View: &view})
	return view
}

// Snapshot captures the session's persistable state.
func (s *Session) Snapshot(name string) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Snapshot{
		ID:               s.id,
		Name:             name,
		EntityType:       s.entityType,
		Graph:            s.graph.Export(),
		HiddenUpstream:   s.hidden.Keys(DirectionUpstream),
		HiddenDownstream: s.hidden.Keys(DirectionDownstream),
		CreatedAt:        time.Now().UTC(),
	}
}

// ExportGraph returns the working graph in its serialization format.
func (s *Session) ExportGraph() Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Export()
}

// Stats returns the working-set entity and edge counts.
func (s *Session) Stats() (entities, edges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.EntityCount(), s.graph.EdgeCount()
}

// Close tears the session down. In-flight fetch results arriving afterwards
// are discarded. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.publish(Event{Type: EventSessionClosed, SessionID: s.id})
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) merge(result *FetchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.mergeLocked(result)
	return err
}

// mergeLocked appends fetch results to the working set, deduplicating by
// entity id and (FromID, ToID) pair. Caller holds s.mu.
func (s *Session) mergeLocked(result *FetchResult) (int, error) {
	addedEntities, err := s.graph.MergeEntities(result.Entities)
	if err != nil {
		return 0, err
	}
	addedEdges, err := s.graph.MergeEdges(result.Edges)
	if err != nil {
		return addedEntities, err
	}
	return addedEntities + addedEdges, nil
}

func (s *Session) publish(e Event) {
	if s.transport != nil {
		s.transport.Send(e)
	}
}
