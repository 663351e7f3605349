package layout

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tablescope/tablescope/pkg/lineage"
)

func makeNodes() []lineage.RenderableNode {
	return []lineage.RenderableNode{
		{Key: "db.orders", Role: lineage.RoleCenter},
		{Key: "db.raw_orders", Role: lineage.RoleUpstream},
		{Key: "db.raw_users", Role: lineage.RoleUpstream},
		{Key: "db.orders_daily", Role: lineage.RoleDownstream},
	}
}

func makeEdges() []lineage.RenderableEdge {
	return []lineage.RenderableEdge{
		{From: "db.raw_orders", To: "db.orders"},
		{From: "db.raw_users", To: "db.orders"},
		{From: "db.orders", To: "db.orders_daily"},
	}
}

func TestBuildDOTDeterministic(t *testing.T) {
	e := New(Options{})

	nodes := makeNodes()
	edges := makeEdges()
	dot1, ids1 := e.buildDOT(nodes, edges)

	// Same graph in a different input order
	reversed := []lineage.RenderableNode{nodes[3], nodes[2], nodes[1], nodes[0]}
	revEdges := []lineage.RenderableEdge{edges[2], edges[1], edges[0]}
	dot2, ids2 := e.buildDOT(reversed, revEdges)

	if dot1 != dot2 {
		t.Errorf("DOT output should not depend on input order:\n%s\nvs\n%s", dot1, dot2)
	}
	if len(ids1) != len(ids2) {
		t.Errorf("id maps differ: %v vs %v", ids1, ids2)
	}
	for id, key := range ids1 {
		if ids2[id] != key {
			t.Errorf("id %s maps to %s and %s", id, key, ids2[id])
		}
	}
}

func TestBuildDOTCenterHeight(t *testing.T) {
	e := New(Options{NodeHeight: 56, CenterHeight: 72})
	dot, ids := e.buildDOT(makeNodes(), nil)

	var centerID string
	for id, key := range ids {
		if key == "db.orders" {
			centerID = id
		}
	}
	if centerID == "" {
		t.Fatal("center not in id map")
	}
	if !strings.Contains(dot, centerID+" [width=3.0556, height=1.0000];") {
		t.Errorf("center should use CenterHeight:\n%s", dot)
	}
}

func TestParsePositions(t *testing.T) {
	ids := map[string]string{"n0": "db.orders", "n1": "db.raw_orders"}
	xdot := `digraph lineage {
	graph [bb="0,0,500,200"];
	n0	[height=0.7778,
		pos="380,100",
		width=3.0556];
	n1	[height=0.7778,
		pos="120,100",
		width=3.0556];
	n1 -> n0	[pos="e,270,100 230,100 240,100 250,100 260,100"];
}
`
	// Simulate graphviz line continuations
	xdot = strings.ReplaceAll(xdot, ",\n\t\t", ",\\\n\t\t")

	positions, err := parsePositions(xdot, ids)
	if err != nil {
		t.Fatalf("parsePositions: %v", err)
	}
	if p := positions["db.orders"]; p.X != 380 || p.Y != 100 {
		t.Errorf("db.orders position: %+v", p)
	}
	if p := positions["db.raw_orders"]; p.X != 120 || p.Y != 100 {
		t.Errorf("db.raw_orders position: %+v", p)
	}
}

func TestParsePositionsIncomplete(t *testing.T) {
	ids := map[string]string{"n0": "db.orders", "n1": "db.raw_orders"}
	xdot := `digraph lineage {
	n0	[pos="380,100"];
}
`
	if _, err := parsePositions(xdot, ids); err == nil {
		t.Error("partial layout should be rejected")
	}
}

func TestPositionsWithStubRunner(t *testing.T) {
	e := NewWithRunner(Options{}, func(ctx context.Context, dot string) (string, error) {
		return `digraph lineage {
	n0	[pos="380,100"];
	n1	[pos="380,200"];
	n2	[pos="120,100"];
	n3	[pos="120,200"];
}
`, nil
	})

	positions, fallback := e.Positions(context.Background(), makeNodes(), makeEdges())
	if fallback {
		t.Error("stub runner succeeded, fallback should be false")
	}
	if len(positions) != 4 {
		t.Fatalf("expected 4 positions, got %d", len(positions))
	}
	// n0 is the first key in sorted order: db.orders
	if p := positions["db.orders"]; p.X != 380 || p.Y != 100 {
		t.Errorf("db.orders position: %+v", p)
	}
}

func TestPositionsFallbackOnRunnerError(t *testing.T) {
	e := NewWithRunner(Options{}, func(ctx context.Context, dot string) (string, error) {
		return "", errors.New("boom")
	})

	nodes := makeNodes()
	positions, fallback := e.Positions(context.Background(), nodes, makeEdges())
	if !fallback {
		t.Error("runner error should trigger fallback")
	}
	if len(positions) != len(nodes) {
		t.Fatalf("fallback must position every node: %d of %d", len(positions), len(nodes))
	}

	center := positions["db.orders"]
	if center.X != 0 || center.Y != 0 {
		t.Errorf("center should sit at the origin: %+v", center)
	}
	if positions["db.raw_orders"].X >= 0 {
		t.Error("upstream nodes should sit left of the center")
	}
	if positions["db.orders_daily"].X <= 0 {
		t.Error("downstream nodes should sit right of the center")
	}
	if positions["db.raw_orders"].Y == positions["db.raw_users"].Y {
		t.Error("siblings should not overlap")
	}
}

func TestPositionsFallbackOnTimeout(t *testing.T) {
	e := NewWithRunner(Options{Timeout: 10 * time.Millisecond}, func(ctx context.Context, dot string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	nodes := makeNodes()
	positions, fallback := e.Positions(context.Background(), nodes, makeEdges())
	if !fallback {
		t.Error("timeout should trigger fallback")
	}
	if len(positions) != len(nodes) {
		t.Errorf("fallback must position every node: %d of %d", len(positions), len(nodes))
	}
}

func TestFallbackDeterministic(t *testing.T) {
	e := New(Options{})
	nodes := makeNodes()

	p1 := e.fallback(nodes)
	p2 := e.fallback(nodes)
	if len(p1) != len(p2) {
		t.Fatalf("fallback should be deterministic")
	}
	for key, pos := range p1 {
		if p2[key] != pos {
			t.Errorf("position for %s changed: %+v vs %+v", key, pos, p2[key])
		}
	}
}

func TestPositionsEmptyGraph(t *testing.T) {
	e := New(Options{})
	positions, fallback := e.Positions(context.Background(), nil, nil)
	if fallback {
		t.Error("empty graph should not be a fallback")
	}
	if len(positions) != 0 {
		t.Errorf("expected empty positions, got %v", positions)
	}
}
