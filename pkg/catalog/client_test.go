package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tablescope/tablescope/pkg/cache"
	"github.com/tablescope/tablescope/pkg/errors"
	"github.com/tablescope/tablescope/pkg/lineage"
)

// envelope returns a minimal lineage response centered on db.orders with
// one upstream and one downstream table.
func envelope() map[string]any {
	return map[string]any{
		"nodes": map[string]any{
			"id-orders": map[string]any{
				"entity": map[string]any{"id": "id-orders", "fqn": "db.orders", "name": "orders"},
			},
			"id-raw": map[string]any{
				"entity": map[string]any{"id": "id-raw", "fqn": "db.raw_orders", "name": "raw_orders"},
			},
			"id-daily": map[string]any{
				"entity": map[string]any{"id": "id-daily", "fqn": "db.orders_daily", "name": "orders_daily"},
			},
		},
		"upstreamEdges": map[string]any{
			"e1": map[string]any{
				"fromEntity": map[string]any{"id": "id-raw", "fullyQualifiedName": "db.raw_orders"},
				"toEntity":   map[string]any{"id": "id-orders", "fullyQualifiedName": "db.orders"},
				"lineageDetails": map[string]any{
					"sqlQuery": "insert into orders select * from raw_orders",
					"pipeline": map[string]any{"name": "load_orders"},
				},
			},
		},
		"downstreamEdges": map[string]any{
			// Bare string endpoint refs also occur in the wild
			"e2": map[string]any{
				"fromEntity": "id-orders",
				"toEntity":   "id-daily",
			},
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func TestFetchLineage(t *testing.T) {
	var gotQuery atomic.Value
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Encode())
		json.NewEncoder(w).Encode(envelope())
	})

	result, err := c.FetchLineage(context.Background(), "db.orders", "table", 2, 3)
	if err != nil {
		t.Fatalf("FetchLineage: %v", err)
	}

	if result.Center.FQN != "db.orders" {
		t.Errorf("center: %+v", result.Center)
	}
	if len(result.Entities) != 3 {
		t.Errorf("expected 3 entities, got %d", len(result.Entities))
	}
	if len(result.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(result.Edges))
	}

	// Edges sorted by (FromID, ToID): id-orders->id-daily, id-raw->id-orders
	if result.Edges[0].FromID != "id-orders" || result.Edges[0].ToID != "id-daily" {
		t.Errorf("edge 0: %+v", result.Edges[0])
	}
	if result.Edges[1].Pipeline != "load_orders" {
		t.Errorf("pipeline not decoded: %+v", result.Edges[1])
	}
	if result.Edges[1].SQLQuery == "" {
		t.Errorf("sql query not decoded: %+v", result.Edges[1])
	}

	q := gotQuery.Load().(string)
	for _, want := range []string{"fqn=db.orders", "upstreamDepth=2", "downstreamDepth=3", "type=table"} {
		if !slices.Contains(strings.Split(q, "&"), want) {
			t.Errorf("query missing %s: %s", want, q)
		}
	}
}

func TestFetchLineageCenterNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(envelope())
	})

	_, err := c.FetchLineage(context.Background(), "db.missing", "table", 1, 1)
	if !errors.Is(err, errors.ErrCodeCenterNotFound) {
		t.Errorf("expected center-not-found, got %v", err)
	}
}

func TestFetchLineageNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.FetchLineage(context.Background(), "db.orders", "table", 1, 1)
	if !errors.Is(err, errors.ErrCodeEntityNotFound) {
		t.Errorf("expected entity-not-found, got %v", err)
	}
}

func TestFetchLineageRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(envelope())
	})

	result, err := c.FetchLineage(context.Background(), "db.orders", "table", 1, 1)
	if err != nil {
		t.Fatalf("FetchLineage should recover after retry: %v", err)
	}
	if result.Center.FQN != "db.orders" {
		t.Errorf("center: %+v", result.Center)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestFetchLineageClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.FetchLineage(context.Background(), "db.orders", "table", 1, 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("4xx should not be retried: %d calls", calls.Load())
	}
}

func TestFetchLineageCaching(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(envelope())
	}))
	t.Cleanup(srv.Close)

	backend, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	c, err := New(Config{BaseURL: srv.URL, Cache: backend})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if _, err := c.FetchLineage(ctx, "db.orders", "table", 1, 1); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := c.FetchLineage(ctx, "db.orders", "table", 1, 1); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("second fetch should hit the cache: %d calls", calls.Load())
	}

	// Different parameters must not share an entry
	if _, err := c.FetchLineage(ctx, "db.orders", "table", 2, 1); err != nil {
		t.Fatalf("third fetch: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("different depths should refetch: %d calls", calls.Load())
	}
}

func TestFetchLineageValidatesInput(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made for invalid input")
	})

	tests := []struct {
		name string
		fqn  string
		code errors.Code
		up   int
		down int
	}{
		{"empty fqn", "", errors.ErrCodeInvalidEntity, 1, 1},
		{"traversal fqn", "db/../etc", errors.ErrCodeInvalidEntity, 1, 1},
		{"negative depth", "db.orders", errors.ErrCodeInvalidDepth, -1, 1},
		{"huge depth", "db.orders", errors.ErrCodeInvalidDepth, 1, 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.FetchLineage(context.Background(), tt.fqn, "table", tt.up, tt.down)
			if !errors.Is(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestNotifyCollapse(t *testing.T) {
	var gotBody atomic.Value
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		gotBody.Store(payload)
	})

	if err := c.NotifyCollapse(context.Background(), "id-orders", lineage.DirectionUpstream); err != nil {
		t.Fatalf("NotifyCollapse: %v", err)
	}

	payload := gotBody.Load().(map[string]string)
	if payload["entityId"] != "id-orders" || payload["direction"] != "upstream" {
		t.Errorf("unexpected payload: %v", payload)
	}
}

func TestNotifyCollapseInvalidDirection(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if err := c.NotifyCollapse(context.Background(), "id", lineage.Direction("sideways")); err == nil {
		t.Error("expected error")
	}
}

func TestNewValidatesBaseURL(t *testing.T) {
	if _, err := New(Config{BaseURL: "ftp://catalog"}); err == nil {
		t.Error("expected scheme validation error")
	}
	if _, err := New(Config{}); err == nil {
		t.Error("expected empty URL error")
	}
}
