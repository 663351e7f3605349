package lineage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Graph is the canonical serialization format for a working graph.
// Used for file output, the session HTTP API, and snapshot storage.
// Entities are sorted by id so marshaling is deterministic.
type Graph struct {
	Center   string   `json:"center" bson:"center"`
	Entities []Entity `json:"entities" bson:"entities"`
	Edges    []Edge   `json:"edges" bson:"edges"`
}

// Export converts the working graph to its serialization format.
func (g *WorkingGraph) Export() Graph {
	return Graph{
		Center:   g.CenterKey(),
		Entities: g.Entities(),
		Edges:    g.Edges(),
	}
}

// Import rebuilds a working graph from its serialization format.
// Duplicate entities or edges in the input are silently deduplicated.
func Import(data Graph) (*WorkingGraph, error) {
	g := NewWorkingGraph(data.Center)
	if _, err := g.MergeEntities(data.Entities); err != nil {
		return nil, fmt.Errorf("import entities: %w", err)
	}
	if _, err := g.MergeEdges(data.Edges); err != nil {
		return nil, fmt.Errorf("import edges: %w", err)
	}
	return g, nil
}

// MarshalGraph serializes a graph to pretty-printed JSON bytes.
func MarshalGraph(data Graph) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

// WriteGraph writes a graph as JSON to w.
func WriteGraph(data Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteGraphFile writes a graph to a JSON file with 0644 permissions.
func WriteGraphFile(data Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteGraph(data, f)
}

// ReadGraph decodes a JSON graph from r into a working graph.
func ReadGraph(r io.Reader) (*WorkingGraph, error) {
	var data Graph
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return Import(data)
}

// ReadGraphFile reads a JSON file and returns the decoded working graph.
func ReadGraphFile(path string) (*WorkingGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadGraph(f)
}
