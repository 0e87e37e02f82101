// Package graph builds the object dependency graph from resolved lineage.
// It supports cycle detection, traversal with hop distance, and
// deterministic iteration regardless of input order.
package graph

import (
	"fmt"
	"sort"

	"github.com/lineal-dev/lineal/pkg/core"
)

// Node represents a data object in the dependency graph.
type Node struct {
	// ID is the qualified object name
	ID string
	// Object holds the object definition; nil for external placeholders
	Object *core.DataObject
	// External is true for objects referenced but never declared
	External bool
}

// Edge represents a directed dependency: data flows Source -> Target.
type Edge struct {
	Source     string
	Target     string
	Type       core.LineageType
	Confidence float64
	// Cycle is set when the edge participates in a dependency cycle.
	// Cycle edges are recorded, never dropped.
	Cycle          bool
	ColumnMappings []core.ColumnMapping
}

// Graph represents the object dependency graph.
type Graph struct {
	nodes map[string]*Node
	out   map[string][]*Edge // source -> outgoing edges (dependents)
	in    map[string][]*Edge // target -> incoming edges (dependencies)
}

// New creates a new empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		out:   make(map[string][]*Edge),
		in:    make(map[string][]*Edge),
	}
}

// AddNode adds a declared object to the graph. Re-adding an ID that was
// previously created as an external placeholder upgrades it in place.
func (g *Graph) AddNode(id string, object *core.DataObject) {
	if node, exists := g.nodes[id]; exists {
		if object != nil {
			node.Object = object
			node.External = false
		}
		return
	}
	g.nodes[id] = &Node{ID: id, Object: object}
}

// addExternal registers a placeholder for a referenced but undeclared object.
func (g *Graph) addExternal(id string) {
	if _, exists := g.nodes[id]; exists {
		return
	}
	g.nodes[id] = &Node{ID: id, External: true}
}

// AddEdge adds a directed edge from source to target. Self-loops are
// rejected. Edge identity is (source, target, lineage kind): the same
// pair may carry one edge per kind, and a duplicate identity updates the
// existing edge when the new one carries higher confidence.
func (g *Graph) AddEdge(edge *Edge) error {
	if edge.Source == edge.Target {
		return fmt.Errorf("self-loop rejected: %s", edge.Source)
	}
	if _, exists := g.nodes[edge.Target]; !exists {
		return fmt.Errorf("target node %q does not exist", edge.Target)
	}
	g.addExternal(edge.Source)

	for _, existing := range g.out[edge.Source] {
		if existing.Target == edge.Target && existing.Type == edge.Type {
			if edge.Confidence > existing.Confidence {
				existing.Confidence = edge.Confidence
				existing.ColumnMappings = edge.ColumnMappings
			}
			return nil
		}
	}

	g.out[edge.Source] = append(g.out[edge.Source], edge)
	g.in[edge.Target] = append(g.in[edge.Target], edge)
	return nil
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}

// Edges returns all edges sorted by (source, target).
func (g *Graph) Edges() []*Edge {
	var edges []*Edge
	for _, out := range g.out {
		edges = append(edges, out...)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Type < edges[j].Type
	})
	return edges
}

// EdgesFrom returns outgoing edges of a node sorted by target, then kind.
func (g *Graph) EdgesFrom(id string) []*Edge {
	edges := append([]*Edge(nil), g.out[id]...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Type < edges[j].Type
	})
	return edges
}

// EdgesTo returns incoming edges of a node sorted by source, then kind.
func (g *Graph) EdgesTo(id string) []*Edge {
	edges := append([]*Edge(nil), g.in[id]...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Type < edges[j].Type
	})
	return edges
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, out := range g.out {
		count += len(out)
	}
	return count
}

// sortedIDs returns every node ID in sorted order.
func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
