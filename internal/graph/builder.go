package graph

import (
	"sort"

	"github.com/lineal-dev/lineal/pkg/core"
)

// Dependency declares one upstream source of an object.
type Dependency struct {
	// Name is the qualified name of the upstream object
	Name       string
	Type       core.LineageType
	Confidence float64
	Mappings   []core.ColumnMapping
}

// Builder assembles the dependency graph in two passes. The first pass
// registers every declared object so that the second pass can link
// references to objects declared in any order. References to names never
// declared become external placeholder nodes.
type Builder struct {
	graph     *Graph
	deps      map[string][]Dependency
	selfLoops []string
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{
		graph: New(),
		deps:  make(map[string][]Dependency),
	}
}

// AddObject registers an object and its declared upstream dependencies.
// Safe to call in any order; linking happens in Build.
func (b *Builder) AddObject(object *core.DataObject, deps []Dependency) {
	id := object.QualifiedName()
	b.graph.AddNode(id, object)
	b.deps[id] = append(b.deps[id], deps...)
}

// Build links every registered dependency and detects cycles. Edges that
// close a cycle are flagged, not dropped; one CircularDependencyError per
// cycle is returned alongside the graph. Self-loops are rejected during
// linking and reported via SelfLoops.
//
// Iteration is sorted throughout, so the result is identical regardless of
// the order objects were added.
func (b *Builder) Build() (*Graph, []*core.CircularDependencyError) {
	targets := make([]string, 0, len(b.deps))
	for target := range b.deps {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	for _, target := range targets {
		deps := append([]Dependency(nil), b.deps[target]...)
		sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })

		for _, dep := range deps {
			if dep.Name == target {
				b.selfLoops = append(b.selfLoops, target)
				continue
			}
			// AddEdge only fails on self-loops, checked above
			_ = b.graph.AddEdge(&Edge{
				Source:         dep.Name,
				Target:         target,
				Type:           dep.Type,
				Confidence:     dep.Confidence,
				ColumnMappings: dep.Mappings,
			})
		}
	}

	cycles := b.graph.flagCycles()
	return b.graph, cycles
}

// SelfLoops returns the qualified names whose declared dependencies
// included themselves. Valid only after Build.
func (b *Builder) SelfLoops() []string {
	loops := append([]string(nil), b.selfLoops...)
	sort.Strings(loops)
	return loops
}
