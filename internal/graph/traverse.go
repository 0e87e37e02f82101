package graph

import "sort"

// Trace is a single node reached during traversal.
type Trace struct {
	// ID is the qualified name of the reached object
	ID string
	// Depth is the hop distance from the start
	Depth int
	// Path holds the qualified names from the start to this object
	Path []string
	// Edge is the edge traversed on the final hop
	Edge *Edge
}

// ColumnTrace is a single column reached during column-level traversal.
type ColumnTrace struct {
	ID     string
	Column string
	Depth  int
	// Transform is the transformation on the final hop
	Transform string
	// Confidence is the minimum mapping confidence along the path
	Confidence float64
}

// Upstream returns every object the starting object depends on, directly
// or transitively, with hop distance. maxDepth bounds the walk; zero or
// negative means unbounded. Each object appears once at its minimal depth;
// the visited set makes traversal terminate even across cycle edges.
func (g *Graph) Upstream(id string, maxDepth int) []Trace {
	return g.traverse(id, maxDepth, func(node string) []*Edge { return g.EdgesTo(node) },
		func(edge *Edge) string { return edge.Source })
}

// Downstream returns every object that depends on the starting object,
// directly or transitively, with hop distance.
func (g *Graph) Downstream(id string, maxDepth int) []Trace {
	return g.traverse(id, maxDepth, func(node string) []*Edge { return g.EdgesFrom(node) },
		func(edge *Edge) string { return edge.Target })
}

// traverse runs a breadth-first walk from id. Results are ordered by
// depth, then ID.
func (g *Graph) traverse(id string, maxDepth int, edges func(string) []*Edge, next func(*Edge) string) []Trace {
	if _, exists := g.nodes[id]; !exists {
		return nil
	}

	visited := map[string]bool{id: true}
	frontier := []Trace{{ID: id, Path: []string{id}}}
	var results []Trace

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		if maxDepth > 0 && current.Depth >= maxDepth {
			continue
		}

		for _, edge := range edges(current.ID) {
			nextID := next(edge)
			if visited[nextID] {
				continue
			}
			visited[nextID] = true

			path := append(append([]string(nil), current.Path...), nextID)
			trace := Trace{ID: nextID, Depth: current.Depth + 1, Path: path, Edge: edge}
			results = append(results, trace)
			frontier = append(frontier, trace)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Depth != results[j].Depth {
			return results[i].Depth < results[j].Depth
		}
		return results[i].ID < results[j].ID
	})
	return results
}

// UpstreamColumns narrows upstream traversal to a single column, following
// column mappings across edges. The walk visits each (object, column) pair
// once.
func (g *Graph) UpstreamColumns(id, column string, maxDepth int) []ColumnTrace {
	return g.traverseColumns(id, column, maxDepth, true)
}

// DownstreamColumns narrows downstream traversal to a single column.
func (g *Graph) DownstreamColumns(id, column string, maxDepth int) []ColumnTrace {
	return g.traverseColumns(id, column, maxDepth, false)
}

func (g *Graph) traverseColumns(id, column string, maxDepth int, upstream bool) []ColumnTrace {
	if _, exists := g.nodes[id]; !exists {
		return nil
	}

	type key struct{ id, column string }
	visited := map[key]bool{{id, column}: true}
	frontier := []ColumnTrace{{ID: id, Column: column, Confidence: 1.0}}
	var results []ColumnTrace

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		if maxDepth > 0 && current.Depth >= maxDepth {
			continue
		}

		var edges []*Edge
		if upstream {
			edges = g.EdgesTo(current.ID)
		} else {
			edges = g.EdgesFrom(current.ID)
		}

		for _, edge := range edges {
			for _, m := range edge.ColumnMappings {
				var nextID, nextColumn string
				if upstream {
					if m.TargetColumn != current.Column {
						continue
					}
					nextID, nextColumn = edge.Source, m.SourceColumn
				} else {
					if m.SourceColumn != current.Column {
						continue
					}
					nextID, nextColumn = edge.Target, m.TargetColumn
				}

				k := key{nextID, nextColumn}
				if visited[k] {
					continue
				}
				visited[k] = true

				confidence := current.Confidence
				if m.Confidence < confidence {
					confidence = m.Confidence
				}
				trace := ColumnTrace{
					ID:         nextID,
					Column:     nextColumn,
					Depth:      current.Depth + 1,
					Transform:  m.Transform,
					Confidence: confidence,
				}
				results = append(results, trace)
				frontier = append(frontier, trace)
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Depth != results[j].Depth {
			return results[i].Depth < results[j].Depth
		}
		if results[i].ID != results[j].ID {
			return results[i].ID < results[j].ID
		}
		return results[i].Column < results[j].Column
	})
	return results
}
