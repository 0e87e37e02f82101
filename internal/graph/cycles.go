package graph

import (
	"sort"

	"github.com/lineal-dev/lineal/pkg/core"
)

// flagCycles finds every dependency cycle, marks the edges participating
// in one, and returns one error per cycle with its full path.
//
// Cycles are the strongly connected components with more than one node.
// Every edge whose endpoints share such a component is part of a cycle.
func (g *Graph) flagCycles() []*core.CircularDependencyError {
	components := g.stronglyConnected()

	component := make(map[string]int, len(g.nodes))
	size := make(map[int]int)
	for i, comp := range components {
		for _, id := range comp {
			component[id] = i
		}
		size[i] = len(comp)
	}

	for _, edges := range g.out {
		for _, edge := range edges {
			if component[edge.Source] == component[edge.Target] && size[component[edge.Source]] > 1 {
				edge.Cycle = true
			}
		}
	}

	var errs []*core.CircularDependencyError
	for _, comp := range components {
		if len(comp) < 2 {
			continue
		}
		if path := g.cyclePath(comp); len(path) > 0 {
			errs = append(errs, &core.CircularDependencyError{Path: path})
		}
	}

	sort.Slice(errs, func(i, j int) bool { return errs[i].Path[0] < errs[j].Path[0] })
	return errs
}

// stronglyConnected computes SCCs with Tarjan's algorithm. Nodes are
// visited in sorted order so component membership and representative
// cycle paths are deterministic.
func (g *Graph) stronglyConnected() [][]string {
	index := 0
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var components [][]string

	var strongconnect func(id string)
	strongconnect = func(id string) {
		indices[id] = index
		lowlink[id] = index
		index++
		stack = append(stack, id)
		onStack[id] = true

		for _, edge := range g.EdgesFrom(id) {
			next := edge.Target
			if _, visited := indices[next]; !visited {
				strongconnect(next)
				if lowlink[next] < lowlink[id] {
					lowlink[id] = lowlink[next]
				}
			} else if onStack[next] {
				if indices[next] < lowlink[id] {
					lowlink[id] = indices[next]
				}
			}
		}

		if lowlink[id] == indices[id] {
			var comp []string
			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[top] = false
				comp = append(comp, top)
				if top == id {
					break
				}
			}
			sort.Strings(comp)
			components = append(components, comp)
		}
	}

	for _, id := range g.sortedIDs() {
		if _, visited := indices[id]; !visited {
			strongconnect(id)
		}
	}

	return components
}

// cyclePath reconstructs a representative cycle within one component,
// starting and ending at the component's smallest ID: [a, b, c, a].
func (g *Graph) cyclePath(component []string) []string {
	members := make(map[string]bool, len(component))
	for _, id := range component {
		members[id] = true
	}
	start := component[0]

	visited := make(map[string]bool)
	var path []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		path = append(path, id)
		visited[id] = true
		for _, edge := range g.EdgesFrom(id) {
			if edge.Target == start && len(path) > 1 {
				path = append(path, start)
				return true
			}
			if members[edge.Target] && !visited[edge.Target] {
				if dfs(edge.Target) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		return false
	}

	if dfs(start) {
		return path
	}
	return nil
}
