package graph

import (
	"reflect"
	"strings"
	"testing"

	"github.com/lineal-dev/lineal/pkg/core"
)

func obj(schema, name string) *core.DataObject {
	return &core.DataObject{Schema: schema, Name: name, Type: core.ObjectTypeTable}
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := New()

	g.AddNode("a", obj("s", "a"))
	g.AddNode("b", obj("s", "b"))

	if g.NodeCount() != 2 {
		t.Errorf("expected 2 nodes, got %d", g.NodeCount())
	}

	if err := g.AddEdge(&Edge{Source: "a", Target: "b", Confidence: 1.0}); err != nil {
		t.Errorf("failed to add edge: %v", err)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("expected 1 edge, got %d", g.EdgeCount())
	}
}

func TestGraph_AddEdge_SelfLoop(t *testing.T) {
	g := New()
	g.AddNode("a", nil)

	if err := g.AddEdge(&Edge{Source: "a", Target: "a"}); err == nil {
		t.Error("expected self-loop rejection")
	}
}

func TestGraph_AddEdge_MissingTarget(t *testing.T) {
	g := New()
	if err := g.AddEdge(&Edge{Source: "a", Target: "nope"}); err == nil {
		t.Error("expected error for missing target node")
	}
}

func TestGraph_ExternalPlaceholderUpgrade(t *testing.T) {
	g := New()
	g.AddNode("b", nil)

	// Edge from an undeclared source creates an external placeholder
	if err := g.AddEdge(&Edge{Source: "a", Target: "b"}); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}
	node, ok := g.GetNode("a")
	if !ok || !node.External {
		t.Fatal("expected external placeholder for a")
	}

	// Declaring the object later upgrades the placeholder in place
	g.AddNode("a", obj("s", "a"))
	node, _ = g.GetNode("a")
	if node.External || node.Object == nil {
		t.Error("placeholder should upgrade to a declared node")
	}
	if g.NodeCount() != 2 {
		t.Errorf("expected 2 nodes after upgrade, got %d", g.NodeCount())
	}
}

func TestGraph_DuplicateEdgeKeepsHigherConfidence(t *testing.T) {
	g := New()
	g.AddNode("a", nil)
	g.AddNode("b", nil)

	_ = g.AddEdge(&Edge{Source: "a", Target: "b", Type: core.LineageTransformed, Confidence: 0.5})
	_ = g.AddEdge(&Edge{Source: "a", Target: "b", Type: core.LineageTransformed, Confidence: 0.9})

	if g.EdgeCount() != 1 {
		t.Fatalf("expected duplicate identity collapsed to 1 edge, got %d", g.EdgeCount())
	}
	if g.Edges()[0].Confidence != 0.9 {
		t.Errorf("edge should keep higher-confidence attributes, got %+v", g.Edges()[0])
	}

	// Lower confidence does not overwrite
	_ = g.AddEdge(&Edge{Source: "a", Target: "b", Type: core.LineageTransformed, Confidence: 0.1})
	if g.Edges()[0].Confidence != 0.9 {
		t.Error("lower-confidence duplicate must not overwrite")
	}
}

func TestGraph_EdgeKindsCoexist(t *testing.T) {
	g := New()
	g.AddNode("a", nil)
	g.AddNode("b", nil)

	_ = g.AddEdge(&Edge{Source: "a", Target: "b", Type: core.LineageDirect, Confidence: 1.0})
	_ = g.AddEdge(&Edge{Source: "a", Target: "b", Type: core.LineageAggregated, Confidence: 0.9})

	if g.EdgeCount() != 2 {
		t.Fatalf("expected one edge per kind on the pair, got %d", g.EdgeCount())
	}
	edges := g.EdgesFrom("a")
	if len(edges) != 2 {
		t.Fatalf("expected 2 outgoing edges, got %d", len(edges))
	}
	if edges[0].Type != core.LineageAggregated || edges[1].Type != core.LineageDirect {
		t.Errorf("edge kinds = %s, %s", edges[0].Type, edges[1].Type)
	}
	if edges[0].Confidence != 0.9 || edges[1].Confidence != 1.0 {
		t.Errorf("kinds must not merge attributes: %+v", edges)
	}
}

// --- Builder ---

func buildChain(t *testing.T, order []string) *Graph {
	t.Helper()
	b := NewBuilder()
	deps := map[string][]Dependency{
		"s.a": nil,
		"s.b": {{Name: "s.a", Type: core.LineageDirect, Confidence: 1.0}},
		"s.c": {{Name: "s.b", Type: core.LineageDirect, Confidence: 1.0}},
	}
	for _, id := range order {
		b.AddObject(obj("s", strings.TrimPrefix(id, "s.")), deps[id])
	}
	g, cycles := b.Build()
	if len(cycles) != 0 {
		t.Fatalf("unexpected cycles: %v", cycles)
	}
	return g
}

func TestBuilder_OrderIndependent(t *testing.T) {
	g1 := buildChain(t, []string{"s.a", "s.b", "s.c"})
	g2 := buildChain(t, []string{"s.c", "s.a", "s.b"})

	edgePairs := func(g *Graph) [][2]string {
		var pairs [][2]string
		for _, e := range g.Edges() {
			pairs = append(pairs, [2]string{e.Source, e.Target})
		}
		return pairs
	}

	if !reflect.DeepEqual(edgePairs(g1), edgePairs(g2)) {
		t.Errorf("edge order differs by input order: %v vs %v", edgePairs(g1), edgePairs(g2))
	}
}

func TestBuilder_ForwardReference(t *testing.T) {
	b := NewBuilder()
	// b declared before a exists; two-pass linking resolves it anyway
	b.AddObject(obj("s", "b"), []Dependency{{Name: "s.a", Confidence: 1.0}})
	b.AddObject(obj("s", "a"), nil)

	g, _ := b.Build()
	node, ok := g.GetNode("s.a")
	if !ok {
		t.Fatal("missing node s.a")
	}
	if node.External {
		t.Error("s.a was declared and must not stay external")
	}
}

func TestBuilder_ExternalDependency(t *testing.T) {
	b := NewBuilder()
	b.AddObject(obj("s", "v"), []Dependency{{Name: "raw.events", Confidence: 1.0}})

	g, _ := b.Build()
	node, ok := g.GetNode("raw.events")
	if !ok || !node.External {
		t.Error("undeclared dependency should become an external placeholder")
	}
}

func TestBuilder_SelfLoopRejected(t *testing.T) {
	b := NewBuilder()
	b.AddObject(obj("s", "v"), []Dependency{{Name: "s.v", Confidence: 1.0}})

	g, cycles := b.Build()
	if g.EdgeCount() != 0 {
		t.Errorf("self-loop must not produce an edge, got %d", g.EdgeCount())
	}
	if len(cycles) != 0 {
		t.Errorf("self-loop is not a cycle error, got %v", cycles)
	}
	loops := b.SelfLoops()
	if len(loops) != 1 || loops[0] != "s.v" {
		t.Errorf("SelfLoops() = %v, want [s.v]", loops)
	}
}

// --- Cycles ---

func TestBuilder_TwoNodeCycle(t *testing.T) {
	b := NewBuilder()
	b.AddObject(obj("s", "a"), []Dependency{{Name: "s.b", Confidence: 1.0}})
	b.AddObject(obj("s", "b"), []Dependency{{Name: "s.a", Confidence: 1.0}})
	b.AddObject(obj("s", "c"), []Dependency{{Name: "s.a", Confidence: 1.0}})

	g, cycles := b.Build()

	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d", len(cycles))
	}
	wantPath := []string{"s.a", "s.b", "s.a"}
	if !reflect.DeepEqual(cycles[0].Path, wantPath) {
		t.Errorf("cycle path = %v, want %v", cycles[0].Path, wantPath)
	}
	if msg := cycles[0].Error(); !strings.Contains(msg, "s.a -> s.b -> s.a") {
		t.Errorf("cycle error %q should name the full path", msg)
	}

	// Cycle edges are flagged, not dropped
	for _, e := range g.Edges() {
		inCycle := (e.Source == "s.a" && e.Target == "s.b") || (e.Source == "s.b" && e.Target == "s.a")
		if e.Cycle != inCycle {
			t.Errorf("edge %s->%s cycle flag = %v, want %v", e.Source, e.Target, e.Cycle, inCycle)
		}
	}
	if g.EdgeCount() != 3 {
		t.Errorf("expected all 3 edges kept, got %d", g.EdgeCount())
	}
}

func TestBuilder_ThreeNodeCycle(t *testing.T) {
	b := NewBuilder()
	b.AddObject(obj("s", "a"), []Dependency{{Name: "s.c", Confidence: 1.0}})
	b.AddObject(obj("s", "b"), []Dependency{{Name: "s.a", Confidence: 1.0}})
	b.AddObject(obj("s", "c"), []Dependency{{Name: "s.b", Confidence: 1.0}})

	_, cycles := b.Build()
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d", len(cycles))
	}
	path := cycles[0].Path
	if len(path) != 4 || path[0] != path[len(path)-1] {
		t.Errorf("cycle path should close on itself: %v", path)
	}
}

func TestBuilder_NoCycleAcyclic(t *testing.T) {
	g := buildChain(t, []string{"s.a", "s.b", "s.c"})
	for _, e := range g.Edges() {
		if e.Cycle {
			t.Errorf("acyclic edge %s->%s flagged as cycle", e.Source, e.Target)
		}
	}
}

// --- Traversal ---

func chainGraph(t *testing.T) *Graph {
	t.Helper()
	b := NewBuilder()
	b.AddObject(obj("s", "a"), nil)
	b.AddObject(obj("s", "b"), []Dependency{{Name: "s.a", Confidence: 1.0}})
	b.AddObject(obj("s", "c"), []Dependency{{Name: "s.b", Confidence: 1.0}})
	b.AddObject(obj("s", "d"), []Dependency{{Name: "s.c", Confidence: 1.0}})
	g, _ := b.Build()
	return g
}

func TestGraph_DownstreamDepths(t *testing.T) {
	g := chainGraph(t)

	traces := g.Downstream("s.a", 0)
	if len(traces) != 3 {
		t.Fatalf("expected 3 downstream objects, got %d", len(traces))
	}
	want := map[string]int{"s.b": 1, "s.c": 2, "s.d": 3}
	for _, tr := range traces {
		if want[tr.ID] != tr.Depth {
			t.Errorf("depth of %s = %d, want %d", tr.ID, tr.Depth, want[tr.ID])
		}
	}

	last := traces[len(traces)-1]
	if !reflect.DeepEqual(last.Path, []string{"s.a", "s.b", "s.c", "s.d"}) {
		t.Errorf("path = %v", last.Path)
	}
}

func TestGraph_UpstreamDepthBound(t *testing.T) {
	g := chainGraph(t)

	traces := g.Upstream("s.d", 2)
	if len(traces) != 2 {
		t.Fatalf("expected walk bounded at depth 2, got %d results", len(traces))
	}
	for _, tr := range traces {
		if tr.Depth > 2 {
			t.Errorf("trace %s exceeds depth bound: %d", tr.ID, tr.Depth)
		}
	}
}

func TestGraph_TraverseTerminatesOnCycle(t *testing.T) {
	b := NewBuilder()
	b.AddObject(obj("s", "a"), []Dependency{{Name: "s.b", Confidence: 1.0}})
	b.AddObject(obj("s", "b"), []Dependency{{Name: "s.a", Confidence: 1.0}})
	g, _ := b.Build()

	traces := g.Downstream("s.a", 0)
	if len(traces) != 1 {
		t.Fatalf("visited set should stop the walk after s.b, got %v", traces)
	}
	if traces[0].ID != "s.b" || traces[0].Depth != 1 {
		t.Errorf("unexpected trace %+v", traces[0])
	}
}

func TestGraph_DiamondMinimalDepth(t *testing.T) {
	b := NewBuilder()
	b.AddObject(obj("s", "top"), nil)
	b.AddObject(obj("s", "left"), []Dependency{{Name: "s.top", Confidence: 1.0}})
	b.AddObject(obj("s", "right"), []Dependency{{Name: "s.top", Confidence: 1.0}})
	b.AddObject(obj("s", "bottom"), []Dependency{
		{Name: "s.left", Confidence: 1.0},
		{Name: "s.right", Confidence: 1.0},
		{Name: "s.top", Confidence: 1.0},
	})
	g, _ := b.Build()

	traces := g.Downstream("s.top", 0)
	depths := map[string]int{}
	for _, tr := range traces {
		depths[tr.ID] = tr.Depth
	}
	if depths["s.bottom"] != 1 {
		t.Errorf("bottom reachable directly, depth = %d, want 1", depths["s.bottom"])
	}
	if len(traces) != 3 {
		t.Errorf("each object appears once, got %d traces", len(traces))
	}
}

func TestGraph_TraverseUnknownStart(t *testing.T) {
	g := chainGraph(t)
	if traces := g.Downstream("s.zzz", 0); traces != nil {
		t.Errorf("unknown start should return nil, got %v", traces)
	}
}

// --- Column traversal ---

func columnGraph(t *testing.T) *Graph {
	t.Helper()
	b := NewBuilder()
	b.AddObject(obj("s", "raw"), nil)
	b.AddObject(obj("s", "stg"), []Dependency{{
		Name:       "s.raw",
		Confidence: 1.0,
		Mappings: []core.ColumnMapping{
			{SourceTable: "s.raw", SourceColumn: "amount", TargetColumn: "amount_usd", Transform: "calculation", Confidence: 0.9},
			{SourceTable: "s.raw", SourceColumn: "id", TargetColumn: "id", Transform: "direct", Confidence: 1.0},
		},
	}})
	b.AddObject(obj("s", "rpt"), []Dependency{{
		Name:       "s.stg",
		Confidence: 1.0,
		Mappings: []core.ColumnMapping{
			{SourceTable: "s.stg", SourceColumn: "amount_usd", TargetColumn: "total", Transform: "aggregation", Confidence: 0.9},
		},
	}})
	g, _ := b.Build()
	return g
}

func TestGraph_UpstreamColumns(t *testing.T) {
	g := columnGraph(t)

	traces := g.UpstreamColumns("s.rpt", "total", 0)
	if len(traces) != 2 {
		t.Fatalf("expected 2 upstream columns, got %v", traces)
	}

	byID := map[string]ColumnTrace{}
	for _, tr := range traces {
		byID[tr.ID] = tr
	}

	stg := byID["s.stg"]
	if stg.Column != "amount_usd" || stg.Depth != 1 {
		t.Errorf("stg trace = %+v", stg)
	}
	raw := byID["s.raw"]
	if raw.Column != "amount" || raw.Depth != 2 {
		t.Errorf("raw trace = %+v", raw)
	}
	// Confidence is the minimum along the path
	if raw.Confidence > 0.9 {
		t.Errorf("raw confidence = %v, want <= 0.9", raw.Confidence)
	}
}

func TestGraph_DownstreamColumns(t *testing.T) {
	g := columnGraph(t)

	traces := g.DownstreamColumns("s.raw", "amount", 0)
	if len(traces) != 2 {
		t.Fatalf("expected 2 downstream columns, got %v", traces)
	}
	final := traces[len(traces)-1]
	if final.ID != "s.rpt" || final.Column != "total" {
		t.Errorf("final trace = %+v", final)
	}
}

func TestGraph_ColumnDepthBound(t *testing.T) {
	g := columnGraph(t)

	traces := g.DownstreamColumns("s.raw", "amount", 1)
	if len(traces) != 1 {
		t.Fatalf("expected depth-bounded walk with 1 result, got %v", traces)
	}
	if traces[0].ID != "s.stg" {
		t.Errorf("trace = %+v", traces[0])
	}
}

func TestGraph_ColumnNarrowing(t *testing.T) {
	g := columnGraph(t)

	// id never feeds total, so the walk stays on the id line only
	traces := g.DownstreamColumns("s.raw", "id", 0)
	if len(traces) != 1 || traces[0].ID != "s.stg" || traces[0].Column != "id" {
		t.Errorf("id narrows to stg.id only, got %v", traces)
	}
}
