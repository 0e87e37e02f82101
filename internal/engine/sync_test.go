package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lineal-dev/lineal/internal/testutil"
	"github.com/lineal-dev/lineal/pkg/core"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := New(Config{
		StatePath: filepath.Join(t.TempDir(), "lineal.db"),
		Logger:    testutil.NewTestLogger(t),
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func testBatch(objects ...*core.DataObject) *Batch {
	return &Batch{
		Source: core.DataSource{
			Name:     "warehouse",
			Platform: core.PlatformPostgres,
		},
		Objects: objects,
	}
}

func table(schema, name string, columns ...string) *core.DataObject {
	object := &core.DataObject{
		SourceName: "warehouse",
		Schema:     schema,
		Name:       name,
		Type:       core.ObjectTypeTable,
	}
	for i, col := range columns {
		object.Columns = append(object.Columns, core.Column{Name: col, Ordinal: i})
	}
	return object
}

func view(schema, name, sql string) *core.DataObject {
	return &core.DataObject{
		SourceName: "warehouse",
		Schema:     schema,
		Name:       name,
		Type:       core.ObjectTypeView,
		SQL:        sql,
	}
}

func TestSync_ResolvesBatch(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	summary, err := eng.Sync(ctx, testBatch(
		table("raw", "users", "id", "email"),
		view("analytics", "active_users", `SELECT id, email FROM raw.users`),
	))
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if summary.Total != 2 || summary.Resolved != 2 {
		t.Errorf("summary = %+v, want 2 resolved of 2", summary)
	}

	source, err := eng.Store().GetDataSource(ctx, "warehouse")
	if err != nil || source == nil {
		t.Fatalf("data source missing: %v", err)
	}

	target, err := eng.Store().GetObjectByName(ctx, source.ID, "analytics.active_users")
	if err != nil || target == nil {
		t.Fatalf("target object missing: %v", err)
	}

	edges, err := eng.Store().ListEdgesTo(ctx, target.ID)
	if err != nil {
		t.Fatalf("list edges failed: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	edge := edges[0]
	if edge.SourceName != "raw.users" {
		t.Errorf("edge source = %q, want raw.users", edge.SourceName)
	}
	if edge.Type != core.LineageDirect || edge.Confidence != 1.0 {
		t.Errorf("edge = type %s confidence %v, want direct 1.0", edge.Type, edge.Confidence)
	}
	if edge.SQL != `SELECT id, email FROM raw.users` {
		t.Errorf("edge SQL = %q, want the target's defining statement", edge.SQL)
	}

	mappings, err := eng.Store().GetColumnMappings(ctx, edge.ID)
	if err != nil {
		t.Fatalf("get mappings failed: %v", err)
	}
	if len(mappings) != 2 {
		t.Errorf("expected 2 column mappings, got %d", len(mappings))
	}
}

func TestSync_BareReferenceLinksDeclaredObject(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	// The view references "users" without a schema; the unique declared
	// object with that name wins over an external placeholder.
	summary, err := eng.Sync(ctx, testBatch(
		table("raw", "users", "id"),
		view("analytics", "v", `SELECT id FROM users`),
	))
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if summary.Resolved != 2 {
		t.Errorf("resolved = %d, want 2", summary.Resolved)
	}

	source, _ := eng.Store().GetDataSource(ctx, "warehouse")
	objects, err := eng.Store().ListObjects(ctx, source.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(objects) != 2 {
		for _, o := range objects {
			t.Logf("object: %s (%s)", o.QualifiedName(), o.Type)
		}
		t.Errorf("expected 2 objects without placeholders, got %d", len(objects))
	}
}

func TestSync_ContinuesPastFailure(t *testing.T) {
	eng := newTestEngine(t)

	summary, err := eng.Sync(context.Background(), testBatch(
		view("s", "broken", `THIS IS NOT SQL`),
		view("s", "good", `SELECT id FROM s.base`),
	))
	if err != nil {
		t.Fatalf("batch must survive a single failure: %v", err)
	}

	if summary.Failed != 1 {
		t.Errorf("failed = %d, want 1", summary.Failed)
	}
	if summary.Resolved != 1 {
		t.Errorf("resolved = %d, want 1", summary.Resolved)
	}

	var broken *core.ObjectResult
	for i := range summary.Results {
		if summary.Results[i].QualifiedName == "s.broken" {
			broken = &summary.Results[i]
		}
	}
	if broken == nil {
		t.Fatal("missing result for s.broken")
	}
	if broken.Status != core.StatusFailed || broken.Error == "" {
		t.Errorf("broken result = %+v", broken)
	}
}

func TestSync_TableScanFallbackIsPartial(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	// Unparseable statement with recoverable table references
	summary, err := eng.Sync(ctx, testBatch(
		view("s", "v", `SELECT FROM t1 JOIN t2 ON a = b`),
	))
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if summary.Partial != 1 {
		t.Fatalf("partial = %d, want 1 (results: %+v)", summary.Partial, summary.Results)
	}

	source, _ := eng.Store().GetDataSource(ctx, "warehouse")
	v, err := eng.Store().GetObjectByName(ctx, source.ID, "s.v")
	if err != nil || v == nil {
		t.Fatalf("object missing: %v", err)
	}
	edges, err := eng.Store().ListEdgesTo(ctx, v.ID)
	if err != nil {
		t.Fatalf("list edges failed: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected table-level edges to t1 and t2, got %d", len(edges))
	}
	for _, edge := range edges {
		if edge.Type != core.LineageUnknown {
			t.Errorf("fallback edge type = %s, want unknown", edge.Type)
		}
		if edge.Confidence != 0.0 {
			t.Errorf("fallback edge confidence = %v, want 0", edge.Confidence)
		}
	}
}

func TestSync_AmbiguityIsPartial(t *testing.T) {
	eng := newTestEngine(t)

	summary, err := eng.Sync(context.Background(), testBatch(
		table("s", "a", "id"),
		table("s", "b", "id"),
		view("s", "v", `SELECT id FROM s.a x JOIN s.b y ON x.id = y.id`),
	))
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	var result *core.ObjectResult
	for i := range summary.Results {
		if summary.Results[i].QualifiedName == "s.v" {
			result = &summary.Results[i]
		}
	}
	if result == nil {
		t.Fatal("missing result for s.v")
	}
	if result.Status != core.StatusPartial {
		t.Errorf("status = %s, want partial", result.Status)
	}
}

func TestSync_MarksStale(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.Sync(ctx, testBatch(table("s", "a", "id"), table("s", "b", "id"))); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	summary, err := eng.Sync(ctx, testBatch(table("s", "a", "id")))
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if summary.Stale != 1 {
		t.Errorf("stale = %d, want 1", summary.Stale)
	}

	source, _ := eng.Store().GetDataSource(ctx, "warehouse")
	b, err := eng.Store().GetObjectByName(ctx, source.ID, "s.b")
	if err != nil || b == nil {
		t.Fatalf("object s.b missing: %v", err)
	}
	if !b.Stale {
		t.Error("s.b should be marked stale, not deleted")
	}
}

func TestSync_MarksStaleEdges(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.Sync(ctx, testBatch(
		table("s", "t1", "id"),
		table("s", "t2", "id"),
		view("s", "v", `SELECT id FROM s.t1`),
	)); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	// The view now reads from t2; the old edge is no longer seen
	summary, err := eng.Sync(ctx, testBatch(
		table("s", "t1", "id"),
		table("s", "t2", "id"),
		view("s", "v", `SELECT id FROM s.t2`),
	))
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if summary.StaleEdges != 1 {
		t.Errorf("stale edges = %d, want 1", summary.StaleEdges)
	}

	source, _ := eng.Store().GetDataSource(ctx, "warehouse")
	v, err := eng.Store().GetObjectByName(ctx, source.ID, "s.v")
	if err != nil || v == nil {
		t.Fatalf("object missing: %v", err)
	}
	edges, err := eng.Store().ListEdgesTo(ctx, v.ID)
	if err != nil {
		t.Fatalf("list edges failed: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("old edge must be kept, got %d edges", len(edges))
	}
	for _, edge := range edges {
		switch edge.SourceName {
		case "s.t1":
			if !edge.Stale {
				t.Error("edge from s.t1 should be stale")
			}
		case "s.t2":
			if edge.Stale {
				t.Error("edge from s.t2 must not be stale")
			}
		}
	}
}

func TestSync_LastSyncRoundTrip(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.Sync(ctx, testBatch(table("s", "t", "id")))
	if err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	if first.LastSync.IsZero() {
		t.Fatal("summary must carry the sync completion time")
	}

	batch := testBatch(table("s", "t", "id"))
	batch.LastSync = first.LastSync
	second, err := eng.Sync(ctx, batch)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if second.LastSync.Before(first.LastSync) {
		t.Errorf("last sync went backwards: %v -> %v", first.LastSync, second.LastSync)
	}
}

func TestSync_MaterializedViewDerivedEdge(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	matview := view("s", "mv", `SELECT id FROM s.t`)
	matview.Type = core.ObjectTypeMaterializedView

	if _, err := eng.Sync(ctx, testBatch(table("s", "t", "id"), matview)); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	source, _ := eng.Store().GetDataSource(ctx, "warehouse")
	mv, err := eng.Store().GetObjectByName(ctx, source.ID, "s.mv")
	if err != nil || mv == nil {
		t.Fatalf("object missing: %v", err)
	}
	edges, err := eng.Store().ListEdgesTo(ctx, mv.ID)
	if err != nil {
		t.Fatalf("list edges failed: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	if edges[0].Type != core.LineageDerived {
		t.Errorf("materialized view edge type = %s, want derived", edges[0].Type)
	}
}

func TestSync_DeclaredReferencesBecomeEdges(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	orders := table("s", "orders", "id", "user_id")
	orders.References = []string{"s.users"}

	if _, err := eng.Sync(ctx, testBatch(table("s", "users", "id"), orders)); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	source, _ := eng.Store().GetDataSource(ctx, "warehouse")
	o, err := eng.Store().GetObjectByName(ctx, source.ID, "s.orders")
	if err != nil || o == nil {
		t.Fatalf("object missing: %v", err)
	}
	edges, err := eng.Store().ListEdgesTo(ctx, o.ID)
	if err != nil {
		t.Fatalf("list edges failed: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	if edges[0].Type != core.LineageReference {
		t.Errorf("edge type = %s, want reference", edges[0].Type)
	}
	if edges[0].SourceName != "s.users" || edges[0].Confidence != 1.0 {
		t.Errorf("reference edge = %+v", edges[0])
	}
}

func TestSync_CycleFlaggedNotDropped(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	summary, err := eng.Sync(ctx, testBatch(
		view("s", "v1", `SELECT x FROM s.v2`),
		view("s", "v2", `SELECT x FROM s.v1`),
	))
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if len(summary.Cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %v", summary.Cycles)
	}
	path := summary.Cycles[0]
	if len(path) != 3 || path[0] != path[2] {
		t.Errorf("cycle path = %v", path)
	}

	source, _ := eng.Store().GetDataSource(ctx, "warehouse")
	v1, err := eng.Store().GetObjectByName(ctx, source.ID, "s.v1")
	if err != nil || v1 == nil {
		t.Fatalf("object missing: %v", err)
	}
	edges, err := eng.Store().ListEdgesTo(ctx, v1.ID)
	if err != nil {
		t.Fatalf("list edges failed: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("cycle edge must be recorded, got %d edges", len(edges))
	}
	if !edges[0].Cycle {
		t.Error("edge should carry the cycle flag")
	}
}

func TestSync_Idempotent(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	batch := testBatch(
		table("raw", "users", "id"),
		view("analytics", "v", `SELECT id FROM raw.users`),
	)

	if _, err := eng.Sync(ctx, batch); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	source, _ := eng.Store().GetDataSource(ctx, "warehouse")
	before, err := eng.Store().GetObjectByName(ctx, source.ID, "analytics.v")
	if err != nil || before == nil {
		t.Fatalf("object missing: %v", err)
	}

	summary, err := eng.Sync(ctx, batch)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if summary.Resolved != 2 || summary.Stale != 0 {
		t.Errorf("second sync summary = %+v", summary)
	}

	after, err := eng.Store().GetObjectByName(ctx, source.ID, "analytics.v")
	if err != nil || after == nil {
		t.Fatalf("object missing after re-sync: %v", err)
	}
	if after.ID != before.ID {
		t.Errorf("re-sync changed object ID: %s -> %s", before.ID, after.ID)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Errorf("re-sync changed CreatedAt: %v -> %v", before.CreatedAt, after.CreatedAt)
	}

	edges, err := eng.Store().ListEdgesTo(ctx, after.ID)
	if err != nil {
		t.Fatalf("list edges failed: %v", err)
	}
	if len(edges) != 1 {
		t.Errorf("expected 1 edge after re-sync, got %d", len(edges))
	}
}

func TestSync_UnknownPlatform(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.Sync(context.Background(), &Batch{
		Source: core.DataSource{Name: "x", Platform: "not-a-platform"},
	})
	if err == nil {
		t.Error("expected error for unknown platform")
	}
}

func TestImpact(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Sync(ctx, testBatch(
		table("raw", "events", "id", "amount"),
		view("stg", "clean", `SELECT id, amount FROM raw.events`),
		view("rpt", "totals", `SELECT id, SUM(amount) AS total FROM stg.clean GROUP BY id`),
	))
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	down, err := eng.Impact(ctx, ImpactRequest{
		Source:    "warehouse",
		Object:    "raw.events",
		Direction: DirectionDownstream,
	})
	if err != nil {
		t.Fatalf("impact failed: %v", err)
	}
	if len(down.Traces) != 2 {
		t.Fatalf("expected 2 downstream objects, got %d", len(down.Traces))
	}
	if down.Traces[0].Object.QualifiedName() != "stg.clean" || down.Traces[0].Depth != 1 {
		t.Errorf("first trace = %+v", down.Traces[0])
	}
	if down.Traces[1].Object.QualifiedName() != "rpt.totals" || down.Traces[1].Depth != 2 {
		t.Errorf("second trace = %+v", down.Traces[1])
	}

	up, err := eng.Impact(ctx, ImpactRequest{
		Source:    "warehouse",
		Object:    "rpt.totals",
		Direction: DirectionUpstream,
		MaxDepth:  1,
	})
	if err != nil {
		t.Fatalf("impact failed: %v", err)
	}
	if len(up.Traces) != 1 || up.Traces[0].Object.QualifiedName() != "stg.clean" {
		t.Errorf("bounded upstream = %+v", up.Traces)
	}

	cols, err := eng.Impact(ctx, ImpactRequest{
		Source:    "warehouse",
		Object:    "rpt.totals",
		Column:    "total",
		Direction: DirectionUpstream,
	})
	if err != nil {
		t.Fatalf("column impact failed: %v", err)
	}
	if len(cols.ColumnTraces) != 2 {
		t.Fatalf("expected 2 upstream columns, got %+v", cols.ColumnTraces)
	}
	final := cols.ColumnTraces[len(cols.ColumnTraces)-1]
	if final.Object.QualifiedName() != "raw.events" || final.Column != "amount" {
		t.Errorf("final column trace = %+v", final)
	}

	_, err = eng.Impact(ctx, ImpactRequest{Source: "warehouse", Object: "no.such"})
	if err == nil {
		t.Error("expected error for unknown object")
	}
}
