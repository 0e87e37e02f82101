package state

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lineal-dev/lineal/pkg/core"
)

// Upstream returns every object the given object depends on, directly or
// transitively, with hop distance. maxDepth bounds the walk; zero or
// negative means unbounded. The path guard stops revisits, so traversal
// terminates even when the graph contains cycle edges. Each object appears
// once at its minimal depth, ordered by depth then qualified name.
func (s *SQLiteStore) Upstream(ctx context.Context, objectID string, maxDepth int) ([]*core.TraceResult, error) {
	return s.traverse(ctx, objectID, maxDepth, upstreamQuery)
}

// Downstream returns every object that depends on the given object,
// directly or transitively, with hop distance.
func (s *SQLiteStore) Downstream(ctx context.Context, objectID string, maxDepth int) ([]*core.TraceResult, error) {
	return s.traverse(ctx, objectID, maxDepth, downstreamQuery)
}

// upstreamQuery walks lineage edges target -> source. The path column
// carries the visited qualified names; instr on it guards revisits.
const upstreamQuery = `
WITH RECURSIVE walk(object_id, depth, lineage_id, path) AS (
    SELECT o.id, 0, '', '/' || o.qualified_name || '/'
    FROM data_objects o WHERE o.id = ?
    UNION ALL
    SELECT l.source_object_id, w.depth + 1, l.id, w.path || src.qualified_name || '/'
    FROM lineage l
    JOIN walk w ON l.target_object_id = w.object_id
    JOIN data_objects src ON src.id = l.source_object_id
    WHERE (? <= 0 OR w.depth < ?)
      AND instr(w.path, '/' || src.qualified_name || '/') = 0
)
SELECT w.object_id, w.depth, w.lineage_id, w.path FROM walk w WHERE w.depth > 0
ORDER BY w.depth`

const downstreamQuery = `
WITH RECURSIVE walk(object_id, depth, lineage_id, path) AS (
    SELECT o.id, 0, '', '/' || o.qualified_name || '/'
    FROM data_objects o WHERE o.id = ?
    UNION ALL
    SELECT l.target_object_id, w.depth + 1, l.id, w.path || tgt.qualified_name || '/'
    FROM lineage l
    JOIN walk w ON l.source_object_id = w.object_id
    JOIN data_objects tgt ON tgt.id = l.target_object_id
    WHERE (? <= 0 OR w.depth < ?)
      AND instr(w.path, '/' || tgt.qualified_name || '/') = 0
)
SELECT w.object_id, w.depth, w.lineage_id, w.path FROM walk w WHERE w.depth > 0
ORDER BY w.depth`

func (s *SQLiteStore) traverse(ctx context.Context, objectID string, maxDepth int, query string) ([]*core.TraceResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, query, objectID, maxDepth, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to traverse lineage: %w", err)
	}
	defer rows.Close()

	type hit struct {
		depth     int
		lineageID string
		path      []string
	}
	seen := make(map[string]hit)
	var order []string

	for rows.Next() {
		var id, lineageID, path string
		var depth int
		if err := rows.Scan(&id, &depth, &lineageID, &path); err != nil {
			return nil, fmt.Errorf("failed to scan traversal row: %w", err)
		}
		// Rows arrive ordered by depth; keep the first (minimal) hit per object
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = hit{depth: depth, lineageID: lineageID, path: splitPath(path)}
		order = append(order, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]*core.TraceResult, 0, len(order))
	for _, id := range order {
		object, err := s.GetObject(ctx, id)
		if err != nil {
			return nil, err
		}
		h := seen[id]
		results = append(results, &core.TraceResult{
			Object:    object,
			Depth:     h.depth,
			LineageID: h.lineageID,
			Path:      h.path,
		})
	}

	sortTraceResults(results)
	return results, nil
}

// TraceColumnUpstream narrows upstream traversal to a single column,
// following column mappings across edges.
func (s *SQLiteStore) TraceColumnUpstream(ctx context.Context, objectID, column string, maxDepth int) ([]*core.ColumnTraceResult, error) {
	return s.traverseColumn(ctx, objectID, column, maxDepth, columnUpstreamQuery)
}

// TraceColumnDownstream narrows downstream traversal to a single column.
func (s *SQLiteStore) TraceColumnDownstream(ctx context.Context, objectID, column string, maxDepth int) ([]*core.ColumnTraceResult, error) {
	return s.traverseColumn(ctx, objectID, column, maxDepth, columnDownstreamQuery)
}

const columnUpstreamQuery = `
WITH RECURSIVE walk(object_id, column_name, depth, transform, confidence, path) AS (
    SELECT o.id, ?, 0, '', 1.0, '/' || o.qualified_name || '.' || ? || '/'
    FROM data_objects o WHERE o.id = ?
    UNION ALL
    SELECT l.source_object_id, cl.source_column, w.depth + 1, cl.transform,
           min(w.confidence, cl.confidence),
           w.path || src.qualified_name || '.' || cl.source_column || '/'
    FROM lineage l
    JOIN column_lineage cl ON cl.lineage_id = l.id
    JOIN walk w ON l.target_object_id = w.object_id AND cl.target_column = w.column_name
    JOIN data_objects src ON src.id = l.source_object_id
    WHERE (? <= 0 OR w.depth < ?)
      AND instr(w.path, '/' || src.qualified_name || '.' || cl.source_column || '/') = 0
)
SELECT w.object_id, w.column_name, w.depth, w.transform, w.confidence FROM walk w WHERE w.depth > 0
ORDER BY w.depth`

const columnDownstreamQuery = `
WITH RECURSIVE walk(object_id, column_name, depth, transform, confidence, path) AS (
    SELECT o.id, ?, 0, '', 1.0, '/' || o.qualified_name || '.' || ? || '/'
    FROM data_objects o WHERE o.id = ?
    UNION ALL
    SELECT l.target_object_id, cl.target_column, w.depth + 1, cl.transform,
           min(w.confidence, cl.confidence),
           w.path || tgt.qualified_name || '.' || cl.target_column || '/'
    FROM lineage l
    JOIN column_lineage cl ON cl.lineage_id = l.id
    JOIN walk w ON l.source_object_id = w.object_id AND cl.source_column = w.column_name
    JOIN data_objects tgt ON tgt.id = l.target_object_id
    WHERE (? <= 0 OR w.depth < ?)
      AND instr(w.path, '/' || tgt.qualified_name || '.' || cl.target_column || '/') = 0
)
SELECT w.object_id, w.column_name, w.depth, w.transform, w.confidence FROM walk w WHERE w.depth > 0
ORDER BY w.depth`

func (s *SQLiteStore) traverseColumn(ctx context.Context, objectID, column string, maxDepth int, query string) ([]*core.ColumnTraceResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, query, column, column, objectID, maxDepth, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to traverse column lineage: %w", err)
	}
	defer rows.Close()

	type key struct{ id, column string }
	seen := make(map[key]bool)
	var results []*core.ColumnTraceResult

	for rows.Next() {
		var id, columnName, transform string
		var depth int
		var confidence float64
		if err := rows.Scan(&id, &columnName, &depth, &transform, &confidence); err != nil {
			return nil, fmt.Errorf("failed to scan column traversal row: %w", err)
		}
		k := key{id, columnName}
		if seen[k] {
			continue
		}
		seen[k] = true

		object, err := s.GetObject(ctx, id)
		if err != nil {
			return nil, err
		}
		results = append(results, &core.ColumnTraceResult{
			Object:     object,
			Column:     columnName,
			Depth:      depth,
			Transform:  transform,
			Confidence: confidence,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortColumnTraceResults(results)
	return results, nil
}

// splitPath converts the traversal path column back to qualified names.
func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// sortTraceResults orders by depth, then qualified name.
func sortTraceResults(results []*core.TraceResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Depth != results[j].Depth {
			return results[i].Depth < results[j].Depth
		}
		return results[i].Object.QualifiedName() < results[j].Object.QualifiedName()
	})
}

// sortColumnTraceResults orders by depth, qualified name, then column.
func sortColumnTraceResults(results []*core.ColumnTraceResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Depth != results[j].Depth {
			return results[i].Depth < results[j].Depth
		}
		a, b := results[i].Object.QualifiedName(), results[j].Object.QualifiedName()
		if a != b {
			return a < b
		}
		return results[i].Column < results[j].Column
	})
}
