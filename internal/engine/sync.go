package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lineal-dev/lineal/internal/graph"
	"github.com/lineal-dev/lineal/pkg/core"
	"github.com/lineal-dev/lineal/pkg/lineage"
	"github.com/lineal-dev/lineal/pkg/parser"
)

// Batch is one sync request: a data source and the objects declared on it.
type Batch struct {
	Source  core.DataSource
	Objects []*core.DataObject
	// LastSync is the completion time of the previous successful sync for
	// this source, zero when unknown. The summary carries the new value
	// back for the caller to persist.
	LastSync time.Time
}

// extraction holds the per-object resolution outcome of the parallel phase.
type extraction struct {
	object *core.DataObject
	stmt   *lineage.StatementLineage
	// scanned holds table-level fallback sources when parsing failed
	scanned []string
	err     error
}

// Sync resolves lineage for every object in the batch and persists the
// resulting graph. No single object failure aborts the batch: failures are
// recorded per object in the summary. Objects previously synced but absent
// from this batch are marked stale.
func (e *Engine) Sync(ctx context.Context, batch *Batch) (*core.BatchSummary, error) {
	if !batch.Source.Platform.Valid() {
		return nil, fmt.Errorf("unknown platform %q", batch.Source.Platform)
	}

	if batch.LastSync.IsZero() {
		e.logger.Info("starting sync", "source", batch.Source.Name, "objects", len(batch.Objects))
	} else {
		e.logger.Info("starting sync", "source", batch.Source.Name, "objects", len(batch.Objects),
			"last_sync", batch.LastSync)
	}

	var persistedSource *core.PersistedDataSource
	err := e.withRetry(ctx, "upsert data source", func(ctx context.Context) error {
		var err error
		persistedSource, err = e.store.UpsertDataSource(ctx, &batch.Source)
		return err
	})
	if err != nil {
		return nil, err
	}

	schema := buildSchema(batch.Objects)
	extractions := e.extractAll(ctx, batch, schema)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := newNameIndex(batch.Objects)
	builder := graph.NewBuilder()
	for _, x := range extractions {
		builder.AddObject(x.object, e.dependencies(x, names))
	}
	g, cycles := builder.Build()

	summary := &core.BatchSummary{}
	for _, c := range cycles {
		e.logger.Warn("dependency cycle detected", "path", strings.Join(c.Path, " -> "))
		summary.Cycles = append(summary.Cycles, c.Path)
	}

	results, edgeIDs := e.persist(ctx, persistedSource.ID, g, extractions)

	seen := make([]string, 0, g.NodeCount())
	for _, node := range g.Nodes() {
		seen = append(seen, node.ID)
	}
	stale, err := e.store.MarkStale(ctx, persistedSource.ID, seen)
	if err != nil {
		return nil, err
	}
	summary.Stale = stale

	staleEdges, err := e.store.MarkStaleEdges(ctx, persistedSource.ID, edgeIDs)
	if err != nil {
		return nil, err
	}
	summary.StaleEdges = staleEdges

	for _, x := range extractions {
		summary.Add(results[x.object.QualifiedName()])
	}
	summary.LastSync = time.Now().UTC()

	e.logger.Info("sync finished",
		"resolved", summary.Resolved, "partial", summary.Partial,
		"failed", summary.Failed, "stale", summary.Stale,
		"stale_edges", summary.StaleEdges, "cycles", len(summary.Cycles))
	return summary, nil
}

// extractAll runs reference extraction for every object with SQL, bounded
// by the worker limit. Failures are recorded per object, never returned.
func (e *Engine) extractAll(ctx context.Context, batch *Batch, schema parser.Schema) []extraction {
	dialectName := batch.Source.Platform.Dialect()
	extractions := make([]extraction, len(batch.Objects))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(e.workers)

	for i, object := range batch.Objects {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				extractions[i] = extraction{object: object}
				return err
			}

			x := extraction{object: object}
			if object.SQL != "" {
				stmt, err := lineage.Extract(object.SQL, lineage.Options{
					Dialect:       dialectName,
					Schema:        schema,
					DefaultSchema: object.Schema,
					Strict:        e.strict,
				})
				if err != nil {
					e.logger.Debug("extraction failed, falling back to table scan",
						"object", object.QualifiedName(), "error", err)
					x.err = err
					x.scanned = lineage.ScanTables(object.SQL)
				} else {
					x.stmt = stmt
				}
			}
			extractions[i] = x
			return nil
		})
	}

	_ = group.Wait()
	return extractions
}

// dependencies converts an extraction outcome into graph dependencies.
// Parse failures yield table-level edges with zero confidence. Declared
// references become reference edges alongside the data-flow edges.
func (e *Engine) dependencies(x extraction, names *nameIndex) []graph.Dependency {
	var deps []graph.Dependency

	switch {
	case x.stmt == nil:
		for _, table := range x.scanned {
			deps = append(deps, graph.Dependency{
				Name:       names.resolve(table),
				Type:       core.LineageUnknown,
				Confidence: lineage.ConfidenceNone,
			})
		}
	default:
		lineageType := kindToLineageType(x.stmt.Kind())
		// A materialized view stores a copy of the data it selects
		if lineageType == core.LineageDirect && x.object.Type == core.ObjectTypeMaterializedView {
			lineageType = core.LineageDerived
		}
		for _, source := range x.stmt.Sources {
			deps = append(deps, graph.Dependency{
				Name:       names.resolve(source),
				Type:       lineageType,
				Confidence: x.stmt.Confidence,
				Mappings:   columnMappings(x.stmt, source),
			})
		}
	}

	for _, ref := range x.object.References {
		deps = append(deps, graph.Dependency{
			Name:       names.resolve(ref),
			Type:       core.LineageReference,
			Confidence: lineage.ConfidenceDirect,
		})
	}
	return deps
}

// columnMappings collects the column mappings flowing from one source
// table into the statement's outputs.
func columnMappings(stmt *lineage.StatementLineage, source string) []core.ColumnMapping {
	var mappings []core.ColumnMapping
	for _, col := range stmt.Columns {
		for _, src := range col.Sources {
			if src.Table != source {
				continue
			}
			mappings = append(mappings, core.ColumnMapping{
				SourceTable:  source,
				SourceColumn: src.Column,
				TargetColumn: col.Name,
				Transform:    string(col.Transform),
				Expression:   col.Expression,
				Confidence:   col.Confidence,
			})
		}
	}
	return mappings
}

func kindToLineageType(kind string) core.LineageType {
	switch kind {
	case "direct":
		return core.LineageDirect
	case "aggregated":
		return core.LineageAggregated
	case "transformed":
		return core.LineageTransformed
	}
	return core.LineageUnknown
}

// persist writes the graph through the store: declared objects first, then
// each object's edges as one transactional batch. Store transaction
// failures retry with backoff; identity conflicts fail the object and the
// batch continues. Returns the per-object results and the IDs of every
// persisted edge, for the stale sweep.
func (e *Engine) persist(ctx context.Context, sourceID string, g *graph.Graph, extractions []extraction) (map[string]core.ObjectResult, []string) {
	results := make(map[string]core.ObjectResult, len(extractions))
	failed := make(map[string]bool)

	for _, x := range extractions {
		name := x.object.QualifiedName()
		result := core.ObjectResult{QualifiedName: name, Status: core.StatusResolved}

		if x.err != nil {
			if len(x.scanned) > 0 {
				result.Status = core.StatusPartial
			} else {
				result.Status = core.StatusFailed
			}
			result.Error = x.err.Error()
		} else if x.stmt != nil {
			if x.stmt.FallbackUsed != "" {
				result.Status = core.StatusPartial
				result.Error = fmt.Sprintf("resolved under fallback dialect %s", x.stmt.FallbackUsed)
			}
			for _, col := range x.stmt.Columns {
				if col.Ambiguous {
					result.Status = core.StatusPartial
					if result.Error == "" {
						result.Error = fmt.Sprintf("ambiguous column reference %q", col.Name)
					}
					break
				}
			}
		}

		err := e.withRetry(ctx, "upsert object", func(ctx context.Context) error {
			_, err := e.store.UpsertObject(ctx, sourceID, x.object)
			return err
		})
		if err != nil {
			e.logger.Error("object upsert failed", "object", name, "error", err)
			result.Status = core.StatusFailed
			result.Error = err.Error()
			failed[name] = true
		}

		results[name] = result
	}

	definingSQL := make(map[string]string, len(extractions))
	for _, x := range extractions {
		definingSQL[x.object.QualifiedName()] = x.object.SQL
	}

	// Group edges by target so each object's edges commit together
	byTarget := make(map[string][]*core.LineageEdge)
	var targets []string
	for _, edge := range g.Edges() {
		if failed[edge.Target] {
			continue
		}
		if _, declared := results[edge.Target]; !declared {
			// Edge into an external placeholder target cannot happen; edges
			// always target declared objects
			continue
		}
		if _, ok := byTarget[edge.Target]; !ok {
			targets = append(targets, edge.Target)
		}
		byTarget[edge.Target] = append(byTarget[edge.Target], &core.LineageEdge{
			SourceName:     edge.Source,
			TargetName:     edge.Target,
			Type:           edge.Type,
			Confidence:     edge.Confidence,
			Cycle:          edge.Cycle,
			SQL:            definingSQL[edge.Target],
			ColumnMappings: edge.ColumnMappings,
		})
	}

	var edgeIDs []string
	for _, target := range targets {
		edges := byTarget[target]
		result := results[target]

		var persisted []*core.PersistedEdge
		err := e.withRetry(ctx, "upsert edges", func(ctx context.Context) error {
			var err error
			persisted, err = e.store.UpsertEdges(ctx, sourceID, edges)
			return err
		})
		if err != nil {
			e.logger.Error("edge upsert failed", "target", target, "error", err)
			if result.Status != core.StatusFailed {
				result.Status = core.StatusPartial
			}
			if result.Error == "" {
				result.Error = err.Error()
			}
		} else {
			for i, p := range persisted {
				result.Edges++
				result.Columns += len(edges[i].ColumnMappings)
				edgeIDs = append(edgeIDs, p.ID)
			}
		}
		results[target] = result
	}

	return results, edgeIDs
}

// buildSchema exposes declared object columns to the SQL resolver, keyed
// by qualified and bare names.
func buildSchema(objects []*core.DataObject) parser.Schema {
	schema := make(parser.Schema)
	for _, object := range objects {
		if len(object.Columns) == 0 {
			continue
		}
		columns := make([]string, len(object.Columns))
		for i, col := range object.Columns {
			columns[i] = col.Name
		}
		schema[object.QualifiedName()] = columns
		schema[object.Name] = columns
		if object.Schema != "" {
			schema[object.Schema+"."+object.Name] = columns
		}
	}
	return schema
}

// nameIndex canonicalizes referenced table names against declared objects,
// so a bare reference to a declared object links to it instead of
// spawning an external placeholder.
type nameIndex struct {
	canonical map[string]string
}

func newNameIndex(objects []*core.DataObject) *nameIndex {
	idx := &nameIndex{canonical: make(map[string]string)}
	ambiguous := make(map[string]bool)

	add := func(key, qualified string) {
		if key == "" || key == qualified {
			return
		}
		if existing, ok := idx.canonical[key]; ok && existing != qualified {
			ambiguous[key] = true
			return
		}
		idx.canonical[key] = qualified
	}

	for _, object := range objects {
		qualified := object.QualifiedName()
		add(object.Name, qualified)
		if object.Schema != "" {
			add(object.Schema+"."+object.Name, qualified)
		}
	}

	// A suffix shared by several objects stays as written
	for key := range ambiguous {
		delete(idx.canonical, key)
	}
	return idx
}

// resolve maps a referenced name to a declared qualified name when the
// match is unique; otherwise the name is kept as written.
func (n *nameIndex) resolve(name string) string {
	if qualified, ok := n.canonical[name]; ok {
		return qualified
	}
	return name
}
