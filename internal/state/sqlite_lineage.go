package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lineal-dev/lineal/pkg/core"
)

// UpsertEdge records a single lineage edge. See UpsertEdges.
func (s *SQLiteStore) UpsertEdge(ctx context.Context, sourceID string, edge *core.LineageEdge) (*core.PersistedEdge, error) {
	persisted, err := s.UpsertEdges(ctx, sourceID, []*core.LineageEdge{edge})
	if err != nil {
		return nil, err
	}
	return persisted[0], nil
}

// UpsertEdges records a batch of lineage edges in one transaction, so a
// re-extracted object replaces its edges atomically. Each edge is matched
// on (source, target, lineage kind); the existing ID and creation time
// are preserved and column mappings are replaced.
//
// Target objects must already exist. An unknown source name is registered
// as an external placeholder object, so references to tables outside the
// synced catalog still appear in the graph. Self-loops are rejected
// before anything is written.
func (s *SQLiteStore) UpsertEdges(ctx context.Context, sourceID string, edges []*core.LineageEdge) ([]*core.PersistedEdge, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	persisted := make([]*core.PersistedEdge, 0, len(edges))
	existing := make([]bool, 0, len(edges))

	// Resolve endpoints and identities before opening the transaction;
	// placeholder registration commits on its own.
	for _, edge := range edges {
		target, err := s.GetObjectByName(ctx, sourceID, edge.TargetName)
		if err != nil {
			return nil, err
		}
		if target == nil {
			return nil, fmt.Errorf("target object not found: %s", edge.TargetName)
		}

		source, err := s.GetObjectByName(ctx, sourceID, edge.SourceName)
		if err != nil {
			return nil, err
		}
		if source == nil {
			source, err = s.UpsertObject(ctx, sourceID, externalPlaceholder(edge.SourceName))
			if err != nil {
				return nil, err
			}
		}

		if source.ID == target.ID {
			return nil, fmt.Errorf("self-loop rejected: %s", edge.TargetName)
		}

		p := &core.PersistedEdge{
			LineageEdge: edge,
			SourceID:    source.ID,
			TargetID:    target.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		var existingID string
		var existingCreatedAt time.Time
		err = s.db.QueryRowContext(ctx,
			`SELECT id, created_at FROM lineage WHERE source_object_id = ? AND target_object_id = ? AND lineage_type = ?`,
			source.ID, target.ID, edge.Type,
		).Scan(&existingID, &existingCreatedAt)
		switch {
		case err == sql.ErrNoRows:
			p.ID = generateID()
			existing = append(existing, false)
		case err != nil:
			return nil, fmt.Errorf("failed to check existing edge: %w", err)
		default:
			p.ID = existingID
			p.CreatedAt = existingCreatedAt
			existing = append(existing, true)
		}
		persisted = append(persisted, p)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, txError("begin edge upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, p := range persisted {
		edge := edges[i]
		metadata, err := encodeMetadata(edge.Metadata)
		if err != nil {
			return nil, err
		}
		if existing[i] {
			_, err = tx.ExecContext(ctx,
				`UPDATE lineage SET confidence = ?, is_cycle = ?, sql_text = ?, metadata = ?, stale = 0, updated_at = ? WHERE id = ?`,
				edge.Confidence, edge.Cycle, edge.SQL, metadata, now, p.ID,
			)
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO lineage (id, source_object_id, target_object_id, lineage_type, confidence, is_cycle, sql_text, metadata, stale, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
				p.ID, p.SourceID, p.TargetID, edge.Type, edge.Confidence, edge.Cycle, edge.SQL, metadata, now, now,
			)
		}
		if err != nil {
			return nil, txError("write edge", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM column_lineage WHERE lineage_id = ?`, p.ID); err != nil {
			return nil, txError("clear column mappings", err)
		}
		for _, m := range edge.ColumnMappings {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO column_lineage (lineage_id, source_table, source_column, target_column, transform, expression, confidence)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				p.ID, m.SourceTable, m.SourceColumn, m.TargetColumn, m.Transform, m.Expression, m.Confidence,
			)
			if err != nil {
				return nil, txError(fmt.Sprintf("insert mapping %s -> %s", m.SourceColumn, m.TargetColumn), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, txError("commit edge upsert", err)
	}

	return persisted, nil
}

// MarkStaleEdges flags every lineage edge under sourceID whose ID is not
// in seen. Like objects, stale edges are kept, not deleted. Returns the
// number newly marked.
func (s *SQLiteStore) MarkStaleEdges(ctx context.Context, sourceID string, seen []string) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}

	query := `UPDATE lineage SET stale = 1, updated_at = ? WHERE stale = 0
	 AND target_object_id IN (SELECT id FROM data_objects WHERE source_id = ?)`
	args := []any{time.Now().UTC(), sourceID}
	if len(seen) > 0 {
		query += ` AND id NOT IN (?` + strings.Repeat(", ?", len(seen)-1) + `)`
		for _, id := range seen {
			args = append(args, id)
		}
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, txError("mark stale edges", err)
	}

	marked, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count stale edges: %w", err)
	}
	return int(marked), nil
}

// externalPlaceholder builds a placeholder object for a referenced but
// undeclared qualified name.
func externalPlaceholder(qualifiedName string) *core.DataObject {
	object := &core.DataObject{Type: core.ObjectTypeExternal}
	parts := strings.Split(qualifiedName, ".")
	switch len(parts) {
	case 1:
		object.Name = parts[0]
	case 2:
		object.Schema, object.Name = parts[0], parts[1]
	default:
		object.Database = parts[0]
		object.Schema = strings.Join(parts[1:len(parts)-1], ".")
		object.Name = parts[len(parts)-1]
	}
	return object
}

// ListEdgesFrom returns the outgoing edges of an object (its dependents),
// ordered by target name.
func (s *SQLiteStore) ListEdgesFrom(ctx context.Context, objectID string) ([]*core.PersistedEdge, error) {
	return s.listEdges(ctx, `l.source_object_id = ?`, objectID)
}

// ListEdgesTo returns the incoming edges of an object (its dependencies),
// ordered by source name.
func (s *SQLiteStore) ListEdgesTo(ctx context.Context, objectID string) ([]*core.PersistedEdge, error) {
	return s.listEdges(ctx, `l.target_object_id = ?`, objectID)
}

func (s *SQLiteStore) listEdges(ctx context.Context, where string, objectID string) ([]*core.PersistedEdge, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT l.id, l.source_object_id, l.target_object_id, src.qualified_name, tgt.qualified_name,
		        l.lineage_type, l.confidence, l.is_cycle, l.sql_text, l.metadata, l.stale, l.created_at, l.updated_at
		 FROM lineage l
		 JOIN data_objects src ON src.id = l.source_object_id
		 JOIN data_objects tgt ON tgt.id = l.target_object_id
		 WHERE `+where+`
		 ORDER BY src.qualified_name, tgt.qualified_name, l.lineage_type`,
		objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	var edges []*core.PersistedEdge
	for rows.Next() {
		edge := &core.PersistedEdge{LineageEdge: &core.LineageEdge{}}
		var metadata string
		err := rows.Scan(
			&edge.ID, &edge.SourceID, &edge.TargetID, &edge.SourceName, &edge.TargetName,
			&edge.Type, &edge.Confidence, &edge.Cycle, &edge.SQL, &metadata, &edge.Stale, &edge.CreatedAt, &edge.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edge.Metadata, err = decodeMetadata(metadata)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}

	return edges, rows.Err()
}

// GetColumnMappings returns the column mappings recorded on an edge.
func (s *SQLiteStore) GetColumnMappings(ctx context.Context, edgeID string) ([]core.ColumnMapping, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source_table, source_column, target_column, transform, expression, confidence
		 FROM column_lineage WHERE lineage_id = ? ORDER BY target_column, source_table, source_column`,
		edgeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get column mappings: %w", err)
	}
	defer rows.Close()

	var mappings []core.ColumnMapping
	for rows.Next() {
		var m core.ColumnMapping
		err := rows.Scan(&m.SourceTable, &m.SourceColumn, &m.TargetColumn, &m.Transform, &m.Expression, &m.Confidence)
		if err != nil {
			return nil, fmt.Errorf("failed to scan column mapping: %w", err)
		}
		mappings = append(mappings, m)
	}

	return mappings, rows.Err()
}
