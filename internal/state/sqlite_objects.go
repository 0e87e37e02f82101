package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lineal-dev/lineal/pkg/core"
)

// UpsertObject registers a data object or updates an existing one matched
// on (source, qualified name). The existing ID and creation time are
// preserved, the stale flag is cleared, and columns are replaced in the
// same transaction.
//
// An existing object of a different concrete type is an identity conflict.
// Placeholder types (external, unknown) upgrade without conflict.
func (s *SQLiteStore) UpsertObject(ctx context.Context, sourceID string, object *core.DataObject) (*core.PersistedObject, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	qualifiedName := object.QualifiedName()
	if qualifiedName == "" {
		return nil, fmt.Errorf("object has no name")
	}

	existing, err := s.GetObjectByName(ctx, sourceID, qualifiedName)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing object: %w", err)
	}
	if existing != nil && conflictingTypes(existing.Type, object.Type) {
		return nil, &core.IdentityConflictError{
			QualifiedName: qualifiedName,
			ExistingID:    existing.ID,
			Reason:        fmt.Sprintf("registered as %s, declared as %s", existing.Type, object.Type),
		}
	}

	now := time.Now().UTC()
	persisted := &core.PersistedObject{
		DataObject: object,
		SourceID:   sourceID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if existing != nil {
		persisted.ID = existing.ID
		persisted.CreatedAt = existing.CreatedAt
	} else {
		persisted.ID = generateID()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, txError("begin object upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	metadata, err := encodeMetadata(object.Metadata)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE data_objects SET database_name = ?, schema_name = ?, name = ?, object_type = ?,
			 sql_text = ?, description = ?, tags = ?, metadata = ?, stale = 0, schema_version = ?, updated_at = ?
			 WHERE id = ?`,
			object.Database, object.Schema, object.Name, object.Type,
			object.SQL, object.Description, joinTags(object.Tags), metadata, core.SchemaVersion, now,
			persisted.ID,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO data_objects (id, source_id, qualified_name, database_name, schema_name, name,
			 object_type, sql_text, description, tags, metadata, stale, schema_version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
			persisted.ID, sourceID, qualifiedName, object.Database, object.Schema, object.Name,
			object.Type, object.SQL, object.Description, joinTags(object.Tags), metadata, core.SchemaVersion, now, now,
		)
	}
	if err != nil {
		return nil, txError("write object", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM object_columns WHERE object_id = ?`, persisted.ID); err != nil {
		return nil, txError("clear object columns", err)
	}
	for _, col := range object.Columns {
		colMetadata, err := encodeMetadata(col.Metadata)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO object_columns (object_id, name, col_type, ordinal, description, is_nullable, is_primary_key, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			persisted.ID, col.Name, col.Type, col.Ordinal, col.Description, col.Nullable, col.PrimaryKey, colMetadata,
		)
		if err != nil {
			return nil, txError(fmt.Sprintf("insert column %s", col.Name), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, txError("commit object upsert", err)
	}

	return persisted, nil
}

// conflictingTypes reports whether two object types cannot describe the
// same object. Placeholder types match anything.
func conflictingTypes(a, b core.ObjectType) bool {
	placeholder := func(t core.ObjectType) bool {
		return t == core.ObjectTypeExternal || t == core.ObjectTypeUnknown || t == ""
	}
	if placeholder(a) || placeholder(b) {
		return false
	}
	return a != b
}

// GetObject retrieves an object by ID.
func (s *SQLiteStore) GetObject(ctx context.Context, id string) (*core.PersistedObject, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx, selectObject+` WHERE id = ?`, id)
	object, err := scanObject(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("object not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	if err := s.loadColumns(ctx, object); err != nil {
		return nil, err
	}
	return object, nil
}

// GetObjectByName retrieves an object by qualified name within a source.
// Returns nil without error when not found.
func (s *SQLiteStore) GetObjectByName(ctx context.Context, sourceID, qualifiedName string) (*core.PersistedObject, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx,
		selectObject+` WHERE source_id = ? AND qualified_name = ?`, sourceID, qualifiedName)
	object, err := scanObject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	if err := s.loadColumns(ctx, object); err != nil {
		return nil, err
	}
	return object, nil
}

// ListObjects retrieves all objects for a source ordered by qualified name.
// Stale objects are included.
func (s *SQLiteStore) ListObjects(ctx context.Context, sourceID string) ([]*core.PersistedObject, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		selectObject+` WHERE source_id = ? ORDER BY qualified_name`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer rows.Close()

	var objects []*core.PersistedObject
	for rows.Next() {
		object, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		objects = append(objects, object)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, object := range objects {
		if err := s.loadColumns(ctx, object); err != nil {
			return nil, err
		}
	}
	return objects, nil
}

// MarkStale flags every object under sourceID whose qualified name is not
// in seen. Objects are never deleted: stale ones stay traversable until a
// later sync sees them again. Returns the number newly marked.
func (s *SQLiteStore) MarkStale(ctx context.Context, sourceID string, seen []string) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}

	query := `UPDATE data_objects SET stale = 1, updated_at = ? WHERE source_id = ? AND stale = 0`
	args := []any{time.Now().UTC(), sourceID}
	if len(seen) > 0 {
		query += ` AND qualified_name NOT IN (?` + strings.Repeat(", ?", len(seen)-1) + `)`
		for _, name := range seen {
			args = append(args, name)
		}
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, txError("mark stale", err)
	}

	marked, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count stale objects: %w", err)
	}
	return int(marked), nil
}

const selectObject = `SELECT id, source_id, qualified_name, database_name, schema_name, name,
 object_type, sql_text, description, tags, metadata, stale, created_at, updated_at FROM data_objects`

func scanObject(row rowScanner) (*core.PersistedObject, error) {
	object := &core.PersistedObject{DataObject: &core.DataObject{}}
	var qualifiedName, tags, metadata string
	err := row.Scan(
		&object.ID, &object.SourceID, &qualifiedName, &object.Database, &object.Schema, &object.Name,
		&object.Type, &object.SQL, &object.Description, &tags, &metadata, &object.Stale,
		&object.CreatedAt, &object.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	object.Tags = splitTags(tags)
	object.Metadata, err = decodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return object, nil
}

// loadColumns populates the object's columns.
func (s *SQLiteStore) loadColumns(ctx context.Context, object *core.PersistedObject) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, col_type, ordinal, description, is_nullable, is_primary_key, metadata
		 FROM object_columns WHERE object_id = ? ORDER BY ordinal`,
		object.ID)
	if err != nil {
		return fmt.Errorf("failed to load columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var col core.Column
		var metadata string
		if err := rows.Scan(&col.Name, &col.Type, &col.Ordinal, &col.Description, &col.Nullable, &col.PrimaryKey, &metadata); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}
		col.Metadata, err = decodeMetadata(metadata)
		if err != nil {
			return err
		}
		object.Columns = append(object.Columns, col)
	}
	return rows.Err()
}
