package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lineal-dev/lineal/pkg/core"
)

// UpsertDataSource registers a data source or updates an existing one.
// Matching is by name; the existing ID and creation time are preserved.
func (s *SQLiteStore) UpsertDataSource(ctx context.Context, source *core.DataSource) (*core.PersistedDataSource, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()

	existing, err := s.GetDataSource(ctx, source.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing data source: %w", err)
	}

	metadata, err := encodeMetadata(source.Metadata)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		persisted := &core.PersistedDataSource{
			DataSource: source,
			ID:         existing.ID,
			CreatedAt:  existing.CreatedAt,
			UpdatedAt:  now,
		}
		_, err := s.db.ExecContext(ctx,
			`UPDATE data_sources SET platform = ?, host = ?, port = ?, database_name = ?, description = ?, metadata = ?, updated_at = ? WHERE id = ?`,
			source.Platform, source.Host, source.Port, source.Database, source.Description, metadata, now, existing.ID,
		)
		if err != nil {
			return nil, txError("update data source", err)
		}
		return persisted, nil
	}

	persisted := &core.PersistedDataSource{
		DataSource: source,
		ID:         generateID(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO data_sources (id, name, platform, host, port, database_name, description, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		persisted.ID, source.Name, source.Platform, source.Host, source.Port, source.Database, source.Description, metadata, now, now,
	)
	if err != nil {
		return nil, txError("insert data source", err)
	}

	return persisted, nil
}

// GetDataSource retrieves a data source by name. Returns nil without error
// when not found.
func (s *SQLiteStore) GetDataSource(ctx context.Context, name string) (*core.PersistedDataSource, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, platform, host, port, database_name, description, metadata, created_at, updated_at
		 FROM data_sources WHERE name = ?`, name)

	source, err := scanDataSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data source: %w", err)
	}
	return source, nil
}

// ListDataSources retrieves all data sources ordered by name.
func (s *SQLiteStore) ListDataSources(ctx context.Context) ([]*core.PersistedDataSource, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, platform, host, port, database_name, description, metadata, created_at, updated_at
		 FROM data_sources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list data sources: %w", err)
	}
	defer rows.Close()

	var sources []*core.PersistedDataSource
	for rows.Next() {
		source, err := scanDataSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan data source: %w", err)
		}
		sources = append(sources, source)
	}

	return sources, rows.Err()
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataSource(row rowScanner) (*core.PersistedDataSource, error) {
	source := &core.PersistedDataSource{DataSource: &core.DataSource{}}
	var metadata string
	err := row.Scan(
		&source.ID, &source.Name, &source.Platform, &source.Host, &source.Port,
		&source.Database, &source.Description, &metadata, &source.CreatedAt, &source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	source.Metadata, err = decodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return source, nil
}
