package core

import (
	"context"
	"time"
)

// Store defines the interface for lineage graph persistence.
//
// Upsert operations are idempotent: objects and edges are matched on
// logical identity, existing IDs and creation timestamps are preserved,
// and re-submitting the same graph is a no-op. Objects that disappear from
// a source are marked stale, never deleted.
type Store interface {
	Close() error

	// Data source operations
	UpsertDataSource(ctx context.Context, source *DataSource) (*PersistedDataSource, error)
	GetDataSource(ctx context.Context, name string) (*PersistedDataSource, error)
	ListDataSources(ctx context.Context) ([]*PersistedDataSource, error)

	// Object operations
	UpsertObject(ctx context.Context, sourceID string, object *DataObject) (*PersistedObject, error)
	GetObject(ctx context.Context, id string) (*PersistedObject, error)
	GetObjectByName(ctx context.Context, sourceID, qualifiedName string) (*PersistedObject, error)
	ListObjects(ctx context.Context, sourceID string) ([]*PersistedObject, error)
	// MarkStale flags every object under sourceID whose qualified name is
	// not in seen. Returns the number of objects newly marked.
	MarkStale(ctx context.Context, sourceID string, seen []string) (int, error)

	// Edge operations
	UpsertEdge(ctx context.Context, sourceID string, edge *LineageEdge) (*PersistedEdge, error)
	// UpsertEdges records a batch of edges in one transaction.
	UpsertEdges(ctx context.Context, sourceID string, edges []*LineageEdge) ([]*PersistedEdge, error)
	// MarkStaleEdges flags every edge under sourceID whose ID is not in
	// seen. Returns the number of edges newly marked.
	MarkStaleEdges(ctx context.Context, sourceID string, seen []string) (int, error)
	ListEdgesFrom(ctx context.Context, objectID string) ([]*PersistedEdge, error)
	ListEdgesTo(ctx context.Context, objectID string) ([]*PersistedEdge, error)
	GetColumnMappings(ctx context.Context, edgeID string) ([]ColumnMapping, error)

	// Traversal operations
	Upstream(ctx context.Context, objectID string, maxDepth int) ([]*TraceResult, error)
	Downstream(ctx context.Context, objectID string, maxDepth int) ([]*TraceResult, error)
	TraceColumnUpstream(ctx context.Context, objectID, column string, maxDepth int) ([]*ColumnTraceResult, error)
	TraceColumnDownstream(ctx context.Context, objectID, column string, maxDepth int) ([]*ColumnTraceResult, error)
}

// PersistedDataSource wraps DataSource with persistence fields.
type PersistedDataSource struct {
	*DataSource
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PersistedObject wraps DataObject with persistence fields.
type PersistedObject struct {
	*DataObject
	ID        string // Database primary key
	SourceID  string
	Stale     bool // Set when the object disappeared from its source
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PersistedEdge wraps LineageEdge with persistence fields.
type PersistedEdge struct {
	*LineageEdge
	ID        string
	SourceID  string // Upstream object ID
	TargetID  string // Downstream object ID
	Stale     bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TraceResult is a single node reached during graph traversal.
type TraceResult struct {
	// Object is the object reached
	Object *PersistedObject
	// Depth is the hop distance from the starting object
	Depth int
	// LineageID is the edge that reached this object
	LineageID string
	// Path holds the qualified names from the start to this object
	Path []string
}

// ColumnTraceResult is a single column reached during column-level traversal.
type ColumnTraceResult struct {
	Object *PersistedObject
	Column string
	Depth  int
	// Transform is the transformation applied along the final hop
	Transform string
	// Confidence is the minimum confidence along the path
	Confidence float64
}
