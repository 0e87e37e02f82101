package core

// LineageType classifies the relationship an edge represents.
type LineageType string

// Lineage type constants.
const (
	// LineageDirect means all columns pass through unchanged.
	LineageDirect LineageType = "direct"
	// LineageDerived means the target materializes data from the source.
	LineageDerived LineageType = "derived"
	// LineageTransformed means at least one column is derived by an expression.
	LineageTransformed LineageType = "transformed"
	// LineageAggregated means the target aggregates source rows.
	LineageAggregated LineageType = "aggregated"
	// LineageReference means the target references the source without
	// deriving data from it (a foreign key constraint, for example).
	LineageReference LineageType = "reference"
	// LineageUnknown means the relationship could not be classified
	// (parse failure, external reference).
	LineageUnknown LineageType = "unknown"
)

// LineageEdge represents a directed dependency between two data objects:
// data flows from Source into Target.
type LineageEdge struct {
	// SourceName identifies the qualified name of the upstream object
	SourceName string
	// TargetName identifies the qualified name of the downstream object
	TargetName string
	// Type classifies the relationship
	Type LineageType
	// Confidence is the resolution confidence in [0, 1]
	Confidence float64
	// Cycle is true when this edge closes a dependency cycle
	Cycle bool
	// SQL is the defining statement the edge was extracted from
	SQL string
	// Metadata is a free-form metadata payload
	Metadata map[string]any
	// ColumnMappings holds column-level lineage when resolved
	ColumnMappings []ColumnMapping
}

// ColumnMapping maps one target column to one source column.
type ColumnMapping struct {
	// SourceTable is the qualified upstream table supplying the column
	SourceTable string
	// SourceColumn is the upstream column name
	SourceColumn string
	// TargetColumn is the downstream column name
	TargetColumn string
	// Transform classifies the transformation (direct, calculation,
	// aggregation, window, case)
	Transform string
	// Expression is the rendered transformation expression
	Expression string
	// Confidence is the per-column resolution confidence in [0, 1]
	Confidence float64
}
