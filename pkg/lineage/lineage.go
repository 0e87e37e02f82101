// Package lineage extracts table and column lineage from SQL statements.
//
// The extractor parses a statement (SELECT, CREATE VIEW, CREATE TABLE AS,
// INSERT, UPDATE), resolves every column reference through nested scopes,
// inlines CTEs and derived tables down to physical sources, and produces a
// per-output-column map of source columns with a transformation
// classification and a confidence score.
package lineage

import (
	"sort"
	"strings"

	"github.com/lineal-dev/lineal/pkg/dialect"
	"github.com/lineal-dev/lineal/pkg/parser"
)

// TransformType classifies how an output column derives from its sources.
type TransformType string

// TransformType values.
const (
	TransformDirect      TransformType = "direct"
	TransformCalculation TransformType = "calculation"
	TransformAggregation TransformType = "aggregation"
	TransformWindow      TransformType = "window"
	TransformCase        TransformType = "case"
)

// Confidence levels for resolved lineage.
const (
	ConfidenceDirect    = 1.0
	ConfidenceTransform = 0.9
	ConfidenceAmbiguous = 0.5
	ConfidenceFallback  = 0.3
	ConfidenceNone      = 0.0
)

// SourceRef identifies a source column.
type SourceRef struct {
	Table  string // Source table (fully qualified where known)
	Column string
}

// ColumnLineage describes the lineage of a single output column.
type ColumnLineage struct {
	Name       string        // Output column name
	Sources    []SourceRef   // Source columns this output derives from
	Transform  TransformType // Type of transformation applied
	Function   string        // Function name (for aggregates/window functions)
	Expression string        // Rendered source expression text
	Confidence float64       // Resolution confidence in [0, 1]
	Ambiguous  bool          // True if sources are ambiguity candidates
}

// StatementLineage describes the complete lineage of a SQL statement.
type StatementLineage struct {
	Target         string           // Qualified target for DDL/DML statements, empty for bare SELECT
	Sources        []string         // All source tables (deduplicated, sorted)
	Columns        []*ColumnLineage // Lineage for each output column
	UsesSelectStar bool             // true if SELECT * or t.* detected
	Confidence     float64          // Statement-level confidence in [0, 1]
	FallbackUsed   string           // Dialect that succeeded after the declared one failed
}

// Kind classifies the statement-level lineage relationship.
func (sl *StatementLineage) Kind() string {
	if len(sl.Columns) == 0 {
		return "unknown"
	}
	allDirect := true
	for _, col := range sl.Columns {
		switch col.Transform {
		case TransformAggregation:
			return "aggregated"
		case TransformDirect:
		default:
			allDirect = false
		}
	}
	if allDirect {
		return "direct"
	}
	return "transformed"
}

// Options configures lineage extraction.
type Options struct {
	// Dialect is the platform dialect tag ("postgres", "snowflake", ...).
	// Empty means ANSI.
	Dialect string

	// Schema provides known table columns for star expansion and
	// ambiguity detection.
	Schema parser.Schema

	// DefaultSchema qualifies unqualified target names (CREATE VIEW v ...).
	DefaultSchema string

	// Strict makes ambiguous unqualified column references an error
	// instead of recording every candidate at reduced confidence.
	Strict bool
}

// Extract parses sqlStr and extracts its lineage.
//
// When extraction fails under the declared dialect, the dialect's fallback
// chain is tried in order; a fallback success is recorded on the result
// with reduced confidence. The original error is returned only when every
// dialect in the chain fails.
func Extract(sqlStr string, opts Options) (*StatementLineage, error) {
	name := opts.Dialect
	if name == "" {
		name = dialect.ANSI
	}
	d, ok := dialect.Get(name)
	if !ok {
		d = dialect.MustGet(dialect.ANSI)
	}

	result, err := extractWith(sqlStr, d, opts)
	if err == nil {
		return result, nil
	}

	// Identifier folding and function classification differ per dialect, so
	// a statement that fails resolution under the declared dialect can still
	// resolve under a fallback.
	for _, fb := range d.Fallbacks {
		fbd, fbOk := dialect.Get(fb)
		if !fbOk {
			continue
		}
		fbResult, fbErr := extractWith(sqlStr, fbd, opts)
		if fbErr != nil {
			continue
		}
		fbResult.FallbackUsed = fb
		fbResult.Confidence = ConfidenceFallback
		for _, col := range fbResult.Columns {
			col.Confidence = clamp(col.Confidence * ConfidenceFallback)
		}
		return fbResult, nil
	}

	return nil, err
}

// extractWith runs a single parse and extraction pass under one dialect.
func extractWith(sqlStr string, d *dialect.Dialect, opts Options) (*StatementLineage, error) {
	stmt, err := parser.Parse(sqlStr)
	if err != nil {
		return nil, err
	}

	e := &extractor{
		dialect: d,
		schema:  opts.Schema,
		strict:  opts.Strict,
		sources: make(map[string]struct{}),
	}

	return e.extractStatement(stmt, opts.DefaultSchema)
}

// qualifyTarget builds the qualified target name for a DDL/DML statement.
func qualifyTarget(name *parser.TableName, defaultSchema string) string {
	if name == nil {
		return ""
	}
	var parts []string
	if name.Catalog != "" {
		parts = append(parts, name.Catalog)
	}
	switch {
	case name.Schema != "":
		parts = append(parts, name.Schema)
	case defaultSchema != "":
		parts = append(parts, defaultSchema)
	}
	parts = append(parts, name.Name)
	return strings.Join(parts, ".")
}

// clamp bounds a confidence score to [0, 1].
func clamp(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// sortedKeys returns map keys sorted, skipping empties.
func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
