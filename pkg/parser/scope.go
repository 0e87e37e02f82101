package parser

import (
	"strings"

	"github.com/lineal-dev/lineal/pkg/dialect"
)

// Schema maps table names to their columns.
// Used for SELECT * expansion and ambiguity detection when schema
// information is available.
type Schema map[string][]string

// ScopeType indicates the type of scope entry.
type ScopeType int

const (
	// ScopeTable represents a physical table.
	ScopeTable ScopeType = iota
	// ScopeCTE represents a Common Table Expression.
	ScopeCTE
	// ScopeDerived represents a derived table (subquery in FROM).
	ScopeDerived
)

// ColumnOrigin is one physical source column behind an output column of a
// CTE or derived table, with the confidence and ambiguity the inner body
// resolved it at.
type ColumnOrigin struct {
	Table      string
	Column     string
	Confidence float64
	Ambiguous  bool
}

// ScopeEntry represents a table/CTE/derived table in scope.
type ScopeEntry struct {
	Type              ScopeType
	Name              string   // Original table/CTE name
	Alias             string   // Alias (if any)
	Columns           []string // Known columns (from schema or derived query)
	SourceTable       string   // For physical tables: fully qualified name (schema.table)
	UnderlyingSources []string // For CTEs/derived tables: underlying physical tables
	// ColumnSources maps each output column (dialect-normalized) to the
	// physical source columns its defining expression resolved to. Nil when
	// the body could not be resolved column by column.
	ColumnSources map[string][]ColumnOrigin
}

// EffectiveName returns the name used to reference this entry (alias if present, else name).
func (e *ScopeEntry) EffectiveName() string {
	if e.Alias != "" {
		return e.Alias
	}
	return e.Name
}

// Scope tracks all available tables, CTEs, and their columns within a query context.
type Scope struct {
	parent  *Scope                 // Parent scope (for nested queries)
	entries map[string]*ScopeEntry // Name/alias -> entry (normalized per dialect)
	order   []string               // Registration order of entry keys
	dialect *dialect.Dialect       // For name normalization
	schema  Schema                 // External schema information
}

// NewScope creates a new root scope.
// Returns an error if d is nil.
func NewScope(d *dialect.Dialect, schema Schema) (*Scope, error) {
	if d == nil {
		return nil, dialect.ErrDialectRequired
	}
	return &Scope{
		entries: make(map[string]*ScopeEntry),
		dialect: d,
		schema:  schema,
	}, nil
}

// Child creates a child scope for nested queries (subqueries, derived tables).
func (s *Scope) Child() *Scope {
	return &Scope{
		parent:  s,
		entries: make(map[string]*ScopeEntry),
		dialect: s.dialect,
		schema:  s.schema,
	}
}

// normalize normalizes an identifier according to dialect rules.
func (s *Scope) normalize(name string) string {
	return s.dialect.NormalizeName(name)
}

// register stores an entry under key, tracking insertion order.
func (s *Scope) register(key string, entry *ScopeEntry) {
	if _, exists := s.entries[key]; !exists {
		s.order = append(s.order, key)
	}
	s.entries[key] = entry
}

// RegisterCTE registers a CTE with its resolved columns, underlying
// sources, and per-column provenance.
func (s *Scope) RegisterCTE(name string, columns []string, underlyingSources []string, columnSources map[string][]ColumnOrigin) {
	s.register(s.normalize(name), &ScopeEntry{
		Type:              ScopeCTE,
		Name:              name,
		Columns:           columns,
		UnderlyingSources: underlyingSources,
		ColumnSources:     columnSources,
	})
}

// RegisterCTEAlias registers a FROM-clause reference to an existing CTE under
// an alias, propagating the CTE's columns and provenance.
func (s *Scope) RegisterCTEAlias(alias string, cte *ScopeEntry) {
	entry := &ScopeEntry{
		Type:              ScopeCTE,
		Name:              cte.Name,
		Alias:             alias,
		Columns:           cte.Columns,
		UnderlyingSources: cte.UnderlyingSources,
		ColumnSources:     cte.ColumnSources,
	}
	s.register(s.normalize(entry.EffectiveName()), entry)
}

// RegisterTable registers a physical table from a FROM clause.
func (s *Scope) RegisterTable(table *TableName) {
	entry := &ScopeEntry{
		Type: ScopeTable,
		Name: table.Name,
	}

	// Build fully qualified source name
	var parts []string
	if table.Catalog != "" {
		parts = append(parts, table.Catalog)
	}
	if table.Schema != "" {
		parts = append(parts, table.Schema)
	}
	parts = append(parts, table.Name)
	entry.SourceTable = strings.Join(parts, ".")

	if table.Alias != "" {
		entry.Alias = table.Alias
	}

	// Try to get columns from schema
	if s.schema != nil {
		for _, key := range []string{
			entry.SourceTable,
			table.Name,
			s.normalize(entry.SourceTable),
			s.normalize(table.Name),
		} {
			if cols, ok := s.schema[key]; ok {
				entry.Columns = cols
				break
			}
		}
	}

	// Register by effective name (alias or table name)
	s.register(s.normalize(entry.EffectiveName()), entry)
}

// RegisterDerived registers a derived table with its columns, underlying
// sources, and per-column provenance.
func (s *Scope) RegisterDerived(alias string, columns []string, underlyingSources []string, columnSources map[string][]ColumnOrigin) {
	s.register(s.normalize(alias), &ScopeEntry{
		Type:              ScopeDerived,
		Name:              alias,
		Alias:             alias,
		Columns:           columns,
		UnderlyingSources: underlyingSources,
		ColumnSources:     columnSources,
	})
}

// OriginsFor returns the per-column provenance recorded for an output
// column, or nil when the entry carries none.
func (s *Scope) OriginsFor(entry *ScopeEntry, column string) ([]ColumnOrigin, bool) {
	if entry.ColumnSources == nil {
		return nil, false
	}
	origins, ok := entry.ColumnSources[s.normalize(column)]
	return origins, ok
}

// Lookup finds a scope entry by name (table name or alias).
// Searches current scope first, then parent scopes.
func (s *Scope) Lookup(name string) (*ScopeEntry, bool) {
	normalized := s.normalize(name)

	if entry, ok := s.entries[normalized]; ok {
		return entry, true
	}

	// Check parent scope (for correlated subqueries, LATERAL, etc.)
	if s.parent != nil {
		return s.parent.Lookup(name)
	}

	return nil, false
}

// LookupCTE looks up a CTE by name, searching parent scopes.
func (s *Scope) LookupCTE(name string) (*ScopeEntry, bool) {
	normalized := s.normalize(name)

	if entry, ok := s.entries[normalized]; ok && entry.Type == ScopeCTE {
		return entry, true
	}

	if s.parent != nil {
		return s.parent.LookupCTE(name)
	}

	return nil, false
}

// AllEntries returns all scope entries in the current scope in registration
// order (not including parent).
func (s *Scope) AllEntries() []*ScopeEntry {
	entries := make([]*ScopeEntry, 0, len(s.entries))
	for _, key := range s.order {
		entries = append(entries, s.entries[key])
	}
	return entries
}

// ResolveCandidates returns every scope entry that could supply the column
// reference. A qualified reference yields at most one candidate. An
// unqualified reference yields every entry whose known columns contain the
// name; when no entry has column info, every physical table in scope is a
// candidate. More than one candidate means the reference is ambiguous.
func (s *Scope) ResolveCandidates(ref *ColumnRef) []*ScopeEntry {
	if ref.Table != "" {
		if entry, ok := s.Lookup(ref.Table); ok {
			return []*ScopeEntry{entry}
		}
		return nil
	}

	// Unqualified - collect entries whose columns contain the name
	var candidates []*ScopeEntry
	target := s.normalize(ref.Column)
	for _, key := range s.order {
		entry := s.entries[key]
		for _, col := range entry.Columns {
			if s.normalize(col) == target {
				candidates = append(candidates, entry)
				break
			}
		}
	}
	if len(candidates) > 0 {
		return candidates
	}

	// No column info matched - fall back to entries without schema knowledge
	for _, key := range s.order {
		entry := s.entries[key]
		if len(entry.Columns) == 0 {
			candidates = append(candidates, entry)
		}
	}
	if len(candidates) > 0 {
		return candidates
	}

	if s.parent != nil {
		return s.parent.ResolveCandidates(ref)
	}

	return nil
}

// ExpandStar expands a SELECT * to column references.
// If tableName is empty, expands * for all tables in scope.
// If tableName is provided, expands only for that table.
//
// Returns nil if the table is not found or has no known columns.
func (s *Scope) ExpandStar(tableName string) []*ColumnRef {
	if tableName != "" {
		// Expand table.*
		entry, ok := s.Lookup(tableName)
		if !ok || len(entry.Columns) == 0 {
			return nil
		}

		refs := make([]*ColumnRef, len(entry.Columns))
		for i, col := range entry.Columns {
			refs[i] = &ColumnRef{
				Table:  entry.EffectiveName(),
				Column: col,
			}
		}
		return refs
	}

	// Expand * for all tables
	var refs []*ColumnRef
	for _, key := range s.order {
		entry := s.entries[key]
		for _, col := range entry.Columns {
			refs = append(refs, &ColumnRef{
				Table:  entry.EffectiveName(),
				Column: col,
			})
		}
	}
	return refs
}

