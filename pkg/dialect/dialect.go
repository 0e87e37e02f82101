// Package dialect provides SQL dialect configuration and function classification.
//
// A dialect carries identifier normalization rules and function
// classifications used by the lineage extractor to decide how a function
// call propagates column-level lineage. Concrete dialects are registered
// in builtin.go and looked up by platform tag ("postgres", "snowflake", ...).
package dialect

import "strings"

// Type classifies how a function affects lineage.
type Type int

const (
	// LineagePassthrough means all input columns pass through (default for unknown functions).
	LineagePassthrough Type = iota
	// LineageAggregate means many rows aggregate to one value (SUM, COUNT, etc.).
	LineageAggregate
	// LineageGenerator means function generates values with no upstream columns (NOW, UUID, etc.).
	LineageGenerator
	// LineageWindow means function requires OVER clause (ROW_NUMBER, LAG, etc.).
	LineageWindow
)

// String returns the string representation of Type.
func (t Type) String() string {
	switch t {
	case LineagePassthrough:
		return "passthrough"
	case LineageAggregate:
		return "aggregate"
	case LineageGenerator:
		return "generator"
	case LineageWindow:
		return "window"
	default:
		return "unknown"
	}
}

// Normalization controls how unquoted identifiers fold.
type Normalization int

const (
	// NormLowercase folds identifiers to lowercase (Postgres, MySQL default).
	NormLowercase Normalization = iota
	// NormUppercase folds identifiers to uppercase (Snowflake, Oracle).
	NormUppercase
	// NormCaseSensitive keeps identifiers as written (BigQuery).
	NormCaseSensitive
)

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name          string
	Normalization Normalization

	// Fallbacks names dialects to retry with when parsing fails under
	// this dialect, in order.
	Fallbacks []string

	// Function classifications (keys normalized per dialect rules)
	aggregates map[string]struct{}
	generators map[string]struct{}
	windows    map[string]struct{}
}

// NormalizeName normalizes an identifier according to dialect rules.
func (d *Dialect) NormalizeName(name string) string {
	switch d.Normalization {
	case NormUppercase:
		return strings.ToUpper(name)
	case NormCaseSensitive:
		return name
	default:
		return strings.ToLower(name)
	}
}

// FunctionLineageType returns the lineage classification for a function.
func (d *Dialect) FunctionLineageType(name string) Type {
	normalized := strings.ToLower(name)

	if _, ok := d.aggregates[normalized]; ok {
		return LineageAggregate
	}
	if _, ok := d.generators[normalized]; ok {
		return LineageGenerator
	}
	if _, ok := d.windows[normalized]; ok {
		return LineageWindow
	}
	return LineagePassthrough
}

// IsAggregate returns true if the function is an aggregate function.
func (d *Dialect) IsAggregate(name string) bool {
	return d.FunctionLineageType(name) == LineageAggregate
}

// IsGenerator returns true if the function generates values without input columns.
func (d *Dialect) IsGenerator(name string) bool {
	return d.FunctionLineageType(name) == LineageGenerator
}

// IsWindow returns true if the function is a window-only function.
func (d *Dialect) IsWindow(name string) bool {
	return d.FunctionLineageType(name) == LineageWindow
}

// Builder constructs a Dialect.
type Builder struct {
	dialect *Dialect
}

// New creates a dialect builder.
func New(name string) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name:       name,
			aggregates: make(map[string]struct{}),
			generators: make(map[string]struct{}),
			windows:    make(map[string]struct{}),
		},
	}
}

// Normalization sets the identifier folding rule.
func (b *Builder) Normalization(n Normalization) *Builder {
	b.dialect.Normalization = n
	return b
}

// Fallbacks sets the fallback dialect chain.
func (b *Builder) Fallbacks(names ...string) *Builder {
	b.dialect.Fallbacks = names
	return b
}

// Aggregates registers aggregate functions.
func (b *Builder) Aggregates(funcs ...string) *Builder {
	for _, f := range funcs {
		b.dialect.aggregates[strings.ToLower(f)] = struct{}{}
	}
	return b
}

// Generators registers value-generating functions.
func (b *Builder) Generators(funcs ...string) *Builder {
	for _, f := range funcs {
		b.dialect.generators[strings.ToLower(f)] = struct{}{}
	}
	return b
}

// Windows registers window-only functions.
func (b *Builder) Windows(funcs ...string) *Builder {
	for _, f := range funcs {
		b.dialect.windows[strings.ToLower(f)] = struct{}{}
	}
	return b
}

// Build finalizes and returns the dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
