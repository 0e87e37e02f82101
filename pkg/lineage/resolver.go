package lineage

import (
	"fmt"
	"strings"

	"github.com/lineal-dev/lineal/pkg/dialect"
	"github.com/lineal-dev/lineal/pkg/parser"
)

// Resolver walks the AST and resolves:
// - CTE definitions (names, columns, underlying physical sources)
// - Table references in FROM clauses
// - Derived tables down to their underlying sources
type Resolver struct {
	dialect *dialect.Dialect
	schema  parser.Schema

	// Strict propagates into CTE and derived-table bodies, so an ambiguous
	// reference inside an inlined body fails the statement too.
	Strict bool
}

// NewResolver creates a new resolver with the given dialect and schema.
func NewResolver(d *dialect.Dialect, schema parser.Schema) (*Resolver, error) {
	if d == nil {
		return nil, dialect.ErrDialectRequired
	}
	return &Resolver{
		dialect: d,
		schema:  schema,
	}, nil
}

// Resolve builds scopes for a SELECT statement and returns the root scope.
func (r *Resolver) Resolve(stmt *parser.SelectStmt) (*parser.Scope, error) {
	if stmt == nil {
		return nil, &ResolveError{Message: "nil statement"}
	}

	scope, err := parser.NewScope(r.dialect, r.schema)
	if err != nil {
		return nil, err
	}

	// First, resolve CTEs
	if stmt.With != nil {
		if err := r.resolveCTEs(scope, stmt.With); err != nil {
			return nil, err
		}
	}

	// Resolve the main query body
	if err := r.resolveSelectBody(scope, stmt.Body); err != nil {
		return nil, err
	}

	return scope, nil
}

// resolveCTEs resolves all CTEs in a WITH clause.
// CTEs can reference previously defined CTEs (forward references not allowed).
func (r *Resolver) resolveCTEs(scope *parser.Scope, with *parser.WithClause) error {
	for _, cte := range with.CTEs {
		// Create a child scope for the CTE that can see previously defined CTEs
		cteScope := scope.Child()

		if cte.Select == nil {
			continue
		}

		// Handle nested WITH clauses within the CTE
		if cte.Select.With != nil {
			if err := r.resolveCTEs(cteScope, cte.Select.With); err != nil {
				return err
			}
		}

		if cte.Select.Body == nil {
			continue
		}

		if err := r.resolveSelectBody(cteScope, cte.Select.Body); err != nil {
			return err
		}

		// Column list on the CTE itself wins; otherwise take the SELECT list
		columns := cte.Columns
		if len(columns) == 0 {
			columns = r.extractSelectColumns(cteScope, cte.Select.Body)
		}

		// Collect underlying physical sources from the CTE scope
		underlyingSources := r.collectUnderlyingSources(cteScope)

		columnSources, err := r.columnOrigins(cteScope, cte.Select.Body, cte.Columns)
		if err != nil {
			return err
		}

		scope.RegisterCTE(cte.Name, columns, underlyingSources, columnSources)
	}
	return nil
}

// columnOrigins resolves the lineage of a CTE or derived-table body and
// keys each output column to the physical source columns that produce it.
// An explicit column list renames the outputs positionally. Outputs left
// unresolved (star expansion without schema information) are simply absent
// from the map; lookups fall back to the underlying-source bag.
func (r *Resolver) columnOrigins(scope *parser.Scope, body *parser.SelectBody, rename []string) (map[string][]parser.ColumnOrigin, error) {
	ext := &extractor{
		dialect: r.dialect,
		schema:  r.schema,
		strict:  r.Strict,
		sources: make(map[string]struct{}),
	}
	columns, _, err := ext.extractBodyLineage(scope, body)
	if err != nil {
		return nil, err
	}
	renameColumns(columns, rename)

	origins := make(map[string][]parser.ColumnOrigin, len(columns))
	for _, col := range columns {
		key := r.dialect.NormalizeName(col.Name)
		refs := make([]parser.ColumnOrigin, 0, len(col.Sources))
		for _, src := range col.Sources {
			refs = append(refs, parser.ColumnOrigin{
				Table:      src.Table,
				Column:     src.Column,
				Confidence: col.Confidence,
				Ambiguous:  col.Ambiguous,
			})
		}
		origins[key] = refs
	}
	return origins, nil
}

// collectUnderlyingSources collects all physical table sources from a scope.
// It traces through CTEs and derived tables to find the underlying physical tables.
func (r *Resolver) collectUnderlyingSources(scope *parser.Scope) []string {
	seen := make(map[string]struct{})
	var sources []string

	for _, entry := range scope.AllEntries() {
		switch entry.Type {
		case parser.ScopeTable:
			tableName := entry.SourceTable
			if tableName == "" {
				tableName = entry.Name
			}
			if _, ok := seen[tableName]; !ok {
				seen[tableName] = struct{}{}
				sources = append(sources, tableName)
			}
		case parser.ScopeCTE, parser.ScopeDerived:
			// Trace through to underlying sources
			for _, underlying := range entry.UnderlyingSources {
				if _, ok := seen[underlying]; !ok {
					seen[underlying] = struct{}{}
					sources = append(sources, underlying)
				}
			}
		}
	}

	return sources
}

// resolveSelectBody resolves a SELECT body (may include set operations).
func (r *Resolver) resolveSelectBody(scope *parser.Scope, body *parser.SelectBody) error {
	if body == nil {
		return nil
	}

	if body.Left != nil {
		if err := r.resolveSelectCore(scope, body.Left); err != nil {
			return err
		}
	}

	// The right side of UNION/INTERSECT/EXCEPT resolves against the same
	// CTEs but contributes its own FROM entries to the shared scope so
	// statement-level sources include both branches.
	if body.Right != nil {
		if err := r.resolveSelectBody(scope, body.Right); err != nil {
			return err
		}
	}

	return nil
}

// resolveSelectCore resolves a single SELECT clause.
func (r *Resolver) resolveSelectCore(scope *parser.Scope, core *parser.SelectCore) error {
	if core == nil {
		return nil
	}

	// Resolve FROM clause (defines available tables). Expression resolution
	// happens during lineage extraction.
	if core.From != nil {
		return r.resolveFromClause(scope, core.From)
	}

	return nil
}

// resolveFromClause resolves tables and joins in a FROM clause.
func (r *Resolver) resolveFromClause(scope *parser.Scope, from *parser.FromClause) error {
	if err := r.resolveTableRef(scope, from.Source); err != nil {
		return err
	}

	for _, join := range from.Joins {
		if err := r.resolveTableRef(scope, join.Right); err != nil {
			return err
		}
	}

	return nil
}

// resolveTableRef resolves a table reference and registers it in scope.
func (r *Resolver) resolveTableRef(scope *parser.Scope, ref parser.TableRef) error {
	if ref == nil {
		return nil
	}

	switch t := ref.(type) {
	case *parser.TableName:
		// A bare name can reference a CTE; schema-qualified names never do
		if t.Schema == "" {
			if cte, ok := scope.LookupCTE(t.Name); ok {
				scope.RegisterCTEAlias(t.Alias, cte)
				return nil
			}
		}
		scope.RegisterTable(t)

	case *parser.DerivedTable:
		subScope := scope.Child()

		if t.Select != nil {
			if t.Select.With != nil {
				if err := r.resolveCTEs(subScope, t.Select.With); err != nil {
					return err
				}
			}

			if t.Select.Body != nil {
				if err := r.resolveSelectBody(subScope, t.Select.Body); err != nil {
					return err
				}

				columns := r.extractSelectColumns(subScope, t.Select.Body)
				underlyingSources := r.collectUnderlyingSources(subScope)
				columnSources, oerr := r.columnOrigins(subScope, t.Select.Body, nil)
				if oerr != nil {
					return oerr
				}
				scope.RegisterDerived(t.Alias, columns, underlyingSources, columnSources)
			}
		}

	case *parser.LateralTable:
		// LATERAL subquery can reference tables from the outer scope, so it
		// resolves in the current scope rather than a child.
		if t.Select != nil {
			if t.Select.With != nil {
				if err := r.resolveCTEs(scope, t.Select.With); err != nil {
					return err
				}
			}

			if t.Select.Body != nil {
				if err := r.resolveSelectBody(scope, t.Select.Body); err != nil {
					return err
				}

				columns := r.extractSelectColumns(scope, t.Select.Body)
				columnSources, oerr := r.columnOrigins(scope, t.Select.Body, nil)
				if oerr != nil {
					return oerr
				}
				scope.RegisterDerived(t.Alias, columns, nil, columnSources)
			}
		}
	}

	return nil
}

// extractSelectColumns extracts output column names from a SELECT list.
func (r *Resolver) extractSelectColumns(scope *parser.Scope, body *parser.SelectBody) []string {
	if body == nil || body.Left == nil {
		return nil
	}

	var columns []string
	for i, item := range body.Left.Columns {
		columns = append(columns, r.extractColumnName(scope, item, i))
	}
	return columns
}

// extractColumnName extracts the output name for a SELECT item.
func (r *Resolver) extractColumnName(scope *parser.Scope, item parser.SelectItem, index int) string {
	if item.Alias != "" {
		return item.Alias
	}

	// Star expands to multiple columns; handled during lineage extraction
	if item.Star {
		return "*"
	}
	if item.TableStar != "" {
		return item.TableStar + ".*"
	}

	if item.Expr != nil {
		return inferColumnName(item.Expr, index)
	}

	return generatedColumnName(index)
}

// ColumnResolver resolves column references within an expression.
// Used during lineage extraction to find all source columns.
type ColumnResolver struct {
	scope *parser.Scope
}

// NewColumnResolver creates a column resolver for the given scope.
func NewColumnResolver(scope *parser.Scope) *ColumnResolver {
	return &ColumnResolver{scope: scope}
}

// CollectColumns collects all column references from an expression.
func (cr *ColumnResolver) CollectColumns(expr parser.Expr) []*parser.ColumnRef {
	var refs []*parser.ColumnRef
	cr.collectColumnsRecursive(expr, &refs)
	return refs
}

// collectColumnsRecursive recursively collects column references.
func (cr *ColumnResolver) collectColumnsRecursive(expr parser.Expr, refs *[]*parser.ColumnRef) {
	if expr == nil {
		return
	}

	switch e := expr.(type) {
	case *parser.ColumnRef:
		*refs = append(*refs, e)

	case *parser.BinaryExpr:
		cr.collectColumnsRecursive(e.Left, refs)
		cr.collectColumnsRecursive(e.Right, refs)

	case *parser.UnaryExpr:
		cr.collectColumnsRecursive(e.Expr, refs)

	case *parser.FuncCall:
		for _, arg := range e.Args {
			cr.collectColumnsRecursive(arg, refs)
		}
		if e.Filter != nil {
			cr.collectColumnsRecursive(e.Filter, refs)
		}
		if e.Window != nil {
			for _, p := range e.Window.PartitionBy {
				cr.collectColumnsRecursive(p, refs)
			}
			for _, o := range e.Window.OrderBy {
				cr.collectColumnsRecursive(o.Expr, refs)
			}
		}

	case *parser.CaseExpr:
		if e.Operand != nil {
			cr.collectColumnsRecursive(e.Operand, refs)
		}
		for _, w := range e.Whens {
			cr.collectColumnsRecursive(w.Condition, refs)
			cr.collectColumnsRecursive(w.Result, refs)
		}
		if e.Else != nil {
			cr.collectColumnsRecursive(e.Else, refs)
		}

	case *parser.CastExpr:
		cr.collectColumnsRecursive(e.Expr, refs)

	case *parser.InExpr:
		cr.collectColumnsRecursive(e.Expr, refs)
		for _, v := range e.Values {
			cr.collectColumnsRecursive(v, refs)
		}
		// IN subqueries have their own scope and lineage

	case *parser.BetweenExpr:
		cr.collectColumnsRecursive(e.Expr, refs)
		cr.collectColumnsRecursive(e.Low, refs)
		cr.collectColumnsRecursive(e.High, refs)

	case *parser.IsNullExpr:
		cr.collectColumnsRecursive(e.Expr, refs)

	case *parser.IsBoolExpr:
		cr.collectColumnsRecursive(e.Expr, refs)

	case *parser.LikeExpr:
		cr.collectColumnsRecursive(e.Expr, refs)
		cr.collectColumnsRecursive(e.Pattern, refs)

	case *parser.ParenExpr:
		cr.collectColumnsRecursive(e.Expr, refs)

	case *parser.StarExpr:
		// Star expressions are handled specially during lineage extraction

	case *parser.Literal:
		// Literals have no column references

	case *parser.SubqueryExpr, *parser.ExistsExpr:
		// Subqueries have their own scope and lineage
	}
}

// inferColumnName tries to infer a column name from an expression.
func inferColumnName(expr parser.Expr, index int) string {
	switch e := expr.(type) {
	case *parser.ColumnRef:
		return e.Column

	case *parser.FuncCall:
		return strings.ToLower(e.Name)

	case *parser.CastExpr:
		return inferColumnName(e.Expr, index)

	case *parser.ParenExpr:
		return inferColumnName(e.Expr, index)
	}

	return generatedColumnName(index)
}

// generatedColumnName produces a positional name for unnamed expressions.
func generatedColumnName(index int) string {
	return fmt.Sprintf("column_%d", index+1)
}
