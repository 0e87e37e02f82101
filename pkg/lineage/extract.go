package lineage

import (
	"github.com/lineal-dev/lineal/pkg/dialect"
	"github.com/lineal-dev/lineal/pkg/parser"
)

// extractor walks a resolved statement and produces lineage.
type extractor struct {
	dialect *dialect.Dialect
	schema  parser.Schema
	strict  bool
	sources map[string]struct{} // physical source tables seen so far
}

// extractStatement dispatches on statement type.
func (e *extractor) extractStatement(stmt parser.Statement, defaultSchema string) (*StatementLineage, error) {
	switch s := stmt.(type) {
	case *parser.SelectStmt:
		return e.extractSelect(s, "")

	case *parser.CreateViewStmt:
		result, err := e.extractSelect(s.Select, qualifyTarget(s.Name, defaultSchema))
		if err != nil {
			return nil, err
		}
		renameColumns(result.Columns, s.Columns)
		return result, nil

	case *parser.CreateTableAsStmt:
		return e.extractSelect(s.Select, qualifyTarget(s.Name, defaultSchema))

	case *parser.InsertStmt:
		return e.extractInsert(s, defaultSchema)

	case *parser.UpdateStmt:
		return e.extractUpdate(s, defaultSchema)
	}

	return nil, &ResolveError{Message: "unsupported statement type"}
}

// extractSelect extracts lineage from a SELECT statement into the given target.
func (e *extractor) extractSelect(stmt *parser.SelectStmt, target string) (*StatementLineage, error) {
	if stmt == nil {
		return nil, &ResolveError{Message: "statement has no query"}
	}

	resolver, err := NewResolver(e.dialect, e.schema)
	if err != nil {
		return nil, err
	}
	resolver.Strict = e.strict
	scope, err := resolver.Resolve(stmt)
	if err != nil {
		return nil, err
	}

	e.collectFromSources(scope, stmt.Body)

	columns, usesStar, err := e.extractBodyLineage(scope, stmt.Body)
	if err != nil {
		return nil, err
	}

	return &StatementLineage{
		Target:         target,
		Sources:        sortedKeys(e.sources),
		Columns:        columns,
		UsesSelectStar: usesStar,
		Confidence:     statementConfidence(columns),
	}, nil
}

// extractInsert handles INSERT INTO ... SELECT and INSERT INTO ... VALUES.
// For SELECT inserts, explicit target columns rename the query outputs
// positionally. VALUES inserts carry no column sources.
func (e *extractor) extractInsert(stmt *parser.InsertStmt, defaultSchema string) (*StatementLineage, error) {
	target := qualifyTarget(stmt.Table, defaultSchema)

	if stmt.Select == nil {
		columns := make([]*ColumnLineage, 0, len(stmt.Columns))
		for _, name := range stmt.Columns {
			columns = append(columns, &ColumnLineage{
				Name:       name,
				Transform:  TransformDirect,
				Confidence: ConfidenceDirect,
			})
		}
		return &StatementLineage{
			Target:     target,
			Columns:    columns,
			Confidence: ConfidenceDirect,
		}, nil
	}

	result, err := e.extractSelect(stmt.Select, target)
	if err != nil {
		return nil, err
	}
	renameColumns(result.Columns, stmt.Columns)
	return result, nil
}

// extractUpdate handles UPDATE ... SET. The target table and any FROM
// tables are both in scope for the SET expressions; only FROM tables and
// resolved source columns become statement sources.
func (e *extractor) extractUpdate(stmt *parser.UpdateStmt, defaultSchema string) (*StatementLineage, error) {
	scope, err := parser.NewScope(e.dialect, e.schema)
	if err != nil {
		return nil, err
	}
	if stmt.Table != nil {
		scope.RegisterTable(stmt.Table)
	}

	if stmt.From != nil {
		resolver, rerr := NewResolver(e.dialect, e.schema)
		if rerr != nil {
			return nil, rerr
		}
		resolver.Strict = e.strict
		if err := resolver.resolveFromClause(scope, stmt.From); err != nil {
			return nil, err
		}
		e.addTableRefSources(scope, stmt.From.Source)
		for _, join := range stmt.From.Joins {
			e.addTableRefSources(scope, join.Right)
		}
	}

	columns := make([]*ColumnLineage, 0, len(stmt.Set))
	for _, set := range stmt.Set {
		col, cerr := e.extractExprLineage(scope, set.Value, set.Column)
		if cerr != nil {
			return nil, cerr
		}
		columns = append(columns, col)
	}

	return &StatementLineage{
		Target:     qualifyTarget(stmt.Table, defaultSchema),
		Sources:    sortedKeys(e.sources),
		Columns:    columns,
		Confidence: statementConfidence(columns),
	}, nil
}

// extractBodyLineage extracts lineage from a select body, merging set
// operation branches positionally.
func (e *extractor) extractBodyLineage(scope *parser.Scope, body *parser.SelectBody) ([]*ColumnLineage, bool, error) {
	if body == nil || body.Left == nil {
		return nil, false, nil
	}

	columns, usesStar, err := e.extractCoreLineage(scope, body.Left)
	if err != nil {
		return nil, false, err
	}

	if body.Right != nil {
		rightCols, rightStar, rerr := e.extractBodyLineage(scope, body.Right)
		if rerr != nil {
			return nil, false, rerr
		}
		columns = mergeSetOpColumns(columns, rightCols)
		usesStar = usesStar || rightStar
	}

	return columns, usesStar, nil
}

// extractCoreLineage extracts lineage for each item in a SELECT list.
func (e *extractor) extractCoreLineage(scope *parser.Scope, core *parser.SelectCore) ([]*ColumnLineage, bool, error) {
	var columns []*ColumnLineage
	usesStar := false

	for i, item := range core.Columns {
		cols, star, err := e.extractSelectItemLineage(scope, item, i)
		if err != nil {
			return nil, false, err
		}
		columns = append(columns, cols...)
		usesStar = usesStar || star
	}

	return columns, usesStar, nil
}

// extractSelectItemLineage extracts lineage for a single SELECT item. Star
// items expand to one lineage entry per known column; when no column
// information is available the star is recorded on the statement instead.
func (e *extractor) extractSelectItemLineage(scope *parser.Scope, item parser.SelectItem, index int) ([]*ColumnLineage, bool, error) {
	switch {
	case item.Star:
		return e.expandStar(scope, ""), true, nil

	case item.TableStar != "":
		return e.expandStar(scope, item.TableStar), true, nil

	case item.Expr != nil:
		name := item.Alias
		if name == "" {
			name = inferColumnName(item.Expr, index)
		}
		col, err := e.extractExprLineage(scope, item.Expr, name)
		if err != nil {
			return nil, false, err
		}
		return []*ColumnLineage{col}, false, nil
	}

	return nil, false, nil
}

// resolution is the outcome of resolving column references: the physical
// sources, whether any reference was ambiguous, and the confidence ceiling
// inherited from inlined CTE and derived-table bodies.
type resolution struct {
	sources    []SourceRef
	ambiguous  bool
	confidence float64
}

// emptyResolution is the resolution of an expression with no column
// references.
func emptyResolution() resolution {
	return resolution{confidence: ConfidenceDirect}
}

// expandStar expands * or table.* into direct lineage per known column.
func (e *extractor) expandStar(scope *parser.Scope, tableName string) []*ColumnLineage {
	refs := scope.ExpandStar(tableName)
	if len(refs) == 0 {
		return nil
	}

	columns := make([]*ColumnLineage, 0, len(refs))
	for _, ref := range refs {
		res, err := e.resolveColumnRef(scope, ref)
		if err != nil {
			continue
		}
		confidence := ConfidenceDirect
		if res.ambiguous {
			confidence = ConfidenceAmbiguous
		}
		if res.confidence < confidence {
			confidence = res.confidence
		}
		columns = append(columns, &ColumnLineage{
			Name:       ref.Column,
			Sources:    res.sources,
			Transform:  TransformDirect,
			Confidence: clamp(confidence),
			Ambiguous:  res.ambiguous,
		})
	}
	return columns
}

// extractExprLineage extracts lineage for one output expression.
func (e *extractor) extractExprLineage(scope *parser.Scope, expr parser.Expr, name string) (*ColumnLineage, error) {
	switch ex := expr.(type) {
	case *parser.ColumnRef:
		res, err := e.resolveColumnRef(scope, ex)
		if err != nil {
			return nil, err
		}
		return e.finishColumn(name, res, TransformDirect, "", expr), nil

	case *parser.Literal:
		return e.finishColumn(name, emptyResolution(), TransformDirect, "", expr), nil

	case *parser.FuncCall:
		res, err := e.collectExprSources(scope, expr)
		if err != nil {
			return nil, err
		}
		transform := TransformCalculation
		switch {
		case ex.Window != nil:
			transform = TransformWindow
		default:
			switch e.dialect.FunctionLineageType(ex.Name) {
			case dialect.LineageAggregate:
				transform = TransformAggregation
			case dialect.LineageWindow:
				transform = TransformWindow
			case dialect.LineageGenerator:
				// Generators fabricate rows; no column sources
				res = emptyResolution()
			}
		}
		return e.finishColumn(name, res, transform, ex.Name, expr), nil

	case *parser.CaseExpr:
		res, err := e.collectExprSources(scope, expr)
		if err != nil {
			return nil, err
		}
		return e.finishColumn(name, res, TransformCase, "", expr), nil

	case *parser.ParenExpr:
		return e.extractExprLineage(scope, ex.Expr, name)

	case *parser.SubqueryExpr:
		return e.extractScalarSubquery(scope, ex, name)

	case *parser.ExistsExpr:
		return e.finishColumn(name, emptyResolution(), TransformCalculation, "", expr), nil
	}

	// Everything else (arithmetic, casts, predicates) is a calculation over
	// whatever columns the expression references.
	res, err := e.collectExprSources(scope, expr)
	if err != nil {
		return nil, err
	}
	return e.finishColumn(name, res, TransformCalculation, "", expr), nil
}

// finishColumn assembles a ColumnLineage with confidence from transform
// type, ambiguity, and the resolution's inherited ceiling.
func (e *extractor) finishColumn(name string, res resolution, transform TransformType, function string, expr parser.Expr) *ColumnLineage {
	confidence := ConfidenceDirect
	if transform != TransformDirect {
		confidence = ConfidenceTransform
	}
	if res.ambiguous {
		confidence = ConfidenceAmbiguous
	}
	if res.confidence < confidence {
		confidence = res.confidence
	}
	return &ColumnLineage{
		Name:       name,
		Sources:    dedupeSources(res.sources),
		Transform:  transform,
		Function:   function,
		Expression: ExprText(expr),
		Confidence: clamp(confidence),
		Ambiguous:  res.ambiguous,
	}
}

// extractScalarSubquery handles a scalar subquery in the SELECT list. Only
// the subquery's FROM clause is resolved; correlated references to the
// outer scope resolve through the parent chain.
func (e *extractor) extractScalarSubquery(scope *parser.Scope, sub *parser.SubqueryExpr, name string) (*ColumnLineage, error) {
	if sub.Select == nil || sub.Select.Body == nil {
		return e.finishColumn(name, emptyResolution(), TransformCalculation, "", sub), nil
	}

	resolver, err := NewResolver(e.dialect, e.schema)
	if err != nil {
		return nil, err
	}
	resolver.Strict = e.strict

	subScope := scope.Child()
	if sub.Select.With != nil {
		if err := resolver.resolveCTEs(subScope, sub.Select.With); err != nil {
			return nil, err
		}
	}
	if err := resolver.resolveSelectBody(subScope, sub.Select.Body); err != nil {
		return nil, err
	}
	e.collectFromSources(subScope, sub.Select.Body)

	core := sub.Select.Body.Left
	if core == nil || len(core.Columns) == 0 || core.Columns[0].Expr == nil {
		return e.finishColumn(name, emptyResolution(), TransformCalculation, "", sub), nil
	}

	// A scalar subquery produces a single value; lineage follows its first
	// output expression.
	inner, err := e.extractExprLineage(subScope, core.Columns[0].Expr, name)
	if err != nil {
		return nil, err
	}
	inner.Name = name
	if inner.Transform == TransformDirect {
		inner.Transform = TransformCalculation
		if inner.Confidence > ConfidenceTransform {
			inner.Confidence = ConfidenceTransform
		}
	}
	inner.Expression = ExprText(sub)
	return inner, nil
}

// collectExprSources resolves every column reference in an expression.
func (e *extractor) collectExprSources(scope *parser.Scope, expr parser.Expr) (resolution, error) {
	cr := NewColumnResolver(scope)
	refs := cr.CollectColumns(expr)

	res := emptyResolution()
	for _, ref := range refs {
		resolved, err := e.resolveColumnRef(scope, ref)
		if err != nil {
			return resolution{}, err
		}
		res.sources = append(res.sources, resolved.sources...)
		res.ambiguous = res.ambiguous || resolved.ambiguous
		if resolved.confidence < res.confidence {
			res.confidence = resolved.confidence
		}
	}

	res.sources = dedupeSources(res.sources)
	return res, nil
}

// resolveColumnRef resolves a single column reference against scope.
//
// CTEs and derived tables are inlined: the reference maps through the
// body's per-column provenance to the physical column behind it, so a
// renamed output resolves to the column that actually feeds it. A
// reference matching more than one table is ambiguous; in strict mode
// that is an error, otherwise every candidate is recorded.
func (e *extractor) resolveColumnRef(scope *parser.Scope, ref *parser.ColumnRef) (resolution, error) {
	candidates := scope.ResolveCandidates(ref)

	if len(candidates) == 0 {
		// Unresolvable qualified references keep the written qualifier;
		// unresolvable bare references carry no table.
		src := SourceRef{Table: ref.Table, Column: ref.Column}
		if src.Table != "" {
			e.addSource(src.Table)
		}
		return resolution{sources: []SourceRef{src}, confidence: ConfidenceDirect}, nil
	}

	if len(candidates) > 1 && e.strict {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.EffectiveName()
		}
		return resolution{}, &AmbiguousReferenceError{Column: ref.Column, Candidates: names}
	}

	res := emptyResolution()
	res.ambiguous = len(candidates) > 1
	for _, entry := range candidates {
		refs, ceiling, entryAmbiguous := e.entrySources(scope, entry, ref.Column)
		res.sources = append(res.sources, refs...)
		res.ambiguous = res.ambiguous || entryAmbiguous
		if ceiling < res.confidence {
			res.confidence = ceiling
		}
	}
	return res, nil
}

// entrySources maps a resolved scope entry to physical source references.
// For CTEs and derived tables the entry's per-column provenance is
// substituted when recorded; the returned ceiling and ambiguity carry the
// inner body's resolution quality. Entries without provenance fall back to
// the underlying-source bag.
func (e *extractor) entrySources(scope *parser.Scope, entry *parser.ScopeEntry, column string) ([]SourceRef, float64, bool) {
	switch entry.Type {
	case parser.ScopeTable:
		table := entry.SourceTable
		if table == "" {
			table = entry.Name
		}
		e.addSource(table)
		return []SourceRef{{Table: table, Column: column}}, ConfidenceDirect, false

	case parser.ScopeCTE, parser.ScopeDerived:
		if origins, ok := scope.OriginsFor(entry, column); ok {
			refs := make([]SourceRef, 0, len(origins))
			ceiling := ConfidenceDirect
			ambiguous := false
			for _, origin := range origins {
				e.addSource(origin.Table)
				refs = append(refs, SourceRef{Table: origin.Table, Column: origin.Column})
				if origin.Confidence < ceiling {
					ceiling = origin.Confidence
				}
				ambiguous = ambiguous || origin.Ambiguous
			}
			return refs, ceiling, ambiguous
		}
		if len(entry.UnderlyingSources) == 0 {
			return []SourceRef{{Table: entry.Name, Column: column}}, ConfidenceDirect, false
		}
		refs := make([]SourceRef, 0, len(entry.UnderlyingSources))
		for _, underlying := range entry.UnderlyingSources {
			e.addSource(underlying)
			refs = append(refs, SourceRef{Table: underlying, Column: column})
		}
		return refs, ConfidenceDirect, false
	}

	return nil, ConfidenceDirect, false
}

// collectFromSources records the physical tables referenced by every FROM
// clause in a select body. CTE and derived table references contribute
// their underlying physical tables, never the intermediate name.
func (e *extractor) collectFromSources(scope *parser.Scope, body *parser.SelectBody) {
	for b := body; b != nil; b = b.Right {
		if b.Left == nil || b.Left.From == nil {
			continue
		}
		from := b.Left.From
		e.addTableRefSources(scope, from.Source)
		for _, join := range from.Joins {
			e.addTableRefSources(scope, join.Right)
		}
	}
}

// addTableRefSources records the physical sources behind one table reference.
func (e *extractor) addTableRefSources(scope *parser.Scope, ref parser.TableRef) {
	switch t := ref.(type) {
	case *parser.TableName:
		if t.Schema == "" {
			if cte, ok := scope.LookupCTE(t.Name); ok {
				for _, underlying := range cte.UnderlyingSources {
					e.addSource(underlying)
				}
				return
			}
		}
		e.addSource(qualifyTarget(t, ""))

	case *parser.DerivedTable:
		if entry, ok := scope.Lookup(t.Alias); ok {
			for _, underlying := range entry.UnderlyingSources {
				e.addSource(underlying)
			}
		}

	case *parser.LateralTable:
		if t.Select != nil {
			e.collectFromSources(scope, t.Select.Body)
		}
	}
}

func (e *extractor) addSource(table string) {
	if table == "" {
		return
	}
	e.sources[table] = struct{}{}
}

// renameColumns applies an explicit target column list positionally.
func renameColumns(columns []*ColumnLineage, names []string) {
	for i, name := range names {
		if i >= len(columns) {
			break
		}
		columns[i].Name = name
	}
}

// mergeSetOpColumns merges set operation branches positionally. Columns
// present in both branches union their sources; differing transforms
// demote to calculation.
func mergeSetOpColumns(left, right []*ColumnLineage) []*ColumnLineage {
	if len(left) == 0 {
		return right
	}
	for i, rcol := range right {
		if i >= len(left) {
			left = append(left, rcol)
			continue
		}
		lcol := left[i]
		lcol.Sources = dedupeSources(append(lcol.Sources, rcol.Sources...))
		if lcol.Transform != rcol.Transform {
			lcol.Transform = TransformCalculation
		}
		if rcol.Confidence < lcol.Confidence {
			lcol.Confidence = rcol.Confidence
		}
		lcol.Ambiguous = lcol.Ambiguous || rcol.Ambiguous
	}
	return left
}

// dedupeSources removes duplicate table.column pairs, preserving order.
func dedupeSources(sources []SourceRef) []SourceRef {
	if len(sources) < 2 {
		return sources
	}
	seen := make(map[SourceRef]struct{}, len(sources))
	out := sources[:0]
	for _, src := range sources {
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out
}

// statementConfidence is the minimum column confidence, or full confidence
// for statements without column lineage.
func statementConfidence(columns []*ColumnLineage) float64 {
	confidence := ConfidenceDirect
	for _, col := range columns {
		if col.Confidence < confidence {
			confidence = col.Confidence
		}
	}
	return clamp(confidence)
}
