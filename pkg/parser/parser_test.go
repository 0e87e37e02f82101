package parser

import (
	"errors"
	"testing"
)

func parseSelect(t *testing.T, sql string) *SelectStmt {
	t.Helper()
	stmt, err := Parse(sql)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", sql, err)
	}
	sel, ok := stmt.(*SelectStmt)
	if !ok {
		t.Fatalf("Parse(%q) returned %T, want *SelectStmt", sql, stmt)
	}
	return sel
}

func TestParse_SimpleSelect(t *testing.T) {
	sel := parseSelect(t, `SELECT id, name FROM users`)

	core := sel.Body.Left
	if core == nil {
		t.Fatal("missing select core")
	}
	if len(core.Columns) != 2 {
		t.Fatalf("expected 2 select items, got %d", len(core.Columns))
	}

	ref, ok := core.Columns[0].Expr.(*ColumnRef)
	if !ok || ref.Column != "id" {
		t.Errorf("first item should be column ref 'id', got %v", core.Columns[0].Expr)
	}

	table, ok := core.From.Source.(*TableName)
	if !ok || table.Name != "users" {
		t.Errorf("expected FROM users, got %v", core.From.Source)
	}
}

func TestParse_AliasesAndQualifiers(t *testing.T) {
	sel := parseSelect(t, `SELECT u.id AS user_id FROM analytics.users u`)

	core := sel.Body.Left
	item := core.Columns[0]
	if item.Alias != "user_id" {
		t.Errorf("alias = %q, want user_id", item.Alias)
	}
	ref := item.Expr.(*ColumnRef)
	if ref.Table != "u" || ref.Column != "id" {
		t.Errorf("ref = %v, want u.id", ref)
	}

	table := core.From.Source.(*TableName)
	if table.Schema != "analytics" || table.Name != "users" || table.Alias != "u" {
		t.Errorf("table = %+v, want analytics.users u", table)
	}
}

func TestParse_Joins(t *testing.T) {
	sel := parseSelect(t, `SELECT a.x FROM a LEFT JOIN b ON a.id = b.id JOIN c USING (id)`)

	from := sel.Body.Left.From
	if len(from.Joins) != 2 {
		t.Fatalf("expected 2 joins, got %d", len(from.Joins))
	}
	if from.Joins[0].Condition == nil {
		t.Error("first join should have an ON condition")
	}
	if len(from.Joins[1].Using) != 1 || from.Joins[1].Using[0] != "id" {
		t.Errorf("second join USING = %v, want [id]", from.Joins[1].Using)
	}
}

func TestParse_WithClause(t *testing.T) {
	sel := parseSelect(t, `WITH recent(order_id) AS (SELECT id FROM orders) SELECT order_id FROM recent`)

	if sel.With == nil || len(sel.With.CTEs) != 1 {
		t.Fatal("expected one CTE")
	}
	cte := sel.With.CTEs[0]
	if cte.Name != "recent" {
		t.Errorf("CTE name = %q, want recent", cte.Name)
	}
	if len(cte.Columns) != 1 || cte.Columns[0] != "order_id" {
		t.Errorf("CTE columns = %v, want [order_id]", cte.Columns)
	}
}

func TestParse_SetOperations(t *testing.T) {
	sel := parseSelect(t, `SELECT id FROM a UNION ALL SELECT id FROM b EXCEPT SELECT id FROM c`)

	body := sel.Body
	if body.Right == nil {
		t.Fatal("expected set operation chain")
	}
	if body.Op != SetOpUnionAll || !body.All {
		t.Errorf("first op = %q all=%v, want UNION ALL", body.Op, body.All)
	}
	if body.Right.Op != SetOpExcept {
		t.Errorf("second op = %q, want EXCEPT", body.Right.Op)
	}
}

func TestParse_DerivedTable(t *testing.T) {
	sel := parseSelect(t, `SELECT d.n FROM (SELECT count(*) AS n FROM t) d`)

	derived, ok := sel.Body.Left.From.Source.(*DerivedTable)
	if !ok {
		t.Fatalf("expected derived table, got %T", sel.Body.Left.From.Source)
	}
	if derived.Alias != "d" {
		t.Errorf("alias = %q, want d", derived.Alias)
	}
}

func TestParse_WindowFunction(t *testing.T) {
	sel := parseSelect(t, `SELECT rank() OVER (PARTITION BY dept ORDER BY salary DESC) FROM employees`)

	fn, ok := sel.Body.Left.Columns[0].Expr.(*FuncCall)
	if !ok {
		t.Fatalf("expected function call, got %T", sel.Body.Left.Columns[0].Expr)
	}
	if fn.Window == nil {
		t.Fatal("expected window spec")
	}
	if len(fn.Window.PartitionBy) != 1 {
		t.Errorf("expected 1 partition expr, got %d", len(fn.Window.PartitionBy))
	}
}

func TestParse_CaseExpression(t *testing.T) {
	sel := parseSelect(t, `SELECT CASE WHEN a > 1 THEN 'hi' WHEN a > 0 THEN 'mid' ELSE 'lo' END FROM t`)

	caseExpr, ok := sel.Body.Left.Columns[0].Expr.(*CaseExpr)
	if !ok {
		t.Fatalf("expected case expr, got %T", sel.Body.Left.Columns[0].Expr)
	}
	if len(caseExpr.Whens) != 2 {
		t.Errorf("expected 2 WHEN clauses, got %d", len(caseExpr.Whens))
	}
	if caseExpr.Else == nil {
		t.Error("expected ELSE branch")
	}
}

func TestParse_CreateView(t *testing.T) {
	stmt, err := Parse(`CREATE OR REPLACE VIEW v (a, b) AS SELECT x, y FROM t`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	view, ok := stmt.(*CreateViewStmt)
	if !ok {
		t.Fatalf("expected CreateViewStmt, got %T", stmt)
	}
	if !view.OrReplace {
		t.Error("expected OR REPLACE")
	}
	if view.Name.Name != "v" {
		t.Errorf("view name = %q, want v", view.Name.Name)
	}
	if len(view.Columns) != 2 {
		t.Errorf("view columns = %v, want [a b]", view.Columns)
	}
}

func TestParse_CreateTableAs(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE rpt.daily AS SELECT day, sum(v) FROM events GROUP BY day`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	ctas, ok := stmt.(*CreateTableAsStmt)
	if !ok {
		t.Fatalf("expected CreateTableAsStmt, got %T", stmt)
	}
	if ctas.Name.Schema != "rpt" || ctas.Name.Name != "daily" {
		t.Errorf("target = %+v, want rpt.daily", ctas.Name)
	}
}

func TestParse_InsertSelect(t *testing.T) {
	stmt, err := Parse(`INSERT INTO archive (id) SELECT id FROM live`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	ins, ok := stmt.(*InsertStmt)
	if !ok {
		t.Fatalf("expected InsertStmt, got %T", stmt)
	}
	if ins.Select == nil {
		t.Error("expected SELECT body")
	}
	if len(ins.Columns) != 1 || ins.Columns[0] != "id" {
		t.Errorf("columns = %v, want [id]", ins.Columns)
	}
}

func TestParse_Update(t *testing.T) {
	stmt, err := Parse(`UPDATE t SET a = b + 1 FROM s WHERE t.id = s.id`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	upd, ok := stmt.(*UpdateStmt)
	if !ok {
		t.Fatalf("expected UpdateStmt, got %T", stmt)
	}
	if len(upd.Set) != 1 || upd.Set[0].Column != "a" {
		t.Errorf("set = %v, want one clause for a", upd.Set)
	}
	if upd.From == nil {
		t.Error("expected FROM clause")
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []string{
		``,
		`SELEKT 1`,
		`SELECT FROM`,
		`CREATE VIEW`,
	}
	for _, sql := range cases {
		_, err := Parse(sql)
		if err == nil {
			t.Errorf("Parse(%q) should fail", sql)
			continue
		}
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("Parse(%q) returned %T, want *ParseError", sql, err)
		}
	}
}

func TestLexer_Tokens(t *testing.T) {
	lexer := NewLexer(`SELECT a.b, 'it''s', 1.5 FROM t -- comment`)

	var types []TokenType
	for {
		tok := lexer.NextToken()
		if tok.Type == TOKEN_EOF {
			break
		}
		types = append(types, tok.Type)
	}

	want := []TokenType{
		TOKEN_SELECT, TOKEN_IDENT, TOKEN_DOT, TOKEN_IDENT, TOKEN_COMMA,
		TOKEN_STRING, TOKEN_COMMA, TOKEN_NUMBER, TOKEN_FROM, TOKEN_IDENT,
	}
	if len(types) != len(want) {
		t.Fatalf("token count = %d, want %d (%v)", len(types), len(want), types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("token %d = %v, want %v", i, types[i], want[i])
		}
	}
}

func TestLexer_QuotedIdentifiers(t *testing.T) {
	lexer := NewLexer(`"Weird Name"`)
	tok := lexer.NextToken()
	if tok.Type != TOKEN_IDENT {
		t.Fatalf("type = %v, want IDENT", tok.Type)
	}
	if tok.Literal != "Weird Name" {
		t.Errorf("literal = %q, want %q", tok.Literal, "Weird Name")
	}
}
