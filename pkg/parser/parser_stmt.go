package parser

// Statement parsing: top-level dispatch, WITH clause, CTEs, SELECT body,
// SELECT list, ORDER BY, and the DDL/DML forms that carry lineage.
//
// Grammar:
//
//	statement     → select_stmt | create_view | create_table_as
//	              | insert_stmt | update_stmt
//	create_view   → CREATE [OR REPLACE] [MATERIALIZED] VIEW [IF NOT EXISTS]
//	                table_name ["(" ident_list ")"] AS select_stmt
//	create_table_as → CREATE [TEMPORARY] TABLE [IF NOT EXISTS] table_name
//	                AS select_stmt
//	insert_stmt   → INSERT INTO table_name ["(" ident_list ")"]
//	                (select_stmt | VALUES values_list)
//	update_stmt   → UPDATE table_name SET set_list [FROM from_clause]
//	                [WHERE expr]
//	select_stmt   → [WITH cte_list] select_body
//	cte_list      → cte ("," cte)*
//	cte           → identifier ["(" ident_list ")"] AS "(" select_stmt ")"
//	select_body   → select_core [(UNION|INTERSECT|EXCEPT) [ALL|DISTINCT] select_body]
//	select_core   → SELECT [DISTINCT|ALL] select_list
//	                [FROM from_clause] [WHERE expr] [GROUP BY expr_list]
//	                [HAVING expr] [QUALIFY expr] [ORDER BY order_list]
//	                [LIMIT expr] [OFFSET expr]
//	select_list   → select_item ("," select_item)*
//	select_item   → "*" | table "." "*" | expr [AS identifier]
//	order_list    → order_item ("," order_item)*
//	order_item    → expr [ASC|DESC] [NULLS FIRST|LAST]

// parseStatement parses a complete SQL statement.
func (p *Parser) parseStatement() Statement {
	var stmt Statement

	switch p.token.Type {
	case TOKEN_CREATE:
		stmt = p.parseCreate()
	case TOKEN_INSERT:
		stmt = p.parseInsert()
	case TOKEN_UPDATE:
		stmt = p.parseUpdate()
	case TOKEN_WITH, TOKEN_SELECT, TOKEN_LPAREN:
		stmt = p.parseSelectStmt()
	default:
		p.addError("expected SELECT, CREATE, INSERT, or UPDATE")
		return nil
	}

	p.match(TOKEN_SEMICOLON)
	return stmt
}

// parseSelectStmt parses a SELECT statement with optional WITH clause.
func (p *Parser) parseSelectStmt() *SelectStmt {
	stmt := &SelectStmt{}

	// Optional WITH clause
	if p.check(TOKEN_WITH) {
		stmt.With = p.parseWithClause()
	}

	// Required SELECT body
	stmt.Body = p.parseSelectBody()

	return stmt
}

// parseCreate parses CREATE VIEW / CREATE MATERIALIZED VIEW / CREATE TABLE AS.
func (p *Parser) parseCreate() Statement {
	p.expect(TOKEN_CREATE)

	orReplace := false
	if p.check(TOKEN_OR) && p.checkPeek(TOKEN_REPLACE) {
		p.nextToken()
		p.nextToken()
		orReplace = true
	}

	temporary := p.match(TOKEN_TEMPORARY)
	materialized := p.match(TOKEN_MATERIALIZED)

	switch p.token.Type {
	case TOKEN_VIEW:
		p.nextToken()
		return p.parseCreateViewRest(orReplace, materialized)
	case TOKEN_TABLE:
		p.nextToken()
		return p.parseCreateTableAsRest(temporary)
	default:
		p.addError("expected VIEW or TABLE after CREATE")
		return nil
	}
}

// parseCreateViewRest parses the remainder of a CREATE VIEW statement.
func (p *Parser) parseCreateViewRest(orReplace, materialized bool) *CreateViewStmt {
	stmt := &CreateViewStmt{
		OrReplace:    orReplace,
		Materialized: materialized,
	}

	stmt.IfNotExists = p.parseIfNotExists()
	stmt.Name = p.parseTableName()

	// Optional explicit column list
	if p.check(TOKEN_LPAREN) {
		stmt.Columns = p.parseIdentList()
	}

	p.expect(TOKEN_AS)
	stmt.Select = p.parseSelectStmt()

	return stmt
}

// parseCreateTableAsRest parses the remainder of a CREATE TABLE AS statement.
func (p *Parser) parseCreateTableAsRest(temporary bool) *CreateTableAsStmt {
	stmt := &CreateTableAsStmt{Temporary: temporary}

	stmt.IfNotExists = p.parseIfNotExists()
	stmt.Name = p.parseTableName()

	p.expect(TOKEN_AS)
	stmt.Select = p.parseSelectStmt()

	return stmt
}

// parseIfNotExists consumes an optional IF NOT EXISTS.
func (p *Parser) parseIfNotExists() bool {
	if p.check(TOKEN_IF) && p.checkPeek(TOKEN_NOT) && p.checkPeek2(TOKEN_EXISTS) {
		p.nextToken()
		p.nextToken()
		p.nextToken()
		return true
	}
	return false
}

// parseInsert parses an INSERT INTO ... SELECT / VALUES statement.
func (p *Parser) parseInsert() *InsertStmt {
	p.expect(TOKEN_INSERT)
	p.expect(TOKEN_INTO)

	stmt := &InsertStmt{}
	stmt.Table = p.parseTableName()

	// Optional explicit column list
	if p.check(TOKEN_LPAREN) {
		stmt.Columns = p.parseIdentList()
	}

	switch p.token.Type {
	case TOKEN_VALUES:
		p.nextToken()
		for {
			p.expect(TOKEN_LPAREN)
			row := p.parseExpressionList()
			p.expect(TOKEN_RPAREN)
			stmt.Values = append(stmt.Values, row)
			if !p.match(TOKEN_COMMA) {
				break
			}
		}
	case TOKEN_SELECT, TOKEN_WITH, TOKEN_LPAREN:
		stmt.Select = p.parseSelectStmt()
	default:
		p.addError("expected SELECT or VALUES in INSERT")
	}

	return stmt
}

// parseUpdate parses an UPDATE ... SET ... [FROM ...] [WHERE ...] statement.
func (p *Parser) parseUpdate() *UpdateStmt {
	p.expect(TOKEN_UPDATE)

	stmt := &UpdateStmt{}
	stmt.Table = p.parseTableName()

	p.expect(TOKEN_SET)
	for {
		if !p.check(TOKEN_IDENT) {
			p.addError("expected column name in SET clause")
			break
		}
		clause := SetClause{Column: p.token.Literal}
		p.nextToken()
		p.expect(TOKEN_EQ)
		clause.Value = p.parseExpression()
		stmt.Set = append(stmt.Set, clause)

		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	if p.match(TOKEN_FROM) {
		stmt.From = p.parseFromClause()
	}

	if p.match(TOKEN_WHERE) {
		stmt.Where = p.parseExpression()
	}

	return stmt
}

// parseIdentList parses a parenthesized identifier list.
func (p *Parser) parseIdentList() []string {
	p.expect(TOKEN_LPAREN)
	var names []string
	for {
		if !p.check(TOKEN_IDENT) {
			p.addError("expected identifier")
			break
		}
		names = append(names, p.token.Literal)
		p.nextToken()
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	p.expect(TOKEN_RPAREN)
	return names
}

// parseWithClause parses a WITH clause with CTEs.
func (p *Parser) parseWithClause() *WithClause {
	p.expect(TOKEN_WITH)
	with := &WithClause{}

	// Optional RECURSIVE
	if p.match(TOKEN_RECURSIVE) {
		with.Recursive = true
	}

	// Parse CTE list
	for {
		cte := p.parseCTE()
		with.CTEs = append(with.CTEs, cte)

		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	return with
}

// parseCTE parses a single CTE.
func (p *Parser) parseCTE() *CTE {
	cte := &CTE{}

	// CTE name
	if !p.check(TOKEN_IDENT) {
		p.addError("expected CTE name")
		return cte
	}
	cte.Name = p.token.Literal
	p.nextToken()

	// Optional column alias list
	if p.check(TOKEN_LPAREN) {
		cte.Columns = p.parseIdentList()
	}

	// AS
	p.expect(TOKEN_AS)

	// ( SelectStatement )
	p.expect(TOKEN_LPAREN)
	cte.Select = p.parseSelectStmt()
	p.expect(TOKEN_RPAREN)

	return cte
}

// parseSelectBody parses a SELECT body with possible set operations.
func (p *Parser) parseSelectBody() *SelectBody {
	body := &SelectBody{}
	body.Left = p.parseSelectCore()

	// Check for set operations
	if p.check(TOKEN_UNION) || p.check(TOKEN_INTERSECT) || p.check(TOKEN_EXCEPT) {
		switch p.token.Type {
		case TOKEN_UNION:
			p.nextToken()
			if p.match(TOKEN_ALL) {
				body.Op = SetOpUnionAll
				body.All = true
			} else {
				body.Op = SetOpUnion
				p.match(TOKEN_DISTINCT) // optional
			}
		case TOKEN_INTERSECT:
			p.nextToken()
			body.Op = SetOpIntersect
			p.match(TOKEN_ALL) // optional
		case TOKEN_EXCEPT:
			p.nextToken()
			body.Op = SetOpExcept
			p.match(TOKEN_ALL) // optional
		}

		// Parse the right side (recursively for chained operations)
		body.Right = p.parseSelectBody()
	}

	return body
}

// parseSelectCore parses a single SELECT clause.
func (p *Parser) parseSelectCore() *SelectCore {
	p.expect(TOKEN_SELECT)
	core := &SelectCore{}

	// DISTINCT / ALL
	if p.match(TOKEN_DISTINCT) {
		core.Distinct = true
	} else {
		p.match(TOKEN_ALL) // optional, consume if present
	}

	// SELECT list
	core.Columns = p.parseSelectList()

	// FROM clause
	if p.match(TOKEN_FROM) {
		core.From = p.parseFromClause()
	}

	// WHERE
	if p.match(TOKEN_WHERE) {
		core.Where = p.parseExpression()
	}

	// GROUP BY
	if p.check(TOKEN_GROUP) && p.checkPeek(TOKEN_BY) {
		p.nextToken()
		p.nextToken()
		core.GroupBy = p.parseExpressionList()
	}

	// HAVING
	if p.match(TOKEN_HAVING) {
		core.Having = p.parseExpression()
	}

	// QUALIFY
	if p.match(TOKEN_QUALIFY) {
		core.Qualify = p.parseExpression()
	}

	// ORDER BY
	if p.check(TOKEN_ORDER) && p.checkPeek(TOKEN_BY) {
		p.nextToken()
		p.nextToken()
		core.OrderBy = p.parseOrderByList()
	}

	// LIMIT / OFFSET
	if p.match(TOKEN_LIMIT) {
		core.Limit = p.parseExpression()
	}
	if p.match(TOKEN_OFFSET) {
		core.Offset = p.parseExpression()
	}

	return core
}

// parseSelectList parses the list of SELECT items.
func (p *Parser) parseSelectList() []SelectItem {
	var items []SelectItem

	for {
		item := p.parseSelectItem()
		items = append(items, item)

		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	return items
}

// parseSelectItem parses a single SELECT item.
func (p *Parser) parseSelectItem() SelectItem {
	item := SelectItem{}

	// Check for * or table.*
	if p.check(TOKEN_STAR) {
		item.Star = true
		p.nextToken()
		return item
	}

	// Check for table.* pattern using 3-token lookahead (no rollback needed)
	if p.check(TOKEN_IDENT) && p.checkPeek(TOKEN_DOT) && p.checkPeek2(TOKEN_STAR) {
		tableName := p.token.Literal
		p.nextToken() // consume identifier
		p.nextToken() // consume DOT
		p.nextToken() // consume STAR
		item.TableStar = tableName
		return item
	}

	// Regular expression
	item.Expr = p.parseExpression()

	// Optional alias
	if p.match(TOKEN_AS) {
		if p.check(TOKEN_IDENT) {
			item.Alias = p.token.Literal
			p.nextToken()
		} else {
			p.addError("expected alias after AS")
		}
	} else if p.check(TOKEN_IDENT) && !p.isKeyword(p.token) {
		// Alias without AS
		item.Alias = p.token.Literal
		p.nextToken()
	}

	return item
}

// parseOrderByList parses a list of ORDER BY items.
func (p *Parser) parseOrderByList() []OrderByItem {
	var items []OrderByItem

	for {
		item := p.parseOrderByItem()
		items = append(items, item)

		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	return items
}

// parseOrderByItem parses a single ORDER BY item.
func (p *Parser) parseOrderByItem() OrderByItem {
	item := OrderByItem{}
	item.Expr = p.parseExpression()

	// ASC / DESC
	if p.match(TOKEN_ASC) {
		item.Desc = false
	} else if p.match(TOKEN_DESC) {
		item.Desc = true
	}

	// NULLS FIRST / LAST
	if p.match(TOKEN_NULLS) {
		if p.match(TOKEN_FIRST) {
			b := true
			item.NullsFirst = &b
		} else if p.match(TOKEN_LAST) {
			b := false
			item.NullsFirst = &b
		}
	}

	return item
}

// parseExpressionList parses a comma-separated list of expressions.
func (p *Parser) parseExpressionList() []Expr {
	var exprs []Expr

	for {
		expr := p.parseExpression()
		exprs = append(exprs, expr)

		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	return exprs
}
