package lineage

import (
	"sort"

	"github.com/lineal-dev/lineal/pkg/parser"
)

// ScanTables extracts table names from SQL by lexical scan alone, without
// parsing. Used as a table-level fallback when a statement cannot be
// parsed: the result carries no column information and no confidence, but
// still yields statement-level dependencies.
//
// Names following FROM, JOIN, INTO, and UPDATE are collected; a WITH
// clause's CTE names are excluded from the result.
func ScanTables(sqlStr string) []string {
	lexer := parser.NewLexer(sqlStr)

	var tokens []parser.Token
	for {
		tok := lexer.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == parser.TOKEN_EOF {
			break
		}
	}

	cteNames := make(map[string]struct{})
	seen := make(map[string]struct{})
	var tables []string

	for i := 0; i < len(tokens); i++ {
		switch tokens[i].Type {
		case parser.TOKEN_WITH:
			// CTE names sit at paren depth zero before AS; the prelude ends
			// at the statement keyword, so SELECT-list aliases never match
			depth := 0
			for j := i + 1; j+1 < len(tokens); j++ {
				switch tokens[j].Type {
				case parser.TOKEN_LPAREN:
					depth++
				case parser.TOKEN_RPAREN:
					depth--
				case parser.TOKEN_IDENT:
					if depth == 0 && tokens[j+1].Type == parser.TOKEN_AS {
						cteNames[tokens[j].Literal] = struct{}{}
					}
				}
				if depth == 0 && isScanBoundary(tokens[j].Type) {
					break
				}
			}

		case parser.TOKEN_FROM, parser.TOKEN_JOIN, parser.TOKEN_INTO, parser.TOKEN_UPDATE:
			name, next := scanQualifiedName(tokens, i+1)
			if name == "" {
				continue
			}
			i = next - 1
			if _, isCTE := cteNames[name]; isCTE {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			tables = append(tables, name)
		}
	}

	sort.Strings(tables)
	return tables
}

// scanQualifiedName reads ident(.ident)* starting at pos. Returns the
// joined name and the position after it; empty when pos is not a name
// (e.g. a subquery paren).
func scanQualifiedName(tokens []parser.Token, pos int) (string, int) {
	if pos >= len(tokens) || tokens[pos].Type != parser.TOKEN_IDENT {
		return "", pos
	}
	name := tokens[pos].Literal
	pos++
	for pos+1 < len(tokens) && tokens[pos].Type == parser.TOKEN_DOT && tokens[pos+1].Type == parser.TOKEN_IDENT {
		name += "." + tokens[pos+1].Literal
		pos += 2
	}
	return name, pos
}

// isScanBoundary reports tokens that end the WITH prelude: the main
// statement keyword or the end of the statement.
func isScanBoundary(t parser.TokenType) bool {
	switch t {
	case parser.TOKEN_EOF, parser.TOKEN_SEMICOLON,
		parser.TOKEN_SELECT, parser.TOKEN_INSERT, parser.TOKEN_UPDATE:
		return true
	}
	return false
}
