package lineage

import (
	"strings"

	"github.com/lineal-dev/lineal/pkg/parser"
)

// ExprText renders an expression back to compact SQL text. Used for the
// Expression field of column lineage so consumers can display the
// transformation without the original statement.
func ExprText(expr parser.Expr) string {
	var b strings.Builder
	writeExpr(&b, expr)
	return b.String()
}

func writeExpr(b *strings.Builder, expr parser.Expr) {
	switch e := expr.(type) {
	case nil:
		return

	case *parser.ColumnRef:
		if e.Table != "" {
			b.WriteString(e.Table)
			b.WriteByte('.')
		}
		b.WriteString(e.Column)

	case *parser.Literal:
		switch e.Type {
		case parser.LiteralString:
			b.WriteByte('\'')
			b.WriteString(strings.ReplaceAll(e.Value, "'", "''"))
			b.WriteByte('\'')
		case parser.LiteralNull:
			b.WriteString("NULL")
		default:
			b.WriteString(e.Value)
		}

	case *parser.StarExpr:
		if e.Table != "" {
			b.WriteString(e.Table)
			b.WriteByte('.')
		}
		b.WriteByte('*')

	case *parser.BinaryExpr:
		writeExpr(b, e.Left)
		b.WriteByte(' ')
		b.WriteString(e.Op.String())
		b.WriteByte(' ')
		writeExpr(b, e.Right)

	case *parser.UnaryExpr:
		b.WriteString(e.Op.String())
		if e.Op == parser.TOKEN_NOT {
			b.WriteByte(' ')
		}
		writeExpr(b, e.Expr)

	case *parser.FuncCall:
		writeFuncCall(b, e)

	case *parser.CaseExpr:
		writeCaseExpr(b, e)

	case *parser.CastExpr:
		b.WriteString("CAST(")
		writeExpr(b, e.Expr)
		b.WriteString(" AS ")
		b.WriteString(e.TypeName)
		b.WriteByte(')')

	case *parser.InExpr:
		writeExpr(b, e.Expr)
		if e.Not {
			b.WriteString(" NOT")
		}
		b.WriteString(" IN (")
		if e.Query != nil {
			b.WriteString("...")
		} else {
			for i, v := range e.Values {
				if i > 0 {
					b.WriteString(", ")
				}
				writeExpr(b, v)
			}
		}
		b.WriteByte(')')

	case *parser.BetweenExpr:
		writeExpr(b, e.Expr)
		if e.Not {
			b.WriteString(" NOT")
		}
		b.WriteString(" BETWEEN ")
		writeExpr(b, e.Low)
		b.WriteString(" AND ")
		writeExpr(b, e.High)

	case *parser.IsNullExpr:
		writeExpr(b, e.Expr)
		if e.Not {
			b.WriteString(" IS NOT NULL")
		} else {
			b.WriteString(" IS NULL")
		}

	case *parser.IsBoolExpr:
		writeExpr(b, e.Expr)
		b.WriteString(" IS ")
		if e.Not {
			b.WriteString("NOT ")
		}
		if e.Value {
			b.WriteString("TRUE")
		} else {
			b.WriteString("FALSE")
		}

	case *parser.LikeExpr:
		writeExpr(b, e.Expr)
		if e.Not {
			b.WriteString(" NOT")
		}
		b.WriteByte(' ')
		b.WriteString(e.Op.String())
		b.WriteByte(' ')
		writeExpr(b, e.Pattern)

	case *parser.ParenExpr:
		b.WriteByte('(')
		writeExpr(b, e.Expr)
		b.WriteByte(')')

	case *parser.SubqueryExpr:
		b.WriteString("(SELECT ...)")

	case *parser.ExistsExpr:
		if e.Not {
			b.WriteString("NOT ")
		}
		b.WriteString("EXISTS (SELECT ...)")
	}
}

func writeFuncCall(b *strings.Builder, e *parser.FuncCall) {
	b.WriteString(strings.ToUpper(e.Name))
	b.WriteByte('(')
	if e.Distinct {
		b.WriteString("DISTINCT ")
	}
	if e.Star {
		b.WriteByte('*')
	}
	for i, arg := range e.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		writeExpr(b, arg)
	}
	b.WriteByte(')')

	if e.Filter != nil {
		b.WriteString(" FILTER (WHERE ")
		writeExpr(b, e.Filter)
		b.WriteByte(')')
	}

	if e.Window != nil {
		b.WriteString(" OVER (")
		if len(e.Window.PartitionBy) > 0 {
			b.WriteString("PARTITION BY ")
			for i, p := range e.Window.PartitionBy {
				if i > 0 {
					b.WriteString(", ")
				}
				writeExpr(b, p)
			}
		}
		if len(e.Window.OrderBy) > 0 {
			if len(e.Window.PartitionBy) > 0 {
				b.WriteByte(' ')
			}
			b.WriteString("ORDER BY ")
			for i, o := range e.Window.OrderBy {
				if i > 0 {
					b.WriteString(", ")
				}
				writeExpr(b, o.Expr)
				if o.Desc {
					b.WriteString(" DESC")
				}
			}
		}
		b.WriteByte(')')
	}
}

func writeCaseExpr(b *strings.Builder, e *parser.CaseExpr) {
	b.WriteString("CASE")
	if e.Operand != nil {
		b.WriteByte(' ')
		writeExpr(b, e.Operand)
	}
	for _, w := range e.Whens {
		b.WriteString(" WHEN ")
		writeExpr(b, w.Condition)
		b.WriteString(" THEN ")
		writeExpr(b, w.Result)
	}
	if e.Else != nil {
		b.WriteString(" ELSE ")
		writeExpr(b, e.Else)
	}
	b.WriteString(" END")
}
