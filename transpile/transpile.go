// Package transpile turns an ir.Command into a SQL string under a given
// dialect.SqlGenerator, in literal or parameterized output mode (spec.md
// §4.D). The buffer-walking style is grounded on machparse's single-
// dialect formatter, generalized from a fixed SQL grammar to the IR's
// command/cage/expr shape and parameterized over dialect.SqlGenerator.
package transpile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qail-lang/qail/dialect"
	"github.com/qail-lang/qail/ir"
)

// Mode selects literal-SQL or parameterized-SQL emission.
type Mode int

const (
	// Literal inlines values with proper escaping.
	Literal Mode = iota
	// Parameterized substitutes placeholders and returns the collected
	// values in left-to-right evaluation order.
	Parameterized
)

// Result is what Transpile returns.
type Result struct {
	SQL    string
	Params []ir.Value // only populated in Parameterized mode
}

type transpiler struct {
	gen    dialect.SqlGenerator
	mode   Mode
	buf    strings.Builder
	params []ir.Value
}

// Transpile renders cmd to SQL text under the given dialect and mode.
func Transpile(cmd *ir.Command, name dialect.Name, mode Mode) (Result, error) {
	gen, err := dialect.For(name)
	if err != nil {
		return Result{}, err
	}
	t := &transpiler{gen: gen, mode: mode}
	t.command(cmd)
	return Result{SQL: t.buf.String(), Params: t.params}, nil
}

// RenderExpr renders a single expression outside of a full command, for
// callers (pgencode's fast-path fallback) that need one expression's SQL
// text and any parameters it collects, continuing a parameter sequence
// that started at paramOffset.
func RenderExpr(e ir.Expr, gen dialect.SqlGenerator, mode Mode, paramOffset int) (string, []ir.Value) {
	t := &transpiler{gen: gen, mode: mode, params: make([]ir.Value, 0, paramOffset)}
	for i := 0; i < paramOffset; i++ {
		t.params = append(t.params, ir.Value{})
	}
	t.expr(e)
	return t.buf.String(), t.params[paramOffset:]
}

func (t *transpiler) write(s string)                 { t.buf.WriteString(s) }
func (t *transpiler) writef(f string, a ...any)       { fmt.Fprintf(&t.buf, f, a...) }
func (t *transpiler) quoteIdent(id string) string     { return t.gen.QuoteIdentifier(id) }

func (t *transpiler) tableRef(id string) string {
	if t.gen.NeedsQuoting(id) {
		return t.gen.QuoteIdentifier(id)
	}
	return id
}

// command dispatches on the command's Action.
func (t *transpiler) command(cmd *ir.Command) {
	if len(cmd.CTEs) > 0 {
		t.writeCTEs(cmd.CTEs)
	}
	switch cmd.Action {
	case ir.ActionGet, ir.ActionSearch:
		t.selectStmt(cmd)
	case ir.ActionSet, ir.ActionUpsert:
		t.updateStmt(cmd)
	case ir.ActionAdd:
		t.insertStmt(cmd)
	case ir.ActionDel:
		t.deleteStmt(cmd)
	case ir.ActionMake:
		t.createTableStmt(cmd)
	case ir.ActionDrop:
		t.writef("DROP TABLE %s", t.tableRef(cmd.Table))
	case ir.ActionDropCol:
		t.writef("ALTER TABLE %s DROP COLUMN %s", t.tableRef(cmd.Table), t.quoteIdent(colArg(cmd)))
	case ir.ActionRenameCol:
		t.writef("ALTER TABLE %s RENAME COLUMN %s", t.tableRef(cmd.Table), t.quoteIdent(colArg(cmd)))
	case ir.ActionIndex:
		t.writef("CREATE INDEX ON %s (%s)", t.tableRef(cmd.Table), colArg(cmd))
	case ir.ActionMod:
		t.writef("ALTER TABLE %s", t.tableRef(cmd.Table))
	case ir.ActionPut:
		t.writef("ALTER TABLE %s ADD COLUMN %s", t.tableRef(cmd.Table), colArg(cmd))
	case ir.ActionGen:
		t.writef("CREATE SEQUENCE %s", t.tableRef(cmd.Table))
	case ir.ActionTxnStart:
		if cmd.SavepointName != "" {
			t.writef("SAVEPOINT %s", cmd.SavepointName)
		} else {
			t.write("BEGIN")
		}
	case ir.ActionTxnCommit:
		t.write("COMMIT")
	case ir.ActionTxnRollback:
		if cmd.SavepointName != "" {
			t.writef("ROLLBACK TO SAVEPOINT %s", cmd.SavepointName)
		} else {
			t.write("ROLLBACK")
		}
	default:
		t.writef("/* unsupported action %d */", cmd.Action)
	}
}

func colArg(cmd *ir.Command) string {
	if len(cmd.Columns) == 0 {
		return ""
	}
	if cmd.Columns[0].Kind == ir.EkLiteral {
		return cmd.Columns[0].Literal.Str
	}
	return cmd.Columns[0].Name
}

func (t *transpiler) writeCTEs(ctes []ir.CTE) {
	t.write("WITH ")
	if len(ctes) > 0 && ctes[0].Recursive {
		t.write("RECURSIVE ")
	}
	for i, cte := range ctes {
		if i > 0 {
			t.write(", ")
		}
		t.write(cte.Name)
		if len(cte.Columns) > 0 {
			t.writef(" (%s)", strings.Join(cte.Columns, ", "))
		}
		t.write(" AS (")
		if cte.BaseQuery != nil {
			t.command(cte.BaseQuery)
		}
		if cte.Recursive && cte.RecursiveQuery != nil {
			t.write(" UNION ALL ")
			t.command(cte.RecursiveQuery)
		}
		t.write(")")
	}
	t.write(" ")
}

// --- SELECT ----------------------------------------------------------------

func (t *transpiler) selectStmt(cmd *ir.Command) {
	t.write("SELECT ")
	if cmd.Distinct {
		t.write("DISTINCT ")
	}
	if len(cmd.DistinctOn) > 0 {
		t.write("DISTINCT ON (")
		t.exprList(cmd.DistinctOn)
		t.write(") ")
	}
	if len(cmd.Columns) == 0 {
		t.write("*")
	} else {
		t.exprList(cmd.Columns)
	}
	t.writef(" FROM %s", t.tableRef(cmd.Table))
	for _, extra := range cmd.FromTables {
		t.writef(", %s", t.tableRef(extra))
	}
	for _, j := range cmd.Joins {
		t.join(j)
	}
	t.whereClause(cmd)
	t.groupByClause(cmd)
	t.havingClause(cmd)
	t.orderByClause(cmd)

	for _, so := range cmd.SetOps {
		t.setOp(so)
	}

	limit, hasLimit := cmd.Limit()
	offset, hasOffset := cmd.Offset()
	var lp, op *int
	if hasLimit {
		lp = &limit
	}
	if hasOffset {
		op = &offset
	}
	if lo := t.gen.LimitOffset(lp, op); lo != "" {
		t.write(" ")
		t.write(lo)
	}
	switch cmd.LockMode {
	case ir.LockForUpdate:
		t.write(" FOR UPDATE")
	case ir.LockForShare:
		t.write(" FOR SHARE")
	}
}

func (t *transpiler) setOp(so ir.SetOp) {
	switch so.Kind {
	case ir.SetOpUnion:
		t.write(" UNION ")
	case ir.SetOpUnionAll:
		t.write(" UNION ALL ")
	case ir.SetOpIntersect:
		t.write(" INTERSECT ")
	case ir.SetOpExcept:
		t.write(" EXCEPT ")
	}
	if so.Query != nil {
		t.command(so.Query)
	}
}

func (t *transpiler) join(j ir.Join) {
	switch j.Kind {
	case ir.JoinLeft:
		t.write(" LEFT JOIN ")
	case ir.JoinRight:
		t.write(" RIGHT JOIN ")
	case ir.JoinFull:
		t.write(" FULL JOIN ")
	default:
		t.write(" JOIN ")
	}
	t.write(t.tableRef(j.Table))
	if j.OnTrue {
		t.write(" ON TRUE")
		return
	}
	if len(j.On) > 0 {
		t.write(" ON ")
		t.conditions(j.On, ir.LogicalAnd)
	}
}

func (t *transpiler) whereClause(cmd *ir.Command) {
	cages := cmd.CagesOfKind(ir.CageFilter)
	if len(cages) == 0 {
		return
	}
	t.write(" WHERE ")
	for i, cg := range cages {
		if i > 0 {
			t.write(" AND ")
		}
		t.write("(")
		t.conditions(cg.Conditions, cg.LogicalOp)
		t.write(")")
	}
}

func (t *transpiler) groupByClause(cmd *ir.Command) {
	if cmd.GroupByMode == ir.GroupByNone || len(cmd.GroupBy) == 0 {
		return
	}
	t.write(" GROUP BY ")
	t.exprList(cmd.GroupBy)
}

func (t *transpiler) havingClause(cmd *ir.Command) {
	if len(cmd.Having) == 0 {
		return
	}
	t.write(" HAVING ")
	t.conditions(cmd.Having, ir.LogicalAnd)
}

func (t *transpiler) orderByClause(cmd *ir.Command) {
	first := true
	for _, cg := range cmd.Cages {
		if cg.Kind != ir.CageSortAsc && cg.Kind != ir.CageSortDesc {
			continue
		}
		if first {
			t.write(" ORDER BY ")
			first = false
		} else {
			t.write(", ")
		}
		for i, c := range cg.Conditions {
			if i > 0 {
				t.write(", ")
			}
			t.expr(c.Left)
			if cg.Kind == ir.CageSortDesc {
				t.write(" DESC")
			} else {
				t.write(" ASC")
			}
		}
	}
}

// --- INSERT ------------------------------------------------------------

func (t *transpiler) insertStmt(cmd *ir.Command) {
	t.writef("INSERT INTO %s", t.tableRef(cmd.Table))
	if cmd.DefaultValues {
		t.write(" DEFAULT VALUES")
	} else if cmd.SourceQuery != nil {
		t.write(" (")
		for i, a := range cmd.Payload {
			if i > 0 {
				t.write(", ")
			}
			t.write(t.quoteIdent(a.Column))
		}
		t.write(") ")
		t.command(cmd.SourceQuery)
	} else {
		t.write(" (")
		for i, a := range cmd.Payload {
			if i > 0 {
				t.write(", ")
			}
			t.write(t.quoteIdent(a.Column))
		}
		t.write(") VALUES (")
		for i, a := range cmd.Payload {
			if i > 0 {
				t.write(", ")
			}
			t.expr(a.Value)
		}
		t.write(")")
	}
	if cmd.OnConflict != nil {
		t.onConflict(cmd.OnConflict)
	}
	t.returningClause(cmd)
}

func (t *transpiler) onConflict(oc *ir.OnConflict) {
	t.write(" ON CONFLICT")
	if len(oc.TargetColumns) > 0 {
		t.writef(" (%s)", strings.Join(oc.TargetColumns, ", "))
	}
	switch oc.Action {
	case ir.ConflictNothing:
		t.write(" DO NOTHING")
	case ir.ConflictUpdate:
		t.write(" DO UPDATE SET ")
		for i, a := range oc.Updates {
			if i > 0 {
				t.write(", ")
			}
			t.writef("%s = ", t.quoteIdent(a.Column))
			t.expr(a.Value)
		}
	}
}

func (t *transpiler) returningClause(cmd *ir.Command) {
	if len(cmd.Returning) == 0 {
		return
	}
	t.write(" RETURNING ")
	t.exprList(cmd.Returning)
}

// --- UPDATE -------------------------------------------------------------

func (t *transpiler) updateStmt(cmd *ir.Command) {
	t.writef("UPDATE %s SET ", t.tableRef(cmd.Table))
	for i, a := range cmd.Payload {
		if i > 0 {
			t.write(", ")
		}
		t.writef("%s = ", t.quoteIdent(a.Column))
		t.expr(a.Value)
	}
	t.whereClause(cmd)
	t.returningClause(cmd)
}

// --- DELETE -------------------------------------------------------------

func (t *transpiler) deleteStmt(cmd *ir.Command) {
	t.writef("DELETE FROM %s", t.tableRef(cmd.Table))
	t.whereClause(cmd)
	t.returningClause(cmd)
}

// --- DDL ----------------------------------------------------------------

func (t *transpiler) createTableStmt(cmd *ir.Command) {
	t.writef("CREATE TABLE %s (", t.tableRef(cmd.Table))
	for i, col := range cmd.Columns {
		if i > 0 {
			t.write(", ")
		}
		if col.Kind == ir.EkLiteral {
			t.write(col.Literal.Str)
		}
	}
	t.write(")")
}

// --- conditions & expressions --------------------------------------------

func (t *transpiler) conditions(conds []ir.Condition, op ir.LogicalOp) {
	sep := " AND "
	if op == ir.LogicalOr {
		sep = " OR "
	}
	for i, c := range conds {
		if i > 0 {
			t.write(sep)
		}
		t.condition(c)
	}
}

func (t *transpiler) condition(c ir.Condition) {
	t.expr(c.Left)
	switch c.Op {
	case ir.OpEq:
		t.write(" = ")
		t.value(c.Value)
	case ir.OpNe:
		t.write(" <> ")
		t.value(c.Value)
	case ir.OpGt:
		t.write(" > ")
		t.value(c.Value)
	case ir.OpGte:
		t.write(" >= ")
		t.value(c.Value)
	case ir.OpLt:
		t.write(" < ")
		t.value(c.Value)
	case ir.OpLte:
		t.write(" <= ")
		t.value(c.Value)
	case ir.OpLike:
		t.write(" LIKE ")
		t.value(c.Value)
	case ir.OpNotLike:
		t.write(" NOT LIKE ")
		t.value(c.Value)
	case ir.OpILike:
		t.write(" ILIKE ")
		t.value(c.Value)
	case ir.OpNotILike:
		t.write(" NOT ILIKE ")
		t.value(c.Value)
	case ir.OpFuzzy:
		t.writef(" %s ", t.gen.FuzzyOperator())
		t.value(c.Value)
	case ir.OpIn:
		t.write(" IN (")
		t.valueArray(c.Value)
		t.write(")")
	case ir.OpNotIn:
		t.write(" NOT IN (")
		t.valueArray(c.Value)
		t.write(")")
	case ir.OpIsNull:
		t.write(" IS NULL")
	case ir.OpIsNotNull:
		t.write(" IS NOT NULL")
	case ir.OpBetween:
		t.write(" BETWEEN ")
		t.value(c.Value.Elems[0])
		t.write(" AND ")
		t.value(c.Value.Elems[1])
	case ir.OpNotBetween:
		t.write(" NOT BETWEEN ")
		t.value(c.Value.Elems[0])
		t.write(" AND ")
		t.value(c.Value.Elems[1])
	case ir.OpRegex:
		t.write(" ~ ")
		t.value(c.Value)
	case ir.OpRegexI:
		t.write(" ~* ")
		t.value(c.Value)
	case ir.OpSimilarTo:
		t.write(" SIMILAR TO ")
		t.value(c.Value)
	case ir.OpContains:
		t.write(" @> ")
		t.value(c.Value)
	case ir.OpOverlaps:
		t.write(" && ")
		t.value(c.Value)
	case ir.OpKeyExists:
		t.write(" ? ")
		t.value(c.Value)
	}
}

func (t *transpiler) valueArray(v ir.Value) {
	for i, e := range v.Elems {
		if i > 0 {
			t.write(", ")
		}
		t.value(e)
	}
}

func (t *transpiler) exprList(exprs []ir.Expr) {
	for i, e := range exprs {
		if i > 0 {
			t.write(", ")
		}
		t.expr(e)
	}
}

func (t *transpiler) expr(e ir.Expr) {
	switch e.Kind {
	case ir.EkLiteral:
		t.value(e.Literal)
	case ir.EkNamed:
		if e.Qualifier != "" {
			t.write(t.tableRef(e.Qualifier))
			t.write(".")
		}
		t.write(t.quoteIdent(e.Name))
	case ir.EkStar:
		if e.Qualifier != "" {
			t.write(t.tableRef(e.Qualifier))
			t.write(".")
		}
		t.write("*")
	case ir.EkAliased:
		t.expr(*e.Inner)
		t.write(" AS ")
		t.write(t.quoteIdent(e.Alias))
	case ir.EkAggregate:
		t.write(e.AggFunc)
		t.write("(")
		if e.AggDistinct {
			t.write("DISTINCT ")
		}
		if e.AggArg == nil {
			t.write("*")
		} else {
			t.expr(*e.AggArg)
		}
		t.write(")")
		if len(e.AggFilter) > 0 {
			t.write(" FILTER (WHERE ")
			t.conditions(e.AggFilter, ir.LogicalAnd)
			t.write(")")
		}
	case ir.EkFunctionCall:
		t.write(e.FuncName)
		t.write("(")
		t.exprList(e.FuncArgs)
		t.write(")")
		t.writeAlias(e.FAlias)
	case ir.EkSpecialFunction:
		t.specialFunction(e)
		t.writeAlias(e.FAlias)
	case ir.EkJsonAccess:
		t.expr(*e.JsonColumn)
		for _, seg := range e.JsonPath {
			if seg.AsText {
				t.write(" ->> ")
			} else {
				t.write(" -> ")
			}
			t.write("'" + strings.ReplaceAll(seg.Key, "'", "''") + "'")
		}
		t.writeAlias(e.FAlias)
	case ir.EkCase:
		t.write("CASE")
		for _, w := range e.CaseWhens {
			t.write(" WHEN ")
			t.condition(w.When)
			t.write(" THEN ")
			t.expr(w.Then)
		}
		if e.CaseElse != nil {
			t.write(" ELSE ")
			t.expr(*e.CaseElse)
		}
		t.write(" END")
		t.writeAlias(e.FAlias)
	case ir.EkCast:
		t.write("CAST(")
		t.expr(*e.CastExpr)
		t.write(" AS ")
		t.write(e.CastTarget)
		t.write(")")
		t.writeAlias(e.FAlias)
	case ir.EkBinary:
		if e.Op == ir.OpConcat {
			t.write(t.gen.StringConcat([]string{t.exprString(*e.Left), t.exprString(*e.Right)}))
			t.writeAlias(e.FAlias)
			return
		}
		t.expr(*e.Left)
		switch e.Op {
		case ir.OpAdd:
			t.write(" + ")
		case ir.OpSub:
			t.write(" - ")
		case ir.OpMul:
			t.write(" * ")
		case ir.OpDiv:
			t.write(" / ")
		case ir.OpMod:
			t.write(" % ")
		}
		t.expr(*e.Right)
		t.writeAlias(e.FAlias)
	}
}

// exprString renders e into its own buffer and returns the text, for
// contexts (string_concat's variadic argument list) that need a operand's
// SQL text rather than having it written directly to the main buffer.
func (t *transpiler) exprString(e ir.Expr) string {
	sub := &transpiler{gen: t.gen, mode: t.mode, params: t.params}
	sub.expr(e)
	t.params = sub.params
	return sub.buf.String()
}

func (t *transpiler) writeAlias(alias string) {
	if alias != "" {
		t.write(" AS ")
		t.write(t.quoteIdent(alias))
	}
}

func (t *transpiler) specialFunction(e ir.Expr) {
	switch e.SpecialName {
	case "SUBSTRING":
		t.write("SUBSTRING(")
		for i, a := range e.SpecialArgs {
			if i > 0 {
				t.write(" ")
			}
			if a.Keyword != "" {
				t.write(a.Keyword)
				t.write(" ")
			}
			t.expr(a.Expr)
		}
		t.write(")")
	case "EXTRACT":
		t.write("EXTRACT(")
		for i, a := range e.SpecialArgs {
			if i > 0 {
				t.write(" ")
			}
			switch a.Keyword {
			case "FIELD":
				t.write(a.Expr.Literal.Str)
			case "FROM":
				t.write("FROM ")
				t.expr(a.Expr)
			}
		}
		t.write(")")
	default:
		t.write(e.SpecialName)
		t.write("(")
		for i, a := range e.SpecialArgs {
			if i > 0 {
				t.write(", ")
			}
			t.expr(a.Expr)
		}
		t.write(")")
	}
}

func (t *transpiler) value(v ir.Value) {
	if t.mode == Parameterized && (v.Kind == ir.KBool || v.Kind == ir.KInt || v.Kind == ir.KFloat) {
		t.params = append(t.params, v)
		t.write(t.gen.Placeholder(len(t.params)))
		return
	}
	switch v.Kind {
	case ir.KNull, ir.KNullUuid:
		t.write("NULL")
	case ir.KBool:
		t.write(t.gen.BoolLiteral(v.Bool))
	case ir.KInt:
		t.write(strconv.FormatInt(v.Int, 10))
	case ir.KFloat:
		t.write(strconv.FormatFloat(v.Float, 'g', -1, 64))
	case ir.KString:
		t.writeStringLiteral(v.Str)
	case ir.KParam:
		if t.mode == Parameterized {
			t.params = append(t.params, v)
			t.write(t.gen.Placeholder(len(t.params)))
		} else {
			t.write("$" + strconv.FormatUint(uint64(v.ParamIndex), 10))
		}
	case ir.KNamedParam:
		if t.mode == Parameterized {
			t.params = append(t.params, v)
			t.write(t.gen.Placeholder(len(t.params)))
		} else {
			t.write(":" + v.ParamName)
		}
	case ir.KFunction:
		t.write(v.Str)
	case ir.KArray:
		t.write("ARRAY[")
		t.valueArray(v)
		t.write("]")
	case ir.KSubquery:
		t.write("(")
		if v.Subquery != nil {
			t.command(v.Subquery)
		}
		t.write(")")
	case ir.KColumn:
		t.write(t.quoteIdent(v.Str))
	case ir.KUuid:
		t.writeStringLiteral(v.Str)
	}
}

func (t *transpiler) writeStringLiteral(s string) {
	if t.mode == Parameterized {
		val := ir.String(s)
		t.params = append(t.params, val)
		t.write(t.gen.Placeholder(len(t.params)))
		return
	}
	t.write("'" + strings.ReplaceAll(s, "'", "''") + "'")
}
