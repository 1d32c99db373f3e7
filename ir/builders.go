package ir

// Fluent builder API, grounded on original_source/core/src/ast/builders/
// (binary.rs, columns.rs, conditions.rs, json.rs, literals.rs): a thin
// programmatic construction path over the Command IR, used by callers that
// build commands directly rather than through the parser, and by the
// parser round-trip property in spec.md §8.

// Get starts a SELECT-shaped command.
func Get(table string) *Command { return New(ActionGet, table) }

// Set starts an UPDATE-shaped command.
func Set(table string) *Command { return New(ActionSet, table) }

// Add starts an INSERT-shaped command.
func Add(table string) *Command { return New(ActionAdd, table) }

// Del starts a DELETE-shaped command.
func Del(table string) *Command { return New(ActionDel, table) }

// Fields sets the column list.
func (c *Command) Fields(cols ...Expr) *Command {
	c.Columns = cols
	return c
}

// Where appends one filter cage ANDing the given conditions.
func (c *Command) Where(conds ...Condition) *Command {
	return c.AddCage(FilterCage(LogicalAnd, conds...))
}

// WhereOr appends one filter cage ORing the given conditions.
func (c *Command) WhereOr(conds ...Condition) *Command {
	return c.AddCage(FilterCage(LogicalOr, conds...))
}

// Join appends one join clause.
func (c *Command) Join(kind JoinKind, table string, on ...Condition) *Command {
	c.Joins = append(c.Joins, Join{Table: table, Kind: kind, On: on})
	return c
}

// OrderBy appends a sort cage.
func (c *Command) OrderBy(desc bool, cols ...Expr) *Command {
	conds := make([]Condition, len(cols))
	for i, col := range cols {
		conds[i] = Condition{Left: col}
	}
	return c.AddCage(SortCage(desc, conds...))
}

// Limit appends a limit cage.
func (c *Command) Limit(n int) *Command { return c.AddCage(LimitCage(n)) }

// Offset appends an offset cage.
func (c *Command) Offset(n int) *Command { return c.AddCage(OffsetCage(n)) }

// GroupByExplicit sets an explicit GROUP BY, overriding the auto-trigger rule.
func (c *Command) GroupByExplicit(cols ...Expr) *Command {
	c.GroupByMode = GroupByExplicit
	c.GroupBy = cols
	return c
}

// Having appends HAVING conditions.
func (c *Command) Having(conds ...Condition) *Command {
	c.Having = append(c.Having, conds...)
	return c
}

// SetReturning sets the RETURNING column list.
func (c *Command) SetReturning(cols ...Expr) *Command {
	c.Returning = cols
	return c
}

// Values sets the payload for an INSERT-shaped command built as
// column/value assignments.
func (c *Command) Values(assigns ...Assignment) *Command {
	c.Payload = assigns
	return c
}

// OnConflictDoNothing sets ON CONFLICT (cols) DO NOTHING.
func (c *Command) OnConflictDoNothing(cols ...string) *Command {
	c.OnConflict = &OnConflict{TargetColumns: cols, Action: ConflictNothing}
	return c
}

// OnConflictDoUpdate sets ON CONFLICT (cols) DO UPDATE SET ...
func (c *Command) OnConflictDoUpdate(cols []string, updates ...Assignment) *Command {
	c.OnConflict = &OnConflict{TargetColumns: cols, Action: ConflictUpdate, Updates: updates}
	return c
}

// With attaches a CTE to the command.
func (c *Command) With(cte CTE) *Command {
	c.CTEs = append(c.CTEs, cte)
	return c
}

// Eq/Ne/... build Conditions against an already-built Expr, mirroring the
// original's conditions.rs convenience constructors.
func Eq(left Expr, v Value) Condition  { return Cond(left, OpEq, v) }
func Ne(left Expr, v Value) Condition  { return Cond(left, OpNe, v) }
func Gt(left Expr, v Value) Condition  { return Cond(left, OpGt, v) }
func Gte(left Expr, v Value) Condition { return Cond(left, OpGte, v) }
func Lt(left Expr, v Value) Condition  { return Cond(left, OpLt, v) }
func Lte(left Expr, v Value) Condition { return Cond(left, OpLte, v) }
func Like(left Expr, v Value) Condition { return Cond(left, OpLike, v) }
func In(left Expr, v Value) Condition  { return Cond(left, OpIn, v) }
