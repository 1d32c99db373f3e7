package ir

// Action enumerates the top-level verb of a Command.
type Action int

const (
	ActionGet Action = iota
	ActionSet
	ActionAdd
	ActionDel
	ActionMake
	ActionMod
	ActionDrop
	ActionDropCol
	ActionRenameCol
	ActionOver
	ActionWith
	ActionIndex
	ActionPut
	ActionGen
	ActionJsonTable
	ActionTxnStart
	ActionTxnCommit
	ActionTxnRollback
	ActionSearch
	ActionUpsert
	ActionScroll
	ActionRedisGet
	ActionRedisSet
)

// GroupByMode records whether a GROUP BY was explicit or should be
// synthesized from the aggregate/non-aggregate split of Columns.
type GroupByMode int

const (
	GroupByNone GroupByMode = iota
	GroupByExplicit
	GroupByAuto
)

// SetOpKind enumerates UNION/INTERSECT/EXCEPT.
type SetOpKind int

const (
	SetOpUnion SetOpKind = iota
	SetOpUnionAll
	SetOpIntersect
	SetOpExcept
)

// SetOp pairs a set operator with the command it combines with the one
// that precedes it.
type SetOp struct {
	Kind  SetOpKind
	Query *Command
}

// LockMode enumerates SELECT ... FOR {UPDATE|SHARE} locking clauses.
type LockMode int

const (
	LockNone LockMode = iota
	LockForUpdate
	LockForShare
	LockForNoKeyUpdate
	LockForKeyShare
)

// Command is the IR root: a single parsed or built QAIL statement. A
// Command is structurally owned by one holder — subqueries (via
// Value{Kind: KSubquery}) and CTE bodies are owned by their enclosing
// Command and form a tree, never a cycle.
type Command struct {
	Action Action
	Table  string

	Columns []Expr
	Joins   []Join
	Cages   []Cage

	Distinct   bool
	DistinctOn []Expr

	CTEs  []CTE
	SetOps []SetOp

	Having      []Condition
	GroupByMode GroupByMode
	GroupBy     []Expr

	Returning  []Expr
	OnConflict *OnConflict

	SourceQuery *Command // INSERT ... SELECT
	Payload     []Assignment

	SavepointName string

	FromTables  []string
	UsingTables []string

	LockMode LockMode
	Fetch    *int

	DefaultValues bool
	Overriding    string // "", "SYSTEM", "USER"

	Sample     *int
	OnlyTable  bool

	// Vector-search extension points (inert under PostgreSQL emission;
	// consumed by out-of-scope vector-backend collaborators).
	Vector         []float32
	ScoreThreshold *float32
	VectorName     string
	WithVector     bool

	// Redis extension points (inert under PostgreSQL emission).
	RedisTTL          *int
	RedisSetCondition string
}

// New returns an empty Command for the given action and table.
func New(action Action, table string) *Command {
	return &Command{Action: action, Table: table}
}

// AddCage appends a cage, leaving prior cages of the same kind intact — the
// evaluator concatenates same-kind cages at emit time rather than replacing.
func (c *Command) AddCage(cage Cage) *Command {
	c.Cages = append(c.Cages, cage)
	return c
}

// CagesOfKind returns all cages of the given kind, in accumulation order.
func (c *Command) CagesOfKind(kind CageKind) []Cage {
	var out []Cage
	for _, cg := range c.Cages {
		if cg.Kind == kind {
			out = append(out, cg)
		}
	}
	return out
}

// FilterConditions returns every filter cage in accumulation order,
// unflattened. The caller ANDs across cages and applies each cage's own
// LogicalOp within it, per the glossary's "cage filter cages" rule.
func (c *Command) FilterConditions() []Cage {
	return c.CagesOfKind(CageFilter)
}

// Limit returns the effective LIMIT cage value, if any.
func (c *Command) Limit() (int, bool) {
	cages := c.CagesOfKind(CageLimit)
	if len(cages) == 0 {
		return 0, false
	}
	return cages[len(cages)-1].N, true
}

// Offset returns the effective OFFSET cage value, if any.
func (c *Command) Offset() (int, bool) {
	cages := c.CagesOfKind(CageOffset)
	if len(cages) == 0 {
		return 0, false
	}
	return cages[len(cages)-1].N, true
}

// ResolveGroupBy implements the GroupByMode auto-trigger rule (see
// SPEC_FULL.md §11): if GroupByMode is not GroupByExplicit and the column
// list mixes an Aggregate with a plain Named expression (either possibly
// wrapped in Aliased), grouping is implied over the Named columns.
// FunctionCall and other expression kinds count as neither.
func (c *Command) ResolveGroupBy() {
	if c.GroupByMode == GroupByExplicit {
		return
	}
	hasAgg := false
	var plain []Expr
	for _, col := range c.Columns {
		e := col
		if e.Kind == EkAliased {
			e = *e.Inner
		}
		if e.Kind == EkAggregate {
			hasAgg = true
			continue
		}
		if e.Kind == EkNamed {
			plain = append(plain, e)
		}
	}
	if hasAgg && len(plain) > 0 {
		c.GroupByMode = GroupByAuto
		c.GroupBy = plain
	}
}
