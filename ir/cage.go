package ir

// CageKind tags what a Cage constrains.
type CageKind int

const (
	CageFilter CageKind = iota
	CagePayload
	CageSortAsc
	CageSortDesc
	CageLimit
	CageOffset
	CageSample
	CageQualify
	CagePartition
)

// Cage is a clause container: a kind plus the conditions that belong to it
// and how those conditions combine. Cages accumulate on a Command; the
// command evaluator concatenates same-kind cages and ANDs across kinds.
type Cage struct {
	Kind       CageKind
	Conditions []Condition
	LogicalOp  LogicalOp

	// Scalar cages (Limit/Offset/Sample) carry their value here instead of
	// in Conditions.
	N int
}

func FilterCage(op LogicalOp, conds ...Condition) Cage {
	return Cage{Kind: CageFilter, Conditions: conds, LogicalOp: op}
}

func PayloadCage(conds ...Condition) Cage {
	return Cage{Kind: CagePayload, Conditions: conds, LogicalOp: LogicalAnd}
}

func SortCage(desc bool, conds ...Condition) Cage {
	k := CageSortAsc
	if desc {
		k = CageSortDesc
	}
	return Cage{Kind: k, Conditions: conds, LogicalOp: LogicalAnd}
}

func LimitCage(n int) Cage  { return Cage{Kind: CageLimit, N: n} }
func OffsetCage(n int) Cage { return Cage{Kind: CageOffset, N: n} }
func SampleCage(n int) Cage { return Cage{Kind: CageSample, N: n} }

func QualifyCage(op LogicalOp, conds ...Condition) Cage {
	return Cage{Kind: CageQualify, Conditions: conds, LogicalOp: op}
}

func PartitionCage(conds ...Condition) Cage {
	return Cage{Kind: CagePartition, Conditions: conds, LogicalOp: LogicalAnd}
}

// JoinKind enumerates the supported join types.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
)

// Join represents one FROM-clause join.
type Join struct {
	Table  string
	Kind   JoinKind
	On     []Condition
	OnTrue bool
}

// CTE is one WITH-clause entry. Invariant: Recursive implies
// RecursiveQuery is non-nil at emit time (enforced in transpile).
type CTE struct {
	Name            string
	Recursive       bool
	Columns         []string
	BaseQuery       *Command
	RecursiveQuery  *Command
	SourceTable     string
}

// ConflictAction tags what ON CONFLICT does.
type ConflictAction int

const (
	ConflictNothing ConflictAction = iota
	ConflictUpdate
)

// Assignment is a `column = expr` pair, used by UPDATE SET and
// ON CONFLICT DO UPDATE SET.
type Assignment struct {
	Column string
	Value  Expr
}

// OnConflict models INSERT ... ON CONFLICT.
type OnConflict struct {
	TargetColumns []string
	Action        ConflictAction
	Updates       []Assignment
}
