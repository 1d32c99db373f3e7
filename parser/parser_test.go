package parser

import (
	"testing"

	"github.com/qail-lang/qail/ir"
)

func mustParse(t *testing.T, text string) *ir.Command {
	t.Helper()
	cmd, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", text, err)
	}
	if cmd == nil {
		t.Fatalf("Parse(%q) returned nil command", text)
	}
	return cmd
}

func TestParseSimpleGet(t *testing.T) {
	cmd := mustParse(t, "get users fields id, name where active = true")
	if cmd.Action != ir.ActionGet {
		t.Errorf("Action = %v, want ActionGet", cmd.Action)
	}
	if cmd.Table != "users" {
		t.Errorf("Table = %q, want users", cmd.Table)
	}
	if len(cmd.Columns) != 2 {
		t.Fatalf("Columns = %d, want 2", len(cmd.Columns))
	}
}

func TestParseGetDistinct(t *testing.T) {
	cmd := mustParse(t, "get! users")
	if !cmd.Distinct {
		t.Error("expected Distinct to be true for get!")
	}
}

func TestParseGetWithJoinAndOrder(t *testing.T) {
	cmd := mustParse(t, "get orders from orders left join customers on orders.customer_id = customers.id order by created_at desc limit 10")
	if len(cmd.Joins) != 1 {
		t.Fatalf("Joins = %d, want 1", len(cmd.Joins))
	}
	if cmd.Joins[0].Kind != ir.JoinLeft {
		t.Errorf("join kind = %v, want JoinLeft", cmd.Joins[0].Kind)
	}
	if cmd.Joins[0].Table != "customers" {
		t.Errorf("join table = %q, want customers", cmd.Joins[0].Table)
	}
}

func TestParseSetWithAssignments(t *testing.T) {
	cmd := mustParse(t, "set users with name = 'Bob', active = false where id = 1 returning id")
	if cmd.Action != ir.ActionSet {
		t.Errorf("Action = %v, want ActionSet", cmd.Action)
	}
	if len(cmd.Payload) != 2 {
		t.Fatalf("Payload = %d, want 2", len(cmd.Payload))
	}
	if cmd.Payload[0].Column != "name" {
		t.Errorf("Payload[0].Column = %q, want name", cmd.Payload[0].Column)
	}
	if len(cmd.Returning) != 1 {
		t.Fatalf("Returning = %d, want 1", len(cmd.Returning))
	}
}

func TestParseAddWithConflict(t *testing.T) {
	cmd := mustParse(t, "add users with id = 1, name = 'Bob' conflict (id) update name = 'Bob' returning id")
	if cmd.Action != ir.ActionAdd {
		t.Errorf("Action = %v, want ActionAdd", cmd.Action)
	}
	if cmd.OnConflict == nil {
		t.Fatal("expected OnConflict to be set")
	}
	if cmd.OnConflict.Action != ir.ConflictUpdate {
		t.Errorf("OnConflict.Action = %v, want ConflictUpdate", cmd.OnConflict.Action)
	}
}

func TestParseDel(t *testing.T) {
	cmd := mustParse(t, "del users where id = 1")
	if cmd.Action != ir.ActionDel {
		t.Errorf("Action = %v, want ActionDel", cmd.Action)
	}
}

func TestParseTransactionVerbs(t *testing.T) {
	cases := map[string]ir.Action{
		"begin":             ir.ActionTxnStart,
		"commit":            ir.ActionTxnCommit,
		"rollback":          ir.ActionTxnRollback,
		"rollback to sp1":   ir.ActionTxnRollback,
		"savepoint sp1":     ir.ActionTxnStart,
	}
	for text, want := range cases {
		cmd := mustParse(t, text)
		if cmd.Action != want {
			t.Errorf("Parse(%q).Action = %v, want %v", text, cmd.Action, want)
		}
	}
	rb := mustParse(t, "rollback to savepoint sp1")
	if rb.SavepointName != "sp1" {
		t.Errorf("SavepointName = %q, want sp1", rb.SavepointName)
	}
}

func TestParseWithCTE(t *testing.T) {
	cmd := mustParse(t, "with recent as (get orders where status = 'open') get recent")
	if len(cmd.CTEs) != 1 {
		t.Fatalf("CTEs = %d, want 1", len(cmd.CTEs))
	}
	if cmd.CTEs[0].Name != "recent" {
		t.Errorf("CTE name = %q, want recent", cmd.CTEs[0].Name)
	}
	if cmd.CTEs[0].BaseQuery == nil {
		t.Fatal("expected CTE base query to be parsed")
	}
}

func TestParseBetweenAndIn(t *testing.T) {
	cmd := mustParse(t, "get users where age between 18 and 65 and id in (1, 2, 3)")
	conds := cmd.Cages[0].Conditions
	if len(conds) != 2 {
		t.Fatalf("Conditions = %d, want 2", len(conds))
	}
	if conds[0].Op != ir.OpBetween {
		t.Errorf("first condition op = %v, want OpBetween", conds[0].Op)
	}
	if conds[1].Op != ir.OpIn {
		t.Errorf("second condition op = %v, want OpIn", conds[1].Op)
	}
}

func TestParseArithmeticPrecedence(t *testing.T) {
	cmd := mustParse(t, "get users fields 1 + 2 * 3")
	e := cmd.Columns[0]
	if e.Kind != ir.EkBinary || e.Op != ir.OpAdd {
		t.Fatalf("expected top-level Add, got %+v", e)
	}
	right := e.Right
	if right.Kind != ir.EkBinary || right.Op != ir.OpMul {
		t.Fatalf("expected right side to be Mul, got %+v", right)
	}
}

func TestParseAggregateFunction(t *testing.T) {
	cmd := mustParse(t, "get orders fields count(distinct customer_id)")
	e := cmd.Columns[0]
	if e.Kind != ir.EkAggregate {
		t.Fatalf("expected aggregate expr, got %+v", e)
	}
	if !e.AggDistinct {
		t.Error("expected AggDistinct to be true")
	}
}

func TestParseErrorOnMalformedInput(t *testing.T) {
	_, err := Parse("get")
	if err == nil {
		t.Fatal("expected a parse error for incomplete input")
	}
	if _, ok := err.(ParseError); !ok {
		t.Fatalf("expected ParseError, got %T", err)
	}
}

func TestParseErrorOnUnknownVerb(t *testing.T) {
	_, err := Parse("frobnicate users")
	if err == nil {
		t.Fatal("expected a parse error for an unrecognized verb")
	}
}

func TestParseAll(t *testing.T) {
	cmds, err := ParseAll("get users; get orders")
	if err != nil {
		t.Fatalf("ParseAll failed: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want 2", len(cmds))
	}
	if cmds[0].Table != "users" || cmds[1].Table != "orders" {
		t.Errorf("unexpected tables: %q, %q", cmds[0].Table, cmds[1].Table)
	}
}

func TestGetPutPoolRoundTrip(t *testing.T) {
	p := Get("get users")
	cmd, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cmd.Table != "users" {
		t.Errorf("Table = %q, want users", cmd.Table)
	}
	Put(p)

	p2 := Get("get orders")
	cmd2, err := p2.Parse()
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cmd2.Table != "orders" {
		t.Errorf("pooled parser not reset: Table = %q, want orders", cmd2.Table)
	}
	Put(p2)
}
