package ir

import "testing"

func TestGetBuilderFluentChain(t *testing.T) {
	cmd := Get("users").
		Fields(Named("id"), Named("name")).
		Where(Cond(Named("active"), OpEq, Bool(true))).
		OrderBy(true, Named("created_at")).
		Limit(10).
		Offset(5)

	if cmd.Action != ActionGet || cmd.Table != "users" {
		t.Fatalf("got Action=%v Table=%q", cmd.Action, cmd.Table)
	}
	if len(cmd.Columns) != 2 {
		t.Fatalf("Columns = %d, want 2", len(cmd.Columns))
	}
	if len(cmd.Cages) != 4 {
		t.Fatalf("Cages = %d, want 4 (filter, sort, limit, offset)", len(cmd.Cages))
	}
}

func TestAddBuilderWithConflict(t *testing.T) {
	cmd := Add("users").
		Values(Assignment{Column: "id", Value: Literal(Int(1))}).
		OnConflictDoUpdate([]string{"id"}, Assignment{Column: "name", Value: Literal(String("x"))}).
		SetReturning(Named("id"))

	if cmd.Action != ActionAdd {
		t.Fatalf("Action = %v, want ActionAdd", cmd.Action)
	}
	if cmd.OnConflict == nil || cmd.OnConflict.Action != ConflictUpdate {
		t.Fatalf("expected OnConflict ConflictUpdate, got %+v", cmd.OnConflict)
	}
	if len(cmd.Returning) != 1 {
		t.Fatalf("Returning = %d, want 1", len(cmd.Returning))
	}
}

func TestWhereOrUsesLogicalOr(t *testing.T) {
	cmd := Get("users").WhereOr(
		Cond(Named("a"), OpEq, Int(1)),
		Cond(Named("b"), OpEq, Int(2)),
	)
	if len(cmd.Cages) != 1 {
		t.Fatalf("Cages = %d, want 1", len(cmd.Cages))
	}
	if cmd.Cages[0].LogicalOp != LogicalOr {
		t.Errorf("LogicalOp = %v, want LogicalOr", cmd.Cages[0].LogicalOp)
	}
}

func TestConditionConstructors(t *testing.T) {
	c := IsNullCond(Named("deleted_at"))
	if c.Op != OpIsNull {
		t.Errorf("Op = %v, want OpIsNull", c.Op)
	}
	nc := IsNotNullCond(Named("deleted_at"))
	if nc.Op != OpIsNotNull {
		t.Errorf("Op = %v, want OpIsNotNull", nc.Op)
	}
	b := Between(Named("age"), Int(18), Int(65))
	if b.Op != OpBetween {
		t.Errorf("Op = %v, want OpBetween", b.Op)
	}
}

func TestValueAccessors(t *testing.T) {
	if s, ok := String("hi").AsString(); !ok || s != "hi" {
		t.Errorf("AsString = %q, %v", s, ok)
	}
	if !Null().IsNull() {
		t.Error("Null().IsNull() should be true")
	}
	if n, ok := Int(42).AsInt64(); !ok || n != 42 {
		t.Errorf("AsInt64 = %d, %v", n, ok)
	}
}
