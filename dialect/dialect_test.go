package dialect

import "testing"

func TestForUnknownDialect(t *testing.T) {
	if _, err := For(Name("nope")); err == nil {
		t.Fatal("expected an error for an unknown dialect name")
	}
}

func TestPostgresDefaults(t *testing.T) {
	g, err := For(PostgreSQL)
	if err != nil {
		t.Fatal(err)
	}
	if got := g.QuoteIdentifier(`weird"name`); got != `"weird""name"` {
		t.Errorf("QuoteIdentifier = %q", got)
	}
	if got := g.Placeholder(3); got != "$3" {
		t.Errorf("Placeholder(3) = %q, want $3", got)
	}
	if g.BoolLiteral(true) != "true" || g.BoolLiteral(false) != "false" {
		t.Errorf("BoolLiteral mismatch")
	}
}

func TestMySQLOverrides(t *testing.T) {
	g, err := For(MySQL)
	if err != nil {
		t.Fatal(err)
	}
	if got := g.QuoteIdentifier("col"); got != "`col`" {
		t.Errorf("QuoteIdentifier = %q, want `col`", got)
	}
	if got := g.Placeholder(1); got != "?" {
		t.Errorf("Placeholder = %q, want ?", got)
	}
	if g.BoolLiteral(true) != "1" {
		t.Errorf("BoolLiteral(true) = %q, want 1", g.BoolLiteral(true))
	}
}

func TestMariaDBInheritsMySQL(t *testing.T) {
	g, err := For(MariaDB)
	if err != nil {
		t.Fatal(err)
	}
	if g.Name() != MariaDB {
		t.Errorf("Name() = %v, want MariaDB", g.Name())
	}
	if got := g.Placeholder(1); got != "?" {
		t.Errorf("MariaDB should inherit MySQL's placeholder style, got %q", got)
	}
}

func TestSQLServerPagination(t *testing.T) {
	g, err := For(SQLServer)
	if err != nil {
		t.Fatal(err)
	}
	limit, offset := 10, 20
	got := g.LimitOffset(&limit, &offset)
	want := "OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY"
	if got != want {
		t.Errorf("LimitOffset = %q, want %q", got, want)
	}
}

func TestPostgresPaginationOmitsAbsentParts(t *testing.T) {
	g, _ := For(PostgreSQL)
	if got := g.LimitOffset(nil, nil); got != "" {
		t.Errorf("LimitOffset(nil, nil) = %q, want empty", got)
	}
	limit := 5
	if got := g.LimitOffset(&limit, nil); got != "LIMIT 5" {
		t.Errorf("LimitOffset(5, nil) = %q, want LIMIT 5", got)
	}
}

func TestNeedsQuoting(t *testing.T) {
	g, _ := For(PostgreSQL)
	if !g.NeedsQuoting("select") {
		t.Error("reserved word should need quoting")
	}
	if !g.NeedsQuoting("weird col") {
		t.Error("identifier with a space should need quoting")
	}
	if g.NeedsQuoting("users") {
		t.Error("plain identifier should not need quoting")
	}
}
