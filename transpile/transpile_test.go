package transpile

import (
	"strings"
	"testing"

	"github.com/qail-lang/qail/dialect"
	"github.com/qail-lang/qail/parser"
)

func transpileText(t *testing.T, text string, name dialect.Name, mode Mode) Result {
	t.Helper()
	cmd, err := parser.Parse(text)
	if err != nil {
		t.Fatalf("parser.Parse(%q) failed: %v", text, err)
	}
	res, err := Transpile(cmd, name, mode)
	if err != nil {
		t.Fatalf("Transpile failed: %v", err)
	}
	return res
}

func TestTranspileSimpleGetLiteral(t *testing.T) {
	res := transpileText(t, "get users where id = 1", dialect.PostgreSQL, Literal)
	if !strings.Contains(res.SQL, "SELECT") {
		t.Errorf("expected SELECT in %q", res.SQL)
	}
	if !strings.Contains(res.SQL, `"users"`) && !strings.Contains(res.SQL, "users") {
		t.Errorf("expected table reference in %q", res.SQL)
	}
	if !strings.Contains(res.SQL, "WHERE") {
		t.Errorf("expected WHERE clause in %q", res.SQL)
	}
	if len(res.Params) != 0 {
		t.Errorf("literal mode should not collect params, got %v", res.Params)
	}
}

func TestTranspileParameterizedCollectsParams(t *testing.T) {
	res := transpileText(t, "get users where id = 1 and name = 'bob'", dialect.PostgreSQL, Parameterized)
	if !strings.Contains(res.SQL, "$1") || !strings.Contains(res.SQL, "$2") {
		t.Errorf("expected $1/$2 placeholders in %q", res.SQL)
	}
	if len(res.Params) != 2 {
		t.Fatalf("Params = %d, want 2", len(res.Params))
	}
}

func TestTranspileMySQLPlaceholders(t *testing.T) {
	res := transpileText(t, "get users where id = 1", dialect.MySQL, Parameterized)
	if !strings.Contains(res.SQL, "?") {
		t.Errorf("expected ? placeholder in %q", res.SQL)
	}
}

func TestTranspileAdd(t *testing.T) {
	res := transpileText(t, "add users with name = 'bob', active = true returning id", dialect.PostgreSQL, Literal)
	if !strings.Contains(res.SQL, "INSERT") {
		t.Errorf("expected INSERT in %q", res.SQL)
	}
	if !strings.Contains(res.SQL, "RETURNING") {
		t.Errorf("expected RETURNING in %q", res.SQL)
	}
}

func TestTranspileSet(t *testing.T) {
	res := transpileText(t, "set users with active = false where id = 1", dialect.PostgreSQL, Literal)
	if !strings.Contains(res.SQL, "UPDATE") {
		t.Errorf("expected UPDATE in %q", res.SQL)
	}
}

func TestTranspileDel(t *testing.T) {
	res := transpileText(t, "del users where id = 1", dialect.PostgreSQL, Literal)
	if !strings.Contains(res.SQL, "DELETE") {
		t.Errorf("expected DELETE in %q", res.SQL)
	}
}

func TestTranspileUnknownDialectErrors(t *testing.T) {
	cmd, err := parser.Parse("get users")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Transpile(cmd, dialect.Name("bogus"), Literal); err == nil {
		t.Fatal("expected an error for an unknown dialect")
	}
}
