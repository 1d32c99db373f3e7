package copyfmt

import (
	"strings"
	"testing"

	"github.com/qail-lang/qail/dialect"
	"github.com/qail-lang/qail/ir"
)

func TestStatementWithColumns(t *testing.T) {
	gen, _ := dialect.For(dialect.PostgreSQL)
	got := Statement(gen, "users", "id", "name")
	want := `COPY "users" ("id", "name") FROM STDIN`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStatementWithoutColumns(t *testing.T) {
	gen, _ := dialect.For(dialect.PostgreSQL)
	got := Statement(gen, "users")
	want := `COPY "users" FROM STDIN`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEncodeRowEscaping(t *testing.T) {
	row := []ir.Value{ir.String("a\tb\nc\\d"), ir.Null(), ir.Int(42)}
	got := string(EncodeRow(nil, row))
	want := "a\\tb\\nc\\\\d\t\\N\t42\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEncodeRowsMultipleRows(t *testing.T) {
	rows := [][]ir.Value{
		{ir.Int(1)},
		{ir.Int(2)},
	}
	got := string(EncodeRows(rows))
	if strings.Count(got, "\n") != 2 {
		t.Errorf("expected 2 lines, got %q", got)
	}
}

func TestBatchesSplitsAtBatchSize(t *testing.T) {
	rows := make([][]ir.Value, BatchSize+5)
	for i := range rows {
		rows[i] = []ir.Value{ir.Int(int64(i))}
	}
	batches := Batches(rows)
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
}

func TestBatchesEmpty(t *testing.T) {
	if got := Batches(nil); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}
