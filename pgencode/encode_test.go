package pgencode

import (
	"strings"
	"testing"

	"github.com/qail-lang/qail/ir"
	"github.com/qail-lang/qail/parser"
	"github.com/qail-lang/qail/pgproto"
)

func parseCmd(t *testing.T, text string) *ir.Command {
	t.Helper()
	cmd, err := parser.Parse(text)
	if err != nil {
		t.Fatalf("parser.Parse(%q) failed: %v", text, err)
	}
	return cmd
}

func TestCanFastPathCoversSimpleDML(t *testing.T) {
	cases := map[string]bool{
		"get users where id = 1":                true,
		"set users with active = true":          true,
		"add users with id = 1":                 true,
		"del users where id = 1":                true,
		"make users fields id int":              false,
		"get orders left join customers on true": false,
	}
	for text, want := range cases {
		cmd := parseCmd(t, text)
		if got := canFastPath(cmd); got != want {
			t.Errorf("canFastPath(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestSqlTextParameterizedFastPath(t *testing.T) {
	cmd := parseCmd(t, "get users where id = 1")
	sql, params := sqlText(cmd)
	if !strings.Contains(sql, "$1") {
		t.Errorf("expected a placeholder in %q", sql)
	}
	if len(params) != 1 {
		t.Fatalf("params = %d, want 1", len(params))
	}
}

func TestSqlTextLiteralFastPath(t *testing.T) {
	cmd := parseCmd(t, "get users where id = 1")
	sql, params := sqlTextLiteral(cmd)
	if strings.Contains(sql, "$1") {
		t.Errorf("literal mode should not emit placeholders: %q", sql)
	}
	if !strings.Contains(sql, "1") {
		t.Errorf("expected the literal value inlined in %q", sql)
	}
	if params != nil {
		t.Errorf("literal mode should not return params, got %v", params)
	}
}

func TestSqlTextFallsBackForDDL(t *testing.T) {
	cmd := parseCmd(t, "make widgets fields id int")
	sql, _ := sqlText(cmd)
	if !strings.Contains(strings.ToUpper(sql), "CREATE TABLE") {
		t.Errorf("expected a CREATE TABLE fallback, got %q", sql)
	}
}

func TestEncodeSimpleQueryWrapsInQMessage(t *testing.T) {
	cmd := parseCmd(t, "get users where id = 1")
	msg := EncodeSimpleQuery(cmd)
	if len(msg) == 0 || msg[0] != pgproto.FrontendQuery {
		t.Fatalf("expected a leading 'Q' type byte, got %v", msg[:min(5, len(msg))])
	}
}

func TestEncodeBatchInsertsSyncEveryK(t *testing.T) {
	reqs := [][]byte{{1}, {2}, {3}, {4}}
	out := EncodeBatch(reqs, 2)
	syncMsg := pgproto.EncodeSync()
	count := strings.Count(string(out), string(syncMsg))
	if count != 2 {
		t.Errorf("expected 2 Sync messages for 4 requests at syncEvery=2, got %d", count)
	}
}

func TestEncodeBatchSingleTrailingSync(t *testing.T) {
	reqs := [][]byte{{1}, {2}, {3}}
	out := EncodeBatch(reqs, 0)
	syncMsg := pgproto.EncodeSync()
	count := strings.Count(string(out), string(syncMsg))
	if count != 1 {
		t.Errorf("expected exactly 1 trailing Sync, got %d", count)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
