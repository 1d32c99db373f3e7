package lexer

import (
	"testing"

	"github.com/qail-lang/qail/token"
)

func scanAll(t *testing.T, input string) []token.Item {
	t.Helper()
	l := New(input)
	var items []token.Item
	for {
		it := l.Next()
		items = append(items, it)
		if it.Type == token.EOF {
			return items
		}
	}
}

func TestLexerKeywordsAndIdents(t *testing.T) {
	items := scanAll(t, "get users fields id, name")
	want := []token.Token{token.GET, token.IDENT, token.FIELDS, token.IDENT, token.COMMA, token.IDENT, token.EOF}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d: %+v", len(items), len(want), items)
	}
	for i, tt := range want {
		if items[i].Type != tt {
			t.Errorf("item %d: got %s, want %s", i, items[i].Type, tt)
		}
	}
}

func TestLexerKeywordCaseInsensitive(t *testing.T) {
	items := scanAll(t, "GET Users WHERE")
	if items[0].Type != token.GET {
		t.Errorf("expected GET keyword, got %s", items[0].Type)
	}
	if items[1].Type != token.IDENT {
		t.Errorf("expected IDENT for table name, got %s", items[1].Type)
	}
	if items[2].Type != token.WHERE {
		t.Errorf("expected WHERE keyword, got %s", items[2].Type)
	}
}

func TestLexerOperators(t *testing.T) {
	items := scanAll(t, "!= <> <= >= ~= -> ->> || :: ^ @ !")
	want := []token.Token{
		token.NEQ, token.NEQ, token.LTE, token.GTE, token.FUZZY,
		token.ARROW, token.DARROW, token.CONCAT, token.COLON,
		token.CARET, token.AT, token.BANG, token.EOF,
	}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d: %+v", len(items), len(want), items)
	}
	for i, tt := range want {
		if items[i].Type != tt {
			t.Errorf("item %d: got %s, want %s", i, items[i].Type, tt)
		}
	}
}

func TestLexerStringLiteralEscaping(t *testing.T) {
	items := scanAll(t, `'it''s a test'`)
	if items[0].Type != token.STRING {
		t.Fatalf("expected STRING, got %s", items[0].Type)
	}
	if items[0].Value != "it's a test" {
		t.Errorf("got %q, want %q", items[0].Value, "it's a test")
	}
}

func TestLexerNumbers(t *testing.T) {
	items := scanAll(t, "123 1.5 1e10 1.5e-3")
	want := []token.Token{token.INT, token.FLOAT, token.FLOAT, token.FLOAT, token.EOF}
	for i, tt := range want {
		if items[i].Type != tt {
			t.Errorf("item %d: got %s, want %s", i, items[i].Type, tt)
		}
	}
}

func TestLexerParams(t *testing.T) {
	items := scanAll(t, "$1 :name")
	if items[0].Type != token.PARAM_POS || items[0].Value != "1" {
		t.Errorf("got %+v, want PARAM_POS '1'", items[0])
	}
	if items[1].Type != token.PARAM_NAMED || items[1].Value != "name" {
		t.Errorf("got %+v, want PARAM_NAMED 'name'", items[1])
	}
}

func TestLexerRawSQLAndQuotedIdent(t *testing.T) {
	items := scanAll(t, "`select 1` \"weird col\"")
	if items[0].Type != token.RAWSQL || items[0].Value != "select 1" {
		t.Errorf("got %+v", items[0])
	}
	if items[1].Type != token.IDENT || items[1].Value != "weird col" {
		t.Errorf("got %+v", items[1])
	}
}

func TestLexerLineComment(t *testing.T) {
	items := scanAll(t, "get -- a comment\nusers")
	if items[0].Type != token.GET {
		t.Fatalf("got %+v", items[0])
	}
	if items[1].Type != token.IDENT || items[1].Value != "users" {
		t.Errorf("comment was not skipped: got %+v", items[1])
	}
}

func TestLexerPeekDoesNotConsume(t *testing.T) {
	l := New("get users")
	peeked := l.Peek()
	if peeked.Type != token.GET {
		t.Fatalf("peek got %s, want GET", peeked.Type)
	}
	next := l.Next()
	if next.Type != token.GET {
		t.Fatalf("next after peek got %s, want GET", next.Type)
	}
	second := l.Next()
	if second.Type != token.IDENT {
		t.Fatalf("second next got %s, want IDENT", second.Type)
	}
}

func TestLexerPositionTracking(t *testing.T) {
	items := scanAll(t, "get\nusers")
	if items[0].Pos.Line != 1 {
		t.Errorf("get: got line %d, want 1", items[0].Pos.Line)
	}
	if items[1].Pos.Line != 2 {
		t.Errorf("users: got line %d, want 2", items[1].Pos.Line)
	}
}

func TestLexerIllegalChar(t *testing.T) {
	items := scanAll(t, "#")
	if items[0].Type != token.ILLEGAL {
		t.Errorf("got %s, want ILLEGAL", items[0].Type)
	}
}

func TestGetPutRoundTrip(t *testing.T) {
	l := Get("get users")
	it := l.Next()
	if it.Type != token.GET {
		t.Fatalf("got %s, want GET", it.Type)
	}
	Put(l)

	l2 := Get("set users")
	it2 := l2.Next()
	if it2.Type != token.SET {
		t.Fatalf("pooled lexer not reset: got %s, want SET", it2.Type)
	}
	Put(l2)
}
