package token

import "testing"

func TestTokenClassification(t *testing.T) {
	if !STRING.IsLiteral() {
		t.Error("STRING should be a literal")
	}
	if EQ.IsLiteral() {
		t.Error("EQ should not be a literal")
	}
	if !PLUS.IsOperator() {
		t.Error("PLUS should be an operator")
	}
	if GET.IsOperator() {
		t.Error("GET should not be an operator")
	}
	if !WHERE.IsKeyword() {
		t.Error("WHERE should be a keyword")
	}
	if IDENT.IsKeyword() {
		t.Error("IDENT should not be a keyword")
	}
}

func TestTokenString(t *testing.T) {
	cases := map[Token]string{
		GET:   "get",
		WHERE: "where",
		EQ:    "=",
		ARROW: "->",
	}
	for tok, want := range cases {
		if got := tok.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", int(tok), got, want)
		}
	}
}

func TestKeywordsTableCoversAllKeywordNames(t *testing.T) {
	for tok, name := range tokenNames {
		if !Token(tok).IsKeyword() || name == "" {
			continue
		}
		got, ok := Keywords[name]
		if !ok {
			t.Errorf("keyword %q missing from Keywords table", name)
			continue
		}
		if got != Token(tok) {
			t.Errorf("Keywords[%q] = %v, want %v", name, got, tok)
		}
	}
}

func TestPosIsValid(t *testing.T) {
	if (Pos{}).IsValid() {
		t.Error("zero Pos should not be valid")
	}
	if !(Pos{Line: 1}).IsValid() {
		t.Error("Pos with Line 1 should be valid")
	}
}
