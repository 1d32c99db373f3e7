package qailerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewAndErrorMessage(t *testing.T) {
	err := New(Auth, "bad password")
	if got, want := err.Error(), "Auth: bad password"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWrapIncludesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(IO, "read failed", cause)
	if got := err.Error(); got != "IO: read failed: connection reset" {
		t.Errorf("got %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestNewParseFormatsPosition(t *testing.T) {
	err := NewParse(12, 2, 3, "unexpected token")
	want := "offset 12 (line 2, column 3): unexpected token"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNewDatabasePreservesFields(t *testing.T) {
	err := NewDatabase("23505", "duplicate key", "Key (id)=(1) already exists.", "", "users", "id", "users_pkey")
	if err.Kind != Database {
		t.Errorf("Kind = %v, want Database", err.Kind)
	}
	want := "database error 23505: duplicate key"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if err.Constraint != "users_pkey" {
		t.Errorf("Constraint = %q, want users_pkey", err.Constraint)
	}
}

func TestIsMatchesByKindOnly(t *testing.T) {
	sentinel := &Error{Kind: PoolExhausted}
	err := New(PoolExhausted, "timed out waiting for a connection")
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should match on Kind regardless of Message")
	}
	other := New(Timeout, "timed out waiting for a connection")
	if errors.Is(other, sentinel) {
		t.Error("errors.Is should not match across different Kinds")
	}
}

func TestIsKindHelper(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(InvalidValue, "bad value"))
	if !IsKind(err, InvalidValue) {
		t.Error("IsKind should see through fmt.Errorf wrapping")
	}
	if IsKind(err, Parse) {
		t.Error("IsKind should not match the wrong kind")
	}
}

func TestKindString(t *testing.T) {
	if Parse.String() != "Parse" {
		t.Errorf("Parse.String() = %q", Parse.String())
	}
	if Kind(999).String() != "Unknown" {
		t.Errorf("unknown kind should stringify to Unknown, got %q", Kind(999).String())
	}
}
