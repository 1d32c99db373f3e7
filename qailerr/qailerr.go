// Package qailerr implements the error taxonomy spec.md §7 as typed
// structs rather than sentinel values, so callers can classify with
// errors.As while still reading a caller-useful message.
package qailerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error without requiring a distinct Go type per kind.
type Kind int

const (
	Parse Kind = iota
	InvalidAction
	InvalidOperator
	InvalidValue
	MissingSymbol
	IO
	Protocol
	Auth
	Database
	Timeout
	PoolExhausted
	TypeError
)

func (k Kind) String() string {
	switch k {
	case Parse:
		return "Parse"
	case InvalidAction:
		return "InvalidAction"
	case InvalidOperator:
		return "InvalidOperator"
	case InvalidValue:
		return "InvalidValue"
	case MissingSymbol:
		return "MissingSymbol"
	case IO:
		return "IO"
	case Protocol:
		return "Protocol"
	case Auth:
		return "Auth"
	case Database:
		return "Database"
	case Timeout:
		return "Timeout"
	case PoolExhausted:
		return "PoolExhausted"
	case TypeError:
		return "TypeError"
	}
	return "Unknown"
}

// Error is the taxonomied error every exported QAIL operation returns.
// Kind drives errors.Is/errors.As classification; the fields below that
// cross-cut kinds (position, Message, wrapped cause, database diagnostics) are
// populated only for the kinds that carry them.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// Parse-only.
	Offset int
	Line   int
	Column int

	// Database-only: a server ErrorResponse preserved verbatim (spec §7).
	SQLState   string
	Detail     string
	Hint       string
	Table      string
	Column_    string
	Constraint string
}

func (e *Error) Error() string {
	if e.Kind == Parse {
		return fmt.Sprintf("offset %d (line %d, column %d): %s", e.Offset, e.Line, e.Column, e.Message)
	}
	if e.Kind == Database && e.SQLState != "" {
		return fmt.Sprintf("database error %s: %s", e.SQLState, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports kind equality so errors.Is(err, &Error{Kind: IO}) works
// without matching on Message/Cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, message string) *Error { return &Error{Kind: kind, Message: message} }

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NewParse builds a Parse-kind error with position fields, matching
// parser.ParseError's field shape and Error() format exactly.
func NewParse(offset, line, column int, message string) *Error {
	return &Error{Kind: Parse, Offset: offset, Line: line, Column: column, Message: message}
}

// NewDatabase builds a Database-kind error from ErrorResponse fields,
// preserved verbatim per spec.md §7.
func NewDatabase(sqlState, message, detail, hint, table, column, constraint string) *Error {
	return &Error{
		Kind:       Database,
		Message:    message,
		SQLState:   sqlState,
		Detail:     detail,
		Hint:       hint,
		Table:      table,
		Column_:    column,
		Constraint: constraint,
	}
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
