// Package ir defines the QAIL Intermediate Representation: the typed
// command tree that the parser produces and the encoder/transpiler consume.
package ir

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KNull ValueKind = iota
	KBool
	KInt
	KFloat
	KString
	KParam      // positional parameter, $n
	KNamedParam // named parameter, :name
	KFunction   // bare function reference used as a value, e.g. NOW()
	KArray
	KSubquery
	KColumn
	KUuid
	KNullUuid
)

// Value is the tagged variant for literals, parameters and other leaf
// values that can appear wherever SQL expects a scalar.
//
// Array is homogeneous in dialect emission but not structurally enforced:
// callers may build a Value{Kind: KArray} whose Elems mix kinds, and the
// transpiler will emit whatever it's given.
type Value struct {
	Kind       ValueKind
	Bool       bool
	Int        int64
	Float      float64
	Str        string // String, Function name, Column qualified-name, Uuid text
	ParamIndex uint32 // KParam
	ParamName  string // KNamedParam
	Elems      []Value // KArray
	Subquery   *Command // KSubquery
}

func Null() Value                 { return Value{Kind: KNull} }
func Bool(b bool) Value           { return Value{Kind: KBool, Bool: b} }
func Int(i int64) Value           { return Value{Kind: KInt, Int: i} }
func Float(f float64) Value       { return Value{Kind: KFloat, Float: f} }
func String(s string) Value       { return Value{Kind: KString, Str: s} }
func Param(idx uint32) Value      { return Value{Kind: KParam, ParamIndex: idx} }
func NamedParam(name string) Value { return Value{Kind: KNamedParam, ParamName: name} }
func Function(name string) Value  { return Value{Kind: KFunction, Str: name} }
func Array(elems ...Value) Value  { return Value{Kind: KArray, Elems: elems} }
func Subquery(cmd *Command) Value { return Value{Kind: KSubquery, Subquery: cmd} }
func Column(qualified string) Value { return Value{Kind: KColumn, Str: qualified} }
func Uuid(id uuid.UUID) Value     { return Value{Kind: KUuid, Str: id.String()} }
func NullUuid() Value             { return Value{Kind: KNullUuid} }

// IsNull reports whether the value is a SQL NULL (either untyped or a
// typed null UUID).
func (v Value) IsNull() bool { return v.Kind == KNull || v.Kind == KNullUuid }

// AsInt64 coerces the value to an int64 if its kind carries one.
func (v Value) AsInt64() (int64, bool) {
	switch v.Kind {
	case KInt:
		return v.Int, true
	case KFloat:
		return int64(v.Float), true
	case KString:
		if n, err := strconv.ParseInt(v.Str, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// AsFloat64 coerces the value to a float64 if its kind carries one.
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KFloat:
		return v.Float, true
	case KInt:
		return float64(v.Int), true
	case KString:
		if f, err := strconv.ParseFloat(v.Str, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// AsString coerces the value to its textual form.
func (v Value) AsString() (string, bool) {
	switch v.Kind {
	case KString, KColumn, KFunction, KUuid:
		return v.Str, true
	case KNamedParam:
		return v.ParamName, true
	case KInt:
		return strconv.FormatInt(v.Int, 10), true
	case KFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64), true
	case KBool:
		return strconv.FormatBool(v.Bool), true
	}
	return "", false
}

// AsBool coerces the value to a bool if its kind carries one.
func (v Value) AsBool() (bool, bool) {
	if v.Kind == KBool {
		return v.Bool, true
	}
	return false, false
}

func (v Value) String() string {
	switch v.Kind {
	case KNull, KNullUuid:
		return "NULL"
	case KBool:
		return strconv.FormatBool(v.Bool)
	case KInt:
		return strconv.FormatInt(v.Int, 10)
	case KFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KString:
		return v.Str
	case KParam:
		return fmt.Sprintf("$%d", v.ParamIndex)
	case KNamedParam:
		return ":" + v.ParamName
	case KFunction:
		return v.Str + "()"
	case KArray:
		return fmt.Sprintf("%v", v.Elems)
	case KSubquery:
		return "(subquery)"
	case KColumn:
		return v.Str
	case KUuid:
		return v.Str
	}
	return "<invalid value>"
}
