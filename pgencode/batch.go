package pgencode

import (
	"github.com/qail-lang/qail/ir"
	"github.com/qail-lang/qail/pgproto"
)

// EncodeSimpleQuery renders cmd via the AST-native walker (literal mode,
// values inlined) and wraps it in a 'Q' Query message, per spec.md §4.F's
// simple-query mode.
func EncodeSimpleQuery(cmd *ir.Command) []byte {
	sql, _ := literalSQL(cmd)
	return pgproto.EncodeSimpleQuery(sql)
}

func literalSQL(cmd *ir.Command) (string, []ir.Value) {
	// Literal-mode rendering reuses the fast-path walker's structure by
	// asking transpile for literal SQL when the command can't take the
	// direct walk (DDL/CTE/set-ops); the common GET/SET/ADD/DEL path still
	// renders directly since sqlText is parameterized-aware only for
	// placeholders, which literal mode never emits.
	return sqlTextLiteral(cmd)
}

// Bound is one prepared statement + parameter set to encode as part of an
// extended-query request sequence.
type Bound struct {
	StmtName string
	Params   []ParamBinding
}

// ParamBinding is one bind parameter rendered to wire bytes.
type ParamBinding struct {
	Data   []byte
	Format int16
	IsNull bool
}

func (b ParamBinding) toWire() pgproto.ParamValue {
	return pgproto.ParamValue{Data: b.Data, Format: b.Format, IsNull: b.IsNull}
}

// EncodeExtendedQuery builds Parse+Bind+Describe(portal)+Execute for one
// command. Parse is emitted only when sql is non-empty; pass sql="" to
// bind the already-prepared statement stmtName without re-parsing it.
func EncodeExtendedQuery(stmtName, sql string, paramTypeOIDs []int32, params []ParamBinding, maxRows int32) []byte {
	var out []byte
	if sql != "" {
		out = append(out, pgproto.EncodeParse(stmtName, sql, paramTypeOIDs)...)
	}
	wireParams := make([]pgproto.ParamValue, len(params))
	for i, p := range params {
		wireParams[i] = p.toWire()
	}
	out = append(out, pgproto.EncodeBind("", stmtName, wireParams, nil)...)
	out = append(out, pgproto.EncodeDescribe(pgproto.DescribePortal, "")...)
	out = append(out, pgproto.EncodeExecute("", maxRows)...)
	return out
}

// EncodeBatch concatenates N bind+execute request sequences into one
// buffer with a Sync inserted every syncEvery requests (syncEvery<=0 means
// a single trailing Sync for the whole batch), per spec.md §4.F/§4.I.
func EncodeBatch(requests [][]byte, syncEvery int) []byte {
	var out []byte
	count := 0
	for _, req := range requests {
		out = append(out, req...)
		count++
		if syncEvery > 0 && count%syncEvery == 0 {
			out = append(out, pgproto.EncodeSync()...)
		}
	}
	if syncEvery <= 0 || count%syncEvery != 0 {
		out = append(out, pgproto.EncodeSync()...)
	}
	return out
}
