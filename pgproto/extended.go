package pgproto

// Extended-query frontend message encoders (spec.md §4.F): Parse, Bind,
// Describe, Execute, Close, Sync. These operate on already-rendered SQL
// text and a parameter side-vector; pgencode is what avoids building that
// SQL text via an intermediate ir.Command -> String pass on the hot path.

// ParamValue is one bind parameter: either its text or binary encoding.
// IsNull marks a SQL NULL regardless of Format.
type ParamValue struct {
	Data   []byte
	Format int16 // 0 = text, 1 = binary
	IsNull bool
}

// EncodeParse builds a 'P' Parse message: prepared statement name (may be
// empty for the unnamed statement), SQL text, and optional parameter type
// OIDs (may be omitted by passing nil, letting the server infer).
func EncodeParse(stmtName, sql string, paramTypeOIDs []int32) []byte {
	w := NewWriter()
	lenPos := w.BeginMessage(FrontendParse)
	w.WriteCString(stmtName)
	w.WriteCString(sql)
	w.WriteInt16(int16(len(paramTypeOIDs)))
	for _, oid := range paramTypeOIDs {
		w.WriteInt32(oid)
	}
	w.EndMessage(lenPos)
	return w.Flush()
}

// EncodeBind builds a 'B' Bind message binding portalName to stmtName with
// the given parameter values. Format codes default to text (0) per
// spec.md §4.F unless a param overrides it.
func EncodeBind(portalName, stmtName string, params []ParamValue, resultFormats []int16) []byte {
	w := NewWriter()
	lenPos := w.BeginMessage(FrontendBind)
	w.WriteCString(portalName)
	w.WriteCString(stmtName)

	w.WriteInt16(int16(len(params)))
	for _, p := range params {
		w.WriteInt16(p.Format)
	}

	w.WriteInt16(int16(len(params)))
	for _, p := range params {
		if p.IsNull {
			w.WriteInt32(-1)
			continue
		}
		w.WriteInt32(int32(len(p.Data)))
		w.WriteBytes(p.Data)
	}

	w.WriteInt16(int16(len(resultFormats)))
	for _, f := range resultFormats {
		w.WriteInt16(f)
	}
	w.EndMessage(lenPos)
	return w.Flush()
}

// DescribeTarget selects whether Describe targets a prepared statement
// ('S') or a portal ('P').
type DescribeTarget byte

const (
	DescribeStatement DescribeTarget = 'S'
	DescribePortal    DescribeTarget = 'P'
)

// EncodeDescribe builds a 'D' Describe message.
func EncodeDescribe(target DescribeTarget, name string) []byte {
	w := NewWriter()
	lenPos := w.BeginMessage(FrontendDescribe)
	w.WriteByte(byte(target))
	w.WriteCString(name)
	w.EndMessage(lenPos)
	return w.Flush()
}

// EncodeExecute builds an 'E' Execute message. maxRows == 0 means "no
// limit", matching the wire protocol's convention.
func EncodeExecute(portalName string, maxRows int32) []byte {
	w := NewWriter()
	lenPos := w.BeginMessage(FrontendExecute)
	w.WriteCString(portalName)
	w.WriteInt32(maxRows)
	w.EndMessage(lenPos)
	return w.Flush()
}

// CloseTarget selects whether Close targets a prepared statement or a
// portal, mirroring DescribeTarget.
type CloseTarget byte

const (
	CloseStatement CloseTarget = 'S'
	ClosePortal    CloseTarget = 'P'
)

// EncodeClose builds a 'C' Close message, used to evict a cached prepared
// statement (spec.md §4.H) or release a portal/cursor.
func EncodeClose(target CloseTarget, name string) []byte {
	w := NewWriter()
	lenPos := w.BeginMessage(FrontendClose)
	w.WriteByte(byte(target))
	w.WriteCString(name)
	w.EndMessage(lenPos)
	return w.Flush()
}

// EncodeCopyData wraps a chunk of already-encoded COPY row bytes in a 'd'
// CopyData message.
func EncodeCopyData(chunk []byte) []byte {
	w := NewWriter()
	lenPos := w.BeginMessage(FrontendCopyData)
	w.WriteBytes(chunk)
	w.EndMessage(lenPos)
	return w.Flush()
}

// EncodeCopyDone builds a 'c' CopyDone message.
func EncodeCopyDone() []byte {
	w := NewWriter()
	lenPos := w.BeginMessage(FrontendCopyDone)
	w.EndMessage(lenPos)
	return w.Flush()
}

// EncodeCopyFail builds an 'f' CopyFail message, aborting an in-progress
// COPY FROM STDIN with the given reason.
func EncodeCopyFail(reason string) []byte {
	w := NewWriter()
	lenPos := w.BeginMessage(FrontendCopyFail)
	w.WriteCString(reason)
	w.EndMessage(lenPos)
	return w.Flush()
}
