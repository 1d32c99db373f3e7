// Package copyfmt implements the PostgreSQL text COPY row format of
// spec.md §4.J: TAB-separated fields, backslash escapes, "\N" for NULL,
// LF row terminators.
//
// Grounded on lib/pq's CopyIn/CopyInSchema statement-text builders
// (other_examples/aa285d74_lib-pq__copy_test.go.go) for the
// `COPY "table" ("col", ...) FROM STDIN` statement shape, and on
// spec.md §4.J's escape table directly for the row encoding itself,
// since the retrieval pack's COPY coverage is test-only and does not
// carry a standalone row encoder to imitate.
package copyfmt

import (
	"strings"

	"github.com/qail-lang/qail/dialect"
	"github.com/qail-lang/qail/ir"
)

// BatchSize is the row count per CopyData transmission that spec.md §4.J
// calls out as empirically throughput-maximizing.
const BatchSize = 10_000

// Statement builds the `COPY table(cols...) FROM STDIN` command text,
// quoting the table and column identifiers for gen.
func Statement(gen dialect.SqlGenerator, table string, columns ...string) string {
	var sb strings.Builder
	sb.WriteString("COPY ")
	sb.WriteString(gen.QuoteIdentifier(table))
	if len(columns) > 0 {
		sb.WriteString(" (")
		for i, c := range columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(gen.QuoteIdentifier(c))
		}
		sb.WriteString(")")
	}
	sb.WriteString(" FROM STDIN")
	return sb.String()
}

// EncodeRow appends one COPY-format row (fields joined by TAB, terminated
// by LF) to dst and returns the extended slice.
func EncodeRow(dst []byte, row []ir.Value) []byte {
	for i, v := range row {
		if i > 0 {
			dst = append(dst, '\t')
		}
		dst = appendField(dst, v)
	}
	dst = append(dst, '\n')
	return dst
}

// EncodeRows encodes every row via EncodeRow and returns the full buffer,
// one row per line.
func EncodeRows(rows [][]ir.Value) []byte {
	var buf []byte
	for _, row := range rows {
		buf = EncodeRow(buf, row)
	}
	return buf
}

// Batches splits rows into chunks of at most BatchSize rows, each
// pre-encoded into COPY text, ready to hand to pgproto.EncodeCopyData one
// chunk at a time.
func Batches(rows [][]ir.Value) [][]byte {
	if len(rows) == 0 {
		return nil
	}
	var out [][]byte
	for start := 0; start < len(rows); start += BatchSize {
		end := start + BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, EncodeRows(rows[start:end]))
	}
	return out
}

func appendField(dst []byte, v ir.Value) []byte {
	if v.IsNull() {
		return append(dst, '\\', 'N')
	}
	s, ok := v.AsString()
	if !ok {
		s = v.String()
	}
	for _, r := range s {
		switch r {
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		default:
			dst = append(dst, string(r)...)
		}
	}
	return dst
}
