package pgproto

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/qail-lang/qail/qailerr"
)

// FieldDescription is one column of a RowDescription ('T') message.
type FieldDescription struct {
	Name         string
	TableOID     int32
	ColumnAttNum int16
	TypeOID      int32
	TypeSize     int16
	TypeModifier int32
	FormatCode   int16
}

// ParseRowDescription decodes a 'T' message body.
func ParseRowDescription(body []byte) ([]FieldDescription, error) {
	if len(body) < 2 {
		return nil, &qailerr.Error{Kind: qailerr.Protocol, Message: "short RowDescription"}
	}
	count := int(binary.BigEndian.Uint16(body[0:2]))
	pos := 2
	fields := make([]FieldDescription, 0, count)
	for i := 0; i < count; i++ {
		name, n, err := readCString(body, pos)
		if err != nil {
			return nil, err
		}
		pos = n
		if pos+18 > len(body) {
			return nil, &qailerr.Error{Kind: qailerr.Protocol, Message: "truncated RowDescription field"}
		}
		f := FieldDescription{
			Name:         name,
			TableOID:     int32(binary.BigEndian.Uint32(body[pos : pos+4])),
			ColumnAttNum: int16(binary.BigEndian.Uint16(body[pos+4 : pos+6])),
			TypeOID:      int32(binary.BigEndian.Uint32(body[pos+6 : pos+10])),
			TypeSize:     int16(binary.BigEndian.Uint16(body[pos+10 : pos+12])),
			TypeModifier: int32(binary.BigEndian.Uint32(body[pos+12 : pos+16])),
			FormatCode:   int16(binary.BigEndian.Uint16(body[pos+16 : pos+18])),
		}
		pos += 18
		fields = append(fields, f)
	}
	return fields, nil
}

// ParseDataRow decodes a 'D' message body into a NULL-aware row: each
// column is nil for SQL NULL or the raw (text or binary format) bytes
// otherwise, per spec.md §6's row format.
func ParseDataRow(body []byte) ([][]byte, error) {
	if len(body) < 2 {
		return nil, &qailerr.Error{Kind: qailerr.Protocol, Message: "short DataRow"}
	}
	count := int(binary.BigEndian.Uint16(body[0:2]))
	pos := 2
	row := make([][]byte, count)
	for i := 0; i < count; i++ {
		if pos+4 > len(body) {
			return nil, &qailerr.Error{Kind: qailerr.Protocol, Message: "truncated DataRow length"}
		}
		length := int32(binary.BigEndian.Uint32(body[pos : pos+4]))
		pos += 4
		if length < 0 {
			row[i] = nil
			continue
		}
		if pos+int(length) > len(body) {
			return nil, &qailerr.Error{Kind: qailerr.Protocol, Message: "truncated DataRow value"}
		}
		val := make([]byte, length)
		copy(val, body[pos:pos+int(length)])
		row[i] = val
		pos += int(length)
	}
	return row, nil
}

// ParseCommandComplete extracts the command tag text from a 'C' message,
// e.g. "INSERT 0 3", "SELECT 10", "UPDATE 1".
func ParseCommandComplete(body []byte) (string, error) {
	tag, _, err := readCString(body, 0)
	return tag, err
}

// AffectedRows parses the row count out of a command tag, returning 0 for
// tags that carry none (e.g. "BEGIN").
func AffectedRows(tag string) int64 {
	parts := strings.Fields(tag)
	if len(parts) == 0 {
		return 0
	}
	last := parts[len(parts)-1]
	n, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// FieldsMessage is a parsed ErrorResponse/NoticeResponse: a set of
// single-byte-tagged, NUL-terminated fields, per the PostgreSQL field
// codes (S severity, C sqlstate, M message, D detail, H hint, t table,
// c column, n constraint).
type FieldsMessage struct {
	Severity   string
	SQLState   string
	Message    string
	Detail     string
	Hint       string
	Table      string
	Column     string
	Constraint string
}

// ParseFieldsMessage decodes an ErrorResponse ('E') or NoticeResponse
// ('N') body.
func ParseFieldsMessage(body []byte) (FieldsMessage, error) {
	var m FieldsMessage
	pos := 0
	for pos < len(body) {
		tag := body[pos]
		pos++
		if tag == 0 {
			break
		}
		val, n, err := readCString(body, pos)
		if err != nil {
			return m, err
		}
		pos = n
		switch tag {
		case 'S':
			m.Severity = val
		case 'C':
			m.SQLState = val
		case 'M':
			m.Message = val
		case 'D':
			m.Detail = val
		case 'H':
			m.Hint = val
		case 't':
			m.Table = val
		case 'c':
			m.Column = val
		case 'n':
			m.Constraint = val
		}
	}
	return m, nil
}

// ToError converts a parsed ErrorResponse into the taxonomied Database
// error, preserving every field verbatim per spec.md §7.
func (m FieldsMessage) ToError() *qailerr.Error {
	return qailerr.NewDatabase(m.SQLState, m.Message, m.Detail, m.Hint, m.Table, m.Column, m.Constraint)
}

func readCString(body []byte, pos int) (string, int, error) {
	end := pos
	for end < len(body) && body[end] != 0 {
		end++
	}
	if end >= len(body) {
		return "", 0, &qailerr.Error{Kind: qailerr.Protocol, Message: "unterminated string in message"}
	}
	return string(body[pos:end]), end + 1, nil
}

// ParseBackendKeyData decodes a 'K' message: process ID and secret key,
// captured for out-of-band CancelRequest (spec.md §4.G).
func ParseBackendKeyData(body []byte) (pid, secret int32, err error) {
	if len(body) < 8 {
		return 0, 0, &qailerr.Error{Kind: qailerr.Protocol, Message: "short BackendKeyData"}
	}
	return int32(binary.BigEndian.Uint32(body[0:4])), int32(binary.BigEndian.Uint32(body[4:8])), nil
}

// ParseParameterStatus decodes an 'S' message into a (name, value) pair.
func ParseParameterStatus(body []byte) (name, value string, err error) {
	name, pos, err := readCString(body, 0)
	if err != nil {
		return "", "", err
	}
	value, _, err = readCString(body, pos)
	return name, value, err
}

// ReadyForQueryState is the trailing status byte of 'Z': the only
// authoritative source of transaction state per spec.md §4.G.
type ReadyForQueryState byte

const (
	Idle              ReadyForQueryState = 'I'
	InTransaction     ReadyForQueryState = 'T'
	InFailedTransaction ReadyForQueryState = 'E'
)

func ParseReadyForQuery(body []byte) (ReadyForQueryState, error) {
	if len(body) < 1 {
		return 0, &qailerr.Error{Kind: qailerr.Protocol, Message: "short ReadyForQuery"}
	}
	return ReadyForQueryState(body[0]), nil
}
