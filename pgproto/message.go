// Package pgproto implements PostgreSQL wire protocol v3 framing and
// message encode/decode, per spec.md §4.E/§6: a fixed
// [1-byte type][4-byte big-endian length][body] frame, and the backend/
// frontend message set "R S K Z T D C E N A G H W d c f p Q P B D E S X".
//
// Grounded on the wire-level constants and framing loop visible in
// qail-io-qail/qail-go/go/driver.go (an out-of-scope FFI shim, used here
// only as a reference for message byte layout) and written in
// machparse's io-heavy, error-returning style rather than copied from it.
package pgproto

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/qail-lang/qail/qailerr"
)

// Backend message type bytes (server -> client).
const (
	AuthenticationRequest byte = 'R'
	ParameterStatus       byte = 'S'
	BackendKeyData        byte = 'K'
	ReadyForQuery         byte = 'Z'
	RowDescription        byte = 'T'
	DataRow               byte = 'D'
	CommandComplete       byte = 'C'
	ErrorResponse         byte = 'E'
	NoticeResponse        byte = 'N'
	ParameterDescription  byte = 't'
	NotificationResponse  byte = 'A'
	CopyInResponse        byte = 'G'
	CopyOutResponse       byte = 'H'
	CopyBothResponse      byte = 'W'
	CopyData              byte = 'd'
	CopyDone              byte = 'c'
	PortalSuspended       byte = 's'
	EmptyQueryResponse    byte = 'I'
	NoData                byte = 'n'
	ParseComplete         byte = '1'
	BindComplete          byte = '2'
	CloseComplete         byte = '3'
	FunctionCallResponse  byte = 'V'
)

// Frontend message type bytes (client -> server).
const (
	FrontendQuery       byte = 'Q'
	FrontendParse       byte = 'P'
	FrontendBind        byte = 'B'
	FrontendDescribe    byte = 'D'
	FrontendExecute     byte = 'E'
	FrontendSync        byte = 'S'
	FrontendTerminate   byte = 'X'
	FrontendPassword    byte = 'p'
	FrontendCopyData    byte = 'd'
	FrontendCopyDone    byte = 'c'
	FrontendCopyFail    byte = 'f'
	FrontendFlush       byte = 'H'
	FrontendClose       byte = 'C'
	FrontendFunctionCall byte = 'F'
)

// MaxFrameSize bounds the read-side growable buffer, per spec.md §5's
// backpressure rule: exceeding it yields Protocol("frame too large").
const MaxFrameSize = 512 * 1024 * 1024

// Message is one decoded (type, body) frame. Startup-phase messages (which
// carry no type byte) are represented with Type == 0.
type Message struct {
	Type byte
	Body []byte
}

// Reader frames messages off a byte stream per spec.md §4.E: ensure a
// header, read length-4 body bytes, produce one (type, body) pair. No
// partial messages are ever returned.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 32*1024)}
}

// ReadMessage reads one typed message (post-startup framing).
func (fr *Reader) ReadMessage() (Message, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		return Message{}, wrapIOErr(err)
	}
	length := binary.BigEndian.Uint32(hdr[1:5])
	if length < 4 {
		return Message{}, &qailerr.Error{Kind: qailerr.Protocol, Message: "frame length smaller than header"}
	}
	bodyLen := int(length) - 4
	if bodyLen > MaxFrameSize {
		return Message{}, &qailerr.Error{Kind: qailerr.Protocol, Message: "frame too large"}
	}
	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(fr.r, body); err != nil {
			return Message{}, wrapIOErr(err)
		}
	}
	return Message{Type: hdr[0], Body: body}, nil
}

// ReadRawByte reads a single untyped byte from the stream, such as the
// one-byte reply to an SSLRequest before the typed protocol begins.
func (fr *Reader) ReadRawByte() (byte, error) {
	b, err := fr.r.ReadByte()
	if err != nil {
		return 0, wrapIOErr(err)
	}
	return b, nil
}

func wrapIOErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &qailerr.Error{Kind: qailerr.IO, Message: "connection closed", Cause: err}
	}
	return &qailerr.Error{Kind: qailerr.IO, Message: "read failed", Cause: err}
}

// Writer accumulates outgoing frames into a single buffer, matching the
// AST-native encoder's batch-write design (spec.md §4.F): callers build up
// many messages, then flush once.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }
func (w *Writer) Reset()        { w.buf = w.buf[:0] }

// BeginMessage writes the type byte and reserves space for the length,
// returning the buffer offset of the length field so EndMessage can patch
// it once the body is known.
func (w *Writer) BeginMessage(typ byte) int {
	if typ != 0 {
		w.buf = append(w.buf, typ)
	}
	pos := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	return pos
}

func (w *Writer) EndMessage(lengthPos int) {
	length := uint32(len(w.buf) - lengthPos)
	binary.BigEndian.PutUint32(w.buf[lengthPos:lengthPos+4], length)
}

func (w *Writer) WriteByte(b byte)    { w.buf = append(w.buf, b) }
func (w *Writer) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }
func (w *Writer) WriteInt16(v int16) {
	w.buf = append(w.buf, byte(v>>8), byte(v))
}
func (w *Writer) WriteInt32(v int32) {
	w.buf = append(w.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// WriteCString writes s followed by a NUL terminator, the string encoding
// every protocol identifier/value uses.
func (w *Writer) WriteCString(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// Flush returns the accumulated bytes and resets the writer for reuse.
func (w *Writer) Flush() []byte {
	out := make([]byte, len(w.buf))
	copy(out, w.buf)
	w.Reset()
	return out
}

func (w *Writer) String() string { return fmt.Sprintf("Writer{%d bytes pending}", len(w.buf)) }
