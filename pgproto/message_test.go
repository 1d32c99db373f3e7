package pgproto

import (
	"bytes"
	"testing"
)

func TestWriterBeginEndMessagePatchesLength(t *testing.T) {
	w := NewWriter()
	lenPos := w.BeginMessage(FrontendQuery)
	w.WriteCString("select 1")
	w.EndMessage(lenPos)
	out := w.Flush()

	if out[0] != FrontendQuery {
		t.Fatalf("got type byte %q, want %q", out[0], FrontendQuery)
	}
	r := NewReader(bytes.NewReader(out))
	msg, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if msg.Type != FrontendQuery {
		t.Errorf("Type = %q, want %q", msg.Type, FrontendQuery)
	}
	wantBody := "select 1\x00"
	if string(msg.Body) != wantBody {
		t.Errorf("Body = %q, want %q", msg.Body, wantBody)
	}
}

func TestReaderRoundTripsMultipleMessages(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(EncodeSync())
	buf.Write(EncodeFlush())

	r := NewReader(&buf)
	first, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("first ReadMessage failed: %v", err)
	}
	if first.Type != FrontendSync {
		t.Errorf("first.Type = %q, want Sync", first.Type)
	}
	second, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("second ReadMessage failed: %v", err)
	}
	if second.Type != FrontendFlush {
		t.Errorf("second.Type = %q, want Flush", second.Type)
	}
}

func TestReaderRejectsOversizedFrame(t *testing.T) {
	var hdr [5]byte
	hdr[0] = RowDescription
	// length field claims a body far beyond MaxFrameSize
	hdr[1], hdr[2], hdr[3], hdr[4] = 0x7f, 0xff, 0xff, 0xff
	r := NewReader(bytes.NewReader(hdr[:]))
	if _, err := r.ReadMessage(); err == nil {
		t.Fatal("expected an error for a frame exceeding MaxFrameSize")
	}
}

func TestReaderReturnsIOErrorOnTruncatedStream(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{'Z', 0, 0}))
	if _, err := r.ReadMessage(); err == nil {
		t.Fatal("expected an error for a truncated header")
	}
}
