package pgproto

import "encoding/binary"

// sslRequestCode is the magic number 80877103 that identifies an
// SSLRequest rather than a StartupMessage on the wire (spec.md §4.G).
const sslRequestCode = 80877103

// cancelRequestCode identifies a CancelRequest (spec.md §4.G).
const cancelRequestCode = 80877102

// protocolVersion3 is the StartupMessage protocol version (major=3, minor=0).
const protocolVersion3 = 3 << 16

// EncodeSSLRequest builds the 8-byte SSLRequest message.
func EncodeSSLRequest() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], 8)
	binary.BigEndian.PutUint32(buf[4:8], sslRequestCode)
	return buf
}

// EncodeStartupMessage builds StartupMessage{user, database,
// application_name, client_encoding='UTF8'} plus any extra parameters.
func EncodeStartupMessage(user, database, applicationName string, extra map[string]string) []byte {
	w := NewWriter()
	lenPos := w.BeginMessage(0)
	w.WriteInt32(protocolVersion3)
	w.WriteCString("user")
	w.WriteCString(user)
	if database != "" {
		w.WriteCString("database")
		w.WriteCString(database)
	}
	if applicationName != "" {
		w.WriteCString("application_name")
		w.WriteCString(applicationName)
	}
	w.WriteCString("client_encoding")
	w.WriteCString("UTF8")
	for k, v := range extra {
		w.WriteCString(k)
		w.WriteCString(v)
	}
	w.WriteByte(0)
	w.EndMessage(lenPos)
	return w.Flush()
}

// EncodeCancelRequest builds the CancelRequest message sent on a fresh TCP
// connection to interrupt a running query (spec.md §4.G Cancellation).
func EncodeCancelRequest(pid, secret int32) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint32(buf[0:4], 16)
	binary.BigEndian.PutUint32(buf[4:8], cancelRequestCode)
	binary.BigEndian.PutUint32(buf[8:12], uint32(pid))
	binary.BigEndian.PutUint32(buf[12:16], uint32(secret))
	return buf
}

// EncodePasswordMessage builds a PasswordMessage ('p') carrying either a
// plain/MD5-hashed password or a raw SASL response payload.
func EncodePasswordMessage(payload string) []byte {
	w := NewWriter()
	lenPos := w.BeginMessage(FrontendPassword)
	w.WriteCString(payload)
	w.EndMessage(lenPos)
	return w.Flush()
}

// EncodeSASLInitialResponse builds a SASLInitialResponse 'p' message: a
// mechanism name, cstring-terminated, followed by the length-prefixed
// initial client response.
func EncodeSASLInitialResponse(mechanism, initialResponse string) []byte {
	w := NewWriter()
	lenPos := w.BeginMessage(FrontendPassword)
	w.WriteCString(mechanism)
	w.WriteInt32(int32(len(initialResponse)))
	w.WriteBytes([]byte(initialResponse))
	w.EndMessage(lenPos)
	return w.Flush()
}

// EncodeSASLResponse builds a SASLResponse 'p' message carrying the raw
// client-final-message bytes (no mechanism name, no length prefix).
func EncodeSASLResponse(response string) []byte {
	w := NewWriter()
	lenPos := w.BeginMessage(FrontendPassword)
	w.WriteBytes([]byte(response))
	w.EndMessage(lenPos)
	return w.Flush()
}

// EncodeTerminate builds the Terminate ('X') message.
func EncodeTerminate() []byte {
	w := NewWriter()
	lenPos := w.BeginMessage(FrontendTerminate)
	w.EndMessage(lenPos)
	return w.Flush()
}

// EncodeSimpleQuery builds a Query ('Q') message wrapping a raw SQL string.
func EncodeSimpleQuery(sql string) []byte {
	w := NewWriter()
	lenPos := w.BeginMessage(FrontendQuery)
	w.WriteCString(sql)
	w.EndMessage(lenPos)
	return w.Flush()
}

// EncodeFlush builds the Flush ('H') message.
func EncodeFlush() []byte {
	w := NewWriter()
	lenPos := w.BeginMessage(FrontendFlush)
	w.EndMessage(lenPos)
	return w.Flush()
}

// EncodeSync builds the Sync ('S') message.
func EncodeSync() []byte {
	w := NewWriter()
	lenPos := w.BeginMessage(FrontendSync)
	w.EndMessage(lenPos)
	return w.Flush()
}
