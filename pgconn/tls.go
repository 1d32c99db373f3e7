package pgconn

import (
	"crypto/tls"
	"io"

	"github.com/qail-lang/qail/pgproto"
	"github.com/qail-lang/qail/qailerr"
)

// negotiateTLS sends SSLRequest and, if the server replies 'S', upgrades
// the connection to TLS and replaces the frame reader, per spec.md §4.G.
// A reply of 'N' means the server refuses TLS; the connection continues
// in cleartext.
func (c *Connection) negotiateTLS(tlsConfig *tls.Config) error {
	if _, err := c.conn.Write(pgproto.EncodeSSLRequest()); err != nil {
		return qailerr.Wrap(qailerr.IO, "writing SSLRequest", err)
	}
	reply := make([]byte, 1)
	if _, err := io.ReadFull(c.conn, reply); err != nil {
		return qailerr.Wrap(qailerr.IO, "reading SSLRequest reply", err)
	}
	switch reply[0] {
	case 'S':
		tlsConn := tls.Client(c.conn, tlsConfig)
		if err := tlsConn.Handshake(); err != nil {
			return qailerr.Wrap(qailerr.IO, "TLS handshake failed", err)
		}
		c.conn = tlsConn
		c.reader = pgproto.NewReader(tlsConn)
		return nil
	case 'N':
		return nil
	default:
		return &qailerr.Error{Kind: qailerr.Protocol, Message: "unexpected SSLRequest reply byte"}
	}
}
