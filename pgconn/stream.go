package pgconn

import "net"

// stream is the polymorphic connection stream spec.md §9 asks for: a
// closed variant over {Tcp, Tls, Unix}, exposed as a small interface
// rather than a sum type since Go lets net.Conn serve all three directly.
type stream interface {
	net.Conn
}
