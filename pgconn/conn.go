// Package pgconn implements the PostgreSQL wire-protocol connection of
// spec.md §4.G: startup handshake, authentication (trust/MD5/SCRAM-SHA-256),
// transaction/cursor/COPY support, cancellation, and TLS/Unix polymorphism.
//
// Grounded on the connection lifecycle sketched in
// qail-io-qail/qail-go/go/driver.go (an out-of-scope FFI shim, read only
// for wire-level sequencing) and written in machparse's error-returning,
// no-panic style; the state machine and concurrency rules follow
// spec.md §4.G/§5 directly since no retrieved repo implements a full
// PostgreSQL client.
package pgconn

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/qail-lang/qail/pgproto"
	"github.com/qail-lang/qail/qailerr"
	"github.com/qail-lang/qail/scram"
	"github.com/qail-lang/qail/stmtcache"
)

// State enumerates the connection lifecycle states of spec.md §4.G.
type State int

const (
	StateDisconnected State = iota
	StateStartup
	StateAuth
	StateReady
	StateInTransaction
	StateInFailedTransaction
	StateBusy
	StateTerminated
)

// Connection is a single PostgreSQL wire-protocol connection. A
// Connection MUST NOT be used concurrently by two goroutines (spec.md
// §5); callers serialize access themselves or go through pool.Pool.
type Connection struct {
	cfg    *Config
	conn   stream
	reader *pgproto.Reader
	log    hclog.Logger

	mu    sync.Mutex
	state State

	pid    int32
	secret int32

	params map[string]string
	cache  *stmtcache.Cache

	broken bool
}

// Connect dials, negotiates TLS if configured, performs the startup
// handshake and authentication, and returns a Connection in StateReady.
func Connect(ctx context.Context, cfg *Config) (*Connection, error) {
	c := &Connection{
		cfg:    cfg,
		log:    cfg.Logger,
		state:  StateDisconnected,
		params: make(map[string]string),
		cache:  stmtcache.New(cfg.StatementCacheSize),
	}
	if c.log == nil {
		c.log = hclog.NewNullLogger()
	}

	netConn, err := c.dial(ctx)
	if err != nil {
		return nil, qailerr.Wrap(qailerr.IO, "dial failed", err)
	}
	c.conn = netConn
	c.reader = pgproto.NewReader(netConn)
	c.state = StateStartup

	if cfg.TLSConfig != nil {
		if err := c.negotiateTLS(cfg.TLSConfig); err != nil {
			netConn.Close()
			return nil, err
		}
	}

	if _, err := c.conn.Write(pgproto.EncodeStartupMessage(cfg.User, cfg.Database, cfg.ApplicationName, nil)); err != nil {
		netConn.Close()
		return nil, qailerr.Wrap(qailerr.IO, "writing startup message", err)
	}

	c.state = StateAuth
	if err := c.authenticate(); err != nil {
		netConn.Close()
		return nil, err
	}
	c.state = StateReady
	c.log.Debug("connection established", "pid", c.pid)
	return c, nil
}

func (c *Connection) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	if c.cfg.UnixPath != "" {
		return d.DialContext(ctx, "unix", c.cfg.UnixPath)
	}
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	return d.DialContext(ctx, "tcp", addr)
}

// authenticate drives the AuthenticationRequest exchange: trust, MD5 or
// SCRAM-SHA-256 (SASL), per spec.md §4.G.
func (c *Connection) authenticate() error {
	msg, err := c.reader.ReadMessage()
	if err != nil {
		return err
	}
	switch msg.Type {
	case pgproto.ErrorResponse:
		fm, perr := pgproto.ParseFieldsMessage(msg.Body)
		if perr != nil {
			return perr
		}
		return fm.ToError()
	case pgproto.AuthenticationRequest:
		// handled below
	default:
		return &qailerr.Error{Kind: qailerr.Protocol, Message: fmt.Sprintf("unexpected message %q during auth", msg.Type)}
	}

	req, err := pgproto.ParseAuthRequest(msg.Body)
	if err != nil {
		return err
	}
	switch req.Kind {
	case pgproto.AuthOk:
		return c.collectParameters()
	case pgproto.AuthCleartextPassword:
		if _, err := c.conn.Write(pgproto.EncodePasswordMessage(c.cfg.Password)); err != nil {
			return qailerr.Wrap(qailerr.IO, "writing password", err)
		}
		return c.expectAuthOK()
	case pgproto.AuthMD5Password:
		hashed := pgproto.ComputeMD5Password(c.cfg.User, c.cfg.Password, req.MD5Salt)
		if _, err := c.conn.Write(pgproto.EncodePasswordMessage(hashed)); err != nil {
			return qailerr.Wrap(qailerr.IO, "writing md5 password", err)
		}
		return c.expectAuthOK()
	case pgproto.AuthSASL:
		return c.authenticateSCRAM(req.Mechanisms)
	default:
		return &qailerr.Error{Kind: qailerr.Auth, Message: "unsupported authentication method"}
	}
}

func (c *Connection) expectAuthOK() error {
	msg, err := c.reader.ReadMessage()
	if err != nil {
		return err
	}
	if msg.Type == pgproto.ErrorResponse {
		fm, perr := pgproto.ParseFieldsMessage(msg.Body)
		if perr != nil {
			return perr
		}
		return &qailerr.Error{Kind: qailerr.Auth, Message: fm.Message}
	}
	req, err := pgproto.ParseAuthRequest(msg.Body)
	if err != nil {
		return err
	}
	if req.Kind != pgproto.AuthOk {
		return &qailerr.Error{Kind: qailerr.Auth, Message: "authentication rejected"}
	}
	return c.collectParameters()
}

func (c *Connection) authenticateSCRAM(mechanisms []string) error {
	supported := false
	for _, m := range mechanisms {
		if m == "SCRAM-SHA-256" {
			supported = true
		}
	}
	if !supported {
		return &qailerr.Error{Kind: qailerr.Auth, Message: "server does not offer SCRAM-SHA-256"}
	}
	client, err := scram.NewClient(c.cfg.User, c.cfg.Password)
	if err != nil {
		return qailerr.Wrap(qailerr.Auth, "starting SCRAM exchange", err)
	}
	first := client.FirstMessage()
	if _, err := c.conn.Write(pgproto.EncodeSASLInitialResponse("SCRAM-SHA-256", first)); err != nil {
		return qailerr.Wrap(qailerr.IO, "writing SASLInitialResponse", err)
	}

	msg, err := c.reader.ReadMessage()
	if err != nil {
		return err
	}
	if msg.Type == pgproto.ErrorResponse {
		fm, perr := pgproto.ParseFieldsMessage(msg.Body)
		if perr != nil {
			return perr
		}
		return &qailerr.Error{Kind: qailerr.Auth, Message: fm.Message}
	}
	req, err := pgproto.ParseAuthRequest(msg.Body)
	if err != nil {
		return err
	}
	if req.Kind != pgproto.AuthSASLContinue {
		return &qailerr.Error{Kind: qailerr.Protocol, Message: "expected AuthenticationSASLContinue"}
	}
	if err := client.ReceiveServerFirst(string(req.SASLData)); err != nil {
		return qailerr.Wrap(qailerr.Auth, "parsing server-first message", err)
	}

	final := client.FinalMessage()
	if _, err := c.conn.Write(pgproto.EncodeSASLResponse(final)); err != nil {
		return qailerr.Wrap(qailerr.IO, "writing SASLResponse", err)
	}

	msg, err = c.reader.ReadMessage()
	if err != nil {
		return err
	}
	if msg.Type == pgproto.ErrorResponse {
		fm, perr := pgproto.ParseFieldsMessage(msg.Body)
		if perr != nil {
			return perr
		}
		return &qailerr.Error{Kind: qailerr.Auth, Message: fm.Message}
	}
	req, err = pgproto.ParseAuthRequest(msg.Body)
	if err != nil {
		return err
	}
	if req.Kind != pgproto.AuthSASLFinal {
		return &qailerr.Error{Kind: qailerr.Protocol, Message: "expected AuthenticationSASLFinal"}
	}
	if err := client.VerifyServerFinal(string(req.SASLData)); err != nil {
		return qailerr.Wrap(qailerr.Auth, "verifying server signature", err)
	}
	return c.expectAuthOK()
}

func (c *Connection) collectParameters() error {
	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			return err
		}
		switch msg.Type {
		case pgproto.ParameterStatus:
			name, value, err := pgproto.ParseParameterStatus(msg.Body)
			if err != nil {
				return err
			}
			c.params[name] = value
		case pgproto.BackendKeyData:
			pid, secret, err := pgproto.ParseBackendKeyData(msg.Body)
			if err != nil {
				return err
			}
			c.pid, c.secret = pid, secret
		case pgproto.ReadyForQuery:
			return nil
		case pgproto.ErrorResponse:
			fm, perr := pgproto.ParseFieldsMessage(msg.Body)
			if perr != nil {
				return perr
			}
			return fm.ToError()
		default:
			// NoticeResponse and other informational messages are ignored
			// during startup.
		}
	}
}

func (c *Connection) awaitReady() error {
	state, err := c.currentReadyState()
	if err != nil {
		return err
	}
	c.applyReadyState(state)
	return nil
}

func (c *Connection) currentReadyState() (pgproto.ReadyForQueryState, error) {
	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			return 0, err
		}
		if msg.Type == pgproto.ReadyForQuery {
			return pgproto.ParseReadyForQuery(msg.Body)
		}
		if msg.Type == pgproto.ErrorResponse {
			fm, perr := pgproto.ParseFieldsMessage(msg.Body)
			if perr != nil {
				return 0, perr
			}
			return 0, fm.ToError()
		}
	}
}

func (c *Connection) applyReadyState(s pgproto.ReadyForQueryState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch s {
	case pgproto.Idle:
		c.state = StateReady
	case pgproto.InTransaction:
		c.state = StateInTransaction
	case pgproto.InFailedTransaction:
		c.state = StateInFailedTransaction
	}
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Broken reports whether the connection suffered an IO/Protocol error and
// must be discarded rather than reused (spec.md §5/§7).
func (c *Connection) Broken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broken
}

func (c *Connection) markBroken() {
	c.mu.Lock()
	c.broken = true
	c.state = StateTerminated
	c.mu.Unlock()
}

// Close sends Terminate and closes the socket.
func (c *Connection) Close() error {
	if c.conn == nil {
		return nil
	}
	_, _ = c.conn.Write(pgproto.EncodeTerminate())
	err := c.conn.Close()
	c.mu.Lock()
	c.state = StateTerminated
	c.mu.Unlock()
	return err
}

// BackendPID and BackendSecret expose the BackendKeyData captured during
// startup, needed to build a CancelRequest (spec.md §4.G).
func (c *Connection) BackendPID() int32    { return c.pid }
func (c *Connection) BackendSecret() int32 { return c.secret }
func (c *Connection) Addr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// Cancel opens a fresh connection to the same host/port and sends a
// CancelRequest, per spec.md §4.G. The original connection is untouched;
// its outstanding query returns an ErrorResponse that the caller must
// still consume.
func (c *Connection) Cancel(ctx context.Context) error {
	netConn, err := c.dial(ctx)
	if err != nil {
		return qailerr.Wrap(qailerr.IO, "dialing cancel connection", err)
	}
	defer netConn.Close()
	_, err = netConn.Write(pgproto.EncodeCancelRequest(c.pid, c.secret))
	if err != nil {
		return qailerr.Wrap(qailerr.IO, "writing CancelRequest", err)
	}
	return nil
}

// ParameterStatus returns a GUC value reported during startup (e.g.
// "server_version").
func (c *Connection) ParameterStatus(name string) (string, bool) {
	v, ok := c.params[name]
	return v, ok
}

func withDeadline(ctx context.Context, conn stream) func() {
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
		return func() { _ = conn.SetDeadline(time.Time{}) }
	}
	return func() {}
}
