package pgconn

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/qail-lang/qail/ir"
	"github.com/qail-lang/qail/pgencode"
	"github.com/qail-lang/qail/pgproto"
	"github.com/qail-lang/qail/qailerr"
)

var portalCounter int64

func nextPortalName() string {
	return fmt.Sprintf("c%d", atomic.AddInt64(&portalCounter, 1))
}

// Stream is a lazy, finite sequence of row batches bound to a named
// portal, per spec.md §4.G's streaming-cursor requirement ("the caller
// consumes bounded batches"). Built on the extended-query protocol's
// Execute-with-maxRows/PortalSuspended mechanism rather than a DECLARE
// CURSOR/FETCH simple-query cycle, since the connection already speaks
// the extended protocol for every other operation.
type Stream struct {
	conn      *Connection
	portal    string
	stmtName  string
	columns   ColumnInfo
	batchSize int32
	done      bool
	closed    bool
}

// FetchStream prepares stmt, binds it to a named portal, and returns a
// Stream that yields rows in batches of batchSize.
func (c *Connection) FetchStream(ctx context.Context, stmt any, batchSize int, params ...ir.Value) (*Stream, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	cancel := withDeadline(ctx, c.conn)
	defer cancel()

	sql, boundParams, err := renderSQL(stmt, params)
	if err != nil {
		return nil, err
	}
	handle, err := c.prepareInternal(sql, len(boundParams))
	if err != nil {
		return nil, err
	}

	bindings := make([]pgencode.ParamBinding, len(boundParams))
	for i, v := range boundParams {
		data, isNull := textEncode(v)
		bindings[i] = pgencode.ParamBinding{Data: data, Format: 0, IsNull: isNull}
	}
	wireParams := make([]pgproto.ParamValue, len(bindings))
	for i, b := range bindings {
		wireParams[i] = b.toWire()
	}

	portal := nextPortalName()
	var out []byte
	out = append(out, pgproto.EncodeBind(portal, handle.Name, wireParams, nil)...)
	out = append(out, pgproto.EncodeDescribe(pgproto.DescribePortal, portal)...)
	out = append(out, pgproto.EncodeFlush()...)

	c.mu.Lock()
	c.state = StateBusy
	c.mu.Unlock()

	if _, err := c.conn.Write(out); err != nil {
		c.markBroken()
		return nil, qailerr.Wrap(qailerr.IO, "writing Bind/Describe for stream", err)
	}

	s := &Stream{conn: c, portal: portal, stmtName: handle.Name, batchSize: int32(batchSize)}
	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			c.markBroken()
			return nil, err
		}
		switch msg.Type {
		case pgproto.BindComplete, pgproto.NoData:
		case pgproto.RowDescription:
			fields, err := pgproto.ParseRowDescription(msg.Body)
			if err != nil {
				c.markBroken()
				return nil, err
			}
			s.columns = columnInfoFrom(fields)
			return s, nil
		case pgproto.ErrorResponse:
			fm, perr := pgproto.ParseFieldsMessage(msg.Body)
			if perr != nil {
				c.markBroken()
				return nil, perr
			}
			if err := c.drainToReady(); err != nil {
				c.markBroken()
				return nil, err
			}
			return nil, fm.ToError()
		default:
			// Any other message ends the wait: the stream is returned
			// without a column layout.
			return s, nil
		}
	}
}

// Columns reports the result set's column layout.
func (s *Stream) Columns() ColumnInfo { return s.columns }

// Next returns the next batch of up to batchSize rows and whether more
// batches follow. The batch that exhausts the portal comes back with
// more == false (it may still hold rows); every later call returns (nil,
// false, nil). The caller need not call Close in that case; Next closes
// the portal automatically on exhaustion.
func (s *Stream) Next(ctx context.Context) ([]Row, bool, error) {
	if s.done {
		return nil, false, nil
	}
	c := s.conn
	cancel := withDeadline(ctx, c.conn)
	defer cancel()

	out := append(pgproto.EncodeExecute(s.portal, s.batchSize), pgproto.EncodeFlush()...)
	if _, err := c.conn.Write(out); err != nil {
		c.markBroken()
		return nil, false, qailerr.Wrap(qailerr.IO, "writing Execute for stream batch", err)
	}

	var rows []Row
	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			c.markBroken()
			return nil, false, err
		}
		switch msg.Type {
		case pgproto.DataRow:
			vals, err := pgproto.ParseDataRow(msg.Body)
			if err != nil {
				c.markBroken()
				return nil, false, err
			}
			rows = append(rows, Row{Values: vals})
		case pgproto.PortalSuspended:
			return rows, true, nil
		case pgproto.CommandComplete:
			// falls through to closing the portal below once ReadyForQuery
			// isn't expected here (no Sync was sent); the portal is done.
		case pgproto.ErrorResponse:
			fm, perr := pgproto.ParseFieldsMessage(msg.Body)
			if perr != nil {
				c.markBroken()
				return nil, false, perr
			}
			s.done = true
			return nil, false, fm.ToError()
		default:
			continue
		}
		if msg.Type == pgproto.CommandComplete {
			s.done = true
			if err := s.closeInternal(); err != nil {
				return nil, false, err
			}
			return rows, false, nil
		}
	}
}

// Close releases the portal early, used when the caller stops consuming
// a Stream before it's exhausted.
func (s *Stream) Close() error {
	if s.closed || s.done {
		return nil
	}
	return s.closeInternal()
}

func (s *Stream) closeInternal() error {
	c := s.conn
	s.closed = true
	var out []byte
	out = append(out, pgproto.EncodeClose(pgproto.ClosePortal, s.portal)...)
	out = append(out, pgproto.EncodeSync()...)
	if _, err := c.conn.Write(out); err != nil {
		c.markBroken()
		return qailerr.Wrap(qailerr.IO, "closing portal", err)
	}
	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			c.markBroken()
			return err
		}
		switch msg.Type {
		case pgproto.CloseComplete:
		case pgproto.ErrorResponse:
			fm, perr := pgproto.ParseFieldsMessage(msg.Body)
			if perr != nil {
				c.markBroken()
				return perr
			}
			if err := c.drainToReady(); err != nil {
				c.markBroken()
				return err
			}
			return fm.ToError()
		case pgproto.ReadyForQuery:
			state, err := pgproto.ParseReadyForQuery(msg.Body)
			if err != nil {
				c.markBroken()
				return err
			}
			c.applyReadyState(state)
			return nil
		}
	}
}
