package pgconn

import (
	"context"

	"github.com/qail-lang/qail/copyfmt"
	"github.com/qail-lang/qail/dialect"
	"github.com/qail-lang/qail/ir"
	"github.com/qail-lang/qail/pgproto"
	"github.com/qail-lang/qail/qailerr"
)

func (c *Connection) copyDialect() dialect.SqlGenerator {
	gen, _ := dialect.For(dialect.PostgreSQL)
	return gen
}

// CopyBulk issues `COPY table(cols...) FROM STDIN`, streams rows in
// copyfmt.BatchSize chunks, and returns the affected row count, per
// spec.md §4.G/§4.J.
func (c *Connection) CopyBulk(ctx context.Context, table string, columns []string, rows [][]ir.Value) (int64, error) {
	cancel := withDeadline(ctx, c.conn)
	defer cancel()

	stmt := copyfmt.Statement(c.copyDialect(), table, columns...)

	c.mu.Lock()
	c.state = StateBusy
	c.mu.Unlock()

	if _, err := c.conn.Write(pgproto.EncodeSimpleQuery(stmt)); err != nil {
		c.markBroken()
		return 0, qailerr.Wrap(qailerr.IO, "writing COPY statement", err)
	}

	if err := c.awaitCopyInResponse(); err != nil {
		return 0, err
	}

	for _, chunk := range copyfmt.Batches(rows) {
		if _, err := c.conn.Write(pgproto.EncodeCopyData(chunk)); err != nil {
			c.markBroken()
			return 0, qailerr.Wrap(qailerr.IO, "writing CopyData", err)
		}
	}
	if _, err := c.conn.Write(pgproto.EncodeCopyDone()); err != nil {
		c.markBroken()
		return 0, qailerr.Wrap(qailerr.IO, "writing CopyDone", err)
	}

	return c.awaitCopyCompletion()
}

// AbortCopy sends CopyFail with reason, used by a caller that encounters
// an error while producing rows mid-COPY.
func (c *Connection) AbortCopy(reason string) error {
	if _, err := c.conn.Write(pgproto.EncodeCopyFail(reason)); err != nil {
		c.markBroken()
		return qailerr.Wrap(qailerr.IO, "writing CopyFail", err)
	}
	return c.awaitCopyAbort()
}

func (c *Connection) awaitCopyInResponse() error {
	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			c.markBroken()
			return err
		}
		switch msg.Type {
		case pgproto.CopyInResponse:
			return nil
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
		}
	}
}

func (c *Connection) awaitCopyCompletion() (int64, error) {
	var affected int64
	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			c.markBroken()
			return 0, err
		}
		switch msg.Type {
		case pgproto.CommandComplete:
			tag, err := pgproto.ParseCommandComplete(msg.Body)
			if err != nil {
				c.markBroken()
				return 0, err
			}
			affected = pgproto.AffectedRows(tag)
		case pgproto.ErrorResponse:
			fm, perr := pgproto.ParseFieldsMessage(msg.Body)
			if perr != nil {
				c.markBroken()
				return 0, perr
			}
			if err := c.drainToReady(); err != nil {
				c.markBroken()
				return 0, err
			}
			return 0, fm.ToError()
		case pgproto.ReadyForQuery:
			state, err := pgproto.ParseReadyForQuery(msg.Body)
			if err != nil {
				c.markBroken()
				return 0, err
			}
			c.applyReadyState(state)
			return affected, nil
		}
	}
}

func (c *Connection) awaitCopyAbort() error {
	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			c.markBroken()
			return err
		}
		switch msg.Type {
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
