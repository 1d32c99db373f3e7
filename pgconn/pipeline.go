package pgconn

import (
	"context"

	"github.com/qail-lang/qail/ir"
	"github.com/qail-lang/qail/pgencode"
	"github.com/qail-lang/qail/pgproto"
	"github.com/qail-lang/qail/qailerr"
)

// PipelineRequest is one statement + bound parameters to run as part of a
// pipelined batch (spec.md §4.I); pipeline.Run builds these from its own
// Request type so callers needn't import pgconn directly.
type PipelineRequest struct {
	Stmt   any
	Params []ir.Value
}

// PipelineResult is one request's outcome within a batch.
type PipelineResult struct {
	Rows *Rows
	Err  error
}

// PipelineBatch prepares every request (sharing the statement cache, so
// repeated SQL texts issue one Parse each), writes a Bind/Describe/
// Execute/Close sequence per request back-to-back with a single trailing
// Sync, and demultiplexes the
// response stream back into per-request Rows in request order. On the
// first ErrorResponse, the server skips remaining requests up to the
// Sync; PipelineBatch returns the completed prefix plus that error.
func (c *Connection) PipelineBatch(ctx context.Context, requests []PipelineRequest) ([]PipelineResult, error) {
	cancel := withDeadline(ctx, c.conn)
	defer cancel()

	var buf []byte
	for _, req := range requests {
		sql, params, err := renderSQL(req.Stmt, req.Params)
		if err != nil {
			return nil, err
		}
		h, err := c.prepareInternal(sql, len(params))
		if err != nil {
			return nil, err
		}
		bindings := make([]pgencode.ParamBinding, len(params))
		for j, v := range params {
			data, isNull := textEncode(v)
			bindings[j] = pgencode.ParamBinding{Data: data, Format: 0, IsNull: isNull}
		}
		wireParams := make([]pgproto.ParamValue, len(bindings))
		for j, b := range bindings {
			wireParams[j] = b.toWire()
		}
		portal := nextPortalName()
		buf = append(buf, pgproto.EncodeBind(portal, h.Name, wireParams, nil)...)
		buf = append(buf, pgproto.EncodeDescribe(pgproto.DescribePortal, portal)...)
		buf = append(buf, pgproto.EncodeExecute(portal, 0)...)
		buf = append(buf, pgproto.EncodeClose(pgproto.ClosePortal, portal)...)
	}
	buf = append(buf, pgproto.EncodeSync()...)

	c.mu.Lock()
	c.state = StateBusy
	c.mu.Unlock()

	if _, err := c.conn.Write(buf); err != nil {
		c.markBroken()
		return nil, qailerr.Wrap(qailerr.IO, "writing pipelined batch", err)
	}

	results := make([]PipelineResult, 0, len(requests))
	var current Rows
	var failed error
	for len(results) < len(requests) {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			c.markBroken()
			return results, err
		}
		switch msg.Type {
		case pgproto.BindComplete, pgproto.NoData, pgproto.CloseComplete:
		case pgproto.RowDescription:
			fields, err := pgproto.ParseRowDescription(msg.Body)
			if err != nil {
				c.markBroken()
				return results, err
			}
			current.Columns = columnInfoFrom(fields)
		case pgproto.DataRow:
			vals, err := pgproto.ParseDataRow(msg.Body)
			if err != nil {
				c.markBroken()
				return results, err
			}
			current.Rows = append(current.Rows, Row{Values: vals})
		case pgproto.CommandComplete:
			rowsCopy := current
			results = append(results, PipelineResult{Rows: &rowsCopy})
			current = Rows{}
		case pgproto.ErrorResponse:
			fm, perr := pgproto.ParseFieldsMessage(msg.Body)
			if perr != nil {
				c.markBroken()
				return results, perr
			}
			failed = fm.ToError()
			results = append(results, PipelineResult{Err: failed})
			current = Rows{}
		case pgproto.ReadyForQuery:
			state, perr := pgproto.ParseReadyForQuery(msg.Body)
			if perr != nil {
				c.markBroken()
				return results, perr
			}
			c.applyReadyState(state)
			return results, failed
		}
	}

	if err := c.drainToReady(); err != nil {
		c.markBroken()
		return results, err
	}
	return results, failed
}
