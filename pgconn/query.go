package pgconn

import (
	"context"
	"fmt"

	"github.com/qail-lang/qail/dialect"
	"github.com/qail-lang/qail/ir"
	"github.com/qail-lang/qail/pgencode"
	"github.com/qail-lang/qail/pgproto"
	"github.com/qail-lang/qail/qailerr"
	"github.com/qail-lang/qail/stmtcache"
	"github.com/qail-lang/qail/transpile"
)

// ColumnInfo maps result-set column names to their index and OID, per
// spec.md §6's fetch_all return shape.
type ColumnInfo struct {
	NameToIndex map[string]int
	OIDs        []int32
}

// Row is one NULL-aware result row: Values[i] is nil for SQL NULL.
type Row struct {
	Values [][]byte
}

// Rows is a full, materialized result set.
type Rows struct {
	Columns ColumnInfo
	Rows    []Row
}

func columnInfoFrom(fields []pgproto.FieldDescription) ColumnInfo {
	ci := ColumnInfo{NameToIndex: make(map[string]int, len(fields)), OIDs: make([]int32, len(fields))}
	for i, f := range fields {
		ci.NameToIndex[f.Name] = i
		ci.OIDs[i] = f.TypeOID
	}
	return ci
}

// renderSQL accepts either a raw SQL string or an *ir.Command and returns
// PostgreSQL-dialect SQL text plus its parameters, per spec.md §6's
// `command | sql` overload.
func renderSQL(stmt any, params []ir.Value) (string, []ir.Value, error) {
	switch s := stmt.(type) {
	case string:
		return s, params, nil
	case *ir.Command:
		res, err := transpile.Transpile(s, dialect.PostgreSQL, transpile.Parameterized)
		if err != nil {
			return "", nil, err
		}
		if len(params) == 0 {
			params = res.Params
		}
		return res.SQL, params, nil
	default:
		return "", nil, &qailerr.Error{Kind: qailerr.InvalidValue, Message: fmt.Sprintf("unsupported statement type %T", stmt)}
	}
}

// Execute runs stmt (raw SQL or *ir.Command) and returns the affected row
// count / command tag, per spec.md §6.
func (c *Connection) Execute(ctx context.Context, stmt any, params ...ir.Value) (int64, error) {
	sql, boundParams, err := renderSQL(stmt, params)
	if err != nil {
		return 0, err
	}
	if len(boundParams) == 0 {
		return c.executeSimple(ctx, sql)
	}
	return c.executeExtended(ctx, sql, boundParams)
}

// FetchAll runs stmt and materializes every row.
func (c *Connection) FetchAll(ctx context.Context, stmt any, params ...ir.Value) (*Rows, error) {
	sql, boundParams, err := renderSQL(stmt, params)
	if err != nil {
		return nil, err
	}
	if len(boundParams) == 0 {
		return c.fetchAllSimple(ctx, sql)
	}
	return c.fetchAllExtended(ctx, sql, boundParams)
}

func (c *Connection) executeSimple(ctx context.Context, sql string) (int64, error) {
	rows, err := c.fetchAllSimple(ctx, sql)
	if err != nil {
		return 0, err
	}
	return int64(len(rows.Rows)), nil
}

func (c *Connection) fetchAllSimple(ctx context.Context, sql string) (*Rows, error) {
	cancel := withDeadline(ctx, c.conn)
	defer cancel()

	c.mu.Lock()
	c.state = StateBusy
	c.mu.Unlock()

	if _, err := c.conn.Write(pgproto.EncodeSimpleQuery(sql)); err != nil {
		c.markBroken()
		return nil, qailerr.Wrap(qailerr.IO, "writing simple query", err)
	}

	var result Rows
	var fields []pgproto.FieldDescription
	var affected int64
	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			c.markBroken()
			return nil, err
		}
		switch msg.Type {
		case pgproto.RowDescription:
			fields, err = pgproto.ParseRowDescription(msg.Body)
			if err != nil {
				c.markBroken()
				return nil, err
			}
			result.Columns = columnInfoFrom(fields)
		case pgproto.DataRow:
			vals, err := pgproto.ParseDataRow(msg.Body)
			if err != nil {
				c.markBroken()
				return nil, err
			}
			result.Rows = append(result.Rows, Row{Values: vals})
		case pgproto.CommandComplete:
			tag, err := pgproto.ParseCommandComplete(msg.Body)
			if err != nil {
				c.markBroken()
				return nil, err
			}
			affected = pgproto.AffectedRows(tag)
		case pgproto.EmptyQueryResponse:
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
		case pgproto.NoticeResponse:
			// surfaced via an observer hook in a fuller implementation;
			// silently dropped here.
		case pgproto.ReadyForQuery:
			state, err := pgproto.ParseReadyForQuery(msg.Body)
			if err != nil {
				c.markBroken()
				return nil, err
			}
			c.applyReadyState(state)
			if len(result.Rows) == 0 && affected > 0 {
				// command-only statements (UPDATE/DELETE/INSERT) carry no
				// RowDescription; synthesize a minimal column set.
				result.Columns = ColumnInfo{NameToIndex: map[string]int{}}
			}
			return &result, nil
		}
	}
}

func (c *Connection) drainToReady() error {
	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			return err
		}
		if msg.Type == pgproto.ReadyForQuery {
			state, err := pgproto.ParseReadyForQuery(msg.Body)
			if err != nil {
				return err
			}
			c.applyReadyState(state)
			return nil
		}
	}
}

func (c *Connection) executeExtended(ctx context.Context, sql string, params []ir.Value) (int64, error) {
	rows, err := c.fetchAllExtended(ctx, sql, params)
	if err != nil {
		return 0, err
	}
	return int64(len(rows.Rows)), nil
}

func (c *Connection) fetchAllExtended(ctx context.Context, sql string, params []ir.Value) (*Rows, error) {
	cancel := withDeadline(ctx, c.conn)
	defer cancel()
	handle, err := c.prepareInternal(sql, len(params))
	if err != nil {
		return nil, err
	}
	return c.executePrepared(ctx, handle, params)
}

func textEncode(v ir.Value) ([]byte, bool) {
	if v.IsNull() {
		return nil, true
	}
	s, _ := v.AsString()
	return []byte(s), false
}

// Prepare parses and describes sql on the server, caching the resulting
// Handle by SQL text (spec.md §4.H); a repeat call with identical SQL
// reuses the cached statement name without a round trip.
func (c *Connection) Prepare(ctx context.Context, sql string, paramCount int) (stmtcache.Handle, error) {
	cancel := withDeadline(ctx, c.conn)
	defer cancel()
	return c.prepareInternal(sql, paramCount)
}

func (c *Connection) prepareInternal(sql string, paramCount int) (stmtcache.Handle, error) {
	if h, ok := c.cache.Lookup(sql); ok {
		return h, nil
	}

	name := stmtcache.Name(sql)
	var out []byte
	out = append(out, pgproto.EncodeParse(name, sql, nil)...)
	out = append(out, pgproto.EncodeDescribe(pgproto.DescribeStatement, name)...)
	out = append(out, pgproto.EncodeSync()...)

	c.mu.Lock()
	c.state = StateBusy
	c.mu.Unlock()

	if _, err := c.conn.Write(out); err != nil {
		c.markBroken()
		return stmtcache.Handle{}, qailerr.Wrap(qailerr.IO, "writing Parse/Describe", err)
	}

	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			c.markBroken()
			return stmtcache.Handle{}, err
		}
		switch msg.Type {
		case pgproto.ParseComplete, pgproto.ParameterDescription, pgproto.RowDescription, pgproto.NoData:
			// consumed, nothing to record beyond paramCount which the
			// caller already knows from the ir.Command/binding it built.
		case pgproto.ErrorResponse:
			fm, perr := pgproto.ParseFieldsMessage(msg.Body)
			if perr != nil {
				c.markBroken()
				return stmtcache.Handle{}, perr
			}
			if err := c.drainToReady(); err != nil {
				c.markBroken()
				return stmtcache.Handle{}, err
			}
			return stmtcache.Handle{}, fm.ToError()
		case pgproto.ReadyForQuery:
			state, err := pgproto.ParseReadyForQuery(msg.Body)
			if err != nil {
				c.markBroken()
				return stmtcache.Handle{}, err
			}
			c.applyReadyState(state)
			h := stmtcache.Handle{Name: name, SQL: sql, ParamCount: paramCount}
			if evictedName, evicted := c.cache.Insert(h); evicted {
				if _, err := c.conn.Write(pgproto.EncodeClose(pgproto.CloseStatement, evictedName)); err != nil {
					c.markBroken()
					return stmtcache.Handle{}, qailerr.Wrap(qailerr.IO, "closing evicted statement", err)
				}
				if _, err := c.conn.Write(pgproto.EncodeSync()); err != nil {
					c.markBroken()
					return stmtcache.Handle{}, qailerr.Wrap(qailerr.IO, "syncing after Close", err)
				}
				if err := c.drainToReady(); err != nil {
					c.markBroken()
					return stmtcache.Handle{}, err
				}
			}
			return h, nil
		}
	}
}

// ExecutePrepared binds params to an already-Prepare'd handle and runs it
// to completion via the extended-query protocol.
func (c *Connection) ExecutePrepared(ctx context.Context, handle stmtcache.Handle, params []ir.Value) (*Rows, error) {
	cancel := withDeadline(ctx, c.conn)
	defer cancel()
	return c.executePrepared(ctx, handle, params)
}

func (c *Connection) executePrepared(ctx context.Context, handle stmtcache.Handle, params []ir.Value) (*Rows, error) {
	bindings := make([]pgencode.ParamBinding, len(params))
	for i, v := range params {
		data, isNull := textEncode(v)
		bindings[i] = pgencode.ParamBinding{Data: data, Format: 0, IsNull: isNull}
	}
	var out []byte
	wireParams := make([]pgproto.ParamValue, len(bindings))
	for i, b := range bindings {
		wireParams[i] = b.toWire()
	}
	out = append(out, pgproto.EncodeBind("", handle.Name, wireParams, nil)...)
	out = append(out, pgproto.EncodeDescribe(pgproto.DescribePortal, "")...)
	out = append(out, pgproto.EncodeExecute("", 0)...)
	out = append(out, pgproto.EncodeSync()...)

	c.mu.Lock()
	c.state = StateBusy
	c.mu.Unlock()

	if _, err := c.conn.Write(out); err != nil {
		c.markBroken()
		return nil, qailerr.Wrap(qailerr.IO, "writing Bind/Execute", err)
	}

	var result Rows
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
			result.Columns = columnInfoFrom(fields)
		case pgproto.DataRow:
			vals, err := pgproto.ParseDataRow(msg.Body)
			if err != nil {
				c.markBroken()
				return nil, err
			}
			result.Rows = append(result.Rows, Row{Values: vals})
		case pgproto.CommandComplete:
			// row count is recoverable from len(result.Rows) for SELECT,
			// or from the tag for DML; callers needing the exact tag use
			// Execute instead of FetchAll.
		case pgproto.PortalSuspended:
			// maxRows==0 above means "no limit", so this should not occur
			// on this path; treated as a protocol error if it does.
			c.markBroken()
			return nil, &qailerr.Error{Kind: qailerr.Protocol, Message: "unexpected PortalSuspended with unlimited Execute"}
		case pgproto.EmptyQueryResponse:
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
		case pgproto.ReadyForQuery:
			state, err := pgproto.ParseReadyForQuery(msg.Body)
			if err != nil {
				c.markBroken()
				return nil, err
			}
			c.applyReadyState(state)
			return &result, nil
		}
	}
}

// Begin starts a transaction via a simple-query BEGIN, per spec.md §4.G.
func (c *Connection) Begin(ctx context.Context) error {
	_, err := c.fetchAllSimple(ctx, "BEGIN")
	return err
}

// Commit issues COMMIT.
func (c *Connection) Commit(ctx context.Context) error {
	_, err := c.fetchAllSimple(ctx, "COMMIT")
	return err
}

// Rollback issues ROLLBACK.
func (c *Connection) Rollback(ctx context.Context) error {
	_, err := c.fetchAllSimple(ctx, "ROLLBACK")
	return err
}

// Savepoint issues SAVEPOINT name. name is trusted to be a valid
// identifier; callers building it from user input must quote it
// themselves via a dialect.SqlGenerator's QuoteIdentifier.
func (c *Connection) Savepoint(ctx context.Context, name string) error {
	_, err := c.fetchAllSimple(ctx, "SAVEPOINT "+name)
	return err
}

// RollbackTo issues ROLLBACK TO SAVEPOINT name.
func (c *Connection) RollbackTo(ctx context.Context, name string) error {
	_, err := c.fetchAllSimple(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}

// Release issues RELEASE SAVEPOINT name.
func (c *Connection) Release(ctx context.Context, name string) error {
	_, err := c.fetchAllSimple(ctx, "RELEASE SAVEPOINT "+name)
	return err
}
