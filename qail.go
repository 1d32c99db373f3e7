// Package qail is the Consumer API facade of spec.md §6: parse query
// text into the Command IR, transpile IR to a target dialect, and drive
// a pooled PostgreSQL connection (execute, fetch, prepare, pipeline,
// COPY, transactions).
//
// This generalizes machparse's top-level package (formerly a thin
// Parse/Walk/Rewrite facade over its own AST) to front the QAIL IR and
// driver instead of a single-dialect SQL AST.
package qail

import (
	"context"

	"github.com/qail-lang/qail/dialect"
	"github.com/qail-lang/qail/ir"
	"github.com/qail-lang/qail/parser"
	"github.com/qail-lang/qail/pgconn"
	"github.com/qail-lang/qail/pipeline"
	"github.com/qail-lang/qail/pool"
	"github.com/qail-lang/qail/transpile"
)

// Command is the parsed QAIL intermediate representation.
type Command = ir.Command

// Value is a typed IR literal/parameter/column reference.
type Value = ir.Value

// Parse parses one QAIL statement into a Command, per spec.md §6's
// `parse(text) -> Command`.
func Parse(text string) (*Command, error) {
	return parser.Parse(text)
}

// ParseAll parses every statement in text.
func ParseAll(text string) ([]*Command, error) {
	return parser.ParseAll(text)
}

// TranspileResult is SQL text plus, in Parameterized mode, its
// placeholder-ordered parameters.
type TranspileResult = transpile.Result

// Transpile renders cmd as name-dialect SQL, per spec.md §6's
// `transpile(Command, dialect, params-mode) -> {sql, params?}`.
func Transpile(cmd *Command, name dialect.Name, mode transpile.Mode) (TranspileResult, error) {
	return transpile.Transpile(cmd, name, mode)
}

// Connection is a single PostgreSQL wire-protocol connection.
type Connection = pgconn.Connection

// Config configures a Connection.
type Config = pgconn.Config

// Option configures a Config.
type Option = pgconn.Option

// Connect dials host:port and performs the full startup/auth handshake,
// per spec.md §6's `connect(...) -> connection`.
func Connect(ctx context.Context, host string, port int, user, database string, opts ...Option) (*Connection, error) {
	cfg := pgconn.NewConfig(host, port, user, database, opts...)
	return pgconn.Connect(ctx, cfg)
}

// Re-exported functional options, matching pgconn's naming.
var (
	WithPassword           = pgconn.WithPassword
	WithTLS                = pgconn.WithTLS
	WithUnixSocket         = pgconn.WithUnixSocket
	WithApplicationName    = pgconn.WithApplicationName
	WithStatementCacheSize = pgconn.WithStatementCacheSize
	WithConnectTimeout     = pgconn.WithConnectTimeout
	WithLogger             = pgconn.WithLogger
)

// Pool is a fixed-size set of connections.
type Pool = pool.Pool

// PoolConfig bounds a Pool's size.
type PoolConfig = pool.Config

// NewPool builds a Pool of Connections dialed with cfg, bounded by
// poolCfg, per spec.md §6's `pool.acquire(timeout) -> connection-guard`.
func NewPool(ctx context.Context, cfg *Config, poolCfg PoolConfig) (*Pool, error) {
	return pool.New(ctx, func(ctx context.Context) (*Connection, error) {
		return pgconn.Connect(ctx, cfg)
	}, poolCfg)
}

// PipelineRequest is one statement + bound parameters to run pipelined.
type PipelineRequest = pipeline.Request

// PipelineResult is one request's outcome within a pipelined batch.
type PipelineResult = pipeline.Result

// RunPipeline executes requests on conn pipelined with a Sync every
// syncEvery requests, per spec.md §4.I / §6's `connection.pipeline(...)`.
func RunPipeline(ctx context.Context, conn *Connection, requests []PipelineRequest, syncEvery int) ([]PipelineResult, error) {
	return pipeline.Run(ctx, conn, requests, syncEvery)
}
