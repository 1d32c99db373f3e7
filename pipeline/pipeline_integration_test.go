//go:build integration

package pipeline_test

import (
	"context"
	"net/url"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/qail-lang/qail/ir"
	"github.com/qail-lang/qail/pgconn"
	"github.com/qail-lang/qail/pipeline"
)

func dialFromEnv(t *testing.T) *pgconn.Connection {
	t.Helper()
	dsn := os.Getenv("QAIL_TEST_DSN")
	if dsn == "" {
		t.Skip("QAIL_TEST_DSN not set; skipping live PostgreSQL test")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("invalid QAIL_TEST_DSN: %v", err)
	}
	host := u.Hostname()
	port := 5432
	if p := u.Port(); p != "" {
		port, _ = strconv.Atoi(p)
	}
	user := u.User.Username()
	password, _ := u.User.Password()
	database := u.Path
	if len(database) > 0 && database[0] == '/' {
		database = database[1:]
	}

	var opts []pgconn.Option
	if password != "" {
		opts = append(opts, pgconn.WithPassword(password))
	}
	opts = append(opts, pgconn.WithConnectTimeout(5*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := pgconn.Connect(ctx, pgconn.NewConfig(host, port, user, database, opts...))
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPipelineRunOrdersResults(t *testing.T) {
	conn := dialFromEnv(t)
	ctx := context.Background()

	requests := []pipeline.Request{
		{Stmt: "SELECT 1::int AS n"},
		{Stmt: "SELECT 2::int AS n"},
		{Stmt: "SELECT $1::int AS n", Params: []ir.Value{ir.Int(3)}},
	}
	results, err := pipeline.Run(ctx, conn, requests, 2)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d has Index %d", i, r.Index)
		}
		if r.Err != nil {
			t.Errorf("result %d errored: %v", i, r.Err)
		}
	}
}

func TestPipelineRunStopsAtFirstError(t *testing.T) {
	conn := dialFromEnv(t)
	ctx := context.Background()

	requests := []pipeline.Request{
		{Stmt: "SELECT 1::int AS n"},
		{Stmt: "SELECT * FROM no_such_table_at_all"},
		{Stmt: "SELECT 3::int AS n"},
	}
	results, err := pipeline.Run(ctx, conn, requests, 0)
	if err == nil {
		t.Fatal("expected an error from the invalid statement")
	}
	if pipeline.CollectErr(results) == nil {
		t.Fatal("expected CollectErr to surface the failing request's error")
	}
}
