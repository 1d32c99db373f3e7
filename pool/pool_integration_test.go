//go:build integration

package pool_test

import (
	"context"
	"net/url"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/qail-lang/qail/pgconn"
	"github.com/qail-lang/qail/pool"
)

func factoryFromEnv(t *testing.T) pool.Factory {
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

	return func(ctx context.Context) (*pgconn.Connection, error) {
		var opts []pgconn.Option
		if password != "" {
			opts = append(opts, pgconn.WithPassword(password))
		}
		opts = append(opts, pgconn.WithConnectTimeout(5*time.Second))
		return pgconn.Connect(ctx, pgconn.NewConfig(host, port, user, database, opts...))
	}
}

func TestPoolAcquireReleaseRoundTrip(t *testing.T) {
	factory := factoryFromEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := pool.New(ctx, factory, pool.Config{MaxConnections: 2, MinConnections: 1})
	if err != nil {
		t.Fatalf("pool.New failed: %v", err)
	}
	defer p.CloseAll()

	g, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := g.Conn().FetchAll(ctx, "SELECT 1"); err != nil {
		t.Fatalf("query on acquired connection failed: %v", err)
	}
	g.Release(ctx)
}

func TestPoolExhaustedTimesOut(t *testing.T) {
	factory := factoryFromEnv(t)
	setupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := pool.New(setupCtx, factory, pool.Config{MaxConnections: 1, MinConnections: 1})
	if err != nil {
		t.Fatalf("pool.New failed: %v", err)
	}
	defer p.CloseAll()

	g, err := p.Acquire(setupCtx)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer g.Release(setupCtx)

	timeoutCtx, cancel2 := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel2()
	if _, err := p.Acquire(timeoutCtx); err == nil {
		t.Fatal("expected the second Acquire to time out while the pool is exhausted")
	}
}
