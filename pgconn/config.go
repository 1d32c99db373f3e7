package pgconn

import (
	"crypto/tls"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Config configures a Connection, built with functional options matching
// the options pattern SPEC_FULL.md's ambient stack names
// (hashicorp/mql's options.go) rather than a struct literal blob.
type Config struct {
	Host            string
	Port            int
	User            string
	Database        string
	Password        string
	ApplicationName string

	TLSConfig *tls.Config
	UnixPath  string

	StatementCacheSize int
	ConnectTimeout     time.Duration
	Logger             hclog.Logger
}

// Option configures a Config.
type Option func(*Config)

// NewConfig builds a Config for host/port/user/database with every option
// applied in order.
func NewConfig(host string, port int, user, database string, opts ...Option) *Config {
	c := &Config{
		Host:               host,
		Port:               port,
		User:               user,
		Database:           database,
		ApplicationName:    "qail",
		StatementCacheSize: 0, // 0 means stmtcache.DefaultCapacity
		ConnectTimeout:     30 * time.Second,
		Logger:             hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithPassword(password string) Option {
	return func(c *Config) { c.Password = password }
}

func WithTLS(tlsConfig *tls.Config) Option {
	return func(c *Config) { c.TLSConfig = tlsConfig }
}

func WithUnixSocket(path string) Option {
	return func(c *Config) { c.UnixPath = path }
}

func WithApplicationName(name string) Option {
	return func(c *Config) { c.ApplicationName = name }
}

func WithStatementCacheSize(n int) Option {
	return func(c *Config) { c.StatementCacheSize = n }
}

func WithConnectTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectTimeout = d }
}

func WithLogger(l hclog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}
