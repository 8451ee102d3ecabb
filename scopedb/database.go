// Package scopedb is a postgres data access layer with a tenant isolation
// interceptor chain wired into every create and read.  The chain is installed
// once, when the Db is constructed; call sites pass a context carrying the
// tenant (see tenantctx) and never mention the tenant in their queries.
package scopedb

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jmoiron/sqlx"
	"github.com/jswidler/tenantscope"
	"github.com/jswidler/tenantscope/errors"
	"github.com/jswidler/tenantscope/logger"
	_ "github.com/lib/pq"
)

type Db struct {
	db    *sqlx.DB
	chain []tenantscope.Interceptor
}

type Option func(*Db)

// WithInterceptors replaces the default chain.  Interceptors run in the
// given order; the first error aborts the operation.
func WithInterceptors(interceptors ...tenantscope.Interceptor) Option {
	return func(d *Db) {
		d.chain = interceptors
	}
}

// New wraps an open postgres connection.  Unless WithInterceptors says
// otherwise, the chain is a single tenantscope.TenantScope with the default
// tenant column.
func New(db *sql.DB, opts ...Option) *Db {
	d := &Db{
		db:    sqlx.NewDb(db, "postgres"),
		chain: []tenantscope.Interceptor{tenantscope.New()},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Unscoped returns a handle on the same database whose operations skip the
// interceptor chain.  It is the explicit opt-in surface for trusted system
// work that must see rows across all tenants.
func (d *Db) Unscoped() *Db {
	return &Db{db: d.db}
}

type DatabaseConfig struct {
	User            string `env:"SCOPEDB_DB_USER" envDefault:"postgres"`
	Password        string `env:"SCOPEDB_DB_PASSWORD" envDefault:"postgres"`
	Host            string `env:"SCOPEDB_DB_HOST" envDefault:"localhost"`
	Port            string `env:"SCOPEDB_DB_PORT" envDefault:"5432"`
	DatabaseName    string `env:"SCOPEDB_DB_DATABASE_NAME" envDefault:"postgres"`
	SslMode         string `env:"SCOPEDB_DB_SSL_MODE" envDefault:"require"`
	ApplicationName string `env:"SCOPEDB_DB_APPLICATION_NAME" envDefault:"scopedb"`
}

// NewFromEnv connects to postgres using SCOPEDB_DB_* environment variables.
func NewFromEnv(opts ...Option) (*Db, error) {
	config := DatabaseConfig{}
	err := env.Parse(&config)
	if err != nil {
		return nil, errors.Wrap(err, errors.WithMessage("failed to read database config from environment"))
	}

	logger.Default().Info().
		Str("dbHost", config.Host).
		Str("dbName", config.DatabaseName).
		Msg("connecting to postgres")

	connString := config.ConnString()
	var db *sql.DB
	for i := 1; ; i++ {
		db, err = sql.Open("postgres", connString)
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			break
		}
		if i >= 3 {
			return nil, errors.Wrap(err, errors.WithMessage("failed to connect to postgres"))
		}
		logger.Default().Warn().Err(err).Msg("failed to connect to postgres, retrying")
		time.Sleep(time.Second * 5)
	}

	return New(db, opts...), nil
}

func (d *Db) Close() error {
	return d.db.Close()
}

func (c DatabaseConfig) ConnString() string {
	// Use alternative format for Google Cloud SQL
	if strings.HasPrefix(c.Host, "/cloudsql") {
		return fmt.Sprintf("user=%s password=%s database=%s host=%s",
			c.User, c.Password, c.DatabaseName, c.Host)
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?connect_timeout=10&sslmode=%s&application_name=%s",
		c.User, c.Password, c.Host, c.Port, c.DatabaseName, c.SslMode, c.ApplicationName)
}
