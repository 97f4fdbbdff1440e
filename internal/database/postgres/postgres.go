// Package postgres connects restdb to PostgreSQL through pgx.
package postgres

import (
	"context"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/errs"
)

const defaultPort = 5432

// Open opens a PostgreSQL connection pool for cfg and pings it. pgx is used
// through its database/sql adapter so that every engine shares one DB type.
func Open(ctx context.Context, cfg *database.Config, opts ...database.Option) (*database.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = FormatDSN(cfg)
	}

	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	if cfg.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = cfg.ConnectTimeout
	}

	sqlDB := stdlib.OpenDB(*connCfg)
	return database.Connect(ctx, sqlDB, Dialect{}, cfg, opts...)
}

// FormatDSN builds a postgres:// URL for cfg.
func FormatDSN(cfg *database.Config) string {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   net.JoinHostPort(cfg.Address, strconv.Itoa(port)),
		Path:   "/" + cfg.Database,
	}
	return u.String()
}
