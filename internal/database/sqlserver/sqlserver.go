// Package sqlserver connects restdb to Microsoft SQL Server.
package sqlserver

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"strconv"

	_ "github.com/denisenkom/go-mssqldb" // register "sqlserver" driver

	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/errs"
)

const defaultPort = 1433

// Open opens a SQL Server connection pool for cfg and pings it.
func Open(ctx context.Context, cfg *database.Config, opts ...database.Option) (*database.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = FormatDSN(cfg)
	}

	sqlDB, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	return database.Connect(ctx, sqlDB, Dialect{}, cfg, opts...)
}

// FormatDSN builds a sqlserver:// URL for cfg.
func FormatDSN(cfg *database.Config) string {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	query := url.Values{}
	query.Set("database", cfg.Database)
	if cfg.ConnectTimeout > 0 {
		query.Set("dial timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Address, strconv.Itoa(port)),
		RawQuery: query.Encode(),
	}
	return u.String()
}
