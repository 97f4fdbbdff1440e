// Package mysql connects restdb to MySQL and MariaDB.
package mysql

import (
	"context"
	"database/sql"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/errs"
)

const defaultPort = 3306

// Open opens a MySQL connection pool for cfg and pings it.
func Open(ctx context.Context, cfg *database.Config, opts ...database.Option) (*database.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = FormatDSN(cfg)
	}

	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	return database.Connect(ctx, sqlDB, Dialect{}, cfg, opts...)
}

// FormatDSN builds the DSN for cfg. The session runs in ANSI mode so that
// double-quoted identifiers work, and times are parsed into time.Time.
func FormatDSN(cfg *database.Config) string {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Address, strconv.Itoa(port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Timeout = cfg.ConnectTimeout
	mc.Params = map[string]string{
		"charset":  "utf8mb4",
		"sql_mode": "'ANSI,ONLY_FULL_GROUP_BY'",
	}
	return mc.FormatDSN()
}
