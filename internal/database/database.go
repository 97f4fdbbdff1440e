// Package database is the single gateway between restdb and its SQL engine.
//
// A *DB wraps a database/sql pool together with the engine's Dialect. Every
// statement goes through it, which gives one place for placeholder
// rewriting, per-statement deadlines, logging, metrics and error
// normalisation. Driver packages (mysql, postgres, sqlserver) only open the
// pool and provide the Dialect.
//
// Usage:
//
//	db, err := mysql.Open(ctx, cfg, database.WithLogger(log))
//	rows, err := db.Query(ctx, `SELECT "id" FROM "posts" WHERE "id" = ?`, 1)
//	n, err := db.Exec(ctx, `DELETE FROM "posts" WHERE "id" = ?`, 1)
package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/koustreak/restdb/internal/errs"
	"github.com/koustreak/restdb/internal/logger"
	"github.com/koustreak/restdb/internal/metrics"
)

// DB is safe for concurrent use by multiple goroutines.
type DB struct {
	sqlDB   *sql.DB
	dialect Dialect
	cfg     *Config
	log     *logger.Logger
	metrics *metrics.Metrics
}

// Option configures a DB.
type Option func(*DB)

// WithLogger logs every statement on l.
func WithLogger(l *logger.Logger) Option {
	return func(db *DB) { db.log = l }
}

// WithMetrics records every statement on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(db *DB) { db.metrics = m }
}

// New wraps an already opened pool. It does not ping; see Connect.
func New(sqlDB *sql.DB, dialect Dialect, cfg *Config, opts ...Option) *DB {
	if cfg == nil {
		cfg = DefaultConfig(dialect.Driver(), "")
	}
	db := &DB{
		sqlDB:   sqlDB,
		dialect: dialect,
		cfg:     cfg,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Connect applies the pool settings of cfg to sqlDB, verifies the database is
// reachable and returns the wrapped DB. The pool is closed on failure.
func Connect(ctx context.Context, sqlDB *sql.DB, dialect Dialect, cfg *Config, opts ...Option) (*DB, error) {
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.MaxConnLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	db := New(sqlDB, dialect, cfg, opts...)

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.Ping(pingCtx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Dialect returns the engine dialect.
func (db *DB) Dialect() Dialect { return db.dialect }

// Driver returns the engine identifier.
func (db *DB) Driver() Driver { return db.dialect.Driver() }

// Name returns the configured database name.
func (db *DB) Name() string { return db.cfg.Database }

// Tables returns the reflection whitelist; empty means every table.
func (db *DB) Tables() []string { return db.cfg.Tables }

// Logger is the logger statements are written to.
func (db *DB) Logger() *logger.Logger { return db.log }

// Metrics is the collector set statements are observed on; it may be nil.
func (db *DB) Metrics() *metrics.Metrics { return db.metrics }

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.sqlDB.PingContext(ctx); err != nil {
		return db.mapError(err, "ping failed")
	}
	return nil
}

// Close releases all resources held by the connection pool.
func (db *DB) Close() error {
	return db.sqlDB.Close()
}

// Query executes a statement returning rows and scans all of them.
func (db *DB) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	bound, err := db.rebind(query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := db.sqlDB.QueryContext(ctx, bound, args...)
	if err != nil {
		db.observe(query, args, start, err)
		return nil, db.mapError(err, "query failed")
	}
	records, err := ScanRows(rows)
	db.observe(query, args, start, err)
	if err != nil {
		return nil, db.mapError(err, "scan failed")
	}
	return records, nil
}

// QueryValue executes a statement and returns the first column of the first
// row, or nil when there is no row.
func (db *DB) QueryValue(ctx context.Context, query string, args ...any) (any, error) {
	records, err := db.queryOrdered(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, nil
	}
	return records[0][0], nil
}

// Exec executes a statement and returns the number of affected rows.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	bound, err := db.rebind(query)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	res, err := db.sqlDB.ExecContext(ctx, bound, args...)
	db.observe(query, args, start, err)
	if err != nil {
		return 0, db.mapError(err, "exec failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, db.mapError(err, "rows affected")
	}
	return n, nil
}

// ExecStatement executes st.
func (db *DB) ExecStatement(ctx context.Context, st Statement) (int64, error) {
	return db.Exec(ctx, st.SQL, st.Args...)
}

// ExecThenQueryValue executes st and then query on one connection and
// returns the first column of the first row of query. Session scoped
// lookups such as LAST_INSERT_ID() need both on the same connection.
func (db *DB) ExecThenQueryValue(ctx context.Context, st Statement, query string) (any, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	bound, err := db.rebind(st.SQL)
	if err != nil {
		return nil, err
	}

	conn, err := db.sqlDB.Conn(ctx)
	if err != nil {
		return nil, db.mapError(err, "acquire connection")
	}
	defer conn.Close()

	start := time.Now()
	_, err = conn.ExecContext(ctx, bound, st.Args...)
	db.observe(st.SQL, st.Args, start, err)
	if err != nil {
		return nil, db.mapError(err, "exec failed")
	}

	start = time.Now()
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		db.observe(query, nil, start, err)
		return nil, db.mapError(err, "query failed")
	}
	values, err := scanValues(rows)
	db.observe(query, nil, start, err)
	if err != nil {
		return nil, db.mapError(err, "scan failed")
	}
	if len(values) == 0 || len(values[0]) == 0 {
		return nil, nil
	}
	return values[0][0], nil
}

// queryOrdered is Query keeping column order, for single value lookups.
func (db *DB) queryOrdered(ctx context.Context, query string, args ...any) ([][]any, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	bound, err := db.rebind(query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := db.sqlDB.QueryContext(ctx, bound, args...)
	if err != nil {
		db.observe(query, args, start, err)
		return nil, db.mapError(err, "query failed")
	}
	values, err := scanValues(rows)
	db.observe(query, args, start, err)
	if err != nil {
		return nil, db.mapError(err, "scan failed")
	}
	return values, nil
}

func (db *DB) rebind(query string) (string, error) {
	bound, err := db.dialect.Placeholders().ReplacePlaceholders(query)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "rewrite placeholders", err)
	}
	return bound, nil
}

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.cfg.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.cfg.QueryTimeout)
}

func (db *DB) observe(query string, args []any, start time.Time, err error) {
	d := time.Since(start)
	db.log.Query(query, args, d, err)
	db.metrics.ObserveQuery(string(db.dialect.Driver()), statementKind(query), d, err)
}
