package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/koustreak/restdb/internal/cache"
	"github.com/koustreak/restdb/internal/config"
	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/database/mysql"
	"github.com/koustreak/restdb/internal/database/postgres"
	"github.com/koustreak/restdb/internal/database/sqlserver"
	"github.com/koustreak/restdb/internal/ddl"
	"github.com/koustreak/restdb/internal/filestore/minio"
	"github.com/koustreak/restdb/internal/logger"
	"github.com/koustreak/restdb/internal/metrics"
	"github.com/koustreak/restdb/internal/record"
	"github.com/koustreak/restdb/internal/schema"
	"github.com/koustreak/restdb/internal/server"
)

// app holds the wired components of one process.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	db       *database.DB
	schema   *schema.Service
	records  *record.Service
	ddl      *ddl.Service
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, log: logger.L(), registry: prometheus.NewRegistry()}
	a.metrics = metrics.New(a.registry)

	db, err := openDatabase(ctx, cfg.Database.DatabaseConfig(),
		database.WithLogger(a.log), database.WithMetrics(a.metrics))
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	c, err := a.openCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.schema = schema.NewService(schema.NewReflector(db), c,
		schema.WithPrefix(a.cachePrefix()),
		schema.WithTTL(cfg.Cache.TTL),
		schema.WithLogger(a.log),
		schema.WithMetrics(a.metrics),
	)
	a.records = record.NewService(db, a.schema, record.WithJoinLimit(cfg.Joins.MaxRecords))
	if cfg.Server.Serves(config.ControllerColumns) {
		a.ddl = ddl.NewService(db, a.schema)
	}

	a.log.With().
		Str("driver", string(db.Driver())).
		Str("database", db.Name()).
		Str("cache", cfg.Cache.Type).
		Logger().Info("database ready")
	return a, nil
}

func openDatabase(ctx context.Context, cfg *database.Config, opts ...database.Option) (*database.DB, error) {
	switch cfg.Driver {
	case database.DriverMySQL:
		return mysql.Open(ctx, cfg, opts...)
	case database.DriverPostgres:
		return postgres.Open(ctx, cfg, opts...)
	case database.DriverSQLServer:
		return sqlserver.Open(ctx, cfg, opts...)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func (a *app) openCache(ctx context.Context) (cache.Cache, error) {
	switch a.cfg.Cache.Type {
	case "", "none":
		return cache.None{}, nil
	case "memory":
		return cache.NewMemory(), nil
	case "objectstore":
		fsCfg := a.cfg.Cache.FilestoreConfig()
		store, err := minio.New(ctx, fsCfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		if err := store.EnsureBucket(ctx, fsCfg.DefaultBucket); err != nil {
			return nil, err
		}
		return cache.NewObjectStore(store, fsCfg.DefaultBucket, a.cfg.Cache.Prefix), nil
	default:
		return nil, fmt.Errorf("unsupported cache type %q", a.cfg.Cache.Type)
	}
}

// cachePrefix keeps two servers on different databases apart when they
// share an object store bucket.
func (a *app) cachePrefix() string {
	d := a.cfg.Database
	return schema.CachePrefix(d.Driver, d.Database,
		d.Address, strconv.Itoa(d.Port), d.DSN, strings.Join(d.Tables, ","))
}

func (a *app) server() *server.Server {
	opts := []server.Option{
		server.WithLogger(a.log),
		server.WithMetrics(a.metrics, a.registry),
	}
	if a.cfg.Tenancy.Column != "" {
		opts = append(opts, server.WithTenancy(a.cfg.Tenancy))
	}
	return server.New(a.cfg.Server, server.Services{
		DB:      a.db,
		Schema:  a.schema,
		Records: a.records,
		DDL:     a.ddl,
	}, opts...)
}

// Close releases the resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.ErrorWith("close failed", err, nil)
		}
	}
	a.closers = nil
}
