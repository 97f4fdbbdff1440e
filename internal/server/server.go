// Package server exposes records and table definitions over HTTP.
//
// Routes, grouped by controller:
//
//	records  GET    /records/{table}            list
//	         POST   /records/{table}            create one record or an array of them
//	         GET    /records/{table}/{id}       read; comma separated ids read a batch
//	         PUT    /records/{table}/{id}       update
//	         PATCH  /records/{table}/{id}       increment
//	         DELETE /records/{table}/{id}       delete
//	columns  GET    /columns[/{table}[/{column}]]
//	         POST   /columns                    create table
//	         POST   /columns/{table}            add column
//	         PUT    /columns/{table}            rename table
//	         PUT    /columns/{table}/{column}   change column
//	         DELETE /columns/{table}[/{column}]
//	status   GET    /status/ping
//
// GET /metrics serves the prometheus registry when one is given.
//
// Usage:
//
//	srv := server.New(cfg.Server, server.Services{DB: db, Schema: s, Records: rs, DDL: ds})
//	err := srv.Run(ctx)
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koustreak/restdb/internal/config"
	"github.com/koustreak/restdb/internal/database"
	"github.com/koustreak/restdb/internal/ddl"
	"github.com/koustreak/restdb/internal/errs"
	"github.com/koustreak/restdb/internal/logger"
	"github.com/koustreak/restdb/internal/metrics"
	"github.com/koustreak/restdb/internal/record"
	"github.com/koustreak/restdb/internal/schema"
)

// Services are the components the handlers call into. DDL is only needed
// when the columns controller is enabled.
type Services struct {
	DB      *database.DB
	Schema  *schema.Service
	Records *record.Service
	DDL     *ddl.Service
}

type Server struct {
	cfg      config.ServerConfig
	svc      Services
	tenancy  config.TenancyConfig
	log      *logger.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	router   chi.Router
}

type Option func(*Server)

// WithTenancy restricts every record request to the rows whose
// tenancy column equals the tenancy header.
func WithTenancy(t config.TenancyConfig) Option {
	return func(s *Server) { s.tenancy = t }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics records request metrics on m and serves g at /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

func New(cfg config.ServerConfig, svc Services, opts ...Option) *Server {
	s := &Server{cfg: cfg, svc: svc, log: logger.L()}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler is the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.observe, middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errs.Coded(errs.CodeRouteNotFound, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errs.Coded(errs.CodeRouteNotFound, r.Method+" "+r.URL.Path))
	})

	if s.cfg.Serves(config.ControllerRecords) {
		r.Route("/records/{table}", func(r chi.Router) {
			if s.tenancy.Column != "" {
				r.Use(s.tenancyScope)
			}
			r.Get("/", s.listRecords)
			r.Post("/", s.createRecords)
			r.Get("/{id}", s.readRecords)
			r.Put("/{id}", s.updateRecords)
			r.Patch("/{id}", s.incrementRecords)
			r.Delete("/{id}", s.deleteRecords)
		})
	}
	if s.cfg.Serves(config.ControllerColumns) && s.svc.DDL != nil {
		r.Route("/columns", func(r chi.Router) {
			r.Get("/", s.readDatabase)
			r.Post("/", s.createTable)
			r.Get("/{table}", s.readTable)
			r.Post("/{table}", s.addColumn)
			r.Put("/{table}", s.renameTable)
			r.Delete("/{table}", s.removeTable)
			r.Get("/{table}/{column}", s.readColumn)
			r.Put("/{table}/{column}", s.updateColumn)
			r.Delete("/{table}/{column}", s.removeColumn)
		})
	}
	if s.cfg.Serves(config.ControllerStatus) {
		r.Get("/status/ping", s.ping)
	}
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.With().Str("address", s.cfg.Address).Logger().Info("http server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()
	s.log.Info("http server shutting down")
	return httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.ShutdownTimeout > 0 {
		return s.cfg.ShutdownTimeout
	}
	return 10 * time.Second
}
