package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/restdb/internal/errs"
	"github.com/koustreak/restdb/internal/record"
)

// observe puts a request scoped logger in the context, then logs and
// counts the request under its route pattern once it is served.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		reqLog := s.log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		r = r.WithContext(reqLog.WithContext(r.Context()))

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		d := time.Since(start)

		reqLog.HTTPEvent().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", d).
			Msg("request")
		s.metrics.ObserveRequest(r.Method, route, status, d)
	})
}

// routePattern keeps metric labels bounded: unmatched paths share one label.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// tenancyScope restricts the request to the rows of one tenant: tables with
// the tenancy column are filtered on it and inserts into them have it set.
func (s *Server) tenancyScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get(s.tenancy.Header)
		if tenant == "" {
			s.writeError(w, r, errs.New(errs.ErrKindPermissionDenied, "missing "+s.tenancy.Header+" header"))
			return
		}
		ctx := r.Context()
		qc := record.FromContext(ctx).
			WithScope(record.ColumnScope(s.tenancy.Column, tenant)).
			WithValue(s.tenancy.Column, tenant)
		next.ServeHTTP(w, r.WithContext(record.NewContext(ctx, qc)))
	})
}
