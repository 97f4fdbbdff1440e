package server

import (
	"net/http"
	"time"
)

// pingResult holds round trip times in microseconds.
type pingResult struct {
	DB    int64 `json:"db"`
	Cache int64 `json:"cache"`
}

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	start := time.Now()
	if _, err := s.svc.DB.QueryValue(ctx, "SELECT 1"); err != nil {
		s.writeError(w, r, err)
		return
	}
	dbTime := time.Since(start)

	cacheTime, err := s.svc.Schema.Ping(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pingResult{DB: dbTime.Microseconds(), Cache: cacheTime.Microseconds()})
}
