package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/restdb/internal/record"
)

func queryParams(r *http.Request) record.Params {
	return record.ParamsFromQuery(r.URL.Query())
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Records.List(r.Context(), chi.URLParam(r, "table"), queryParams(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) readRecords(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	ids := record.SplitIDs(chi.URLParam(r, "id"))
	if len(ids) > 1 {
		records, err := s.svc.Records.ReadAll(r.Context(), table, ids, queryParams(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
		return
	}
	rec, err := s.svc.Records.Read(r.Context(), table, ids[0], queryParams(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) createRecords(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	records, many, err := decodeRecords(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if many {
		ids, err := s.svc.Records.CreateAll(r.Context(), table, records, queryParams(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ids)
		return
	}
	id, err := s.svc.Records.Create(r.Context(), table, records[0], queryParams(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

type changeOne func(ctx context.Context, table, id string, rec record.Record, params record.Params) (int64, error)
type changeAll func(ctx context.Context, table string, ids []string, records []record.Record, params record.Params) ([]int64, error)

// change applies a body to the ids in the path: one record to one id, or
// an array of records to as many comma separated ids.
func (s *Server) change(w http.ResponseWriter, r *http.Request, one changeOne, all changeAll) {
	table := chi.URLParam(r, "table")
	ids := record.SplitIDs(chi.URLParam(r, "id"))
	records, many, err := decodeRecords(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if many || len(ids) > 1 {
		counts, err := all(r.Context(), table, ids, records, queryParams(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
		return
	}
	n, err := one(r.Context(), table, ids[0], records[0], queryParams(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) updateRecords(w http.ResponseWriter, r *http.Request) {
	s.change(w, r, s.svc.Records.Update, s.svc.Records.UpdateAll)
}

func (s *Server) incrementRecords(w http.ResponseWriter, r *http.Request) {
	s.change(w, r, s.svc.Records.Increment, s.svc.Records.IncrementAll)
}

func (s *Server) deleteRecords(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	ids := record.SplitIDs(chi.URLParam(r, "id"))
	if len(ids) > 1 {
		counts, err := s.svc.Records.DeleteAll(r.Context(), table, ids)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
		return
	}
	n, err := s.svc.Records.Delete(r.Context(), table, ids[0])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
