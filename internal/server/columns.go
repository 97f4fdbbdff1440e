package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/restdb/internal/ddl"
	"github.com/koustreak/restdb/internal/errs"
	"github.com/koustreak/restdb/internal/schema"
)

// --- reads ---

func (s *Server) readDatabase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	names, err := s.svc.Schema.TableNames(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tables := make([]*schema.Table, 0, len(names))
	for _, name := range names {
		t, err := s.svc.Schema.Table(ctx, name)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		tables = append(tables, t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (s *Server) readTable(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Schema.Table(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) readColumn(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Schema.Table(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := chi.URLParam(r, "column")
	col := t.Column(name)
	if col == nil {
		s.writeError(w, r, errs.Coded(errs.CodeColumnNotFound, name))
		return
	}
	writeJSON(w, http.StatusOK, col)
}

// --- changes ---

// writeSnapshot answers with the schema after a change. A failed change
// still reports the snapshot, so that clients see what was applied.
func (s *Server) writeSnapshot(w http.ResponseWriter, r *http.Request, snap *ddl.Snapshot, err error) {
	if err != nil {
		var extra map[string]any
		if snap != nil {
			extra = map[string]any{"snapshot": snap}
		}
		s.writeErrorDetails(w, r, err, extra)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) createTable(w http.ResponseWriter, r *http.Request) {
	var t schema.Table
	if err := decodeInto(r, &t); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.svc.DDL.AddTable(r.Context(), &t)
	s.writeSnapshot(w, r, snap, err)
}

func (s *Server) renameTable(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeInto(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Name == "" {
		s.writeError(w, r, errs.Coded(errs.CodeInputValidationFailed, "name"))
		return
	}
	snap, err := s.svc.DDL.RenameTable(r.Context(), chi.URLParam(r, "table"), body.Name)
	s.writeSnapshot(w, r, snap, err)
}

func (s *Server) removeTable(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.DDL.RemoveTable(r.Context(), chi.URLParam(r, "table"))
	s.writeSnapshot(w, r, snap, err)
}

func (s *Server) addColumn(w http.ResponseWriter, r *http.Request) {
	var col schema.Column
	if err := decodeInto(r, &col); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.svc.DDL.AddColumn(r.Context(), chi.URLParam(r, "table"), col)
	s.writeSnapshot(w, r, snap, err)
}

func (s *Server) updateColumn(w http.ResponseWriter, r *http.Request) {
	var changes ddl.ColumnChanges
	if err := decodeInto(r, &changes); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.svc.DDL.UpdateColumn(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "column"), changes)
	s.writeSnapshot(w, r, snap, err)
}

func (s *Server) removeColumn(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.DDL.RemoveColumn(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "column"))
	s.writeSnapshot(w, r, snap, err)
}
