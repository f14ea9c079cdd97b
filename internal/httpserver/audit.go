package httpserver

import (
	"net/http"

	"github.com/kadirpekel/backplane/internal/apperr"
	"github.com/kadirpekel/backplane/internal/audit"
)

func (s *Server) handleRecordAudit(w http.ResponseWriter, r *http.Request) {
	var e audit.Entry
	if err := decodeJSON(r, &e); err != nil {
		writeError(w, err)
		return
	}
	if e.Source == "" || e.Action == "" {
		writeError(w, apperr.Validation("source and action are required"))
		return
	}
	recorded, err := s.Audit.Record(r.Context(), e)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recorded)
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	filter := audit.ListFilter{
		Source:    r.URL.Query().Get("source"),
		Agent:     r.URL.Query().Get("agent"),
		SessionID: r.URL.Query().Get("session_id"),
		Limit:     queryInt(r, "limit", 100),
	}
	entries, err := s.Audit.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
