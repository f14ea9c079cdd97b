package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/backplane/internal/apperr"
)

type setContextRequest struct {
	Value     json.RawMessage `json:"value"`
	Writer    string          `json:"writer"`
	SessionID string          `json:"session_id"`
	ExpiresAt *time.Time      `json:"expires_at"`
}

func (s *Server) handleSetContext(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req setContextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry, err := s.Context.Set(r.Context(), key, req.Value, req.Writer, req.SessionID, req.ExpiresAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	entry, err := s.Context.Get(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteContext(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := s.Context.Delete(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListContext(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	entries, err := s.Context.List(r.Context(), prefix)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleContextHistory(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	limit := queryInt(r, "limit", 20)
	if limit < 0 {
		writeError(w, apperr.Validation("limit must be non-negative"))
		return
	}
	history, err := s.Context.History(r.Context(), key, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
