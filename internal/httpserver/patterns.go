package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/backplane/internal/apperr"
	"github.com/kadirpekel/backplane/internal/pattern"
)

func (s *Server) handleHarvestPattern(w http.ResponseWriter, r *http.Request) {
	var p pattern.Pattern
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, err)
		return
	}
	harvested, err := s.Patterns.Harvest(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, harvested)
}

type patternSearchRequest struct {
	Query  string `json:"query"`
	Domain string `json:"domain"`
	Limit  int    `json:"limit"`
}

func (s *Server) handleSearchPatterns(w http.ResponseWriter, r *http.Request) {
	var req patternSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = 10
	}
	results, err := s.Patterns.Search(r.Context(), req.Query, req.Domain, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

type observeRequest struct {
	PatternID     string `json:"pattern_id"`
	SessionID     string `json:"session_id"`
	SuccessRating *int   `json:"success_rating"`
	Feedback      string `json:"feedback"`
}

func (s *Server) handleObservePattern(w http.ResponseWriter, r *http.Request) {
	var req observeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	obs, err := s.Patterns.Observe(r.Context(), pattern.Observation{
		PatternID:     req.PatternID,
		SessionID:     req.SessionID,
		SuccessRating: req.SuccessRating,
		Feedback:      req.Feedback,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	filter := pattern.ListFilter{
		Type:   pattern.Type(r.URL.Query().Get("type")),
		Domain: r.URL.Query().Get("domain"),
		Limit:  queryInt(r, "limit", 50),
	}
	patterns, err := s.Patterns.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, patterns)
}

func (s *Server) handleGetPattern(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.Patterns.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePatternStats(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, apperr.Validation("id query parameter is required"))
		return
	}
	stats, err := s.Patterns.GetWithStats(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleExtractPatterns(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	if s.Extractor == nil {
		writeError(w, apperr.Dependency("pattern extraction", apperr.Validation("no LLM client configured")))
		return
	}

	session, err := s.Sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if session == nil {
		writeError(w, apperr.NotFound("session %s not found", sessionID))
		return
	}
	patterns, err := s.Extractor.ExtractFromSession(r.Context(), *session)
	if err != nil {
		writeError(w, apperr.Dependency("pattern extraction", err))
		return
	}
	writeJSON(w, http.StatusOK, patterns)
}
