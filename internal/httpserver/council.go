package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/backplane/internal/apperr"
	"github.com/kadirpekel/backplane/internal/council"
)

type councilEvaluateRequest struct {
	SessionID string         `json:"session_id"`
	Agent     string         `json:"agent"`
	Action    string         `json:"action"`
	Risk      string         `json:"risk"`
	Rationale string         `json:"rationale"`
	Context   map[string]any `json:"context"`
}

func (s *Server) handleCouncilEvaluate(w http.ResponseWriter, r *http.Request) {
	var req councilEvaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Action == "" || req.Risk == "" {
		writeError(w, apperr.Validation("action and risk are required"))
		return
	}
	risk, err := council.ParseRiskLevel(req.Risk)
	if err != nil {
		writeError(w, err)
		return
	}
	review, err := s.Council.Submit(r.Context(), req.SessionID, req.Agent, req.Action, risk, req.Rationale, req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (s *Server) handleCouncilQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := s.Council.Queue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

type councilResolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

func (s *Server) handleCouncilApprove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req councilResolveRequest
	_ = decodeJSON(r, &req)
	review, err := s.Council.Resolve(r.Context(), id, req.ResolvedBy, true)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (s *Server) handleCouncilReject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req councilResolveRequest
	_ = decodeJSON(r, &req)
	review, err := s.Council.Resolve(r.Context(), id, req.ResolvedBy, false)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (s *Server) handleCouncilDecisions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	decisions, err := s.Council.ListResolved(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decisions)
}
