package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/backplane/internal/apperr"
	"github.com/kadirpekel/backplane/internal/handoff"
)

type proposeHandoffRequest struct {
	SessionID string         `json:"session_id"`
	FromAgent string         `json:"from_agent"`
	ToAgent   string         `json:"to_agent"`
	Summary   string         `json:"summary"`
	Payload   map[string]any `json:"payload"`
}

func (s *Server) handleProposeHandoff(w http.ResponseWriter, r *http.Request) {
	var req proposeHandoffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.FromAgent == "" || req.ToAgent == "" {
		writeError(w, apperr.Validation("from_agent and to_agent are required"))
		return
	}
	h, err := s.Handoffs.Propose(r.Context(), req.SessionID, req.FromAgent, req.ToAgent, req.Summary, req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleListHandoffs(w http.ResponseWriter, r *http.Request) {
	filter := handoff.ListFilter{
		SessionID: r.URL.Query().Get("session_id"),
		Agent:     r.URL.Query().Get("agent"),
		Status:    handoff.Status(r.URL.Query().Get("status")),
	}
	handoffs, err := s.Handoffs.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, handoffs)
}

func (s *Server) handleListPendingHandoffs(w http.ResponseWriter, r *http.Request) {
	agent := chi.URLParam(r, "agent")
	handoffs, err := s.Handoffs.ListPending(r.Context(), agent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, handoffs)
}

func (s *Server) handleGetHandoff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h, err := s.Handoffs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleAcceptHandoff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h, err := s.Handoffs.Accept(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleCompleteHandoff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h, err := s.Handoffs.Complete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleRejectHandoff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h, err := s.Handoffs.Reject(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}
