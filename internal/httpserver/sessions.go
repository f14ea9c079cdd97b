package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kadirpekel/backplane/internal/apperr"
	"github.com/kadirpekel/backplane/internal/memory"
	"github.com/kadirpekel/backplane/internal/pattern"
)

type createSessionRequest struct {
	ID       string         `json:"id"`
	Agent    string         `json:"agent"`
	Project  string         `json:"project"`
	Context  string         `json:"context"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Agent == "" {
		writeError(w, apperr.Validation("agent is required"))
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	session, err := s.Sessions.CreateSession(r.Context(), req.ID, req.Agent, req.Project, req.Context, req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	filter := memory.ListFilter{
		Agent:   r.URL.Query().Get("agent"),
		Project: r.URL.Query().Get("project_id"),
		Limit:   queryInt(r, "limit", 50),
	}
	sessions, err := s.Sessions.ListSessions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.Sessions.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if session == nil {
		writeError(w, apperr.NotFound("session %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type updateSessionRequest struct {
	Summary  *memory.Summary `json:"summary"`
	Metadata map[string]any  `json:"metadata"`
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Summary == nil {
		writeError(w, apperr.Validation("summary is required"))
		return
	}
	if err := s.Sessions.UpdateSummary(r.Context(), id, *req.Summary, req.Metadata); err != nil {
		writeError(w, err)
		return
	}
	session, err := s.Sessions.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type endSessionRequest struct {
	Summary string `json:"summary"`
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req endSessionRequest
	_ = decodeJSON(r, &req)

	if err := s.Sessions.EndSession(r.Context(), id, req.Summary); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

type addEventRequest struct {
	SessionID string         `json:"session_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var req addEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	event, err := s.Sessions.AddEvent(r.Context(), req.SessionID, req.Type, req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

type searchRequest struct {
	Query     string   `json:"query"`
	Limit     int      `json:"limit"`
	Threshold *float32 `json:"threshold"`
}

func (s *Server) handleSearchSessions(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = 10
	}
	results, err := s.Sessions.SearchSessionsSemantic(r.Context(), req.Query, req.Limit, req.Threshold)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// unifiedSearchResponse merges semantic search across sessions and patterns,
// the backplane's "search everything" entry point.
type unifiedSearchResponse struct {
	Sessions []memory.SearchResult  `json:"sessions"`
	Patterns []pattern.SearchResult `json:"patterns"`
}

func (s *Server) handleSearchAll(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = 10
	}

	sessions, err := s.Sessions.SearchSessionsSemantic(r.Context(), req.Query, req.Limit, req.Threshold)
	if err != nil {
		writeError(w, err)
		return
	}
	patterns, err := s.Patterns.Search(r.Context(), req.Query, "", req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, unifiedSearchResponse{Sessions: sessions, Patterns: patterns})
}

func (s *Server) handleLastSessionForAgent(w http.ResponseWriter, r *http.Request) {
	agent := chi.URLParam(r, "agent")
	session, err := s.Sessions.LastSessionForAgent(r.Context(), agent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleRecentSessions(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	limit := queryInt(r, "limit", 20)
	sessions, err := s.Sessions.RecentSessions(r.Context(), days, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}
