package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/backplane/internal/apperr"
	"github.com/kadirpekel/backplane/internal/conductorlog"
)

type createConductorLogRequest struct {
	WorkOrderID      string         `json:"work_order_id"`
	MissionID        string         `json:"mission_id"`
	ConductorAgent   string         `json:"conductor_agent"`
	DelegationTarget string         `json:"delegation_target"`
	Rationale        string         `json:"rationale"`
	ContextInjected  map[string]any `json:"context_injected"`
	DecisionFactors  []any          `json:"decision_factors"`
	Confidence       float64        `json:"confidence"`
	Metadata         map[string]any `json:"metadata"`
}

func (s *Server) handleCreateConductorLog(w http.ResponseWriter, r *http.Request) {
	var req createConductorLogRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.WorkOrderID == "" || req.ConductorAgent == "" || req.DelegationTarget == "" {
		writeError(w, apperr.Validation("work_order_id, conductor_agent and delegation_target are required"))
		return
	}
	record, err := s.ConductorLog.Create(r.Context(), req.WorkOrderID, req.MissionID, req.ConductorAgent, req.DelegationTarget, req.Rationale, req.ContextInjected, req.DecisionFactors, req.Confidence, req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

type conductorLogOutcomeRequest struct {
	Outcome      conductorlog.Outcome `json:"outcome"`
	OutcomeNotes string               `json:"outcome_notes"`
}

func (s *Server) handleConductorLogOutcome(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req conductorLogOutcomeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Outcome == "" {
		writeError(w, apperr.Validation("outcome is required"))
		return
	}
	record, err := s.ConductorLog.UpdateOutcome(r.Context(), id, req.Outcome, req.OutcomeNotes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleConductorLogStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ConductorLog.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleConductorLogByWorkOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	records, err := s.ConductorLog.ListByWorkOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetConductorLog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, err := s.ConductorLog.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
