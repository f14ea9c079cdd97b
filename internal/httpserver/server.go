// Package httpserver wires every backplane module onto a chi router, one
// thin handler per operation translating JSON to a typed store call and
// mapping apperr errors to status codes at the boundary.
package httpserver

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/backplane/internal/agentregistry"
	"github.com/kadirpekel/backplane/internal/audit"
	"github.com/kadirpekel/backplane/internal/bus"
	"github.com/kadirpekel/backplane/internal/conductorlog"
	"github.com/kadirpekel/backplane/internal/council"
	"github.com/kadirpekel/backplane/internal/ctxboard"
	"github.com/kadirpekel/backplane/internal/handoff"
	"github.com/kadirpekel/backplane/internal/memory"
	"github.com/kadirpekel/backplane/internal/observability"
	"github.com/kadirpekel/backplane/internal/pattern"
	"github.com/kadirpekel/backplane/internal/sse"
	"github.com/kadirpekel/backplane/internal/whiteboard"
)

// Server bundles every module's store so handlers can reach them.
type Server struct {
	Bus           bus.Bus
	DB            *sql.DB
	Sessions      *memory.Store
	Patterns      *pattern.Store
	Extractor     *pattern.Extractor
	Agents        *agentregistry.Store
	Context       *ctxboard.Store
	Handoffs      *handoff.Store
	Council       *council.Store
	ConductorLog  *conductorlog.Store
	Audit         *audit.Store
	Whiteboard    *whiteboard.Listener
	Observability *observability.Manager
	Logger        *slog.Logger
}

// Router builds the chi router exposing every endpoint in the backplane's
// HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if tracer := s.Observability.Tracer(); tracer != nil || s.Observability.Metrics() != nil {
		r.Use(observability.HTTPMiddleware(tracer, s.Observability.Metrics()))
	}
	if s.Observability.MetricsEnabled() {
		r.Handle(s.Observability.MetricsEndpoint(), s.Observability.MetricsHandler())
	}

	r.Get("/api/health", s.handleHealth)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/", s.handleListSessions)
		r.Post("/events", s.handleAddEvent)
		r.Post("/search", s.handleSearchSessions)
		r.Post("/search/all", s.handleSearchAll)
		r.Get("/agents/{agent}/last", s.handleLastSessionForAgent)
		r.Get("/agents/{agent}/recent", s.handleRecentSessions)
		r.Get("/{id}", s.handleGetSession)
		r.Put("/{id}", s.handleUpdateSession)
		r.Post("/{id}/end", s.handleEndSession)
	})

	r.Route("/api/patterns", func(r chi.Router) {
		r.Post("/", s.handleHarvestPattern)
		r.Post("/search", s.handleSearchPatterns)
		r.Post("/observations", s.handleObservePattern)
		r.Get("/", s.handleListPatterns)
		r.Get("/stats", s.handlePatternStats)
		r.Post("/extract/{session_id}", s.handleExtractPatterns)
		r.Get("/{id}", s.handleGetPattern)
	})

	r.Route("/api/agents", func(r chi.Router) {
		r.Post("/register", s.handleRegisterAgent)
		r.Post("/{name}/heartbeat", s.handleAgentHeartbeat)
		r.Post("/{name}/deactivate", s.handleDeactivateAgent)
		r.Get("/{name}", s.handleGetAgent)
		r.Get("/", s.handleListAgents)
	})

	r.Route("/api/context", func(r chi.Router) {
		r.Get("/", s.handleListContext)
		r.Put("/{key}", s.handleSetContext)
		r.Get("/{key}", s.handleGetContext)
		r.Delete("/{key}", s.handleDeleteContext)
		r.Get("/{key}/history", s.handleContextHistory)
	})

	r.Route("/api/handoffs", func(r chi.Router) {
		r.Post("/", s.handleProposeHandoff)
		r.Get("/", s.handleListHandoffs)
		r.Get("/pending/{agent}", s.handleListPendingHandoffs)
		r.Get("/{id}", s.handleGetHandoff)
		r.Post("/{id}/accept", s.handleAcceptHandoff)
		r.Post("/{id}/complete", s.handleCompleteHandoff)
		r.Post("/{id}/reject", s.handleRejectHandoff)
	})

	r.Route("/api/council", func(r chi.Router) {
		r.Post("/evaluate", s.handleCouncilEvaluate)
		r.Get("/queue", s.handleCouncilQueue)
		r.Post("/queue/{id}/approve", s.handleCouncilApprove)
		r.Post("/queue/{id}/reject", s.handleCouncilReject)
		r.Get("/decisions", s.handleCouncilDecisions)
	})

	r.Route("/api/conductor-log", func(r chi.Router) {
		r.Post("/", s.handleCreateConductorLog)
		r.Patch("/{id}/outcome", s.handleConductorLogOutcome)
		r.Get("/stats", s.handleConductorLogStats)
		r.Get("/work-order/{id}", s.handleConductorLogByWorkOrder)
		r.Get("/{id}", s.handleGetConductorLog)
	})

	r.Route("/api/audit", func(r chi.Router) {
		r.Post("/", s.handleRecordAudit)
		r.Get("/", s.handleListAudit)
	})

	r.Route("/api/whiteboard", func(r chi.Router) {
		r.Get("/", s.handleWhiteboard)
		r.Get("/active-sessions", s.handleWhiteboardActiveSessions)
		r.Get("/active-tasks", s.handleWhiteboardActiveTasks)
		r.Get("/all-tasks", s.handleWhiteboardActiveTasks)
		r.Get("/recent-events", s.handleWhiteboardRecentEvents)
		r.Post("/refresh", s.handleWhiteboardRefresh)
	})

	r.Get("/stream", sse.Handler(s.Bus, bus.TopicSystem, s.Logger))
	r.Get("/stream/sessions", sse.Handler(s.Bus, bus.TopicSession, s.Logger))

	return r
}

// handleHealth reports liveness plus per-dependency readiness: the database
// connection and the event bus transport. A dependency failure degrades the
// overall status to "degraded" without returning a non-200, since the
// process itself is still alive and able to report on itself.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	deps := map[string]string{}
	status := "ok"

	if s.DB != nil {
		if err := s.DB.PingContext(r.Context()); err != nil {
			deps["database"] = "unreachable: " + err.Error()
			status = "degraded"
		} else {
			deps["database"] = "ok"
		}
	}

	if s.Bus != nil {
		if err := s.Bus.Ping(r.Context()); err != nil {
			deps["bus"] = "unreachable: " + err.Error()
			status = "degraded"
		} else {
			deps["bus"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": status, "dependencies": deps})
}
