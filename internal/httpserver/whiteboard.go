package httpserver

import "net/http"

func (s *Server) handleWhiteboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Whiteboard.Snapshot())
}

func (s *Server) handleWhiteboardActiveSessions(w http.ResponseWriter, r *http.Request) {
	snapshot := s.Whiteboard.Snapshot()
	writeJSON(w, http.StatusOK, snapshot.ActiveSessions)
}

func (s *Server) handleWhiteboardActiveTasks(w http.ResponseWriter, r *http.Request) {
	snapshot := s.Whiteboard.Snapshot()
	writeJSON(w, http.StatusOK, snapshot.ActiveTasks)
}

func (s *Server) handleWhiteboardRecentEvents(w http.ResponseWriter, r *http.Request) {
	snapshot := s.Whiteboard.Snapshot()
	events := snapshot.RecentEvents
	if limit := queryInt(r, "limit", 0); limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleWhiteboardRefresh(w http.ResponseWriter, r *http.Request) {
	board, err := s.Whiteboard.Reload(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}
