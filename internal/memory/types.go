// Package memory implements the session memory backplane: sessions, their
// events and conversation messages, temporal and semantic queries, and
// LLM-driven summarization. It is grounded on the dialect-branching SQL
// session store the teacher repo built for agent conversation history,
// reworked around the backplane's own session/event/message shape.
package memory

import "time"

// Role is the speaker of a stored conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Session is a continuous work period for one agent.
type Session struct {
	ID        string
	Agent     string
	Project   string
	Context   string
	Metadata  map[string]any
	Summary   *Summary
	StartedAt time.Time
	EndedAt   *time.Time

	// Events is populated only by GetSession, ordered ascending by Timestamp.
	Events []SessionEvent `json:"events,omitempty"`
}

// SessionEvent is a point-in-time occurrence within a session.
type SessionEvent struct {
	ID        int64
	SessionID string
	Type      string
	Payload   map[string]any
	Timestamp time.Time
}

// Message is one turn of a session's conversation history.
type Message struct {
	ID          int64
	SessionID   string
	Role        Role
	Text        string
	Tools       []string
	Type        string
	Subtype     string
	Metadata    map[string]any
	SequenceNum int64
	CreatedAt   time.Time
}

// Summary is the structured output of session summarization, persisted via
// UpdateSummary.
type Summary struct {
	Text          string   `json:"summary"`
	KeyEvents     []string `json:"key_events"`
	DecisionsMade []string `json:"decisions_made"`
	Outcomes      []string `json:"outcomes"`
	NextSteps     []string `json:"next_steps"`
}

// ListFilter narrows ListSessions.
type ListFilter struct {
	Agent   string
	Project string
	Since   *time.Time
	Limit   int
}

// SearchResult pairs a session with its semantic-search similarity score.
type SearchResult struct {
	Session Session
	Score   float32
}
