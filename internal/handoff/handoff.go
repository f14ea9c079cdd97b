// Package handoff implements the explicit agent-to-agent handoff state
// machine: a handoff is proposed pending, then either accepted or rejected,
// and an accepted handoff is later completed. Any transition outside that
// graph is a conflict, not a silent no-op, so callers always know whether
// their request actually changed anything.
package handoff

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kadirpekel/backplane/internal/apperr"
	"github.com/kadirpekel/backplane/internal/sqlutil"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Status is a handoff's position in the state machine.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// Handoff is a single agent-to-agent work transfer.
type Handoff struct {
	ID          string
	SessionID   string
	FromAgent   string
	ToAgent     string
	Summary     string
	Payload     map[string]any
	Status      Status
	CreatedAt   time.Time
	AcceptedAt  *time.Time
	CompletedAt *time.Time
}

const createHandoffsTableSQL = `
CREATE TABLE IF NOT EXISTS handoffs (
    id VARCHAR(255) NOT NULL PRIMARY KEY,
    session_id VARCHAR(255),
    from_agent VARCHAR(255) NOT NULL,
    to_agent VARCHAR(255) NOT NULL,
    summary TEXT,
    payload TEXT,
    status VARCHAR(32) NOT NULL,
    created_at TIMESTAMP NOT NULL,
    accepted_at TIMESTAMP NULL,
    completed_at TIMESTAMP NULL
)`

// Store persists handoffs and enforces their state machine.
type Store struct {
	db      *sql.DB
	dialect sqlutil.Dialect
}

// Config configures the handoff store's SQL connection.
type Config struct {
	Driver           sqlutil.Dialect
	ConnectionString string
}

// NewStore opens db and creates the handoffs schema if absent.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = sqlutil.DialectSQLite
	}
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("handoff store connection_string is required")
	}

	db, err := sql.Open(cfg.Driver.DriverName(), cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open handoff database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping handoff database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createHandoffsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create handoffs table: %w", err)
	}
	return &Store{db: db, dialect: cfg.Driver}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ph(n int) string { return sqlutil.Placeholder(s.dialect, n) }

// Propose creates a new handoff in the pending state.
func (s *Store) Propose(ctx context.Context, sessionID, fromAgent, toAgent, summary string, payload map[string]any) (Handoff, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return Handoff{}, fmt.Errorf("marshal handoff payload: %w", err)
	}

	h := Handoff{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		FromAgent: fromAgent,
		ToAgent:   toAgent,
		Summary:   summary,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	query := fmt.Sprintf(`INSERT INTO handoffs (id, session_id, from_agent, to_agent, summary, payload, status, created_at)
        VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8))
	if _, err := s.db.ExecContext(ctx, query, h.ID, sessionID, fromAgent, toAgent, summary, string(payloadJSON), string(StatusPending), h.CreatedAt); err != nil {
		return Handoff{}, fmt.Errorf("failed to propose handoff: %w", err)
	}
	return h, nil
}

// Accept transitions a pending handoff to accepted.
func (s *Store) Accept(ctx context.Context, id string) (Handoff, error) {
	return s.transition(ctx, id, StatusPending, StatusAccepted, true, false)
}

// Reject transitions a pending handoff to rejected.
func (s *Store) Reject(ctx context.Context, id string) (Handoff, error) {
	return s.transition(ctx, id, StatusPending, StatusRejected, false, false)
}

// Complete transitions an accepted handoff to completed.
func (s *Store) Complete(ctx context.Context, id string) (Handoff, error) {
	return s.transition(ctx, id, StatusAccepted, StatusCompleted, false, true)
}

func (s *Store) transition(ctx context.Context, id string, from, to Status, setAccepted, setCompleted bool) (Handoff, error) {
	h, err := s.Get(ctx, id)
	if err != nil {
		return Handoff{}, err
	}
	if h.Status != from {
		return Handoff{}, apperr.Conflict("handoff %s is %s, cannot transition to %s", id, h.Status, to)
	}

	now := time.Now().UTC()
	var query string
	if setAccepted {
		query = fmt.Sprintf("UPDATE handoffs SET status = %s, accepted_at = %s WHERE id = %s", s.ph(1), s.ph(2), s.ph(3))
	} else if setCompleted {
		query = fmt.Sprintf("UPDATE handoffs SET status = %s, completed_at = %s WHERE id = %s", s.ph(1), s.ph(2), s.ph(3))
	} else {
		query = fmt.Sprintf("UPDATE handoffs SET status = %s WHERE id = %s", s.ph(1), s.ph(2))
		if _, err := s.db.ExecContext(ctx, query, string(to), id); err != nil {
			return Handoff{}, fmt.Errorf("failed to transition handoff %s: %w", id, err)
		}
		h.Status = to
		return h, nil
	}

	if _, err := s.db.ExecContext(ctx, query, string(to), now, id); err != nil {
		return Handoff{}, fmt.Errorf("failed to transition handoff %s: %w", id, err)
	}
	h.Status = to
	if setAccepted {
		h.AcceptedAt = &now
	}
	if setCompleted {
		h.CompletedAt = &now
	}
	return h, nil
}

// Get fetches a single handoff by ID.
func (s *Store) Get(ctx context.Context, id string) (Handoff, error) {
	query := fmt.Sprintf("SELECT id, session_id, from_agent, to_agent, summary, payload, status, created_at, accepted_at, completed_at FROM handoffs WHERE id = %s", s.ph(1))
	row := s.db.QueryRowContext(ctx, query, id)
	h, err := scanHandoff(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Handoff{}, apperr.NotFound("handoff %s not found", id)
		}
		return Handoff{}, err
	}
	return h, nil
}

// ListPending returns pending handoffs addressed to agent, oldest first.
func (s *Store) ListPending(ctx context.Context, toAgent string) ([]Handoff, error) {
	query := fmt.Sprintf("SELECT id, session_id, from_agent, to_agent, summary, payload, status, created_at, accepted_at, completed_at FROM handoffs WHERE status = %s AND to_agent = %s ORDER BY created_at ASC",
		s.ph(1), s.ph(2))
	return s.query(ctx, query, string(StatusPending), toAgent)
}

// ListFilter narrows List.
type ListFilter struct {
	SessionID string
	Agent     string
	Status    Status
}

// List returns handoffs matching filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Handoff, error) {
	query := "SELECT id, session_id, from_agent, to_agent, summary, payload, status, created_at, accepted_at, completed_at FROM handoffs WHERE 1=1"
	var args []any
	n := 1
	if filter.SessionID != "" {
		query += fmt.Sprintf(" AND session_id = %s", s.ph(n))
		args = append(args, filter.SessionID)
		n++
	}
	if filter.Agent != "" {
		query += fmt.Sprintf(" AND (from_agent = %s OR to_agent = %s)", s.ph(n), s.ph(n+1))
		args = append(args, filter.Agent, filter.Agent)
		n += 2
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = %s", s.ph(n))
		args = append(args, string(filter.Status))
		n++
	}
	query += " ORDER BY created_at DESC"
	return s.query(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Handoff, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list handoffs: %w", err)
	}
	defer rows.Close()

	var out []Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHandoff(row scanner) (Handoff, error) {
	var h Handoff
	var payloadJSON string
	var status string
	var acceptedAt, completedAt sql.NullTime
	if err := row.Scan(&h.ID, &h.SessionID, &h.FromAgent, &h.ToAgent, &h.Summary, &payloadJSON, &status, &h.CreatedAt, &acceptedAt, &completedAt); err != nil {
		return Handoff{}, err
	}
	h.Status = Status(status)
	if payloadJSON != "" {
		_ = json.Unmarshal([]byte(payloadJSON), &h.Payload)
	}
	if acceptedAt.Valid {
		h.AcceptedAt = &acceptedAt.Time
	}
	if completedAt.Valid {
		h.CompletedAt = &completedAt.Time
	}
	return h, nil
}
