// Package audit implements the append-only, system-wide audit timeline:
// every notable action any component takes is recorded here and never
// mutated or deleted afterward.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kadirpekel/backplane/internal/sqlutil"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Entry is a single immutable audit record.
type Entry struct {
	ID        string
	Source    string
	Action    string
	Agent     string
	Target    string
	Risk      string
	Outcome   string
	Metadata  map[string]any
	SessionID string
	CreatedAt time.Time
}

const createAuditTableSQL = `
CREATE TABLE IF NOT EXISTS audit_log (
    id VARCHAR(255) NOT NULL PRIMARY KEY,
    source VARCHAR(255) NOT NULL,
    action TEXT NOT NULL,
    agent VARCHAR(255),
    target VARCHAR(255),
    risk VARCHAR(32),
    outcome VARCHAR(64),
    metadata TEXT,
    session_id VARCHAR(255),
    created_at TIMESTAMP NOT NULL
)`

// Store persists audit entries.
type Store struct {
	db      *sql.DB
	dialect sqlutil.Dialect
}

// Config configures the audit store's SQL connection.
type Config struct {
	Driver           sqlutil.Dialect
	ConnectionString string
}

// NewStore opens db and creates the audit_log schema if absent.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = sqlutil.DialectSQLite
	}
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("audit store connection_string is required")
	}

	db, err := sql.Open(cfg.Driver.DriverName(), cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createAuditTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit_log table: %w", err)
	}
	return &Store{db: db, dialect: cfg.Driver}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ph(n int) string { return sqlutil.Placeholder(s.dialect, n) }

// Record appends a new audit entry.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()

	metaJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal audit metadata: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO audit_log (id, source, action, agent, target, risk, outcome, metadata, session_id, created_at)
        VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9), s.ph(10))
	if _, err := s.db.ExecContext(ctx, query,
		e.ID, e.Source, e.Action, e.Agent, e.Target, e.Risk, e.Outcome, string(metaJSON), e.SessionID, e.CreatedAt,
	); err != nil {
		return Entry{}, fmt.Errorf("failed to record audit entry: %w", err)
	}
	return e, nil
}

// ListFilter narrows List.
type ListFilter struct {
	Source    string
	Agent     string
	SessionID string
	Limit     int
}

// List returns audit entries matching filter, most recent first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT id, source, action, agent, target, risk, outcome, metadata, session_id, created_at FROM audit_log WHERE 1=1"
	var args []any
	n := 1
	if filter.Source != "" {
		query += fmt.Sprintf(" AND source = %s", s.ph(n))
		args = append(args, filter.Source)
		n++
	}
	if filter.Agent != "" {
		query += fmt.Sprintf(" AND agent = %s", s.ph(n))
		args = append(args, filter.Agent)
		n++
	}
	if filter.SessionID != "" {
		query += fmt.Sprintf(" AND session_id = %s", s.ph(n))
		args = append(args, filter.SessionID)
		n++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var agent, target, risk, outcome, metaJSON, sessionID sql.NullString
		if err := rows.Scan(&e.ID, &e.Source, &e.Action, &agent, &target, &risk, &outcome, &metaJSON, &sessionID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Agent, e.Target, e.Risk, e.Outcome, e.SessionID = agent.String, target.String, risk.String, outcome.String, sessionID.String
		if metaJSON.Valid && metaJSON.String != "" {
			_ = json.Unmarshal([]byte(metaJSON.String), &e.Metadata)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
