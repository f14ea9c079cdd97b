// Package agentregistry tracks which agents are alive and reachable across
// process restarts. It is grounded on the teacher's generic in-process
// registry.BaseRegistry pattern, made durable with the same SQL-backed
// dialect-branching shape internal/memory established, since the
// coordination fabric needs agent presence to survive a restart of the
// registry process itself.
package agentregistry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kadirpekel/backplane/internal/sqlutil"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Status is an agent's current reachability state.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Agent is one registered agent's presence record.
type Agent struct {
	Name     string
	Kind     string
	Metadata map[string]any
	Status   Status
	LastSeen time.Time
}

const createAgentsTableSQL = `
CREATE TABLE IF NOT EXISTS agents (
    name VARCHAR(255) NOT NULL PRIMARY KEY,
    kind VARCHAR(255),
    metadata TEXT,
    status VARCHAR(32) NOT NULL,
    last_seen TIMESTAMP NOT NULL
)`

// Store persists agent registration and heartbeat state.
type Store struct {
	db      *sql.DB
	dialect sqlutil.Dialect
}

// Config configures the registry's SQL connection.
type Config struct {
	Driver           sqlutil.Dialect
	ConnectionString string
}

// NewStore opens db and creates the agents schema if absent.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = sqlutil.DialectSQLite
	}
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("agent registry connection_string is required")
	}

	db, err := sql.Open(cfg.Driver.DriverName(), cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open agent registry database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping agent registry database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createAgentsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create agents table: %w", err)
	}
	return &Store{db: db, dialect: cfg.Driver}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ph(n int) string { return sqlutil.Placeholder(s.dialect, n) }

// Register upserts an agent by name, marking it active with last_seen now.
func (s *Store) Register(ctx context.Context, name, kind string, metadata map[string]any) (Agent, error) {
	if name == "" {
		return Agent{}, fmt.Errorf("agent name cannot be empty")
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return Agent{}, fmt.Errorf("marshal agent metadata: %w", err)
	}
	now := time.Now().UTC()

	var query string
	switch s.dialect {
	case sqlutil.DialectPostgres:
		query = fmt.Sprintf(`INSERT INTO agents (name, kind, metadata, status, last_seen) VALUES (%s, %s, %s, %s, %s)
            ON CONFLICT (name) DO UPDATE SET kind = EXCLUDED.kind, metadata = EXCLUDED.metadata, status = EXCLUDED.status, last_seen = EXCLUDED.last_seen`,
			s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5))
	default:
		query = fmt.Sprintf(`INSERT INTO agents (name, kind, metadata, status, last_seen) VALUES (%s, %s, %s, %s, %s)
            ON CONFLICT (name) DO UPDATE SET kind = excluded.kind, metadata = excluded.metadata, status = excluded.status, last_seen = excluded.last_seen`,
			s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5))
	}

	if _, err := s.db.ExecContext(ctx, query, name, kind, string(metaJSON), string(StatusActive), now); err != nil {
		return Agent{}, fmt.Errorf("failed to register agent %s: %w", name, err)
	}
	return Agent{Name: name, Kind: kind, Metadata: metadata, Status: StatusActive, LastSeen: now}, nil
}

// Heartbeat advances an agent's last_seen and forces it active.
func (s *Store) Heartbeat(ctx context.Context, name string) error {
	query := fmt.Sprintf(`UPDATE agents SET last_seen = %s, status = %s WHERE name = %s`, s.ph(1), s.ph(2), s.ph(3))
	res, err := s.db.ExecContext(ctx, query, time.Now().UTC(), string(StatusActive), name)
	if err != nil {
		return fmt.Errorf("failed to heartbeat agent %s: %w", name, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("agent %s not registered", name)
	}
	return nil
}

// Deactivate marks an agent inactive without removing its record.
func (s *Store) Deactivate(ctx context.Context, name string) error {
	query := fmt.Sprintf(`UPDATE agents SET status = %s WHERE name = %s`, s.ph(1), s.ph(2))
	res, err := s.db.ExecContext(ctx, query, string(StatusInactive), name)
	if err != nil {
		return fmt.Errorf("failed to deactivate agent %s: %w", name, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("agent %s not registered", name)
	}
	return nil
}

// Get fetches a single agent by name.
func (s *Store) Get(ctx context.Context, name string) (Agent, error) {
	query := fmt.Sprintf("SELECT name, kind, metadata, status, last_seen FROM agents WHERE name = %s", s.ph(1))
	row := s.db.QueryRowContext(ctx, query, name)
	return scanAgent(row)
}

// List returns agents ordered by last_seen descending, optionally filtered
// by status.
func (s *Store) List(ctx context.Context, status Status) ([]Agent, error) {
	query := "SELECT name, kind, metadata, status, last_seen FROM agents"
	var args []any
	if status != "" {
		query += fmt.Sprintf(" WHERE status = %s", s.ph(1))
		args = append(args, string(status))
	}
	query += " ORDER BY last_seen DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row scanner) (Agent, error) {
	var a Agent
	var metaJSON string
	var status string
	if err := row.Scan(&a.Name, &a.Kind, &metaJSON, &status, &a.LastSeen); err != nil {
		if err == sql.ErrNoRows {
			return Agent{}, fmt.Errorf("agent not found: %w", err)
		}
		return Agent{}, fmt.Errorf("failed to scan agent: %w", err)
	}
	a.Status = Status(status)
	if metaJSON != "" {
		_ = json.Unmarshal([]byte(metaJSON), &a.Metadata)
	}
	return a, nil
}
