// Package ctxboard implements the shared context board: a keyed JSON value
// store where every write is also appended to an immutable history, so any
// agent can see not just the current value of a key but how it got there.
// It follows the dialect-branching SQL store shape internal/memory
// established, scoped down to a single table plus its history.
package ctxboard

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kadirpekel/backplane/internal/apperr"
	"github.com/kadirpekel/backplane/internal/sqlutil"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Entry is the current state of one board key.
type Entry struct {
	Key       string
	Value     json.RawMessage
	Writer    string
	SessionID string
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

// HistoryEntry is one past write to a key.
type HistoryEntry struct {
	Key       string
	Value     json.RawMessage
	OldValue  json.RawMessage
	Writer    string
	SessionID string
	WrittenAt time.Time
}

const createBoardTableSQL = `
CREATE TABLE IF NOT EXISTS context_board (
    key VARCHAR(512) NOT NULL PRIMARY KEY,
    value TEXT NOT NULL,
    writer VARCHAR(255),
    session_id VARCHAR(255),
    expires_at TIMESTAMP NULL,
    updated_at TIMESTAMP NOT NULL
)`

const createHistoryTableSQLTemplate = `
CREATE TABLE IF NOT EXISTS context_board_history (
    id %s,
    key VARCHAR(512) NOT NULL,
    value TEXT NOT NULL,
    old_value TEXT,
    writer VARCHAR(255),
    session_id VARCHAR(255),
    written_at TIMESTAMP NOT NULL
)`

// Store persists the board's current key/value entries and their history.
type Store struct {
	db      *sql.DB
	dialect sqlutil.Dialect
}

// Config configures the board's SQL connection.
type Config struct {
	Driver           sqlutil.Dialect
	ConnectionString string
}

// NewStore opens db and creates the board schema if absent.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = sqlutil.DialectSQLite
	}
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("context board connection_string is required")
	}

	db, err := sql.Open(cfg.Driver.DriverName(), cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open context board database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping context board database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createBoardTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create context_board table: %w", err)
	}
	historySQL := fmt.Sprintf(createHistoryTableSQLTemplate, sqlutil.AutoIncrementColumn(cfg.Driver))
	if _, err := db.ExecContext(ctx, historySQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create context_board_history table: %w", err)
	}
	return &Store{db: db, dialect: cfg.Driver}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ph(n int) string { return sqlutil.Placeholder(s.dialect, n) }

// Set writes key's value, appending the previous value (if any) to history.
func (s *Store) Set(ctx context.Context, key string, value json.RawMessage, writer, sessionID string, expiresAt *time.Time) (Entry, error) {
	if key == "" {
		return Entry{}, fmt.Errorf("context board key cannot be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var oldValue json.RawMessage
	row := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT value FROM context_board WHERE key = %s", s.ph(1)), key)
	var raw string
	if err := row.Scan(&raw); err == nil {
		oldValue = json.RawMessage(raw)
	} else if err != sql.ErrNoRows {
		return Entry{}, fmt.Errorf("failed to read previous value for %s: %w", key, err)
	}

	now := time.Now().UTC()

	upsert := fmt.Sprintf(`INSERT INTO context_board (key, value, writer, session_id, expires_at, updated_at)
        VALUES (%s, %s, %s, %s, %s, %s)`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	if s.dialect == sqlutil.DialectPostgres {
		upsert += " ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, writer = EXCLUDED.writer, session_id = EXCLUDED.session_id, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at"
	} else {
		upsert += " ON CONFLICT (key) DO UPDATE SET value = excluded.value, writer = excluded.writer, session_id = excluded.session_id, expires_at = excluded.expires_at, updated_at = excluded.updated_at"
	}
	if _, err := tx.ExecContext(ctx, upsert, key, string(value), writer, sessionID, expiresAt, now); err != nil {
		return Entry{}, fmt.Errorf("failed to set key %s: %w", key, err)
	}

	histInsert := fmt.Sprintf(`INSERT INTO context_board_history (key, value, old_value, writer, session_id, written_at)
        VALUES (%s, %s, %s, %s, %s, %s)`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	if _, err := tx.ExecContext(ctx, histInsert, key, string(value), nullableJSON(oldValue), writer, sessionID, now); err != nil {
		return Entry{}, fmt.Errorf("failed to append history for %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("commit context board write: %w", err)
	}

	return Entry{Key: key, Value: value, Writer: writer, SessionID: sessionID, ExpiresAt: expiresAt, UpdatedAt: now}, nil
}

// Get fetches a key's current value, or apperr.NotFound if it has expired or
// never existed.
func (s *Store) Get(ctx context.Context, key string) (Entry, error) {
	query := fmt.Sprintf("SELECT key, value, writer, session_id, expires_at, updated_at FROM context_board WHERE key = %s", s.ph(1))
	row := s.db.QueryRowContext(ctx, query, key)
	entry, err := scanEntry(row)
	if err != nil {
		return Entry{}, err
	}
	if isExpired(entry) {
		return Entry{}, apperr.NotFound("key %s not found", key)
	}
	return entry, nil
}

// List returns non-expired entries whose key has the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]Entry, error) {
	query := "SELECT key, value, writer, session_id, expires_at, updated_at FROM context_board"
	var args []any
	if prefix != "" {
		query += fmt.Sprintf(" WHERE key LIKE %s", s.ph(1))
		args = append(args, prefix+"%")
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list context board: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if isExpired(e) {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes a key and its current value (history rows are preserved
// for audit).
func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM context_board WHERE key = %s", s.ph(1)), key)
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound("key %s not found", key)
	}
	return nil
}

// History returns key's write history, most recent first, capped to limit
// (default 20, max 100).
func (s *Store) History(ctx context.Context, key string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	query := fmt.Sprintf("SELECT key, value, old_value, writer, session_id, written_at FROM context_board_history WHERE key = %s ORDER BY written_at DESC LIMIT %d", s.ph(1), limit)
	rows, err := s.db.QueryContext(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", key, err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		var value, oldValue sql.NullString
		if err := rows.Scan(&h.Key, &value, &oldValue, &h.Writer, &h.SessionID, &h.WrittenAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		h.Value = json.RawMessage(value.String)
		if oldValue.Valid {
			h.OldValue = json.RawMessage(oldValue.String)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func isExpired(e Entry) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(time.Now().UTC())
}

func nullableJSON(v json.RawMessage) any {
	if v == nil {
		return nil
	}
	return string(v)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var value string
	var expiresAt sql.NullTime
	if err := row.Scan(&e.Key, &value, &e.Writer, &e.SessionID, &expiresAt, &e.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, apperr.NotFound("key not found")
		}
		return Entry{}, fmt.Errorf("failed to scan board entry: %w", err)
	}
	e.Value = json.RawMessage(value)
	if expiresAt.Valid {
		e.ExpiresAt = &expiresAt.Time
	}
	return e, nil
}
