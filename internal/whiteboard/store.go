package whiteboard

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kadirpekel/backplane/internal/sqlutil"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const createWhiteboardTableSQL = `
CREATE TABLE IF NOT EXISTS whiteboards (
    id VARCHAR(255) NOT NULL PRIMARY KEY,
    document TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

// Store persists a single whiteboard document as a JSON blob, mirroring the
// source project's project-docs whiteboard-document convention.
type Store struct {
	db      *sql.DB
	dialect sqlutil.Dialect
	id      string
}

// Config configures the whiteboard store's SQL connection and document ID.
type Config struct {
	Driver           sqlutil.Dialect
	ConnectionString string
	// DocumentID identifies which whiteboard document to load/save. A single
	// backplane deployment typically has exactly one, defaulting to "default".
	DocumentID string
}

// NewStore opens db and creates the whiteboards schema if absent.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = sqlutil.DialectSQLite
	}
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("whiteboard store connection_string is required")
	}
	if cfg.DocumentID == "" {
		cfg.DocumentID = "default"
	}

	db, err := sql.Open(cfg.Driver.DriverName(), cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open whiteboard database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping whiteboard database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createWhiteboardTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create whiteboards table: %w", err)
	}
	return &Store{db: db, dialect: cfg.Driver, id: cfg.DocumentID}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ph(n int) string { return sqlutil.Placeholder(s.dialect, n) }

// Load fetches the persisted whiteboard document, or a fresh empty one if
// none has been saved yet.
func (s *Store) Load(ctx context.Context) (*Whiteboard, error) {
	query := fmt.Sprintf("SELECT document FROM whiteboards WHERE id = %s", s.ph(1))
	row := s.db.QueryRowContext(ctx, query, s.id)

	var doc string
	if err := row.Scan(&doc); err != nil {
		if err == sql.ErrNoRows {
			return &Whiteboard{}, nil
		}
		return nil, fmt.Errorf("failed to load whiteboard %s: %w", s.id, err)
	}
	return UnmarshalState([]byte(doc))
}

// Save persists board as the current whiteboard document.
func (s *Store) Save(ctx context.Context, board *Whiteboard) error {
	doc, err := board.MarshalState()
	if err != nil {
		return fmt.Errorf("marshal whiteboard document: %w", err)
	}
	now := time.Now().UTC()

	var query string
	if s.dialect == sqlutil.DialectPostgres {
		query = fmt.Sprintf(`INSERT INTO whiteboards (id, document, updated_at) VALUES (%s, %s, %s)
            ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`, s.ph(1), s.ph(2), s.ph(3))
	} else {
		query = fmt.Sprintf(`INSERT INTO whiteboards (id, document, updated_at) VALUES (%s, %s, %s)
            ON CONFLICT (id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`, s.ph(1), s.ph(2), s.ph(3))
	}
	if _, err := s.db.ExecContext(ctx, query, s.id, string(doc), now); err != nil {
		return fmt.Errorf("failed to save whiteboard %s: %w", s.id, err)
	}
	return nil
}
