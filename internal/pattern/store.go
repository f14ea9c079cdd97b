package pattern

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kadirpekel/backplane/internal/apperr"
	"github.com/kadirpekel/backplane/internal/embedding"
	"github.com/kadirpekel/backplane/internal/sqlutil"
	"github.com/kadirpekel/backplane/internal/vectorstore"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const patternCollection = "backplane_patterns"

const createPatternsTableSQL = `
CREATE TABLE IF NOT EXISTS patterns (
    id VARCHAR(255) NOT NULL PRIMARY KEY,
    type VARCHAR(32) NOT NULL,
    domain VARCHAR(255) NOT NULL,
    title TEXT NOT NULL,
    description TEXT,
    action TEXT,
    outcome TEXT,
    context TEXT,
    metadata TEXT,
    confidence REAL NOT NULL,
    created_by VARCHAR(255),
    usage_count INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

const createObservationsTableSQL = `
CREATE TABLE IF NOT EXISTS pattern_observations (
    id VARCHAR(255) NOT NULL PRIMARY KEY,
    pattern_id VARCHAR(255) NOT NULL,
    session_id VARCHAR(255),
    success_rating INT,
    feedback TEXT,
    created_at TIMESTAMP NOT NULL
)`

// Store persists harvested patterns and answers domain and semantic search
// queries over them.
type Store struct {
	db      *sql.DB
	dialect sqlutil.Dialect

	embedder *embedding.Gateway
	vectors  vectorstore.Provider
}

// Config configures the pattern store's SQL connection.
type Config struct {
	Driver           sqlutil.Dialect
	ConnectionString string
}

// NewStore opens db, creates the patterns schema if absent, and returns a
// ready Store. A nil embedder or vectors degrades semantic search to empty
// results rather than failing.
func NewStore(cfg Config, embedder *embedding.Gateway, vectors vectorstore.Provider) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = sqlutil.DialectSQLite
	}
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("pattern store connection_string is required")
	}

	db, err := sql.Open(cfg.Driver.DriverName(), cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern store database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping pattern store database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createPatternsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create patterns table: %w", err)
	}
	if _, err := db.ExecContext(ctx, createObservationsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create pattern_observations table: %w", err)
	}

	if vectors == nil {
		vectors = vectorstore.NilProvider{}
	}
	if err := vectors.CreateCollection(ctx, patternCollection, embedding.VectorWidth()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create pattern collection: %w", err)
	}

	return &Store{db: db, dialect: cfg.Driver, embedder: embedder, vectors: vectors}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ph(n int) string {
	return sqlutil.Placeholder(s.dialect, n)
}

// buildEmbeddingText assembles the "<description>. <action>. <outcome>" text
// patterns are embedded on, dropping the trailing ". " when outcome is
// unset rather than embedding a dangling separator.
func buildEmbeddingText(description, action, outcome string) string {
	text := fmt.Sprintf("%s. %s", description, action)
	if outcome != "" {
		text += ". " + outcome
	}
	return text
}

// Harvest validates p's type, records a new pattern, and, if an embedder is
// configured, indexes it for semantic search keyed on
// "<description>. <action>. <outcome>".
func (s *Store) Harvest(ctx context.Context, p Pattern) (Pattern, error) {
	patternType, err := ParseType(string(p.Type))
	if err != nil {
		return Pattern{}, err
	}
	p.Type = patternType

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Confidence < 0 {
		p.Confidence = 0
	}
	if p.Confidence > 1 {
		p.Confidence = 1
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	ctxJSON, err := json.Marshal(p.Context)
	if err != nil {
		return Pattern{}, fmt.Errorf("marshal pattern context: %w", err)
	}
	metaJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		return Pattern{}, fmt.Errorf("marshal pattern metadata: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO patterns
        (id, type, domain, title, description, action, outcome, context, metadata, confidence, created_by, usage_count, created_at, updated_at)
        VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9), s.ph(10), s.ph(11), s.ph(12), s.ph(13), s.ph(14))
	if _, err := s.db.ExecContext(ctx, query,
		p.ID, string(p.Type), p.Domain, p.Title, p.Description, p.Action, p.Outcome, string(ctxJSON), string(metaJSON), p.Confidence, p.CreatedBy, 0, p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return Pattern{}, fmt.Errorf("failed to harvest pattern: %w", err)
	}

	if vec, err := s.embedder.Embed(ctx, buildEmbeddingText(p.Description, p.Action, p.Outcome)); err == nil && vec != nil {
		_ = s.vectors.Upsert(ctx, patternCollection, p.ID, vec, map[string]any{"domain": p.Domain})
	}

	return p, nil
}

// Observe appends a pattern-application Observation and bumps the pattern's
// usage count.
func (s *Store) Observe(ctx context.Context, obs Observation) (Observation, error) {
	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	obs.CreatedAt = time.Now().UTC()

	if obs.SuccessRating != nil && (*obs.SuccessRating < 1 || *obs.SuccessRating > 5) {
		return Observation{}, apperr.Validation("success_rating must be between 1 and 5")
	}

	insert := fmt.Sprintf(`INSERT INTO pattern_observations
        (id, pattern_id, session_id, success_rating, feedback, created_at)
        VALUES (%s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	if _, err := s.db.ExecContext(ctx, insert, obs.ID, obs.PatternID, nullableString(obs.SessionID), obs.SuccessRating, nullableString(obs.Feedback), obs.CreatedAt); err != nil {
		return Observation{}, fmt.Errorf("failed to record observation: %w", err)
	}

	update := fmt.Sprintf(`UPDATE patterns SET usage_count = usage_count + 1, updated_at = %s WHERE id = %s`, s.ph(1), s.ph(2))
	res, err := s.db.ExecContext(ctx, update, obs.CreatedAt, obs.PatternID)
	if err != nil {
		return Observation{}, fmt.Errorf("failed to observe pattern: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return Observation{}, apperr.NotFound("pattern %s not found", obs.PatternID)
	}
	return obs, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns patterns matching filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Pattern, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT id, type, domain, title, description, action, outcome, context, metadata, confidence, created_by, usage_count, created_at, updated_at FROM patterns"
	var args []any
	var clauses []string
	if filter.Type != "" {
		clauses = append(clauses, fmt.Sprintf("type = %s", s.ph(len(args)+1)))
		args = append(args, string(filter.Type))
	}
	if filter.Domain != "" {
		clauses = append(clauses, fmt.Sprintf("domain = %s", s.ph(len(args)+1)))
		args = append(args, filter.Domain)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	defer rows.Close()

	var out []Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Search performs a semantic search over the pattern embeddings, which are
// built from each pattern's description, action and outcome (the title is
// not embedded), optionally narrowed to a domain. It returns an empty slice, not an error,
// if no embedder/vector provider is configured.
func (s *Store) Search(ctx context.Context, query string, domain string, topK int) ([]SearchResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil || vec == nil {
		return nil, nil
	}

	var hits []vectorstore.Result
	if domain != "" {
		hits, err = s.vectors.SearchWithFilter(ctx, patternCollection, vec, topK, map[string]any{"domain": domain})
	} else {
		hits, err = s.vectors.Search(ctx, patternCollection, vec, topK)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search patterns: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		p, err := s.Get(ctx, hit.ID)
		if err != nil {
			continue
		}
		results = append(results, SearchResult{Pattern: p, Score: hit.Score})
	}
	return results, nil
}

// Get fetches a single pattern by ID.
func (s *Store) Get(ctx context.Context, id string) (Pattern, error) {
	query := fmt.Sprintf("SELECT id, type, domain, title, description, action, outcome, context, metadata, confidence, created_by, usage_count, created_at, updated_at FROM patterns WHERE id = %s", s.ph(1))
	row := s.db.QueryRowContext(ctx, query, id)
	p, err := scanPattern(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Pattern{}, apperr.NotFound("pattern %s not found", id)
		}
		return Pattern{}, err
	}
	return p, nil
}

// GetWithStats fetches a pattern along with its observation count and,
// among observations that carried a rating, their average.
func (s *Store) GetWithStats(ctx context.Context, id string) (Stats, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return Stats{}, err
	}

	query := fmt.Sprintf("SELECT COUNT(*), AVG(success_rating) FROM pattern_observations WHERE pattern_id = %s", s.ph(1))
	var count int
	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&count, &avg); err != nil {
		return Stats{}, fmt.Errorf("failed to load pattern stats: %w", err)
	}

	stats := Stats{Pattern: p, ObservationCount: count, AverageRating: avg.Float64}

	// The latest created_at is read as a plain column rather than MAX(), so
	// that SQLite reports it with its TIMESTAMP type and it scans as a time.
	lastQuery := fmt.Sprintf("SELECT created_at FROM pattern_observations WHERE pattern_id = %s ORDER BY created_at DESC LIMIT 1", s.ph(1))
	var lastUsed time.Time
	switch err := s.db.QueryRowContext(ctx, lastQuery, id).Scan(&lastUsed); {
	case err == nil:
		stats.LastUsedAt = &lastUsed
	case err != sql.ErrNoRows:
		return Stats{}, fmt.Errorf("failed to load pattern stats: %w", err)
	}
	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPattern(row scanner) (Pattern, error) {
	var p Pattern
	var patternType string
	var action, outcome, ctxJSON, metaJSON sql.NullString
	if err := row.Scan(&p.ID, &patternType, &p.Domain, &p.Title, &p.Description, &action, &outcome, &ctxJSON, &metaJSON, &p.Confidence, &p.CreatedBy, &p.UsageCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Pattern{}, err
		}
		return Pattern{}, fmt.Errorf("failed to scan pattern: %w", err)
	}
	p.Type = Type(patternType)
	p.Action, p.Outcome = action.String, outcome.String
	if ctxJSON.Valid && ctxJSON.String != "" {
		_ = json.Unmarshal([]byte(ctxJSON.String), &p.Context)
	}
	if metaJSON.Valid && metaJSON.String != "" {
		_ = json.Unmarshal([]byte(metaJSON.String), &p.Metadata)
	}
	return p, nil
}
