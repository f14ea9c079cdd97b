// Package council implements the validation council: a deterministic risk
// gate that classifies a proposed action by risk level and either
// auto-approves it, auto-blocks it, or queues it for a human decision.
package council

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kadirpekel/backplane/internal/apperr"
	"github.com/kadirpekel/backplane/internal/sqlutil"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// RiskLevel is the severity a proposed action is classified at, using the
// wire values §3 names.
type RiskLevel string

const (
	RiskLow         RiskLevel = "LOW"
	RiskMed         RiskLevel = "MED"
	RiskHigh        RiskLevel = "HIGH"
	RiskDestructive RiskLevel = "DESTRUCTIVE"
)

// Decision is the council's verdict on a proposal.
type Decision string

const (
	DecisionApproved     Decision = "approved"
	DecisionPendingHuman Decision = "pending_human"
	DecisionBlocked      Decision = "blocked"
)

// decisionTable maps a risk level to its deterministic decision; every risk
// level resolves automatically except high, which requires a human.
var decisionTable = map[RiskLevel]Decision{
	RiskLow:         DecisionApproved,
	RiskMed:         DecisionApproved,
	RiskHigh:        DecisionPendingHuman,
	RiskDestructive: DecisionBlocked,
}

// riskAliases maps case-insensitive spellings onto the canonical wire value,
// so "medium"/"Medium"/"MEDIUM" all resolve to RiskMed alongside the spec's
// own "MED".
var riskAliases = map[string]RiskLevel{
	"LOW":         RiskLow,
	"MED":         RiskMed,
	"MEDIUM":      RiskMed,
	"HIGH":        RiskHigh,
	"DESTRUCTIVE": RiskDestructive,
}

// ParseRiskLevel normalizes risk (any case, with "MEDIUM" accepted as an
// alias for "MED") to its canonical RiskLevel, or reports apperr.Validation
// if it names no recognized risk level.
func ParseRiskLevel(risk string) (RiskLevel, error) {
	if level, ok := riskAliases[strings.ToUpper(strings.TrimSpace(risk))]; ok {
		return level, nil
	}
	return "", apperr.Validation("unrecognized risk level %q", risk)
}

// Classify returns the deterministic decision for risk. risk must already be
// a canonical value produced by ParseRiskLevel; an unrecognized value is a
// programming error, not a user input one, so it still resolves to the safe
// default of requiring a human rather than panicking.
func Classify(risk RiskLevel) Decision {
	if d, ok := decisionTable[risk]; ok {
		return d
	}
	return DecisionPendingHuman
}

// Review is a single council review of a proposed action.
type Review struct {
	ID          string
	SessionID   string
	Agent       string
	Action      string
	Risk        RiskLevel
	Decision    Decision
	Rationale   string
	ResolvedBy  string
	Resolution  string
	CreatedAt   time.Time
	ResolvedAt  *time.Time
	Context     map[string]any
}

const createReviewsTableSQL = `
CREATE TABLE IF NOT EXISTS council_reviews (
    id VARCHAR(255) NOT NULL PRIMARY KEY,
    session_id VARCHAR(255),
    agent VARCHAR(255),
    action TEXT NOT NULL,
    risk VARCHAR(32) NOT NULL,
    decision VARCHAR(32) NOT NULL,
    rationale TEXT,
    resolved_by VARCHAR(255),
    resolution VARCHAR(32),
    context TEXT,
    created_at TIMESTAMP NOT NULL,
    resolved_at TIMESTAMP NULL
)`

// Store persists council reviews.
type Store struct {
	db      *sql.DB
	dialect sqlutil.Dialect
}

// Config configures the council store's SQL connection.
type Config struct {
	Driver           sqlutil.Dialect
	ConnectionString string
}

// NewStore opens db and creates the council schema if absent.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = sqlutil.DialectSQLite
	}
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("council store connection_string is required")
	}

	db, err := sql.Open(cfg.Driver.DriverName(), cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open council database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping council database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createReviewsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create council_reviews table: %w", err)
	}
	return &Store{db: db, dialect: cfg.Driver}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ph(n int) string { return sqlutil.Placeholder(s.dialect, n) }

// Submit classifies action's risk and records the review, auto-resolving
// approved/blocked decisions immediately.
func (s *Store) Submit(ctx context.Context, sessionID, agent, action string, risk RiskLevel, rationale string, reviewCtx map[string]any) (Review, error) {
	risk, err := ParseRiskLevel(string(risk))
	if err != nil {
		return Review{}, err
	}

	ctxJSON, err := json.Marshal(reviewCtx)
	if err != nil {
		return Review{}, fmt.Errorf("marshal review context: %w", err)
	}

	r := Review{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Agent:     agent,
		Action:    action,
		Risk:      risk,
		Decision:  Classify(risk),
		Rationale: rationale,
		Context:   reviewCtx,
		CreatedAt: time.Now().UTC(),
	}

	var resolvedBy, resolution string
	var resolvedAt *time.Time
	if r.Decision != DecisionPendingHuman {
		resolvedBy = "auto"
		resolution = string(r.Decision)
		now := time.Now().UTC()
		resolvedAt = &now
		r.ResolvedBy, r.Resolution, r.ResolvedAt = resolvedBy, resolution, resolvedAt
	}

	query := fmt.Sprintf(`INSERT INTO council_reviews
        (id, session_id, agent, action, risk, decision, rationale, resolved_by, resolution, context, created_at, resolved_at)
        VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9), s.ph(10), s.ph(11), s.ph(12))
	if _, err := s.db.ExecContext(ctx, query,
		r.ID, sessionID, agent, action, string(risk), string(r.Decision), rationale, resolvedBy, resolution, string(ctxJSON), r.CreatedAt, resolvedAt,
	); err != nil {
		return Review{}, fmt.Errorf("failed to submit review: %w", err)
	}
	return r, nil
}

// Resolve records a human decision (approve/reject) on a pending review.
func (s *Store) Resolve(ctx context.Context, id, resolvedBy string, approve bool) (Review, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return Review{}, err
	}
	if r.Decision != DecisionPendingHuman || r.ResolvedAt != nil {
		return Review{}, apperr.Conflict("review %s is not awaiting human resolution", id)
	}

	resolution := "reject"
	if approve {
		resolution = "approve"
	}
	now := time.Now().UTC()

	query := fmt.Sprintf("UPDATE council_reviews SET resolved_by = %s, resolution = %s, resolved_at = %s WHERE id = %s",
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	if _, err := s.db.ExecContext(ctx, query, resolvedBy, resolution, now, id); err != nil {
		return Review{}, fmt.Errorf("failed to resolve review %s: %w", id, err)
	}

	r.ResolvedBy, r.Resolution, r.ResolvedAt = resolvedBy, resolution, &now
	return r, nil
}

// Get fetches a single review by ID.
func (s *Store) Get(ctx context.Context, id string) (Review, error) {
	query := fmt.Sprintf("SELECT id, session_id, agent, action, risk, decision, rationale, resolved_by, resolution, context, created_at, resolved_at FROM council_reviews WHERE id = %s", s.ph(1))
	row := s.db.QueryRowContext(ctx, query, id)
	r, err := scanReview(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Review{}, apperr.NotFound("review %s not found", id)
		}
		return Review{}, err
	}
	return r, nil
}

// Queue returns reviews still awaiting human resolution, oldest first.
func (s *Store) Queue(ctx context.Context) ([]Review, error) {
	query := fmt.Sprintf("SELECT id, session_id, agent, action, risk, decision, rationale, resolved_by, resolution, context, created_at, resolved_at FROM council_reviews WHERE decision = %s AND resolved_at IS NULL ORDER BY created_at ASC",
		s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, string(DecisionPendingHuman))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch review queue: %w", err)
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListResolved returns reviews that have already been resolved, whether
// auto-resolved or decided by a human, newest first, capped at limit.
func (s *Store) ListResolved(ctx context.Context, limit int) ([]Review, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT id, session_id, agent, action, risk, decision, rationale, resolved_by, resolution, context, created_at, resolved_at FROM council_reviews WHERE resolved_at IS NOT NULL ORDER BY resolved_at DESC LIMIT %d", limit)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolved reviews: %w", err)
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReview(row scanner) (Review, error) {
	var r Review
	var risk, decision string
	var rationale, resolvedBy, resolution, ctxJSON sql.NullString
	var resolvedAt sql.NullTime
	if err := row.Scan(&r.ID, &r.SessionID, &r.Agent, &r.Action, &risk, &decision, &rationale, &resolvedBy, &resolution, &ctxJSON, &r.CreatedAt, &resolvedAt); err != nil {
		return Review{}, err
	}
	r.Risk, r.Decision = RiskLevel(risk), Decision(decision)
	r.Rationale, r.ResolvedBy, r.Resolution = rationale.String, resolvedBy.String, resolution.String
	if ctxJSON.Valid && ctxJSON.String != "" {
		_ = json.Unmarshal([]byte(ctxJSON.String), &r.Context)
	}
	if resolvedAt.Valid {
		r.ResolvedAt = &resolvedAt.Time
	}
	return r, nil
}
