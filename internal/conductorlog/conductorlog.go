// Package conductorlog records conductor delegation decisions — which agent
// delegated a work order to which target, with what confidence — and their
// eventual outcome, so delegation quality can be audited after the fact.
package conductorlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kadirpekel/backplane/internal/apperr"
	"github.com/kadirpekel/backplane/internal/sqlutil"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Outcome is the eventual result of a delegation decision.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePartial Outcome = "partial"
)

// Record is a single conductor delegation decision.
type Record struct {
	ID               string
	WorkOrderID      string
	MissionID        string
	ConductorAgent   string
	DelegationTarget string
	Rationale        string
	ContextInjected  map[string]any
	DecisionFactors  []any
	Confidence       float64
	Outcome          *Outcome
	OutcomeNotes     string
	Metadata         map[string]any
	CreatedAt        time.Time
	OutcomeAt        *time.Time
}

// Stats summarizes delegation outcomes for one (conductor, target) pair.
type Stats struct {
	ConductorAgent   string
	DelegationTarget string
	Total            int
	MeanConfidence   *float64
	SuccessRate      *float64
}

const createConductorLogTableSQL = `
CREATE TABLE IF NOT EXISTS conductor_log (
    id VARCHAR(255) NOT NULL PRIMARY KEY,
    work_order_id VARCHAR(255) NOT NULL,
    mission_id VARCHAR(255),
    conductor_agent VARCHAR(255) NOT NULL,
    delegation_target VARCHAR(255) NOT NULL,
    rationale TEXT,
    context_injected TEXT,
    decision_factors TEXT,
    confidence REAL NOT NULL,
    outcome VARCHAR(32),
    outcome_notes TEXT,
    metadata TEXT,
    created_at TIMESTAMP NOT NULL,
    outcome_at TIMESTAMP NULL
)`

// Store persists conductor delegation records.
type Store struct {
	db      *sql.DB
	dialect sqlutil.Dialect
}

// Config configures the conductor log's SQL connection.
type Config struct {
	Driver           sqlutil.Dialect
	ConnectionString string
}

// NewStore opens db and creates the conductor_log schema if absent.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = sqlutil.DialectSQLite
	}
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("conductor log connection_string is required")
	}

	db, err := sql.Open(cfg.Driver.DriverName(), cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open conductor log database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping conductor log database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createConductorLogTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create conductor_log table: %w", err)
	}
	return &Store{db: db, dialect: cfg.Driver}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ph(n int) string { return sqlutil.Placeholder(s.dialect, n) }

// Create records a new delegation decision with a null outcome, clamping
// confidence to [0, 1]. missionID, contextInjected, and decisionFactors are
// all optional.
func (s *Store) Create(ctx context.Context, workOrderID, missionID, conductorAgent, delegationTarget, rationale string, contextInjected map[string]any, decisionFactors []any, confidence float64, metadata map[string]any) (Record, error) {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return Record{}, fmt.Errorf("marshal conductor log metadata: %w", err)
	}
	ctxInjectedJSON, err := json.Marshal(contextInjected)
	if err != nil {
		return Record{}, fmt.Errorf("marshal conductor log context_injected: %w", err)
	}
	factorsJSON, err := json.Marshal(decisionFactors)
	if err != nil {
		return Record{}, fmt.Errorf("marshal conductor log decision_factors: %w", err)
	}

	r := Record{
		ID:               uuid.NewString(),
		WorkOrderID:      workOrderID,
		MissionID:        missionID,
		ConductorAgent:   conductorAgent,
		DelegationTarget: delegationTarget,
		Rationale:        rationale,
		ContextInjected:  contextInjected,
		DecisionFactors:  decisionFactors,
		Confidence:       confidence,
		Metadata:         metadata,
		CreatedAt:        time.Now().UTC(),
	}

	query := fmt.Sprintf(`INSERT INTO conductor_log
        (id, work_order_id, mission_id, conductor_agent, delegation_target, rationale, context_injected, decision_factors, confidence, outcome, outcome_notes, metadata, created_at, outcome_at)
        VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, NULL, NULL, %s, %s, NULL)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9), s.ph(10), s.ph(11))
	if _, err := s.db.ExecContext(ctx, query,
		r.ID, workOrderID, nullableString(missionID), conductorAgent, delegationTarget, rationale, string(ctxInjectedJSON), string(factorsJSON), confidence, string(metaJSON), r.CreatedAt,
	); err != nil {
		return Record{}, fmt.Errorf("failed to create conductor log record: %w", err)
	}
	return r, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// UpdateOutcome records the eventual outcome of a delegation decision, with
// optional free-text notes. Advisory: a second call on the same record is a
// Conflict.
func (s *Store) UpdateOutcome(ctx context.Context, id string, outcome Outcome, notes string) (Record, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if r.Outcome != nil {
		return Record{}, apperr.Conflict("conductor log record %s already has an outcome", id)
	}

	now := time.Now().UTC()
	query := fmt.Sprintf("UPDATE conductor_log SET outcome = %s, outcome_notes = %s, outcome_at = %s WHERE id = %s", s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	if _, err := s.db.ExecContext(ctx, query, string(outcome), nullableString(notes), now, id); err != nil {
		return Record{}, fmt.Errorf("failed to update outcome for %s: %w", id, err)
	}
	r.Outcome, r.OutcomeAt, r.OutcomeNotes = &outcome, &now, notes
	return r, nil
}

// Get fetches a single record by ID.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	query := fmt.Sprintf("SELECT id, work_order_id, mission_id, conductor_agent, delegation_target, rationale, context_injected, decision_factors, confidence, outcome, outcome_notes, metadata, created_at, outcome_at FROM conductor_log WHERE id = %s", s.ph(1))
	row := s.db.QueryRowContext(ctx, query, id)
	r, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Record{}, apperr.NotFound("conductor log record %s not found", id)
		}
		return Record{}, err
	}
	return r, nil
}

// ListByWorkOrder returns records for workOrderID, oldest first.
func (s *Store) ListByWorkOrder(ctx context.Context, workOrderID string) ([]Record, error) {
	query := fmt.Sprintf("SELECT id, work_order_id, mission_id, conductor_agent, delegation_target, rationale, context_injected, decision_factors, confidence, outcome, outcome_notes, metadata, created_at, outcome_at FROM conductor_log WHERE work_order_id = %s ORDER BY created_at ASC", s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, workOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conductor log by work order: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats aggregates every record grouped by (conductor_agent,
// delegation_target): total count, mean confidence, and success rate over
// decided outcomes. Sorted by total descending then conductor ascending.
func (s *Store) Stats(ctx context.Context) ([]Stats, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT conductor_agent, delegation_target, confidence, outcome FROM conductor_log")
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate conductor log stats: %w", err)
	}
	defer rows.Close()

	type accum struct {
		total       int
		confSum     float64
		decided     int
		successes   int
	}
	groups := map[[2]string]*accum{}
	var order [][2]string

	for rows.Next() {
		var conductor, target string
		var confidence float64
		var outcome sql.NullString
		if err := rows.Scan(&conductor, &target, &confidence, &outcome); err != nil {
			return nil, fmt.Errorf("failed to scan conductor log row: %w", err)
		}
		key := [2]string{conductor, target}
		a, ok := groups[key]
		if !ok {
			a = &accum{}
			groups[key] = a
			order = append(order, key)
		}
		a.total++
		a.confSum += confidence
		if outcome.Valid {
			a.decided++
			if outcome.String == string(OutcomeSuccess) {
				a.successes++
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Stats, 0, len(groups))
	for _, key := range order {
		a := groups[key]
		st := Stats{ConductorAgent: key[0], DelegationTarget: key[1], Total: a.total}
		if a.total > 0 {
			mean := a.confSum / float64(a.total)
			st.MeanConfidence = &mean
		}
		if a.decided > 0 {
			rate := float64(a.successes) / float64(a.decided)
			st.SuccessRate = &rate
		}
		out = append(out, st)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].ConductorAgent < out[j].ConductorAgent
	})
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var r Record
	var missionID, rationale, ctxInjectedJSON, factorsJSON, outcome, outcomeNotes, metaJSON sql.NullString
	var outcomeAt sql.NullTime
	if err := row.Scan(&r.ID, &r.WorkOrderID, &missionID, &r.ConductorAgent, &r.DelegationTarget, &rationale, &ctxInjectedJSON, &factorsJSON, &r.Confidence, &outcome, &outcomeNotes, &metaJSON, &r.CreatedAt, &outcomeAt); err != nil {
		return Record{}, err
	}
	r.MissionID = missionID.String
	r.Rationale = rationale.String
	r.OutcomeNotes = outcomeNotes.String
	if outcome.Valid {
		o := Outcome(outcome.String)
		r.Outcome = &o
	}
	if ctxInjectedJSON.Valid && ctxInjectedJSON.String != "" {
		_ = json.Unmarshal([]byte(ctxInjectedJSON.String), &r.ContextInjected)
	}
	if factorsJSON.Valid && factorsJSON.String != "" {
		_ = json.Unmarshal([]byte(factorsJSON.String), &r.DecisionFactors)
	}
	if metaJSON.Valid && metaJSON.String != "" {
		_ = json.Unmarshal([]byte(metaJSON.String), &r.Metadata)
	}
	if outcomeAt.Valid {
		r.OutcomeAt = &outcomeAt.Time
	}
	return r, nil
}
