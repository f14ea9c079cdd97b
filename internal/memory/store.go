package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kadirpekel/backplane/internal/apperr"
	"github.com/kadirpekel/backplane/internal/embedding"
	"github.com/kadirpekel/backplane/internal/vectorstore"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store persists sessions, session events, and conversation messages, and
// answers the temporal and semantic queries C8 defines. It owns its schema
// (sessions / session_events / session_messages) and degrades gracefully
// when embedding or vector search is unavailable: rows are still written,
// just without a usable vector.
type Store struct {
	db      *sql.DB
	dialect Dialect
	cfg     *SQLConfig

	embedder *embedding.Gateway
	vectors  vectorstore.Provider
}

// NewStore opens the configured database, creates the schema if absent, and
// returns a ready Store. A nil embedder or vectors is valid — semantic
// features then degrade to empty results rather than failing.
func NewStore(cfg *SQLConfig, embedder *embedding.Gateway, vectors vectorstore.Provider) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("session memory config is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver.driverName(), cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open session memory database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping session memory database: %w", err)
	}

	if vectors == nil {
		vectors = vectorstore.NilProvider{}
	}

	s := &Store{db: db, dialect: cfg.Driver, cfg: cfg, embedder: embedder, vectors: vectors}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session memory schema: %w", err)
	}
	if err := vectors.CreateCollection(ctx, cfg.Collection, embedding.VectorWidth()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session memory collection: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createSessionsTableSQL); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	eventsSQL := fmt.Sprintf(createSessionEventsTableSQLTemplate, autoIncrementColumn(s.dialect))
	if _, err := s.db.ExecContext(ctx, eventsSQL); err != nil {
		return fmt.Errorf("failed to create session_events table: %w", err)
	}
	messagesSQL := fmt.Sprintf(createSessionMessagesTableSQLTemplate, autoIncrementColumn(s.dialect))
	if _, err := s.db.ExecContext(ctx, messagesSQL); err != nil {
		return fmt.Errorf("failed to create session_messages table: %w", err)
	}
	return nil
}

// Close releases the database connection and the embedder.
func (s *Store) Close() error {
	if s.embedder != nil {
		s.embedder.Close()
	}
	return s.db.Close()
}

// ph renders the dialect-appropriate placeholder for the nth (1-indexed)
// bound parameter, mirroring the teacher's per-query $N/? branching without
// repeating the branch at every call site.
func (s *Store) ph(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func marshalJSON(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalJSONMap(s string) map[string]any {
	out := map[string]any{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

// CreateSession stores a new session with started_at = now(), ended_at =
// null.
func (s *Store) CreateSession(ctx context.Context, id, agent, project, sessionContext string, metadata map[string]any) (*Session, error) {
	if agent == "" {
		return nil, fmt.Errorf("agent is required")
	}
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}

	metaJSON, err := marshalJSON(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`
INSERT INTO sessions (id, agent, project, context, metadata, started_at)
VALUES (%s, %s, %s, %s, %s, %s)
`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))

	if _, err := s.db.ExecContext(ctx, query, id, agent, project, sessionContext, metaJSON, now); err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	return &Session{
		ID: id, Agent: agent, Project: project, Context: sessionContext,
		Metadata: metadata, StartedAt: now,
	}, nil
}

// AddEvent appends a session event, deriving its embedding from
// "<type>. <k: v, ...>" text. Embedding failure is non-fatal: the event is
// stored regardless.
func (s *Store) AddEvent(ctx context.Context, sessionID, eventType string, payload map[string]any) (*SessionEvent, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID is required")
	}
	if eventType == "" {
		return nil, fmt.Errorf("event type is required")
	}

	payloadJSON, err := marshalJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`
INSERT INTO session_events (session_id, type, payload, occurred_at)
VALUES (%s, %s, %s, %s)
`, s.ph(1), s.ph(2), s.ph(3), s.ph(4))

	result, err := s.db.ExecContext(ctx, query, sessionID, eventType, payloadJSON, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session event: %w", err)
	}

	vec, _ := s.embedder.Embed(ctx, formatEventText(eventType, payload))
	if vec != nil {
		id, _ := result.LastInsertId()
		_ = s.vectors.Upsert(ctx, s.cfg.Collection, fmt.Sprintf("event:%d", id), vec, map[string]any{
			"kind": "event", "session_id": sessionID,
		})
	}

	id, _ := result.LastInsertId()
	return &SessionEvent{ID: id, SessionID: sessionID, Type: eventType, Payload: payload, Timestamp: now}, nil
}

// formatEventText renders the embedding-source text for a session event:
// "<type>. <k: v, k2: v2>".
func formatEventText(eventType string, payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, payload[k]))
	}
	return fmt.Sprintf("%s. %s", eventType, strings.Join(parts, ", "))
}

// StoreMessage validates role and appends a conversation message, deriving
// its embedding from "[<type>] <role>: <text>" (or "<role>: <text>" when
// type is empty). generateEmbedding=false skips the embedding call entirely.
func (s *Store) StoreMessage(ctx context.Context, sessionID string, role Role, text string, tools []string, msgType, subtype string, metadata map[string]any, generateEmbedding bool) (*Message, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID is required")
	}
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role: %q", role)
	}

	toolsJSON, err := marshalJSON(tools)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tools: %w", err)
	}
	metaJSON, err := marshalJSON(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	seq, err := s.nextSequenceNum(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`
INSERT INTO session_messages (session_id, role, text, tools, message_type, subtype, metadata, sequence_num, created_at)
VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)
`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9))

	result, err := s.db.ExecContext(ctx, query, sessionID, string(role), text, toolsJSON, msgType, subtype, metaJSON, seq, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	if generateEmbedding {
		vec, _ := s.embedder.Embed(ctx, formatMessageText(msgType, role, text))
		if vec != nil {
			id, _ := result.LastInsertId()
			_ = s.vectors.Upsert(ctx, s.cfg.Collection, fmt.Sprintf("message:%d", id), vec, map[string]any{
				"kind": "message", "session_id": sessionID,
			})
		}
	}

	id, _ := result.LastInsertId()
	return &Message{
		ID: id, SessionID: sessionID, Role: role, Text: text, Tools: tools,
		Type: msgType, Subtype: subtype, Metadata: metadata, SequenceNum: seq, CreatedAt: now,
	}, nil
}

func formatMessageText(msgType string, role Role, text string) string {
	if msgType == "" {
		return fmt.Sprintf("%s: %s", role, text)
	}
	return fmt.Sprintf("[%s] %s: %s", msgType, role, text)
}

func (s *Store) nextSequenceNum(ctx context.Context, sessionID string) (int64, error) {
	query := fmt.Sprintf(`SELECT COALESCE(MAX(sequence_num), 0) + 1 FROM session_messages WHERE session_id = %s`, s.ph(1))
	var seq int64
	if err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to compute next sequence number: %w", err)
	}
	return seq, nil
}

// EndSession sets ended_at = now() and, if summary is non-empty, computes
// its embedding and stores it as the session's plain-text summary.
func (s *Store) EndSession(ctx context.Context, sessionID string, summary string) error {
	now := time.Now().UTC()
	query := fmt.Sprintf(`UPDATE sessions SET ended_at = %s, summary = %s WHERE id = %s`, s.ph(1), s.ph(2), s.ph(3))

	var summaryArg any
	if summary != "" {
		summaryArg = summary
	}
	if _, err := s.db.ExecContext(ctx, query, now, summaryArg, sessionID); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	if summary != "" {
		vec, _ := s.embedder.Embed(ctx, summary)
		if vec != nil {
			_ = s.vectors.Upsert(ctx, s.cfg.Collection, fmt.Sprintf("session:%s", sessionID), vec, map[string]any{
				"kind": "session", "session_id": sessionID,
			})
		}
	}
	return nil
}

// GetSession returns the session row plus its events, sorted ascending by
// timestamp.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	query := fmt.Sprintf(`
SELECT id, agent, project, context, metadata, summary, summary_detail, started_at, ended_at
FROM sessions WHERE id = %s
`, s.ph(1))

	row := s.db.QueryRowContext(ctx, query, sessionID)
	session, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	events, err := s.eventsForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Events = events
	return session, nil
}

func scanSession(row *sql.Row) (*Session, error) {
	var (
		id, agent, project, sessCtx, metadataJSON string
		summary, summaryDetail                      sql.NullString
		startedAt                                   time.Time
		endedAt                                      sql.NullTime
	)
	if err := row.Scan(&id, &agent, &project, &sessCtx, &metadataJSON, &summary, &summaryDetail, &startedAt, &endedAt); err != nil {
		return nil, err
	}

	session := &Session{
		ID: id, Agent: agent, Project: project, Context: sessCtx,
		Metadata: unmarshalJSONMap(metadataJSON), StartedAt: startedAt,
	}
	if endedAt.Valid {
		t := endedAt.Time
		session.EndedAt = &t
	}
	session.Summary = decodeSummary(summary, summaryDetail)
	return session, nil
}

// decodeSummary prefers the structured summary_detail column; it falls back
// to a bare-text Summary when only the plain summary column was ever set
// (e.g. by EndSession without a prior UpdateSummary).
func decodeSummary(summary, summaryDetail sql.NullString) *Summary {
	if summaryDetail.Valid && summaryDetail.String != "" {
		var full Summary
		if json.Unmarshal([]byte(summaryDetail.String), &full) == nil {
			return &full
		}
	}
	if summary.Valid && summary.String != "" {
		return &Summary{Text: summary.String}
	}
	return nil
}

func (s *Store) eventsForSession(ctx context.Context, sessionID string) ([]SessionEvent, error) {
	query := fmt.Sprintf(`
SELECT id, session_id, type, payload, occurred_at
FROM session_events WHERE session_id = %s ORDER BY occurred_at ASC
`, s.ph(1))

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	var events []SessionEvent
	for rows.Next() {
		var (
			e           SessionEvent
			payloadJSON string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Type, &payloadJSON, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan session event: %w", err)
		}
		e.Payload = unmarshalJSONMap(payloadJSON)
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListSessions filters by agent/project/since, default limit 20, ordered by
// started_at desc.
func (s *Store) ListSessions(ctx context.Context, filter ListFilter) ([]Session, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, s.ph(len(args))))
	}
	if filter.Agent != "" {
		add("agent = %s", filter.Agent)
	}
	if filter.Project != "" {
		add("project = %s", filter.Project)
	}
	if filter.Since != nil {
		add("started_at >= %s", *filter.Since)
	}

	query := `SELECT id, agent, project, context, metadata, summary, summary_detail, started_at, ended_at FROM sessions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT %s", s.ph(len(args)+1))
	args = append(args, limit)

	return s.querySessions(ctx, query, args...)
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			id, agent, project, sessCtx, metadataJSON string
			summary, summaryDetail                      sql.NullString
			startedAt                                    time.Time
			endedAt                                       sql.NullTime
		)
		if err := rows.Scan(&id, &agent, &project, &sessCtx, &metadataJSON, &summary, &summaryDetail, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		session := Session{
			ID: id, Agent: agent, Project: project, Context: sessCtx,
			Metadata: unmarshalJSONMap(metadataJSON), StartedAt: startedAt,
		}
		if endedAt.Valid {
			t := endedAt.Time
			session.EndedAt = &t
		}
		session.Summary = decodeSummary(summary, summaryDetail)
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// SearchSessionsSemantic embeds query and issues a vector search, filtering
// out hits below threshold (cosine similarity in [0,1]). threshold is a
// pointer so an explicit 0.0 (no filtering, results bounded only by limit)
// is distinguishable from an omitted threshold, which defaults to 0.7. A nil
// query embedding (empty query, or an unavailable provider) degrades to an
// empty result set rather than an error.
func (s *Store) SearchSessionsSemantic(ctx context.Context, query string, limit int, threshold *float32) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	effectiveThreshold := s.cfg.SearchThreshold
	if threshold != nil {
		effectiveThreshold = *threshold
	}

	vec, _ := s.embedder.Embed(ctx, query)
	if vec == nil {
		return nil, nil
	}

	hits, err := s.vectors.SearchWithFilter(ctx, s.cfg.Collection, vec, limit, map[string]any{"kind": "session"})
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}

	var results []SearchResult
	for _, hit := range hits {
		if hit.Score < effectiveThreshold {
			continue
		}
		sessionID, ok := hit.Metadata["session_id"].(string)
		if !ok {
			continue
		}
		session, err := s.GetSession(ctx, sessionID)
		if err != nil || session == nil {
			continue
		}
		results = append(results, SearchResult{Session: *session, Score: hit.Score})
	}
	return results, nil
}

// LastSessionForAgent returns the most recently started session for agent,
// or nil if none exists.
func (s *Store) LastSessionForAgent(ctx context.Context, agent string) (*Session, error) {
	sessions, err := s.ListSessions(ctx, ListFilter{Agent: agent, Limit: 1})
	if err != nil || len(sessions) == 0 {
		return nil, err
	}
	return &sessions[0], nil
}

// CountInLastNDays counts agent's sessions started in the last days days.
func (s *Store) CountInLastNDays(ctx context.Context, agent string, days int) (int, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM sessions WHERE agent = %s AND started_at >= %s`, s.ph(1), s.ph(2))

	var count int
	if err := s.db.QueryRowContext(ctx, query, agent, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// RecentSessions returns the limit most recent sessions (any agent) started
// in the last days days, ordered started_at desc.
func (s *Store) RecentSessions(ctx context.Context, days int, limit int) ([]Session, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	return s.ListSessions(ctx, ListFilter{Since: &since, Limit: limit})
}

// UpdateSummary overwrites the session's summary, re-embeds it, and merges
// metadata (new keys win on conflict).
func (s *Store) UpdateSummary(ctx context.Context, sessionID string, summary Summary, metadata map[string]any) error {
	existing, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperr.NotFound("session %s not found", sessionID)
	}

	merged := existing.Metadata
	if merged == nil {
		merged = map[string]any{}
	}
	for k, v := range metadata {
		merged[k] = v
	}
	metaJSON, err := marshalJSON(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	summaryDetailJSON, err := marshalJSON(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	query := fmt.Sprintf(`UPDATE sessions SET summary = %s, summary_detail = %s, metadata = %s WHERE id = %s`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	if _, err := s.db.ExecContext(ctx, query, summary.Text, summaryDetailJSON, metaJSON, sessionID); err != nil {
		return fmt.Errorf("failed to update summary: %w", err)
	}

	vec, _ := s.embedder.Embed(ctx, summary.Text)
	if vec != nil {
		_ = s.vectors.Upsert(ctx, s.cfg.Collection, fmt.Sprintf("session:%s", sessionID), vec, map[string]any{
			"kind": "session", "session_id": sessionID,
		})
	}
	return nil
}
