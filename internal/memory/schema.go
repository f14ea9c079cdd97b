package memory

const createSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id VARCHAR(255) NOT NULL PRIMARY KEY,
    agent VARCHAR(255) NOT NULL,
    project VARCHAR(255),
    context TEXT,
    metadata TEXT,
    summary TEXT,
    summary_detail TEXT,
    started_at TIMESTAMP NOT NULL,
    ended_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sessions_agent ON sessions(agent);
CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
`

const createSessionEventsTableSQLTemplate = `
CREATE TABLE IF NOT EXISTS session_events (
    id %s,
    session_id VARCHAR(255) NOT NULL,
    type VARCHAR(255) NOT NULL,
    payload TEXT,
    occurred_at TIMESTAMP NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_session_events_session_id ON session_events(session_id);
CREATE INDEX IF NOT EXISTS idx_session_events_occurred_at ON session_events(session_id, occurred_at);
`

const createSessionMessagesTableSQLTemplate = `
CREATE TABLE IF NOT EXISTS session_messages (
    id %s,
    session_id VARCHAR(255) NOT NULL,
    role VARCHAR(50) NOT NULL,
    text TEXT NOT NULL,
    tools TEXT,
    message_type VARCHAR(100),
    subtype VARCHAR(100),
    metadata TEXT,
    sequence_num BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_session_messages_session_id ON session_messages(session_id);
CREATE INDEX IF NOT EXISTS idx_session_messages_sequence ON session_messages(session_id, sequence_num);
`

// autoIncrementColumn returns the dialect-appropriate auto-increment primary
// key column definition, mirroring the teacher's per-dialect schema
// branching (AUTOINCREMENT for sqlite, SERIAL for postgres, AUTO_INCREMENT
// for mysql).
func autoIncrementColumn(d Dialect) string {
	switch d {
	case DialectPostgres:
		return "SERIAL PRIMARY KEY"
	case DialectMySQL:
		return "BIGINT PRIMARY KEY AUTO_INCREMENT"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}
