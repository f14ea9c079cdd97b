package planpromoter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kadirpekel/backplane/internal/sqlutil"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const createProjectsTableSQL = `
CREATE TABLE IF NOT EXISTS projects (
    id VARCHAR(255) NOT NULL PRIMARY KEY,
    title TEXT NOT NULL,
    archived BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL,
    archived_at TIMESTAMP NULL
)`

const createTasksTableSQL = `
CREATE TABLE IF NOT EXISTS tasks (
    id VARCHAR(255) NOT NULL PRIMARY KEY,
    project_id VARCHAR(255) NOT NULL,
    title TEXT NOT NULL,
    description TEXT,
    priority VARCHAR(32) NOT NULL,
    feature VARCHAR(255),
    status VARCHAR(32) NOT NULL,
    order_index INT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    archiver VARCHAR(64),
    archive_reason TEXT
)`

// Store persists projects and their tasks.
type Store struct {
	db      *sql.DB
	dialect sqlutil.Dialect
}

// Config configures the project/task store's SQL connection.
type Config struct {
	Driver           sqlutil.Dialect
	ConnectionString string
}

// NewStore opens db and creates the projects/tasks schema if absent.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = sqlutil.DialectSQLite
	}
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("plan promoter connection_string is required")
	}

	db, err := sql.Open(cfg.Driver.DriverName(), cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan promoter database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping plan promoter database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createProjectsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create projects table: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTasksTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tasks table: %w", err)
	}
	return &Store{db: db, dialect: cfg.Driver}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying connection for callers that need direct access
// (migrations, ad-hoc diagnostics) beyond this store's own query surface.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) ph(n int) string { return sqlutil.Placeholder(s.dialect, n) }

// CreateProject inserts an empty project (no tasks yet).
func (s *Store) CreateProject(ctx context.Context, title string) (Project, error) {
	p := Project{ID: uuid.NewString(), Title: title, CreatedAt: time.Now().UTC()}
	query := fmt.Sprintf("INSERT INTO projects (id, title, archived, created_at) VALUES (%s, %s, %s, %s)", s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	if _, err := s.db.ExecContext(ctx, query, p.ID, title, false, p.CreatedAt); err != nil {
		return Project{}, fmt.Errorf("failed to create project: %w", err)
	}
	return p, nil
}

// InsertTasks inserts tasks for projectID with ascending order indices
// starting at 0.
func (s *Store) InsertTasks(ctx context.Context, projectID string, tasks []PromotedTask) ([]Task, error) {
	now := time.Now().UTC()
	out := make([]Task, 0, len(tasks))

	query := fmt.Sprintf(`INSERT INTO tasks
        (id, project_id, title, description, priority, feature, status, order_index, created_at, updated_at)
        VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9), s.ph(10))

	for i, pt := range tasks {
		priority := Priority(pt.Priority)
		if !priority.Valid() {
			priority = PriorityMedium
		}
		t := Task{
			ID:          uuid.NewString(),
			ProjectID:   projectID,
			Title:       pt.Title,
			Description: pt.Description,
			Priority:    priority,
			Feature:     pt.Feature,
			Status:      TaskTodo,
			OrderIndex:  i,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := s.db.ExecContext(ctx, query, t.ID, t.ProjectID, t.Title, t.Description, string(t.Priority), t.Feature, string(t.Status), t.OrderIndex, now, now); err != nil {
			return out, fmt.Errorf("failed to insert task %q: %w", t.Title, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// ListTasksByProject returns a project's tasks ordered by order_index.
func (s *Store) ListTasksByProject(ctx context.Context, projectID string) ([]Task, error) {
	query := fmt.Sprintf("SELECT id, project_id, title, description, priority, feature, status, order_index, created_at, updated_at, archiver, archive_reason FROM tasks WHERE project_id = %s ORDER BY order_index ASC", s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for project %s: %w", projectID, err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListProjects returns projects, optionally restricted to non-archived ones.
func (s *Store) ListProjects(ctx context.Context, includeArchived bool) ([]Project, error) {
	query := "SELECT id, title, archived, created_at, archived_at FROM projects"
	if !includeArchived {
		query += " WHERE archived = false"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		var archivedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.Title, &p.Archived, &p.CreatedAt, &archivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		if archivedAt.Valid {
			p.ArchivedAt = &archivedAt.Time
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ArchiveProject marks a project archived.
func (s *Store) ArchiveProject(ctx context.Context, projectID string) error {
	now := time.Now().UTC()
	query := fmt.Sprintf("UPDATE projects SET archived = %s, archived_at = %s WHERE id = %s", s.ph(1), s.ph(2), s.ph(3))
	_, err := s.db.ExecContext(ctx, query, true, now, projectID)
	if err != nil {
		return fmt.Errorf("failed to archive project %s: %w", projectID, err)
	}
	return nil
}

// ArchiveStaleTasks archives tasks in statuses whose updated_at is older
// than cutoff, recording archiver and reason. Returns the number archived.
func (s *Store) ArchiveStaleTasks(ctx context.Context, statuses []TaskStatus, cutoff time.Time, archiver, reason string) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	placeholders := ""
	args := []any{string(TaskArchived), archiver, reason}
	n := len(args) + 1
	for i, st := range statuses {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += s.ph(n)
		args = append(args, string(st))
		n++
	}
	args = append(args, cutoff)

	query := fmt.Sprintf("UPDATE tasks SET status = %s, archiver = %s, archive_reason = %s WHERE status IN (%s) AND updated_at < %s",
		s.ph(1), s.ph(2), s.ph(3), placeholders, s.ph(n))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to archive stale tasks: %w", err)
	}
	return res.RowsAffected()
}

// ProjectsFullyDoneSince returns IDs of unarchived projects whose tasks are
// all done and whose most recent task update is older than cutoff.
func (s *Store) ProjectsFullyDoneSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := fmt.Sprintf(`SELECT p.id FROM projects p
        WHERE p.archived = false
          AND EXISTS (SELECT 1 FROM tasks t WHERE t.project_id = p.id)
          AND NOT EXISTS (SELECT 1 FROM tasks t WHERE t.project_id = p.id AND t.status != %s)
          AND (SELECT MAX(t.updated_at) FROM tasks t WHERE t.project_id = p.id) < %s`, s.ph(1), s.ph(2))

	rows, err := s.db.QueryContext(ctx, query, string(TaskDone), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find fully-done projects: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	var out []Task
	for rows.Next() {
		var t Task
		var description, feature, archiver, archiveReason sql.NullString
		var priority, status string
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &description, &priority, &feature, &status, &t.OrderIndex, &t.CreatedAt, &t.UpdatedAt, &archiver, &archiveReason); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.Description, t.Feature, t.Archiver, t.ArchiveReason = description.String, feature.String, archiver.String, archiveReason.String
		t.Priority, t.Status = Priority(priority), TaskStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}
