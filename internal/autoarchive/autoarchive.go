// Package autoarchive runs the periodic sweep that archives stale tasks and
// fully-completed projects, grounded on the source project's
// auto_archive_service.py scheduler.
package autoarchive

import (
	"context"
	"log/slog"
	"time"

	"github.com/kadirpekel/backplane/internal/planpromoter"
)

const (
	defaultInterval      = 3600 * time.Second
	projectStaleAfter    = 24 * time.Hour
	taskStaleAfter       = 30 * 24 * time.Hour
	archiverName         = "auto-archive"
	staleTaskReason      = "task stale for over 30 days"
)

// Config configures the sweep loop.
type Config struct {
	// Interval between sweeps. Defaults to 3600 seconds.
	Interval time.Duration
	// TaskStatuses is the set of task statuses eligible for staleness
	// archiving. Defaults to just "todo".
	TaskStatuses []planpromoter.TaskStatus
}

// SetDefaults fills unset fields with the source service's defaults.
func (c *Config) SetDefaults() {
	if c.Interval == 0 {
		c.Interval = defaultInterval
	}
	if len(c.TaskStatuses) == 0 {
		c.TaskStatuses = []planpromoter.TaskStatus{planpromoter.TaskTodo}
	}
}

// Sweeper archives stale tasks and fully-done projects on a ticker.
type Sweeper struct {
	store  *planpromoter.Store
	cfg    Config
	logger *slog.Logger
}

// New builds a Sweeper backed by store.
func New(store *planpromoter.Store, cfg Config, logger *slog.Logger) *Sweeper {
	cfg.SetDefaults()
	return &Sweeper{store: store, cfg: cfg, logger: logger}
}

// Run ticks every Interval until ctx is cancelled, running one sweep per
// tick. It returns when ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// sweepOnce archives fully-done projects older than 24h and stale tasks
// older than 30 days, logging counts but never failing the loop.
func (s *Sweeper) sweepOnce(ctx context.Context) {
	now := time.Now().UTC()

	projectIDs, err := s.store.ProjectsFullyDoneSince(ctx, now.Add(-projectStaleAfter))
	if err != nil {
		s.logger.Error("auto-archive: failed to find fully-done projects", "error", err)
	} else {
		for _, id := range projectIDs {
			if err := s.store.ArchiveProject(ctx, id); err != nil {
				s.logger.Error("auto-archive: failed to archive project", "project_id", id, "error", err)
				continue
			}
			s.logger.Info("auto-archive: archived project", "project_id", id)
		}
	}

	archived, err := s.store.ArchiveStaleTasks(ctx, s.cfg.TaskStatuses, now.Add(-taskStaleAfter), archiverName, staleTaskReason)
	if err != nil {
		s.logger.Error("auto-archive: failed to archive stale tasks", "error", err)
		return
	}
	if archived > 0 {
		s.logger.Info("auto-archive: archived stale tasks", "count", archived)
	}
}
