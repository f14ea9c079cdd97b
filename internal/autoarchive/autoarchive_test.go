package autoarchive

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/kadirpekel/backplane/internal/planpromoter"
	"github.com/kadirpekel/backplane/internal/sqlutil"
)

func newTestStore(t *testing.T) *planpromoter.Store {
	t.Helper()
	store, err := planpromoter.NewStore(planpromoter.Config{Driver: sqlutil.DialectSQLite, ConnectionString: ":memory:"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSweepOnceArchivesStaleProjectsAndTasks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doneProject, _ := store.CreateProject(ctx, "Done Project")
	store.InsertTasks(ctx, doneProject.ID, []planpromoter.PromotedTask{{Title: "t1", Priority: "low"}})
	doneTasks, _ := store.ListTasksByProject(ctx, doneProject.ID)
	setTaskStaleDone(t, store, doneTasks[0].ID)

	staleTaskProject, _ := store.CreateProject(ctx, "Other Project")
	store.InsertTasks(ctx, staleTaskProject.ID, []planpromoter.PromotedTask{{Title: "stale todo", Priority: "low"}})
	staleTasks, _ := store.ListTasksByProject(ctx, staleTaskProject.ID)
	setTaskStaleTodo(t, store, staleTasks[0].ID)

	sweeper := New(store, Config{}, slog.Default())
	sweeper.sweepOnce(ctx)

	projects, err := store.ListProjects(ctx, true)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	for _, p := range projects {
		if p.ID == doneProject.ID && !p.Archived {
			t.Error("expected fully-done stale project to be archived")
		}
	}

	tasks, err := store.ListTasksByProject(ctx, staleTaskProject.ID)
	if err != nil {
		t.Fatalf("ListTasksByProject: %v", err)
	}
	if tasks[0].Status != planpromoter.TaskArchived || tasks[0].Archiver != archiverName {
		t.Fatalf("expected stale todo task archived by auto-archive, got %+v", tasks[0])
	}
}

func setTaskStaleDone(t *testing.T, store *planpromoter.Store, id string) {
	t.Helper()
	execStore(t, store, "done", id, -48*time.Hour)
}

func setTaskStaleTodo(t *testing.T, store *planpromoter.Store, id string) {
	t.Helper()
	execStore(t, store, "todo", id, -31*24*time.Hour)
}

func execStore(t *testing.T, store *planpromoter.Store, status, id string, age time.Duration) {
	t.Helper()
	_, err := store.DB().Exec("UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?", status, time.Now().UTC().Add(age), id)
	if err != nil {
		t.Fatalf("failed to backdate task: %v", err)
	}
}
