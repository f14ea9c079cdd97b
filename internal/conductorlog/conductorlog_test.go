package conductorlog

import (
	"context"
	"testing"

	"github.com/kadirpekel/backplane/internal/sqlutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(Config{Driver: sqlutil.DialectSQLite, ConnectionString: ":memory:"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateClampsConfidence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r, err := store.Create(ctx, "wo-1", "", "conductor-a", "target-b", "best fit", nil, nil, 1.5, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", r.Confidence)
	}
	if r.Outcome != nil {
		t.Error("new record should have nil outcome")
	}
}

func TestUpdateOutcomeOnceThenConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r, _ := store.Create(ctx, "wo-1", "", "conductor-a", "target-b", "x", nil, nil, 0.8, nil)
	updated, err := store.UpdateOutcome(ctx, r.ID, OutcomeSuccess, "all tests passed")
	if err != nil {
		t.Fatalf("UpdateOutcome: %v", err)
	}
	if updated.Outcome == nil || *updated.Outcome != OutcomeSuccess {
		t.Fatalf("unexpected outcome: %+v", updated.Outcome)
	}
	if updated.OutcomeNotes != "all tests passed" {
		t.Fatalf("unexpected outcome notes: %q", updated.OutcomeNotes)
	}

	if _, err := store.UpdateOutcome(ctx, r.ID, OutcomeFailure, ""); err == nil {
		t.Fatal("expected conflict on second outcome update")
	}
}

func TestCreateWithMissionAndDecisionContext(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r, err := store.Create(ctx, "wo-1", "phase3_orchestration", "conductor-a", "target-b", "best fit",
		map[string]any{"kb_docs": 2}, []any{"requires_terminal_access", "test_execution"}, 0.9, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.MissionID != "phase3_orchestration" {
		t.Fatalf("mission_id = %q, want phase3_orchestration", r.MissionID)
	}
	if r.ContextInjected["kb_docs"] != float64(2) {
		t.Fatalf("unexpected context_injected: %+v", r.ContextInjected)
	}
	if len(r.DecisionFactors) != 2 {
		t.Fatalf("unexpected decision_factors: %+v", r.DecisionFactors)
	}
}

func TestListByWorkOrderAscending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Create(ctx, "wo-1", "", "c1", "t1", "a", nil, nil, 0.5, nil)
	store.Create(ctx, "wo-1", "", "c1", "t2", "b", nil, nil, 0.6, nil)
	store.Create(ctx, "wo-2", "", "c1", "t1", "c", nil, nil, 0.7, nil)

	records, err := store.ListByWorkOrder(ctx, "wo-1")
	if err != nil {
		t.Fatalf("ListByWorkOrder: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records for wo-1, got %d", len(records))
	}
}

func TestStatsAggregation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r1, _ := store.Create(ctx, "wo-1", "", "conductor-a", "target-b", "x", nil, nil, 0.8, nil)
	r2, _ := store.Create(ctx, "wo-2", "", "conductor-a", "target-b", "y", nil, nil, 0.4, nil)
	store.Create(ctx, "wo-3", "", "conductor-z", "target-q", "z", nil, nil, 0.9, nil)

	store.UpdateOutcome(ctx, r1.ID, OutcomeSuccess, "")
	store.UpdateOutcome(ctx, r2.ID, OutcomeFailure, "")

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(stats))
	}
	// conductor-a has 2 records vs conductor-z's 1, so it sorts first.
	if stats[0].ConductorAgent != "conductor-a" || stats[0].Total != 2 {
		t.Fatalf("unexpected top group: %+v", stats[0])
	}
	if stats[0].SuccessRate == nil || *stats[0].SuccessRate != 0.5 {
		t.Fatalf("unexpected success rate: %+v", stats[0].SuccessRate)
	}
}
