package council

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

func TestClassifyTable(t *testing.T) {
	cases := map[RiskLevel]Decision{
		RiskLow:         DecisionApproved,
		RiskMed:         DecisionApproved,
		RiskHigh:        DecisionPendingHuman,
		RiskDestructive: DecisionBlocked,
	}
	for risk, want := range cases {
		if got := Classify(risk); got != want {
			t.Errorf("Classify(%s) = %s, want %s", risk, got, want)
		}
	}
}

func TestParseRiskLevelCaseInsensitiveAndAliases(t *testing.T) {
	cases := map[string]RiskLevel{
		"LOW":         RiskLow,
		"low":         RiskLow,
		"MED":         RiskMed,
		"medium":      RiskMed,
		"MEDIUM":      RiskMed,
		"HIGH":        RiskHigh,
		"High":        RiskHigh,
		"DESTRUCTIVE": RiskDestructive,
		"destructive": RiskDestructive,
	}
	for in, want := range cases {
		got, err := ParseRiskLevel(in)
		if err != nil {
			t.Errorf("ParseRiskLevel(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseRiskLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParseRiskLevelRejectsUnknown(t *testing.T) {
	if _, err := ParseRiskLevel("catastrophic"); err == nil {
		t.Fatal("expected error for unrecognized risk level")
	}
}

func TestSubmitAutoResolvesLowRisk(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r, err := store.Submit(ctx, "s", "agent", "read a file", RiskLow, "benign", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r.Decision != DecisionApproved || r.ResolvedBy != "auto" || r.ResolvedAt == nil {
		t.Fatalf("expected auto-approved review, got %+v", r)
	}
}

func TestSubmitQueuesHighRisk(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r, err := store.Submit(ctx, "s", "agent", "delete staging db", RiskHigh, "risky", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r.Decision != DecisionPendingHuman || r.ResolvedAt != nil {
		t.Fatalf("expected unresolved pending_human review, got %+v", r)
	}

	queue, err := store.Queue(ctx)
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != r.ID {
		t.Fatalf("unexpected queue contents: %+v", queue)
	}
}

func TestResolveRemovesFromQueue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r, _ := store.Submit(ctx, "s", "agent", "drop index", RiskHigh, "risky", nil)
	resolved, err := store.Resolve(ctx, r.ID, "human-1", true)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Resolution != "approve" || resolved.ResolvedBy != "human-1" {
		t.Fatalf("unexpected resolution: %+v", resolved)
	}

	queue, _ := store.Queue(ctx)
	if len(queue) != 0 {
		t.Fatalf("expected empty queue after resolve, got %d", len(queue))
	}
}

func TestResolveAlreadyResolvedIsConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r, _ := store.Submit(ctx, "s", "agent", "drop index", RiskHigh, "risky", nil)
	store.Resolve(ctx, r.ID, "human-1", true)

	if _, err := store.Resolve(ctx, r.ID, "human-2", false); err == nil {
		t.Fatal("expected conflict re-resolving an already resolved review")
	}
}

func TestDestructiveRiskIsBlocked(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r, err := store.Submit(ctx, "s", "agent", "rm -rf /data", RiskDestructive, "nope", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r.Decision != DecisionBlocked {
		t.Fatalf("decision = %s, want blocked", r.Decision)
	}
}
