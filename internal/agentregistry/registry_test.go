package agentregistry

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

func TestRegisterAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Register(ctx, "agent-1", "coder", map[string]any{"region": "us"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, err := store.Get(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
}

func TestRegisterUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Register(ctx, "agent-1", "coder", nil)
	store.Register(ctx, "agent-1", "reviewer", nil)

	got, _ := store.Get(ctx, "agent-1")
	if got.Kind != "reviewer" {
		t.Errorf("kind = %s, want reviewer (re-register should upsert)", got.Kind)
	}
}

func TestDeactivateAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Register(ctx, "a", "x", nil)
	store.Register(ctx, "b", "x", nil)
	if err := store.Deactivate(ctx, "a"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	active, err := store.List(ctx, StatusActive)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(active) != 1 || active[0].Name != "b" {
		t.Fatalf("unexpected active list: %+v", active)
	}
}

func TestHeartbeatUnknownAgentFails(t *testing.T) {
	store := newTestStore(t)
	if err := store.Heartbeat(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for unregistered agent")
	}
}
