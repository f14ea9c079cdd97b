package audit

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

func TestRecordAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Record(ctx, Entry{Source: "council", Action: "block", Agent: "agent-a", Risk: "destructive", Outcome: "blocked"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := store.Record(ctx, Entry{Source: "handoff", Action: "accept", Agent: "agent-b"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := store.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Most recent first.
	if entries[0].Source != "handoff" {
		t.Errorf("expected most recent entry first, got %s", entries[0].Source)
	}
}

func TestListFiltersBySource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Record(ctx, Entry{Source: "council", Action: "approve"})
	store.Record(ctx, Entry{Source: "handoff", Action: "reject"})

	entries, err := store.List(ctx, ListFilter{Source: "council"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Source != "council" {
		t.Fatalf("unexpected filtered list: %+v", entries)
	}
}
