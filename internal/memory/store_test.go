package memory

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := &SQLConfig{Driver: DialectSQLite, ConnectionString: ":memory:"}
	store, err := NewStore(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGetSession(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.CreateSession(ctx, "s1", "agent-a", "proj", "ctx", map[string]any{"k": "v"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.Agent != "agent-a" || got.Project != "proj" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.EndedAt != nil {
		t.Fatalf("expected EndedAt nil on creation, got %v", got.EndedAt)
	}
}

func TestAddEventOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.CreateSession(ctx, "s1", "agent-a", "", "", nil)

	if _, err := store.AddEvent(ctx, "s1", "tool_call", map[string]any{"tool": "grep"}); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	if _, err := store.AddEvent(ctx, "s1", "tool_result", map[string]any{"status": "ok"}); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}

	got, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(got.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got.Events))
	}
	if got.Events[0].Type != "tool_call" || got.Events[1].Type != "tool_result" {
		t.Fatalf("events not in ascending order: %+v", got.Events)
	}
}

func TestStoreMessageRejectsInvalidRole(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.CreateSession(ctx, "s1", "agent-a", "", "", nil)

	_, err := store.StoreMessage(ctx, "s1", Role("bogus"), "hi", nil, "", "", nil, false)
	if err == nil {
		t.Fatal("expected error for invalid role")
	}
}

func TestStoreMessageSequenceIncrements(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.CreateSession(ctx, "s1", "agent-a", "", "", nil)

	m1, err := store.StoreMessage(ctx, "s1", RoleUser, "first", nil, "", "", nil, false)
	if err != nil {
		t.Fatalf("StoreMessage: %v", err)
	}
	m2, err := store.StoreMessage(ctx, "s1", RoleAssistant, "second", nil, "", "", nil, false)
	if err != nil {
		t.Fatalf("StoreMessage: %v", err)
	}
	if m2.SequenceNum <= m1.SequenceNum {
		t.Fatalf("expected increasing sequence numbers, got %d then %d", m1.SequenceNum, m2.SequenceNum)
	}
}

func TestEndSessionSetsEndedAt(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.CreateSession(ctx, "s1", "agent-a", "", "", nil)

	if err := store.EndSession(ctx, "s1", "wrapped up successfully"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	got, _ := store.GetSession(ctx, "s1")
	if got.EndedAt == nil {
		t.Fatal("expected EndedAt set")
	}
	if got.Summary == nil || got.Summary.Text != "wrapped up successfully" {
		t.Fatalf("unexpected summary: %+v", got.Summary)
	}
}

func TestListSessionsFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.CreateSession(ctx, "s1", "agent-a", "proj-x", "", nil)
	time.Sleep(2 * time.Millisecond)
	store.CreateSession(ctx, "s2", "agent-b", "proj-x", "", nil)
	time.Sleep(2 * time.Millisecond)
	store.CreateSession(ctx, "s3", "agent-a", "proj-y", "", nil)

	sessions, err := store.ListSessions(ctx, ListFilter{Agent: "agent-a"})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions for agent-a, got %d", len(sessions))
	}
	if sessions[0].ID != "s3" {
		t.Fatalf("expected most recent session first, got %s", sessions[0].ID)
	}
}

func TestCountInLastNDays(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.CreateSession(ctx, "s1", "agent-a", "", "", nil)
	store.CreateSession(ctx, "s2", "agent-a", "", "", nil)

	count, err := store.CountInLastNDays(ctx, "agent-a", 7)
	if err != nil {
		t.Fatalf("CountInLastNDays: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
}

func TestSearchSessionsSemanticDegradesWithoutEmbedder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.CreateSession(ctx, "s1", "agent-a", "", "", nil)

	results, err := store.SearchSessionsSemantic(ctx, "find the bug", 10, nil)
	if err != nil {
		t.Fatalf("SearchSessionsSemantic: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results with no embedder configured, got %v", results)
	}
}

func TestSearchSessionsSemanticZeroThresholdIsHonored(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.CreateSession(ctx, "s1", "agent-a", "", "", nil)

	zero := float32(0)
	results, err := store.SearchSessionsSemantic(ctx, "find the bug", 10, &zero)
	if err != nil {
		t.Fatalf("SearchSessionsSemantic: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results with no embedder configured, got %v", results)
	}
}

func TestUpdateSummaryMergesMetadata(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.CreateSession(ctx, "s1", "agent-a", "", "", map[string]any{"a": "1"})

	err := store.UpdateSummary(ctx, "s1", Summary{Text: "done", KeyEvents: []string{"e1"}}, map[string]any{"b": "2"})
	if err != nil {
		t.Fatalf("UpdateSummary: %v", err)
	}

	got, _ := store.GetSession(ctx, "s1")
	if got.Summary == nil || got.Summary.Text != "done" || len(got.Summary.KeyEvents) != 1 {
		t.Fatalf("unexpected summary: %+v", got.Summary)
	}
	if got.Metadata["a"] != "1" || got.Metadata["b"] != "2" {
		t.Fatalf("expected merged metadata, got %+v", got.Metadata)
	}
}

func TestFormatMessageTextWithAndWithoutType(t *testing.T) {
	if got := formatMessageText("", RoleUser, "hi"); got != "user: hi" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := formatMessageText("note", RoleAssistant, "hi"); got != "[note] assistant: hi" {
		t.Fatalf("unexpected: %q", got)
	}
}
