package ctxboard

import (
	"context"
	"encoding/json"
	"testing"
	"time"

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

func TestSetAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Set(ctx, "deploy.status", json.RawMessage(`"green"`), "agent-1", "sess-1", nil)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := store.Get(ctx, "deploy.status")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Value) != `"green"` {
		t.Errorf("value = %s, want \"green\"", got.Value)
	}
}

func TestSetAppendsHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Set(ctx, "k", json.RawMessage(`1`), "a", "s", nil)
	store.Set(ctx, "k", json.RawMessage(`2`), "a", "s", nil)

	hist, err := store.History(ctx, "k", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(hist))
	}
	if string(hist[0].Value) != "2" || hist[0].OldValue == nil || string(hist[0].OldValue) != "1" {
		t.Errorf("unexpected most-recent history entry: %+v", hist[0])
	}
}

func TestListPrefixFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Set(ctx, "a.x", json.RawMessage(`1`), "w", "s", nil)
	store.Set(ctx, "b.x", json.RawMessage(`1`), "w", "s", nil)

	got, err := store.List(ctx, "a.")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Key != "a.x" {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestExpiredEntryHiddenFromGetAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	store.Set(ctx, "temp", json.RawMessage(`1`), "w", "s", &past)

	if _, err := store.Get(ctx, "temp"); err == nil {
		t.Fatal("expected expired key to be hidden from Get")
	}
	list, _ := store.List(ctx, "")
	for _, e := range list {
		if e.Key == "temp" {
			t.Fatal("expired key should not appear in List")
		}
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	store.Set(ctx, "k", json.RawMessage(`1`), "w", "s", nil)

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "k"); err == nil {
		t.Fatal("expected deleted key to be gone")
	}
	hist, _ := store.History(ctx, "k", 0)
	if len(hist) == 0 {
		t.Error("history should persist after delete")
	}
}
