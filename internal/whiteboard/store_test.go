package whiteboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/kadirpekel/backplane/internal/bus"
	"github.com/kadirpekel/backplane/internal/eventdetector"
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

func TestLoadWithNoSavedDocumentReturnsEmpty(t *testing.T) {
	store := newTestStore(t)
	board, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(board.ActiveTasks) != 0 || len(board.ActiveSessions) != 0 {
		t.Fatalf("expected empty board, got %+v", board)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	board := &Whiteboard{}
	r := NewReducer(board)
	r.Apply(bus.TopicTask, eventdetector.Event{EventType: "task.created", EntityID: "t1", Data: map[string]any{"status": "doing"}})

	if err := store.Save(ctx, board); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.ActiveTasks) != 1 || loaded.ActiveTasks[0].TaskID != "t1" {
		t.Fatalf("expected persisted task t1, got %+v", loaded.ActiveTasks)
	}
}

func TestMarshalUnmarshalStateRoundTrip(t *testing.T) {
	board := &Whiteboard{}
	r := NewReducer(board)
	r.Apply(bus.TopicSession, eventdetector.Event{EventType: "session.started", EntityID: "s1", Data: map[string]any{"agent": "coder"}})

	data, err := board.MarshalState()
	if err != nil {
		t.Fatalf("MarshalState: %v", err)
	}
	restored, err := UnmarshalState(data)
	if err != nil {
		t.Fatalf("UnmarshalState: %v", err)
	}
	if len(restored.ActiveSessions) != 1 || restored.ActiveSessions[0].SessionID != "s1" {
		t.Fatalf("expected restored session s1, got %+v", restored.ActiveSessions)
	}
}

func TestListenerConsumesPublishedEvents(t *testing.T) {
	b := bus.NewMemBus()
	defer b.Close()
	store := newTestStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	listener, err := NewListener(ctx, b, store, slog.Default())
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}

	runCtx, runCancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer runCancel()
	done := make(chan struct{})
	go func() {
		listener.Run(runCtx)
		close(done)
	}()

	// Give the listener time to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)

	payload, err := json.Marshal(eventdetector.Event{EventType: "task.created", EntityID: "t-1", Data: map[string]any{"status": "doing"}})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	if _, err := b.Publish(ctx, bus.TopicTask, payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	<-done

	snap := listener.Snapshot()
	if len(snap.ActiveTasks) != 1 || snap.ActiveTasks[0].TaskID != "t-1" {
		t.Fatalf("expected task t-1 in snapshot, got %+v", snap.ActiveTasks)
	}

	persisted, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(persisted.ActiveTasks) != 1 {
		t.Fatalf("expected persisted snapshot to include task, got %+v", persisted.ActiveTasks)
	}
}
