package whiteboard

import (
	"testing"

	"github.com/kadirpekel/backplane/internal/eventdetector"
)

func TestTaskCreatedDoingUpserts(t *testing.T) {
	board := &Whiteboard{}
	r := NewReducer(board)

	r.Apply("events:task", eventdetector.Event{EventType: "task.created", EntityID: "t1", Data: map[string]any{"status": "doing"}})

	if len(board.ActiveTasks) != 1 || board.ActiveTasks[0].TaskID != "t1" {
		t.Fatalf("expected task t1 active, got %+v", board.ActiveTasks)
	}
}

func TestTaskStatusChangedRemovesWhenNotDoing(t *testing.T) {
	board := &Whiteboard{}
	r := NewReducer(board)

	r.Apply("events:task", eventdetector.Event{EventType: "task.created", EntityID: "t1", Data: map[string]any{"status": "doing"}})
	r.Apply("events:task", eventdetector.Event{EventType: "task.status_changed", EntityID: "t1", Data: map[string]any{"new_status": "done"}})

	if len(board.ActiveTasks) != 0 {
		t.Fatalf("expected task removed, got %+v", board.ActiveTasks)
	}
}

func TestSessionLifecycle(t *testing.T) {
	board := &Whiteboard{}
	r := NewReducer(board)

	r.Apply("events:session", eventdetector.Event{EventType: "session.started", EntityID: "s1", Data: map[string]any{"agent": "coder"}})
	if len(board.ActiveSessions) != 1 {
		t.Fatalf("expected 1 active session, got %+v", board.ActiveSessions)
	}

	r.Apply("events:session", eventdetector.Event{EventType: "session.started", EntityID: "s1"})
	if len(board.ActiveSessions) != 1 {
		t.Fatalf("expected idempotent add, got %+v", board.ActiveSessions)
	}

	r.Apply("events:session", eventdetector.Event{EventType: "session.ended", EntityID: "s1"})
	if len(board.ActiveSessions) != 0 {
		t.Fatalf("expected session removed, got %+v", board.ActiveSessions)
	}
}

func TestRecentEventsCapacity(t *testing.T) {
	board := &Whiteboard{}
	r := NewReducer(board)

	for i := 0; i < recentEventsCapacity+10; i++ {
		r.Apply("events:system", eventdetector.Event{EventType: "service.started", EntityID: "svc"})
	}

	if len(board.RecentEvents) != recentEventsCapacity {
		t.Fatalf("expected recent events capped at %d, got %d", recentEventsCapacity, len(board.RecentEvents))
	}
}

func TestApplySafelyReturnsNilForNormalEvent(t *testing.T) {
	board := &Whiteboard{}
	r := NewReducer(board)

	// A normal event never panics; this just exercises the safety wrapper's
	// non-panicking path to guard against regressions.
	if err := r.ApplySafely("events:task", eventdetector.Event{EventType: "task.created", EntityID: "t1", Data: map[string]any{"status": "doing"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
