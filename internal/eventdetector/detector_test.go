package eventdetector

import "testing"

func TestDetectTaskLifecycle(t *testing.T) {
	topic, event, ok := Detect("Published task.created event for task abc-123", "api")
	if !ok {
		t.Fatal("expected match")
	}
	if topic != "events:task" {
		t.Errorf("topic = %s, want events:task", topic)
	}
	if event.EventType != "task.created" {
		t.Errorf("event_type = %s", event.EventType)
	}
	if event.EntityType != "task" {
		t.Errorf("entity_type = %s", event.EntityType)
	}
	if event.EntityID != "abc-123" {
		t.Errorf("entity_id = %s", event.EntityID)
	}
	if event.Source != "api" {
		t.Errorf("source = %s", event.Source)
	}
}

func TestDetectSessionLifecycle(t *testing.T) {
	topic, event, ok := Detect("Published session.started event for session sess-1", "orchestrator")
	if !ok || topic != "events:session" || event.EventType != "session.started" {
		t.Fatalf("unexpected result: %v %v %v", topic, event, ok)
	}
}

func TestDetectWhiteboardTaskUpdated(t *testing.T) {
	_, event, ok := Detect("Updated task t-9 on whiteboard: todo .. doing", "whiteboard")
	if !ok {
		t.Fatal("expected match")
	}
	if event.Data["old_status"] != "todo" || event.Data["new_status"] != "doing" {
		t.Errorf("unexpected data: %+v", event.Data)
	}
}

func TestDetectNoMatch(t *testing.T) {
	_, _, ok := Detect("just a plain line of chatter", "svc")
	if ok {
		t.Fatal("expected no match")
	}
}

func TestShouldPublishFiltersAPIRequests(t *testing.T) {
	_, event, ok := Detect("GET /api/tasks", "api")
	if !ok {
		t.Fatal("expected match")
	}
	if ShouldPublish(event) {
		t.Error("api.request must never be published")
	}
}

func TestShouldPublishFiltersBenignWarnings(t *testing.T) {
	event := Event{EventType: "warning.occurred", Data: map[string]any{"warning_message": "disk usage high"}}
	if ShouldPublish(event) {
		t.Error("benign warning should be filtered")
	}
}

func TestShouldPublishAllowsCriticalWarnings(t *testing.T) {
	event := Event{EventType: "warning.occurred", Data: map[string]any{"warning_message": "Could not start worker pool"}}
	if !ShouldPublish(event) {
		t.Error("critical warning should publish")
	}
	event2 := Event{EventType: "warning.occurred", Data: map[string]any{"warning_message": "Failed to connect to redis"}}
	if !ShouldPublish(event2) {
		t.Error("critical warning should publish")
	}
}

func TestDetectErrorPrefixWinsOverTaskCompleted(t *testing.T) {
	_, event, ok := Detect("ERROR: Task completed: X", "worker")
	if !ok {
		t.Fatal("expected match")
	}
	if event.EventType != "error.occurred" {
		t.Fatalf("event_type = %s, want error.occurred", event.EventType)
	}
}

func TestShouldPublishAllowsOtherEvents(t *testing.T) {
	event := Event{EventType: "task.created"}
	if !ShouldPublish(event) {
		t.Error("task.created should publish")
	}
}
