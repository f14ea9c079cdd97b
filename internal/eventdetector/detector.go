// Package eventdetector turns a raw container log line into a structured
// event, the same job the original project's event_detector.py does with an
// ordered table of regexes. It is a pure package: no I/O, no bus, no clock
// injection beyond time.Now for the timestamp it stamps onto the event.
package eventdetector

import (
	"regexp"
	"strings"
	"time"
)

// Event is the structured payload the detector emits for a matched line.
type Event struct {
	EventType  string         `json:"event_type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Timestamp  string         `json:"timestamp"`
	Source     string         `json:"source"`
	Data       map[string]any `json:"data"`
}

// pattern is one named entry in the detector's ordered table.
type pattern struct {
	name      string
	regexp    *regexp.Regexp
	topic     string
	eventType string
	extract   func(groups []string) map[string]any
}

// patterns is evaluated in order; the first regex that matches a line wins.
// Ported from the source project's event_detector.py, family by family.
var patterns = []pattern{
	{"task_created", regexp.MustCompile(`Published task\.created event for task ([\w-]+)`), "events:task", "task.created",
		func(g []string) map[string]any { return map[string]any{"task_id": g[1]} }},
	{"task_status_changed", regexp.MustCompile(`Published task\.status_changed event for task ([\w-]+)`), "events:task", "task.status_changed",
		func(g []string) map[string]any { return map[string]any{"task_id": g[1]} }},
	{"task_assigned", regexp.MustCompile(`Published task\.assigned event for task ([\w-]+)`), "events:task", "task.assigned",
		func(g []string) map[string]any { return map[string]any{"task_id": g[1]} }},

	{"session_started", regexp.MustCompile(`Published session\.started event for session ([\w-]+)`), "events:session", "session.started",
		func(g []string) map[string]any { return map[string]any{"session_id": g[1]} }},
	{"session_ended", regexp.MustCompile(`Published session\.ended event for session ([\w-]+)`), "events:session", "session.ended",
		func(g []string) map[string]any { return map[string]any{"session_id": g[1]} }},

	{"whiteboard_task_added", regexp.MustCompile(`Added task ([\w-]+) to whiteboard`), "events:system", "whiteboard.task_added",
		func(g []string) map[string]any { return map[string]any{"task_id": g[1]} }},
	{"whiteboard_task_updated", regexp.MustCompile(`Updated task ([\w-]+) on whiteboard: (\w+) .. (\w+)`), "events:system", "whiteboard.task_updated",
		func(g []string) map[string]any {
			return map[string]any{"task_id": g[1], "old_status": g[2], "new_status": g[3]}
		}},
	{"whiteboard_session_added", regexp.MustCompile(`Added session ([\w-]+) \((\w+)\) to whiteboard`), "events:system", "whiteboard.session_added",
		func(g []string) map[string]any { return map[string]any{"session_id": g[1], "agent": g[2]} }},
	{"whiteboard_session_removed", regexp.MustCompile(`Removed session ([\w-]+) from whiteboard`), "events:system", "whiteboard.session_removed",
		func(g []string) map[string]any { return map[string]any{"session_id": g[1]} }},

	{"service_started", regexp.MustCompile(`([\w-]+) service started successfully`), "events:system", "service.started",
		func(g []string) map[string]any { return map[string]any{"service_name": g[1]} }},
	{"service_stopped", regexp.MustCompile(`([\w-]+) service stopped`), "events:system", "service.stopped",
		func(g []string) map[string]any { return map[string]any{"service_name": g[1]} }},

	{"backend_started", regexp.MustCompile(`Archon backend started successfully`), "events:system", "backend.started",
		func(g []string) map[string]any { return map[string]any{} }},
	{"backend_shutdown", regexp.MustCompile(`Shutting down Archon backend`), "events:system", "backend.shutdown",
		func(g []string) map[string]any { return map[string]any{} }},

	// Error/warning patterns run here, immediately after backend_shutdown and
	// before the crawl/api/todo families, matching the original detector's
	// table order: a line like "ERROR: Task completed: X" resolves to
	// error.occurred, not task.completed.
	{"error_occurred", regexp.MustCompile(`(?i)ERROR.*?:\s*(.+)$`), "events:system", "error.occurred",
		func(g []string) map[string]any { return map[string]any{"error_message": strings.TrimSpace(g[1])} }},
	{"warning_occurred", regexp.MustCompile(`(?i)WARNING.*?:\s*(.+)$`), "events:system", "warning.occurred",
		func(g []string) map[string]any { return map[string]any{"warning_message": strings.TrimSpace(g[1])} }},

	{"crawl_started", regexp.MustCompile(`Starting crawl for URL: (.+)`), "events:system", "crawl.started",
		func(g []string) map[string]any { return map[string]any{"url": strings.TrimSpace(g[1])} }},
	{"crawl_completed", regexp.MustCompile(`Crawl completed for (.+)`), "events:system", "crawl.completed",
		func(g []string) map[string]any { return map[string]any{"url": strings.TrimSpace(g[1])} }},

	{"api_request", regexp.MustCompile(`(GET|POST|PUT|DELETE|PATCH)\s+(/api/[\w/]+)`), "events:system", "api.request",
		func(g []string) map[string]any { return map[string]any{"method": g[1], "path": g[2]} }},

	{"todo_item_completed", regexp.MustCompile(`(?i)(?:Task|Todo|Item)\s+(?:completed|done|finished):\s*(.+)$`), "events:task", "task.completed",
		func(g []string) map[string]any { return map[string]any{"description": strings.TrimSpace(g[1])} }},
	{"todo_item_started", regexp.MustCompile(`(?i)(?:Started|Beginning|Working on)\s+(?:task|todo):\s*(.+)$`), "events:task", "task.started",
		func(g []string) map[string]any { return map[string]any{"description": strings.TrimSpace(g[1])} }},
	{"todo_item_added", regexp.MustCompile(`(?i)(?:Added|Created)\s+(?:task|todo):\s*(.+)$`), "events:task", "task.added",
		func(g []string) map[string]any { return map[string]any{"description": strings.TrimSpace(g[1])} }},
	{"todos_modified", regexp.MustCompile(`Todos have been modified successfully`), "events:task", "task.list_updated",
		func(g []string) map[string]any { return map[string]any{} }},
}

// Detect runs line through the ordered pattern table and returns the first
// match's topic and structured Event. ok is false if no pattern matched.
func Detect(line, service string) (topic string, event Event, ok bool) {
	for _, p := range patterns {
		m := p.regexp.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		data := p.extract(m)
		data["log_line"] = strings.TrimSpace(line)

		event = Event{
			EventType:  p.eventType,
			EntityType: entityType(p.eventType),
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Source:     service,
			Data:       data,
		}
		if id, ok := data["task_id"]; ok {
			event.EntityID, _ = id.(string)
		} else if id, ok := data["session_id"]; ok {
			event.EntityID, _ = id.(string)
		} else if id, ok := data["service_name"]; ok {
			event.EntityID, _ = id.(string)
		}

		return p.topic, event, true
	}
	return "", Event{}, false
}

func entityType(eventType string) string {
	prefix, _, found := strings.Cut(eventType, ".")
	if !found {
		return "system"
	}
	switch prefix {
	case "task", "session", "service", "backend", "whiteboard", "crawl", "api", "error", "warning":
		return prefix
	default:
		return "system"
	}
}

// ShouldPublish applies the noise filter: api.request events are never
// published to events:*, and warning.occurred events are only published
// when the message signals something critical.
func ShouldPublish(event Event) bool {
	if event.EventType == "api.request" {
		return false
	}
	if event.EventType == "warning.occurred" {
		msg, _ := event.Data["warning_message"].(string)
		return strings.Contains(msg, "Could not start") || strings.Contains(msg, "Failed to")
	}
	return true
}
