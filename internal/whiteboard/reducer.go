package whiteboard

import (
	"fmt"

	"github.com/kadirpekel/backplane/internal/eventdetector"
)

// Reducer applies one event at a time to a Whiteboard, per the fixed table
// in spec §4.4. It is the only way the Whiteboard's fields are mutated.
type Reducer struct {
	board *Whiteboard
}

// NewReducer wraps board for sequential event application.
func NewReducer(board *Whiteboard) *Reducer {
	return &Reducer{board: board}
}

// Apply mutates the wrapped Whiteboard according to event's type, then
// appends it to recent_events regardless of whether it changed active
// state. Unrecognized event types are simply recorded, not an error.
func (r *Reducer) Apply(topic string, event eventdetector.Event) error {
	switch event.EventType {
	case "task.created":
		if status, _ := event.Data["status"].(string); status == "doing" {
			r.board.upsertTask(event.EntityID, status, "")
		}
	case "task.status_changed":
		newStatus, _ := event.Data["new_status"].(string)
		if newStatus == "doing" {
			r.board.upsertTask(event.EntityID, newStatus, "")
		} else {
			r.board.removeTask(event.EntityID)
		}
	case "task.assigned":
		assignee, _ := event.Data["assignee"].(string)
		status, _ := event.Data["status"].(string)
		if status == "" {
			status = "doing"
		}
		if status == "doing" {
			r.board.upsertTask(event.EntityID, status, assignee)
		}
	case "session.started":
		agent, _ := event.Data["agent"].(string)
		r.board.addSession(event.EntityID, agent)
	case "session.ended":
		r.board.removeSession(event.EntityID)
	default:
		// No active-state effect; still recorded below.
	}

	r.board.appendRecentEvent(topic, event)
	return nil
}

// ApplySafely calls Apply and converts a panic (from a malformed event's
// unexpected shape) into an error, so one bad event never kills the
// listener goroutine.
func (r *Reducer) ApplySafely(topic string, event eventdetector.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("reducer panic applying %s: %v", event.EventType, p)
		}
	}()
	return r.Apply(topic, event)
}
