// Package whiteboard materializes the event stream into a single live
// document: which sessions and tasks are active, and a ring buffer of
// recently processed events. State is mutated only through Reducer.Apply,
// single-goroutine owned per spec's concurrency model, and persisted
// through a Store so it survives a restart.
package whiteboard

import (
	"encoding/json"
	"time"

	"github.com/kadirpekel/backplane/internal/eventdetector"
)

const recentEventsCapacity = 50

// ActiveTask is one task currently in the "doing" state.
type ActiveTask struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Assignee string `json:"assignee,omitempty"`
}

// ActiveSession is one session currently open.
type ActiveSession struct {
	SessionID string `json:"session_id"`
	Agent     string `json:"agent,omitempty"`
}

// RecentEvent is one event retained in the ring buffer, most recent first.
type RecentEvent struct {
	Topic     string              `json:"topic"`
	Event     eventdetector.Event `json:"event"`
	AppliedAt time.Time           `json:"applied_at"`
}

// Whiteboard is the reduced live view of agent activity.
type Whiteboard struct {
	ActiveSessions []ActiveSession `json:"active_sessions"`
	ActiveTasks    []ActiveTask    `json:"active_tasks"`
	RecentEvents   []RecentEvent   `json:"recent_events"`
}

// MarshalState serializes the whiteboard for persistence as a JSON blob.
func (w *Whiteboard) MarshalState() ([]byte, error) {
	return json.Marshal(w)
}

// UnmarshalState restores a whiteboard from a JSON blob previously produced
// by MarshalState. An empty blob leaves w as a zero-value whiteboard.
func UnmarshalState(data []byte) (*Whiteboard, error) {
	w := &Whiteboard{}
	if len(data) == 0 {
		return w, nil
	}
	if err := json.Unmarshal(data, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Whiteboard) upsertTask(id, status, assignee string) {
	for i := range w.ActiveTasks {
		if w.ActiveTasks[i].TaskID == id {
			w.ActiveTasks[i].Status = status
			if assignee != "" {
				w.ActiveTasks[i].Assignee = assignee
			}
			return
		}
	}
	w.ActiveTasks = append(w.ActiveTasks, ActiveTask{TaskID: id, Status: status, Assignee: assignee})
}

func (w *Whiteboard) removeTask(id string) {
	for i := range w.ActiveTasks {
		if w.ActiveTasks[i].TaskID == id {
			w.ActiveTasks = append(w.ActiveTasks[:i], w.ActiveTasks[i+1:]...)
			return
		}
	}
}

func (w *Whiteboard) addSession(id, agent string) {
	for _, s := range w.ActiveSessions {
		if s.SessionID == id {
			return
		}
	}
	w.ActiveSessions = append(w.ActiveSessions, ActiveSession{SessionID: id, Agent: agent})
}

func (w *Whiteboard) removeSession(id string) {
	for i := range w.ActiveSessions {
		if w.ActiveSessions[i].SessionID == id {
			w.ActiveSessions = append(w.ActiveSessions[:i], w.ActiveSessions[i+1:]...)
			return
		}
	}
}

func (w *Whiteboard) appendRecentEvent(topic string, event eventdetector.Event) {
	w.RecentEvents = append([]RecentEvent{{Topic: topic, Event: event, AppliedAt: time.Now().UTC()}}, w.RecentEvents...)
	if len(w.RecentEvents) > recentEventsCapacity {
		w.RecentEvents = w.RecentEvents[:recentEventsCapacity]
	}
}
