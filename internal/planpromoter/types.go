// Package planpromoter turns a markdown implementation plan into a project
// and its ordered task list via a single LLM call, and owns the
// project/task schema the auto-archive loop later sweeps.
package planpromoter

import "time"

// Priority is a task's triage level.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is a recognized priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// TaskStatus is a task's position in its own lifecycle.
type TaskStatus string

const (
	TaskTodo    TaskStatus = "todo"
	TaskDoing   TaskStatus = "doing"
	TaskDone    TaskStatus = "done"
	TaskArchived TaskStatus = "archived"
)

// Project groups the tasks promoted from a single plan document.
type Project struct {
	ID         string
	Title      string
	Archived   bool
	CreatedAt  time.Time
	ArchivedAt *time.Time
}

// Task is one implementation step promoted from a plan.
type Task struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Priority    Priority
	Feature     string
	Status      TaskStatus
	OrderIndex  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Archiver    string
	ArchiveReason string
}

// PromotedTask is the shape the LLM returns for one candidate task.
type PromotedTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Feature     string `json:"feature,omitempty"`
}

// PromoteError wraps a failed promotion, carrying the project ID so the
// caller can retry task creation against the same (task-less) project.
type PromoteError struct {
	ProjectID string
	Err       error
}

func (e *PromoteError) Error() string {
	return "promote plan for project " + e.ProjectID + ": " + e.Err.Error()
}

func (e *PromoteError) Unwrap() error { return e.Err }
