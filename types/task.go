package types

import (
	"encoding/json"
	"time"
)

// TaskState is the lifecycle state of one orchestration task.
// Succeeded and failed are terminal; a failed task is never auto-resumed.
type TaskState string

const (
	TaskPending    TaskState = "pending"
	TaskInProgress TaskState = "in_progress"
	TaskSucceeded  TaskState = "succeeded"
	TaskFailed     TaskState = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// TaskKind names the unit of work a task identifier tracks.
type TaskKind string

const (
	TaskIngest     TaskKind = "ingest"
	TaskApprove    TaskKind = "approve"
	TaskCategorize TaskKind = "categorize"
	TaskWarmCache  TaskKind = "warm_cache"
)

// TaskRecord is the queryable progress/result snapshot for one task.
type TaskRecord struct {
	ID        string          `json:"id"`
	Kind      TaskKind        `json:"kind"`
	State     TaskState       `json:"state"`
	Message   string          `json:"message,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
