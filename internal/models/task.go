package models

import "time"

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	ProjectID   string       `json:"project_id"`
	CreatorID   string       `json:"creator_id"`
	AssigneeID  string       `json:"assignee_id,omitempty"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func NewTask(title, description, projectID, creatorID string) *Task {
	now := Now()
	return &Task{
		ID:          NewID(),
		Title:       title,
		Description: description,
		Status:      TaskStatusTodo,
		Priority:    TaskPriorityMedium,
		ProjectID:   projectID,
		CreatorID:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (t *Task) EntityID() string   { return t.ID }
func (t *Task) EntityKind() Kind   { return KindTask }
func (t *Task) Created() time.Time { return t.CreatedAt }

func (t *Task) IsAssigned() bool {
	return t.AssigneeID != ""
}

func (t *Task) Touch() {
	t.UpdatedAt = Now()
}

// ApplyDefaults normalizes enum fields that are missing or unknown.
func (t *Task) ApplyDefaults() {
	if !t.Status.Valid() {
		t.Status = TaskStatusTodo
	}
	if !t.Priority.Valid() {
		t.Priority = TaskPriorityMedium
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
}
