package dto

import (
	"time"

	"github.com/yukikurage/project-tracker/internal/models"
	"github.com/yukikurage/project-tracker/internal/services"
	"github.com/yukikurage/project-tracker/internal/utils"
)

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"due_date"`
	ProjectID   string              `json:"project_id"`
	CreatorID   string              `json:"creator_id"`
	AssigneeID  string              `json:"assignee_id,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TaskDetailDTO is a task with its comments and attachments
type TaskDetailDTO struct {
	TaskDTO
	Assignee    *UserDTO        `json:"assignee,omitempty"`
	Comments    []CommentDTO    `json:"comments"`
	Attachments []AttachmentDTO `json:"attachments"`
}

// TaskListItemDTO represents a task in list responses (minimal data)
type TaskListItemDTO struct {
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	Status     models.TaskStatus   `json:"status"`
	Priority   models.TaskPriority `json:"priority"`
	DueDate    *time.Time          `json:"due_date"`
	ProjectID  string              `json:"project_id"`
	AssigneeID string              `json:"assignee_id,omitempty"`
	Assignee   *UserDTO            `json:"assignee,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskListItemDTO        `json:"tasks"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// StatusChangeDTO reports a status transition
type StatusChangeDTO struct {
	Task      TaskDTO           `json:"task"`
	OldStatus models.TaskStatus `json:"old_status"`
	NewStatus models.TaskStatus `json:"new_status"`
}

// CommentDTO represents a comment in API responses
type CommentDTO struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachmentDTO represents attachment metadata in API responses
type AttachmentDTO struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	TaskID     string    `json:"task_id"`
	UserID     string    `json:"user_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	return TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		DueDate:     task.DueDate,
		ProjectID:   task.ProjectID,
		CreatorID:   task.CreatorID,
		AssigneeID:  task.AssigneeID,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// ToTaskListItemDTO converts a Task model to TaskListItemDTO
func ToTaskListItemDTO(task models.Task) TaskListItemDTO {
	return TaskListItemDTO{
		ID:         task.ID,
		Title:      task.Title,
		Status:     task.Status,
		Priority:   task.Priority,
		DueDate:    task.DueDate,
		ProjectID:  task.ProjectID,
		AssigneeID: task.AssigneeID,
		CreatedAt:  task.CreatedAt,
	}
}

// ToTaskListResponse converts one page of tasks to TaskListResponse
func ToTaskListResponse(tasks []*models.Task, page utils.PaginationResponse) TaskListResponse {
	items := make([]TaskListItemDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskListItemDTO(*task)
	}
	return TaskListResponse{Tasks: items, Pagination: page}
}

// ToTaskDetailDTO converts a resolved task to TaskDetailDTO
func ToTaskDetailDTO(d *services.TaskDetail) TaskDetailDTO {
	out := TaskDetailDTO{
		TaskDTO:     ToTaskDTO(*d.Task),
		Assignee:    toUserDTOPtr(d.Assignee),
		Comments:    make([]CommentDTO, len(d.Comments)),
		Attachments: make([]AttachmentDTO, len(d.Attachments)),
	}
	for i, c := range d.Comments {
		out.Comments[i] = ToCommentDTO(*c.Comment)
		out.Comments[i].Author = c.Author
	}
	for i, a := range d.Attachments {
		out.Attachments[i] = ToAttachmentDTO(*a)
	}
	return out
}

// ToCommentDTO converts a Comment model to CommentDTO
func ToCommentDTO(c models.Comment) CommentDTO {
	return CommentDTO{
		ID:        c.ID,
		Content:   c.Content,
		TaskID:    c.TaskID,
		UserID:    c.UserID,
		CreatedAt: c.CreatedAt,
	}
}

// ToAttachmentDTO converts an Attachment model to AttachmentDTO. The stored
// path stays internal.
func ToAttachmentDTO(a models.Attachment) AttachmentDTO {
	return AttachmentDTO{
		ID:         a.ID,
		Filename:   a.Filename,
		TaskID:     a.TaskID,
		UserID:     a.UserID,
		UploadedAt: a.UploadedAt,
	}
}
