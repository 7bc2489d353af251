package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/yukikurage/project-tracker/internal/constants"
	"github.com/yukikurage/project-tracker/internal/models"
	"github.com/yukikurage/project-tracker/internal/repository"
	"github.com/yukikurage/project-tracker/internal/uploads"
)

var (
	ErrInvalidStatus       = errors.New("invalid task status")
	ErrInvalidPriority     = errors.New("invalid task priority")
	ErrAssigneeNotMember   = errors.New("user is not a member of this project")
	ErrContentRequired     = errors.New("comment content is required")
	ErrContentTooLong      = errors.New("comment is too long")
	ErrNoFileSelected      = errors.New("no file selected")
	ErrFileTypeNotAllowed  = errors.New("file type not allowed")
	ErrUploadsNotAvailable = errors.New("file uploads are not configured")
)

// TaskService handles task, comment and attachment business logic.
type TaskService struct {
	store    *repository.Store
	projects *ProjectService
	files    uploads.Store
	logger   *slog.Logger
}

// NewTaskService creates a new TaskService. files may be nil, in which case
// uploads are refused.
func NewTaskService(store *repository.Store, projects *ProjectService, files uploads.Store, logger *slog.Logger) *TaskService {
	return &TaskService{
		store:    store,
		projects: projects,
		files:    files,
		logger:   logger,
	}
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	UserID        string
	ProjectID     string
	AssignedToMe  bool
	DueToday      bool
	Status        *models.TaskStatus
	SortByDueDate bool
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    models.TaskPriority
	DueDate     *time.Time
	ProjectID   string
	CreatorID   string
}

// UpdateTaskInput represents input for updating a task
type UpdateTaskInput struct {
	Title        *string
	Description  *string
	Status       *models.TaskStatus
	Priority     *models.TaskPriority
	DueDate      *time.Time
	ClearDueDate bool
}

// CommentView is a comment with its author's name resolved.
type CommentView struct {
	Comment *models.Comment
	Author  string
}

// TaskDetail is a task with everything its page shows.
type TaskDetail struct {
	Task        *models.Task
	Project     *models.Project
	Assignee    *models.User
	Comments    []CommentView
	Attachments []*models.Attachment
}

// Authorize loads a task and its project and checks that userID can access
// the project.
func (s *TaskService) Authorize(ctx context.Context, taskID, userID string) (*models.Task, *models.Project, error) {
	task, err := s.store.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	project, err := s.projects.Authorize(ctx, task.ProjectID, userID)
	if err != nil {
		return nil, nil, err
	}
	return task, project, nil
}

// ListTasks returns tasks from the projects the user can access
func (s *TaskService) ListTasks(ctx context.Context, input ListTasksInput) ([]*models.Task, error) {
	var tasks []*models.Task
	if input.ProjectID != "" {
		if _, err := s.projects.Authorize(ctx, input.ProjectID, input.UserID); err != nil {
			return nil, err
		}
		list, err := s.store.Tasks.ListByProject(ctx, input.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks: %w", err)
		}
		tasks = list
	} else {
		projects, err := s.store.Projects.ListForUser(ctx, input.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		ids := make(map[string]struct{}, len(projects))
		for _, p := range projects {
			ids[p.ID] = struct{}{}
		}
		all, err := s.store.Tasks.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks: %w", err)
		}
		for _, t := range all {
			if _, ok := ids[t.ProjectID]; ok {
				tasks = append(tasks, t)
			}
		}
	}

	var startOfDay, endOfDay time.Time
	if input.DueToday {
		now := time.Now()
		startOfDay = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		endOfDay = startOfDay.Add(24 * time.Hour)
	}

	filtered := make([]*models.Task, 0, len(tasks))
	for _, t := range tasks {
		if input.Status != nil && t.Status != *input.Status {
			continue
		}
		if input.AssignedToMe && t.AssigneeID != input.UserID {
			continue
		}
		if input.DueToday && (t.DueDate == nil || t.DueDate.Before(startOfDay) || !t.DueDate.Before(endOfDay)) {
			continue
		}
		filtered = append(filtered, t)
	}

	if input.SortByDueDate {
		// Tasks without a due date go last.
		sort.SliceStable(filtered, func(i, j int) bool {
			a, b := filtered[i].DueDate, filtered[j].DueDate
			if a == nil || b == nil {
				return a != nil && b == nil
			}
			return a.Before(*b)
		})
	}
	return filtered, nil
}

// CreateTask creates a task in a project the creator can access
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	if err := validateDescription(input.Description); err != nil {
		return nil, err
	}
	if input.Priority != "" && !input.Priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if _, err := s.projects.Authorize(ctx, input.ProjectID, input.CreatorID); err != nil {
		return nil, err
	}

	task := models.NewTask(title, input.Description, input.ProjectID, input.CreatorID)
	if input.Priority != "" {
		task.Priority = input.Priority
	}
	task.DueDate = input.DueDate

	if err := s.store.Tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// GetTask returns a task with its comments, attachments and assignee
func (s *TaskService) GetTask(ctx context.Context, taskID, userID string) (*TaskDetail, error) {
	task, project, err := s.Authorize(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	comments, err := s.store.Comments.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	attachments, err := s.store.Attachments.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}

	detail := &TaskDetail{
		Task:        task,
		Project:     project,
		Comments:    make([]CommentView, 0, len(comments)),
		Attachments: attachments,
	}
	if task.IsAssigned() {
		detail.Assignee = s.projects.lookupUser(ctx, task.AssigneeID)
	}
	for _, c := range comments {
		author := "User"
		if u := s.projects.lookupUser(ctx, c.UserID); u != nil {
			author = u.Username
		}
		detail.Comments = append(detail.Comments, CommentView{Comment: c, Author: author})
	}
	return detail, nil
}

// UpdateTask edits a task. Any project member may edit.
func (s *TaskService) UpdateTask(ctx context.Context, taskID, userID string, input UpdateTaskInput) (*models.Task, error) {
	task, _, err := s.Authorize(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title, err := validateTitle(*input.Title)
		if err != nil {
			return nil, err
		}
		task.Title = title
	}
	if input.Description != nil {
		if err := validateDescription(*input.Description); err != nil {
			return nil, err
		}
		task.Description = *input.Description
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		task.Status = *input.Status
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, ErrInvalidPriority
		}
		task.Priority = *input.Priority
	}
	if input.ClearDueDate {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	task.Touch()

	if err := s.store.Tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// DeleteTask deletes a task with its comments and attachments. A task that
// is missing or no longer decodes cannot be authorized; an admin may still
// delete it, which tombstones the id and clears what it left behind.
func (s *TaskService) DeleteTask(ctx context.Context, taskID, userID string) error {
	_, _, err := s.Authorize(ctx, taskID, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound) && s.isAdmin(ctx, userID):
		s.logger.Warn("forcing delete of unreadable task", "op", "delete_task", "kind", models.KindTask, "id", taskID, "user_id", userID)
	case err != nil:
		return err
	}
	return settleCascade(s.logger, s.store.Cascade.DeleteTask(ctx, taskID))
}

func (s *TaskService) isAdmin(ctx context.Context, userID string) bool {
	user, err := s.store.Users.FindByID(ctx, userID)
	return err == nil && user.IsAdmin()
}

// AssignTask assigns the task to the user named username, who must own or
// belong to the task's project. An empty username clears the assignee.
func (s *TaskService) AssignTask(ctx context.Context, taskID, actorID, username string) (*models.Task, error) {
	task, project, err := s.Authorize(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}

	username = strings.TrimSpace(username)
	if username == "" {
		task.AssigneeID = ""
	} else {
		user, err := s.store.Users.FindByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if !project.CanAccess(user.ID) {
			return nil, ErrAssigneeNotMember
		}
		task.AssigneeID = user.ID
	}
	task.Touch()

	if err := s.store.Tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}
	return task, nil
}

// ChangeStatus moves a task to status and returns the previous status.
func (s *TaskService) ChangeStatus(ctx context.Context, taskID, actorID string, status models.TaskStatus) (*models.Task, models.TaskStatus, error) {
	if !status.Valid() {
		return nil, "", ErrInvalidStatus
	}
	task, _, err := s.Authorize(ctx, taskID, actorID)
	if err != nil {
		return nil, "", err
	}

	old := task.Status
	task.Status = status
	task.Touch()
	if err := s.store.Tasks.Update(ctx, task); err != nil {
		return nil, "", fmt.Errorf("failed to change status: %w", err)
	}
	return task, old, nil
}

// AddComment adds a comment by userID to the task
func (s *TaskService) AddComment(ctx context.Context, taskID, userID, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrContentRequired
	}
	if len(content) > constants.MaxCommentLength {
		return nil, ErrContentTooLong
	}
	if _, _, err := s.Authorize(ctx, taskID, userID); err != nil {
		return nil, err
	}

	comment := models.NewComment(content, taskID, userID)
	if err := s.store.Comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	return comment, nil
}

// AllowedUpload reports whether filename has an accepted extension.
func AllowedUpload(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return ext != "" && slices.Contains(constants.AllowedUploadExtensions, ext)
}

// Upload stores r as a new attachment of the task. The stored file is
// removed again when the attachment record cannot be written.
func (s *TaskService) Upload(ctx context.Context, taskID, userID, filename string, r io.Reader) (*models.Attachment, error) {
	if s.files == nil {
		return nil, ErrUploadsNotAvailable
	}
	if filename == "" {
		return nil, ErrNoFileSelected
	}
	if !AllowedUpload(filename) {
		return nil, ErrFileTypeNotAllowed
	}
	if _, _, err := s.Authorize(ctx, taskID, userID); err != nil {
		return nil, err
	}

	path, err := s.files.Save(ctx, filename, r)
	if err != nil {
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	attachment := models.NewAttachment(filepath.Base(path), path, taskID, userID)
	if err := s.store.Attachments.Create(ctx, attachment); err != nil {
		if rmErr := s.files.Remove(ctx, path); rmErr != nil {
			s.logger.Warn("failed to remove orphaned upload", "path", path, "error", rmErr)
		}
		return nil, fmt.Errorf("failed to record attachment: %w", err)
	}
	return attachment, nil
}

// authorizeAttachment loads an attachment and checks access to its task.
func (s *TaskService) authorizeAttachment(ctx context.Context, attachmentID, userID string) (*models.Attachment, error) {
	attachment, err := s.store.Attachments.FindByID(ctx, attachmentID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.Authorize(ctx, attachment.TaskID, userID); err != nil {
		return nil, err
	}
	return attachment, nil
}

// OpenAttachment returns the attachment and a reader over its file. The
// caller closes the reader.
func (s *TaskService) OpenAttachment(ctx context.Context, attachmentID, userID string) (*models.Attachment, io.ReadCloser, error) {
	if s.files == nil {
		return nil, nil, ErrUploadsNotAvailable
	}
	attachment, err := s.authorizeAttachment(ctx, attachmentID, userID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.files.Open(ctx, attachment.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	return attachment, rc, nil
}

// DeleteAttachment deletes the attachment record, then its file. A file
// that cannot be removed is logged and left behind.
func (s *TaskService) DeleteAttachment(ctx context.Context, attachmentID, userID string) (*models.Attachment, error) {
	attachment, err := s.authorizeAttachment(ctx, attachmentID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Attachments.Delete(ctx, attachmentID); err != nil {
		return nil, fmt.Errorf("failed to delete attachment: %w", err)
	}
	if s.files != nil {
		if err := s.files.Remove(ctx, attachment.FilePath); err != nil {
			s.logger.Warn("failed to remove attachment file",
				"kind", models.KindAttachment, "id", attachmentID, "path", attachment.FilePath, "error", err)
		}
	}
	return attachment, nil
}
