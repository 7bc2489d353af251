package handlers

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/project-tracker/internal/constants"
	"github.com/yukikurage/project-tracker/internal/dto"
	apierrors "github.com/yukikurage/project-tracker/internal/errors"
	"github.com/yukikurage/project-tracker/internal/models"
	"github.com/yukikurage/project-tracker/internal/services"
	"github.com/yukikurage/project-tracker/internal/utils"
)

type TaskHandler struct {
	tasks *services.TaskService
}

func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// ListTasks returns the tasks of every project the user can access.
// Filters: project_id, status, assigned_to_me, due_today, sort=due_date.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	input := services.ListTasksInput{
		UserID:        userID,
		ProjectID:     c.Query("project_id"),
		SortByDueDate: c.Query("sort") == "due_date",
	}
	if s := c.Query("status"); s != "" {
		status := models.TaskStatus(s)
		if !status.Valid() {
			apierrors.BadRequest(c, "Invalid status")
			return
		}
		input.Status = &status
	}
	input.AssignedToMe, _ = strconv.ParseBool(c.Query("assigned_to_me"))
	input.DueToday, _ = strconv.ParseBool(c.Query("due_today"))

	tasks, err := h.tasks.ListTasks(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	page, meta := utils.Paginate(tasks, utils.GetPaginationParams(c))
	c.JSON(http.StatusOK, dto.ToTaskListResponse(page, meta))
}

// CreateTask creates a task in the project named by :id
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	type CreateTaskRequest struct {
		Title       string              `json:"title" binding:"required,max=100"`
		Description string              `json:"description" binding:"max=500"`
		Priority    models.TaskPriority `json:"priority"`
		DueDate     *time.Time          `json:"due_date"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.tasks.CreateTask(c.Request.Context(), services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		ProjectID:   c.Param("id"),
		CreatorID:   userID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// GetTask returns a task with its comments and attachments
func (h *TaskHandler) GetTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	detail, err := h.tasks.GetTask(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDetailDTO(detail))
}

// UpdateTask updates the fields present in the body. A null due_date
// clears it.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	// Parse raw JSON to detect which fields were sent
	var rawReq map[string]any
	if err := c.ShouldBindJSON(&rawReq); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	var input services.UpdateTaskInput
	if v, ok := rawReq["title"].(string); ok {
		input.Title = &v
	}
	if v, ok := rawReq["description"].(string); ok {
		input.Description = &v
	}
	if v, ok := rawReq["status"].(string); ok {
		status := models.TaskStatus(v)
		input.Status = &status
	}
	if v, ok := rawReq["priority"].(string); ok {
		priority := models.TaskPriority(v)
		input.Priority = &priority
	}
	if due, ok := rawReq["due_date"]; ok {
		switch v := due.(type) {
		case nil:
			input.ClearDueDate = true
		case string:
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				apierrors.BadRequest(c, "due_date must be RFC 3339")
				return
			}
			input.DueDate = &parsed
		default:
			apierrors.BadRequest(c, "due_date must be RFC 3339")
			return
		}
	}

	task, err := h.tasks.UpdateTask(c.Request.Context(), c.Param("id"), userID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// DeleteTask deletes a task with its comments and attachments. It runs
// without the task access middleware so admins can remove unreadable tasks.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.tasks.DeleteTask(c.Request.Context(), c.Param("id"), userID); err != nil {
		if errors.Is(err, services.ErrNoProjectAccess) {
			apierrors.NotFound(c, "Task not found")
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

// AssignTask assigns the task by username. An empty username unassigns.
func (h *TaskHandler) AssignTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	type AssignRequest struct {
		Username string `json:"username"`
	}
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.tasks.AssignTask(c.Request.Context(), c.Param("id"), userID, req.Username)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// UnassignTask clears the task's assignee
func (h *TaskHandler) UnassignTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	task, err := h.tasks.AssignTask(c.Request.Context(), c.Param("id"), userID, "")
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// ChangeStatus moves the task to the status named by :status
func (h *TaskHandler) ChangeStatus(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	status := models.TaskStatus(c.Param("status"))
	task, old, err := h.tasks.ChangeStatus(c.Request.Context(), c.Param("id"), userID, status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.StatusChangeDTO{
		Task:      dto.ToTaskDTO(*task),
		OldStatus: old,
		NewStatus: task.Status,
	})
}

// AddComment adds a comment to the task
func (h *TaskHandler) AddComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	type CommentRequest struct {
		Content string `json:"content" binding:"required"`
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	comment, err := h.tasks.AddComment(c.Request.Context(), c.Param("id"), userID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToCommentDTO(*comment))
}

// UploadAttachment stores the multipart "file" field as an attachment
func (h *TaskHandler) UploadAttachment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, constants.MaxUploadSize)
	header, err := c.FormFile("file")
	if err != nil {
		apierrors.BadRequest(c, "No file selected")
		return
	}
	f, err := header.Open()
	if err != nil {
		apierrors.BadRequest(c, "Failed to read upload")
		return
	}
	defer f.Close()

	attachment, err := h.tasks.Upload(c.Request.Context(), c.Param("id"), userID, header.Filename, f)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToAttachmentDTO(*attachment))
}

// DownloadAttachment streams an attachment's file
func (h *TaskHandler) DownloadAttachment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	attachment, rc, err := h.tasks.OpenAttachment(c.Request.Context(), c.Param("attachment_id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(attachment.Filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", attachment.Filename),
	})
}

// DeleteAttachment deletes an attachment and its file
func (h *TaskHandler) DeleteAttachment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if _, err := h.tasks.DeleteAttachment(c.Request.Context(), c.Param("attachment_id"), userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Attachment deleted successfully"})
}
