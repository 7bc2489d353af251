package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/project-tracker/internal/constants"
	apierrors "github.com/yukikurage/project-tracker/internal/errors"
	"github.com/yukikurage/project-tracker/internal/models"
	"github.com/yukikurage/project-tracker/internal/repository"
	"github.com/yukikurage/project-tracker/internal/services"
)

// abortAccess answers a failed access check. Missing entities and
// projects the user cannot see both answer 404.
func abortAccess(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, services.ErrNoProjectAccess):
		apierrors.NotFound(c, what+" not found")
	default:
		apierrors.FromError(c, err)
	}
	c.Abort()
}

// RequireProjectAccess loads the project named by the :id parameter and
// checks that the user owns or belongs to it.
func RequireProjectAccess(projects *services.ProjectService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		project, err := projects.Authorize(c.Request.Context(), c.Param("id"), userID)
		if err != nil {
			abortAccess(c, err, "Project")
			return
		}

		c.Set(constants.ContextKeyProject, project)
		c.Next()
	}
}

// RequireProjectOwner lets only the owner of the project loaded by
// RequireProjectAccess through.
func RequireProjectOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		project, ok := GetProject(c)
		if !ok {
			apierrors.Forbidden(c, "Project access required")
			c.Abort()
			return
		}

		userID, _ := GetUserID(c)
		if project.OwnerID != userID {
			apierrors.OwnerOnly(c)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireTaskAccess loads the task named by the :id parameter and checks
// that the user can access its project.
func RequireTaskAccess(tasks *services.TaskService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		task, project, err := tasks.Authorize(c.Request.Context(), c.Param("id"), userID)
		if err != nil {
			abortAccess(c, err, "Task")
			return
		}

		c.Set(constants.ContextKeyTask, task)
		c.Set(constants.ContextKeyProject, project)
		c.Next()
	}
}

func GetProject(c *gin.Context) (*models.Project, bool) {
	v, exists := c.Get(constants.ContextKeyProject)
	if !exists {
		return nil, false
	}
	p, ok := v.(*models.Project)
	return p, ok
}

func GetTask(c *gin.Context) (*models.Task, bool) {
	v, exists := c.Get(constants.ContextKeyTask)
	if !exists {
		return nil, false
	}
	t, ok := v.(*models.Task)
	return t, ok
}
