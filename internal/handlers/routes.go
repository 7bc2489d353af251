package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/project-tracker/internal/middleware"
	"github.com/yukikurage/project-tracker/internal/services"
)

// Services are the dependencies of the HTTP routes.
type Services struct {
	Auth     *services.AuthService
	Projects *services.ProjectService
	Tasks    *services.TaskService
	Metrics  http.Handler
}

// RegisterRoutes mounts the health check, the metrics endpoint and the API
// on r. Sessions must already be installed on r.
func RegisterRoutes(r *gin.Engine, svc Services) {
	authHandler := NewAuthHandler(svc.Auth)
	projectHandler := NewProjectHandler(svc.Projects)
	taskHandler := NewTaskHandler(svc.Tasks)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Project Tracker API is running",
		})
	})
	if svc.Metrics != nil {
		r.GET("/metrics", gin.WrapH(svc.Metrics))
	}

	projectAccess := middleware.RequireProjectAccess(svc.Projects)
	projectOwner := middleware.RequireProjectOwner()
	taskAccess := middleware.RequireTaskAccess(svc.Tasks)

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
			auth.PATCH("/profile", middleware.RequireAuth(), authHandler.UpdateProfile)
		}

		api.GET("/dashboard", middleware.RequireAuth(), projectHandler.Dashboard)

		projects := api.Group("/projects")
		projects.Use(middleware.RequireAuth())
		{
			projects.GET("", projectHandler.ListProjects)
			projects.POST("", projectHandler.CreateProject)
			projects.GET("/:id", projectAccess, projectHandler.GetProject)
			projects.PATCH("/:id", projectAccess, projectOwner, projectHandler.UpdateProject)
			projects.DELETE("/:id", projectAccess, projectOwner, projectHandler.DeleteProject)
			projects.POST("/:id/members", projectAccess, projectOwner, projectHandler.AddMember)
			projects.DELETE("/:id/members/:user_id", projectAccess, projectOwner, projectHandler.RemoveMember)
			projects.POST("/:id/tasks", projectAccess, taskHandler.CreateTask)
		}

		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth())
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.GET("/:id", taskAccess, taskHandler.GetTask)
			tasks.PATCH("/:id", taskAccess, taskHandler.UpdateTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
			tasks.POST("/:id/assign", taskAccess, taskHandler.AssignTask)
			tasks.POST("/:id/unassign", taskAccess, taskHandler.UnassignTask)
			tasks.POST("/:id/status/:status", taskAccess, taskHandler.ChangeStatus)
			tasks.POST("/:id/comments", taskAccess, taskHandler.AddComment)
			tasks.POST("/:id/attachments", taskAccess, taskHandler.UploadAttachment)
		}

		attachments := api.Group("/attachments")
		attachments.Use(middleware.RequireAuth())
		{
			attachments.GET("/:attachment_id", taskHandler.DownloadAttachment)
			attachments.DELETE("/:attachment_id", taskHandler.DeleteAttachment)
		}
	}
}
