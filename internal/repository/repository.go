package repository

import (
	"context"

	"github.com/yukikurage/project-tracker/internal/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create stores a new user. Username and email must not belong to any
	// other live user. The check is a scan and is not atomic with the write.
	Create(ctx context.Context, user *models.User) error

	// Update overwrites a user, re-checking uniqueness against other users
	Update(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id string) (*models.User, error)

	// FindByUsername finds a user by exact username
	FindByUsername(ctx context.Context, username string) (*models.User, error)

	// FindByEmail finds a user by email, ignoring case
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// List returns every user
	List(ctx context.Context) ([]*models.User, error)

	// Delete tombstones a user
	Delete(ctx context.Context, id string) error
}

// ProjectRepository defines the interface for project data access.
// Projects are deleted through Cascade.
type ProjectRepository interface {
	// Create stores a new project
	Create(ctx context.Context, project *models.Project) error

	// Update overwrites a project
	Update(ctx context.Context, project *models.Project) error

	// FindByID finds a project by ID
	FindByID(ctx context.Context, id string) (*models.Project, error)

	// List returns every project
	List(ctx context.Context) ([]*models.Project, error)

	// ListByOwner lists projects owned by the user
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Project, error)

	// ListByMember lists projects the user was added to as a member
	ListByMember(ctx context.Context, userID string) ([]*models.Project, error)

	// ListForUser lists projects the user owns or is a member of
	ListForUser(ctx context.Context, userID string) ([]*models.Project, error)
}

// TaskRepository defines the interface for task data access.
// Tasks are deleted through Cascade.
type TaskRepository interface {
	// Create stores a new task
	Create(ctx context.Context, task *models.Task) error

	// Update overwrites a task
	Update(ctx context.Context, task *models.Task) error

	// FindByID finds a task by ID
	FindByID(ctx context.Context, id string) (*models.Task, error)

	// List returns every task
	List(ctx context.Context) ([]*models.Task, error)

	// ListByProject lists the tasks of a project
	ListByProject(ctx context.Context, projectID string) ([]*models.Task, error)

	// ListByAssignee lists tasks assigned to the user
	ListByAssignee(ctx context.Context, userID string) ([]*models.Task, error)

	// CountByProject counts the tasks of a project
	CountByProject(ctx context.Context, projectID string) (int, error)
}

// CommentRepository defines the interface for comment data access
type CommentRepository interface {
	// Create stores a new comment
	Create(ctx context.Context, comment *models.Comment) error

	// FindByID finds a comment by ID
	FindByID(ctx context.Context, id string) (*models.Comment, error)

	// ListByTask lists the comments of a task, oldest first
	ListByTask(ctx context.Context, taskID string) ([]*models.Comment, error)

	// Delete tombstones a comment
	Delete(ctx context.Context, id string) error
}

// AttachmentRepository defines the interface for attachment metadata
type AttachmentRepository interface {
	// Create stores a new attachment
	Create(ctx context.Context, attachment *models.Attachment) error

	// FindByID finds an attachment by ID
	FindByID(ctx context.Context, id string) (*models.Attachment, error)

	// ListByTask lists the attachments of a task, oldest first
	ListByTask(ctx context.Context, taskID string) ([]*models.Attachment, error)

	// Delete tombstones an attachment. The uploaded file is left alone.
	Delete(ctx context.Context, id string) error
}
