package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yukikurage/project-tracker/internal/constants"
	"github.com/yukikurage/project-tracker/internal/models"
	"github.com/yukikurage/project-tracker/internal/repository"
)

var (
	ErrNotProjectOwner   = errors.New("only the project owner can perform this action")
	ErrNoProjectAccess   = errors.New("user does not have access to this project")
	ErrTitleRequired     = errors.New("title is required")
	ErrTitleTooLong      = errors.New("title is too long")
	ErrDescriptionLong   = errors.New("description is too long")
	ErrAlreadyMember     = errors.New("user is already a member of this project")
	ErrOwnerNotRemovable = errors.New("the project owner cannot be removed")
)

// ProjectService handles project business logic on top of the repositories.
type ProjectService struct {
	store  *repository.Store
	logger *slog.Logger
}

// NewProjectService creates a new ProjectService
func NewProjectService(store *repository.Store, logger *slog.Logger) *ProjectService {
	return &ProjectService{store: store, logger: logger}
}

// ProjectSummary is a project with the figures shown in listings.
type ProjectSummary struct {
	Project     *models.Project
	Owner       *models.User
	TaskCount   int
	MemberCount int
}

// ProjectDetail is a project with its people and tasks resolved.
type ProjectDetail struct {
	Project   *models.Project
	Owner     *models.User
	Members   []*models.User
	Tasks     []*models.Task
	Assignees map[string]*models.User
}

// CreateProjectInput represents input for creating a project
type CreateProjectInput struct {
	Title       string
	Description string
	OwnerID     string
}

// UpdateProjectInput represents input for editing a project
type UpdateProjectInput struct {
	Title       *string
	Description *string
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrTitleRequired
	}
	if len(title) > constants.MaxTitleLength {
		return "", ErrTitleTooLong
	}
	return title, nil
}

func validateDescription(desc string) error {
	if len(desc) > constants.MaxDescriptionLength {
		return ErrDescriptionLong
	}
	return nil
}

// Create stores a new project owned by input.OwnerID.
func (s *ProjectService) Create(ctx context.Context, input CreateProjectInput) (*models.Project, error) {
	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	if err := validateDescription(input.Description); err != nil {
		return nil, err
	}

	project := models.NewProject(title, input.Description, input.OwnerID)
	if err := s.store.Projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

// Authorize loads a project and checks that userID owns or belongs to it.
func (s *ProjectService) Authorize(ctx context.Context, projectID, userID string) (*models.Project, error) {
	project, err := s.store.Projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.CanAccess(userID) {
		return nil, ErrNoProjectAccess
	}
	return project, nil
}

func (s *ProjectService) authorizeOwner(ctx context.Context, projectID, userID string) (*models.Project, error) {
	project, err := s.Authorize(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != userID {
		return nil, ErrNotProjectOwner
	}
	return project, nil
}

// Get returns a project with its owner, members, tasks and task assignees.
// Users that cannot be loaded are left out.
func (s *ProjectService) Get(ctx context.Context, projectID, userID string) (*ProjectDetail, error) {
	project, err := s.Authorize(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.store.Tasks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	detail := &ProjectDetail{
		Project:   project,
		Members:   make([]*models.User, 0, len(project.MemberIDs)),
		Tasks:     tasks,
		Assignees: make(map[string]*models.User),
	}
	detail.Owner = s.lookupUser(ctx, project.OwnerID)
	for _, id := range project.MemberIDs {
		if u := s.lookupUser(ctx, id); u != nil {
			detail.Members = append(detail.Members, u)
		}
	}
	for _, t := range tasks {
		if !t.IsAssigned() {
			continue
		}
		if u := s.lookupUser(ctx, t.AssigneeID); u != nil {
			detail.Assignees[t.ID] = u
		}
	}
	return detail, nil
}

// ListForUser returns the projects the user owns and the ones they were
// added to, each with task and member counts.
func (s *ProjectService) ListForUser(ctx context.Context, userID string) (owned, member []ProjectSummary, err error) {
	ownedProjects, err := s.store.Projects.ListByOwner(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list owned projects: %w", err)
	}
	memberProjects, err := s.store.Projects.ListByMember(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list member projects: %w", err)
	}

	if owned, err = s.summarize(ctx, ownedProjects); err != nil {
		return nil, nil, err
	}
	if member, err = s.summarize(ctx, memberProjects); err != nil {
		return nil, nil, err
	}
	return owned, member, nil
}

func (s *ProjectService) summarize(ctx context.Context, projects []*models.Project) ([]ProjectSummary, error) {
	out := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		count, err := s.store.CountProjectTasks(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count tasks: %w", err)
		}
		out = append(out, ProjectSummary{
			Project:     p,
			Owner:       s.lookupUser(ctx, p.OwnerID),
			TaskCount:   count,
			MemberCount: len(p.MemberIDs),
		})
	}
	return out, nil
}

// Update edits the title and description. Owner only.
func (s *ProjectService) Update(ctx context.Context, projectID, actorID string, input UpdateProjectInput) (*models.Project, error) {
	project, err := s.authorizeOwner(ctx, projectID, actorID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title, err := validateTitle(*input.Title)
		if err != nil {
			return nil, err
		}
		project.Title = title
	}
	if input.Description != nil {
		if err := validateDescription(*input.Description); err != nil {
			return nil, err
		}
		project.Description = *input.Description
	}
	project.Touch()

	if err := s.store.Projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return project, nil
}

// Delete removes the project and everything in it. Owner only. Cleanup
// steps that fail after the project is gone are logged, not returned.
func (s *ProjectService) Delete(ctx context.Context, projectID, actorID string) error {
	if _, err := s.authorizeOwner(ctx, projectID, actorID); err != nil {
		return err
	}
	return settleCascade(s.logger, s.store.Cascade.DeleteProject(ctx, projectID))
}

// AddMember adds the user named username to the project. Owner only.
func (s *ProjectService) AddMember(ctx context.Context, projectID, actorID, username string) (*models.Project, error) {
	project, err := s.authorizeOwner(ctx, projectID, actorID)
	if err != nil {
		return nil, err
	}

	user, err := s.store.Users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user.ID == project.OwnerID || !project.AddMember(user.ID) {
		return nil, ErrAlreadyMember
	}
	project.Touch()

	if err := s.store.Projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return project, nil
}

// RemoveMember drops userID from the project. Owner only. Removing a user
// that is not a member is a no-op.
func (s *ProjectService) RemoveMember(ctx context.Context, projectID, actorID, userID string) (*models.Project, error) {
	project, err := s.authorizeOwner(ctx, projectID, actorID)
	if err != nil {
		return nil, err
	}
	if userID == project.OwnerID {
		return nil, ErrOwnerNotRemovable
	}
	if !project.RemoveMember(userID) {
		return project, nil
	}
	project.Touch()

	if err := s.store.Projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to remove member: %w", err)
	}
	return project, nil
}

// Dashboard is the landing view of a user.
type Dashboard struct {
	Owned    []ProjectSummary
	Member   []ProjectSummary
	Assigned []*models.Task
}

// Dashboard collects the user's projects and the tasks assigned to them.
func (s *ProjectService) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	owned, member, err := s.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	assigned, err := s.store.Tasks.ListByAssignee(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assigned tasks: %w", err)
	}
	return &Dashboard{Owned: owned, Member: member, Assigned: assigned}, nil
}

func (s *ProjectService) lookupUser(ctx context.Context, id string) *models.User {
	u, err := s.store.Users.FindByID(ctx, id)
	if err != nil {
		s.logger.Debug("user lookup failed", "kind", models.KindUser, "id", id, "error", err)
		return nil
	}
	return u
}

// settleCascade treats a cascade that got past the root tombstone as done.
func settleCascade(logger *slog.Logger, err error) error {
	var ce *repository.CascadeError
	if errors.As(err, &ce) && ce.Deleted {
		logger.Warn("delete finished with leftover cleanup", "kind", ce.Kind, "id", ce.ID, "failed_steps", len(ce.Steps))
		return nil
	}
	return err
}
