package repository

import (
	"context"

	"github.com/yukikurage/project-tracker/internal/codec"
	"github.com/yukikurage/project-tracker/internal/models"
)

// BlobTaskRepository is a blob store implementation of TaskRepository
type BlobTaskRepository struct {
	store *entityStore[*models.Task]
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(d Deps) TaskRepository {
	return &BlobTaskRepository{store: newEntityStore(d, models.KindTask, codec.NewTask)}
}

func (r *BlobTaskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.store.Save(ctx, task)
}

func (r *BlobTaskRepository) Update(ctx context.Context, task *models.Task) error {
	return r.store.Save(ctx, task)
}

func (r *BlobTaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	return r.store.Get(ctx, id)
}

func (r *BlobTaskRepository) List(ctx context.Context) ([]*models.Task, error) {
	return r.store.List(ctx)
}

func (r *BlobTaskRepository) ListByProject(ctx context.Context, projectID string) ([]*models.Task, error) {
	return r.store.FindBy(ctx, func(t *models.Task) bool {
		return t.ProjectID == projectID
	})
}

func (r *BlobTaskRepository) ListByAssignee(ctx context.Context, userID string) ([]*models.Task, error) {
	return r.store.FindBy(ctx, func(t *models.Task) bool {
		return t.AssigneeID == userID
	})
}

func (r *BlobTaskRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	tasks, err := r.ListByProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	return len(tasks), nil
}
