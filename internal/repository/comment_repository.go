package repository

import (
	"context"

	"github.com/yukikurage/project-tracker/internal/codec"
	"github.com/yukikurage/project-tracker/internal/models"
)

// BlobCommentRepository is a blob store implementation of CommentRepository
type BlobCommentRepository struct {
	store *entityStore[*models.Comment]
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(d Deps) CommentRepository {
	return &BlobCommentRepository{store: newEntityStore(d, models.KindComment, codec.NewComment)}
}

func (r *BlobCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.store.Save(ctx, comment)
}

func (r *BlobCommentRepository) FindByID(ctx context.Context, id string) (*models.Comment, error) {
	return r.store.Get(ctx, id)
}

func (r *BlobCommentRepository) ListByTask(ctx context.Context, taskID string) ([]*models.Comment, error) {
	return r.store.FindBy(ctx, func(c *models.Comment) bool {
		return c.TaskID == taskID
	})
}

func (r *BlobCommentRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, id)
}
