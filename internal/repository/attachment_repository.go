package repository

import (
	"context"

	"github.com/yukikurage/project-tracker/internal/codec"
	"github.com/yukikurage/project-tracker/internal/models"
)

// BlobAttachmentRepository is a blob store implementation of AttachmentRepository
type BlobAttachmentRepository struct {
	store *entityStore[*models.Attachment]
}

// NewAttachmentRepository creates a new AttachmentRepository
func NewAttachmentRepository(d Deps) AttachmentRepository {
	return &BlobAttachmentRepository{store: newEntityStore(d, models.KindAttachment, codec.NewAttachment)}
}

func (r *BlobAttachmentRepository) Create(ctx context.Context, attachment *models.Attachment) error {
	return r.store.Save(ctx, attachment)
}

func (r *BlobAttachmentRepository) FindByID(ctx context.Context, id string) (*models.Attachment, error) {
	return r.store.Get(ctx, id)
}

func (r *BlobAttachmentRepository) ListByTask(ctx context.Context, taskID string) ([]*models.Attachment, error) {
	return r.store.FindBy(ctx, func(a *models.Attachment) bool {
		return a.TaskID == taskID
	})
}

func (r *BlobAttachmentRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, id)
}
