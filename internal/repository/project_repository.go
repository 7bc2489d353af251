package repository

import (
	"context"

	"github.com/yukikurage/project-tracker/internal/codec"
	"github.com/yukikurage/project-tracker/internal/models"
)

// BlobProjectRepository is a blob store implementation of ProjectRepository
type BlobProjectRepository struct {
	store *entityStore[*models.Project]
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(d Deps) ProjectRepository {
	return &BlobProjectRepository{store: newEntityStore(d, models.KindProject, codec.NewProject)}
}

func (r *BlobProjectRepository) Create(ctx context.Context, project *models.Project) error {
	return r.store.Save(ctx, project)
}

func (r *BlobProjectRepository) Update(ctx context.Context, project *models.Project) error {
	return r.store.Save(ctx, project)
}

func (r *BlobProjectRepository) FindByID(ctx context.Context, id string) (*models.Project, error) {
	return r.store.Get(ctx, id)
}

func (r *BlobProjectRepository) List(ctx context.Context) ([]*models.Project, error) {
	return r.store.List(ctx)
}

func (r *BlobProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Project, error) {
	return r.store.FindBy(ctx, func(p *models.Project) bool {
		return p.OwnerID == ownerID
	})
}

func (r *BlobProjectRepository) ListByMember(ctx context.Context, userID string) ([]*models.Project, error) {
	return r.store.FindBy(ctx, func(p *models.Project) bool {
		return p.HasMember(userID)
	})
}

func (r *BlobProjectRepository) ListForUser(ctx context.Context, userID string) ([]*models.Project, error) {
	return r.store.FindBy(ctx, func(p *models.Project) bool {
		return p.CanAccess(userID)
	})
}
