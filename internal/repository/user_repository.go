package repository

import (
	"context"
	"strings"

	"github.com/yukikurage/project-tracker/internal/codec"
	"github.com/yukikurage/project-tracker/internal/models"
)

// BlobUserRepository is a blob store implementation of UserRepository
type BlobUserRepository struct {
	store *entityStore[*models.User]
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(d Deps) UserRepository {
	return &BlobUserRepository{store: newEntityStore(d, models.KindUser, codec.NewUser)}
}

// Create creates a new user
func (r *BlobUserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.checkUnique(ctx, user); err != nil {
		return err
	}
	return r.store.Save(ctx, user)
}

// Update updates a user
func (r *BlobUserRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.checkUnique(ctx, user); err != nil {
		return err
	}
	return r.store.Save(ctx, user)
}

func (r *BlobUserRepository) checkUnique(ctx context.Context, user *models.User) error {
	users, err := r.store.List(ctx)
	if err != nil {
		return err
	}
	for _, other := range users {
		if other.ID == user.ID {
			continue
		}
		if other.Username == user.Username {
			return &DuplicateKeyError{Kind: models.KindUser, Field: "username", Value: user.Username}
		}
		if strings.EqualFold(other.Email, user.Email) {
			return &DuplicateKeyError{Kind: models.KindUser, Field: "email", Value: user.Email}
		}
	}
	return nil
}

// FindByID finds a user by ID
func (r *BlobUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.store.Get(ctx, id)
}

// FindByUsername finds a user by username
func (r *BlobUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.store.FindOne(ctx, "username", username, func(u *models.User) bool {
		return u.Username == username
	})
}

// FindByEmail finds a user by email
func (r *BlobUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.store.FindOne(ctx, "email", email, func(u *models.User) bool {
		return strings.EqualFold(u.Email, email)
	})
}

func (r *BlobUserRepository) List(ctx context.Context) ([]*models.User, error) {
	return r.store.List(ctx)
}

func (r *BlobUserRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, id)
}
