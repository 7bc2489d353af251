package database

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/yukikurage/project-tracker/internal/blobstore"
)

// indexes the blob store queries by besides the primary keys.
var indexes = []struct {
	model any
	name  string
}{
	{&blobstore.BlobRecord{}, "idx_blobs_namespace"},
	{&blobstore.SetMember{}, "idx_set_members_set_name"},
}

// Migrate creates the blob store tables and their indexes.
func Migrate(ctx context.Context, db *gorm.DB, log *slog.Logger) error {
	log.Info("running database migrations")
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(&blobstore.BlobRecord{}, &blobstore.SetMember{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m := db.Migrator()
	for _, idx := range indexes {
		if m.HasIndex(idx.model, idx.name) {
			log.Debug("index already exists, skipping", "index", idx.name)
			continue
		}
		if err := m.CreateIndex(idx.model, idx.name); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
		log.Info("created index", "index", idx.name)
	}

	log.Info("database migrations completed")
	return nil
}
