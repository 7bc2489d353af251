package repository

import (
	"context"
	"log/slog"

	"github.com/yukikurage/project-tracker/internal/codec"
	"github.com/yukikurage/project-tracker/internal/metrics"
	"github.com/yukikurage/project-tracker/internal/models"
)

// Cascade deletes projects and tasks together with everything that
// references them. The steps run in sequence without a transaction: a
// failed step is logged and collected but never stops the remaining ones.
type Cascade struct {
	projects    *entityStore[*models.Project]
	tasks       *entityStore[*models.Task]
	comments    *entityStore[*models.Comment]
	attachments *entityStore[*models.Attachment]
	files       FileRemover
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

func NewCascade(d Deps) *Cascade {
	return &Cascade{
		projects:    newEntityStore(d, models.KindProject, codec.NewProject),
		tasks:       newEntityStore(d, models.KindTask, codec.NewTask),
		comments:    newEntityStore(d, models.KindComment, codec.NewComment),
		attachments: newEntityStore(d, models.KindAttachment, codec.NewAttachment),
		files:       d.Files,
		logger:      d.logger(),
		metrics:     d.Metrics,
	}
}

func (c *Cascade) fail(ce *CascadeError, step string, kind models.Kind, id string, err error) {
	c.metrics.CascadeFailure(step)
	c.logger.Error("cascade step failed", "op", step, "kind", kind, "id", id, "root", ce.ID, "error", err)
	ce.add(step, kind, id, err)
}

// DeleteProject deletes every task of the project, then the project's
// snapshot, then tombstones and removes the project itself.
//
// The project stays visible until its own tombstone is written, so a reader
// may briefly see it with some or all of its tasks already gone. If that
// tombstone fails the returned *CascadeError has Deleted set to false.
func (c *Cascade) DeleteProject(ctx context.Context, id string) error {
	ce := &CascadeError{Kind: models.KindProject, ID: id, Deleted: true}

	tasks, err := c.tasks.listWithSnapshots(ctx)
	if err != nil {
		c.fail(ce, "list_tasks", models.KindProject, id, err)
	}
	for _, t := range tasks {
		if t.ProjectID != id {
			continue
		}
		if err := c.DeleteTask(ctx, t.ID); err != nil {
			ce.merge(err)
		}
	}

	if err := c.projects.removeSnapshot(id); err != nil {
		c.fail(ce, "remove_snapshot", models.KindProject, id, err)
	}
	if err := c.projects.mark(ctx, id); err != nil {
		ce.Deleted = false
		c.fail(ce, "tombstone", models.KindProject, id, err)
		return ce
	}
	if err := c.projects.removeBlob(ctx, id); err != nil {
		c.fail(ce, "remove_blob", models.KindProject, id, err)
	}

	c.logger.Info("project deleted", "op", "delete_project", "kind", models.KindProject, "id", id, "failed_steps", len(ce.Steps))
	return ce.errOrNil()
}

// DeleteTask tombstones the task first, so it disappears even when it is
// missing or unreadable, then removes its snapshot, its comments and its
// attachments, and finally its blob.
//
// A crash after the tombstone leaves orphaned comments and attachments that
// are hidden from task views but still stored.
func (c *Cascade) DeleteTask(ctx context.Context, id string) error {
	ce := &CascadeError{Kind: models.KindTask, ID: id, Deleted: true}

	if err := c.tasks.mark(ctx, id); err != nil {
		ce.Deleted = false
		c.fail(ce, "tombstone", models.KindTask, id, err)
		return ce
	}
	if err := c.tasks.removeSnapshot(id); err != nil {
		c.fail(ce, "remove_snapshot", models.KindTask, id, err)
	}

	comments, err := c.comments.FindBy(ctx, func(cm *models.Comment) bool { return cm.TaskID == id })
	if err != nil {
		c.fail(ce, "list_comments", models.KindTask, id, err)
	}
	for _, cm := range comments {
		if err := c.comments.mark(ctx, cm.ID); err != nil {
			c.fail(ce, "delete_comment", models.KindComment, cm.ID, err)
			continue
		}
		if err := c.comments.removeBlob(ctx, cm.ID); err != nil {
			c.fail(ce, "remove_comment_blob", models.KindComment, cm.ID, err)
		}
	}

	attachments, err := c.attachments.FindBy(ctx, func(a *models.Attachment) bool { return a.TaskID == id })
	if err != nil {
		c.fail(ce, "list_attachments", models.KindTask, id, err)
	}
	for _, a := range attachments {
		if err := c.attachments.mark(ctx, a.ID); err != nil {
			c.fail(ce, "delete_attachment", models.KindAttachment, a.ID, err)
			continue
		}
		if c.files != nil && a.FilePath != "" {
			if err := c.files.Remove(ctx, a.FilePath); err != nil {
				c.fail(ce, "remove_file", models.KindAttachment, a.ID, err)
			}
		}
		if err := c.attachments.removeBlob(ctx, a.ID); err != nil {
			c.fail(ce, "remove_attachment_blob", models.KindAttachment, a.ID, err)
		}
	}

	if err := c.tasks.removeBlob(ctx, id); err != nil {
		c.fail(ce, "remove_blob", models.KindTask, id, err)
	}

	c.logger.Info("task deleted", "op", "delete_task", "kind", models.KindTask, "id", id,
		"comments", len(comments), "attachments", len(attachments), "failed_steps", len(ce.Steps))
	return ce.errOrNil()
}
