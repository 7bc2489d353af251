package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yukikurage/project-tracker/internal/codec"
	"github.com/yukikurage/project-tracker/internal/metrics"
	"github.com/yukikurage/project-tracker/internal/models"
	"github.com/yukikurage/project-tracker/internal/tombstone"
)

// maintainer is the kind-independent view of an entityStore used by the
// startup and maintenance passes.
type maintainer interface {
	purge(ctx context.Context, id string) error
	alive(ctx context.Context, id string) (bool, error)
	restore(ctx context.Context) (int, error)
	sweep(ctx context.Context) (repaired, removed int, err error)
}

// Store bundles the repositories over one set of Deps.
type Store struct {
	Users       UserRepository
	Projects    ProjectRepository
	Tasks       TaskRepository
	Comments    CommentRepository
	Attachments AttachmentRepository
	Cascade     *Cascade

	tombstones *tombstone.Tracker
	kinds      map[models.Kind]maintainer
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New wires every repository to d. Blobs and Tombstones are required.
func New(d Deps) (*Store, error) {
	if d.Blobs == nil || d.Tombstones == nil {
		return nil, errors.New("repository: blob store and tombstone tracker are required")
	}
	return &Store{
		Users:       NewUserRepository(d),
		Projects:    NewProjectRepository(d),
		Tasks:       NewTaskRepository(d),
		Comments:    NewCommentRepository(d),
		Attachments: NewAttachmentRepository(d),
		Cascade:     NewCascade(d),
		tombstones:  d.Tombstones,
		kinds: map[models.Kind]maintainer{
			models.KindUser:       newEntityStore(d, models.KindUser, codec.NewUser),
			models.KindProject:    newEntityStore(d, models.KindProject, codec.NewProject),
			models.KindTask:       newEntityStore(d, models.KindTask, codec.NewTask),
			models.KindComment:    newEntityStore(d, models.KindComment, codec.NewComment),
			models.KindAttachment: newEntityStore(d, models.KindAttachment, codec.NewAttachment),
		},
		logger:  d.logger(),
		metrics: d.Metrics,
	}, nil
}

// RecoverReport summarizes a Recover run.
type RecoverReport struct {
	Purged    int
	Restored  map[models.Kind]int
	Compacted int
}

// Recover brings the blob store back in line with the tombstones and the
// snapshot directory. It must run once at startup before requests are
// served. Tombstones are loaded first, then whatever tombstoned entities
// left behind is purged, every live snapshot is written back into the blob
// store, and finally the tombstones are compacted. Running it again is
// harmless.
func (s *Store) Recover(ctx context.Context) (*RecoverReport, error) {
	start := time.Now()
	defer func() { s.metrics.RecoverDuration(time.Since(start)) }()

	if err := s.tombstones.Load(ctx); err != nil {
		return nil, err
	}

	report := &RecoverReport{Restored: make(map[models.Kind]int)}

	for _, kind := range s.tombstones.Kinds() {
		if _, ok := s.kinds[kind]; !ok {
			continue
		}
		for _, id := range s.tombstones.IDs(kind) {
			if err := s.kinds[kind].purge(ctx, id); err != nil {
				s.logger.Warn("purge of deleted entity incomplete", "op", "recover", "kind", kind, "id", id, "error", err)
				continue
			}
			report.Purged++
		}
	}

	for _, kind := range []models.Kind{models.KindProject, models.KindTask} {
		n, err := s.kinds[kind].restore(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to restore %s: %w", kind.Plural(), err)
		}
		report.Restored[kind] = n
	}

	compacted, err := s.Compact(ctx)
	if err != nil {
		return report, err
	}
	report.Compacted = compacted

	s.logger.Info("recovery finished", "op", "recover",
		"purged", report.Purged,
		"restored_projects", report.Restored[models.KindProject],
		"restored_tasks", report.Restored[models.KindTask],
		"compacted", report.Compacted,
		"duration", time.Since(start))
	return report, nil
}

// LoadTombstones reads the durable tombstone sets. Recover does this itself;
// Compact and Sweep run on a store loaded by one or the other.
func (s *Store) LoadTombstones(ctx context.Context) error {
	return s.tombstones.Load(ctx)
}

// Compact drops tombstones for ids that have no blob and no snapshot left.
func (s *Store) Compact(ctx context.Context) (int, error) {
	n, err := s.tombstones.Compact(ctx, func(ctx context.Context, kind models.Kind, id string) (bool, error) {
		m, ok := s.kinds[kind]
		if !ok {
			return true, nil
		}
		return m.alive(ctx, id)
	})
	for _, kind := range s.tombstones.Kinds() {
		s.metrics.SetTombstones(string(kind), s.tombstones.Count(kind))
	}
	if err != nil {
		return n, fmt.Errorf("failed to compact tombstones: %w", err)
	}
	return n, nil
}

// SweepReport counts what Sweep did per kind.
type SweepReport struct {
	Repaired map[models.Kind]int
	Removed  map[models.Kind]int
}

// Sweep finds blobs that no longer decode. Projects and tasks with a usable
// snapshot are rewritten from it; everything else is tombstoned and removed.
func (s *Store) Sweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{Repaired: make(map[models.Kind]int), Removed: make(map[models.Kind]int)}
	for _, kind := range models.AllKinds() {
		repaired, removed, err := s.kinds[kind].sweep(ctx)
		report.Repaired[kind] = repaired
		report.Removed[kind] = removed
		if err != nil {
			return report, fmt.Errorf("failed to sweep %s: %w", kind.Plural(), err)
		}
	}
	return report, nil
}

// CountProjectTasks returns the number of live tasks in the project.
func (s *Store) CountProjectTasks(ctx context.Context, projectID string) (int, error) {
	return s.Tasks.CountByProject(ctx, projectID)
}

// CountProjectMembers returns the number of members of the project, not
// counting the owner.
func (s *Store) CountProjectMembers(ctx context.Context, projectID string) (int, error) {
	p, err := s.Projects.FindByID(ctx, projectID)
	if err != nil {
		return 0, err
	}
	return len(p.MemberIDs), nil
}

// ProjectOwner returns the user owning the project.
func (s *Store) ProjectOwner(ctx context.Context, projectID string) (*models.User, error) {
	p, err := s.Projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.Users.FindByID(ctx, p.OwnerID)
}

// TaskProject returns the project a task belongs to.
func (s *Store) TaskProject(ctx context.Context, taskID string) (*models.Project, error) {
	t, err := s.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.Projects.FindByID(ctx, t.ProjectID)
}
