package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/yukikurage/project-tracker/internal/backup"
	"github.com/yukikurage/project-tracker/internal/blobstore"
	"github.com/yukikurage/project-tracker/internal/codec"
	"github.com/yukikurage/project-tracker/internal/metrics"
	"github.com/yukikurage/project-tracker/internal/models"
	"github.com/yukikurage/project-tracker/internal/tombstone"
)

// Deps are the collaborators shared by every repository.
type Deps struct {
	Blobs      blobstore.Store
	Tombstones *tombstone.Tracker
	// Snapshots is optional. Without it projects and tasks have no
	// file-based copy.
	Snapshots *backup.Store
	// Files is optional and used to remove attachment uploads.
	Files   FileRemover
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// FileRemover deletes an uploaded file by the path stored on an attachment.
type FileRemover interface {
	Remove(ctx context.Context, path string) error
}

// entityStore is the per-kind CRUD layer. Every read consults the tombstone
// tracker first.
type entityStore[E models.Entity] struct {
	kind       models.Kind
	newEntity  func() E
	blobs      blobstore.Store
	tombstones *tombstone.Tracker
	snapshots  *backup.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func newEntityStore[E models.Entity](d Deps, kind models.Kind, newEntity func() E) *entityStore[E] {
	s := &entityStore[E]{
		kind:       kind,
		newEntity:  newEntity,
		blobs:      d.Blobs,
		tombstones: d.Tombstones,
		logger:     d.logger().With("kind", kind),
		metrics:    d.Metrics,
	}
	if backup.Supports(kind) {
		s.snapshots = d.Snapshots
	}
	return s
}

func (s *entityStore[E]) ns() string {
	return s.kind.Namespace()
}

func (s *entityStore[E]) deleted(id string) bool {
	return s.tombstones.IsDeleted(s.kind, id)
}

// Save writes e, clears any tombstone on its id and refreshes its snapshot.
// Concurrent saves of the same id race; the last write wins.
func (s *entityStore[E]) Save(ctx context.Context, e E) (err error) {
	defer func() { s.metrics.Op(string(s.kind), "save", err) }()

	id := e.EntityID()
	data, err := codec.Encode(e)
	if err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, s.ns(), id, data); err != nil {
		s.logger.Error("failed to store entity", "op", "save", "id", id, "error", err)
		return fmt.Errorf("failed to save %s %s: %w", s.kind, id, err)
	}
	if err := s.tombstones.Unmark(ctx, s.kind, id); err != nil {
		return err
	}
	if s.snapshots != nil {
		if err := s.snapshots.Save(e); err != nil {
			s.logger.Error("failed to write snapshot", "op", "save", "id", id, "error", err)
			return err
		}
	}
	return nil
}

// Get returns the entity stored under id. A tombstoned id is never found.
// When the blob is missing or unreadable the lookup falls back to a scan of
// the namespace and then to the snapshot.
func (s *entityStore[E]) Get(ctx context.Context, id string) (E, error) {
	var zero E
	if s.deleted(id) {
		return zero, notFound(s.kind, "id", id)
	}

	data, err := s.blobs.Get(ctx, s.ns(), id)
	switch {
	case err == nil:
		e, derr := s.decode(data, id)
		if derr == nil && e.EntityID() == id {
			return e, nil
		}
		if derr == nil {
			s.logger.Warn("blob id does not match its key", "op", "get", "id", id, "stored_id", e.EntityID())
		}
	case errors.Is(err, blobstore.ErrNotFound):
	default:
		s.logger.Error("failed to read entity", "op", "get", "id", id, "error", err)
		if e, ok := s.fromSnapshot(id); ok {
			return e, nil
		}
		return zero, fmt.Errorf("failed to get %s %s: %w", s.kind, id, err)
	}

	if e, ok := s.scan(ctx, id); ok {
		s.metrics.Fallback(string(s.kind), "scan")
		return e, nil
	}
	if e, ok := s.fromSnapshot(id); ok {
		return e, nil
	}
	return zero, notFound(s.kind, "id", id)
}

func (s *entityStore[E]) decode(data []byte, key string) (E, error) {
	e, err := codec.Decode(data, key, s.newEntity)
	if err != nil {
		s.metrics.Corrupt(string(s.kind))
		s.logger.Warn("treating corrupt entity as absent", "op", "decode", "id", key, "error", err)
	}
	return e, err
}

// scan looks for a blob stored under some other key whose decoded id is id.
func (s *entityStore[E]) scan(ctx context.Context, id string) (E, bool) {
	var zero E
	keys, err := s.blobs.ListIDs(ctx, s.ns())
	if err != nil {
		s.logger.Warn("fallback scan failed", "op", "get", "id", id, "error", err)
		return zero, false
	}
	for _, key := range keys {
		if key == id || s.deleted(key) {
			continue
		}
		data, err := s.blobs.Get(ctx, s.ns(), key)
		if err != nil {
			continue
		}
		e, err := codec.Decode(data, key, s.newEntity)
		if err == nil && e.EntityID() == id {
			return e, true
		}
	}
	return zero, false
}

func (s *entityStore[E]) fromSnapshot(id string) (E, bool) {
	var zero E
	if s.snapshots == nil {
		return zero, false
	}
	loaded, err := s.snapshots.Load(s.kind, id)
	if err != nil {
		if !errors.Is(err, backup.ErrNotFound) {
			s.logger.Warn("snapshot fallback failed", "op", "get", "id", id, "error", err)
		}
		return zero, false
	}
	e, ok := loaded.(E)
	if !ok {
		return zero, false
	}
	s.metrics.Fallback(string(s.kind), "snapshot")
	return e, true
}

// List returns every live entity ordered by creation time. Entities that
// fail to load are logged and skipped. Snapshotted kinds fall back to the
// snapshot directory when the namespace yields nothing.
func (s *entityStore[E]) List(ctx context.Context) ([]E, error) {
	keys, err := s.blobs.ListIDs(ctx, s.ns())
	if err != nil {
		s.logger.Error("failed to list entities", "op", "list", "error", err)
		if s.snapshots != nil {
			if out, ok := s.listSnapshots(); ok && len(out) > 0 {
				return out, nil
			}
		}
		return nil, fmt.Errorf("failed to list %s: %w", s.kind.Plural(), err)
	}

	out := make([]E, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if s.deleted(key) {
			continue
		}
		data, err := s.blobs.Get(ctx, s.ns(), key)
		if errors.Is(err, blobstore.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn("skipping unreadable entity", "op", "list", "id", key, "error", err)
			continue
		}
		e, err := s.decode(data, key)
		if err != nil {
			continue
		}
		id := e.EntityID()
		if seen[id] || s.deleted(id) {
			continue
		}
		seen[id] = true
		out = append(out, e)
	}

	if len(out) == 0 && s.snapshots != nil {
		if fallback, ok := s.listSnapshots(); ok && len(fallback) > 0 {
			return fallback, nil
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *entityStore[E]) listSnapshots() ([]E, bool) {
	loaded, err := s.snapshots.LoadAll(s.kind)
	if err != nil {
		s.logger.Warn("snapshot listing failed", "op", "list", "error", err)
		return nil, false
	}
	out := make([]E, 0, len(loaded))
	for _, l := range loaded {
		e, ok := l.(E)
		if !ok || s.deleted(e.EntityID()) {
			continue
		}
		out = append(out, e)
	}
	if len(out) > 0 {
		s.metrics.Fallback(string(s.kind), "snapshot")
		s.logger.Info("listing served from snapshots", "op", "list", "count", len(out))
	}
	sortByCreated(out)
	return out, true
}

// FindBy returns the live entities matching pred. It is a full scan.
func (s *entityStore[E]) FindBy(ctx context.Context, pred func(E) bool) ([]E, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]E, 0)
	for _, e := range all {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// FindOne returns the first live entity matching pred.
func (s *entityStore[E]) FindOne(ctx context.Context, field, value string, pred func(E) bool) (E, error) {
	var zero E
	matches, err := s.FindBy(ctx, pred)
	if err != nil {
		return zero, err
	}
	if len(matches) == 0 {
		return zero, notFound(s.kind, field, value)
	}
	return matches[0], nil
}

// Delete tombstones id and then removes its blob and snapshot. Only a
// failure to tombstone is returned; cleanup failures are logged.
func (s *entityStore[E]) Delete(ctx context.Context, id string) error {
	if err := s.mark(ctx, id); err != nil {
		return err
	}
	_ = s.purge(ctx, id)
	return nil
}

func (s *entityStore[E]) mark(ctx context.Context, id string) (err error) {
	defer func() { s.metrics.Op(string(s.kind), "delete", err) }()
	if err := s.tombstones.MarkDeleted(ctx, s.kind, id); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", s.kind, id, err)
	}
	s.metrics.SetTombstones(string(s.kind), s.tombstones.Count(s.kind))
	return nil
}

// purge removes every physical trace of id.
func (s *entityStore[E]) purge(ctx context.Context, id string) error {
	return errors.Join(s.removeSnapshot(id), s.removeBlob(ctx, id))
}

func (s *entityStore[E]) removeSnapshot(id string) error {
	if s.snapshots == nil {
		return nil
	}
	if err := s.snapshots.Remove(s.kind, id); err != nil {
		s.logger.Warn("failed to remove snapshot", "op", "delete", "id", id, "error", err)
		return err
	}
	return nil
}

func (s *entityStore[E]) removeBlob(ctx context.Context, id string) error {
	if _, err := s.blobs.Delete(ctx, s.ns(), id); err != nil {
		s.logger.Warn("failed to remove blob", "op", "delete", "id", id, "error", err)
		return err
	}
	return nil
}

// alive reports whether a blob or snapshot of id still exists.
func (s *entityStore[E]) alive(ctx context.Context, id string) (bool, error) {
	ok, err := s.blobs.Exists(ctx, s.ns(), id)
	if err != nil || ok {
		return ok, err
	}
	if s.snapshots == nil {
		return false, nil
	}
	return s.snapshots.Exists(s.kind, id)
}

// listWithSnapshots is List plus live entities known only from snapshots.
func (s *entityStore[E]) listWithSnapshots(ctx context.Context) ([]E, error) {
	out, err := s.List(ctx)
	if err != nil || s.snapshots == nil {
		return out, err
	}
	extra, ok := s.listSnapshots()
	if !ok {
		return out, nil
	}
	seen := make(map[string]bool, len(out))
	for _, e := range out {
		seen[e.EntityID()] = true
	}
	for _, e := range extra {
		if !seen[e.EntityID()] {
			out = append(out, e)
		}
	}
	sortByCreated(out)
	return out, nil
}

// restore writes every live snapshot back into the blob store. Snapshots are
// not rewritten.
func (s *entityStore[E]) restore(ctx context.Context) (int, error) {
	if s.snapshots == nil {
		return 0, nil
	}
	loaded, err := s.snapshots.LoadAll(s.kind)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, l := range loaded {
		id := l.EntityID()
		if s.deleted(id) {
			continue
		}
		data, err := codec.Encode(l)
		if err != nil {
			s.logger.Warn("skipping unencodable snapshot", "op", "restore", "id", id, "error", err)
			continue
		}
		if err := s.blobs.Put(ctx, s.ns(), id, data); err != nil {
			return restored, fmt.Errorf("failed to restore %s %s: %w", s.kind, id, err)
		}
		restored++
	}
	s.metrics.Restored(string(s.kind), restored)
	return restored, nil
}

// sweep deals with blobs that no longer decode. Snapshotted entities are
// repaired from their snapshot; the rest are tombstoned and removed.
func (s *entityStore[E]) sweep(ctx context.Context) (repaired, removed int, err error) {
	keys, err := s.blobs.ListIDs(ctx, s.ns())
	if err != nil {
		return 0, 0, err
	}
	for _, key := range keys {
		if s.deleted(key) {
			continue
		}
		data, err := s.blobs.Get(ctx, s.ns(), key)
		if err != nil {
			continue
		}
		if _, err := codec.Decode(data, key, s.newEntity); err == nil {
			continue
		}
		if e, ok := s.fromSnapshot(key); ok {
			encoded, err := codec.Encode(e)
			if err == nil {
				if err := s.blobs.Put(ctx, s.ns(), key, encoded); err != nil {
					return repaired, removed, err
				}
				s.logger.Info("repaired corrupt entity from snapshot", "op", "sweep", "id", key)
				repaired++
				continue
			}
		}
		if err := s.mark(ctx, key); err != nil {
			return repaired, removed, err
		}
		_ = s.removeBlob(ctx, key)
		s.logger.Info("removed corrupt entity", "op", "sweep", "id", key)
		removed++
	}
	return repaired, removed, nil
}

func sortByCreated[E models.Entity](list []E) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].Created(), list[j].Created()
		if !a.Equal(b) {
			return a.Before(b)
		}
		return list[i].EntityID() < list[j].EntityID()
	})
}
