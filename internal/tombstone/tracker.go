// Package tombstone tracks logically deleted entity ids. A tombstoned id is
// invisible to every read regardless of whether its blob still exists.
package tombstone

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/yukikurage/project-tracker/internal/models"
)

// SetStore is the durable side of the tracker.
type SetStore interface {
	SetAdd(ctx context.Context, set, member string) error
	SetRemove(ctx context.Context, set, member string) error
	SetMembers(ctx context.Context, set string) ([]string, error)
}

// AliveFunc reports whether any physical trace of kind/id remains.
type AliveFunc func(ctx context.Context, kind models.Kind, id string) (bool, error)

// SetName returns the durable set holding the tombstones of kind.
func SetName(kind models.Kind) string {
	return "deleted_" + kind.Plural()
}

// Tracker holds one in-memory id set per kind, mirrored to durable sets.
//
// Lifecycle: construct with New, call Load once before serving, mutate from
// any goroutine, and Compact at startup after recovery.
type Tracker struct {
	mu     sync.RWMutex
	store  SetStore
	kinds  []models.Kind
	sets   map[models.Kind]map[string]struct{}
	logger *slog.Logger
}

// New returns a tracker for the given kinds, or for every kind when none are
// listed.
func New(store SetStore, logger *slog.Logger, kinds ...models.Kind) *Tracker {
	if len(kinds) == 0 {
		kinds = models.AllKinds()
	}
	if logger == nil {
		logger = slog.Default()
	}
	sets := make(map[models.Kind]map[string]struct{}, len(kinds))
	for _, k := range kinds {
		sets[k] = make(map[string]struct{})
	}
	return &Tracker{store: store, kinds: kinds, sets: sets, logger: logger}
}

// Kinds returns the tracked kinds.
func (t *Tracker) Kinds() []models.Kind {
	return append([]models.Kind(nil), t.kinds...)
}

func (t *Tracker) Tracks(kind models.Kind) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.sets[kind]
	return ok
}

// Load replaces the in-memory sets with the durable ones.
func (t *Tracker) Load(ctx context.Context) error {
	loaded := make(map[models.Kind]map[string]struct{}, len(t.kinds))
	for _, kind := range t.kinds {
		members, err := t.store.SetMembers(ctx, SetName(kind))
		if err != nil {
			return fmt.Errorf("failed to load tombstones for %s: %w", kind, err)
		}
		set := make(map[string]struct{}, len(members))
		for _, id := range members {
			set[id] = struct{}{}
		}
		loaded[kind] = set
		t.logger.Info("tombstones loaded", "op", "load", "kind", kind, "count", len(set))
	}

	t.mu.Lock()
	t.sets = loaded
	t.mu.Unlock()
	return nil
}

// MarkDeleted tombstones kind/id. The in-memory set is updated even when the
// durable write fails, so the id stays hidden for the life of the process.
func (t *Tracker) MarkDeleted(ctx context.Context, kind models.Kind, id string) error {
	if !t.Tracks(kind) {
		return fmt.Errorf("tombstones not tracked for %s", kind)
	}
	t.mu.Lock()
	t.sets[kind][id] = struct{}{}
	t.mu.Unlock()

	if err := t.store.SetAdd(ctx, SetName(kind), id); err != nil {
		t.logger.Error("failed to persist tombstone", "op", "mark_deleted", "kind", kind, "id", id, "error", err)
		return fmt.Errorf("failed to persist tombstone for %s %s: %w", kind, id, err)
	}
	return nil
}

func (t *Tracker) IsDeleted(kind models.Kind, id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.sets[kind][id]
	return ok
}

// Unmark clears a tombstone after the id was written again. The durable
// entry goes first; when it cannot be removed the id stays hidden so a
// failed save is not visible now and then purged on the next restart.
func (t *Tracker) Unmark(ctx context.Context, kind models.Kind, id string) error {
	if !t.IsDeleted(kind, id) {
		return nil
	}
	if err := t.store.SetRemove(ctx, SetName(kind), id); err != nil {
		t.logger.Error("failed to clear durable tombstone", "op", "unmark", "kind", kind, "id", id, "error", err)
		return fmt.Errorf("failed to clear tombstone for %s %s: %w", kind, id, err)
	}

	t.mu.Lock()
	delete(t.sets[kind], id)
	t.mu.Unlock()
	return nil
}

// IDs returns the tombstoned ids of kind in sorted order.
func (t *Tracker) IDs(kind models.Kind) []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.sets[kind]))
	for id := range t.sets[kind] {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (t *Tracker) Count(kind models.Kind) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sets[kind])
}

// Compact drops tombstones that no longer mask anything. An id whose liveness
// cannot be determined is kept. It returns the number of tombstones removed.
func (t *Tracker) Compact(ctx context.Context, alive AliveFunc) (int, error) {
	removed := 0
	for _, kind := range t.kinds {
		for _, id := range t.IDs(kind) {
			ok, err := alive(ctx, kind, id)
			if err != nil {
				t.logger.Warn("keeping tombstone, liveness unknown", "op", "compact", "kind", kind, "id", id, "error", err)
				continue
			}
			if ok {
				continue
			}
			if err := t.store.SetRemove(ctx, SetName(kind), id); err != nil {
				return removed, fmt.Errorf("failed to compact tombstone for %s %s: %w", kind, id, err)
			}
			t.mu.Lock()
			delete(t.sets[kind], id)
			t.mu.Unlock()
			removed++
		}
	}
	if removed > 0 {
		t.logger.Info("tombstones compacted", "op", "compact", "removed", removed)
	}
	return removed, nil
}
