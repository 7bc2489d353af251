package repository

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yukikurage/project-tracker/internal/backup"
	"github.com/yukikurage/project-tracker/internal/blobstore"
	"github.com/yukikurage/project-tracker/internal/models"
	"github.com/yukikurage/project-tracker/internal/tombstone"
)

var errInjected = errors.New("injected backend failure")

// faultStore wraps a Store and fails the operations selected by failOn.
type faultStore struct {
	blobstore.Store
	mu     sync.Mutex
	failOn func(op, namespace, key string) bool
}

func (f *faultStore) check(op, namespace, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != nil && f.failOn(op, namespace, key) {
		return &blobstore.BackendError{Op: op, Namespace: namespace, Key: key, Err: errInjected}
	}
	return nil
}

func (f *faultStore) setFailOn(fn func(op, namespace, key string) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn = fn
}

func (f *faultStore) Put(ctx context.Context, ns, id string, data []byte) error {
	if err := f.check("put", ns, id); err != nil {
		return err
	}
	return f.Store.Put(ctx, ns, id, data)
}

func (f *faultStore) Get(ctx context.Context, ns, id string) ([]byte, error) {
	if err := f.check("get", ns, id); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, ns, id)
}

func (f *faultStore) Delete(ctx context.Context, ns, id string) (bool, error) {
	if err := f.check("delete", ns, id); err != nil {
		return false, err
	}
	return f.Store.Delete(ctx, ns, id)
}

func (f *faultStore) ListIDs(ctx context.Context, ns string) ([]string, error) {
	if err := f.check("list", ns, ""); err != nil {
		return nil, err
	}
	return f.Store.ListIDs(ctx, ns)
}

func (f *faultStore) SetAdd(ctx context.Context, set, member string) error {
	if err := f.check("sadd", set, member); err != nil {
		return err
	}
	return f.Store.SetAdd(ctx, set, member)
}

func (f *faultStore) SetRemove(ctx context.Context, set, member string) error {
	if err := f.check("srem", set, member); err != nil {
		return err
	}
	return f.Store.SetRemove(ctx, set, member)
}

type fixture struct {
	t         *testing.T
	blobs     *faultStore
	mem       *blobstore.MemoryStore
	tracker   *tombstone.Tracker
	snapshots *backup.Store
	files     *recordingFiles
	store     *Store
	dir       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, mem: blobstore.NewMemoryStore(), dir: t.TempDir(), files: &recordingFiles{}}
	f.blobs = &faultStore{Store: f.mem}
	f.snapshots = backup.New(f.dir, slog.Default())
	require.NoError(t, f.snapshots.Init())
	f.restart()
	return f
}

// restart builds a fresh tracker and store over the same backends, as a new
// process would.
func (f *fixture) restart() {
	f.t.Helper()
	f.tracker = tombstone.New(f.blobs, nil)
	s, err := New(Deps{
		Blobs:      f.blobs,
		Tombstones: f.tracker,
		Snapshots:  f.snapshots,
		Files:      f.files,
	})
	require.NoError(f.t, err)
	f.store = s
}

// wipe drops every blob of the given kinds, as a volatile backend would.
func (f *fixture) wipe(kinds ...models.Kind) {
	f.t.Helper()
	ctx := context.Background()
	for _, kind := range kinds {
		ids, err := f.mem.ListIDs(ctx, kind.Namespace())
		require.NoError(f.t, err)
		for _, id := range ids {
			_, err := f.mem.Delete(ctx, kind.Namespace(), id)
			require.NoError(f.t, err)
		}
	}
}

func (f *fixture) user(name string) *models.User {
	f.t.Helper()
	u := models.NewUser(name, name+"@example.com")
	u.PasswordHash = "hash"
	require.NoError(f.t, f.store.Users.Create(context.Background(), u))
	return u
}

func (f *fixture) project(title, ownerID string) *models.Project {
	f.t.Helper()
	p := models.NewProject(title, title+" description", ownerID)
	require.NoError(f.t, f.store.Projects.Create(context.Background(), p))
	return p
}

func (f *fixture) task(title, projectID, creatorID string) *models.Task {
	f.t.Helper()
	task := models.NewTask(title, "", projectID, creatorID)
	require.NoError(f.t, f.store.Tasks.Create(context.Background(), task))
	return task
}

type recordingFiles struct {
	mu      sync.Mutex
	removed []string
	fail    bool
}

func (r *recordingFiles) Remove(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("permission denied")
	}
	r.removed = append(r.removed, path)
	return nil
}
